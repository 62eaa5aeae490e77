package cmd

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"firestige.xyz/wiretap/internal/source"
)

func newDevicesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "devices",
		Short: "List capture devices",
		Long: `List the network devices the capture library can open, with their
descriptions and addresses.

Examples:
  wiretap devices`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			devs, err := source.Devices()
			if err != nil {
				return err
			}
			return printDevices(cmd.OutOrStdout(), devs)
		},
	}
}

func printDevices(w io.Writer, devs []source.Device) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tDESCRIPTION\tADDRESSES")
	for _, d := range devs {
		desc := d.Description
		if desc == "" {
			desc = "-"
		}
		addrs := strings.Join(d.Addresses, ",")
		if addrs == "" {
			addrs = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", d.Name, desc, addrs)
	}
	return tw.Flush()
}
