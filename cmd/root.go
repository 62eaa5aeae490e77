// Package cmd implements CLI commands using cobra framework.
package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"firestige.xyz/wiretap/internal/core"
	"firestige.xyz/wiretap/internal/source"
)

// Exit codes returned by main.
const (
	ExitOK          = 0
	ExitFailure     = 1
	ExitConfigError = 2
)

// newRootCmd builds the command tree. A fresh tree per Execute keeps flag
// state from leaking between runs.
func newRootCmd() *cobra.Command {
	var configFile string

	rootCmd := &cobra.Command{
		Use:   "wiretap",
		Short: "Wiretap - packet capture summarizer",
		Long: `Wiretap captures frames from a live interface or a pcap/pcapng file,
decodes Ethernet, IPv4/IPv6 and TCP/UDP, and prints one summary line per frame:

  <length> <unix-seconds> <src-ip> <dst-ip> <TCP|UDP> <src-port> -> <dst-port>

Frames that cannot be decoded down to a transport header are counted but not
printed. Every frame read can also be recorded to a pcap file.

Examples:
  wiretap -i eth0                        # Capture on eth0 with libpcap
  wiretap -i eth0 --engine afpacket      # Capture on eth0 with AF_PACKET
  wiretap -f trace.pcapng -o copy.pcap   # Replay a file and record it
  wiretap -c wiretap.yaml                # Take everything from a config file`,
		Version:       "0.1.0",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCapture(cmd, configFile)
		},
	}

	// Global flags
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().StringP("interface", "i", "", "live capture interface")
	rootCmd.PersistentFlags().StringP("file", "f", "", "pcap or pcapng file to read")
	rootCmd.PersistentFlags().StringP("output", "o", "", "record every frame to this pcap file")
	rootCmd.PersistentFlags().String("engine", "pcap", engineUsage(source.Engines()))
	rootCmd.PersistentFlags().Int("snaplen", 65536, "bytes captured per frame")
	rootCmd.PersistentFlags().Bool("promisc", true, "put the interface in promiscuous mode")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (trace|debug|info|warn|error)")

	// Add subcommands
	rootCmd.AddCommand(newDevicesCmd())
	rootCmd.AddCommand(newConfigCmd(&configFile))

	return rootCmd
}

func engineUsage(engines []string) string {
	if len(engines) == 0 {
		return "live capture engine (none available in this build)"
	}
	return fmt.Sprintf("live capture engine (%s)", strings.Join(engines, "|"))
}

// Execute runs the command line. It is called by main.main().
func Execute() error {
	return newRootCmd().Execute()
}

// ExitCode maps an Execute error to a process exit code.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, core.ErrConfigInvalid):
		return ExitConfigError
	case errors.Is(err, errOpenInput) && (errors.Is(err, core.ErrDeviceNotFound) ||
		errors.Is(err, core.ErrFileNotFound) ||
		errors.Is(err, core.ErrMalformedFile)):
		// A missing device or an unreadable file is a usage error, not a capture failure.
		return ExitConfigError
	default:
		return ExitFailure
	}
}
