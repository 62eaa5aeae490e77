package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"firestige.xyz/wiretap/internal/config"
)

func newConfigCmd(configFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Long: `Print the configuration a capture would run with, after merging defaults,
the config file, WIRETAP_* environment variables and flags, then validate it.

Examples:
  wiretap config -c wiretap.yaml
  WIRETAP_CAPTURE_SNAP_LEN=128 wiretap config -i eth0`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Resolve(*configFile, cmd.Flags())
			if err != nil {
				return err
			}

			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(cfg); err != nil {
				return fmt.Errorf("encode config: %w", err)
			}
			if err := enc.Close(); err != nil {
				return fmt.Errorf("encode config: %w", err)
			}

			return cfg.Validate()
		},
	}
}
