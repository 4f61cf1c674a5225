package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jpalmerr/statusfeed/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a config file",
	Long: `Validate a StatusFeed configuration file without starting the server.

This command parses the YAML, expands environment variables, and validates
all fields. It's useful for CI/CD pipelines or pre-deployment checks.

Exit codes:
  0 - Config is valid
  1 - Config is invalid (error details printed to stderr)

Example:
  statusfeed validate -c config.yaml`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().StringP("config", "c", "", "path to config file (required)")
	_ = validateCmd.MarkFlagRequired("config")
}

func runValidate(cmd *cobra.Command, args []string) error {
	configFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	persistence := cfg.Persistence.Driver
	if cfg.Persistence.Driver != config.DriverNone {
		persistence = fmt.Sprintf("%s (%s, every %s)",
			cfg.Persistence.Driver, cfg.Persistence.Path, cfg.Persistence.FlushInterval.Duration())
	}

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "Config is valid!\n")
	_, _ = fmt.Fprintf(out, "  Port:         %d\n", cfg.Port)
	_, _ = fmt.Fprintf(out, "  History cap:  %d\n", cfg.HistoryCap)
	_, _ = fmt.Fprintf(out, "  Feed cap:     %d\n", cfg.FeedCap)
	_, _ = fmt.Fprintf(out, "  Search cache: %d\n", *cfg.SearchCacheSize)
	_, _ = fmt.Fprintf(out, "  Persistence:  %s\n", persistence)

	return nil
}
