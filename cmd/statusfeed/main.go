// Package main is the entry point for the statusfeed CLI.
//
// StatusFeed can be run either as a library (SDK) or as a standalone binary
// with YAML configuration. This CLI provides the standalone binary approach.
//
// Usage:
//
//	statusfeed serve -c config.yaml    # Start the API and dashboard
//	statusfeed validate -c config.yaml # Validate configuration
//	statusfeed inspect -c config.yaml  # Print the persisted snapshot
//	statusfeed version                 # Show version info
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information, set at build time via ldflags.
// Example: go build -ldflags "-X main.version=1.0.0"
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// rootCmd only displays help; functionality lives in subcommands.
var rootCmd = &cobra.Command{
	Use:   "statusfeed",
	Short: "A small status-message service with a live feed",
	Long: `StatusFeed lets each identity post a short status message.

It keeps everyone's current status, the last few messages per identity
and a global feed of recent posts, searchable by keyword, and serves them
through a JSON API and a live web dashboard.

Quick start:
  1. Create a config file (statusfeed.yaml)
  2. Run: statusfeed serve -c statusfeed.yaml
  3. Open http://localhost:8080 in your browser

Example config:
  port: 8080
  persistence:
    driver: file
    path: ./statusfeed.cbor`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		// cobra already printed the error
		os.Exit(1)
	}
}

func main() {
	Execute()
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Print the version, commit hash, and build date of this statusfeed binary.`,
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		_, _ = fmt.Fprintf(out, "statusfeed %s\n", version)
		_, _ = fmt.Fprintf(out, "  commit: %s\n", commit)
		_, _ = fmt.Fprintf(out, "  built:  %s\n", date)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
