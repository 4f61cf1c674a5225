package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/jpalmerr/statusfeed"
	"github.com/jpalmerr/statusfeed/config"
)

const (
	shutdownTimeout = 10 * time.Second
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the API and dashboard server",
	Long: `Start the StatusFeed server.

The server will:
  - Load configuration from the specified YAML file
  - Restore the last snapshot if persistence is configured
  - Serve the JSON API under /api and the dashboard at /
  - Save the snapshot periodically and once more on shutdown

The server runs until interrupted (Ctrl+C) or receives SIGTERM.

Example:
  statusfeed serve -c config.yaml
  statusfeed serve --config /etc/statusfeed/config.yaml`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringP("config", "c", "", "path to config file (required)")
	_ = serveCmd.MarkFlagRequired("config")
}

func runServe(cmd *cobra.Command, args []string) error {
	configFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := config.NewLogger(cfg, os.Stderr)
	gin.SetMode(gin.ReleaseMode)

	sn, err := config.OpenSnapshotter(cfg)
	if err != nil {
		return err
	}
	if sn != nil {
		defer func() {
			if err := sn.Close(); err != nil {
				logger.Error("failed to close persistence", "error", err)
			}
		}()
	}

	logger.Info("config loaded",
		"port", cfg.Port,
		"history_cap", cfg.HistoryCap,
		"feed_cap", cfg.FeedCap,
		"persistence", cfg.Persistence.Driver,
	)

	svc, err := statusfeed.New(config.BuildOptions(cfg, sn, logger)...)
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errChan := make(chan error, 1)
	go func() {
		errChan <- svc.Start(ctx)
	}()

	select {
	case err := <-errChan:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		logger.Info("shutdown complete")
		return nil

	case <-ctx.Done():
		select {
		case err := <-errChan:
			if err != nil {
				return fmt.Errorf("server error: %w", err)
			}
			logger.Info("shutdown complete")
			return nil
		case <-time.After(shutdownTimeout):
			logger.Warn("shutdown timed out",
				"timeout", shutdownTimeout.String(),
				"action", "forcing exit",
			)
			return nil
		}
	}
}
