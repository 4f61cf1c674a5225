package config

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/jpalmerr/statusfeed"
)

// BuildOptions converts parsed configuration into SDK options.
//
// sn is the snapshotter opened with [OpenSnapshotter]; nil disables
// persistence. logger may be nil to keep the SDK default.
func BuildOptions(cfg *Config, sn statusfeed.Snapshotter, logger *slog.Logger) []statusfeed.Option {
	opts := []statusfeed.Option{
		statusfeed.WithPort(cfg.Port),
		statusfeed.WithHistoryCap(cfg.HistoryCap),
		statusfeed.WithFeedCap(cfg.FeedCap),
		statusfeed.WithSearchCacheSize(*cfg.SearchCacheSize),
		statusfeed.WithFlushInterval(cfg.Persistence.FlushInterval.Duration()),
	}
	if cfg.Title != "" {
		opts = append(opts, statusfeed.WithTitle(cfg.Title))
	}
	if cfg.IdentityHeader != "" {
		opts = append(opts, statusfeed.WithIdentityHeader(cfg.IdentityHeader))
	}
	if sn != nil {
		opts = append(opts, statusfeed.WithSnapshotter(sn))
	}
	if logger != nil {
		opts = append(opts, statusfeed.WithLogger(logger))
	}
	return opts
}

// OpenSnapshotter opens the persistence backend named by cfg.
// It returns nil when persistence is disabled.
func OpenSnapshotter(cfg *Config) (statusfeed.Snapshotter, error) {
	sn, err := statusfeed.OpenSnapshotter(cfg.Persistence.Driver, cfg.Persistence.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s persistence: %w", cfg.Persistence.Driver, err)
	}
	return sn, nil
}

// NewLogger builds the logger described by cfg.Log writing to w.
func NewLogger(cfg *Config, w io.Writer) *slog.Logger {
	level, err := cfg.Log.SlogLevel()
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Log.Format == "text" {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}
