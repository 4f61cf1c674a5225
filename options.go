package statusfeed

import (
	"errors"
	"log/slog"
	"strings"
	"time"
)

// sfConfig holds mutable state during Service construction.
type sfConfig struct {
	title           string
	port            int
	historyCap      int
	feedCap         int
	searchCacheSize int
	identityHeader  string
	clock           func() uint64
	snapshotter     Snapshotter
	flushInterval   time.Duration
	logger          *slog.Logger
	eventCallbacks  []func(Event)
}

// Option is a function that configures a [Service] during construction.
//
// Options return an error if validation fails, which [New] passes back to
// the caller unchanged.
type Option func(*sfConfig) error

// WithPort sets the HTTP port for the API and dashboard.
// Defaults to 8080.
//
// Returns an error if the port is outside the valid range (1-65535).
func WithPort(port int) Option {
	return func(cfg *sfConfig) error {
		if port < 1 || port > 65535 {
			return errors.New("port must be between 1 and 65535")
		}
		cfg.port = port
		return nil
	}
}

// WithLogger sets a custom [slog.Logger] for the service.
// If not specified, [slog.Default] is used.
//
// Returns an error if the logger is nil.
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *sfConfig) error {
		if logger == nil {
			return errors.New("logger cannot be nil")
		}
		cfg.logger = logger
		return nil
	}
}

// WithTitle sets the dashboard title displayed in the browser tab and header.
// Defaults to "StatusFeed".
func WithTitle(title string) Option {
	return func(cfg *sfConfig) error {
		cfg.title = title
		return nil
	}
}

// WithHistoryCap sets how many records each identity's history keeps.
// Defaults to 10.
func WithHistoryCap(n int) Option {
	return func(cfg *sfConfig) error {
		if n <= 0 {
			return errors.New("history cap must be positive")
		}
		cfg.historyCap = n
		return nil
	}
}

// WithFeedCap sets how many entries the global feed keeps.
// Defaults to 50.
func WithFeedCap(n int) Option {
	return func(cfg *sfConfig) error {
		if n <= 0 {
			return errors.New("feed cap must be positive")
		}
		cfg.feedCap = n
		return nil
	}
}

// WithSearchCacheSize sets the number of cached search results.
// Zero disables the cache. Defaults to 256.
func WithSearchCacheSize(n int) Option {
	return func(cfg *sfConfig) error {
		if n < 0 {
			return errors.New("search cache size cannot be negative")
		}
		cfg.searchCacheSize = n
		return nil
	}
}

// WithIdentityHeader names the request header that carries the caller
// identity on mutating requests. Defaults to "X-Identity".
//
// The header is trusted as-is; put an authenticating proxy in front of the
// service if callers must not choose their own identity.
func WithIdentityHeader(name string) Option {
	return func(cfg *sfConfig) error {
		name = strings.TrimSpace(name)
		if name == "" {
			return errors.New("identity header cannot be empty")
		}
		cfg.identityHeader = name
		return nil
	}
}

// WithClock replaces the source of logical timestamps for statuses posted
// over HTTP. Defaults to wall-clock Unix nanoseconds.
func WithClock(clock func() uint64) Option {
	return func(cfg *sfConfig) error {
		if clock == nil {
			return errors.New("clock cannot be nil")
		}
		cfg.clock = clock
		return nil
	}
}

// WithSnapshotter enables persistence. The snapshot is loaded when
// [Service.Start] runs, saved periodically while it runs, and saved once
// more on shutdown. The caller keeps ownership and closes it.
//
// A nil snapshotter disables persistence.
func WithSnapshotter(sn Snapshotter) Option {
	return func(cfg *sfConfig) error {
		cfg.snapshotter = sn
		return nil
	}
}

// WithFlushInterval sets how often a changed store is saved.
// Defaults to 5 seconds. Has no effect without [WithSnapshotter].
func WithFlushInterval(d time.Duration) Option {
	return func(cfg *sfConfig) error {
		if d <= 0 {
			return errors.New("flush interval must be positive")
		}
		cfg.flushInterval = d
		return nil
	}
}

// WithEventCallback registers a function called for every applied mutation
// while [Service.Start] runs.
//
// Callbacks run in registration order on a single goroutine and must not
// block; events that arrive while callbacks lag far behind are dropped.
// Panics are recovered and logged.
//
// Nil callbacks are silently ignored.
func WithEventCallback(cb func(Event)) Option {
	return func(cfg *sfConfig) error {
		if cb == nil {
			return nil
		}
		cfg.eventCallbacks = append(cfg.eventCallbacks, cb)
		return nil
	}
}
