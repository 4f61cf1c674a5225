package statusfeed

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/jpalmerr/statusfeed/dashboard"
	"github.com/jpalmerr/statusfeed/internal/persist"
	"github.com/jpalmerr/statusfeed/internal/server"
	"github.com/jpalmerr/statusfeed/internal/store"
)

const (
	defaultPort          = 8080
	defaultFlushInterval = 5 * time.Second
)

// Service is a status feed: the in-memory store, its HTTP API and
// dashboard, and optional snapshot persistence.
//
// Create one with [New] and run it with [Service.Start]. The query and
// mutation methods may be called directly at any time, with or without the
// HTTP server running. With a [Snapshotter] configured, statuses set before
// the first Start are kept and persisted when the stored snapshot is empty.
// If both hold data, Start returns [ErrSnapshotConflict].
type Service struct {
	store          *store.MemoryStore
	title          string
	port           int
	identityHeader string
	clock          func() uint64
	snapshotter    Snapshotter
	flushInterval  time.Duration
	logger         *slog.Logger
	eventCallbacks []func(Event)

	// flusher is created by the first Start that loads the snapshot and
	// reused by later runs so its saved generation carries over.
	flusher *persist.Flusher
}

// New creates a [Service] with the given options.
//
// Defaults:
//   - Port: 8080
//   - History cap: 10 records per identity
//   - Feed cap: 50 entries
//   - Search cache: 256 entries
//   - Identity header: X-Identity
//   - Flush interval: 5 seconds
//
// Example:
//
//	svc, err := statusfeed.New(
//	    statusfeed.WithPort(9090),
//	    statusfeed.WithFeedCap(100),
//	)
func New(opts ...Option) (*Service, error) {
	cfg := &sfConfig{
		port:            defaultPort,
		historyCap:      store.DefaultHistoryCap,
		feedCap:         store.DefaultFeedCap,
		searchCacheSize: store.DefaultSearchCacheSize,
		identityHeader:  server.DefaultIdentityHeader,
		clock:           server.WallClock,
		flushInterval:   defaultFlushInterval,
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	logger := cfg.logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Service{
		store:          store.NewMemoryStore(cfg.historyCap, cfg.feedCap, cfg.searchCacheSize),
		title:          cfg.title,
		port:           cfg.port,
		identityHeader: cfg.identityHeader,
		clock:          cfg.clock,
		snapshotter:    cfg.snapshotter,
		flushInterval:  cfg.flushInterval,
		logger:         logger,
		eventCallbacks: cfg.eventCallbacks,
	}, nil
}

// Start loads the persisted snapshot (if any), serves HTTP and runs the
// periodic flusher until ctx is cancelled.
//
// Start blocks. It returns nil on graceful shutdown, after a final snapshot
// save. It returns an error if the snapshot cannot be loaded, if it would
// overwrite statuses set before Start ([ErrSnapshotConflict]), or if the HTTP
// server cannot bind its port.
//
//	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
//	defer stop()
//	svc.Start(ctx)
func (s *Service) Start(ctx context.Context) error {
	if ctx.Err() != nil {
		return nil
	}

	if s.snapshotter != nil && s.flusher == nil {
		flusher, err := s.loadSnapshot(ctx)
		if err != nil {
			return err
		}
		s.flusher = flusher
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	// subscribe before serving so the first request's event is not missed
	if len(s.eventCallbacks) > 0 {
		events := s.store.Subscribe()
		g.Go(func() error {
			defer s.store.Unsubscribe(events)
			s.dispatchEvents(gctx, events)
			return nil
		})
	}

	httpServer := server.NewServer(s.store, s.serverConfig(), s.logger)
	if err := httpServer.Start(gctx); err != nil {
		cancel()
		_ = g.Wait()
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}
	s.logger.Info("statusfeed started", "url", fmt.Sprintf("http://localhost:%d", s.port))

	if s.flusher != nil {
		g.Go(func() error {
			return s.flusher.Run(gctx)
		})
	}

	<-gctx.Done()
	err := g.Wait()
	s.logger.Info("statusfeed stopped")
	return err
}

// loadSnapshot applies the persisted snapshot and returns the flusher that
// keeps it up to date. An empty snapshot leaves the store alone; statuses
// already in the store are then marked for the first flush.
func (s *Service) loadSnapshot(ctx context.Context) (*persist.Flusher, error) {
	snap, err := s.snapshotter.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot: %w", err)
	}

	unsaved := false
	switch {
	case snap.Empty():
		unsaved = s.store.Generation() != 0
		s.logger.Debug("snapshot empty, nothing to restore")
	case s.store.Generation() != 0:
		return nil, ErrSnapshotConflict
	default:
		if err := s.store.Restore(snap); err != nil {
			return nil, fmt.Errorf("failed to restore snapshot: %w", err)
		}
		stats := s.store.Stats()
		s.logger.Info("snapshot restored",
			"identities", stats.Identities,
			"feed_length", stats.FeedLength,
		)
	}

	flusher := persist.NewFlusher(s.store, s.snapshotter, s.flushInterval, s.logger)
	if unsaved {
		flusher.MarkDirty()
	}
	return flusher, nil
}

// Handler returns an [http.Handler] serving the API and dashboard over this
// service's store, for mounting inside another server. It does not run the
// flusher; use [Service.Start] for that.
func (s *Service) Handler() http.Handler {
	return server.NewServer(s.store, s.serverConfig(), s.logger).Handler()
}

func (s *Service) serverConfig() server.Config {
	return server.Config{
		Port:           s.port,
		Title:          s.title,
		IdentityHeader: s.identityHeader,
		Clock:          s.clock,
		Assets:         dashboard.Assets,
	}
}

// dispatchEvents feeds events to the registered callbacks until ctx is done.
func (s *Service) dispatchEvents(ctx context.Context, events <-chan Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			for _, cb := range s.eventCallbacks {
				invokeCallbackSafe(cb, ev, s.logger)
			}
		}
	}
}

// invokeCallbackSafe calls an event callback with panic recovery.
// Panics are logged under a correlation ID but do not propagate.
func invokeCallbackSafe(cb func(Event), ev Event, logger *slog.Logger) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("event callback panicked",
				"correlation_id", uuid.NewString(),
				"panic", r,
				"kind", ev.Kind,
				"identity", ev.Identity,
			)
		}
	}()
	cb(ev)
}

// SetStatus records message as caller's current status at logical time now.
// It returns an error wrapping [ErrMessageTooLong], leaving all state
// unchanged, when the message is longer than [MaxMessageLength] bytes.
func (s *Service) SetStatus(caller, message string, now uint64) (Record, error) {
	return s.store.SetStatus(caller, message, now)
}

// DeleteStatus clears caller's current status, keeping history and feed.
// It reports whether there was a status to clear.
func (s *Service) DeleteStatus(caller string) bool {
	return s.store.DeleteStatus(caller)
}

// GetStatus returns id's current status, if any.
func (s *Service) GetStatus(id string) (Record, bool) {
	return s.store.GetStatus(id)
}

// GetHistory returns up to the history cap of id's records, oldest first.
func (s *Service) GetHistory(id string) []Record {
	return s.store.GetHistory(id)
}

// GetFeed returns the most recent posts from all identities, oldest first.
func (s *Service) GetFeed() []FeedEntry {
	return s.store.GetFeed()
}

// Search returns the feed entries whose message contains keyword
// (case-sensitive), in feed order.
func (s *Service) Search(keyword string) []FeedEntry {
	return s.store.Search(keyword)
}

// Stats returns the current index sizes and mutation generation.
func (s *Service) Stats() Stats {
	return s.store.Stats()
}

// Port returns the configured HTTP port.
func (s *Service) Port() int {
	return s.port
}
