// Package statusfeed provides an embeddable status-message service: each
// identity posts a short message as its current status, and the service keeps
// a bounded per-identity history and a bounded global feed that can be
// searched by keyword.
//
// # Quick Start
//
//	svc, _ := statusfeed.New(statusfeed.WithPort(8080))
//
//	// Set up graceful shutdown on SIGINT/SIGTERM
//	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
//	defer stop()
//
//	svc.Start(ctx) // blocks until context is cancelled
//
// The dashboard is then served at http://localhost:8080 and the JSON API
// under /api. Mutating requests identify the caller through the
// X-Identity header (see [WithIdentityHeader]).
//
// # Data model
//
// Three indices are updated together by every [Service.SetStatus]:
//
//   - current status: one [Record] per identity, cleared by [Service.DeleteStatus]
//   - history: the last 10 records per identity ([WithHistoryCap])
//   - feed: the last 50 posts across all identities ([WithFeedCap])
//
// Messages longer than [MaxMessageLength] bytes are rejected with
// [ErrMessageTooLong] and leave every index untouched. Deleting a status
// never removes it from history or the feed.
//
// # Persistence
//
// State is in memory. [WithSnapshotter] together with [OpenSnapshotter]
// saves it to a JSON or CBOR file, or to SQLite, and restores it on start:
//
//	sn, err := statusfeed.OpenSnapshotter("sqlite", "statusfeed.db")
//	if err != nil {
//	    return err
//	}
//	defer sn.Close()
//	svc, err := statusfeed.New(statusfeed.WithSnapshotter(sn))
//
// # Architecture
//
//   - internal/store: the three indices, keyword search and pub/sub for mutations
//   - internal/persist: snapshot backends and the periodic flusher
//   - internal/server: gin REST API, Server-Sent Events and the dashboard page
//   - dashboard: embedded web UI assets
//
// The internal packages are not part of the public API and may change
// without notice.
package statusfeed
