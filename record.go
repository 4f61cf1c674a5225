package statusfeed

import (
	"context"
	"errors"

	"github.com/jpalmerr/statusfeed/internal/persist"
	"github.com/jpalmerr/statusfeed/internal/store"
)

// MaxMessageLength is the largest accepted message, in bytes.
const MaxMessageLength = store.MaxMessageLength

// ErrMessageTooLong is returned by [Service.SetStatus] when the message
// exceeds [MaxMessageLength]. Compare with [errors.Is].
var ErrMessageTooLong = store.ErrMessageTooLong

// ErrSnapshotConflict is returned by [Service.Start] when the store was
// already mutated before Start and the loaded snapshot is not empty.
var ErrSnapshotConflict = errors.New("store already holds statuses set before Start; refusing to overwrite them with the loaded snapshot")

// Record is one status message and the logical time it was posted.
type Record = store.Record

// FeedEntry is a [Record] paired with the identity that posted it.
type FeedEntry = store.FeedEntry

// Event describes one applied mutation. Kind is [EventSet] or [EventDelete].
type Event = store.Event

// EventKind distinguishes set and delete events.
type EventKind = store.EventKind

const (
	EventSet    = store.EventSet
	EventDelete = store.EventDelete
)

// Stats summarises the size of the store.
type Stats = store.Stats

// Snapshot is a point-in-time copy of the current, history and feed indices.
type Snapshot = store.Snapshot

// Snapshotter loads and saves [Snapshot] values. Use [OpenSnapshotter] for
// the built-in file and SQLite backends.
type Snapshotter interface {
	Load(ctx context.Context) (Snapshot, error)
	Save(ctx context.Context, snap Snapshot) error
	Close() error
}

// OpenSnapshotter opens a built-in backend. driver is "file" (path ending in
// ".cbor" selects CBOR, anything else JSON), "sqlite", or "none". The "none"
// driver returns a nil Snapshotter.
func OpenSnapshotter(driver, path string) (Snapshotter, error) {
	sn, err := persist.Open(driver, path)
	if err != nil || sn == nil {
		return nil, err
	}
	return sn, nil
}
