package store

import "errors"

const (
	// MaxMessageLength is the longest accepted message, in bytes.
	MaxMessageLength = 280

	// DefaultHistoryCap is the number of records retained per identity.
	DefaultHistoryCap = 10

	// DefaultFeedCap is the number of entries retained in the global feed.
	DefaultFeedCap = 50

	// DefaultSearchCacheSize is the number of distinct keywords whose
	// search results are cached.
	DefaultSearchCacheSize = 256
)

// ErrMessageTooLong is returned when a message exceeds [MaxMessageLength].
// No index is touched when it is returned.
var ErrMessageTooLong = errors.New("message must be 280 bytes or less")

// Record is one published status. It is never modified after creation.
type Record struct {
	// Message is the status text.
	Message string `json:"message"`

	// Timestamp is the caller-supplied logical clock value at publication.
	Timestamp uint64 `json:"timestamp"`
}

// FeedEntry pairs a [Record] with the identity that published it.
type FeedEntry struct {
	Identity string `json:"identity"`
	Record   Record `json:"record"`
}

// EventKind identifies the mutation that produced an [Event].
type EventKind string

const (
	// EventSet is published after a status is set.
	EventSet EventKind = "set"

	// EventDelete is published after a current status is withdrawn.
	EventDelete EventKind = "delete"
)

// Event describes one applied mutation.
//
// For [EventSet], Record is the new record. For [EventDelete], Record is the
// record that was withdrawn from current.
type Event struct {
	Kind       EventKind `json:"kind"`
	Identity   string    `json:"identity"`
	Record     Record    `json:"record"`
	Generation uint64    `json:"generation"`
}

// Stats summarises the size of each index.
type Stats struct {
	// Identities is the number of identities with a current status.
	Identities int `json:"identities"`

	// HistoryIdentities is the number of identities with at least one
	// record in history.
	HistoryIdentities int `json:"history_identities"`

	// FeedLength is the number of entries in the global feed.
	FeedLength int `json:"feed_length"`

	// Generation counts state-changing mutations and restores since the
	// store was created.
	Generation uint64 `json:"generation"`
}

// Store defines the interface for the bounded status store.
//
// Store implementations must be safe for concurrent access. All three
// indices change together: a reader sees either the state before a mutation
// or the state after it.
type Store interface {
	// SetStatus records message as caller's current status at logical time now.
	// It returns an error wrapping ErrMessageTooLong, without mutating
	// anything, if the message is too long.
	SetStatus(caller, message string, now uint64) (Record, error)

	// DeleteStatus withdraws caller's current status. History and feed are
	// untouched. It reports whether a current status was present.
	DeleteStatus(caller string) bool

	// GetStatus returns the current status for id, if any.
	GetStatus(id string) (Record, bool)

	// GetHistory returns a copy of id's history, oldest first.
	// The result is empty, never nil, for unknown identities.
	GetHistory(id string) []Record

	// GetFeed returns a copy of the global feed, oldest first.
	GetFeed() []FeedEntry

	// Search returns the feed entries whose message contains keyword,
	// in feed order. An empty keyword matches every entry.
	Search(keyword string) []FeedEntry

	// Stats returns the current index sizes.
	Stats() Stats

	// Generation returns the number of state-changing mutations applied.
	Generation() uint64

	// Snapshot copies all three indices out as one unit.
	Snapshot() Snapshot

	// Restore replaces all three indices with the snapshot contents.
	Restore(snap Snapshot) error

	// Subscribe returns a channel that receives mutation events.
	// The returned channel has a buffer; slow consumers may miss events.
	// Caller must call Unsubscribe when done to prevent resource leaks.
	Subscribe() <-chan Event

	// Unsubscribe removes a subscription and closes the channel.
	// Safe to call with a channel that was already unsubscribed.
	Unsubscribe(ch <-chan Event)
}
