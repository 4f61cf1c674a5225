package store

import (
	"fmt"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// MemoryStore is an in-memory implementation of [Store].
//
// One RWMutex guards current, history, feed and the generation counter
// together, so every mutation is applied to all indices atomically. Queries
// return copies; modifying a returned slice does not affect the store.
//
// Subscribers receive events via buffered channels (buffer size 100). Events
// are sent non-blocking after the state lock is released; if a subscriber's
// buffer is full, the event is dropped for that subscriber.
type MemoryStore struct {
	mu         sync.RWMutex
	current    map[string]Record
	history    map[string]*window[Record]
	feed       *window[FeedEntry]
	generation uint64

	historyCap int
	feedCap    int

	// searchCache holds results tagged with the generation they were
	// computed at. nil when caching is disabled.
	searchCache *lru.Cache[string, cachedSearch]

	subscribers map[chan Event]struct{}
	subMu       sync.RWMutex
}

type cachedSearch struct {
	generation uint64
	entries    []FeedEntry
}

// NewMemoryStore creates an empty [MemoryStore].
//
// Non-positive caps fall back to [DefaultHistoryCap] and [DefaultFeedCap].
// A searchCacheSize of zero or less disables the search cache.
func NewMemoryStore(historyCap, feedCap, searchCacheSize int) *MemoryStore {
	if historyCap <= 0 {
		historyCap = DefaultHistoryCap
	}
	if feedCap <= 0 {
		feedCap = DefaultFeedCap
	}

	m := &MemoryStore{
		current:     make(map[string]Record),
		history:     make(map[string]*window[Record]),
		feed:        newWindow[FeedEntry](feedCap),
		historyCap:  historyCap,
		feedCap:     feedCap,
		subscribers: make(map[chan Event]struct{}),
	}

	if searchCacheSize > 0 {
		cache, err := lru.New[string, cachedSearch](searchCacheSize)
		if err != nil {
			panic(fmt.Sprintf("failed to create search cache: %v", err))
		}
		m.searchCache = cache
	}

	return m
}

// HistoryCap returns the per-identity history limit.
func (m *MemoryStore) HistoryCap() int {
	return m.historyCap
}

// FeedCap returns the global feed limit.
func (m *MemoryStore) FeedCap() int {
	return m.feedCap
}

// SetStatus validates message and then updates current, history and feed
// under one write lock.
func (m *MemoryStore) SetStatus(caller, message string, now uint64) (Record, error) {
	if len(message) > MaxMessageLength {
		return Record{}, fmt.Errorf("%w: got %d bytes", ErrMessageTooLong, len(message))
	}

	record := Record{Message: message, Timestamp: now}

	m.mu.Lock()
	m.current[caller] = record

	h, ok := m.history[caller]
	if !ok {
		h = newWindow[Record](m.historyCap)
		m.history[caller] = h
	}
	h.push(record)
	m.feed.push(FeedEntry{Identity: caller, Record: record})

	m.generation++
	ev := Event{Kind: EventSet, Identity: caller, Record: record, Generation: m.generation}
	m.mu.Unlock()

	m.notifySubscribers(ev)
	return record, nil
}

// DeleteStatus removes caller from current. Deleting an absent status is a
// no-op and publishes nothing.
func (m *MemoryStore) DeleteStatus(caller string) bool {
	m.mu.Lock()
	record, ok := m.current[caller]
	if !ok {
		m.mu.Unlock()
		return false
	}
	delete(m.current, caller)
	m.generation++
	ev := Event{Kind: EventDelete, Identity: caller, Record: record, Generation: m.generation}
	m.mu.Unlock()

	m.notifySubscribers(ev)
	return true
}

// GetStatus returns the current status for id.
func (m *MemoryStore) GetStatus(id string) (Record, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	record, ok := m.current[id]
	return record, ok
}

// GetHistory returns a copy of id's history, oldest first.
func (m *MemoryStore) GetHistory(id string) []Record {
	m.mu.RLock()
	defer m.mu.RUnlock()

	h, ok := m.history[id]
	if !ok {
		return []Record{}
	}
	return h.slice()
}

// GetFeed returns a copy of the global feed, oldest first.
func (m *MemoryStore) GetFeed() []FeedEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.feed.slice()
}

// Search scans the feed for entries whose message contains keyword.
//
// Matching is a case-sensitive byte substring test. Results are cached per
// keyword until the next mutation. A keyword longer than MaxMessageLength
// cannot match and is never cached.
func (m *MemoryStore) Search(keyword string) []FeedEntry {
	if len(keyword) > MaxMessageLength {
		return []FeedEntry{}
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.searchCache != nil {
		if hit, ok := m.searchCache.Get(keyword); ok && hit.generation == m.generation {
			return append([]FeedEntry{}, hit.entries...)
		}
	}

	matches := make([]FeedEntry, 0)
	for _, entry := range m.feed.slice() {
		if strings.Contains(entry.Record.Message, keyword) {
			matches = append(matches, entry)
		}
	}

	if m.searchCache != nil {
		m.searchCache.Add(keyword, cachedSearch{generation: m.generation, entries: matches})
	}
	return append([]FeedEntry{}, matches...)
}

// Stats returns the current index sizes.
func (m *MemoryStore) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return Stats{
		Identities:        len(m.current),
		HistoryIdentities: len(m.history),
		FeedLength:        m.feed.len(),
		Generation:        m.generation,
	}
}

// Generation returns the number of state-changing mutations applied.
func (m *MemoryStore) Generation() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.generation
}

// Subscribe creates a new subscription and returns a channel for receiving events.
//
// The returned channel has a buffer of 100 events. If the buffer fills
// (slow consumer), new events are dropped for this subscriber.
//
// Caller must call [MemoryStore.Unsubscribe] when done to prevent resource leaks.
func (m *MemoryStore) Subscribe() <-chan Event {
	ch := make(chan Event, 100)

	m.subMu.Lock()
	m.subscribers[ch] = struct{}{}
	m.subMu.Unlock()

	return ch
}

// Unsubscribe removes a subscription and closes its channel.
//
// Safe to call multiple times or with an unknown channel.
func (m *MemoryStore) Unsubscribe(ch <-chan Event) {
	m.subMu.Lock()
	defer m.subMu.Unlock()

	for subCh := range m.subscribers {
		if subCh == ch {
			delete(m.subscribers, subCh)
			close(subCh)
			break
		}
	}
}

// notifySubscribers sends ev to all active subscribers without blocking.
func (m *MemoryStore) notifySubscribers(ev Event) {
	m.subMu.RLock()
	defer m.subMu.RUnlock()

	for ch := range m.subscribers {
		select {
		case ch <- ev:
		default:
			// subscriber is slow, drop the event
		}
	}
}
