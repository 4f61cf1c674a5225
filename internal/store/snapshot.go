package store

import "fmt"

// Snapshot is a point-in-time copy of the three indices. It is the unit
// that persistence backends load and store.
type Snapshot struct {
	Current map[string]Record   `json:"current"`
	History map[string][]Record `json:"history"`
	Feed    []FeedEntry         `json:"feed"`
}

// Empty reports whether the snapshot holds no data at all.
func (s Snapshot) Empty() bool {
	return len(s.Current) == 0 && len(s.History) == 0 && len(s.Feed) == 0
}

// Snapshot copies all three indices out under one read lock.
func (m *MemoryStore) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snap := Snapshot{
		Current: make(map[string]Record, len(m.current)),
		History: make(map[string][]Record, len(m.history)),
		Feed:    m.feed.slice(),
	}
	for id, record := range m.current {
		snap.Current[id] = record
	}
	for id, h := range m.history {
		snap.History[id] = h.slice()
	}
	return snap
}

// Restore replaces the store contents with snap.
//
// Every message is validated first; on error the store is left unchanged.
// Logs longer than the configured caps are trimmed to their most recent
// elements. Restore does not publish events; it counts as one generation.
func (m *MemoryStore) Restore(snap Snapshot) error {
	for id, record := range snap.Current {
		if len(record.Message) > MaxMessageLength {
			return fmt.Errorf("current[%s]: %w", id, ErrMessageTooLong)
		}
	}
	for id, records := range snap.History {
		for i, record := range records {
			if len(record.Message) > MaxMessageLength {
				return fmt.Errorf("history[%s][%d]: %w", id, i, ErrMessageTooLong)
			}
		}
	}
	for i, entry := range snap.Feed {
		if len(entry.Record.Message) > MaxMessageLength {
			return fmt.Errorf("feed[%d]: %w", i, ErrMessageTooLong)
		}
	}

	current := make(map[string]Record, len(snap.Current))
	for id, record := range snap.Current {
		current[id] = record
	}

	history := make(map[string]*window[Record], len(snap.History))
	for id, records := range snap.History {
		if len(records) == 0 {
			continue
		}
		h := newWindow[Record](m.historyCap)
		for _, record := range records {
			h.push(record)
		}
		history[id] = h
	}

	feed := newWindow[FeedEntry](m.feedCap)
	for _, entry := range snap.Feed {
		feed.push(entry)
	}

	m.mu.Lock()
	m.current = current
	m.history = history
	m.feed = feed
	m.generation++
	if m.searchCache != nil {
		m.searchCache.Purge()
	}
	m.mu.Unlock()

	return nil
}
