// Package store provides the bounded status store and its change feed.
//
// This package is internal to statusfeed and owns the three indices every
// status lives in:
//
//   - current: the latest active [Record] per identity
//   - history: a bounded, oldest-first log of records per identity
//   - feed: a bounded, oldest-first log of [FeedEntry] values across all identities
//
// The main components are:
//
//   - [Store]: Interface defining mutation, query and subscription operations
//   - [MemoryStore]: In-memory implementation of Store guarded by a single lock
//   - [Snapshot]: The three indices copied out as one unit for persistence
//
// Every mutation updates all indices under one write lock, so readers never
// observe a partially applied status. Subscribers receive [Event] values via
// channels with non-blocking sends (slow subscribers miss events rather than
// block writers).
//
// Users of the statusfeed library should not need to interact with this
// package directly. Storage is managed by the statusfeed Service.
package store
