// Package persist loads and stores status store snapshots.
//
// A snapshot holds the current, history and feed indices as one unit, so a
// backend either has the whole state of one moment or the previous one.
// Two backends are provided:
//
//   - [FileSnapshotter]: one file written via temp file and rename, encoded
//     as JSON or CBOR depending on the file extension
//   - [SQLiteSnapshotter]: three tables rewritten in a single transaction
//
// [Flusher] saves the store periodically, skipping saves when nothing has
// changed since the last one.
package persist
