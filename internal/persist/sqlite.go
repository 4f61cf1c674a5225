package persist

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jpalmerr/statusfeed/internal/store"
	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// SQLiteSnapshotter keeps the snapshot in three tables, one per index.
//
// Save rewrites all three tables in one transaction. Timestamps are stored
// as the int64 bit pattern of the uint64 value so the full range round-trips.
type SQLiteSnapshotter struct {
	db     *sql.DB
	dbPath string
}

// OpenSQLite opens (or creates) the database at path and applies the schema.
func OpenSQLite(path string) (*SQLiteSnapshotter, error) {
	if path == "" {
		return nil, errors.New("sqlite snapshot path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path+
		"?_pragma=journal_mode(WAL)"+
		"&_pragma=busy_timeout(5000)"+
		"&_pragma=synchronous(NORMAL)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// SQLite handles concurrent writes poorly
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(time.Hour)

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return &SQLiteSnapshotter{db: db, dbPath: path}, nil
}

// DBPath returns the database file location.
func (s *SQLiteSnapshotter) DBPath() string {
	return s.dbPath
}

// Close closes the database.
func (s *SQLiteSnapshotter) Close() error {
	return s.db.Close()
}

// Load reads all three tables. An empty database yields an empty snapshot.
func (s *SQLiteSnapshotter) Load(ctx context.Context) (store.Snapshot, error) {
	snap := store.Snapshot{
		Current: make(map[string]store.Record),
		History: make(map[string][]store.Record),
		Feed:    []store.FeedEntry{},
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return store.Snapshot{}, fmt.Errorf("begin load: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx,
		`SELECT identity, message, timestamp FROM current_status`)
	if err != nil {
		return store.Snapshot{}, fmt.Errorf("query current: %w", err)
	}
	for rows.Next() {
		var id string
		var r store.Record
		var ts int64
		if err := rows.Scan(&id, &r.Message, &ts); err != nil {
			rows.Close()
			return store.Snapshot{}, fmt.Errorf("scan current: %w", err)
		}
		r.Timestamp = uint64(ts)
		snap.Current[id] = r
	}
	if err := closeRows(rows); err != nil {
		return store.Snapshot{}, fmt.Errorf("read current: %w", err)
	}

	rows, err = tx.QueryContext(ctx,
		`SELECT identity, message, timestamp FROM status_history
		 ORDER BY identity, position`)
	if err != nil {
		return store.Snapshot{}, fmt.Errorf("query history: %w", err)
	}
	for rows.Next() {
		var id string
		var r store.Record
		var ts int64
		if err := rows.Scan(&id, &r.Message, &ts); err != nil {
			rows.Close()
			return store.Snapshot{}, fmt.Errorf("scan history: %w", err)
		}
		r.Timestamp = uint64(ts)
		snap.History[id] = append(snap.History[id], r)
	}
	if err := closeRows(rows); err != nil {
		return store.Snapshot{}, fmt.Errorf("read history: %w", err)
	}

	rows, err = tx.QueryContext(ctx,
		`SELECT identity, message, timestamp FROM feed ORDER BY position`)
	if err != nil {
		return store.Snapshot{}, fmt.Errorf("query feed: %w", err)
	}
	for rows.Next() {
		var e store.FeedEntry
		var ts int64
		if err := rows.Scan(&e.Identity, &e.Record.Message, &ts); err != nil {
			rows.Close()
			return store.Snapshot{}, fmt.Errorf("scan feed: %w", err)
		}
		e.Record.Timestamp = uint64(ts)
		snap.Feed = append(snap.Feed, e)
	}
	if err := closeRows(rows); err != nil {
		return store.Snapshot{}, fmt.Errorf("read feed: %w", err)
	}

	return snap, nil
}

// Save replaces the contents of all three tables with snap.
func (s *SQLiteSnapshotter) Save(ctx context.Context, snap store.Snapshot) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"current_status", "status_history", "feed"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	for id, r := range snap.Current {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO current_status (identity, message, timestamp) VALUES (?, ?, ?)`,
			id, r.Message, int64(r.Timestamp)); err != nil {
			return fmt.Errorf("insert current %s: %w", id, err)
		}
	}

	for id, records := range snap.History {
		for pos, r := range records {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO status_history (identity, position, message, timestamp) VALUES (?, ?, ?, ?)`,
				id, pos, r.Message, int64(r.Timestamp)); err != nil {
				return fmt.Errorf("insert history %s[%d]: %w", id, pos, err)
			}
		}
	}

	for pos, e := range snap.Feed {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO feed (position, identity, message, timestamp) VALUES (?, ?, ?, ?)`,
			pos, e.Identity, e.Record.Message, int64(e.Record.Timestamp)); err != nil {
			return fmt.Errorf("insert feed[%d]: %w", pos, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit save: %w", err)
	}
	return nil
}

// closeRows closes rows and reports any iteration error.
func closeRows(rows *sql.Rows) error {
	if err := rows.Err(); err != nil {
		rows.Close()
		return err
	}
	return rows.Close()
}
