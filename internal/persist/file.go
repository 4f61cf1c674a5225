package persist

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/jpalmerr/statusfeed/internal/store"
)

// FileSnapshotter keeps the snapshot in a single file.
//
// Saves write to "<path>.tmp" and rename it over path, so a crash leaves
// either the old file or the new one, never a partial write.
type FileSnapshotter struct {
	path  string
	codec codec
	mu    sync.Mutex // serialises filesystem access
}

// NewFileSnapshotter creates a file backend at path, creating the parent
// directory if needed. The encoding follows the extension (".cbor" or JSON).
func NewFileSnapshotter(path string) (*FileSnapshotter, error) {
	if path == "" {
		return nil, errors.New("file snapshot path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create snapshot directory: %w", err)
	}
	c, err := codecFor(path)
	if err != nil {
		return nil, err
	}
	return &FileSnapshotter{path: path, codec: c}, nil
}

// Path returns the snapshot file location.
func (f *FileSnapshotter) Path() string {
	return f.path
}

// Load reads the snapshot file. A missing file yields an empty snapshot.
func (f *FileSnapshotter) Load(ctx context.Context) (store.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return store.Snapshot{}, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return store.Snapshot{}, nil
	}
	if err != nil {
		return store.Snapshot{}, fmt.Errorf("read snapshot: %w", err)
	}

	var snap store.Snapshot
	if err := f.codec.Unmarshal(data, &snap); err != nil {
		return store.Snapshot{}, fmt.Errorf("decode snapshot %s: %w", f.path, err)
	}
	return snap, nil
}

// Save encodes snap and atomically replaces the snapshot file.
func (f *FileSnapshotter) Save(ctx context.Context, snap store.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := f.codec.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	tempPath := f.path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := os.Rename(tempPath, f.path); err != nil {
		return fmt.Errorf("replace snapshot: %w", err)
	}
	return nil
}

// Close is a no-op; the file backend holds no open handles.
func (f *FileSnapshotter) Close() error {
	return nil
}
