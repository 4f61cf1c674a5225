package persist

import (
	"context"
	"errors"
	"fmt"

	"github.com/jpalmerr/statusfeed/internal/store"
)

// Driver names accepted by [Open].
const (
	DriverNone   = "none"
	DriverFile   = "file"
	DriverSQLite = "sqlite"
)

// ErrUnknownDriver is returned by [Open] for an unrecognised driver name.
var ErrUnknownDriver = errors.New("unknown persistence driver")

// Snapshotter loads and saves store snapshots.
//
// Implementations must be safe for concurrent use.
type Snapshotter interface {
	// Load returns the last saved snapshot. A backend with nothing saved
	// yet returns an empty snapshot and no error.
	Load(ctx context.Context) (store.Snapshot, error)

	// Save replaces the stored snapshot with snap.
	Save(ctx context.Context, snap store.Snapshot) error

	// Close releases any resources held by the backend.
	Close() error
}

// Open creates the [Snapshotter] for driver. The "none" driver (or an empty
// name) returns a nil Snapshotter and no error.
func Open(driver, path string) (Snapshotter, error) {
	switch driver {
	case "", DriverNone:
		return nil, nil
	case DriverFile:
		return NewFileSnapshotter(path)
	case DriverSQLite:
		return OpenSQLite(path)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, driver)
	}
}
