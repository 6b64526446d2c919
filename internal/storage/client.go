package storage

import (
	"context"
	"errors"
)

// ErrNotFound is returned when the remote object does not exist.
var ErrNotFound = errors.New("storage: object not found")

// Client fetches single remote objects to local files. Implementations carry
// their own low-level retry policy for transient transport failures; callers
// layer task-level retries on top.
type Client interface {
	// Fetch downloads the object named by key into localPath, creating or
	// truncating the file. A partially written file may remain on error.
	Fetch(ctx context.Context, key, localPath string) error

	// Ping verifies the store is reachable and authorized. Called once
	// before any tasks are scheduled; a failure aborts the whole run.
	Ping(ctx context.Context) error

	Close() error
}
