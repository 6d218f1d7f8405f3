// Package snapshot archives framebuffer snapshots of remote sessions as
// PNG images, on the local filesystem or in S3.
package snapshot

import (
	"context"
	"errors"
	"image"
	"time"
)

// ErrNotFound is returned when a snapshot id doesn't exist.
var ErrNotFound = errors.New("snapshot: not found")

// Entry describes one stored snapshot.
type Entry struct {
	// ID is the unique identifier for this snapshot.
	ID string

	// Host is the remote host the framebuffer was taken from.
	Host string

	// TakenAt is when the snapshot was stored.
	TakenAt time.Time

	// Size is the encoded size in bytes.
	Size int64
}

// Store is the interface for snapshot storage backends.
type Store interface {
	// Save encodes and stores a framebuffer image for host, returning the
	// snapshot id.
	Save(ctx context.Context, host string, img image.Image) (string, error)

	// Open returns the stored PNG bytes for a snapshot id.
	Open(ctx context.Context, id string) ([]byte, Entry, error)

	// List returns the stored snapshots, newest first.
	List(ctx context.Context) ([]Entry, error)

	// Cleanup removes snapshots older than maxAge.
	Cleanup(ctx context.Context, maxAge time.Duration) error
}
