package snapshot

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DiskStore stores snapshots as PNG files on the local filesystem.
type DiskStore struct {
	dir string

	mu      sync.RWMutex
	entries map[string]Entry
}

// NewDiskStore creates a snapshot store rooted at dir, creating the
// directory if needed.
func NewDiskStore(dir string) (*DiskStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("snapshot: creating %s: %w", dir, err)
	}
	return &DiskStore{
		dir:     dir,
		entries: make(map[string]Entry),
	}, nil
}

// Save implements Store.
func (s *DiskStore) Save(ctx context.Context, host string, img image.Image) (string, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", fmt.Errorf("snapshot: encoding: %w", err)
	}

	id := uuid.NewString()
	if err := os.WriteFile(s.path(id), buf.Bytes(), 0644); err != nil {
		return "", fmt.Errorf("snapshot: writing: %w", err)
	}

	s.mu.Lock()
	s.entries[id] = Entry{
		ID:      id,
		Host:    host,
		TakenAt: time.Now(),
		Size:    int64(buf.Len()),
	}
	s.mu.Unlock()
	return id, nil
}

// Open implements Store.
func (s *DiskStore) Open(ctx context.Context, id string) ([]byte, Entry, error) {
	s.mu.RLock()
	entry, ok := s.entries[id]
	s.mu.RUnlock()
	if !ok {
		return nil, Entry{}, ErrNotFound
	}

	data, err := os.ReadFile(s.path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, Entry{}, ErrNotFound
		}
		return nil, Entry{}, fmt.Errorf("snapshot: reading: %w", err)
	}
	return data, entry, nil
}

// List implements Store.
func (s *DiskStore) List(ctx context.Context) ([]Entry, error) {
	s.mu.RLock()
	entries := make([]Entry, 0, len(s.entries))
	for _, e := range s.entries {
		entries = append(entries, e)
	}
	s.mu.RUnlock()

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].TakenAt.After(entries[j].TakenAt)
	})
	return entries, nil
}

// Cleanup implements Store.
func (s *DiskStore) Cleanup(ctx context.Context, maxAge time.Duration) error {
	cutoff := time.Now().Add(-maxAge)

	s.mu.Lock()
	defer s.mu.Unlock()
	for id, e := range s.entries {
		if e.TakenAt.After(cutoff) {
			continue
		}
		if err := os.Remove(s.path(id)); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("snapshot: removing %s: %w", id, err)
		}
		delete(s.entries, id)
	}
	return nil
}

func (s *DiskStore) path(id string) string {
	// ids are uuids; keep the join safe regardless.
	return filepath.Join(s.dir, strings.ReplaceAll(id, string(os.PathSeparator), "_")+".png")
}
