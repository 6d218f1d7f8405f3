package snapshot

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"testing"
	"time"
)

func testImage() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for i := range img.Pix {
		img.Pix[i] = byte(i)
	}
	return img
}

func TestDiskStoreSaveOpen(t *testing.T) {
	store, err := NewDiskStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewDiskStore: %v", err)
	}
	ctx := context.Background()

	id, err := store.Save(ctx, "host-1", testImage())
	if err != nil {
		t.Fatalf("Save: %v", err)
	}

	data, entry, err := store.Open(ctx, id)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if entry.Host != "host-1" {
		t.Errorf("entry host = %q, want host-1", entry.Host)
	}
	decoded, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("stored data is not a valid PNG: %v", err)
	}
	if decoded.Bounds().Size() != (image.Point{X: 8, Y: 8}) {
		t.Errorf("decoded size = %v, want 8x8", decoded.Bounds().Size())
	}

	if _, _, err := store.Open(ctx, "missing"); err != ErrNotFound {
		t.Errorf("Open(missing) = %v, want ErrNotFound", err)
	}
}

func TestDiskStoreListAndCleanup(t *testing.T) {
	store, err := NewDiskStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewDiskStore: %v", err)
	}
	ctx := context.Background()

	if _, err := store.Save(ctx, "host-1", testImage()); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, err := store.Save(ctx, "host-2", testImage()); err != nil {
		t.Fatalf("Save: %v", err)
	}

	entries, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("List returned %d entries, want 2", len(entries))
	}

	// Nothing is old enough to reap yet.
	if err := store.Cleanup(ctx, time.Hour); err != nil {
		t.Fatalf("Cleanup: %v", err)
	}
	if entries, _ = store.List(ctx); len(entries) != 2 {
		t.Fatalf("Cleanup(1h) removed fresh entries, %d left", len(entries))
	}

	// maxAge zero reaps everything.
	if err := store.Cleanup(ctx, 0); err != nil {
		t.Fatalf("Cleanup: %v", err)
	}
	if entries, _ = store.List(ctx); len(entries) != 0 {
		t.Fatalf("Cleanup(0) left %d entries", len(entries))
	}
}
