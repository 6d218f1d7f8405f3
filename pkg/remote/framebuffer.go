package remote

import (
	"image"
	"sync"

	"golang.org/x/image/draw"
)

// framebufferStore holds the session framebuffer and a lazily rebuilt
// scaled copy. Writers are the session goroutine only; readers may be any
// goroutine, so reads hand out copies rather than the live image.
type framebufferStore struct {
	mu         sync.RWMutex
	state      FramebufferState
	img        *image.RGBA
	scaled     *image.RGBA
	scaledSize image.Point
}

// init allocates a fresh framebuffer for the given geometry and marks it
// Initialized. Any previous contents and scaled cache are discarded.
func (s *framebufferStore) init(width, height int) {
	s.mu.Lock()
	s.img = image.NewRGBA(image.Rect(0, 0, width, height))
	s.scaled = nil
	s.state = FramebufferInitialized
	s.mu.Unlock()
}

// reset drops the framebuffer and returns the store to Invalid.
func (s *framebufferStore) reset() {
	s.mu.Lock()
	s.img = nil
	s.scaled = nil
	s.state = FramebufferInvalid
	s.mu.Unlock()
}

// currentState returns the framebuffer lifecycle state.
func (s *framebufferStore) currentState() FramebufferState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// markValid records that at least one complete update pass has landed.
func (s *framebufferStore) markValid() {
	s.mu.Lock()
	if s.state == FramebufferInitialized {
		s.state = FramebufferValid
	}
	s.mu.Unlock()
}

// size returns the framebuffer geometry, or the zero point when invalid.
func (s *framebufferStore) size() image.Point {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.img == nil {
		return image.Point{}
	}
	return s.img.Bounds().Size()
}

// applyRect copies decoded pixels into the framebuffer. Rects outside the
// current geometry are clipped; rects arriving before init are dropped.
func (s *framebufferStore) applyRect(x, y, width, height int, pixels []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.img == nil {
		return
	}
	src := &image.RGBA{
		Pix:    pixels,
		Stride: width * 4,
		Rect:   image.Rect(x, y, x+width, y+height),
	}
	r := src.Rect.Intersect(s.img.Bounds())
	if r.Empty() {
		return
	}
	draw.Draw(s.img, r, src, r.Min, draw.Src)
}

// snapshot returns a copy of the framebuffer, or nil when no complete
// frame has been received yet.
func (s *framebufferStore) snapshot() *image.RGBA {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.img == nil || s.state != FramebufferValid {
		return nil
	}
	cp := image.NewRGBA(s.img.Bounds())
	copy(cp.Pix, s.img.Pix)
	return cp
}

// scaledSnapshot returns a copy of the framebuffer scaled to size,
// rebuilding the cached scaled image only when dirty says the source has
// changed or the requested size differs from the cached one.
func (s *framebufferStore) scaledSnapshot(size image.Point, dirty bool) *image.RGBA {
	if size.X <= 0 || size.Y <= 0 {
		return s.snapshot()
	}

	s.mu.RLock()
	if s.img == nil || s.state != FramebufferValid {
		s.mu.RUnlock()
		return nil
	}
	if !dirty && s.scaled != nil && s.scaledSize == size {
		cp := image.NewRGBA(s.scaled.Bounds())
		copy(cp.Pix, s.scaled.Pix)
		s.mu.RUnlock()
		return cp
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.img == nil {
		return nil
	}
	scaled := image.NewRGBA(image.Rect(0, 0, size.X, size.Y))
	draw.ApproxBiLinear.Scale(scaled, scaled.Bounds(), s.img, s.img.Bounds(), draw.Src, nil)
	s.scaled = scaled
	s.scaledSize = size

	cp := image.NewRGBA(scaled.Bounds())
	copy(cp.Pix, scaled.Pix)
	return cp
}
