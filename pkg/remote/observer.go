package remote

import (
	"image"
	"sync"
)

// Observer receives session notifications. Any field may be nil. Callbacks
// run on the session goroutine and must not block; hand off heavy work.
type Observer struct {
	StateChanged       func(state ConnectionState)
	FramebufferUpdated func()
	FramebufferResized func(width, height int)
	CursorPosChanged   func(x, y int)
	CursorShapeChanged func(shape *image.RGBA, hotX, hotY int)
	ClipboardReceived  func(text string)
	FeatureData        func(payload []byte)
}

// observerList is a small append-only fan-out of observers.
type observerList struct {
	mu        sync.RWMutex
	observers []*Observer
}

func (l *observerList) add(o *Observer) {
	if o == nil {
		return
	}
	l.mu.Lock()
	l.observers = append(l.observers, o)
	l.mu.Unlock()
}

func (l *observerList) notify(fn func(o *Observer)) {
	l.mu.RLock()
	obs := l.observers
	l.mu.RUnlock()
	for _, o := range obs {
		fn(o)
	}
}

func (l *observerList) stateChanged(state ConnectionState) {
	l.notify(func(o *Observer) {
		if o.StateChanged != nil {
			o.StateChanged(state)
		}
	})
}

func (l *observerList) framebufferUpdated() {
	l.notify(func(o *Observer) {
		if o.FramebufferUpdated != nil {
			o.FramebufferUpdated()
		}
	})
}

func (l *observerList) framebufferResized(width, height int) {
	l.notify(func(o *Observer) {
		if o.FramebufferResized != nil {
			o.FramebufferResized(width, height)
		}
	})
}

func (l *observerList) cursorPosChanged(x, y int) {
	l.notify(func(o *Observer) {
		if o.CursorPosChanged != nil {
			o.CursorPosChanged(x, y)
		}
	})
}

func (l *observerList) cursorShapeChanged(shape *image.RGBA, hotX, hotY int) {
	l.notify(func(o *Observer) {
		if o.CursorShapeChanged != nil {
			o.CursorShapeChanged(shape, hotX, hotY)
		}
	})
}

func (l *observerList) clipboardReceived(text string) {
	l.notify(func(o *Observer) {
		if o.ClipboardReceived != nil {
			o.ClipboardReceived(text)
		}
	})
}

func (l *observerList) featureData(payload []byte) {
	l.notify(func(o *Observer) {
		if o.FeatureData != nil {
			o.FeatureData(payload)
		}
	})
}
