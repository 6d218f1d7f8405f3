package remote

import "sync"

// Event is one outgoing session action. Events are immutable once enqueued
// and fire exactly once, in enqueue order, on the session goroutine.
type Event interface {
	// Fire sends the event over the live link.
	Fire(link Link) error
}

// PointerEvent moves the remote pointer and sets the button mask.
type PointerEvent struct {
	X, Y    int
	Buttons int
}

// Fire implements Event.
func (e PointerEvent) Fire(link Link) error {
	return link.SendPointerEvent(e.X, e.Y, e.Buttons)
}

// KeyEvent presses or releases a remote key.
type KeyEvent struct {
	Code    uint32
	Pressed bool
}

// Fire implements Event.
func (e KeyEvent) Fire(link Link) error {
	return link.SendKeyEvent(e.Code, e.Pressed)
}

// ClipboardEvent pushes local clipboard text to the remote host.
type ClipboardEvent struct {
	Text string
}

// Fire implements Event.
func (e ClipboardEvent) Fire(link Link) error {
	return link.SendClipboardText(e.Text)
}

// FormatChangeEvent renegotiates stream quality and cursor handling with
// the live session instead of mutating negotiated state directly.
type FormatChangeEvent struct {
	Quality      Quality
	RemoteCursor bool
}

// Fire implements Event.
func (e FormatChangeEvent) Fire(link Link) error {
	return link.SendFormat(e.Quality.Level(), e.RemoteCursor)
}

// FeatureDataEvent sends an opaque feature message over the session.
type FeatureDataEvent struct {
	Payload []byte
}

// Fire implements Event.
func (e FeatureDataEvent) Fire(link Link) error {
	return link.SendFeatureData(e.Payload)
}

// eventQueue is an ordered, thread-safe FIFO of outgoing events. The mutex
// is held only for enqueue/dequeue; firing an event happens outside it.
type eventQueue struct {
	mu     sync.Mutex
	events []Event
}

// push appends an event.
func (q *eventQueue) push(e Event) {
	q.mu.Lock()
	q.events = append(q.events, e)
	q.mu.Unlock()
}

// pop removes and returns the oldest event, or (nil, false) when empty.
func (q *eventQueue) pop() (Event, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.events) == 0 {
		return nil, false
	}
	e := q.events[0]
	q.events = q.events[1:]
	return e, true
}

// empty reports whether no events are queued.
func (q *eventQueue) empty() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.events) == 0
}
