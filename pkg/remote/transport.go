package remote

import (
	"errors"
	"image"
	"net"
	"syscall"
	"time"
)

// Hooks are the callbacks a transport fires while processing inbound
// messages. They are bound to one connection generation at dial time and
// fire synchronously on the session goroutine, never concurrently.
//
// The only ordering guarantee a transport provides is that UpdateFinished
// follows zero or more RectUpdated calls since the previous UpdateFinished.
type Hooks struct {
	// ServerReachable fires once the underlying socket is established,
	// before the protocol handshake. Used to distinguish HostOffline
	// from ServerNotRunning when the handshake later fails.
	ServerReachable func()

	// InitFramebuffer fires when the server announces framebuffer
	// geometry. Returning an error aborts the current connection attempt
	// (for example on a pixel-format mismatch).
	InitFramebuffer func(width, height, bytesPerPixel int) error

	// RectUpdated fires for each decoded rectangle. pixels holds
	// width*height*4 RGBA bytes in row-major order.
	RectUpdated func(x, y, width, height int, pixels []byte)

	// UpdateFinished fires when an update batch completes.
	UpdateFinished func()

	// CursorPosChanged fires when the remote cursor moves.
	CursorPosChanged func(x, y int)

	// CursorShapeChanged fires when the remote cursor bitmap changes.
	CursorShapeChanged func(shape *image.RGBA, hotX, hotY int)

	// ClipboardText fires when the server announces new clipboard text.
	ClipboardText func(text string)

	// FeatureData fires for opaque feature messages riding the session.
	FeatureData func(payload []byte)
}

// Link is one established streaming session. The owning session goroutine
// calls WaitMessage/ProcessMessage; the Send and Request methods must be
// safe from any goroutine.
type Link interface {
	// WaitMessage blocks up to timeout for inbound data. It returns true
	// when a message is ready for ProcessMessage, false on timeout. A
	// non-positive timeout polls without blocking. An error means the
	// link is broken.
	WaitMessage(timeout time.Duration) (bool, error)

	// ProcessMessage dispatches the next buffered message to the hooks.
	ProcessMessage() error

	// RequestUpdate asks for a full (incremental=false) or incremental
	// framebuffer update.
	RequestUpdate(incremental bool) error

	SendPointerEvent(x, y, buttons int) error
	SendKeyEvent(code uint32, pressed bool) error
	SendClipboardText(text string) error
	SendFormat(quality int, remoteCursor bool) error
	SendFeatureData(payload []byte) error

	// Close releases the link. Safe to call multiple times.
	Close() error
}

// Transport dials hosts and produces established links with the given
// hooks bound. pkg/protocol supplies the production implementation.
type Transport interface {
	Connect(host string, port int, hooks Hooks) (Link, error)
}

// Prober checks whether a host answers at all, independent of the warden
// server. Used to classify handshake failures into HostOffline versus
// ServerNotRunning.
type Prober func(host string) bool

// TCPProber probes host liveness by dialing the TCP echo port. Both an
// accepted connection and an active refusal prove the host is up; only a
// timeout or unreachable-network error counts as offline. It is the default
// reachability probe.
func TCPProber(timeout time.Duration) Prober {
	return func(host string) bool {
		conn, err := net.DialTimeout("tcp", net.JoinHostPort(host, "7"), timeout)
		if err == nil {
			conn.Close()
			return true
		}
		// A RST reply still comes from a live host.
		return errors.Is(err, syscall.ECONNREFUSED)
	}
}
