package protocol

import (
	"errors"
	"fmt"
	"image"
	"net"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/warden-rc/warden/pkg/remote"
)

// Client errors.
var (
	ErrClosed    = errors.New("protocol: connection closed")
	ErrRejected  = fmt.Errorf("protocol: server rejected session: %w", remote.ErrAccessDenied)
	ErrHandshake = errors.New("protocol: handshake failed")
	ErrNoMessage = errors.New("protocol: no buffered message")
)

// Transport dials warden servers over WebSocket. It implements
// remote.Transport and produces one Client per established session.
type Transport struct {
	// ConnectTimeout bounds the WebSocket dial and upgrade.
	ConnectTimeout time.Duration

	// ReadTimeout bounds each read from the server. A stream silent for
	// longer than this is considered broken.
	ReadTimeout time.Duration

	// WriteTimeout bounds each write to the server.
	WriteTimeout time.Duration

	// KeepaliveInterval configures TCP keepalive probes on the underlying
	// socket. Zero leaves the OS default in place.
	KeepaliveInterval time.Duration

	// Path is the WebSocket endpoint path. Defaults to "/stream".
	Path string
}

// NewTransport creates a Transport with the given timeouts.
func NewTransport(connectTimeout, readTimeout, writeTimeout time.Duration) *Transport {
	return &Transport{
		ConnectTimeout: connectTimeout,
		ReadTimeout:    readTimeout,
		WriteTimeout:   writeTimeout,
		Path:           "/stream",
	}
}

// Connect dials host:port, performs the protocol handshake and returns an
// established link. The hooks are bound to the returned client for its whole
// lifetime; they fire synchronously on the goroutine calling ProcessMessage.
func (t *Transport) Connect(host string, port int, hooks remote.Hooks) (remote.Link, error) {
	path := t.Path
	if path == "" {
		path = "/stream"
	}
	u := url.URL{Scheme: "ws", Host: net.JoinHostPort(host, strconv.Itoa(port)), Path: path}

	netDialer := &net.Dialer{
		Timeout:   t.ConnectTimeout,
		KeepAlive: t.KeepaliveInterval,
	}
	dialer := websocket.Dialer{
		HandshakeTimeout: t.ConnectTimeout,
		NetDial:          netDialer.Dial,
	}

	conn, _, err := dialer.Dial(u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", u.Host, err)
	}

	// The socket is up, so a later failure is the server's fault rather
	// than the host being offline.
	if hooks.ServerReachable != nil {
		hooks.ServerReachable()
	}

	c := &Client{
		conn:         conn,
		hooks:        hooks,
		readTimeout:  t.ReadTimeout,
		writeTimeout: t.WriteTimeout,
		frames:       make(chan *Frame, 64),
		closed:       make(chan struct{}),
	}
	go c.readLoop()

	if err := c.handshake(); err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}

// Client is one established streaming session. It implements remote.Link.
//
// A single goroutine (the owning session engine) is expected to call
// WaitMessage and ProcessMessage; the Send methods are safe from any
// goroutine.
type Client struct {
	conn  *websocket.Conn
	hooks remote.Hooks

	readTimeout  time.Duration
	writeTimeout time.Duration

	frames  chan *Frame // filled by readLoop, closed on read failure
	pending *Frame      // peeked by WaitMessage, consumed by ProcessMessage

	writeMu sync.Mutex

	errMu   sync.Mutex
	readErr error

	closeOnce sync.Once
	closed    chan struct{}
}

// readLoop pulls binary messages off the WebSocket and queues decoded frames.
func (c *Client) readLoop() {
	defer close(c.frames)
	for {
		if c.readTimeout > 0 {
			c.conn.SetReadDeadline(time.Now().Add(c.readTimeout))
		}
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			c.setReadErr(err)
			return
		}
		frame, err := DecodeFrame(data)
		if err != nil {
			c.setReadErr(err)
			return
		}
		select {
		case c.frames <- frame:
		case <-c.closed:
			return
		}
	}
}

func (c *Client) setReadErr(err error) {
	c.errMu.Lock()
	if c.readErr == nil {
		c.readErr = err
	}
	c.errMu.Unlock()
}

func (c *Client) readError() error {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	if c.readErr != nil {
		return c.readErr
	}
	return ErrClosed
}

// handshake consumes the server's opening frame. The framebuffer allocation
// hook decides whether the announced pixel format is acceptable.
func (c *Client) handshake() error {
	ok, err := c.WaitMessage(c.readTimeout)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrHandshake, err)
	}
	if !ok {
		return fmt.Errorf("%w: no server init within %v", ErrHandshake, c.readTimeout)
	}

	frame := c.pending
	c.pending = nil

	switch frame.Type {
	case FrameServerInit:
		si, err := DecodeServerInit(frame.Payload)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrHandshake, err)
		}
		if c.hooks.InitFramebuffer != nil {
			if err := c.hooks.InitFramebuffer(si.Width, si.Height, si.BytesPerPixel); err != nil {
				return fmt.Errorf("%w: %v", ErrHandshake, err)
			}
		}
		return nil
	case FrameServerError:
		se, err := DecodeServerError(frame.Payload)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrHandshake, err)
		}
		return fmt.Errorf("%w: %s (code %d)", ErrRejected, se.Message, se.Code)
	default:
		return fmt.Errorf("%w: unexpected %s frame before server init", ErrHandshake, frame.Type)
	}
}

// WaitMessage blocks up to timeout for an inbound message. It returns true
// when a message is buffered and ready for ProcessMessage, false on timeout.
// A zero or negative timeout polls without blocking. An error means the
// stream is broken.
func (c *Client) WaitMessage(timeout time.Duration) (bool, error) {
	if c.pending != nil {
		return true, nil
	}
	if timeout <= 0 {
		select {
		case frame, ok := <-c.frames:
			if !ok {
				return false, c.readError()
			}
			c.pending = frame
			return true, nil
		default:
			return false, nil
		}
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case frame, ok := <-c.frames:
		if !ok {
			return false, c.readError()
		}
		c.pending = frame
		return true, nil
	case <-timer.C:
		return false, nil
	}
}

// ProcessMessage dispatches the next buffered message to the bound hooks.
// Callers must have observed a true result from WaitMessage first.
func (c *Client) ProcessMessage() error {
	frame := c.pending
	c.pending = nil
	if frame == nil {
		select {
		case f, ok := <-c.frames:
			if !ok {
				return c.readError()
			}
			frame = f
		default:
			return ErrNoMessage
		}
	}
	return c.dispatch(frame)
}

// dispatch decodes one frame and fires the matching hook.
func (c *Client) dispatch(frame *Frame) error {
	switch frame.Type {
	case FrameRect:
		rect, err := DecodeRectUpdate(frame.Payload)
		if err != nil {
			return err
		}
		if c.hooks.RectUpdated != nil {
			c.hooks.RectUpdated(rect.X, rect.Y, rect.Width, rect.Height, rect.Pixels)
		}
	case FrameBatchDone:
		if c.hooks.UpdateFinished != nil {
			c.hooks.UpdateFinished()
		}
	case FrameCursorPos:
		pos, err := DecodeCursorPos(frame.Payload)
		if err != nil {
			return err
		}
		if c.hooks.CursorPosChanged != nil {
			c.hooks.CursorPosChanged(pos.X, pos.Y)
		}
	case FrameCursorShape:
		shape, err := DecodeCursorShape(frame.Payload)
		if err != nil {
			return err
		}
		if c.hooks.CursorShapeChanged != nil {
			img := image.NewRGBA(image.Rect(0, 0, shape.Width, shape.Height))
			copy(img.Pix, shape.Pixels)
			c.hooks.CursorShapeChanged(img, shape.HotX, shape.HotY)
		}
	case FrameClipboard:
		if len(frame.Payload) > 0 && c.hooks.ClipboardText != nil {
			c.hooks.ClipboardText(string(frame.Payload))
		}
	case FrameFeature:
		if c.hooks.FeatureData != nil {
			c.hooks.FeatureData(frame.Payload)
		}
	case FrameServerError:
		se, err := DecodeServerError(frame.Payload)
		if err != nil {
			return err
		}
		return fmt.Errorf("%w: %s (code %d)", ErrRejected, se.Message, se.Code)
	default:
		return fmt.Errorf("%w: 0x%02x", ErrInvalidFrameType, byte(frame.Type))
	}
	return nil
}

// writeFrame sends one frame, serializing concurrent writers.
func (c *Client) writeFrame(ft FrameType, payload []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	select {
	case <-c.closed:
		return ErrClosed
	default:
	}

	if c.writeTimeout > 0 {
		c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	}
	return c.conn.WriteMessage(websocket.BinaryMessage, NewFrame(ft, payload).Encode())
}

// RequestUpdate asks the server for a full or incremental framebuffer update.
func (c *Client) RequestUpdate(incremental bool) error {
	return c.writeFrame(FrameUpdateRequest, EncodeUpdateRequest(&UpdateRequest{Incremental: incremental}))
}

// SendPointerEvent sends a pointer move with the given button mask.
func (c *Client) SendPointerEvent(x, y, buttons int) error {
	return c.writeFrame(FramePointer, EncodePointerEvent(&PointerEvent{X: x, Y: y, Buttons: buttons}))
}

// SendKeyEvent sends a key press or release.
func (c *Client) SendKeyEvent(code uint32, pressed bool) error {
	return c.writeFrame(FrameKey, EncodeKeyEvent(&KeyEvent{Code: code, Pressed: pressed}))
}

// SendClipboardText sends local clipboard contents to the server.
func (c *Client) SendClipboardText(text string) error {
	return c.writeFrame(FrameCutText, []byte(text))
}

// SendFormat renegotiates stream quality and remote-cursor handling.
func (c *Client) SendFormat(quality int, remoteCursor bool) error {
	return c.writeFrame(FrameSetFormat, EncodeSetFormat(&SetFormat{Quality: quality, RemoteCursor: remoteCursor}))
}

// SendFeatureData sends an opaque feature message over the session.
func (c *Client) SendFeatureData(payload []byte) error {
	return c.writeFrame(FrameFeature, payload)
}

// Close tears the session down. Safe to call multiple times.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		close(c.closed)
		c.writeMu.Lock()
		c.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		c.writeMu.Unlock()
		c.conn.Close()
	})
	return nil
}
