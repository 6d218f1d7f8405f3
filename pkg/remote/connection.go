package remote

import (
	"errors"
	"fmt"
	"image"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Option configures a Connection.
type Option func(*Connection)

// WithLogger sets the session logger. Defaults to slog.Default.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Connection) { c.logger = logger }
}

// WithMetrics attaches session metrics. Nil metrics record nothing.
func WithMetrics(m *Metrics) Option {
	return func(c *Connection) { c.metrics = m }
}

// WithProber overrides the host reachability probe used to classify
// connection failures.
func WithProber(p Prober) Option {
	return func(c *Connection) { c.prober = p }
}

// Connection is the session engine for one remote host. It owns a single
// goroutine that establishes the session, streams framebuffer updates and
// fires queued events, reconnecting until stopped.
//
// All exported methods are safe for concurrent use.
type Connection struct {
	host      string
	cfg       Config
	transport Transport
	prober    Prober
	logger    *slog.Logger
	metrics   *Metrics

	state          atomic.Int32
	updateMode     atomic.Int32
	updateInterval atomic.Int64
	flags          controlFlags

	fb        framebufferStore
	queue     eventQueue
	observers observerList

	// wake interrupts the engine's paced sleeps. Buffered so producers
	// never block.
	wake chan struct{}

	mu         sync.Mutex
	running    bool
	done       chan struct{}
	updateDone func()
	quality    Quality
	remoteCur  bool
	scaledSize image.Point
}

// New creates a session engine for host using the given transport. The
// engine is idle until Connect is called.
func New(host string, cfg Config, transport Transport, opts ...Option) *Connection {
	c := &Connection{
		host:      host,
		cfg:       cfg,
		transport: transport,
		prober:    TCPProber(cfg.ProbeTimeout),
		logger:    slog.Default(),
		quality:   cfg.Quality,
		remoteCur: cfg.UseRemoteCursor,
		wake:      make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("host", host)
	c.state.Store(int32(StateDisconnected))
	c.updateMode.Store(int32(UpdateDisabled))
	return c
}

// Host returns the host this engine is bound to.
func (c *Connection) Host() string { return c.host }

// State returns the current connection state.
func (c *Connection) State() ConnectionState {
	return ConnectionState(c.state.Load())
}

// FramebufferState returns the framebuffer lifecycle state.
func (c *Connection) FramebufferState() FramebufferState {
	return c.fb.currentState()
}

// AddObserver registers an observer for session notifications.
func (c *Connection) AddObserver(o *Observer) {
	c.observers.add(o)
}

// Connect starts the session goroutine. It returns ErrAlreadyRunning if
// the engine is already running.
func (c *Connection) Connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		return ErrAlreadyRunning
	}
	c.flags.terminate.Store(false)
	c.flags.restart.Store(false)
	c.running = true
	c.done = make(chan struct{})
	c.metrics.sessionStarted()
	go c.run(c.done)
	return nil
}

// Stop asks the session goroutine to exit and waits up to the configured
// grace period. A goroutine stuck past the grace period is abandoned; it
// will observe the terminate flag and exit on its own eventually.
func (c *Connection) Stop() error {
	c.mu.Lock()
	done := c.done
	running := c.running
	c.mu.Unlock()
	if !running {
		return nil
	}

	c.flags.terminate.Store(true)
	c.wakeUp()

	select {
	case <-done:
		return nil
	case <-time.After(c.cfg.StopGracePeriod):
		c.logger.Warn("session did not stop within grace period, abandoning")
		return ErrStopTimeout
	}
}

// Restart tears down the current session and reconnects without draining
// the event queue.
func (c *Connection) Restart() {
	c.flags.restart.Store(true)
	c.wakeUp()
}

// Enqueue appends an event to the outgoing queue. Events fire in order on
// the session goroutine. Events enqueued while not connected are dropped.
func (c *Connection) Enqueue(e Event) {
	if e == nil || c.State() != StateConnected {
		return
	}
	c.queue.push(e)
	c.wakeUp()
}

// SendPointerEvent queues a pointer move with the given button mask.
func (c *Connection) SendPointerEvent(x, y, buttons int) {
	c.Enqueue(PointerEvent{X: x, Y: y, Buttons: buttons})
}

// SendKeyEvent queues a key press or release.
func (c *Connection) SendKeyEvent(code uint32, pressed bool) {
	c.Enqueue(KeyEvent{Code: code, Pressed: pressed})
}

// SendClipboardText queues a clipboard push to the remote host.
func (c *Connection) SendClipboardText(text string) {
	c.Enqueue(ClipboardEvent{Text: text})
}

// SendFeatureData queues an opaque feature payload.
func (c *Connection) SendFeatureData(payload []byte) {
	c.Enqueue(FeatureDataEvent{Payload: payload})
}

// SetQuality changes the stream quality. A live session renegotiates via a
// queued format change; the value also applies to future sessions.
func (c *Connection) SetQuality(q Quality) {
	c.mu.Lock()
	c.quality = q
	cur := c.remoteCur
	c.mu.Unlock()
	c.Enqueue(FormatChangeEvent{Quality: q, RemoteCursor: cur})
}

// SetUseRemoteCursor toggles server-side cursor rendering.
func (c *Connection) SetUseRemoteCursor(use bool) {
	c.mu.Lock()
	c.remoteCur = use
	q := c.quality
	c.mu.Unlock()
	c.Enqueue(FormatChangeEvent{Quality: q, RemoteCursor: use})
}

// SetUpdateMode changes how aggressively the engine requests framebuffer
// updates. The change takes effect on the next loop pass.
func (c *Connection) SetUpdateMode(mode UpdateMode) {
	c.updateMode.Store(int32(mode))
	c.SetUpdateInterval(c.cfg.UpdateInterval(mode))
}

// UpdateMode returns the current update mode.
func (c *Connection) UpdateMode() UpdateMode {
	return UpdateMode(c.updateMode.Load())
}

// SetUpdateInterval sets the framebuffer update pacing directly,
// overriding the interval implied by the update mode. Zero disables paced
// updates.
func (c *Connection) SetUpdateInterval(d time.Duration) {
	c.updateInterval.Store(int64(d))
	c.mu.Lock()
	q, cur := c.quality, c.remoteCur
	c.mu.Unlock()
	c.Enqueue(FormatChangeEvent{Quality: q, RemoteCursor: cur})
	c.wakeUp()
}

// currentInterval returns the active update pacing.
func (c *Connection) currentInterval() time.Duration {
	return time.Duration(c.updateInterval.Load())
}

// TriggerUpdate requests one framebuffer update out of band, regardless of
// the update mode's pacing.
func (c *Connection) TriggerUpdate() {
	c.flags.triggerUpdate.Store(true)
	c.wakeUp()
}

// SetSkipFailureProbe disables the reachability probe on connection
// failure. Useful when the host is known reachable by other means.
func (c *Connection) SetSkipFailureProbe(skip bool) {
	c.flags.skipProbe.Store(skip)
}

// SetManualRateControl makes the engine pace update requests itself
// instead of relying on server-side throttling. Needed for servers that
// flood updates as fast as the link allows.
func (c *Connection) SetManualRateControl(enabled bool) {
	c.flags.manualRateControl.Store(enabled)
}

// SetDeleteOnFinish marks the engine for disposal once its goroutine
// exits. Owners poll DeleteOnFinish to reap abandoned engines.
func (c *Connection) SetDeleteOnFinish() {
	c.flags.deleteOnFinish.Store(true)
}

// DeleteOnFinish reports whether the engine is marked for disposal.
func (c *Connection) DeleteOnFinish() bool {
	return c.flags.deleteOnFinish.Load()
}

// CurrentImage returns a copy of the latest complete framebuffer.
func (c *Connection) CurrentImage() (*image.RGBA, error) {
	img := c.fb.snapshot()
	if img == nil {
		return nil, ErrNoFramebuffer
	}
	return img, nil
}

// SetScaledSize sets the geometry ScaledImage scales to. A non-positive
// size disables scaling.
func (c *Connection) SetScaledSize(width, height int) {
	c.mu.Lock()
	if c.scaledSize != (image.Point{X: width, Y: height}) {
		c.scaledSize = image.Point{X: width, Y: height}
		c.flags.scaledDirty.Store(true)
	}
	c.mu.Unlock()
}

// ScaledImage returns a copy of the latest framebuffer scaled to the size
// set with SetScaledSize. The scaled image is cached until the next
// completed update.
func (c *Connection) ScaledImage() (*image.RGBA, error) {
	c.mu.Lock()
	size := c.scaledSize
	c.mu.Unlock()

	dirty := c.flags.scaledDirty.Swap(false)
	img := c.fb.scaledSnapshot(size, dirty)
	if img == nil {
		return nil, ErrNoFramebuffer
	}
	return img, nil
}

// wakeUp interrupts the engine's current sleep, if any.
func (c *Connection) wakeUp() {
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

func (c *Connection) setState(s ConnectionState) {
	if ConnectionState(c.state.Swap(int32(s))) != s {
		c.logger.Debug("connection state changed", "state", s)
		c.observers.stateChanged(s)
	}
}

// run is the session goroutine. It loops establish, stream, teardown until
// the terminate flag is set.
func (c *Connection) run(done chan struct{}) {
	defer func() {
		c.discardEvents()
		c.setState(StateDisconnected)
		c.metrics.sessionStopped()
		c.mu.Lock()
		if c.done == done {
			c.running = false
		}
		c.mu.Unlock()
		close(done)
	}()

	for !c.flags.terminate.Load() {
		link := c.establish()
		if link == nil {
			return
		}
		c.stream(link)
		link.Close()
		c.fb.reset()
		c.setState(StateDisconnected)
		if c.flags.restart.Swap(false) {
			c.logger.Info("restarting session")
			continue
		}
		if !c.flags.terminate.Load() {
			c.logger.Info("session lost, reconnecting")
		}
	}
}

// establish attempts to connect until it succeeds or terminate is set. It
// returns nil only when terminating.
func (c *Connection) establish() Link {
	for !c.flags.terminate.Load() {
		c.setState(StateConnecting)
		c.flags.serverReachable.Store(false)
		c.fb.reset()
		c.metrics.connectAttempt()

		link, err := c.transport.Connect(c.host, c.cfg.Port, c.hooks())
		if err == nil {
			c.logger.Info("session established", "port", c.cfg.Port)
			c.flags.restart.Store(false)
			c.sendInitialFormat(link)
			c.setState(StateConnected)
			return link
		}

		state := c.classifyFailure(err)
		c.logger.Warn("connection attempt failed", "error", err, "state", state)
		c.metrics.connectFailed(state)
		c.setState(state)

		backoff := c.currentInterval()
		if backoff <= 0 {
			backoff = c.cfg.ConnectRetryDelay
		}
		c.sleep(backoff)
	}
	return nil
}

// classifyFailure maps a connect error to a failure state. A server that
// was never reached is probed to tell a dead host from a dead service.
func (c *Connection) classifyFailure(err error) ConnectionState {
	if errors.Is(err, ErrAccessDenied) {
		return StateAuthenticationFailed
	}
	if !c.flags.serverReachable.Load() {
		if c.flags.skipProbe.Load() {
			return StateHostOffline
		}
		if c.prober != nil && !c.prober(c.host) {
			return StateHostOffline
		}
		return StateServerNotRunning
	}
	// The server answered but the handshake never got as far as allocating
	// a framebuffer: it turned us away.
	if c.fb.currentState() == FramebufferInvalid {
		return StateAuthenticationFailed
	}
	return StateConnectionFailed
}

// sendInitialFormat pushes the configured quality and cursor mode right
// after the handshake so the first update already uses them.
func (c *Connection) sendInitialFormat(link Link) {
	c.mu.Lock()
	q, cur := c.quality, c.remoteCur
	c.mu.Unlock()
	if err := link.SendFormat(q.Level(), cur); err != nil {
		c.logger.Warn("initial format negotiation failed", "error", err)
	}
}

// stream runs the update/event loop over an established link until the
// link breaks or a terminate/restart is requested.
func (c *Connection) stream(link Link) {
	var updateCompleted bool
	hooksDone := c.bindStreamHooks(&updateCompleted)
	defer hooksDone()

	// First pass is always a full update so the framebuffer can reach
	// Valid even when paced updates are disabled.
	if err := link.RequestUpdate(false); err != nil {
		c.logger.Warn("initial update request failed", "error", err)
		return
	}
	watchdog := time.Now()

	for !c.flags.terminate.Load() && !c.flags.restart.Load() {
		passStart := time.Now()
		interval := c.currentInterval()

		// With a paced interval configured there is no hurry; without one
		// wake often enough to stay responsive to triggered refreshes.
		wait := c.cfg.FastUpdateInterval
		if interval > 0 {
			wait = c.cfg.MessageWaitTimeout
		}

		got, err := link.WaitMessage(wait)
		if err != nil {
			return
		}
		// Drain everything already buffered before any timer logic runs.
		for got {
			if err := link.ProcessMessage(); err != nil {
				c.logger.Warn("message processing failed", "error", err)
				return
			}
			if got, err = link.WaitMessage(0); err != nil {
				return
			}
		}

		if updateCompleted {
			updateCompleted = false
			watchdog = time.Now()
			c.fb.markValid()
			c.flags.scaledDirty.Store(true)
			c.metrics.framebufferUpdated()
			c.observers.framebufferUpdated()
		}

		switch {
		case time.Since(watchdog) > c.cfg.effectiveWatchdog(interval):
			c.logger.Warn("update watchdog fired, forcing full refresh")
			c.metrics.watchdogRefresh()
			if err := link.RequestUpdate(false); err != nil {
				return
			}
			watchdog = time.Now()
		case interval > 0 && time.Since(watchdog) >= interval:
			if err := c.requestIncremental(link); err != nil {
				return
			}
			// One request per interval, not one per loop pass.
			watchdog = time.Now()
		case c.flags.triggerUpdate.Swap(false):
			if err := c.requestIncremental(link); err != nil {
				return
			}
		}

		// Legacy servers flood updates as fast as we ask; pace ourselves
		// so we do not saturate the link.
		if c.flags.manualRateControl.Load() && interval > 0 {
			c.sleep(pacingRemainder(interval, time.Since(passStart)))
		}

		if !c.fireEvents(link) {
			return
		}
	}
}

// pacingRemainder is how much of the update interval is left after a loop
// pass that took elapsed.
func pacingRemainder(interval, elapsed time.Duration) time.Duration {
	if r := interval - elapsed; r > 0 {
		return r
	}
	return 0
}

// requestIncremental asks for the changed regions since the last update,
// or a full frame when no complete frame exists yet.
func (c *Connection) requestIncremental(link Link) error {
	return link.RequestUpdate(c.fb.currentState() == FramebufferValid)
}

// bindStreamHooks points the update-completion hook at the given flag for
// the duration of one stream pass.
func (c *Connection) bindStreamHooks(completed *bool) func() {
	c.mu.Lock()
	c.updateDone = func() { *completed = true }
	c.mu.Unlock()
	return func() {
		c.mu.Lock()
		c.updateDone = nil
		c.mu.Unlock()
	}
}

// fireEvents drains the event queue over the link, aborting the remaining
// fires if terminate is set mid-drain. It returns false when the link
// broke mid-fire.
func (c *Connection) fireEvents(link Link) bool {
	for {
		if c.flags.terminate.Load() {
			return true
		}
		e, ok := c.queue.pop()
		if !ok {
			return true
		}
		if err := e.Fire(link); err != nil {
			c.logger.Warn("event send failed", "error", err)
			return false
		}
		c.metrics.eventFired()
	}
}

// discardEvents drops whatever is still queued at final teardown.
func (c *Connection) discardEvents() {
	for {
		if _, ok := c.queue.pop(); !ok {
			return
		}
		c.metrics.eventDiscarded()
	}
}

// sleep pauses for d or until woken, whichever comes first.
func (c *Connection) sleep(d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-c.wake:
	}
}

// hooks builds the transport callback set. Callbacks run on the session
// goroutine via Link.ProcessMessage.
func (c *Connection) hooks() Hooks {
	return Hooks{
		ServerReachable: func() {
			c.flags.serverReachable.Store(true)
		},
		InitFramebuffer: func(width, height, bytesPerPixel int) error {
			if width <= 0 || height <= 0 {
				return errors.New("remote: invalid framebuffer geometry")
			}
			// 32-bit RGBA is the only supported pixel layout. Anything
			// else aborts this attempt; the retry loop takes over.
			if bytesPerPixel != 4 {
				return fmt.Errorf("remote: unsupported pixel depth %d", bytesPerPixel)
			}
			c.fb.init(width, height)
			c.observers.framebufferResized(width, height)
			return nil
		},
		RectUpdated: func(x, y, width, height int, pixels []byte) {
			c.fb.applyRect(x, y, width, height, pixels)
		},
		UpdateFinished: func() {
			c.mu.Lock()
			fn := c.updateDone
			c.mu.Unlock()
			if fn != nil {
				fn()
			}
		},
		CursorPosChanged: func(x, y int) {
			c.observers.cursorPosChanged(x, y)
		},
		CursorShapeChanged: func(img *image.RGBA, hotX, hotY int) {
			c.observers.cursorShapeChanged(img, hotX, hotY)
		},
		ClipboardText: func(text string) {
			c.observers.clipboardReceived(text)
		},
		FeatureData: func(payload []byte) {
			c.observers.featureData(payload)
		},
	}
}
