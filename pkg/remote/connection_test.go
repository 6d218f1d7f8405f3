package remote

import (
	"errors"
	"fmt"
	"image"
	"log/slog"
	"sync"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(testWriter{}, &slog.HandlerOptions{Level: slog.LevelError}))
}

type testWriter struct{}

func (testWriter) Write(p []byte) (int, error) { return len(p), nil }

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.ConnectRetryDelay = time.Millisecond
	cfg.MessageWaitTimeout = time.Millisecond
	cfg.FastUpdateInterval = 2 * time.Millisecond
	cfg.SlowUpdateInterval = 5 * time.Millisecond
	cfg.WatchdogTimeout = 20 * time.Millisecond
	cfg.StopGracePeriod = 2 * time.Second
	return cfg
}

// fakeLink is a scripted Link. Inbox entries are delivered one per
// ProcessMessage call.
type fakeLink struct {
	mu       sync.Mutex
	hooks    Hooks
	inbox    []func(Hooks)
	updates  []bool
	fired    []string
	closed   bool
	onUpdate func(l *fakeLink, incremental bool)
}

func (l *fakeLink) deliver(fn func(Hooks)) {
	l.mu.Lock()
	l.inbox = append(l.inbox, fn)
	l.mu.Unlock()
}

func (l *fakeLink) WaitMessage(timeout time.Duration) (bool, error) {
	l.mu.Lock()
	closed, n := l.closed, len(l.inbox)
	l.mu.Unlock()
	if closed {
		return false, errors.New("link closed")
	}
	if n > 0 {
		return true, nil
	}
	if timeout > 0 {
		time.Sleep(time.Millisecond)
	}
	return false, nil
}

func (l *fakeLink) ProcessMessage() error {
	l.mu.Lock()
	if len(l.inbox) == 0 {
		l.mu.Unlock()
		return nil
	}
	fn := l.inbox[0]
	l.inbox = l.inbox[1:]
	hooks := l.hooks
	l.mu.Unlock()
	fn(hooks)
	return nil
}

func (l *fakeLink) RequestUpdate(incremental bool) error {
	l.mu.Lock()
	l.updates = append(l.updates, incremental)
	cb := l.onUpdate
	l.mu.Unlock()
	if cb != nil {
		cb(l, incremental)
	}
	return nil
}

func (l *fakeLink) record(s string) error {
	l.mu.Lock()
	l.fired = append(l.fired, s)
	l.mu.Unlock()
	return nil
}

func (l *fakeLink) SendPointerEvent(x, y, buttons int) error {
	return l.record(fmt.Sprintf("pointer %d,%d %d", x, y, buttons))
}

func (l *fakeLink) SendKeyEvent(code uint32, pressed bool) error {
	return l.record(fmt.Sprintf("key %d %v", code, pressed))
}

func (l *fakeLink) SendClipboardText(text string) error {
	return l.record("clipboard " + text)
}

func (l *fakeLink) SendFormat(quality int, remoteCursor bool) error {
	return l.record(fmt.Sprintf("format %d %v", quality, remoteCursor))
}

func (l *fakeLink) SendFeatureData(payload []byte) error {
	return l.record("feature " + string(payload))
}

func (l *fakeLink) Close() error {
	l.mu.Lock()
	l.closed = true
	l.mu.Unlock()
	return nil
}

func (l *fakeLink) firedEvents() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.fired...)
}

func (l *fakeLink) updateRequests() []bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]bool(nil), l.updates...)
}

// fakeTransport hands out fakeLinks, or fails with connectErr.
type fakeTransport struct {
	mu         sync.Mutex
	links      []*fakeLink
	connectErr error
	reachable  bool
	width      int
	height     int
	onUpdate   func(l *fakeLink, incremental bool)
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{reachable: true, width: 64, height: 48}
}

func (t *fakeTransport) Connect(host string, port int, hooks Hooks) (Link, error) {
	t.mu.Lock()
	err := t.connectErr
	reachable := t.reachable
	t.mu.Unlock()

	if reachable && hooks.ServerReachable != nil {
		hooks.ServerReachable()
	}
	if err != nil {
		return nil, err
	}
	if err := hooks.InitFramebuffer(t.width, t.height, 4); err != nil {
		return nil, err
	}
	l := &fakeLink{hooks: hooks, onUpdate: t.onUpdate}
	t.mu.Lock()
	t.links = append(t.links, l)
	t.mu.Unlock()
	return l, nil
}

func (t *fakeTransport) link(i int) *fakeLink {
	t.mu.Lock()
	defer t.mu.Unlock()
	if i >= len(t.links) {
		return nil
	}
	return t.links[i]
}

func (t *fakeTransport) linkCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.links)
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestConnectLifecycle(t *testing.T) {
	tr := newFakeTransport()
	c := New("host-a", testConfig(), tr, WithLogger(testLogger()))

	if c.State() != StateDisconnected {
		t.Fatalf("initial state = %v, want %v", c.State(), StateDisconnected)
	}
	if err := c.Connect(); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if err := c.Connect(); !errors.Is(err, ErrAlreadyRunning) {
		t.Fatalf("second Connect = %v, want ErrAlreadyRunning", err)
	}

	waitFor(t, time.Second, func() bool { return c.State() == StateConnected })

	if err := c.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if c.State() != StateDisconnected {
		t.Fatalf("state after Stop = %v, want %v", c.State(), StateDisconnected)
	}
	if err := c.Stop(); err != nil {
		t.Fatalf("second Stop: %v", err)
	}
}

func TestClassifyFailure(t *testing.T) {
	errDial := errors.New("dial failed")

	tests := []struct {
		name      string
		err       error
		reachable bool
		fbInit    bool
		skipProbe bool
		hostUp    bool
		want      ConnectionState
	}{
		{"host offline", errDial, false, false, false, false, StateHostOffline},
		{"server not running", errDial, false, false, false, true, StateServerNotRunning},
		{"probe skipped", errDial, false, false, true, true, StateHostOffline},
		{"dropped before framebuffer init", errDial, true, false, false, true, StateAuthenticationFailed},
		{"dropped after framebuffer init", errDial, true, true, false, true, StateConnectionFailed},
		{"access denied", fmt.Errorf("rejected: %w", ErrAccessDenied), true, false, false, true, StateAuthenticationFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New("host-b", testConfig(), newFakeTransport(),
				WithLogger(testLogger()),
				WithProber(func(host string) bool { return tt.hostUp }))
			c.flags.serverReachable.Store(tt.reachable)
			c.flags.skipProbe.Store(tt.skipProbe)
			if tt.fbInit {
				c.fb.init(8, 8)
			}
			if got := c.classifyFailure(tt.err); got != tt.want {
				t.Errorf("classifyFailure() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFailureStateObserved(t *testing.T) {
	tr := newFakeTransport()
	tr.connectErr = errors.New("dial failed")
	tr.reachable = false

	c := New("host-c", testConfig(), tr,
		WithLogger(testLogger()),
		WithProber(func(host string) bool { return false }))

	var mu sync.Mutex
	var states []ConnectionState
	c.AddObserver(&Observer{StateChanged: func(s ConnectionState) {
		mu.Lock()
		states = append(states, s)
		mu.Unlock()
	}})

	if err := c.Connect(); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	waitFor(t, time.Second, func() bool { return c.State() == StateHostOffline })
	if err := c.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(states) < 2 || states[0] != StateConnecting {
		t.Fatalf("observed states = %v, want Connecting first", states)
	}
}

func TestEventOrder(t *testing.T) {
	tr := newFakeTransport()
	c := New("host-d", testConfig(), tr, WithLogger(testLogger()))

	if err := c.Connect(); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer c.Stop()
	waitFor(t, time.Second, func() bool { return c.State() == StateConnected })

	c.SendPointerEvent(1, 2, 0)
	c.SendKeyEvent(65, true)
	c.SendClipboardText("hello")

	waitFor(t, time.Second, func() bool {
		l := tr.link(0)
		return l != nil && len(l.firedEvents()) >= 4
	})

	// First entry is the initial format negotiation.
	got := tr.link(0).firedEvents()[1:4]
	want := []string{"pointer 1,2 0", "key 65 true", "clipboard hello"}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("event[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestEventsDiscardedOnTeardown(t *testing.T) {
	c := New("host-e", testConfig(), newFakeTransport(), WithLogger(testLogger()))
	c.queue.push(ClipboardEvent{Text: "never sent"})
	c.queue.push(KeyEvent{Code: 13, Pressed: true})

	c.discardEvents()
	if !c.queue.empty() {
		t.Error("event queue not drained at teardown")
	}
}

func TestEnqueueDroppedWhenDisconnected(t *testing.T) {
	c := New("host-e2", testConfig(), newFakeTransport(), WithLogger(testLogger()))
	c.SendClipboardText("dropped")
	if !c.queue.empty() {
		t.Error("event enqueued while disconnected")
	}
}

func TestFramebufferUpdateCycle(t *testing.T) {
	tr := newFakeTransport()
	tr.onUpdate = func(l *fakeLink, incremental bool) {
		pixels := make([]byte, 8*8*4)
		for i := range pixels {
			pixels[i] = 0xff
		}
		l.deliver(func(h Hooks) { h.RectUpdated(0, 0, 8, 8, pixels) })
		l.deliver(func(h Hooks) { h.UpdateFinished() })
	}

	c := New("host-f", testConfig(), tr, WithLogger(testLogger()))
	if err := c.Connect(); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer c.Stop()

	waitFor(t, time.Second, func() bool {
		return c.FramebufferState() == FramebufferValid
	})

	img, err := c.CurrentImage()
	if err != nil {
		t.Fatalf("CurrentImage: %v", err)
	}
	if got := img.Bounds().Size(); got != (image.Point{X: 64, Y: 48}) {
		t.Fatalf("framebuffer size = %v, want 64x48", got)
	}
	if r, _, _, _ := img.At(4, 4).RGBA(); r == 0 {
		t.Error("painted rect not applied")
	}

	c.SetScaledSize(32, 24)
	scaled, err := c.ScaledImage()
	if err != nil {
		t.Fatalf("ScaledImage: %v", err)
	}
	if got := scaled.Bounds().Size(); got != (image.Point{X: 32, Y: 24}) {
		t.Fatalf("scaled size = %v, want 32x24", got)
	}
}

func TestWatchdogForcesFullRefresh(t *testing.T) {
	cfg := testConfig()
	cfg.WatchdogTimeout = 10 * time.Millisecond

	// No paced updates and a link that never completes one, so only the
	// watchdog can issue the second request.
	tr := newFakeTransport()
	c := New("host-g", cfg, tr, WithLogger(testLogger()))

	if err := c.Connect(); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer c.Stop()

	waitFor(t, time.Second, func() bool {
		l := tr.link(0)
		return l != nil && len(l.updateRequests()) >= 2
	})

	for i, incremental := range tr.link(0).updateRequests()[:2] {
		if incremental {
			t.Errorf("update[%d] incremental, want full refresh", i)
		}
	}
}

func TestPacedUpdatesFireOncePerInterval(t *testing.T) {
	cfg := testConfig()
	cfg.WatchdogTimeout = time.Second

	// Only the initial full update completes; the screen stays idle after.
	var once sync.Once
	tr := newFakeTransport()
	tr.onUpdate = func(l *fakeLink, incremental bool) {
		once.Do(func() {
			l.deliver(func(h Hooks) { h.RectUpdated(0, 0, 1, 1, make([]byte, 4)) })
			l.deliver(func(h Hooks) { h.UpdateFinished() })
		})
	}

	c := New("host-j", cfg, tr, WithLogger(testLogger()))
	c.SetUpdateInterval(25 * time.Millisecond)

	if err := c.Connect(); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer c.Stop()

	waitFor(t, time.Second, func() bool {
		return c.FramebufferState() == FramebufferValid
	})
	time.Sleep(150 * time.Millisecond)

	n := len(tr.link(0).updateRequests())
	if n > 12 {
		t.Errorf("%d update requests in 150ms at a 25ms interval, want about 7", n)
	}
	if n < 3 {
		t.Errorf("%d update requests, pacing stalled", n)
	}
}

func TestRestartEstablishesNewLink(t *testing.T) {
	tr := newFakeTransport()
	c := New("host-h", testConfig(), tr, WithLogger(testLogger()))

	if err := c.Connect(); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer c.Stop()

	waitFor(t, time.Second, func() bool { return c.State() == StateConnected })
	c.Restart()
	waitFor(t, time.Second, func() bool { return tr.linkCount() >= 2 })

	l := tr.link(0)
	l.mu.Lock()
	closed := l.closed
	l.mu.Unlock()
	if !closed {
		t.Error("first link not closed after restart")
	}
}

func TestRestartPublishesDisconnected(t *testing.T) {
	tr := newFakeTransport()
	c := New("host-k", testConfig(), tr, WithLogger(testLogger()))

	var mu sync.Mutex
	var states []ConnectionState
	c.AddObserver(&Observer{StateChanged: func(s ConnectionState) {
		mu.Lock()
		states = append(states, s)
		mu.Unlock()
	}})

	if err := c.Connect(); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer c.Stop()
	waitFor(t, time.Second, func() bool { return c.State() == StateConnected })

	c.Restart()
	waitFor(t, time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(states) >= 5
	})

	mu.Lock()
	defer mu.Unlock()
	// Teardown between the two generations must pass through Disconnected.
	want := []ConnectionState{
		StateConnecting, StateConnected,
		StateDisconnected,
		StateConnecting, StateConnected,
	}
	for i := range want {
		if states[i] != want[i] {
			t.Fatalf("observed states = %v, want %v", states[:len(want)], want)
		}
	}
}

func TestReconnectAfterLinkFailure(t *testing.T) {
	tr := newFakeTransport()
	c := New("host-i", testConfig(), tr, WithLogger(testLogger()))

	if err := c.Connect(); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer c.Stop()

	waitFor(t, time.Second, func() bool { return tr.linkCount() >= 1 })
	tr.link(0).Close()
	waitFor(t, time.Second, func() bool { return tr.linkCount() >= 2 })
	waitFor(t, time.Second, func() bool { return c.State() == StateConnected })
}

func TestUpdateModePacing(t *testing.T) {
	cfg := testConfig()
	tests := []struct {
		mode UpdateMode
		want time.Duration
	}{
		{UpdateDisabled, 0},
		{UpdateBasic, cfg.SlowUpdateInterval},
		{UpdateMonitor, cfg.SlowUpdateInterval},
		{UpdateLive, cfg.FastUpdateInterval},
	}
	for _, tt := range tests {
		if got := cfg.UpdateInterval(tt.mode); got != tt.want {
			t.Errorf("UpdateInterval(%v) = %v, want %v", tt.mode, got, tt.want)
		}
	}
}

func TestPacingRemainder(t *testing.T) {
	tests := []struct {
		interval time.Duration
		elapsed  time.Duration
		want     time.Duration
	}{
		{50 * time.Millisecond, 10 * time.Millisecond, 40 * time.Millisecond},
		{50 * time.Millisecond, 50 * time.Millisecond, 0},
		{50 * time.Millisecond, 70 * time.Millisecond, 0},
		{50 * time.Millisecond, 0, 50 * time.Millisecond},
	}
	for _, tt := range tests {
		if got := pacingRemainder(tt.interval, tt.elapsed); got != tt.want {
			t.Errorf("pacingRemainder(%v, %v) = %v, want %v", tt.interval, tt.elapsed, got, tt.want)
		}
	}
}

func TestEffectiveWatchdog(t *testing.T) {
	cfg := DefaultConfig()
	if got := cfg.effectiveWatchdog(time.Millisecond); got != cfg.WatchdogTimeout {
		t.Errorf("effectiveWatchdog(1ms) = %v, want %v", got, cfg.WatchdogTimeout)
	}
	if got := cfg.effectiveWatchdog(time.Minute); got != 2*time.Minute {
		t.Errorf("effectiveWatchdog(1m) = %v, want 2m", got)
	}
}
