package remote

import "time"

// Config carries the timing knobs for one session engine. Zero values are
// not valid; start from DefaultConfig and override.
type Config struct {
	// ConnectTimeout bounds a single connection attempt.
	ConnectTimeout time.Duration
	// ConnectRetryDelay is the pause between doomed attempts.
	ConnectRetryDelay time.Duration
	// MessageWaitTimeout bounds a single blocking wait for inbound data.
	MessageWaitTimeout time.Duration
	// FastUpdateInterval is the pacing floor when streaming live.
	FastUpdateInterval time.Duration
	// SlowUpdateInterval is the pacing used for background monitoring.
	SlowUpdateInterval time.Duration
	// WatchdogTimeout is how long the engine tolerates silence before
	// forcing a full refresh. The effective timeout is never below twice
	// the update interval.
	WatchdogTimeout time.Duration
	// StopGracePeriod is how long Stop waits for the session goroutine to
	// exit before abandoning it.
	StopGracePeriod time.Duration
	// ProbeTimeout bounds the host reachability probe used to classify
	// connection failures.
	ProbeTimeout time.Duration
	// Port is the streaming server port.
	Port int
	// Quality is the initial stream quality.
	Quality Quality
	// UseRemoteCursor requests server-side cursor rendering.
	UseRemoteCursor bool
}

// DefaultConfig returns the stock session timing.
func DefaultConfig() Config {
	return Config{
		ConnectTimeout:     10 * time.Second,
		ConnectRetryDelay:  time.Second,
		MessageWaitTimeout: 500 * time.Millisecond,
		FastUpdateInterval: 100 * time.Millisecond,
		SlowUpdateInterval: time.Second,
		WatchdogTimeout:    10 * time.Second,
		StopGracePeriod:    30 * time.Second,
		ProbeTimeout:       3 * time.Second,
		Port:               11100,
		Quality:            QualityMedium,
	}
}

// UpdateInterval maps an update mode to its pacing interval. Disabled and
// zero-valued modes stream as fast as the server sends.
func (c Config) UpdateInterval(mode UpdateMode) time.Duration {
	switch mode {
	case UpdateLive:
		return c.FastUpdateInterval
	case UpdateMonitor, UpdateBasic:
		return c.SlowUpdateInterval
	default:
		return 0
	}
}

// effectiveWatchdog returns the silence tolerance for the given update
// interval, keeping the watchdog from firing between paced updates.
func (c Config) effectiveWatchdog(interval time.Duration) time.Duration {
	if w := 2 * interval; w > c.WatchdogTimeout {
		return w
	}
	return c.WatchdogTimeout
}
