package remote

// ConnectionState describes where a Connection is in its lifecycle.
// Only the owning session goroutine transitions the state; all other
// goroutines observe it read-only.
type ConnectionState int32

const (
	StateDisconnected ConnectionState = iota
	StateConnecting
	StateConnected
	StateHostOffline
	StateServerNotRunning
	StateAuthenticationFailed
	StateConnectionFailed
)

// String returns the string representation of the connection state.
func (s ConnectionState) String() string {
	switch s {
	case StateDisconnected:
		return "Disconnected"
	case StateConnecting:
		return "Connecting"
	case StateConnected:
		return "Connected"
	case StateHostOffline:
		return "HostOffline"
	case StateServerNotRunning:
		return "ServerNotRunning"
	case StateAuthenticationFailed:
		return "AuthenticationFailed"
	case StateConnectionFailed:
		return "ConnectionFailed"
	default:
		return "Unknown"
	}
}

// FramebufferState tracks how far the current connection generation has
// come in producing a usable image.
type FramebufferState int32

const (
	// FramebufferInvalid means no framebuffer exists for the current
	// connection attempt.
	FramebufferInvalid FramebufferState = iota

	// FramebufferInitialized means the handshake allocated a framebuffer
	// but no complete update batch has arrived yet.
	FramebufferInitialized

	// FramebufferValid means at least one full update batch completed.
	FramebufferValid
)

// String returns the string representation of the framebuffer state.
func (s FramebufferState) String() string {
	switch s {
	case FramebufferInvalid:
		return "Invalid"
	case FramebufferInitialized:
		return "Initialized"
	case FramebufferValid:
		return "Valid"
	default:
		return "Unknown"
	}
}

// Quality selects the stream quality negotiated with the server.
type Quality int

const (
	QualityHighest Quality = iota
	QualityHigh
	QualityMedium
	QualityLow
	QualityLowest
)

// Level maps the quality to the 0..9 scale used on the wire.
func (q Quality) Level() int {
	switch q {
	case QualityHighest:
		return 9
	case QualityHigh:
		return 7
	case QualityMedium:
		return 5
	case QualityLow:
		return 3
	case QualityLowest:
		return 0
	}
	return 5
}

// UpdateMode selects how aggressively a session requests framebuffer
// updates. It maps to an update interval via Config.UpdateInterval.
type UpdateMode int

const (
	// UpdateDisabled stops requesting updates entirely; the watchdog
	// still fires to keep the session alive.
	UpdateDisabled UpdateMode = iota

	// UpdateBasic polls at the slow interval, enough for state checks
	// and occasional screenshots.
	UpdateBasic

	// UpdateMonitor polls at the slow interval for montage views.
	UpdateMonitor

	// UpdateLive streams at the fast interval for a full remote view.
	UpdateLive
)

// String returns the string representation of the update mode.
func (m UpdateMode) String() string {
	switch m {
	case UpdateDisabled:
		return "Disabled"
	case UpdateBasic:
		return "Basic"
	case UpdateMonitor:
		return "Monitor"
	case UpdateLive:
		return "Live"
	default:
		return "Unknown"
	}
}
