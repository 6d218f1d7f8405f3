package remote

import "errors"

var (
	// ErrAlreadyRunning is returned by Connect on a running engine.
	ErrAlreadyRunning = errors.New("remote: session already running")
	// ErrNotRunning is returned by operations that need a live session.
	ErrNotRunning = errors.New("remote: session not running")
	// ErrAccessDenied marks a connection refused by the remote server for
	// authentication or authorization reasons. Transports wrap it so the
	// engine can classify the failure.
	ErrAccessDenied = errors.New("remote: access denied")
	// ErrNoFramebuffer is returned when no complete frame exists yet.
	ErrNoFramebuffer = errors.New("remote: framebuffer not available")
	// ErrStopTimeout is returned when the session goroutine does not exit
	// within the stop grace period.
	ErrStopTimeout = errors.New("remote: session did not stop in time")
)
