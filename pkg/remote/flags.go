package remote

import "sync/atomic"

// controlFlags are the independent session directives mutated from multiple
// goroutines. Each flag is its own atomic so unrelated concerns never
// serialize on a shared lock and no flag write can clobber another.
type controlFlags struct {
	// terminate requests the session goroutine to exit for good.
	terminate atomic.Bool

	// restart requests the current session be torn down and
	// re-established at the next loop checkpoint.
	restart atomic.Bool

	// serverReachable records that the transport confirmed the socket
	// during the current connection attempt.
	serverReachable atomic.Bool

	// scaledDirty marks the scaled framebuffer cache stale.
	scaledDirty atomic.Bool

	// triggerUpdate requests one immediate incremental refresh.
	triggerUpdate atomic.Bool

	// skipProbe disables the host reachability probe on failure
	// classification.
	skipProbe atomic.Bool

	// manualRateControl enables the legacy pacing sleep for servers that
	// do not rate-limit updates themselves.
	manualRateControl atomic.Bool

	// deleteOnFinish releases all resources when the goroutine exits.
	deleteOnFinish atomic.Bool
}
