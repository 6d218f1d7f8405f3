// Package remote implements the per-host session engine of the warden
// control plane.
//
// A Connection owns one dedicated goroutine that establishes, maintains,
// monitors and recovers a streaming framebuffer session against a single
// host. The goroutine runs a connect/stream/teardown loop: connection
// failures are classified into observable states and retried with backoff,
// inbound messages feed a synchronized framebuffer store, and a watchdog
// forces a full refresh when the stream goes silent. Other goroutines
// interact with the engine only through thread-safe surfaces: the decoded
// image (copy-on-read), a lazily rescaled copy, an ordered queue of outgoing
// input events, and observer callbacks.
//
// The wire transport is supplied externally through the Transport and Link
// interfaces; pkg/protocol provides the production implementation.
package remote
