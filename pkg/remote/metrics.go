package remote

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks session engine activity. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	sessionsActive     prometheus.Gauge
	connectAttempts    prometheus.Counter
	connectFailures    *prometheus.CounterVec
	framebufferUpdates prometheus.Counter
	watchdogRefreshes  prometheus.Counter
	eventsFired        prometheus.Counter
	eventsDiscarded    prometheus.Counter
}

// NewMetrics registers the session metrics with the given registerer. Pass
// prometheus.DefaultRegisterer for global metrics.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		sessionsActive: factory.NewGauge(prometheus.GaugeOpts{
			Name: "warden_sessions_active",
			Help: "Number of session engines currently running.",
		}),
		connectAttempts: factory.NewCounter(prometheus.CounterOpts{
			Name: "warden_connect_attempts_total",
			Help: "Total connection attempts across all sessions.",
		}),
		connectFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "warden_connect_failures_total",
			Help: "Connection failures by classified state.",
		}, []string{"state"}),
		framebufferUpdates: factory.NewCounter(prometheus.CounterOpts{
			Name: "warden_framebuffer_updates_total",
			Help: "Completed framebuffer update passes.",
		}),
		watchdogRefreshes: factory.NewCounter(prometheus.CounterOpts{
			Name: "warden_watchdog_refreshes_total",
			Help: "Full refreshes forced by the update watchdog.",
		}),
		eventsFired: factory.NewCounter(prometheus.CounterOpts{
			Name: "warden_events_fired_total",
			Help: "Queued events sent to remote hosts.",
		}),
		eventsDiscarded: factory.NewCounter(prometheus.CounterOpts{
			Name: "warden_events_discarded_total",
			Help: "Queued events dropped at session teardown.",
		}),
	}
}

func (m *Metrics) sessionStarted() {
	if m != nil {
		m.sessionsActive.Inc()
	}
}

func (m *Metrics) sessionStopped() {
	if m != nil {
		m.sessionsActive.Dec()
	}
}

func (m *Metrics) connectAttempt() {
	if m != nil {
		m.connectAttempts.Inc()
	}
}

func (m *Metrics) connectFailed(state ConnectionState) {
	if m != nil {
		m.connectFailures.WithLabelValues(state.String()).Inc()
	}
}

func (m *Metrics) framebufferUpdated() {
	if m != nil {
		m.framebufferUpdates.Inc()
	}
}

func (m *Metrics) watchdogRefresh() {
	if m != nil {
		m.watchdogRefreshes.Inc()
	}
}

func (m *Metrics) eventFired() {
	if m != nil {
		m.eventsFired.Inc()
	}
}

func (m *Metrics) eventDiscarded() {
	if m != nil {
		m.eventsDiscarded.Inc()
	}
}
