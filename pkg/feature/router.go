package feature

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// RouterOption configures a Router.
type RouterOption func(*Router)

// WithRouterLogger sets the router logger. Defaults to slog.Default.
func WithRouterLogger(logger *slog.Logger) RouterOption {
	return func(r *Router) { r.logger = logger }
}

// WithDisabledFeatures sets the feature ids rejected by policy at the
// controller boundary.
func WithDisabledFeatures(ids ...uuid.UUID) RouterOption {
	return func(r *Router) {
		for _, id := range ids {
			r.disabled[id] = struct{}{}
		}
	}
}

// WithTracerProvider overrides the tracer provider used for dispatch
// spans.
func WithTracerProvider(tp trace.TracerProvider) RouterOption {
	return func(r *Router) { r.tracer = tp.Tracer("warden/feature") }
}

// Router carries control operations and inbound feature messages to the
// registered providers. It executes synchronously on the calling
// goroutine; providers are expected to be non-blocking and to hand off
// slow work themselves.
type Router struct {
	catalog  *Catalog
	disabled map[uuid.UUID]struct{}
	logger   *slog.Logger
	tracer   trace.Tracer
}

// NewRouter builds a router over the given catalog.
func NewRouter(catalog *Catalog, opts ...RouterOption) *Router {
	r := &Router{
		catalog:  catalog,
		disabled: make(map[uuid.UUID]struct{}),
		logger:   slog.Default(),
		tracer:   otel.Tracer("warden/feature"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Catalog returns the catalog the router dispatches over.
func (r *Router) Catalog() *Catalog {
	return r.catalog
}

// Disabled reports whether the feature is rejected by policy.
func (r *Router) Disabled(featureID uuid.UUID) bool {
	_, ok := r.disabled[featureID]
	return ok
}

// Control applies a generic operation to a feature on the targets. Every
// provider gets a chance to react; only the owner is expected to. Active
// feature bookkeeping on each target is refreshed afterwards,
// unconditionally.
func (r *Router) Control(ctx context.Context, featureID uuid.UUID, op Operation, args Args, targets []*ComputerControl) {
	ctx, span := r.tracer.Start(ctx, "feature.control",
		trace.WithAttributes(
			attribute.String("feature.id", featureID.String()),
			attribute.String("feature.operation", op.String()),
		))
	defer span.End()

	for _, p := range r.catalog.Providers() {
		p.Control(ctx, featureID, op, args, targets)
	}
	r.refreshActiveFeatures(targets)
}

// Start begins a feature on the targets. A Mode-flagged feature becomes
// each target's designated mode feature, replacing any previous designee.
func (r *Router) Start(ctx context.Context, f Feature, targets []*ComputerControl) {
	ctx, span := r.tracer.Start(ctx, "feature.start",
		trace.WithAttributes(attribute.String("feature.id", f.UID.String())))
	defer span.End()

	for _, p := range r.catalog.Providers() {
		p.Start(ctx, f, targets)
	}
	if f.IsMode() {
		for _, t := range targets {
			t.SetDesignatedModeFeature(f.UID)
		}
	}
	r.refreshActiveFeatures(targets)
}

// Stop ends a feature on the targets, clearing the mode designation on
// targets where this feature was the designee.
func (r *Router) Stop(ctx context.Context, f Feature, targets []*ComputerControl) {
	ctx, span := r.tracer.Start(ctx, "feature.stop",
		trace.WithAttributes(attribute.String("feature.id", f.UID.String())))
	defer span.End()

	for _, p := range r.catalog.Providers() {
		p.Stop(ctx, f, targets)
	}
	if f.IsMode() {
		for _, t := range targets {
			if t.DesignatedModeFeature() == f.UID {
				t.SetDesignatedModeFeature(uuid.Nil)
			}
		}
	}
	r.refreshActiveFeatures(targets)
}

// DispatchFromSession offers a message received on a per-host session to
// every provider and reports whether any claimed it.
func (r *Router) DispatchFromSession(target *ComputerControl, msg Message) bool {
	handled := false
	for _, p := range r.catalog.Providers() {
		if p.HandleSessionMessage(target, msg) {
			handled = true
		}
	}
	if !handled {
		r.logger.Debug("unhandled session feature message",
			"feature", msg.FeatureUID, "host", target.Host())
	}
	return handled
}

// DispatchAtController offers a controller-side message to every provider.
// Messages for features disabled by policy are logged and dropped without
// invoking any provider.
func (r *Router) DispatchAtController(ctx context.Context, target *ComputerControl, msg Message) bool {
	if r.Disabled(msg.FeatureUID) {
		r.logger.Warn("dropping message for feature disabled by policy",
			"feature", msg.FeatureUID, "host", target.Host())
		return false
	}
	handled := false
	for _, p := range r.catalog.Providers() {
		if p.HandleControllerMessage(ctx, target, msg) {
			handled = true
		}
	}
	return handled
}

// DispatchAtHelper offers a message to every provider inside a helper
// process. Policy is enforced once at the controller boundary, not here.
func (r *Router) DispatchAtHelper(msg Message) bool {
	handled := false
	for _, p := range r.catalog.Providers() {
		if p.HandleHelperMessage(msg) {
			handled = true
		}
	}
	return handled
}

// ActiveFeatures returns every catalogued feature currently active on the
// target, either reported active by its provider or backed by a live
// helper process.
func (r *Router) ActiveFeatures(target *ComputerControl) []uuid.UUID {
	var active []uuid.UUID
	for _, p := range r.catalog.Providers() {
		for _, f := range p.Features() {
			if p.Active(target, f.UID) || target.HelperRunning(f.UID) {
				active = append(active, f.UID)
			}
		}
	}
	return active
}

func (r *Router) refreshActiveFeatures(targets []*ComputerControl) {
	for _, t := range targets {
		t.setActiveFeatures(r.ActiveFeatures(t))
	}
}
