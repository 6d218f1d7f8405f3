package feature

import (
	"context"

	"github.com/google/uuid"
)

// Operation is a generic control verb carried by Router.Control.
type Operation int

const (
	// OperationStart asks the provider to begin the feature.
	OperationStart Operation = iota
	// OperationStop asks the provider to end the feature.
	OperationStop
	// OperationSet asks the provider to apply new arguments to an already
	// running feature.
	OperationSet
)

// String returns the operation name.
func (op Operation) String() string {
	switch op {
	case OperationStart:
		return "start"
	case OperationStop:
		return "stop"
	case OperationSet:
		return "set"
	default:
		return "unknown"
	}
}

// Args carries operation parameters. Providers define their own keys.
type Args map[string]any

// Provider is a feature plugin. Implementations are supplied externally
// and registered once at startup; the catalog and router never re-discover
// capabilities after construction.
//
// All dispatch methods return whether the provider claimed the call.
// Returning false passes the call on; it is never an error.
type Provider interface {
	// UID identifies the provider itself.
	UID() uuid.UUID

	// Features returns the provider's immutable feature list.
	Features() []Feature

	// MetaFeature returns the grouping feature for featureID, or the
	// feature itself when it is not a variant of anything. Returns
	// ZeroFeature for ids the provider does not own.
	MetaFeature(featureID uuid.UUID) Feature

	// Control applies a generic operation to the feature on the targets.
	Control(ctx context.Context, featureID uuid.UUID, op Operation, args Args, targets []*ComputerControl) bool

	// Start begins the feature on the targets.
	Start(ctx context.Context, f Feature, targets []*ComputerControl) bool

	// Stop ends the feature on the targets.
	Stop(ctx context.Context, f Feature, targets []*ComputerControl) bool

	// HandleSessionMessage processes a message that arrived on a per-host
	// session receiver.
	HandleSessionMessage(target *ComputerControl, msg Message) bool

	// HandleControllerMessage processes a message observed on the
	// controller side for the given target.
	HandleControllerMessage(ctx context.Context, target *ComputerControl, msg Message) bool

	// HandleHelperMessage processes a message inside a per-feature helper
	// process.
	HandleHelperMessage(msg Message) bool

	// Active reports whether the feature is currently running on the
	// target from the provider's point of view.
	Active(target *ComputerControl, featureID uuid.UUID) bool
}
