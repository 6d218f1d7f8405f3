package feature

import "github.com/google/uuid"

// Flags describe how a feature behaves.
type Flags uint32

const (
	// FlagMode marks a feature that exclusively occupies a target's
	// foreground state. At most one mode feature is active per target.
	FlagMode Flags = 1 << iota
	// FlagAction marks a one-shot operation.
	FlagAction
	// FlagOption marks a toggleable setting.
	FlagOption
	// FlagMeta marks a grouping feature that is never started itself but
	// groups alternate variants of one base action.
	FlagMeta
)

// Feature is an immutable descriptor of one controllable capability.
// Providers create their features once at startup and never mutate them.
type Feature struct {
	UID       uuid.UUID
	Name      string
	Flags     Flags
	ParentUID uuid.UUID
}

// ZeroFeature is the "no such feature" sentinel.
var ZeroFeature = Feature{}

// Has reports whether all given flags are set.
func (f Feature) Has(flags Flags) bool {
	return f.Flags&flags == flags
}

// IsMode reports whether the feature carries the Mode flag.
func (f Feature) IsMode() bool { return f.Has(FlagMode) }

// IsValid reports whether the feature is a real catalogued feature rather
// than the sentinel.
func (f Feature) IsValid() bool { return f.UID != uuid.Nil }
