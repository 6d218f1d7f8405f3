package feature

import (
	"sync"

	"github.com/google/uuid"

	"github.com/warden-rc/warden/pkg/remote"
)

// ComputerControl is the per-target handle bundling one remote session
// with feature bookkeeping: the set of active feature ids, the designated
// mode feature, and helper process liveness.
//
// All methods are safe for concurrent use.
type ComputerControl struct {
	conn *remote.Connection

	mu      sync.Mutex
	active  map[uuid.UUID]struct{}
	mode    uuid.UUID
	helpers map[uuid.UUID]struct{}
}

// NewComputerControl wraps a session engine in a controllable target.
func NewComputerControl(conn *remote.Connection) *ComputerControl {
	return &ComputerControl{
		conn:    conn,
		active:  make(map[uuid.UUID]struct{}),
		helpers: make(map[uuid.UUID]struct{}),
	}
}

// Connection returns the underlying session engine.
func (c *ComputerControl) Connection() *remote.Connection {
	return c.conn
}

// Host returns the target host name.
func (c *ComputerControl) Host() string {
	return c.conn.Host()
}

// SendMessage encodes and queues a feature message for the target.
func (c *ComputerControl) SendMessage(msg Message) error {
	data, err := msg.Encode()
	if err != nil {
		return err
	}
	c.conn.SendFeatureData(data)
	return nil
}

// SetDesignatedModeFeature designates the mode feature occupying this
// target, replacing any previous designation.
func (c *ComputerControl) SetDesignatedModeFeature(featureID uuid.UUID) {
	c.mu.Lock()
	c.mode = featureID
	c.mu.Unlock()
}

// DesignatedModeFeature returns the designated mode feature id, or
// uuid.Nil when none is designated.
func (c *ComputerControl) DesignatedModeFeature() uuid.UUID {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mode
}

// setActiveFeatures replaces the active-feature bookkeeping wholesale.
func (c *ComputerControl) setActiveFeatures(ids []uuid.UUID) {
	active := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		active[id] = struct{}{}
	}
	c.mu.Lock()
	c.active = active
	c.mu.Unlock()
}

// ActiveFeatures returns the ids recorded by the last bookkeeping refresh.
func (c *ComputerControl) ActiveFeatures() []uuid.UUID {
	c.mu.Lock()
	defer c.mu.Unlock()
	ids := make([]uuid.UUID, 0, len(c.active))
	for id := range c.active {
		ids = append(ids, id)
	}
	return ids
}

// FeatureActive reports whether the feature was active at the last
// bookkeeping refresh.
func (c *ComputerControl) FeatureActive(featureID uuid.UUID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.active[featureID]
	return ok
}

// SetHelperRunning records whether an out-of-process helper for the
// feature is alive on this target. Liveness is reported externally by the
// session layer.
func (c *ComputerControl) SetHelperRunning(featureID uuid.UUID, running bool) {
	c.mu.Lock()
	if running {
		c.helpers[featureID] = struct{}{}
	} else {
		delete(c.helpers, featureID)
	}
	c.mu.Unlock()
}

// HelperRunning reports whether a helper for the feature is alive.
func (c *ComputerControl) HelperRunning(featureID uuid.UUID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.helpers[featureID]
	return ok
}

// SetUpdateMode adjusts the session's framebuffer streaming intensity.
func (c *ComputerControl) SetUpdateMode(mode remote.UpdateMode) {
	c.conn.SetUpdateMode(mode)
}
