package appliance

import (
	"context"
	"fmt"
	"math"
	"sync"
)

// EntityType groups capability entities the way appliance descriptions do.
type EntityType string

// Capability entity groups.
const (
	TypeStatus  EntityType = "status"
	TypeSetting EntityType = "setting"
	TypeEvent   EntityType = "event"
	TypeCommand EntityType = "command"
	TypeOption  EntityType = "option"
	TypeProgram EntityType = "program"
)

// EnumOption is one entry of an entity's enumeration.
type EnumOption struct {
	Value int
	Label string
}

// Listener receives value notifications from a capability entity.
//
// Listeners are keyed by identity, so implementations must be comparable
// (pointer receivers in practice).
type Listener interface {
	OnEntityUpdate(e *Entity)
}

// valueWriter sends value writes to the appliance.
type valueWriter interface {
	writeValue(ctx context.Context, uid int, value any) error
}

// Entity is a single capability exposed by an appliance.
type Entity struct {
	uid    int
	name   string
	typ    EntityType
	enum   []EnumOption
	writer valueWriter

	mu        sync.RWMutex
	value     any
	access    Access
	available bool
	min       *float64
	max       *float64
	step      *float64

	listenersMu sync.Mutex
	listeners   map[Listener]struct{}
}

// EntityConfig holds the static attributes used to build an Entity.
type EntityConfig struct {
	UID       int
	Name      string
	Type      EntityType
	Access    Access
	Available bool
	Enum      []EnumOption
	Min       *float64
	Max       *float64
	Step      *float64
	Value     any
}

// NewEntity creates a detached entity. Writes on a detached entity fail
// with ErrNotConnected; entities built by an Appliance are attached to it.
func NewEntity(cfg EntityConfig) *Entity {
	e := &Entity{
		uid:       cfg.UID,
		name:      cfg.Name,
		typ:       cfg.Type,
		enum:      cfg.Enum,
		access:    cfg.Access,
		available: cfg.Available,
		min:       cfg.Min,
		max:       cfg.Max,
		step:      cfg.Step,
		listeners: make(map[Listener]struct{}),
	}
	e.value = e.normalize(cfg.Value)
	return e
}

// UID returns the entity's stable numeric identifier.
func (e *Entity) UID() int { return e.uid }

// Name returns the entity's dotted name.
func (e *Entity) Name() string { return e.name }

// Type returns the description group the entity belongs to.
func (e *Entity) Type() EntityType { return e.typ }

// Enum returns the ordered enumeration, or nil when the entity has none.
func (e *Entity) Enum() []EnumOption { return e.enum }

// Access returns the current access mode.
func (e *Entity) Access() Access {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.access
}

// Available reports whether the appliance currently offers the entity.
func (e *Entity) Available() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.available
}

// Constraints returns the numeric min, max and step (nil when unset).
func (e *Entity) Constraints() (minValue, maxValue, step *float64) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.min, e.max, e.step
}

// RawValue returns the value exactly as reported by the appliance.
// Enumerated values are returned as their integer code.
func (e *Entity) RawValue() any {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.value
}

// Value returns the enumeration label for enumerated entities whose raw
// value has a label, and the raw value otherwise.
func (e *Entity) Value() any {
	raw := e.RawValue()
	if len(e.enum) == 0 {
		return raw
	}
	if code, ok := raw.(int); ok {
		if label, ok := e.Label(code); ok {
			return label
		}
	}
	return raw
}

// Label returns the label for an enumeration code.
func (e *Entity) Label(code int) (string, bool) {
	for _, opt := range e.enum {
		if opt.Value == code {
			return opt.Label, true
		}
	}
	return "", false
}

// RegisterCallback adds a listener. Registering the same listener twice has
// no additional effect.
func (e *Entity) RegisterCallback(l Listener) {
	e.listenersMu.Lock()
	defer e.listenersMu.Unlock()
	e.listeners[l] = struct{}{}
}

// UnregisterCallback removes a listener. Unknown listeners are ignored.
func (e *Entity) UnregisterCallback(l Listener) {
	e.listenersMu.Lock()
	defer e.listenersMu.Unlock()
	delete(e.listeners, l)
}

// ListenerCount returns the number of registered listeners.
func (e *Entity) ListenerCount() int {
	e.listenersMu.Lock()
	defer e.listenersMu.Unlock()
	return len(e.listeners)
}

// Update stores a new raw value and notifies every listener once.
//
// Only the session layer calls Update; projected entities never mutate
// capability values directly.
func (e *Entity) Update(raw any) {
	e.mu.Lock()
	e.value = e.normalize(raw)
	e.mu.Unlock()

	e.notify()
}

// DescriptionChange carries the attributes an appliance may change at runtime.
type DescriptionChange struct {
	Access    *Access
	Available *bool
	Min       *float64
	Max       *float64
	Step      *float64
}

// ApplyDescriptionChange updates runtime attributes and notifies listeners.
func (e *Entity) ApplyDescriptionChange(c DescriptionChange) {
	e.mu.Lock()
	if c.Access != nil {
		e.access = *c.Access
	}
	if c.Available != nil {
		e.available = *c.Available
	}
	if c.Min != nil {
		e.min = c.Min
	}
	if c.Max != nil {
		e.max = c.Max
	}
	if c.Step != nil {
		e.step = c.Step
	}
	e.mu.Unlock()

	e.notify()
}

// SetValue asks the appliance to change the entity's value. Enumeration
// labels are translated to their codes. The local value is not modified.
func (e *Entity) SetValue(ctx context.Context, v any) error {
	if !e.Access().Writable() {
		return fmt.Errorf("%w: %s", ErrNotWritable, e.name)
	}
	raw, err := e.encode(v)
	if err != nil {
		return err
	}
	if e.writer == nil {
		return ErrNotConnected
	}
	return e.writer.writeValue(ctx, e.uid, raw)
}

// notify invokes listeners outside any lock. A listener removed while the
// pass is running is skipped.
func (e *Entity) notify() {
	e.listenersMu.Lock()
	snapshot := make([]Listener, 0, len(e.listeners))
	for l := range e.listeners {
		snapshot = append(snapshot, l)
	}
	e.listenersMu.Unlock()

	for _, l := range snapshot {
		e.listenersMu.Lock()
		_, still := e.listeners[l]
		e.listenersMu.Unlock()
		if !still {
			continue
		}
		l.OnEntityUpdate(e)
	}
}

func (e *Entity) normalize(raw any) any {
	if len(e.enum) == 0 {
		return raw
	}
	if code, ok := asInt(raw); ok {
		return code
	}
	return raw
}

func (e *Entity) encode(v any) (any, error) {
	if len(e.enum) == 0 {
		return v, nil
	}
	if label, ok := v.(string); ok {
		for _, opt := range e.enum {
			if opt.Label == label {
				return opt.Value, nil
			}
		}
		return nil, fmt.Errorf("%w: %q is not an option of %s", ErrInvalidValue, label, e.name)
	}
	code, ok := asInt(v)
	if !ok {
		return nil, fmt.Errorf("%w: %v for %s", ErrInvalidValue, v, e.name)
	}
	if _, ok := e.Label(code); !ok {
		return nil, fmt.Errorf("%w: %d is not an option of %s", ErrInvalidValue, code, e.name)
	}
	return code, nil
}

// asInt converts integral numbers of any JSON-ish type to int.
func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case float64:
		if n == math.Trunc(n) {
			return int(n), true
		}
	case float32:
		if float64(n) == math.Trunc(float64(n)) {
			return int(n), true
		}
	}
	return 0, false
}
