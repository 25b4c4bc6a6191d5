package entity

import (
	"fmt"

	"github.com/nerrad567/hcbridge/internal/appliance"
)

// ValueFunc derives an extra attribute from a capability entity.
type ValueFunc func(e *appliance.Entity) (any, error)

// ExtraAttribute adds a named attribute sourced from a capability entity.
// Without ValueFn the source's raw value is copied.
type ExtraAttribute struct {
	Name    string
	Entity  string
	ValueFn ValueFunc
}

// Description declares one projected entity. Treat it as immutable once
// built.
type Description struct {
	Kind Kind
	Key  string
	Name string

	// Entity is the primary capability; Entities are secondary ones.
	Entity   string
	Entities []string

	// AvailableAccess overrides the kind's default access allow-list.
	AvailableAccess []appliance.Access

	DeviceClass string
	Unit        string
	Icon        string
	Category    string
	StateClass  string

	HasStateTranslation bool
	Mapping             map[string]string

	// Options are the event sensor's output labels, paired in order with
	// the primary and secondary entities; the last one is the idle label.
	Options []string

	ValueOn  []string
	ValueOff []string

	// DefaultProgram is the program a fan starts when none is active.
	DefaultProgram string

	Min  *float64
	Max  *float64
	Step *float64

	ExtraAttributes []ExtraAttribute
}

// Validate checks kind-specific requirements.
func (d Description) Validate() error {
	if d.Key == "" {
		return fmt.Errorf("%w: empty key", ErrInvalidDescription)
	}
	if !d.Kind.Valid() {
		return fmt.Errorf("%w: %s: unknown kind %q", ErrInvalidDescription, d.Key, d.Kind)
	}
	switch d.Kind {
	case KindEventSensor:
		if len(d.Options) == 0 {
			return fmt.Errorf("%w: %s: event sensor needs options", ErrInvalidDescription, d.Key)
		}
	case KindFan:
		if len(d.Entities) == 0 {
			return fmt.Errorf("%w: %s: fan needs speed entities", ErrInvalidDescription, d.Key)
		}
	case KindSensor, KindBinarySensor, KindSwitch, KindNumber, KindSelect, KindButton:
		if d.Entity == "" {
			return fmt.Errorf("%w: %s: %s needs an entity", ErrInvalidDescription, d.Key, d.Kind)
		}
	}
	return nil
}

// References returns the primary and secondary capability names.
func (d Description) References() []string {
	out := make([]string, 0, 1+len(d.Entities))
	if d.Entity != "" {
		out = append(out, d.Entity)
	}
	return append(out, d.Entities...)
}

// AllowedAccess returns the effective access allow-list.
func (d Description) AllowedAccess() []appliance.Access {
	if len(d.AvailableAccess) > 0 {
		return d.AvailableAccess
	}
	return d.Kind.DefaultAccess()
}
