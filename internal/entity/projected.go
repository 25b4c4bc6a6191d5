package entity

import (
	"context"
	"fmt"
	"reflect"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/hcbridge/internal/appliance"
)

// Source is the appliance surface projected entities read from.
type Source interface {
	Info() appliance.Info
	Entity(name string) (*appliance.Entity, bool)
	SessionConnected() bool
	ActiveProgram() *appliance.Program
	SelectedProgram() *appliance.Program
	Program(name string) (*appliance.Program, bool)
	StopProgram(ctx context.Context) error
	GetNetworkConfig(ctx context.Context) ([]map[string]any, error)
}

// Connectivity is the supervisor's connected flag.
type Connectivity interface {
	Connected() bool
}

// Logger interface for optional logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// PublishFunc receives every state a projected entity publishes.
type PublishFunc func(State)

// Deps are the collaborators of a projected entity.
type Deps struct {
	Appliance    Source
	Connectivity Connectivity
	Publish      PublishFunc
	Logger       Logger
}

// State is one published snapshot of a projected entity.
type State struct {
	UniqueID   string         `json:"unique_id"`
	DeviceID   string         `json:"device_id"`
	Key        string         `json:"key"`
	Kind       Kind           `json:"kind"`
	Available  bool           `json:"available"`
	Value      any            `json:"value"`
	Attributes map[string]any `json:"attributes,omitempty"`
	Timestamp  time.Time      `json:"timestamp"`

	// Changed is set when value or availability differ from the previous
	// publish of the same entity.
	Changed bool `json:"-"`
}

// Command is an instruction from the host to a projected entity.
type Command struct {
	Action CommandAction
	Value  any
}

// CommandAction names a command.
type CommandAction string

// Command actions.
const (
	CommandTurnOn        CommandAction = "turn_on"
	CommandTurnOff       CommandAction = "turn_off"
	CommandSet           CommandAction = "set"
	CommandPress         CommandAction = "press"
	CommandSetPercentage CommandAction = "set_percentage"
)

// rule is the kind-specific projection.
type rule interface {
	value(p *Projected) any
}

// Optional rule capabilities.
type (
	availabilityRule interface {
		available(p *Projected, base bool) bool
	}
	attributeRule interface {
		attributes(p *Projected) map[string]any
	}
	commandRule interface {
		command(ctx context.Context, p *Projected, cmd Command) error
	}
	pollRule interface {
		poll(ctx context.Context, p *Projected)
	}
	// watchRule adds capabilities the value depends on beyond the
	// description's references.
	watchRule interface {
		watched() []*appliance.Entity
	}
)

// Projected is one user-facing entity bound to an appliance.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
type Projected struct {
	desc     Description
	deps     Deps
	uniqueID string

	primary     *appliance.Entity
	secondaries []*appliance.Entity
	attrSources map[string]*appliance.Entity
	rule        rule

	publishing atomic.Bool

	mu            sync.Mutex
	attached      bool
	hasPublished  bool
	lastValue     any
	lastAvailable bool
}

// New resolves a description against the appliance.
//
// Parameters:
//   - desc: Entity description
//   - deps: Appliance, connectivity and publish hook
//
// Returns:
//   - *Projected: Entity ready to be added to the host
//   - error: ErrMissingCapability when a referenced capability is absent
func New(desc Description, deps Deps) (*Projected, error) {
	if err := desc.Validate(); err != nil {
		return nil, err
	}
	if deps.Appliance == nil {
		return nil, ErrNoAppliance
	}

	p := &Projected{
		desc:        desc,
		deps:        deps,
		uniqueID:    deps.Appliance.Info().DeviceID + "-" + desc.Key,
		attrSources: make(map[string]*appliance.Entity),
	}

	if desc.Entity != "" {
		e, ok := deps.Appliance.Entity(desc.Entity)
		if !ok {
			return nil, fmt.Errorf("%w: %s references %s", ErrMissingCapability, desc.Key, desc.Entity)
		}
		p.primary = e
	}
	for _, name := range desc.Entities {
		e, ok := deps.Appliance.Entity(name)
		if !ok {
			return nil, fmt.Errorf("%w: %s references %s", ErrMissingCapability, desc.Key, name)
		}
		p.secondaries = append(p.secondaries, e)
	}
	// Extra attributes whose source is absent are dropped, not fatal.
	for _, attr := range desc.ExtraAttributes {
		if e, ok := deps.Appliance.Entity(attr.Entity); ok {
			p.attrSources[attr.Entity] = e
		}
	}

	r, err := newRule(p)
	if err != nil {
		return nil, err
	}
	p.rule = r
	return p, nil
}

// UniqueID returns "<device id>-<key>".
func (p *Projected) UniqueID() string { return p.uniqueID }

// Key returns the description key.
func (p *Projected) Key() string { return p.desc.Key }

// Kind returns the description kind.
func (p *Projected) Kind() Kind { return p.desc.Kind }

// Description returns the description the entity was built from.
func (p *Projected) Description() Description { return p.desc }

// Value derives the current value from the capability values.
func (p *Projected) Value() any {
	return p.rule.value(p)
}

// Available reports whether the host should show the entity as available.
func (p *Projected) Available() bool {
	base := p.baseAvailable()
	if ar, ok := p.rule.(availabilityRule); ok {
		return ar.available(p, base)
	}
	return base
}

// baseAvailable is (supervisor connected OR session connected) AND the
// primary's access mode is allowed.
func (p *Projected) baseAvailable() bool {
	connected := p.deps.Appliance.SessionConnected()
	if p.deps.Connectivity != nil && p.deps.Connectivity.Connected() {
		connected = true
	}
	if !connected {
		return false
	}
	if p.primary == nil {
		return true
	}
	return slices.Contains(p.desc.AllowedAccess(), p.primary.Access())
}

// ExtraAttributes evaluates the configured extra attributes.
func (p *Projected) ExtraAttributes() map[string]any {
	if len(p.desc.ExtraAttributes) == 0 {
		return nil
	}
	out := make(map[string]any, len(p.desc.ExtraAttributes))
	for _, attr := range p.desc.ExtraAttributes {
		src, ok := p.attrSources[attr.Entity]
		if !ok {
			continue
		}
		if attr.ValueFn == nil {
			out[attr.Name] = src.RawValue()
			continue
		}
		out[attr.Name] = p.derive(attr, src)
	}
	return out
}

// derive runs an extra-attribute function; failures become nil.
func (p *Projected) derive(attr ExtraAttribute, src *appliance.Entity) (v any) {
	defer func() {
		if r := recover(); r != nil {
			p.logDebug("extra attribute derivation panicked",
				"key", p.desc.Key, "attribute", attr.Name, "panic", r)
			v = nil
		}
	}()
	v, err := attr.ValueFn(src)
	if err != nil {
		p.logDebug("failed to derive extra attribute",
			"key", p.desc.Key, "attribute", attr.Name, "error", err)
		return nil
	}
	return v
}

// Attributes merges rule attributes and extra attributes.
func (p *Projected) Attributes() map[string]any {
	var out map[string]any
	if ar, ok := p.rule.(attributeRule); ok {
		out = ar.attributes(p)
	}
	extra := p.ExtraAttributes()
	if len(extra) == 0 {
		return out
	}
	if out == nil {
		out = make(map[string]any, len(extra))
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}

// Snapshot returns the current state without publishing it.
func (p *Projected) Snapshot() State {
	return State{
		UniqueID:   p.uniqueID,
		DeviceID:   p.deps.Appliance.Info().DeviceID,
		Key:        p.desc.Key,
		Kind:       p.desc.Kind,
		Available:  p.Available(),
		Value:      p.Value(),
		Attributes: p.Attributes(),
		Timestamp:  time.Now().UTC(),
	}
}

// Publish computes the state and hands it to the publish hook.
func (p *Projected) Publish() {
	st := p.Snapshot()

	p.mu.Lock()
	st.Changed = !p.hasPublished ||
		p.lastAvailable != st.Available ||
		!reflect.DeepEqual(p.lastValue, st.Value)
	p.hasPublished = true
	p.lastValue = st.Value
	p.lastAvailable = st.Available
	p.mu.Unlock()

	if p.deps.Publish != nil {
		p.deps.Publish(st)
	}
}

// OnEntityUpdate implements appliance.Listener. Notifications arriving
// while this entity is already publishing are dropped.
func (p *Projected) OnEntityUpdate(_ *appliance.Entity) {
	if !p.publishing.CompareAndSwap(false, true) {
		return
	}
	defer p.publishing.Store(false)
	p.Publish()
}

// AddedToHost subscribes to every referenced capability.
func (p *Projected) AddedToHost() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.attached {
		return
	}
	p.attached = true
	for _, e := range p.sources() {
		e.RegisterCallback(p)
	}
}

// RemovedFromHost removes exactly the subscriptions AddedToHost made.
func (p *Projected) RemovedFromHost() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.attached {
		return
	}
	p.attached = false
	for _, e := range p.sources() {
		e.UnregisterCallback(p)
	}
}

func (p *Projected) sources() []*appliance.Entity {
	out := make([]*appliance.Entity, 0, 1+len(p.secondaries))
	if p.primary != nil {
		out = append(out, p.primary)
	}
	out = append(out, p.secondaries...)
	if wr, ok := p.rule.(watchRule); ok {
		for _, e := range wr.watched() {
			if !slices.Contains(out, e) {
				out = append(out, e)
			}
		}
	}
	return out
}

// Command executes a host command.
func (p *Projected) Command(ctx context.Context, cmd Command) error {
	cr, ok := p.rule.(commandRule)
	if !ok {
		return Validationf("%s does not accept commands", p.desc.Key)
	}
	return cr.command(ctx, p, cmd)
}

// Pollable reports whether the entity refreshes by polling.
func (p *Projected) Pollable() bool {
	_, ok := p.rule.(pollRule)
	return ok
}

// Poll refreshes a polled value. Non-pollable entities ignore it.
func (p *Projected) Poll(ctx context.Context) {
	if pr, ok := p.rule.(pollRule); ok {
		pr.poll(ctx, p)
	}
}

func (p *Projected) logDebug(msg string, keysAndValues ...any) {
	if p.deps.Logger != nil {
		p.deps.Logger.Debug(msg, keysAndValues...)
	}
}

func (p *Projected) logWarn(msg string, keysAndValues ...any) {
	if p.deps.Logger != nil {
		p.deps.Logger.Warn(msg, keysAndValues...)
	}
}
