package entity

import (
	"context"
	"fmt"
	"math"
	"slices"
	"sort"
	"strings"

	"github.com/nerrad567/hcbridge/internal/appliance"
)

// newRule selects the projection rule for the description's kind.
func newRule(p *Projected) (rule, error) {
	switch p.desc.Kind {
	case KindSensor:
		return sensorRule{}, nil
	case KindBinarySensor:
		return binaryRule{}, nil
	case KindSwitch:
		return switchRule{}, nil
	case KindEventSensor:
		return eventRule{}, nil
	case KindActiveProgram:
		return activeProgramRule{}, nil
	case KindWiFi:
		return &wifiRule{}, nil
	case KindFan:
		return newFanRule(p), nil
	case KindNumber:
		return numberRule{}, nil
	case KindSelect:
		return selectRule{}, nil
	case KindButton:
		return buttonRule{}, nil
	case KindStartButton:
		return startButtonRule{}, nil
	default:
		return nil, fmt.Errorf("%w: %s: unknown kind %q", ErrInvalidDescription, p.desc.Key, p.desc.Kind)
	}
}

// sensorRule reports the primary value, lower-casing enumeration labels
// when the description enables state translation.
type sensorRule struct{}

func (sensorRule) value(p *Projected) any {
	v := p.primary.Value()
	if v == nil {
		return nil
	}
	if len(p.primary.Enum()) > 0 && p.desc.HasStateTranslation {
		return strings.ToLower(fmt.Sprint(v))
	}
	return v
}

func (sensorRule) attributes(p *Projected) map[string]any {
	return enumOptions(p)
}

func enumOptions(p *Projected) map[string]any {
	enum := p.primary.Enum()
	if len(enum) == 0 {
		return nil
	}
	opts := make([]string, 0, len(enum))
	for _, o := range enum {
		label := o.Label
		if p.desc.HasStateTranslation {
			label = strings.ToLower(label)
		}
		opts = append(opts, label)
	}
	return map[string]any{"options": opts}
}

// binaryRule maps the primary value to true, false or nil (neither set
// matched). Without configured sets the value's truthiness is used.
type binaryRule struct{}

func (binaryRule) value(p *Projected) any {
	return binaryValue(p)
}

func binaryValue(p *Projected) any {
	v := p.primary.Value()
	if len(p.desc.ValueOn) == 0 && len(p.desc.ValueOff) == 0 {
		return truthy(v)
	}
	if v == nil {
		return nil
	}
	s := fmt.Sprint(v)
	if slices.Contains(p.desc.ValueOn, s) {
		return true
	}
	if slices.Contains(p.desc.ValueOff, s) {
		return false
	}
	return nil
}

// switchRule is a writable binary value.
type switchRule struct{}

func (switchRule) value(p *Projected) any {
	return binaryValue(p)
}

func (switchRule) command(ctx context.Context, p *Projected, cmd Command) error {
	var on bool
	switch cmd.Action {
	case CommandTurnOn:
		on = true
	case CommandTurnOff:
		on = false
	case CommandSet:
		b, ok := cmd.Value.(bool)
		if !ok {
			return Validationf("%s expects a boolean, got %v", p.desc.Key, cmd.Value)
		}
		on = b
	default:
		return Validationf("%s does not support %s", p.desc.Key, cmd.Action)
	}

	if on && len(p.desc.ValueOn) > 0 {
		return p.primary.SetValue(ctx, p.desc.ValueOn[0])
	}
	if !on && len(p.desc.ValueOff) > 0 {
		return p.primary.SetValue(ctx, p.desc.ValueOff[0])
	}
	return p.primary.SetValue(ctx, on)
}

// eventRule returns the label paired with the first active entity, or the
// last label when none is active.
type eventRule struct{}

func (eventRule) value(p *Projected) any {
	opts := p.desc.Options
	for i, e := range p.sources() {
		if i >= len(opts) {
			break
		}
		if eventActive(e) {
			return opts[i]
		}
	}
	return opts[len(opts)-1]
}

func (eventRule) available(p *Projected, _ bool) bool {
	return p.deps.Appliance.SessionConnected()
}

func (eventRule) attributes(p *Projected) map[string]any {
	return map[string]any{"options": slices.Clone(p.desc.Options)}
}

func eventActive(e *appliance.Entity) bool {
	if len(e.Enum()) > 0 {
		v := e.Value()
		return v == "Present" || v == "Confirmed"
	}
	return truthy(e.Value())
}

// activeProgramRule reports the mapped name of the running program.
type activeProgramRule struct{}

func (activeProgramRule) value(p *Projected) any {
	prog := p.deps.Appliance.ActiveProgram()
	if prog == nil {
		return nil
	}
	if mapped, ok := p.desc.Mapping[prog.Name()]; ok {
		return mapped
	}
	return prog.Name()
}

func (activeProgramRule) attributes(p *Projected) map[string]any {
	if len(p.desc.Mapping) == 0 {
		return nil
	}
	opts := make([]string, 0, len(p.desc.Mapping))
	for _, v := range p.desc.Mapping {
		opts = append(opts, v)
	}
	sort.Strings(opts)
	return map[string]any{"options": opts}
}

// numberRule exposes a numeric setting.
type numberRule struct{}

func (numberRule) value(p *Projected) any {
	return p.primary.Value()
}

func (numberRule) attributes(p *Projected) map[string]any {
	minValue, maxValue, step := p.primary.Constraints()
	if p.desc.Min != nil {
		minValue = p.desc.Min
	}
	if p.desc.Max != nil {
		maxValue = p.desc.Max
	}
	if p.desc.Step != nil {
		step = p.desc.Step
	}
	out := make(map[string]any, 3)
	if minValue != nil {
		out["min"] = *minValue
	}
	if maxValue != nil {
		out["max"] = *maxValue
	}
	if step != nil {
		out["step"] = *step
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func (numberRule) command(ctx context.Context, p *Projected, cmd Command) error {
	if cmd.Action != CommandSet {
		return Validationf("%s does not support %s", p.desc.Key, cmd.Action)
	}
	f, ok := toFloat(cmd.Value)
	if !ok {
		return Validationf("%s expects a number, got %v", p.desc.Key, cmd.Value)
	}
	minValue, maxValue, _ := p.primary.Constraints()
	if p.desc.Min != nil {
		minValue = p.desc.Min
	}
	if p.desc.Max != nil {
		maxValue = p.desc.Max
	}
	if (minValue != nil && f < *minValue) || (maxValue != nil && f > *maxValue) {
		return Validationf("%v is out of range for %s", cmd.Value, p.desc.Key)
	}
	if f == math.Trunc(f) {
		return p.primary.SetValue(ctx, int(f))
	}
	return p.primary.SetValue(ctx, f)
}

// selectRule exposes an enumerated setting. Mapping renames labels for
// display; translation lower-cases them.
type selectRule struct{}

func (selectRule) value(p *Projected) any {
	v := p.primary.Value()
	if v == nil {
		return nil
	}
	return selectLabel(p, fmt.Sprint(v))
}

func selectLabel(p *Projected, label string) string {
	if mapped, ok := p.desc.Mapping[label]; ok {
		label = mapped
	}
	if p.desc.HasStateTranslation {
		label = strings.ToLower(label)
	}
	return label
}

func (selectRule) attributes(p *Projected) map[string]any {
	enum := p.primary.Enum()
	if len(enum) == 0 {
		return nil
	}
	opts := make([]string, 0, len(enum))
	for _, o := range enum {
		opts = append(opts, selectLabel(p, o.Label))
	}
	return map[string]any{"options": opts}
}

func (selectRule) command(ctx context.Context, p *Projected, cmd Command) error {
	if cmd.Action != CommandSet {
		return Validationf("%s does not support %s", p.desc.Key, cmd.Action)
	}
	want := fmt.Sprint(cmd.Value)
	for _, o := range p.primary.Enum() {
		if selectLabel(p, o.Label) == want {
			return p.primary.SetValue(ctx, o.Value)
		}
	}
	return Validationf("%q is not an option of %s", want, p.desc.Key)
}

// buttonRule triggers a write-only command.
type buttonRule struct{}

func (buttonRule) value(*Projected) any { return nil }

func (buttonRule) command(ctx context.Context, p *Projected, cmd Command) error {
	if cmd.Action != CommandPress {
		return Validationf("%s does not support %s", p.desc.Key, cmd.Action)
	}
	return p.primary.SetValue(ctx, true)
}

// startButtonRule starts the selected program.
type startButtonRule struct{}

func (startButtonRule) value(*Projected) any { return nil }

func (startButtonRule) command(ctx context.Context, p *Projected, cmd Command) error {
	if cmd.Action != CommandPress {
		return Validationf("%s does not support %s", p.desc.Key, cmd.Action)
	}
	prog := p.deps.Appliance.SelectedProgram()
	if prog == nil {
		return Validationf("No Program selected")
	}
	return prog.Start(ctx, nil, false)
}

// truthy mirrors loose boolean conversion of capability values.
func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case int:
		return t != 0
	case float64:
		return t != 0
	default:
		return true
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	case float32:
		return float64(n), true
	default:
		return 0, false
	}
}
