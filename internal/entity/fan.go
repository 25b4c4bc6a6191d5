package entity

import (
	"context"
	"math"

	"github.com/nerrad567/hcbridge/internal/appliance"
)

// speedMapping ties one non-zero enumeration option of a speed entity to
// a fan speed rank.
type speedMapping struct {
	entity *appliance.Entity
	value  int
	speed  int
}

// fanRule drives a hood fan through its venting programs. The speed table
// is built once; ranks are dense from 1 in catalog order.
type fanRule struct {
	speeds []speedMapping
	count  int
	root   *appliance.Entity
}

func newFanRule(p *Projected) *fanRule {
	r := &fanRule{}
	r.root, _ = p.deps.Appliance.Entity(appliance.ActiveProgramEntity)
	for _, e := range p.secondaries {
		for _, opt := range e.Enum() {
			if opt.Value == 0 {
				continue
			}
			r.count++
			r.speeds = append(r.speeds, speedMapping{entity: e, value: opt.Value, speed: r.count})
		}
	}
	return r
}

// watched adds the active program root, which drives on/off.
func (r *fanRule) watched() []*appliance.Entity {
	if r.root == nil {
		return nil
	}
	return []*appliance.Entity{r.root}
}

// value reports whether the fan runs.
func (r *fanRule) value(p *Projected) any {
	return p.deps.Appliance.ActiveProgram() != nil
}

// available requires a program to drive in addition to the base rule.
func (r *fanRule) available(p *Projected, base bool) bool {
	if !base {
		return false
	}
	return p.deps.Appliance.ActiveProgram() != nil || r.defaultProgram(p) != nil
}

func (r *fanRule) attributes(p *Projected) map[string]any {
	return map[string]any{
		"percentage":  r.percentage(),
		"speed_count": r.count,
	}
}

// percentage maps the matching speed rank onto 0..100.
func (r *fanRule) percentage() int {
	for _, s := range r.speeds {
		if raw, ok := s.entity.RawValue().(int); ok && raw == s.value {
			return rangedValueToPercentage(r.count, s.speed)
		}
	}
	return 0
}

// setPercentage starts the program with exactly one speed entity set.
func (r *fanRule) setPercentage(ctx context.Context, p *Projected, percentage int) error {
	newSpeed := int(math.Ceil(percentageToRangedValue(r.count, percentage)))

	var target *speedMapping
	for i := range r.speeds {
		if r.speeds[i].speed == newSpeed {
			target = &r.speeds[i]
		}
	}
	if target == nil && newSpeed != 0 {
		return Validationf("Speed %d is invalid", percentage)
	}

	prog := r.program(p)
	if prog == nil {
		return Validationf("%s has no program to start", p.desc.Key)
	}

	options := make(map[int]any, len(p.secondaries))
	for _, e := range p.secondaries {
		if target != nil && e == target.entity {
			options[e.UID()] = target.value
		} else {
			options[e.UID()] = 0
		}
	}
	return prog.Start(ctx, options, false)
}

func (r *fanRule) command(ctx context.Context, p *Projected, cmd Command) error {
	switch cmd.Action {
	case CommandTurnOn:
		if cmd.Value == nil {
			prog := r.program(p)
			if prog == nil {
				return Validationf("%s has no program to start", p.desc.Key)
			}
			return prog.Start(ctx, map[int]any{}, true)
		}
		pct, ok := toFloat(cmd.Value)
		if !ok {
			return Validationf("%s expects a percentage, got %v", p.desc.Key, cmd.Value)
		}
		return r.setPercentage(ctx, p, int(pct))
	case CommandSetPercentage:
		pct, ok := toFloat(cmd.Value)
		if !ok || pct < 0 || pct > 100 {
			return Validationf("%s expects a percentage, got %v", p.desc.Key, cmd.Value)
		}
		return r.setPercentage(ctx, p, int(pct))
	case CommandTurnOff:
		return p.deps.Appliance.StopProgram(ctx)
	default:
		return Validationf("%s does not support %s", p.desc.Key, cmd.Action)
	}
}

// program is the active program, else the description's default.
func (r *fanRule) program(p *Projected) *appliance.Program {
	if prog := p.deps.Appliance.ActiveProgram(); prog != nil {
		return prog
	}
	return r.defaultProgram(p)
}

func (r *fanRule) defaultProgram(p *Projected) *appliance.Program {
	if p.desc.DefaultProgram == "" {
		return nil
	}
	prog, ok := p.deps.Appliance.Program(p.desc.DefaultProgram)
	if !ok {
		return nil
	}
	return prog
}

// rangedValueToPercentage maps rank v of 1..n onto 0..100.
func rangedValueToPercentage(n, v int) int {
	if n == 0 {
		return 0
	}
	return v * 100 / n
}

// percentageToRangedValue maps 0..100 onto the continuous range 0..n.
func percentageToRangedValue(n, percentage int) float64 {
	return float64(n) * float64(percentage) / 100
}
