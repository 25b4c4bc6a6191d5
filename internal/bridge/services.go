package bridge

import (
	"context"
	"encoding/json"

	"github.com/nerrad567/hcbridge/internal/appliance"
	"github.com/nerrad567/hcbridge/internal/entity"
)

// Relative time options.
const (
	StartInOption  = "BSH.Common.Option.StartInRelative"
	FinishInOption = "BSH.Common.Option.FinishInRelative"
)

// Service names accepted by CallService.
const (
	ServiceStartProgram = "start_program"
	ServiceSetStartIn   = "set_start_in"
	ServiceSetFinishIn  = "set_finish_in"
	ServiceSetOption    = "set_option"
)

// Duration is a relative time given as hours, minutes and seconds.
type Duration struct {
	Hours   int `json:"hours"`
	Minutes int `json:"minutes"`
	Seconds int `json:"seconds"`
}

// TotalSeconds returns the duration in seconds.
func (d Duration) TotalSeconds() int {
	return d.Hours*3600 + d.Minutes*60 + d.Seconds
}

// StartProgramRequest starts the selected program, optionally delayed.
// Options are keyed by option entity name.
type StartProgramRequest struct {
	StartIn  *Duration      `json:"start_in,omitempty"`
	FinishIn *Duration      `json:"finish_in,omitempty"`
	Options  map[string]any `json:"options,omitempty"`
}

// SetOptionRequest sets one option entity.
type SetOptionRequest struct {
	Name  string `json:"name"`
	Value any    `json:"value"`
}

// StartProgramWithOptions starts the selected program. Options are keyed by
// option entity name; the current values of options not given are kept.
//
// Returns:
//   - error: *entity.ValidationError when an option does not exist or no
//     program is selected, else the appliance's error
func (b *Bridge) StartProgramWithOptions(ctx context.Context, options map[string]any) error {
	return b.StartProgram(ctx, StartProgramRequest{Options: options})
}

// SetNumericOption writes a value to an option entity.
func (b *Bridge) SetNumericOption(ctx context.Context, name string, value any) error {
	e, ok := b.app.Entity(name)
	if !ok {
		return entity.Validationf("'%s' is not available on this Appliance", name)
	}
	return e.SetValue(ctx, value)
}

// StartProgram starts the selected program with optional relative start
// and finish times. Relative times take precedence over the same options
// given by name.
func (b *Bridge) StartProgram(ctx context.Context, req StartProgramRequest) error {
	options := make(map[int]any, len(req.Options)+2)
	for name, v := range req.Options {
		e, ok := b.app.Entity(name)
		if !ok {
			return entity.Validationf("'%s' is not available on this Appliance", name)
		}
		options[e.UID()] = v
	}
	if req.StartIn != nil {
		e, ok := b.app.Entity(StartInOption)
		if !ok {
			return entity.Validationf("'Start in' is not available on this Appliance")
		}
		options[e.UID()] = req.StartIn.TotalSeconds()
	}
	if req.FinishIn != nil {
		e, ok := b.app.Entity(FinishInOption)
		if !ok {
			return entity.Validationf("'Finish in' is not available on this Appliance")
		}
		options[e.UID()] = req.FinishIn.TotalSeconds()
	}
	return b.startSelected(ctx, options)
}

// SetStartIn sets the relative start time of the selected program.
func (b *Bridge) SetStartIn(ctx context.Context, d Duration) error {
	return b.setRelative(ctx, StartInOption, "Start in", d)
}

// SetFinishIn sets the relative finish time of the selected program.
func (b *Bridge) SetFinishIn(ctx context.Context, d Duration) error {
	return b.setRelative(ctx, FinishInOption, "Finish in", d)
}

func (b *Bridge) setRelative(ctx context.Context, name, label string, d Duration) error {
	e, ok := b.app.Entity(name)
	if !ok {
		return entity.Validationf("'%s' is not available on this Appliance", label)
	}
	return e.SetValue(ctx, d.TotalSeconds())
}

func (b *Bridge) startSelected(ctx context.Context, options map[int]any) error {
	program := b.app.SelectedProgram()
	if program == nil {
		return entity.Validationf("No Program selected")
	}
	b.logInfo("starting program",
		"device_id", b.info.DeviceID,
		"program", program.Name(),
		"options", len(options),
	)
	return program.Start(ctx, options, false)
}

// SelectedProgram returns the selected program, or nil.
func (b *Bridge) SelectedProgram() *appliance.Program {
	return b.app.SelectedProgram()
}

// CallService runs a service from a JSON payload.
//
// Payloads:
//   - start_program: StartProgramRequest
//   - set_start_in: {"start_in": Duration}
//   - set_finish_in: {"finish_in": Duration}
//   - set_option: SetOptionRequest
func (b *Bridge) CallService(ctx context.Context, service string, payload []byte) error {
	switch service {
	case ServiceStartProgram:
		var req StartProgramRequest
		if err := decodePayload(payload, &req); err != nil {
			return err
		}
		return b.StartProgram(ctx, req)
	case ServiceSetStartIn:
		var req StartProgramRequest
		if err := decodePayload(payload, &req); err != nil {
			return err
		}
		if req.StartIn == nil {
			return entity.Validationf("start_in is required")
		}
		return b.SetStartIn(ctx, *req.StartIn)
	case ServiceSetFinishIn:
		var req StartProgramRequest
		if err := decodePayload(payload, &req); err != nil {
			return err
		}
		if req.FinishIn == nil {
			return entity.Validationf("finish_in is required")
		}
		return b.SetFinishIn(ctx, *req.FinishIn)
	case ServiceSetOption:
		var req SetOptionRequest
		if err := decodePayload(payload, &req); err != nil {
			return err
		}
		if req.Name == "" {
			return entity.Validationf("name is required")
		}
		return b.SetNumericOption(ctx, req.Name, req.Value)
	default:
		return entity.Validationf("unknown service %q", service)
	}
}

func decodePayload(payload []byte, v any) error {
	if len(payload) == 0 {
		return nil
	}
	if err := json.Unmarshal(payload, v); err != nil {
		return entity.Validationf("invalid payload: %v", err)
	}
	return nil
}
