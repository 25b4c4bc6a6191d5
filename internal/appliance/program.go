package appliance

import (
	"context"
	"sort"
)

// Program is an appliance program (wash cycle, venting mode, ...).
type Program struct {
	uid     int
	name    string
	options []int
	app     *Appliance
}

// UID returns the program's numeric identifier.
func (p *Program) UID() int { return p.uid }

// Name returns the program's dotted name.
func (p *Program) Name() string { return p.name }

// OptionUIDs returns the UIDs of the options the program accepts.
func (p *Program) OptionUIDs() []int { return p.options }

// Start starts the program with the given option values keyed by UID.
//
// Unless override is set, the current values of the program's writable
// options fill in any option not given explicitly.
func (p *Program) Start(ctx context.Context, options map[int]any, override bool) error {
	merged := make(map[int]any, len(options))
	if !override {
		for _, uid := range p.options {
			e, ok := p.app.byUID[uid]
			if !ok || !e.Access().Writable() {
				continue
			}
			if v := e.RawValue(); v != nil {
				merged[uid] = v
			}
		}
	}
	for uid, v := range options {
		merged[uid] = v
	}

	uids := make([]int, 0, len(merged))
	for uid := range merged {
		uids = append(uids, uid)
	}
	sort.Ints(uids)

	opts := make([]map[string]any, 0, len(uids))
	for _, uid := range uids {
		opts = append(opts, map[string]any{"uid": uid, "value": merged[uid]})
	}

	return p.app.post(ctx, ResourceActiveProgram, []map[string]any{{
		"program": p.uid,
		"options": opts,
	}})
}

// Select makes the program the selected program.
func (p *Program) Select(ctx context.Context) error {
	return p.app.post(ctx, ResourceSelectedProgram, []map[string]any{{
		"program": p.uid,
		"options": []map[string]any{},
	}})
}
