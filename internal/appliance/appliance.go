package appliance

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Entity names of the program root entities.
const (
	ActiveProgramEntity   = "BSH.Common.Root.ActiveProgram"
	SelectedProgramEntity = "BSH.Common.Root.SelectedProgram"
)

// Logger interface for optional logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Appliance is the capability model of one appliance bound to a session.
type Appliance struct {
	info     Info
	session  Session
	entities map[string]*Entity
	byUID    map[int]*Entity
	programs map[string]*Program
	progUID  map[int]*Program

	logger   Logger
	loggerMu sync.RWMutex

	handlerMu   sync.RWMutex
	connHandler func(ConnectionState)
}

// New builds an appliance from its description and binds it to a session.
//
// Parameters:
//   - desc: Parsed capability description (must carry device info)
//   - session: Transport to the appliance
//
// Returns:
//   - *Appliance: Appliance with one Entity per described capability
//   - error: ErrNoDeviceInfo or ErrInvalidDescription on bad input
func New(desc *Description, session Session) (*Appliance, error) {
	if desc == nil || desc.Info == nil {
		return nil, ErrNoDeviceInfo
	}
	if session == nil {
		return nil, fmt.Errorf("%w: nil session", ErrInvalidDescription)
	}

	a := &Appliance{
		info:     *desc.Info,
		session:  session,
		entities: make(map[string]*Entity),
		byUID:    make(map[int]*Entity),
		programs: make(map[string]*Program),
		progUID:  make(map[int]*Program),
	}

	groups := []struct {
		typ   EntityType
		items []EntityDescription
	}{
		{TypeStatus, desc.Status},
		{TypeSetting, desc.Setting},
		{TypeEvent, desc.Event},
		{TypeCommand, desc.Command},
		{TypeOption, desc.Option},
	}
	for _, g := range groups {
		for _, d := range g.items {
			if err := a.addEntity(d, g.typ); err != nil {
				return nil, err
			}
		}
	}
	for _, root := range []*EntityDescription{desc.ActiveProgram, desc.SelectedProgram} {
		if root == nil {
			continue
		}
		if err := a.addEntity(*root, TypeProgram); err != nil {
			return nil, err
		}
	}

	for _, p := range desc.Program {
		prog := &Program{uid: p.UID, name: p.Name, options: p.Options, app: a}
		a.programs[p.Name] = prog
		a.progUID[p.UID] = prog
	}

	session.SetMessageHandler(a.handleMessage)
	session.SetConnectionHandler(a.handleConnectionState)
	return a, nil
}

func (a *Appliance) addEntity(d EntityDescription, typ EntityType) error {
	cfg, err := d.entityConfig(typ)
	if err != nil {
		return err
	}
	if _, dup := a.byUID[cfg.UID]; dup {
		return fmt.Errorf("%w: duplicate uid %d", ErrInvalidDescription, cfg.UID)
	}
	e := NewEntity(cfg)
	e.writer = a
	a.entities[e.name] = e
	a.byUID[e.uid] = e
	return nil
}

// SetLogger sets the logger for the appliance.
func (a *Appliance) SetLogger(logger Logger) {
	a.loggerMu.Lock()
	defer a.loggerMu.Unlock()
	a.logger = logger
}

func (a *Appliance) logDebug(msg string, keysAndValues ...any) {
	a.loggerMu.RLock()
	defer a.loggerMu.RUnlock()
	if a.logger != nil {
		a.logger.Debug(msg, keysAndValues...)
	}
}

// SetConnectionHandler installs the handler receiving session lifecycle events.
func (a *Appliance) SetConnectionHandler(fn func(ConnectionState)) {
	a.handlerMu.Lock()
	defer a.handlerMu.Unlock()
	a.connHandler = fn
}

func (a *Appliance) handleConnectionState(state ConnectionState) {
	a.handlerMu.RLock()
	fn := a.connHandler
	a.handlerMu.RUnlock()
	if fn != nil {
		fn(state)
	}
}

// Info returns the appliance identity.
func (a *Appliance) Info() Info { return a.info }

// Session returns the bound session.
func (a *Appliance) Session() Session { return a.session }

// Connect opens the session.
func (a *Appliance) Connect(ctx context.Context) error { return a.session.Connect(ctx) }

// Close closes the session.
func (a *Appliance) Close() error { return a.session.Close() }

// SessionConnected reports the session's own view of connectivity.
func (a *Appliance) SessionConnected() bool { return a.session.Connected() }

// Entities returns all capability entities keyed by name.
// The returned map must not be modified.
func (a *Appliance) Entities() map[string]*Entity { return a.entities }

// Entity looks up a capability entity by name.
func (a *Appliance) Entity(name string) (*Entity, bool) {
	e, ok := a.entities[name]
	return e, ok
}

// EntityByUID looks up a capability entity by UID.
func (a *Appliance) EntityByUID(uid int) (*Entity, bool) {
	e, ok := a.byUID[uid]
	return e, ok
}

// EntityNames returns all entity names sorted alphabetically.
func (a *Appliance) EntityNames() []string {
	names := make([]string, 0, len(a.entities))
	for name := range a.entities {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Programs returns all programs keyed by name.
// The returned map must not be modified.
func (a *Appliance) Programs() map[string]*Program { return a.programs }

// Program looks up a program by name.
func (a *Appliance) Program(name string) (*Program, bool) {
	p, ok := a.programs[name]
	return p, ok
}

// ActiveProgram returns the running program, or nil when none is active.
func (a *Appliance) ActiveProgram() *Program {
	return a.programFromRoot(ActiveProgramEntity)
}

// SelectedProgram returns the selected program, or nil when none is selected.
func (a *Appliance) SelectedProgram() *Program {
	return a.programFromRoot(SelectedProgramEntity)
}

func (a *Appliance) programFromRoot(name string) *Program {
	e, ok := a.entities[name]
	if !ok {
		return nil
	}
	uid, ok := asInt(e.RawValue())
	if !ok || uid == 0 {
		return nil
	}
	return a.progUID[uid]
}

// StopProgram ends the active program.
func (a *Appliance) StopProgram(ctx context.Context) error {
	return a.post(ctx, ResourceActiveProgram, []map[string]any{{
		"program": 0,
		"options": []map[string]any{},
	}})
}

// GetNetworkConfig requests the appliance's network configuration.
func (a *Appliance) GetNetworkConfig(ctx context.Context) ([]map[string]any, error) {
	if !a.session.Connected() {
		return nil, ErrNotConnected
	}
	resp, err := a.session.Send(ctx, Message{Resource: ResourceNetworkConfig, Action: ActionGet})
	if err != nil {
		return nil, err
	}
	if resp.Code != 0 {
		return nil, fmt.Errorf("%w: %s code %d", ErrRequestFailed, ResourceNetworkConfig, resp.Code)
	}
	return resp.Data, nil
}

func (a *Appliance) writeValue(ctx context.Context, uid int, value any) error {
	return a.post(ctx, ResourceValues, []map[string]any{{"uid": uid, "value": value}})
}

func (a *Appliance) post(ctx context.Context, resource string, data []map[string]any) error {
	if !a.session.Connected() {
		return ErrNotConnected
	}
	resp, err := a.session.Send(ctx, Message{Resource: resource, Action: ActionPost, Data: data})
	if err != nil {
		return err
	}
	if resp.Code != 0 {
		return fmt.Errorf("%w: %s code %d", ErrRequestFailed, resource, resp.Code)
	}
	return nil
}

// handleMessage applies inbound value and description notifications.
func (a *Appliance) handleMessage(msg Message) {
	if msg.Action != ActionNotify && msg.Action != ActionResponse {
		return
	}
	switch msg.Resource {
	case ResourceValues, ResourceMandatoryValues:
		for _, item := range msg.Data {
			e := a.lookup(item)
			if e == nil {
				continue
			}
			e.Update(item["value"])
		}
	case ResourceDescriptionChange:
		for _, item := range msg.Data {
			e := a.lookup(item)
			if e == nil {
				continue
			}
			e.ApplyDescriptionChange(parseDescriptionChange(item))
		}
	}
}

func (a *Appliance) lookup(item map[string]any) *Entity {
	uid, ok := asInt(item["uid"])
	if !ok {
		return nil
	}
	e, ok := a.byUID[uid]
	if !ok {
		a.logDebug("value for unknown entity", "uid", uid, "device_id", a.info.DeviceID)
		return nil
	}
	return e
}

func parseDescriptionChange(item map[string]any) DescriptionChange {
	var c DescriptionChange
	if s, ok := item["access"].(string); ok {
		if acc, err := ParseAccess(s); err == nil {
			c.Access = &acc
		}
	}
	if b, ok := item["available"].(bool); ok {
		c.Available = &b
	}
	if f, ok := item["min"].(float64); ok {
		c.Min = &f
	}
	if f, ok := item["max"].(float64); ok {
		c.Max = &f
	}
	if f, ok := item["stepSize"].(float64); ok {
		c.Step = &f
	}
	return c
}
