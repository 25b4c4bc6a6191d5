package entity

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nerrad567/hcbridge/internal/appliance"
	"github.com/nerrad567/hcbridge/internal/session"
)

const testDescription = `{
  "info": {"brand": "BOSCH", "type": "Hood", "vib": "DWF97RV60", "deviceID": "HOOD-1"},
  "status": [
    {"uid": 517, "name": "BSH.Common.Status.OperationState", "access": "read",
     "enumeration": {"0": "Inactive", "1": "Ready", "3": "Run"}, "initValue": 1},
    {"uid": 527, "name": "BSH.Common.Status.DoorState", "access": "read",
     "enumeration": {"0": "Open", "1": "Closed"}, "initValue": 1},
    {"uid": 600, "name": "Refrigeration.Common.Status.TemperatureAmbient", "access": "read", "initValue": 21.5},
    {"uid": 601, "name": "Refrigeration.Common.Status.Freezer.Defrost", "access": "read", "initValue": false},
    {"uid": 602, "name": "BSH.Common.Status.Unset", "access": "read"}
  ],
  "setting": [
    {"uid": 539, "name": "BSH.Common.Setting.PowerState", "access": "readWrite",
     "enumeration": {"1": "Off", "2": "On", "3": "Standby"}, "initValue": 2},
    {"uid": 53253, "name": "Cooking.Common.Setting.Lighting", "access": "readWrite", "initValue": false},
    {"uid": 53254, "name": "Cooking.Common.Setting.LightingBrightness", "access": "readWrite",
     "min": 10, "max": 100, "stepSize": 1, "initValue": 50},
    {"uid": 610, "name": "Refrigeration.Common.Setting.Door.AssistantTriggerFreezer", "access": "readWrite",
     "enumeration": {"0": "Push", "1": "Pull"}, "initValue": 0}
  ],
  "event": [
    {"uid": 21, "name": "BSH.Common.Event.ProgramFinished", "access": "read",
     "enumeration": {"0": "Off", "1": "Present", "2": "Confirmed"}, "initValue": 0},
    {"uid": 22, "name": "Cooking.Hood.Event.GreaseFilterMaxSaturationNearlyReached", "access": "read",
     "enumeration": {"0": "Off", "1": "Present", "2": "Confirmed"}, "initValue": 0},
    {"uid": 23, "name": "Cooking.Hood.Event.Alarm", "access": "read", "initValue": false}
  ],
  "command": [
    {"uid": 16, "name": "BSH.Common.Command.AcknowledgeEvent", "access": "writeOnly"}
  ],
  "option": [
    {"uid": 55307, "name": "Cooking.Common.Option.Hood.VentingLevel", "access": "readWrite",
     "enumeration": {"0": "FanOff", "1": "FanStage01", "2": "FanStage02", "3": "FanStage03"}, "initValue": 0},
    {"uid": 55308, "name": "Cooking.Common.Option.Hood.IntensiveLevel", "access": "readWrite",
     "enumeration": {"0": "IntensiveStageOff", "1": "IntensiveStage1", "2": "IntensiveStage2"}, "initValue": 0},
    {"uid": 558, "name": "BSH.Common.Option.StartInRelative", "access": "readWrite", "initValue": 0}
  ],
  "program": [
    {"uid": 53249, "name": "Cooking.Common.Program.Hood.Automatic", "options": [55307, 55308]},
    {"uid": 53250, "name": "Cooking.Common.Program.Hood.Venting", "options": [55307, 55308]}
  ],
  "activeProgram": {"uid": 256, "name": "BSH.Common.Root.ActiveProgram", "access": "read", "initValue": 0},
  "selectedProgram": {"uid": 257, "name": "BSH.Common.Root.SelectedProgram", "access": "readWrite", "initValue": 0}
}`

// fakeConnectivity stands in for the supervisor.
type fakeConnectivity struct {
	mu        sync.Mutex
	connected bool
}

func (f *fakeConnectivity) Connected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakeConnectivity) set(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = v
}

// publishRecorder collects published states.
type publishRecorder struct {
	mu     sync.Mutex
	states []State
	hook   func(State)
}

func (r *publishRecorder) publish(st State) {
	r.mu.Lock()
	r.states = append(r.states, st)
	hook := r.hook
	r.mu.Unlock()
	if hook != nil {
		hook(st)
	}
}

func (r *publishRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.states)
}

func (r *publishRecorder) last() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.states[len(r.states)-1]
}

// nopLogger satisfies Logger.
type nopLogger struct {
	mu    sync.Mutex
	warns int
}

func (*nopLogger) Debug(string, ...any) {}
func (*nopLogger) Info(string, ...any)  {}
func (l *nopLogger) Warn(string, ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warns++
}
func (*nopLogger) Error(string, ...any) {}

type fixture struct {
	app  *appliance.Appliance
	mem  *session.Memory
	conn *fakeConnectivity
	pub  *publishRecorder
	log  *nopLogger
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	desc, err := appliance.ParseDescription([]byte(testDescription))
	require.NoError(t, err)
	mem := session.NewMemory()
	app, err := appliance.New(desc, mem)
	require.NoError(t, err)
	require.NoError(t, mem.Connect(context.Background()))
	return &fixture{
		app:  app,
		mem:  mem,
		conn: &fakeConnectivity{connected: true},
		pub:  &publishRecorder{},
		log:  &nopLogger{},
	}
}

func (f *fixture) deps() Deps {
	return Deps{Appliance: f.app, Connectivity: f.conn, Publish: f.pub.publish, Logger: f.log}
}

func (f *fixture) build(t *testing.T, d Description) *Projected {
	t.Helper()
	p, err := New(d, f.deps())
	require.NoError(t, err)
	return p
}

func (f *fixture) lastSent(t *testing.T) appliance.Message {
	t.Helper()
	msg, ok := f.mem.LastSent()
	require.True(t, ok, "nothing sent")
	return msg
}
