package bridge

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nerrad567/hcbridge/internal/appliance"
	"github.com/nerrad567/hcbridge/internal/entity"
	"github.com/nerrad567/hcbridge/internal/session"
)

const testDeviceID = "BOSCH-DWF97RV60-68A40E000001"

const testDescription = `{
  "info": {"brand": "BOSCH", "type": "Hood", "vib": "DWF97RV60", "deviceID": "BOSCH-DWF97RV60-68A40E000001",
           "mac": "68-A4-0E-00-00-01", "hwVersion": "2.0.0.2", "swVersion": "3.1.1.5"},
  "status": [
    {"uid": 517, "name": "BSH.Common.Status.OperationState", "access": "read",
     "enumeration": {"0": "Inactive", "1": "Ready", "3": "Run"}, "initValue": 1},
    {"uid": 527, "name": "BSH.Common.Status.DoorState", "access": "read",
     "enumeration": {"0": "Open", "1": "Closed"}, "initValue": 1}
  ],
  "setting": [
    {"uid": 539, "name": "BSH.Common.Setting.PowerState", "access": "readWrite",
     "enumeration": {"1": "Off", "2": "On", "3": "Standby"}, "initValue": 2},
    {"uid": 53253, "name": "Cooking.Common.Setting.Lighting", "access": "readWrite", "initValue": false}
  ],
  "option": [
    {"uid": 55307, "name": "Cooking.Common.Option.Hood.VentingLevel", "access": "readWrite",
     "enumeration": {"0": "FanOff", "1": "FanStage01", "2": "FanStage02"}, "initValue": 0},
    {"uid": 558, "name": "BSH.Common.Option.StartInRelative", "access": "readWrite", "min": 0, "max": 86400, "initValue": 0}
  ],
  "program": [
    {"uid": 53249, "name": "Cooking.Common.Program.Hood.Automatic", "options": [55307]},
    {"uid": 53250, "name": "Cooking.Common.Program.Hood.Venting", "options": [55307, 558]}
  ],
  "activeProgram": {"uid": 256, "name": "BSH.Common.Root.ActiveProgram", "access": "read", "initValue": 0},
  "selectedProgram": {"uid": 257, "name": "BSH.Common.Root.SelectedProgram", "access": "readWrite", "initValue": 0}
}`

// recordingSink collects registrations and states.
type recordingSink struct {
	mu         sync.Mutex
	registered map[string][]*entity.Projected
	states     []entity.State
	err        error
}

func newRecordingSink() *recordingSink {
	return &recordingSink{registered: make(map[string][]*entity.Projected)}
}

func (s *recordingSink) RegisterEntities(info appliance.Info, entities []*entity.Projected) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.registered[info.DeviceID] = entities
	return nil
}

func (s *recordingSink) WriteState(_ appliance.Info, st entity.State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states = append(s.states, st)
}

func (s *recordingSink) registeredFor(deviceID string) []*entity.Projected {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.registered[deviceID]
}

// find reports whether a state for key matching fn was written.
func (s *recordingSink) find(key string, fn func(entity.State) bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, st := range s.states {
		if st.Key == key && fn(st) {
			return true
		}
	}
	return false
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.states)
}

func newTestAppliance(t *testing.T) (*appliance.Appliance, *session.Memory) {
	t.Helper()
	desc, err := appliance.ParseDescription([]byte(testDescription))
	require.NoError(t, err)
	mem := session.NewMemory()
	app, err := appliance.New(desc, mem)
	require.NoError(t, err)
	return app, mem
}

func newTestBridge(t *testing.T, sinks ...StateSink) (*Bridge, *session.Memory) {
	t.Helper()
	app, mem := newTestAppliance(t)
	b, err := New(Options{Appliance: app, Sinks: sinks})
	require.NoError(t, err)
	return b, mem
}

// connectedBridge returns a bridge whose session is up without running the
// supervisor.
func connectedBridge(t *testing.T) (*Bridge, *session.Memory) {
	t.Helper()
	b, mem := newTestBridge(t)
	require.NoError(t, mem.Connect(context.Background()))
	return b, mem
}
