package bridge

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerrad567/hcbridge/internal/entity"
	"github.com/nerrad567/hcbridge/internal/infrastructure/config"
	"github.com/nerrad567/hcbridge/internal/store"
)

// memRegistry is an in-memory Registry.
type memRegistry struct {
	mu   sync.Mutex
	rows map[string]store.Appliance
}

func newMemRegistry() *memRegistry {
	return &memRegistry{rows: make(map[string]store.Appliance)}
}

func (r *memRegistry) CreateIfNotExists(_ context.Context, a *store.Appliance) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rows[a.ID]; ok {
		return false, nil
	}
	r.rows[a.ID] = *a
	return true, nil
}

func (r *memRegistry) Get(_ context.Context, id string) (*store.Appliance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.rows[id]
	if !ok {
		return nil, store.ErrApplianceNotFound
	}
	return &a, nil
}

// fakeResolver answers every lookup with a fixed host.
type fakeResolver struct {
	host  string
	err   error
	calls []string
}

func (f *fakeResolver) Resolve(_ context.Context, deviceID string) (string, error) {
	f.calls = append(f.calls, deviceID)
	return f.host, f.err
}

func writeDescription(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "hood.json")
	require.NoError(t, os.WriteFile(path, []byte(testDescription), 0o600))
	return path
}

func testConfig(path string) *config.Config {
	return &config.Config{
		Appliances: []config.ApplianceConfig{{
			ID:              testDeviceID,
			Name:            "Hood",
			PSK:             "c2VjcmV0",
			DescriptionFile: path,
		}},
		Session: config.SessionConfig{Scheme: "ws", Path: "/homeconnect", AppName: "hcbridge"},
	}
}

func TestManager_BuildFromDump(t *testing.T) {
	cfg := testConfig(writeDescription(t))
	cfg.Dev.SetupFromDump = true
	cfg.Dev.OverridePSK = "b3ZlcnJpZGU="

	reg := newMemRegistry()
	sink := newRecordingSink()
	m := NewManager(ManagerOptions{Registry: reg, Sinks: []StateSink{sink}})

	require.NoError(t, m.Build(context.Background(), cfg))
	require.Equal(t, 1, m.Len())

	b, ok := m.Get(testDeviceID)
	require.True(t, ok)
	assert.Equal(t, "Hood", b.DeviceInfo().Name)

	rec, err := reg.Get(context.Background(), testDeviceID)
	require.NoError(t, err)
	assert.Equal(t, "b3ZlcnJpZGU=", rec.PSK)
	_, err = uuid.Parse(rec.AppID)
	assert.NoError(t, err, "generated app id is a UUID")

	require.NoError(t, m.Start(context.Background()))
	t.Cleanup(func() { _ = m.Stop() })
	require.Eventually(t, b.Connected, waitFor, tick)

	// Writes are echoed back by the dump session.
	require.NoError(t, b.Command(context.Background(), "switch_lighting", entity.Command{Action: entity.CommandTurnOn}))
	require.Eventually(t, func() bool {
		return sink.find("switch_lighting", func(st entity.State) bool { return st.Value == true })
	}, waitFor, tick)
}

func TestManager_RegistryKeepsAppID(t *testing.T) {
	path := writeDescription(t)
	reg := newMemRegistry()
	reg.rows[testDeviceID] = store.Appliance{ID: testDeviceID, AppID: "persisted-app-id"}

	cfg := testConfig(path)
	cfg.Dev.SetupFromDump = true
	m := NewManager(ManagerOptions{Registry: reg})

	appID, err := m.register(context.Background(), cfg, testDeviceID, cfg.Appliances[0], "", "", []byte(testDescription))
	require.NoError(t, err)
	assert.Equal(t, "persisted-app-id", appID)

	cfg.Session.AppID = "configured"
	appID, err = m.register(context.Background(), cfg, testDeviceID, cfg.Appliances[0], "", "", []byte(testDescription))
	require.NoError(t, err)
	assert.Equal(t, "configured", appID)
}

func TestManager_ResolvesMissingHost(t *testing.T) {
	cfg := testConfig(writeDescription(t))
	resolver := &fakeResolver{host: "192.168.1.40"}
	m := NewManager(ManagerOptions{Resolver: resolver})

	require.NoError(t, m.Build(context.Background(), cfg))
	assert.Equal(t, []string{testDeviceID}, resolver.calls)
}

func TestManager_OverrideHostSkipsDiscovery(t *testing.T) {
	cfg := testConfig(writeDescription(t))
	cfg.Dev.OverrideHost = "127.0.0.1:8080"
	resolver := &fakeResolver{host: "192.168.1.40"}
	m := NewManager(ManagerOptions{Resolver: resolver})

	require.NoError(t, m.Build(context.Background(), cfg))
	assert.Empty(t, resolver.calls)
}

func TestManager_NoHost(t *testing.T) {
	cfg := testConfig(writeDescription(t))

	err := NewManager(ManagerOptions{}).Build(context.Background(), cfg)
	assert.ErrorIs(t, err, ErrNoHost)

	resolver := &fakeResolver{err: errors.New("timeout")}
	err = NewManager(ManagerOptions{Resolver: resolver}).Build(context.Background(), cfg)
	assert.ErrorIs(t, err, ErrNoHost)
	assert.Contains(t, err.Error(), "timeout")
}

func TestManager_SkipsDisabled(t *testing.T) {
	cfg := testConfig(writeDescription(t))
	disabled := false
	cfg.Appliances[0].Enabled = &disabled

	m := NewManager(ManagerOptions{})
	require.NoError(t, m.Build(context.Background(), cfg))
	assert.Zero(t, m.Len())
}

func TestManager_DuplicateAppliance(t *testing.T) {
	path := writeDescription(t)
	cfg := testConfig(path)
	cfg.Dev.SetupFromDump = true
	cfg.Appliances = append(cfg.Appliances, config.ApplianceConfig{ID: "copy", DescriptionFile: path})

	err := NewManager(ManagerOptions{}).Build(context.Background(), cfg)
	assert.ErrorIs(t, err, ErrDuplicateAppliance)
}

func TestManager_BadDescription(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"status": []}`), 0o600))
	cfg := testConfig(path)
	cfg.Dev.SetupFromDump = true

	err := NewManager(ManagerOptions{}).Build(context.Background(), cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), testDeviceID)

	cfg.Appliances[0].DescriptionFile = filepath.Join(t.TempDir(), "missing.json")
	err = NewManager(ManagerOptions{}).Build(context.Background(), cfg)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestManager_CallService(t *testing.T) {
	cfg := testConfig(writeDescription(t))
	cfg.Dev.SetupFromDump = true
	m := NewManager(ManagerOptions{})
	require.NoError(t, m.Build(context.Background(), cfg))

	err := m.CallService(context.Background(), "unknown", ServiceSetStartIn, nil)
	assert.ErrorIs(t, err, ErrApplianceNotFound)

	err = m.CallService(context.Background(), testDeviceID, ServiceSetFinishIn, []byte(`{"finish_in": {"hours": 1}}`))
	assert.ErrorIs(t, err, entity.ErrValidation)
}

func TestManager_AddSinkReachesBridges(t *testing.T) {
	cfg := testConfig(writeDescription(t))
	cfg.Dev.SetupFromDump = true
	m := NewManager(ManagerOptions{})
	require.NoError(t, m.Build(context.Background(), cfg))

	sink := newRecordingSink()
	m.AddSink(sink)
	require.NoError(t, m.Start(context.Background()))
	t.Cleanup(func() { _ = m.Stop() })

	assert.NotEmpty(t, sink.registeredFor(testDeviceID))
	assert.Len(t, m.Bridges(), 1)
}
