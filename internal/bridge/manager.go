package bridge

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/hcbridge/internal/appliance"
	"github.com/nerrad567/hcbridge/internal/catalog"
	"github.com/nerrad567/hcbridge/internal/infrastructure/config"
	"github.com/nerrad567/hcbridge/internal/session"
	"github.com/nerrad567/hcbridge/internal/store"
)

// Registry persists configured appliances.
type Registry interface {
	CreateIfNotExists(ctx context.Context, a *store.Appliance) (bool, error)
	Get(ctx context.Context, id string) (*store.Appliance, error)
}

// Resolver finds the host of an appliance configured without one.
type Resolver interface {
	Resolve(ctx context.Context, deviceID string) (string, error)
}

// ManagerOptions configures a Manager.
type ManagerOptions struct {
	// Catalog selects projected entities. Default: the built-in catalog.
	Catalog *catalog.Catalog

	// Sinks are attached to every bridge.
	Sinks []StateSink

	// Registry, when set, records every built appliance and supplies the
	// persisted session app ID.
	Registry Registry

	// Resolver, when set, resolves appliances without a host.
	Resolver Resolver

	Logger Logger
}

// Manager holds all bridges of the process.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
type Manager struct {
	opts ManagerOptions

	mu      sync.RWMutex
	bridges map[string]*Bridge
	order   []string
	sinks   []StateSink
}

// NewManager creates an empty manager.
func NewManager(opts ManagerOptions) *Manager {
	return &Manager{
		opts:    opts,
		bridges: make(map[string]*Bridge),
		sinks:   append([]StateSink(nil), opts.Sinks...),
	}
}

// AddSink attaches a sink to every current and future bridge. Sinks must be
// added before Start to receive entity registrations.
func (m *Manager) AddSink(s StateSink) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sinks = append(m.sinks, s)
	for _, b := range m.bridges {
		b.AddSink(s)
	}
}

// Add registers a bridge under its device ID.
func (m *Manager) Add(b *Bridge) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := b.DeviceID()
	if _, exists := m.bridges[id]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateAppliance, id)
	}
	m.bridges[id] = b
	m.order = append(m.order, id)
	return nil
}

// Build creates a bridge for every enabled appliance in the configuration.
//
// Parameters:
//   - ctx: Bounds registry access and host discovery
//   - cfg: Loaded configuration
//
// Returns:
//   - error: The first appliance that could not be built, with its ID
func (m *Manager) Build(ctx context.Context, cfg *config.Config) error {
	for _, ac := range cfg.Appliances {
		if !ac.IsEnabled() {
			m.logInfo("appliance disabled, skipping", "device_id", ac.ID)
			continue
		}
		b, err := m.BuildAppliance(ctx, cfg, ac)
		if err != nil {
			return fmt.Errorf("appliance %s: %w", ac.ID, err)
		}
		if err := m.Add(b); err != nil {
			return err
		}
	}
	return nil
}

// BuildAppliance creates the bridge for one configured appliance.
//
// The description file is parsed and validated. With dev.setup_from_dump
// the appliance runs on an in-memory session that echoes value writes;
// otherwise it gets a websocket session to its host (dev.override_host
// wins, then the configured host, then discovery).
func (m *Manager) BuildAppliance(ctx context.Context, cfg *config.Config, ac config.ApplianceConfig) (*Bridge, error) {
	data, err := os.ReadFile(ac.DescriptionFile)
	if err != nil {
		return nil, fmt.Errorf("reading description: %w", err)
	}
	desc, err := appliance.ParseDescription(data)
	if err != nil {
		return nil, err
	}
	if desc.Info.DeviceID != ac.ID {
		m.logWarn("configured id differs from description deviceID",
			"configured", ac.ID,
			"device_id", desc.Info.DeviceID,
		)
	}

	host := ac.Host
	if cfg.Dev.OverrideHost != "" {
		host = cfg.Dev.OverrideHost
	}
	psk := ac.PSK
	if cfg.Dev.OverridePSK != "" {
		psk = cfg.Dev.OverridePSK
	}

	appID, err := m.register(ctx, cfg, desc.Info.DeviceID, ac, host, psk, data)
	if err != nil {
		return nil, err
	}

	var sess appliance.Session
	if cfg.Dev.SetupFromDump {
		mem := session.NewMemory()
		mem.SetEcho(true)
		sess = mem
		host = "dump"
	} else {
		if host == "" {
			if host, err = m.resolve(ctx, desc.Info.DeviceID); err != nil {
				return nil, err
			}
		}
		ws := session.NewWebsocket(sessionConfig(cfg.Session, host, appID))
		if m.opts.Logger != nil {
			ws.SetLogger(m.opts.Logger)
		}
		sess = ws
	}

	app, err := appliance.New(desc, sess)
	if err != nil {
		return nil, err
	}
	if m.opts.Logger != nil {
		app.SetLogger(m.opts.Logger)
	}

	m.mu.RLock()
	sinks := append([]StateSink(nil), m.sinks...)
	m.mu.RUnlock()

	return New(Options{
		Appliance:        app,
		Name:             ac.Name,
		Host:             host,
		Catalog:          m.opts.Catalog,
		Sinks:            sinks,
		MaxReconnectTime: cfg.GetMaxReconnectTime(),
		RetryInterval:    cfg.GetRetryInterval(),
		PollInterval:     cfg.GetPollInterval(),
		Logger:           m.opts.Logger,
	})
}

// register records the appliance and returns the app ID its session uses.
// A configured session.app_id always wins; otherwise the registry keeps a
// generated ID stable across restarts.
func (m *Manager) register(ctx context.Context, cfg *config.Config, deviceID string, ac config.ApplianceConfig, host, psk string, description []byte) (string, error) {
	appID := cfg.Session.AppID
	if m.opts.Registry == nil {
		return appID, nil
	}

	rec := &store.Appliance{
		ID:          deviceID,
		Name:        ac.Name,
		Host:        host,
		PSK:         psk,
		IV:          ac.IV,
		AppID:       appID,
		Description: description,
	}
	if rec.AppID == "" {
		rec.AppID = uuid.NewString()
	}
	created, err := m.opts.Registry.CreateIfNotExists(ctx, rec)
	if err != nil {
		return "", fmt.Errorf("registering appliance: %w", err)
	}
	if created {
		m.logInfo("appliance registered", "device_id", deviceID)
	}
	if appID != "" {
		return appID, nil
	}
	stored, err := m.opts.Registry.Get(ctx, deviceID)
	if err != nil {
		return "", fmt.Errorf("loading appliance: %w", err)
	}
	return stored.AppID, nil
}

func (m *Manager) resolve(ctx context.Context, deviceID string) (string, error) {
	if m.opts.Resolver == nil {
		return "", fmt.Errorf("%w: %s", ErrNoHost, deviceID)
	}
	host, err := m.opts.Resolver.Resolve(ctx, deviceID)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", ErrNoHost, deviceID, err)
	}
	m.logInfo("appliance host discovered", "device_id", deviceID, "host", host)
	return host, nil
}

func sessionConfig(sc config.SessionConfig, host, appID string) session.Config {
	return session.Config{
		Host:              host,
		Scheme:            sc.Scheme,
		Path:              sc.Path,
		AppName:           sc.AppName,
		AppID:             appID,
		ConnectTimeout:    time.Duration(sc.ConnectTimeout) * time.Second,
		RequestTimeout:    time.Duration(sc.RequestTimeout) * time.Second,
		ReconnectAttempts: sc.ReconnectAttempts,
		Backoff: session.BackoffConfig{
			Initial:    time.Duration(sc.Backoff.Initial) * time.Second,
			Max:        time.Duration(sc.Backoff.Max) * time.Second,
			Multiplier: sc.Backoff.Multiplier,
			Jitter:     sc.Backoff.Jitter,
		},
	}
}

// Start starts every bridge in registration order. If one fails, the
// bridges already started are stopped again.
func (m *Manager) Start(ctx context.Context) error {
	bridges := m.Bridges()
	for i, b := range bridges {
		if err := b.Start(ctx); err != nil {
			for _, started := range bridges[:i+1] {
				_ = started.Stop()
			}
			return fmt.Errorf("starting %s: %w", b.DeviceID(), err)
		}
	}
	m.logInfo("bridges started", "count", len(bridges))
	return nil
}

// Stop stops every bridge and returns their joined errors.
func (m *Manager) Stop() error {
	var errs []error
	for _, b := range m.Bridges() {
		if err := b.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("stopping %s: %w", b.DeviceID(), err))
		}
	}
	return errors.Join(errs...)
}

// Get returns the bridge for a device ID.
func (m *Manager) Get(deviceID string) (*Bridge, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.bridges[deviceID]
	return b, ok
}

// Bridges returns all bridges in registration order.
func (m *Manager) Bridges() []*Bridge {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Bridge, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.bridges[id])
	}
	return out
}

// Len returns the number of bridges.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.bridges)
}

// CallService runs a service on the appliance with the given device ID.
func (m *Manager) CallService(ctx context.Context, deviceID, service string, payload []byte) error {
	b, ok := m.Get(deviceID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrApplianceNotFound, deviceID)
	}
	return b.CallService(ctx, service, payload)
}

func (m *Manager) logInfo(msg string, keysAndValues ...any) {
	if m.opts.Logger != nil {
		m.opts.Logger.Info(msg, keysAndValues...)
	}
}

func (m *Manager) logWarn(msg string, keysAndValues ...any) {
	if m.opts.Logger != nil {
		m.opts.Logger.Warn(msg, keysAndValues...)
	}
}
