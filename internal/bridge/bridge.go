package bridge

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/hcbridge/internal/appliance"
	"github.com/nerrad567/hcbridge/internal/catalog"
	"github.com/nerrad567/hcbridge/internal/entity"
	"github.com/nerrad567/hcbridge/internal/supervisor"
)

// StateSink receives the entities of a bridge and every state they publish.
//
// WriteState is called from appliance notification goroutines and must not
// block for long.
type StateSink interface {
	RegisterEntities(info appliance.Info, entities []*entity.Projected) error
	WriteState(info appliance.Info, st entity.State)
}

// Logger interface for optional logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Options configures a Bridge.
type Options struct {
	// Appliance is the appliance to run. Required.
	Appliance *appliance.Appliance

	// Name is the configured display name. Default: brand and type.
	Name string

	// Host is the appliance address, for log output.
	Host string

	// Catalog selects the projected entities. Default: the built-in catalog.
	Catalog *catalog.Catalog

	// Sinks receive entity registrations and published states.
	Sinks []StateSink

	// MaxReconnectTime and RetryInterval configure the supervisor.
	MaxReconnectTime time.Duration
	RetryInterval    time.Duration

	// PollInterval is how often polled entities refresh. Default: 30 seconds.
	PollInterval time.Duration

	Logger Logger
}

// Bridge runs one appliance.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
//   - Sinks are called without internal locks held.
type Bridge struct {
	app  *appliance.Appliance
	info appliance.Info
	opts Options
	sup  *supervisor.Supervisor

	mu       sync.RWMutex
	entities []*entity.Projected
	byKey    map[string]*entity.Projected
	poller   *entity.Poller
	started  bool
	stopped  bool

	sinksMu sync.RWMutex
	sinks   []StateSink

	logger   Logger
	loggerMu sync.RWMutex
}

// New creates a bridge for an appliance. The appliance's connection events
// are routed to the bridge's supervisor.
func New(opts Options) (*Bridge, error) {
	if opts.Appliance == nil {
		return nil, ErrNoAppliance
	}
	if opts.Catalog == nil {
		cat, err := catalog.Default()
		if err != nil {
			return nil, fmt.Errorf("loading default catalog: %w", err)
		}
		opts.Catalog = cat
	}

	b := &Bridge{
		app:    opts.Appliance,
		info:   opts.Appliance.Info(),
		opts:   opts,
		byKey:  make(map[string]*entity.Projected),
		sinks:  append([]StateSink(nil), opts.Sinks...),
		logger: opts.Logger,
	}

	sup, err := supervisor.New(supervisor.Options{
		Target:           opts.Appliance,
		Name:             b.displayName(),
		Host:             opts.Host,
		MaxReconnectTime: opts.MaxReconnectTime,
		RetryInterval:    opts.RetryInterval,
		OnRefresh:        b.Refresh,
		Logger:           opts.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating supervisor: %w", err)
	}
	b.sup = sup
	b.app.SetConnectionHandler(sup.HandleConnectionState)
	return b, nil
}

// SetLogger sets the logger for the bridge.
func (b *Bridge) SetLogger(logger Logger) {
	b.loggerMu.Lock()
	defer b.loggerMu.Unlock()
	b.logger = logger
}

// AddSink adds a state sink. Sinks added after Start only receive states;
// they are not registered with the existing entities.
func (b *Bridge) AddSink(s StateSink) {
	b.sinksMu.Lock()
	defer b.sinksMu.Unlock()
	b.sinks = append(b.sinks, s)
}

// Start creates the projected entities, registers them with every sink,
// attaches them to the appliance and starts the supervisor and poller.
//
// Parameters:
//   - ctx: Bounds the supervisor's connect loop and the poller
//
// Returns:
//   - error: ErrAlreadyStarted, a sink registration error, or a supervisor error
func (b *Bridge) Start(ctx context.Context) error {
	b.mu.Lock()
	if b.started {
		b.mu.Unlock()
		return ErrAlreadyStarted
	}
	b.started = true

	descs := b.opts.Catalog.Available(b.app)
	entities := entity.Create(descs, entity.Deps{
		Appliance:    b.app,
		Connectivity: b.sup,
		Publish:      b.publish,
		Logger:       b.opts.Logger,
	})
	b.entities = entities
	for _, p := range entities {
		b.byKey[p.Key()] = p
	}
	b.poller = entity.NewPoller(b.opts.PollInterval, entities)
	b.mu.Unlock()

	b.logInfo("appliance entities created",
		"device_id", b.info.DeviceID,
		"entities", len(entities),
		"polled", b.poller.Len(),
	)

	for _, s := range b.snapshotSinks() {
		if err := s.RegisterEntities(b.info, entities); err != nil {
			return fmt.Errorf("registering entities: %w", err)
		}
	}

	for _, p := range entities {
		p.AddedToHost()
	}
	b.Refresh()

	if err := b.sup.Start(ctx); err != nil {
		return fmt.Errorf("starting supervisor: %w", err)
	}
	b.poller.Start(ctx)
	return nil
}

// Stop detaches the entities from the appliance, stops polling and closes
// the supervisor. Safe to call multiple times.
func (b *Bridge) Stop() error {
	b.mu.Lock()
	if !b.started || b.stopped {
		b.mu.Unlock()
		return nil
	}
	b.stopped = true
	entities := b.entities
	poller := b.poller
	b.mu.Unlock()

	for _, p := range entities {
		p.RemovedFromHost()
	}
	poller.Stop()
	return b.sup.Close()
}

// Refresh publishes the current state of every entity.
func (b *Bridge) Refresh() {
	for _, p := range b.Entities() {
		p.Publish()
	}
}

func (b *Bridge) publish(st entity.State) {
	for _, s := range b.snapshotSinks() {
		s.WriteState(b.info, st)
	}
}

func (b *Bridge) snapshotSinks() []StateSink {
	b.sinksMu.RLock()
	defer b.sinksMu.RUnlock()
	out := make([]StateSink, len(b.sinks))
	copy(out, b.sinks)
	return out
}

// Info returns the appliance's device info.
func (b *Bridge) Info() appliance.Info { return b.info }

// DeviceID returns the appliance's device ID.
func (b *Bridge) DeviceID() string { return b.info.DeviceID }

// Appliance returns the bridged appliance.
func (b *Bridge) Appliance() *appliance.Appliance { return b.app }

// Connected reports the supervisor's connected flag.
func (b *Bridge) Connected() bool { return b.sup.Connected() }

// ConnectionState returns the supervisor's state.
func (b *Bridge) ConnectionState() supervisor.State { return b.sup.State() }

// Entities returns the projected entities in creation order. Empty before Start.
func (b *Bridge) Entities() []*entity.Projected {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]*entity.Projected, len(b.entities))
	copy(out, b.entities)
	return out
}

// Entity returns the projected entity with the given key.
func (b *Bridge) Entity(key string) (*entity.Projected, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	p, ok := b.byKey[key]
	return p, ok
}

// Command sends a command to the projected entity with the given key.
func (b *Bridge) Command(ctx context.Context, key string, cmd entity.Command) error {
	p, ok := b.Entity(key)
	if !ok {
		return fmt.Errorf("%w: %s", ErrEntityNotFound, key)
	}
	return p.Command(ctx, cmd)
}

func (b *Bridge) displayName() string {
	if b.opts.Name != "" {
		return b.opts.Name
	}
	return DeviceInfoFor(b.info).Name
}

func (b *Bridge) logInfo(msg string, keysAndValues ...any) {
	b.loggerMu.RLock()
	logger := b.logger
	b.loggerMu.RUnlock()
	if logger != nil {
		logger.Info(msg, keysAndValues...)
	}
}

func (b *Bridge) logWarn(msg string, keysAndValues ...any) {
	b.loggerMu.RLock()
	logger := b.logger
	b.loggerMu.RUnlock()
	if logger != nil {
		logger.Warn(msg, keysAndValues...)
	}
}
