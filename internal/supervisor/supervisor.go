package supervisor

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/hcbridge/internal/appliance"
)

// DefaultMaxReconnectTime is how long a reconnecting session may take
// before its entities are reported unavailable.
const DefaultMaxReconnectTime = 300 * time.Second

// State is the supervisor's connection state.
type State int

// Supervisor states.
const (
	StateConnecting State = iota
	StateConnected
	StateReconnecting
	StateClosed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Target is the appliance the supervisor keeps connected.
type Target interface {
	Connect(ctx context.Context) error
	Close() error
	SessionConnected() bool
}

// Timer is a pending one-shot callback.
type Timer interface {
	Stop() bool
}

// Logger interface for optional logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Options configures a Supervisor.
type Options struct {
	// Target is the appliance to connect. Required.
	Target Target

	// Name identifies the appliance in log output (model or VIB).
	Name string

	// Host is the appliance address, for log output.
	Host string

	// MaxReconnectTime bounds how long RECONNECTING may last before the
	// supervisor reports disconnected. Default: 300 seconds.
	MaxReconnectTime time.Duration

	// RetryInterval is a constant pause between connect attempts.
	// Zero retries immediately.
	RetryInterval time.Duration

	// OnRefresh is called after every state transition.
	OnRefresh func()

	// Logger is optional.
	Logger Logger

	// AfterFunc schedules the reconnect watchdog. Default: time.AfterFunc.
	AfterFunc func(d time.Duration, f func()) Timer
}

// Supervisor keeps one appliance session connected.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
//   - OnRefresh is invoked without internal locks held.
type Supervisor struct {
	opts Options

	mu             sync.Mutex
	state          State
	connected      bool
	reconnecting   bool
	watchdog       Timer
	watchdogGen    uint64
	disconnectTime time.Time

	running  atomic.Bool
	started  bool
	closed   bool
	cancel   context.CancelFunc
	loopDone chan struct{}
	wg       sync.WaitGroup

	logger   Logger
	loggerMu sync.RWMutex
}

// New creates a supervisor in the CONNECTING state.
func New(opts Options) (*Supervisor, error) {
	if opts.Target == nil {
		return nil, ErrNoTarget
	}
	if opts.MaxReconnectTime <= 0 {
		opts.MaxReconnectTime = DefaultMaxReconnectTime
	}
	if opts.AfterFunc == nil {
		opts.AfterFunc = func(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }
	}
	return &Supervisor{
		opts:           opts,
		state:          StateConnecting,
		disconnectTime: time.Now(),
		loopDone:       make(chan struct{}),
		logger:         opts.Logger,
	}, nil
}

// SetLogger sets the logger for the supervisor.
func (s *Supervisor) SetLogger(logger Logger) {
	s.loggerMu.Lock()
	defer s.loggerMu.Unlock()
	s.logger = logger
}

// Start launches the connect-retry loop in the background.
func (s *Supervisor) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if s.started {
		return ErrAlreadyStarted
	}
	s.started = true
	s.running.Store(true)

	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.wg.Add(1)
	go s.connectLoop(loopCtx)
	return nil
}

// connectLoop retries until the session is up, the appliance reports the
// session slot as taken, or the supervisor is closed.
func (s *Supervisor) connectLoop(ctx context.Context) {
	defer s.wg.Done()
	defer close(s.loopDone)

	s.logDebug("connecting", "name", s.opts.Name, "host", s.opts.Host)
	firstFailure := true

	for s.running.Load() {
		err := s.opts.Target.Connect(ctx)
		if !s.running.Load() {
			return
		}

		switch {
		case err == nil:
			if s.opts.Target.SessionConnected() {
				s.markConnected()
				return
			}
		case errors.Is(err, appliance.ErrAlreadyConnected):
			_ = s.opts.Target.Close()
			s.logError("already connected to another client, not retrying",
				"host", s.opts.Host, "error", err)
			return
		case errors.Is(err, appliance.ErrConnectionFailed), errors.Is(err, appliance.ErrHandshake):
			_ = s.opts.Target.Close()
			if firstFailure {
				s.logError("can't connect, retrying", "host", s.opts.Host, "error", err)
				firstFailure = false
			} else {
				s.logDebug("can't connect, retrying", "host", s.opts.Host, "error", err)
			}
		default:
			_ = s.opts.Target.Close()
			s.logError("can't connect", "host", s.opts.Host, "error", err)
		}

		if !s.pause(ctx) {
			return
		}
	}
}

// pause waits RetryInterval. Returns false when the loop should stop.
func (s *Supervisor) pause(ctx context.Context) bool {
	if ctx.Err() != nil {
		return false
	}
	if s.opts.RetryInterval <= 0 {
		return true
	}
	t := time.NewTimer(s.opts.RetryInterval)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func (s *Supervisor) markConnected() {
	s.mu.Lock()
	s.connected = true
	s.state = StateConnected
	s.mu.Unlock()

	s.logInfo("connected", "name", s.opts.Name, "host", s.opts.Host)
	s.refresh()
}

// HandleConnectionState consumes a session lifecycle event. Install it as
// the appliance's connection handler.
func (s *Supervisor) HandleConnectionState(event appliance.ConnectionState) {
	s.mu.Lock()
	switch event {
	case appliance.StateReconnecting:
		if !s.reconnecting {
			s.reconnecting = true
			s.state = StateReconnecting
			s.armWatchdogLocked()
		}
	case appliance.StateConnected:
		s.connected = true
		s.state = StateConnected
		if s.reconnecting {
			s.reconnecting = false
			s.logDebug("reconnected", "name", s.opts.Name)
		}
		s.stopWatchdogLocked()
	case appliance.StateClosed:
		s.markDisconnectedLocked()
	}
	s.mu.Unlock()

	s.refresh()
}

func (s *Supervisor) armWatchdogLocked() {
	s.watchdogGen++
	gen := s.watchdogGen
	s.watchdog = s.opts.AfterFunc(s.opts.MaxReconnectTime, func() { s.reconnectTimeout(gen) })
}

func (s *Supervisor) stopWatchdogLocked() {
	s.watchdogGen++
	if s.watchdog != nil {
		s.watchdog.Stop()
		s.watchdog = nil
	}
}

func (s *Supervisor) markDisconnectedLocked() {
	if s.connected {
		s.disconnectTime = time.Now()
	}
	s.connected = false
	s.reconnecting = false
	s.state = StateClosed
	s.stopWatchdogLocked()
}

// reconnectTimeout runs when the watchdog armed under gen expires.
func (s *Supervisor) reconnectTimeout(gen uint64) {
	if s.opts.Target.SessionConnected() {
		return
	}

	s.mu.Lock()
	if gen != s.watchdogGen {
		s.mu.Unlock()
		return
	}
	s.watchdog = nil
	s.markDisconnectedLocked()
	s.mu.Unlock()

	s.logInfo("reconnect timed out, reporting disconnected",
		"name", s.opts.Name, "max_reconnect_time", s.opts.MaxReconnectTime.String())
	s.refresh()
}

func (s *Supervisor) refresh() {
	if s.opts.OnRefresh != nil {
		s.opts.OnRefresh()
	}
}

// Connected reports the supervisor's view of connectivity.
func (s *Supervisor) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

// Reconnecting reports whether a reconnect watchdog is pending.
func (s *Supervisor) Reconnecting() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reconnecting
}

// State returns the current state.
func (s *Supervisor) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// DisconnectTime returns when the supervisor last became disconnected.
func (s *Supervisor) DisconnectTime() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.disconnectTime
}

// Close stops the connect loop and closes the session.
// Safe to call multiple times.
func (s *Supervisor) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.running.Store(false)
	if s.cancel != nil {
		s.cancel()
	}
	s.stopWatchdogLocked()
	s.mu.Unlock()

	err := s.opts.Target.Close()
	s.wg.Wait()

	s.mu.Lock()
	if s.connected {
		s.disconnectTime = time.Now()
	}
	s.connected = false
	s.state = StateClosed
	s.mu.Unlock()
	return err
}

func (s *Supervisor) logDebug(msg string, keysAndValues ...any) {
	s.loggerMu.RLock()
	logger := s.logger
	s.loggerMu.RUnlock()
	if logger != nil {
		logger.Debug(msg, keysAndValues...)
	}
}

func (s *Supervisor) logInfo(msg string, keysAndValues ...any) {
	s.loggerMu.RLock()
	logger := s.logger
	s.loggerMu.RUnlock()
	if logger != nil {
		logger.Info(msg, keysAndValues...)
	}
}

func (s *Supervisor) logError(msg string, keysAndValues ...any) {
	s.loggerMu.RLock()
	logger := s.logger
	s.loggerMu.RUnlock()
	if logger != nil {
		logger.Error(msg, keysAndValues...)
	}
}
