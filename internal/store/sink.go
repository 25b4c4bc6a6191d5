package store

import (
	"context"
	"sync"
	"time"

	"github.com/nerrad567/hcbridge/internal/appliance"
	"github.com/nerrad567/hcbridge/internal/entity"
)

const (
	defaultSinkBuffer    = 256
	defaultPruneInterval = time.Hour
	writeTimeout         = 5 * time.Second
)

// Logger interface for optional logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// HistoryOptions configures a HistorySink.
type HistoryOptions struct {
	// Buffer is the number of states queued before new ones are dropped.
	// Default: 256.
	Buffer int

	// Retention is how long rows are kept. Zero disables pruning.
	Retention time.Duration

	// PruneInterval is how often old rows are pruned. Default: 1 hour.
	PruneInterval time.Duration

	Logger Logger
}

// HistorySink records changed entity states. WriteState never blocks the
// caller; states are queued and written by a single goroutine.
type HistorySink struct {
	store *Store
	opts  HistoryOptions

	queue    chan entity.State
	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
	mu       sync.RWMutex
	closed   bool
}

// NewHistorySink creates a sink writing to s. Call Start before use.
func NewHistorySink(s *Store, opts HistoryOptions) *HistorySink {
	if opts.Buffer <= 0 {
		opts.Buffer = defaultSinkBuffer
	}
	if opts.PruneInterval <= 0 {
		opts.PruneInterval = defaultPruneInterval
	}
	return &HistorySink{
		store: s,
		opts:  opts,
		queue: make(chan entity.State, opts.Buffer),
		done:  make(chan struct{}),
	}
}

// Start launches the writer goroutine.
func (h *HistorySink) Start() {
	h.wg.Add(1)
	go h.loop()
}

// RegisterEntities is a no-op; history rows need no per-entity setup.
func (h *HistorySink) RegisterEntities(appliance.Info, []*entity.Projected) error {
	return nil
}

// WriteState queues st if it differs from the entity's previous publish.
func (h *HistorySink) WriteState(_ appliance.Info, st entity.State) {
	if !st.Changed {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		return
	}

	select {
	case h.queue <- st:
	default:
		h.logWarn("state history queue full, dropping state", "device_id", st.DeviceID, "key", st.Key)
	}
}

// Close drains queued states and stops the writer. Safe to call more than once.
func (h *HistorySink) Close() error {
	h.stopOnce.Do(func() {
		h.mu.Lock()
		h.closed = true
		h.mu.Unlock()
		close(h.done)
		h.wg.Wait()
	})
	return nil
}

func (h *HistorySink) loop() {
	defer h.wg.Done()

	var prune <-chan time.Time
	if h.opts.Retention > 0 {
		ticker := time.NewTicker(h.opts.PruneInterval)
		defer ticker.Stop()
		prune = ticker.C
	}

	for {
		select {
		case st := <-h.queue:
			h.record(st)
		case <-prune:
			h.prune()
		case <-h.done:
			for {
				select {
				case st := <-h.queue:
					h.record(st)
				default:
					return
				}
			}
		}
	}
}

func (h *HistorySink) record(st entity.State) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	if err := h.store.RecordState(ctx, st); err != nil {
		h.logWarn("recording entity state", "device_id", st.DeviceID, "key", st.Key, "error", err)
	}
}

func (h *HistorySink) prune() {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	n, err := h.store.PruneHistory(ctx, h.opts.Retention)
	if err != nil {
		h.logWarn("pruning state history", "error", err)
		return
	}
	if n > 0 && h.opts.Logger != nil {
		h.opts.Logger.Debug("pruned state history", "rows", n)
	}
}

func (h *HistorySink) logWarn(msg string, keysAndValues ...any) {
	if h.opts.Logger != nil {
		h.opts.Logger.Warn(msg, keysAndValues...)
	}
}
