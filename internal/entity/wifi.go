package entity

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/nerrad567/hcbridge/internal/appliance"
)

// wifiRule reports the signal strength last read from the appliance's
// network configuration.
type wifiRule struct {
	mu   sync.Mutex
	rssi any
}

func (r *wifiRule) value(*Projected) any {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rssi
}

// poll reads the network configuration. Network failures keep the cached
// value.
func (r *wifiRule) poll(ctx context.Context, p *Projected) {
	info, err := p.deps.Appliance.GetNetworkConfig(ctx)
	if err != nil {
		var netErr net.Error
		switch {
		case errors.Is(err, appliance.ErrNotConnected):
			p.logDebug("WiFi update failed: not connected", "key", p.desc.Key)
		case errors.As(err, &netErr), errors.Is(err, context.DeadlineExceeded), errors.Is(err, net.ErrClosed):
			p.logDebug("WiFi update failed: connection error", "key", p.desc.Key, "error", err)
		default:
			p.logWarn("WiFi update failed", "key", p.desc.Key, "error", err)
		}
		return
	}

	if len(info) == 0 {
		p.logDebug("WiFi update failed: unexpected response format", "key", p.desc.Key)
		return
	}
	rssi, ok := info[0]["rssi"]
	if !ok {
		p.logDebug("WiFi update failed: unexpected response format", "key", p.desc.Key, "response", info)
		return
	}

	r.mu.Lock()
	r.rssi = rssi
	r.mu.Unlock()
	p.Publish()
}

// Poller refreshes pollable entities on a fixed interval.
type Poller struct {
	interval time.Duration
	entities []*Projected

	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// NewPoller creates a poller for the pollable subset of entities.
// Default interval: 30 seconds.
func NewPoller(interval time.Duration, entities []*Projected) *Poller {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	var pollable []*Projected
	for _, p := range entities {
		if p.Pollable() {
			pollable = append(pollable, p)
		}
	}
	return &Poller{
		interval: interval,
		entities: pollable,
		done:     make(chan struct{}),
	}
}

// Len returns the number of polled entities.
func (pl *Poller) Len() int { return len(pl.entities) }

// Start polls once immediately and then on every tick.
func (pl *Poller) Start(ctx context.Context) {
	if len(pl.entities) == 0 {
		return
	}
	pl.wg.Add(1)
	go pl.loop(ctx)
}

func (pl *Poller) loop(ctx context.Context) {
	defer pl.wg.Done()

	ticker := time.NewTicker(pl.interval)
	defer ticker.Stop()

	pl.pollAll(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-pl.done:
			return
		case <-ticker.C:
			pl.pollAll(ctx)
		}
	}
}

func (pl *Poller) pollAll(ctx context.Context) {
	for _, p := range pl.entities {
		pctx, cancel := context.WithTimeout(ctx, pl.interval)
		p.Poll(pctx)
		cancel()
	}
}

// Stop ends polling. Safe to call multiple times.
func (pl *Poller) Stop() {
	pl.stopOnce.Do(func() {
		close(pl.done)
		pl.wg.Wait()
	})
}
