package discovery

import (
	"context"
	"fmt"
	"net"
	"slices"
	"sync"
	"time"

	"github.com/enbility/zeroconf/v3"
)

// Defaults for Options.
const (
	DefaultService = "_homeconnect._tcp"
	DefaultDomain  = "local."
	DefaultTimeout = 10 * time.Second
)

// BrowseFunc streams raw entries into added and removed until ctx ends.
type BrowseFunc func(ctx context.Context, service, domain string, added, removed chan<- Entry) error

// Logger is the logging interface used by the browser.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Options configures a Browser.
type Options struct {
	// Service is the mDNS service type. Default: _homeconnect._tcp.
	Service string

	// Domain is the mDNS domain. Default: local.
	Domain string

	// Timeout bounds Resolve and Scan when ctx has no deadline.
	// Default: 10 seconds.
	Timeout time.Duration

	// Interface restricts browsing to one network interface.
	Interface string

	// Browse replaces the zeroconf browser. Used by tests.
	Browse BrowseFunc

	Logger Logger
}

// Browser browses for appliances and remembers what it has seen.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
type Browser struct {
	opts Options

	mu    sync.RWMutex
	known map[string]Appliance
}

// New creates a browser.
func New(opts Options) *Browser {
	if opts.Service == "" {
		opts.Service = DefaultService
	}
	if opts.Domain == "" {
		opts.Domain = DefaultDomain
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Browse == nil {
		opts.Browse = zeroconfBrowse(opts.Interface)
	}
	return &Browser{opts: opts, known: make(map[string]Appliance)}
}

// Browse emits each appliance once, when first seen. Addresses announced
// later on other interfaces are merged into Known. The channel is closed
// when ctx ends.
func (b *Browser) Browse(ctx context.Context) <-chan Appliance {
	out := make(chan Appliance)
	added := make(chan Entry)
	removed := make(chan Entry)

	go func() {
		if err := b.opts.Browse(ctx, b.opts.Service, b.opts.Domain, added, removed); err != nil && ctx.Err() == nil {
			b.logWarn("mdns browse failed", "service", b.opts.Service, "error", err)
		}
	}()

	go func() {
		defer close(out)
		seen := make(map[string]bool)
		for {
			select {
			case e := <-added:
				a := b.add(e)
				if seen[a.Instance] {
					continue
				}
				seen[a.Instance] = true
				b.logDebug("appliance announced", "instance", a.Instance, "device_id", a.DeviceID, "addresses", a.Addresses)
				select {
				case out <- a:
				case <-ctx.Done():
					return
				}
			case e := <-removed:
				b.remove(e)
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// Scan browses until ctx ends or the timeout passes and returns every
// appliance seen.
func (b *Browser) Scan(ctx context.Context) []Appliance {
	ctx, cancel := b.withTimeout(ctx)
	defer cancel()
	for range b.Browse(ctx) {
	}
	return b.Known()
}

// Resolve returns the address of the appliance with the given device ID.
// A previously seen appliance is answered without browsing.
//
// Returns:
//   - string: IP address or host name
//   - error: ErrNotFound when nothing matched before the timeout
func (b *Browser) Resolve(ctx context.Context, deviceID string) (string, error) {
	if a, ok := b.Lookup(deviceID); ok {
		return a.Address()
	}

	ctx, cancel := b.withTimeout(ctx)
	defer cancel()
	for a := range b.Browse(ctx) {
		if a.Matches(deviceID) {
			addr, err := a.Address()
			if err != nil {
				return "", fmt.Errorf("%s: %w", deviceID, err)
			}
			b.logInfo("appliance resolved", "device_id", deviceID, "address", addr)
			return addr, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrNotFound, deviceID)
}

// Lookup returns a previously seen appliance.
func (b *Browser) Lookup(deviceID string) (Appliance, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, a := range b.known {
		if a.Matches(deviceID) && len(a.Addresses)+len(a.Host) > 0 {
			return a, true
		}
	}
	return Appliance{}, false
}

// Known returns every appliance currently known, sorted by instance.
func (b *Browser) Known() []Appliance {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]Appliance, 0, len(b.known))
	for _, a := range b.known {
		a.Addresses = slices.Clone(a.Addresses)
		out = append(out, a)
	}
	slices.SortFunc(out, func(x, y Appliance) int {
		switch {
		case x.Instance < y.Instance:
			return -1
		case x.Instance > y.Instance:
			return 1
		}
		return 0
	})
	return out
}

// add merges an entry into the known set.
func (b *Browser) add(e Entry) Appliance {
	a := applianceFromEntry(e)

	b.mu.Lock()
	defer b.mu.Unlock()
	existing, found := b.known[a.Instance]
	if !found {
		b.known[a.Instance] = a
		return a
	}
	existing.Addresses = mergeAddresses(existing.Addresses, a.Addresses)
	if a.DeviceID != "" {
		existing.DeviceID = a.DeviceID
	}
	if a.Host != "" {
		existing.Host = a.Host
	}
	if a.Port != 0 {
		existing.Port = a.Port
	}
	b.known[a.Instance] = existing
	return existing
}

// remove drops the entry's addresses and forgets the instance once none
// remain.
func (b *Browser) remove(e Entry) {
	b.mu.Lock()
	defer b.mu.Unlock()
	existing, found := b.known[e.Instance]
	if !found {
		return
	}
	existing.Addresses = removeAddresses(existing.Addresses, e.Addrs)
	if len(existing.Addresses) == 0 {
		delete(b.known, e.Instance)
		b.logDebug("appliance gone", "instance", e.Instance)
		return
	}
	b.known[e.Instance] = existing
}

func (b *Browser) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, b.opts.Timeout)
}

func (b *Browser) logDebug(msg string, keysAndValues ...any) {
	if b.opts.Logger != nil {
		b.opts.Logger.Debug(msg, keysAndValues...)
	}
}

func (b *Browser) logInfo(msg string, keysAndValues ...any) {
	if b.opts.Logger != nil {
		b.opts.Logger.Info(msg, keysAndValues...)
	}
}

func (b *Browser) logWarn(msg string, keysAndValues ...any) {
	if b.opts.Logger != nil {
		b.opts.Logger.Warn(msg, keysAndValues...)
	}
}

// zeroconfBrowse adapts zeroconf.Browse to BrowseFunc.
func zeroconfBrowse(iface string) BrowseFunc {
	return func(ctx context.Context, service, domain string, added, removed chan<- Entry) error {
		var opts []zeroconf.ClientOption
		if iface != "" {
			if ifi, err := net.InterfaceByName(iface); err == nil {
				opts = append(opts, zeroconf.SelectIfaces([]net.Interface{*ifi}))
			}
		}

		entries := make(chan *zeroconf.ServiceEntry)
		gone := make(chan *zeroconf.ServiceEntry)
		go forwardEntries(ctx, entries, added)
		go forwardEntries(ctx, gone, removed)

		return zeroconf.Browse(ctx, service, domain, entries, gone, opts...)
	}
}

func forwardEntries(ctx context.Context, in <-chan *zeroconf.ServiceEntry, out chan<- Entry) {
	for {
		select {
		case se, ok := <-in:
			if !ok {
				return
			}
			select {
			case out <- toEntry(se):
			case <-ctx.Done():
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

func toEntry(se *zeroconf.ServiceEntry) Entry {
	addrs := make([]string, 0, len(se.AddrIPv4)+len(se.AddrIPv6))
	for _, ip := range se.AddrIPv4 {
		addrs = append(addrs, ip.String())
	}
	for _, ip := range se.AddrIPv6 {
		addrs = append(addrs, ip.String())
	}
	return Entry{
		Instance: se.Instance,
		Host:     se.HostName,
		Port:     se.Port,
		Text:     se.Text,
		Addrs:    addrs,
	}
}
