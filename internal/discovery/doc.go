// Package discovery finds Home Connect appliances on the local network.
//
// Appliances announce themselves over mDNS as _homeconnect._tcp. Entries
// are aggregated by instance name, so an appliance seen on several
// interfaces is reported once with all its addresses.
//
// Usage:
//
//	b := discovery.New(discovery.Options{Timeout: 10 * time.Second})
//	host, err := b.Resolve(ctx, "BOSCH-SMV68TX06E-68A40E000001")
//
// Browser satisfies bridge.Resolver.
package discovery
