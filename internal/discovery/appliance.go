package discovery

import (
	"net"
	"slices"
	"strings"
)

// TXT record keys announced by Home Connect appliances.
const (
	txtDeviceID = "haid"
	txtBrand    = "brand"
	txtType     = "type"
	txtVIB      = "vib"
	txtMAC      = "mac"
)

// Entry is one raw mDNS answer.
type Entry struct {
	Instance string
	Host     string
	Port     int
	Text     []string
	Addrs    []string
}

// Appliance is an appliance seen on the network.
type Appliance struct {
	Instance  string   `json:"instance"`
	DeviceID  string   `json:"device_id"`
	Brand     string   `json:"brand,omitempty"`
	Type      string   `json:"type,omitempty"`
	VIB       string   `json:"vib,omitempty"`
	MAC       string   `json:"mac,omitempty"`
	Host      string   `json:"host,omitempty"`
	Port      int      `json:"port,omitempty"`
	Addresses []string `json:"addresses,omitempty"`
}

// Address returns the address to connect to: the first IPv4 address,
// then any other address, then the announced host name.
func (a Appliance) Address() (string, error) {
	for _, addr := range a.Addresses {
		if ip := net.ParseIP(addr); ip != nil && ip.To4() != nil {
			return addr, nil
		}
	}
	if len(a.Addresses) > 0 {
		return a.Addresses[0], nil
	}
	if host := strings.TrimSuffix(a.Host, "."); host != "" {
		return host, nil
	}
	return "", ErrNoAddress
}

// Matches reports whether the appliance has the given device ID. Appliances
// that do not announce haId are matched by instance name.
func (a Appliance) Matches(deviceID string) bool {
	if a.DeviceID != "" {
		return strings.EqualFold(a.DeviceID, deviceID)
	}
	return strings.EqualFold(a.Instance, deviceID)
}

// parseTXT splits key=value records. Keys are lower-cased; records without
// a value map to "".
func parseTXT(records []string) map[string]string {
	out := make(map[string]string, len(records))
	for _, r := range records {
		key, value, _ := strings.Cut(r, "=")
		key = strings.ToLower(strings.TrimSpace(key))
		if key == "" {
			continue
		}
		out[key] = value
	}
	return out
}

// applianceFromEntry converts a raw entry.
func applianceFromEntry(e Entry) Appliance {
	txt := parseTXT(e.Text)
	return Appliance{
		Instance:  e.Instance,
		DeviceID:  txt[txtDeviceID],
		Brand:     txt[txtBrand],
		Type:      txt[txtType],
		VIB:       txt[txtVIB],
		MAC:       txt[txtMAC],
		Host:      e.Host,
		Port:      e.Port,
		Addresses: slices.Clone(e.Addrs),
	}
}

// mergeAddresses adds new addresses to existing list, avoiding duplicates.
func mergeAddresses(existing, added []string) []string {
	for _, addr := range added {
		if !slices.Contains(existing, addr) {
			existing = append(existing, addr)
		}
	}
	return existing
}

// removeAddresses drops the given addresses from the list.
func removeAddresses(addresses, removed []string) []string {
	return slices.DeleteFunc(slices.Clone(addresses), func(addr string) bool {
		return slices.Contains(removed, addr)
	})
}
