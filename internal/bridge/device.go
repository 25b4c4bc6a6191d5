package bridge

import (
	"strings"

	"github.com/nerrad567/hcbridge/internal/appliance"
)

// Connection types used in DeviceInfo.Connections.
const ConnectionMAC = "mac"

// DeviceInfo is the host-facing description of an appliance.
type DeviceInfo struct {
	Identifiers     []string    `json:"identifiers"`
	Connections     [][2]string `json:"connections,omitempty"`
	Name            string      `json:"name"`
	Manufacturer    string      `json:"manufacturer,omitempty"`
	Model           string      `json:"model,omitempty"`
	ModelID         string      `json:"model_id,omitempty"`
	HardwareVersion string      `json:"hw_version,omitempty"`
	SoftwareVersion string      `json:"sw_version,omitempty"`
}

// DeviceInfoFor derives the device info from an appliance's description.
// The brand is capitalised ("BOSCH" becomes "Bosch") and the name is the
// brand followed by the appliance type.
func DeviceInfoFor(info appliance.Info) DeviceInfo {
	brand := capitalize(info.Brand)
	d := DeviceInfo{
		Identifiers:     []string{info.DeviceID},
		Name:            strings.TrimSpace(brand + " " + info.Type),
		Manufacturer:    brand,
		Model:           info.Type,
		ModelID:         info.VIB,
		HardwareVersion: info.HardwareVersion,
		SoftwareVersion: info.SoftwareVersion,
	}
	if d.Name == "" {
		d.Name = info.DeviceID
	}
	if info.MAC != "" {
		d.Connections = [][2]string{{ConnectionMAC, info.MAC}}
	}
	return d
}

// DeviceInfo returns the bridged appliance's device info. A configured name
// replaces the derived one.
func (b *Bridge) DeviceInfo() DeviceInfo {
	d := DeviceInfoFor(b.info)
	if b.opts.Name != "" {
		d.Name = b.opts.Name
	}
	return d
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + strings.ToLower(s[1:])
}
