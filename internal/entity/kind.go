package entity

import "github.com/nerrad567/hcbridge/internal/appliance"

// Kind selects the projection rule of an entity.
type Kind string

// Entity kinds.
const (
	KindSensor        Kind = "sensor"
	KindBinarySensor  Kind = "binary_sensor"
	KindSwitch        Kind = "switch"
	KindEventSensor   Kind = "event_sensor"
	KindActiveProgram Kind = "active_program"
	KindWiFi          Kind = "wifi"
	KindFan           Kind = "fan"
	KindNumber        Kind = "number"
	KindSelect        Kind = "select"
	KindButton        Kind = "button"
	KindStartButton   Kind = "start_button"
)

// Kinds lists every kind in catalog order.
var Kinds = []Kind{
	KindButton, KindActiveProgram, KindBinarySensor, KindEventSensor, KindNumber,
	KindSelect, KindSensor, KindStartButton, KindSwitch, KindWiFi, KindFan,
}

var (
	readable = []appliance.Access{appliance.AccessRead, appliance.AccessReadWrite}
	writable = []appliance.Access{appliance.AccessReadWrite, appliance.AccessWriteOnly}
)

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	for _, known := range Kinds {
		if k == known {
			return true
		}
	}
	return false
}

// DefaultAccess returns the access allow-list used when a description has none.
func (k Kind) DefaultAccess() []appliance.Access {
	switch k {
	case KindSwitch, KindNumber, KindSelect, KindButton, KindStartButton:
		return writable
	case KindFan:
		return []appliance.Access{appliance.AccessReadWrite}
	default:
		return readable
	}
}

// Component returns the Home Assistant platform the kind is published as.
func (k Kind) Component() string {
	switch k {
	case KindEventSensor, KindActiveProgram, KindWiFi:
		return "sensor"
	case KindStartButton:
		return "button"
	default:
		return string(k)
	}
}

// Commandable reports whether the kind accepts commands.
func (k Kind) Commandable() bool {
	switch k {
	case KindSwitch, KindFan, KindNumber, KindSelect, KindButton, KindStartButton:
		return true
	default:
		return false
	}
}
