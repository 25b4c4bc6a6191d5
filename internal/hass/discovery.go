package hass

import (
	"github.com/nerrad567/hcbridge/internal/bridge"
	"github.com/nerrad567/hcbridge/internal/entity"
	"github.com/nerrad567/hcbridge/internal/infrastructure/mqtt"
)

// Availability is one availability source of a discovered entity.
type Availability struct {
	Topic string `json:"topic"`
}

// Device is the device block shared by all entities of an appliance.
type Device struct {
	Identifiers  []string    `json:"identifiers"`
	Connections  [][2]string `json:"connections,omitempty"`
	Name         string      `json:"name"`
	Manufacturer string      `json:"manufacturer,omitempty"`
	Model        string      `json:"model,omitempty"`
	ModelID      string      `json:"model_id,omitempty"`
	HWVersion    string      `json:"hw_version,omitempty"`
	SWVersion    string      `json:"sw_version,omitempty"`
}

// DiscoveryConfig is the retained MQTT discovery payload of one entity.
type DiscoveryConfig struct {
	Name                string         `json:"name"`
	UniqueID            string         `json:"unique_id"`
	StateTopic          string         `json:"state_topic,omitempty"`
	CommandTopic        string         `json:"command_topic,omitempty"`
	JSONAttributesTopic string         `json:"json_attributes_topic,omitempty"`
	Availability        []Availability `json:"availability"`
	AvailabilityMode    string         `json:"availability_mode"`
	Device              Device         `json:"device"`

	DeviceClass       string   `json:"device_class,omitempty"`
	UnitOfMeasurement string   `json:"unit_of_measurement,omitempty"`
	Icon              string   `json:"icon,omitempty"`
	EntityCategory    string   `json:"entity_category,omitempty"`
	StateClass        string   `json:"state_class,omitempty"`
	Options           []string `json:"options,omitempty"`

	// number
	Min  *float64 `json:"min,omitempty"`
	Max  *float64 `json:"max,omitempty"`
	Step *float64 `json:"step,omitempty"`

	// fan
	PercentageStateTopic   string `json:"percentage_state_topic,omitempty"`
	PercentageCommandTopic string `json:"percentage_command_topic,omitempty"`
}

// deviceBlock converts bridge device info to the discovery device block.
func deviceBlock(d bridge.DeviceInfo) Device {
	return Device{
		Identifiers:  d.Identifiers,
		Connections:  d.Connections,
		Name:         d.Name,
		Manufacturer: d.Manufacturer,
		Model:        d.Model,
		ModelID:      d.ModelID,
		HWVersion:    d.HardwareVersion,
		SWVersion:    d.SoftwareVersion,
	}
}

// discoveryConfig builds the discovery payload for a projected entity.
//
// Entities are available only while both the bridge and the entity report
// online.
func discoveryConfig(topics mqtt.Topics, dev Device, p *entity.Projected) DiscoveryConfig {
	desc := p.Description()
	deviceID := dev.Identifiers[0]
	key := p.Key()

	cfg := DiscoveryConfig{
		Name:                desc.Name,
		UniqueID:            p.UniqueID(),
		JSONAttributesTopic: topics.EntityAttributes(deviceID, key),
		Availability: []Availability{
			{Topic: topics.BridgeStatus()},
			{Topic: topics.EntityAvailability(deviceID, key)},
		},
		AvailabilityMode:  "all",
		Device:            dev,
		DeviceClass:       desc.DeviceClass,
		UnitOfMeasurement: desc.Unit,
		Icon:              desc.Icon,
		EntityCategory:    desc.Category,
		StateClass:        desc.StateClass,
	}
	if cfg.Name == "" {
		cfg.Name = key
	}

	kind := p.Kind()
	if kind != entity.KindButton && kind != entity.KindStartButton {
		cfg.StateTopic = topics.EntityState(deviceID, key)
	}
	if kind.Commandable() {
		cfg.CommandTopic = topics.EntityCommand(deviceID, key)
	}

	attrs := p.Attributes()
	switch kind {
	case entity.KindSelect:
		cfg.Options = stringList(attrs["options"])
	case entity.KindEventSensor, entity.KindActiveProgram:
		if desc.DeviceClass == "enum" {
			cfg.Options = stringList(attrs["options"])
		}
	case entity.KindNumber:
		cfg.Min = floatAttr(attrs, "min")
		cfg.Max = floatAttr(attrs, "max")
		cfg.Step = floatAttr(attrs, "step")
	case entity.KindFan:
		cfg.PercentageStateTopic = topics.EntityPercentageState(deviceID, key)
		cfg.PercentageCommandTopic = topics.EntityPercentageCommand(deviceID, key)
	}
	return cfg
}

func stringList(v any) []string {
	switch list := v.(type) {
	case []string:
		return list
	case []any:
		out := make([]string, 0, len(list))
		for _, item := range list {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

func floatAttr(attrs map[string]any, name string) *float64 {
	switch v := attrs[name].(type) {
	case float64:
		return &v
	case int:
		f := float64(v)
		return &f
	default:
		return nil
	}
}
