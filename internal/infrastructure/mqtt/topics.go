package mqtt

import (
	"fmt"
	"strings"

	"github.com/nerrad567/hcbridge/internal/infrastructure/config"
)

// Default topic roots, used when the configuration leaves them empty.
const (
	// DefaultDiscoveryPrefix is the root Home Assistant watches for
	// discovery configs.
	DefaultDiscoveryPrefix = "homeassistant"

	// DefaultTopicPrefix is the root for hcbridge's own state, command and
	// availability topics.
	DefaultTopicPrefix = "hcbridge"
)

// Topics provides builders for hcbridge MQTT topics.
// Using these helpers ensures consistent topic naming across the codebase.
//
//	topics := mqtt.NewTopics(cfg.HASS)
//	stateTopic := topics.EntityState("HOOD-1", "sensor_operation_state")
//	// Returns: "hcbridge/HOOD-1/sensor_operation_state/state"
//
// Device IDs and entity keys are sanitised so that MQTT wildcard and level
// separators never leak into a topic.
type Topics struct {
	// DiscoveryPrefix is the Home Assistant discovery root.
	DiscoveryPrefix string

	// TopicPrefix is the root of every non-discovery topic.
	TopicPrefix string
}

// NewTopics builds Topics from the Home Assistant section of the config.
func NewTopics(cfg config.HASSConfig) Topics {
	t := Topics{DiscoveryPrefix: cfg.DiscoveryPrefix, TopicPrefix: cfg.TopicPrefix}
	if t.DiscoveryPrefix == "" {
		t.DiscoveryPrefix = DefaultDiscoveryPrefix
	}
	if t.TopicPrefix == "" {
		t.TopicPrefix = DefaultTopicPrefix
	}
	return t
}

// =============================================================================
// Bridge Topics
// =============================================================================

// BridgeStatus returns the bridge availability topic. It carries the
// retained "online"/"offline" payloads and the Last Will.
//
// Example: hcbridge/bridge/status
func (t Topics) BridgeStatus() string {
	return fmt.Sprintf("%s/bridge/status", t.TopicPrefix)
}

// HomeAssistantStatus returns the topic Home Assistant announces its own
// birth and will messages on.
//
// Example: homeassistant/status
func (t Topics) HomeAssistantStatus() string {
	return fmt.Sprintf("%s/status", t.DiscoveryPrefix)
}

// =============================================================================
// Discovery Topics
// =============================================================================

// Discovery returns the config topic for one entity.
//
// Example: homeassistant/sensor/HOOD-1/sensor_operation_state/config
func (t Topics) Discovery(component, deviceID, key string) string {
	return fmt.Sprintf("%s/%s/%s/%s/config", t.DiscoveryPrefix, component, Sanitize(deviceID), Sanitize(key))
}

// =============================================================================
// Entity Topics
// =============================================================================

// EntityState returns the retained state topic of an entity.
//
// Example: hcbridge/HOOD-1/sensor_operation_state/state
func (t Topics) EntityState(deviceID, key string) string {
	return t.entity(deviceID, key, "state")
}

// EntityAttributes returns the retained JSON attributes topic of an entity.
//
// Example: hcbridge/HOOD-1/sensor_program_progress/attributes
func (t Topics) EntityAttributes(deviceID, key string) string {
	return t.entity(deviceID, key, "attributes")
}

// EntityAvailability returns the retained availability topic of an entity.
//
// Example: hcbridge/HOOD-1/switch_lighting/availability
func (t Topics) EntityAvailability(deviceID, key string) string {
	return t.entity(deviceID, key, "availability")
}

// EntityCommand returns the topic Home Assistant writes commands to.
//
// Example: hcbridge/HOOD-1/switch_lighting/set
func (t Topics) EntityCommand(deviceID, key string) string {
	return t.entity(deviceID, key, "set")
}

// EntityPercentageState returns the fan percentage state topic.
//
// Example: hcbridge/HOOD-1/fan_hood/percentage
func (t Topics) EntityPercentageState(deviceID, key string) string {
	return t.entity(deviceID, key, "percentage")
}

// EntityPercentageCommand returns the fan percentage command topic.
//
// Example: hcbridge/HOOD-1/fan_hood/percentage/set
func (t Topics) EntityPercentageCommand(deviceID, key string) string {
	return t.entity(deviceID, key, "percentage/set")
}

func (t Topics) entity(deviceID, key, leaf string) string {
	return fmt.Sprintf("%s/%s/%s/%s", t.TopicPrefix, Sanitize(deviceID), Sanitize(key), leaf)
}

// =============================================================================
// Service Topics
// =============================================================================

// ApplianceService returns the topic an appliance-level service listens on.
//
// Example: hcbridge/HOOD-1/service/start_program
func (t Topics) ApplianceService(deviceID, service string) string {
	return fmt.Sprintf("%s/%s/service/%s", t.TopicPrefix, Sanitize(deviceID), Sanitize(service))
}

// =============================================================================
// Wildcard Patterns for Subscriptions
// =============================================================================

// AllServices returns a pattern matching every appliance service topic.
//
// Pattern: hcbridge/+/service/+
func (t Topics) AllServices() string {
	return fmt.Sprintf("%s/+/service/+", t.TopicPrefix)
}

// AllTopics returns a pattern matching all hcbridge topics.
// Use with caution - this receives ALL traffic.
//
// Pattern: hcbridge/#
func (t Topics) AllTopics() string {
	return t.TopicPrefix + "/#"
}

// ParseService splits a concrete service topic into device ID and service
// name. ok is false for topics outside the service tree.
func (t Topics) ParseService(topic string) (deviceID, service string, ok bool) {
	rest, found := strings.CutPrefix(topic, t.TopicPrefix+"/")
	if !found {
		return "", "", false
	}
	parts := strings.Split(rest, "/")
	if len(parts) != 3 || parts[1] != "service" || parts[0] == "" || parts[2] == "" {
		return "", "", false
	}
	return parts[0], parts[2], true
}

var topicReplacer = strings.NewReplacer("/", "_", "+", "_", "#", "_", " ", "_")

// Sanitize makes s safe to use as a single topic level.
func Sanitize(s string) string {
	return topicReplacer.Replace(s)
}
