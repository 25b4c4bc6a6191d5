// Package hass publishes bridged appliances to Home Assistant over MQTT.
//
// The Host is a bridge.StateSink. When a bridge registers its entities the
// host publishes one retained discovery config per entity and subscribes
// to the entity's command topics. Every published entity state is written
// to retained state, attribute and availability topics.
//
// Topic Structure:
//
//	homeassistant/{component}/{device_id}/{key}/config    discovery (retained)
//	hcbridge/{device_id}/{key}/state                      state (retained)
//	hcbridge/{device_id}/{key}/attributes                 JSON attributes (retained)
//	hcbridge/{device_id}/{key}/availability               online/offline (retained)
//	hcbridge/{device_id}/{key}/set                        commands
//	hcbridge/{device_id}/{key}/percentage[/set]           fan speed
//	hcbridge/{device_id}/service/{service}                appliance services
//	hcbridge/bridge/status                                bridge LWT
//
// When Home Assistant announces itself online on homeassistant/status the
// host republishes every discovery config and current state.
package hass
