// Package catalog holds the declarative entity description catalog.
//
// The catalog maps appliance capabilities (by dotted name) onto projected
// entities. It is written in YAML, grouped by entity kind:
//
//	binary_sensor:
//	  - key: binary_sensor_door
//	    entity: BSH.Common.Status.DoorState
//	    device_class: door
//	    value_on: [Open]
//	    value_off: [Closed]
//
// A built-in catalog is embedded; an override file may add or replace
// entries. Extra attributes name a derivation function ("fn") resolved
// from a fixed registry, so catalogs never carry code.
//
// Several entries may share a key when appliances expose the same feature
// under different namespaces. Available keeps the first entry per key whose
// capabilities all exist on the appliance.
//
// Dynamic descriptions are generated from the appliance itself: the active
// program sensor (mapping from program names), the hood fan (from the
// venting and intensive level options) and the WiFi signal probe.
package catalog
