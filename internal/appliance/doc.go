// Package appliance models a single home appliance as seen through its local
// session: a flat set of capability entities (status, settings, events,
// commands, options) plus the appliance's programs.
//
// # Capability Entities
//
// Every capability is an [Entity] with a stable numeric UID, a dotted name
// (e.g. "BSH.Common.Status.DoorState"), an access mode, an optional ordered
// enumeration and the latest raw value reported by the appliance.
//
// Values only change when the session delivers a notification. Writes are
// requests: [Entity.SetValue] sends the new value to the appliance and the
// local value follows once the appliance confirms it with a notification.
//
// # Listeners
//
// Interested parties register a [Listener] on an entity. Registration is
// keyed by listener identity, so registering twice is harmless and
// unregistering removes exactly that listener. Listeners are invoked after
// the value has been stored and may register or unregister listeners from
// inside the callback.
//
// # Session
//
// The wire transport is abstracted behind [Session]. The appliance installs
// a message handler on the session and applies inbound value notifications
// to its entities. Connection state changes are forwarded to whoever called
// [Appliance.SetConnectionHandler].
//
// # Thread Safety
//
// All exported types are safe for concurrent use from multiple goroutines.
package appliance
