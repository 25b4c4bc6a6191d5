// Package entity projects raw appliance capabilities into typed entities.
//
// A [Description] declares one user-facing entity: its [Kind], the
// capability entities it reads (one primary plus optional secondaries), the
// access modes under which it is available, and presentation hints. A
// [Projected] entity binds a description to a concrete appliance, derives
// its value with the rule selected by the kind, and republishes its state
// whenever one of its capabilities changes.
//
// # Kinds
//
//	sensor          primary value, enumeration labels lower-cased when translated
//	binary_sensor   primary value tested against on/off sets
//	switch          like binary_sensor, writable
//	event_sensor    first active event entity selects an output label
//	active_program  mapped name of the running program
//	wifi            polled signal strength
//	fan             speed table over venting entities, percentage control
//	number          numeric setting
//	select          enumerated setting
//	button          write-only command
//	start_button    starts the selected program
//
// # Availability
//
// An entity is available when the supervisor or the session reports
// connected and the primary capability's current access mode is in the
// description's allow-list. Event sensors only follow the session. Fans
// additionally need a program to drive.
//
// # Publishing
//
// Each projected entity registers itself as listener on the capabilities
// it reads. A notification publishes one [State] through the PublishFunc
// given at construction. A per-entity guard drops notifications that
// arrive while a publish for the same entity is in progress.
package entity
