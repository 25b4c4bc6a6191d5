// Package supervisor owns the lifecycle of one appliance session.
//
// A [Supervisor] connects in the background and keeps retrying until the
// appliance accepts the session, then tracks the session's lifecycle
// events to maintain a single "connected" flag for everything projected
// from the appliance.
//
// # States
//
//	CONNECTING ──success──► CONNECTED ◄──────────────┐
//	    │  ▲                   │                      │
//	    └──┘ retry        RECONNECTING ──CONNECTED────┘
//	                           │
//	                  watchdog expired / CLOSED
//	                           ▼
//	                        CLOSED
//
// While RECONNECTING the supervisor keeps reporting connected so projected
// entities do not flap during short outages. A one-shot watchdog of
// MaxReconnectTime forces the disconnected state if the session has not
// recovered by then.
//
// An appliance that reports its session slot as taken by another client is
// not retried: the supervisor logs once and stays in CONNECTING.
//
// Every transition triggers the OnRefresh callback so all projected
// entities re-publish their state.
package supervisor
