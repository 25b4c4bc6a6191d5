// Package session implements appliance sessions.
//
// [Websocket] talks to an appliance (or a local proxy terminating the
// appliance's transport encryption) over a websocket carrying JSON frames.
// It performs the initial-values handshake, correlates requests with
// responses by message id, forwards unsolicited notifications and
// re-establishes a lost connection with exponential backoff, reporting
// RECONNECTING, CONNECTED and CLOSED to the connection handler.
//
// [Memory] is an in-process session with scripted connect outcomes. It is
// used by tests and by the development mode that runs an appliance from its
// description dump without hardware.
package session
