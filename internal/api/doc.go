// Package api implements the HTTP REST API and WebSocket server for hcbridge.
//
// This package provides:
//   - REST endpoints listing bridged appliances and their projected entities
//   - Entity state history backed by the SQLite store
//   - Appliance services (start_program, set_start_in, set_finish_in, set_option)
//   - WebSocket hub broadcasting entity state changes
//   - Optional HS256 bearer authentication
//   - Middleware stack (request ID, logging, recovery, CORS, body limit)
//
// # Architecture
//
// The hub is a bridge.StateSink: every bridge publishes its entity states
// to it, and it fans them out to WebSocket clients subscribed to
// "entity.state_changed". Services are forwarded to the bridge manager.
//
// # Security
//
// When security.jwt.secret is set, every route except /health requires a
// Bearer token signed with that secret. Browsers that cannot set headers
// on WebSocket upgrades pass the token as ?access_token=.
package api
