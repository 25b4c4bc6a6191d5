// Package store persists the bridge's appliance registry and the history of
// projected entity states in SQLite.
//
// The appliances table mirrors the configured appliances (connection
// details plus the description document they were set up from). The
// entity_state_history table receives one row per changed entity state via
// HistorySink, which the bridge registers as a state sink.
//
// Usage:
//
//	s := store.New(db.DB)
//	created, err := s.CreateIfNotExists(ctx, &store.Appliance{ID: "HOOD-1", Description: raw})
//
//	sink := store.NewHistorySink(s, store.HistoryOptions{Retention: 30 * 24 * time.Hour})
//	sink.Start()
//	defer sink.Close()
package store
