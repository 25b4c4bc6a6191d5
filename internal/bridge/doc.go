// Package bridge runs configured appliances.
//
// A Bridge owns one appliance together with its connection supervisor,
// its projected entities, the poller for polled entities and the state
// sinks that receive every published entity state. Bridges also expose
// the appliance services (starting the selected program with options,
// setting numeric options, relative start and finish times).
//
// A Manager builds bridges from configuration and starts and stops them
// together.
//
// Usage:
//
//	mgr := bridge.NewManager(bridge.ManagerOptions{Catalog: cat, Sinks: sinks})
//	if err := mgr.Build(ctx, cfg); err != nil {
//	    return err
//	}
//	if err := mgr.Start(ctx); err != nil {
//	    return err
//	}
//	defer mgr.Stop()
package bridge
