// Package dispenser defines the domain types for SyrupLink Core and the
// device catalog.
//
// The catalog is the durable mapping of device identity (hardware address)
// to nickname, drug code, and last known IP address. It exists independently
// of reachability: a saved dispenser stays in the catalog whether or not it
// currently answers on the network.
//
// # Key Types
//
//   - Entry: A saved dispenser (identity, nickname, drug code, address)
//   - Reachable: One device found by a scan cycle (ephemeral)
//   - Connected: A dispenser the connection manager currently holds open
//   - Status: connected / disconnected / dispensing
//   - Catalog: JSON-file backed store, rewritten wholesale on every mutation
//
// # Usage
//
//	catalog := dispenser.NewCatalog("data/catalog.json")
//	if err := catalog.Load(); err != nil {
//	    return err
//	}
//
//	err := catalog.Put(dispenser.Entry{
//	    Identity: "AA:BB:CC:DD:EE:FF",
//	    Address:  "192.168.1.45",
//	    Nickname: "Amoxicillin line",
//	    DrugCode: "P1",
//	})
//
// # Thread Safety
//
// Catalog is safe for concurrent use. Identity strings are normalised
// (separators stripped, uppercased) on every lookup and store.
package dispenser
