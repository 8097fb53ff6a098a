// Package database provides SQLite storage for SyrupLink Core.
//
// The database holds the dispense history: one row per drug line sent to a
// dispenser and one summary row per patient request. The device catalog is
// NOT stored here; it lives in a JSON file owned by the dispenser package.
//
// # Features
//
//   - WAL mode for concurrent reads during writes
//   - Embedded SQL migrations (compiled into the binary)
//   - Health checks for monitoring
//
// # Usage
//
//	db, err := database.Open(database.Config{
//	    Path:        "data/syruplink.db",
//	    WALMode:     true,
//	    BusyTimeout: 5,
//	})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
package database
