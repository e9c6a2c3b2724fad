// Package database provides SQLite persistence for the TaHoma bridge.
// The bridge stores only the entity registry here; device state itself
// lives in the in-memory snapshot and never touches disk.
//
// The package manages:
//   - Database connection with WAL mode for concurrent access
//   - Forward-only schema migrations, embedded into the binary
//   - Connection lifecycle and a startup connectivity check
//
// Security considerations:
//   - All queries use parameterised statements (no SQL injection)
//   - Database file permissions are set to 0600 (owner read/write only)
//
// Usage:
//
//	db, err := database.Open(cfg.Database)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// Migration strategy:
//
// Migrations are additive-only; there is no rollback path at runtime.
//   - New columns must be NULLABLE or have DEFAULT values
//   - Recovery from a bad migration is a new forward migration
package database
