// Package database provides the agent's local SQLite store.
//
// This package manages:
//   - Opening the database file with busy timeout and optional WAL mode
//   - Schema migrations loaded from an fs.FS (see the migrations package)
//   - Health checks
//
// The store only holds device-local state (configured pins and the session
// event journal), so the pool is a single connection.
//
// Usage:
//
//	db, err := database.Open(cfg.Database)
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx, migrations.FS); err != nil {
//	    return err
//	}
package database
