// Package sqlitestore stores sessions in a local SQLite file through the
// pure-Go modernc.org/sqlite driver.
//
// It suits single-instance deployments where running PostgreSQL is not worth
// it. The database handle keeps one connection, so every transaction runs
// alone and Insert needs no extra locking to keep the per-principal cap.
//
//	db, err := sqlitestore.Open(ctx, cfg.SQLite)
//	if err != nil {
//		return err
//	}
//	if err := sqlitestore.Migrate(ctx, db, cfg.SQLite, log); err != nil {
//		return err
//	}
//	store := sqlitestore.New(db)
package sqlitestore
