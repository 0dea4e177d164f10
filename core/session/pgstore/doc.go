// Package pgstore stores sessions in PostgreSQL.
//
// Apply the schema once at startup, then build the store over the same pool:
//
//	pool, err := pg.Connect(ctx, cfg.Postgres)
//	if err != nil {
//		return err
//	}
//	if err := pgstore.Migrate(ctx, pool, cfg.Postgres, log); err != nil {
//		return err
//	}
//	store := pgstore.New(pool)
//
// Inserts for one principal are serialized with pg_advisory_xact_lock keyed
// by the principal id, which keeps the per-principal cap exact even when
// several service instances log the same user in at once. Other operations
// are single statements.
package pgstore
