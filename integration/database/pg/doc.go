// Package pg provides PostgreSQL connection management, goose migrations,
// health checking and error classification on top of pgx.
//
// Connect builds a pgxpool.Pool from Config and pings it, retrying with
// exponential backoff (sethvargo/go-retry) so a service started alongside its
// database does not fail on the first refused connection:
//
//	pool, err := pg.Connect(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	defer pool.Close()
//
// Migrate runs goose migrations from any fs.FS, typically an embed.FS owned by
// the package that defines the schema:
//
//	if err := pg.Migrate(ctx, pool, cfg, pgstore.Migrations(), log); err != nil {
//		return err
//	}
//
// InTx runs a function inside a transaction and propagates it through the
// context (WithTx / TxFromContext) so nested repositories join the same unit of
// work. RetrySerializable re-runs a SERIALIZABLE unit of work on SQLSTATE 40001
// and 40P01.
//
// Error classifiers:
//
//	pg.IsNotFoundError(err)        // pgx.ErrNoRows
//	pg.IsDuplicateKeyError(err)    // 23505
//	pg.IsSerializationError(err)   // 40001, 40P01
//	pg.IsUnavailableError(err)     // connection failures, shutdowns, timeouts
//
// Healthcheck returns a func(context.Context) error for readiness probes.
package pg
