// Package postgres provides PostgreSQL connection pooling with retry logic,
// goose-based schema migrations, and a Postgres-backed job store for the
// queue.
//
// Connect validates the connection string, builds a pgx pool with tuned
// limits, and verifies connectivity with exponential backoff retries before
// returning. Migrate applies the embedded schema migrations. Store persists
// job snapshots in the jobq_jobs table with typed columns, so job history
// stays queryable with plain SQL, and implements queue.JobStore.
//
// # Configuration
//
// All settings map to environment variables through the Config struct:
//
//	type Config struct {
//		ConnectionString  string        `env:"PG_CONN_URL,required"`
//		MaxOpenConns      int32         `env:"PG_MAX_OPEN_CONNS" envDefault:"10"`
//		MaxIdleConns      int32         `env:"PG_MAX_IDLE_CONNS" envDefault:"5"`
//		HealthCheckPeriod time.Duration `env:"PG_HEALTHCHECK_PERIOD" envDefault:"1m"`
//		MaxConnIdleTime   time.Duration `env:"PG_MAX_CONN_IDLE_TIME" envDefault:"10m"`
//		MaxConnLifetime   time.Duration `env:"PG_MAX_CONN_LIFETIME" envDefault:"30m"`
//		RetryAttempts     int           `env:"PG_RETRY_ATTEMPTS" envDefault:"3"`
//		RetryInterval     time.Duration `env:"PG_RETRY_INTERVAL" envDefault:"5s"`
//		MigrationsTable   string        `env:"PG_MIGRATIONS_TABLE" envDefault:"jobq_schema_migrations"`
//	}
//
// The defaults suit typical workloads; raise MaxOpenConns for high-traffic
// deployments.
//
// # Usage
//
//	var cfg postgres.Config
//	config.MustLoad(&cfg)
//
//	pool, err := postgres.Connect(ctx, cfg)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer pool.Close()
//
//	if err := postgres.Migrate(ctx, pool, cfg, logger); err != nil {
//		log.Fatal(err)
//	}
//
//	q := queue.New(queue.DefaultConfig(),
//		queue.WithJobStore(postgres.NewStore(pool)),
//	)
//
// # Transactions
//
// Store methods check the context for a pgx.Tx attached with WithTx and run
// inside it when present, so job writes can share a transaction with domain
// writes:
//
//	tx, err := pool.Begin(ctx)
//	if err != nil {
//		return err
//	}
//	defer tx.Rollback(ctx) // safe after commit
//
//	ctx = postgres.WithTx(ctx, tx)
//	if err := store.SaveJob(ctx, job); err != nil {
//		return err
//	}
//	return tx.Commit(ctx)
//
// # Health Checking
//
// Healthcheck returns a probe function for readiness endpoints:
//
//	check := postgres.Healthcheck(pool)
//	if err := check(ctx); err != nil {
//		// report unhealthy
//	}
//
// # Error Handling
//
// The package defines sentinel errors checkable with errors.Is:
// ErrEmptyConnectionString and ErrFailedToParseDBConfig for invalid
// configuration, ErrFailedToOpenDBConnection when the server stays
// unreachable through all retries, ErrFailedToApplyMigrations from Migrate,
// and ErrHealthcheckFailed from the probe. Store.LoadJob maps missing rows
// to queue.ErrJobNotFound.
//
// Classification helpers cover common PostgreSQL failure patterns:
//
//	postgres.IsNotFoundError(err)            // pgx.ErrNoRows
//	postgres.IsDuplicateKeyError(err)        // unique constraint violations
//	postgres.IsForeignKeyViolationError(err) // referential integrity violations
//	postgres.IsTxClosedError(err)            // use of a finished transaction
package postgres
