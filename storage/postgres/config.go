package postgres

import "time"

// Config holds PostgreSQL connection pool settings with environment variable
// mapping. The defaults balance throughput and resource usage for typical
// worker deployments.
type Config struct {
	ConnectionString  string        `env:"PG_CONN_URL,required"`
	MaxOpenConns      int32         `env:"PG_MAX_OPEN_CONNS" envDefault:"10"`
	MaxIdleConns      int32         `env:"PG_MAX_IDLE_CONNS" envDefault:"5"`
	HealthCheckPeriod time.Duration `env:"PG_HEALTHCHECK_PERIOD" envDefault:"1m"`
	MaxConnIdleTime   time.Duration `env:"PG_MAX_CONN_IDLE_TIME" envDefault:"10m"`
	MaxConnLifetime   time.Duration `env:"PG_MAX_CONN_LIFETIME" envDefault:"30m"`
	RetryAttempts     int           `env:"PG_RETRY_ATTEMPTS" envDefault:"3"`
	RetryInterval     time.Duration `env:"PG_RETRY_INTERVAL" envDefault:"5s"`
	// MigrationsTable is the goose bookkeeping table. Prefixed by default so
	// it cannot collide with an application's own migration history.
	MigrationsTable string `env:"PG_MIGRATIONS_TABLE" envDefault:"jobq_schema_migrations"`
}
