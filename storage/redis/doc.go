// Package redis provides Redis client initialization with retry logic plus a
// Redis-backed job store for the queue.
//
// Connect validates the connection URL, establishes a client with exponential
// backoff retries, and verifies connectivity with a ping before returning.
// Store persists job snapshots as JSON values, one key per job, and
// implements queue.JobStore so the queue mirrors every lifecycle transition
// into Redis.
//
// # Configuration
//
// All settings map to environment variables through the Config struct:
//
//	type Config struct {
//		ConnectionURL  string        `env:"REDIS_URL,required" envDefault:"redis://localhost:6379/0"`
//		RetryAttempts  int           `env:"REDIS_RETRY_ATTEMPTS" envDefault:"3"`
//		RetryInterval  time.Duration `env:"REDIS_RETRY_INTERVAL" envDefault:"5s"`
//		ConnectTimeout time.Duration `env:"REDIS_CONNECT_TIMEOUT" envDefault:"30s"`
//		KeyPrefix      string        `env:"REDIS_JOB_KEY_PREFIX" envDefault:"jobq:job:"`
//		JobTTL         time.Duration `env:"REDIS_JOB_TTL" envDefault:"0"`
//	}
//
// Both redis:// and rediss:// (TLS) URL schemes are supported.
//
// # Usage
//
//	var cfg redis.Config
//	config.MustLoad(&cfg)
//
//	client, err := redis.Connect(ctx, cfg)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer client.Close()
//
//	q := queue.New(queue.DefaultConfig(),
//		queue.WithJobStore(redis.NewStore(client,
//			redis.WithKeyPrefix(cfg.KeyPrefix),
//			redis.WithJobTTL(cfg.JobTTL),
//		)),
//	)
//
// # Health Checking
//
// Healthcheck returns a probe function for readiness endpoints:
//
//	check := redis.Healthcheck(client)
//	if err := check(ctx); err != nil {
//		// report unhealthy
//	}
//
// # Error Handling
//
// The package defines sentinel errors checkable with errors.Is:
// ErrEmptyConnectionURL and ErrFailedToParseRedisConnString for invalid
// configuration, ErrRedisNotReady when the server stays unreachable through
// all retries, and ErrHealthcheckFailed from the probe. Store.LoadJob maps
// missing keys to queue.ErrJobNotFound.
package redis
