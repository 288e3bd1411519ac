package redis

import "time"

// Config holds Redis connection settings with environment variable mapping.
type Config struct {
	// ConnectionURL supports redis:// and rediss:// schemes.
	ConnectionURL string `env:"REDIS_URL,required" envDefault:"redis://localhost:6379/0"`
	// RetryAttempts is the number of connection attempts before giving up.
	RetryAttempts int `env:"REDIS_RETRY_ATTEMPTS" envDefault:"3"`
	// RetryInterval is the base interval between attempts; it doubles after
	// each failure.
	RetryInterval time.Duration `env:"REDIS_RETRY_INTERVAL" envDefault:"5s"`
	// ConnectTimeout bounds the entire connection process including retries.
	ConnectTimeout time.Duration `env:"REDIS_CONNECT_TIMEOUT" envDefault:"30s"`
	// KeyPrefix namespaces job keys written by the Store.
	KeyPrefix string `env:"REDIS_JOB_KEY_PREFIX" envDefault:"jobq:job:"`
	// JobTTL expires stored jobs after the given duration. Zero keeps them
	// until deleted.
	JobTTL time.Duration `env:"REDIS_JOB_TTL" envDefault:"0"`
}
