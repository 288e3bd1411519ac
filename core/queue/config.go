package queue

import "time"

// Config holds the configuration for the queue scheduler, executor, and
// stalled-job monitor. Designed for environment-based configuration using
// popular env parsing libraries.
type Config struct {
	// Scheduler configuration
	Concurrency  int           `env:"QUEUE_CONCURRENCY" envDefault:"5"`
	PollInterval time.Duration `env:"QUEUE_POLL_INTERVAL" envDefault:"1s"`

	// Stalled-job monitor configuration. A processing job is considered
	// stalled after 2x StalledCheckInterval without finishing.
	StalledCheckInterval time.Duration `env:"QUEUE_STALLED_CHECK_INTERVAL" envDefault:"30s"`
	MaxStalledRetries    int           `env:"QUEUE_MAX_STALLED_RETRIES" envDefault:"3"`

	// Per-job defaults applied when Add options omit them
	DefaultMaxAttempts int           `env:"QUEUE_DEFAULT_MAX_ATTEMPTS" envDefault:"3"`
	DefaultRetryDelay  time.Duration `env:"QUEUE_DEFAULT_RETRY_DELAY" envDefault:"5s"`
	DefaultTimeout     time.Duration `env:"QUEUE_DEFAULT_TIMEOUT" envDefault:"5m"`

	// Lifecycle configuration
	ShutdownTimeout time.Duration `env:"QUEUE_SHUTDOWN_TIMEOUT" envDefault:"30s"`
}

// DefaultConfig returns sensible defaults for production use.
func DefaultConfig() Config {
	return Config{
		Concurrency:          5,
		PollInterval:         time.Second,
		StalledCheckInterval: 30 * time.Second,
		MaxStalledRetries:    3,
		DefaultMaxAttempts:   3,
		DefaultRetryDelay:    5 * time.Second,
		DefaultTimeout:       5 * time.Minute,
		ShutdownTimeout:      30 * time.Second,
	}
}

// normalize fills zero or negative fields with defaults so a partially
// populated Config is always safe to run with.
func (c Config) normalize() Config {
	def := DefaultConfig()
	if c.Concurrency <= 0 {
		c.Concurrency = def.Concurrency
	}
	if c.PollInterval <= 0 {
		c.PollInterval = def.PollInterval
	}
	if c.StalledCheckInterval <= 0 {
		c.StalledCheckInterval = def.StalledCheckInterval
	}
	if c.MaxStalledRetries <= 0 {
		c.MaxStalledRetries = def.MaxStalledRetries
	}
	if c.DefaultMaxAttempts <= 0 {
		c.DefaultMaxAttempts = def.DefaultMaxAttempts
	}
	if c.DefaultRetryDelay <= 0 {
		c.DefaultRetryDelay = def.DefaultRetryDelay
	}
	if c.DefaultTimeout <= 0 {
		c.DefaultTimeout = def.DefaultTimeout
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = def.ShutdownTimeout
	}
	return c
}
