package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds all runtime configuration loaded from environment variables.
// Every field has a sensible default; only DATABASE_URL is required.
type Config struct {
	// Server
	HTTPPort        string        `env:"HTTP_PORT" envDefault:"8080"`
	ReadTimeout     time.Duration `env:"READ_TIMEOUT" envDefault:"5s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT" envDefault:"10s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`

	// Database
	DatabaseURL string `env:"DATABASE_URL,notEmpty"`
	DBMaxConns  int32  `env:"DB_MAX_CONNS" envDefault:"25"`
	DBMinConns  int32  `env:"DB_MIN_CONNS" envDefault:"5"`

	// Dedup: include the producer timestamp in the fingerprint so only
	// exact resubmissions (same occurred_at) count as duplicates.
	DedupIncludeOccurredAt bool `env:"DEDUP_INCLUDE_OCCURRED_AT" envDefault:"false"`

	// Retry / backoff
	MaxAttempts       int           `env:"MAX_ATTEMPTS" envDefault:"5"`
	BackoffBase       time.Duration `env:"BACKOFF_BASE" envDefault:"30s"`
	BackoffMultiplier float64       `env:"BACKOFF_MULTIPLIER" envDefault:"2"`
	BackoffMax        time.Duration `env:"BACKOFF_MAX" envDefault:"1h"`
	BackoffJitterFrac float64       `env:"BACKOFF_JITTER_FRAC" envDefault:"0.2"`

	// Dispatch
	BatchLimit       int           `env:"BATCH_LIMIT" envDefault:"50"`
	HandlerTimeout   time.Duration `env:"HANDLER_TIMEOUT" envDefault:"30s"`
	DispatchInterval time.Duration `env:"DISPATCH_INTERVAL" envDefault:"5s"`

	// Recovery sweep for jobs stuck in processing
	ProcessingGrace  time.Duration `env:"PROCESSING_GRACE" envDefault:"5m"`
	RecoveryInterval time.Duration `env:"RECOVERY_INTERVAL" envDefault:"1m"`

	// Rate limiting: maximum enqueues per second per tenant
	TenantRateLimit int `env:"TENANT_RATE_LIMIT" envDefault:"50"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	return &cfg, nil
}
