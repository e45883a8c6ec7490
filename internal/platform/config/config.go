package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreSQLite   = "sqlite"
)

// Config is centralized process configuration.
// Keep infra values here and pass typed config into builders.
type Config struct {
	ServiceName  string   `env:"SERVICE_NAME" envDefault:"tally"`
	HTTPPort     string   `env:"HTTP_PORT" envDefault:"8080"`
	LedgerStore  string   `env:"LEDGER_STORE" envDefault:"memory"`
	PostgresDSN  string   `env:"POSTGRES_DSN"`
	SQLitePath   string   `env:"SQLITE_PATH" envDefault:"data/ledger.db"`
	Candidates   []string `env:"CANDIDATES" envSeparator:","`
	KafkaBrokers []string `env:"KAFKA_BROKERS" envSeparator:"," envDefault:"localhost:9092"`

	OutboxPollInterval time.Duration `env:"OUTBOX_POLL_INTERVAL" envDefault:"2s"`
	OutboxBatchSize    int           `env:"OUTBOX_BATCH_SIZE" envDefault:"100"`
	AuditInterval      time.Duration `env:"AUDIT_INTERVAL" envDefault:"1m"`
}

func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	cfg.Candidates = trimNonEmpty(cfg.Candidates)
	cfg.KafkaBrokers = trimNonEmpty(cfg.KafkaBrokers)
	cfg.LedgerStore = strings.ToLower(strings.TrimSpace(cfg.LedgerStore))
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks cross-field requirements that struct tags cannot express.
func (c Config) Validate() error {
	switch c.LedgerStore {
	case StoreMemory:
	case StorePostgres:
		if strings.TrimSpace(c.PostgresDSN) == "" {
			return fmt.Errorf("POSTGRES_DSN is required when LEDGER_STORE=%s", StorePostgres)
		}
	case StoreSQLite:
		if strings.TrimSpace(c.SQLitePath) == "" {
			return fmt.Errorf("SQLITE_PATH is required when LEDGER_STORE=%s", StoreSQLite)
		}
	default:
		return fmt.Errorf("unsupported LEDGER_STORE %q", c.LedgerStore)
	}
	if len(c.Candidates) == 0 {
		return fmt.Errorf("CANDIDATES must list at least one candidate")
	}
	if c.OutboxPollInterval <= 0 {
		return fmt.Errorf("OUTBOX_POLL_INTERVAL must be positive")
	}
	if c.AuditInterval <= 0 {
		return fmt.Errorf("AUDIT_INTERVAL must be positive")
	}
	return nil
}

func trimNonEmpty(values []string) []string {
	out := make([]string, 0, len(values))
	for _, value := range values {
		value = strings.TrimSpace(value)
		if value != "" {
			out = append(out, value)
		}
	}
	return out
}
