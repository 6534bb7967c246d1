package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/sirupsen/logrus"
)

// Backend identifiers for the order store.
const (
	BackendDynamo   = "dynamodb"
	BackendPostgres = "postgres"
)

// Config holds all process configuration, loaded from the environment
// (with an optional .env file for local development).
type Config struct {
	Port     string `envconfig:"PORT" default:":8080"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
	RunLocal bool   `envconfig:"RUN_LOCAL" default:"false"`

	// Backend selects the order store implementation at startup;
	// nothing else in the process branches on it.
	Backend       string `envconfig:"ORDER_BACKEND" default:"dynamodb"`
	DatabaseURL   string `envconfig:"DATABASE_URL"`
	OrdersTable   string `envconfig:"ORDERS_TABLE" default:"orders"`
	ProductsTable string `envconfig:"PRODUCTS_TABLE" default:"products"`

	LedgerPath       string `envconfig:"LEDGER_PATH" default:"orders-ledger.csv"`
	NotifyQueueURL   string `envconfig:"NOTIFY_QUEUE_URL"`
	ChatWebhookURL   string `envconfig:"CHAT_WEBHOOK_URL"`
	MetricsNamespace string `envconfig:"METRICS_NAMESPACE"`

	CreateRateLimit  int           `envconfig:"CREATE_RATE_LIMIT" default:"5"`
	CreateRateWindow time.Duration `envconfig:"CREATE_RATE_WINDOW" default:"60s"`
	RateMaxKeys      int           `envconfig:"RATE_MAX_KEYS" default:"10000"`
}

// Load reads the optional .env file and the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("process environment: %w", err)
	}
	if cfg.Backend != BackendDynamo && cfg.Backend != BackendPostgres {
		return nil, fmt.Errorf("unknown ORDER_BACKEND %q", cfg.Backend)
	}
	if cfg.Backend == BackendPostgres && cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required for the postgres backend")
	}
	return &cfg, nil
}

// NewLogger builds the process logger at the configured level.
func NewLogger(level string) *logrus.Logger {
	log := logrus.New()
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	log.SetLevel(lvl)
	return log
}
