// Package config loads process settings from the environment and run
// configurations from JSON files.
package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"

	"signal-backtest-lab/internal/domain"
)

// Env holds process-level settings.
type Env struct {
	PostgresDSN      string        `env:"POSTGRES_DSN"`
	ClickhouseDSN    string        `env:"CLICKHOUSE_DSN"`
	KafkaBrokers     []string      `env:"KAFKA_BROKERS" envSeparator:","`
	KafkaTopic       string        `env:"KAFKA_TOPIC" envDefault:"backtest-audit"`
	TelemetryIndex   string        `env:"TELEMETRY_INDEX" envDefault:"algo_tuning"`
	TelemetryBuffer  int           `env:"TELEMETRY_BUFFER" envDefault:"1024"`
	TelemetryTimeout time.Duration `env:"TELEMETRY_TIMEOUT" envDefault:"2s"`
	LogLevel         string        `env:"LOG_LEVEL" envDefault:"info"`
	OutputDir        string        `env:"OUTPUT_DIR" envDefault:"runs"`
	MetricsAddr      string        `env:"METRICS_ADDR"`
	CacheRows        int64         `env:"DATASET_CACHE_ROWS" envDefault:"10000000"`
}

// Load reads an optional .env file and parses the environment.
// Variables already set in the environment win over the file.
func Load(files ...string) (Env, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Env{}, fmt.Errorf("load %s: %w", f, err)
		}
	}

	var cfg Env
	if err := env.Parse(&cfg); err != nil {
		return Env{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// TelemetryEnabled reports whether a Kafka collector is configured.
func (e Env) TelemetryEnabled() bool {
	return len(e.KafkaBrokers) > 0 && e.KafkaTopic != ""
}

// LoadRunConfig reads a JSON run configuration and validates it.
func LoadRunConfig(path string) (domain.RunConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.RunConfig{}, fmt.Errorf("read run config: %w", err)
	}
	return ParseRunConfig(data)
}

// ParseRunConfig decodes and validates a JSON run configuration.
// Unknown fields are rejected.
func ParseRunConfig(data []byte) (domain.RunConfig, error) {
	var cfg domain.RunConfig
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return domain.RunConfig{}, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if cfg.Params.BuyWhileOpen == "" {
		cfg.Params.BuyWhileOpen = domain.OpenSignalClose
	}
	if err := ValidateRun(cfg); err != nil {
		return domain.RunConfig{}, err
	}
	return cfg, nil
}
