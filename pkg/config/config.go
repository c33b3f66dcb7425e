// Package config loads cellardb's runtime configuration from, in
// increasing precedence, a YAML file, environment variables, and command
// line flags; the last source to set a field wins.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/cellardb/cellardb/pkg/log"
)

// Config is cellardb's full runtime configuration.
type Config struct {
	// DataDir holds the chunk store database and any other on-disk state.
	DataDir string `yaml:"data_dir"`

	// MaxWorkers bounds the LSM maintenance worker pool. Must be >= 3.
	MaxWorkers int `yaml:"max_workers"`

	// SwitchIdle and ManagerIdle override the scheduler's sleep
	// intervals when no trees are open; zero keeps the package default.
	// ManagerBusyRetry overrides how long the Manager Thread sleeps after
	// an inspection pass that queued no Merge work.
	SwitchIdle       time.Duration `yaml:"switch_idle"`
	ManagerIdle      time.Duration `yaml:"manager_idle"`
	ManagerBusyRetry time.Duration `yaml:"manager_busy_retry"`

	// BloomFalsePositiveRate is the target false-positive rate for
	// newly built chunk Bloom filters.
	BloomFalsePositiveRate float64 `yaml:"bloom_false_positive_rate"`

	LogLevel log.Level `yaml:"log_level"`
	LogJSON  bool       `yaml:"log_json"`

	MetricsAddr string `yaml:"metrics_addr"`
}

// Default returns the built-in defaults; Load starts from these before
// applying the file, environment, and flag layers.
func Default() Config {
	return Config{
		DataDir:                "./data",
		MaxWorkers:             3,
		BloomFalsePositiveRate: 0.01,
		LogLevel:               log.InfoLevel,
		LogJSON:                true,
		MetricsAddr:            ":9090",
	}
}

// Load builds a Config by layering a YAML file (if path is non-empty and
// exists), then environment variables prefixed CELLARDB_, over
// Default(). Flags are applied by the caller afterward, since cobra owns
// flag parsing.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return cfg, fmt.Errorf("config: read %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("CELLARDB_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("CELLARDB_MAX_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MaxWorkers = n
		}
	}
	if v := os.Getenv("CELLARDB_LOG_LEVEL"); v != "" {
		cfg.LogLevel = log.Level(v)
	}
	if v := os.Getenv("CELLARDB_LOG_JSON"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.LogJSON = b
		}
	}
	if v := os.Getenv("CELLARDB_METRICS_ADDR"); v != "" {
		cfg.MetricsAddr = v
	}
}

// Validate checks invariants Load can't enforce on its own, notably the
// worker pool floor the Manager itself would otherwise reject.
func (c Config) Validate() error {
	if c.MaxWorkers < 3 {
		return fmt.Errorf("config: max_workers must be at least 3, got %d", c.MaxWorkers)
	}
	if c.DataDir == "" {
		return fmt.Errorf("config: data_dir must not be empty")
	}
	if c.BloomFalsePositiveRate <= 0 || c.BloomFalsePositiveRate >= 1 {
		return fmt.Errorf("config: bloom_false_positive_rate must be in (0, 1), got %f", c.BloomFalsePositiveRate)
	}
	return nil
}
