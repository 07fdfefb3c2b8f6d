package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New())
//  2. file (YAML) if RVUTRACK_CONFIG is set
//  3. env (prefix RVUTRACK_)
func Load(ctx context.Context) (*Config, error) {
	base := New()

	k := koanf.New(".")

	if path := os.Getenv("RVUTRACK_CONFIG"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrLoadConfig, err)
		}
	}

	// Map env keys like RVUTRACK_MIN_STUDY_SECONDS -> min_study_seconds,
	// matching the koanf tags on the struct.
	envProvider := env.Provider("RVUTRACK_", ".", func(s string) string {
		s = strings.ToLower(s)
		return strings.TrimPrefix(s, "rvutrack_")
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoadConfig, err)
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoadConfig, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Addr == "" {
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	}
	if c.MinStudySeconds < 0 {
		return fmt.Errorf("%w: min_study_seconds must not be negative", ErrInvalidConfig)
	}
	if c.GroupWindowSeconds < 0 {
		return fmt.Errorf("%w: group_window_seconds must not be negative", ErrInvalidConfig)
	}
	if c.TempFoldCutoffRVU < 0 {
		return fmt.Errorf("%w: temp_fold_cutoff_rvu must not be negative", ErrInvalidConfig)
	}
	if c.PersistQueueSize <= 0 {
		return fmt.Errorf("%w: persist_queue_size must be positive", ErrInvalidConfig)
	}
	if c.WriterCount <= 0 {
		return fmt.Errorf("%w: writer_count must be positive", ErrInvalidConfig)
	}
	if c.PersistMaxAttempts <= 0 {
		return fmt.Errorf("%w: persist_max_attempts must be positive", ErrInvalidConfig)
	}
	if c.PersistBackoffBaseMS <= 0 || c.PersistBackoffMaxMS < c.PersistBackoffBaseMS {
		return fmt.Errorf("%w: persist backoff range is invalid", ErrInvalidConfig)
	}
	return nil
}
