// Package config provides configuration loading for epochd.
package config

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const envPrefix = "EPOCHD_"

// Config is the root worker configuration.
type Config struct {
	Temporal TemporalConfig `koanf:"temporal"`
	Audit    AuditConfig    `koanf:"audit"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// TemporalConfig locates the Temporal cluster.
type TemporalConfig struct {
	HostPort  string `koanf:"host_port"`
	Namespace string `koanf:"namespace"`
	TaskQueue string `koanf:"task_queue"`
}

// AuditConfig selects the audit trail backend bound at worker start.
type AuditConfig struct {
	// Backend is "memory" or "sqlite".
	Backend string `koanf:"backend"`

	// Path is the sqlite database path; required for the sqlite backend.
	Path string `koanf:"path"`
}

// LoggingConfig controls the zap logger.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// Load reads configuration with the following precedence (highest first):
//
//  1. Environment variables (EPOCHD_TEMPORAL_HOST_PORT, EPOCHD_AUDIT_BACKEND, ...)
//  2. YAML config file, when configPath names an existing file
//  3. Defaults
//
// Environment variables map to config keys by dropping the prefix, lowering,
// and splitting on the first underscore: EPOCHD_AUDIT_BACKEND -> audit.backend.
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			f, err := os.Open(configPath)
			if err != nil {
				return nil, fmt.Errorf("opening config file: %w", err)
			}
			content, err := io.ReadAll(f)
			_ = f.Close()
			if err != nil {
				return nil, fmt.Errorf("reading config file: %w", err)
			}
			if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("parsing config file %s: %w", configPath, err)
			}
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		// EPOCHD_TEMPORAL_HOST_PORT -> temporal.host_port
		lower := strings.ToLower(strings.TrimPrefix(s, envPrefix))
		parts := strings.SplitN(lower, "_", 2)
		if len(parts) == 1 {
			return lower
		}
		return parts[0] + "." + parts[1]
	}), nil); err != nil {
		return nil, fmt.Errorf("loading environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	applyDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Temporal.HostPort == "" {
		cfg.Temporal.HostPort = "localhost:7233"
	}
	if cfg.Temporal.Namespace == "" {
		cfg.Temporal.Namespace = "default"
	}
	if cfg.Temporal.TaskQueue == "" {
		cfg.Temporal.TaskQueue = "epoch-lifecycle-queue"
	}
	if cfg.Audit.Backend == "" {
		cfg.Audit.Backend = "memory"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

// Validate rejects configurations the worker cannot run with.
func (c *Config) Validate() error {
	switch c.Audit.Backend {
	case "memory":
	case "sqlite":
		if c.Audit.Path == "" {
			return fmt.Errorf("audit.path is required for the sqlite backend")
		}
	default:
		return fmt.Errorf("unknown audit backend %q (want memory or sqlite)", c.Audit.Backend)
	}

	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("unknown logging format %q (want json or console)", c.Logging.Format)
	}
	return nil
}
