// Package config provides configuration for the request guard service.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/auth-platform/platform/request-guard/internal/domain"
)

// Config represents the complete service configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	OTEL      OTELConfig      `yaml:"otel"`
	Guard     GuardConfig     `yaml:"guard"`
	Simulator SimulatorConfig `yaml:"simulator"`
	Log       LogConfig       `yaml:"log"`
}

// ServerConfig defines server settings.
type ServerConfig struct {
	MetricsAddr     string        `yaml:"metricsAddr"`
	GRPCAddr        string        `yaml:"grpcAddr"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

// OTELConfig defines OpenTelemetry settings. Tracing is disabled when the
// endpoint is empty.
type OTELConfig struct {
	Endpoint    string `yaml:"endpoint"`
	ServiceName string `yaml:"serviceName"`
	Insecure    bool   `yaml:"insecure"`
}

// GuardConfig defines the guarded target and its resilience settings.
type GuardConfig struct {
	Target  string               `yaml:"target"`
	Policy  domain.RetryPolicy   `yaml:"policy"`
	Breaker domain.BreakerConfig `yaml:"breaker"`
}

// SimulatorConfig defines the fault-injecting demo upstream.
type SimulatorConfig struct {
	FailureRate float64       `yaml:"failureRate"`
	MinLatency  time.Duration `yaml:"minLatency"`
	MaxLatency  time.Duration `yaml:"maxLatency"`
	Interval    time.Duration `yaml:"interval"`
}

// LogConfig defines logging settings.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// NewDefaultConfig returns configuration with sensible defaults.
func NewDefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			MetricsAddr:     ":9090",
			GRPCAddr:        ":50057",
			ShutdownTimeout: 30 * time.Second,
		},
		OTEL: OTELConfig{
			ServiceName: "request-guard",
			Insecure:    true,
		},
		Guard: GuardConfig{
			Target:  "upstream",
			Policy:  domain.DefaultRetryPolicy(),
			Breaker: domain.DefaultBreakerConfig(),
		},
		Simulator: SimulatorConfig{
			FailureRate: 0.5,
			MinLatency:  20 * time.Millisecond,
			MaxLatency:  200 * time.Millisecond,
			Interval:    2 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load reads configuration from the optional yaml file at path, then applies
// environment overrides on top of defaults. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := NewDefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks configuration invariants.
func (c *Config) Validate() error {
	if c.Guard.Policy.MaxRetries < 0 {
		return fmt.Errorf("guard.policy.maxRetries must be non-negative, got %d", c.Guard.Policy.MaxRetries)
	}
	if c.Guard.Policy.BaseDelay < 0 {
		return fmt.Errorf("guard.policy.baseDelay must be non-negative, got %v", c.Guard.Policy.BaseDelay)
	}
	if c.Guard.Breaker.FailureThreshold <= 0 {
		return fmt.Errorf("guard.breaker.failureThreshold must be positive, got %d", c.Guard.Breaker.FailureThreshold)
	}
	if c.Guard.Breaker.OpenDuration <= 0 {
		return fmt.Errorf("guard.breaker.openDuration must be positive, got %v", c.Guard.Breaker.OpenDuration)
	}
	switch c.Guard.Policy.Backoff {
	case domain.BackoffExponential, domain.BackoffLinear, domain.BackoffFixed:
	default:
		return fmt.Errorf("guard.policy.backoff must be one of exponential, linear, fixed; got %q", c.Guard.Policy.Backoff)
	}
	return nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("GUARD_METRICS_ADDR"); v != "" {
		cfg.Server.MetricsAddr = v
	}
	if v := os.Getenv("GUARD_GRPC_ADDR"); v != "" {
		cfg.Server.GRPCAddr = v
	}
	if v := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); v != "" {
		cfg.OTEL.Endpoint = v
	}
	if v := os.Getenv("GUARD_TARGET"); v != "" {
		cfg.Guard.Target = v
	}
	if v := os.Getenv("GUARD_MAX_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Guard.Policy.MaxRetries = n
		}
	}
	if v := os.Getenv("GUARD_BASE_DELAY"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Guard.Policy.BaseDelay = d
		}
	}
	if v := os.Getenv("GUARD_BACKOFF"); v != "" {
		cfg.Guard.Policy.Backoff = domain.BackoffKind(v)
	}
	if v := os.Getenv("GUARD_CIRCUIT_THRESHOLD"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Guard.Breaker.FailureThreshold = n
		}
	}
	if v := os.Getenv("GUARD_CIRCUIT_OPEN_DURATION"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Guard.Breaker.OpenDuration = d
		}
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
}
