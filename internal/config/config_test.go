package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/auth-platform/platform/request-guard/internal/domain"
	"github.com/auth-platform/platform/request-guard/internal/testutil"
)

func TestDefaults(t *testing.T) {
	cfg, err := Load("")
	testutil.AssertNoError(t, err)

	testutil.AssertEqual(t, cfg.Server.MetricsAddr, ":9090")
	testutil.AssertEqual(t, cfg.Server.GRPCAddr, ":50057")
	testutil.AssertEqual(t, cfg.Guard.Target, "upstream")
	testutil.AssertEqual(t, cfg.Guard.Policy, domain.DefaultRetryPolicy())
	testutil.AssertEqual(t, cfg.Guard.Breaker, domain.DefaultBreakerConfig())
	testutil.AssertEqual(t, cfg.Log.Level, "info")
	testutil.AssertEqual(t, cfg.Log.Format, "json")
}

func TestLoadYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
server:
  metricsAddr: ":8080"
guard:
  target: payments
  policy:
    maxRetries: 5
    baseDelay: 250ms
    backoff: linear
  breaker:
    failureThreshold: 10
    openDuration: 5s
log:
  level: debug
  format: text
`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	testutil.AssertNoError(t, err)

	testutil.AssertEqual(t, cfg.Server.MetricsAddr, ":8080")
	testutil.AssertEqual(t, cfg.Guard.Target, "payments")
	testutil.AssertEqual(t, cfg.Guard.Policy.MaxRetries, 5)
	testutil.AssertEqual(t, cfg.Guard.Policy.BaseDelay, 250*time.Millisecond)
	testutil.AssertEqual(t, cfg.Guard.Policy.Backoff, domain.BackoffLinear)
	testutil.AssertEqual(t, cfg.Guard.Breaker.FailureThreshold, 10)
	testutil.AssertEqual(t, cfg.Guard.Breaker.OpenDuration, 5*time.Second)
	testutil.AssertEqual(t, cfg.Log.Level, "debug")

	// Unset fields keep their defaults.
	testutil.AssertEqual(t, cfg.Server.GRPCAddr, ":50057")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	testutil.AssertError(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("GUARD_TARGET", "inventory")
	t.Setenv("GUARD_MAX_RETRIES", "7")
	t.Setenv("GUARD_BASE_DELAY", "2s")
	t.Setenv("GUARD_BACKOFF", "fixed")
	t.Setenv("GUARD_CIRCUIT_THRESHOLD", "4")
	t.Setenv("GUARD_CIRCUIT_OPEN_DURATION", "45s")
	t.Setenv("LOG_LEVEL", "warn")

	cfg, err := Load("")
	testutil.AssertNoError(t, err)

	testutil.AssertEqual(t, cfg.Guard.Target, "inventory")
	testutil.AssertEqual(t, cfg.Guard.Policy.MaxRetries, 7)
	testutil.AssertEqual(t, cfg.Guard.Policy.BaseDelay, 2*time.Second)
	testutil.AssertEqual(t, cfg.Guard.Policy.Backoff, domain.BackoffFixed)
	testutil.AssertEqual(t, cfg.Guard.Breaker.FailureThreshold, 4)
	testutil.AssertEqual(t, cfg.Guard.Breaker.OpenDuration, 45*time.Second)
	testutil.AssertEqual(t, cfg.Log.Level, "warn")
}

func TestEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("guard:\n  target: from-file\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("GUARD_TARGET", "from-env")

	cfg, err := Load(path)
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, cfg.Guard.Target, "from-env")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"negative max retries", func(c *Config) { c.Guard.Policy.MaxRetries = -1 }},
		{"negative base delay", func(c *Config) { c.Guard.Policy.BaseDelay = -time.Second }},
		{"zero failure threshold", func(c *Config) { c.Guard.Breaker.FailureThreshold = 0 }},
		{"zero open duration", func(c *Config) { c.Guard.Breaker.OpenDuration = 0 }},
		{"unknown backoff", func(c *Config) { c.Guard.Policy.Backoff = "fibonacci" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			tt.mutate(cfg)
			testutil.AssertError(t, cfg.Validate())
		})
	}
}

func TestValidateAcceptsAllBackoffKinds(t *testing.T) {
	for _, kind := range []domain.BackoffKind{domain.BackoffExponential, domain.BackoffLinear, domain.BackoffFixed} {
		cfg := NewDefaultConfig()
		cfg.Guard.Policy.Backoff = kind
		testutil.AssertNoError(t, cfg.Validate())
	}
}
