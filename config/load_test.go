package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

const sampleYAML = `
env: sandbox
broker:
  baseURL: https://sandbox.example.com
  token: test-token
  accountID: ACC123
rateLimits:
  orders:
    rate: 0.5
    burst: 10
symbols:
  AAPL:
    brokerSymbol: AAPL
    feePerShare: 0.005
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadValidConfig(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleYAML))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Env != "sandbox" || cfg.Broker.AccountID != "ACC123" {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if cfg.Symbols["AAPL"].FeePerShare != 0.005 {
		t.Fatalf("symbol config not parsed: %+v", cfg.Symbols)
	}
}

func TestLoadRejectsBadEnv(t *testing.T) {
	bad := `
env: staging
broker:
  baseURL: https://x
  token: t
  accountID: a
`
	if _, err := Load(writeConfig(t, bad)); err == nil {
		t.Fatalf("staging env must be rejected")
	}
}

func TestLoadRejectsMissingToken(t *testing.T) {
	bad := `
env: sandbox
broker:
  baseURL: https://x
  accountID: a
`
	if _, err := Load(writeConfig(t, bad)); err == nil {
		t.Fatalf("missing token must be rejected")
	}
}

func TestEnvOverrides(t *testing.T) {
	noToken := `
env: production
broker:
  baseURL: https://api.example.com
  accountID: ACC9
`
	t.Setenv("BB_BROKER_TOKEN", "env-token")
	cfg, err := LoadWithEnvOverrides(writeConfig(t, noToken))
	if err != nil {
		t.Fatalf("load with overrides: %v", err)
	}
	if cfg.Broker.Token != "env-token" {
		t.Fatalf("token override not applied: %q", cfg.Broker.Token)
	}
}

func TestIntervalDefaultsByEnv(t *testing.T) {
	if got := (AppConfig{Env: "production"}).Interval(); got != time.Second {
		t.Fatalf("production default interval: %v", got)
	}
	if got := (AppConfig{Env: "sandbox"}).Interval(); got != 5*time.Second {
		t.Fatalf("sandbox default interval: %v", got)
	}
	explicit := AppConfig{Env: "sandbox", Reconcile: ReconcileConfig{IntervalMs: 250}}
	if got := explicit.Interval(); got != 250*time.Millisecond {
		t.Fatalf("explicit interval: %v", got)
	}
}

func TestEffectiveRateLimits(t *testing.T) {
	cfg := AppConfig{RateLimits: map[string]RateLimitConfig{
		"orders": {Rate: 0.5, Burst: 10},
	}}
	rl := EffectiveRateLimits(cfg)
	if rl["orders"].Burst != 10 {
		t.Fatalf("override lost: %+v", rl["orders"])
	}
	if rl["market_data"].Burst == 0 {
		t.Fatalf("default category missing: %+v", rl)
	}
}
