package config

import (
	"fmt"
)

// Validate ensures required fields are present.
func Validate(cfg AppConfig) error {
	if cfg.Env != "sandbox" && cfg.Env != "production" {
		return fmt.Errorf("env must be sandbox or production, got %q", cfg.Env)
	}
	if cfg.Broker.BaseURL == "" {
		return ErrInvalid("broker.baseURL is required")
	}
	if cfg.Broker.Token == "" {
		return ErrInvalid("broker.token is required (or BB_BROKER_TOKEN)")
	}
	if cfg.Broker.AccountID == "" {
		return ErrInvalid("broker.accountID is required (or BB_BROKER_ACCOUNT_ID)")
	}
	if cfg.Broker.TimeoutSeconds < 0 {
		return ErrInvalid("broker.timeoutSeconds must be >= 0")
	}
	if cfg.Reconcile.IntervalMs < 0 || cfg.Reconcile.DebounceMs < 0 || cfg.Reconcile.RejectedWindowSec < 0 {
		return ErrInvalid("reconcile intervals must be >= 0")
	}
	for cat, rl := range cfg.RateLimits {
		if rl.Rate <= 0 {
			return fmt.Errorf("rateLimits.%s.rate must be > 0", cat)
		}
		if rl.Burst <= 0 {
			return fmt.Errorf("rateLimits.%s.burst must be > 0", cat)
		}
	}
	for sym, sc := range cfg.Symbols {
		if sc.BrokerSymbol == "" {
			return fmt.Errorf("symbol %s brokerSymbol is required", sym)
		}
		if sc.FeePerShare < 0 {
			return fmt.Errorf("symbol %s feePerShare must be >= 0", sym)
		}
		if sc.MinQty < 0 || sc.MaxQty < 0 {
			return fmt.Errorf("symbol %s qty bounds must be >= 0", sym)
		}
		if sc.MaxQty > 0 && sc.MinQty > sc.MaxQty {
			return fmt.Errorf("symbol %s minQty exceeds maxQty", sym)
		}
	}
	return nil
}
