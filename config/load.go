package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// AppConfig holds the main runtime configuration.
type AppConfig struct {
	Env        string                     `yaml:"env"` // sandbox | production
	Broker     BrokerConfig               `yaml:"broker"`
	Reconcile  ReconcileConfig            `yaml:"reconcile"`
	RateLimits map[string]RateLimitConfig `yaml:"rateLimits"` // keyed by request category
	Journal    JournalConfig              `yaml:"journal"`
	Metrics    MetricsConfig              `yaml:"metrics"`
	Symbols    map[string]SymbolConfig    `yaml:"symbols"`
}

type BrokerConfig struct {
	BaseURL        string `yaml:"baseURL"`
	StreamURL      string `yaml:"streamURL"` // 账户事件流，可留空（纯轮询）
	Token          string `yaml:"token"`
	AccountID      string `yaml:"accountID"`
	TimeoutSeconds int    `yaml:"timeoutSeconds"`
}

type ReconcileConfig struct {
	IntervalMs        int `yaml:"intervalMs"` // 0 时按 env 取默认
	DebounceMs        int `yaml:"debounceMs"`
	RejectedWindowSec int `yaml:"rejectedWindowSec"`
}

// RateLimitConfig 单个请求类别的令牌桶参数。
type RateLimitConfig struct {
	Rate  float64 `yaml:"rate"` // 每秒补充令牌数
	Burst float64 `yaml:"burst"`
}

type JournalConfig struct {
	Path string `yaml:"path"`
}

type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// SymbolConfig 本地标的到券商标的的映射与费用参数。
type SymbolConfig struct {
	BrokerSymbol string  `yaml:"brokerSymbol"`
	FeePerShare  float64 `yaml:"feePerShare"`
	MinQty       float64 `yaml:"minQty"`
	MaxQty       float64 `yaml:"maxQty"`
}

// Interval 返回生效的轮询间隔：未配置时 production 1s、sandbox 5s。
func (c AppConfig) Interval() time.Duration {
	if c.Reconcile.IntervalMs > 0 {
		return time.Duration(c.Reconcile.IntervalMs) * time.Millisecond
	}
	if c.Env == "production" {
		return time.Second
	}
	return 5 * time.Second
}

// Debounce 返回未知 id 验证的去抖延迟。
func (c AppConfig) Debounce() time.Duration {
	if c.Reconcile.DebounceMs > 0 {
		return time.Duration(c.Reconcile.DebounceMs) * time.Millisecond
	}
	return 500 * time.Millisecond
}

// RejectedWindow 返回近期被拒 id 的豁免窗口。
func (c AppConfig) RejectedWindow() time.Duration {
	if c.Reconcile.RejectedWindowSec > 0 {
		return time.Duration(c.Reconcile.RejectedWindowSec) * time.Second
	}
	return time.Minute
}

// Load reads YAML config from path and applies basic validation.
func Load(path string) (AppConfig, error) {
	var cfg AppConfig
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("parse yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// LoadWithEnvOverrides loads config then overrides sensitive fields from env vars if present.
func LoadWithEnvOverrides(path string) (AppConfig, error) {
	var cfg AppConfig
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("parse yaml: %w", err)
	}
	if v := os.Getenv("BB_BROKER_TOKEN"); v != "" {
		cfg.Broker.Token = v
	}
	if v := os.Getenv("BB_BROKER_ACCOUNT_ID"); v != "" {
		cfg.Broker.AccountID = v
	}
	return cfg, Validate(cfg)
}
