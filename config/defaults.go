package config

// DefaultRateLimits 每个请求类别的默认令牌桶参数。
// 行情类请求配额最宽，下单类最紧。
func DefaultRateLimits() map[string]RateLimitConfig {
	return map[string]RateLimitConfig{
		"market_data":  {Rate: 2.0, Burst: 120},
		"account_data": {Rate: 2.0, Burst: 120},
		"orders":       {Rate: 1.0, Burst: 60},
	}
}

// EffectiveRateLimits 合并配置与默认值：缺失的类别用默认补齐。
func EffectiveRateLimits(cfg AppConfig) map[string]RateLimitConfig {
	out := DefaultRateLimits()
	for cat, rl := range cfg.RateLimits {
		out[cat] = rl
	}
	return out
}

// ErrInvalid 用于参数验证错误。
type ErrInvalid string

func (e ErrInvalid) Error() string { return string(e) }
