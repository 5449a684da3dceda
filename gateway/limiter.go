package gateway

import (
	"sync"
	"time"
)

// RateLimiter 控制请求速率，避免触发券商限流。
type RateLimiter interface {
	Wait()
}

// Category 请求类别；各类别独立限流。
type Category string

const (
	CategoryMarketData  Category = "market_data"
	CategoryAccountData Category = "account_data"
	CategoryOrders      Category = "orders"
)

// TokenBucketLimiter 是一个简单的令牌桶实现。
type TokenBucketLimiter struct {
	rate   float64
	burst  int
	tokens float64
	last   time.Time
	mu     sync.Mutex
}

func NewTokenBucketLimiter(rate float64, burst int) *TokenBucketLimiter {
	if rate <= 0 {
		rate = 1
	}
	if burst <= 0 {
		burst = 1
	}
	return &TokenBucketLimiter{
		rate:   rate,
		burst:  burst,
		tokens: float64(burst),
		last:   time.Now(),
	}
}

func (l *TokenBucketLimiter) Wait() {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := time.Now()
	elapsed := now.Sub(l.last).Seconds()
	l.last = now
	l.tokens += elapsed * l.rate
	if l.tokens > float64(l.burst) {
		l.tokens = float64(l.burst)
	}
	if l.tokens < 1 {
		sleep := time.Duration((1-l.tokens)/l.rate*float64(time.Second)) + time.Millisecond
		l.mu.Unlock()
		time.Sleep(sleep)
		l.mu.Lock()
		l.tokens = 0
	} else {
		l.tokens -= 1
	}
}

// CategoryLimiter 按请求类别分桶限流；订单类请求的刷新窗口比行情/账户类更紧。
type CategoryLimiter struct {
	mu      sync.Mutex
	buckets map[Category]*TokenBucketLimiter
}

// BucketConfig 单个类别的速率配置。
type BucketConfig struct {
	Rate  float64
	Burst int
}

// NewCategoryLimiter 根据配置创建各类别的独立令牌桶。
// 未配置的类别在首次 Acquire 时按默认值（1 req/s）创建。
func NewCategoryLimiter(cfgs map[Category]BucketConfig) *CategoryLimiter {
	buckets := make(map[Category]*TokenBucketLimiter, len(cfgs))
	for cat, c := range cfgs {
		buckets[cat] = NewTokenBucketLimiter(c.Rate, c.Burst)
	}
	return &CategoryLimiter{buckets: buckets}
}

// Acquire 阻塞直到对应类别有可用令牌。只延迟，从不拒绝。
func (c *CategoryLimiter) Acquire(cat Category) {
	c.mu.Lock()
	b, ok := c.buckets[cat]
	if !ok {
		b = NewTokenBucketLimiter(1, 1)
		c.buckets[cat] = b
	}
	c.mu.Unlock()
	b.Wait()
}
