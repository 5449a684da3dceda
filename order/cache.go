package order

import (
	"sync"

	"broker-bridge-go/gateway"
)

// CachedOpen 缓存中的在途订单：券商快照 + 费用是否已播报。
type CachedOpen struct {
	Order      gateway.BrokerOrder
	FeeEmitted bool
}

// OpenOrderCache 本地权威的券商侧在途订单视图，按券商订单 id 索引。
// 提交路径在请求发出后立即写入（先于确认），保证轮询不会跑在缓存前面。
type OpenOrderCache struct {
	mu      sync.RWMutex
	entries map[int64]*CachedOpen
}

func NewOpenOrderCache() *OpenOrderCache {
	return &OpenOrderCache{entries: make(map[int64]*CachedOpen)}
}

// Upsert 写入或覆盖一条缓存；同一 id 始终只有一条。
func (c *OpenOrderCache) Upsert(id int64, o gateway.BrokerOrder) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.entries[id]; ok {
		existing.Order = o
		return
	}
	c.entries[id] = &CachedOpen{Order: o}
}

// Get 返回指定 id 的缓存项。
func (c *OpenOrderCache) Get(id int64) (*CachedOpen, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[id]
	return e, ok
}

// Remove 删除缓存项。
func (c *OpenOrderCache) Remove(id int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, id)
}

// All 返回当前全部 id 列表（拷贝）。
func (c *OpenOrderCache) All() []int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ids := make([]int64, 0, len(c.entries))
	for id := range c.entries {
		ids = append(ids, id)
	}
	return ids
}

// FindBySymbol 返回该标的的在途订单 id；不存在返回 0。
// 提交入口用它执行"每标的最多一张在途单"。
func (c *OpenOrderCache) FindBySymbol(symbol string) (int64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for id, e := range c.entries {
		if e.Order.Symbol == symbol && e.Order.Open() {
			return id, true
		}
	}
	return 0, false
}

// Len 返回缓存大小。
func (c *OpenOrderCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
