package order

import "sync"

// Book 本地订单登记簿：按本地 id 与券商 id 双向检索。
// 实现 OrderLookup，是 Manager/Reconciler 默认的订单主档。
type Book struct {
	mu      sync.RWMutex
	byLocal map[string]*Order
}

func NewBook() *Book {
	return &Book{byLocal: make(map[string]*Order)}
}

// Register 登记一张本地订单。
func (b *Book) Register(o *Order) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.byLocal[o.ID] = o
}

// ByID 按本地 id 检索。
func (b *Book) ByID(localID string) (*Order, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	o, ok := b.byLocal[localID]
	return o, ok
}

// LocalOrderByBrokerID 按券商 id 反查本地订单。
func (b *Book) LocalOrderByBrokerID(brokerID int64) (*Order, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, o := range b.byLocal {
		if o.HasBrokerID(brokerID) {
			return o, true
		}
	}
	return nil, false
}

// Remove 注销一张本地订单。
func (b *Book) Remove(localID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.byLocal, localID)
}

// Active 返回所有未到终态的订单。
func (b *Book) Active() []*Order {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]*Order, 0, len(b.byLocal))
	for _, o := range b.byLocal {
		if !isClosed(o.CurrentStatus()) {
			out = append(out, o)
		}
	}
	return out
}

// Len 返回登记总数。
func (b *Book) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.byLocal)
}
