package inventory

import "sync"

type position struct {
	net  float64
	cost float64
}

// Tracker 维护每个标的的带符号净持仓（空头为负）。
// 实现订单流水线的 HoldingsProvider：跨零拆分依赖这里的快照。
type Tracker struct {
	mu        sync.RWMutex
	positions map[string]*position
}

func NewTracker() *Tracker {
	return &Tracker{positions: make(map[string]*position)}
}

// Update 根据带符号的成交增量调整持仓。
func (t *Tracker) Update(symbol string, deltaQty float64, price float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p := t.positions[symbol]
	if p == nil {
		p = &position{}
		t.positions[symbol] = p
	}
	// 简化：加权平均成本
	totalValue := p.cost*p.net + price*deltaQty
	p.net += deltaQty
	if p.net != 0 {
		p.cost = totalValue / p.net
	} else {
		p.cost = 0
	}
	if p.net == 0 {
		delete(t.positions, symbol)
	}
}

// Set 直接覆盖某标的的持仓（对账/预热用）。
func (t *Tracker) Set(symbol string, net, cost float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if net == 0 {
		delete(t.positions, symbol)
		return
	}
	t.positions[symbol] = &position{net: net, cost: cost}
}

// HoldingQuantity 返回标的的带符号持仓，未持有为 0。
func (t *Tracker) HoldingQuantity(symbol string) float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if p, ok := t.positions[symbol]; ok {
		return p.net
	}
	return 0
}

// AvgCost 返回标的的加权平均成本。
func (t *Tracker) AvgCost(symbol string) float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if p, ok := t.positions[symbol]; ok {
		return p.cost
	}
	return 0
}

// Symbols 返回当前有持仓的全部标的。
func (t *Tracker) Symbols() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]string, 0, len(t.positions))
	for sym := range t.positions {
		out = append(out, sym)
	}
	return out
}
