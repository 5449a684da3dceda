package inventory

// Valuation 基于当前价计算某标的的未实现盈亏。
func (t *Tracker) Valuation(symbol string, price float64) (net float64, pnl float64) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	p, ok := t.positions[symbol]
	if !ok {
		return 0, 0
	}
	net = p.net
	pnl = (price - p.cost) * p.net
	return
}
