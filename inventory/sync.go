package inventory

import (
	"context"

	"broker-bridge-go/gateway"
	"broker-bridge-go/order"
)

// PositionsClient 券商持仓查询接口。
type PositionsClient interface {
	GetPositions(ctx context.Context) ([]gateway.BrokerPosition, error)
}

// Sync 把成交事件和券商持仓快照喂给 Tracker。
// 启动时先 Refresh 一次，之后由成交事件增量维护。
type Sync struct {
	Tracker *Tracker
	Client  PositionsClient
	Mapper  order.SymbolMapper // 可为 nil（标的不做映射）
}

// Refresh 用券商快照覆盖本地持仓。
func (s *Sync) Refresh(ctx context.Context) error {
	if s.Tracker == nil || s.Client == nil {
		return nil
	}
	positions, err := s.Client.GetPositions(ctx)
	if err != nil {
		return err
	}
	for _, p := range positions {
		sym := p.Symbol
		if s.Mapper != nil {
			sym = s.Mapper.ToLocal(sym)
		}
		cost := 0.0
		if p.Quantity != 0 {
			cost = p.CostBasis / p.Quantity
		}
		s.Tracker.Set(sym, p.Quantity, cost)
	}
	return nil
}

// Apply 从订单状态事件提取成交增量。
func (s *Sync) Apply(ev order.StatusEvent) {
	if s.Tracker == nil || ev.FillQuantity == 0 {
		return
	}
	s.Tracker.Update(ev.Symbol, ev.FillQuantity, ev.FillPrice)
}

// Sink 返回可接入订单流水线的事件接收函数。
func (s *Sync) Sink() order.EventSink {
	return s.Apply
}
