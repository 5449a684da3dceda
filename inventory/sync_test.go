package inventory

import (
	"context"
	"testing"

	"broker-bridge-go/gateway"
	"broker-bridge-go/order"
)

type stubPositions struct {
	positions []gateway.BrokerPosition
}

func (s stubPositions) GetPositions(context.Context) ([]gateway.BrokerPosition, error) {
	return s.positions, nil
}

func TestSyncRefresh(t *testing.T) {
	tr := NewTracker()
	s := Sync{Tracker: tr, Client: stubPositions{positions: []gateway.BrokerPosition{
		{Symbol: "AAPL", Quantity: 10, CostBasis: 1500},
		{Symbol: "MSFT", Quantity: -5, CostBasis: -1600},
	}}}

	if err := s.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if tr.HoldingQuantity("AAPL") != 10 || tr.AvgCost("AAPL") != 150 {
		t.Fatalf("long position wrong: %f @ %f", tr.HoldingQuantity("AAPL"), tr.AvgCost("AAPL"))
	}
	if tr.HoldingQuantity("MSFT") != -5 || tr.AvgCost("MSFT") != 320 {
		t.Fatalf("short position wrong: %f @ %f", tr.HoldingQuantity("MSFT"), tr.AvgCost("MSFT"))
	}
}

func TestSyncApplyFillEvents(t *testing.T) {
	tr := NewTracker()
	s := Sync{Tracker: tr}
	sink := s.Sink()

	sink(order.StatusEvent{Symbol: "AAPL", Status: order.StatusPartial, FillQuantity: 4, FillPrice: 100})
	sink(order.StatusEvent{Symbol: "AAPL", Status: order.StatusFilled, FillQuantity: 6, FillPrice: 101})
	// 纯状态事件不动仓位
	sink(order.StatusEvent{Symbol: "AAPL", Status: order.StatusCanceled})

	if tr.HoldingQuantity("AAPL") != 10 {
		t.Fatalf("expected 10, got %f", tr.HoldingQuantity("AAPL"))
	}
}

func TestValuation(t *testing.T) {
	tr := NewTracker()
	tr.Update("AAPL", 2, 100)
	net, pnl := tr.Valuation("AAPL", 110)
	if net != 2 || pnl != 20 {
		t.Fatalf("unexpected valuation net=%f pnl=%f", net, pnl)
	}
	if net, pnl := tr.Valuation("TSLA", 50); net != 0 || pnl != 0 {
		t.Fatalf("flat symbol must value to zero")
	}
}
