package inventory

import "testing"

func TestTrackerUpdate(t *testing.T) {
	tr := NewTracker()
	tr.Update("AAPL", 1, 100)
	if tr.HoldingQuantity("AAPL") != 1 {
		t.Fatalf("expected net 1")
	}
	if tr.AvgCost("AAPL") != 100 {
		t.Fatalf("expected cost 100 got %f", tr.AvgCost("AAPL"))
	}
	tr.Update("AAPL", 1, 110) // cost should move toward 105
	if c := tr.AvgCost("AAPL"); c <= 100 || c >= 110 {
		t.Fatalf("unexpected avg cost %f", c)
	}
}

func TestTrackerShortPosition(t *testing.T) {
	tr := NewTracker()
	tr.Update("AAPL", -5, 100)
	if tr.HoldingQuantity("AAPL") != -5 {
		t.Fatalf("expected net -5, got %f", tr.HoldingQuantity("AAPL"))
	}
	// 平空 5 股后持仓归零，条目清除
	tr.Update("AAPL", 5, 98)
	if tr.HoldingQuantity("AAPL") != 0 {
		t.Fatalf("expected flat, got %f", tr.HoldingQuantity("AAPL"))
	}
	if len(tr.Symbols()) != 0 {
		t.Fatalf("flat symbols must be dropped: %v", tr.Symbols())
	}
}

func TestTrackerPerSymbolIsolation(t *testing.T) {
	tr := NewTracker()
	tr.Update("AAPL", 10, 100)
	tr.Update("MSFT", -3, 300)

	if tr.HoldingQuantity("AAPL") != 10 || tr.HoldingQuantity("MSFT") != -3 {
		t.Fatalf("positions bleed across symbols")
	}
	if tr.HoldingQuantity("TSLA") != 0 {
		t.Fatalf("unknown symbol must be flat")
	}
	if len(tr.Symbols()) != 2 {
		t.Fatalf("expected 2 symbols, got %v", tr.Symbols())
	}
}

func TestTrackerSet(t *testing.T) {
	tr := NewTracker()
	tr.Set("AAPL", 7, 150)
	if tr.HoldingQuantity("AAPL") != 7 || tr.AvgCost("AAPL") != 150 {
		t.Fatalf("set not applied")
	}
	tr.Set("AAPL", 0, 0)
	if len(tr.Symbols()) != 0 {
		t.Fatalf("zero set must clear the entry")
	}
}
