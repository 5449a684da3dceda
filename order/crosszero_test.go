package order

import (
	"testing"

	"broker-bridge-go/gateway"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		name     string
		orderQty float64
		holding  float64
		want     Position
	}{
		{"flat buy", 10, 0, ToOpenLong},
		{"add to long", 10, 5, ToOpenLong},
		{"flat sell", -10, 0, ToOpenShort},
		{"add to short", -10, -5, ToOpenShort},
		{"partial close long", -5, 10, ToClose},
		{"exact close long", -10, 10, ToClose},
		{"exact close short", 5, -5, ToClose},
		{"short to long", 20, -5, ToCloseThenFlip},
		{"long to short", -20, 8, ToCloseThenFlip},
	}
	for _, c := range cases {
		if got := Classify(c.orderQty, c.holding); got != c.want {
			t.Errorf("%s: Classify(%v, %v) = %s, want %s", c.name, c.orderQty, c.holding, got, c.want)
		}
	}
}

func TestSideFor(t *testing.T) {
	cases := []struct {
		orderQty float64
		holding  float64
		want     gateway.BrokerSide
	}{
		{10, 0, gateway.SideBuy},
		{10, 5, gateway.SideBuy},
		{5, -5, gateway.SideBuyToCover},
		{-5, 10, gateway.SideSell},
		{-10, 0, gateway.SideSellShort},
		{-10, -5, gateway.SideSellShort},
	}
	for _, c := range cases {
		if got := SideFor(c.orderQty, c.holding); got != c.want {
			t.Errorf("SideFor(%v, %v) = %s, want %s", c.orderQty, c.holding, got, c.want)
		}
	}
}

func TestPlanSplitShortToLong(t *testing.T) {
	o := NewOrder("AAPL", 20, KindLimit, TIFDay)
	o.Price = 100
	plan := PlanSplit(o, -5, "AAPL")

	if plan.FirstLeg.Quantity != 5 || plan.FirstLeg.Side != gateway.SideBuyToCover {
		t.Fatalf("first leg wrong: %+v", plan.FirstLeg)
	}
	if plan.SecondLeg.Quantity != 15 || plan.SecondLeg.Side != gateway.SideBuy {
		t.Fatalf("second leg wrong: %+v", plan.SecondLeg)
	}
	if plan.SecondLeg.Kind != gateway.KindLimit || plan.SecondLeg.Price != 100 {
		t.Fatalf("second leg must stay limit at order price: %+v", plan.SecondLeg)
	}
}

func TestPlanSplitLongToShortDegradesStop(t *testing.T) {
	o := NewOrder("AAPL", -20, KindStopMarket, TIFGTC)
	o.StopPrice = 95
	plan := PlanSplit(o, 8, "AAPL")

	if plan.FirstLeg.Quantity != 8 || plan.FirstLeg.Side != gateway.SideSell {
		t.Fatalf("first leg wrong: %+v", plan.FirstLeg)
	}
	if plan.FirstLeg.Kind != gateway.KindStop || plan.FirstLeg.StopPrice != 95 {
		t.Fatalf("first leg keeps original trigger: %+v", plan.FirstLeg)
	}
	if plan.SecondLeg.Quantity != 12 || plan.SecondLeg.Side != gateway.SideSellShort {
		t.Fatalf("second leg wrong: %+v", plan.SecondLeg)
	}
	// stop 降级为 market，价格与止损价都清零
	if plan.SecondLeg.Kind != gateway.KindMarket || plan.SecondLeg.Price != 0 || plan.SecondLeg.StopPrice != 0 {
		t.Fatalf("second leg must degrade to market: %+v", plan.SecondLeg)
	}
}

func TestContingentBookPopThenEmpty(t *testing.T) {
	b := NewContingentBook()
	o := NewOrder("AAPL", 20, KindMarket, TIFDay)
	b.Put(o, gateway.OrderRequest{Symbol: "AAPL", Quantity: 15})

	leg, parent, ok := b.Pop(o.ID)
	if !ok || parent != o || leg.Quantity != 15 {
		t.Fatalf("pop failed: %+v ok=%v", leg, ok)
	}
	if b.Has(o.ID) || b.Len() != 0 {
		t.Fatalf("record must be destroyed once the queue drains")
	}
	if _, _, ok := b.Pop(o.ID); ok {
		t.Fatalf("second pop must fail")
	}
}

func TestContingentBookDiscardWinsOverPop(t *testing.T) {
	b := NewContingentBook()
	o := NewOrder("AAPL", 20, KindMarket, TIFDay)
	b.Put(o, gateway.OrderRequest{Symbol: "AAPL", Quantity: 15})

	if !b.Discard(o.ID) {
		t.Fatalf("discard should report existing record")
	}
	if _, _, ok := b.Pop(o.ID); ok {
		t.Fatalf("pop after discard must fail")
	}
	if b.Discard(o.ID) {
		t.Fatalf("second discard should report nothing")
	}
}

func TestContingentBookMirrorUpdate(t *testing.T) {
	b := NewContingentBook()
	o := NewOrder("AAPL", -20, KindStopLimit, TIFDay)
	b.Put(o, gateway.OrderRequest{Symbol: "AAPL", Kind: gateway.KindLimit, Quantity: 12, Price: 95})

	b.MirrorUpdate(o.ID, gateway.KindStopLimit, 94)
	leg, _, _ := b.Pop(o.ID)
	if leg.Kind != gateway.KindLimit || leg.Price != 94 || leg.StopPrice != 0 {
		t.Fatalf("mirror must apply degraded params: %+v", leg)
	}
}
