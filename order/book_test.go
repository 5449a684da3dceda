package order

import "testing"

func TestBookLookupByBrokerID(t *testing.T) {
	b := NewBook()
	o := NewOrder("AAPL", 10, KindLimit, TIFDay)
	o.AttachBrokerID(42)
	b.Register(o)

	got, ok := b.LocalOrderByBrokerID(42)
	if !ok || got.ID != o.ID {
		t.Fatalf("expected to find order by broker id, got ok=%v", ok)
	}
	if _, ok := b.LocalOrderByBrokerID(43); ok {
		t.Fatal("unexpected match for unregistered broker id")
	}
}

func TestBookActiveExcludesClosed(t *testing.T) {
	b := NewBook()
	open := NewOrder("AAPL", 10, KindLimit, TIFDay)
	done := NewOrder("TSLA", -5, KindMarket, TIFDay)
	done.Status = StatusFilled
	b.Register(open)
	b.Register(done)

	active := b.Active()
	if len(active) != 1 || active[0].ID != open.ID {
		t.Fatalf("expected only the open order, got %d entries", len(active))
	}
	if b.Len() != 2 {
		t.Fatalf("expected 2 registered orders, got %d", b.Len())
	}

	b.Remove(done.ID)
	if _, ok := b.ByID(done.ID); ok {
		t.Fatal("removed order still resolvable")
	}
}
