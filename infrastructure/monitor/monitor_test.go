package monitor

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestOrderCounters(t *testing.T) {
	m := New(DefaultConfig())

	m.RecordOrderPlaced()
	m.RecordOrderPlaced()
	m.RecordOrderRejected()
	m.RecordCrossZeroSplit()

	if got := testutil.ToFloat64(m.ordersPlaced); got != 2 {
		t.Errorf("orders placed = %f, want 2", got)
	}
	if got := testutil.ToFloat64(m.ordersRejected); got != 1 {
		t.Errorf("orders rejected = %f, want 1", got)
	}
	if got := testutil.ToFloat64(m.crossZeroSplits); got != 1 {
		t.Errorf("cross zero splits = %f, want 1", got)
	}
}

func TestFillVolumeUsesAbsoluteQuantity(t *testing.T) {
	m := New(DefaultConfig())

	m.RecordFill(10)
	m.RecordFill(-4)

	if got := testutil.ToFloat64(m.fillEvents); got != 2 {
		t.Errorf("fill events = %f, want 2", got)
	}
	if got := testutil.ToFloat64(m.filledVolume); got != 14 {
		t.Errorf("filled volume = %f, want 14", got)
	}
}

func TestOpenOrdersGauge(t *testing.T) {
	m := New(DefaultConfig())

	m.SetOpenOrders(3)
	if got := testutil.ToFloat64(m.openOrders); got != 3 {
		t.Errorf("open orders = %f, want 3", got)
	}
	m.SetOpenOrders(0)
	if got := testutil.ToFloat64(m.openOrders); got != 0 {
		t.Errorf("open orders = %f, want 0", got)
	}
}

func TestRESTRequestLabels(t *testing.T) {
	m := New(DefaultConfig())

	m.RecordRESTRequest("orders", false, 10*time.Millisecond)
	m.RecordRESTRequest("orders", true, 20*time.Millisecond)
	m.RecordRESTRequest("account_data", false, 5*time.Millisecond)

	if got := testutil.ToFloat64(m.restRequests.WithLabelValues("orders")); got != 2 {
		t.Errorf("rest requests[orders] = %f, want 2", got)
	}
	if got := testutil.ToFloat64(m.restErrors.WithLabelValues("orders")); got != 1 {
		t.Errorf("rest errors[orders] = %f, want 1", got)
	}
	if got := testutil.ToFloat64(m.restRequests.WithLabelValues("account_data")); got != 1 {
		t.Errorf("rest requests[account_data] = %f, want 1", got)
	}
}

func TestNilMonitorIsSafe(t *testing.T) {
	var m *Monitor

	// 所有方法都不能 panic
	m.RecordOrderPlaced()
	m.RecordOrderCanceled()
	m.RecordOrderFilled()
	m.RecordOrderRejected()
	m.RecordCrossZeroSplit()
	m.RecordReconcileTick(time.Millisecond)
	m.RecordReconcileSkipped()
	m.RecordFill(1)
	m.RecordUnknownOrder()
	m.SetOpenOrders(1)
	m.RecordRESTRequest("orders", true, time.Millisecond)
	if m.Registry() != nil {
		t.Errorf("nil monitor has no registry")
	}
}

func TestHandlerServesRegistry(t *testing.T) {
	m := New(DefaultConfig())
	m.RecordOrderPlaced()

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, req)

	if rec.Code != 200 {
		t.Fatalf("metrics endpoint status %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "bridge_orders_orders_placed_total") {
		t.Fatalf("metric missing from exposition:\n%s", body)
	}
}
