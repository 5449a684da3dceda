package gateway

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
)

func TestHTTPTransportPlaceAndCancel(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer token" {
			t.Fatalf("missing bearer token")
		}
		if r.Method == http.MethodPost {
			body, _ := io.ReadAll(r.Body)
			form, _ := url.ParseQuery(string(body))
			if form.Get("symbol") != "AAPL" || form.Get("side") != "buy" {
				t.Fatalf("unexpected form: %s", body)
			}
			io.WriteString(w, `{"order":{"id":1001,"status":"ok"}}`)
			return
		}
		if r.Method == http.MethodDelete {
			w.WriteHeader(200)
			io.WriteString(w, `{"order":{"id":1001,"status":"ok"}}`)
			return
		}
		t.Fatalf("unexpected method %s", r.Method)
	}))
	defer ts.Close()

	tr := &HTTPTransport{BaseURL: ts.URL, Token: "token", HTTPClient: ts.Client()}
	cli := NewClient(tr, nil, nil)
	id, err := cli.PlaceOrder(context.Background(), OrderRequest{
		Symbol: "AAPL", Side: SideBuy, Kind: KindMarket, Duration: DurationDay, Quantity: 10,
	})
	if err != nil {
		t.Fatalf("place err: %v", err)
	}
	if id != 1001 {
		t.Fatalf("unexpected order id %d", id)
	}
	if err := cli.CancelOrder(context.Background(), id); err != nil {
		t.Fatalf("cancel err: %v", err)
	}
}

func TestCategoryLimiterIndependentBuckets(t *testing.T) {
	l := NewCategoryLimiter(map[Category]BucketConfig{
		CategoryOrders:      {Rate: 100, Burst: 2},
		CategoryAccountData: {Rate: 100, Burst: 2},
	})
	// 双类别各自的突发令牌互不影响
	l.Acquire(CategoryOrders)
	l.Acquire(CategoryOrders)
	l.Acquire(CategoryAccountData)
	l.Acquire(CategoryAccountData)
}

func TestBrokerSideShort(t *testing.T) {
	if SideBuy.Short() || SideBuyToCover.Short() || SideBuyToOpen.Short() {
		t.Fatalf("buy sides must not be short")
	}
	if !SideSell.Short() || !SideSellShort.Short() || !SideSellToClose.Short() {
		t.Fatalf("sell sides must be short")
	}
}
