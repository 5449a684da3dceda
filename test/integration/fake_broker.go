package integration

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"broker-bridge-go/gateway"
)

// fakeBroker 内存券商：实现 gateway.Transport，按真实 REST 语义路由，
// 让集成测试走完整的 客户端→限流→解析 链路。
type fakeBroker struct {
	mu        sync.Mutex
	nextID    int64
	orders    map[int64]*gateway.BrokerOrder
	positions []gateway.BrokerPosition

	failPlace  int    // 接下来 N 次下单返回 500
	rejectText string // 非空时下单返回业务拒绝
	placeCount int
}

func newFakeBroker() *fakeBroker {
	return &fakeBroker{orders: make(map[int64]*gateway.BrokerOrder)}
}

func (b *fakeBroker) Send(_ context.Context, method, path string, params url.Values) (int, []byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch {
	case method == http.MethodPost && path == "/v1/accounts/orders":
		return b.place(params)
	case method == http.MethodGet && path == "/v1/accounts/orders":
		return b.list()
	case method == http.MethodGet && path == "/v1/accounts/positions":
		return b.listPositions()
	case strings.HasPrefix(path, "/v1/accounts/orders/"):
		id, err := strconv.ParseInt(strings.TrimPrefix(path, "/v1/accounts/orders/"), 10, 64)
		if err != nil {
			return http.StatusNotFound, fault("no such order"), nil
		}
		switch method {
		case http.MethodGet:
			return b.get(id)
		case http.MethodPut:
			return b.modify(id, params)
		case http.MethodDelete:
			return b.cancel(id)
		}
	}
	return http.StatusNotFound, fault("no route"), nil
}

func (b *fakeBroker) place(params url.Values) (int, []byte, error) {
	b.placeCount++
	if b.failPlace > 0 {
		b.failPlace--
		return http.StatusInternalServerError, []byte("server error"), nil
	}
	if b.rejectText != "" {
		return http.StatusBadRequest, fault(b.rejectText), nil
	}

	b.nextID++
	qty, _ := strconv.ParseFloat(params.Get("quantity"), 64)
	price, _ := strconv.ParseFloat(params.Get("price"), 64)
	stop, _ := strconv.ParseFloat(params.Get("stop"), 64)
	b.orders[b.nextID] = &gateway.BrokerOrder{
		ID:              b.nextID,
		Symbol:          params.Get("symbol"),
		Quantity:        qty,
		Side:            gateway.BrokerSide(params.Get("side")),
		Kind:            gateway.BrokerKind(params.Get("type")),
		Duration:        gateway.BrokerDuration(params.Get("duration")),
		Price:           price,
		StopPrice:       stop,
		Status:          gateway.BrokerStatusSubmitted,
		TransactionDate: time.Now(),
	}
	body := fmt.Sprintf(`{"order":{"id":%d,"status":"ok"}}`, b.nextID)
	return http.StatusOK, []byte(body), nil
}

func (b *fakeBroker) list() (int, []byte, error) {
	out := make([]gateway.BrokerOrder, 0, len(b.orders))
	for _, o := range b.orders {
		out = append(out, *o)
	}
	body, _ := json.Marshal(map[string]interface{}{"orders": out})
	return http.StatusOK, body, nil
}

func (b *fakeBroker) listPositions() (int, []byte, error) {
	body, _ := json.Marshal(map[string]interface{}{"positions": b.positions})
	return http.StatusOK, body, nil
}

func (b *fakeBroker) get(id int64) (int, []byte, error) {
	o, ok := b.orders[id]
	if !ok {
		return http.StatusNotFound, fault("no such order"), nil
	}
	body, _ := json.Marshal(map[string]interface{}{"order": *o})
	return http.StatusOK, body, nil
}

func (b *fakeBroker) modify(id int64, params url.Values) (int, []byte, error) {
	o, ok := b.orders[id]
	if !ok {
		return http.StatusNotFound, fault("no such order"), nil
	}
	if o.Status.Closed() {
		return http.StatusBadRequest, fault("order already in a finalized state"), nil
	}
	if v := params.Get("type"); v != "" {
		o.Kind = gateway.BrokerKind(v)
	}
	if v := params.Get("price"); v != "" {
		o.Price, _ = strconv.ParseFloat(v, 64)
	}
	if v := params.Get("stop"); v != "" {
		o.StopPrice, _ = strconv.ParseFloat(v, 64)
	}
	body := fmt.Sprintf(`{"order":{"id":%d,"status":"ok"}}`, id)
	return http.StatusOK, []byte(body), nil
}

func (b *fakeBroker) cancel(id int64) (int, []byte, error) {
	o, ok := b.orders[id]
	if !ok {
		return http.StatusNotFound, fault("no such order"), nil
	}
	if o.Status.Closed() {
		return http.StatusBadRequest, fault("order already in a finalized state"), nil
	}
	o.Status = gateway.BrokerStatusCanceled
	o.TransactionDate = time.Now()
	body := fmt.Sprintf(`{"order":{"id":%d,"status":"ok"}}`, id)
	return http.StatusOK, []byte(body), nil
}

// fill 模拟成交推进：累加已成交数量并推进状态。
func (b *fakeBroker) fill(id int64, qty, price float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	o, ok := b.orders[id]
	if !ok || o.Status.Closed() {
		return
	}
	o.ExecQuantity += qty
	o.LastFillPrice = price
	if o.ExecQuantity >= o.Quantity {
		o.ExecQuantity = o.Quantity
		o.Status = gateway.BrokerStatusFilled
	} else {
		o.Status = gateway.BrokerStatusPartial
	}
	o.TransactionDate = time.Now()
}

// cancelOutOfBand 模拟券商侧撤销（运维/风控通道），订单保留在快照里。
func (b *fakeBroker) cancelOutOfBand(id int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if o, ok := b.orders[id]; ok {
		o.Status = gateway.BrokerStatusCanceled
		o.TransactionDate = time.Now()
	}
}

// inject 直接塞入一条券商订单（模拟人工下单等带外来源）。
func (b *fakeBroker) inject(o gateway.BrokerOrder) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.orders[o.ID] = &o
	if o.ID > b.nextID {
		b.nextID = o.ID
	}
}

func (b *fakeBroker) order(id int64) (gateway.BrokerOrder, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	o, ok := b.orders[id]
	if !ok {
		return gateway.BrokerOrder{}, false
	}
	return *o, true
}

func (b *fakeBroker) orderCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.orders)
}

func (b *fakeBroker) placedTotal() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.placeCount
}

func (b *fakeBroker) setFailPlace(n int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failPlace = n
}

func (b *fakeBroker) setPositions(p []gateway.BrokerPosition) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.positions = p
}

func fault(text string) []byte {
	body, _ := json.Marshal(map[string]interface{}{
		"fault": map[string]string{"faultstring": text},
	})
	return body
}
