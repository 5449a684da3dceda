package main

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"broker-bridge-go/infrastructure/logger"
	"broker-bridge-go/inventory"
	"broker-bridge-go/order"
)

// intake 管理端 HTTP 入口：下单/改单/撤单与持仓查询。
// 只面向内网运维与上层策略进程，不做鉴权。
type intake struct {
	mgr     *order.Manager
	book    *order.Book
	tracker *inventory.Tracker
	log     *logger.Logger
}

type placeRequest struct {
	Symbol    string  `json:"symbol"`
	Quantity  float64 `json:"quantity"` // 带符号，正买负卖
	Kind      string  `json:"kind"`     // MARKET/LIMIT/STOP_MARKET/STOP_LIMIT
	TIF       string  `json:"tif"`      // DAY/GTC，默认 DAY
	Price     float64 `json:"price"`
	StopPrice float64 `json:"stop"`
}

type updateRequest struct {
	Kind      string  `json:"kind"`
	Price     float64 `json:"price"`
	StopPrice float64 `json:"stop"`
}

type orderResponse struct {
	ID        string  `json:"id"`
	Symbol    string  `json:"symbol"`
	Quantity  float64 `json:"quantity"`
	Status    string  `json:"status"`
	BrokerIDs []int64 `json:"brokerIds"`
}

type positionResponse struct {
	Symbol   string  `json:"symbol"`
	Quantity float64 `json:"quantity"`
	AvgCost  float64 `json:"avgCost"`
}

func (h *intake) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/orders", h.placeOrder)
	mux.HandleFunc("GET /v1/orders", h.listOrders)
	mux.HandleFunc("GET /v1/orders/{id}", h.getOrder)
	mux.HandleFunc("PUT /v1/orders/{id}", h.updateOrder)
	mux.HandleFunc("DELETE /v1/orders/{id}", h.cancelOrder)
	mux.HandleFunc("GET /v1/positions", h.getPositions)
	return mux
}

func (h *intake) serve(addr string) {
	go func() {
		if err := http.ListenAndServe(addr, h.routes()); err != nil {
			h.log.Error("intake server exited", zap.Error(err))
		}
	}()
}

func (h *intake) placeOrder(w http.ResponseWriter, r *http.Request) {
	var req placeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json: "+err.Error())
		return
	}
	if req.Symbol == "" || req.Quantity == 0 {
		writeError(w, http.StatusBadRequest, "symbol and non-zero quantity required")
		return
	}

	kind := order.Kind(req.Kind)
	if kind == "" {
		kind = order.KindMarket
	}
	tif := order.TimeInForce(req.TIF)
	if tif == "" {
		tif = order.TIFDay
	}

	o := order.NewOrder(req.Symbol, req.Quantity, kind, tif)
	o.Price = req.Price
	o.StopPrice = req.StopPrice
	h.book.Register(o)

	if !h.mgr.Place(r.Context(), o) {
		// 具体原因已通过告警/日志播报；入口只回概要
		writeJSON(w, http.StatusUnprocessableEntity, toResponse(o))
		return
	}
	writeJSON(w, http.StatusCreated, toResponse(o))
}

func (h *intake) listOrders(w http.ResponseWriter, _ *http.Request) {
	active := h.book.Active()
	out := make([]orderResponse, 0, len(active))
	for _, o := range active {
		out = append(out, toResponse(o))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *intake) getOrder(w http.ResponseWriter, r *http.Request) {
	o, ok := h.book.ByID(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, "unknown order")
		return
	}
	writeJSON(w, http.StatusOK, toResponse(o))
}

func (h *intake) updateOrder(w http.ResponseWriter, r *http.Request) {
	o, ok := h.book.ByID(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, "unknown order")
		return
	}
	var req updateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json: "+err.Error())
		return
	}
	ok = h.mgr.Update(r.Context(), o, order.Update{
		Kind:      order.Kind(req.Kind),
		Price:     req.Price,
		StopPrice: req.StopPrice,
	})
	if !ok {
		writeError(w, http.StatusUnprocessableEntity, "update rejected")
		return
	}
	writeJSON(w, http.StatusOK, toResponse(o))
}

func (h *intake) cancelOrder(w http.ResponseWriter, r *http.Request) {
	o, ok := h.book.ByID(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, "unknown order")
		return
	}
	if !h.mgr.Cancel(r.Context(), o) {
		writeError(w, http.StatusUnprocessableEntity, "cancel not confirmed")
		return
	}
	writeJSON(w, http.StatusOK, toResponse(o))
}

func (h *intake) getPositions(w http.ResponseWriter, _ *http.Request) {
	syms := h.tracker.Symbols()
	out := make([]positionResponse, 0, len(syms))
	for _, sym := range syms {
		out = append(out, positionResponse{
			Symbol:   sym,
			Quantity: h.tracker.HoldingQuantity(sym),
			AvgCost:  h.tracker.AvgCost(sym),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func toResponse(o *order.Order) orderResponse {
	return orderResponse{
		ID:        o.ID,
		Symbol:    o.Symbol,
		Quantity:  o.Quantity,
		Status:    string(o.CurrentStatus()),
		BrokerIDs: o.BrokerIDList(),
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
