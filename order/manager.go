package order

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"

	"broker-bridge-go/gateway"
	"broker-bridge-go/infrastructure/monitor"
)

// Deps Manager 与 Reconciler 共享的依赖和状态。
// Cache/Contingent/Closed/Rejected 必须是同一组实例，跨结构不变量
// （"剔除缓存与丢弃待发腿一起发生"）由各自的调用级锁保护。
type Deps struct {
	Client     BrokerClient
	Cache      *OpenOrderCache
	Contingent *ContingentBook
	Closed     *RecentIDSet
	Rejected   *RecentIDSet
	Lookup     OrderLookup
	Holdings   HoldingsProvider
	Fees       FeeModel
	Mapper     SymbolMapper
	Journal    Journal
	Log        *zap.Logger
	Events     EventSink
	Messages   MessageSink
	Metrics    *monitor.Monitor
}

func (d *Deps) fillDefaults() {
	if d.Cache == nil {
		d.Cache = NewOpenOrderCache()
	}
	if d.Contingent == nil {
		d.Contingent = NewContingentBook()
	}
	if d.Closed == nil {
		d.Closed = NewRecentIDSet(0, 0)
	}
	if d.Rejected == nil {
		d.Rejected = NewRecentIDSet(0, time.Hour)
	}
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	if d.Events == nil {
		d.Events = func(StatusEvent) {}
	}
	if d.Messages == nil {
		d.Messages = func(Message) {}
	}
	if d.Mapper == nil {
		d.Mapper = identityMapper{}
	}
	if d.Fees == nil {
		d.Fees = zeroFee{}
	}
}

type identityMapper struct{}

func (identityMapper) ToBroker(s string) string { return s }
func (identityMapper) ToLocal(s string) string  { return s }

type zeroFee struct{}

func (zeroFee) Fee(string, float64, float64) float64 { return 0 }

// Manager 订单提交入口：place/update/cancel。
// 调用级互斥锁保证"查在途单→撤旧单→发新单"整体原子。
type Manager struct {
	deps Deps

	mu       sync.Mutex
	canceled map[string]struct{} // 本地已撤销的订单 id，抑制后续重复提交

	// 拒单后找回券商 id 的回溯窗口
	recentWindow time.Duration
}

func NewManager(deps Deps) *Manager {
	deps.fillDefaults()
	return &Manager{
		deps:         deps,
		canceled:     make(map[string]struct{}),
		recentWindow: time.Minute,
	}
}

// Cache 暴露共享缓存（wiring 用）。
func (m *Manager) Cache() *OpenOrderCache { return m.deps.Cache }

// Place 提交订单。返回 true 表示已接受处理（不代表成交）。
func (m *Manager) Place(ctx context.Context, o *Order) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, was := m.canceled[o.ID]; was {
		m.emitMsg(SeverityWarning, CodeOrderCanceledID,
			fmt.Sprintf("order %s was canceled locally, not resubmitting", o.ID))
		return false
	}
	if o.Quantity == 0 {
		m.markInvalid(o, "zero quantity")
		return false
	}

	brokerSymbol := m.deps.Mapper.ToBroker(o.Symbol)

	// 每标的最多一张在途单；残留条目剔除，活跃单先撤再发
	if existingID, ok := m.deps.Cache.FindBySymbol(brokerSymbol); ok {
		local, found := m.deps.Lookup.LocalOrderByBrokerID(existingID)
		if !found || isClosed(local.CurrentStatus()) {
			m.deps.Cache.Remove(existingID)
		} else {
			m.emitMsg(SeverityWarning, CodeOneOrderPerSymbol,
				fmt.Sprintf("canceling open order %d on %s before new submission", existingID, o.Symbol))
			if !m.cancelLocked(ctx, local) {
				// 撤销未确认但条目已清（券商侧终态）时仍可继续发新单
				if _, still := m.deps.Cache.Get(existingID); still {
					return false
				}
			}
		}
	}

	var holding float64
	if m.deps.Holdings != nil {
		holding = m.deps.Holdings.HoldingQuantity(o.Symbol)
	}

	if NeedsSplit(o.Quantity, holding) {
		plan := PlanSplit(o, holding, brokerSymbol)
		// 先登记第二腿再发第一腿；第一腿失败时回收
		m.deps.Contingent.Put(o, plan.SecondLeg)
		if !m.submitLocked(ctx, o, plan.FirstLeg) {
			m.deps.Contingent.Discard(o.ID)
			return false
		}
		m.deps.Metrics.RecordCrossZeroSplit()
		return true
	}

	kind, price, stop := o.Params()
	req := gateway.OrderRequest{
		Symbol:    brokerSymbol,
		Side:      SideFor(o.Quantity, holding),
		Kind:      kind.BrokerKind(),
		Duration:  o.TIF.BrokerDuration(),
		Quantity:  math.Abs(o.Quantity),
		Price:     price,
		StopPrice: stop,
	}
	return m.submitLocked(ctx, o, req)
}

// submitLocked 发出一张券商订单并登记缓存。缓存写入先于事件发出，
// 保证轮询循环看到券商侧变化时缓存一定已就位。
func (m *Manager) submitLocked(ctx context.Context, o *Order, req gateway.OrderRequest) bool {
	id, err := m.deps.Client.PlaceOrder(ctx, req)
	switch {
	case err == nil:
		if id > 0 {
			o.AttachBrokerID(id)
			m.deps.Cache.Upsert(id, gateway.BrokerOrder{
				ID:              id,
				Symbol:          req.Symbol,
				Quantity:        req.Quantity,
				Side:            req.Side,
				Kind:            req.Kind,
				Duration:        req.Duration,
				Price:           req.Price,
				StopPrice:       req.StopPrice,
				Status:          gateway.BrokerStatusSubmitted,
				TransactionDate: time.Now(),
			})
			m.deps.Metrics.SetOpenOrders(m.deps.Cache.Len())
		}
		m.transition(o, StatusSubmitted)
		m.emitEvent(StatusEvent{OrderID: o.ID, BrokerID: id, Symbol: o.Symbol, Status: StatusSubmitted, Time: time.Now()})
		m.journalTransition(o.ID, id, StatusSubmitted, 0, 0)
		m.deps.Metrics.RecordOrderPlaced()
		return true

	case errors.Is(err, gateway.ErrUnavailable):
		// 客户端已播报 RetriesExhausted warning，这里只收尾
		m.markInvalid(o, "broker unavailable")
		return false

	default:
		text := err.Error()
		var fe *gateway.FaultError
		if errors.As(err, &fe) {
			text = fe.Text
		}
		m.emitMsg(SeverityError, CodeOrderRejected, text)
		m.markInvalid(o, text)
		m.deps.Metrics.RecordOrderRejected()
		// 拒单响应不带券商 id：后台按窗口匹配找回，仅作诊断关联
		go m.recoverRejectedID(req, o)
		return false
	}
}

// recoverRejectedID 在近期订单里按 标的/数量/方向/种类 匹配被拒订单的券商 id。
// 找不到只记日志，不再打扰调用方。
func (m *Manager) recoverRejectedID(req gateway.OrderRequest, o *Order) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	orders, err := m.deps.Client.GetOrders(ctx)
	if err != nil || len(orders) == 0 {
		m.deps.Log.Warn("rejected order id lookup returned nothing",
			zap.String("order", o.ID), zap.Error(err))
		return
	}
	cutoff := time.Now().Add(-m.recentWindow)
	for _, bo := range orders {
		if bo.Status != gateway.BrokerStatusRejected {
			continue
		}
		if bo.Symbol != req.Symbol || bo.Side != req.Side || bo.Kind != req.Kind {
			continue
		}
		if bo.Quantity != req.Quantity || !bo.TransactionDate.After(cutoff) {
			continue
		}
		o.AttachBrokerID(bo.ID)
		m.deps.Rejected.Add(bo.ID)
		m.deps.Log.Info("recovered broker id for rejected order",
			zap.String("order", o.ID), zap.Int64("brokerId", bo.ID))
		return
	}
	m.deps.Log.Warn("rejected order id unresolved within window",
		zap.String("order", o.ID), zap.String("symbol", req.Symbol))
}

// Update 修改在途订单的类型/价格/止损价；数量不可改（券商不支持）。
type Update struct {
	Kind      Kind
	Price     float64
	StopPrice float64
	Quantity  float64
}

func (m *Manager) Update(ctx context.Context, o *Order, upd Update) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := o.LastBrokerID()
	if id == 0 {
		m.emitMsg(SeverityWarning, CodeUpdateRejected, "order has no broker id")
		return false
	}
	if upd.Quantity != 0 && upd.Quantity != o.Quantity {
		m.emitMsg(SeverityWarning, CodeUpdateRejected, "quantity changes are not supported")
		return false
	}

	kind := upd.Kind
	if kind == "" {
		kind, _, _ = o.Params()
	}
	req := gateway.OrderRequest{
		Kind:      kind.BrokerKind(),
		Duration:  o.TIF.BrokerDuration(),
		Price:     upd.Price,
		StopPrice: upd.StopPrice,
	}
	if err := m.deps.Client.ModifyOrder(ctx, id, req); err != nil {
		if errors.Is(err, gateway.ErrAlreadyFinal) {
			// 终态改单：静默失败，调用方会从对账得知终态
			return false
		}
		text := err.Error()
		var fe *gateway.FaultError
		if errors.As(err, &fe) {
			text = fe.Text
		}
		m.emitMsg(SeverityWarning, CodeUpdateRejected, text)
		return false
	}

	o.setParams(kind, upd.Price, upd.StopPrice)
	// 已排队的第二腿同步最新参数，发出时生效
	m.deps.Contingent.MirrorUpdate(o.ID, kind.BrokerKind(), upd.Price)
	m.emitMsg(SeverityInfo, CodeUpdateSubmitted,
		fmt.Sprintf("update submitted for order %s (broker %d)", o.ID, id))
	return true
}

// Cancel 撤销订单：丢弃待发腿、标记本地撤销、逐个撤券商单。
func (m *Manager) Cancel(ctx context.Context, o *Order) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cancelLocked(ctx, o)
}

func (m *Manager) cancelLocked(ctx context.Context, o *Order) bool {
	ids := o.BrokerIDList()
	if len(ids) == 0 {
		return false
	}
	// 撤销总是先移除待发腿：第二腿从此不可能再发出
	m.deps.Contingent.Discard(o.ID)
	m.canceled[o.ID] = struct{}{}

	confirmed := false
	for _, id := range ids {
		if err := m.deps.Client.CancelOrder(ctx, id); err != nil {
			// 已成交/已撤销：不发事件，调用方通过对账得知终态。
			// 终态单的残留缓存条目必须剔除，否则同标的新单永远被挡。
			if errors.Is(err, gateway.ErrAlreadyFinal) {
				m.deps.Cache.Remove(id)
			}
			continue
		}
		m.deps.Cache.Remove(id)
		m.deps.Closed.Add(id)
		confirmed = true
	}
	if !confirmed {
		return false
	}
	m.deps.Metrics.SetOpenOrders(m.deps.Cache.Len())
	m.transition(o, StatusCanceled)
	m.emitEvent(StatusEvent{OrderID: o.ID, BrokerID: o.LastBrokerID(), Symbol: o.Symbol, Status: StatusCanceled, Time: time.Now()})
	m.journalTransition(o.ID, o.LastBrokerID(), StatusCanceled, 0, 0)
	m.deps.Metrics.RecordOrderCanceled()
	return true
}

func (m *Manager) markInvalid(o *Order, reason string) {
	m.transition(o, StatusInvalid)
	m.emitEvent(StatusEvent{OrderID: o.ID, Symbol: o.Symbol, Status: StatusInvalid, Time: time.Now()})
	m.journalTransition(o.ID, 0, StatusInvalid, 0, 0)
	m.deps.Log.Warn("order invalid", zap.String("order", o.ID), zap.String("reason", reason))
}

func (m *Manager) transition(o *Order, to Status) {
	if err := o.advance(to); err != nil {
		m.deps.Log.Error("state transition rejected",
			zap.String("order", o.ID), zap.Error(err))
	}
}

func (m *Manager) emitEvent(ev StatusEvent) { m.deps.Events(ev) }

func (m *Manager) emitMsg(sev Severity, code, text string) {
	m.deps.Messages(Message{Severity: sev, Code: code, Text: text, Time: time.Now()})
}

func (m *Manager) journalTransition(orderID string, brokerID int64, st Status, qty, price float64) {
	if m.deps.Journal == nil {
		return
	}
	if err := m.deps.Journal.RecordTransition(orderID, brokerID, st, qty, price); err != nil {
		m.deps.Log.Warn("journal write failed", zap.Error(err))
	}
}

func isClosed(s Status) bool {
	return s == StatusFilled || s == StatusCanceled || s == StatusInvalid
}

// sharedStateMachine 转换表是纯数据，进程内共享一份。
var sharedStateMachine = NewStateMachine()
