package order

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"broker-bridge-go/gateway"
)

// ReconcilerConfig 对账器配置
type ReconcilerConfig struct {
	Interval       time.Duration // 轮询间隔（sandbox/production 不同）
	DebounceDelay  time.Duration // 未知 id 验证前的去抖延迟
	RejectedWindow time.Duration // 近期被拒 id 的豁免窗口
}

// Reconciler 成交对账循环：定时拉取券商订单快照，与在途缓存做差分，
// 合成成交/状态事件，并驱动跨零拆分的第二腿。
// 整个 tick 在非重入锁下执行；上一轮未结束时新一轮直接跳过，不排队。
type Reconciler struct {
	deps Deps
	cfg  ReconcilerConfig

	tickMu   sync.Mutex
	started  bool
	stopOnce sync.Once
	stopChan chan struct{}
	doneChan chan struct{}
	pokeChan chan struct{}

	inflight *InFlight

	// 未知 id 的去抖验证
	unknownMu        sync.Mutex
	unknownPending   map[int64]struct{}
	unknownScheduled bool
	reported         *RecentIDSet
}

// NewReconciler 创建对账器；deps 中的共享状态必须与 Manager 是同一组实例。
func NewReconciler(deps Deps, cfg ReconcilerConfig) *Reconciler {
	deps.fillDefaults()
	if cfg.Interval <= 0 {
		cfg.Interval = time.Second
	}
	if cfg.DebounceDelay <= 0 {
		cfg.DebounceDelay = 500 * time.Millisecond
	}
	if cfg.RejectedWindow <= 0 {
		cfg.RejectedWindow = time.Minute
	}
	return &Reconciler{
		deps:           deps,
		cfg:            cfg,
		stopChan:       make(chan struct{}),
		doneChan:       make(chan struct{}),
		pokeChan:       make(chan struct{}, 1),
		inflight:       NewInFlight(),
		unknownPending: make(map[int64]struct{}),
		reported:       NewRecentIDSet(0, 0),
	}
}

// Start 启动对账服务
func (r *Reconciler) Start(ctx context.Context) error {
	r.started = true
	go r.loop(ctx)
	return nil
}

// Stop 停止对账服务。可重复调用；未 Start 时直接返回。
func (r *Reconciler) Stop() error {
	r.stopOnce.Do(func() { close(r.stopChan) })
	if r.started {
		<-r.doneChan
	}
	return nil
}

// Poke 请求尽快执行一轮对账（账户事件流的提示入口）。非阻塞。
func (r *Reconciler) Poke() {
	select {
	case r.pokeChan <- struct{}{}:
	default:
	}
}

func (r *Reconciler) loop(ctx context.Context) {
	defer close(r.doneChan)

	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-r.stopChan:
			return
		case <-ticker.C:
			r.Tick(ctx)
		case <-r.pokeChan:
			r.Tick(ctx)
		}
	}
}

// Tick 执行一轮 拉取→差分→发事件。上一轮还在跑时直接跳过。
func (r *Reconciler) Tick(ctx context.Context) {
	if !r.tickMu.TryLock() {
		r.deps.Metrics.RecordReconcileSkipped()
		return
	}
	defer r.tickMu.Unlock()

	start := time.Now()
	snapshot, err := r.fetchSnapshot(ctx)
	if err != nil || snapshot == nil {
		return
	}

	fresh := make(map[int64]gateway.BrokerOrder, len(snapshot))
	for _, bo := range snapshot {
		fresh[bo.ID] = bo
	}

	// 步骤2：缓存内条目逐个与快照差分
	for _, id := range r.deps.Cache.All() {
		bo, ok := fresh[id]
		if !ok {
			// 快照里没有：可能被带外撤销，单独异步查一次
			r.lookupMissing(id)
			continue
		}
		r.apply(ctx, bo)
	}

	// 步骤4：快照里有、缓存和近期关闭集都没有的 id 是未知 id
	for id := range fresh {
		if _, ok := r.deps.Cache.Get(id); ok {
			continue
		}
		if r.deps.Closed.Contains(id) {
			continue
		}
		r.noteUnknown(id)
	}

	r.deps.Metrics.SetOpenOrders(r.deps.Cache.Len())
	r.deps.Metrics.RecordReconcileTick(time.Since(start))
}

func (r *Reconciler) fetchSnapshot(ctx context.Context) ([]gateway.BrokerOrder, error) {
	snapshot, err := r.deps.Client.GetOrders(ctx)
	if err != nil {
		var fe *gateway.FaultError
		if errors.As(err, &fe) {
			r.emitMsg(SeverityWarning, CodeLookupFailed, fe.Text)
		}
		return nil, err
	}
	return snapshot, nil
}

// apply 处理一条快照订单（调用时必须持有 tick 锁）。
// 幂等：状态与已成交数量都没变时什么都不发生。
func (r *Reconciler) apply(ctx context.Context, fresh gateway.BrokerOrder) {
	entry, ok := r.deps.Cache.Get(fresh.ID)
	if !ok {
		return
	}
	prev := entry.Order
	if prev.Status == fresh.Status && prev.ExecQuantity == fresh.ExecQuantity {
		return
	}

	local, haveLocal := r.deps.Lookup.LocalOrderByBrokerID(fresh.ID)

	// 两次轮询间的多笔成交合并为一个增量；卖方向符号取反
	delta := fresh.ExecQuantity - prev.ExecQuantity
	signed := delta
	if fresh.Side.Short() {
		signed = -delta
	}

	// 费用只在第一笔成交增量上计算一次
	var fee float64
	if delta > 0 && !entry.FeeEmitted {
		fee = r.deps.Fees.Fee(fresh.Symbol, fresh.Quantity, fresh.LastFillPrice)
		entry.FeeEmitted = true
	}

	newStatus := localStatus(fresh.Status)
	if delta > 0 && newStatus == StatusSubmitted {
		// 状态字段还没跟上但已有成交增量
		newStatus = StatusPartial
	}
	// 第一腿全部成交但还有待发腿：母单只是部分成交
	secondLegDue := false
	if fresh.Status == gateway.BrokerStatusFilled && haveLocal && r.deps.Contingent.Has(local.ID) {
		newStatus = StatusPartial
		secondLegDue = true
	}

	orderID := ""
	if haveLocal {
		orderID = local.ID
		if err := local.advance(newStatus); err != nil {
			r.deps.Log.Error("reconcile transition rejected",
				zap.Int64("brokerId", fresh.ID), zap.Error(err))
			return
		}
	}

	symbol := fresh.Symbol
	if haveLocal {
		symbol = local.Symbol
	}
	r.deps.Events(StatusEvent{
		OrderID:      orderID,
		BrokerID:     fresh.ID,
		Symbol:       symbol,
		Status:       newStatus,
		FillQuantity: signed,
		FillPrice:    fresh.LastFillPrice,
		Fee:          fee,
		Time:         fresh.TransactionDate,
	})
	if delta != 0 {
		r.deps.Metrics.RecordFill(signed)
	}
	r.journalTransition(orderID, fresh.ID, newStatus, signed, fresh.LastFillPrice)

	if fresh.Status.Closed() {
		r.deps.Cache.Remove(fresh.ID)
		r.deps.Closed.Add(fresh.ID)
		if fresh.Status == gateway.BrokerStatusRejected {
			r.deps.Rejected.Add(fresh.ID)
		}
		if r.deps.Journal != nil {
			if err := r.deps.Journal.RecordClosed(fresh.ID); err != nil {
				r.deps.Log.Warn("journal write failed", zap.Error(err))
			}
		}
		if fresh.Status == gateway.BrokerStatusFilled && !secondLegDue {
			r.deps.Metrics.RecordOrderFilled()
		}
	} else {
		entry.Order = fresh
	}

	// 第一腿被撤/被拒：待发腿作废，母单按对应终态处理
	if haveLocal && !secondLegDue &&
		(fresh.Status == gateway.BrokerStatusCanceled ||
			fresh.Status == gateway.BrokerStatusExpired ||
			fresh.Status == gateway.BrokerStatusRejected) {
		r.deps.Contingent.Discard(local.ID)
	}

	if secondLegDue {
		r.submitSecondLeg(ctx, local)
	}
}

// submitSecondLeg 第一腿成交后立即发出第二腿。
// 不再向调用方发 Submitted 事件（母单已经发过一次）。
func (r *Reconciler) submitSecondLeg(ctx context.Context, parent *Order) {
	leg, _, ok := r.deps.Contingent.Pop(parent.ID)
	if !ok {
		// 撤销先被观察到，队列已清空
		return
	}
	id, err := r.deps.Client.PlaceOrder(ctx, leg)
	if err != nil {
		text := err.Error()
		var fe *gateway.FaultError
		if errors.As(err, &fe) {
			text = fe.Text
		}
		r.emitMsg(SeverityError, CodeOrderRejected,
			fmt.Sprintf("second leg rejected for order %s: %s", parent.ID, text))
		if err := parent.advance(StatusInvalid); err == nil {
			r.deps.Events(StatusEvent{OrderID: parent.ID, Symbol: parent.Symbol, Status: StatusInvalid, Time: time.Now()})
		}
		return
	}
	if id > 0 {
		parent.AttachBrokerID(id)
		r.deps.Cache.Upsert(id, gateway.BrokerOrder{
			ID:              id,
			Symbol:          leg.Symbol,
			Quantity:        leg.Quantity,
			Side:            leg.Side,
			Kind:            leg.Kind,
			Duration:        leg.Duration,
			Price:           leg.Price,
			Status:          gateway.BrokerStatusSubmitted,
			TransactionDate: time.Now(),
		})
	}
	r.deps.Log.Info("second leg submitted",
		zap.String("order", parent.ID), zap.Int64("brokerId", id),
		zap.Float64("quantity", leg.Quantity))
}

// lookupMissing 缓存有、快照没有的 id：异步单查一次。
// InFlight 保证同一 id 不会并发查两次。失败只发 warning，绝不致命。
func (r *Reconciler) lookupMissing(id int64) {
	r.inflight.Do(id, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 45*time.Second)
		defer cancel()
		bo, err := r.deps.Client.GetOrder(ctx, id)
		if err != nil || bo == nil || bo.ID == 0 {
			r.emitMsg(SeverityWarning, CodeLookupFailed,
				fmt.Sprintf("broker order %d missing from snapshot and lookup failed", id))
			return
		}
		r.tickMu.Lock()
		defer r.tickMu.Unlock()
		r.apply(ctx, *bo)
	})
}

// noteUnknown 记录未知 id 并安排一次去抖验证。
// 每个 id 最多被报告一次（error 级），验证前给本地登记留出时间。
func (r *Reconciler) noteUnknown(id int64) {
	r.unknownMu.Lock()
	defer r.unknownMu.Unlock()
	if r.reported.Contains(id) {
		return
	}
	r.unknownPending[id] = struct{}{}
	if !r.unknownScheduled {
		r.unknownScheduled = true
		time.AfterFunc(r.cfg.DebounceDelay, r.verifyUnknown)
	}
}

// verifyUnknown 去抖后的集中验证：先问外部订单簿是否已认领，
// 再排除近期被拒的 id，剩下的才是威胁本地状态完整性的未知订单。
func (r *Reconciler) verifyUnknown() {
	r.unknownMu.Lock()
	ids := make([]int64, 0, len(r.unknownPending))
	for id := range r.unknownPending {
		ids = append(ids, id)
	}
	r.unknownPending = make(map[int64]struct{})
	r.unknownScheduled = false
	r.unknownMu.Unlock()

	for _, id := range ids {
		if _, found := r.deps.Lookup.LocalOrderByBrokerID(id); found {
			// 竞态解除：本地订单此刻已登记该 id，纳入缓存继续跟踪
			r.adoptOrder(id)
			continue
		}
		if r.deps.Rejected.ContainsWithin(id, r.cfg.RejectedWindow) {
			r.deps.Closed.Add(id)
			continue
		}
		if r.deps.Closed.Contains(id) {
			continue
		}
		r.reported.Add(id)
		r.deps.Metrics.RecordUnknownOrder()
		r.emitMsg(SeverityError, CodeUnknownOrderID,
			fmt.Sprintf("unrecognized live broker order %d; local portfolio state can no longer be trusted", id))
	}
}

// adoptOrder 把迟到认领的订单拉进缓存。
func (r *Reconciler) adoptOrder(id int64) {
	ctx, cancel := context.WithTimeout(context.Background(), 45*time.Second)
	defer cancel()
	bo, err := r.deps.Client.GetOrder(ctx, id)
	if err != nil || bo == nil || bo.ID == 0 {
		return
	}
	if bo.Open() {
		r.deps.Cache.Upsert(bo.ID, *bo)
	} else {
		r.deps.Closed.Add(bo.ID)
	}
}

func (r *Reconciler) emitMsg(sev Severity, code, text string) {
	r.deps.Messages(Message{Severity: sev, Code: code, Text: text, Time: time.Now()})
}

func (r *Reconciler) journalTransition(orderID string, brokerID int64, st Status, qty, price float64) {
	if r.deps.Journal == nil {
		return
	}
	if err := r.deps.Journal.RecordTransition(orderID, brokerID, st, qty, price); err != nil {
		r.deps.Log.Warn("journal write failed", zap.Error(err))
	}
}

// localStatus 券商状态映射为本地状态。
func localStatus(s gateway.BrokerStatus) Status {
	switch s {
	case gateway.BrokerStatusPartial:
		return StatusPartial
	case gateway.BrokerStatusFilled:
		return StatusFilled
	case gateway.BrokerStatusCanceled, gateway.BrokerStatusExpired:
		return StatusCanceled
	case gateway.BrokerStatusRejected:
		return StatusInvalid
	default:
		return StatusSubmitted
	}
}
