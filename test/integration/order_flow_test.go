package integration

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"broker-bridge-go/gateway"
	"broker-bridge-go/infrastructure/alert"
	"broker-bridge-go/inventory"
	"broker-bridge-go/journal"
	"broker-bridge-go/order"
)

// fixedFee 固定单笔费用。
type fixedFee float64

func (f fixedFee) Fee(string, float64, float64) float64 { return float64(f) }

// env 集成测试环境：真实的 Client/Manager/Reconciler 接在内存券商上。
type env struct {
	broker    *fakeBroker
	client    *gateway.Client
	book      *order.Book
	tracker   *inventory.Tracker
	positions *inventory.Sync
	channel   *alert.MockChannel
	mgr       *order.Manager
	rec       *order.Reconciler
	jr        *journal.BoltJournal

	mu     sync.Mutex
	events []order.StatusEvent
}

func newEnv(t *testing.T, withJournal bool) *env {
	t.Helper()

	e := &env{
		broker:  newFakeBroker(),
		book:    order.NewBook(),
		tracker: inventory.NewTracker(),
		channel: alert.NewMockChannel("test"),
	}

	alerts := alert.NewManager([]alert.Channel{e.channel}, 0)
	e.client = gateway.NewClient(e.broker, nil, zap.NewNop(),
		gateway.WithRetry(2, time.Millisecond),
		gateway.WithMessageSink(func(severity, code, text string) {
			alerts.Dispatch(order.Message{
				Severity: order.Severity(severity), Code: code, Text: text, Time: time.Now(),
			})
		}))
	e.positions = &inventory.Sync{Tracker: e.tracker, Client: e.client}

	// Manager 与 Reconciler 必须共享同一组缓存/集合实例
	deps := order.Deps{
		Client:     e.client,
		Cache:      order.NewOpenOrderCache(),
		Contingent: order.NewContingentBook(),
		Closed:     order.NewRecentIDSet(0, 0),
		Rejected:   order.NewRecentIDSet(0, time.Minute),
		Lookup:     e.book,
		Holdings:   e.tracker,
		Fees:       fixedFee(0.35),
		Messages:   alerts.Sink(),
		Events: func(ev order.StatusEvent) {
			e.mu.Lock()
			e.events = append(e.events, ev)
			e.mu.Unlock()
			e.positions.Apply(ev)
		},
	}
	if withJournal {
		jr, err := journal.Open(filepath.Join(t.TempDir(), "journal.db"))
		require.NoError(t, err)
		t.Cleanup(func() { jr.Close() })
		deps.Journal = jr
		e.jr = jr
	}

	e.mgr = order.NewManager(deps)
	e.rec = order.NewReconciler(deps, order.ReconcilerConfig{
		Interval:       time.Hour, // 循环不启动，测试里手动 Tick
		DebounceDelay:  20 * time.Millisecond,
		RejectedWindow: time.Minute,
	})
	return e
}

func (e *env) place(t *testing.T, symbol string, qty float64, kind order.Kind, price float64) *order.Order {
	t.Helper()
	o := order.NewOrder(symbol, qty, kind, order.TIFDay)
	o.Price = price
	e.book.Register(o)
	require.True(t, e.mgr.Place(context.Background(), o))
	return o
}

func (e *env) fillEvents() []order.StatusEvent {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []order.StatusEvent
	for _, ev := range e.events {
		if ev.FillQuantity != 0 {
			out = append(out, ev)
		}
	}
	return out
}

func (e *env) alertsWithCode(code string) []alert.Alert {
	var out []alert.Alert
	for _, a := range e.channel.GetAlerts() {
		if a.Code == code {
			out = append(out, a)
		}
	}
	return out
}

func TestPlaceFillAndPositionFlow(t *testing.T) {
	e := newEnv(t, true)
	ctx := context.Background()

	o := e.place(t, "AAPL", 10, order.KindLimit, 100)
	brokerID := o.LastBrokerID()
	require.NotZero(t, brokerID)

	e.broker.fill(brokerID, 4, 99.5)
	e.rec.Tick(ctx)
	assert.Equal(t, order.StatusPartial, o.Status)
	assert.Equal(t, 4.0, e.tracker.HoldingQuantity("AAPL"))

	e.broker.fill(brokerID, 6, 100.1)
	e.rec.Tick(ctx)
	assert.Equal(t, order.StatusFilled, o.Status)
	assert.Equal(t, 10.0, e.tracker.HoldingQuantity("AAPL"))
	assert.Equal(t, 0, e.mgr.Cache().Len())

	// 费用只在第一笔增量上出现一次
	fills := e.fillEvents()
	require.Len(t, fills, 2)
	assert.Equal(t, 0.35, fills[0].Fee)
	assert.Equal(t, 0.0, fills[1].Fee)

	// 终态 id 落到留痕库，重启后可豁免未知扫描
	ids, err := e.jr.ClosedIDs(0)
	require.NoError(t, err)
	assert.Contains(t, ids, brokerID)

	// 再 tick 一轮什么都不该发生
	before := len(e.events)
	e.rec.Tick(ctx)
	assert.Equal(t, before, len(e.events))
}

func TestShortToLongFlipFlow(t *testing.T) {
	e := newEnv(t, false)
	ctx := context.Background()

	e.broker.setPositions([]gateway.BrokerPosition{
		{Symbol: "AAPL", Quantity: -5, CostBasis: -500},
	})
	require.NoError(t, e.positions.Refresh(ctx))
	require.Equal(t, -5.0, e.tracker.HoldingQuantity("AAPL"))

	o := e.place(t, "AAPL", 20, order.KindLimit, 100)
	leg1 := o.LastBrokerID()
	bo, ok := e.broker.order(leg1)
	require.True(t, ok)
	assert.Equal(t, gateway.SideBuyToCover, bo.Side)
	assert.Equal(t, 5.0, bo.Quantity)
	assert.Equal(t, 1, e.broker.orderCount())

	// 第一腿成交后第二腿自动发出
	e.broker.fill(leg1, 5, 100)
	e.rec.Tick(ctx)
	assert.Equal(t, order.StatusPartial, o.Status)
	require.Equal(t, 2, e.broker.orderCount())
	leg2 := o.LastBrokerID()
	require.NotEqual(t, leg1, leg2)
	bo2, ok := e.broker.order(leg2)
	require.True(t, ok)
	assert.Equal(t, gateway.SideBuy, bo2.Side)
	assert.Equal(t, 15.0, bo2.Quantity)

	e.broker.fill(leg2, 15, 100.2)
	e.rec.Tick(ctx)
	assert.Equal(t, order.StatusFilled, o.Status)
	assert.Equal(t, 15.0, e.tracker.HoldingQuantity("AAPL"))
}

func TestCancelSuppressesSecondLeg(t *testing.T) {
	e := newEnv(t, false)
	ctx := context.Background()

	e.tracker.Set("TSLA", -5, 200)
	o := e.place(t, "TSLA", 20, order.KindLimit, 210)
	require.Equal(t, 1, e.broker.placedTotal())

	require.True(t, e.mgr.Cancel(ctx, o))
	assert.Equal(t, order.StatusCanceled, o.Status)

	// 撤销之后任凭怎么 tick，第二腿都不会发出
	e.rec.Tick(ctx)
	e.rec.Tick(ctx)
	assert.Equal(t, 1, e.broker.placedTotal())

	// 被撤的 id 也不会进未知扫描
	time.Sleep(60 * time.Millisecond)
	assert.Empty(t, e.alertsWithCode(order.CodeUnknownOrderID))
}

func TestBrokerOutageMarksInvalid(t *testing.T) {
	e := newEnv(t, false)

	e.broker.setFailPlace(10)
	o := order.NewOrder("AAPL", 10, order.KindMarket, order.TIFDay)
	e.book.Register(o)
	assert.False(t, e.mgr.Place(context.Background(), o))
	assert.Equal(t, order.StatusInvalid, o.Status)

	msgs := e.alertsWithCode(order.CodeRetriesExhausted)
	require.NotEmpty(t, msgs)
	assert.Equal(t, "WARNING", msgs[0].Level)
}

func TestModifyOpenOrder(t *testing.T) {
	e := newEnv(t, false)
	ctx := context.Background()

	o := e.place(t, "MSFT", 10, order.KindLimit, 300)
	require.True(t, e.mgr.Update(ctx, o, order.Update{Kind: order.KindLimit, Price: 301}))

	bo, ok := e.broker.order(o.LastBrokerID())
	require.True(t, ok)
	assert.Equal(t, 301.0, bo.Price)
	assert.Equal(t, 301.0, o.Price)
}

func TestOutOfBandCancelReconciled(t *testing.T) {
	e := newEnv(t, false)
	ctx := context.Background()

	o := e.place(t, "AAPL", 10, order.KindLimit, 100)
	e.broker.cancelOutOfBand(o.LastBrokerID())

	e.rec.Tick(ctx)
	assert.Equal(t, order.StatusCanceled, o.Status)
	assert.Equal(t, 0, e.mgr.Cache().Len())
}

func TestStrayBrokerOrderAlertedOnce(t *testing.T) {
	e := newEnv(t, false)
	ctx := context.Background()

	e.broker.inject(gateway.BrokerOrder{
		ID: 999, Symbol: "NVDA", Quantity: 10,
		Side: gateway.SideBuy, Kind: gateway.KindLimit,
		Status: gateway.BrokerStatusOpen, TransactionDate: time.Now(),
	})

	e.rec.Tick(ctx)
	time.Sleep(80 * time.Millisecond)
	require.Len(t, e.alertsWithCode(order.CodeUnknownOrderID), 1)
	assert.Equal(t, "ERROR", e.alertsWithCode(order.CodeUnknownOrderID)[0].Level)

	// 同一 id 不重复报告
	e.rec.Tick(ctx)
	time.Sleep(80 * time.Millisecond)
	assert.Len(t, e.alertsWithCode(order.CodeUnknownOrderID), 1)
}
