package order

import (
	"math"
	"sync"

	"broker-bridge-go/gateway"
)

// Position 一笔订单相对当前持仓的定位。
type Position int

const (
	// ToOpenLong 买入开多（持仓为零或多头）
	ToOpenLong Position = iota
	// ToOpenShort 卖出开空（持仓为零或空头）
	ToOpenShort
	// ToClose 反向减仓，数量不超过持仓
	ToClose
	// ToCloseThenFlip 反向数量超过持仓，需要穿越零点，必须拆成两张
	ToCloseThenFlip
)

func (p Position) String() string {
	switch p {
	case ToOpenLong:
		return "TO_OPEN_LONG"
	case ToOpenShort:
		return "TO_OPEN_SHORT"
	case ToClose:
		return "TO_CLOSE"
	case ToCloseThenFlip:
		return "TO_CLOSE_THEN_FLIP"
	default:
		return "UNKNOWN"
	}
}

// Classify 根据带符号的订单数量和当前持仓判断订单定位。
func Classify(orderQty, holding float64) Position {
	switch {
	case orderQty > 0 && holding >= 0:
		return ToOpenLong
	case orderQty < 0 && holding <= 0:
		return ToOpenShort
	case math.Abs(orderQty) <= math.Abs(holding):
		return ToClose
	default:
		return ToCloseThenFlip
	}
}

// NeedsSplit 判断订单是否需要跨零拆分。
func NeedsSplit(orderQty, holding float64) bool {
	return Classify(orderQty, holding) == ToCloseThenFlip
}

// SideFor 返回单张订单应使用的券商方向（含开平意图）。
func SideFor(orderQty, holding float64) gateway.BrokerSide {
	if orderQty > 0 {
		if holding < 0 {
			return gateway.SideBuyToCover
		}
		return gateway.SideBuy
	}
	if holding > 0 {
		return gateway.SideSell
	}
	return gateway.SideSellShort
}

// degradeKind 第二腿在第一腿成交后立刻发出，条件触发不再需要：
// stop 降级为 market，stop_limit 降级为 limit，止损价清零。
func degradeKind(k gateway.BrokerKind) gateway.BrokerKind {
	switch k {
	case gateway.KindStop:
		return gateway.KindMarket
	case gateway.KindStopLimit:
		return gateway.KindLimit
	default:
		return k
	}
}

// SplitState 跨零拆分的母单状态。
type SplitState int

const (
	SplitNotStarted SplitState = iota
	SplitFirstLegSubmitted
	SplitFirstLegFilled
	SplitSecondLegSubmitted
	SplitCompleted
	SplitCanceled
)

func (s SplitState) String() string {
	switch s {
	case SplitNotStarted:
		return "NOT_STARTED"
	case SplitFirstLegSubmitted:
		return "FIRST_LEG_SUBMITTED"
	case SplitFirstLegFilled:
		return "FIRST_LEG_FILLED"
	case SplitSecondLegSubmitted:
		return "SECOND_LEG_SUBMITTED"
	case SplitCompleted:
		return "COMPLETED"
	case SplitCanceled:
		return "CANCELED"
	default:
		return "UNKNOWN"
	}
}

// SplitPlan 跨零拆分结果：第一腿平掉现有持仓，第二腿建立目标仓位。
type SplitPlan struct {
	FirstLeg  gateway.OrderRequest
	SecondLeg gateway.OrderRequest
}

// PlanSplit 生成跨零拆分计划。brokerSymbol 已经过符号映射。
func PlanSplit(o *Order, holding float64, brokerSymbol string) SplitPlan {
	closeQty := math.Abs(holding)
	openQty := math.Abs(o.Quantity) - closeQty

	var closeSide, openSide gateway.BrokerSide
	if o.Quantity > 0 {
		// 空头翻多：先 buy_to_cover 平空，再 buy 开多
		closeSide = gateway.SideBuyToCover
		openSide = gateway.SideBuy
	} else {
		// 多头翻空：先 sell 平多，再 sell_short 开空
		closeSide = gateway.SideSell
		openSide = gateway.SideSellShort
	}

	orderKind, price, stop := o.Params()
	kind := orderKind.BrokerKind()
	first := gateway.OrderRequest{
		Symbol:    brokerSymbol,
		Side:      closeSide,
		Kind:      kind,
		Duration:  o.TIF.BrokerDuration(),
		Quantity:  closeQty,
		Price:     price,
		StopPrice: stop,
	}
	second := gateway.OrderRequest{
		Symbol:   brokerSymbol,
		Side:     openSide,
		Kind:     degradeKind(kind),
		Duration: o.TIF.BrokerDuration(),
		Quantity: openQty,
		Price:    price,
		// 止损价清零：降级后的腿不再挂条件触发
	}
	if second.Kind == gateway.KindMarket {
		second.Price = 0
	}
	return SplitPlan{FirstLeg: first, SecondLeg: second}
}

// contingentRecord 母单与尚未发出的后续腿（FIFO）。
type contingentRecord struct {
	parent *Order
	queue  []gateway.OrderRequest
	state  SplitState
}

// ContingentBook 按本地订单 id 管理跨零拆分的待发腿。
// 只在母单还有未发腿时存在；队列耗尽或母单撤销即销毁。
type ContingentBook struct {
	mu      sync.Mutex
	records map[string]*contingentRecord
}

func NewContingentBook() *ContingentBook {
	return &ContingentBook{records: make(map[string]*contingentRecord)}
}

// Put 登记母单及其待发腿，状态置为 FirstLegSubmitted。
func (b *ContingentBook) Put(parent *Order, legs ...gateway.OrderRequest) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.records[parent.ID] = &contingentRecord{
		parent: parent,
		queue:  append([]gateway.OrderRequest(nil), legs...),
		state:  SplitFirstLegSubmitted,
	}
}

// Pop 取出下一条待发腿；队列耗尽时销毁记录。
// 撤单先于成交被观察到时，记录已被 Discard 删除，这里返回 false，
// 第二腿因此永远不会发出——撤销总是赢。
func (b *ContingentBook) Pop(localID string) (gateway.OrderRequest, *Order, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	rec, ok := b.records[localID]
	if !ok || len(rec.queue) == 0 {
		return gateway.OrderRequest{}, nil, false
	}
	leg := rec.queue[0]
	rec.queue = rec.queue[1:]
	rec.state = SplitSecondLegSubmitted
	parent := rec.parent
	if len(rec.queue) == 0 {
		delete(b.records, localID)
	}
	return leg, parent, true
}

// Discard 丢弃母单的全部待发腿（撤单/拒绝路径）。
func (b *ContingentBook) Discard(localID string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.records[localID]
	delete(b.records, localID)
	return ok
}

// Has 判断母单是否还有待发腿。
func (b *ContingentBook) Has(localID string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	rec, ok := b.records[localID]
	return ok && len(rec.queue) > 0
}

// MirrorUpdate 改单成功后同步已排队的腿，后续发出时反映最新参数。
// 种类仍按降级规则处理。
func (b *ContingentBook) MirrorUpdate(localID string, kind gateway.BrokerKind, price float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	rec, ok := b.records[localID]
	if !ok {
		return
	}
	for i := range rec.queue {
		rec.queue[i].Kind = degradeKind(kind)
		rec.queue[i].Price = price
		rec.queue[i].StopPrice = 0
		if rec.queue[i].Kind == gateway.KindMarket {
			rec.queue[i].Price = 0
		}
	}
}

// Len 返回当前登记的母单数。
func (b *ContingentBook) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.records)
}
