package order

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"broker-bridge-go/gateway"
)

// Status represents the local order lifecycle.
type Status string

const (
	StatusNew       Status = "NEW"
	StatusSubmitted Status = "SUBMITTED"
	StatusPartial   Status = "PARTIALLY_FILLED"
	StatusFilled    Status = "FILLED"
	StatusCanceled  Status = "CANCELED"
	StatusInvalid   Status = "INVALID"
)

// Kind 本地订单种类。
type Kind string

const (
	KindMarket     Kind = "MARKET"
	KindLimit      Kind = "LIMIT"
	KindStopMarket Kind = "STOP_MARKET"
	KindStopLimit  Kind = "STOP_LIMIT"
)

// TimeInForce 订单有效期。
type TimeInForce string

const (
	TIFDay TimeInForce = "DAY"
	TIFGTC TimeInForce = "GTC"
)

// Order 调用方持有的本地订单。Quantity 带符号（符号即方向）。
// Status、BrokerIDs 和改单参数（Kind/Price/StopPrice）被提交路径与
// 对账循环两侧并发读写，必须经 o.mu 下的方法访问；直接读字段只在
// 单线程场景（构造、测试断言）安全。
type Order struct {
	ID          string
	Symbol      string
	Quantity    float64
	Kind        Kind
	TIF         TimeInForce
	Price       float64
	StopPrice   float64
	Status      Status
	BrokerIDs   []int64

	mu sync.Mutex
}

// NewOrder 创建一个本地订单，id 使用 uuid。
func NewOrder(symbol string, qty float64, kind Kind, tif TimeInForce) *Order {
	return &Order{
		ID:       uuid.NewString(),
		Symbol:   symbol,
		Quantity: qty,
		Kind:     kind,
		TIF:      tif,
		Status:   StatusNew,
	}
}

// AttachBrokerID 记录券商分配的订单 id（跨零拆分时会有两个）。
func (o *Order) AttachBrokerID(id int64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, existing := range o.BrokerIDs {
		if existing == id {
			return
		}
	}
	o.BrokerIDs = append(o.BrokerIDs, id)
}

// LastBrokerID 返回最近一个券商 id；没有则返回 0。
func (o *Order) LastBrokerID() int64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.BrokerIDs) == 0 {
		return 0
	}
	return o.BrokerIDs[len(o.BrokerIDs)-1]
}

// BrokerIDList 返回券商 id 列表的拷贝。
func (o *Order) BrokerIDList() []int64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]int64(nil), o.BrokerIDs...)
}

// CurrentStatus 返回当前状态。
func (o *Order) CurrentStatus() Status {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.Status
}

// advance 在 o.mu 下校验并推进状态；非法转换返回错误，状态不变。
// 校验与写入必须是一个临界区，否则提交路径和对账循环会交错覆盖。
func (o *Order) advance(to Status) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if err := sharedStateMachine.ValidateTransition(o.Status, to); err != nil {
		return err
	}
	o.Status = to
	return nil
}

// Params 返回改单参数的一致快照。
func (o *Order) Params() (Kind, float64, float64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.Kind, o.Price, o.StopPrice
}

// setParams 原子替换改单参数。
func (o *Order) setParams(kind Kind, price, stop float64) {
	o.mu.Lock()
	o.Kind = kind
	o.Price = price
	o.StopPrice = stop
	o.mu.Unlock()
}

// HasBrokerID 判断订单是否关联了指定券商 id。
func (o *Order) HasBrokerID(id int64) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, existing := range o.BrokerIDs {
		if existing == id {
			return true
		}
	}
	return false
}

// BrokerDuration 转换为券商侧有效期。
func (t TimeInForce) BrokerDuration() gateway.BrokerDuration {
	if t == TIFGTC {
		return gateway.DurationGTC
	}
	return gateway.DurationDay
}

// BrokerKind 转换为券商侧订单种类。
func (k Kind) BrokerKind() gateway.BrokerKind {
	switch k {
	case KindMarket:
		return gateway.KindMarket
	case KindLimit:
		return gateway.KindLimit
	case KindStopMarket:
		return gateway.KindStop
	case KindStopLimit:
		return gateway.KindStopLimit
	default:
		return gateway.KindMarket
	}
}

// StatusEvent 一次状态/成交变化；FillQuantity 为带符号增量。
// 两次轮询之间的多笔成交会合并成一个增量，FillPrice 只反映最近一笔。
type StatusEvent struct {
	OrderID      string
	BrokerID     int64
	Symbol       string
	Status       Status
	FillQuantity float64
	FillPrice    float64
	Fee          float64
	Time         time.Time
}

// EventSink 接收订单状态事件。
type EventSink func(StatusEvent)

// Severity 消息级别。
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// 稳定的消息代码，调用方按代码分支，不解析文本。
const (
	CodeOneOrderPerSymbol = "OneOrderPerSymbol"
	CodeUnknownOrderID    = "UnknownOrderId"
	CodeUpdateRejected    = "UpdateRejected"
	CodeUpdateSubmitted   = "UpdateSubmitted"
	CodeOrderRejected     = "OrderRejected"
	CodeOrderCanceledID   = "CanceledOrderId"
	CodeRetriesExhausted  = "RetriesExhausted"
	CodeLookupFailed      = "OrderLookupFailed"
)

// Message 面向调用方的券商消息。
type Message struct {
	Severity Severity
	Code     string
	Text     string
	Time     time.Time
}

// MessageSink 接收券商消息。
type MessageSink func(Message)
