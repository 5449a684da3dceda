package gateway

import "time"

// BrokerStatus represents the broker-side order lifecycle.
type BrokerStatus string

const (
	BrokerStatusPending   BrokerStatus = "pending"
	BrokerStatusSubmitted BrokerStatus = "submitted"
	BrokerStatusOpen      BrokerStatus = "open"
	BrokerStatusPartial   BrokerStatus = "partially_filled"
	BrokerStatusFilled    BrokerStatus = "filled"
	BrokerStatusCanceled  BrokerStatus = "canceled"
	BrokerStatusExpired   BrokerStatus = "expired"
	BrokerStatusRejected  BrokerStatus = "rejected"
)

// Closed 判断是否终态（不再产生成交）。
func (s BrokerStatus) Closed() bool {
	switch s {
	case BrokerStatusFilled, BrokerStatusCanceled, BrokerStatusExpired, BrokerStatusRejected:
		return true
	default:
		return false
	}
}

// BrokerSide 券商侧方向；开平意图叠加在方向上，股票与期权取值不同。
type BrokerSide string

const (
	SideBuy         BrokerSide = "buy"
	SideSell        BrokerSide = "sell"
	SideBuyToCover  BrokerSide = "buy_to_cover"
	SideSellShort   BrokerSide = "sell_short"
	SideBuyToOpen   BrokerSide = "buy_to_open"
	SideBuyToClose  BrokerSide = "buy_to_close"
	SideSellToOpen  BrokerSide = "sell_to_open"
	SideSellToClose BrokerSide = "sell_to_close"
)

// Short 返回该方向是否减少持仓（成交增量取负号）。
func (s BrokerSide) Short() bool {
	switch s {
	case SideSell, SideSellShort, SideSellToOpen, SideSellToClose:
		return true
	default:
		return false
	}
}

// BrokerKind 订单种类。
type BrokerKind string

const (
	KindMarket    BrokerKind = "market"
	KindLimit     BrokerKind = "limit"
	KindStop      BrokerKind = "stop"
	KindStopLimit BrokerKind = "stop_limit"
)

// BrokerDuration 有效期。
type BrokerDuration string

const (
	DurationDay BrokerDuration = "day"
	DurationGTC BrokerDuration = "gtc"
)

// BrokerOrder 券商侧订单快照（轮询返回的结构）。
type BrokerOrder struct {
	ID              int64        `json:"id"`
	Symbol          string       `json:"symbol"`
	Quantity        float64      `json:"quantity"`
	Side            BrokerSide   `json:"side"`
	Kind            BrokerKind   `json:"type"`
	Duration        BrokerDuration `json:"duration"`
	Price           float64      `json:"price"`
	StopPrice       float64      `json:"stop_price"`
	Status          BrokerStatus `json:"status"`
	ExecQuantity    float64      `json:"exec_quantity"`
	LastFillPrice   float64      `json:"last_fill_price"`
	TransactionDate time.Time    `json:"transaction_date"`
}

// Open 返回订单是否仍可能产生成交。
func (o BrokerOrder) Open() bool { return !o.Status.Closed() }

// SignedExec 返回按方向加符号的已成交数量。
func (o BrokerOrder) SignedExec() float64 {
	if o.Side.Short() {
		return -o.ExecQuantity
	}
	return o.ExecQuantity
}

// BrokerPosition 账户持仓（带符号数量，空头为负）。
type BrokerPosition struct {
	Symbol       string    `json:"symbol"`
	Quantity     float64   `json:"quantity"`
	CostBasis    float64   `json:"cost_basis"`
	DateAcquired time.Time `json:"date_acquired"`
}

// OrderRequest 下单/改单请求参数。
type OrderRequest struct {
	Symbol    string
	Side      BrokerSide
	Kind      BrokerKind
	Duration  BrokerDuration
	Quantity  float64
	Price     float64
	StopPrice float64
	Tag       string
}
