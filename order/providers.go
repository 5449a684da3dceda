package order

import (
	"context"

	"broker-bridge-go/gateway"
)

// BrokerClient 下单/查询所需的券商客户端子集（gateway.Client 实现）。
type BrokerClient interface {
	GetOrders(ctx context.Context) ([]gateway.BrokerOrder, error)
	GetOrder(ctx context.Context, id int64) (*gateway.BrokerOrder, error)
	PlaceOrder(ctx context.Context, req gateway.OrderRequest) (int64, error)
	ModifyOrder(ctx context.Context, id int64, req gateway.OrderRequest) error
	CancelOrder(ctx context.Context, id int64) error
}

// HoldingsProvider 返回当前持仓（带符号）。
type HoldingsProvider interface {
	HoldingQuantity(symbol string) float64
}

// OrderLookup 按券商 id 反查本地订单（外部协作方，通常是订单簿/证券主档）。
type OrderLookup interface {
	LocalOrderByBrokerID(brokerID int64) (*Order, bool)
}

// FeeModel 计算一笔订单的费用；对账时每个券商 id 只调用一次。
type FeeModel interface {
	Fee(symbol string, qty, price float64) float64
}

// SymbolMapper 本地代码与券商代码互转。
type SymbolMapper interface {
	ToBroker(symbol string) string
	ToLocal(brokerSymbol string) string
}

// Journal 订单事件留痕（可选；bbolt 实现见 journal 包）。
type Journal interface {
	RecordTransition(orderID string, brokerID int64, status Status, fillQty, fillPrice float64) error
	RecordClosed(brokerID int64) error
	ClosedIDs(limit int) ([]int64, error)
}
