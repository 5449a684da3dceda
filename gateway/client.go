package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
)

// MessageSink 接收面向调用方的券商消息（severity: info/warning/error）。
type MessageSink func(severity, code, text string)

// ObserveFunc 上报一次请求的类别/结果/耗时（接 Prometheus 指标）。
type ObserveFunc func(category Category, failed bool, dur time.Duration)

// Client 同步券商客户端：持有会话级互斥锁，限流、请求、解析
// 作为一个临界区整体执行，所有上层组件共享同一逻辑通道。
// 瞬时故障（网络错误/超时/5xx）本地重试，业务错误立即上浮，均不抛给调用方。
type Client struct {
	transport Transport
	gate      *CategoryLimiter
	log       *zap.Logger
	msg       MessageSink
	observe   ObserveFunc

	mu          sync.Mutex
	maxAttempts int
	backoff     time.Duration
}

// ClientOption 配置 Client 可选项。
type ClientOption func(*Client)

// WithMessageSink 设置券商消息的接收方。
func WithMessageSink(sink MessageSink) ClientOption {
	return func(c *Client) { c.msg = sink }
}

// WithObserver 设置请求指标回调。
func WithObserver(fn ObserveFunc) ClientOption {
	return func(c *Client) { c.observe = fn }
}

// WithRetry 覆盖默认的重试预算（10 次 × 3s 退避）。
func WithRetry(attempts int, backoff time.Duration) ClientOption {
	return func(c *Client) {
		if attempts > 0 {
			c.maxAttempts = attempts
		}
		if backoff > 0 {
			c.backoff = backoff
		}
	}
}

func NewClient(t Transport, gate *CategoryLimiter, log *zap.Logger, opts ...ClientOption) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	c := &Client{
		transport:   t,
		gate:        gate,
		log:         log,
		maxAttempts: 10,
		backoff:     3 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// do 在互斥锁内完成 限流→请求→读取 的完整往返。
// 返回 ErrUnavailable 表示重试耗尽（已播报，调用方不应再播报）;
// 返回 *FaultError 表示业务拒绝；ErrAlreadyFinal 表示订单已终态。
func (c *Client) do(ctx context.Context, cat Category, method, path string, params url.Values) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	start := time.Now()
	body, err := c.doLocked(ctx, cat, method, path, params)
	if c.observe != nil {
		c.observe(cat, err != nil, time.Since(start))
	}
	return body, err
}

func (c *Client) doLocked(ctx context.Context, cat Category, method, path string, params url.Values) ([]byte, error) {
	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if c.gate != nil {
			c.gate.Acquire(cat)
		}
		status, body, err := c.transport.Send(ctx, method, path, params)
		switch {
		case err != nil:
			lastErr = err
			c.log.Warn("broker call failed",
				zap.String("path", path), zap.Int("attempt", attempt), zap.Error(err))
		case transientStatus(status):
			lastErr = fmt.Errorf("broker status %d", status)
			c.log.Warn("broker transient status",
				zap.String("path", path), zap.Int("status", status), zap.Int("attempt", attempt))
		case status >= 400:
			text := parseFault(body)
			if alreadyFinalized(text) {
				return nil, ErrAlreadyFinal
			}
			return nil, &FaultError{Code: status, Text: text}
		default:
			return body, nil
		}
		if attempt < c.maxAttempts {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.backoff):
			}
		}
	}
	c.emit("warning", "RetriesExhausted", fmt.Sprintf("%s %s: %v", method, path, lastErr))
	return nil, ErrUnavailable
}

func (c *Client) emit(severity, code, text string) {
	if c.msg != nil {
		c.msg(severity, code, text)
	}
}

// decode 解析响应体；失败只记 warning，返回零值，调用按"无数据"继续。
func (c *Client) decode(body []byte, v interface{}) bool {
	if len(body) == 0 {
		return false
	}
	if err := json.Unmarshal(body, v); err != nil {
		c.log.Warn("broker payload decode failed", zap.Error(err), zap.ByteString("body", body))
		return false
	}
	return true
}

type ordersPayload struct {
	Orders []BrokerOrder `json:"orders"`
}

type orderPayload struct {
	Order BrokerOrder `json:"order"`
}

type placePayload struct {
	Order struct {
		ID     int64  `json:"id"`
		Status string `json:"status"`
	} `json:"order"`
}

// GetOrders 拉取当日全部订单（含 pending）。失败时返回空切片。
func (c *Client) GetOrders(ctx context.Context) ([]BrokerOrder, error) {
	body, err := c.do(ctx, CategoryAccountData, http.MethodGet, "/v1/accounts/orders", nil)
	if err != nil {
		if errors.Is(err, ErrUnavailable) {
			return nil, nil
		}
		return nil, err
	}
	var p ordersPayload
	c.decode(body, &p)
	if p.Orders == nil {
		// 空账户快照必须和「接口不可用」（nil）区分开，调用方据此判断能否信任快照。
		p.Orders = []BrokerOrder{}
	}
	return p.Orders, nil
}

// GetOrder 按 id 查询单个订单。
func (c *Client) GetOrder(ctx context.Context, id int64) (*BrokerOrder, error) {
	path := "/v1/accounts/orders/" + strconv.FormatInt(id, 10)
	body, err := c.do(ctx, CategoryAccountData, http.MethodGet, path, nil)
	if err != nil {
		if errors.Is(err, ErrUnavailable) {
			return nil, nil
		}
		return nil, err
	}
	var p orderPayload
	if !c.decode(body, &p) {
		return nil, nil
	}
	return &p.Order, nil
}

type positionsPayload struct {
	Positions []BrokerPosition `json:"positions"`
}

// GetPositions 拉取账户当前持仓。失败时返回空切片。
func (c *Client) GetPositions(ctx context.Context) ([]BrokerPosition, error) {
	body, err := c.do(ctx, CategoryAccountData, http.MethodGet, "/v1/accounts/positions", nil)
	if err != nil {
		if errors.Is(err, ErrUnavailable) {
			return nil, nil
		}
		return nil, err
	}
	var p positionsPayload
	c.decode(body, &p)
	if p.Positions == nil {
		p.Positions = []BrokerPosition{}
	}
	return p.Positions, nil
}

// PlaceOrder 提交订单，返回券商分配的订单 id。
func (c *Client) PlaceOrder(ctx context.Context, req OrderRequest) (int64, error) {
	body, err := c.do(ctx, CategoryOrders, http.MethodPost, "/v1/accounts/orders", orderParams(req))
	if err != nil {
		return 0, err
	}
	var p placePayload
	if !c.decode(body, &p) {
		return 0, nil
	}
	return p.Order.ID, nil
}

// ModifyOrder 改单；数量不可改，只允许类型/价格/止损价变化。
// 订单已终态时返回 ErrAlreadyFinal，调用方静默处理。
func (c *Client) ModifyOrder(ctx context.Context, id int64, req OrderRequest) error {
	path := "/v1/accounts/orders/" + strconv.FormatInt(id, 10)
	params := url.Values{}
	params.Set("type", string(req.Kind))
	params.Set("duration", string(req.Duration))
	if req.Price > 0 {
		params.Set("price", formatFloat(req.Price))
	}
	if req.StopPrice > 0 {
		params.Set("stop", formatFloat(req.StopPrice))
	}
	_, err := c.do(ctx, CategoryOrders, http.MethodPut, path, params)
	return err
}

// CancelOrder 撤单。订单已终态时返回 ErrAlreadyFinal。
func (c *Client) CancelOrder(ctx context.Context, id int64) error {
	path := "/v1/accounts/orders/" + strconv.FormatInt(id, 10)
	_, err := c.do(ctx, CategoryOrders, http.MethodDelete, path, nil)
	return err
}

func orderParams(req OrderRequest) url.Values {
	params := url.Values{}
	params.Set("symbol", req.Symbol)
	params.Set("side", string(req.Side))
	params.Set("type", string(req.Kind))
	params.Set("duration", string(req.Duration))
	params.Set("quantity", formatFloat(req.Quantity))
	if req.Price > 0 {
		params.Set("price", formatFloat(req.Price))
	}
	if req.StopPrice > 0 {
		params.Set("stop", formatFloat(req.StopPrice))
	}
	if req.Tag != "" {
		params.Set("tag", req.Tag)
	}
	return params
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
