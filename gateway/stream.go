package gateway

import (
	"context"
	"encoding/json"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// EventStream 订阅券商账户事件流。该流不是权威成交来源（成交以轮询为准），
// 收到订单事件只用于提示对账器提前跑一轮 tick。流断开不影响任何正确性。
type EventStream struct {
	Endpoint  string
	SessionID string
	Dialer    *websocket.Dialer
	log       *zap.Logger

	// Notify 在收到订单相关事件时被调用（非阻塞语义由接收方保证）。
	Notify func()
}

func NewEventStream(endpoint, sessionID string, log *zap.Logger) *EventStream {
	if log == nil {
		log = zap.NewNop()
	}
	return &EventStream{
		Endpoint:  endpoint,
		SessionID: sessionID,
		Dialer:    websocket.DefaultDialer,
		log:       log,
	}
}

type streamEvent struct {
	Event string `json:"event"`
}

// Run 持续连接并读取事件，断线后退避重连，直到 ctx 取消。
func (s *EventStream) Run(ctx context.Context) {
	backoff := time.Second
	for {
		if err := s.readLoop(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			s.log.Warn("event stream disconnected", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		if backoff < 30*time.Second {
			backoff *= 2
		}
	}
}

func (s *EventStream) readLoop(ctx context.Context) error {
	u, err := url.Parse(s.Endpoint)
	if err != nil {
		return err
	}
	q := u.Query()
	q.Set("sessionid", s.SessionID)
	u.RawQuery = q.Encode()

	conn, _, err := s.Dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		var ev streamEvent
		if err := json.Unmarshal(message, &ev); err != nil {
			continue
		}
		if strings.EqualFold(ev.Event, "order") && s.Notify != nil {
			s.Notify()
		}
	}
}
