package gateway

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Transport 抽象一次底层 HTTP 调用；core 不关心签名/编码细节。
// 测试中可用 httptest 或纯内存实现替换。
type Transport interface {
	Send(ctx context.Context, method, path string, params url.Values) (status int, body []byte, err error)
}

// HTTPTransport 基于 net/http 的实现；HTTPClient 可注入 httptest。
type HTTPTransport struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
}

func (t *HTTPTransport) Send(ctx context.Context, method, path string, params url.Values) (int, []byte, error) {
	if t == nil || t.HTTPClient == nil {
		return 0, nil, fmt.Errorf("http client not set")
	}
	endpoint := t.BaseURL + path
	var reqBody io.Reader
	if method == http.MethodGet || method == http.MethodDelete {
		if len(params) > 0 {
			endpoint += "?" + params.Encode()
		}
	} else {
		reqBody = strings.NewReader(params.Encode())
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reqBody)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Authorization", "Bearer "+t.Token)
	req.Header.Set("Accept", "application/json")
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	resp, err := t.HTTPClient.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, err
	}
	return resp.StatusCode, body, nil
}

// NewDefaultHTTPClient 提供一个带超时的 http.Client。
func NewDefaultHTTPClient() *http.Client {
	return &http.Client{Timeout: 10 * time.Second}
}
