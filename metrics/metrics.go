// Package metrics exposes the Prometheus endpoint for the broker bridge.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// StartMetricsServer 启动Prometheus指标服务器（默认全局注册表）
func StartMetricsServer(addr string) {
	StartMetricsServerWith(addr, promhttp.Handler())
}

// StartMetricsServerWith 用指定 handler 启动指标服务器，
// 用于接入独立注册表。
func StartMetricsServerWith(addr string, handler http.Handler) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", handler)
	go func() {
		_ = http.ListenAndServe(addr, mux)
	}()
}
