package monitor

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Monitor Prometheus监控指标收集器。所有 Record 方法对 nil 接收者安全，
// 组件可以不接监控直接运行。
type Monitor struct {
	registry *prometheus.Registry

	// 订单指标
	ordersPlaced   prometheus.Counter
	ordersCanceled prometheus.Counter
	ordersFilled   prometheus.Counter
	ordersRejected prometheus.Counter

	// 跨零拆分指标
	crossZeroSplits prometheus.Counter

	// 对账指标
	reconcileTicks   prometheus.Counter
	reconcileSkipped prometheus.Counter
	reconcileLatency prometheus.Histogram
	fillEvents       prometheus.Counter
	filledVolume     prometheus.Counter
	unknownOrders    prometheus.Counter

	// 缓存指标
	openOrders prometheus.Gauge

	// REST 指标
	restRequests *prometheus.CounterVec
	restErrors   *prometheus.CounterVec
	restLatency  *prometheus.HistogramVec
}

// Config 监控配置
type Config struct {
	Namespace string
	Subsystem string
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		Namespace: "bridge",
		Subsystem: "orders",
	}
}

// New 创建新的Monitor实例
func New(cfg Config) *Monitor {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	m := &Monitor{
		registry: reg,

		ordersPlaced: factory.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "orders_placed_total",
			Help:      "订单下单总数",
		}),
		ordersCanceled: factory.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "orders_canceled_total",
			Help:      "订单撤单总数",
		}),
		ordersFilled: factory.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "orders_filled_total",
			Help:      "订单完全成交总数",
		}),
		ordersRejected: factory.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "orders_rejected_total",
			Help:      "订单拒绝总数",
		}),
		crossZeroSplits: factory.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "cross_zero_splits_total",
			Help:      "跨零拆分订单总数",
		}),
		reconcileTicks: factory.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "reconcile_ticks_total",
			Help:      "对账执行总次数",
		}),
		reconcileSkipped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "reconcile_skipped_total",
			Help:      "因上一轮未结束而跳过的对账次数",
		}),
		reconcileLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "reconcile_latency_seconds",
			Help:      "单轮对账耗时分布（秒）",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5},
		}),
		fillEvents: factory.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "fill_events_total",
			Help:      "合成成交事件总数",
		}),
		filledVolume: factory.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "filled_volume_total",
			Help:      "累计成交量（绝对值）",
		}),
		unknownOrders: factory.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "unknown_orders_total",
			Help:      "验证后仍无法识别的券商订单 id 数",
		}),
		openOrders: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "open_orders",
			Help:      "当前在途订单缓存大小",
		}),
		restRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "rest_requests_total",
				Help:      "REST请求总数",
			},
			[]string{"category"},
		),
		restErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "rest_errors_total",
				Help:      "REST错误总数",
			},
			[]string{"category"},
		),
		restLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "rest_latency_seconds",
				Help:      "REST请求延迟（秒）",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"category"},
		),
	}

	return m
}

// 订单相关方法
func (m *Monitor) RecordOrderPlaced() {
	if m == nil {
		return
	}
	m.ordersPlaced.Inc()
}

func (m *Monitor) RecordOrderCanceled() {
	if m == nil {
		return
	}
	m.ordersCanceled.Inc()
}

func (m *Monitor) RecordOrderFilled() {
	if m == nil {
		return
	}
	m.ordersFilled.Inc()
}

func (m *Monitor) RecordOrderRejected() {
	if m == nil {
		return
	}
	m.ordersRejected.Inc()
}

func (m *Monitor) RecordCrossZeroSplit() {
	if m == nil {
		return
	}
	m.crossZeroSplits.Inc()
}

// 对账相关方法
func (m *Monitor) RecordReconcileTick(dur time.Duration) {
	if m == nil {
		return
	}
	m.reconcileTicks.Inc()
	m.reconcileLatency.Observe(dur.Seconds())
}

func (m *Monitor) RecordReconcileSkipped() {
	if m == nil {
		return
	}
	m.reconcileSkipped.Inc()
}

func (m *Monitor) RecordFill(qty float64) {
	if m == nil {
		return
	}
	m.fillEvents.Inc()
	if qty < 0 {
		qty = -qty
	}
	m.filledVolume.Add(qty)
}

func (m *Monitor) RecordUnknownOrder() {
	if m == nil {
		return
	}
	m.unknownOrders.Inc()
}

func (m *Monitor) SetOpenOrders(n int) {
	if m == nil {
		return
	}
	m.openOrders.Set(float64(n))
}

// REST 相关方法
func (m *Monitor) RecordRESTRequest(category string, failed bool, dur time.Duration) {
	if m == nil {
		return
	}
	m.restRequests.WithLabelValues(category).Inc()
	if failed {
		m.restErrors.WithLabelValues(category).Inc()
	}
	m.restLatency.WithLabelValues(category).Observe(dur.Seconds())
}

// Handler 返回该 registry 的 promhttp handler。
func (m *Monitor) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry 暴露底层 registry（测试用）。
func (m *Monitor) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}
