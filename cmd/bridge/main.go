package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"broker-bridge-go/config"
	"broker-bridge-go/gateway"
	"broker-bridge-go/infrastructure/alert"
	"broker-bridge-go/infrastructure/logger"
	"broker-bridge-go/infrastructure/monitor"
	"broker-bridge-go/inventory"
	"broker-bridge-go/journal"
	"broker-bridge-go/metrics"
	"broker-bridge-go/monitor/logschema"
	"broker-bridge-go/order"
	"broker-bridge-go/symbols"
)

// perShareFee 按每股固定费率计费；未配置的标的免费。
type perShareFee map[string]float64

func (f perShareFee) Fee(symbol string, qty, _ float64) float64 {
	return math.Abs(qty) * f[symbol]
}

func main() {
	var (
		configPath  = flag.String("config", "configs/config.yaml", "配置文件路径")
		metricsAddr = flag.String("metricsAddr", "", "Prometheus 监听地址（覆盖配置）")
		journalPath = flag.String("journal", "", "订单留痕数据库路径（覆盖配置）")
		logLevel    = flag.String("logLevel", "info", "日志级别 debug/info/warn/error")
		intakeAddr  = flag.String("listen", "127.0.0.1:8712", "订单入口监听地址，空串禁用")
		watchConfig = flag.Bool("watch", true, "监听配置文件变化")
	)
	flag.Parse()

	cfg, err := config.LoadWithEnvOverrides(*configPath)
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}
	if *metricsAddr != "" {
		cfg.Metrics.Addr = *metricsAddr
	}
	if *journalPath != "" {
		cfg.Journal.Path = *journalPath
	}

	logCfg := logger.DefaultConfig()
	logCfg.Level = *logLevel
	appLog, err := logger.New(logCfg)
	if err != nil {
		log.Fatalf("初始化日志失败: %v", err)
	}
	defer appLog.Close()

	appLog.Info("broker bridge starting",
		zap.String("env", cfg.Env),
		zap.String("broker", cfg.Broker.BaseURL),
		zap.Duration("interval", cfg.Interval()))

	m := monitor.New(monitor.DefaultConfig())

	alerts := alert.NewManager([]alert.Channel{
		alert.NewLogChannel("stdout", os.Stdout),
	}, 30*time.Second)

	// 券商客户端：限流参数来自配置+默认值合并
	limits := make(map[gateway.Category]gateway.BucketConfig)
	for cat, rl := range config.EffectiveRateLimits(cfg) {
		limits[gateway.Category(cat)] = gateway.BucketConfig{Rate: rl.Rate, Burst: int(rl.Burst)}
	}
	transport := &gateway.HTTPTransport{
		BaseURL:    cfg.Broker.BaseURL,
		Token:      cfg.Broker.Token,
		HTTPClient: gateway.NewDefaultHTTPClient(),
	}
	client := gateway.NewClient(transport, gateway.NewCategoryLimiter(limits), appLog.Logger,
		gateway.WithMessageSink(func(severity, code, text string) {
			alerts.Dispatch(order.Message{
				Severity: order.Severity(severity),
				Code:     code,
				Text:     text,
				Time:     time.Now(),
			})
		}),
		gateway.WithObserver(func(cat gateway.Category, failed bool, dur time.Duration) {
			m.RecordRESTRequest(string(cat), failed, dur)
		}),
	)

	mapper := symbols.NewMapper()
	fees := perShareFee{}
	for local, sc := range cfg.Symbols {
		if sc.BrokerSymbol != "" {
			mapper.Register(local, sc.BrokerSymbol)
		}
		if sc.FeePerShare > 0 {
			fees[local] = sc.FeePerShare
		}
	}

	tracker := inventory.NewTracker()
	positions := &inventory.Sync{Tracker: tracker, Client: client, Mapper: mapper}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := positions.Refresh(ctx); err != nil {
		appLog.Warn("持仓预热失败，从空仓开始", zap.Error(err))
	}

	closed := order.NewRecentIDSet(0, 0)
	var jr *journal.BoltJournal
	if cfg.Journal.Path != "" {
		jr, err = journal.Open(cfg.Journal.Path)
		if err != nil {
			log.Fatalf("打开订单留痕数据库失败: %v", err)
		}
		defer jr.Close()
		// 重启后把上个会话的终态 id 找回来，避免对账把它们当未知单
		ids, err := jr.ClosedIDs(0)
		if err != nil {
			appLog.Warn("读取历史终态订单失败", zap.Error(err))
		}
		for _, id := range ids {
			closed.Add(id)
		}
		appLog.Info("journal warm start", zap.Int("closedIds", len(ids)))
	}

	book := order.NewBook()
	deps := order.Deps{
		Client:     client,
		Cache:      order.NewOpenOrderCache(),
		Contingent: order.NewContingentBook(),
		Closed:     closed,
		Rejected:   order.NewRecentIDSet(0, cfg.RejectedWindow()),
		Lookup:     book,
		Holdings:   tracker,
		Fees:       fees,
		Mapper:     mapper,
		Log:        appLog.Logger,
		Events:     fanOutEvents(appLog, positions.Sink()),
		Messages:   alerts.Sink(),
		Metrics:    m,
	}
	if jr != nil {
		deps.Journal = jr
	}

	mgr := order.NewManager(deps)
	rec := order.NewReconciler(deps, order.ReconcilerConfig{
		Interval:       cfg.Interval(),
		DebounceDelay:  cfg.Debounce(),
		RejectedWindow: cfg.RejectedWindow(),
	})
	if err := rec.Start(ctx); err != nil {
		log.Fatalf("启动对账循环失败: %v", err)
	}

	// 账户事件流只是提示，断开不影响对账正确性
	if cfg.Broker.StreamURL != "" {
		stream := gateway.NewEventStream(cfg.Broker.StreamURL, cfg.Broker.AccountID, appLog.Logger)
		stream.Notify = rec.Poke
		go stream.Run(ctx)
	}

	if *watchConfig {
		watcher, err := config.NewWatcher(*configPath, config.DefaultWatchConfig(),
			func(newCfg config.AppConfig) {
				// 轮询间隔等参数需重启生效，这里只提示
				appLog.Info("config file reloaded",
					zap.String("env", newCfg.Env),
					zap.Duration("interval", newCfg.Interval()))
			},
			func(err error) {
				appLog.Warn("config reload failed, keeping previous", zap.Error(err))
			})
		if err != nil {
			appLog.Warn("config watcher unavailable", zap.Error(err))
		} else if err := watcher.Start(ctx); err != nil {
			appLog.Warn("config watcher start failed", zap.Error(err))
		} else {
			defer watcher.Stop()
		}
	}

	if *intakeAddr != "" {
		in := &intake{mgr: mgr, book: book, tracker: tracker, log: appLog}
		in.serve(*intakeAddr)
		appLog.Info("order intake listening", zap.String("addr", *intakeAddr))
	}

	if cfg.Metrics.Addr != "" {
		metrics.StartMetricsServerWith(cfg.Metrics.Addr, m.Handler())
		appLog.Info("metrics server listening", zap.String("addr", cfg.Metrics.Addr))
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	fmt.Printf("收到信号 %v，正在关闭...\n", sig)

	cancel()
	if err := rec.Stop(); err != nil {
		appLog.Warn("reconciler stop", zap.Error(err))
	}
	appLog.Info("broker bridge stopped")
}

// fanOutEvents 把订单事件同时送到结构化日志和持仓同步。
func fanOutEvents(appLog *logger.Logger, sinks ...order.EventSink) order.EventSink {
	return func(ev order.StatusEvent) {
		if ev.FillQuantity != 0 {
			logEvent(appLog, "fill_event", map[string]interface{}{
				"symbol":    ev.Symbol,
				"orderId":   ev.OrderID,
				"fillQty":   ev.FillQuantity,
				"fillPrice": ev.FillPrice,
			})
		}
		logEvent(appLog, "order_update", map[string]interface{}{
			"symbol":   ev.Symbol,
			"status":   string(ev.Status),
			"orderId":  ev.OrderID,
			"brokerId": ev.BrokerID,
		})
		for _, s := range sinks {
			s(ev)
		}
	}
}

// logEvent 先按 logschema 校验字段再落日志；schema 漂移只告警，不丢日志。
func logEvent(appLog *logger.Logger, event string, fields map[string]interface{}) {
	if err := logschema.Validate(event, fields); err != nil {
		appLog.Warn("log schema violation", zap.String("event", event), zap.Error(err))
	}
	switch event {
	case "fill_event":
		appLog.LogFill(event, fields)
	case "order_update":
		appLog.LogOrder(event, fmt.Sprint(fields["orderId"]), fields)
	default:
		appLog.Info(event, zap.Any("fields", fields))
	}
}
