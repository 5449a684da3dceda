package config

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// WatchConfig 热更新配置
type WatchConfig struct {
	Enabled      bool          // 是否启用热更新
	CooldownTime time.Duration // 冷却时间，避免频繁更新
}

// DefaultWatchConfig 默认热更新配置
func DefaultWatchConfig() WatchConfig {
	return WatchConfig{
		Enabled:      true,
		CooldownTime: 5 * time.Second,
	}
}

// Watcher 基于 fsnotify 监听配置文件变化，重载成功后回调最新配置。
// 解析或验证失败时保留旧配置，只通过 onError 上报。
type Watcher struct {
	cfg        WatchConfig
	path       string
	watcher    *fsnotify.Watcher
	onUpdate   func(AppConfig)
	onError    func(error)
	lastReload time.Time
	mu         sync.Mutex
	stopChan   chan struct{}
	doneChan   chan struct{}
}

// NewWatcher 创建配置监听器。
func NewWatcher(path string, cfg WatchConfig, onUpdate func(AppConfig), onError func(error)) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if onError == nil {
		onError = func(error) {}
	}
	return &Watcher{
		cfg:      cfg,
		path:     path,
		watcher:  fw,
		onUpdate: onUpdate,
		onError:  onError,
		stopChan: make(chan struct{}),
		doneChan: make(chan struct{}),
	}, nil
}

// Start 启动监听
func (w *Watcher) Start(ctx context.Context) error {
	if !w.cfg.Enabled {
		return nil
	}
	if err := w.watcher.Add(w.path); err != nil {
		return fmt.Errorf("failed to watch config file: %w", err)
	}
	go w.watch(ctx)
	return nil
}

// Stop 停止监听
func (w *Watcher) Stop() error {
	if !w.cfg.Enabled {
		if w.watcher != nil {
			return w.watcher.Close()
		}
		return nil
	}

	select {
	case <-w.stopChan:
		// 已经停止
	default:
		close(w.stopChan)
	}

	select {
	case <-w.doneChan:
	case <-time.After(1 * time.Second):
		// 超时，可能 watch goroutine 没有启动
	}

	if w.watcher != nil {
		return w.watcher.Close()
	}
	return nil
}

func (w *Watcher) watch(ctx context.Context) {
	defer close(w.doneChan)

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopChan:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			// 只处理写入和创建事件
			if event.Op&fsnotify.Write == fsnotify.Write ||
				event.Op&fsnotify.Create == fsnotify.Create {
				w.handleChange()
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.onError(err)
		}
	}
}

func (w *Watcher) handleChange() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if time.Since(w.lastReload) < w.cfg.CooldownTime {
		return
	}

	cfg, err := LoadWithEnvOverrides(w.path)
	if err != nil {
		w.onError(fmt.Errorf("config reload rejected: %w", err))
		return
	}
	if w.onUpdate != nil {
		w.onUpdate(cfg)
	}
	w.lastReload = time.Now()
}

// LastReloadTime 获取最后重载时间
func (w *Watcher) LastReloadTime() time.Time {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastReload
}
