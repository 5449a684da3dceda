package order

import "sync"

// InFlight 按 key 去重的后台任务表：同一个 id 的异步查询永远不会并发执行两次。
// "是否在查"由结构保证，而不是靠共享集合的使用约定。
type InFlight struct {
	mu      sync.Mutex
	pending map[int64]struct{}
}

func NewInFlight() *InFlight {
	return &InFlight{pending: make(map[int64]struct{})}
}

// Do 若 id 没有在途任务则启动 goroutine 执行 fn，返回 true；否则什么都不做。
func (f *InFlight) Do(id int64, fn func()) bool {
	f.mu.Lock()
	if _, running := f.pending[id]; running {
		f.mu.Unlock()
		return false
	}
	f.pending[id] = struct{}{}
	f.mu.Unlock()

	go func() {
		defer func() {
			f.mu.Lock()
			delete(f.pending, id)
			f.mu.Unlock()
		}()
		fn()
	}()
	return true
}

// Busy 判断 id 是否有在途任务。
func (f *InFlight) Busy(id int64) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.pending[id]
	return ok
}
