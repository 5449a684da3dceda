package order

import (
	"sync"
	"time"
)

type recentEntry struct {
	id int64
	ts time.Time
}

// RecentIDSet 记录近期出现过的券商订单 id（滑动窗口 + 上限），
// 用于区分"已处理过的成交"与"完全未知的订单"。
type RecentIDSet struct {
	mu         sync.RWMutex
	entries    []recentEntry
	index      map[int64]time.Time
	maxHistory int
	windowSize time.Duration
}

func NewRecentIDSet(maxHistory int, windowSize time.Duration) *RecentIDSet {
	if maxHistory <= 0 {
		maxHistory = 1000
	}
	if windowSize <= 0 {
		windowSize = 24 * time.Hour
	}
	return &RecentIDSet{
		entries:    make([]recentEntry, 0, maxHistory),
		index:      make(map[int64]time.Time),
		maxHistory: maxHistory,
		windowSize: windowSize,
	}
}

// Add 记录一个 id。
func (s *RecentIDSet) Add(id int64) {
	s.AddAt(id, time.Now())
}

// AddAt 以指定时间记录一个 id（测试/回放用）。
func (s *RecentIDSet) AddAt(id int64, ts time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.index[id]; ok {
		s.index[id] = ts
		return
	}
	s.entries = append(s.entries, recentEntry{id: id, ts: ts})
	s.index[id] = ts
	s.trimUnsafe(ts)
}

// trimUnsafe 清理超出窗口和上限的记录（非线程安全）。
func (s *RecentIDSet) trimUnsafe(now time.Time) {
	cutoff := now.Add(-s.windowSize)
	validStart := 0
	for i, e := range s.entries {
		if e.ts.After(cutoff) {
			validStart = i
			break
		}
		validStart = i + 1
	}
	if validStart > 0 {
		for _, e := range s.entries[:validStart] {
			delete(s.index, e.id)
		}
		s.entries = s.entries[validStart:]
	}
	if len(s.entries) > s.maxHistory {
		drop := len(s.entries) - s.maxHistory
		for _, e := range s.entries[:drop] {
			delete(s.index, e.id)
		}
		s.entries = s.entries[drop:]
	}
}

// Contains 判断 id 是否在近期集合中。
func (s *RecentIDSet) Contains(id int64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.index[id]
	return ok
}

// ContainsWithin 判断 id 是否在最近 d 时间内记录过。
func (s *RecentIDSet) ContainsWithin(id int64, d time.Duration) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ts, ok := s.index[id]
	if !ok {
		return false
	}
	return time.Since(ts) <= d
}

// Len 返回集合大小。
func (s *RecentIDSet) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.index)
}
