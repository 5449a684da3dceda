// Package symbols 处理本地标的与券商标的之间的映射。
package symbols

import (
	"strings"
	"sync"
)

// Mapper 双向标的映射。未登记的标的按大写透传，
// 登记过的映射覆盖默认行为（本地别名 → 券商符号）。
type Mapper struct {
	mu       sync.RWMutex
	toLocal  map[string]string
	toRemote map[string]string
}

func NewMapper() *Mapper {
	return &Mapper{
		toLocal:  make(map[string]string),
		toRemote: make(map[string]string),
	}
}

// Register 登记一对映射。
func (m *Mapper) Register(local, broker string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.toRemote[local] = broker
	m.toLocal[broker] = local
}

// ToBroker 本地标的转券商标的。
func (m *Mapper) ToBroker(local string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if broker, ok := m.toRemote[local]; ok {
		return broker
	}
	return strings.ToUpper(local)
}

// ToLocal 券商标的转本地标的。
func (m *Mapper) ToLocal(broker string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if local, ok := m.toLocal[broker]; ok {
		return local
	}
	return broker
}
