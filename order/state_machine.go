package order

import (
	"fmt"
	"sync"
)

// StateTransition 状态转换
type StateTransition struct {
	From Status
	To   Status
}

// StateMachine 本地订单状态机；非法转换返回错误而不是静默覆盖。
type StateMachine struct {
	transitions map[StateTransition]bool
	mu          sync.RWMutex
}

// NewStateMachine 创建新的状态机
func NewStateMachine() *StateMachine {
	sm := &StateMachine{
		transitions: make(map[StateTransition]bool),
	}
	sm.initializeTransitions()
	return sm
}

// initializeTransitions 初始化所有合法的状态转换
func (sm *StateMachine) initializeTransitions() {
	legalTransitions := []StateTransition{
		// 从NEW可以转到
		{StatusNew, StatusSubmitted},
		{StatusNew, StatusInvalid},
		{StatusNew, StatusCanceled},

		// 从SUBMITTED可以转到
		{StatusSubmitted, StatusPartial},
		{StatusSubmitted, StatusFilled},
		{StatusSubmitted, StatusCanceled},
		{StatusSubmitted, StatusInvalid},

		// 从PARTIALLY_FILLED可以转到
		{StatusPartial, StatusPartial}, // 多次部分成交
		{StatusPartial, StatusFilled},
		{StatusPartial, StatusCanceled},

		// 终态不能转换（FILLED, CANCELED, INVALID）
	}

	for _, t := range legalTransitions {
		sm.transitions[t] = true
	}
}

// ValidateTransition 验证状态转换是否合法
func (sm *StateMachine) ValidateTransition(from, to Status) error {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	// 相同状态允许（幂等性）
	if from == to {
		return nil
	}

	transition := StateTransition{From: from, To: to}
	if !sm.transitions[transition] {
		return fmt.Errorf("illegal state transition: %s -> %s", from, to)
	}

	return nil
}

// AllowedTransitions 返回当前状态所有合法的目标状态
func (sm *StateMachine) AllowedTransitions(current Status) []Status {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	allowed := make([]Status, 0)
	for transition := range sm.transitions {
		if transition.From == current {
			allowed = append(allowed, transition.To)
		}
	}
	return allowed
}

// IsFinalState 判断是否是终态
func (sm *StateMachine) IsFinalState(status Status) bool {
	switch status {
	case StatusFilled, StatusCanceled, StatusInvalid:
		return true
	default:
		return false
	}
}

// IsActiveState 判断是否是活跃状态（可能产生成交）
func (sm *StateMachine) IsActiveState(status Status) bool {
	switch status {
	case StatusSubmitted, StatusPartial:
		return true
	default:
		return false
	}
}

// CanCancel 判断当前状态下是否可以撤单
func (sm *StateMachine) CanCancel(status Status) bool {
	switch status {
	case StatusNew, StatusSubmitted, StatusPartial:
		return true
	default:
		return false
	}
}
