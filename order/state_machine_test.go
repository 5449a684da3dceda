package order

import (
	"sync"
	"testing"
	"time"
)

func TestStateMachineLegalTransitions(t *testing.T) {
	sm := NewStateMachine()
	legal := []StateTransition{
		{StatusNew, StatusSubmitted},
		{StatusNew, StatusInvalid},
		{StatusSubmitted, StatusPartial},
		{StatusSubmitted, StatusFilled},
		{StatusSubmitted, StatusCanceled},
		{StatusPartial, StatusPartial},
		{StatusPartial, StatusFilled},
		{StatusPartial, StatusCanceled},
	}
	for _, tr := range legal {
		if err := sm.ValidateTransition(tr.From, tr.To); err != nil {
			t.Errorf("%s -> %s should be legal: %v", tr.From, tr.To, err)
		}
	}
}

func TestStateMachineIllegalTransitions(t *testing.T) {
	sm := NewStateMachine()
	illegal := []StateTransition{
		{StatusFilled, StatusSubmitted},
		{StatusFilled, StatusCanceled},
		{StatusCanceled, StatusPartial},
		{StatusInvalid, StatusSubmitted},
		{StatusPartial, StatusNew},
		{StatusNew, StatusFilled},
	}
	for _, tr := range illegal {
		if err := sm.ValidateTransition(tr.From, tr.To); err == nil {
			t.Errorf("%s -> %s should be rejected", tr.From, tr.To)
		}
	}
}

func TestStateMachineSameStateIdempotent(t *testing.T) {
	sm := NewStateMachine()
	for _, s := range []Status{StatusNew, StatusSubmitted, StatusPartial, StatusFilled, StatusCanceled, StatusInvalid} {
		if err := sm.ValidateTransition(s, s); err != nil {
			t.Errorf("%s -> %s must be idempotent: %v", s, s, err)
		}
	}
}

func TestStateMachinePredicates(t *testing.T) {
	sm := NewStateMachine()
	if !sm.IsFinalState(StatusFilled) || !sm.IsFinalState(StatusCanceled) || !sm.IsFinalState(StatusInvalid) {
		t.Fatalf("final state detection broken")
	}
	if sm.IsFinalState(StatusPartial) {
		t.Fatalf("PARTIALLY_FILLED is not final")
	}
	if !sm.IsActiveState(StatusSubmitted) || !sm.IsActiveState(StatusPartial) {
		t.Fatalf("active state detection broken")
	}
	if !sm.CanCancel(StatusNew) || sm.CanCancel(StatusFilled) {
		t.Fatalf("cancelability broken")
	}
}

func TestInFlightDedup(t *testing.T) {
	f := NewInFlight()
	var mu sync.Mutex
	runs := 0
	release := make(chan struct{})
	started := make(chan struct{})

	if !f.Do(1, func() {
		mu.Lock()
		runs++
		mu.Unlock()
		close(started)
		<-release
	}) {
		t.Fatalf("first Do must start")
	}
	<-started
	if f.Do(1, func() {
		mu.Lock()
		runs++
		mu.Unlock()
	}) {
		t.Fatalf("second Do for the same id must be skipped")
	}
	if !f.Busy(1) {
		t.Fatalf("id must be busy while running")
	}
	close(release)

	deadline := time.Now().Add(time.Second)
	for f.Busy(1) && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if f.Busy(1) {
		t.Fatalf("id must be released after completion")
	}
	// 释放后可以再次启动
	done := make(chan struct{})
	if !f.Do(1, func() { close(done) }) {
		t.Fatalf("Do must start again after release")
	}
	<-done
	mu.Lock()
	defer mu.Unlock()
	if runs != 1 {
		t.Fatalf("skipped fn must never run, got %d runs", runs)
	}
}
