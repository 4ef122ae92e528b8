package logic

import (
	"sync"
	"time"
)

// Timer is a cancellable single-shot deferred callback.
type Timer interface {
	// Stop cancels the timer. It is safe to call after the timer fired and
	// reports whether the call stopped a pending timer.
	Stop() bool
}

// TimerService schedules deferred callbacks. *time.Timer from time.AfterFunc
// satisfies Timer, so the production service is a thin wrapper.
type TimerService interface {
	AfterFunc(d time.Duration, f func()) Timer
}

// LevelReader reports whether a button line is currently asserted.
type LevelReader interface {
	Asserted(ch Channel) (bool, error)
}

// FakeTimers is a TimerService whose timers only fire when told to.
type FakeTimers struct {
	mu     sync.Mutex
	timers []*FakeTimer
}

// FakeTimer is a timer created by FakeTimers.
type FakeTimer struct {
	After time.Duration

	owner   *FakeTimers
	f       func()
	stopped bool
	fired   bool
}

// NewFakeTimers creates an empty FakeTimers.
func NewFakeTimers() *FakeTimers {
	return &FakeTimers{}
}

// AfterFunc records the callback without scheduling it.
func (ft *FakeTimers) AfterFunc(d time.Duration, f func()) Timer {
	ft.mu.Lock()
	defer ft.mu.Unlock()
	t := &FakeTimer{After: d, owner: ft, f: f}
	ft.timers = append(ft.timers, t)
	return t
}

// Stop cancels the timer if it has neither fired nor been stopped.
func (t *FakeTimer) Stop() bool {
	t.owner.mu.Lock()
	defer t.owner.mu.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

// Created returns the number of timers created so far.
func (ft *FakeTimers) Created() int {
	ft.mu.Lock()
	defer ft.mu.Unlock()
	return len(ft.timers)
}

// Active returns the number of timers that are neither stopped nor fired.
func (ft *FakeTimers) Active() int {
	ft.mu.Lock()
	defer ft.mu.Unlock()
	n := 0
	for _, t := range ft.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

// Fire runs the callback of timer i (creation order) as if it expired.
// Stopped or already fired timers are ignored. Returns whether it ran.
func (ft *FakeTimers) Fire(i int) bool {
	ft.mu.Lock()
	if i < 0 || i >= len(ft.timers) {
		ft.mu.Unlock()
		return false
	}
	t := ft.timers[i]
	if t.stopped || t.fired {
		ft.mu.Unlock()
		return false
	}
	t.fired = true
	ft.mu.Unlock()

	t.f()
	return true
}

// FireAll fires every active timer and returns how many ran.
func (ft *FakeTimers) FireAll() int {
	ft.mu.Lock()
	n := len(ft.timers)
	ft.mu.Unlock()

	fired := 0
	for i := 0; i < n; i++ {
		if ft.Fire(i) {
			fired++
		}
	}
	return fired
}
