// Package engine serializes hardware edges, hold-timer expiries and the
// driver tick into one dispatcher that drives the needs state machine and
// fans the resulting events out to sinks.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sweeney/baby-doll/internal/gpio"
	"github.com/sweeney/baby-doll/internal/logic"
)

// InputKind tags an Input.
type InputKind int

const (
	InputTick InputKind = iota
	InputPress
	InputRelease
	InputTimerFired
)

func (k InputKind) String() string {
	switch k {
	case InputTick:
		return "tick"
	case InputPress:
		return "press"
	case InputRelease:
		return "release"
	case InputTimerFired:
		return "timer"
	}
	return fmt.Sprintf("input(%d)", int(k))
}

// Input is one message for the dispatcher.
type Input struct {
	Kind    InputKind
	Channel logic.Channel
	Seq     uint64 // hold timer sequence, InputTimerFired only
	Time    time.Time
}

// Sink receives every emitted event in emission order.
type Sink interface {
	Record(event logic.Event) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(event logic.Event) error

// Record calls f.
func (f SinkFunc) Record(event logic.Event) error {
	return f(event)
}

// RealTimers schedules hold timers on the Go runtime timer heap.
type RealTimers struct{}

// AfterFunc wraps time.AfterFunc.
func (RealTimers) AfterFunc(d time.Duration, f func()) logic.Timer {
	return time.AfterFunc(d, f)
}

// Options configures an Engine. Pins is required: without it every hold
// timer expiry fails with logic.ErrNoLevelReader. Other zero values fall back
// to production defaults.
type Options struct {
	Schedule logic.Schedule
	Holds    logic.Holds
	Random   logic.Random
	Pins     logic.LevelReader
	Timers   logic.TimerService
	Now      func() time.Time
	Logger   *zap.SugaredLogger

	// PinNumbers, if set, names buttons by GPIO pin in event messages.
	PinNumbers map[logic.Channel]int
}

// Engine owns the baby and the hold tracker for the life of the process.
type Engine struct {
	baby  *logic.Baby
	holds *logic.HoldTracker
	sinks []Sink
	log   *zap.SugaredLogger
	now   func() time.Time

	// fired carries hold-timer expiries from timer goroutines to Run.
	fired    chan Input
	done     chan struct{}
	doneOnce sync.Once
}

// New creates an Engine with a sleeping baby whose clocks start now.
func New(opts Options, sinks ...Sink) *Engine {
	if opts.Timers == nil {
		opts.Timers = RealTimers{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop().Sugar()
	}
	if opts.Random == nil {
		opts.Random = logic.NewSeededRandom(opts.Now().UnixNano())
	}
	if opts.Holds == nil {
		opts.Holds = logic.DefaultHolds()
	}
	if opts.Schedule == (logic.Schedule{}) {
		opts.Schedule = logic.DefaultSchedule()
	}

	e := &Engine{
		sinks: sinks,
		log:   opts.Logger,
		now:   opts.Now,
		fired: make(chan Input, 16),
		done:  make(chan struct{}),
	}
	e.baby = logic.NewBaby(opts.Schedule, opts.Holds, opts.Random, opts.Now())
	e.holds = logic.NewHoldTracker(opts.Holds, opts.Timers, opts.Pins, e.timerFired)
	if opts.PinNumbers != nil {
		e.holds.SetPinNumbers(opts.PinNumbers)
	}
	return e
}

// AddSink appends a sink. Must be called before Run.
func (e *Engine) AddSink(s Sink) {
	e.sinks = append(e.sinks, s)
}

// Baby returns the needs state machine.
func (e *Engine) Baby() *logic.Baby {
	return e.baby
}

// Holds returns the button hold tracker.
func (e *Engine) Holds() *logic.HoldTracker {
	return e.holds
}

// timerFired is the hold-timer callback; it runs on the timer's goroutine.
func (e *Engine) timerFired(ch logic.Channel, seq uint64) {
	select {
	case e.fired <- Input{Kind: InputTimerFired, Channel: ch, Seq: seq, Time: e.now()}:
	case <-e.done:
	}
}

// Run is the dispatcher loop. It handles one input at a time until ctx is
// done or a hardware query fails.
func (e *Engine) Run(ctx context.Context, edges <-chan gpio.Edge, tick <-chan time.Time) error {
	defer e.doneOnce.Do(func() { close(e.done) })

	for {
		var in Input
		select {
		case <-ctx.Done():
			return nil

		case edge, ok := <-edges:
			if !ok {
				edges = nil
				continue
			}
			if edge.Channel == "" {
				e.log.Warnw("edge on unrecognized pin ignored", "pin", edge.Pin, "pressed", edge.Pressed)
				continue
			}
			in = Input{Kind: InputRelease, Channel: edge.Channel, Time: edge.Time}
			if edge.Pressed {
				in.Kind = InputPress
			}

		case in = <-e.fired:

		case <-tick:
			in = Input{Kind: InputTick, Time: e.now()}
		}

		if err := e.Handle(in); err != nil {
			return fmt.Errorf("handle %s: %w", in.Kind, err)
		}
	}
}

// Handle applies a single input and emits the resulting events. Only
// hardware failures are returned; unknown channels are logged and dropped.
func (e *Engine) Handle(in Input) error {
	switch in.Kind {
	case InputTick:
		e.Emit(e.baby.Tick(in.Time)...)
		return nil

	case InputPress:
		events, err := e.holds.Press(in.Channel, in.Time)
		return e.finish(in, events, err)

	case InputRelease:
		events, err := e.holds.Release(in.Channel, in.Time)
		return e.finish(in, events, err)

	case InputTimerFired:
		confirmed, events, err := e.holds.TimerFired(in.Channel, in.Seq, in.Time)
		if err := e.finish(in, events, err); err != nil {
			return err
		}
		if !confirmed {
			return nil
		}
		// The tracker lock is released here; resolution takes the baby lock.
		events, err = e.baby.Resolve(in.Channel, in.Time)
		return e.finish(in, events, err)
	}

	e.log.Warnw("unknown input ignored", "kind", in.Kind)
	return nil
}

func (e *Engine) finish(in Input, events []logic.Event, err error) error {
	if errors.Is(err, logic.ErrUnknownChannel) {
		e.log.Warnw("input for unrecognized channel ignored", "kind", in.Kind, "channel", in.Channel)
		return nil
	}
	e.Emit(events...)
	return err
}

// Emit stamps events that carry no baby state with the current state and
// delivers them to every sink in order. Sink errors are logged.
func (e *Engine) Emit(events ...logic.Event) {
	if len(events) == 0 {
		return
	}
	state := e.baby.State()
	for _, ev := range events {
		if ev.State == "" {
			ev.State = state
		}
		e.log.Infow(ev.Message,
			"event", ev.Kind,
			"state", ev.State,
			"need", ev.Need,
			"channel", ev.Channel,
		)
		for _, s := range e.sinks {
			if err := s.Record(ev); err != nil {
				e.log.Errorw("sink error", "event", ev.Kind, "error", err)
			}
		}
	}
}
