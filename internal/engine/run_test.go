package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sweeney/baby-doll/internal/gpio"
	"github.com/sweeney/baby-doll/internal/logic"
)

// newRunEngine wires real timers with short holds and a baby that wakes on
// the first tick.
func newRunEngine(heads bool) (*Engine, *gpio.FakeButtons, *recordSink) {
	buttons := gpio.NewFakeButtons(gpio.DefaultPins())
	sink := &recordSink{}
	e := New(Options{
		Schedule: logic.Schedule{
			Hunger: logic.Range{Min: 10 * time.Hour, Max: 10 * time.Hour},
			Diaper: logic.Range{Min: 10 * time.Hour, Max: 10 * time.Hour},
		},
		Holds: logic.Holds{
			logic.ChannelHunger: 40 * time.Millisecond,
			logic.ChannelDiaper: 20 * time.Millisecond,
		},
		Random: logic.FixedRandom{Heads: heads},
		Pins:   buttons,
	}, sink)
	return e, buttons, sink
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func startRun(t *testing.T, e *Engine, buttons *gpio.FakeButtons, tick chan time.Time) (context.CancelFunc, <-chan error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- e.Run(ctx, buttons.Edges(), tick)
	}()
	return cancel, errCh
}

func TestRunHoldConfirmedByTimer(t *testing.T) {
	e, buttons, sink := newRunEngine(true)
	tick := make(chan time.Time)
	cancel, errCh := startRun(t, e, buttons, tick)
	defer cancel()

	tick <- time.Now()
	waitFor(t, "baby to get hungry", func() bool { return e.Baby().State() == logic.StateHungry })

	// Hold past the threshold without releasing: the timer confirms.
	buttons.Press(logic.ChannelHunger, time.Now())
	waitFor(t, "feeding", func() bool { return sink.count(logic.EventNeedMet) == 1 })

	if e.Baby().State() != logic.StateSleeping {
		t.Errorf("expected SLEEPING, got %s", e.Baby().State())
	}
	if sink.count(logic.EventButtonReleased) != 0 {
		t.Error("confirmation must not wait for the release")
	}

	buttons.Release(logic.ChannelHunger, time.Now())
	waitFor(t, "release", func() bool { return sink.count(logic.EventButtonReleased) == 1 })
	if sink.count(logic.EventActionFailed) != 0 {
		t.Error("release after confirmation must not fail the hold")
	}

	cancel()
	if err := <-errCh; err != nil {
		t.Errorf("Run returned error: %v", err)
	}
}

func TestRunEarlyReleaseNeverConfirms(t *testing.T) {
	e, buttons, sink := newRunEngine(false)
	tick := make(chan time.Time)
	cancel, errCh := startRun(t, e, buttons, tick)
	defer cancel()

	tick <- time.Now()
	waitFor(t, "wet diaper", func() bool { return e.Baby().State() == logic.StateWetDiaper })

	now := time.Now()
	buttons.Press(logic.ChannelDiaper, now)
	buttons.Release(logic.ChannelDiaper, now.Add(time.Millisecond))
	waitFor(t, "failed hold", func() bool { return sink.count(logic.EventActionFailed) == 1 })

	// Give a cancelled timer every chance to misfire.
	time.Sleep(60 * time.Millisecond)
	if n := sink.count(logic.EventHoldConfirmed); n != 0 {
		t.Errorf("expected no confirmation, got %d", n)
	}
	if e.Baby().State() != logic.StateWetDiaper {
		t.Errorf("expected WET_DIAPER, got %s", e.Baby().State())
	}

	cancel()
	if err := <-errCh; err != nil {
		t.Errorf("Run returned error: %v", err)
	}
}

func TestRunReleaseRacesTimerExactlyOnce(t *testing.T) {
	for i := 0; i < 20; i++ {
		e, buttons, sink := newRunEngine(false)
		tick := make(chan time.Time)
		cancel, errCh := startRun(t, e, buttons, tick)

		start := time.Now()
		buttons.Press(logic.ChannelDiaper, start)
		time.Sleep(20 * time.Millisecond)
		buttons.Release(logic.ChannelDiaper, time.Now())

		waitFor(t, "release handled", func() bool { return sink.count(logic.EventButtonReleased) == 1 })
		time.Sleep(30 * time.Millisecond)

		confirmed := sink.count(logic.EventHoldConfirmed)
		failed := sink.count(logic.EventActionFailed)
		late := sink.count(logic.EventHoldTimerReleased)
		// Every press ends in exactly one of confirmation or failure.
		if confirmed+failed != 1 {
			t.Fatalf("run %d: confirmed=%d failed=%d: %v", i, confirmed, failed, sink.kinds())
		}
		if confirmed == 1 && late != 0 {
			t.Fatalf("run %d: confirmed and aborted: %v", i, sink.kinds())
		}

		cancel()
		if err := <-errCh; err != nil {
			t.Fatalf("run %d: Run returned error: %v", i, err)
		}
	}
}

func TestRunStopsOnPinError(t *testing.T) {
	e, buttons, _ := newRunEngine(true)
	tick := make(chan time.Time)
	_, errCh := startRun(t, e, buttons, tick)

	buttons.ReadError = errors.New("line gone")
	buttons.Send(gpio.Edge{Channel: logic.ChannelDiaper, Pressed: true, Time: time.Now()})

	select {
	case err := <-errCh:
		if err == nil {
			t.Fatal("expected error from Run")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop on pin error")
	}
}

func TestRunIgnoresUnrecognizedPin(t *testing.T) {
	e, buttons, sink := newRunEngine(true)
	tick := make(chan time.Time)
	cancel, errCh := startRun(t, e, buttons, tick)

	buttons.Send(gpio.Edge{Pin: 4, Pressed: true, Time: time.Now()})
	buttons.Release(logic.ChannelHunger, time.Now())
	waitFor(t, "bounce", func() bool { return sink.count(logic.EventButtonBounce) == 1 })

	if n := len(sink.kinds()); n != 1 {
		t.Errorf("expected only the bounce event, got %v", sink.kinds())
	}

	cancel()
	if err := <-errCh; err != nil {
		t.Errorf("Run returned error: %v", err)
	}
}
