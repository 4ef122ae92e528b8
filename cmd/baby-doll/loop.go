package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/sweeney/baby-doll/internal/engine"
	"github.com/sweeney/baby-doll/internal/gpio"
	"github.com/sweeney/baby-doll/internal/logic"
	"github.com/sweeney/baby-doll/internal/mqtt"
	"github.com/sweeney/baby-doll/internal/status"
	"github.com/sweeney/baby-doll/internal/web"
)

// loop holds everything runLoop needs. publisher and heartbeat may be nil.
type loop struct {
	engine    *engine.Engine
	edges     <-chan gpio.Edge
	publisher mqtt.Publisher
	tracker   *status.Tracker
	log       *zap.SugaredLogger
	now       func() time.Time
	tick      <-chan time.Time
	heartbeat <-chan time.Time
	sig       <-chan os.Signal
}

// runLoop announces startup, runs the engine until a signal arrives or the
// engine fails, then reports the stop.
func runLoop(l loop) error {
	l.publishSystem("STARTUP", "")
	l.engine.Emit(
		logic.Event{Timestamp: l.now(), Kind: logic.EventSystemStart, State: logic.StateSleeping, Message: "GPIO setup complete."},
		logic.Event{Timestamp: l.now(), Kind: logic.EventSystemInfo, Message: "Baby Doll Simulator application started."},
		logic.Event{Timestamp: l.now(), Kind: logic.EventInitialState, State: logic.StateSleeping, Message: "Baby is initially sleeping."},
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errCh := make(chan error, 1)
	go func() {
		errCh <- l.engine.Run(ctx, l.edges, l.tick)
	}()

	for {
		select {
		case s := <-l.sig:
			name := signalName(s)
			l.log.Infow("shutting down", "signal", name)
			cancel()
			err := <-errCh
			l.stop(fmt.Sprintf("Application stopped by signal (%s).", name), name)
			return err

		case err := <-errCh:
			l.stop(fmt.Sprintf("Application stopped on error: %v", err), "ERROR")
			return err

		case <-l.heartbeat:
			l.publishSystem("HEARTBEAT", "")
		}
	}
}

// stop runs after the engine has returned, so Emit does not race the
// dispatcher.
func (l loop) stop(msg, reason string) {
	l.engine.Emit(logic.Event{Timestamp: l.now(), Kind: logic.EventSystemStop, Message: msg})
	l.publishSystem("SHUTDOWN", reason)
}

func (l loop) publishSystem(event, reason string) {
	if l.publisher == nil {
		return
	}
	e := mqtt.SystemEvent{
		Timestamp: l.now(),
		Event:     event,
		Reason:    reason,
		Retained:  event != "HEARTBEAT",
	}
	if l.tracker != nil {
		e.RawPayload = status.FormatStatusEvent(l.tracker.Snapshot(), event, reason)
	}
	if err := l.publisher.PublishSystem(e); err != nil {
		l.log.Warnw("system event publish failed", "event", event, "error", err)
		return
	}
	l.log.Debugw("published system event", "event", event)
}

func signalName(s os.Signal) string {
	switch s {
	case syscall.SIGINT:
		return "SIGINT"
	case syscall.SIGTERM:
		return "SIGTERM"
	}
	return "UNKNOWN"
}

// levelReader is the part of gpio.Buttons printState needs.
type levelReader interface {
	Levels() (map[logic.Channel]bool, error)
}

func printState(w io.Writer, buttons levelReader, pins map[logic.Channel]int) error {
	levels, err := buttons.Levels()
	if err != nil {
		return fmt.Errorf("read gpio: %w", err)
	}
	for _, ch := range logic.Channels {
		state := "released"
		if levels[ch] {
			state = "pressed"
		}
		fmt.Fprintf(w, "%s (GPIO %d): %s\n", ch, pins[ch], state)
	}
	return nil
}

func printHistory(ctx context.Context, w io.Writer, h web.History, session string, limit int) error {
	stats, err := h.TendStats(ctx, session)
	if err != nil {
		return err
	}
	fmt.Fprintln(w, "Time to tend:")
	if len(stats) == 0 {
		fmt.Fprintln(w, "  no needs met yet")
	}
	for _, s := range stats {
		fmt.Fprintf(w, "  %-6s %4d tended, avg %s, max %s\n", s.Need, s.Count, s.Avg, s.Max)
	}

	if limit <= 0 {
		return nil
	}
	entries, err := h.Recent(ctx, session, limit)
	if err != nil {
		return err
	}
	fmt.Fprintln(w, "Recent events:")
	for _, en := range entries {
		e := en.Event
		fmt.Fprintf(w, "  %s  %-19s %-10s %s\n", e.Timestamp.Local().Format("2006-01-02 15:04:05"), e.Kind, e.State, e.Message)
	}
	return nil
}
