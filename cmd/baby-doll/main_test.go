package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sweeney/baby-doll/internal/engine"
	"github.com/sweeney/baby-doll/internal/gpio"
	"github.com/sweeney/baby-doll/internal/logic"
	"github.com/sweeney/baby-doll/internal/mqtt"
	"github.com/sweeney/baby-doll/internal/status"
	"github.com/sweeney/baby-doll/internal/store"
)

type loopFixture struct {
	buttons   *gpio.FakeButtons
	publisher *mqtt.FakePublisher
	tracker   *status.Tracker
	sig       chan os.Signal
	heartbeat chan time.Time
	errCh     chan error
}

func startLoop(t *testing.T, holds logic.Holds, readErr error) *loopFixture {
	t.Helper()
	f := &loopFixture{
		buttons:   gpio.NewFakeButtons(gpio.DefaultPins()),
		publisher: mqtt.NewFakePublisher(),
		tracker:   status.NewTracker(time.Now(), "s-1", status.Config{}),
		sig:       make(chan os.Signal, 1),
		heartbeat: make(chan time.Time, 1),
		errCh:     make(chan error, 1),
	}
	f.buttons.ReadError = readErr

	eng := engine.New(engine.Options{
		Schedule: logic.DefaultSchedule(),
		Holds:    holds,
		Random:   logic.FixedRandom{Ratio: 0.5},
		Pins:     f.buttons,
	}, f.tracker, engine.SinkFunc(f.publisher.Publish))
	f.tracker.SetSources(eng.Baby().Snapshot, eng.Holds().Snapshot)

	go func() {
		f.errCh <- runLoop(loop{
			engine:    eng,
			edges:     f.buttons.Edges(),
			publisher: f.publisher,
			tracker:   f.tracker,
			log:       zap.NewNop().Sugar(),
			now:       time.Now,
			heartbeat: f.heartbeat,
			sig:       f.sig,
		})
	}()
	return f
}

func (f *loopFixture) wait(t *testing.T) error {
	t.Helper()
	select {
	case err := <-f.errCh:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("runLoop did not return")
		return nil
	}
}

func waitKinds(t *testing.T, p *mqtt.FakePublisher, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if len(p.EventKinds()) >= n {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d events, have %v", n, p.EventKinds())
}

func TestRunLoopLifecycle(t *testing.T) {
	f := startLoop(t, logic.DefaultHolds(), nil)
	waitKinds(t, f.publisher, 3)

	f.sig <- syscall.SIGTERM
	if err := f.wait(t); err != nil {
		t.Fatalf("runLoop: %v", err)
	}

	want := []logic.EventKind{logic.EventSystemStart, logic.EventSystemInfo, logic.EventInitialState, logic.EventSystemStop}
	got := f.publisher.EventKinds()
	if len(got) != len(want) {
		t.Fatalf("events: got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("event %d: got %s, want %s", i, got[i], want[i])
		}
	}
	if msg := f.publisher.Events[3].Message; msg != "Application stopped by signal (SIGTERM)." {
		t.Errorf("stop message: %q", msg)
	}
	if f.publisher.Events[2].State != logic.StateSleeping {
		t.Errorf("initial state: got %s", f.publisher.Events[2].State)
	}

	sys := f.publisher.SystemEvents
	if len(sys) != 2 || sys[0].Event != "STARTUP" || sys[1].Event != "SHUTDOWN" {
		t.Fatalf("system events: %+v", sys)
	}
	if sys[1].Reason != "SIGTERM" || !sys[1].Retained {
		t.Errorf("shutdown: %+v", sys[1])
	}
	if !strings.Contains(string(f.publisher.SystemPayloads[1]), `"event":"SHUTDOWN"`) {
		t.Errorf("shutdown payload should carry the status snapshot: %s", f.publisher.SystemPayloads[1])
	}

	if last := f.tracker.Snapshot().LastEvent; last == nil || last.Kind != logic.EventSystemStop {
		t.Errorf("tracker last event: %+v", last)
	}
}

func TestRunLoopHeartbeat(t *testing.T) {
	f := startLoop(t, logic.DefaultHolds(), nil)
	f.heartbeat <- time.Now()

	deadline := time.Now().Add(2 * time.Second)
	for {
		if hasSystem(f.publisher, "HEARTBEAT") || time.Now().After(deadline) {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	f.sig <- syscall.SIGINT
	if err := f.wait(t); err != nil {
		t.Fatalf("runLoop: %v", err)
	}

	var hb *mqtt.SystemEvent
	for i := range f.publisher.SystemEvents {
		if f.publisher.SystemEvents[i].Event == "HEARTBEAT" {
			hb = &f.publisher.SystemEvents[i]
		}
	}
	if hb == nil {
		t.Fatal("expected heartbeat system event")
	}
	if hb.Retained {
		t.Error("heartbeat should not be retained")
	}
}

func hasSystem(p *mqtt.FakePublisher, event string) bool {
	for _, e := range p.SystemEventNames() {
		if e == event {
			return true
		}
	}
	return false
}

func TestRunLoopEngineFailure(t *testing.T) {
	holds := logic.Holds{logic.ChannelHunger: 10 * time.Millisecond, logic.ChannelDiaper: 10 * time.Millisecond}
	f := startLoop(t, holds, errors.New("gpio gone"))
	waitKinds(t, f.publisher, 3)

	f.buttons.Press(logic.ChannelHunger, time.Now())

	err := f.wait(t)
	if err == nil || !strings.Contains(err.Error(), "gpio gone") {
		t.Fatalf("expected pin error, got %v", err)
	}
	kinds := f.publisher.EventKinds()
	if kinds[len(kinds)-1] != logic.EventSystemStop {
		t.Errorf("expected SYSTEM_STOP last, got %v", kinds)
	}
	last := f.publisher.SystemEvents[len(f.publisher.SystemEvents)-1]
	if last.Event != "SHUTDOWN" || last.Reason != "ERROR" {
		t.Errorf("unexpected final system event: %+v", last)
	}
}

func TestRunLoopWithoutPublisher(t *testing.T) {
	buttons := gpio.NewFakeButtons(gpio.DefaultPins())
	var recorded []logic.Event
	eng := engine.New(engine.Options{
		Schedule: logic.DefaultSchedule(),
		Random:   logic.FixedRandom{},
		Pins:     buttons,
	}, engine.SinkFunc(func(e logic.Event) error {
		recorded = append(recorded, e)
		return nil
	}))

	sig := make(chan os.Signal, 1)
	sig <- syscall.SIGINT
	err := runLoop(loop{
		engine: eng,
		edges:  buttons.Edges(),
		log:    zap.NewNop().Sugar(),
		now:    time.Now,
		sig:    sig,
	})
	if err != nil {
		t.Fatalf("runLoop: %v", err)
	}
	if len(recorded) != 4 || recorded[3].Message != "Application stopped by signal (SIGINT)." {
		t.Errorf("unexpected events: %+v", recorded)
	}
}

func TestSignalName(t *testing.T) {
	tests := []struct {
		sig  os.Signal
		want string
	}{
		{syscall.SIGINT, "SIGINT"},
		{syscall.SIGTERM, "SIGTERM"},
		{syscall.SIGHUP, "UNKNOWN"},
	}
	for _, tt := range tests {
		if got := signalName(tt.sig); got != tt.want {
			t.Errorf("signalName(%v): got %q, want %q", tt.sig, got, tt.want)
		}
	}
}

func TestPrintState(t *testing.T) {
	buttons := gpio.NewFakeButtons(gpio.DefaultPins())
	buttons.SetLevel(logic.ChannelDiaper, true)

	var buf bytes.Buffer
	if err := printState(&buf, buttons, gpio.DefaultPins()); err != nil {
		t.Fatalf("printState: %v", err)
	}
	want := "HUNGER (GPIO 17): released\nDIAPER (GPIO 27): pressed\n"
	if buf.String() != want {
		t.Errorf("got %q, want %q", buf.String(), want)
	}

	buttons.ReadError = errors.New("no chip")
	if err := printState(&buf, buttons, gpio.DefaultPins()); err == nil {
		t.Error("expected read error")
	}
}

func TestPrintHistory(t *testing.T) {
	ctx := context.Background()
	st, err := store.Open(ctx, filepath.Join(t.TempDir(), "h.db"), "s-1")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer st.Close()

	at := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	st.Record(logic.Event{Timestamp: at, Kind: logic.EventNeedMet, State: logic.StateFed, Need: logic.NeedHunger,
		TimeToTend: 2 * time.Minute, Message: "BABY FED! Time to tend: 120 seconds."})

	var buf bytes.Buffer
	if err := printHistory(ctx, &buf, st, "", 5); err != nil {
		t.Fatalf("printHistory: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"Hunger", "1 tended", "avg 2m0s", "BABY FED!"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}

	buf.Reset()
	if err := printHistory(ctx, &buf, st, "other-session", 0); err != nil {
		t.Fatalf("printHistory: %v", err)
	}
	if !strings.Contains(buf.String(), "no needs met yet") || strings.Contains(buf.String(), "Recent events") {
		t.Errorf("unexpected output for empty session:\n%s", buf.String())
	}
}

func newConfigCmd(t *testing.T, args ...string) *cobra.Command {
	t.Helper()
	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().String("config", filepath.Join(t.TempDir(), "absent.yaml"), "")
	cmd.Flags().String("broker", "", "")
	cmd.Flags().String("http", "", "")
	cmd.Flags().String("csv", "", "")
	cmd.Flags().String("db", "", "")
	cmd.Flags().Int64("seed", 0, "")
	cmd.Flags().Duration("heartbeat", 0, "")
	if err := cmd.ParseFlags(args); err != nil {
		t.Fatalf("parse flags: %v", err)
	}
	return cmd
}

func TestLoadConfigFlagOverrides(t *testing.T) {
	cmd := newConfigCmd(t, "--broker", "tcp://elsewhere:1883", "--csv", "off", "--seed", "7", "--heartbeat", "0")
	cfg, err := loadConfig(cmd)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.Broker != "tcp://elsewhere:1883" {
		t.Errorf("Broker: got %q", cfg.Broker)
	}
	if cfg.CSVPath != "" {
		t.Errorf("CSVPath: expected disabled, got %q", cfg.CSVPath)
	}
	if cfg.Seed != 7 || cfg.Heartbeat != 0 {
		t.Errorf("Seed/Heartbeat: %d %v", cfg.Seed, cfg.Heartbeat)
	}
	if cfg.HTTPAddr != ":8080" || cfg.DBPath != "baby_doll.db" {
		t.Errorf("unset flags should keep config values: %q %q", cfg.HTTPAddr, cfg.DBPath)
	}
}

func TestLoadConfigInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	os.WriteFile(path, []byte("gpio:\n  diaper_pin: 17\n"), 0o644)

	cmd := newConfigCmd(t, "--config", path)
	if _, err := loadConfig(cmd); err == nil || !strings.Contains(err.Error(), "invalid config") {
		t.Errorf("expected invalid config error, got %v", err)
	}
}
