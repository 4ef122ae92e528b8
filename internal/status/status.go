// Package status provides a thread-safe status tracker for the baby-doll
// simulator. It is read by HTTP handlers and the MQTT heartbeat.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/baby-doll/internal/logic"
)

// Config contains simulator configuration for display.
type Config struct {
	TickMs      int64
	DebounceMs  int64
	HeartbeatMs int64
	Broker      string
	HTTPPort    string
	Pins        map[logic.Channel]int
}

// Snapshot is a point-in-time view of simulator state.
// It is a value type, safe to use after the lock is released.
type Snapshot struct {
	Session       string
	Baby          logic.BabySnapshot
	Buttons       []logic.ButtonSnapshot
	Counts        logic.EventCounts
	LastEvent     *logic.Event
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Config        Config
}

// Uptime returns the duration since the simulator started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// NeedDuration returns how long the current need has gone unmet, or zero
// while the baby sleeps.
func (s Snapshot) NeedDuration() time.Duration {
	if s.Baby.NeedStart == nil {
		return 0
	}
	return s.Now.Sub(*s.Baby.NeedStart)
}

// Tracker holds mutable simulator state behind an RWMutex. Baby and button
// state are pulled from their owners on every Snapshot.
type Tracker struct {
	mu      sync.RWMutex
	snap    Snapshot
	baby    func() logic.BabySnapshot
	buttons func() []logic.ButtonSnapshot
	mqtt    func() bool
}

// NewTracker creates a Tracker with the given start time, session and config.
func NewTracker(startTime time.Time, session string, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			Session:   session,
			StartTime: startTime,
			Config:    cfg,
			Baby:      logic.BabySnapshot{State: logic.StateSleeping},
		},
	}
}

// SetSources registers the functions that report baby and button state.
// Either may be nil.
func (t *Tracker) SetSources(baby func() logic.BabySnapshot, buttons func() []logic.ButtonSnapshot) {
	t.mu.Lock()
	t.baby = baby
	t.buttons = buttons
	t.mu.Unlock()
}

// Record counts the event and remembers it as the latest. It satisfies
// engine.Sink.
func (t *Tracker) Record(e logic.Event) error {
	t.mu.Lock()
	t.snap.Counts.Add(e)
	ev := e
	t.snap.LastEvent = &ev
	t.mu.Unlock()
	return nil
}

// SetConnection registers a live MQTT connection check. Without one the
// snapshot reports disconnected.
func (t *Tracker) SetConnection(connected func() bool) {
	t.mu.Lock()
	t.mqtt = connected
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the simulator state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	baby, buttons, connected := t.baby, t.buttons, t.mqtt
	t.mu.RUnlock()

	// Sources take their own locks; call them outside ours.
	if baby != nil {
		s.Baby = baby()
	}
	if buttons != nil {
		s.Buttons = buttons()
	}
	if connected != nil {
		s.MQTTConnected = connected()
	}
	s.Now = time.Now()
	return s
}
