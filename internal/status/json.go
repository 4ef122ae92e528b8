package status

import (
	"encoding/json"
	"time"

	"github.com/sweeney/baby-doll/internal/logic"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string       `json:"event,omitempty"`
	Reason        string       `json:"reason,omitempty"`
	Session       string       `json:"session"`
	Baby          BabyJSON     `json:"baby"`
	Buttons       []ButtonJSON `json:"buttons"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	StartTime     string       `json:"start_time"`
	Timestamp     string       `json:"timestamp"`
	MQTT          MQTTStatus   `json:"mqtt"`
	Counts        CountsJSON   `json:"event_counts"`
	LastEvent     *EventJSON   `json:"last_event,omitempty"`
	Config        ConfigJSON   `json:"config"`
}

// BabyJSON reports the baby's state and need timers.
type BabyJSON struct {
	State            string `json:"state"`
	NeedStart        string `json:"need_start,omitempty"`
	NeedSeconds      int64  `json:"need_seconds"`
	LastFed          string `json:"last_fed"`
	LastDiaperChange string `json:"last_diaper_change"`
	LastSleepStart   string `json:"last_sleep_start"`
}

// ButtonJSON reports one button's hold tracking.
type ButtonJSON struct {
	Channel       string `json:"channel"`
	Pin           int    `json:"pin"`
	RequiredS     int64  `json:"required_s"`
	Pressed       bool   `json:"pressed"`
	HeldS         int64  `json:"held_s"`
	TimerPending  bool   `json:"timer_pending"`
	HoldConfirmed bool   `json:"hold_confirmed"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// CountsJSON is the JSON representation of event counts.
type CountsJSON struct {
	Fed              int `json:"fed"`
	DiaperChanged    int `json:"diaper_changed"`
	IncorrectActions int `json:"incorrect_actions"`
	FailedHolds      int `json:"failed_holds"`
	Bounces          int `json:"bounces"`
	Reminders        int `json:"reminders"`
}

// EventJSON is a compact view of the latest event.
type EventJSON struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Message   string `json:"message"`
}

// ConfigJSON is the JSON representation of simulator config.
type ConfigJSON struct {
	TickMs      int64  `json:"tick_ms"`
	DebounceMs  int64  `json:"debounce_ms"`
	HeartbeatMs int64  `json:"heartbeat_ms"`
	Broker      string `json:"broker"`
	HTTPPort    string `json:"http_port"`
}

func rfc3339(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func buildInner(snap Snapshot) StatusInner {
	state := string(snap.Baby.State)
	if state == "" {
		state = "UNKNOWN"
	}
	baby := BabyJSON{
		State:            state,
		NeedSeconds:      int64(snap.NeedDuration() / time.Second),
		LastFed:          rfc3339(snap.Baby.LastFed),
		LastDiaperChange: rfc3339(snap.Baby.LastDiaperChange),
		LastSleepStart:   rfc3339(snap.Baby.LastSleepStart),
	}
	if snap.Baby.NeedStart != nil {
		baby.NeedStart = rfc3339(*snap.Baby.NeedStart)
	}

	buttons := make([]ButtonJSON, 0, len(snap.Buttons))
	for _, b := range snap.Buttons {
		bj := ButtonJSON{
			Channel:       string(b.Channel),
			Pin:           snap.Config.Pins[b.Channel],
			RequiredS:     int64(b.Required / time.Second),
			Pressed:       b.Pressed,
			TimerPending:  b.TimerPending,
			HoldConfirmed: b.Confirmed,
		}
		if b.Pressed && !b.PressStart.IsZero() {
			bj.HeldS = int64(snap.Now.Sub(b.PressStart) / time.Second)
		}
		buttons = append(buttons, bj)
	}

	inner := StatusInner{
		Session:       snap.Session,
		Baby:          baby,
		Buttons:       buttons,
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Counts:        countsJSON(snap.Counts),
		Config: ConfigJSON{
			TickMs:      snap.Config.TickMs,
			DebounceMs:  snap.Config.DebounceMs,
			HeartbeatMs: snap.Config.HeartbeatMs,
			Broker:      snap.Config.Broker,
			HTTPPort:    snap.Config.HTTPPort,
		},
	}
	if snap.LastEvent != nil {
		inner.LastEvent = &EventJSON{
			Timestamp: rfc3339(snap.LastEvent.Timestamp),
			Event:     string(snap.LastEvent.Kind),
			Message:   snap.LastEvent.Message,
		}
	}
	return inner
}

func countsJSON(c logic.EventCounts) CountsJSON {
	return CountsJSON{
		Fed:              c.Fed,
		DiaperChanged:    c.DiaperChanged,
		IncorrectActions: c.IncorrectActions,
		FailedHolds:      c.FailedHolds,
		Bounces:          c.Bounces,
		Reminders:        c.Reminders,
	}
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(StatusJSON{Status: buildInner(snap)}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
