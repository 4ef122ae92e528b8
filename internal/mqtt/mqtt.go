// Package mqtt provides MQTT publishing with abstraction for testing.
package mqtt

import (
	"encoding/json"
	"time"

	"github.com/sweeney/baby-doll/internal/logic"
)

// Topic is the MQTT topic for baby activity events.
const Topic = "toy/baby/events"

// TopicSystem is the MQTT topic for system lifecycle events.
const TopicSystem = "toy/baby/system"

// Publisher publishes events to MQTT.
type Publisher interface {
	// Publish sends an activity event to the broker.
	// Returns error if publishing fails (should not crash the process).
	Publish(event logic.Event) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown, heartbeat).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "HEARTBEAT", "OFFLINE"
	Reason     string // e.g., "SIGTERM", "SIGINT" (shutdown only)
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// Payload represents the MQTT message payload structure.
type Payload struct {
	Baby BabyPayload `json:"baby"`
}

// BabyPayload contains the activity event details.
type BabyPayload struct {
	Timestamp   string `json:"timestamp"`
	Session     string `json:"session,omitempty"`
	Event       string `json:"event"`
	State       string `json:"state"`
	Need        string `json:"need,omitempty"`
	TimeToTendS *int64 `json:"time_to_tend_s,omitempty"`
	Channel     string `json:"channel,omitempty"`
	HoldS       *int64 `json:"hold_s,omitempty"`
	Message     string `json:"message"`
}

// FormatPayload creates the JSON payload for an activity event.
func FormatPayload(session string, event logic.Event) ([]byte, error) {
	p := BabyPayload{
		Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
		Session:   session,
		Event:     string(event.Kind),
		State:     string(event.State),
		Need:      string(event.Need),
		Channel:   string(event.Channel),
		Message:   event.Message,
	}
	if event.HasTimeToTend() {
		s := int64(event.TimeToTend / time.Second)
		p.TimeToTendS = &s
	}
	if event.HasHoldDuration() {
		s := int64(event.HoldDuration / time.Second)
		p.HoldS = &s
	}
	return json.Marshal(Payload{Baby: p})
}

// SystemPayload represents the MQTT message payload for system events.
// Used for simple events (LWT) that don't carry a full status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp,omitempty"`
	Session   string `json:"session,omitempty"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly (used for full status snapshots).
func FormatSystemPayload(session string, event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}

	inner := SystemPayloadInner{
		Session: session,
		Event:   event.Event,
		Reason:  event.Reason,
	}
	if !event.Timestamp.IsZero() {
		inner.Timestamp = event.Timestamp.UTC().Format(time.RFC3339)
	}
	return json.Marshal(SystemPayload{System: inner})
}
