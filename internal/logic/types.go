// Package logic contains the pure needs state machine for the baby doll.
// This package has NO external dependencies (no GPIO, MQTT, OS, or time.Sleep).
// Time is always injectable via time.Time parameters, randomness via Random and
// timers via TimerService.
package logic

import (
	"errors"
	"time"
)

// ErrUnknownChannel is returned for a button channel that is not configured.
var ErrUnknownChannel = errors.New("unknown button channel")

// ErrNoLevelReader is returned when a hold timer expires on a tracker that
// has no way to read the button line.
var ErrNoLevelReader = errors.New("no button level reader")

// BabyState represents the baby's displayed state.
type BabyState string

const (
	StateSleeping  BabyState = "SLEEPING"
	StateHungry    BabyState = "HUNGRY"
	StateWetDiaper BabyState = "WET_DIAPER"

	// Display-only values. They appear in events but are never the current state.
	StateAwake BabyState = "AWAKE"
	StateFed   BabyState = "FED"
	StateDry   BabyState = "DRY"
)

// NeedType names a need the caregiver can satisfy.
type NeedType string

const (
	NeedHunger NeedType = "Hunger"
	NeedDiaper NeedType = "Diaper"
)

// Channel identifies a physical button.
type Channel string

const (
	ChannelHunger Channel = "HUNGER"
	ChannelDiaper Channel = "DIAPER"
)

// Channels lists the configured buttons in a stable order.
var Channels = []Channel{ChannelHunger, ChannelDiaper}

// Holds maps each channel to its required hold duration.
type Holds map[Channel]time.Duration

// DefaultHolds returns the feeding and diaper-change hold durations.
func DefaultHolds() Holds {
	return Holds{
		ChannelHunger: 3 * time.Minute,
		ChannelDiaper: 1 * time.Minute,
	}
}

// Range is an inclusive [Min, Max] duration range sampled uniformly.
type Range struct {
	Min time.Duration
	Max time.Duration
}

// Schedule holds the newborn timing ranges.
type Schedule struct {
	Sleep  Range
	Hunger Range
	Diaper Range
}

// DefaultSchedule approximates a newborn: sleeps 2-4h, hungry every 2-3h,
// wet every 1-3h.
func DefaultSchedule() Schedule {
	return Schedule{
		Sleep:  Range{Min: 2 * time.Hour, Max: 4 * time.Hour},
		Hunger: Range{Min: 2 * time.Hour, Max: 3 * time.Hour},
		Diaper: Range{Min: 1 * time.Hour, Max: 3 * time.Hour},
	}
}

// EventKind categorizes an activity event.
type EventKind string

const (
	EventSystemStart       EventKind = "SYSTEM_START"
	EventSystemInfo        EventKind = "SYSTEM_INFO"
	EventInitialState      EventKind = "INITIAL_STATE"
	EventSystemStop        EventKind = "SYSTEM_STOP"
	EventStateChange       EventKind = "STATE_CHANGE"
	EventNeedUnmet         EventKind = "NEED_UNMET"
	EventNeedMet           EventKind = "NEED_MET"
	EventIncorrectAction   EventKind = "INCORRECT_ACTION"
	EventButtonPressed     EventKind = "BUTTON_PRESSED"
	EventButtonReleased    EventKind = "BUTTON_RELEASED"
	EventButtonBounce      EventKind = "BUTTON_BOUNCE"
	EventHoldConfirmed     EventKind = "HOLD_CONFIRMED"
	EventHoldTimerReleased EventKind = "HOLD_TIMER_RELEASED"
	EventActionFailed      EventKind = "ACTION_FAILED"
)

// Label returns the human-readable category used in the activity log.
func (k EventKind) Label() string {
	switch k {
	case EventSystemStart:
		return "System Start"
	case EventSystemInfo:
		return "System Info"
	case EventInitialState:
		return "Initial State"
	case EventSystemStop:
		return "System Stop"
	case EventStateChange:
		return "Baby State Change"
	case EventNeedUnmet:
		return "Need Unmet"
	case EventNeedMet:
		return "Need Met"
	case EventIncorrectAction:
		return "Incorrect Action"
	case EventActionFailed:
		return "Action Failed"
	case EventButtonPressed, EventButtonReleased, EventButtonBounce, EventHoldConfirmed, EventHoldTimerReleased:
		return "Button Event"
	}
	return string(k)
}

// Event is an immutable activity record.
// TimeToTend is meaningful only for EventNeedMet, HoldDuration only for
// EventButtonReleased and EventHoldConfirmed.
type Event struct {
	Timestamp    time.Time
	Kind         EventKind
	State        BabyState
	Need         NeedType
	TimeToTend   time.Duration
	Channel      Channel
	HoldDuration time.Duration
	Message      string
}

// HasTimeToTend reports whether TimeToTend carries a value.
func (e Event) HasTimeToTend() bool {
	return e.Kind == EventNeedMet
}

// HasHoldDuration reports whether HoldDuration carries a value.
func (e Event) HasHoldDuration() bool {
	return e.Kind == EventButtonReleased || e.Kind == EventHoldConfirmed
}

// EventCounts tracks the number of notable events since startup.
type EventCounts struct {
	Fed              int
	DiaperChanged    int
	IncorrectActions int
	FailedHolds      int
	Bounces          int
	Reminders        int
}

// Add counts a single event.
func (c *EventCounts) Add(e Event) {
	switch e.Kind {
	case EventNeedMet:
		if e.Need == NeedHunger {
			c.Fed++
		} else if e.Need == NeedDiaper {
			c.DiaperChanged++
		}
	case EventIncorrectAction:
		c.IncorrectActions++
	case EventActionFailed:
		c.FailedHolds++
	case EventButtonBounce:
		c.Bounces++
	case EventNeedUnmet:
		c.Reminders++
	}
}

// BabySnapshot is a point-in-time copy of the baby's state.
type BabySnapshot struct {
	State            BabyState
	NeedStart        *time.Time
	LastFed          time.Time
	LastDiaperChange time.Time
	LastSleepStart   time.Time
}

// ButtonSnapshot is a point-in-time copy of one button's tracking state.
type ButtonSnapshot struct {
	Channel      Channel
	Required     time.Duration
	Pressed      bool
	PressStart   time.Time
	TimerPending bool
	Confirmed    bool
}
