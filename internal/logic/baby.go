package logic

import (
	"fmt"
	"sync"
	"time"
)

// Reminder cadence for unmet needs.
const (
	hungerReminderEvery = 60 * time.Second
	diaperReminderEvery = 30 * time.Second
)

// Baby holds the needs state machine. All methods are safe for concurrent use;
// a single mutex guards the state, the last-satisfied timestamps and needStart.
type Baby struct {
	mu       sync.Mutex
	schedule Schedule
	holds    Holds
	rnd      Random

	state            BabyState
	lastFed          time.Time
	lastDiaperChange time.Time
	lastSleepStart   time.Time
	needStart        *time.Time

	// lastReminder is the unmet-need second of the last reminder, so ticking
	// faster than 1Hz does not repeat a reminder.
	lastReminder int64
}

// NewBaby creates a sleeping baby whose clocks all start at start.
func NewBaby(schedule Schedule, holds Holds, rnd Random, start time.Time) *Baby {
	return &Baby{
		schedule:         schedule,
		holds:            holds,
		rnd:              rnd,
		state:            StateSleeping,
		lastFed:          start,
		lastDiaperChange: start,
		lastSleepStart:   start,
	}
}

// Tick advances the schedule to now and returns any events that should be
// emitted. It must be called at least once per second.
func (b *Baby) Tick(now time.Time) []Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	var events []Event

	switch b.state {
	case StateSleeping:
		elapsed := now.Sub(b.lastSleepStart)
		// The threshold is drawn fresh on every check.
		if elapsed >= b.rnd.Uniform(b.schedule.Sleep.Min, b.schedule.Sleep.Max) {
			events = append(events, b.event(now, EventStateChange, StateAwake, "",
				fmt.Sprintf("Baby waking up after %d seconds of sleep!", seconds(elapsed))))

			if b.rnd.Chance(0.5) {
				b.state = StateHungry
				events = append(events, b.event(now, EventStateChange, StateHungry, NeedHunger,
					fmt.Sprintf("BABY IS HUNGRY! (Press and hold Hunger button for %s)", holdText(b.holds[ChannelHunger]))))
			} else {
				b.state = StateWetDiaper
				events = append(events, b.event(now, EventStateChange, StateWetDiaper, NeedDiaper,
					fmt.Sprintf("BABY HAS A WET DIAPER! (Press and hold Diaper button for %s)", holdText(b.holds[ChannelDiaper]))))
			}
			b.setNeedStart(now)
		}

	case StateHungry:
		if ev, ok := b.reminder(now, hungerReminderEvery, NeedHunger, "Baby is still hungry!"); ok {
			events = append(events, ev)
		}

	case StateWetDiaper:
		if ev, ok := b.reminder(now, diaperReminderEvery, NeedDiaper, "Baby still has a wet diaper!"); ok {
			events = append(events, ev)
		}
	}

	// Secondary needs develop while awake, even if not the primary state.
	// Hunger is checked first; a diaper onset in the same tick overwrites it.
	// needStart is only set for the first need, so a second need keeps the
	// original time-to-tend clock.
	if b.state != StateSleeping {
		if now.Sub(b.lastFed) >= b.rnd.Uniform(b.schedule.Hunger.Min, b.schedule.Hunger.Max) {
			if b.state != StateHungry {
				events = append(events, b.event(now, EventStateChange, StateHungry, NeedHunger,
					"Baby is getting hungry again!"))
				b.state = StateHungry
				if b.needStart == nil {
					b.setNeedStart(now)
				}
			}
		}

		if now.Sub(b.lastDiaperChange) >= b.rnd.Uniform(b.schedule.Diaper.Min, b.schedule.Diaper.Max) {
			if b.state != StateWetDiaper {
				events = append(events, b.event(now, EventStateChange, StateWetDiaper, NeedDiaper,
					"Baby needs a diaper change again!"))
				b.state = StateWetDiaper
				if b.needStart == nil {
					b.setNeedStart(now)
				}
			}
		}
	}

	return events
}

// reminder returns a NEED_UNMET event on every whole multiple of every of
// unmet time. Caller must hold b.mu.
func (b *Baby) reminder(now time.Time, every time.Duration, need NeedType, text string) (Event, bool) {
	if b.needStart == nil {
		return Event{}, false
	}
	elapsed := seconds(now.Sub(*b.needStart))
	period := int64(every / time.Second)
	if elapsed <= 0 || elapsed%period != 0 || elapsed == b.lastReminder {
		return Event{}, false
	}
	b.lastReminder = elapsed
	return b.event(now, EventNeedUnmet, b.state, need,
		fmt.Sprintf("%s Elapsed: %d seconds.", text, elapsed)), true
}

func (b *Baby) setNeedStart(now time.Time) {
	t := now
	b.needStart = &t
	b.lastReminder = 0
}

// event builds an event. An empty state defaults to the current state.
// Caller must hold b.mu.
func (b *Baby) event(now time.Time, kind EventKind, state BabyState, need NeedType, msg string) Event {
	if state == "" {
		state = b.state
	}
	return Event{
		Timestamp: now,
		Kind:      kind,
		State:     state,
		Need:      need,
		Message:   msg,
	}
}

// State returns the current state.
func (b *Baby) State() BabyState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Snapshot returns a copy of the baby's state.
func (b *Baby) Snapshot() BabySnapshot {
	b.mu.Lock()
	defer b.mu.Unlock()

	snap := BabySnapshot{
		State:            b.state,
		LastFed:          b.lastFed,
		LastDiaperChange: b.lastDiaperChange,
		LastSleepStart:   b.lastSleepStart,
	}
	if b.needStart != nil {
		t := *b.needStart
		snap.NeedStart = &t
	}
	return snap
}

// seconds truncates d to whole seconds.
func seconds(d time.Duration) int64 {
	return int64(d / time.Second)
}

// holdText renders a hold requirement as "3 minutes", "1 minute" or
// "45 seconds".
func holdText(d time.Duration) string {
	if d >= time.Minute && d%time.Minute == 0 {
		m := int64(d / time.Minute)
		if m == 1 {
			return "1 minute"
		}
		return fmt.Sprintf("%d minutes", m)
	}
	return fmt.Sprintf("%d seconds", seconds(d))
}
