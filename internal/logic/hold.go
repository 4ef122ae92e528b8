package logic

import (
	"fmt"
	"strconv"
	"sync"
	"time"
)

// pendingHold is an armed hold-confirmation timer.
type pendingHold struct {
	seq   uint64
	timer Timer
}

// buttonState tracks one channel: IDLE (no pressStart), PRESSED (pressStart
// set, timer pending or already expired while released) or CONFIRMED
// (confirmedStart set until the release edge arrives).
type buttonState struct {
	required       time.Duration
	pressStart     *time.Time
	pending        *pendingHold
	confirmedStart *time.Time
}

// HoldTracker turns press/release edges plus hold timers into a single
// hold-confirmed signal per press. A mutex guards all per-channel fields.
// Release and timer expiry are mutually exclusive in effect: whichever is
// handled first wins and the other sees cleared state.
type HoldTracker struct {
	mu      sync.Mutex
	buttons map[Channel]*buttonState
	timers  TimerService
	pins    LevelReader
	labels  map[Channel]string
	notify  func(ch Channel, seq uint64)
	seq     uint64
}

// NewHoldTracker creates a tracker for the channels in holds. pins is
// required to confirm a hold; without it TimerFired returns ErrNoLevelReader.
// When a hold timer expires, notify is called from the timer's goroutine with the channel
// and the sequence number to pass to TimerFired.
func NewHoldTracker(holds Holds, timers TimerService, pins LevelReader, notify func(ch Channel, seq uint64)) *HoldTracker {
	buttons := make(map[Channel]*buttonState, len(holds))
	for ch, d := range holds {
		buttons[ch] = &buttonState{required: d}
	}
	return &HoldTracker{
		buttons: buttons,
		timers:  timers,
		pins:    pins,
		notify:  notify,
	}
}

// SetPinNumbers makes button messages name the GPIO pin, as in
// "Button 17 pressed.", instead of the channel.
func (h *HoldTracker) SetPinNumbers(pins map[Channel]int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.labels = make(map[Channel]string, len(pins))
	for ch, pin := range pins {
		h.labels[ch] = strconv.Itoa(pin)
	}
}

// label names ch in messages. Caller must hold h.mu.
func (h *HoldTracker) label(ch Channel) string {
	if l, ok := h.labels[ch]; ok {
		return l
	}
	return string(ch)
}

// Press records a press edge and arms the hold timer, cancelling any stale
// timer for the channel first.
func (h *HoldTracker) Press(ch Channel, now time.Time) ([]Event, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	b, ok := h.buttons[ch]
	if !ok {
		return nil, fmt.Errorf("press %q: %w", ch, ErrUnknownChannel)
	}

	t := now
	b.pressStart = &t
	b.confirmedStart = nil
	h.cancelLocked(b)

	h.seq++
	seq := h.seq
	b.pending = &pendingHold{
		seq: seq,
		timer: h.timers.AfterFunc(b.required, func() {
			h.notify(ch, seq)
		}),
	}

	return []Event{{
		Timestamp: now,
		Kind:      EventButtonPressed,
		Channel:   ch,
		Message:   fmt.Sprintf("Button %s pressed.", h.label(ch)),
	}}, nil
}

// Release records a release edge. A release never confirms a hold: it
// cancels the pending timer, and an open press that was not confirmed by its
// timer always ends in ACTION_FAILED.
func (h *HoldTracker) Release(ch Channel, now time.Time) ([]Event, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	b, ok := h.buttons[ch]
	if !ok {
		return nil, fmt.Errorf("release %q: %w", ch, ErrUnknownChannel)
	}

	if b.pressStart == nil {
		if b.confirmedStart != nil {
			held := now.Sub(*b.confirmedStart)
			b.confirmedStart = nil
			return []Event{releasedEvent(h.label(ch), ch, now, held)}, nil
		}
		return []Event{{
			Timestamp: now,
			Kind:      EventButtonBounce,
			Channel:   ch,
			Message:   fmt.Sprintf("Button %s released but no press start time recorded (might be a bounce).", h.label(ch)),
		}}, nil
	}

	held := now.Sub(*b.pressStart)
	h.cancelLocked(b)
	b.pressStart = nil

	msg := fmt.Sprintf("Hold duration too short for button %s. Required: %ds.", h.label(ch), seconds(b.required))
	if held >= b.required {
		// The timer lost the race or its expiry was handled late.
		msg = fmt.Sprintf("Hold on button %s was not confirmed before release. Required: %ds.", h.label(ch), seconds(b.required))
	}
	return []Event{
		releasedEvent(h.label(ch), ch, now, held),
		{Timestamp: now, Kind: EventActionFailed, Channel: ch, Message: msg},
	}, nil
}

// TimerFired handles expiry of the hold timer with sequence seq. A timer that
// was cancelled or superseded is a no-op. Otherwise the line is re-read: if it
// is still asserted the hold is confirmed and the caller must resolve it
// (after this call returns, with the tracker unlocked). Errors reading the
// line are returned as-is.
func (h *HoldTracker) TimerFired(ch Channel, seq uint64, now time.Time) (bool, []Event, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	b, ok := h.buttons[ch]
	if !ok {
		return false, nil, fmt.Errorf("hold timer %q: %w", ch, ErrUnknownChannel)
	}

	if b.pending == nil || b.pending.seq != seq {
		return false, nil, nil
	}
	b.pending = nil

	if h.pins == nil {
		return false, nil, fmt.Errorf("hold timer %q: %w", ch, ErrNoLevelReader)
	}
	asserted, err := h.pins.Asserted(ch)
	if err != nil {
		return false, nil, fmt.Errorf("read %s line: %w", ch, err)
	}

	if !asserted {
		// The release edge has not been handled yet; leave pressStart so it
		// completes the normal release bookkeeping.
		return false, []Event{{
			Timestamp: now,
			Kind:      EventHoldTimerReleased,
			Channel:   ch,
			Message:   fmt.Sprintf("Button %s hold timer triggered, but button was already released.", h.label(ch)),
		}}, nil
	}

	b.confirmedStart = b.pressStart
	b.pressStart = nil

	return true, []Event{{
		Timestamp:    now,
		Kind:         EventHoldConfirmed,
		Channel:      ch,
		HoldDuration: b.required,
		Message:      fmt.Sprintf("Button %s held for %ds.", h.label(ch), seconds(b.required)),
	}}, nil
}

// cancelLocked stops and forgets the pending timer. Caller must hold h.mu.
func (h *HoldTracker) cancelLocked(b *buttonState) {
	if b.pending != nil {
		b.pending.timer.Stop()
		b.pending = nil
	}
}

// Required returns the hold duration for ch.
func (h *HoldTracker) Required(ch Channel) (time.Duration, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	b, ok := h.buttons[ch]
	if !ok {
		return 0, false
	}
	return b.required, true
}

// Snapshot returns the tracking state of every channel in Channels order.
func (h *HoldTracker) Snapshot() []ButtonSnapshot {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]ButtonSnapshot, 0, len(h.buttons))
	for _, ch := range Channels {
		b, ok := h.buttons[ch]
		if !ok {
			continue
		}
		s := ButtonSnapshot{
			Channel:      ch,
			Required:     b.required,
			Pressed:      b.pressStart != nil || b.confirmedStart != nil,
			TimerPending: b.pending != nil,
			Confirmed:    b.confirmedStart != nil,
		}
		if b.pressStart != nil {
			s.PressStart = *b.pressStart
		} else if b.confirmedStart != nil {
			s.PressStart = *b.confirmedStart
		}
		out = append(out, s)
	}
	return out
}

func releasedEvent(label string, ch Channel, now time.Time, held time.Duration) Event {
	return Event{
		Timestamp:    now,
		Kind:         EventButtonReleased,
		Channel:      ch,
		HoldDuration: held,
		Message:      fmt.Sprintf("Button %s released. Held for %d seconds.", label, seconds(held)),
	}
}
