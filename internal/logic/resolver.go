package logic

import (
	"fmt"
	"time"
)

// remedy describes what a confirmed hold on a channel satisfies.
type remedy struct {
	need      NeedType
	wants     BabyState
	satisfied BabyState
	metText   string
	sleepText string
	wrongText string
}

var remedies = map[Channel]remedy{
	ChannelHunger: {
		need:      NeedHunger,
		wants:     StateHungry,
		satisfied: StateFed,
		metText:   "BABY FED! Time to tend: %d seconds.",
		sleepText: "Baby went to sleep after feeding.",
		wrongText: "Baby is not hungry right now. Keep an eye on the needs!",
	},
	ChannelDiaper: {
		need:      NeedDiaper,
		wants:     StateWetDiaper,
		satisfied: StateDry,
		metText:   "DIAPER CHANGED! Time to tend: %d seconds.",
		sleepText: "Baby went to sleep after diaper change.",
		wrongText: "Diaper is not wet right now. Check again later!",
	},
}

// Resolve applies a confirmed hold on ch. The need is met only when the
// baby's current state is exactly the one ch satisfies; otherwise an
// INCORRECT_ACTION event is returned and nothing changes.
func (b *Baby) Resolve(ch Channel, now time.Time) ([]Event, error) {
	r, ok := remedies[ch]
	if !ok {
		return nil, fmt.Errorf("resolve %q: %w", ch, ErrUnknownChannel)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state != r.wants {
		return []Event{b.event(now, EventIncorrectAction, "", r.need, r.wrongText)}, nil
	}

	var tend time.Duration
	if b.needStart != nil {
		tend = now.Sub(*b.needStart)
	}

	met := b.event(now, EventNeedMet, r.satisfied, r.need, fmt.Sprintf(r.metText, seconds(tend)))
	met.TimeToTend = tend

	switch ch {
	case ChannelHunger:
		b.lastFed = now
	case ChannelDiaper:
		b.lastDiaperChange = now
	}
	b.lastSleepStart = now
	b.state = StateSleeping
	b.needStart = nil
	b.lastReminder = 0

	return []Event{
		met,
		b.event(now, EventStateChange, StateSleeping, "", r.sleepText),
	}, nil
}
