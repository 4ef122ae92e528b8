package logic

import (
	"testing"
	"time"
)

var t0 = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

// quietSchedule wakes after 2h and keeps secondary needs far away.
func quietSchedule() Schedule {
	return Schedule{
		Sleep:  Range{Min: 2 * time.Hour, Max: 4 * time.Hour},
		Hunger: Range{Min: 5 * time.Hour, Max: 6 * time.Hour},
		Diaper: Range{Min: 5 * time.Hour, Max: 6 * time.Hour},
	}
}

// seqRandom returns scripted Uniform values in order, repeating the last one.
type seqRandom struct {
	values []time.Duration
	i      int
	heads  bool
}

func (s *seqRandom) Uniform(min, max time.Duration) time.Duration {
	v := s.values[s.i]
	if s.i < len(s.values)-1 {
		s.i++
	}
	return v
}

func (s *seqRandom) Chance(p float64) bool {
	return s.heads
}

func checkBabyInvariant(t *testing.T, b *Baby) {
	t.Helper()
	snap := b.Snapshot()
	if (snap.NeedStart != nil) != (snap.State != StateSleeping) {
		t.Errorf("need start out of sync with state: state=%s needStart=%v", snap.State, snap.NeedStart)
	}
}

func wantKinds(t *testing.T, events []Event, kinds ...EventKind) {
	t.Helper()
	if len(events) != len(kinds) {
		t.Fatalf("expected %d events %v, got %d: %+v", len(kinds), kinds, len(events), events)
	}
	for i, k := range kinds {
		if events[i].Kind != k {
			t.Errorf("event %d: expected %s, got %s", i, k, events[i].Kind)
		}
	}
}

func TestNewBabySleeping(t *testing.T) {
	b := NewBaby(quietSchedule(), DefaultHolds(), FixedRandom{}, t0)
	snap := b.Snapshot()
	if snap.State != StateSleeping {
		t.Errorf("expected SLEEPING, got %s", snap.State)
	}
	if snap.NeedStart != nil {
		t.Errorf("expected no need start, got %v", snap.NeedStart)
	}
	if !snap.LastFed.Equal(t0) || !snap.LastDiaperChange.Equal(t0) || !snap.LastSleepStart.Equal(t0) {
		t.Errorf("expected all clocks at %v, got %+v", t0, snap)
	}
}

func TestTickSleepingBeforeThreshold(t *testing.T) {
	b := NewBaby(quietSchedule(), DefaultHolds(), FixedRandom{Ratio: 0}, t0)

	for _, d := range []time.Duration{time.Second, time.Hour, 2*time.Hour - time.Second} {
		if events := b.Tick(t0.Add(d)); len(events) != 0 {
			t.Errorf("at +%v: expected no events, got %+v", d, events)
		}
	}
	if b.State() != StateSleeping {
		t.Errorf("expected SLEEPING, got %s", b.State())
	}
	checkBabyInvariant(t, b)
}

func TestTickWakesHungry(t *testing.T) {
	b := NewBaby(quietSchedule(), DefaultHolds(), FixedRandom{Ratio: 0, Heads: true}, t0)
	now := t0.Add(2 * time.Hour)

	events := b.Tick(now)
	wantKinds(t, events, EventStateChange, EventStateChange)

	if events[0].State != StateAwake {
		t.Errorf("expected AWAKE first, got %s", events[0].State)
	}
	if events[0].Message != "Baby waking up after 7200 seconds of sleep!" {
		t.Errorf("unexpected wake message: %q", events[0].Message)
	}
	if events[1].State != StateHungry || events[1].Need != NeedHunger {
		t.Errorf("expected HUNGRY/Hunger, got %s/%s", events[1].State, events[1].Need)
	}
	if events[1].Message != "BABY IS HUNGRY! (Press and hold Hunger button for 3 minutes)" {
		t.Errorf("unexpected hungry message: %q", events[1].Message)
	}

	snap := b.Snapshot()
	if snap.State != StateHungry {
		t.Errorf("expected HUNGRY, got %s", snap.State)
	}
	if snap.NeedStart == nil || !snap.NeedStart.Equal(now) {
		t.Errorf("expected need start %v, got %v", now, snap.NeedStart)
	}
	checkBabyInvariant(t, b)
}

func TestTickWakesWetDiaper(t *testing.T) {
	b := NewBaby(quietSchedule(), DefaultHolds(), FixedRandom{Ratio: 0, Heads: false}, t0)
	now := t0.Add(2 * time.Hour)

	events := b.Tick(now)
	wantKinds(t, events, EventStateChange, EventStateChange)
	if events[1].State != StateWetDiaper || events[1].Need != NeedDiaper {
		t.Errorf("expected WET_DIAPER/Diaper, got %s/%s", events[1].State, events[1].Need)
	}
	if events[1].Message != "BABY HAS A WET DIAPER! (Press and hold Diaper button for 1 minute)" {
		t.Errorf("unexpected diaper message: %q", events[1].Message)
	}
	if b.State() != StateWetDiaper {
		t.Errorf("expected WET_DIAPER, got %s", b.State())
	}
	checkBabyInvariant(t, b)
}

func TestTickWakeIsDeterministicWithSeed(t *testing.T) {
	pick := func() BabyState {
		b := NewBaby(quietSchedule(), DefaultHolds(), NewSeededRandom(42), t0)
		b.Tick(t0.Add(4 * time.Hour))
		return b.State()
	}
	first := pick()
	if first != StateHungry && first != StateWetDiaper {
		t.Fatalf("expected a need after max sleep, got %s", first)
	}
	for i := 0; i < 5; i++ {
		if got := pick(); got != first {
			t.Errorf("run %d: expected %s with same seed, got %s", i, first, got)
		}
	}
}

func TestSleepThresholdResampledEachTick(t *testing.T) {
	// First check draws 3h, second draws 2h: same elapsed time, different outcome.
	rnd := &seqRandom{values: []time.Duration{3 * time.Hour, 2 * time.Hour, 5 * time.Hour}, heads: true}
	b := NewBaby(quietSchedule(), DefaultHolds(), rnd, t0)
	now := t0.Add(150 * time.Minute)

	if events := b.Tick(now); len(events) != 0 {
		t.Fatalf("expected no wake on first draw, got %+v", events)
	}
	if events := b.Tick(now); len(events) != 2 {
		t.Fatalf("expected wake on re-sampled draw, got %+v", events)
	}
	if b.State() != StateHungry {
		t.Errorf("expected HUNGRY, got %s", b.State())
	}
}

func TestTickIdempotentForSameTime(t *testing.T) {
	b := NewBaby(quietSchedule(), DefaultHolds(), FixedRandom{Ratio: 0, Heads: true}, t0)
	now := t0.Add(2 * time.Hour)

	if events := b.Tick(now); len(events) != 2 {
		t.Fatalf("expected wake events, got %+v", events)
	}
	before := b.Snapshot()

	if events := b.Tick(now); len(events) != 0 {
		t.Errorf("expected no events on repeated tick, got %+v", events)
	}
	after := b.Snapshot()
	if after.State != before.State || !after.NeedStart.Equal(*before.NeedStart) {
		t.Errorf("repeated tick changed state: before=%+v after=%+v", before, after)
	}
}

func TestHungerReminderEveryMinute(t *testing.T) {
	b := NewBaby(quietSchedule(), DefaultHolds(), FixedRandom{Ratio: 0, Heads: true}, t0)
	start := t0.Add(2 * time.Hour)
	b.Tick(start)

	cases := []struct {
		offset time.Duration
		want   int
	}{
		{59 * time.Second, 0},
		{60 * time.Second, 1},
		{60*time.Second + 500*time.Millisecond, 0}, // same second, already reminded
		{61 * time.Second, 0},
		{90 * time.Second, 0},
		{120 * time.Second, 1},
	}
	for _, tc := range cases {
		events := b.Tick(start.Add(tc.offset))
		if len(events) != tc.want {
			t.Errorf("at +%v: expected %d events, got %+v", tc.offset, tc.want, events)
			continue
		}
		if tc.want == 1 {
			e := events[0]
			if e.Kind != EventNeedUnmet || e.Need != NeedHunger || e.State != StateHungry {
				t.Errorf("at +%v: unexpected reminder %+v", tc.offset, e)
			}
		}
	}
}

func TestDiaperReminderEveryThirtySeconds(t *testing.T) {
	b := NewBaby(quietSchedule(), DefaultHolds(), FixedRandom{Ratio: 0, Heads: false}, t0)
	start := t0.Add(2 * time.Hour)
	b.Tick(start)

	var reminders int
	for s := 1; s <= 90; s++ {
		for _, e := range b.Tick(start.Add(time.Duration(s) * time.Second)) {
			if e.Kind == EventNeedUnmet {
				reminders++
				if e.Need != NeedDiaper {
					t.Errorf("expected Diaper reminder, got %s", e.Need)
				}
			}
		}
	}
	if reminders != 3 {
		t.Errorf("expected 3 reminders in 90s, got %d", reminders)
	}
}

func TestDiaperOnsetOverwritesHunger(t *testing.T) {
	schedule := Schedule{
		Sleep:  Range{Min: 10 * time.Minute, Max: 10 * time.Minute},
		Hunger: Range{Min: 4 * time.Hour, Max: 4 * time.Hour},
		Diaper: Range{Min: time.Hour, Max: time.Hour},
	}
	b := NewBaby(schedule, DefaultHolds(), FixedRandom{Heads: true}, t0)
	hungryAt := t0.Add(10 * time.Minute)
	b.Tick(hungryAt)
	if b.State() != StateHungry {
		t.Fatalf("expected HUNGRY, got %s", b.State())
	}

	events := b.Tick(t0.Add(time.Hour))
	if len(events) == 0 {
		t.Fatal("expected events at diaper onset")
	}
	last := events[len(events)-1]
	if last.Kind != EventStateChange || last.State != StateWetDiaper {
		t.Errorf("expected WET_DIAPER state change, got %+v", last)
	}

	snap := b.Snapshot()
	if snap.State != StateWetDiaper {
		t.Errorf("expected WET_DIAPER, got %s", snap.State)
	}
	if snap.NeedStart == nil || !snap.NeedStart.Equal(hungryAt) {
		t.Errorf("expected need start to stay at hunger onset %v, got %v", hungryAt, snap.NeedStart)
	}
	checkBabyInvariant(t, b)
}

func TestBothOnsetsSameTickDiaperWins(t *testing.T) {
	schedule := Schedule{
		Sleep:  Range{Min: 2 * time.Hour, Max: 2 * time.Hour},
		Hunger: Range{Min: 2 * time.Hour, Max: 2 * time.Hour},
		Diaper: Range{Min: time.Hour, Max: time.Hour},
	}
	b := NewBaby(schedule, DefaultHolds(), FixedRandom{Heads: false}, t0)
	now := t0.Add(2 * time.Hour)

	events := b.Tick(now)
	wantKinds(t, events, EventStateChange, EventStateChange, EventStateChange, EventStateChange)
	wantStates := []BabyState{StateAwake, StateWetDiaper, StateHungry, StateWetDiaper}
	for i, s := range wantStates {
		if events[i].State != s {
			t.Errorf("event %d: expected %s, got %s", i, s, events[i].State)
		}
	}
	snap := b.Snapshot()
	if snap.State != StateWetDiaper {
		t.Errorf("expected WET_DIAPER, got %s", snap.State)
	}
	if !snap.NeedStart.Equal(now) {
		t.Errorf("expected need start %v, got %v", now, snap.NeedStart)
	}
}

func TestSecondaryOnsetDoesNotFireWhileSleeping(t *testing.T) {
	schedule := Schedule{
		Sleep:  Range{Min: 10 * time.Hour, Max: 10 * time.Hour},
		Hunger: Range{Min: time.Hour, Max: time.Hour},
		Diaper: Range{Min: time.Hour, Max: time.Hour},
	}
	b := NewBaby(schedule, DefaultHolds(), FixedRandom{}, t0)
	if events := b.Tick(t0.Add(5 * time.Hour)); len(events) != 0 {
		t.Errorf("expected no events while sleeping, got %+v", events)
	}
	checkBabyInvariant(t, b)
}

func TestHoldText(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{3 * time.Minute, "3 minutes"},
		{time.Minute, "1 minute"},
		{90 * time.Second, "90 seconds"},
		{20 * time.Second, "20 seconds"},
	}
	for _, tt := range tests {
		if got := holdText(tt.d); got != tt.want {
			t.Errorf("holdText(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}
