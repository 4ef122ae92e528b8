package gpio

import (
	"errors"
	"sync"
	"time"

	"github.com/sweeney/baby-doll/internal/logic"
)

// FakeButtons is a test double driven by scripted presses and releases.
type FakeButtons struct {
	mu    sync.Mutex
	level map[logic.Channel]bool
	pins  map[logic.Channel]int
	edges chan Edge

	// Closed tracks if Close was called
	Closed bool

	// ReadError, if set, will be returned by Asserted and Levels.
	ReadError error
}

// NewFakeButtons creates FakeButtons for the given pin map.
func NewFakeButtons(pins map[logic.Channel]int) *FakeButtons {
	return &FakeButtons{
		level: make(map[logic.Channel]bool),
		pins:  pins,
		edges: make(chan Edge, edgeBuffer),
	}
}

// Edges returns the scripted edge stream.
func (f *FakeButtons) Edges() <-chan Edge {
	return f.edges
}

// Press asserts the line and queues a press edge.
func (f *FakeButtons) Press(ch logic.Channel, at time.Time) {
	f.SetLevel(ch, true)
	f.edges <- Edge{Channel: ch, Pin: f.pins[ch], Pressed: true, Time: at}
}

// Release deasserts the line and queues a release edge.
func (f *FakeButtons) Release(ch logic.Channel, at time.Time) {
	f.SetLevel(ch, false)
	f.edges <- Edge{Channel: ch, Pin: f.pins[ch], Pressed: false, Time: at}
}

// Send queues a raw edge without touching line levels.
func (f *FakeButtons) Send(e Edge) {
	f.edges <- e
}

// SetLevel changes the line level without emitting an edge.
func (f *FakeButtons) SetLevel(ch logic.Channel, held bool) {
	f.mu.Lock()
	f.level[ch] = held
	f.mu.Unlock()
}

// Asserted returns the scripted level.
func (f *FakeButtons) Asserted(ch logic.Channel) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ReadError != nil {
		return false, f.ReadError
	}
	if _, ok := f.pins[ch]; !ok {
		return false, errors.New("no such button")
	}
	return f.level[ch], nil
}

// Levels returns the scripted level of every configured button.
func (f *FakeButtons) Levels() (map[logic.Channel]bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ReadError != nil {
		return nil, f.ReadError
	}
	out := make(map[logic.Channel]bool, len(f.pins))
	for ch := range f.pins {
		out[ch] = f.level[ch]
	}
	return out, nil
}

// Close marks the buttons as closed.
func (f *FakeButtons) Close() error {
	f.mu.Lock()
	f.Closed = true
	f.mu.Unlock()
	return nil
}

// IsClosed reports whether Close was called.
func (f *FakeButtons) IsClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Closed
}
