//go:build linux

package gpio

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/warthog618/go-gpiocdev"

	"github.com/sweeney/baby-doll/internal/logic"
)

// RealButtons reads buttons from actual hardware using the Linux GPIO character device.
// Buttons pull the line low when pressed; lines are requested active-low so a
// logical 1 and a rising edge both mean "pressed".
type RealButtons struct {
	chip     *gpiocdev.Chip
	lines    map[logic.Channel]*gpiocdev.Line
	channels map[int]logic.Channel
	edges    chan Edge

	closeOnce sync.Once
	done      chan struct{}
}

// NewRealButtons requests every pin in pins with pull-up, both-edge detection
// and kernel debounce.
func NewRealButtons(chipName string, pins map[logic.Channel]int, debounce time.Duration) (*RealButtons, error) {
	chip, err := gpiocdev.NewChip(chipName)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}

	r := &RealButtons{
		chip:     chip,
		lines:    make(map[logic.Channel]*gpiocdev.Line, len(pins)),
		channels: make(map[int]logic.Channel, len(pins)),
		edges:    make(chan Edge, edgeBuffer),
		done:     make(chan struct{}),
	}
	for ch, pin := range pins {
		r.channels[pin] = ch
	}

	for _, ch := range sortedChannels(pins) {
		pin := pins[ch]
		line, err := chip.RequestLine(pin,
			gpiocdev.AsInput,
			gpiocdev.AsActiveLow,
			gpiocdev.WithPullUp,
			gpiocdev.WithBothEdges,
			gpiocdev.WithDebounce(debounce),
			gpiocdev.WithEventHandler(r.handleEvent),
		)
		if err != nil {
			r.Close()
			return nil, fmt.Errorf("request %s pin %d: %w", ch, pin, err)
		}
		r.lines[ch] = line
	}

	return r, nil
}

// handleEvent runs on the gpiocdev watcher goroutine.
func (r *RealButtons) handleEvent(evt gpiocdev.LineEvent) {
	e := Edge{
		Channel: r.channels[evt.Offset],
		Pin:     evt.Offset,
		Pressed: evt.Type == gpiocdev.LineEventRisingEdge,
		Time:    time.Now(),
	}
	select {
	case r.edges <- e:
	case <-r.done:
	}
}

// Edges returns the stream of debounced edges.
func (r *RealButtons) Edges() <-chan Edge {
	return r.edges
}

// Asserted reports whether the button on ch is held.
func (r *RealButtons) Asserted(ch logic.Channel) (bool, error) {
	line, ok := r.lines[ch]
	if !ok {
		return false, fmt.Errorf("asserted %q: %w", ch, logic.ErrUnknownChannel)
	}
	v, err := line.Value()
	if err != nil {
		return false, fmt.Errorf("read %s pin: %w", ch, err)
	}
	return v == 1, nil
}

// Levels returns the held state of every button.
func (r *RealButtons) Levels() (map[logic.Channel]bool, error) {
	out := make(map[logic.Channel]bool, len(r.lines))
	for ch := range r.lines {
		held, err := r.Asserted(ch)
		if err != nil {
			return nil, err
		}
		out[ch] = held
	}
	return out, nil
}

// Close releases GPIO resources.
// Reconfigures pins to input with pull-down (matching Pi boot defaults) before
// closing to ensure clean state for system shutdown/reboot.
func (r *RealButtons) Close() error {
	var errs []error

	r.closeOnce.Do(func() { close(r.done) })

	for ch, line := range r.lines {
		if err := line.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure %s pin: %w", ch, err))
		}
		if err := line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s pin: %w", ch, err))
		}
	}
	r.lines = nil
	if r.chip != nil {
		if err := r.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
		r.chip = nil
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}

func sortedChannels(pins map[logic.Channel]int) []logic.Channel {
	out := make([]logic.Channel, 0, len(pins))
	for ch := range pins {
		out = append(out, ch)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
