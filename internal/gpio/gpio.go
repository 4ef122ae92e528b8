// Package gpio provides button edge notifications with hardware abstraction.
// The real implementation uses the Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

import (
	"time"

	"github.com/sweeney/baby-doll/internal/logic"
)

// Edge is a debounced press or release on a button line.
type Edge struct {
	Channel logic.Channel // empty if Pin is not a configured button
	Pin     int
	Pressed bool // true = press, false = release
	Time    time.Time
}

// Buttons delivers button edges and answers level queries.
type Buttons interface {
	// Edges returns the stream of debounced edges.
	Edges() <-chan Edge

	// Asserted reports whether the channel's button is held right now.
	Asserted(ch logic.Channel) (bool, error)

	// Levels returns the held state of every button.
	Levels() (map[logic.Channel]bool, error)

	// Close releases GPIO resources.
	Close() error
}

// Pin definitions (BCM numbering)
const (
	DefaultPinHunger = 17
	DefaultPinDiaper = 27
)

// DefaultDebounce filters switch bounce on both edges.
const DefaultDebounce = 200 * time.Millisecond

// DefaultPins maps each button to its BCM pin.
func DefaultPins() map[logic.Channel]int {
	return map[logic.Channel]int{
		logic.ChannelHunger: DefaultPinHunger,
		logic.ChannelDiaper: DefaultPinDiaper,
	}
}

// edgeBuffer is the capacity of the edge channel.
const edgeBuffer = 32
