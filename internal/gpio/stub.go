//go:build !linux

package gpio

import (
	"errors"
	"time"

	"github.com/sweeney/baby-doll/internal/logic"
)

// RealButtons is not available on non-Linux platforms.
type RealButtons struct{}

// NewRealButtons returns an error on non-Linux platforms.
func NewRealButtons(chipName string, pins map[logic.Channel]int, debounce time.Duration) (*RealButtons, error) {
	return nil, errors.New("gpio: not supported on this platform (requires Linux)")
}

// Edges returns nil on non-Linux platforms.
func (r *RealButtons) Edges() <-chan Edge {
	return nil
}

// Asserted is not implemented on non-Linux platforms.
func (r *RealButtons) Asserted(ch logic.Channel) (bool, error) {
	return false, errors.New("gpio: not supported")
}

// Levels is not implemented on non-Linux platforms.
func (r *RealButtons) Levels() (map[logic.Channel]bool, error) {
	return nil, errors.New("gpio: not supported")
}

// Close is not implemented on non-Linux platforms.
func (r *RealButtons) Close() error {
	return nil
}
