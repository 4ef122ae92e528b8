package logic

import (
	"math/rand"
	"sync"
	"time"
)

// Random supplies the random draws used by the need scheduler.
type Random interface {
	// Uniform returns a duration drawn uniformly from [min, max].
	Uniform(min, max time.Duration) time.Duration

	// Chance returns true with probability p.
	Chance(p float64) bool
}

// SeededRandom draws from a math/rand source. Safe for concurrent use.
type SeededRandom struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

// NewSeededRandom creates a SeededRandom. The same seed yields the same draws.
func NewSeededRandom(seed int64) *SeededRandom {
	return &SeededRandom{rnd: rand.New(rand.NewSource(seed))}
}

// Uniform returns a duration in [min, max]. Returns min if max <= min.
func (r *SeededRandom) Uniform(min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	r.mu.Lock()
	n := r.rnd.Int63n(int64(max-min) + 1)
	r.mu.Unlock()
	return min + time.Duration(n)
}

// Chance returns true with probability p.
func (r *SeededRandom) Chance(p float64) bool {
	r.mu.Lock()
	f := r.rnd.Float64()
	r.mu.Unlock()
	return f < p
}

// FixedRandom is a deterministic Random for tests.
type FixedRandom struct {
	// Ratio positions every Uniform draw within its range: 0 = min, 1 = max.
	Ratio float64

	// Heads is returned by every Chance call.
	Heads bool
}

// Uniform returns min + Ratio*(max-min).
func (f FixedRandom) Uniform(min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	return min + time.Duration(float64(max-min)*f.Ratio)
}

// Chance returns Heads.
func (f FixedRandom) Chance(p float64) bool {
	return f.Heads
}
