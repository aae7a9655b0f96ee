package inference

//go:generate mockgen -source=source.go -destination=mock_inference/mock_inference.go -package=mock_inference

import (
	"math/rand/v2"
	"sync"
	"time"
)

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

// RandomSource draws uniformly distributed floats in [0, 1).
type RandomSource interface {
	Float64() float64
}

// SystemClock reads the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now()
}

// FixedClock always reports the same instant.
type FixedClock time.Time

func (c FixedClock) Now() time.Time {
	return time.Time(c)
}

// lockedSource serializes access to a *rand.Rand, which is not safe for
// concurrent use.
type lockedSource struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewRandomSource returns a goroutine-safe source seeded from the runtime.
func NewRandomSource() RandomSource {
	return &lockedSource{rng: rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))}
}

// NewSeededSource returns a goroutine-safe source with a fixed seed, so runs
// are reproducible.
func NewSeededSource(seed uint64) RandomSource {
	return &lockedSource{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

func (s *lockedSource) Float64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Float64()
}
