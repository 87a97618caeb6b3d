package robot

import (
	"math/rand"
	"time"
)

// Random supplies uniform samples in [0, 1).
// *rand.Rand satisfies it; implementations need not be goroutine-safe.
type Random interface {
	Float64() float64
}

type globalRandom struct{}

func (globalRandom) Float64() float64 { return rand.Float64() }

// DefaultRandom returns the process-wide random source.
func DefaultRandom() Random {
	return globalRandom{}
}

// FixedRandom always returns the same sample.
// FixedRandom(0) makes every connect succeed and every delay its minimum.
type FixedRandom float64

// Float64 implements Random.
func (f FixedRandom) Float64() float64 { return float64(f) }

// sample draws from the configured source. Callers must not hold s.mu.
func (s *Simulator) sample() float64 {
	s.randMu.Lock()
	defer s.randMu.Unlock()
	return s.cfg.Random.Float64()
}

// latency picks a delay uniformly inside r.
func (s *Simulator) latency(r LatencyRange) time.Duration {
	if r.Max <= r.Min {
		return r.Min
	}
	return r.Min + time.Duration(s.sample()*float64(r.Max-r.Min))
}
