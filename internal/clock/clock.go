package clock

import (
	"math"
	"time"
)

// Clock abstracts time so the capture writer and the replay loop can run
// against wall time in production and virtual time in tests.
type Clock interface {
	// Now returns the current time.
	Now() time.Time
	// Since returns the duration elapsed since t.
	Since(t time.Time) time.Duration
	// After returns a channel that receives the current time after duration d.
	After(d time.Duration) <-chan time.Time
}

// RealClock delegates to the standard time package.
type RealClock struct{}

func NewRealClock() *RealClock {
	return &RealClock{}
}

func (c *RealClock) Now() time.Time {
	return time.Now()
}

func (c *RealClock) Since(t time.Time) time.Duration {
	return time.Since(t)
}

func (c *RealClock) After(d time.Duration) <-chan time.Time {
	return time.After(d)
}

// maxSeconds is the largest value FromSeconds converts without saturating.
const maxSeconds = float64(math.MaxInt64) / float64(time.Second)

// FromSeconds converts a simulation delta in seconds to a Duration, rounded
// to the nearest nanosecond. NaN and non-positive input yield zero; values
// too large for a Duration saturate at math.MaxInt64.
func FromSeconds(s float64) time.Duration {
	if math.IsNaN(s) || s <= 0 {
		return 0
	}
	if s >= maxSeconds {
		return math.MaxInt64
	}
	return time.Duration(math.Round(s * float64(time.Second)))
}

// Seconds converts a Duration back to simulation seconds.
func Seconds(d time.Duration) float64 {
	return d.Seconds()
}
