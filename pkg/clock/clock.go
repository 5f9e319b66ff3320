package clock

import (
	"time"

	internalclock "github.com/SmitUplenchwar2687/rewind/internal/clock"
)

// Clock abstracts time so replays can be paced by real or virtual time.
type Clock = internalclock.Clock

// RealClock delegates to the standard time package.
type RealClock = internalclock.RealClock

// VirtualClock is a manually advanced clock.
type VirtualClock = internalclock.VirtualClock

// NewRealClock creates a real wall-clock implementation.
func NewRealClock() *RealClock {
	return internalclock.NewRealClock()
}

// NewVirtualClock creates a virtual clock starting at the given time.
func NewVirtualClock(start time.Time) *VirtualClock {
	return internalclock.NewVirtualClock(start)
}

// FromSeconds converts session seconds to a duration.
func FromSeconds(s float64) time.Duration {
	return internalclock.FromSeconds(s)
}
