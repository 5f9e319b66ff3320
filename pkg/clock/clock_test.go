package clock

import (
	"testing"
	"time"
)

func TestVirtualClockAdvance(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	vc := NewVirtualClock(start)
	vc.Advance(FromSeconds(1.5))
	if got := vc.Since(start); got != 1500*time.Millisecond {
		t.Fatalf("Since() = %v, want 1.5s", got)
	}
}
