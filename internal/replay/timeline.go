// Package replay plays a decoded session back into a live scene: recorded
// key transitions drive the input source, and keyframes periodically
// overwrite simulated entity state with recorded ground truth.
package replay

import (
	"time"

	"github.com/SmitUplenchwar2687/rewind/internal/clock"
	"github.com/SmitUplenchwar2687/rewind/internal/input"
	"github.com/SmitUplenchwar2687/rewind/internal/record"
)

var epoch = time.Unix(0, 0).UTC()

// Timeline is the input source during replay. It commits recorded key
// events as its virtual clock passes their times. Times are compared in
// whole nanoseconds so quantized timestamps are reached exactly.
type Timeline struct {
	clock   *clock.VirtualClock
	events  []record.InputEvent
	at      []time.Duration
	cursor  int
	pressed map[int]bool
	just    map[int]bool
}

var _ input.Source = (*Timeline)(nil)

func NewTimeline() *Timeline {
	return &Timeline{
		clock:   clock.NewVirtualClock(epoch),
		pressed: make(map[int]bool),
		just:    make(map[int]bool),
	}
}

// Load takes events in ascending time order and rewinds to the start.
// Events are committed in the given order; an out-of-order event waits for
// every event before it.
func (t *Timeline) Load(events []record.InputEvent) {
	t.events = append([]record.InputEvent(nil), events...)
	t.at = make([]time.Duration, len(events))
	for i, ev := range t.events {
		t.at[i] = clock.FromSeconds(ev.Time)
	}
	t.Reset()
}

// Advance moves the clock forward by dt seconds and commits every pending
// event whose time has been reached. Just-pressed state from the previous
// call is discarded first.
func (t *Timeline) Advance(dt float64) {
	clear(t.just)
	t.clock.Advance(clock.FromSeconds(dt))

	now := t.ElapsedDuration()
	for t.cursor < len(t.events) && t.at[t.cursor] <= now {
		ev := t.events[t.cursor]
		for _, k := range ev.Keys {
			switch ev.Kind {
			case record.KeyDown:
				t.pressed[k] = true
				t.just[k] = true
			case record.KeyUp:
				delete(t.pressed, k)
			}
		}
		t.cursor++
	}
}

// Reset rewinds to time zero with no keys held.
func (t *Timeline) Reset() {
	t.cursor = 0
	clear(t.pressed)
	clear(t.just)
	t.clock.Reset(epoch)
}

func (t *Timeline) IsPressed(code int) bool     { return t.pressed[code] }
func (t *Timeline) IsJustPressed(code int) bool { return t.just[code] }

// Pressed returns the held keys in ascending order.
func (t *Timeline) Pressed() []int { return input.SortedKeys(t.pressed) }

// JustPressed returns the keys pressed by the last Advance in ascending order.
func (t *Timeline) JustPressed() []int { return input.SortedKeys(t.just) }

// Elapsed returns the virtual time in seconds.
func (t *Timeline) Elapsed() float64 { return clock.Seconds(t.ElapsedDuration()) }

func (t *Timeline) ElapsedDuration() time.Duration { return t.clock.Since(epoch) }

// Applied returns the number of committed events.
func (t *Timeline) Applied() int { return t.cursor }

// Done reports whether every event has been committed.
func (t *Timeline) Done() bool { return t.cursor >= len(t.events) }
