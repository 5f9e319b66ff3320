package input

import (
	"math/rand/v2"
	"time"
)

// Bot drives a Manager with pseudo-random key presses so sessions can be
// recorded without a keyboard. The same seed yields the same presses for
// the same sequence of ticks.
type Bot struct {
	rng  *rand.Rand
	keys []int
	// until holds the release deadline of every key the bot is holding.
	until   map[int]time.Duration
	elapsed time.Duration

	// PressRate is the expected number of presses per key per second.
	PressRate float64
	// MaxHold bounds how long a key stays down.
	MaxHold time.Duration
}

// DefaultBotKeys are the movement keys plus fire.
var DefaultBotKeys = []int{KeyLeft, KeyUp, KeyRight, KeyDown, KeyZ}

func NewBot(seed uint64, keys []int) *Bot {
	if len(keys) == 0 {
		keys = DefaultBotKeys
	}
	return &Bot{
		rng:       rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		keys:      append([]int(nil), keys...),
		until:     make(map[int]time.Duration),
		PressRate: 1.5,
		MaxHold:   800 * time.Millisecond,
	}
}

// Step advances the bot by dt and feeds the resulting transitions to m.
// Call it before m.BeginTick.
func (b *Bot) Step(dt time.Duration, m *Manager) {
	b.elapsed += dt
	for _, k := range b.keys {
		if deadline, held := b.until[k]; held {
			if b.elapsed >= deadline {
				delete(b.until, k)
				m.OnKeyReleased(k)
			}
			continue
		}
		if b.rng.Float64() < b.PressRate*dt.Seconds() {
			hold := time.Duration(b.rng.Int64N(int64(b.MaxHold))) + dt
			b.until[k] = b.elapsed + hold
			m.OnKeyPressed(k)
		}
	}
}
