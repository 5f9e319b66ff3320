// Package input tracks keyboard state for a live session: which keys are
// held and which went down during the current tick.
package input

import (
	"sort"
	"sync"
)

// Key codes as written into recordings.
const (
	KeyEnter = 10
	KeyEsc   = 27
	KeyLeft  = 37
	KeyUp    = 38
	KeyRight = 39
	KeyDown  = 40
	KeyA     = 65
	KeyD     = 68
	KeyS     = 83
	KeyW     = 87
	KeyZ     = 90
)

// Source answers key queries for the current tick. Both the live Manager
// and the replay timeline implement it, so game logic cannot tell them apart.
type Source interface {
	IsPressed(code int) bool
	IsJustPressed(code int) bool
}

// Manager collects key events from the platform layer. Events may arrive on
// any goroutine. IsPressed sees releases and presses as they arrive;
// IsJustPressed only sees the presses latched by the last BeginTick.
type Manager struct {
	mu      sync.Mutex
	held    map[int]bool
	pending map[int]bool
	just    map[int]bool
}

var _ Source = (*Manager)(nil)

func NewManager() *Manager {
	return &Manager{
		held:    make(map[int]bool),
		pending: make(map[int]bool),
		just:    make(map[int]bool),
	}
}

// OnKeyPressed records a key going down. Auto-repeat of a held key is not a
// new press.
func (m *Manager) OnKeyPressed(code int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.held[code] {
		m.pending[code] = true
	}
	m.held[code] = true
}

// OnKeyReleased records a key going up.
func (m *Manager) OnKeyReleased(code int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.held, code)
}

// BeginTick makes the presses received since the previous tick visible as
// just-pressed for this tick, and forgets the previous tick's.
func (m *Manager) BeginTick() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.just, m.pending = m.pending, m.just
	clear(m.pending)
}

func (m *Manager) IsPressed(code int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.held[code]
}

func (m *Manager) IsJustPressed(code int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.just[code]
}

// Pressed returns the held keys in ascending order.
func (m *Manager) Pressed() []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return SortedKeys(m.held)
}

// JustPressed returns this tick's new presses in ascending order. A key
// tapped and released between two ticks is reported here but not as held.
func (m *Manager) JustPressed() []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return SortedKeys(m.just)
}

// SortedKeys returns the keys set to true in ascending order.
func SortedKeys(set map[int]bool) []int {
	out := make([]int, 0, len(set))
	for k, v := range set {
		if v {
			out = append(out, k)
		}
	}
	sort.Ints(out)
	return out
}
