// Package scene declares what the recording and replay pipeline needs from
// the host game: a way to enumerate entities of a kind, read and overwrite
// their state, and spawn new ones. The game engine itself lives elsewhere.
package scene

import "github.com/SmitUplenchwar2687/rewind/internal/vec"

// Kind identifies a category of entity tracked by recordings.
type Kind int

const (
	KindEnemy Kind = iota + 1
	KindPlayer
)

func (k Kind) String() string {
	switch k {
	case KindEnemy:
		return "enemy"
	case KindPlayer:
		return "player"
	default:
		return "unknown"
	}
}

// Entity is a live handle to one simulated object.
type Entity interface {
	// ID is stable for the lifetime of the entity and never reused by the scene.
	ID() uint64
	Kind() Kind

	Position() vec.Vec2
	SetPosition(p vec.Vec2)
	Velocity() vec.Vec2
	SetVelocity(v vec.Vec2)

	Health() int
	SetHealth(h int)
	Score() int
	SetScore(s int)

	Active() bool
	SetActive(active bool)
}

// Scene is the part of the host simulation visible to the pipeline.
type Scene interface {
	// Entities returns every instantiated entity of the given kind, active
	// or not, in a stable order.
	Entities(kind Kind) []Entity
	// Spawn creates a new active entity.
	Spawn(kind Kind, pos, vel vec.Vec2) Entity
}

// Active filters entities down to the active ones, preserving order.
func Active(entities []Entity) []Entity {
	out := make([]Entity, 0, len(entities))
	for _, e := range entities {
		if e.Active() {
			out = append(out, e)
		}
	}
	return out
}
