// Package scenetest provides an in-memory scene.Scene for tests.
package scenetest

import (
	"github.com/SmitUplenchwar2687/rewind/internal/scene"
	"github.com/SmitUplenchwar2687/rewind/internal/vec"
)

// Entity is a plain-struct scene.Entity.
type Entity struct {
	id       uint64
	kind     scene.Kind
	Pos      vec.Vec2
	Vel      vec.Vec2
	HP       int
	Points   int
	IsActive bool
}

func (e *Entity) ID() uint64 { return e.id }
func (e *Entity) Kind() scene.Kind { return e.kind }
func (e *Entity) Position() vec.Vec2 { return e.Pos }
func (e *Entity) SetPosition(p vec.Vec2) { e.Pos = p }
func (e *Entity) Velocity() vec.Vec2 { return e.Vel }
func (e *Entity) SetVelocity(v vec.Vec2) { e.Vel = v }
func (e *Entity) Health() int { return e.HP }
func (e *Entity) SetHealth(h int) { e.HP = h }
func (e *Entity) Score() int { return e.Points }
func (e *Entity) SetScore(s int) { e.Points = s }
func (e *Entity) Active() bool { return e.IsActive }
func (e *Entity) SetActive(active bool) { e.IsActive = active }

// Scene keeps entities in creation order.
type Scene struct {
	nextID   uint64
	entities []*Entity
	// Spawned counts calls to Spawn per kind.
	Spawned map[scene.Kind]int
}

var _ scene.Scene = (*Scene)(nil)

func New() *Scene {
	return &Scene{Spawned: make(map[scene.Kind]int)}
}

// Add places an active entity without counting it as spawned, the way a
// level would be set up before recording or replay starts.
func (s *Scene) Add(kind scene.Kind, pos, vel vec.Vec2) *Entity {
	s.nextID++
	e := &Entity{id: s.nextID, kind: kind, Pos: pos, Vel: vel, IsActive: true}
	s.entities = append(s.entities, e)
	return e
}

func (s *Scene) Spawn(kind scene.Kind, pos, vel vec.Vec2) scene.Entity {
	s.Spawned[kind]++
	return s.Add(kind, pos, vel)
}

func (s *Scene) Entities(kind scene.Kind) []scene.Entity {
	var out []scene.Entity
	for _, e := range s.entities {
		if e.kind == kind {
			out = append(out, e)
		}
	}
	return out
}

// All returns the concrete entities of kind.
func (s *Scene) All(kind scene.Kind) []*Entity {
	var out []*Entity
	for _, e := range s.entities {
		if e.kind == kind {
			out = append(out, e)
		}
	}
	return out
}
