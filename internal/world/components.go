package world

import (
	"github.com/yohamta/donburi"

	"github.com/SmitUplenchwar2687/rewind/internal/scene"
	"github.com/SmitUplenchwar2687/rewind/internal/vec"
)

// IdentityData is set once at creation.
type IdentityData struct {
	ID   uint64
	Kind scene.Kind
}

type BodyData struct {
	Position vec.Vec2
	Velocity vec.Vec2
}

type VitalsData struct {
	Health int
	Score  int
	Active bool
}

var (
	Identity = donburi.NewComponentType[IdentityData]()
	Body     = donburi.NewComponentType[BodyData]()
	Vitals   = donburi.NewComponentType[VitalsData]()

	EnemyTag  = donburi.NewTag()
	PlayerTag = donburi.NewTag()
)
