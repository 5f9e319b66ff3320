package replay

import (
	"go.uber.org/zap"

	"github.com/SmitUplenchwar2687/rewind/internal/record"
	"github.com/SmitUplenchwar2687/rewind/internal/scene"
	"github.com/SmitUplenchwar2687/rewind/internal/vec"
)

// Reconciler binds recorded IDs to live entities and overwrites their
// state from keyframes. Bindings are never removed during a session: an
// ID that disappears deactivates its entity, and reappearing reactivates
// the same one.
type Reconciler struct {
	scene scene.Scene
	log   *zap.Logger

	enemies map[int]scene.Entity
	players map[int]scene.Entity
	// adopted holds the scene IDs of bound players.
	adopted   map[uint64]bool
	fallbacks int
}

// ReconcilerStats counts bindings made so far.
type ReconcilerStats struct {
	Enemies   int `json:"enemies"`
	Players   int `json:"players"`
	Fallbacks int `json:"fallbacks"`
}

func NewReconciler(sc scene.Scene, log *zap.Logger) *Reconciler {
	if log == nil {
		log = zap.NewNop()
	}
	r := &Reconciler{scene: sc, log: log.Named("reconciler")}
	r.Reset()
	return r
}

// Apply reconciles one keyframe. Only the categories it carries are touched.
func (r *Reconciler) Apply(kf record.Keyframe) {
	if kf.HasEnemies() {
		r.applyEnemies(kf.Enemies)
	}
	if kf.HasPlayers() {
		r.applyPlayers(kf)
	}
}

func (r *Reconciler) applyEnemies(snaps []record.EnemySnapshot) {
	present := make(map[int]bool, len(snaps))
	for _, s := range snaps {
		present[s.ID] = true
		e, ok := r.enemies[s.ID]
		if !ok {
			e = r.scene.Spawn(scene.KindEnemy, s.Position, s.Velocity)
			r.enemies[s.ID] = e
		}
		e.SetPosition(s.Position)
		e.SetVelocity(s.Velocity)
		e.SetActive(true)
	}
	for id, e := range r.enemies {
		if !present[id] {
			e.SetActive(false)
		}
	}
}

func (r *Reconciler) applyPlayers(kf record.Keyframe) {
	present := make(map[int]bool, len(kf.Players))
	for i, s := range kf.Players {
		id := kf.PlayerID(i)
		present[id] = true
		e, ok := r.players[id]
		if !ok {
			e = r.adoptPlayer(id)
			r.players[id] = e
		}
		e.SetHealth(s.Health)
		e.SetScore(s.Score)
		e.SetActive(true)
	}
	for id, e := range r.players {
		if !present[id] {
			e.SetActive(false)
		}
	}
}

// adoptPlayer binds the first instantiated player not bound yet. Replay
// does not create players; the fallback exists for damaged sessions.
func (r *Reconciler) adoptPlayer(id int) scene.Entity {
	for _, e := range r.scene.Entities(scene.KindPlayer) {
		if !r.adopted[e.ID()] {
			r.adopted[e.ID()] = true
			return e
		}
	}
	r.fallbacks++
	r.log.Warn("no player entity to adopt; spawning fallback", zap.Int("player_id", id))
	e := r.scene.Spawn(scene.KindPlayer, vec.Vec2{}, vec.Vec2{})
	r.adopted[e.ID()] = true
	return e
}

// Reset forgets every binding. Entities keep their current state.
func (r *Reconciler) Reset() {
	r.enemies = make(map[int]scene.Entity)
	r.players = make(map[int]scene.Entity)
	r.adopted = make(map[uint64]bool)
	r.fallbacks = 0
}

// Bound returns the entity bound to a recorded ID.
func (r *Reconciler) Bound(kind scene.Kind, id int) (scene.Entity, bool) {
	var e scene.Entity
	var ok bool
	switch kind {
	case scene.KindEnemy:
		e, ok = r.enemies[id]
	case scene.KindPlayer:
		e, ok = r.players[id]
	}
	return e, ok
}

func (r *Reconciler) Stats() ReconcilerStats {
	return ReconcilerStats{
		Enemies:   len(r.enemies),
		Players:   len(r.players),
		Fallbacks: r.fallbacks,
	}
}
