// Package world is a small headless shooter simulation on an ECS. It lets
// sessions be recorded and replayed without a renderer.
package world

import (
	"math"
	"math/rand/v2"
	"sort"

	"github.com/yohamta/donburi"
	"github.com/yohamta/donburi/filter"
	"go.uber.org/zap"

	"github.com/SmitUplenchwar2687/rewind/internal/input"
	"github.com/SmitUplenchwar2687/rewind/internal/record"
	"github.com/SmitUplenchwar2687/rewind/internal/scene"
	"github.com/SmitUplenchwar2687/rewind/internal/vec"
)

// Gameplay constants.
const (
	PlayerSpeed   = 200.0
	PlayerHealth  = 100
	ContactDamage = 10
	KillScore     = 10
	HitWidth      = 24.0
	ContactRadius = 20.0
	// margin is how far outside the field an enemy may drift before it is
	// considered gone.
	margin = 32.0
)

// Options configures a World.
type Options struct {
	Width  int
	Height int
	// Players is the number of player entities created at setup.
	Players int
	// SpawnEnemies enables the enemy spawner. Replays leave it off so that
	// enemies come only from keyframes.
	SpawnEnemies  bool
	SpawnInterval float64
	Seed          uint64
}

func DefaultOptions() Options {
	return Options{
		Width:         1024,
		Height:        768,
		Players:       1,
		SpawnEnemies:  true,
		SpawnInterval: 0.75,
		Seed:          1,
	}
}

// World implements scene.Scene.
type World struct {
	ecs  donburi.World
	opts Options
	rng  *rand.Rand
	log  *zap.Logger

	nextID     uint64
	spawnTimer float64
	kills      int

	enemies *donburi.Query
	players *donburi.Query
}

var _ scene.Scene = (*World)(nil)

func New(opts Options, log *zap.Logger) *World {
	def := DefaultOptions()
	if opts.Width <= 0 || opts.Height <= 0 {
		opts.Width, opts.Height = def.Width, def.Height
	}
	if opts.SpawnInterval <= 0 {
		opts.SpawnInterval = def.SpawnInterval
	}
	if log == nil {
		log = zap.NewNop()
	}

	w := &World{
		ecs:     donburi.NewWorld(),
		opts:    opts,
		rng:     rand.New(rand.NewPCG(opts.Seed, opts.Seed+1)),
		log:     log.Named("world"),
		enemies: donburi.NewQuery(filter.Contains(EnemyTag, Identity, Body, Vitals)),
		players: donburi.NewQuery(filter.Contains(PlayerTag, Identity, Body, Vitals)),
	}
	for i := 0; i < opts.Players; i++ {
		x := float64(opts.Width) * float64(i+1) / float64(opts.Players+1)
		w.Spawn(scene.KindPlayer, vec.New(x, float64(opts.Height)-48), vec.Vec2{})
	}
	return w
}

// Size returns the field dimensions.
func (w *World) Size() (int, int) { return w.opts.Width, w.opts.Height }

// Kills returns the number of enemies shot so far.
func (w *World) Kills() int { return w.kills }

func (w *World) Spawn(kind scene.Kind, pos, vel vec.Vec2) scene.Entity {
	tag := EnemyTag
	if kind == scene.KindPlayer {
		tag = PlayerTag
	}
	ent := w.ecs.Create(tag, Identity, Body, Vitals)
	entry := w.ecs.Entry(ent)

	w.nextID++
	Identity.SetValue(entry, IdentityData{ID: w.nextID, Kind: kind})
	Body.SetValue(entry, BodyData{Position: pos, Velocity: vel})
	vitals := VitalsData{Active: true}
	if kind == scene.KindPlayer {
		vitals.Health = PlayerHealth
	}
	Vitals.SetValue(entry, vitals)
	return &entity{ecs: w.ecs, ent: ent}
}

// Entities returns every entity of kind ordered by creation.
func (w *World) Entities(kind scene.Kind) []scene.Entity {
	q := w.enemies
	if kind == scene.KindPlayer {
		q = w.players
	}
	var out []*entity
	q.Each(w.ecs, func(entry *donburi.Entry) {
		out = append(out, &entity{ecs: w.ecs, ent: entry.Entity()})
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })

	res := make([]scene.Entity, len(out))
	for i, e := range out {
		res[i] = e
	}
	return res
}

// Step runs one tick of dt seconds reading keys from in.
func (w *World) Step(dt float64, in input.Source) {
	players := scene.Active(w.Entities(scene.KindPlayer))
	w.movePlayers(dt, in, players)
	if in.IsJustPressed(input.KeyZ) {
		for _, p := range players {
			w.fire(p)
		}
	}
	w.moveEnemies(dt)
	w.contact(players)
	if w.opts.SpawnEnemies {
		w.spawnTick(dt)
	}
}

func (w *World) movePlayers(dt float64, in input.Source, players []scene.Entity) {
	var dir vec.Vec2
	if in.IsPressed(input.KeyLeft) || in.IsPressed(input.KeyA) {
		dir.X--
	}
	if in.IsPressed(input.KeyRight) || in.IsPressed(input.KeyD) {
		dir.X++
	}
	if in.IsPressed(input.KeyUp) || in.IsPressed(input.KeyW) {
		dir.Y--
	}
	if in.IsPressed(input.KeyDown) || in.IsPressed(input.KeyS) {
		dir.Y++
	}
	vel := dir.Normalize().Scale(PlayerSpeed)

	for _, p := range players {
		p.SetVelocity(vel)
		pos := p.Position().Add(vel.Scale(dt))
		pos.X = clamp(pos.X, 0, float64(w.opts.Width))
		pos.Y = clamp(pos.Y, 0, float64(w.opts.Height))
		p.SetPosition(pos)
	}
}

// fire removes the nearest active enemy above the player within HitWidth.
func (w *World) fire(p scene.Entity) {
	pp := p.Position()
	var target scene.Entity
	best := math.Inf(1)
	for _, e := range scene.Active(w.Entities(scene.KindEnemy)) {
		ep := e.Position()
		if ep.Y > pp.Y || math.Abs(ep.X-pp.X) > HitWidth {
			continue
		}
		if d := pp.Y - ep.Y; d < best {
			best, target = d, e
		}
	}
	if target == nil {
		return
	}
	target.SetActive(false)
	p.SetScore(p.Score() + KillScore)
	w.kills++
}

func (w *World) moveEnemies(dt float64) {
	wf, hf := float64(w.opts.Width), float64(w.opts.Height)
	for _, e := range scene.Active(w.Entities(scene.KindEnemy)) {
		pos := e.Position().Add(e.Velocity().Scale(dt))
		e.SetPosition(pos)
		if pos.X < -margin || pos.X > wf+margin || pos.Y < -margin || pos.Y > hf+margin {
			e.SetActive(false)
		}
	}
}

func (w *World) contact(players []scene.Entity) {
	for _, p := range players {
		for _, e := range scene.Active(w.Entities(scene.KindEnemy)) {
			if e.Position().Sub(p.Position()).Len() > ContactRadius {
				continue
			}
			e.SetActive(false)
			p.SetHealth(p.Health() - ContactDamage)
			if p.Health() <= 0 {
				p.SetActive(false)
				w.log.Debug("player down", zap.Uint64("id", p.ID()))
				break
			}
		}
	}
}

func (w *World) spawnTick(dt float64) {
	w.spawnTimer += dt
	for w.spawnTimer >= w.opts.SpawnInterval {
		w.spawnTimer -= w.opts.SpawnInterval
		x := margin + w.rng.Float64()*(float64(w.opts.Width)-2*margin)
		vel := vec.New(w.rng.Float64()*60-30, 60+w.rng.Float64()*60)
		w.Spawn(scene.KindEnemy, vec.New(x, 0), vel)
	}
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// entity adapts an ECS entry to scene.Entity. The entry is looked up on
// every access so the handle stays valid across archetype storage moves.
type entity struct {
	ecs donburi.World
	ent donburi.Entity
}

func (e *entity) entry() *donburi.Entry { return e.ecs.Entry(e.ent) }

func (e *entity) ID() uint64 { return Identity.Get(e.entry()).ID }
func (e *entity) Kind() scene.Kind { return Identity.Get(e.entry()).Kind }

func (e *entity) Position() vec.Vec2 { return Body.Get(e.entry()).Position }
func (e *entity) SetPosition(p vec.Vec2) {
	Body.Get(e.entry()).Position = p
}
func (e *entity) Velocity() vec.Vec2 { return Body.Get(e.entry()).Velocity }
func (e *entity) SetVelocity(v vec.Vec2) {
	Body.Get(e.entry()).Velocity = v
}

func (e *entity) Health() int { return Vitals.Get(e.entry()).Health }
func (e *entity) SetHealth(h int) { Vitals.Get(e.entry()).Health = h }
func (e *entity) Score() int { return Vitals.Get(e.entry()).Score }
func (e *entity) SetScore(s int) { Vitals.Get(e.entry()).Score = s }

func (e *entity) Active() bool { return Vitals.Get(e.entry()).Active }
func (e *entity) SetActive(active bool) { Vitals.Get(e.entry()).Active = active }

// ForReplay builds a world matching a recorded session: sized from its
// header, with as many players as any keyframe lists and the spawner off,
// since keyframes own enemy creation during replay.
func ForReplay(sess *record.Session, log *zap.Logger) *World {
	opts := DefaultOptions()
	opts.SpawnEnemies = false
	if h := sess.Header; h != nil && h.Width > 0 && h.Height > 0 {
		opts.Width, opts.Height = h.Width, h.Height
	}
	opts.Players = 0
	for _, kf := range sess.Keyframes {
		opts.Players = max(opts.Players, len(kf.Players))
	}
	return New(opts, log)
}
