// Package recorder turns per-tick game state into record lines: key
// transitions every tick and entity keyframes on a fixed interval.
package recorder

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/SmitUplenchwar2687/rewind/internal/capture"
	"github.com/SmitUplenchwar2687/rewind/internal/input"
	"github.com/SmitUplenchwar2687/rewind/internal/record"
	"github.com/SmitUplenchwar2687/rewind/internal/scene"
)

// Sink accepts encoded lines. capture.Sink implements it.
type Sink interface {
	Start(ctx context.Context, name string, width, height int) error
	Enqueue(line string) bool
	Stop(timeout time.Duration) capture.Stats
}

// Input is the per-tick key state the recorder reads. input.Manager and the
// replay timeline both provide it.
type Input interface {
	Pressed() []int
	JustPressed() []int
}

// Config controls what the recorder emits.
type Config struct {
	// KeyframeInterval is the session time between entity snapshots, in seconds.
	KeyframeInterval float64
	QuantizeDecimals int
	// ExplicitPlayerIDs writes an "id" on every player entry. Without it an
	// id is written only when list position would be ambiguous.
	ExplicitPlayerIDs bool
	StopTimeout       time.Duration
}

// DefaultConfig matches the capture cadence used by the game.
func DefaultConfig() Config {
	return Config{
		KeyframeInterval: 0.1,
		QuantizeDecimals: record.DefaultQuantizeDecimals,
		StopTimeout:      capture.DefaultStopTimeout,
	}
}

// Recorder is single-threaded: call it from the simulation goroutine.
type Recorder struct {
	sink Sink
	cfg  Config
	log  *zap.Logger
	enc  *record.Encoder

	recording     bool
	name          string
	elapsed       float64
	sinceKeyframe float64
	held          map[int]bool

	enemyIDs   map[uint64]int
	playerIDs  map[uint64]int
	nextEnemy  int
	nextPlayer int
}

func New(sink Sink, cfg Config, log *zap.Logger) *Recorder {
	if cfg.KeyframeInterval <= 0 {
		cfg.KeyframeInterval = DefaultConfig().KeyframeInterval
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Recorder{
		sink: sink,
		cfg:  cfg,
		log:  log.Named("recorder"),
		enc:  record.NewEncoder(cfg.QuantizeDecimals),
	}
}

// Start opens a session and resets all per-session state, including entity
// identities.
func (r *Recorder) Start(ctx context.Context, name string, width, height int) error {
	if r.recording {
		return capture.ErrAlreadyRunning
	}
	if err := r.sink.Start(ctx, name, width, height); err != nil {
		return fmt.Errorf("starting recording: %w", err)
	}

	r.recording = true
	r.name = name
	r.elapsed = 0
	// The first tick carries a keyframe.
	r.sinceKeyframe = r.cfg.KeyframeInterval
	r.held = make(map[int]bool)
	r.enemyIDs = make(map[uint64]int)
	r.playerIDs = make(map[uint64]int)
	r.nextEnemy, r.nextPlayer = 0, 0

	r.log.Info("recording started", zap.String("session", name), zap.Int("w", width), zap.Int("h", height))
	return nil
}

func (r *Recorder) Recording() bool { return r.recording }

// Elapsed returns the session time in seconds.
func (r *Recorder) Elapsed() float64 { return r.elapsed }

// Update records one tick of dt seconds.
func (r *Recorder) Update(dt float64, sc scene.Scene, in Input) {
	if !r.recording {
		return
	}
	r.elapsed += dt

	just := in.JustPressed()
	pressed := in.Pressed()
	if len(just) > 0 {
		r.sink.Enqueue(r.enc.Input(record.InputEvent{Time: r.elapsed, Keys: just, Kind: record.KeyDown}))
	}

	now := make(map[int]bool, len(pressed))
	for _, k := range pressed {
		now[k] = true
	}
	// A key tapped within one tick is just-pressed but never held, so it is
	// released in the same tick.
	released := make(map[int]bool)
	for k := range r.held {
		if !now[k] {
			released[k] = true
		}
	}
	for _, k := range just {
		if !now[k] {
			released[k] = true
		}
	}
	if len(released) > 0 {
		r.sink.Enqueue(r.enc.Input(record.InputEvent{Time: r.elapsed, Keys: input.SortedKeys(released), Kind: record.KeyUp}))
	}
	r.held = now

	r.sinceKeyframe += dt
	if r.sinceKeyframe >= r.cfg.KeyframeInterval {
		r.sinceKeyframe = 0
		r.keyframe(sc)
	}
}

func (r *Recorder) keyframe(sc scene.Scene) {
	if enemies := r.enemies(sc); len(enemies) > 0 {
		r.sink.Enqueue(r.enc.Enemies(r.elapsed, enemies))
	}
	if players := r.players(sc); len(players) > 0 {
		r.sink.Enqueue(r.enc.Players(r.elapsed, players))
	}
}

func (r *Recorder) enemies(sc scene.Scene) []record.EnemySnapshot {
	active := scene.Active(sc.Entities(scene.KindEnemy))
	out := make([]record.EnemySnapshot, 0, len(active))
	for _, e := range active {
		id, ok := r.enemyIDs[e.ID()]
		if !ok {
			r.nextEnemy++
			id = r.nextEnemy
			r.enemyIDs[e.ID()] = id
		}
		out = append(out, record.EnemySnapshot{ID: id, Position: e.Position(), Velocity: e.Velocity()})
	}
	return out
}

func (r *Recorder) players(sc scene.Scene) []record.PlayerSnapshot {
	active := scene.Active(sc.Entities(scene.KindPlayer))
	out := make([]record.PlayerSnapshot, 0, len(active))
	for _, e := range active {
		id, ok := r.playerIDs[e.ID()]
		if !ok {
			r.nextPlayer++
			id = r.nextPlayer
			r.playerIDs[e.ID()] = id
		}
		out = append(out, record.PlayerSnapshot{ID: id, Score: e.Score(), Health: e.Health()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })

	// Positional identity holds only while the list is exactly 1..n.
	explicit := r.cfg.ExplicitPlayerIDs
	for i, p := range out {
		if p.ID != i+1 {
			explicit = true
			break
		}
	}
	if !explicit {
		for i := range out {
			out[i].ID = 0
		}
	}
	return out
}

// Stop closes the session and returns the capture statistics.
func (r *Recorder) Stop() capture.Stats {
	if !r.recording {
		return capture.Stats{}
	}
	r.recording = false
	st := r.sink.Stop(r.cfg.StopTimeout)
	r.log.Info("recording stopped",
		zap.String("session", r.name),
		zap.Float64("elapsed", r.elapsed),
		zap.Int("enemies", r.nextEnemy),
		zap.Int("players", r.nextPlayer))
	return st
}
