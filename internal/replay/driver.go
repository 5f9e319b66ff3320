package replay

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/SmitUplenchwar2687/rewind/internal/clock"
	"github.com/SmitUplenchwar2687/rewind/internal/input"
	"github.com/SmitUplenchwar2687/rewind/internal/record"
	"github.com/SmitUplenchwar2687/rewind/internal/scene"
)

var (
	// ErrEmptySession is returned by Run when there is nothing to replay.
	ErrEmptySession = errors.New("session has no events or keyframes")
	// ErrSessionTooLong is returned by Run for sessions beyond record.MaxTime.
	ErrSessionTooLong = errors.New("session is too long to replay")
)

// Stepper is the host simulation. It runs one tick reading input from in.
type Stepper interface {
	Step(dt float64, in input.Source)
}

// Driver sequences one replay tick: recorded input first, then the host
// simulation, then every keyframe that is due, so recorded state wins.
type Driver struct {
	session    *record.Session
	scene      scene.Scene
	stepper    Stepper
	timeline   *Timeline
	reconciler *Reconciler
	log        *zap.Logger

	kfAt     []time.Duration
	kfCursor int
	ticks    int
}

// TickReport describes what one Tick consumed.
type TickReport struct {
	Elapsed   float64 `json:"elapsed"`
	Events    int     `json:"events"`
	Keyframes int     `json:"keyframes"`
}

// NewDriver prepares a replay of sess into sc. stepper may be nil when the
// scene has no simulation of its own.
func NewDriver(sess *record.Session, sc scene.Scene, stepper Stepper, log *zap.Logger) *Driver {
	if log == nil {
		log = zap.NewNop()
	}
	d := &Driver{
		session:    sess,
		scene:      sc,
		stepper:    stepper,
		timeline:   NewTimeline(),
		reconciler: NewReconciler(sc, log),
		log:        log.Named("replay"),
	}
	d.timeline.Load(sess.Events)
	d.kfAt = make([]time.Duration, len(sess.Keyframes))
	for i, kf := range sess.Keyframes {
		d.kfAt[i] = clock.FromSeconds(kf.Timestamp)
	}
	return d
}

// Tick advances the replay by dt seconds.
func (d *Driver) Tick(dt float64) TickReport {
	before := d.timeline.Applied()
	d.timeline.Advance(dt)
	if d.stepper != nil {
		d.stepper.Step(dt, d.timeline)
	}

	now := d.timeline.ElapsedDuration()
	applied := 0
	for d.kfCursor < len(d.kfAt) && d.kfAt[d.kfCursor] <= now {
		d.reconciler.Apply(d.session.Keyframes[d.kfCursor])
		d.kfCursor++
		applied++
	}
	d.ticks++

	return TickReport{
		Elapsed:   d.timeline.Elapsed(),
		Events:    d.timeline.Applied() - before,
		Keyframes: applied,
	}
}

// Done reports whether every event and keyframe has been consumed.
func (d *Driver) Done() bool {
	return d.timeline.Done() && d.kfCursor >= len(d.kfAt)
}

// Abort abandons the replay. The next Tick starts from time zero with no
// bindings.
func (d *Driver) Abort() {
	d.timeline.Reset()
	d.reconciler.Reset()
	d.kfCursor = 0
	d.ticks = 0
}

func (d *Driver) Timeline() *Timeline     { return d.timeline }
func (d *Driver) Reconciler() *Reconciler { return d.reconciler }

// RunOptions controls a headless replay loop.
type RunOptions struct {
	// FPS is the fixed tick rate. Defaults to 60.
	FPS int
	// Speed scales playback against wall time: 1 is real time, 0 runs as
	// fast as possible.
	Speed float64
	// Tail keeps ticking this many seconds after the last record.
	Tail float64
	// Clock paces playback when Speed > 0. Defaults to wall time.
	Clock clock.Clock
}

// Frame is the observable state after one tick.
type Frame struct {
	Tick      int           `json:"tick"`
	Elapsed   float64       `json:"elapsed"`
	Pressed   []int         `json:"pressed"`
	Events    int           `json:"events"`
	Keyframes int           `json:"keyframes"`
	Entities  []EntityState `json:"entities"`
}

// EntityState is a serializable view of a scene entity.
type EntityState struct {
	Kind   string  `json:"kind"`
	ID     uint64  `json:"id"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	VX     float64 `json:"vx"`
	VY     float64 `json:"vy"`
	Health int     `json:"health"`
	Score  int     `json:"score"`
	Active bool    `json:"active"`
}

// Summary aggregates replay statistics.
type Summary struct {
	Events       int             `json:"events"`
	Keyframes    int             `json:"keyframes"`
	Frames       int             `json:"frames"`
	Skipped      int             `json:"skipped"`
	Duration     float64         `json:"duration"`      // session time replayed, seconds
	WallDuration time.Duration   `json:"wall_duration"` // actual wall clock time
	Bindings     ReconcilerStats `json:"bindings"`
}

// Run ticks at a fixed rate until the session is exhausted plus the tail.
// cb, if non-nil, receives every frame.
func (d *Driver) Run(ctx context.Context, opts RunOptions, cb func(Frame)) (*Summary, error) {
	if len(d.session.Events) == 0 && len(d.session.Keyframes) == 0 {
		return nil, ErrEmptySession
	}
	if d.session.Duration()+opts.Tail > record.MaxTime {
		return nil, fmt.Errorf("%w: %.0fs", ErrSessionTooLong, d.session.Duration())
	}
	if opts.FPS <= 0 {
		opts.FPS = 60
	}
	if opts.Speed < 0 {
		opts.Speed = 0
	}
	if opts.Clock == nil {
		opts.Clock = clock.NewRealClock()
	}

	dt := 1 / float64(opts.FPS)
	tickWall := time.Duration(float64(time.Second) / float64(opts.FPS))
	end := clock.FromSeconds(d.session.Duration() + opts.Tail)

	summary := &Summary{Skipped: d.session.Skipped}
	wallStart := time.Now()

	for !d.Done() || d.timeline.ElapsedDuration() < end {
		select {
		case <-ctx.Done():
			summary.Duration = d.timeline.Elapsed()
			summary.WallDuration = time.Since(wallStart)
			return summary, ctx.Err()
		default:
		}

		rep := d.Tick(dt)
		summary.Frames++
		summary.Events += rep.Events
		summary.Keyframes += rep.Keyframes
		if cb != nil {
			cb(d.frame(rep))
		}

		if opts.Speed > 0 {
			wait := time.Duration(float64(tickWall) / opts.Speed)
			select {
			case <-ctx.Done():
				summary.Duration = d.timeline.Elapsed()
				summary.WallDuration = time.Since(wallStart)
				return summary, ctx.Err()
			case <-opts.Clock.After(wait):
			}
		}
	}

	summary.Duration = d.timeline.Elapsed()
	summary.WallDuration = time.Since(wallStart)
	summary.Bindings = d.reconciler.Stats()
	d.log.Debug("replay finished",
		zap.Int("frames", summary.Frames),
		zap.Int("events", summary.Events),
		zap.Int("keyframes", summary.Keyframes))
	return summary, nil
}

func (d *Driver) frame(rep TickReport) Frame {
	f := Frame{
		Tick:      d.ticks,
		Elapsed:   rep.Elapsed,
		Pressed:   d.timeline.Pressed(),
		Events:    rep.Events,
		Keyframes: rep.Keyframes,
	}
	for _, kind := range []scene.Kind{scene.KindPlayer, scene.KindEnemy} {
		for _, e := range d.scene.Entities(kind) {
			p, v := e.Position(), e.Velocity()
			f.Entities = append(f.Entities, EntityState{
				Kind:   kind.String(),
				ID:     e.ID(),
				X:      p.X,
				Y:      p.Y,
				VX:     v.X,
				VY:     v.Y,
				Health: e.Health(),
				Score:  e.Score(),
				Active: e.Active(),
			})
		}
	}
	return f
}
