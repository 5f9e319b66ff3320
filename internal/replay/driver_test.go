package replay

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/SmitUplenchwar2687/rewind/internal/clock"
	"github.com/SmitUplenchwar2687/rewind/internal/input"
	"github.com/SmitUplenchwar2687/rewind/internal/record"
	"github.com/SmitUplenchwar2687/rewind/internal/scene"
	"github.com/SmitUplenchwar2687/rewind/internal/scene/scenetest"
	"github.com/SmitUplenchwar2687/rewind/internal/vec"
)

const scenario = `{"type":"header","version":1,"w":1024,"h":768}
{"type":"keydown","t":0.5,"keys":[90]}
{"type":"keyup","t":0.6,"keys":[90]}
{"type":"snapshot","t":1,"enemies":[{"id":1,"x":100.00,"y":50.00,"vx":10.00,"vy":0.00}]}
`

// drift is a stepper that integrates velocities badly and records the
// input it saw each tick.
type drift struct {
	sc      *scenetest.Scene
	pressed []bool
}

func (d *drift) Step(dt float64, in input.Source) {
	d.pressed = append(d.pressed, in.IsPressed(90))
	for _, e := range d.sc.All(scene.KindEnemy) {
		e.Pos = e.Pos.Add(e.Vel.Scale(dt * 3)).Add(vec.New(0, 7))
	}
}

func decodeScenario(t *testing.T) *record.Session {
	t.Helper()
	sess, err := record.NewLineDecoder(nil).Decode(strings.NewReader(scenario))
	if err != nil {
		t.Fatal(err)
	}
	return sess
}

func TestDriver_Scenario(t *testing.T) {
	sc := scenetest.New()
	step := &drift{sc: sc}
	d := NewDriver(decodeScenario(t), sc, step, nil)

	for i := 0; i < 100; i++ {
		d.Tick(0.01)
	}

	// Input was applied before the simulation step of the same tick.
	for i, p := range step.pressed {
		now := float64(i+1) / 100
		want := now >= 0.5 && now < 0.6
		if p != want {
			t.Fatalf("stepper saw key 90 = %v at %.2f, want %v", p, now, want)
		}
	}

	e, ok := d.Reconciler().Bound(scene.KindEnemy, 1)
	if !ok {
		t.Fatal("enemy 1 not bound at t=1.00")
	}
	// The keyframe is applied after the simulation step, so recorded state wins.
	if e.Position() != vec.New(100, 50) || e.Velocity() != vec.New(10, 0) {
		t.Errorf("enemy at %v moving %v, want (100,50) moving (10,0)", e.Position(), e.Velocity())
	}
	if !d.Done() {
		t.Error("driver not done after the last record")
	}
}

func TestDriver_Abort(t *testing.T) {
	sc := scenetest.New()
	d := NewDriver(decodeScenario(t), sc, nil, nil)
	for i := 0; i < 110; i++ {
		d.Tick(0.01)
	}
	d.Abort()

	if d.Done() || d.Timeline().Elapsed() != 0 || d.Timeline().Applied() != 0 {
		t.Error("Abort did not rewind")
	}
	if st := d.Reconciler().Stats(); st.Enemies != 0 {
		t.Errorf("bindings after Abort = %+v", st)
	}
}

func TestDriver_Run(t *testing.T) {
	sc := scenetest.New()
	d := NewDriver(decodeScenario(t), sc, nil, nil)

	var frames []Frame
	sum, err := d.Run(context.Background(), RunOptions{FPS: 50, Tail: 0.2}, func(f Frame) {
		frames = append(frames, f)
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if sum.Events != 2 || sum.Keyframes != 1 {
		t.Errorf("summary = %+v, want 2 events and 1 keyframe", sum)
	}
	// 1.0s of records plus 0.2s tail at 50 fps.
	if sum.Frames != 60 || len(frames) != 60 {
		t.Errorf("frames = %d (%d delivered), want 60", sum.Frames, len(frames))
	}
	if sum.Bindings.Enemies != 1 {
		t.Errorf("bindings = %+v", sum.Bindings)
	}

	last := frames[len(frames)-1]
	if len(last.Entities) != 1 || last.Entities[0].Kind != "enemy" || !last.Entities[0].Active {
		t.Errorf("last frame entities = %+v", last.Entities)
	}
	if f := frames[24]; len(f.Pressed) != 1 || f.Pressed[0] != 90 {
		t.Errorf("frame at 0.50 pressed = %v, want [90]", f.Pressed)
	}
}

func TestDriver_RunPacedByClock(t *testing.T) {
	vc := clock.NewVirtualClock(time.Unix(0, 0))
	d := NewDriver(decodeScenario(t), scenetest.New(), nil, nil)

	done := make(chan error, 1)
	go func() {
		_, err := d.Run(context.Background(), RunOptions{FPS: 10, Speed: 1, Clock: vc}, nil)
		done <- err
	}()

	// Release ticks until the run completes.
	deadline := time.After(5 * time.Second)
	for {
		select {
		case err := <-done:
			if err != nil {
				t.Fatalf("Run() error = %v", err)
			}
			return
		case <-deadline:
			t.Fatal("paced run did not finish")
		default:
			vc.Advance(100 * time.Millisecond)
			time.Sleep(time.Millisecond)
		}
	}
}

func TestDriver_RunCancelled(t *testing.T) {
	d := NewDriver(decodeScenario(t), scenetest.New(), nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sum, err := d.Run(ctx, RunOptions{}, nil)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Run() error = %v, want context.Canceled", err)
	}
	if sum == nil || sum.Frames != 0 {
		t.Errorf("summary = %+v", sum)
	}
}

func TestDriver_RunEmpty(t *testing.T) {
	d := NewDriver(&record.Session{}, scenetest.New(), nil, nil)
	if _, err := d.Run(context.Background(), RunOptions{}, nil); !errors.Is(err, ErrEmptySession) {
		t.Errorf("Run() error = %v, want ErrEmptySession", err)
	}
}

func TestDriver_RunRejectsOverlongSession(t *testing.T) {
	sess := &record.Session{
		Keyframes: []record.Keyframe{{Timestamp: 1e9, Players: []record.PlayerSnapshot{{Score: 1, Health: 1}}}},
	}
	d := NewDriver(sess, scenetest.New(), nil, nil)
	sum, err := d.Run(context.Background(), RunOptions{}, nil)
	if !errors.Is(err, ErrSessionTooLong) {
		t.Fatalf("Run() error = %v, want ErrSessionTooLong", err)
	}
	if sum != nil {
		t.Errorf("summary = %+v, want nil", sum)
	}
}
