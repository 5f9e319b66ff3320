// Package replay exposes deterministic playback of recorded sessions.
package replay

import (
	"context"

	"go.uber.org/zap"

	"github.com/SmitUplenchwar2687/rewind/internal/input"
	internalreplay "github.com/SmitUplenchwar2687/rewind/internal/replay"
	"github.com/SmitUplenchwar2687/rewind/internal/scene"
	"github.com/SmitUplenchwar2687/rewind/internal/vec"
	"github.com/SmitUplenchwar2687/rewind/pkg/record"
	"github.com/SmitUplenchwar2687/rewind/pkg/storage"
)

type (
	Timeline   = internalreplay.Timeline
	Reconciler = internalreplay.Reconciler
	Driver     = internalreplay.Driver
	Stepper    = internalreplay.Stepper
	RunOptions = internalreplay.RunOptions
	Frame      = internalreplay.Frame
	Summary    = internalreplay.Summary
	Filter     = internalreplay.Filter

	// Scene is what the host game exposes to the reconciler.
	Scene = scene.Scene
	// Entity is a live handle to one simulated object.
	Entity = scene.Entity
	Kind   = scene.Kind
	Vec2   = vec.Vec2
	// InputSource is the key state a Stepper reads each tick.
	InputSource = input.Source
)

const (
	KindEnemy  = scene.KindEnemy
	KindPlayer = scene.KindPlayer
)

// NewTimeline creates an empty input timeline.
func NewTimeline() *Timeline {
	return internalreplay.NewTimeline()
}

// NewReconciler binds recorded entity ids to entities of sc.
func NewReconciler(sc Scene, log *zap.Logger) *Reconciler {
	return internalreplay.NewReconciler(sc, log)
}

// NewDriver sequences a replay of sess over sc.
func NewDriver(sess *record.Session, sc Scene, stepper Stepper, log *zap.Logger) *Driver {
	return internalreplay.NewDriver(sess, sc, stepper, log)
}

// Load opens and decodes a stored session.
func Load(ctx context.Context, store storage.Store, name string, log *zap.Logger) (*record.Session, error) {
	return internalreplay.Load(ctx, store, name, log)
}
