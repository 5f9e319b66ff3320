// Package recorder lets a host game capture sessions: a capture sink owns
// the background writer and a recorder turns per-tick state into lines.
package recorder

import (
	"go.uber.org/zap"

	"github.com/SmitUplenchwar2687/rewind/internal/capture"
	internalrecorder "github.com/SmitUplenchwar2687/rewind/internal/recorder"
	"github.com/SmitUplenchwar2687/rewind/internal/storage"
)

// Recorder emits key transitions every tick and keyframes on an interval.
type Recorder = internalrecorder.Recorder

// Config controls what the recorder emits.
type Config = internalrecorder.Config

// Sink is the asynchronous line writer a recorder feeds.
type Sink = capture.Sink

// SinkOptions configures a Sink.
type SinkOptions = capture.Options

// Stats describes one finished capture.
type Stats = capture.Stats

// ErrAlreadyRunning is returned when starting a second concurrent session.
var ErrAlreadyRunning = capture.ErrAlreadyRunning

// DefaultConfig matches the capture cadence used by the game.
func DefaultConfig() Config {
	return internalrecorder.DefaultConfig()
}

// NewSink creates a capture sink writing to store.
func NewSink(store storage.Store, opts SinkOptions, log *zap.Logger) *Sink {
	return capture.New(store, opts, log)
}

// New creates a recorder over sink.
func New(sink *Sink, cfg Config, log *zap.Logger) *Recorder {
	return internalrecorder.New(sink, cfg, log)
}
