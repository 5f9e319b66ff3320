// Package record exposes the session line format for tools that read or
// write recordings outside this module.
package record

import (
	"go.uber.org/zap"

	internalrecord "github.com/SmitUplenchwar2687/rewind/internal/record"
)

type (
	Header         = internalrecord.Header
	EventKind      = internalrecord.EventKind
	InputEvent     = internalrecord.InputEvent
	EnemySnapshot  = internalrecord.EnemySnapshot
	PlayerSnapshot = internalrecord.PlayerSnapshot
	Keyframe       = internalrecord.Keyframe
	Record         = internalrecord.Record
	Session        = internalrecord.Session
	Encoder        = internalrecord.Encoder
	Decoder        = internalrecord.Decoder
)

const (
	KeyDown = internalrecord.KeyDown
	KeyUp   = internalrecord.KeyUp
)

// ErrMalformed is wrapped by every per-line decode failure.
var ErrMalformed = internalrecord.ErrMalformed

// NewEncoder creates an encoder quantizing times to the given decimals.
func NewEncoder(quantizeDecimals int) *Encoder {
	return internalrecord.NewEncoder(quantizeDecimals)
}

// NewDecoder creates the line decoder. log may be nil.
func NewDecoder(log *zap.Logger) Decoder {
	return internalrecord.NewLineDecoder(log)
}

// DecodeFile decodes a session file from disk.
func DecodeFile(path string, log *zap.Logger) (*Session, error) {
	return internalrecord.DecodeFile(path, log)
}
