// Package record defines the line-oriented session format: one flat,
// self-describing object per line, with at most one level of arrays of
// flat objects. The encoder and the decoder in this package are the only
// code that knows the textual shape of a line.
package record

import (
	"errors"
	"math"

	"github.com/SmitUplenchwar2687/rewind/internal/vec"
)

// Version is written into every session header.
const Version = 1

// Type is the value of the "type" field of a line.
type Type string

const (
	TypeHeader   Type = "header"
	TypeKeyDown  Type = "keydown"
	TypeKeyUp    Type = "keyup"
	TypeSnapshot Type = "snapshot"
)

// MaxTime bounds session time in seconds. Lines stamped later than this, or
// before zero, are malformed.
const MaxTime = 24 * 60 * 60

// ErrMalformed is wrapped by every per-line decode failure.
var ErrMalformed = errors.New("malformed record")

// Header describes the coordinate space of a recording.
type Header struct {
	Version int `json:"version"`
	Width   int `json:"w"`
	Height  int `json:"h"`
}

// EventKind distinguishes key presses from key releases.
type EventKind int

const (
	KeyDown EventKind = iota + 1
	KeyUp
)

func (k EventKind) String() string {
	switch k {
	case KeyDown:
		return string(TypeKeyDown)
	case KeyUp:
		return string(TypeKeyUp)
	default:
		return "unknown"
	}
}

// MarshalText renders the kind by its line type name.
func (k EventKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// InputEvent is one set of key transitions at a point in session time.
type InputEvent struct {
	Time float64   `json:"t"`
	Keys []int     `json:"keys"`
	Kind EventKind `json:"kind"`
}

// EnemySnapshot is the recorded state of one enemy.
type EnemySnapshot struct {
	ID       int      `json:"id"`
	Position vec.Vec2 `json:"position"`
	Velocity vec.Vec2 `json:"velocity"`
}

// PlayerSnapshot is the recorded state of one player. ID is zero when the
// line did not carry one; the player's identity is then its position in the
// list plus one.
type PlayerSnapshot struct {
	ID     int `json:"id,omitempty"`
	Score  int `json:"score"`
	Health int `json:"health"`
}

// Keyframe is a timestamped snapshot of one entity category. A nil slice
// means the category is absent from this keyframe; at most one is set.
type Keyframe struct {
	Timestamp float64          `json:"t"`
	Enemies   []EnemySnapshot  `json:"enemies,omitempty"`
	Players   []PlayerSnapshot `json:"players,omitempty"`
}

// HasEnemies reports whether the keyframe carries the enemy category.
func (k Keyframe) HasEnemies() bool { return k.Enemies != nil }

// HasPlayers reports whether the keyframe carries the player category.
func (k Keyframe) HasPlayers() bool { return k.Players != nil }

// PlayerID returns the identity of the i-th player snapshot.
func (k Keyframe) PlayerID(i int) int {
	if id := k.Players[i].ID; id > 0 {
		return id
	}
	return i + 1
}

// Record is one decoded line. Exactly the field matching Type is meaningful;
// a snapshot line carrying both categories yields two keyframes.
type Record struct {
	Type      Type
	Header    Header
	Event     InputEvent
	Keyframes []Keyframe
}

// Session is everything decoded from one recording.
type Session struct {
	// Header is nil when no valid header line was found.
	Header    *Header
	Events    []InputEvent
	Keyframes []Keyframe
	// Skipped counts malformed lines, Ignored counts lines of unknown type.
	Skipped int
	Ignored int
}

// Duration returns the latest time mentioned by any event or keyframe.
func (s *Session) Duration() float64 {
	var d float64
	for _, ev := range s.Events {
		d = math.Max(d, ev.Time)
	}
	for _, kf := range s.Keyframes {
		d = math.Max(d, kf.Timestamp)
	}
	return d
}
