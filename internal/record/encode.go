package record

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// DefaultQuantizeDecimals is the number of decimal digits kept for timestamps.
const DefaultQuantizeDecimals = 3

// Encoder turns logical records into lines. It holds no per-session state
// and is safe for concurrent use.
type Encoder struct {
	decimals int
	scale    float64
}

// NewEncoder returns an encoder that rounds timestamps to the given number
// of decimal digits. Negative values are treated as zero.
func NewEncoder(quantizeDecimals int) *Encoder {
	if quantizeDecimals < 0 {
		quantizeDecimals = 0
	}
	return &Encoder{
		decimals: quantizeDecimals,
		scale:    math.Pow10(quantizeDecimals),
	}
}

// Quantize rounds t the same way it will be written.
func (e *Encoder) Quantize(t float64) float64 {
	return math.Round(t*e.scale) / e.scale
}

// Header encodes the session header line.
func (e *Encoder) Header(h Header) string {
	return fmt.Sprintf(`{"type":"header","version":%d,"w":%d,"h":%d}`, h.Version, h.Width, h.Height)
}

// Input encodes a keydown or keyup line. Any kind other than KeyUp,
// including the zero value, is written as keydown.
func (e *Encoder) Input(ev InputEvent) string {
	typ := TypeKeyDown
	if ev.Kind == KeyUp {
		typ = TypeKeyUp
	}
	var b strings.Builder
	b.WriteString(`{"type":"`)
	b.WriteString(string(typ))
	b.WriteString(`","t":`)
	b.WriteString(e.time(ev.Time))
	b.WriteString(`,"keys":[`)
	for i, k := range ev.Keys {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.Itoa(k))
	}
	b.WriteString("]}")
	return b.String()
}

// Enemies encodes an enemy snapshot line.
func (e *Encoder) Enemies(t float64, enemies []EnemySnapshot) string {
	var b strings.Builder
	b.WriteString(`{"type":"snapshot","t":`)
	b.WriteString(e.time(t))
	b.WriteString(`,"enemies":[`)
	for i, en := range enemies {
		if i > 0 {
			b.WriteByte(',')
		}
		fmt.Fprintf(&b, `{"id":%d,"x":%s,"y":%s,"vx":%s,"vy":%s}`,
			en.ID,
			coord(en.Position.X), coord(en.Position.Y),
			coord(en.Velocity.X), coord(en.Velocity.Y))
	}
	b.WriteString("]}")
	return b.String()
}

// Players encodes a player snapshot line. The "id" field is written only
// for snapshots that carry an explicit ID.
func (e *Encoder) Players(t float64, players []PlayerSnapshot) string {
	var b strings.Builder
	b.WriteString(`{"type":"snapshot","t":`)
	b.WriteString(e.time(t))
	b.WriteString(`,"players":[`)
	for i, p := range players {
		if i > 0 {
			b.WriteByte(',')
		}
		if p.ID > 0 {
			fmt.Fprintf(&b, `{"id":%d,"score":%d,"health":%d}`, p.ID, p.Score, p.Health)
		} else {
			fmt.Fprintf(&b, `{"score":%d,"health":%d}`, p.Score, p.Health)
		}
	}
	b.WriteString("]}")
	return b.String()
}

// Encode dispatches on r.Type and returns one line per logical record.
// A keyframe list produces one snapshot line per category present.
func (e *Encoder) Encode(r Record) ([]string, error) {
	switch r.Type {
	case TypeHeader:
		return []string{e.Header(r.Header)}, nil
	case TypeKeyDown, TypeKeyUp:
		ev := r.Event
		if r.Type == TypeKeyDown {
			ev.Kind = KeyDown
		} else {
			ev.Kind = KeyUp
		}
		return []string{e.Input(ev)}, nil
	case TypeSnapshot:
		var lines []string
		for _, kf := range r.Keyframes {
			if len(kf.Enemies) > 0 {
				lines = append(lines, e.Enemies(kf.Timestamp, kf.Enemies))
			}
			if len(kf.Players) > 0 {
				lines = append(lines, e.Players(kf.Timestamp, kf.Players))
			}
		}
		return lines, nil
	default:
		return nil, fmt.Errorf("encode: unknown record type %q", r.Type)
	}
}

func (e *Encoder) time(t float64) string {
	q := e.Quantize(t)
	if q == 0 {
		q = 0 // normalise -0
	}
	return strconv.FormatFloat(q, 'f', -1, 64)
}

func coord(v float64) string {
	s := strconv.FormatFloat(v, 'f', 2, 64)
	if s == "-0.00" {
		return "0.00"
	}
	return s
}
