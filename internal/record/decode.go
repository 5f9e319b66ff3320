package record

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"go.uber.org/zap"
)

// maxLineSize bounds a single record line. Snapshot lines grow with the
// number of live enemies; 4 MiB leaves ample headroom.
const maxLineSize = 4 * 1024 * 1024

// Decoder turns a recording into a Session. Implementations must not fail
// the whole stream because of a bad line; only read errors are returned.
type Decoder interface {
	Decode(r io.Reader) (*Session, error)
}

// LineDecoder is the hand-rolled decoder for the line format. It depends on
// no serialization library: it scans for field names, extracts raw tokens
// and splits arrays on top-level commas.
type LineDecoder struct {
	log *zap.Logger
}

var _ Decoder = (*LineDecoder)(nil)

// NewLineDecoder creates a decoder that reports skipped lines to log.
// A nil logger discards diagnostics.
func NewLineDecoder(log *zap.Logger) *LineDecoder {
	if log == nil {
		log = zap.NewNop()
	}
	return &LineDecoder{log: log.Named("decoder")}
}

// Decode reads every line of r. Malformed lines are skipped with a warning,
// lines of an unknown type are ignored. The first valid header wins.
func (d *LineDecoder) Decode(r io.Reader) (*Session, error) {
	sess := &Session{}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		rec, err := d.DecodeLine(line)
		if err != nil {
			if errors.Is(err, errUnknownType) {
				sess.Ignored++
				d.log.Debug("ignoring record of unknown type", zap.Int("line", lineNo))
				continue
			}
			sess.Skipped++
			d.log.Warn("record skipped", zap.Int("line", lineNo), zap.Error(err))
			continue
		}

		switch rec.Type {
		case TypeHeader:
			if sess.Header == nil {
				h := rec.Header
				sess.Header = &h
			} else {
				d.log.Warn("duplicate header ignored", zap.Int("line", lineNo))
			}
		case TypeKeyDown, TypeKeyUp:
			sess.Events = append(sess.Events, rec.Event)
		case TypeSnapshot:
			sess.Keyframes = append(sess.Keyframes, rec.Keyframes...)
		}
	}
	if err := scanner.Err(); err != nil {
		return sess, fmt.Errorf("reading recording at line %d: %w", lineNo+1, err)
	}

	sort.SliceStable(sess.Keyframes, func(i, j int) bool {
		return sess.Keyframes[i].Timestamp < sess.Keyframes[j].Timestamp
	})
	if sess.Skipped > 0 {
		d.log.Warn("recording decoded with skipped lines", zap.Int("skipped", sess.Skipped), zap.Int("lines", lineNo))
	}
	return sess, nil
}

var errUnknownType = fmt.Errorf("%w: unknown type", ErrMalformed)

// DecodeLine decodes a single line.
func (d *LineDecoder) DecodeLine(line string) (Record, error) {
	f, err := fields(line)
	if err != nil {
		return Record{}, err
	}
	rawType, ok := f["type"]
	if !ok {
		return Record{}, fmt.Errorf("%w: missing field \"type\"", ErrMalformed)
	}

	switch typ := Type(unquote(rawType)); typ {
	case TypeHeader:
		h, err := decodeHeader(f)
		return Record{Type: typ, Header: h}, err
	case TypeKeyDown, TypeKeyUp:
		ev, err := decodeInput(typ, f)
		return Record{Type: typ, Event: ev}, err
	case TypeSnapshot:
		kfs, err := decodeSnapshot(f)
		return Record{Type: typ, Keyframes: kfs}, err
	default:
		return Record{}, errUnknownType
	}
}

// DecodeFile opens path and decodes it. A missing or unreadable file is an
// error; malformed content is not.
func DecodeFile(path string, log *zap.Logger) (*Session, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening recording: %w", err)
	}
	defer f.Close()
	return NewLineDecoder(log).Decode(f)
}

func decodeHeader(f map[string]string) (Header, error) {
	var h Header
	var err error
	if h.Version, err = intField(f, "version"); err != nil {
		return h, err
	}
	if h.Width, err = intField(f, "w"); err != nil {
		return h, err
	}
	if h.Height, err = intField(f, "h"); err != nil {
		return h, err
	}
	return h, nil
}

func decodeInput(typ Type, f map[string]string) (InputEvent, error) {
	ev := InputEvent{Kind: KeyDown}
	if typ == TypeKeyUp {
		ev.Kind = KeyUp
	}

	var err error
	if ev.Time, err = timeField(f); err != nil {
		return ev, err
	}
	items, err := arrayField(f, "keys")
	if err != nil {
		return ev, err
	}
	ev.Keys = make([]int, 0, len(items))
	for _, it := range items {
		k, err := parseInt(it)
		if err != nil {
			return ev, fmt.Errorf("keys: %w", err)
		}
		ev.Keys = append(ev.Keys, k)
	}
	return ev, nil
}

func decodeSnapshot(f map[string]string) ([]Keyframe, error) {
	t, err := timeField(f)
	if err != nil {
		return nil, err
	}

	var out []Keyframe
	if _, ok := f["enemies"]; ok {
		items, err := arrayField(f, "enemies")
		if err != nil {
			return nil, err
		}
		if len(items) > 0 {
			kf := Keyframe{Timestamp: t, Enemies: make([]EnemySnapshot, 0, len(items))}
			for i, it := range items {
				en, err := decodeEnemy(it)
				if err != nil {
					return nil, fmt.Errorf("enemies[%d]: %w", i, err)
				}
				kf.Enemies = append(kf.Enemies, en)
			}
			out = append(out, kf)
		}
	}
	if _, ok := f["players"]; ok {
		items, err := arrayField(f, "players")
		if err != nil {
			return nil, err
		}
		if len(items) > 0 {
			kf := Keyframe{Timestamp: t, Players: make([]PlayerSnapshot, 0, len(items))}
			for i, it := range items {
				p, err := decodePlayer(it)
				if err != nil {
					return nil, fmt.Errorf("players[%d]: %w", i, err)
				}
				kf.Players = append(kf.Players, p)
			}
			out = append(out, kf)
		}
	}
	return out, nil
}

func decodeEnemy(raw string) (EnemySnapshot, error) {
	var en EnemySnapshot
	f, err := fields(raw)
	if err != nil {
		return en, err
	}
	if en.ID, err = intField(f, "id"); err != nil {
		return en, err
	}
	if en.Position.X, err = floatField(f, "x"); err != nil {
		return en, err
	}
	if en.Position.Y, err = floatField(f, "y"); err != nil {
		return en, err
	}
	if en.Velocity.X, err = floatField(f, "vx"); err != nil {
		return en, err
	}
	if en.Velocity.Y, err = floatField(f, "vy"); err != nil {
		return en, err
	}
	return en, nil
}

func decodePlayer(raw string) (PlayerSnapshot, error) {
	var p PlayerSnapshot
	f, err := fields(raw)
	if err != nil {
		return p, err
	}
	if p.Score, err = intField(f, "score"); err != nil {
		return p, err
	}
	if p.Health, err = intField(f, "health"); err != nil {
		return p, err
	}
	if _, ok := f["id"]; ok {
		if p.ID, err = intField(f, "id"); err != nil {
			return p, err
		}
	}
	return p, nil
}

func intField(f map[string]string, name string) (int, error) {
	raw, ok := f[name]
	if !ok {
		return 0, fmt.Errorf("%w: missing field %q", ErrMalformed, name)
	}
	v, err := parseInt(raw)
	if err != nil {
		return 0, fmt.Errorf("field %q: %w", name, err)
	}
	return v, nil
}

func floatField(f map[string]string, name string) (float64, error) {
	raw, ok := f[name]
	if !ok {
		return 0, fmt.Errorf("%w: missing field %q", ErrMalformed, name)
	}
	v, err := parseFloat(raw)
	if err != nil {
		return 0, fmt.Errorf("field %q: %w", name, err)
	}
	return v, nil
}

func timeField(f map[string]string) (float64, error) {
	t, err := floatField(f, "t")
	if err != nil {
		return 0, err
	}
	if t < 0 || t > MaxTime {
		return 0, fmt.Errorf("%w: time %v out of range [0, %d]", ErrMalformed, t, MaxTime)
	}
	return t, nil
}

func arrayField(f map[string]string, name string) ([]string, error) {
	raw, ok := f[name]
	if !ok {
		return nil, fmt.Errorf("%w: missing field %q", ErrMalformed, name)
	}
	items, err := splitArray(raw)
	if err != nil {
		return nil, fmt.Errorf("field %q: %w", name, err)
	}
	return items, nil
}
