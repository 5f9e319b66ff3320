package replay

import (
	"fmt"
	"slices"
	"strings"

	"github.com/SmitUplenchwar2687/rewind/internal/record"
)

// Record categories understood by Filter.Kinds.
const (
	KindKeyDown = "keydown"
	KindKeyUp   = "keyup"
	KindEnemies = "enemies"
	KindPlayers = "players"
)

// Filter defines criteria for selecting records of a session.
type Filter struct {
	Kinds []string // Only include these categories (empty = all)
	Keys  []int    // Only include input events touching these keys (empty = all)
	From  float64  // Only include records at or after this time, seconds
	To    float64  // Only include records at or before this time (0 = no limit)
}

// ParseKinds splits a comma-separated category list. "input" expands to
// both key event kinds and "snapshot" to both entity categories.
func ParseKinds(s string) ([]string, error) {
	var out []string
	for _, part := range strings.Split(s, ",") {
		switch k := strings.TrimSpace(strings.ToLower(part)); k {
		case "":
		case KindKeyDown, KindKeyUp, KindEnemies, KindPlayers:
			out = append(out, k)
		case "input":
			out = append(out, KindKeyDown, KindKeyUp)
		case "snapshot":
			out = append(out, KindEnemies, KindPlayers)
		default:
			return nil, fmt.Errorf("unknown record kind %q, must be one of: keydown, keyup, enemies, players, input, snapshot", k)
		}
	}
	return out, nil
}

// MatchEvent returns true if the input event passes the filter.
func (f *Filter) MatchEvent(ev record.InputEvent) bool {
	if len(f.Kinds) > 0 && !slices.Contains(f.Kinds, ev.Kind.String()) {
		return false
	}
	if len(f.Keys) > 0 && !slices.ContainsFunc(ev.Keys, func(k int) bool { return slices.Contains(f.Keys, k) }) {
		return false
	}
	return f.inWindow(ev.Time)
}

// MatchKeyframe returns true if the keyframe passes the filter.
func (f *Filter) MatchKeyframe(kf record.Keyframe) bool {
	if len(f.Kinds) > 0 {
		if kf.HasEnemies() && !slices.Contains(f.Kinds, KindEnemies) {
			return false
		}
		if kf.HasPlayers() && !slices.Contains(f.Kinds, KindPlayers) {
			return false
		}
	}
	if len(f.Keys) > 0 {
		return false
	}
	return f.inWindow(kf.Timestamp)
}

// Apply returns a copy of sess holding only the matching records.
func (f *Filter) Apply(sess *record.Session) *record.Session {
	out := &record.Session{
		Header:  sess.Header,
		Skipped: sess.Skipped,
		Ignored: sess.Ignored,
	}
	for _, ev := range sess.Events {
		if f.MatchEvent(ev) {
			out.Events = append(out.Events, ev)
		}
	}
	for _, kf := range sess.Keyframes {
		if f.MatchKeyframe(kf) {
			out.Keyframes = append(out.Keyframes, kf)
		}
	}
	return out
}

func (f *Filter) inWindow(t float64) bool {
	if t < f.From {
		return false
	}
	if f.To > 0 && t > f.To {
		return false
	}
	return true
}
