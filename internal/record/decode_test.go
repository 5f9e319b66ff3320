package record

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

const scenario = `{"type":"header","version":1,"w":1024,"h":768}
{"type":"keydown","t":0.5,"keys":[90]}
{"type":"keyup","t":0.6,"keys":[90]}
{"type":"snapshot","t":1,"enemies":[{"id":1,"x":100.00,"y":50.00,"vx":10.00,"vy":0.00}]}
`

func decodeString(t *testing.T, s string) *Session {
	t.Helper()
	sess, err := NewLineDecoder(nil).Decode(strings.NewReader(s))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	return sess
}

func TestDecode_Scenario(t *testing.T) {
	sess := decodeString(t, scenario)

	if sess.Header == nil {
		t.Fatal("header not decoded")
	}
	if *sess.Header != (Header{Version: 1, Width: 1024, Height: 768}) {
		t.Errorf("header = %+v", *sess.Header)
	}
	if len(sess.Events) != 2 {
		t.Fatalf("got %d events, want 2", len(sess.Events))
	}
	down, up := sess.Events[0], sess.Events[1]
	if down.Kind != KeyDown || down.Time != 0.5 || len(down.Keys) != 1 || down.Keys[0] != 90 {
		t.Errorf("keydown = %+v", down)
	}
	if up.Kind != KeyUp || up.Time != 0.6 {
		t.Errorf("keyup = %+v", up)
	}

	if len(sess.Keyframes) != 1 {
		t.Fatalf("got %d keyframes, want 1", len(sess.Keyframes))
	}
	kf := sess.Keyframes[0]
	if kf.Timestamp != 1 || !kf.HasEnemies() || kf.HasPlayers() {
		t.Fatalf("keyframe = %+v", kf)
	}
	en := kf.Enemies[0]
	if en.ID != 1 || en.Position.X != 100 || en.Position.Y != 50 || en.Velocity.X != 10 || en.Velocity.Y != 0 {
		t.Errorf("enemy = %+v", en)
	}
	if sess.Skipped != 0 || sess.Ignored != 0 {
		t.Errorf("skipped = %d, ignored = %d, want 0, 0", sess.Skipped, sess.Ignored)
	}
	if got := sess.Duration(); got != 1 {
		t.Errorf("Duration() = %v, want 1", got)
	}
}

func TestDecode_FieldOrderAndExtraFields(t *testing.T) {
	sess := decodeString(t, `{"keys":[87,65],"seq":7,"t":2.25,"type":"keydown","meta":{"src":"pad"}}
{"players":[{"health":80,"score":120,"combo":[1,2]}],"type":"snapshot","t":3}
`)
	if len(sess.Events) != 1 || sess.Events[0].Time != 2.25 || len(sess.Events[0].Keys) != 2 {
		t.Fatalf("events = %+v", sess.Events)
	}
	if len(sess.Keyframes) != 1 || !sess.Keyframes[0].HasPlayers() {
		t.Fatalf("keyframes = %+v", sess.Keyframes)
	}
	p := sess.Keyframes[0].Players[0]
	if p.Score != 120 || p.Health != 80 {
		t.Errorf("player = %+v, want score 120 health 80", p)
	}
	if id := sess.Keyframes[0].PlayerID(0); id != 1 {
		t.Errorf("PlayerID(0) = %d, want positional id 1", id)
	}
}

func TestDecode_ExplicitPlayerID(t *testing.T) {
	sess := decodeString(t, `{"type":"snapshot","t":1,"players":[{"id":4,"score":1,"health":2}]}`)
	if id := sess.Keyframes[0].PlayerID(0); id != 4 {
		t.Errorf("PlayerID(0) = %d, want 4", id)
	}
}

func TestDecode_SkipsMalformedLinesAndKeepsPrefix(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	in := scenario +
		`{"type":"keydown","keys":[90]}` + "\n" + // missing t
		`{"type":"keyup","t":"soon","keys":[90]}` + "\n" + // bad number
		`{"type":"snapshot","t":2,"enemies":[{"id":2,"x":1,"y":1,"vx":0}]}` + "\n" + // missing vy
		`{"type":"marker","t":2}` + "\n" + // unknown type
		"\n" +
		`{"type":"snapshot","t":3,"enemies":[{"id":1,"x":1` // truncated tail

	sess, err := NewLineDecoder(zap.New(core)).Decode(strings.NewReader(in))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if sess.Skipped != 4 {
		t.Errorf("Skipped = %d, want 4", sess.Skipped)
	}
	if sess.Ignored != 1 {
		t.Errorf("Ignored = %d, want 1", sess.Ignored)
	}
	if len(sess.Events) != 2 || len(sess.Keyframes) != 1 {
		t.Errorf("prefix lost: %d events, %d keyframes", len(sess.Events), len(sess.Keyframes))
	}
	if got := logs.FilterMessage("record skipped").Len(); got != 4 {
		t.Errorf("logged %d skip diagnostics, want 4", got)
	}
}

func TestDecode_SnapshotWithBothCategoriesIsSplit(t *testing.T) {
	sess := decodeString(t, `{"type":"snapshot","t":1,"players":[{"score":1,"health":9}],"enemies":[{"id":1,"x":0,"y":0,"vx":0,"vy":0}]}`)
	if len(sess.Keyframes) != 2 {
		t.Fatalf("got %d keyframes, want 2", len(sess.Keyframes))
	}
	for _, kf := range sess.Keyframes {
		if kf.HasEnemies() == kf.HasPlayers() {
			t.Errorf("keyframe carries %v enemies and %v players; want exactly one category", kf.HasEnemies(), kf.HasPlayers())
		}
	}
}

func TestDecode_EmptyCategoryIsAbsent(t *testing.T) {
	sess := decodeString(t, `{"type":"snapshot","t":1,"enemies":[]}`)
	if len(sess.Keyframes) != 0 {
		t.Errorf("got %d keyframes from an empty snapshot, want 0", len(sess.Keyframes))
	}
}

func TestDecode_KeyframesSortedByTimestamp(t *testing.T) {
	sess := decodeString(t, `{"type":"snapshot","t":2,"players":[{"score":2,"health":1}]}
{"type":"snapshot","t":1,"players":[{"score":1,"health":1}]}
{"type":"snapshot","t":2,"enemies":[{"id":1,"x":0,"y":0,"vx":0,"vy":0}]}
`)
	if len(sess.Keyframes) != 3 {
		t.Fatalf("got %d keyframes", len(sess.Keyframes))
	}
	if sess.Keyframes[0].Timestamp != 1 {
		t.Errorf("first keyframe at %v, want 1", sess.Keyframes[0].Timestamp)
	}
	// Equal timestamps keep file order.
	if !sess.Keyframes[1].HasPlayers() || !sess.Keyframes[2].HasEnemies() {
		t.Error("keyframes with equal timestamps were reordered")
	}
}

func TestDecode_DuplicateHeaderKeepsFirst(t *testing.T) {
	sess := decodeString(t, `{"type":"header","version":1,"w":800,"h":600}
{"type":"header","version":1,"w":1,"h":1}
`)
	if sess.Header == nil || sess.Header.Width != 800 {
		t.Errorf("header = %+v, want the first one", sess.Header)
	}
}

func TestDecodeLine_UnknownType(t *testing.T) {
	_, err := NewLineDecoder(nil).DecodeLine(`{"type":"marker"}`)
	if !errors.Is(err, ErrMalformed) {
		t.Errorf("DecodeLine(unknown) error = %v, want ErrMalformed", err)
	}
}

func TestDecodeFile_Missing(t *testing.T) {
	_, err := DecodeFile(filepath.Join(t.TempDir(), "nope.jsonl"), nil)
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("DecodeFile(missing) error = %v, want os.ErrNotExist", err)
	}
}

func TestDecodeFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "s.jsonl")
	if err := os.WriteFile(path, []byte(scenario), 0o644); err != nil {
		t.Fatal(err)
	}
	sess, err := DecodeFile(path, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(sess.Events) != 2 {
		t.Errorf("got %d events, want 2", len(sess.Events))
	}
}

func TestDecode_TimeOutOfRangeIsSkipped(t *testing.T) {
	in := scenario +
		`{"type":"keydown","t":1e10,"keys":[90]}` + "\n" +
		`{"type":"keyup","t":-1,"keys":[90]}` + "\n" +
		`{"type":"snapshot","t":90000,"players":[{"score":1,"health":1}]}` + "\n"

	sess := decodeString(t, in)
	if sess.Skipped != 3 {
		t.Errorf("Skipped = %d, want 3", sess.Skipped)
	}
	if len(sess.Events) != 2 || len(sess.Keyframes) != 1 {
		t.Errorf("got %d events, %d keyframes, want 2 and 1", len(sess.Events), len(sess.Keyframes))
	}
	if sess.Duration() != 1 {
		t.Errorf("Duration() = %v, want 1", sess.Duration())
	}
}

func TestDecodeLine_TimeAtBoundAccepted(t *testing.T) {
	rec, err := NewLineDecoder(nil).DecodeLine(`{"type":"keydown","t":86400,"keys":[90]}`)
	if err != nil {
		t.Fatalf("DecodeLine() error = %v", err)
	}
	if rec.Event.Time != MaxTime {
		t.Errorf("time = %v, want %v", rec.Event.Time, MaxTime)
	}
}
