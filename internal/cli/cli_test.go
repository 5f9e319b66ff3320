package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/SmitUplenchwar2687/rewind/internal/replay"
	"github.com/SmitUplenchwar2687/rewind/internal/storage"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := NewRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	err := cmd.Execute()
	return out.String(), err
}

func mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := runCLI(t, args...)
	if err != nil {
		t.Fatalf("rewind %s: %v", strings.Join(args, " "), err)
	}
	return out
}

func recordDemo(t *testing.T, dir string) recordResult {
	t.Helper()
	out := mustRun(t, "record", "--dir", dir, "--name", "demo", "--duration", "2s", "--seed", "3", "--json")
	var res recordResult
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("record output is not JSON: %v\n%s", err, out)
	}
	return res
}

type inspectOutput struct {
	Events []struct {
		Kind string `json:"kind"`
		Keys []int  `json:"keys"`
	}
	Keyframes []json.RawMessage
	Skipped   int
}

func TestRecordThenInspectAndReplay(t *testing.T) {
	dir := t.TempDir()
	res := recordDemo(t, dir)
	if res.Session != "demo" || res.Ticks != 120 {
		t.Errorf("record result = %+v, want demo with 120 ticks", res)
	}
	if res.Capture.Written == 0 || res.Capture.Dropped != 0 {
		t.Errorf("capture = %+v", res.Capture)
	}
	if res.Capture.Written != res.Capture.Enqueued {
		t.Errorf("written %d of %d enqueued lines", res.Capture.Written, res.Capture.Enqueued)
	}

	var list []storage.SessionInfo
	if err := json.Unmarshal([]byte(mustRun(t, "list", "--dir", dir, "--json")), &list); err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 || list[0].Name != "demo" || uint64(list[0].Lines) != res.Capture.Written {
		t.Errorf("list = %+v, want demo with %d lines", list, res.Capture.Written)
	}

	var all inspectOutput
	if err := json.Unmarshal([]byte(mustRun(t, "inspect", "demo", "--dir", dir, "--json")), &all); err != nil {
		t.Fatal(err)
	}
	if len(all.Keyframes) == 0 || all.Skipped != 0 {
		t.Errorf("inspect: %d keyframes, %d skipped", len(all.Keyframes), all.Skipped)
	}

	var inputs inspectOutput
	if err := json.Unmarshal([]byte(mustRun(t, "inspect", "demo", "--dir", dir, "--kind", "input", "--json")), &inputs); err != nil {
		t.Fatal(err)
	}
	if len(inputs.Keyframes) != 0 {
		t.Errorf("input filter kept %d keyframes", len(inputs.Keyframes))
	}
	if len(inputs.Events) != len(all.Events) {
		t.Errorf("input filter kept %d of %d events", len(inputs.Events), len(all.Events))
	}
	for _, ev := range inputs.Events {
		if ev.Kind != "keydown" && ev.Kind != "keyup" {
			t.Errorf("event kind = %q", ev.Kind)
		}
	}

	var rep struct {
		Session string         `json:"session"`
		Summary replay.Summary `json:"summary"`
	}
	if err := json.Unmarshal([]byte(mustRun(t, "replay", "demo", "--dir", dir, "--speed", "0", "--json")), &rep); err != nil {
		t.Fatal(err)
	}
	if rep.Summary.Events != len(all.Events) || rep.Summary.Keyframes != len(all.Keyframes) {
		t.Errorf("replay applied %d events and %d keyframes, want %d and %d",
			rep.Summary.Events, rep.Summary.Keyframes, len(all.Events), len(all.Keyframes))
	}
	if rep.Summary.Bindings.Players != 1 || rep.Summary.Bindings.Fallbacks != 0 {
		t.Errorf("bindings = %+v", rep.Summary.Bindings)
	}
}

func TestInspect_TextOutput(t *testing.T) {
	dir := t.TempDir()
	recordDemo(t, dir)

	out := mustRun(t, "inspect", "--session", "demo", "--dir", dir, "--kind", "players", "--to", "0.5")
	if !strings.Contains(out, "Session demo: version 1, 1024x768") {
		t.Errorf("missing header line in:\n%s", out)
	}
	if !strings.Contains(out, "players") || strings.Contains(out, "keydown") {
		t.Errorf("kind filter not applied:\n%s", out)
	}
}

func TestArchiveThenReplay(t *testing.T) {
	dir := t.TempDir()
	recordDemo(t, dir)

	mustRun(t, "archive", "demo", "--dir", dir)
	if _, err := os.Stat(filepath.Join(dir, "demo"+storage.Extension)); !os.IsNotExist(err) {
		t.Errorf("plain session file still present: %v", err)
	}

	var list []storage.SessionInfo
	if err := json.Unmarshal([]byte(mustRun(t, "list", "--dir", dir, "--json")), &list); err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 || !list[0].Compressed {
		t.Fatalf("list = %+v, want one compressed session", list)
	}

	mustRun(t, "replay", "demo", "--dir", dir, "--speed", "0", "--json")
}

func TestArchive_RequiresFileBackend(t *testing.T) {
	if _, err := runCLI(t, "archive", "demo", "--storage", "memory"); err == nil {
		t.Fatal("expected error archiving on the memory backend")
	}
}

func TestReplay_MissingSession(t *testing.T) {
	_, err := runCLI(t, "replay", "nope", "--dir", t.TempDir(), "--speed", "0")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("replay of missing session error = %v, want ErrNotFound", err)
	}
	if _, err := runCLI(t, "replay", "--dir", t.TempDir()); err == nil {
		t.Fatal("expected error without a session name")
	}
}

func TestRecord_DuplicateName(t *testing.T) {
	dir := t.TempDir()
	recordDemo(t, dir)
	_, err := runCLI(t, "record", "--dir", dir, "--name", "demo", "--duration", "1s")
	if !errors.Is(err, storage.ErrExists) {
		t.Fatalf("duplicate record error = %v, want ErrExists", err)
	}
}

func TestList_Empty(t *testing.T) {
	out := mustRun(t, "list", "--dir", t.TempDir())
	if !strings.Contains(out, "No sessions") {
		t.Errorf("list output = %q", out)
	}
}

func TestConfigFile_FlagsOverride(t *testing.T) {
	fromConfig := t.TempDir()
	fromFlag := t.TempDir()
	configPath := filepath.Join(t.TempDir(), "rewind.json")
	cfg := `{
  "recording": { "keyframe_interval": 0.5 },
  "storage": { "backend": "file", "dir": "` + filepath.ToSlash(fromConfig) + `" },
  "log": { "level": "warn" }
}`
	if err := os.WriteFile(configPath, []byte(cfg), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	mustRun(t, "record", "--config", configPath, "--name", "a", "--duration", "1s")
	if _, err := os.Stat(filepath.Join(fromConfig, "a"+storage.Extension)); err != nil {
		t.Errorf("session not written to the configured dir: %v", err)
	}

	mustRun(t, "record", "--config", configPath, "--dir", fromFlag, "--name", "b", "--duration", "1s")
	if _, err := os.Stat(filepath.Join(fromFlag, "b"+storage.Extension)); err != nil {
		t.Errorf("--dir did not override the config: %v", err)
	}

	// A 0.5s interval over one second yields at most three player keyframes.
	var got inspectOutput
	if err := json.Unmarshal([]byte(mustRun(t, "inspect", "a", "--dir", fromConfig, "--kind", "players", "--json")), &got); err != nil {
		t.Fatal(err)
	}
	if n := len(got.Keyframes); n < 2 || n > 3 {
		t.Errorf("player keyframes = %d, want 2 or 3 at a 0.5s interval", n)
	}
}

func TestInvalidConfiguration(t *testing.T) {
	if _, err := runCLI(t, "list", "--storage", "bogus"); err == nil {
		t.Error("expected error for unknown storage backend")
	}
	if _, err := runCLI(t, "list", "--config", "/nonexistent/rewind.json"); err == nil {
		t.Error("expected error for missing config file")
	}
	if _, err := runCLI(t, "list", "--log-level", "loud", "--dir", t.TempDir()); err == nil {
		t.Error("expected error for unknown log level")
	}
}

func TestGenerate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rewind.json")
	mustRun(t, "generate", "config", "--output", path)

	// The generated config drives the other commands.
	mustRun(t, "list", "--config", path, "--dir", t.TempDir())

	out := mustRun(t, "generate", "schema")
	var schema map[string]any
	if err := json.Unmarshal([]byte(out), &schema); err != nil {
		t.Fatalf("schema output is not JSON: %v", err)
	}
	if _, ok := schema["properties"]; !ok {
		t.Error("schema has no properties")
	}
}
