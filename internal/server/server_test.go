package server

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/SmitUplenchwar2687/rewind/internal/clock"
	"github.com/SmitUplenchwar2687/rewind/internal/storage"
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

const scenario = `{"type":"header","version":1,"w":1024,"h":768}
{"type":"keydown","t":0.5,"keys":[90]}
{"type":"keyup","t":0.6,"keys":[90]}
{"type":"snapshot","t":1,"enemies":[{"id":1,"x":100.00,"y":50.00,"vx":10.00,"vy":0.00}]}
garbage
`

func seedStore(t *testing.T) storage.Store {
	t.Helper()
	store := storage.NewMemoryStore(clock.NewVirtualClock(epoch))
	w, err := store.Create(context.Background(), "demo")
	if err != nil {
		t.Fatal(err)
	}
	for _, line := range strings.Split(strings.TrimSpace(scenario), "\n") {
		if err := w.WriteLine(line); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	return store
}

func startTestServer(t *testing.T, store storage.Store) (*Server, string) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	srv := New(Options{Addr: ln.Addr().String(), FPS: 60}, store, clock.NewVirtualClock(epoch), nil)
	go srv.StartOnListener(ln)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	})
	return srv, "http://" + ln.Addr().String()
}

func getJSON(t *testing.T, url string, wantStatus int, v any) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != wantStatus {
		t.Fatalf("GET %s status = %d, want %d", url, resp.StatusCode, wantStatus)
	}
	if v != nil {
		if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
			t.Fatalf("decoding %s: %v", url, err)
		}
	}
}

func TestServer_Root(t *testing.T) {
	_, baseURL := startTestServer(t, seedStore(t))

	var body map[string]string
	getJSON(t, baseURL+"/", http.StatusOK, &body)
	if body["service"] != "rewind" {
		t.Errorf("service = %q, want %q", body["service"], "rewind")
	}
	if body["time"] != epoch.Format(time.RFC3339) {
		t.Errorf("time = %q, want virtual clock time", body["time"])
	}
}

func TestServer_Health(t *testing.T) {
	_, baseURL := startTestServer(t, seedStore(t))
	getJSON(t, baseURL+"/health", http.StatusOK, nil)
}

func TestServer_NotFound(t *testing.T) {
	_, baseURL := startTestServer(t, seedStore(t))
	getJSON(t, baseURL+"/nonexistent", http.StatusNotFound, nil)
	getJSON(t, baseURL+"/api/sessions/demo/bogus", http.StatusNotFound, nil)
}

func TestServer_Dashboard(t *testing.T) {
	_, baseURL := startTestServer(t, seedStore(t))

	resp, err := http.Get(baseURL + "/dashboard")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("content type = %q, want text/html", ct)
	}
}

func TestServer_ListSessions(t *testing.T) {
	_, baseURL := startTestServer(t, seedStore(t))

	var list []storage.SessionInfo
	getJSON(t, baseURL+"/api/sessions", http.StatusOK, &list)
	if len(list) != 1 || list[0].Name != "demo" {
		t.Fatalf("sessions = %+v, want [demo]", list)
	}
	if list[0].Lines != 5 {
		t.Errorf("lines = %d, want 5", list[0].Lines)
	}
}

func TestServer_ListSessions_Empty(t *testing.T) {
	_, baseURL := startTestServer(t, storage.NewMemoryStore(nil))

	var list []storage.SessionInfo
	getJSON(t, baseURL+"/api/sessions", http.StatusOK, &list)
	if list == nil || len(list) != 0 {
		t.Errorf("sessions = %v, want empty array", list)
	}
}

func TestServer_SessionSummary(t *testing.T) {
	_, baseURL := startTestServer(t, seedStore(t))

	var sum SessionSummary
	getJSON(t, baseURL+"/api/sessions/demo", http.StatusOK, &sum)
	if sum.Header == nil || sum.Header.Width != 1024 || sum.Header.Height != 768 {
		t.Errorf("header = %+v, want 1024x768", sum.Header)
	}
	if sum.Events != 2 || sum.Keyframes != 1 {
		t.Errorf("events = %d, keyframes = %d, want 2 and 1", sum.Events, sum.Keyframes)
	}
	if sum.Skipped != 1 {
		t.Errorf("skipped = %d, want 1", sum.Skipped)
	}
	if sum.Duration != 1 {
		t.Errorf("duration = %v, want 1", sum.Duration)
	}
}

func TestServer_SessionErrors(t *testing.T) {
	_, baseURL := startTestServer(t, seedStore(t))
	getJSON(t, baseURL+"/api/sessions/missing", http.StatusNotFound, nil)
	getJSON(t, baseURL+"/api/sessions/..hidden", http.StatusBadRequest, nil)

	resp, err := http.Post(baseURL+"/api/sessions/missing/replay", "application/json", nil)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("replay of missing session status = %d, want 404", resp.StatusCode)
	}
}

func dialHub(t *testing.T, srv *Server, baseURL string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(baseURL, "http")+"/ws", nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { conn.Close() })

	deadline := time.Now().Add(2 * time.Second)
	for srv.Hub().ClientCount() != 1 {
		if time.Now().After(deadline) {
			t.Fatal("client never registered with the hub")
		}
		time.Sleep(5 * time.Millisecond)
	}
	return conn
}

// readUntilEnd collects messages until the end of a replay.
func readUntilEnd(t *testing.T, conn *websocket.Conn) []Message {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var msgs []Message
	for {
		var m Message
		if err := conn.ReadJSON(&m); err != nil {
			t.Fatalf("reading after %d messages: %v", len(msgs), err)
		}
		msgs = append(msgs, m)
		if m.Type == "end" {
			return msgs
		}
	}
}

func TestServer_WatchStreamsFrames(t *testing.T) {
	srv, baseURL := startTestServer(t, seedStore(t))
	conn := dialHub(t, srv, baseURL)

	done := make(chan error, 1)
	go func() {
		_, err := srv.Watch(context.Background(), "demo")
		done <- err
	}()

	msgs := readUntilEnd(t, conn)
	if err := <-done; err != nil {
		t.Fatalf("Watch() error = %v", err)
	}

	if msgs[0].Type != "start" || msgs[0].Header == nil || msgs[0].Header.Width != 1024 {
		t.Fatalf("first message = %+v, want start with header", msgs[0])
	}
	frames := msgs[1 : len(msgs)-1]
	if len(frames) != 60 {
		t.Errorf("frames = %d, want 60 for 1s at 60fps", len(frames))
	}
	last := msgs[len(msgs)-1]
	if last.Summary == nil || last.Summary.Events != 2 || last.Summary.Keyframes != 1 {
		t.Errorf("summary = %+v", last.Summary)
	}

	// The keyframe lands on the last tick and places enemy 1.
	final := frames[len(frames)-1].Frame
	var found bool
	for _, e := range final.Entities {
		if e.Kind == "enemy" && e.Active && e.X == 100 && e.Y == 50 {
			found = true
		}
	}
	if !found {
		t.Errorf("final frame entities = %+v, want enemy at (100,50)", final.Entities)
	}
}

func TestServer_ReplayEndpoint(t *testing.T) {
	srv, baseURL := startTestServer(t, seedStore(t))
	conn := dialHub(t, srv, baseURL)

	resp, err := http.Post(baseURL+"/api/sessions/demo/replay", "application/json", nil)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", resp.StatusCode)
	}

	msgs := readUntilEnd(t, conn)
	if msgs[0].Session != "demo" {
		t.Errorf("session = %q, want demo", msgs[0].Session)
	}
}

func TestServer_ReplayThrottled(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	opts := Options{Addr: ln.Addr().String(), FPS: 60, ReplaysPerMinute: 1, ReplayBurst: 1}
	srv := New(opts, seedStore(t), clock.NewVirtualClock(epoch), nil)
	go srv.StartOnListener(ln)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	})
	url := "http://" + ln.Addr().String() + "/api/sessions/demo/replay"

	first, err := http.Post(url, "application/json", nil)
	if err != nil {
		t.Fatal(err)
	}
	first.Body.Close()
	if first.StatusCode != http.StatusAccepted {
		t.Fatalf("first status = %d, want 202", first.StatusCode)
	}

	// A forged forwarding header does not earn a fresh bucket.
	req, err := http.NewRequest(http.MethodPost, url, nil)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("X-Forwarded-For", "198.51.100.1")
	second, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	second.Body.Close()
	if second.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("second status = %d, want 429", second.StatusCode)
	}
	if second.Header.Get("Retry-After") != "60" {
		t.Errorf("Retry-After = %q, want %q", second.Header.Get("Retry-After"), "60")
	}
}

func TestServer_WatchMissing(t *testing.T) {
	srv, _ := startTestServer(t, seedStore(t))
	if _, err := srv.Watch(context.Background(), "missing"); err == nil {
		t.Error("expected error for missing session")
	}
}
