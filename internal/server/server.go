package server

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/SmitUplenchwar2687/rewind/internal/clock"
	"github.com/SmitUplenchwar2687/rewind/internal/record"
	"github.com/SmitUplenchwar2687/rewind/internal/replay"
	"github.com/SmitUplenchwar2687/rewind/internal/storage"
	"github.com/SmitUplenchwar2687/rewind/internal/world"
)

// Options configures a Server.
type Options struct {
	Addr string
	// FPS and Speed pace replays streamed to websocket clients.
	FPS   int
	Speed float64
	// ReplaysPerMinute bounds replay starts per client; 0 disables the limit.
	ReplaysPerMinute int
	ReplayBurst      int
	// TrustProxy keys the throttle on the first X-Forwarded-For address.
	// Enable only behind a proxy that overwrites the header.
	TrustProxy bool
}

// Server exposes the session catalogue over HTTP and streams replays to
// websocket clients.
type Server struct {
	httpServer *http.Server
	store      storage.Store
	clock      clock.Clock
	hub        *Hub
	throttle   *throttle
	log        *zap.Logger
	mux        *http.ServeMux
	opts       Options

	// ctx bounds background replays; cancelled by Shutdown.
	ctx     context.Context
	cancel  context.CancelFunc
	replays sync.WaitGroup
}

// New creates a new server over store.
func New(opts Options, store storage.Store, clk clock.Clock, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	if clk == nil {
		clk = clock.NewRealClock()
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		store:    store,
		clock:    clk,
		hub:      NewHub(log),
		throttle: newThrottle(opts.ReplaysPerMinute, opts.ReplayBurst, clk),
		log:      log.Named("server"),
		mux:      http.NewServeMux(),
		opts:     opts,
		ctx:      ctx,
		cancel:   cancel,
	}
	s.routes()
	s.httpServer = &http.Server{
		Addr:    opts.Addr,
		Handler: LoggingMiddleware(s.mux, clk, s.log),
	}
	return s
}

// Hub returns the websocket hub replays are broadcast on.
func (s *Server) Hub() *Hub { return s.hub }

func (s *Server) routes() {
	s.mux.HandleFunc("/", s.handleRoot)
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.HandleFunc("/dashboard", s.handleDashboard)
	s.mux.HandleFunc("/api/sessions", s.handleSessions)
	s.mux.HandleFunc("/api/sessions/", s.handleSession)
	s.mux.HandleFunc("/ws", s.hub.HandleWebSocket)
}

// handleRoot serves a welcome message.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"service": "rewind",
		"status":  "running",
		"time":    s.clock.Now().Format(time.RFC3339),
	})
}

// handleHealth returns server health status.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte(DashboardHTML))
}

// handleSessions lists stored sessions. The listing runs off the request
// goroutine so a slow backend is bounded by the request context.
func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	select {
	case res := <-storage.ListAsync(r.Context(), s.store):
		if res.Err != nil {
			s.log.Error("listing sessions", zap.Error(res.Err))
			writeError(w, http.StatusInternalServerError, "listing sessions failed")
			return
		}
		if res.Sessions == nil {
			res.Sessions = []storage.SessionInfo{}
		}
		writeJSON(w, http.StatusOK, res.Sessions)
	case <-r.Context().Done():
		writeError(w, http.StatusServiceUnavailable, "listing cancelled")
	}
}

// SessionSummary is the decoded overview of one session.
type SessionSummary struct {
	Name      string         `json:"name"`
	Header    *record.Header `json:"header"`
	Events    int            `json:"events"`
	Keyframes int            `json:"keyframes"`
	Skipped   int            `json:"skipped"`
	Ignored   int            `json:"ignored"`
	Duration  float64        `json:"duration"`
}

// handleSession serves GET /api/sessions/{name} and
// POST /api/sessions/{name}/replay.
func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/sessions/")
	name, action, _ := strings.Cut(rest, "/")
	if err := storage.ValidateName(name); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	switch {
	case action == "" && r.Method == http.MethodGet:
		sess, ok := s.load(w, r.Context(), name)
		if !ok {
			return
		}
		writeJSON(w, http.StatusOK, SessionSummary{
			Name:      name,
			Header:    sess.Header,
			Events:    len(sess.Events),
			Keyframes: len(sess.Keyframes),
			Skipped:   sess.Skipped,
			Ignored:   sess.Ignored,
			Duration:  sess.Duration(),
		})
	case action == "replay" && r.Method == http.MethodPost:
		if ok, retry := s.throttle.allow(clientKey(r, s.opts.TrustProxy)); !ok {
			secs := math.Ceil(retry.Truncate(time.Millisecond).Seconds())
			w.Header().Set("Retry-After", strconv.Itoa(int(secs)))
			writeError(w, http.StatusTooManyRequests, "too many replays, retry later")
			return
		}
		sess, ok := s.load(w, r.Context(), name)
		if !ok {
			return
		}
		s.replays.Add(1)
		go func() {
			defer s.replays.Done()
			if _, err := s.stream(s.ctx, name, sess); err != nil && !errors.Is(err, context.Canceled) {
				s.log.Warn("replay stream ended", zap.String("session", name), zap.Error(err))
			}
		}()
		writeJSON(w, http.StatusAccepted, map[string]string{"session": name, "status": "streaming"})
	case action == "" || action == "replay":
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	default:
		http.NotFound(w, r)
	}
}

func (s *Server) load(w http.ResponseWriter, ctx context.Context, name string) (*record.Session, bool) {
	sess, err := replay.Load(ctx, s.store, name, s.log)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, "session not found")
		return nil, false
	case err != nil:
		s.log.Error("loading session", zap.String("session", name), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "loading session failed")
		return nil, false
	}
	return sess, true
}

// Watch decodes a stored session and replays it to every websocket client.
// It blocks until the replay finishes or ctx is cancelled.
func (s *Server) Watch(ctx context.Context, name string) (*replay.Summary, error) {
	sess, err := replay.Load(ctx, s.store, name, s.log)
	if err != nil {
		return nil, err
	}
	return s.stream(ctx, name, sess)
}

// Message is the envelope of everything sent to websocket clients.
type Message struct {
	Type    string          `json:"type"`
	Session string          `json:"session"`
	Header  *record.Header  `json:"header,omitempty"`
	Frame   *replay.Frame   `json:"frame,omitempty"`
	Summary *replay.Summary `json:"summary,omitempty"`
}

func (s *Server) stream(ctx context.Context, name string, sess *record.Session) (*replay.Summary, error) {
	w := world.ForReplay(sess, s.log)
	drv := replay.NewDriver(sess, w, w, s.log)

	s.hub.Broadcast(Message{Type: "start", Session: name, Header: sess.Header})
	sum, err := drv.Run(ctx, replay.RunOptions{FPS: s.opts.FPS, Speed: s.opts.Speed, Clock: s.clock}, func(f replay.Frame) {
		s.hub.Broadcast(Message{Type: "frame", Session: name, Frame: &f})
	})
	if err != nil {
		return sum, err
	}
	s.hub.Broadcast(Message{Type: "end", Session: name, Summary: sum})
	return sum, nil
}

// Start begins listening. It blocks until the server is shut down.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return err
	}
	return s.StartOnListener(ln)
}

// StartOnListener begins serving on the provided listener.
// Useful for tests that need to pick an ephemeral port.
func (s *Server) StartOnListener(ln net.Listener) error {
	s.log.Info("rewind server listening", zap.String("addr", ln.Addr().String()))
	return s.httpServer.Serve(ln)
}

// Shutdown stops background replays and gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.cancel()
	s.replays.Wait()
	s.hub.Close()
	if ctx == nil {
		ctx = context.Background()
	}
	return s.httpServer.Shutdown(ctx)
}

// clientKey identifies the caller for throttling.
func clientKey(r *http.Request, trustProxy bool) string {
	if trustProxy {
		first, _, _ := strings.Cut(r.Header.Get("X-Forwarded-For"), ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
