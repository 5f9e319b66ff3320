// Package capture moves encoded record lines off the simulation goroutine
// and onto storage. The producer never blocks: when the bounded queue is
// full the line is dropped and counted.
package capture

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/SmitUplenchwar2687/rewind/internal/clock"
	"github.com/SmitUplenchwar2687/rewind/internal/record"
	"github.com/SmitUplenchwar2687/rewind/internal/storage"
)

const (
	DefaultCapacity    = 4096
	DefaultStopTimeout = 500 * time.Millisecond
)

// ErrAlreadyRunning is returned by Start while a session is open.
var ErrAlreadyRunning = errors.New("capture session already running")

// Options configures a Sink.
type Options struct {
	// Capacity bounds the number of queued lines.
	Capacity int
	// Clock times the bounded wait in Stop. Defaults to wall time.
	Clock clock.Clock
}

// Stats describes one capture session. Every enqueued line is written
// unless Stop times out or the writer fails.
type Stats struct {
	Name     string `json:"name"`
	Enqueued uint64 `json:"enqueued"`
	Dropped  uint64 `json:"dropped"`
	Written  uint64 `json:"written"`
	TimedOut bool   `json:"timed_out,omitempty"`
	Err      error  `json:"-"`
}

// Sink owns at most one open session at a time.
type Sink struct {
	store storage.Store
	opts  Options
	log   *zap.Logger
	enc   *record.Encoder

	mu  sync.Mutex // serializes Start and Stop
	cur atomic.Pointer[session]
}

type session struct {
	name    string
	queue   chan string
	stop    chan struct{}
	done    chan struct{}
	running atomic.Bool
	stopped bool // guarded by Sink.mu

	// gate orders sends against closing: producers hold it shared across
	// the running check and the send, close takes it exclusively, so no
	// line lands in the queue after the writer starts draining.
	gate sync.RWMutex

	enqueued atomic.Uint64
	dropped  atomic.Uint64
	written  atomic.Uint64
	timedOut atomic.Bool

	errMu sync.Mutex
	err   error
}

// New creates a sink writing to store.
func New(store storage.Store, opts Options, log *zap.Logger) *Sink {
	if opts.Capacity <= 0 {
		opts.Capacity = DefaultCapacity
	}
	if opts.Clock == nil {
		opts.Clock = clock.NewRealClock()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Sink{
		store: store,
		opts:  opts,
		log:   log.Named("capture"),
		enc:   record.NewEncoder(record.DefaultQuantizeDecimals),
	}
}

// Start opens a new session named name, starts the background writer and
// enqueues the header line.
func (s *Sink) Start(ctx context.Context, name string, width, height int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cur := s.cur.Load(); cur != nil && !cur.stopped {
		return ErrAlreadyRunning
	}

	w, err := s.store.Create(ctx, name)
	if err != nil {
		return fmt.Errorf("opening capture session: %w", err)
	}

	sess := &session{
		name:  name,
		queue: make(chan string, s.opts.Capacity),
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
	}
	sess.running.Store(true)
	s.cur.Store(sess)
	go s.run(sess, w)

	s.log.Info("capture started", zap.String("session", name), zap.Int("capacity", s.opts.Capacity))
	s.Enqueue(s.enc.Header(record.Header{Version: record.Version, Width: width, Height: height}))
	return nil
}

// Enqueue offers line to the writer without blocking. It reports whether
// the line was accepted; a full queue or a closed session drops it.
func (s *Sink) Enqueue(line string) bool {
	sess := s.cur.Load()
	if sess == nil {
		return false
	}
	sess.gate.RLock()
	defer sess.gate.RUnlock()
	if !sess.running.Load() {
		sess.dropped.Add(1)
		return false
	}
	select {
	case sess.queue <- line:
		sess.enqueued.Add(1)
		return true
	default:
		sess.dropped.Add(1)
		return false
	}
}

// Running reports whether a session is accepting lines.
func (s *Sink) Running() bool {
	sess := s.cur.Load()
	return sess != nil && sess.running.Load()
}

// Stop closes the current session. The writer drains what is queued,
// flushes and closes the session; Stop waits at most timeout for that.
// A timeout is reported in Stats, not as an error.
func (s *Sink) Stop(timeout time.Duration) Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.cur.Load()
	if sess == nil {
		return Stats{}
	}
	if sess.stopped {
		return sess.stats()
	}
	if timeout <= 0 {
		timeout = DefaultStopTimeout
	}

	sess.close()
	close(sess.stop)
	sess.stopped = true

	select {
	case <-sess.done:
	case <-s.opts.Clock.After(timeout):
		sess.timedOut.Store(true)
		s.log.Warn("capture writer did not finish in time",
			zap.String("session", sess.name),
			zap.Duration("timeout", timeout),
			zap.Int("queued", len(sess.queue)))
	}

	st := sess.stats()
	s.log.Info("capture stopped",
		zap.String("session", st.Name),
		zap.Uint64("written", st.Written),
		zap.Uint64("dropped", st.Dropped))
	return st
}

// Stats returns the counters of the current or most recent session.
func (s *Sink) Stats() Stats {
	sess := s.cur.Load()
	if sess == nil {
		return Stats{}
	}
	return sess.stats()
}

func (sess *session) stats() Stats {
	sess.errMu.Lock()
	err := sess.err
	sess.errMu.Unlock()
	return Stats{
		Name:     sess.name,
		Enqueued: sess.enqueued.Load(),
		Dropped:  sess.dropped.Load(),
		Written:  sess.written.Load(),
		TimedOut: sess.timedOut.Load(),
		Err:      err,
	}
}

// run is the writer goroutine. It flushes whenever the queue runs empty so
// the stored session is always a prefix of complete lines.
func (s *Sink) run(sess *session, w storage.LineWriter) {
	defer close(sess.done)

	for {
		select {
		case line := <-sess.queue:
			if err := s.write(sess, w, line); err != nil {
				s.fail(sess, w, err)
				return
			}
			if len(sess.queue) > 0 {
				continue
			}
			if err := w.Flush(); err != nil {
				s.fail(sess, w, err)
				return
			}
		case <-sess.stop:
			s.drain(sess, w)
			return
		}
	}
}

func (s *Sink) drain(sess *session, w storage.LineWriter) {
	for {
		select {
		case line := <-sess.queue:
			if err := s.write(sess, w, line); err != nil {
				s.fail(sess, w, err)
				return
			}
		default:
			if err := w.Close(); err != nil {
				s.fail(sess, w, err)
			}
			return
		}
	}
}

func (s *Sink) write(sess *session, w storage.LineWriter, line string) error {
	if err := w.WriteLine(line); err != nil {
		return err
	}
	sess.written.Add(1)
	return nil
}

// close stops accepting lines once in-flight sends have landed.
func (sess *session) close() {
	sess.gate.Lock()
	sess.running.Store(false)
	sess.gate.Unlock()
}

// fail stops the session for good. There is no retry.
func (s *Sink) fail(sess *session, w storage.LineWriter, err error) {
	sess.close()
	sess.errMu.Lock()
	sess.err = err
	sess.errMu.Unlock()
	_ = w.Close()
	s.log.Error("capture writer failed; recording stopped",
		zap.String("session", sess.name), zap.Error(err))
}
