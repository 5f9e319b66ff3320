package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/SmitUplenchwar2687/rewind/internal/clock"
)

// MemoryStore keeps sessions in process memory. It uses a Clock for
// modification times, enabling virtual-time testing.
// Thread-safe for concurrent use.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*memSession
	clock    clock.Clock
}

type memSession struct {
	data    []byte
	lines   int
	modTime time.Time
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty store. A nil clock means wall time.
func NewMemoryStore(c clock.Clock) *MemoryStore {
	if c == nil {
		c = clock.NewRealClock()
	}
	return &MemoryStore{
		sessions: make(map[string]*memSession),
		clock:    c,
	}
}

func (s *MemoryStore) Create(_ context.Context, name string) (LineWriter, error) {
	name = TrimName(name)
	if err := ValidateName(name); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[name]; ok {
		return nil, fmt.Errorf("%w: %s", ErrExists, name)
	}
	s.sessions[name] = &memSession{modTime: s.clock.Now()}
	return &memWriter{store: s, name: name}, nil
}

func (s *MemoryStore) Open(_ context.Context, name string) (io.ReadCloser, error) {
	name = TrimName(name)

	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	// Copy so later flushes do not race with the reader.
	data := make([]byte, len(sess.data))
	copy(data, sess.data)
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (s *MemoryStore) List(_ context.Context) ([]SessionInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]SessionInfo, 0, len(s.sessions))
	for name, sess := range s.sessions {
		out = append(out, SessionInfo{
			Name:    name,
			Bytes:   int64(len(sess.data)),
			Lines:   sess.lines,
			ModTime: sess.modTime,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Close drops every session.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions = make(map[string]*memSession)
	return nil
}

func (s *MemoryStore) commit(name string, pending []byte, lines int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	sess.data = append(sess.data, pending...)
	sess.lines += lines
	sess.modTime = s.clock.Now()
	return nil
}

type memWriter struct {
	store   *MemoryStore
	name    string
	pending strings.Builder
	lines   int
	closed  bool
}

func (w *memWriter) WriteLine(line string) error {
	if w.closed {
		return os.ErrClosed
	}
	w.pending.WriteString(line)
	w.pending.WriteByte('\n')
	w.lines++
	return nil
}

func (w *memWriter) Flush() error {
	if w.closed {
		return os.ErrClosed
	}
	if w.lines == 0 {
		return nil
	}
	if err := w.store.commit(w.name, []byte(w.pending.String()), w.lines); err != nil {
		return err
	}
	w.pending.Reset()
	w.lines = 0
	return nil
}

func (w *memWriter) Close() error {
	if w.closed {
		return nil
	}
	err := w.Flush()
	w.closed = true
	return err
}
