// Package storage persists recorded sessions. A session is an ordered
// sequence of complete lines addressed by name; backends differ only in
// where the lines live.
package storage

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

// Backend names accepted by configuration.
const (
	BackendFile   = "file"
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// Session file extensions. Listing and opening accept exactly this set.
const (
	Extension           = ".jsonl"
	CompressedExtension = ".jsonl.zst"
)

var (
	// ErrNotFound is returned when a named session does not exist.
	ErrNotFound = errors.New("session not found")
	// ErrExists is returned by Create when the name is already taken.
	ErrExists = errors.New("session already exists")
)

// LineWriter appends lines to a session being recorded. Lines become
// visible to readers on Flush; Close flushes.
type LineWriter interface {
	WriteLine(line string) error
	Flush() error
	Close() error
}

// SessionInfo describes a stored session.
type SessionInfo struct {
	Name       string    `json:"name"`
	Bytes      int64     `json:"bytes"`
	Lines      int       `json:"lines"`
	ModTime    time.Time `json:"mod_time"`
	Compressed bool      `json:"compressed,omitempty"`
}

// Store abstracts the backend holding recorded sessions.
// Implementations must be safe for concurrent use.
type Store interface {
	// Create starts a new session. It fails with ErrExists if name is taken.
	Create(ctx context.Context, name string) (LineWriter, error)

	// Open returns the flushed content of a session.
	// It fails with ErrNotFound if name does not exist.
	Open(ctx context.Context, name string) (io.ReadCloser, error)

	// List returns every stored session ordered by name.
	List(ctx context.Context) ([]SessionInfo, error)

	Close() error
}

var namePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

// TrimName strips a known session extension from name.
func TrimName(name string) string {
	if n, ok := strings.CutSuffix(name, CompressedExtension); ok {
		return n
	}
	n, _ := strings.CutSuffix(name, Extension)
	return n
}

// ValidateName rejects names that could escape the store or collide with
// the extension scheme.
func ValidateName(name string) error {
	if !namePattern.MatchString(name) || strings.Contains(name, "..") {
		return fmt.Errorf("invalid session name %q", name)
	}
	return nil
}

// NewName returns a fresh session name. Names sort lexically in creation
// order.
func NewName(t time.Time) string {
	return ulid.MustNew(ulid.Timestamp(t), rand.Reader).String()
}

// ListResult is delivered by ListAsync.
type ListResult struct {
	Sessions []SessionInfo
	Err      error
}

// ListAsync lists s on a separate goroutine so callers driving a frame loop
// are not blocked while backends scan their sessions. The channel receives
// exactly one result and is then closed.
func ListAsync(ctx context.Context, s Store) <-chan ListResult {
	out := make(chan ListResult, 1)
	go func() {
		defer close(out)
		sessions, err := s.List(ctx)
		out <- ListResult{Sessions: sessions, Err: err}
	}()
	return out
}

// countLines counts newline-terminated lines in r plus a trailing partial one.
func countLines(r io.Reader) (lines int, bytes int64, err error) {
	buf := make([]byte, 32*1024)
	last := byte('\n')
	for {
		n, rerr := r.Read(buf)
		for _, b := range buf[:n] {
			if b == '\n' {
				lines++
			}
		}
		if n > 0 {
			last = buf[n-1]
			bytes += int64(n)
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return lines, bytes, rerr
		}
	}
	if last != '\n' {
		lines++
	}
	return lines, bytes, nil
}
