package storage

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/klauspost/compress/zstd"
	"go.uber.org/zap"
)

// FileStore keeps one file per session under a directory. Finished
// sessions may be archived to zstd; Open reads both forms.
type FileStore struct {
	dir string
	log *zap.Logger
}

var _ Store = (*FileStore)(nil)

// NewFileStore creates dir if needed.
func NewFileStore(dir string, log *zap.Logger) (*FileStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("session directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating session directory: %w", err)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &FileStore{dir: dir, log: log.Named("filestore")}, nil
}

// Dir returns the session directory.
func (s *FileStore) Dir() string { return s.dir }

// Path returns the uncompressed file path for name.
func (s *FileStore) Path(name string) string {
	return filepath.Join(s.dir, TrimName(name)+Extension)
}

func (s *FileStore) Create(_ context.Context, name string) (LineWriter, error) {
	name = TrimName(name)
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	if _, err := os.Stat(filepath.Join(s.dir, name+CompressedExtension)); err == nil {
		return nil, fmt.Errorf("%w: %s", ErrExists, name)
	}

	f, err := os.OpenFile(s.Path(name), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return nil, fmt.Errorf("%w: %s", ErrExists, name)
		}
		return nil, fmt.Errorf("creating session file: %w", err)
	}
	return &fileWriter{f: f, w: bufio.NewWriter(f)}, nil
}

func (s *FileStore) Open(_ context.Context, name string) (io.ReadCloser, error) {
	name = TrimName(name)
	if err := ValidateName(name); err != nil {
		return nil, err
	}

	f, err := os.Open(s.Path(name))
	if err == nil {
		return f, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("opening session: %w", err)
	}

	zf, err := os.Open(filepath.Join(s.dir, name+CompressedExtension))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return nil, fmt.Errorf("opening session: %w", err)
	}
	dec, err := zstd.NewReader(zf)
	if err != nil {
		_ = zf.Close()
		return nil, fmt.Errorf("reading compressed session: %w", err)
	}
	return &zstdReadCloser{dec: dec, f: zf}, nil
}

// List scans the directory. Files of unknown extension are ignored; a file
// that cannot be read is logged and left out.
func (s *FileStore) List(ctx context.Context) ([]SessionInfo, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("reading session directory: %w", err)
	}

	var out []SessionInfo
	seen := make(map[string]bool)
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if e.IsDir() {
			continue
		}
		fname := e.Name()
		if !strings.HasSuffix(fname, Extension) && !strings.HasSuffix(fname, CompressedExtension) {
			continue
		}
		name := TrimName(fname)
		if ValidateName(name) != nil || seen[name] {
			continue
		}
		seen[name] = true

		info, err := s.stat(ctx, name, fname)
		if err != nil {
			s.log.Warn("skipping unreadable session", zap.String("file", fname), zap.Error(err))
			continue
		}
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *FileStore) stat(ctx context.Context, name, fname string) (SessionInfo, error) {
	fi, err := os.Stat(filepath.Join(s.dir, fname))
	if err != nil {
		return SessionInfo{}, err
	}
	info := SessionInfo{
		Name:       name,
		ModTime:    fi.ModTime(),
		Compressed: strings.HasSuffix(fname, CompressedExtension),
	}

	rc, err := s.Open(ctx, name)
	if err != nil {
		return SessionInfo{}, err
	}
	defer rc.Close()
	if info.Lines, info.Bytes, err = countLines(rc); err != nil {
		return SessionInfo{}, err
	}
	return info, nil
}

// Archive compresses a finished session and removes the plain file.
func (s *FileStore) Archive(name string) (string, error) {
	name = TrimName(name)
	if err := ValidateName(name); err != nil {
		return "", err
	}
	src, err := os.Open(s.Path(name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return "", fmt.Errorf("opening session: %w", err)
	}
	defer src.Close()

	dst := filepath.Join(s.dir, name+CompressedExtension)
	tmp := dst + ".tmp"
	out, err := os.Create(tmp)
	if err != nil {
		return "", fmt.Errorf("creating archive: %w", err)
	}
	cleanup := func() {
		_ = out.Close()
		_ = os.Remove(tmp)
	}

	enc, err := zstd.NewWriter(out, zstd.WithEncoderLevel(zstd.SpeedBestCompression))
	if err != nil {
		cleanup()
		return "", fmt.Errorf("creating zstd encoder: %w", err)
	}
	if _, err := io.Copy(enc, src); err != nil {
		_ = enc.Close()
		cleanup()
		return "", fmt.Errorf("compressing session: %w", err)
	}
	if err := enc.Close(); err != nil {
		cleanup()
		return "", fmt.Errorf("compressing session: %w", err)
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("writing archive: %w", err)
	}
	if err := os.Rename(tmp, dst); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("renaming archive: %w", err)
	}
	_ = src.Close()
	if err := os.Remove(s.Path(name)); err != nil {
		return dst, fmt.Errorf("removing archived session: %w", err)
	}
	s.log.Info("session archived", zap.String("name", name), zap.String("path", dst))
	return dst, nil
}

func (s *FileStore) Close() error { return nil }

type fileWriter struct {
	f      *os.File
	w      *bufio.Writer
	closed bool
}

func (w *fileWriter) WriteLine(line string) error {
	if w.closed {
		return os.ErrClosed
	}
	if _, err := w.w.WriteString(line); err != nil {
		return err
	}
	return w.w.WriteByte('\n')
}

func (w *fileWriter) Flush() error {
	if w.closed {
		return os.ErrClosed
	}
	return w.w.Flush()
}

func (w *fileWriter) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	ferr := w.w.Flush()
	cerr := w.f.Close()
	return errors.Join(ferr, cerr)
}

type zstdReadCloser struct {
	dec *zstd.Decoder
	f   *os.File
}

func (z *zstdReadCloser) Read(p []byte) (int, error) { return z.dec.Read(p) }

func (z *zstdReadCloser) Close() error {
	z.dec.Close()
	return z.f.Close()
}
