package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultRedisPoolSize    = 20
	defaultRedisMaxRetries  = 3
	defaultRedisDialTimeout = 5 * time.Second

	defaultRedisPrefix = "rewind:"
)

// RedisConfig configures the Redis session backend.
type RedisConfig struct {
	Host         string
	Port         int
	Password     string
	DB           int
	Cluster      bool
	ClusterNodes []string
	PoolSize     int
	MaxRetries   int
	DialTimeout  time.Duration
	// Prefix namespaces every key written by the store.
	Prefix string
}

// RedisStore keeps each session as a Redis list of lines. A sorted set
// indexes session names by creation time; a small hash per session tracks
// its size and last flush.
type RedisStore struct {
	client redis.UniversalClient
	prefix string

	closeOnce sync.Once
	closeErr  error
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore constructs a Redis backend.
func NewRedisStore(cfg *RedisConfig) (*RedisStore, error) {
	conf, err := normalizeRedisConfig(cfg)
	if err != nil {
		return nil, err
	}

	client, err := newRedisClient(conf)
	if err != nil {
		return nil, err
	}

	s := &RedisStore{
		client: client,
		prefix: conf.Prefix,
	}

	if err := s.pingWithRetry(context.Background(), conf.MaxRetries); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return s, nil
}

// Per-session keys share a hash tag so cluster transactions stay on one slot.
func (s *RedisStore) indexKey() string { return s.prefix + "sessions" }
func (s *RedisStore) linesKey(name string) string { return s.prefix + "{" + name + "}:lines" }
func (s *RedisStore) metaKey(name string) string { return s.prefix + "{" + name + "}:meta" }

func (s *RedisStore) Create(ctx context.Context, name string) (LineWriter, error) {
	name = TrimName(name)
	if err := ValidateName(name); err != nil {
		return nil, err
	}

	now := time.Now()
	added, err := s.client.ZAddNX(ctx, s.indexKey(), redis.Z{
		Score:  float64(now.UnixMilli()),
		Member: name,
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("registering session: %w", err)
	}
	if added == 0 {
		return nil, fmt.Errorf("%w: %s", ErrExists, name)
	}
	if err := s.client.HSet(ctx, s.metaKey(name), "bytes", 0, "updated", now.UnixMilli()).Err(); err != nil {
		return nil, fmt.Errorf("writing session metadata: %w", err)
	}
	return &redisWriter{store: s, name: name}, nil
}

func (s *RedisStore) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	name = TrimName(name)
	if err := s.exists(ctx, name); err != nil {
		return nil, err
	}

	lines, err := s.client.LRange(ctx, s.linesKey(name), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("reading session: %w", err)
	}
	var b strings.Builder
	for _, l := range lines {
		b.WriteString(l)
		b.WriteByte('\n')
	}
	return io.NopCloser(strings.NewReader(b.String())), nil
}

func (s *RedisStore) List(ctx context.Context) ([]SessionInfo, error) {
	names, err := s.client.ZRange(ctx, s.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	if len(names) == 0 {
		return nil, nil
	}

	pipe := s.client.Pipeline()
	lens := make([]*redis.IntCmd, len(names))
	metas := make([]*redis.MapStringStringCmd, len(names))
	for i, name := range names {
		lens[i] = pipe.LLen(ctx, s.linesKey(name))
		metas[i] = pipe.HGetAll(ctx, s.metaKey(name))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("reading session metadata: %w", err)
	}

	out := make([]SessionInfo, 0, len(names))
	for i, name := range names {
		meta := metas[i].Val()
		info := SessionInfo{Name: name, Lines: int(lens[i].Val())}
		if v, err := strconv.ParseInt(meta["bytes"], 10, 64); err == nil {
			info.Bytes = v
		}
		if v, err := strconv.ParseInt(meta["updated"], 10, 64); err == nil {
			info.ModTime = time.UnixMilli(v)
		}
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Delete removes a session and its index entry.
func (s *RedisStore) Delete(ctx context.Context, name string) error {
	name = TrimName(name)
	pipe := s.client.Pipeline()
	pipe.Del(ctx, s.linesKey(name), s.metaKey(name))
	pipe.ZRem(ctx, s.indexKey(), name)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	return nil
}

// Close releases Redis resources. It is idempotent.
func (s *RedisStore) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.client.Close()
	})
	return s.closeErr
}

func (s *RedisStore) exists(ctx context.Context, name string) error {
	err := s.client.ZScore(ctx, s.indexKey(), name).Err()
	if errors.Is(err, redis.Nil) {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if err != nil {
		return fmt.Errorf("looking up session: %w", err)
	}
	return nil
}

func (s *RedisStore) pingWithRetry(ctx context.Context, maxRetries int) error {
	attempts := maxRetries + 1
	if attempts < 1 {
		attempts = 1
	}

	backoff := 100 * time.Millisecond
	var lastErr error
	for i := 0; i < attempts; i++ {
		if err := s.client.Ping(ctx).Err(); err == nil {
			return nil
		} else {
			lastErr = err
		}

		if i == attempts-1 {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}

		backoff *= 2
	}

	if lastErr == nil {
		lastErr = errors.New("ping failed with unknown error")
	}
	return lastErr
}

func normalizeRedisConfig(cfg *RedisConfig) (*RedisConfig, error) {
	if cfg == nil {
		return nil, fmt.Errorf("redis config is required")
	}

	conf := *cfg
	if conf.PoolSize <= 0 {
		conf.PoolSize = defaultRedisPoolSize
	}
	if conf.MaxRetries <= 0 {
		conf.MaxRetries = defaultRedisMaxRetries
	}
	if conf.DialTimeout <= 0 {
		conf.DialTimeout = defaultRedisDialTimeout
	}
	if conf.Prefix == "" {
		conf.Prefix = defaultRedisPrefix
	}

	if conf.Cluster {
		if len(conf.ClusterNodes) == 0 {
			return nil, fmt.Errorf("cluster_nodes is required when cluster=true")
		}
	} else {
		if conf.Host == "" {
			return nil, fmt.Errorf("host is required when cluster=false")
		}
		if conf.Port <= 0 {
			return nil, fmt.Errorf("port must be positive when cluster=false, got %d", conf.Port)
		}
	}

	return &conf, nil
}

func newRedisClient(cfg *RedisConfig) (redis.UniversalClient, error) {
	if cfg.Cluster {
		return redis.NewClusterClient(&redis.ClusterOptions{
			Addrs:       cfg.ClusterNodes,
			Password:    cfg.Password,
			PoolSize:    cfg.PoolSize,
			MaxRetries:  cfg.MaxRetries,
			DialTimeout: cfg.DialTimeout,
		}), nil
	}

	addr := cfg.Host + ":" + strconv.Itoa(cfg.Port)
	return redis.NewClient(&redis.Options{
		Addr:        addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		PoolSize:    cfg.PoolSize,
		MaxRetries:  cfg.MaxRetries,
		DialTimeout: cfg.DialTimeout,
	}), nil
}

// redisWriter buffers lines until Flush, then appends them in one round trip.
type redisWriter struct {
	store   *RedisStore
	name    string
	pending []interface{}
	bytes   int64
	closed  bool
}

func (w *redisWriter) WriteLine(line string) error {
	if w.closed {
		return errors.New("redis session writer closed")
	}
	w.pending = append(w.pending, line)
	w.bytes += int64(len(line)) + 1
	return nil
}

func (w *redisWriter) Flush() error {
	if w.closed {
		return errors.New("redis session writer closed")
	}
	if len(w.pending) == 0 {
		return nil
	}

	ctx := context.Background()
	s := w.store
	pipe := s.client.TxPipeline()
	pipe.RPush(ctx, s.linesKey(w.name), w.pending...)
	pipe.HIncrBy(ctx, s.metaKey(w.name), "bytes", w.bytes)
	pipe.HSet(ctx, s.metaKey(w.name), "updated", time.Now().UnixMilli())
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("appending session lines: %w", err)
	}
	w.pending = w.pending[:0]
	w.bytes = 0
	return nil
}

func (w *redisWriter) Close() error {
	if w.closed {
		return nil
	}
	err := w.Flush()
	w.closed = true
	return err
}
