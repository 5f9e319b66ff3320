package cli

import (
	"testing"
	"time"

	"github.com/spf13/cobra"

	"github.com/SmitUplenchwar2687/rewind/internal/config"
	"github.com/SmitUplenchwar2687/rewind/internal/storage"
)

func TestNormalizeRedisHostPort(t *testing.T) {
	host, port, err := normalizeRedisHostPort("localhost:6380", 6379)
	if err != nil {
		t.Fatalf("normalizeRedisHostPort() error = %v", err)
	}
	if host != "localhost" || port != 6380 {
		t.Fatalf("normalizeRedisHostPort() = %s:%d, want localhost:6380", host, port)
	}

	host, port, err = normalizeRedisHostPort("redis.internal", 6379)
	if err != nil {
		t.Fatalf("normalizeRedisHostPort() error = %v", err)
	}
	if host != "redis.internal" || port != 6379 {
		t.Fatalf("normalizeRedisHostPort() = %s:%d, want redis.internal:6379", host, port)
	}
}

func TestNormalizeRedisHostPort_Invalid(t *testing.T) {
	if _, _, err := normalizeRedisHostPort("", 6379); err == nil {
		t.Fatal("expected error for empty host")
	}
	if _, _, err := normalizeRedisHostPort("localhost", 0); err == nil {
		t.Fatal("expected error for non-positive port")
	}
	if _, _, err := normalizeRedisHostPort("localhost:abc", 6379); err == nil {
		t.Fatal("expected error for non-numeric port")
	}
}

func TestStorageOptions_ConfigUnlessFlagSet(t *testing.T) {
	cmd := &cobra.Command{Use: "x"}
	o := defaultStorageOptions()
	o.addFlags(cmd)
	if err := cmd.ParseFlags([]string{"--redis-port", "7000"}); err != nil {
		t.Fatal(err)
	}

	cfg := config.Default().Storage
	cfg.Backend = config.BackendRedis
	cfg.Redis.Host = "cache:6390"
	cfg.Redis.Port = 6379
	cfg.Redis.DialTimeout = time.Second

	o.applyConfigIfUnset(cmd, &cfg)
	if err := o.normalize(); err != nil {
		t.Fatal(err)
	}
	got := o.toConfig()
	if got.Backend != config.BackendRedis {
		t.Errorf("backend = %q, want redis from config", got.Backend)
	}
	// host:port in the host field wins over both port sources.
	if got.Redis.Host != "cache" || got.Redis.Port != 6390 {
		t.Errorf("redis endpoint = %s:%d, want cache:6390", got.Redis.Host, got.Redis.Port)
	}
	if got.Redis.DialTimeout != time.Second {
		t.Errorf("dial timeout = %v, want 1s from config", got.Redis.DialTimeout)
	}
}

func TestOpenStore(t *testing.T) {
	fs, err := openStore(config.StorageConfig{Backend: config.BackendFile, Dir: t.TempDir()}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := fs.(*storage.FileStore); !ok {
		t.Errorf("file backend = %T", fs)
	}

	ms, err := openStore(config.StorageConfig{Backend: config.BackendMemory}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := ms.(*storage.MemoryStore); !ok {
		t.Errorf("memory backend = %T", ms)
	}

	if _, err := openStore(config.StorageConfig{Backend: "bogus"}, nil); err == nil {
		t.Error("expected error for unknown backend")
	}
}
