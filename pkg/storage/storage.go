// Package storage exposes the session stores.
package storage

import (
	"go.uber.org/zap"

	internalstorage "github.com/SmitUplenchwar2687/rewind/internal/storage"
)

type (
	Store       = internalstorage.Store
	LineWriter  = internalstorage.LineWriter
	SessionInfo = internalstorage.SessionInfo
	FileStore   = internalstorage.FileStore
	MemoryStore = internalstorage.MemoryStore
	RedisStore  = internalstorage.RedisStore
	RedisConfig = internalstorage.RedisConfig
)

var (
	ErrNotFound = internalstorage.ErrNotFound
	ErrExists   = internalstorage.ErrExists
)

// NewFileStore stores sessions as files under dir.
func NewFileStore(dir string, log *zap.Logger) (*FileStore, error) {
	return internalstorage.NewFileStore(dir, log)
}

// NewMemoryStore keeps sessions in process memory.
func NewMemoryStore() *MemoryStore {
	return internalstorage.NewMemoryStore(nil)
}

// NewRedisStore keeps sessions in Redis lists.
func NewRedisStore(cfg *RedisConfig) (*RedisStore, error) {
	return internalstorage.NewRedisStore(cfg)
}
