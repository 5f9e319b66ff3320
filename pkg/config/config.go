package config

import (
	"github.com/invopop/jsonschema"

	internalconfig "github.com/SmitUplenchwar2687/rewind/internal/config"
)

// Config is the top-level configuration for recording and replay.
type Config = internalconfig.Config

// ServerConfig holds HTTP server settings.
type ServerConfig = internalconfig.ServerConfig

// RecordingConfig controls capture cadence and the capture queue.
type RecordingConfig = internalconfig.RecordingConfig

// ReplayConfig controls headless playback.
type ReplayConfig = internalconfig.ReplayConfig

// StorageConfig selects where sessions live.
type StorageConfig = internalconfig.StorageConfig

// StorageRedisConfig configures the Redis storage backend.
type StorageRedisConfig = internalconfig.StorageRedisConfig

// LogConfig controls the process logger.
type LogConfig = internalconfig.LogConfig

// Default returns a Config with sensible defaults.
func Default() Config {
	return internalconfig.Default()
}

// LoadFile reads a JSON config file and merges it with defaults.
func LoadFile(path string) (Config, error) {
	return internalconfig.LoadFile(path)
}

// WriteExample writes an example config file to the given path.
func WriteExample(path string) error {
	return internalconfig.WriteExample(path)
}

// Schema returns the JSON schema of the config file.
func Schema() *jsonschema.Schema {
	return internalconfig.Schema()
}
