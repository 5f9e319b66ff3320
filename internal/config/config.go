package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"
)

// Storage backends.
const (
	BackendFile   = "file"
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// Config is the top-level configuration for recording and replay.
type Config struct {
	Server    ServerConfig    `json:"server"`
	Recording RecordingConfig `json:"recording"`
	Replay    ReplayConfig    `json:"replay"`
	Storage   StorageConfig   `json:"storage"`
	Log       LogConfig       `json:"log"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr string `json:"addr"`
	// ReplaysPerMinute limits replay starts per client; 0 disables it.
	ReplaysPerMinute int `json:"replays_per_minute"`
	ReplayBurst      int `json:"replay_burst"`
	// TrustProxy keys the limit on X-Forwarded-For instead of the peer address.
	TrustProxy bool `json:"trust_proxy"`
}

// RecordingConfig controls capture cadence and the capture queue.
type RecordingConfig struct {
	FPS int `json:"fps"`
	// KeyframeInterval is in session seconds.
	KeyframeInterval  float64       `json:"keyframe_interval"`
	QuantizeDecimals  int           `json:"quantize_decimals"`
	QueueCapacity     int           `json:"queue_capacity"`
	ExplicitPlayerIDs bool          `json:"explicit_player_ids"`
	StopTimeout       time.Duration `json:"stop_timeout"`
}

// ReplayConfig controls headless playback.
type ReplayConfig struct {
	FPS   int     `json:"fps"`
	Speed float64 `json:"speed"`
	// Tail is how long to keep ticking after the last record, in seconds.
	Tail float64 `json:"tail"`
}

// StorageConfig selects where sessions live.
type StorageConfig struct {
	Backend string             `json:"backend"`
	Dir     string             `json:"dir"`
	Redis   StorageRedisConfig `json:"redis"`
}

// StorageRedisConfig configures the Redis storage backend.
type StorageRedisConfig struct {
	Host         string        `json:"host"`
	Port         int           `json:"port"`
	Password     string        `json:"password"`
	DB           int           `json:"db"`
	Cluster      bool          `json:"cluster"`
	ClusterNodes []string      `json:"cluster_nodes"`
	PoolSize     int           `json:"pool_size"`
	MaxRetries   int           `json:"max_retries"`
	DialTimeout  time.Duration `json:"dial_timeout"`
	Prefix       string        `json:"prefix"`
}

// LogConfig controls the process logger.
type LogConfig struct {
	Level string `json:"level"`
	// File enables a size-rotated log file in addition to stderr.
	File       string `json:"file"`
	JSON       bool   `json:"json"`
	MaxSizeMB  int    `json:"max_size_mb"`
	MaxBackups int    `json:"max_backups"`
}

// Default returns a Config with sensible defaults.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:             ":8080",
			ReplaysPerMinute: 30,
			ReplayBurst:      5,
		},
		Recording: RecordingConfig{
			FPS:              60,
			KeyframeInterval: 0.1,
			QuantizeDecimals: 3,
			QueueCapacity:    4096,
			StopTimeout:      500 * time.Millisecond,
		},
		Replay: ReplayConfig{
			FPS:   60,
			Speed: 1,
		},
		Storage: StorageConfig{
			Backend: BackendFile,
			Dir:     "recordings",
			Redis: StorageRedisConfig{
				Host:        "localhost",
				Port:        6379,
				PoolSize:    20,
				MaxRetries:  3,
				DialTimeout: 5 * time.Second,
				Prefix:      "rewind:",
			},
		},
		Log: LogConfig{
			Level:      "info",
			MaxSizeMB:  50,
			MaxBackups: 3,
		},
	}
}

// Validate checks that the config is valid.
func (c Config) Validate() error {
	if c.Server.ReplaysPerMinute < 0 {
		return fmt.Errorf("server.replays_per_minute must not be negative, got %d", c.Server.ReplaysPerMinute)
	}
	if c.Server.ReplayBurst < 0 {
		return fmt.Errorf("server.replay_burst must not be negative, got %d", c.Server.ReplayBurst)
	}

	r := c.Recording
	if r.FPS <= 0 {
		return fmt.Errorf("recording.fps must be positive, got %d", r.FPS)
	}
	if r.KeyframeInterval <= 0 {
		return fmt.Errorf("recording.keyframe_interval must be positive, got %v", r.KeyframeInterval)
	}
	if r.QuantizeDecimals < 0 || r.QuantizeDecimals > 9 {
		return fmt.Errorf("recording.quantize_decimals must be in [0, 9], got %d", r.QuantizeDecimals)
	}
	if r.QueueCapacity <= 0 {
		return fmt.Errorf("recording.queue_capacity must be positive, got %d", r.QueueCapacity)
	}
	if r.StopTimeout < 0 {
		return fmt.Errorf("recording.stop_timeout must be non-negative, got %s", r.StopTimeout)
	}

	if c.Replay.FPS <= 0 {
		return fmt.Errorf("replay.fps must be positive, got %d", c.Replay.FPS)
	}
	if c.Replay.Speed < 0 {
		return fmt.Errorf("replay.speed must be non-negative, got %v", c.Replay.Speed)
	}
	if c.Replay.Tail < 0 {
		return fmt.Errorf("replay.tail must be non-negative, got %v", c.Replay.Tail)
	}

	switch strings.ToLower(c.Storage.Backend) {
	case BackendFile:
		if strings.TrimSpace(c.Storage.Dir) == "" {
			return fmt.Errorf("storage.dir is required for file backend")
		}
	case BackendMemory:
	case BackendRedis:
		if c.Storage.Redis.Cluster {
			if len(c.Storage.Redis.ClusterNodes) == 0 {
				return fmt.Errorf("storage.redis.cluster_nodes is required when cluster is enabled")
			}
		} else {
			if strings.TrimSpace(c.Storage.Redis.Host) == "" {
				return fmt.Errorf("storage.redis.host is required for redis backend")
			}
			if c.Storage.Redis.Port <= 0 {
				return fmt.Errorf("storage.redis.port must be positive, got %d", c.Storage.Redis.Port)
			}
		}
		if c.Storage.Redis.DialTimeout < 0 {
			return fmt.Errorf("storage.redis.dial_timeout must be non-negative, got %s", c.Storage.Redis.DialTimeout)
		}
	default:
		return fmt.Errorf("unknown storage backend %q, must be one of: file, memory, redis", c.Storage.Backend)
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level %q, must be one of: debug, info, warn, error", c.Log.Level)
	}
	return nil
}

// LoadFile reads a JSON config file and merges it with defaults.
// Fields not specified in the file retain their default values.
func LoadFile(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading config file: %w", err)
	}

	// Use a raw intermediate struct to handle duration parsing.
	var raw rawConfig
	if err := json.Unmarshal(data, &raw); err != nil {
		return cfg, fmt.Errorf("parsing config file: %w", err)
	}

	if raw.Server.Addr != "" {
		cfg.Server.Addr = raw.Server.Addr
	}
	if raw.Server.ReplaysPerMinute != nil {
		cfg.Server.ReplaysPerMinute = *raw.Server.ReplaysPerMinute
	}
	if raw.Server.ReplayBurst > 0 {
		cfg.Server.ReplayBurst = raw.Server.ReplayBurst
	}
	cfg.Server.TrustProxy = raw.Server.TrustProxy

	rec := raw.Recording
	if rec.FPS > 0 {
		cfg.Recording.FPS = rec.FPS
	}
	if rec.KeyframeInterval > 0 {
		cfg.Recording.KeyframeInterval = rec.KeyframeInterval
	}
	if rec.QuantizeDecimals != nil {
		cfg.Recording.QuantizeDecimals = *rec.QuantizeDecimals
	}
	if rec.QueueCapacity > 0 {
		cfg.Recording.QueueCapacity = rec.QueueCapacity
	}
	if rec.ExplicitPlayerIDs != nil {
		cfg.Recording.ExplicitPlayerIDs = *rec.ExplicitPlayerIDs
	}
	if rec.StopTimeout != "" {
		d, err := time.ParseDuration(rec.StopTimeout)
		if err != nil {
			return cfg, fmt.Errorf("parsing recording.stop_timeout: %w", err)
		}
		cfg.Recording.StopTimeout = d
	}

	if raw.Replay.FPS > 0 {
		cfg.Replay.FPS = raw.Replay.FPS
	}
	if raw.Replay.Speed != nil {
		cfg.Replay.Speed = *raw.Replay.Speed
	}
	if raw.Replay.Tail > 0 {
		cfg.Replay.Tail = raw.Replay.Tail
	}

	st := raw.Storage
	if st.Backend != "" {
		cfg.Storage.Backend = strings.ToLower(st.Backend)
	}
	if st.Dir != "" {
		cfg.Storage.Dir = st.Dir
	}
	if st.Redis.Host != "" {
		cfg.Storage.Redis.Host = st.Redis.Host
	}
	if st.Redis.Port > 0 {
		cfg.Storage.Redis.Port = st.Redis.Port
	}
	if st.Redis.Password != "" {
		cfg.Storage.Redis.Password = st.Redis.Password
	}
	if st.Redis.DB > 0 {
		cfg.Storage.Redis.DB = st.Redis.DB
	}
	if st.Redis.Cluster {
		cfg.Storage.Redis.Cluster = true
	}
	if len(st.Redis.ClusterNodes) > 0 {
		cfg.Storage.Redis.ClusterNodes = append([]string(nil), st.Redis.ClusterNodes...)
	}
	if st.Redis.PoolSize > 0 {
		cfg.Storage.Redis.PoolSize = st.Redis.PoolSize
	}
	if st.Redis.MaxRetries > 0 {
		cfg.Storage.Redis.MaxRetries = st.Redis.MaxRetries
	}
	if st.Redis.DialTimeout != "" {
		d, err := time.ParseDuration(st.Redis.DialTimeout)
		if err != nil {
			return cfg, fmt.Errorf("parsing storage.redis.dial_timeout: %w", err)
		}
		cfg.Storage.Redis.DialTimeout = d
	}
	if st.Redis.Prefix != "" {
		cfg.Storage.Redis.Prefix = st.Redis.Prefix
	}

	if raw.Log.Level != "" {
		cfg.Log.Level = raw.Log.Level
	}
	if raw.Log.File != "" {
		cfg.Log.File = raw.Log.File
	}
	if raw.Log.JSON {
		cfg.Log.JSON = true
	}
	if raw.Log.MaxSizeMB > 0 {
		cfg.Log.MaxSizeMB = raw.Log.MaxSizeMB
	}
	if raw.Log.MaxBackups > 0 {
		cfg.Log.MaxBackups = raw.Log.MaxBackups
	}

	return cfg, nil
}

// rawConfig is the JSON-friendly representation with string durations.
// Pointers mark fields whose zero value is a meaningful override.
type rawConfig struct {
	Server struct {
		Addr             string `json:"addr,omitempty" jsonschema:"description=HTTP listen address"`
		ReplaysPerMinute *int   `json:"replays_per_minute,omitempty" jsonschema:"minimum=0,description=Replay starts allowed per client per minute (0 disables the limit)"`
		ReplayBurst      int    `json:"replay_burst,omitempty" jsonschema:"minimum=0"`
		TrustProxy       bool   `json:"trust_proxy,omitempty" jsonschema:"description=Key the replay limit on X-Forwarded-For (only behind a proxy that sets it)"`
	} `json:"server,omitempty"`
	Recording struct {
		FPS               int     `json:"fps,omitempty" jsonschema:"minimum=1"`
		KeyframeInterval  float64 `json:"keyframe_interval,omitempty" jsonschema:"description=Seconds of session time between entity snapshots"`
		QuantizeDecimals  *int    `json:"quantize_decimals,omitempty" jsonschema:"minimum=0,maximum=9"`
		QueueCapacity     int     `json:"queue_capacity,omitempty" jsonschema:"minimum=1"`
		ExplicitPlayerIDs *bool   `json:"explicit_player_ids,omitempty"`
		StopTimeout       string  `json:"stop_timeout,omitempty" jsonschema:"description=Go duration such as 500ms"`
	} `json:"recording,omitempty"`
	Replay struct {
		FPS   int      `json:"fps,omitempty" jsonschema:"minimum=1"`
		Speed *float64 `json:"speed,omitempty" jsonschema:"minimum=0,description=Playback speed; 0 runs unpaced"`
		Tail  float64  `json:"tail,omitempty" jsonschema:"minimum=0"`
	} `json:"replay,omitempty"`
	Storage struct {
		Backend string `json:"backend,omitempty" jsonschema:"enum=file,enum=memory,enum=redis"`
		Dir     string `json:"dir,omitempty"`
		Redis   struct {
			Host         string   `json:"host,omitempty"`
			Port         int      `json:"port,omitempty"`
			Password     string   `json:"password,omitempty"`
			DB           int      `json:"db,omitempty"`
			Cluster      bool     `json:"cluster,omitempty"`
			ClusterNodes []string `json:"cluster_nodes,omitempty"`
			PoolSize     int      `json:"pool_size,omitempty"`
			MaxRetries   int      `json:"max_retries,omitempty"`
			DialTimeout  string   `json:"dial_timeout,omitempty"`
			Prefix       string   `json:"prefix,omitempty"`
		} `json:"redis,omitempty"`
	} `json:"storage,omitempty"`
	Log struct {
		Level      string `json:"level,omitempty" jsonschema:"enum=debug,enum=info,enum=warn,enum=error"`
		File       string `json:"file,omitempty"`
		JSON       bool   `json:"json,omitempty"`
		MaxSizeMB  int    `json:"max_size_mb,omitempty"`
		MaxBackups int    `json:"max_backups,omitempty"`
	} `json:"log,omitempty"`
}

// WriteExample writes an example config file to the given path.
func WriteExample(path string) error {
	example := `{
  "server": {
    "addr": ":8080",
    "replays_per_minute": 30,
    "replay_burst": 5,
    "trust_proxy": false
  },
  "recording": {
    "fps": 60,
    "keyframe_interval": 0.1,
    "quantize_decimals": 3,
    "queue_capacity": 4096,
    "explicit_player_ids": false,
    "stop_timeout": "500ms"
  },
  "replay": {
    "fps": 60,
    "speed": 1,
    "tail": 0.5
  },
  "storage": {
    "backend": "file",
    "dir": "recordings",
    "redis": {
      "host": "localhost",
      "port": 6379,
      "dial_timeout": "5s",
      "prefix": "rewind:"
    }
  },
  "log": {
    "level": "info"
  }
}
`
	return os.WriteFile(path, []byte(example), 0o644)
}
