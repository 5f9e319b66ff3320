package cli

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/SmitUplenchwar2687/rewind/internal/config"
	"github.com/SmitUplenchwar2687/rewind/internal/storage"
)

type storageOptions struct {
	backend           string
	dir               string
	redisHost         string
	redisPort         int
	redisPassword     string
	redisDB           int
	redisCluster      bool
	redisClusterNodes []string
	redisPoolSize     int
	redisMaxRetries   int
	redisDialTimeout  time.Duration
	redisPrefix       string
}

func defaultStorageOptions() storageOptions {
	def := config.Default().Storage
	return storageOptions{
		backend:          def.Backend,
		dir:              def.Dir,
		redisHost:        def.Redis.Host,
		redisPort:        def.Redis.Port,
		redisPoolSize:    def.Redis.PoolSize,
		redisMaxRetries:  def.Redis.MaxRetries,
		redisDialTimeout: def.Redis.DialTimeout,
		redisPrefix:      def.Redis.Prefix,
	}
}

func (o *storageOptions) addFlags(cmd *cobra.Command) {
	def := defaultStorageOptions()
	flags := cmd.PersistentFlags()
	flags.StringVar(&o.backend, "storage", def.backend, "session storage backend (file, memory, redis)")
	flags.StringVar(&o.dir, "dir", def.dir, "session directory for the file backend")
	flags.StringVar(&o.redisHost, "redis-host", def.redisHost, "redis host (or host:port)")
	flags.IntVar(&o.redisPort, "redis-port", def.redisPort, "redis port")
	flags.StringVar(&o.redisPassword, "redis-password", "", "redis password")
	flags.IntVar(&o.redisDB, "redis-db", 0, "redis database index")
	flags.BoolVar(&o.redisCluster, "redis-cluster", false, "enable redis cluster mode")
	flags.StringSliceVar(&o.redisClusterNodes, "redis-cluster-nodes", nil, "redis cluster nodes host:port list")
	flags.IntVar(&o.redisPoolSize, "redis-pool-size", def.redisPoolSize, "redis connection pool size")
	flags.IntVar(&o.redisMaxRetries, "redis-max-retries", def.redisMaxRetries, "redis max retries")
	flags.DurationVar(&o.redisDialTimeout, "redis-dial-timeout", def.redisDialTimeout, "redis dial timeout")
	flags.StringVar(&o.redisPrefix, "redis-prefix", def.redisPrefix, "key prefix for sessions stored in redis")
}

func (o *storageOptions) applyConfigIfUnset(cmd *cobra.Command, cfg *config.StorageConfig) {
	if cfg == nil {
		return
	}

	if !cmd.Flags().Changed("storage") {
		o.backend = cfg.Backend
	}
	if !cmd.Flags().Changed("dir") {
		o.dir = cfg.Dir
	}
	if !cmd.Flags().Changed("redis-host") {
		o.redisHost = cfg.Redis.Host
	}
	if !cmd.Flags().Changed("redis-port") {
		o.redisPort = cfg.Redis.Port
	}
	if !cmd.Flags().Changed("redis-password") {
		o.redisPassword = cfg.Redis.Password
	}
	if !cmd.Flags().Changed("redis-db") {
		o.redisDB = cfg.Redis.DB
	}
	if !cmd.Flags().Changed("redis-cluster") {
		o.redisCluster = cfg.Redis.Cluster
	}
	if !cmd.Flags().Changed("redis-cluster-nodes") {
		o.redisClusterNodes = cfg.Redis.ClusterNodes
	}
	if !cmd.Flags().Changed("redis-pool-size") {
		o.redisPoolSize = cfg.Redis.PoolSize
	}
	if !cmd.Flags().Changed("redis-max-retries") {
		o.redisMaxRetries = cfg.Redis.MaxRetries
	}
	if !cmd.Flags().Changed("redis-dial-timeout") {
		o.redisDialTimeout = cfg.Redis.DialTimeout
	}
	if !cmd.Flags().Changed("redis-prefix") {
		o.redisPrefix = cfg.Redis.Prefix
	}
}

func (o *storageOptions) normalize() error {
	o.backend = strings.ToLower(strings.TrimSpace(o.backend))
	if o.backend != config.BackendRedis || o.redisCluster {
		return nil
	}

	host, port, err := normalizeRedisHostPort(o.redisHost, o.redisPort)
	if err != nil {
		return err
	}
	o.redisHost = host
	o.redisPort = port
	return nil
}

func (o *storageOptions) toConfig() config.StorageConfig {
	return config.StorageConfig{
		Backend: o.backend,
		Dir:     o.dir,
		Redis: config.StorageRedisConfig{
			Host:         o.redisHost,
			Port:         o.redisPort,
			Password:     o.redisPassword,
			DB:           o.redisDB,
			Cluster:      o.redisCluster,
			ClusterNodes: append([]string(nil), o.redisClusterNodes...),
			PoolSize:     o.redisPoolSize,
			MaxRetries:   o.redisMaxRetries,
			DialTimeout:  o.redisDialTimeout,
			Prefix:       o.redisPrefix,
		},
	}
}

func normalizeRedisHostPort(host string, port int) (string, int, error) {
	if strings.Contains(host, ":") {
		h, p, err := net.SplitHostPort(host)
		if err != nil {
			return "", 0, fmt.Errorf("invalid --redis-host value %q: %w", host, err)
		}
		n, err := strconv.Atoi(p)
		if err != nil {
			return "", 0, fmt.Errorf("invalid redis port in --redis-host %q: %w", host, err)
		}
		host = h
		port = n
	}

	if host == "" {
		return "", 0, fmt.Errorf("redis host cannot be empty")
	}
	if port <= 0 {
		return "", 0, fmt.Errorf("redis port must be positive, got %d", port)
	}

	return host, port, nil
}

func openStore(cfg config.StorageConfig, log *zap.Logger) (storage.Store, error) {
	switch cfg.Backend {
	case config.BackendFile:
		fs, err := storage.NewFileStore(cfg.Dir, log)
		if err != nil {
			return nil, err
		}
		return fs, nil
	case config.BackendMemory:
		return storage.NewMemoryStore(nil), nil
	case config.BackendRedis:
		r := cfg.Redis
		rs, err := storage.NewRedisStore(&storage.RedisConfig{
			Host:         r.Host,
			Port:         r.Port,
			Password:     r.Password,
			DB:           r.DB,
			Cluster:      r.Cluster,
			ClusterNodes: r.ClusterNodes,
			PoolSize:     r.PoolSize,
			MaxRetries:   r.MaxRetries,
			DialTimeout:  r.DialTimeout,
			Prefix:       r.Prefix,
		})
		if err != nil {
			return nil, err
		}
		return rs, nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}
