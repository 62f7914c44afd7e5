// Package config loads homestar's runtime configuration from the
// environment, grouped the way the teacher groups ServiceConfig /
// DatabaseConfig / ... into one Config struct.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all node configuration.
type Config struct {
	Service  ServiceConfig
	Database DatabaseConfig
	Network  NetworkConfig
	Sandbox  SandboxConfig
	Scheduler SchedulerConfig
	Queue    QueueConfig
	Features FeatureFlags
}

// ServiceConfig holds process-wide settings.
type ServiceConfig struct {
	Name        string
	Port        int
	Environment string
	LogLevel    string
	LogFormat   string
}

// DatabaseConfig holds the durable-store Postgres connection settings.
type DatabaseConfig struct {
	Host        string
	Port        int
	Database    string
	User        string
	Password    string
	MaxConns    int
	MinConns    int
	MaxIdleTime time.Duration
	MaxLifetime time.Duration
}

// NetworkConfig holds libp2p behavior settings.
type NetworkConfig struct {
	ListenAddrs       []string
	RendezvousString  string
	BootstrapPeers    []string
	EnableMDNS        bool
	QuorumTarget      int
	QuorumWait        bool
	DHTLookupTimeout  time.Duration
	RedialInterval    time.Duration
	PeerKeyPath       string
	PeerKeySeed       string
	PeerKeyType       string // "ed25519" or "secp256k1"
}

// SandboxConfig holds default Wasm resource limits.
type SandboxConfig struct {
	DefaultFuel    uint64 // 0 means unlimited
	DefaultMemory  uint64 // bytes
	DefaultTimeout time.Duration
}

// SchedulerConfig holds per-workflow worker behavior settings.
type SchedulerConfig struct {
	WorkerConcurrency int           // max tasks dispatched concurrently within one batch
	FetchRetryMax     int           // max attempts for a ResourceFetch failure
	FetchRetryElapsed time.Duration // total time budget across retries
}

// QueueConfig selects the backend for the runner's internal event bus.
type QueueConfig struct {
	Type string // "memory" or "redis"
	RedisAddr string
}

// FeatureFlags are MVP toggles.
type FeatureFlags struct {
	EnableDHT      bool
	EnableMDNS     bool
	RequireQuorum  bool
}

// Load reads configuration from the environment.
func Load(serviceName string) (*Config, error) {
	cfg := &Config{
		Service: ServiceConfig{
			Name:        serviceName,
			Port:        getEnvInt("PORT", 7437),
			Environment: getEnv("ENVIRONMENT", "development"),
			LogLevel:    getEnv("HOMESTAR_LOG_LEVEL", "info"),
			LogFormat:   getEnv("HOMESTAR_LOG_FORMAT", "text"),
		},
		Database: DatabaseConfig{
			Host:        getEnv("POSTGRES_HOST", "localhost"),
			Port:        getEnvInt("POSTGRES_PORT", 5432),
			Database:    getEnv("POSTGRES_DB", "homestar"),
			User:        getEnv("POSTGRES_USER", "homestar"),
			Password:    getEnv("POSTGRES_PASSWORD", "homestar"),
			MaxConns:    getEnvInt("POSTGRES_MAX_CONNS", 20),
			MinConns:    getEnvInt("POSTGRES_MIN_CONNS", 2),
			MaxIdleTime: getEnvDuration("POSTGRES_MAX_IDLE_TIME", 30*time.Minute),
			MaxLifetime: getEnvDuration("POSTGRES_MAX_LIFETIME", 1*time.Hour),
		},
		Network: NetworkConfig{
			ListenAddrs:      getEnvSlice("HOMESTAR_LISTEN_ADDRS", []string{"/ip4/0.0.0.0/tcp/0"}),
			RendezvousString: getEnv("HOMESTAR_RENDEZVOUS", "homestar.workflow"),
			BootstrapPeers:   getEnvSlice("HOMESTAR_BOOTSTRAP_PEERS", nil),
			EnableMDNS:       getEnvBool("HOMESTAR_ENABLE_MDNS", true),
			QuorumTarget:     getEnvInt("HOMESTAR_QUORUM_TARGET", 3),
			QuorumWait:       getEnvBool("HOMESTAR_QUORUM_WAIT", false),
			DHTLookupTimeout: getEnvDuration("HOMESTAR_DHT_LOOKUP_TIMEOUT", 5*time.Second),
			RedialInterval:   getEnvDuration("HOMESTAR_REDIAL_INTERVAL", 30*time.Second),
			PeerKeyPath:      getEnv("HOMESTAR_PEER_KEY_PATH", ""),
			PeerKeySeed:      getEnv("HOMESTAR_PEER_KEY_SEED", ""),
			PeerKeyType:      getEnv("HOMESTAR_PEER_KEY_TYPE", "ed25519"),
		},
		Sandbox: SandboxConfig{
			DefaultFuel:    uint64(getEnvInt("HOMESTAR_DEFAULT_FUEL", 0)),
			DefaultMemory:  uint64(getEnvInt("HOMESTAR_DEFAULT_MEMORY_BYTES", 4*1024*1024*1024)),
			DefaultTimeout: getEnvDuration("HOMESTAR_DEFAULT_TIMEOUT", 100*time.Second),
		},
		Scheduler: SchedulerConfig{
			WorkerConcurrency: getEnvInt("HOMESTAR_WORKER_CONCURRENCY", 8),
			FetchRetryMax:     getEnvInt("HOMESTAR_FETCH_RETRY_MAX", 5),
			FetchRetryElapsed: getEnvDuration("HOMESTAR_FETCH_RETRY_ELAPSED", 30*time.Second),
		},
		Queue: QueueConfig{
			Type:      getEnv("HOMESTAR_EVENTBUS_TYPE", "memory"),
			RedisAddr: getEnv("REDIS_ADDR", "localhost:6379"),
		},
		Features: FeatureFlags{
			EnableDHT:     getEnvBool("HOMESTAR_ENABLE_DHT", true),
			EnableMDNS:    getEnvBool("HOMESTAR_ENABLE_MDNS", true),
			RequireQuorum: getEnvBool("HOMESTAR_REQUIRE_QUORUM", false),
		},
	}

	return cfg, cfg.Validate()
}

// Validate sanity-checks the loaded configuration.
func (c *Config) Validate() error {
	if c.Service.Port < 1 || c.Service.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Service.Port)
	}
	if c.Database.MaxConns < c.Database.MinConns {
		return fmt.Errorf("max_conns must be >= min_conns")
	}
	if c.Network.QuorumTarget < 1 {
		return fmt.Errorf("quorum target must be >= 1")
	}
	if c.Scheduler.WorkerConcurrency < 1 {
		return fmt.Errorf("worker concurrency must be >= 1")
	}
	return nil
}

// DatabaseURL returns the PostgreSQL connection string for the durable store.
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.Database.User, c.Database.Password, c.Database.Host, c.Database.Port, c.Database.Database,
	)
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvSlice(key string, defaultValue []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if t := strings.TrimSpace(p); t != "" {
				out = append(out, t)
			}
		}
		return out
	}
	return defaultValue
}
