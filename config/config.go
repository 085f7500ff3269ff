package config

import (
	"fmt"
	"time"
)

// Config is the complete configuration for the swarm service.
type Config struct {
	// Server holds HTTP server settings.
	Server ServerConfig `yaml:"server" env:"SERVER"`

	// Database holds durable storage settings.
	Database DatabaseConfig `yaml:"database" env:"DATABASE"`

	// Redis holds broadcast/cache settings.
	Redis RedisConfig `yaml:"redis" env:"REDIS"`

	// Swarm holds the coordination settings read at operation time.
	Swarm SwarmConfig `yaml:"swarm" env:"SWARM"`

	// Sweep holds the background sweep schedule.
	Sweep SweepConfig `yaml:"sweep" env:"SWEEP"`

	// Log holds logging settings.
	Log LogConfig `yaml:"log" env:"LOG"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// HTTP listen port
	HTTPPort int `yaml:"http_port" env:"HTTP_PORT"`
	// Metrics listen port
	MetricsPort int `yaml:"metrics_port" env:"METRICS_PORT"`
	// Read timeout
	ReadTimeout time.Duration `yaml:"read_timeout" env:"READ_TIMEOUT"`
	// Write timeout
	WriteTimeout time.Duration `yaml:"write_timeout" env:"WRITE_TIMEOUT"`
	// Graceful shutdown timeout
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
	// Rate limit per client, requests per second (0 disables)
	RateLimitRPS float64 `yaml:"rate_limit_rps" env:"RATE_LIMIT_RPS"`
	// Rate limit burst size
	RateLimitBurst int `yaml:"rate_limit_burst" env:"RATE_LIMIT_BURST"`
	// TLS certificate file; together with TLSKeyFile enables TLS serving
	TLSCertFile string `yaml:"tls_cert_file" env:"TLS_CERT_FILE"`
	// TLS private key file
	TLSKeyFile string `yaml:"tls_key_file" env:"TLS_KEY_FILE"`
}

// DatabaseConfig holds durable storage settings.
type DatabaseConfig struct {
	// Driver type: sqlite, postgres, mysql
	Driver string `yaml:"driver" env:"DRIVER"`
	// DSN is the driver-specific connection string. For sqlite this is the
	// database file path (":memory:" for ephemeral).
	DSN string `yaml:"dsn" env:"DSN"`
	// Maximum open connections
	MaxOpenConns int `yaml:"max_open_conns" env:"MAX_OPEN_CONNS"`
	// Maximum idle connections
	MaxIdleConns int `yaml:"max_idle_conns" env:"MAX_IDLE_CONNS"`
	// Connection maximum lifetime
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" env:"CONN_MAX_LIFETIME"`
}

// RedisConfig holds Redis settings for the broadcast emitter and the
// directory cache. Leave Addr empty to run without Redis.
type RedisConfig struct {
	// Address host:port
	Addr string `yaml:"addr" env:"ADDR"`
	// Password (optional)
	Password string `yaml:"password" env:"PASSWORD"`
	// Database number
	DB int `yaml:"db" env:"DB"`
	// Channel prefix for published events
	ChannelPrefix string `yaml:"channel_prefix" env:"CHANNEL_PREFIX"`
	// Connect over TLS
	TLS bool `yaml:"tls" env:"TLS"`
}

// SwarmConfig holds the coordination settings. Services read these through
// the hot-reload Store on every operation, so edits to the config file are
// observed without a restart.
type SwarmConfig struct {
	// Maximum agents a single owner may run
	MaxAgentsPerUser int `yaml:"max_agents_per_user" env:"MAX_AGENTS_PER_USER"`
	// Maximum concurrently active (non-terminal) tasks per owner
	MaxConcurrentTasks int `yaml:"max_concurrent_tasks" env:"MAX_CONCURRENT_TASKS"`
	// Default handoff expiry in seconds
	HandoffTimeoutSeconds int `yaml:"handoff_timeout_seconds" env:"HANDOFF_TIMEOUT_SECONDS"`
	// Default consensus quorum threshold, fraction of eligible voters
	ConsensusThresholdDefault float64 `yaml:"consensus_threshold_default" env:"CONSENSUS_THRESHOLD_DEFAULT"`
	// Default consensus request lifetime
	ConsensusExpiry time.Duration `yaml:"consensus_expiry" env:"CONSENSUS_EXPIRY"`
	// Auto-assign newly created tasks when no agent is named
	AutoAssignTasks bool `yaml:"auto_assign_tasks" env:"AUTO_ASSIGN_TASKS"`
	// Times a failed task re-enters the assignment pool before going terminal
	TaskRetryLimit int `yaml:"task_retry_limit" env:"TASK_RETRY_LIMIT"`
	// Minutes without a heartbeat before an agent is swept offline
	IdleAgentTimeoutMinutes int `yaml:"idle_agent_timeout_minutes" env:"IDLE_AGENT_TIMEOUT_MINUTES"`
}

// SweepConfig holds the background sweep schedule.
type SweepConfig struct {
	// Interval between stale-agent sweeps
	StaleAgentInterval time.Duration `yaml:"stale_agent_interval" env:"STALE_AGENT_INTERVAL"`
	// Interval between handoff/consensus expiry sweeps
	ExpiryInterval time.Duration `yaml:"expiry_interval" env:"EXPIRY_INTERVAL"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	// Level: debug, info, warn, error
	Level string `yaml:"level" env:"LEVEL"`
	// Format: json, console
	Format string `yaml:"format" env:"FORMAT"`
}

// DefaultConfig returns a Config populated with defaults suitable for
// local development.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			HTTPPort:        8080,
			MetricsPort:     9090,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			RateLimitRPS:    50,
			RateLimitBurst:  100,
		},
		Database: DatabaseConfig{
			Driver:          "sqlite",
			DSN:             "swarm.db",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: time.Hour,
		},
		Redis: RedisConfig{
			ChannelPrefix: "swarm:",
		},
		Swarm: SwarmConfig{
			MaxAgentsPerUser:          20,
			MaxConcurrentTasks:        100,
			HandoffTimeoutSeconds:     300,
			ConsensusThresholdDefault: 0.6,
			ConsensusExpiry:           5 * time.Minute,
			AutoAssignTasks:           true,
			TaskRetryLimit:            3,
			IdleAgentTimeoutMinutes:   10,
		},
		Sweep: SweepConfig{
			StaleAgentInterval: time.Minute,
			ExpiryInterval:     15 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Validate checks the configuration for values the services cannot work with.
func (c *Config) Validate() error {
	if c.Swarm.ConsensusThresholdDefault <= 0 || c.Swarm.ConsensusThresholdDefault > 1 {
		return fmt.Errorf("swarm.consensus_threshold_default must be in (0,1], got %v", c.Swarm.ConsensusThresholdDefault)
	}
	if c.Swarm.TaskRetryLimit < 0 {
		return fmt.Errorf("swarm.task_retry_limit must be >= 0, got %d", c.Swarm.TaskRetryLimit)
	}
	if c.Swarm.HandoffTimeoutSeconds <= 0 {
		return fmt.Errorf("swarm.handoff_timeout_seconds must be > 0, got %d", c.Swarm.HandoffTimeoutSeconds)
	}
	if c.Swarm.IdleAgentTimeoutMinutes <= 0 {
		return fmt.Errorf("swarm.idle_agent_timeout_minutes must be > 0, got %d", c.Swarm.IdleAgentTimeoutMinutes)
	}
	if (c.Server.TLSCertFile == "") != (c.Server.TLSKeyFile == "") {
		return fmt.Errorf("server.tls_cert_file and server.tls_key_file must be set together")
	}
	switch c.Database.Driver {
	case "sqlite", "postgres", "mysql":
	default:
		return fmt.Errorf("database.driver must be sqlite, postgres or mysql, got %q", c.Database.Driver)
	}
	return nil
}
