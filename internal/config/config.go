// Engagement - Interaction Recording and Aggregate Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/engagement

// Package config loads service configuration from defaults, an optional YAML
// file and environment variables, in that order of precedence.
package config

import "time"

// Config holds all application configuration.
type Config struct {
	Server     ServerConfig     `koanf:"server"`
	Storage    StorageConfig    `koanf:"storage"`
	Anomaly    AnomalyConfig    `koanf:"anomaly"`
	Engagement EngagementConfig `koanf:"engagement"`
	Reconcile  ReconcileConfig  `koanf:"reconcile"`
	Identity   IdentityConfig   `koanf:"identity"`
	Events     EventsConfig     `koanf:"events"`
	Security   SecurityConfig   `koanf:"security"`
	API        APIConfig        `koanf:"api"`
	Logging    LoggingConfig    `koanf:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `koanf:"port"`
	Host            string        `koanf:"host"`
	Timeout         time.Duration `koanf:"timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	Environment     string        `koanf:"environment"`
}

// StorageConfig configures the Badger content store.
type StorageConfig struct {
	// Path is the Badger directory. Ignored when InMemory is set.
	Path string `koanf:"path"`

	// InMemory runs Badger without touching disk. Data is lost on restart.
	InMemory bool `koanf:"in_memory"`

	// GCInterval is how often the value log garbage collector runs.
	GCInterval time.Duration `koanf:"gc_interval"`

	// GCDiscardRatio is passed to badger.DB.RunValueLogGC.
	GCDiscardRatio float64 `koanf:"gc_discard_ratio"`
}

// AnomalyConfig configures the reconciliation anomaly log.
type AnomalyConfig struct {
	// Path is the DuckDB file. ":memory:" keeps the log in process.
	Path string `koanf:"path"`

	// MemoryOnly skips DuckDB and uses a bounded in-memory ring.
	MemoryOnly bool `koanf:"memory_only"`

	// MemoryMaxLen bounds the in-memory store.
	MemoryMaxLen int `koanf:"memory_max_len"`
}

// EngagementConfig tunes the optimistic write path.
type EngagementConfig struct {
	MaxAttempts   int           `koanf:"max_attempts"`
	BaseBackoff   time.Duration `koanf:"base_backoff"`
	MaxBackoff    time.Duration `koanf:"max_backoff"`
	MaxCommentLen int           `koanf:"max_comment_len"`
	MaxReplyLen   int           `koanf:"max_reply_len"`
	DefaultAvatar string        `koanf:"default_avatar"`
}

// ReconcileConfig configures the reconciliation sweep.
type ReconcileConfig struct {
	Enabled       bool          `koanf:"enabled"`
	Interval      time.Duration `koanf:"interval"`
	ItemsPerSec   float64       `koanf:"items_per_sec"`
	Burst         int           `koanf:"burst"`
	RunOnStartup  bool          `koanf:"run_on_startup"`
	SweepDeadline time.Duration `koanf:"sweep_deadline"`
}

// IdentityConfig configures the identity directory client.
type IdentityConfig struct {
	// URL of the profile service batch endpoint. Empty uses the static directory.
	URL      string        `koanf:"url"`
	Timeout  time.Duration `koanf:"timeout"`
	CacheTTL time.Duration `koanf:"cache_ttl"`
	CacheMax int           `koanf:"cache_max"`

	// BreakerFailures is the consecutive failure count that opens the breaker.
	BreakerFailures uint32        `koanf:"breaker_failures"`
	BreakerTimeout  time.Duration `koanf:"breaker_timeout"`
}

// EventsConfig configures interaction event publishing.
type EventsConfig struct {
	Enabled bool `koanf:"enabled"`

	// Transport is "nats" or "memory".
	Transport string `koanf:"transport"`

	URL            string        `koanf:"url"`
	EmbeddedServer bool          `koanf:"embedded_server"`
	StoreDir       string        `koanf:"store_dir"`
	StreamName     string        `koanf:"stream_name"`
	SubjectPrefix  string        `koanf:"subject_prefix"`
	MaxReconnects  int           `koanf:"max_reconnects"`
	ReconnectWait  time.Duration `koanf:"reconnect_wait"`
}

// SecurityConfig holds caller identity and transport protection settings.
type SecurityConfig struct {
	// AuthMode is "jwt" (bearer tokens) or "header" (trusted gateway sets X-User-ID).
	AuthMode          string        `koanf:"auth_mode"`
	JWTSecret         string        `koanf:"jwt_secret"`
	JWTIssuer         string        `koanf:"jwt_issuer"`
	UserHeader        string        `koanf:"user_header"`
	AdminUsers        []string      `koanf:"admin_users"`
	PolicyPath        string        `koanf:"policy_path"`
	CORSOrigins       []string      `koanf:"cors_origins"`
	RateLimitReqs     int           `koanf:"rate_limit_requests"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
}

// APIConfig holds pagination limits.
type APIConfig struct {
	DefaultPageSize int `koanf:"default_page_size"`
	MaxPageSize     int `koanf:"max_page_size"`
}

// LoggingConfig mirrors logging.Config.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// IsProduction reports whether the service runs with production checks.
func (c *Config) IsProduction() bool {
	return c.Server.Environment == "production"
}
