// Engagement - Interaction Recording and Aggregate Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/engagement

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths are searched in order when CONFIG_PATH is unset.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/engagement/config.yaml",
}

// ConfigPathEnvVar overrides the config file location.
const ConfigPathEnvVar = "CONFIG_PATH"

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			Host:            "0.0.0.0",
			Timeout:         30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			Environment:     "development",
		},
		Storage: StorageConfig{
			Path:           "/data/engagement/badger",
			GCInterval:     10 * time.Minute,
			GCDiscardRatio: 0.5,
		},
		Anomaly: AnomalyConfig{
			Path:         "/data/engagement/anomalies.duckdb",
			MemoryMaxLen: 10000,
		},
		Engagement: EngagementConfig{
			MaxAttempts:   3,
			BaseBackoff:   5 * time.Millisecond,
			MaxBackoff:    100 * time.Millisecond,
			MaxCommentLen: 500,
			MaxReplyLen:   300,
			DefaultAvatar: "/static/avatar-default.png",
		},
		Reconcile: ReconcileConfig{
			Enabled:       true,
			Interval:      15 * time.Minute,
			ItemsPerSec:   200,
			Burst:         50,
			RunOnStartup:  false,
			SweepDeadline: 10 * time.Minute,
		},
		Identity: IdentityConfig{
			Timeout:         2 * time.Second,
			CacheTTL:        5 * time.Minute,
			CacheMax:        50000,
			BreakerFailures: 5,
			BreakerTimeout:  30 * time.Second,
		},
		Events: EventsConfig{
			Enabled:        false,
			Transport:      "nats",
			URL:            "nats://127.0.0.1:4222",
			EmbeddedServer: false,
			StoreDir:       "/data/engagement/jetstream",
			StreamName:     "INTERACTIONS",
			SubjectPrefix:  "interactions",
			MaxReconnects:  -1,
			ReconnectWait:  2 * time.Second,
		},
		Security: SecurityConfig{
			AuthMode:        "jwt",
			UserHeader:      "X-User-ID",
			CORSOrigins:     []string{"*"},
			RateLimitReqs:   100,
			RateLimitWindow: time.Minute,
		},
		API: APIConfig{
			DefaultPageSize: 20,
			MaxPageSize:     100,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load builds the configuration from defaults, the config file (if any) and
// the environment, then validates it.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func findConfigFile() string {
	if p := os.Getenv(ConfigPathEnvVar); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	for _, p := range DefaultConfigPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

var sliceConfigPaths = []string{
	"security.cors_origins",
	"security.admin_users",
}

// processSliceFields splits comma-separated env values for slice fields.
// Values loaded from YAML are already slices and are left alone.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		s, ok := k.Get(path).(string)
		if !ok {
			continue
		}
		parts := make([]string, 0)
		for _, p := range strings.Split(s, ",") {
			if p = strings.TrimSpace(p); p != "" {
				parts = append(parts, p)
			}
		}
		if err := k.Set(path, parts); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

// envMappings maps environment variable names (lower-cased) to koanf paths.
// Unlisted variables are ignored so the process environment cannot leak
// unrelated keys into the config tree.
var envMappings = map[string]string{
	"http_port":        "server.port",
	"http_host":        "server.host",
	"http_timeout":     "server.timeout",
	"shutdown_timeout": "server.shutdown_timeout",
	"environment":      "server.environment",

	"badger_path":             "storage.path",
	"badger_in_memory":        "storage.in_memory",
	"badger_gc_interval":      "storage.gc_interval",
	"badger_gc_discard_ratio": "storage.gc_discard_ratio",

	"anomaly_db_path":     "anomaly.path",
	"anomaly_memory_only": "anomaly.memory_only",
	"anomaly_memory_max":  "anomaly.memory_max_len",

	"write_max_attempts": "engagement.max_attempts",
	"write_base_backoff": "engagement.base_backoff",
	"write_max_backoff":  "engagement.max_backoff",
	"max_comment_length": "engagement.max_comment_len",
	"max_reply_length":   "engagement.max_reply_len",
	"default_avatar_url": "engagement.default_avatar",

	"reconcile_enabled":        "reconcile.enabled",
	"reconcile_interval":       "reconcile.interval",
	"reconcile_items_per_sec":  "reconcile.items_per_sec",
	"reconcile_burst":          "reconcile.burst",
	"reconcile_run_on_startup": "reconcile.run_on_startup",
	"reconcile_sweep_deadline": "reconcile.sweep_deadline",

	"identity_url":              "identity.url",
	"identity_timeout":          "identity.timeout",
	"identity_cache_ttl":        "identity.cache_ttl",
	"identity_cache_max":        "identity.cache_max",
	"identity_breaker_failures": "identity.breaker_failures",
	"identity_breaker_timeout":  "identity.breaker_timeout",

	"events_enabled":      "events.enabled",
	"events_transport":    "events.transport",
	"nats_url":            "events.url",
	"nats_embedded":       "events.embedded_server",
	"nats_store_dir":      "events.store_dir",
	"nats_stream_name":    "events.stream_name",
	"nats_subject":        "events.subject_prefix",
	"nats_max_reconnect":  "events.max_reconnects",
	"nats_reconnect_wait": "events.reconnect_wait",

	"auth_mode":           "security.auth_mode",
	"jwt_secret":          "security.jwt_secret",
	"jwt_issuer":          "security.jwt_issuer",
	"auth_user_header":    "security.user_header",
	"admin_users":         "security.admin_users",
	"authz_policy_path":   "security.policy_path",
	"cors_origins":        "security.cors_origins",
	"rate_limit_requests": "security.rate_limit_requests",
	"rate_limit_window":   "security.rate_limit_window",
	"disable_rate_limit":  "security.rate_limit_disabled",

	"api_default_page_size": "api.default_page_size",
	"api_max_page_size":     "api.max_page_size",

	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",
}

func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}
