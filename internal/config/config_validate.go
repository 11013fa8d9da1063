// Engagement - Interaction Recording and Aggregate Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/engagement

package config

import (
	"fmt"
	"net/url"
)

// Validate checks the configuration for values the service cannot run with.
func (c *Config) Validate() error {
	validators := []func() error{
		c.validateServer,
		c.validateStorage,
		c.validateEngagement,
		c.validateReconcile,
		c.validateIdentity,
		c.validateEvents,
		c.validateSecurity,
		c.validateAPI,
	}
	for _, v := range validators {
		if err := v(); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535")
	}
	if c.Server.Timeout <= 0 {
		return fmt.Errorf("HTTP_TIMEOUT must be positive")
	}
	return nil
}

func (c *Config) validateStorage() error {
	if !c.Storage.InMemory && c.Storage.Path == "" {
		return fmt.Errorf("BADGER_PATH is required unless BADGER_IN_MEMORY=true")
	}
	if c.Storage.GCDiscardRatio <= 0 || c.Storage.GCDiscardRatio >= 1 {
		return fmt.Errorf("BADGER_GC_DISCARD_RATIO must be between 0 and 1 exclusive")
	}
	if !c.Anomaly.MemoryOnly && c.Anomaly.Path == "" {
		return fmt.Errorf("ANOMALY_DB_PATH is required unless ANOMALY_MEMORY_ONLY=true")
	}
	return nil
}

func (c *Config) validateEngagement() error {
	e := c.Engagement
	if e.MaxAttempts < 1 || e.MaxAttempts > 10 {
		return fmt.Errorf("WRITE_MAX_ATTEMPTS must be between 1 and 10")
	}
	if e.BaseBackoff < 0 || e.MaxBackoff < e.BaseBackoff {
		return fmt.Errorf("WRITE_MAX_BACKOFF must be at least WRITE_BASE_BACKOFF")
	}
	if e.MaxCommentLen < 1 || e.MaxReplyLen < 1 {
		return fmt.Errorf("comment and reply length limits must be positive")
	}
	return nil
}

func (c *Config) validateReconcile() error {
	if !c.Reconcile.Enabled {
		return nil
	}
	if c.Reconcile.Interval <= 0 {
		return fmt.Errorf("RECONCILE_INTERVAL must be positive")
	}
	if c.Reconcile.ItemsPerSec <= 0 || c.Reconcile.Burst < 1 {
		return fmt.Errorf("RECONCILE_ITEMS_PER_SEC and RECONCILE_BURST must be positive")
	}
	return nil
}

func (c *Config) validateIdentity() error {
	if c.Identity.URL == "" {
		return nil
	}
	u, err := url.Parse(c.Identity.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("IDENTITY_URL must be an http(s) URL")
	}
	if c.Identity.Timeout <= 0 {
		return fmt.Errorf("IDENTITY_TIMEOUT must be positive")
	}
	return nil
}

func (c *Config) validateEvents() error {
	if !c.Events.Enabled {
		return nil
	}
	switch c.Events.Transport {
	case "nats":
		if c.Events.URL == "" && !c.Events.EmbeddedServer {
			return fmt.Errorf("NATS_URL is required unless NATS_EMBEDDED=true")
		}
	case "memory":
	default:
		return fmt.Errorf("EVENTS_TRANSPORT must be nats or memory, got %q", c.Events.Transport)
	}
	if c.Events.SubjectPrefix == "" {
		return fmt.Errorf("NATS_SUBJECT must not be empty")
	}
	return nil
}

func (c *Config) validateSecurity() error {
	switch c.Security.AuthMode {
	case "jwt":
		if len(c.Security.JWTSecret) < 32 {
			return fmt.Errorf("JWT_SECRET must be at least 32 characters when AUTH_MODE=jwt")
		}
	case "header":
		if c.IsProduction() {
			return fmt.Errorf("AUTH_MODE=header is not allowed in production")
		}
		if c.Security.UserHeader == "" {
			return fmt.Errorf("AUTH_USER_HEADER must not be empty")
		}
	default:
		return fmt.Errorf("AUTH_MODE must be jwt or header, got %q", c.Security.AuthMode)
	}
	if !c.Security.RateLimitDisabled && (c.Security.RateLimitReqs < 1 || c.Security.RateLimitWindow <= 0) {
		return fmt.Errorf("RATE_LIMIT_REQUESTS and RATE_LIMIT_WINDOW must be positive")
	}
	return nil
}

func (c *Config) validateAPI() error {
	if c.API.DefaultPageSize < 1 || c.API.MaxPageSize < c.API.DefaultPageSize {
		return fmt.Errorf("API_MAX_PAGE_SIZE must be at least API_DEFAULT_PAGE_SIZE (>=1)")
	}
	return nil
}
