// Engagement - Interaction Recording and Aggregate Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/engagement

// Package identity resolves user IDs to display identities through the
// external profile directory, with caching and a placeholder for misses.
package identity

import (
	"context"
	"sync"
	"time"

	"github.com/tomtom215/engagement/internal/cache"
	"github.com/tomtom215/engagement/internal/config"
	"github.com/tomtom215/engagement/internal/logging"
	"github.com/tomtom215/engagement/internal/metrics"
	"github.com/tomtom215/engagement/internal/models"
)

// Directory looks up identities in bulk. IDs it does not know are simply
// absent from the result.
type Directory interface {
	BatchResolve(ctx context.Context, ids []string) (map[string]models.Identity, error)
}

// New builds the directory described by cfg: the HTTP client when a URL is
// configured, otherwise an empty static directory, wrapped in a cache.
func New(cfg *config.IdentityConfig) Directory {
	var dir Directory
	if cfg.URL != "" {
		dir = NewHTTPDirectory(cfg)
		logging.Info().Str("url", cfg.URL).Msg("Identity directory client configured")
	} else {
		dir = NewStaticDirectory(nil)
		logging.Warn().Msg("No identity directory configured; all users resolve to the placeholder")
	}
	return NewCachedDirectory(dir, cfg.CacheMax, cfg.CacheTTL)
}

// StaticDirectory serves identities from memory. It backs development
// deployments and tests.
type StaticDirectory struct {
	mu    sync.RWMutex
	users map[string]models.Identity
}

// NewStaticDirectory creates a directory seeded with users.
func NewStaticDirectory(users []models.Identity) *StaticDirectory {
	d := &StaticDirectory{users: make(map[string]models.Identity, len(users))}
	for _, u := range users {
		d.users[u.ID] = u
	}
	return d
}

// Put adds or replaces an identity.
func (d *StaticDirectory) Put(u models.Identity) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.users[u.ID] = u
}

func (d *StaticDirectory) BatchResolve(ctx context.Context, ids []string) (map[string]models.Identity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make(map[string]models.Identity, len(ids))
	for _, id := range ids {
		if u, ok := d.users[id]; ok {
			out[id] = u
		}
	}
	return out, nil
}

// CachedDirectory serves repeat lookups from an LRU and forwards only the
// misses, in one batch, to the wrapped directory. Unknown IDs are not cached
// so a newly created profile shows up on the next lookup.
type CachedDirectory struct {
	next  Directory
	cache *cache.LRU[models.Identity]
}

// NewCachedDirectory wraps next with an LRU of the given size and TTL.
func NewCachedDirectory(next Directory, size int, ttl time.Duration) *CachedDirectory {
	return &CachedDirectory{next: next, cache: cache.NewLRU[models.Identity](size, ttl)}
}

func (c *CachedDirectory) BatchResolve(ctx context.Context, ids []string) (map[string]models.Identity, error) {
	out := make(map[string]models.Identity, len(ids))
	var misses []string
	for _, id := range ids {
		if u, ok := c.cache.Get(id); ok {
			out[id] = u
			continue
		}
		misses = append(misses, id)
	}
	metrics.IdentityLookups.WithLabelValues("cache").Add(float64(len(out)))
	if len(misses) == 0 {
		return out, nil
	}

	found, err := c.next.BatchResolve(ctx, misses)
	if err != nil {
		return out, err
	}
	metrics.IdentityLookups.WithLabelValues("directory").Add(float64(len(found)))
	for id, u := range found {
		c.cache.Add(id, u)
		out[id] = u
	}
	return out, nil
}
