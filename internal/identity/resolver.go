// Engagement - Interaction Recording and Aggregate Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/engagement

package identity

import (
	"context"
	"fmt"

	"github.com/tomtom215/engagement/internal/logging"
	"github.com/tomtom215/engagement/internal/metrics"
	"github.com/tomtom215/engagement/internal/models"
)

// UnknownName is shown for users the directory cannot resolve.
const UnknownName = "Unknown"

// Resolver turns the actor IDs of a breakdown page into identities with a
// single deduplicated directory call.
type Resolver struct {
	dir           Directory
	defaultAvatar string
}

// NewResolver creates a Resolver. Misses get defaultAvatar.
func NewResolver(dir Directory, defaultAvatar string) *Resolver {
	return &Resolver{dir: dir, defaultAvatar: defaultAvatar}
}

// Placeholder returns the identity used for an unresolvable user.
func (r *Resolver) Placeholder(id string) models.Identity {
	return models.Identity{ID: id, Name: UnknownName, Avatar: r.defaultAvatar}
}

// Resolve returns an identity for every non-empty ID in ids. Duplicates are
// looked up once. IDs the directory does not know, and every ID when the
// directory fails, resolve to the placeholder. Only a cancelled context is
// reported as an error.
func (r *Resolver) Resolve(ctx context.Context, ids []string) (map[string]models.Identity, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrCancelled, err)
	}

	seen := make(map[string]struct{}, len(ids))
	unique := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}

	out := make(map[string]models.Identity, len(unique))
	if len(unique) == 0 {
		return out, nil
	}

	found, err := r.dir.BatchResolve(ctx, unique)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %w", models.ErrCancelled, ctx.Err())
		}
		logging.Ctx(ctx).Warn().Err(err).Int("ids", len(unique)).Msg("Identity lookup failed; using placeholders")
	}

	var missing int
	for _, id := range unique {
		if u, ok := found[id]; ok {
			out[id] = u
			continue
		}
		out[id] = r.Placeholder(id)
		missing++
	}
	metrics.IdentityLookups.WithLabelValues("placeholder").Add(float64(missing))
	return out, nil
}
