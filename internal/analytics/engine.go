// Engagement - Interaction Recording and Aggregate Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/engagement

// Package analytics serves owner-scoped read models computed from the
// aggregate blocks and interaction records. It never mutates the store.
package analytics

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/tomtom215/engagement/internal/config"
	"github.com/tomtom215/engagement/internal/engagement"
	"github.com/tomtom215/engagement/internal/logging"
	"github.com/tomtom215/engagement/internal/metrics"
	"github.com/tomtom215/engagement/internal/models"
	"github.com/tomtom215/engagement/internal/store"
)

// IdentityResolver maps user IDs to display identities in one call.
type IdentityResolver interface {
	Resolve(ctx context.Context, ids []string) (map[string]models.Identity, error)
}

// Engine answers overview and breakdown queries.
type Engine struct {
	store    store.ContentStore
	resolver IdentityResolver
	now      func() time.Time

	defaultPageSize int
	maxPageSize     int
}

// NewEngine creates an Engine. now may be nil.
func NewEngine(st store.ContentStore, resolver IdentityResolver, cfg *config.APIConfig, now func() time.Time) *Engine {
	if now == nil {
		now = time.Now
	}
	e := &Engine{store: st, resolver: resolver, now: now, defaultPageSize: 20, maxPageSize: 100}
	if cfg != nil {
		if cfg.DefaultPageSize > 0 {
			e.defaultPageSize = cfg.DefaultPageSize
		}
		if cfg.MaxPageSize > 0 {
			e.maxPageSize = cfg.MaxPageSize
		}
	}
	return e
}

// GetOverview summarises the owner's content created inside timeframe.
// The window's lower bound (now minus N days) is inclusive.
func (e *Engine) GetOverview(ctx context.Context, ownerID, timeframe, typeFilter string) (result *models.OverviewResult, err error) {
	start := time.Now()
	defer func() { metrics.RecordAnalyticsQuery("overview", time.Since(start), err) }()

	if ownerID == "" {
		return nil, models.NewValidationError("ownerId", "is required")
	}
	tf, err := models.ParseTimeframe(timeframe)
	if err != nil {
		return nil, err
	}
	filter, err := models.ParseTypeFilter(typeFilter)
	if err != nil {
		return nil, err
	}
	if err := checkCtx(ctx); err != nil {
		return nil, err
	}

	items, err := e.store.QueryByOwner(ctx, ownerID, store.OwnerQuery{
		CreatedSince: tf.LowerBound(e.now()),
		Type:         filter.ContentType(),
	})
	if err != nil {
		return nil, queryErr(ctx, "query owner content", err)
	}
	SortNewestFirst(items)

	result = &models.OverviewResult{
		OwnerID:           ownerID,
		Timeframe:         tf,
		Type:              filter,
		TotalContentCount: len(items),
		Items:             make([]models.ContentSummary, 0, len(items)),
	}
	var rateSum float64
	for _, item := range items {
		a := item.Aggregate
		result.TotalViews += a.TotalViews
		result.TotalLikes += a.TotalLikes
		result.TotalComments += a.TotalComments
		result.TotalSaves += a.TotalSaves
		result.TotalShares += a.TotalReposts
		rateSum += a.EngagementRate
		result.Items = append(result.Items, models.ContentSummary{
			ID:        item.ID,
			Type:      item.Type,
			CreatedAt: item.CreatedAt,
			Aggregate: a,
		})
	}
	if len(items) > 0 {
		result.AvgEngagementRate = engagement.Round2(rateSum / float64(len(items)))
	}

	logging.Ctx(ctx).Debug().
		Str("owner_id", ownerID).
		Str("timeframe", string(tf)).
		Int("items", len(items)).
		Msg("Overview computed")
	return result, nil
}

// GetContentBreakdown returns the aggregate and one page of each interaction
// list for an item the caller owns. Any other caller gets ErrUnauthorized,
// whatever the item's visibility. Actor identities are resolved in a
// single batched lookup across all lists.
func (e *Engine) GetContentBreakdown(ctx context.Context, contentID, callerID string, page models.Page) (result *models.BreakdownResult, err error) {
	start := time.Now()
	defer func() { metrics.RecordAnalyticsQuery("breakdown", time.Since(start), err) }()

	if err := checkCtx(ctx); err != nil {
		return nil, err
	}
	item, err := e.store.Get(ctx, contentID)
	if err != nil {
		return nil, queryErr(ctx, "get content", err)
	}
	if !item.IsOwner(callerID) {
		return nil, models.ErrUnauthorized
	}

	page = e.clampPage(page)
	lists := make(map[models.InteractionKind][]models.Membership, 3)
	for _, kind := range []models.InteractionKind{models.KindLike, models.KindSave, models.KindRepost} {
		if err := checkCtx(ctx); err != nil {
			return nil, err
		}
		members, err := e.store.ListMembers(ctx, contentID, kind, page)
		if err != nil {
			return nil, queryErr(ctx, "list "+string(kind)+"s", err)
		}
		lists[kind] = members
	}
	if err := checkCtx(ctx); err != nil {
		return nil, err
	}
	comments, err := e.store.ListComments(ctx, contentID, page)
	if err != nil {
		return nil, queryErr(ctx, "list comments", err)
	}

	var ids []string
	for _, members := range lists {
		for _, m := range members {
			ids = append(ids, m.UserID)
		}
	}
	for _, c := range comments {
		ids = append(ids, c.UserID)
		for _, r := range c.Replies {
			ids = append(ids, r.UserID)
		}
	}
	users, err := e.resolver.Resolve(ctx, ids)
	if err != nil {
		return nil, err
	}

	result = &models.BreakdownResult{
		ContentID: item.ID,
		Type:      item.Type,
		CreatedAt: item.CreatedAt,
		Aggregate: item.Aggregate,
		Page:      page,
		Likes:     resolveMembers(lists[models.KindLike], users),
		Saves:     resolveMembers(lists[models.KindSave], users),
		Reposts:   resolveMembers(lists[models.KindRepost], users),
		Comments:  make([]models.ResolvedComment, 0, len(comments)),
	}
	for _, c := range comments {
		rc := models.ResolvedComment{
			ID:        c.ID,
			User:      users[c.UserID],
			Content:   c.Content,
			CreatedAt: c.CreatedAt,
			Replies:   make([]models.ResolvedReply, 0, len(c.Replies)),
		}
		for _, r := range c.Replies {
			rc.Replies = append(rc.Replies, models.ResolvedReply{
				ID:        r.ID,
				User:      users[r.UserID],
				Content:   r.Content,
				CreatedAt: r.CreatedAt,
			})
		}
		result.Comments = append(result.Comments, rc)
	}
	return result, nil
}

// SortNewestFirst orders items by CreatedAt descending, ties by ID ascending.
func SortNewestFirst(items []*models.ContentItem) {
	sort.Slice(items, func(i, j int) bool {
		if items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].ID < items[j].ID
		}
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})
}

func (e *Engine) clampPage(p models.Page) models.Page {
	if p.Offset < 0 {
		p.Offset = 0
	}
	if p.Limit <= 0 {
		p.Limit = e.defaultPageSize
	}
	if p.Limit > e.maxPageSize {
		p.Limit = e.maxPageSize
	}
	return p
}

func resolveMembers(members []models.Membership, users map[string]models.Identity) []models.ResolvedMembership {
	out := make([]models.ResolvedMembership, 0, len(members))
	for _, m := range members {
		out = append(out, models.ResolvedMembership{
			User:      users[m.UserID],
			Platform:  m.Platform,
			CreatedAt: m.CreatedAt,
		})
	}
	return out
}

func checkCtx(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", models.ErrCancelled, err)
	}
	return nil
}

// queryErr maps a store failure, treating context errors as cancellation.
func queryErr(ctx context.Context, op string, err error) error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return models.ErrContentNotFound
	case ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %s: %w", models.ErrCancelled, op, err)
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}
