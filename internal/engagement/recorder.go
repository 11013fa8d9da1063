// Engagement - Interaction Recording and Aggregate Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/engagement

// Package engagement records interactions against content items and keeps
// their aggregate blocks consistent.
//
// Every write is a single optimistic conditional update of one content item:
// the interaction record and the aggregate delta commit together or not at
// all. Lost version races are retried with exponential backoff and surface
// as models.ErrWriteConflict once the attempts are exhausted. Once a write
// has been dispatched it runs to completion even if the caller goes away.
package engagement

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/tomtom215/engagement/internal/config"
	"github.com/tomtom215/engagement/internal/events"
	"github.com/tomtom215/engagement/internal/logging"
	"github.com/tomtom215/engagement/internal/metrics"
	"github.com/tomtom215/engagement/internal/models"
	"github.com/tomtom215/engagement/internal/store"
)

// EventPublisher receives an event after each committed write.
type EventPublisher interface {
	Publish(ctx context.Context, evt *events.InteractionEvent) error
}

// Options tunes a Recorder. Zero values take the defaults below.
type Options struct {
	MaxAttempts   int
	BaseBackoff   time.Duration
	MaxBackoff    time.Duration
	MaxCommentLen int
	MaxReplyLen   int

	// Now and Sleep are replaced in tests.
	Now   func() time.Time
	Sleep func(time.Duration)

	Events EventPublisher
}

// OptionsFromConfig maps the engagement config section onto Options.
func OptionsFromConfig(cfg *config.EngagementConfig) Options {
	return Options{
		MaxAttempts:   cfg.MaxAttempts,
		BaseBackoff:   cfg.BaseBackoff,
		MaxBackoff:    cfg.MaxBackoff,
		MaxCommentLen: cfg.MaxCommentLen,
		MaxReplyLen:   cfg.MaxReplyLen,
	}
}

// Recorder implements the interaction write path.
type Recorder struct {
	store  store.ContentStore
	agg    *Maintainer
	retry  retryPolicy
	now    func() time.Time
	events EventPublisher

	maxCommentLen int
	maxReplyLen   int
}

// NewRecorder creates a Recorder over st.
func NewRecorder(st store.ContentStore, opts Options) *Recorder {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.MaxCommentLen <= 0 {
		opts.MaxCommentLen = 500
	}
	if opts.MaxReplyLen <= 0 {
		opts.MaxReplyLen = 300
	}
	if opts.BaseBackoff == 0 && opts.MaxBackoff == 0 {
		opts.BaseBackoff, opts.MaxBackoff = 5*time.Millisecond, 100*time.Millisecond
	}
	return &Recorder{
		store:         st,
		agg:           NewMaintainer(opts.Now),
		retry:         newRetryPolicy(opts.MaxAttempts, opts.BaseBackoff, opts.MaxBackoff, opts.Sleep),
		now:           opts.Now,
		events:        opts.Events,
		maxCommentLen: opts.MaxCommentLen,
		maxReplyLen:   opts.MaxReplyLen,
	}
}

// ToggleLike adds userID to the like set, or removes them if already present.
func (r *Recorder) ToggleLike(ctx context.Context, contentID, userID string) (models.ToggleResult, error) {
	return r.toggle(ctx, models.KindLike, contentID, userID, "")
}

// ToggleSave adds or removes userID from the save set.
func (r *Recorder) ToggleSave(ctx context.Context, contentID, userID string) (models.ToggleResult, error) {
	return r.toggle(ctx, models.KindSave, contentID, userID, "")
}

// ToggleRepost adds or removes userID from the repost set. The platform is
// recorded when the repost is added and ignored when it is removed.
func (r *Recorder) ToggleRepost(ctx context.Context, contentID, userID, platform string) (models.ToggleResult, error) {
	p, err := models.ParsePlatform(platform)
	if err != nil {
		r.record(models.KindRepost, time.Now(), err)
		return models.ToggleResult{}, err
	}
	return r.toggle(ctx, models.KindRepost, contentID, userID, p)
}

func (r *Recorder) toggle(ctx context.Context, kind models.InteractionKind, contentID, userID string, platform models.Platform) (models.ToggleResult, error) {
	start := time.Now()
	if userID == "" {
		err := models.NewValidationError("userId", "is required")
		r.record(kind, start, err)
		return models.ToggleResult{}, err
	}

	var active bool
	item, err := r.update(ctx, string(kind), contentID, userID, func(tx store.Tx) error {
		present, err := tx.HasMember(kind, userID)
		if err != nil {
			return err
		}
		a := &tx.Item().Aggregate
		if present {
			if err := tx.DeleteMember(kind, userID); err != nil {
				return err
			}
			r.agg.ApplyDelta(a, deltaFor(kind, -1))
			active = false
			return nil
		}
		m := models.Membership{UserID: userID, CreatedAt: r.now().UTC()}
		if kind == models.KindRepost {
			m.Platform = platform
		}
		if err := tx.PutMember(kind, m); err != nil {
			return err
		}
		r.agg.ApplyDelta(a, deltaFor(kind, 1))
		active = true
		return nil
	})
	r.record(kind, start, err)
	if err != nil {
		return models.ToggleResult{}, err
	}

	action := events.ActionRemoved
	if active {
		action = events.ActionAdded
	}
	evt := events.NewEvent(kind, action, item, userID)
	if active && kind == models.KindRepost {
		evt.Platform = platform
	}
	r.publish(ctx, evt)

	return models.ToggleResult{Active: active, Total: counterFor(&item.Aggregate, kind)}, nil
}

// AddComment adds a top-level comment, or a reply when parentCommentID is set.
// Replies to replies are impossible: parentCommentID must name a top-level
// comment on the same item.
func (r *Recorder) AddComment(ctx context.Context, contentID, userID, content, parentCommentID string) (models.CommentResult, error) {
	start := time.Now()
	kind := models.KindComment
	limit := r.maxCommentLen
	if parentCommentID != "" {
		kind = models.KindReply
		limit = r.maxReplyLen
	}

	text := strings.TrimSpace(content)
	var verr error
	switch {
	case userID == "":
		verr = models.NewValidationError("userId", "is required")
	case text == "":
		verr = models.NewValidationError("content", "must not be empty")
	case utf8.RuneCountInString(text) > limit:
		verr = models.NewValidationError("content", "must be at most %d characters", limit)
	}
	if verr != nil {
		r.record(kind, start, verr)
		return models.CommentResult{}, verr
	}

	id := uuid.Must(uuid.NewV7()).String()
	var result models.CommentResult
	item, err := r.update(ctx, string(kind), contentID, userID, func(tx store.Tx) error {
		created := r.now().UTC()
		if parentCommentID != "" {
			ok, err := tx.CommentExists(parentCommentID)
			if err != nil {
				return err
			}
			if !ok {
				return models.WrapValidationError("parentCommentId", models.ErrCommentNotFound)
			}
			reply := &models.Reply{
				ID:        id,
				CommentID: parentCommentID,
				ContentID: contentID,
				UserID:    userID,
				Content:   text,
				CreatedAt: created,
			}
			if err := tx.PutReply(reply); err != nil {
				return err
			}
			result = models.CommentResult{Reply: reply}
		} else {
			comment := &models.Comment{
				ID:        id,
				ContentID: contentID,
				UserID:    userID,
				Content:   text,
				CreatedAt: created,
			}
			if err := tx.PutComment(comment); err != nil {
				return err
			}
			result = models.CommentResult{Comment: comment}
		}
		r.agg.ApplyDelta(&tx.Item().Aggregate, deltaFor(kind, 1))
		return nil
	})
	r.record(kind, start, err)
	if err != nil {
		return models.CommentResult{}, err
	}

	evt := events.NewEvent(kind, events.ActionAdded, item, userID)
	evt.RecordID = id
	r.publish(ctx, evt)
	return result, nil
}

// RecordView appends a view. viewerID may be empty for anonymous viewers.
// Views by the owner are logged but never counted.
func (r *Recorder) RecordView(ctx context.Context, contentID, viewerID string, watchTimeMs *int64) (models.ViewResult, error) {
	start := time.Now()
	if watchTimeMs != nil && *watchTimeMs < 0 {
		err := models.NewValidationError("watchTimeMs", "must not be negative")
		r.record(models.KindView, start, err)
		return models.ViewResult{}, err
	}

	id := uuid.Must(uuid.NewV7()).String()
	var counted bool
	item, err := r.update(ctx, string(models.KindView), contentID, viewerID, func(tx store.Tx) error {
		item := tx.Item()
		counted = !item.IsOwner(viewerID)
		v := &models.View{
			ID:          id,
			ContentID:   contentID,
			UserID:      viewerID,
			WatchTimeMs: watchTimeMs,
			Counted:     counted,
			CreatedAt:   r.now().UTC(),
		}
		if err := tx.AppendView(v); err != nil {
			return err
		}
		if counted {
			r.agg.ApplyView(&item.Aggregate, item.Type, watchTimeMs)
		}
		return nil
	})
	r.record(models.KindView, start, err)
	if err != nil {
		return models.ViewResult{}, err
	}

	evt := events.NewEvent(models.KindView, events.ActionRecorded, item, viewerID)
	evt.RecordID = id
	evt.WatchTimeMs = watchTimeMs
	evt.Counted = counted
	r.publish(ctx, evt)
	return models.ViewResult{TotalViews: item.Aggregate.TotalViews, Counted: counted}, nil
}

// CreateContentInput describes a new content item.
type CreateContentInput struct {
	OwnerID    string
	Type       string
	Visibility string
	Body       string
	MediaURL   string
}

// CreateContent stores a new item with a zero aggregate.
func (r *Recorder) CreateContent(ctx context.Context, in CreateContentInput) (*models.ContentItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, cancelled(err)
	}
	if in.OwnerID == "" {
		return nil, models.NewValidationError("ownerId", "is required")
	}
	ct, err := models.ParseContentType(in.Type)
	if err != nil {
		return nil, err
	}
	vis, err := models.ParseVisibility(in.Visibility)
	if err != nil {
		return nil, err
	}
	body := strings.TrimSpace(in.Body)
	mediaURL := strings.TrimSpace(in.MediaURL)
	if ct == models.ContentTypeReel && mediaURL == "" {
		return nil, models.NewValidationError("mediaUrl", "is required for reels")
	}
	if ct == models.ContentTypePost && body == "" && mediaURL == "" {
		return nil, models.NewValidationError("body", "is required for posts")
	}

	now := r.now().UTC()
	item := &models.ContentItem{
		ID:         uuid.Must(uuid.NewV7()).String(),
		OwnerID:    in.OwnerID,
		Type:       ct,
		Visibility: vis,
		Body:       body,
		MediaURL:   mediaURL,
		CreatedAt:  now,
		Aggregate:  models.Aggregate{LastUpdated: now},
	}
	if err := r.store.Create(context.WithoutCancel(ctx), item); err != nil {
		return nil, fmt.Errorf("create content: %w", err)
	}

	logging.Ctx(ctx).Debug().Str("content_id", item.ID).Str("type", string(ct)).Msg("Content created")
	r.publish(ctx, events.NewEvent(events.KindContent, events.ActionCreated, item, in.OwnerID))
	return item, nil
}

// GetContent returns the item if callerID may see it.
func (r *Recorder) GetContent(ctx context.Context, contentID, callerID string) (*models.ContentItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, cancelled(err)
	}
	item, err := r.store.Get(ctx, contentID)
	if err != nil {
		return nil, storeErr(err)
	}
	if !item.VisibleTo(callerID) {
		return nil, models.ErrContentNotFound
	}
	return item, nil
}

// DeleteContent removes an item and all its interaction records. Only the
// owner may delete.
func (r *Recorder) DeleteContent(ctx context.Context, contentID, callerID string) error {
	item, err := r.GetContent(ctx, contentID, callerID)
	if err != nil {
		return err
	}
	if !item.IsOwner(callerID) {
		return models.ErrUnauthorized
	}
	if err := r.store.Delete(context.WithoutCancel(ctx), contentID); err != nil {
		return storeErr(err)
	}

	logging.Ctx(ctx).Info().Str("content_id", contentID).Msg("Content deleted")
	r.publish(ctx, events.NewEvent(events.KindContent, events.ActionDeleted, item, callerID))
	return nil
}

// update loads the item, checks visibility and applies fn under a version
// check, retrying lost races. The caller's context is only consulted before
// the first attempt.
func (r *Recorder) update(ctx context.Context, op, contentID, callerID string, fn store.Mutator) (*models.ContentItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, cancelled(err)
	}
	wctx := context.WithoutCancel(ctx)

	var updated *models.ContentItem
	err := r.retry.do(op, func() error {
		item, err := r.store.Get(wctx, contentID)
		if err != nil {
			return err
		}
		if !item.VisibleTo(callerID) {
			return models.ErrContentNotFound
		}
		updated, err = r.store.ConditionalUpdate(wctx, contentID, item.Version, fn)
		return err
	})
	if err != nil {
		return nil, storeErr(err)
	}
	return updated, nil
}

func (r *Recorder) publish(ctx context.Context, evt *events.InteractionEvent) {
	if r.events == nil {
		return
	}
	if err := r.events.Publish(context.WithoutCancel(ctx), evt); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("content_id", evt.ContentID).Str("kind", string(evt.Kind)).Msg("Failed to publish interaction event")
	}
}

func (r *Recorder) record(kind models.InteractionKind, start time.Time, err error) {
	metrics.RecordInteraction(string(kind), resultLabel(err), time.Since(start))
}

// storeErr maps store errors onto the public taxonomy.
func storeErr(err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return models.ErrContentNotFound
	}
	return err
}

func cancelled(err error) error {
	return fmt.Errorf("%w: %w", models.ErrCancelled, err)
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case models.IsValidationError(err):
		return "invalid"
	case errors.Is(err, models.ErrContentNotFound):
		return "not_found"
	case errors.Is(err, models.ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, models.ErrWriteConflict):
		return "conflict"
	case errors.Is(err, models.ErrCancelled):
		return "cancelled"
	default:
		return "error"
	}
}
