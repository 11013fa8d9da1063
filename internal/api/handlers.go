// Engagement - Interaction Recording and Aggregate Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/engagement

// Package api exposes the recorder and analytics engine over HTTP using the
// chi router and a {success, data, error, meta} response envelope.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/engagement/internal/analytics"
	"github.com/tomtom215/engagement/internal/anomaly"
	"github.com/tomtom215/engagement/internal/auth"
	"github.com/tomtom215/engagement/internal/authz"
	"github.com/tomtom215/engagement/internal/engagement"
	"github.com/tomtom215/engagement/internal/logging"
	"github.com/tomtom215/engagement/internal/models"
)

// ReadinessCheck reports whether one dependency can serve traffic.
type ReadinessCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// Authorizer decides role and ownership based access; *authz.Enforcer
// implements it.
type Authorizer interface {
	Enforce(subject, owner, object, action string) (bool, error)
}

// Handler holds the services behind the HTTP routes.
type Handler struct {
	recorder   *engagement.Recorder
	engine     *analytics.Engine
	anomalies  anomaly.Store
	authorizer Authorizer
	checks     []ReadinessCheck
	startTime  time.Time
}

// NewHandler creates a Handler.
func NewHandler(recorder *engagement.Recorder, engine *analytics.Engine, anomalies anomaly.Store, authorizer Authorizer, checks ...ReadinessCheck) *Handler {
	return &Handler{
		recorder:   recorder,
		engine:     engine,
		anomalies:  anomalies,
		authorizer: authorizer,
		checks:     checks,
		startTime:  time.Now(),
	}
}

// CreateContent handles POST /api/v1/content.
func (h *Handler) CreateContent(w http.ResponseWriter, r *http.Request) {
	var req createContentRequest
	if err := decodeBody(w, r, &req, false); err != nil {
		writeError(w, r, err)
		return
	}
	item, err := h.recorder.CreateContent(r.Context(), engagement.CreateContentInput{
		OwnerID:    auth.CallerID(r.Context()),
		Type:       req.Type,
		Visibility: req.Visibility,
		Body:       req.Body,
		MediaURL:   req.MediaURL,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewResponseWriter(w, r).Created(item)
}

// GetContent handles GET /api/v1/content/{id}.
func (h *Handler) GetContent(w http.ResponseWriter, r *http.Request) {
	item, err := h.recorder.GetContent(r.Context(), chi.URLParam(r, "id"), auth.CallerID(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewResponseWriter(w, r).Success(item)
}

// DeleteContent handles DELETE /api/v1/content/{id}.
func (h *Handler) DeleteContent(w http.ResponseWriter, r *http.Request) {
	if err := h.recorder.DeleteContent(r.Context(), chi.URLParam(r, "id"), auth.CallerID(r.Context())); err != nil {
		writeError(w, r, err)
		return
	}
	NewResponseWriter(w, r).NoContent()
}

// ToggleLike handles POST /api/v1/content/{id}/like.
func (h *Handler) ToggleLike(w http.ResponseWriter, r *http.Request) {
	res, err := h.recorder.ToggleLike(r.Context(), chi.URLParam(r, "id"), auth.CallerID(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewResponseWriter(w, r).Success(likeResponse{Liked: res.Active, TotalLikes: res.Total})
}

// ToggleSave handles POST /api/v1/content/{id}/save.
func (h *Handler) ToggleSave(w http.ResponseWriter, r *http.Request) {
	res, err := h.recorder.ToggleSave(r.Context(), chi.URLParam(r, "id"), auth.CallerID(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewResponseWriter(w, r).Success(saveResponse{Saved: res.Active, TotalSaves: res.Total})
}

// ToggleRepost handles POST /api/v1/content/{id}/repost. The body is
// optional and may name the share platform.
func (h *Handler) ToggleRepost(w http.ResponseWriter, r *http.Request) {
	var req repostRequest
	if err := decodeBody(w, r, &req, true); err != nil {
		writeError(w, r, err)
		return
	}
	res, err := h.recorder.ToggleRepost(r.Context(), chi.URLParam(r, "id"), auth.CallerID(r.Context()), req.Platform)
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewResponseWriter(w, r).Success(repostResponse{Reposted: res.Active, TotalReposts: res.Total})
}

// AddComment handles POST /api/v1/content/{id}/comments and responds with
// the created comment, or the reply when parentCommentId is set.
func (h *Handler) AddComment(w http.ResponseWriter, r *http.Request) {
	var req commentRequest
	if err := decodeBody(w, r, &req, false); err != nil {
		writeError(w, r, err)
		return
	}
	res, err := h.recorder.AddComment(r.Context(), chi.URLParam(r, "id"), auth.CallerID(r.Context()), req.Content, req.ParentCommentID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if res.Reply != nil {
		NewResponseWriter(w, r).Created(res.Reply)
		return
	}
	NewResponseWriter(w, r).Created(res.Comment)
}

// RecordView handles POST /api/v1/content/{id}/views. Anonymous callers are
// allowed.
func (h *Handler) RecordView(w http.ResponseWriter, r *http.Request) {
	var req viewRequest
	if err := decodeBody(w, r, &req, true); err != nil {
		writeError(w, r, err)
		return
	}
	res, err := h.recorder.RecordView(r.Context(), chi.URLParam(r, "id"), auth.CallerID(r.Context()), req.WatchTimeMs)
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewResponseWriter(w, r).Success(res)
}

// Overview handles GET /api/v1/analytics/overview?timeframe=&type=.
// ownerId defaults to the caller; reading anyone else's overview needs the
// admin role.
func (h *Handler) Overview(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	caller := auth.CallerID(r.Context())
	owner := caller
	if o := q.Get("ownerId"); o != "" {
		owner = o
	}

	allowed, err := h.authorizer.Enforce(caller, owner, authz.ObjectOverview, authz.ActionRead)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if !allowed {
		writeError(w, r, models.ErrUnauthorized)
		return
	}

	res, err := h.engine.GetOverview(r.Context(), owner, q.Get("timeframe"), q.Get("type"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewResponseWriter(w, r).Success(res)
}

// Breakdown handles GET /api/v1/content/{id}/analytics?offset=&limit=.
func (h *Handler) Breakdown(w http.ResponseWriter, r *http.Request) {
	page, err := parsePage(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	res, err := h.engine.GetContentBreakdown(r.Context(), chi.URLParam(r, "id"), auth.CallerID(r.Context()), page)
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewResponseWriter(w, r).Success(res)
}

// Anomalies handles GET /api/v1/admin/anomalies?contentId=&field=&since=&limit=.
func (h *Handler) Anomalies(w http.ResponseWriter, r *http.Request) {
	q, err := parseAnomalyQuery(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	filter := anomaly.Filter{ContentID: q.ContentID, Field: q.Field, Since: q.Since, Limit: q.Limit}
	records, err := h.anomalies.Query(r.Context(), filter)
	if err != nil {
		writeError(w, r, err)
		return
	}
	filter.Limit = 0
	total, err := h.anomalies.Count(r.Context(), filter)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if records == nil {
		records = []anomaly.Record{}
	}
	NewResponseWriter(w, r).SuccessWithPagination(records, &PaginationMeta{
		Count:   len(records),
		Limit:   q.Limit,
		HasMore: total > int64(len(records)),
	})
}

// HealthLive handles GET /health/live.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	NewResponseWriter(w, r).Success(map[string]interface{}{
		"status": "ok",
		"uptime": time.Since(h.startTime).Seconds(),
	})
}

// HealthReady handles GET /health/ready. It responds 503 when any
// readiness check fails.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	components := make(map[string]string, len(h.checks))
	ready := true
	for _, c := range h.checks {
		if err := c.Check(ctx); err != nil {
			ready = false
			components[c.Name] = err.Error()
			logging.Ctx(ctx).Warn().Err(err).Str("check", c.Name).Msg("Readiness check failed")
			continue
		}
		components[c.Name] = "ok"
	}

	rw := NewResponseWriter(w, r)
	if !ready {
		rw.ErrorWithDetails(http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "not ready", components)
		return
	}
	rw.Success(map[string]interface{}{"status": "ready", "components": components})
}
