// Engagement - Interaction Recording and Aggregate Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/engagement

// Package models defines the content, interaction and analytics types shared
// across the store, recorder, analytics engine and HTTP layer.
package models

import (
	"strings"
	"time"
)

// ContentType distinguishes posts from reels.
type ContentType string

const (
	ContentTypePost ContentType = "post"
	ContentTypeReel ContentType = "reel"
)

// ParseContentType validates a content type string.
func ParseContentType(s string) (ContentType, error) {
	switch ContentType(strings.ToLower(strings.TrimSpace(s))) {
	case ContentTypePost:
		return ContentTypePost, nil
	case ContentTypeReel:
		return ContentTypeReel, nil
	default:
		return "", NewValidationError("type", "must be one of post, reel")
	}
}

// Visibility controls who can see and interact with a content item.
type Visibility string

const (
	VisibilityPublic  Visibility = "public"
	VisibilityPrivate Visibility = "private"
)

// ParseVisibility validates a visibility string. Empty defaults to public.
func ParseVisibility(s string) (Visibility, error) {
	switch Visibility(strings.ToLower(strings.TrimSpace(s))) {
	case "", VisibilityPublic:
		return VisibilityPublic, nil
	case VisibilityPrivate:
		return VisibilityPrivate, nil
	default:
		return "", NewValidationError("visibility", "must be one of public, private")
	}
}

// Aggregate is the fixed-size summary block stored with every content item.
// It is only ever mutated through the engagement package's delta path.
type Aggregate struct {
	TotalViews         int64     `json:"totalViews"`
	TotalLikes         int64     `json:"totalLikes"`
	TotalComments      int64     `json:"totalComments"`
	TotalSaves         int64     `json:"totalSaves"`
	TotalReposts       int64     `json:"totalReposts"`
	AverageWatchTimeMs float64   `json:"averageWatchTimeMs"`
	EngagementRate     float64   `json:"engagementRate"`
	LastUpdated        time.Time `json:"lastUpdated"`

	// WatchTimeSamples is the n of the AverageWatchTimeMs running mean: the
	// number of counted reel views that carried a watch time. It is used
	// instead of TotalViews so that views recorded without a watch time
	// (non-reel views, or reel views missing the field) leave the average
	// unchanged rather than pulling it toward zero. It is persisted so the
	// mean can be updated incrementally and reconciled from the view log.
	WatchTimeSamples int64 `json:"watchTimeSamples"`
}

// Engagements returns the numerator of the engagement rate.
func (a *Aggregate) Engagements() int64 {
	return a.TotalLikes + a.TotalComments + a.TotalSaves + a.TotalReposts
}

// ContentItem is a post or reel together with its aggregate block. Raw
// interaction records live in the store keyed by (content ID, kind) and are
// never embedded here.
type ContentItem struct {
	ID         string      `json:"id"`
	OwnerID    string      `json:"ownerId"`
	Type       ContentType `json:"type"`
	Visibility Visibility  `json:"visibility"`
	Body       string      `json:"body,omitempty"`
	MediaURL   string      `json:"mediaUrl,omitempty"`
	CreatedAt  time.Time   `json:"createdAt"`
	Version    uint64      `json:"version"`
	Aggregate  Aggregate   `json:"aggregate"`
}

// IsOwner reports whether userID owns the item.
func (c *ContentItem) IsOwner(userID string) bool {
	return userID != "" && userID == c.OwnerID
}

// VisibleTo reports whether userID (possibly anonymous) may see the item.
func (c *ContentItem) VisibleTo(userID string) bool {
	return c.Visibility != VisibilityPrivate || c.IsOwner(userID)
}

// Clone returns a copy safe to mutate independently.
func (c *ContentItem) Clone() *ContentItem {
	cp := *c
	return &cp
}
