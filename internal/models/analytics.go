// Engagement - Interaction Recording and Aggregate Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/engagement

package models

import (
	"strings"
	"time"
)

// Timeframe selects the creation-date window of an overview query.
type Timeframe string

const (
	Timeframe7d  Timeframe = "7d"
	Timeframe30d Timeframe = "30d"
	Timeframe90d Timeframe = "90d"
	TimeframeAll Timeframe = "all"
)

// ParseTimeframe validates a timeframe string. Empty defaults to all.
func ParseTimeframe(s string) (Timeframe, error) {
	switch tf := Timeframe(strings.ToLower(strings.TrimSpace(s))); tf {
	case "":
		return TimeframeAll, nil
	case Timeframe7d, Timeframe30d, Timeframe90d, TimeframeAll:
		return tf, nil
	default:
		return "", NewValidationError("timeframe", "must be one of 7d, 30d, 90d, all")
	}
}

// LowerBound returns the inclusive creation-time lower bound relative to now,
// or nil when the timeframe is unbounded. The window is a fixed number of
// 24h periods regardless of now's location, so DST changes never shift it.
func (tf Timeframe) LowerBound(now time.Time) *time.Time {
	var days int
	switch tf {
	case Timeframe7d:
		days = 7
	case Timeframe30d:
		days = 30
	case Timeframe90d:
		days = 90
	default:
		return nil
	}
	bound := now.Add(-time.Duration(days) * 24 * time.Hour)
	return &bound
}

// TypeFilter restricts an overview to one content type.
type TypeFilter string

const (
	TypeFilterAll  TypeFilter = "all"
	TypeFilterPost TypeFilter = "post"
	TypeFilterReel TypeFilter = "reel"
)

// ParseTypeFilter validates a type filter. Empty defaults to all.
func ParseTypeFilter(s string) (TypeFilter, error) {
	switch f := TypeFilter(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return TypeFilterAll, nil
	case TypeFilterAll, TypeFilterPost, TypeFilterReel:
		return f, nil
	default:
		return "", NewValidationError("type", "must be one of post, reel, all")
	}
}

// ContentType returns the concrete type to filter on, or "" for all.
func (f TypeFilter) ContentType() ContentType {
	switch f {
	case TypeFilterPost:
		return ContentTypePost
	case TypeFilterReel:
		return ContentTypeReel
	default:
		return ""
	}
}

// ContentSummary is one row of an overview item list.
type ContentSummary struct {
	ID        string      `json:"id"`
	Type      ContentType `json:"type"`
	CreatedAt time.Time   `json:"createdAt"`
	Aggregate Aggregate   `json:"aggregate"`
}

// OverviewResult is the owner-scoped summary across content items.
type OverviewResult struct {
	OwnerID           string           `json:"ownerId"`
	Timeframe         Timeframe        `json:"timeframe"`
	Type              TypeFilter       `json:"type"`
	TotalContentCount int              `json:"totalContentCount"`
	TotalViews        int64            `json:"totalViews"`
	TotalLikes        int64            `json:"totalLikes"`
	TotalComments     int64            `json:"totalComments"`
	TotalSaves        int64            `json:"totalSaves"`
	TotalShares       int64            `json:"totalShares"`
	AvgEngagementRate float64          `json:"avgEngagementRate"`
	Items             []ContentSummary `json:"items"`
}

// Page is an offset/limit window over an interaction list.
type Page struct {
	Offset int `json:"offset"`
	Limit  int `json:"limit"`
}

// ResolvedMembership is a like, save or repost with its actor identity.
type ResolvedMembership struct {
	User      Identity  `json:"user"`
	Platform  Platform  `json:"platform,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// ResolvedReply is a reply with its author identity.
type ResolvedReply struct {
	ID        string    `json:"id"`
	User      Identity  `json:"user"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

// ResolvedComment is a top-level comment with author identity and replies.
type ResolvedComment struct {
	ID        string          `json:"id"`
	User      Identity        `json:"user"`
	Content   string          `json:"content"`
	CreatedAt time.Time       `json:"createdAt"`
	Replies   []ResolvedReply `json:"replies"`
}

// BreakdownResult is the owner-only per-item analytics view.
type BreakdownResult struct {
	ContentID string               `json:"contentId"`
	Type      ContentType          `json:"type"`
	CreatedAt time.Time            `json:"createdAt"`
	Aggregate Aggregate            `json:"aggregate"`
	Page      Page                 `json:"page"`
	Likes     []ResolvedMembership `json:"likes"`
	Saves     []ResolvedMembership `json:"saves"`
	Reposts   []ResolvedMembership `json:"reposts"`
	Comments  []ResolvedComment    `json:"comments"`
}
