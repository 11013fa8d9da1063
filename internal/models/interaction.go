// Engagement - Interaction Recording and Aggregate Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/engagement

package models

import (
	"strings"
	"time"
)

// InteractionKind names an interaction record family.
type InteractionKind string

const (
	KindLike    InteractionKind = "like"
	KindSave    InteractionKind = "save"
	KindRepost  InteractionKind = "repost"
	KindComment InteractionKind = "comment"
	KindReply   InteractionKind = "reply"
	KindView    InteractionKind = "view"
)

// IsToggle reports whether the kind has set-membership semantics.
func (k InteractionKind) IsToggle() bool {
	return k == KindLike || k == KindSave || k == KindRepost
}

// Platform is the share target recorded with a repost.
type Platform string

const (
	PlatformWhatsApp  Platform = "whatsapp"
	PlatformInstagram Platform = "instagram"
	PlatformTwitter   Platform = "twitter"
	PlatformFacebook  Platform = "facebook"
	PlatformCopy      Platform = "copy"
	PlatformNone      Platform = "none"
)

// ParsePlatform validates a platform string. Empty means none.
func ParsePlatform(s string) (Platform, error) {
	p := Platform(strings.ToLower(strings.TrimSpace(s)))
	switch p {
	case "":
		return PlatformNone, nil
	case PlatformWhatsApp, PlatformInstagram, PlatformTwitter, PlatformFacebook, PlatformCopy, PlatformNone:
		return p, nil
	default:
		return "", NewValidationError("platform", "must be one of whatsapp, instagram, twitter, facebook, copy, none")
	}
}

// Membership is one entry of a like, save or repost set.
type Membership struct {
	UserID    string    `json:"userId"`
	Platform  Platform  `json:"platform,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Comment is a top-level comment. Replies are populated on read only.
type Comment struct {
	ID        string    `json:"id"`
	ContentID string    `json:"contentId"`
	UserID    string    `json:"userId"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
	Replies   []Reply   `json:"replies,omitempty"`
}

// Reply is a second-level comment. Replies cannot be replied to.
type Reply struct {
	ID        string    `json:"id"`
	CommentID string    `json:"commentId"`
	ContentID string    `json:"contentId"`
	UserID    string    `json:"userId"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

// View is one entry in the append-only view log. Counted is false for owner
// self-views, which are kept for audit only.
type View struct {
	ID          string    `json:"id"`
	ContentID   string    `json:"contentId"`
	UserID      string    `json:"userId,omitempty"`
	WatchTimeMs *int64    `json:"watchTimeMs,omitempty"`
	Counted     bool      `json:"counted"`
	CreatedAt   time.Time `json:"createdAt"`
}

// ToggleResult is returned by the like, save and repost toggles.
type ToggleResult struct {
	Active bool  `json:"active"`
	Total  int64 `json:"total"`
}

// CommentResult holds whichever of Comment or Reply was created.
type CommentResult struct {
	Comment *Comment `json:"comment,omitempty"`
	Reply   *Reply   `json:"reply,omitempty"`
}

// Identity is a display identity resolved from the identity directory.
type Identity struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Avatar string `json:"avatar"`
}

// ViewResult is returned by RecordView. Counted is false for owner self-views.
type ViewResult struct {
	TotalViews int64 `json:"totalViews"`
	Counted    bool  `json:"counted"`
}
