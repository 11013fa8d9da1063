// Engagement - Interaction Recording and Aggregate Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/engagement

// Package store persists content items and their interaction records.
//
// Each content item is a small fixed-size record (metadata, version and the
// aggregate block). Interaction records are kept apart from it, keyed by
// (content ID, kind), so a popular item never grows into one unbounded
// document. All mutations of an item and its interaction records go through
// ConditionalUpdate, which applies them atomically and bumps the version.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/tomtom215/engagement/internal/models"
)

var (
	// ErrNotFound is returned when the content item does not exist.
	ErrNotFound = errors.New("store: content not found")

	// ErrVersionConflict is returned when the stored version differs from the
	// expected one or a concurrent transaction committed first.
	ErrVersionConflict = errors.New("store: version conflict")

	// ErrAlreadyExists is returned by Create for a duplicate ID.
	ErrAlreadyExists = errors.New("store: content already exists")
)

// Tx is the view of one content item handed to a Mutator. Everything written
// through it commits together with the item record, or not at all.
type Tx interface {
	// Item returns the item being updated. Mutators change the aggregate
	// block in place; the store bumps Version on commit.
	Item() *models.ContentItem

	HasMember(kind models.InteractionKind, userID string) (bool, error)
	PutMember(kind models.InteractionKind, m models.Membership) error
	DeleteMember(kind models.InteractionKind, userID string) error
	CountMembers(kind models.InteractionKind) (int64, error)

	CommentExists(commentID string) (bool, error)
	PutComment(c *models.Comment) error
	PutReply(r *models.Reply) error

	// CountComments returns the number of top-level comments and replies.
	CountComments() (comments, replies int64, err error)

	AppendView(v *models.View) error
}

// Mutator applies one interaction to an item. Returning an error aborts the
// update without side effects.
type Mutator func(tx Tx) error

// OwnerQuery filters QueryByOwner.
type OwnerQuery struct {
	// CreatedSince is an inclusive lower bound on CreatedAt. Nil means unbounded.
	CreatedSince *time.Time

	// Type restricts results to one content type. Empty means all.
	Type models.ContentType
}

// Matches reports whether item satisfies the query.
func (q OwnerQuery) Matches(item *models.ContentItem) bool {
	if q.CreatedSince != nil && item.CreatedAt.Before(*q.CreatedSince) {
		return false
	}
	return q.Type == "" || item.Type == q.Type
}

// ContentStore is the persistence contract used by the recorder, the
// reconciler and the analytics engine.
type ContentStore interface {
	Create(ctx context.Context, item *models.ContentItem) error
	Get(ctx context.Context, id string) (*models.ContentItem, error)
	ConditionalUpdate(ctx context.Context, id string, expectedVersion uint64, fn Mutator) (*models.ContentItem, error)

	// Delete removes the item and every interaction record attached to it.
	Delete(ctx context.Context, id string) error

	// QueryByOwner returns the owner's items matching q in unspecified order.
	QueryByOwner(ctx context.Context, ownerID string, q OwnerQuery) ([]*models.ContentItem, error)

	// ListMembers pages through a like, save or repost set oldest first.
	ListMembers(ctx context.Context, id string, kind models.InteractionKind, page models.Page) ([]models.Membership, error)

	// ListComments pages through top-level comments oldest first, each with
	// all of its replies attached.
	ListComments(ctx context.Context, id string, page models.Page) ([]models.Comment, error)

	// ListViews pages through the view log oldest first.
	ListViews(ctx context.Context, id string, page models.Page) ([]models.View, error)

	// ForEachID calls fn for every content ID. fn may update the store.
	ForEachID(ctx context.Context, fn func(id string) error) error

	Close() error
}

// pageBounds clamps a page to [0, n) and returns the slice bounds.
func pageBounds(page models.Page, n int) (int, int) {
	start := page.Offset
	if start < 0 {
		start = 0
	}
	if start > n {
		start = n
	}
	end := n
	if page.Limit > 0 && start+page.Limit < n {
		end = start + page.Limit
	}
	return start, end
}
