// Engagement - Interaction Recording and Aggregate Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/engagement

package store

import (
	"context"
	"sort"
	"sync"

	"github.com/tomtom215/engagement/internal/models"
)

// MemoryStore implements ContentStore in process memory.
// Suitable for development and testing. Data is lost on restart.
type MemoryStore struct {
	mu    sync.RWMutex
	items map[string]*memEntry
}

type memEntry struct {
	item     models.ContentItem
	members  map[models.InteractionKind]map[string]models.Membership
	comments []models.Comment
	replies  map[string][]models.Reply
	views    []models.View
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: make(map[string]*memEntry)}
}

func newMemEntry(item *models.ContentItem) *memEntry {
	return &memEntry{
		item:    *item,
		members: make(map[models.InteractionKind]map[string]models.Membership),
		replies: make(map[string][]models.Reply),
	}
}

// clone copies the entry so a failed mutator leaves the original untouched.
// Slices are copied with full capacity limits so appends never alias.
func (e *memEntry) clone() *memEntry {
	cp := &memEntry{
		item:     e.item,
		members:  make(map[models.InteractionKind]map[string]models.Membership, len(e.members)),
		comments: e.comments[:len(e.comments):len(e.comments)],
		replies:  make(map[string][]models.Reply, len(e.replies)),
		views:    e.views[:len(e.views):len(e.views)],
	}
	for kind, set := range e.members {
		m := make(map[string]models.Membership, len(set))
		for k, v := range set {
			m[k] = v
		}
		cp.members[kind] = m
	}
	for k, v := range e.replies {
		cp.replies[k] = v[:len(v):len(v)]
	}
	return cp
}

func (s *MemoryStore) Create(ctx context.Context, item *models.ContentItem) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.items[item.ID]; ok {
		return ErrAlreadyExists
	}
	s.items[item.ID] = newMemEntry(item)
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (*models.ContentItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	return e.item.Clone(), nil
}

func (s *MemoryStore) ConditionalUpdate(ctx context.Context, id string, expectedVersion uint64, fn Mutator) (*models.ContentItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	if e.item.Version != expectedVersion {
		return nil, ErrVersionConflict
	}

	staged := e.clone()
	if err := fn(&memTx{entry: staged}); err != nil {
		return nil, err
	}
	staged.item.Version++
	s.items[id] = staged
	return staged.item.Clone(), nil
}

func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.items[id]; !ok {
		return ErrNotFound
	}
	delete(s.items, id)
	return nil
}

func (s *MemoryStore) QueryByOwner(ctx context.Context, ownerID string, q OwnerQuery) ([]*models.ContentItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.ContentItem
	for _, e := range s.items {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if e.item.OwnerID == ownerID && q.Matches(&e.item) {
			out = append(out, e.item.Clone())
		}
	}
	return out, nil
}

func (s *MemoryStore) ListMembers(ctx context.Context, id string, kind models.InteractionKind, page models.Page) ([]models.Membership, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	all := make([]models.Membership, 0, len(e.members[kind]))
	for _, m := range e.members[kind] {
		all = append(all, m)
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].UserID < all[j].UserID
		}
		return all[i].CreatedAt.Before(all[j].CreatedAt)
	})
	start, end := pageBounds(page, len(all))
	return all[start:end], nil
}

func (s *MemoryStore) ListComments(ctx context.Context, id string, page models.Page) ([]models.Comment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	start, end := pageBounds(page, len(e.comments))
	out := make([]models.Comment, 0, end-start)
	for _, c := range e.comments[start:end] {
		c.Replies = append([]models.Reply(nil), e.replies[c.ID]...)
		out = append(out, c)
	}
	return out, nil
}

func (s *MemoryStore) ListViews(ctx context.Context, id string, page models.Page) ([]models.View, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	start, end := pageBounds(page, len(e.views))
	return append([]models.View(nil), e.views[start:end]...), nil
}

func (s *MemoryStore) ForEachID(ctx context.Context, fn func(id string) error) error {
	s.mu.RLock()
	ids := make([]string, 0, len(s.items))
	for id := range s.items {
		ids = append(ids, id)
	}
	s.mu.RUnlock()
	sort.Strings(ids)

	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(id); err != nil {
			return err
		}
	}
	return nil
}

func (s *MemoryStore) Close() error {
	return nil
}

// Corrupt overwrites an item's aggregate without touching its interaction
// records or version. It simulates a partially applied write so the
// reconciliation sweep can be exercised.
func (s *MemoryStore) Corrupt(id string, fn func(a *models.Aggregate)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.items[id]
	if !ok {
		return false
	}
	fn(&e.item.Aggregate)
	return true
}

type memTx struct {
	entry *memEntry
}

func (t *memTx) Item() *models.ContentItem {
	return &t.entry.item
}

func (t *memTx) HasMember(kind models.InteractionKind, userID string) (bool, error) {
	_, ok := t.entry.members[kind][userID]
	return ok, nil
}

func (t *memTx) PutMember(kind models.InteractionKind, m models.Membership) error {
	set, ok := t.entry.members[kind]
	if !ok {
		set = make(map[string]models.Membership)
		t.entry.members[kind] = set
	}
	set[m.UserID] = m
	return nil
}

func (t *memTx) DeleteMember(kind models.InteractionKind, userID string) error {
	delete(t.entry.members[kind], userID)
	return nil
}

func (t *memTx) CountMembers(kind models.InteractionKind) (int64, error) {
	return int64(len(t.entry.members[kind])), nil
}

func (t *memTx) CommentExists(commentID string) (bool, error) {
	for i := range t.entry.comments {
		if t.entry.comments[i].ID == commentID {
			return true, nil
		}
	}
	return false, nil
}

func (t *memTx) PutComment(c *models.Comment) error {
	stored := *c
	stored.Replies = nil
	t.entry.comments = append(t.entry.comments, stored)
	return nil
}

func (t *memTx) PutReply(r *models.Reply) error {
	t.entry.replies[r.CommentID] = append(t.entry.replies[r.CommentID], *r)
	return nil
}

func (t *memTx) CountComments() (int64, int64, error) {
	var replies int64
	for _, rs := range t.entry.replies {
		replies += int64(len(rs))
	}
	return int64(len(t.entry.comments)), replies, nil
}

func (t *memTx) AppendView(v *models.View) error {
	t.entry.views = append(t.entry.views, *v)
	return nil
}
