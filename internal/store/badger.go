// Engagement - Interaction Recording and Aggregate Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/engagement

package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/tomtom215/engagement/internal/config"
	"github.com/tomtom215/engagement/internal/logging"
	"github.com/tomtom215/engagement/internal/models"
)

// forEachBatch is how many content IDs ForEachID reads per read transaction.
const forEachBatch = 256

// BadgerStore implements ContentStore on BadgerDB optimistic transactions.
type BadgerStore struct {
	db *badger.DB
}

// OpenBadger opens (or creates) the Badger database described by cfg.
func OpenBadger(cfg *config.StorageConfig) (*BadgerStore, error) {
	opts := badger.DefaultOptions(cfg.Path)
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger at %q: %w", cfg.Path, err)
	}
	logging.Info().Str("path", cfg.Path).Bool("in_memory", cfg.InMemory).Msg("Content store opened")
	return NewBadgerStore(db), nil
}

// NewBadgerStore wraps an already opened database.
func NewBadgerStore(db *badger.DB) *BadgerStore {
	return &BadgerStore{db: db}
}

// DB exposes the underlying database for maintenance tasks.
func (s *BadgerStore) DB() *badger.DB {
	return s.db
}

// Close closes the database.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}

// RunGC runs one value log garbage collection pass. Having nothing to
// rewrite is not an error.
func (s *BadgerStore) RunGC(discardRatio float64) error {
	err := s.db.RunValueLogGC(discardRatio)
	if err == nil || errors.Is(err, badger.ErrNoRewrite) || errors.Is(err, badger.ErrRejected) {
		return nil
	}
	return fmt.Errorf("value log gc: %w", err)
}

func (s *BadgerStore) Create(ctx context.Context, item *models.ContentItem) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("marshal content: %w", err)
	}

	return s.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get(contentKey(item.ID))
		if err == nil {
			return ErrAlreadyExists
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("check content: %w", err)
		}
		if err := txn.Set(contentKey(item.ID), data); err != nil {
			return fmt.Errorf("set content: %w", err)
		}
		return txn.Set(ownerKey(item.OwnerID, item.CreatedAt, item.ID), nil)
	})
}

func (s *BadgerStore) Get(ctx context.Context, id string) (*models.ContentItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var item *models.ContentItem
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		item, err = getItem(txn, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}

func (s *BadgerStore) ConditionalUpdate(ctx context.Context, id string, expectedVersion uint64, fn Mutator) (*models.ContentItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var updated *models.ContentItem
	err := s.db.Update(func(txn *badger.Txn) error {
		item, err := getItem(txn, id)
		if err != nil {
			return err
		}
		if item.Version != expectedVersion {
			return ErrVersionConflict
		}
		if err := fn(&badgerTx{txn: txn, item: item}); err != nil {
			return err
		}
		item.Version++
		data, err := json.Marshal(item)
		if err != nil {
			return fmt.Errorf("marshal content: %w", err)
		}
		if err := txn.Set(contentKey(id), data); err != nil {
			return fmt.Errorf("set content: %w", err)
		}
		updated = item
		return nil
	})
	if errors.Is(err, badger.ErrConflict) {
		return nil, ErrVersionConflict
	}
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Delete removes the item record and owner index in one transaction, then
// clears interaction records in a write batch. The item is unreachable as
// soon as the first step commits; leftovers from an interrupted second step
// are removed again by a later Delete of the same ID.
func (s *BadgerStore) Delete(ctx context.Context, id string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		item, err := getItem(txn, id)
		if err != nil {
			return err
		}
		if err := txn.Delete(contentKey(id)); err != nil {
			return err
		}
		return txn.Delete(ownerKey(item.OwnerID, item.CreatedAt, id))
	})
	if err != nil {
		return err
	}

	wb := s.db.NewWriteBatch()
	defer wb.Cancel()

	removed := 0
	for _, prefix := range interactionPrefixes(id) {
		keys, err := s.keysWithPrefix(prefix)
		if err != nil {
			return fmt.Errorf("scan %s: %w", prefix, err)
		}
		for _, k := range keys {
			if err := wb.Delete(k); err != nil {
				return fmt.Errorf("delete %s: %w", k, err)
			}
		}
		removed += len(keys)
	}
	if err := wb.Flush(); err != nil {
		return fmt.Errorf("flush cascade delete: %w", err)
	}
	logging.Ctx(ctx).Debug().Str("content_id", id).Int("records", removed).Msg("Content deleted")
	return nil
}

func (s *BadgerStore) keysWithPrefix(prefix []byte) ([][]byte, error) {
	var keys [][]byte
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{PrefetchValues: false, Prefix: prefix})
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		return nil
	})
	return keys, err
}

func (s *BadgerStore) QueryByOwner(ctx context.Context, ownerID string, q OwnerQuery) ([]*models.ContentItem, error) {
	var items []*models.ContentItem
	err := s.db.View(func(txn *badger.Txn) error {
		prefix := ownerPrefix(ownerID)
		seek := prefix
		if q.CreatedSince != nil {
			seek = ownerSeekKey(ownerID, *q.CreatedSince)
		}

		it := txn.NewIterator(badger.IteratorOptions{PrefetchValues: false, Prefix: prefix})
		defer it.Close()
		for it.Seek(seek); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			key := it.Item().Key()
			id := string(key[bytes.LastIndexByte(key, '/')+1:])
			item, err := getItem(txn, id)
			if errors.Is(err, ErrNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			if item.OwnerID == ownerID && q.Matches(item) {
				items = append(items, item)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (s *BadgerStore) ListMembers(ctx context.Context, id string, kind models.InteractionKind, page models.Page) ([]models.Membership, error) {
	var out []models.Membership
	err := s.pageValues(ctx, timedPrefix(id, kind), page, func(val []byte) error {
		var m models.Membership
		if err := json.Unmarshal(val, &m); err != nil {
			return err
		}
		out = append(out, m)
		return nil
	})
	return out, err
}

func (s *BadgerStore) ListComments(ctx context.Context, id string, page models.Page) ([]models.Comment, error) {
	var out []models.Comment
	err := s.pageValues(ctx, commentPrefix(id), page, func(val []byte) error {
		var c models.Comment
		if err := json.Unmarshal(val, &c); err != nil {
			return err
		}
		out = append(out, c)
		return nil
	})
	if err != nil {
		return nil, err
	}

	for i := range out {
		err := s.pageValues(ctx, replyCommentPrefix(id, out[i].ID), models.Page{}, func(val []byte) error {
			var r models.Reply
			if err := json.Unmarshal(val, &r); err != nil {
				return err
			}
			out[i].Replies = append(out[i].Replies, r)
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (s *BadgerStore) ListViews(ctx context.Context, id string, page models.Page) ([]models.View, error) {
	var out []models.View
	err := s.pageValues(ctx, viewPrefix(id), page, func(val []byte) error {
		var v models.View
		if err := json.Unmarshal(val, &v); err != nil {
			return err
		}
		out = append(out, v)
		return nil
	})
	return out, err
}

// pageValues walks the values under prefix in key order, skipping
// page.Offset entries and stopping after page.Limit (0 = no limit).
func (s *BadgerStore) pageValues(ctx context.Context, prefix []byte, page models.Page, fn func(val []byte) error) error {
	return s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{PrefetchValues: true, PrefetchSize: 64, Prefix: prefix})
		defer it.Close()

		skipped, taken := 0, 0
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			if skipped < page.Offset {
				skipped++
				continue
			}
			if page.Limit > 0 && taken >= page.Limit {
				break
			}
			if err := it.Item().Value(fn); err != nil {
				return fmt.Errorf("decode %s: %w", it.Item().Key(), err)
			}
			taken++
		}
		return nil
	})
}

func (s *BadgerStore) ForEachID(ctx context.Context, fn func(id string) error) error {
	prefix := []byte(prefixContent)
	seek := prefix
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		ids := make([]string, 0, forEachBatch)
		err := s.db.View(func(txn *badger.Txn) error {
			it := txn.NewIterator(badger.IteratorOptions{PrefetchValues: false, Prefix: prefix})
			defer it.Close()
			for it.Seek(seek); it.ValidForPrefix(prefix) && len(ids) < forEachBatch; it.Next() {
				key := it.Item().Key()
				if bytes.Equal(key, seek) {
					continue
				}
				ids = append(ids, strings.TrimPrefix(string(key), prefixContent))
			}
			return nil
		})
		if err != nil {
			return err
		}
		if len(ids) == 0 {
			return nil
		}

		for _, id := range ids {
			if err := fn(id); err != nil {
				return err
			}
		}
		seek = contentKey(ids[len(ids)-1])
	}
}

func getItem(txn *badger.Txn, id string) (*models.ContentItem, error) {
	entry, err := txn.Get(contentKey(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get content: %w", err)
	}
	var item models.ContentItem
	if err := entry.Value(func(val []byte) error {
		return json.Unmarshal(val, &item)
	}); err != nil {
		return nil, fmt.Errorf("decode content: %w", err)
	}
	return &item, nil
}

// badgerTx implements Tx inside a read-write Badger transaction.
type badgerTx struct {
	txn  *badger.Txn
	item *models.ContentItem
}

func (t *badgerTx) Item() *models.ContentItem {
	return t.item
}

func (t *badgerTx) exists(key []byte) (bool, error) {
	_, err := t.txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (t *badgerTx) setJSON(key []byte, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return t.txn.Set(key, data)
}

func (t *badgerTx) count(prefix []byte) (int64, error) {
	it := t.txn.NewIterator(badger.IteratorOptions{PrefetchValues: false, Prefix: prefix})
	defer it.Close()
	var n int64
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		n++
	}
	return n, nil
}

func (t *badgerTx) HasMember(kind models.InteractionKind, userID string) (bool, error) {
	return t.exists(memberKey(t.item.ID, kind, userID))
}

func (t *badgerTx) PutMember(kind models.InteractionKind, m models.Membership) error {
	if err := t.setJSON(memberKey(t.item.ID, kind, m.UserID), m); err != nil {
		return err
	}
	return t.setJSON(timedKey(t.item.ID, kind, m.CreatedAt, m.UserID), m)
}

func (t *badgerTx) DeleteMember(kind models.InteractionKind, userID string) error {
	key := memberKey(t.item.ID, kind, userID)
	entry, err := t.txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	var m models.Membership
	if err := entry.Value(func(val []byte) error { return json.Unmarshal(val, &m) }); err != nil {
		return err
	}
	if err := t.txn.Delete(key); err != nil {
		return err
	}
	return t.txn.Delete(timedKey(t.item.ID, kind, m.CreatedAt, userID))
}

func (t *badgerTx) CountMembers(kind models.InteractionKind) (int64, error) {
	return t.count(memberPrefix(t.item.ID, kind))
}

func (t *badgerTx) CommentExists(commentID string) (bool, error) {
	return t.exists(commentKey(t.item.ID, commentID))
}

func (t *badgerTx) PutComment(c *models.Comment) error {
	stored := *c
	stored.Replies = nil
	return t.setJSON(commentKey(t.item.ID, c.ID), &stored)
}

func (t *badgerTx) PutReply(r *models.Reply) error {
	return t.setJSON(replyKey(t.item.ID, r.CommentID, r.ID), r)
}

func (t *badgerTx) CountComments() (int64, int64, error) {
	comments, err := t.count(commentPrefix(t.item.ID))
	if err != nil {
		return 0, 0, err
	}
	replies, err := t.count(replyPrefix(t.item.ID))
	if err != nil {
		return 0, 0, err
	}
	return comments, replies, nil
}

func (t *badgerTx) AppendView(v *models.View) error {
	return t.setJSON(viewKey(t.item.ID, v.ID), v)
}
