// Engagement - Interaction Recording and Aggregate Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/engagement

// Package anomaly persists the drift records written by the reconciliation
// sweep whenever a stored aggregate disagrees with the interaction records.
package anomaly

import (
	"context"
	"sync"
	"time"
)

// Record describes one corrected aggregate field. Expected is the value
// recounted from the interaction records; Actual is what was stored.
type Record struct {
	ID        string    `json:"id"`
	ContentID string    `json:"contentId"`
	Field     string    `json:"field"`
	Expected  int64     `json:"expected"`
	Actual    int64     `json:"actual"`
	Timestamp time.Time `json:"timestamp"`
}

// Filter narrows Query results. Zero values match everything.
type Filter struct {
	ContentID string
	Field     string
	Since     *time.Time
	Limit     int
}

func (f *Filter) matches(r *Record) bool {
	if f.ContentID != "" && r.ContentID != f.ContentID {
		return false
	}
	if f.Field != "" && r.Field != f.Field {
		return false
	}
	return f.Since == nil || !r.Timestamp.Before(*f.Since)
}

// Store persists anomaly records.
type Store interface {
	Save(ctx context.Context, r *Record) error

	// Query returns matching records newest first.
	Query(ctx context.Context, f Filter) ([]Record, error)

	Count(ctx context.Context, f Filter) (int64, error)
}

// MemoryStore keeps the most recent records in memory.
// Suitable for development and testing. Data is lost on restart.
type MemoryStore struct {
	mu      sync.RWMutex
	records []Record
	maxLen  int
}

// NewMemoryStore creates a store holding at most maxLen records.
func NewMemoryStore(maxLen int) *MemoryStore {
	if maxLen <= 0 {
		maxLen = 10000
	}
	return &MemoryStore{maxLen: maxLen}
}

func (s *MemoryStore) Save(ctx context.Context, r *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Drop the oldest 10% once full
	if len(s.records) >= s.maxLen {
		drop := s.maxLen / 10
		if drop == 0 {
			drop = 1
		}
		s.records = s.records[drop:]
	}
	s.records = append(s.records, *r)
	return nil
}

func (s *MemoryStore) Query(ctx context.Context, f Filter) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Record
	for i := len(s.records) - 1; i >= 0; i-- {
		if !f.matches(&s.records[i]) {
			continue
		}
		out = append(out, s.records[i])
		if f.Limit > 0 && len(out) >= f.Limit {
			break
		}
	}
	return out, nil
}

func (s *MemoryStore) Count(ctx context.Context, f Filter) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	for i := range s.records {
		if f.matches(&s.records[i]) {
			n++
		}
	}
	return n, nil
}
