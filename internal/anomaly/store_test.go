// Engagement - Interaction Recording and Aggregate Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/engagement

package anomaly

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("duckdb", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open in-memory DuckDB: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func newDuckDBStore(t *testing.T) Store {
	t.Helper()
	s := NewDuckDBStore(setupTestDB(t))
	if err := s.CreateTable(context.Background()); err != nil {
		t.Fatalf("CreateTable failed: %v", err)
	}
	return s
}

var t0 = time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

func seed(t *testing.T, s Store) {
	t.Helper()
	records := []Record{
		{ID: "a1", ContentID: "c1", Field: "totalLikes", Expected: 3, Actual: 5, Timestamp: t0},
		{ID: "a2", ContentID: "c1", Field: "totalComments", Expected: 2, Actual: 0, Timestamp: t0.Add(time.Minute)},
		{ID: "a3", ContentID: "c2", Field: "totalLikes", Expected: 0, Actual: 1, Timestamp: t0.Add(2 * time.Minute)},
	}
	for i := range records {
		if err := s.Save(context.Background(), &records[i]); err != nil {
			t.Fatalf("Save(%s) failed: %v", records[i].ID, err)
		}
	}
}

func TestStores(t *testing.T) {
	t.Parallel()

	factories := map[string]func(t *testing.T) Store{
		"memory": func(*testing.T) Store { return NewMemoryStore(100) },
		"duckdb": newDuckDBStore,
	}
	for name, factory := range factories {
		factory := factory
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()
			s := factory(t)
			seed(t, s)

			all, err := s.Query(ctx, Filter{})
			if err != nil {
				t.Fatalf("Query failed: %v", err)
			}
			if len(all) != 3 || all[0].ID != "a3" || all[2].ID != "a1" {
				t.Errorf("Query(all) = %+v, want newest first", all)
			}
			if all[2].Expected != 3 || all[2].Actual != 5 || !all[2].Timestamp.Equal(t0) {
				t.Errorf("round trip lost data: %+v", all[2])
			}

			byContent, _ := s.Query(ctx, Filter{ContentID: "c1"})
			if len(byContent) != 2 {
				t.Errorf("Query(c1) = %d records, want 2", len(byContent))
			}

			byField, _ := s.Query(ctx, Filter{Field: "totalLikes", Limit: 1})
			if len(byField) != 1 || byField[0].ID != "a3" {
				t.Errorf("Query(totalLikes, limit 1) = %+v", byField)
			}

			since := t0.Add(time.Minute)
			n, err := s.Count(ctx, Filter{Since: &since})
			if err != nil || n != 2 {
				t.Errorf("Count(since) = %d, %v; want 2", n, err)
			}
		})
	}
}

func TestMemoryStore_Bounded(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore(10)
	ctx := context.Background()
	for i := 0; i < 25; i++ {
		_ = s.Save(ctx, &Record{ID: fmt.Sprintf("r%d", i), ContentID: "c", Timestamp: t0})
	}
	n, _ := s.Count(ctx, Filter{})
	if n > 10 {
		t.Errorf("store holds %d records, cap is 10", n)
	}
	latest, _ := s.Query(ctx, Filter{Limit: 1})
	if latest[0].ID != "r24" {
		t.Errorf("latest = %s, want r24", latest[0].ID)
	}
}

func TestDuckDBStore_SaveNil(t *testing.T) {
	t.Parallel()

	s := NewDuckDBStore(setupTestDB(t))
	if err := s.Save(context.Background(), nil); err == nil {
		t.Error("expected error for nil record")
	}
}
