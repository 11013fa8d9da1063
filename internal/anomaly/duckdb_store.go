// Engagement - Interaction Recording and Aggregate Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/engagement

package anomaly

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/duckdb/duckdb-go/v2" // registers the "duckdb" driver

	"github.com/tomtom215/engagement/internal/logging"
)

// OpenDuckDB opens the DuckDB database at path (":memory:" for in-process).
func OpenDuckDB(ctx context.Context, path string) (*sql.DB, error) {
	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("open duckdb %q: %w", path, err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping duckdb %q: %w", path, err)
	}
	return db, nil
}

// DuckDBStore implements Store on a DuckDB table.
type DuckDBStore struct {
	db *sql.DB
}

// NewDuckDBStore wraps db. Call CreateTable before first use.
func NewDuckDBStore(db *sql.DB) *DuckDBStore {
	return &DuckDBStore{db: db}
}

// CreateTable creates the anomalies table and indexes if they don't exist.
func (s *DuckDBStore) CreateTable(ctx context.Context) error {
	schema := `
		CREATE TABLE IF NOT EXISTS aggregate_anomalies (
			id TEXT PRIMARY KEY,
			content_id TEXT NOT NULL,
			field TEXT NOT NULL,
			expected BIGINT NOT NULL,
			actual BIGINT NOT NULL,
			detected_at TIMESTAMPTZ NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_anomalies_content ON aggregate_anomalies(content_id);
		CREATE INDEX IF NOT EXISTS idx_anomalies_detected ON aggregate_anomalies(detected_at)
	`
	for _, stmt := range strings.Split(schema, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}
	logging.Info().Msg("Anomaly table created/verified")
	return nil
}

func (s *DuckDBStore) Save(ctx context.Context, r *Record) error {
	if r == nil {
		return fmt.Errorf("record cannot be nil")
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO aggregate_anomalies (id, content_id, field, expected, actual, detected_at) VALUES (?, ?, ?, ?, ?, ?)`,
		r.ID, r.ContentID, r.Field, r.Expected, r.Actual, r.Timestamp.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to save anomaly: %w", err)
	}
	return nil
}

func (s *DuckDBStore) Query(ctx context.Context, f Filter) ([]Record, error) {
	where, args := buildWhere(f)
	query := "SELECT id, content_id, field, expected, actual, detected_at FROM aggregate_anomalies" + where +
		" ORDER BY detected_at DESC, id DESC"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query anomalies: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.ID, &r.ContentID, &r.Field, &r.Expected, &r.Actual, &r.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan anomaly: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating anomalies: %w", err)
	}
	return out, nil
}

func (s *DuckDBStore) Count(ctx context.Context, f Filter) (int64, error) {
	where, args := buildWhere(f)
	var n int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM aggregate_anomalies"+where, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count anomalies: %w", err)
	}
	return n, nil
}

func buildWhere(f Filter) (string, []interface{}) {
	var conds []string
	var args []interface{}
	if f.ContentID != "" {
		conds = append(conds, "content_id = ?")
		args = append(args, f.ContentID)
	}
	if f.Field != "" {
		conds = append(conds, "field = ?")
		args = append(args, f.Field)
	}
	if f.Since != nil {
		conds = append(conds, "detected_at >= ?")
		args = append(args, f.Since.UTC())
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}
