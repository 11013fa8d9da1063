// Engagement - Interaction Recording and Aggregate Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/engagement

package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/tomtom215/engagement/internal/anomaly"
	"github.com/tomtom215/engagement/internal/api"
	"github.com/tomtom215/engagement/internal/config"
	"github.com/tomtom215/engagement/internal/events"
	"github.com/tomtom215/engagement/internal/logging"
	"github.com/tomtom215/engagement/internal/store"
	"github.com/tomtom215/engagement/internal/supervisor/services"
)

// readinessSentinelID never names a real item; a clean ErrNotFound proves the
// store can serve reads.
const readinessSentinelID = "__readiness_check__"

func openContentStore(cfg *config.StorageConfig) (*store.BadgerStore, error) {
	return store.OpenBadger(cfg)
}

// storeGCService returns nil for in-memory Badger, which has no value log.
func storeGCService(st *store.BadgerStore, cfg *config.StorageConfig) *services.BadgerGCService {
	if cfg.InMemory {
		return nil
	}
	return services.NewBadgerGCService(st, cfg.GCInterval, cfg.GCDiscardRatio)
}

// openAnomalyStore returns the anomaly log and a func that releases it.
func openAnomalyStore(ctx context.Context, cfg *config.AnomalyConfig) (anomaly.Store, func(), error) {
	if cfg.MemoryOnly {
		logging.Info().Int("max_len", cfg.MemoryMaxLen).Msg("Anomaly log kept in memory")
		return anomaly.NewMemoryStore(cfg.MemoryMaxLen), func() {}, nil
	}

	db, err := anomaly.OpenDuckDB(ctx, cfg.Path)
	if err != nil {
		return nil, nil, err
	}
	st := anomaly.NewDuckDBStore(db)
	if err := st.CreateTable(ctx); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("create anomaly table: %w", err)
	}
	logging.Info().Str("path", cfg.Path).Msg("Anomaly log opened in DuckDB")

	closeFn := func() {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing anomaly database")
		}
	}
	return st, closeFn, nil
}

// openEventBus returns nil when events are disabled.
func openEventBus(ctx context.Context, cfg *config.EventsConfig) (*events.Bus, error) {
	if !cfg.Enabled {
		logging.Info().Msg("Interaction events disabled (EVENTS_ENABLED=false)")
		return nil, nil
	}
	return events.Open(ctx, cfg)
}

func readinessChecks(st store.ContentStore, bus *events.Bus) []api.ReadinessCheck {
	checks := []api.ReadinessCheck{{
		Name: "content_store",
		Check: func(ctx context.Context) error {
			_, err := st.Get(ctx, readinessSentinelID)
			if err == nil || errors.Is(err, store.ErrNotFound) {
				return nil
			}
			return err
		},
	}}
	if bus != nil {
		checks = append(checks, api.ReadinessCheck{
			Name: "event_bus",
			Check: func(context.Context) error {
				if !bus.Healthy() {
					return errors.New("embedded NATS server not running")
				}
				return nil
			},
		})
	}
	return checks
}
