// Engagement - Interaction Recording and Aggregate Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/engagement

package services

import (
	"context"
	"time"

	"github.com/tomtom215/engagement/internal/logging"
	"github.com/tomtom215/engagement/internal/metrics"
)

// ValueLogCollector is satisfied by *store.BadgerStore.
type ValueLogCollector interface {
	RunGC(discardRatio float64) error
}

// BadgerGCService periodically reclaims Badger value log space.
type BadgerGCService struct {
	store        ValueLogCollector
	interval     time.Duration
	discardRatio float64
}

// NewBadgerGCService creates a GC service. A non-positive interval defaults
// to ten minutes and a ratio outside (0, 1) to 0.5.
func NewBadgerGCService(st ValueLogCollector, interval time.Duration, discardRatio float64) *BadgerGCService {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	if discardRatio <= 0 || discardRatio >= 1 {
		discardRatio = 0.5
	}
	return &BadgerGCService{store: st, interval: interval, discardRatio: discardRatio}
}

// Serve implements suture.Service. GC failures are logged and retried on the
// next tick rather than restarting the service.
func (s *BadgerGCService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.runOnce()
		}
	}
}

func (s *BadgerGCService) runOnce() {
	start := time.Now()
	if err := s.store.RunGC(s.discardRatio); err != nil {
		metrics.StorageGCRuns.WithLabelValues("error").Inc()
		logging.Warn().Err(err).Msg("Badger value log GC failed")
		return
	}
	metrics.StorageGCRuns.WithLabelValues("ok").Inc()
	logging.Debug().Dur("duration", time.Since(start)).Msg("Badger value log GC pass complete")
}

func (s *BadgerGCService) String() string {
	return "badger-gc"
}
