// Engagement - Interaction Recording and Aggregate Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/engagement

package engagement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/tomtom215/engagement/internal/anomaly"
	"github.com/tomtom215/engagement/internal/config"
	"github.com/tomtom215/engagement/internal/logging"
	"github.com/tomtom215/engagement/internal/metrics"
	"github.com/tomtom215/engagement/internal/models"
	"github.com/tomtom215/engagement/internal/store"
)

// Aggregate field names used in anomaly records.
const (
	FieldTotalLikes    = "totalLikes"
	FieldTotalSaves    = "totalSaves"
	FieldTotalReposts  = "totalReposts"
	FieldTotalComments = "totalComments"
)

// errClean aborts the conditional update when nothing needs correcting.
var errClean = errors.New("aggregate consistent")

// SweepStats summarises one reconciliation sweep.
type SweepStats struct {
	Scanned   int
	Corrected int
	Anomalies int
	Errors    int
	Duration  time.Duration
}

// Reconciler recounts aggregates from the interaction records and repairs
// drift left behind by partially applied writes. It works one item at a time
// and never holds a lock across items.
type Reconciler struct {
	store     store.ContentStore
	anomalies anomaly.Store
	agg       *Maintainer
	retry     retryPolicy
	limiter   *rate.Limiter
	now       func() time.Time

	interval     time.Duration
	deadline     time.Duration
	runOnStartup bool
}

// NewReconciler creates a Reconciler. now may be nil.
func NewReconciler(st store.ContentStore, anomalies anomaly.Store, cfg *config.ReconcileConfig, now func() time.Time) *Reconciler {
	if now == nil {
		now = time.Now
	}
	limit := rate.Inf
	if cfg.ItemsPerSec > 0 {
		limit = rate.Limit(cfg.ItemsPerSec)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	return &Reconciler{
		store:        st,
		anomalies:    anomalies,
		agg:          NewMaintainer(now),
		retry:        newRetryPolicy(3, 5*time.Millisecond, 100*time.Millisecond, nil),
		limiter:      rate.NewLimiter(limit, burst),
		now:          now,
		interval:     cfg.Interval,
		deadline:     cfg.SweepDeadline,
		runOnStartup: cfg.RunOnStartup,
	}
}

// ReconcileItem recounts one item and overwrites any mismatched counter.
// It returns the anomalies recorded, which is empty for a consistent item.
// Running it twice in a row records nothing the second time.
func (r *Reconciler) ReconcileItem(ctx context.Context, contentID string) ([]anomaly.Record, error) {
	var found []anomaly.Record

	err := r.retry.do("reconcile", func() error {
		item, err := r.store.Get(ctx, contentID)
		if err != nil {
			return err
		}
		_, err = r.store.ConditionalUpdate(ctx, contentID, item.Version, func(tx store.Tx) error {
			found = found[:0]
			a := &tx.Item().Aggregate
			ts := r.now().UTC()

			check := func(field string, stored *int64, actual int64) {
				if *stored == actual {
					return
				}
				found = append(found, anomaly.Record{
					ID:        uuid.Must(uuid.NewV7()).String(),
					ContentID: contentID,
					Field:     field,
					Expected:  actual,
					Actual:    *stored,
					Timestamp: ts,
				})
				*stored = actual
			}

			for _, c := range []struct {
				kind   models.InteractionKind
				field  string
				stored *int64
			}{
				{models.KindLike, FieldTotalLikes, &a.TotalLikes},
				{models.KindSave, FieldTotalSaves, &a.TotalSaves},
				{models.KindRepost, FieldTotalReposts, &a.TotalReposts},
			} {
				n, err := tx.CountMembers(c.kind)
				if err != nil {
					return err
				}
				check(c.field, c.stored, n)
			}

			comments, replies, err := tx.CountComments()
			if err != nil {
				return err
			}
			check(FieldTotalComments, &a.TotalComments, comments+replies)

			if len(found) == 0 && a.EngagementRate == EngagementRate(a) {
				return errClean
			}
			r.agg.Refresh(a)
			return nil
		})
		return err
	})
	if errors.Is(err, errClean) {
		return nil, nil
	}
	if err != nil {
		return nil, storeErr(err)
	}

	for i := range found {
		if err := r.anomalies.Save(ctx, &found[i]); err != nil {
			return found, fmt.Errorf("save anomaly for %s: %w", contentID, err)
		}
		metrics.ReconcileAnomalies.WithLabelValues(found[i].Field).Inc()
		logging.Warn().
			Str("content_id", contentID).
			Str("field", found[i].Field).
			Int64("expected", found[i].Expected).
			Int64("actual", found[i].Actual).
			Msg("Aggregate drift corrected")
	}
	return found, nil
}

// Sweep reconciles every item, throttled by the configured rate. Items
// deleted mid-sweep are skipped; other per-item failures are counted and
// the sweep moves on.
func (r *Reconciler) Sweep(ctx context.Context) (SweepStats, error) {
	start := time.Now()
	var stats SweepStats

	err := r.store.ForEachID(ctx, func(id string) error {
		if err := r.limiter.Wait(ctx); err != nil {
			return err
		}
		stats.Scanned++
		metrics.ReconcileItemsScanned.Inc()

		found, err := r.ReconcileItem(ctx, id)
		switch {
		case errors.Is(err, models.ErrContentNotFound):
		case err != nil:
			if ctx.Err() != nil {
				return ctx.Err()
			}
			stats.Errors++
			logging.Error().Err(err).Str("content_id", id).Msg("Reconcile item failed")
		}
		if len(found) > 0 {
			stats.Corrected++
			stats.Anomalies += len(found)
		}
		return nil
	})

	stats.Duration = time.Since(start)
	metrics.RecordSweep(stats.Duration, time.Now())
	if err != nil {
		return stats, fmt.Errorf("sweep interrupted after %d items: %w", stats.Scanned, err)
	}
	return stats, nil
}

// Serve runs sweeps on the configured interval until ctx is cancelled.
// It implements suture.Service.
func (r *Reconciler) Serve(ctx context.Context) error {
	if r.runOnStartup {
		r.sweepOnce(ctx)
	}
	if r.interval <= 0 {
		<-ctx.Done()
		return ctx.Err()
	}

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			r.sweepOnce(ctx)
		}
	}
}

func (r *Reconciler) sweepOnce(ctx context.Context) {
	sweepCtx := ctx
	if r.deadline > 0 {
		var cancel context.CancelFunc
		sweepCtx, cancel = context.WithTimeout(ctx, r.deadline)
		defer cancel()
	}

	stats, err := r.Sweep(sweepCtx)
	ev := logging.Info()
	if err != nil {
		ev = logging.Warn().Err(err)
	}
	ev.Int("scanned", stats.Scanned).
		Int("corrected", stats.Corrected).
		Int("anomalies", stats.Anomalies).
		Int("errors", stats.Errors).
		Dur("duration", stats.Duration).
		Msg("Reconciliation sweep finished")
}

// String names the service in supervisor logs.
func (r *Reconciler) String() string {
	return "reconciler"
}
