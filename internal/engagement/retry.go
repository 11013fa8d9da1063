// Engagement - Interaction Recording and Aggregate Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/engagement

package engagement

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/tomtom215/engagement/internal/metrics"
	"github.com/tomtom215/engagement/internal/models"
	"github.com/tomtom215/engagement/internal/store"
)

// retryPolicy retries optimistic updates that lost a version race.
type retryPolicy struct {
	attempts int
	base     time.Duration
	max      time.Duration
	sleep    func(time.Duration)
}

func newRetryPolicy(attempts int, base, maxBackoff time.Duration, sleep func(time.Duration)) retryPolicy {
	if attempts <= 0 {
		attempts = 3
	}
	if sleep == nil {
		sleep = time.Sleep
	}
	return retryPolicy{attempts: attempts, base: base, max: maxBackoff, sleep: sleep}
}

// backoff returns base*2^(attempt-1) plus up to 50% jitter, capped at max.
func (p retryPolicy) backoff(attempt int) time.Duration {
	if p.base <= 0 {
		return 0
	}
	d := p.base << (attempt - 1)
	if d <= 0 || (p.max > 0 && d > p.max) {
		d = p.max
	}
	if half := int64(d / 2); half > 0 {
		d += time.Duration(rand.Int64N(half + 1))
	}
	if p.max > 0 && d > p.max {
		d = p.max
	}
	return d
}

// do runs fn until it succeeds, fails with anything other than a version
// conflict, or the attempts are exhausted. Exhaustion yields ErrWriteConflict.
func (p retryPolicy) do(op string, fn func() error) error {
	for attempt := 1; ; attempt++ {
		err := fn()
		if !errors.Is(err, store.ErrVersionConflict) {
			return err
		}
		if attempt >= p.attempts {
			return fmt.Errorf("%s after %d attempts: %w", op, attempt, models.ErrWriteConflict)
		}
		metrics.WriteConflictRetries.WithLabelValues(op).Inc()
		p.sleep(p.backoff(attempt))
	}
}
