// Engagement - Interaction Recording and Aggregate Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/engagement

package engagement

import (
	"errors"
	"testing"
	"time"

	"github.com/tomtom215/engagement/internal/models"
	"github.com/tomtom215/engagement/internal/store"
)

var fixedNow = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return fixedNow }

func TestEngagementRate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		agg  models.Aggregate
		want float64
	}{
		{"no views", models.Aggregate{TotalLikes: 5}, 0},
		{"thirty percent", models.Aggregate{TotalViews: 10, TotalLikes: 2, TotalComments: 1}, 30},
		{"all kinds", models.Aggregate{TotalViews: 4, TotalLikes: 1, TotalComments: 1, TotalSaves: 1, TotalReposts: 1}, 100},
		{"rounds to two places", models.Aggregate{TotalViews: 3, TotalLikes: 1}, 33.33},
		{"fractional percent", models.Aggregate{TotalViews: 8, TotalLikes: 1}, 12.5},
		{"over one hundred", models.Aggregate{TotalViews: 1, TotalLikes: 2}, 200},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := EngagementRate(&tt.agg); got != tt.want {
				t.Errorf("EngagementRate() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRound2(t *testing.T) {
	t.Parallel()

	tests := map[float64]float64{
		1.005:   1.0, // binary representation sits just below 1.005
		0.125:   0.13,
		66.6666: 66.67,
		0:       0,
	}
	for in, want := range tests {
		if got := Round2(in); got != want {
			t.Errorf("Round2(%v) = %v, want %v", in, got, want)
		}
	}
}

func TestApplyDelta_FloorsAtZero(t *testing.T) {
	t.Parallel()

	m := NewMaintainer(fixedClock)
	a := models.Aggregate{TotalLikes: 1, TotalViews: 2}
	m.ApplyDelta(&a, Delta{Likes: -3, Saves: -1})

	if a.TotalLikes != 0 || a.TotalSaves != 0 {
		t.Errorf("counters went negative: %+v", a)
	}
	if a.EngagementRate != 0 {
		t.Errorf("EngagementRate = %v, want 0", a.EngagementRate)
	}
	if !a.LastUpdated.Equal(fixedNow) {
		t.Errorf("LastUpdated = %v, want %v", a.LastUpdated, fixedNow)
	}
}

func TestApplyView_RunningMean(t *testing.T) {
	t.Parallel()

	m := NewMaintainer(fixedClock)
	w1, w2, w3 := int64(10000), int64(30000), int64(5000)

	var reel models.Aggregate
	m.ApplyView(&reel, models.ContentTypeReel, &w1)
	if reel.AverageWatchTimeMs != 10000 {
		t.Fatalf("avg after one view = %v, want 10000", reel.AverageWatchTimeMs)
	}
	m.ApplyView(&reel, models.ContentTypeReel, &w2)
	if reel.AverageWatchTimeMs != 20000 {
		t.Fatalf("avg after two views = %v, want 20000", reel.AverageWatchTimeMs)
	}
	m.ApplyView(&reel, models.ContentTypeReel, nil)
	if reel.AverageWatchTimeMs != 20000 || reel.TotalViews != 3 || reel.WatchTimeSamples != 2 {
		t.Fatalf("view without watch time changed the mean: %+v", reel)
	}
	m.ApplyView(&reel, models.ContentTypeReel, &w3)
	if reel.AverageWatchTimeMs != 15000 {
		t.Errorf("avg after three samples = %v, want 15000", reel.AverageWatchTimeMs)
	}

	var post models.Aggregate
	m.ApplyView(&post, models.ContentTypePost, &w1)
	if post.AverageWatchTimeMs != 0 || post.WatchTimeSamples != 0 || post.TotalViews != 1 {
		t.Errorf("post view touched watch time: %+v", post)
	}
}

func TestRetryPolicy_Backoff(t *testing.T) {
	t.Parallel()

	p := newRetryPolicy(3, 10*time.Millisecond, 25*time.Millisecond, func(time.Duration) {})
	for attempt := 1; attempt <= 5; attempt++ {
		d := p.backoff(attempt)
		base := 10 * time.Millisecond << (attempt - 1)
		if base > 25*time.Millisecond {
			base = 25 * time.Millisecond
		}
		if d < base || d > 25*time.Millisecond {
			t.Errorf("backoff(%d) = %v, want in [%v, 25ms]", attempt, d, base)
		}
	}
	if d := newRetryPolicy(3, 0, 0, nil).backoff(1); d != 0 {
		t.Errorf("zero base backoff = %v, want 0", d)
	}
}

func TestRetryPolicy_StopsOnOtherErrors(t *testing.T) {
	t.Parallel()

	calls := 0
	p := newRetryPolicy(3, time.Millisecond, time.Millisecond, func(time.Duration) {})
	boom := errors.New("boom")
	err := p.do("test", func() error {
		calls++
		if calls == 1 {
			return store.ErrVersionConflict
		}
		return boom
	})
	if !errors.Is(err, boom) || calls != 2 {
		t.Errorf("err=%v calls=%d, want boom after 2 calls", err, calls)
	}
}
