// Engagement - Interaction Recording and Aggregate Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/engagement

package engagement

import (
	"math"
	"time"

	"github.com/tomtom215/engagement/internal/models"
)

// Delta is a signed change to the aggregate counters.
type Delta struct {
	Views    int64
	Likes    int64
	Comments int64
	Saves    int64
	Reposts  int64
}

// deltaFor returns a delta of n for a toggle or comment kind.
func deltaFor(kind models.InteractionKind, n int64) Delta {
	switch kind {
	case models.KindLike:
		return Delta{Likes: n}
	case models.KindSave:
		return Delta{Saves: n}
	case models.KindRepost:
		return Delta{Reposts: n}
	case models.KindComment, models.KindReply:
		return Delta{Comments: n}
	case models.KindView:
		return Delta{Views: n}
	}
	return Delta{}
}

// counterFor reads the aggregate counter backing kind.
func counterFor(a *models.Aggregate, kind models.InteractionKind) int64 {
	switch kind {
	case models.KindLike:
		return a.TotalLikes
	case models.KindSave:
		return a.TotalSaves
	case models.KindRepost:
		return a.TotalReposts
	case models.KindComment, models.KindReply:
		return a.TotalComments
	case models.KindView:
		return a.TotalViews
	}
	return 0
}

// Maintainer owns every mutation of the aggregate block. All counter changes
// go through ApplyDelta or ApplyView so the engagement rate and timestamp are
// never stale relative to the counters.
type Maintainer struct {
	now func() time.Time
}

// NewMaintainer creates a Maintainer. A nil clock defaults to time.Now.
func NewMaintainer(now func() time.Time) *Maintainer {
	if now == nil {
		now = time.Now
	}
	return &Maintainer{now: now}
}

// ApplyDelta adds d to the counters, flooring each at zero.
func (m *Maintainer) ApplyDelta(a *models.Aggregate, d Delta) {
	a.TotalViews = floorAdd(a.TotalViews, d.Views)
	a.TotalLikes = floorAdd(a.TotalLikes, d.Likes)
	a.TotalComments = floorAdd(a.TotalComments, d.Comments)
	a.TotalSaves = floorAdd(a.TotalSaves, d.Saves)
	a.TotalReposts = floorAdd(a.TotalReposts, d.Reposts)
	m.Refresh(a)
}

// ApplyView counts one view. For reels carrying a watch time the running
// mean is advanced as (avg*n + w) / (n+1).
func (m *Maintainer) ApplyView(a *models.Aggregate, ct models.ContentType, watchTimeMs *int64) {
	a.TotalViews++
	if ct == models.ContentTypeReel && watchTimeMs != nil {
		n := float64(a.WatchTimeSamples)
		a.AverageWatchTimeMs = (a.AverageWatchTimeMs*n + float64(*watchTimeMs)) / (n + 1)
		a.WatchTimeSamples++
	}
	m.Refresh(a)
}

// Refresh recomputes the engagement rate and stamps LastUpdated.
func (m *Maintainer) Refresh(a *models.Aggregate) {
	a.EngagementRate = EngagementRate(a)
	a.LastUpdated = m.now().UTC()
}

// EngagementRate returns (likes+comments+saves+reposts)/views*100 rounded to
// two decimals, or 0 when there are no views.
func EngagementRate(a *models.Aggregate) float64 {
	if a.TotalViews <= 0 {
		return 0
	}
	return Round2(float64(a.Engagements()) / float64(a.TotalViews) * 100)
}

// Round2 rounds half away from zero to two decimal places.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func floorAdd(v, d int64) int64 {
	if v+d < 0 {
		return 0
	}
	return v + d
}
