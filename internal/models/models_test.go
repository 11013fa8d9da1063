// Engagement - Interaction Recording and Aggregate Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/engagement

package models

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestParsePlatform(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    Platform
		wantErr bool
	}{
		{"", PlatformNone, false},
		{"WhatsApp", PlatformWhatsApp, false},
		{"copy", PlatformCopy, false},
		{" twitter ", PlatformTwitter, false},
		{"myspace", "", true},
	}
	for _, tt := range tests {
		got, err := ParsePlatform(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParsePlatform(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if tt.wantErr && !IsValidationError(err) {
			t.Errorf("ParsePlatform(%q) error should be a ValidationError, got %T", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("ParsePlatform(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestParseTimeframe(t *testing.T) {
	t.Parallel()

	for _, in := range []string{"7d", "30d", "90d", "all", ""} {
		if _, err := ParseTimeframe(in); err != nil {
			t.Errorf("ParseTimeframe(%q) unexpected error: %v", in, err)
		}
	}
	if _, err := ParseTimeframe("14d"); !IsValidationError(err) {
		t.Errorf("ParseTimeframe(14d) error = %v, want ValidationError", err)
	}
}

func TestTimeframe_LowerBound(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

	if b := TimeframeAll.LowerBound(now); b != nil {
		t.Errorf("all should be unbounded, got %v", b)
	}
	b := Timeframe7d.LowerBound(now)
	if b == nil || !b.Equal(time.Date(2026, 3, 8, 12, 0, 0, 0, time.UTC)) {
		t.Errorf("7d bound = %v", b)
	}
	if b := Timeframe90d.LowerBound(now); b == nil || !b.Equal(now.Add(-90*24*time.Hour)) {
		t.Errorf("90d bound = %v", b)
	}
}

func TestTimeframe_LowerBoundAcrossDST(t *testing.T) {
	t.Parallel()

	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	// 2026-03-08 02:00 EST jumps to 03:00 EDT.
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, loc)

	for _, tf := range []Timeframe{Timeframe7d, Timeframe30d, Timeframe90d} {
		b := tf.LowerBound(now)
		if b == nil {
			t.Fatalf("%s: nil bound", tf)
		}
		days := map[Timeframe]int{Timeframe7d: 7, Timeframe30d: 30, Timeframe90d: 90}[tf]
		if got, want := now.Sub(*b), time.Duration(days)*24*time.Hour; got != want {
			t.Errorf("%s: window = %v, want %v", tf, got, want)
		}
	}
	// Calendar days would make this window one hour short.
	if b := Timeframe7d.LowerBound(now); b.Equal(now.AddDate(0, 0, -7)) {
		t.Errorf("7d bound %v follows the local calendar across DST", b)
	}
}

func TestParseTypeFilter(t *testing.T) {
	t.Parallel()

	f, err := ParseTypeFilter("REEL")
	if err != nil || f.ContentType() != ContentTypeReel {
		t.Errorf("ParseTypeFilter(REEL) = %q, %v", f, err)
	}
	f, _ = ParseTypeFilter("")
	if f != TypeFilterAll || f.ContentType() != "" {
		t.Errorf("empty filter = %q", f)
	}
	if _, err := ParseTypeFilter("story"); err == nil {
		t.Error("expected error for unknown type")
	}
}

func TestContentItem_Visibility(t *testing.T) {
	t.Parallel()

	item := &ContentItem{ID: "c1", OwnerID: "owner", Visibility: VisibilityPrivate}
	if !item.VisibleTo("owner") {
		t.Error("owner should see private content")
	}
	if item.VisibleTo("other") || item.VisibleTo("") {
		t.Error("private content should be hidden from others")
	}
	item.Visibility = VisibilityPublic
	if !item.VisibleTo("") {
		t.Error("public content should be visible to anonymous callers")
	}
	if item.IsOwner("") {
		t.Error("empty caller must never be the owner")
	}
}

func TestValidationError_Wrapping(t *testing.T) {
	t.Parallel()

	err := fmt.Errorf("add reply: %w", WrapValidationError("parentCommentId", ErrCommentNotFound))
	if !IsValidationError(err) {
		t.Error("expected wrapped ValidationError")
	}
	if !errors.Is(err, ErrCommentNotFound) {
		t.Error("expected errors.Is to match ErrCommentNotFound")
	}

	plain := NewValidationError("content", "must not exceed %d characters", 500)
	if plain.Error() != "validation failed: content must not exceed 500 characters" {
		t.Errorf("Error() = %q", plain.Error())
	}
	if errors.Unwrap(plain) != nil {
		t.Error("plain validation error should not wrap anything")
	}
}

func TestAggregate_Engagements(t *testing.T) {
	t.Parallel()

	a := Aggregate{TotalLikes: 10, TotalComments: 4, TotalSaves: 1, TotalReposts: 2, TotalViews: 100}
	if got := a.Engagements(); got != 17 {
		t.Errorf("Engagements() = %d, want 17", got)
	}
}
