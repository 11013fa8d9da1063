// Engagement - Interaction Recording and Aggregate Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/engagement

package engagement

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tomtom215/engagement/internal/config"
	"github.com/tomtom215/engagement/internal/events"
	"github.com/tomtom215/engagement/internal/models"
	"github.com/tomtom215/engagement/internal/store"
)

type capturedEvents struct {
	mu     sync.Mutex
	events []*events.InteractionEvent
	err    error
}

func (c *capturedEvents) Publish(_ context.Context, evt *events.InteractionEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, evt)
	return c.err
}

func (c *capturedEvents) all() []*events.InteractionEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*events.InteractionEvent(nil), c.events...)
}

type fixture struct {
	store  *store.MemoryStore
	rec    *Recorder
	events *capturedEvents
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st := store.NewMemoryStore()
	ev := &capturedEvents{}
	rec := NewRecorder(st, Options{
		MaxAttempts: 3,
		Now:         fixedClock,
		Sleep:       func(time.Duration) {},
		Events:      ev,
	})
	return &fixture{store: st, rec: rec, events: ev}
}

func (f *fixture) create(t *testing.T, owner string, ct models.ContentType, vis models.Visibility) *models.ContentItem {
	t.Helper()
	in := CreateContentInput{OwnerID: owner, Type: string(ct), Visibility: string(vis), Body: "hello"}
	if ct == models.ContentTypeReel {
		in.MediaURL = "https://cdn.example.com/r.mp4"
	}
	item, err := f.rec.CreateContent(context.Background(), in)
	if err != nil {
		t.Fatalf("CreateContent failed: %v", err)
	}
	return item
}

func (f *fixture) aggregate(t *testing.T, id string) models.Aggregate {
	t.Helper()
	item, err := f.store.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("Get(%s) failed: %v", id, err)
	}
	return item.Aggregate
}

func ms(v int64) *int64 { return &v }

func TestToggleLike_Idempotence(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	item := f.create(t, "owner", models.ContentTypePost, models.VisibilityPublic)

	res, err := f.rec.ToggleLike(ctx, item.ID, "u1")
	if err != nil || !res.Active || res.Total != 1 {
		t.Fatalf("first toggle = %+v, %v; want liked, 1", res, err)
	}
	res, err = f.rec.ToggleLike(ctx, item.ID, "u1")
	if err != nil || res.Active || res.Total != 0 {
		t.Fatalf("second toggle = %+v, %v; want unliked, 0", res, err)
	}
	res, _ = f.rec.ToggleLike(ctx, item.ID, "u1")
	if !res.Active || res.Total != 1 {
		t.Errorf("third toggle = %+v; want liked, 1", res)
	}

	members, _ := f.store.ListMembers(ctx, item.ID, models.KindLike, models.Page{})
	if len(members) != 1 || members[0].UserID != "u1" {
		t.Errorf("like set = %+v, want exactly u1", members)
	}
}

func TestToggles_CountsMatchSets(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	item := f.create(t, "owner", models.ContentTypePost, models.VisibilityPublic)

	for _, u := range []string{"a", "b", "c"} {
		if _, err := f.rec.ToggleSave(ctx, item.ID, u); err != nil {
			t.Fatalf("ToggleSave(%s): %v", u, err)
		}
	}
	if _, err := f.rec.ToggleSave(ctx, item.ID, "b"); err != nil {
		t.Fatal(err)
	}
	if _, err := f.rec.ToggleRepost(ctx, item.ID, "a", "WhatsApp"); err != nil {
		t.Fatal(err)
	}

	agg := f.aggregate(t, item.ID)
	saves, _ := f.store.ListMembers(ctx, item.ID, models.KindSave, models.Page{})
	if agg.TotalSaves != int64(len(saves)) || agg.TotalSaves != 2 {
		t.Errorf("TotalSaves=%d, set size=%d, want 2", agg.TotalSaves, len(saves))
	}
	reposts, _ := f.store.ListMembers(ctx, item.ID, models.KindRepost, models.Page{})
	if len(reposts) != 1 || reposts[0].Platform != models.PlatformWhatsApp {
		t.Errorf("reposts = %+v, want one whatsapp repost", reposts)
	}
	if agg.TotalReposts != 1 {
		t.Errorf("TotalReposts = %d, want 1", agg.TotalReposts)
	}
}

func TestToggleRepost_Platform(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	item := f.create(t, "owner", models.ContentTypePost, models.VisibilityPublic)

	_, err := f.rec.ToggleRepost(ctx, item.ID, "u1", "myspace")
	if !models.IsValidationError(err) {
		t.Fatalf("unknown platform error = %v, want ValidationError", err)
	}

	if _, err := f.rec.ToggleRepost(ctx, item.ID, "u1", ""); err != nil {
		t.Fatal(err)
	}
	reposts, _ := f.store.ListMembers(ctx, item.ID, models.KindRepost, models.Page{})
	if reposts[0].Platform != models.PlatformNone {
		t.Errorf("empty platform recorded as %q, want none", reposts[0].Platform)
	}

	// Removal ignores the platform argument.
	res, err := f.rec.ToggleRepost(ctx, item.ID, "u1", "twitter")
	if err != nil || res.Active || res.Total != 0 {
		t.Errorf("remove repost = %+v, %v", res, err)
	}
}

func TestToggle_RequiresUser(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	item := f.create(t, "owner", models.ContentTypePost, models.VisibilityPublic)

	if _, err := f.rec.ToggleLike(context.Background(), item.ID, ""); !models.IsValidationError(err) {
		t.Errorf("anonymous like error = %v, want ValidationError", err)
	}
}

func TestRecorder_ContentNotFound(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.rec.ToggleLike(ctx, "missing", "u1"); !errors.Is(err, models.ErrContentNotFound) {
		t.Errorf("ToggleLike(missing) = %v", err)
	}
	if _, err := f.rec.AddComment(ctx, "missing", "u1", "hi", ""); !errors.Is(err, models.ErrContentNotFound) {
		t.Errorf("AddComment(missing) = %v", err)
	}
	if _, err := f.rec.RecordView(ctx, "missing", "", nil); !errors.Is(err, models.ErrContentNotFound) {
		t.Errorf("RecordView(missing) = %v", err)
	}
}

func TestRecorder_PrivateContentHiddenFromOthers(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	item := f.create(t, "owner", models.ContentTypePost, models.VisibilityPrivate)

	if _, err := f.rec.ToggleLike(ctx, item.ID, "stranger"); !errors.Is(err, models.ErrContentNotFound) {
		t.Errorf("stranger like = %v, want ErrContentNotFound", err)
	}
	if _, err := f.rec.RecordView(ctx, item.ID, "", nil); !errors.Is(err, models.ErrContentNotFound) {
		t.Errorf("anonymous view = %v, want ErrContentNotFound", err)
	}
	if _, err := f.rec.GetContent(ctx, item.ID, "stranger"); !errors.Is(err, models.ErrContentNotFound) {
		t.Errorf("stranger get = %v, want ErrContentNotFound", err)
	}
	if _, err := f.rec.ToggleLike(ctx, item.ID, "owner"); err != nil {
		t.Errorf("owner like on private item failed: %v", err)
	}
}

func TestAddComment_Validation(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	item := f.create(t, "owner", models.ContentTypePost, models.VisibilityPublic)

	parent, err := f.rec.AddComment(ctx, item.ID, "u1", "top", "")
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		content string
		parent  string
		wantErr bool
	}{
		{"blank", "   \n\t", "", true},
		{"top level at limit", strings.Repeat("é", 500), "", false},
		{"top level over limit", strings.Repeat("é", 501), "", true},
		{"reply at limit", strings.Repeat("ü", 300), parent.Comment.ID, false},
		{"reply over limit", strings.Repeat("ü", 301), parent.Comment.ID, true},
		{"trimmed to limit", "  " + strings.Repeat("a", 500) + "  ", "", false},
	}
	for _, tt := range tests {
		_, err := f.rec.AddComment(ctx, item.ID, "u2", tt.content, tt.parent)
		if tt.wantErr && !models.IsValidationError(err) {
			t.Errorf("%s: err = %v, want ValidationError", tt.name, err)
		}
		if !tt.wantErr && err != nil {
			t.Errorf("%s: unexpected error %v", tt.name, err)
		}
	}
}

func TestAddComment_RepliesAndCounts(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	item := f.create(t, "owner", models.ContentTypePost, models.VisibilityPublic)

	top, err := f.rec.AddComment(ctx, item.ID, "u1", "  first!  ", "")
	if err != nil {
		t.Fatal(err)
	}
	if top.Comment == nil || top.Reply != nil || top.Comment.Content != "first!" {
		t.Fatalf("top-level result = %+v", top)
	}
	reply, err := f.rec.AddComment(ctx, item.ID, "u2", "agreed", top.Comment.ID)
	if err != nil {
		t.Fatal(err)
	}
	if reply.Reply == nil || reply.Reply.CommentID != top.Comment.ID {
		t.Fatalf("reply result = %+v", reply)
	}

	_, err = f.rec.AddComment(ctx, item.ID, "u3", "nested", reply.Reply.ID)
	if !models.IsValidationError(err) || !errors.Is(err, models.ErrCommentNotFound) {
		t.Errorf("reply to reply = %v, want ValidationError wrapping ErrCommentNotFound", err)
	}
	_, err = f.rec.AddComment(ctx, item.ID, "u3", "orphan", "no-such-comment")
	if !errors.Is(err, models.ErrCommentNotFound) {
		t.Errorf("unknown parent = %v", err)
	}

	agg := f.aggregate(t, item.ID)
	if agg.TotalComments != 2 {
		t.Errorf("TotalComments = %d, want 2 (comment + reply)", agg.TotalComments)
	}
	comments, _ := f.store.ListComments(ctx, item.ID, models.Page{})
	if len(comments) != 1 || len(comments[0].Replies) != 1 {
		t.Errorf("stored comments = %+v", comments)
	}
}

func TestRecordView_EngagementRate(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	item := f.create(t, "owner", models.ContentTypePost, models.VisibilityPublic)

	for i := 0; i < 10; i++ {
		if _, err := f.rec.RecordView(ctx, item.ID, "", nil); err != nil {
			t.Fatal(err)
		}
	}
	f.rec.ToggleLike(ctx, item.ID, "a")
	f.rec.ToggleLike(ctx, item.ID, "b")
	f.rec.AddComment(ctx, item.ID, "c", "nice", "")

	agg := f.aggregate(t, item.ID)
	if agg.TotalViews != 10 || agg.EngagementRate != 30 {
		t.Errorf("views=%d rate=%v, want 10 and 30.0", agg.TotalViews, agg.EngagementRate)
	}
}

func TestEngagementRate_ZeroViews(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	item := f.create(t, "owner", models.ContentTypePost, models.VisibilityPublic)

	f.rec.ToggleLike(ctx, item.ID, "a")
	f.rec.ToggleSave(ctx, item.ID, "a")

	if agg := f.aggregate(t, item.ID); agg.EngagementRate != 0 {
		t.Errorf("rate with no views = %v, want 0", agg.EngagementRate)
	}
}

func TestRecordView_OwnerSelfViewExcluded(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	item := f.create(t, "owner", models.ContentTypeReel, models.VisibilityPublic)

	res, err := f.rec.RecordView(ctx, item.ID, "owner", ms(9000))
	if err != nil {
		t.Fatal(err)
	}
	if res.Counted || res.TotalViews != 0 {
		t.Errorf("self view result = %+v, want uncounted with 0 views", res)
	}

	agg := f.aggregate(t, item.ID)
	if agg.TotalViews != 0 || agg.AverageWatchTimeMs != 0 {
		t.Errorf("self view changed aggregate: %+v", agg)
	}
	views, _ := f.store.ListViews(ctx, item.ID, models.Page{})
	if len(views) != 1 || views[0].Counted {
		t.Errorf("view log = %+v, want one uncounted entry", views)
	}
}

func TestRecordView_RunningAverage(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	reel := f.create(t, "owner", models.ContentTypeReel, models.VisibilityPublic)

	f.rec.RecordView(ctx, reel.ID, "v1", ms(10000))
	res, err := f.rec.RecordView(ctx, reel.ID, "v2", ms(30000))
	if err != nil {
		t.Fatal(err)
	}
	if res.TotalViews != 2 {
		t.Errorf("TotalViews = %d, want 2", res.TotalViews)
	}
	if agg := f.aggregate(t, reel.ID); agg.AverageWatchTimeMs != 20000 {
		t.Errorf("AverageWatchTimeMs = %v, want 20000", agg.AverageWatchTimeMs)
	}

	if _, err := f.rec.RecordView(ctx, reel.ID, "v3", ms(-1)); !models.IsValidationError(err) {
		t.Errorf("negative watch time = %v, want ValidationError", err)
	}
}

// concurrencyStores returns every ContentStore implementation, Badger
// included, so version conflicts surface from real optimistic transactions.
func concurrencyStores(t *testing.T) map[string]store.ContentStore {
	t.Helper()
	bs, err := store.OpenBadger(&config.StorageConfig{InMemory: true})
	if err != nil {
		t.Fatalf("OpenBadger: %v", err)
	}
	t.Cleanup(func() { bs.Close() })
	return map[string]store.ContentStore{
		"memory": store.NewMemoryStore(),
		"badger": bs,
	}
}

// racingStore counts the version conflicts the recorder had to retry.
type racingStore struct {
	store.ContentStore
	conflicts atomic.Int64
}

func (r *racingStore) ConditionalUpdate(ctx context.Context, id string, expected uint64, fn store.Mutator) (*models.ContentItem, error) {
	item, err := r.ContentStore.ConditionalUpdate(ctx, id, expected, fn)
	if errors.Is(err, store.ErrVersionConflict) {
		r.conflicts.Add(1)
	}
	return item, err
}

func TestToggleLike_ConcurrentDistinctUsers(t *testing.T) {
	t.Parallel()
	const writers = 24

	for name, st := range concurrencyStores(t) {
		st := st
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			rs := &racingStore{ContentStore: st}
			rec := NewRecorder(rs, Options{
				MaxAttempts: 200,
				BaseBackoff: 50 * time.Microsecond,
				MaxBackoff:  time.Millisecond,
				Now:         fixedClock,
			})
			ctx := context.Background()
			item, err := rec.CreateContent(ctx, CreateContentInput{OwnerID: "owner", Type: "post", Body: "hi"})
			if err != nil {
				t.Fatal(err)
			}

			start := make(chan struct{})
			var wg sync.WaitGroup
			errs := make(chan error, writers)
			for i := 0; i < writers; i++ {
				wg.Add(1)
				go func(u string) {
					defer wg.Done()
					<-start
					_, err := rec.ToggleLike(ctx, item.ID, u)
					errs <- err
				}(fmt.Sprintf("u%02d", i))
			}
			close(start)
			wg.Wait()
			close(errs)
			for err := range errs {
				if err != nil {
					t.Fatalf("concurrent like failed: %v", err)
				}
			}

			got, err := st.Get(ctx, item.ID)
			if err != nil {
				t.Fatal(err)
			}
			if got.Aggregate.TotalLikes != writers {
				t.Errorf("TotalLikes = %d, want %d", got.Aggregate.TotalLikes, writers)
			}
			members, err := st.ListMembers(ctx, item.ID, models.KindLike, models.Page{Limit: writers * 2})
			if err != nil || len(members) != writers {
				t.Errorf("like set = %d members, %v; want %d", len(members), err, writers)
			}
			if got.Version-item.Version != writers {
				t.Errorf("Version advanced by %d, want %d", got.Version-item.Version, writers)
			}
			t.Logf("%s: %d version conflicts retried", name, rs.conflicts.Load())
		})
	}
}

// conflictStore loses every version race.
type conflictStore struct {
	store.ContentStore
	mu    sync.Mutex
	calls int
}

func (c *conflictStore) ConditionalUpdate(context.Context, string, uint64, store.Mutator) (*models.ContentItem, error) {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
	return nil, store.ErrVersionConflict
}

func TestRecorder_WriteConflictAfterRetries(t *testing.T) {
	t.Parallel()
	mem := store.NewMemoryStore()
	cs := &conflictStore{ContentStore: mem}
	var sleeps []time.Duration
	rec := NewRecorder(cs, Options{
		MaxAttempts: 3,
		BaseBackoff: time.Millisecond,
		MaxBackoff:  10 * time.Millisecond,
		Now:         fixedClock,
		Sleep:       func(d time.Duration) { sleeps = append(sleeps, d) },
	})
	item, err := rec.CreateContent(context.Background(), CreateContentInput{OwnerID: "o", Type: "post", Body: "b"})
	if err != nil {
		t.Fatal(err)
	}

	_, err = rec.ToggleLike(context.Background(), item.ID, "u1")
	if !errors.Is(err, models.ErrWriteConflict) {
		t.Fatalf("err = %v, want ErrWriteConflict", err)
	}
	if cs.calls != 3 {
		t.Errorf("ConditionalUpdate called %d times, want 3", cs.calls)
	}
	if len(sleeps) != 2 {
		t.Errorf("backoff slept %d times, want 2", len(sleeps))
	}
	stored, _ := mem.Get(context.Background(), item.ID)
	if stored.Aggregate.TotalLikes != 0 || stored.Version != 0 {
		t.Errorf("failed write mutated the item: %+v", stored)
	}
}

func TestRecorder_CancelledBeforeDispatch(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	item := f.create(t, "owner", models.ContentTypePost, models.VisibilityPublic)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := f.rec.ToggleLike(ctx, item.ID, "u1")
	if !errors.Is(err, models.ErrCancelled) || !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want ErrCancelled wrapping context.Canceled", err)
	}
	if agg := f.aggregate(t, item.ID); agg.TotalLikes != 0 {
		t.Errorf("cancelled write applied: %+v", agg)
	}
}

func TestCreateContent_Validation(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name string
		in   CreateContentInput
	}{
		{"missing owner", CreateContentInput{Type: "post", Body: "x"}},
		{"bad type", CreateContentInput{OwnerID: "o", Type: "story", Body: "x"}},
		{"bad visibility", CreateContentInput{OwnerID: "o", Type: "post", Visibility: "friends", Body: "x"}},
		{"reel without media", CreateContentInput{OwnerID: "o", Type: "reel"}},
		{"empty post", CreateContentInput{OwnerID: "o", Type: "post", Body: "  "}},
	}
	for _, tt := range tests {
		if _, err := f.rec.CreateContent(ctx, tt.in); !models.IsValidationError(err) {
			t.Errorf("%s: err = %v, want ValidationError", tt.name, err)
		}
	}

	item := f.create(t, "o", models.ContentTypeReel, "")
	if item.Visibility != models.VisibilityPublic || item.Version != 0 || item.Aggregate.TotalViews != 0 {
		t.Errorf("new item = %+v", item)
	}
}

func TestDeleteContent(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	item := f.create(t, "owner", models.ContentTypePost, models.VisibilityPublic)
	f.rec.ToggleLike(ctx, item.ID, "u1")

	if err := f.rec.DeleteContent(ctx, item.ID, "u1"); !errors.Is(err, models.ErrUnauthorized) {
		t.Errorf("non-owner delete = %v, want ErrUnauthorized", err)
	}
	if err := f.rec.DeleteContent(ctx, item.ID, "owner"); err != nil {
		t.Fatalf("owner delete failed: %v", err)
	}
	if _, err := f.rec.GetContent(ctx, item.ID, "owner"); !errors.Is(err, models.ErrContentNotFound) {
		t.Errorf("get after delete = %v", err)
	}
	if err := f.rec.DeleteContent(ctx, item.ID, "owner"); !errors.Is(err, models.ErrContentNotFound) {
		t.Errorf("second delete = %v, want ErrContentNotFound", err)
	}
}

func TestRecorder_PublishesEvents(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	item := f.create(t, "owner", models.ContentTypeReel, models.VisibilityPublic)
	f.events.err = errors.New("broker down")

	f.rec.ToggleRepost(ctx, item.ID, "u1", "copy")
	if _, err := f.rec.RecordView(ctx, item.ID, "owner", ms(100)); err != nil {
		t.Fatalf("publish failure leaked into the write: %v", err)
	}

	got := f.events.all()
	if len(got) != 3 {
		t.Fatalf("published %d events, want 3", len(got))
	}
	if got[0].Kind != events.KindContent || got[0].Action != events.ActionCreated {
		t.Errorf("first event = %+v", got[0])
	}
	if got[1].Kind != models.KindRepost || got[1].Platform != models.PlatformCopy || got[1].Aggregate.TotalReposts != 1 {
		t.Errorf("repost event = %+v", got[1])
	}
	if got[2].Kind != models.KindView || got[2].Counted {
		t.Errorf("self view event = %+v", got[2])
	}
}
