package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/IshaanNene/skoolstalk/internal/config"
	"github.com/IshaanNene/skoolstalk/internal/types"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

// testConfig keeps the scroll polling tight so stall detection is fast.
func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Target.MaxPosts = 0
	cfg.Scroll.StallLimit = 3
	cfg.Scroll.PollStart = time.Millisecond
	cfg.Scroll.PollCap = 2 * time.Millisecond
	cfg.Scroll.MaxWait = 20 * time.Millisecond
	return cfg
}

// feedPage renders a snapshot containing one post element per id, in order.
// Scroll pagination shows a superset each pass, so later pages repeat the
// ids of earlier ones.
func feedPage(ids ...string) string {
	var b strings.Builder
	b.WriteString("<html><body>")
	for i, id := range ids {
		fmt.Fprintf(&b, `<div class="post" data-post-id=%q>
			<h2 class="post-title">Post %s</h2>
			<div class="post-content">Body of %s</div>
			<span class="author-name">Author %d</span>
			<a href="https://www.skool.com/c/%s">link</a>
		</div>`, id, id, id, i, id)
	}
	b.WriteString("</body></html>")
	return b.String()
}

// fakeFeed scripts an infinite-scroll feed: each scroll reveals the next
// page until the script runs out, after which the height stops growing.
type fakeFeed struct {
	pages   []string
	idx     int
	scrolls int

	heightErr error
	htmlErr   error
}

func (f *fakeFeed) ContentHeight() (int, error) {
	if f.heightErr != nil {
		return 0, f.heightErr
	}
	return (f.idx + 1) * 1000, nil
}

func (f *fakeFeed) ScrollToBottom() error {
	f.scrolls++
	if f.idx < len(f.pages)-1 {
		f.idx++
	}
	return nil
}

func (f *fakeFeed) HTML() (string, error) {
	if f.htmlErr != nil {
		return "", f.htmlErr
	}
	return f.pages[f.idx], nil
}

func (f *fakeFeed) CurrentURL() string { return "https://www.skool.com/test-community" }

func runPagination(t *testing.T, cfg *config.Config, feed *fakeFeed) (*Collector, *types.RunStats, error) {
	t.Helper()
	e := New(cfg, testLogger)
	col := NewCollector()
	stats := types.NewRunStats()
	err := e.paginate(context.Background(), feed, col, stats)
	return col, stats, err
}

func TestPaginateCollectsAcrossPasses(t *testing.T) {
	// Three passes over five distinct posts, with every pass re-rendering
	// everything already seen.
	feed := &fakeFeed{pages: []string{
		feedPage("p1", "p2"),
		feedPage("p1", "p2", "p3", "p4"),
		feedPage("p1", "p2", "p3", "p4", "p5"),
	}}

	col, stats, err := runPagination(t, testConfig(), feed)
	if err != nil {
		t.Fatalf("paginate error: %v", err)
	}

	records := col.Records()
	if len(records) != 5 {
		t.Fatalf("collected %d records, want 5", len(records))
	}
	for i, want := range []string{"p1", "p2", "p3", "p4", "p5"} {
		if records[i].ID != want {
			t.Errorf("records[%d].ID = %q, want %q (first-seen order)", i, records[i].ID, want)
		}
	}

	if stats.PostsCollected != 5 {
		t.Errorf("PostsCollected = %d, want 5", stats.PostsCollected)
	}
	// Pass 2 re-offers p1..p2, pass 3 re-offers p1..p4.
	if stats.PostsDuplicate != 6 {
		t.Errorf("PostsDuplicate = %d, want 6", stats.PostsDuplicate)
	}
}

func TestPaginateUniqueIDs(t *testing.T) {
	feed := &fakeFeed{pages: []string{
		feedPage("a", "b", "a"),
		feedPage("a", "b", "a", "c", "b"),
	}}

	col, _, err := runPagination(t, testConfig(), feed)
	if err != nil {
		t.Fatalf("paginate error: %v", err)
	}

	seen := make(map[string]bool)
	for _, r := range col.Records() {
		if seen[r.ID] {
			t.Errorf("id %q emitted more than once", r.ID)
		}
		seen[r.ID] = true
	}
	if len(seen) != 3 {
		t.Errorf("got %d distinct ids, want 3", len(seen))
	}
}

func TestPaginateEndOfFeedAfterStallLimit(t *testing.T) {
	cfg := testConfig()
	cfg.Target.MaxPosts = 100 // far above what the feed holds

	feed := &fakeFeed{pages: []string{feedPage("only")}}

	col, stats, err := runPagination(t, cfg, feed)
	if err != nil {
		t.Fatalf("paginate error: %v", err)
	}
	if col.Len() != 1 {
		t.Errorf("collected %d, want 1", col.Len())
	}
	if stats.Stalls != cfg.Scroll.StallLimit {
		t.Errorf("Stalls = %d, want %d (end-of-feed short-circuit)", stats.Stalls, cfg.Scroll.StallLimit)
	}
}

func TestPaginateMaxPostsCap(t *testing.T) {
	cfg := testConfig()
	cfg.Target.MaxPosts = 3

	feed := &fakeFeed{pages: []string{
		feedPage("p1", "p2"),
		feedPage("p1", "p2", "p3", "p4", "p5"),
	}}

	col, _, err := runPagination(t, cfg, feed)
	if err != nil {
		t.Fatalf("paginate error: %v", err)
	}
	if col.Len() != 3 {
		t.Errorf("collected %d, want cap of 3", col.Len())
	}
}

func TestPaginateSkipsIdentitylessPost(t *testing.T) {
	// One post carries neither an id attribute nor a link; its siblings in
	// the same pass must survive.
	page := `<html><body>
		<div class="post" data-post-id="ok-1"><p>first</p><a href="https://s.com/1">x</a></div>
		<div class="post"><p>no identity at all</p></div>
		<div class="post" data-post-id="ok-2"><p>second</p><a href="https://s.com/2">x</a></div>
	</body></html>`
	feed := &fakeFeed{pages: []string{page}}

	col, stats, err := runPagination(t, testConfig(), feed)
	if err != nil {
		t.Fatalf("paginate error: %v", err)
	}
	if col.Len() != 2 {
		t.Fatalf("collected %d, want 2", col.Len())
	}
	if stats.PostsSkipped == 0 {
		t.Error("PostsSkipped not counted for the identity-less post")
	}
	if col.Records()[0].ID != "ok-1" || col.Records()[1].ID != "ok-2" {
		t.Errorf("sibling posts lost: %+v", col.Records())
	}
}

func TestPaginateSessionLossIsFatal(t *testing.T) {
	feed := &fakeFeed{
		pages:     []string{feedPage("p1")},
		heightErr: errors.New("connection lost"),
	}

	_, _, err := runPagination(t, testConfig(), feed)
	var navErr *types.NavigationError
	if !errors.As(err, &navErr) {
		t.Fatalf("err = %v, want NavigationError", err)
	}
}

func TestPaginateKeepsRecordsOnMidRunFailure(t *testing.T) {
	// The first pass parses fine; the HTML read after the next scroll fails.
	feed := &fakeFeed{pages: []string{feedPage("p1", "p2"), feedPage("p1", "p2", "p3")}}

	e := New(testConfig(), testLogger)
	col := NewCollector()
	stats := types.NewRunStats()

	// Arm the failure after the initial pass has run.
	if err := e.parsePass(feed, col, stats); err != nil {
		t.Fatalf("initial pass: %v", err)
	}
	feed.htmlErr = errors.New("target crashed")
	err := e.paginate(context.Background(), feed, col, stats)

	if !types.IsFatal(err) {
		t.Fatalf("err = %v, want fatal NavigationError", err)
	}
	if col.Len() == 0 {
		t.Error("records collected before the failure were lost")
	}
}

func TestPaginateCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	feed := &fakeFeed{pages: []string{feedPage("p1"), feedPage("p1", "p2")}}
	e := New(testConfig(), testLogger)
	col := NewCollector()

	err := e.paginate(ctx, feed, col, types.NewRunStats())
	if err != nil {
		t.Fatalf("cancellation must not be an error, got %v", err)
	}
	// The pre-cancel snapshot is still collected and exportable.
	if col.Len() != 1 {
		t.Errorf("collected %d, want the initial pass only", col.Len())
	}
}

func TestPaginateStreamsFirstSeenRecords(t *testing.T) {
	feed := &fakeFeed{pages: []string{
		feedPage("p1", "p2"),
		feedPage("p1", "p2", "p3"),
	}}

	e := New(testConfig(), testLogger)
	var streamed []string
	e.OnPost(func(rec types.PostRecord) { streamed = append(streamed, rec.ID) })

	col := NewCollector()
	if err := e.paginate(context.Background(), feed, col, types.NewRunStats()); err != nil {
		t.Fatalf("paginate error: %v", err)
	}

	want := []string{"p1", "p2", "p3"}
	if len(streamed) != len(want) {
		t.Fatalf("streamed %v, want %v", streamed, want)
	}
	for i := range want {
		if streamed[i] != want[i] {
			t.Errorf("streamed[%d] = %q, want %q", i, streamed[i], want[i])
		}
	}
}

// --- Collector ---

func TestCollectorOffer(t *testing.T) {
	col := NewCollector()

	a := types.PostRecord{ID: "a", URL: "https://s.com/a"}
	b := types.PostRecord{ID: "b", URL: "https://s.com/b"}

	if !col.Offer(a) {
		t.Error("first offer of a must be accepted")
	}
	if col.Offer(a) {
		t.Error("second offer of a must be rejected")
	}
	if !col.Offer(b) {
		t.Error("first offer of b must be accepted")
	}
	if col.Len() != 2 {
		t.Errorf("Len = %d, want 2", col.Len())
	}
}

func TestCollectorSecondaryURLKey(t *testing.T) {
	col := NewCollector()

	col.Offer(types.PostRecord{ID: "render-1", URL: "https://s.com/post"})

	// Re-render flapped the id but the permalink is the same post.
	if col.Offer(types.PostRecord{ID: "render-2", URL: "https://s.com/post"}) {
		t.Error("same url must be rejected even under a new id")
	}
	if col.Len() != 1 {
		t.Errorf("Len = %d, want 1", col.Len())
	}
}

func TestCollectorEmptyURLNotAKey(t *testing.T) {
	col := NewCollector()

	col.Offer(types.PostRecord{ID: "a"})
	if !col.Offer(types.PostRecord{ID: "b"}) {
		t.Error("records without urls must dedup on id alone")
	}
}
