package engine

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/IshaanNene/skoolstalk/internal/types"
)

// PageDriver is the narrow browser surface pagination needs. browser.Session
// implements it; tests drive pagination with a scripted fake.
type PageDriver interface {
	ContentHeight() (int, error)
	ScrollToBottom() error
	HTML() (string, error)
	CurrentURL() string
}

// paginate reveals the feed pass by pass until end of feed, the max_posts
// cap, or cancellation. Each pass scrolls to the bottom and polls for the
// content height to grow; stallLimit consecutive passes without growth is
// the end-of-feed signal, not an error. Driver failures mid-run mean the
// session is gone and surface as NavigationError, leaving everything already
// collected intact.
func (e *Engine) paginate(ctx context.Context, drv PageDriver, col *Collector, stats *types.RunStats) error {
	// Posts above the fold are visible before any scrolling.
	if err := e.parsePass(drv, col, stats); err != nil {
		return err
	}

	stalls := 0
	for {
		if err := ctx.Err(); err != nil {
			e.logger.Info("run cancelled", "collected", col.Len())
			return nil
		}
		if e.capReached(col) {
			e.logger.Info("max_posts cap reached", "collected", col.Len())
			return nil
		}
		if stalls >= e.cfg.Scroll.StallLimit {
			e.logger.Info("end of feed", "stalls", stalls, "collected", col.Len())
			return nil
		}

		before, err := drv.ContentHeight()
		if err != nil {
			return &types.NavigationError{URL: drv.CurrentURL(), Err: err}
		}
		if err := drv.ScrollToBottom(); err != nil {
			return &types.NavigationError{URL: drv.CurrentURL(), Err: err}
		}
		stats.ScrollPasses++

		grew, err := e.awaitGrowth(ctx, drv, before)
		if err != nil {
			return &types.NavigationError{URL: drv.CurrentURL(), Err: err}
		}
		if !grew {
			stalls++
			stats.Stalls++
			e.logger.Debug("feed did not extend", "stalls", stalls, "height", before)
			continue
		}

		stalls = 0
		if err := e.parsePass(drv, col, stats); err != nil {
			return err
		}
		e.logger.Debug("scroll pass complete", "pass", stats.ScrollPasses, "collected", col.Len())
	}
}

// awaitGrowth polls the content height until it exceeds before, backing off
// exponentially between reads. Running out the ceiling is a stall (false,
// nil); only driver failures and cancellation are errors.
func (e *Engine) awaitGrowth(ctx context.Context, drv PageDriver, before int) (bool, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = e.cfg.Scroll.PollStart
	b.MaxInterval = e.cfg.Scroll.PollCap
	b.MaxElapsedTime = e.cfg.Scroll.MaxWait

	err := backoff.Retry(func() error {
		h, err := drv.ContentHeight()
		if err != nil {
			return backoff.Permanent(err)
		}
		if h > before {
			return nil
		}
		return types.ErrEndOfFeed
	}, backoff.WithContext(b, ctx))

	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, types.ErrEndOfFeed):
		return false, nil
	case ctx.Err() != nil:
		// Cancellation is handled at the loop boundary, not as session loss.
		return false, nil
	default:
		return false, err
	}
}

// parsePass snapshots the page and offers every visible post. The snapshot
// deliberately includes posts from earlier passes; the collector filters the
// repeats. Posts without any identity are counted and dropped, never fatal.
func (e *Engine) parsePass(drv PageDriver, col *Collector, stats *types.RunStats) error {
	html, err := drv.HTML()
	if err != nil {
		return &types.NavigationError{URL: drv.CurrentURL(), Err: err}
	}

	records, skipped, err := e.parser.Parse(html, drv.CurrentURL(), time.Now())
	if err != nil {
		// A snapshot goquery cannot read is a bad pass, not a dead session.
		e.logger.Warn("unreadable page snapshot, skipping pass", "error", err)
		return nil
	}
	stats.PostsSkipped += skipped

	for _, rec := range records {
		if e.capReached(col) {
			break
		}
		if !col.Offer(rec) {
			stats.PostsDuplicate++
			continue
		}
		stats.PostsCollected++
		if !rec.TimestampParsed {
			stats.TimestampFailures++
		}
		if e.onPost != nil {
			e.onPost(rec)
		}
	}
	return nil
}

func (e *Engine) capReached(col *Collector) bool {
	return e.cfg.Target.MaxPosts > 0 && col.Len() >= e.cfg.Target.MaxPosts
}
