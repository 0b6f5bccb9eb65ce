package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/IshaanNene/skoolstalk/internal/browser"
	"github.com/IshaanNene/skoolstalk/internal/config"
	"github.com/IshaanNene/skoolstalk/internal/parser"
	"github.com/IshaanNene/skoolstalk/internal/types"
)

// Engine runs one scrape: launch, login, navigate, paginate. It is serial by
// design — one page, one viewport, blocking waits — which is also what keeps
// the run under the platform's rate-limit radar.
type Engine struct {
	cfg    *config.Config
	logger *slog.Logger
	parser *parser.PostParser
	onPost func(types.PostRecord)
}

// New creates an Engine for one or more runs of the given configuration.
func New(cfg *config.Config, logger *slog.Logger) *Engine {
	return &Engine{
		cfg:    cfg,
		logger: logger.With("component", "engine"),
		parser: parser.New(logger),
	}
}

// OnPost registers a callback invoked once per first-seen record, in
// collection order, while pagination is still running.
func (e *Engine) OnPost(fn func(types.PostRecord)) {
	e.onPost = fn
}

// Run executes one full scrape and returns the ordered, deduplicated
// collection. On a mid-run navigation failure the records gathered before
// the failure are returned alongside the error, so the caller can still
// export them. The browser is torn down on every path out of this function.
func (e *Engine) Run(ctx context.Context) ([]types.PostRecord, *types.RunStats, error) {
	stats := types.NewRunStats()

	session := browser.New(e.logger,
		browser.WithUserAgent(e.cfg.Browser.UserAgent),
		browser.WithWindowSize(e.cfg.Browser.WindowSize),
		browser.WithChromePath(e.cfg.Browser.ChromePath),
		browser.WithStealth(e.cfg.Browser.Stealth),
		browser.WithCookieFile(e.cfg.Browser.CookieFile),
		browser.WithSlowMotion(e.cfg.Browser.SlowMotion),
		browser.WithSettle(e.cfg.Scroll.Settle),
	)

	if err := session.Start(e.cfg.Browser.Headless); err != nil {
		stats.Elapsed = time.Since(stats.StartTime)
		return nil, stats, err
	}
	defer func() {
		if err := session.Close(); err != nil {
			e.logger.Warn("browser close failed", "error", err)
		}
	}()

	if err := session.Login(ctx, e.cfg.Auth.LoginURL, e.cfg.Auth.Email, e.cfg.Auth.Password, e.cfg.Timeouts.Login); err != nil {
		stats.Elapsed = time.Since(stats.StartTime)
		return nil, stats, err
	}

	if err := session.Navigate(ctx, e.cfg.Target.CommunityURL, e.cfg.Timeouts.Navigation); err != nil {
		stats.Elapsed = time.Since(stats.StartTime)
		return nil, stats, err
	}

	col := NewCollector()
	err := e.paginate(ctx, session, col, stats)
	stats.Elapsed = time.Since(stats.StartTime)

	e.logger.Info("run finished", "stats", stats.Snapshot())
	return col.Records(), stats, err
}
