// Package skoolstalk provides a public SDK for embedding the scraper as a
// library.
//
// Example usage:
//
//	client := skoolstalk.New(
//	    skoolstalk.WithCredentials(os.Getenv("SKOOL_EMAIL"), os.Getenv("SKOOL_PASSWORD")),
//	    skoolstalk.WithCommunityURL("https://www.skool.com/my-community"),
//	    skoolstalk.WithMaxPosts(100),
//	)
//
//	client.OnPost(func(p skoolstalk.Post) {
//	    fmt.Println(p.Title, "by", p.Author)
//	})
//
//	posts, stats, err := client.Run(context.Background())
package skoolstalk

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/IshaanNene/skoolstalk/internal/config"
	"github.com/IshaanNene/skoolstalk/internal/engine"
	"github.com/IshaanNene/skoolstalk/internal/types"
)

// Post is one extracted community post.
type Post = types.PostRecord

// Stats summarizes what happened during a run.
type Stats = types.RunStats

// Client is the high-level API for running scrapes from Go code.
type Client struct {
	cfg    *config.Config
	logger *slog.Logger
	onPost func(Post)
}

// Option configures a Client.
type Option func(*Client)

// WithCredentials sets the account email and password.
func WithCredentials(email, password string) Option {
	return func(c *Client) {
		c.cfg.Auth.Email = email
		c.cfg.Auth.Password = password
	}
}

// WithCommunityURL sets the community feed to scrape.
func WithCommunityURL(url string) Option {
	return func(c *Client) { c.cfg.Target.CommunityURL = url }
}

// WithHeadless toggles the browser window.
func WithHeadless(headless bool) Option {
	return func(c *Client) { c.cfg.Browser.Headless = headless }
}

// WithMaxPosts caps the collection; 0 means collect until end of feed.
func WithMaxPosts(n int) Option {
	return func(c *Client) { c.cfg.Target.MaxPosts = n }
}

// WithTimeouts overrides the login and navigation timeouts.
func WithTimeouts(login, navigation time.Duration) Option {
	return func(c *Client) {
		c.cfg.Timeouts.Login = login
		c.cfg.Timeouts.Navigation = navigation
	}
}

// WithStallLimit sets how many no-growth scrolls mean end of feed.
func WithStallLimit(n int) Option {
	return func(c *Client) { c.cfg.Scroll.StallLimit = n }
}

// WithCookieFile persists the session across runs.
func WithCookieFile(path string) Option {
	return func(c *Client) { c.cfg.Browser.CookieFile = path }
}

// WithUserAgent overrides the browser User-Agent.
func WithUserAgent(ua string) Option {
	return func(c *Client) { c.cfg.Browser.UserAgent = ua }
}

// WithLogger replaces the default stderr logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithVerbose enables debug-level logging on the default logger.
func WithVerbose() Option {
	return func(c *Client) { c.cfg.Logging.Level = "debug" }
}

// New creates a Client with the given options.
func New(opts ...Option) *Client {
	c := &Client{cfg: config.DefaultConfig()}
	for _, opt := range opts {
		opt(c)
	}

	if c.logger == nil {
		level := slog.LevelInfo
		if c.cfg.Logging.Level == "debug" {
			level = slog.LevelDebug
		}
		c.logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	}
	return c
}

// OnPost registers a callback invoked once per first-seen post, in
// collection order, while the scrape is still running.
func (c *Client) OnPost(fn func(Post)) {
	c.onPost = fn
}

// Run executes one scrape and returns the ordered, deduplicated posts.
// Cancelling the context stops pagination and tears the browser down; the
// posts collected up to that point are still returned.
func (c *Client) Run(ctx context.Context) ([]Post, *Stats, error) {
	if err := config.Validate(c.cfg); err != nil {
		return nil, nil, err
	}

	eng := engine.New(c.cfg, c.logger)
	if c.onPost != nil {
		eng.OnPost(c.onPost)
	}
	return eng.Run(ctx)
}
