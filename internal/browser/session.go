package browser

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"github.com/IshaanNene/skoolstalk/internal/types"
)

// loginRoute is the path fragment that marks the platform's login page.
// Being on it after a navigation means the session is not authenticated.
const loginRoute = "/login"

// feedMarker matches any element that only renders on a community feed.
// It doubles as the readiness signal after navigating to the community.
const feedMarker = "[data-testid='post'], .post, .feed-item"

// Session owns one automated browser and one authenticated page. It is the
// single shared resource of a run and must be closed on every exit path.
type Session struct {
	browser  *rod.Browser
	page     *rod.Page
	launcher *launcher.Launcher
	logger   *slog.Logger

	userAgent  string
	windowSize string
	chromePath string
	stealth    bool
	cookieFile string
	slowMotion time.Duration
	settle     time.Duration
}

// Option configures a Session before Start.
type Option func(*Session)

// WithUserAgent overrides the browser's User-Agent string.
func WithUserAgent(ua string) Option {
	return func(s *Session) { s.userAgent = ua }
}

// WithWindowSize sets the window size as "width,height".
func WithWindowSize(size string) Option {
	return func(s *Session) { s.windowSize = size }
}

// WithChromePath points the launcher at a specific browser binary.
func WithChromePath(path string) Option {
	return func(s *Session) { s.chromePath = path }
}

// WithStealth toggles the stealth page patches.
func WithStealth(enabled bool) Option {
	return func(s *Session) { s.stealth = enabled }
}

// WithCookieFile persists session cookies across runs, skipping login when
// the saved session is still valid.
func WithCookieFile(path string) Option {
	return func(s *Session) { s.cookieFile = path }
}

// WithSlowMotion inserts a delay before each browser action.
func WithSlowMotion(d time.Duration) Option {
	return func(s *Session) { s.slowMotion = d }
}

// WithSettle sets the quiet window used to decide a page finished rendering.
func WithSettle(d time.Duration) Option {
	return func(s *Session) { s.settle = d }
}

// New creates an unstarted Session.
func New(logger *slog.Logger, opts ...Option) *Session {
	s := &Session{
		logger:     logger.With("component", "browser"),
		windowSize: "1920,1080",
		stealth:    true,
		settle:     300 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start launches the browser and opens the run's single page. Any failure is
// a LaunchError; there is no recovery within the run.
func (s *Session) Start(headless bool) error {
	l := launcher.New().
		Headless(headless).
		Set("no-sandbox").
		Set("disable-dev-shm-usage").
		Set("disable-gpu").
		Set("disable-blink-features", "AutomationControlled").
		Set("window-size", s.windowSize)
	if s.chromePath != "" {
		l = l.Bin(s.chromePath)
	}

	controlURL, err := l.Launch()
	if err != nil {
		return &types.LaunchError{Err: fmt.Errorf("launch browser: %w", err)}
	}
	s.launcher = l

	browser := rod.New().ControlURL(controlURL)
	if s.slowMotion > 0 {
		browser = browser.SlowMotion(s.slowMotion)
	}
	if err := browser.Connect(); err != nil {
		l.Kill()
		return &types.LaunchError{Err: fmt.Errorf("connect browser: %w", err)}
	}
	s.browser = browser

	var page *rod.Page
	if s.stealth {
		page, err = stealth.Page(browser)
	} else {
		page, err = browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	}
	if err != nil {
		_ = browser.Close()
		l.Kill()
		return &types.LaunchError{Err: fmt.Errorf("open page: %w", err)}
	}
	s.page = page

	if s.userAgent != "" {
		err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: s.userAgent})
		if err != nil {
			s.logger.Warn("failed to set user agent", "error", err)
		}
	}

	if s.cookieFile != "" {
		if err := s.loadCookies(); err != nil {
			s.logger.Warn("saved session not restored", "path", s.cookieFile, "error", err)
		}
	}

	s.logger.Info("browser ready", "headless", headless, "stealth", s.stealth)
	return nil
}

// Login authenticates the session. When a restored cookie session is still
// valid the platform redirects off the login route immediately and the form
// is never filled. Failures are AuthError: the form never appeared, or the
// page is still on the login route when the timeout runs out.
func (s *Session) Login(ctx context.Context, loginURL, email, password string, timeout time.Duration) error {
	if err := s.page.Timeout(timeout).Navigate(loginURL); err != nil {
		return &types.AuthError{URL: loginURL, Err: fmt.Errorf("open login page: %w", err)}
	}
	if err := s.page.Timeout(timeout).WaitStable(s.settle); err != nil {
		s.logger.Warn("login page stability timeout, continuing", "error", err)
	}

	if !s.onLoginRoute() {
		s.logger.Info("existing session still valid, skipping login form")
		return nil
	}

	emailField, err := s.page.Timeout(timeout).Element(`input[name="email"]`)
	if err != nil {
		return &types.AuthError{URL: loginURL, Err: types.ErrLoginFormNotFound}
	}
	passwordField, err := s.page.Timeout(timeout).Element(`input[name="password"]`)
	if err != nil {
		return &types.AuthError{URL: loginURL, Err: types.ErrLoginFormNotFound}
	}

	if err := fill(emailField, email); err != nil {
		return &types.AuthError{URL: loginURL, Err: fmt.Errorf("fill email: %w", err)}
	}
	if err := fill(passwordField, password); err != nil {
		return &types.AuthError{URL: loginURL, Err: fmt.Errorf("fill password: %w", err)}
	}

	submit, err := s.page.Timeout(timeout).Element(`button[type="submit"]`)
	if err != nil {
		return &types.AuthError{URL: loginURL, Err: types.ErrLoginFormNotFound}
	}
	if err := submit.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return &types.AuthError{URL: loginURL, Err: fmt.Errorf("submit login: %w", err)}
	}

	// Success means landing on /dashboard or /community, or any redirect off
	// the login route. Still being there at the deadline means rejection.
	if err := s.awaitLogin(ctx, timeout); err != nil {
		return &types.AuthError{URL: loginURL, Err: err}
	}

	s.logger.Info("logged in", "url", s.CurrentURL())

	if s.cookieFile != "" {
		if err := s.saveCookies(); err != nil {
			s.logger.Warn("session not saved", "path", s.cookieFile, "error", err)
		}
	}
	return nil
}

// awaitLogin polls the page URL until it leaves the login route.
func (s *Session) awaitLogin(ctx context.Context, timeout time.Duration) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 200 * time.Millisecond
	b.MaxInterval = 2 * time.Second
	b.MaxElapsedTime = timeout

	err := backoff.Retry(func() error {
		u := s.CurrentURL()
		if strings.Contains(u, "/dashboard") || strings.Contains(u, "/community") {
			return nil
		}
		if !s.onLoginRoute() {
			return nil
		}
		return types.ErrCredentialsRejected
	}, backoff.WithContext(b, ctx))
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return types.ErrCredentialsRejected
	}
	return nil
}

// Navigate opens a target URL and waits for the feed to render. Ending up on
// the login route means the session was invalidated; both that and a page
// that never settles are NavigationError.
func (s *Session) Navigate(ctx context.Context, url string, timeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		return &types.NavigationError{URL: url, Err: err}
	}

	if err := s.page.Timeout(timeout).Navigate(url); err != nil {
		return &types.NavigationError{URL: url, Err: err}
	}
	if err := s.page.Timeout(timeout).WaitStable(s.settle); err != nil {
		s.logger.Warn("page stability timeout, continuing", "url", url, "error", err)
	}

	if s.onLoginRoute() {
		return &types.NavigationError{URL: url, Err: types.ErrSessionExpired}
	}

	if _, err := s.page.Timeout(timeout).Element(feedMarker); err != nil {
		return &types.NavigationError{URL: url, Err: fmt.Errorf("feed did not render: %w", err)}
	}

	s.logger.Info("community loaded", "url", s.CurrentURL())
	return nil
}

// HTML returns the current full-page markup.
func (s *Session) HTML() (string, error) {
	return s.page.HTML()
}

// ContentHeight returns document.body.scrollHeight.
func (s *Session) ContentHeight() (int, error) {
	obj, err := s.page.Eval(`() => document.body.scrollHeight`)
	if err != nil {
		return 0, err
	}
	return obj.Value.Int(), nil
}

// ScrollToBottom jumps the viewport to the bottom of the page.
func (s *Session) ScrollToBottom() error {
	_, err := s.page.Eval(`() => window.scrollTo(0, document.body.scrollHeight)`)
	return err
}

// CurrentURL returns the page's URL after any redirects.
func (s *Session) CurrentURL() string {
	info, err := s.page.Info()
	if err != nil || info == nil {
		return ""
	}
	return info.URL
}

// Close releases the browser. Safe to call in any state and more than once.
func (s *Session) Close() error {
	var err error
	if s.page != nil {
		_ = s.page.Close()
		s.page = nil
	}
	if s.browser != nil {
		err = s.browser.Close()
		s.browser = nil
	}
	if s.launcher != nil {
		s.launcher.Kill()
		s.launcher = nil
	}
	s.logger.Debug("browser closed")
	return err
}

func (s *Session) onLoginRoute() bool {
	return strings.Contains(s.CurrentURL(), loginRoute)
}

// fill replaces an input's value, clearing whatever autofill left behind.
func fill(el *rod.Element, value string) error {
	if err := el.SelectAllText(); err != nil {
		return err
	}
	return el.Input(value)
}
