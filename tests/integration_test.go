package integration

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/IshaanNene/skoolstalk/internal/config"
	"github.com/IshaanNene/skoolstalk/internal/engine"
	"github.com/IshaanNene/skoolstalk/internal/preflight"
	"github.com/IshaanNene/skoolstalk/internal/storage"
	"github.com/IshaanNene/skoolstalk/internal/types"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

// liveConfig builds a config from the environment, skipping the test when
// the live credentials are not exported.
func liveConfig(t *testing.T) *config.Config {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping live test")
	}

	cfg := config.DefaultConfig()
	cfg.Auth.Email = os.Getenv("SKOOL_EMAIL")
	cfg.Auth.Password = os.Getenv("SKOOL_PASSWORD")
	cfg.Target.CommunityURL = os.Getenv("COMMUNITY_URL")
	if cfg.Auth.Email == "" || cfg.Auth.Password == "" || cfg.Target.CommunityURL == "" {
		t.Skip("SKOOL_EMAIL, SKOOL_PASSWORD, COMMUNITY_URL not set")
	}
	return cfg
}

// TestLivePreflight probes the real login page without a browser.
func TestLivePreflight(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping live test")
	}

	cfg := config.DefaultConfig()
	prober := preflight.New(cfg.Browser.UserAgent, 15*time.Second, testLogger)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	report, err := prober.CheckLogin(ctx, cfg.Auth.LoginURL)
	if err != nil {
		t.Fatalf("probe error: %v", err)
	}

	t.Logf("Status: %d", report.StatusCode)
	t.Logf("Final URL: %s", report.FinalURL)
	t.Logf("Form found: %v", report.LoginFormFound)

	if report.StatusCode != 200 {
		t.Errorf("expected 200, got %d", report.StatusCode)
	}
	if !report.LoginFormFound {
		t.Error("login form not found — the platform markup may have changed")
	}
}

// TestLiveScrape runs a small end-to-end scrape against a real community
// and exports the results.
func TestLiveScrape(t *testing.T) {
	cfg := liveConfig(t)
	cfg.Target.MaxPosts = 5
	cfg.Output.Dir = t.TempDir()
	cfg.Output.Basename = "live"

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	eng := engine.New(cfg, testLogger)
	records, stats, err := eng.Run(ctx)
	if err != nil {
		t.Fatalf("run error: %v", err)
	}

	t.Logf("Collected: %d", stats.PostsCollected)
	t.Logf("Passes: %d, stalls: %d", stats.ScrollPasses, stats.Stalls)
	t.Logf("Elapsed: %s", stats.Elapsed)

	if len(records) == 0 {
		t.Fatal("no posts collected from live community")
	}
	seen := make(map[string]bool)
	for _, r := range records {
		if r.ID == "" {
			t.Error("record with empty id")
		}
		if seen[r.ID] {
			t.Errorf("duplicate id %q", r.ID)
		}
		seen[r.ID] = true
		if r.Author == "" {
			t.Error("record with absent author")
		}
	}

	store, paths, err := storage.Open(&cfg.Output, testLogger)
	if err != nil {
		t.Fatalf("open storage: %v", err)
	}
	if err := store.Store(records); err != nil {
		t.Fatalf("store: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	for _, p := range paths {
		if _, err := os.Stat(filepath.Clean(p)); err != nil {
			t.Errorf("output %s missing: %v", p, err)
		}
	}
}

// TestLiveBadCredentials verifies the auth failure contract against the
// real login form, including browser teardown.
func TestLiveBadCredentials(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping live test")
	}
	if os.Getenv("SKOOLSTALK_LIVE_AUTH_TEST") == "" {
		t.Skip("SKOOLSTALK_LIVE_AUTH_TEST not set (repeated failures can trip rate limits)")
	}

	cfg := config.DefaultConfig()
	cfg.Auth.Email = "user@example.com"
	cfg.Auth.Password = "wrong-password"
	cfg.Target.CommunityURL = "https://www.skool.com/some-community"
	cfg.Timeouts.Login = 20 * time.Second

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	eng := engine.New(cfg, testLogger)
	_, _, err := eng.Run(ctx)
	var authErr *types.AuthError
	if !errors.As(err, &authErr) {
		t.Fatalf("err = %v, want AuthError", err)
	}
	t.Logf("auth error as expected: %v", err)
}
