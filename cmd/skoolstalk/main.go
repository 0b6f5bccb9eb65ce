package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/IshaanNene/skoolstalk/internal/config"
	"github.com/IshaanNene/skoolstalk/internal/engine"
	"github.com/IshaanNene/skoolstalk/internal/preflight"
	"github.com/IshaanNene/skoolstalk/internal/storage"
	"github.com/IshaanNene/skoolstalk/internal/types"
)

var (
	cfgFile      string
	verbose      bool
	email        string
	password     string
	communityURL string
	headless     bool
	maxPosts     int
	outputDir    string
	formats      []string
	basename     string
	cookieFile   string
	stallLimit   int
	maxWait      time.Duration
	loginTimeout time.Duration
	navTimeout   time.Duration
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "skoolstalk [community-url]",
		Short: "skoolstalk — extract posts from a Skool community",
		Long: `skoolstalk logs into Skool with an automated browser, scrolls the
community feed to the end, and exports every post as JSON and CSV.

Credentials and target come from flags, a config file, or environment
variables (SKOOL_EMAIL, SKOOL_PASSWORD, COMMUNITY_URL).`,
		Args: cobra.MaximumNArgs(1),
		RunE: runScrape,
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.Flags().StringVar(&email, "email", "", "Skool account email")
	rootCmd.Flags().StringVar(&password, "password", "", "Skool account password")
	rootCmd.Flags().StringVar(&communityURL, "community-url", "", "community feed URL (or first argument)")
	rootCmd.Flags().BoolVar(&headless, "headless", true, "run the browser without a window")
	rootCmd.Flags().IntVarP(&maxPosts, "max-posts", "m", 0, "stop after this many posts (0 = config default)")
	rootCmd.Flags().StringVarP(&outputDir, "output", "o", "", "output directory")
	rootCmd.Flags().StringSliceVarP(&formats, "format", "f", nil, "output formats: json, csv, mongodb")
	rootCmd.Flags().StringVar(&basename, "basename", "", "output file basename (default: timestamped)")
	rootCmd.Flags().StringVar(&cookieFile, "cookie-file", "", "persist the session to this file")
	rootCmd.Flags().IntVar(&stallLimit, "stall-limit", 0, "consecutive no-growth scrolls that mean end of feed")
	rootCmd.Flags().DurationVar(&maxWait, "max-wait", 0, "ceiling for each scroll-growth poll")
	rootCmd.Flags().DurationVar(&loginTimeout, "login-timeout", 0, "login timeout")
	rootCmd.Flags().DurationVar(&navTimeout, "nav-timeout", 0, "navigation timeout")

	rootCmd.AddCommand(checkCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// runScrape executes one full scrape and exports the results.
func runScrape(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	applyCLIOverrides(cmd, cfg, args)

	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logger := setupLogger(&cfg.Logging)

	logger.Info("starting scrape",
		"community", cfg.Target.CommunityURL,
		"max_posts", cfg.Target.MaxPosts,
		"headless", cfg.Browser.Headless,
		"formats", cfg.Output.Formats,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	eng := engine.New(cfg, logger)
	records, stats, runErr := eng.Run(ctx)

	if runErr != nil {
		var navErr *types.NavigationError
		if errors.As(runErr, &navErr) && cfg.Output.ExportPartial && len(records) > 0 {
			// Session died mid-feed: keep what was collected rather than
			// losing the whole run.
			logger.Error("session lost mid-run, exporting partial results", "error", runErr, "collected", len(records))
			if exportErr := export(cfg, logger, records, stats); exportErr != nil {
				return exportErr
			}
			return runErr
		}
		return runErr
	}

	return export(cfg, logger, records, stats)
}

// export writes the collection through the configured backends and prints
// the run summary.
func export(cfg *config.Config, logger *slog.Logger, records []types.PostRecord, stats *types.RunStats) error {
	store, paths, err := storage.Open(&cfg.Output, logger)
	if err != nil {
		return err
	}
	if err := store.Store(records); err != nil {
		_ = store.Close()
		return err
	}
	if err := store.Close(); err != nil {
		return err
	}

	fmt.Printf("\nScraping Summary\n")
	fmt.Printf("   Posts:      %d collected, %d duplicates filtered, %d skipped\n",
		stats.PostsCollected, stats.PostsDuplicate, stats.PostsSkipped)
	fmt.Printf("   Scrolling:  %d passes, %d stalls\n", stats.ScrollPasses, stats.Stalls)
	if stats.TimestampFailures > 0 {
		fmt.Printf("   Timestamps: %d kept raw (unparseable)\n", stats.TimestampFailures)
	}
	fmt.Printf("   Elapsed:    %s\n", stats.Elapsed.Round(time.Millisecond))
	for _, p := range paths {
		fmt.Printf("   Output:     %s\n", p)
	}
	return nil
}

// checkCmd creates the "check" subcommand: probe the platform over plain
// HTTP without launching a browser.
func checkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check [community-url]",
		Short: "Probe login page and community reachability without a browser",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if len(args) > 0 {
				cfg.Target.CommunityURL = args[0]
			}

			logger := setupLogger(&cfg.Logging)
			prober := preflight.New(cfg.Browser.UserAgent, cfg.Timeouts.Navigation, logger)

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			login, err := prober.CheckLogin(ctx, cfg.Auth.LoginURL)
			if err != nil {
				return fmt.Errorf("login page check: %w", err)
			}
			fmt.Printf("Login page:  HTTP %d in %s\n", login.StatusCode, login.Duration.Round(time.Millisecond))
			if login.LoginFormFound {
				fmt.Println("             credential form found")
			} else {
				fmt.Println("             credential form NOT found — selectors may have drifted")
			}

			if cfg.Target.CommunityURL == "" {
				fmt.Println("Community:   skipped (no community URL configured)")
				return nil
			}
			community, err := prober.CheckCommunity(ctx, cfg.Target.CommunityURL)
			if err != nil {
				return fmt.Errorf("community check: %w", err)
			}
			fmt.Printf("Community:   HTTP %d in %s\n", community.StatusCode, community.Duration.Round(time.Millisecond))
			if community.FinalURL != community.URL {
				fmt.Printf("             redirected to %s\n", community.FinalURL)
			}
			return nil
		},
	}
}

// configCmd creates the "config" subcommand for inspecting configuration.
func configCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			fmt.Printf("Auth:\n")
			fmt.Printf("  Email:           %s\n", cfg.Auth.Email)
			fmt.Printf("  Password:        %s\n", redact(cfg.Auth.Password))
			fmt.Printf("  Login URL:       %s\n", cfg.Auth.LoginURL)
			fmt.Printf("\nTarget:\n")
			fmt.Printf("  Community URL:   %s\n", cfg.Target.CommunityURL)
			fmt.Printf("  Max Posts:       %d\n", cfg.Target.MaxPosts)
			fmt.Printf("\nBrowser:\n")
			fmt.Printf("  Headless:        %v\n", cfg.Browser.Headless)
			fmt.Printf("  Window Size:     %s\n", cfg.Browser.WindowSize)
			fmt.Printf("  Stealth:         %v\n", cfg.Browser.Stealth)
			fmt.Printf("  Cookie File:     %s\n", cfg.Browser.CookieFile)
			fmt.Printf("\nScroll:\n")
			fmt.Printf("  Stall Limit:     %d\n", cfg.Scroll.StallLimit)
			fmt.Printf("  Poll:            %s start, %s cap, %s ceiling\n",
				cfg.Scroll.PollStart, cfg.Scroll.PollCap, cfg.Scroll.MaxWait)
			fmt.Printf("\nTimeouts:\n")
			fmt.Printf("  Login:           %s\n", cfg.Timeouts.Login)
			fmt.Printf("  Navigation:      %s\n", cfg.Timeouts.Navigation)
			fmt.Printf("\nOutput:\n")
			fmt.Printf("  Directory:       %s\n", cfg.Output.Dir)
			fmt.Printf("  Formats:         %s\n", strings.Join(cfg.Output.Formats, ", "))
			fmt.Printf("  Export Partial:  %v\n", cfg.Output.ExportPartial)
			return nil
		},
	}
}

// versionCmd creates the "version" subcommand.
func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("skoolstalk %s\n", config.Version)
		},
	}
}

// setupLogger creates a structured logger per the logging config.
func setupLogger(cfg *config.LoggingConfig) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	} else {
		switch cfg.Level {
		case "debug":
			level = slog.LevelDebug
		case "warn":
			level = slog.LevelWarn
		case "error":
			level = slog.LevelError
		}
	}

	out := os.Stderr
	if cfg.Output == "stdout" {
		out = os.Stdout
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(out, opts)
	} else {
		handler = slog.NewTextHandler(out, opts)
	}
	return slog.New(handler)
}

// applyCLIOverrides applies command-line flag values to the config.
func applyCLIOverrides(cmd *cobra.Command, cfg *config.Config, args []string) {
	if len(args) > 0 {
		cfg.Target.CommunityURL = args[0]
	}
	if email != "" {
		cfg.Auth.Email = email
	}
	if password != "" {
		cfg.Auth.Password = password
	}
	if communityURL != "" {
		cfg.Target.CommunityURL = communityURL
	}
	if cmd.Flags().Changed("headless") {
		cfg.Browser.Headless = headless
	}
	if cmd.Flags().Changed("max-posts") {
		cfg.Target.MaxPosts = maxPosts
	}
	if outputDir != "" {
		cfg.Output.Dir = outputDir
	}
	if len(formats) > 0 {
		cfg.Output.Formats = formats
	}
	if basename != "" {
		cfg.Output.Basename = basename
	}
	if cookieFile != "" {
		cfg.Browser.CookieFile = cookieFile
	}
	if stallLimit > 0 {
		cfg.Scroll.StallLimit = stallLimit
	}
	if maxWait > 0 {
		cfg.Scroll.MaxWait = maxWait
	}
	if loginTimeout > 0 {
		cfg.Timeouts.Login = loginTimeout
	}
	if navTimeout > 0 {
		cfg.Timeouts.Navigation = navTimeout
	}
}

// redact hides a secret from config dumps while showing whether it is set.
func redact(s string) string {
	if s == "" {
		return "(not set)"
	}
	return "********"
}
