package config

import (
	"fmt"
	"net/url"
)

// Validate checks the configuration for invalid values.
func Validate(cfg *Config) error {
	if cfg.Auth.Email == "" {
		return fmt.Errorf("auth.email is required (set SKOOL_EMAIL)")
	}
	if cfg.Auth.Password == "" {
		return fmt.Errorf("auth.password is required (set SKOOL_PASSWORD)")
	}
	if err := ValidateURL(cfg.Auth.LoginURL); err != nil {
		return fmt.Errorf("auth.login_url: %w", err)
	}

	if cfg.Target.CommunityURL == "" {
		return fmt.Errorf("target.community_url is required (set COMMUNITY_URL)")
	}
	if err := ValidateURL(cfg.Target.CommunityURL); err != nil {
		return fmt.Errorf("target.community_url: %w", err)
	}
	if cfg.Target.MaxPosts < 0 {
		return fmt.Errorf("target.max_posts must be >= 0, got %d", cfg.Target.MaxPosts)
	}

	if cfg.Browser.SlowMotion < 0 {
		return fmt.Errorf("browser.slow_motion must be >= 0")
	}

	if cfg.Scroll.StallLimit < 1 {
		return fmt.Errorf("scroll.stall_limit must be >= 1, got %d", cfg.Scroll.StallLimit)
	}
	if cfg.Scroll.PollStart <= 0 {
		return fmt.Errorf("scroll.poll_start must be > 0")
	}
	if cfg.Scroll.PollCap < cfg.Scroll.PollStart {
		return fmt.Errorf("scroll.poll_cap must be >= scroll.poll_start")
	}
	if cfg.Scroll.MaxWait < cfg.Scroll.PollCap {
		return fmt.Errorf("scroll.max_wait must be >= scroll.poll_cap")
	}
	if cfg.Scroll.Settle <= 0 {
		return fmt.Errorf("scroll.settle must be > 0")
	}

	if cfg.Timeouts.Login <= 0 {
		return fmt.Errorf("timeouts.login must be > 0")
	}
	if cfg.Timeouts.Navigation <= 0 {
		return fmt.Errorf("timeouts.navigation must be > 0")
	}

	if cfg.Output.Dir == "" {
		return fmt.Errorf("output.dir must not be empty")
	}
	if len(cfg.Output.Formats) == 0 {
		return fmt.Errorf("output.formats must name at least one format")
	}
	validFormats := map[string]bool{
		"json": true, "csv": true, "mongodb": true,
	}
	for _, f := range cfg.Output.Formats {
		if !validFormats[f] {
			return fmt.Errorf("output format %q is not supported (valid: json, csv, mongodb)", f)
		}
		if f == "mongodb" && cfg.Output.MongoURI == "" {
			return fmt.Errorf("output.mongo_uri is required when the mongodb format is enabled")
		}
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[cfg.Logging.Level] {
		return fmt.Errorf("logging.level must be debug/info/warn/error, got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "text" && cfg.Logging.Format != "json" {
		return fmt.Errorf("logging.format must be 'text' or 'json', got %q", cfg.Logging.Format)
	}

	return nil
}

// ValidateURL checks if a URL string is usable as a navigation target.
func ValidateURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("URL scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("URL must have a host")
	}
	return nil
}
