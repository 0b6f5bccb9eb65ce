package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Load reads configuration from file, environment, and CLI flags.
// Priority (highest to lowest): CLI flags > env vars > config file > defaults.
func Load(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	v := viper.New()
	v.SetConfigType("yaml")

	// Set defaults from struct
	setDefaults(v, cfg)

	// Environment variable support
	v.SetEnvPrefix("SKOOLSTALK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindAliases(v)

	// Load config file
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		// Search default locations
		v.SetConfigName("skoolstalk")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		home, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(filepath.Join(home, ".skoolstalk"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && configPath != "" {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found is okay if not explicitly specified
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return cfg, nil
}

// LoadFromFile reads configuration from a specific file path.
func LoadFromFile(path string) (*Config, error) {
	return Load(path)
}

// bindAliases registers the short environment names the platform's users
// already export, alongside the SKOOLSTALK_* forms AutomaticEnv derives.
func bindAliases(v *viper.Viper) {
	v.BindEnv("auth.email", "SKOOLSTALK_AUTH_EMAIL", "SKOOL_EMAIL")
	v.BindEnv("auth.password", "SKOOLSTALK_AUTH_PASSWORD", "SKOOL_PASSWORD")
	v.BindEnv("target.community_url", "SKOOLSTALK_TARGET_COMMUNITY_URL", "COMMUNITY_URL")
	v.BindEnv("browser.headless", "SKOOLSTALK_BROWSER_HEADLESS", "HEADLESS_MODE")
}

// setDefaults registers default values in viper.
func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("auth.login_url", cfg.Auth.LoginURL)

	v.SetDefault("target.max_posts", cfg.Target.MaxPosts)

	v.SetDefault("browser.headless", cfg.Browser.Headless)
	v.SetDefault("browser.window_size", cfg.Browser.WindowSize)
	v.SetDefault("browser.user_agent", cfg.Browser.UserAgent)
	v.SetDefault("browser.stealth", cfg.Browser.Stealth)
	v.SetDefault("browser.slow_motion", cfg.Browser.SlowMotion)

	v.SetDefault("scroll.stall_limit", cfg.Scroll.StallLimit)
	v.SetDefault("scroll.poll_start", cfg.Scroll.PollStart)
	v.SetDefault("scroll.poll_cap", cfg.Scroll.PollCap)
	v.SetDefault("scroll.max_wait", cfg.Scroll.MaxWait)
	v.SetDefault("scroll.settle", cfg.Scroll.Settle)

	v.SetDefault("timeouts.login", cfg.Timeouts.Login)
	v.SetDefault("timeouts.navigation", cfg.Timeouts.Navigation)

	v.SetDefault("output.dir", cfg.Output.Dir)
	v.SetDefault("output.formats", cfg.Output.Formats)
	v.SetDefault("output.export_partial", cfg.Output.ExportPartial)
	v.SetDefault("output.mongo_database", cfg.Output.MongoDatabase)
	v.SetDefault("output.mongo_collection", cfg.Output.MongoCollection)

	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.format", cfg.Logging.Format)
	v.SetDefault("logging.output", cfg.Logging.Output)
}
