package config

import (
	"time"
)

// Version is set at build time via ldflags.
var Version = "dev"

// DefaultLoginURL is where the platform hosts its login form.
const DefaultLoginURL = "https://www.skool.com/login"

// Config is the root configuration for skoolstalk.
type Config struct {
	Auth     AuthConfig     `mapstructure:"auth"     yaml:"auth"`
	Target   TargetConfig   `mapstructure:"target"   yaml:"target"`
	Browser  BrowserConfig  `mapstructure:"browser"  yaml:"browser"`
	Scroll   ScrollConfig   `mapstructure:"scroll"   yaml:"scroll"`
	Timeouts TimeoutConfig  `mapstructure:"timeouts" yaml:"timeouts"`
	Output   OutputConfig   `mapstructure:"output"   yaml:"output"`
	Logging  LoggingConfig  `mapstructure:"logging"  yaml:"logging"`
}

// AuthConfig holds the credentials and the login route.
type AuthConfig struct {
	Email    string `mapstructure:"email"     yaml:"email"`
	Password string `mapstructure:"password"  yaml:"password"`
	LoginURL string `mapstructure:"login_url" yaml:"login_url"`
}

// TargetConfig identifies the community to scrape.
type TargetConfig struct {
	CommunityURL string `mapstructure:"community_url" yaml:"community_url"`
	// MaxPosts caps the run; 0 means collect until end of feed.
	MaxPosts int `mapstructure:"max_posts" yaml:"max_posts"`
}

// BrowserConfig controls the automated browser instance.
type BrowserConfig struct {
	Headless   bool          `mapstructure:"headless"    yaml:"headless"`
	WindowSize string        `mapstructure:"window_size" yaml:"window_size"`
	UserAgent  string        `mapstructure:"user_agent"  yaml:"user_agent"`
	ChromePath string        `mapstructure:"chrome_path" yaml:"chrome_path"`
	Stealth    bool          `mapstructure:"stealth"     yaml:"stealth"`
	CookieFile string        `mapstructure:"cookie_file" yaml:"cookie_file"`
	SlowMotion time.Duration `mapstructure:"slow_motion" yaml:"slow_motion"`
}

// ScrollConfig controls scroll pagination and its height polling.
type ScrollConfig struct {
	// StallLimit is how many consecutive no-growth passes mean end of feed.
	StallLimit int `mapstructure:"stall_limit" yaml:"stall_limit"`
	// PollStart and PollCap bound the per-attempt backoff delay while waiting
	// for the feed to grow after a scroll; MaxWait is the overall ceiling.
	PollStart time.Duration `mapstructure:"poll_start" yaml:"poll_start"`
	PollCap   time.Duration `mapstructure:"poll_cap"   yaml:"poll_cap"`
	MaxWait   time.Duration `mapstructure:"max_wait"   yaml:"max_wait"`
	// Settle is the quiet window used to decide a page has finished rendering.
	Settle time.Duration `mapstructure:"settle" yaml:"settle"`
}

// TimeoutConfig bounds the blocking session operations. These timeouts are
// fatal when exceeded, unlike the scroll poll ceiling.
type TimeoutConfig struct {
	Login      time.Duration `mapstructure:"login"      yaml:"login"`
	Navigation time.Duration `mapstructure:"navigation" yaml:"navigation"`
}

// OutputConfig controls where and how results are exported.
type OutputConfig struct {
	Dir     string   `mapstructure:"dir"     yaml:"dir"`
	Formats []string `mapstructure:"formats" yaml:"formats"`
	// Basename names the output files; empty means a timestamped default.
	Basename string `mapstructure:"basename" yaml:"basename"`
	// ExportPartial writes whatever was collected when a run dies mid-feed.
	ExportPartial   bool   `mapstructure:"export_partial"   yaml:"export_partial"`
	MongoURI        string `mapstructure:"mongo_uri"        yaml:"mongo_uri"`
	MongoDatabase   string `mapstructure:"mongo_database"   yaml:"mongo_database"`
	MongoCollection string `mapstructure:"mongo_collection" yaml:"mongo_collection"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level  string `mapstructure:"level"  yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
	Output string `mapstructure:"output" yaml:"output"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Auth: AuthConfig{
			LoginURL: DefaultLoginURL,
		},
		Target: TargetConfig{
			MaxPosts: 50,
		},
		Browser: BrowserConfig{
			Headless:   true,
			WindowSize: "1920,1080",
			UserAgent:  "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36",
			Stealth:    true,
		},
		Scroll: ScrollConfig{
			StallLimit: 3,
			PollStart:  200 * time.Millisecond,
			PollCap:    2 * time.Second,
			MaxWait:    10 * time.Second,
			Settle:     300 * time.Millisecond,
		},
		Timeouts: TimeoutConfig{
			Login:      30 * time.Second,
			Navigation: 30 * time.Second,
		},
		Output: OutputConfig{
			Dir:             "./output",
			Formats:         []string{"json", "csv"},
			ExportPartial:   true,
			MongoDatabase:   "skoolstalk",
			MongoCollection: "posts",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
	}
}
