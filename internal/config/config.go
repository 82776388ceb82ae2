// Package config loads and validates crawler configuration via Viper.
package config

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// DefaultUserAgent is the desktop Chrome string sent when http.user_agent is
// unset.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
	"(KHTML, like Gecko) Chrome/90.0.4430.93 Safari/537.36"

// Archive kinds accepted by storage.archive.
const (
	ArchiveNone   = "none"
	ArchiveMemory = "memory"
	ArchiveLocal  = "local"
	ArchiveGCS    = "gcs"
)

var tableNameRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Config captures all crawler configuration knobs loaded via Viper.
type Config struct {
	Logging  LoggingConfig            `mapstructure:"logging"`
	Crawler  CrawlerConfig            `mapstructure:"crawler"`
	HTTP     HTTPConfig               `mapstructure:"http"`
	Headless HeadlessConfig           `mapstructure:"headless"`
	Storage  StorageConfig            `mapstructure:"storage"`
	DB       DBConfig                 `mapstructure:"db"`
	PubSub   PubSubConfig             `mapstructure:"pubsub"`
	Ops      OpsConfig                `mapstructure:"ops"`
	Profiles map[string]ProfileConfig `mapstructure:"profiles"`
}

// LoggingConfig selects the zap preset, level and outputs.
type LoggingConfig struct {
	Development bool     `mapstructure:"development"`
	Level       string   `mapstructure:"level"`
	Outputs     []string `mapstructure:"outputs"`
}

// CrawlerConfig governs the scheduler loop.
type CrawlerConfig struct {
	Concurrency     int           `mapstructure:"concurrency"`
	PollInterval    time.Duration `mapstructure:"poll_interval"`
	StartupGrace    time.Duration `mapstructure:"startup_grace"`
	QuiescentChecks int           `mapstructure:"quiescent_checks"`
	ProgressEvery   int           `mapstructure:"progress_every"`
	SummaryInterval time.Duration `mapstructure:"summary_interval"`
}

// HTTPConfig configures the fetcher, retries and per-host pacing.
type HTTPConfig struct {
	UserAgent        string  `mapstructure:"user_agent"`
	AcceptLanguage   string  `mapstructure:"accept_language"`
	TimeoutSeconds   int     `mapstructure:"timeout_seconds"`
	MaxAttempts      int     `mapstructure:"max_attempts"`
	BackoffInitialMs int     `mapstructure:"backoff_initial_ms"`
	BackoffMaxMs     int     `mapstructure:"backoff_max_ms"`
	MaxConnsPerHost  int     `mapstructure:"max_conns_per_host"`
	RatePerSecond    float64 `mapstructure:"rate_per_second"`
	Burst            int     `mapstructure:"burst"`
}

// HeadlessConfig configures the headless rendering subsystem.
type HeadlessConfig struct {
	Enabled         bool   `mapstructure:"enabled"`
	MaxParallel     int    `mapstructure:"max_parallel"`
	NavTimeoutSec   int    `mapstructure:"nav_timeout_seconds"`
	PromotionThresh int    `mapstructure:"promotion_threshold"`
	ReadySelector   string `mapstructure:"ready_selector"`
	ExecPath        string `mapstructure:"exec_path"`
}

// StorageConfig selects where raw payloads are archived.
type StorageConfig struct {
	Archive   string `mapstructure:"archive"`
	LocalDir  string `mapstructure:"local_dir"`
	GCSBucket string `mapstructure:"gcs_bucket"`
	Prefix    string `mapstructure:"prefix"`
}

// DBConfig controls access to Postgres.
type DBConfig struct {
	DSN             string        `mapstructure:"dsn"`
	Table           string        `mapstructure:"table"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

// PubSubConfig holds metadata for item notifications.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// OpsConfig controls the operator HTTP server. An empty Addr disables it.
type OpsConfig struct {
	Addr string `mapstructure:"addr"`
}

// ProfileConfig overrides settings for one site profile.
type ProfileConfig struct {
	Concurrency    int      `mapstructure:"concurrency"`
	Proxies        []string `mapstructure:"proxies"`
	ReferralPrefix string   `mapstructure:"referral_prefix"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("CRAWLER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "")
	v.SetDefault("logging.outputs", []string{})
	v.SetDefault("crawler.concurrency", 2)
	v.SetDefault("crawler.poll_interval", time.Second)
	v.SetDefault("crawler.startup_grace", time.Second)
	v.SetDefault("crawler.quiescent_checks", 2)
	v.SetDefault("crawler.progress_every", 100)
	v.SetDefault("crawler.summary_interval", 30*time.Second)
	v.SetDefault("http.user_agent", DefaultUserAgent)
	v.SetDefault("http.accept_language", "ru")
	v.SetDefault("http.timeout_seconds", 30)
	v.SetDefault("http.max_attempts", 3)
	v.SetDefault("http.backoff_initial_ms", 250)
	v.SetDefault("http.backoff_max_ms", 5000)
	v.SetDefault("http.max_conns_per_host", 2)
	v.SetDefault("http.rate_per_second", 0)
	v.SetDefault("http.burst", 1)
	v.SetDefault("headless.enabled", false)
	v.SetDefault("headless.max_parallel", 1)
	v.SetDefault("headless.nav_timeout_seconds", 25)
	v.SetDefault("headless.promotion_threshold", 2048)
	v.SetDefault("headless.ready_selector", "body")
	v.SetDefault("headless.exec_path", "")
	v.SetDefault("storage.archive", ArchiveNone)
	v.SetDefault("storage.local_dir", "./pages")
	v.SetDefault("storage.prefix", "pages")
	v.SetDefault("db.table", "items")
	v.SetDefault("db.max_conns", 4)
	v.SetDefault("db.min_conns", 0)
	v.SetDefault("db.max_conn_lifetime", 30*time.Minute)
	v.SetDefault("db.auto_migrate", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Crawler.Concurrency <= 0 {
		return fmt.Errorf("crawler.concurrency must be > 0")
	}
	if c.Crawler.PollInterval <= 0 {
		return fmt.Errorf("crawler.poll_interval must be > 0")
	}
	if c.Crawler.QuiescentChecks <= 0 {
		return fmt.Errorf("crawler.quiescent_checks must be > 0")
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be > 0")
	}
	if c.HTTP.MaxAttempts <= 0 {
		return fmt.Errorf("http.max_attempts must be > 0")
	}
	if c.Headless.Enabled && c.Headless.MaxParallel <= 0 {
		return fmt.Errorf("headless.max_parallel must be > 0 when headless is enabled")
	}
	switch c.Storage.Archive {
	case "", ArchiveNone, ArchiveMemory, ArchiveLocal:
	case ArchiveGCS:
		if c.Storage.GCSBucket == "" {
			return fmt.Errorf("storage.gcs_bucket must be set when storage.archive is gcs")
		}
	default:
		return fmt.Errorf("storage.archive %q is not one of none, memory, local, gcs", c.Storage.Archive)
	}
	if c.DB.Table != "" && !tableNameRe.MatchString(c.DB.Table) {
		return fmt.Errorf("db.table %q is not a valid table name", c.DB.Table)
	}
	for name, p := range c.Profiles {
		if p.Concurrency < 0 {
			return fmt.Errorf("profiles.%s.concurrency must be >= 0", name)
		}
	}
	return nil
}

// Profile returns the overrides for name with the crawler concurrency filled
// in when the profile does not set its own.
func (c Config) Profile(name string) ProfileConfig {
	p := c.Profiles[name]
	if p.Concurrency == 0 {
		p.Concurrency = c.Crawler.Concurrency
	}
	return p
}

// RequestTimeout converts http.timeout_seconds to a duration.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}

// Backoff returns the initial and maximum retry delays.
func (c Config) Backoff() (time.Duration, time.Duration) {
	return time.Duration(c.HTTP.BackoffInitialMs) * time.Millisecond,
		time.Duration(c.HTTP.BackoffMaxMs) * time.Millisecond
}

// NavigationTimeout converts headless.nav_timeout_seconds to a duration.
func (c Config) NavigationTimeout() time.Duration {
	return time.Duration(c.Headless.NavTimeoutSec) * time.Second
}
