// Package config loads and validates crawler configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/JakeFAU/newsroom-crawler/internal/crawler"
	"github.com/JakeFAU/newsroom-crawler/internal/extract"
)

// EnvPrefix prefixes every environment override, e.g.
// NEWSCRAWLER_STORAGE_BACKEND=postgres.
const EnvPrefix = "NEWSCRAWLER"

// Storage backends.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
)

// Archive providers.
const (
	ArchiveNone   = "none"
	ArchiveLocal  = "local"
	ArchiveGCS    = "gcs"
	ArchiveMemory = "memory"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server   ServerConfig         `mapstructure:"server"`
	Crawler  CrawlerConfig        `mapstructure:"crawler"`
	HTTP     HTTPConfig           `mapstructure:"http"`
	Headless HeadlessConfig       `mapstructure:"headless"`
	Listing  extract.ListingRules `mapstructure:"listing"`
	Article  extract.ArticleRules `mapstructure:"article"`
	Storage  StorageConfig        `mapstructure:"storage"`
	Archive  ArchiveConfig        `mapstructure:"archive"`
	PubSub   PubSubConfig         `mapstructure:"pubsub"`
	Logging  LoggingConfig        `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port                   int `mapstructure:"port"`
	RequestTimeoutSeconds  int `mapstructure:"request_timeout_seconds"`
	ShutdownTimeoutSeconds int `mapstructure:"shutdown_timeout_seconds"`
}

// CrawlerConfig governs what is crawled and how politely.
type CrawlerConfig struct {
	Seeds             []string `mapstructure:"seeds"`
	AllowedDomains    []string `mapstructure:"allowed_domains"`
	UserAgent         string   `mapstructure:"user_agent"`
	IgnoreRobots      bool     `mapstructure:"ignore_robots"`
	RequestsPerSecond float64  `mapstructure:"requests_per_second"`
	Burst             int      `mapstructure:"burst"`
	RenderListing     bool     `mapstructure:"render_listing"`
	RenderArticles    bool     `mapstructure:"render_articles"`
	// Private stores newly crawled articles as not public.
	Private    bool `mapstructure:"private"`
	Workers    int  `mapstructure:"workers"`
	QueueDepth int  `mapstructure:"queue_depth"`
}

// HTTPConfig configures the static fetcher and its retry behavior.
type HTTPConfig struct {
	TimeoutSeconds   int `mapstructure:"timeout_seconds"`
	MaxRetries       int `mapstructure:"max_retries"`
	BackoffInitialMs int `mapstructure:"backoff_initial_ms"`
	BackoffMaxMs     int `mapstructure:"backoff_max_ms"`
	MaxBodyBytes     int `mapstructure:"max_body_bytes"`
}

// HeadlessConfig configures the headless rendering subsystem.
type HeadlessConfig struct {
	Enabled         bool     `mapstructure:"enabled"`
	MaxParallel     int      `mapstructure:"max_parallel"`
	NavTimeoutSec   int      `mapstructure:"nav_timeout_seconds"`
	WaitSelector    string   `mapstructure:"wait_selector"`
	SettleDelayMs   int      `mapstructure:"settle_delay_ms"`
	Promote         bool     `mapstructure:"promote"`
	PromotionThresh int      `mapstructure:"promotion_threshold"`
	RequiredMarkers []string `mapstructure:"required_markers"`
}

// StorageConfig selects and configures the article repository.
type StorageConfig struct {
	Backend     string         `mapstructure:"backend"`
	AutoMigrate bool           `mapstructure:"auto_migrate"`
	Postgres    PostgresConfig `mapstructure:"postgres"`
	SQLite      SQLiteConfig   `mapstructure:"sqlite"`
}

// PostgresConfig controls the pgx pool.
type PostgresConfig struct {
	DSN                    string `mapstructure:"dsn"`
	MaxConns               int32  `mapstructure:"max_conns"`
	MinConns               int32  `mapstructure:"min_conns"`
	MaxConnLifetimeMinutes int    `mapstructure:"max_conn_lifetime_minutes"`
}

// SQLiteConfig locates the database file.
type SQLiteConfig struct {
	Path string `mapstructure:"path"`
}

// ArchiveConfig controls raw page archiving.
type ArchiveConfig struct {
	Provider           string `mapstructure:"provider"`
	Prefix             string `mapstructure:"prefix"`
	LocalDir           string `mapstructure:"local_dir"`
	GCSBucket          string `mapstructure:"gcs_bucket"`
	GCSCredentialsFile string `mapstructure:"gcs_credentials_file"`
}

// PubSubConfig holds metadata for created-article notifications.
type PubSubConfig struct {
	ProjectID       string `mapstructure:"project_id"`
	TopicName       string `mapstructure:"topic_name"`
	CredentialsFile string `mapstructure:"credentials_file"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// Load builds a Config from .env, disk and environment, in increasing order
// of precedence.
func Load(path string) (Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return Config{}, err
	}

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
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
	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// loadDotEnv exports variables from file without overriding ones already set.
// A missing file is not an error.
func loadDotEnv(file string) error {
	if err := godotenv.Load(file); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load %s: %w", file, err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.request_timeout_seconds", 60)
	v.SetDefault("server.shutdown_timeout_seconds", 15)

	v.SetDefault("crawler.seeds", []string{
		"https://www.zoomit.ir/archive/?sort=Newest&publishDate=All&readingTime=All&pageNumber=1",
	})
	v.SetDefault("crawler.allowed_domains", []string{"zoomit.ir", "*.zoomit.ir"})
	v.SetDefault("crawler.user_agent", "newscrawler/0.1")
	v.SetDefault("crawler.ignore_robots", false)
	v.SetDefault("crawler.requests_per_second", 1.0)
	v.SetDefault("crawler.burst", 1)
	v.SetDefault("crawler.render_listing", true)
	v.SetDefault("crawler.render_articles", true)
	v.SetDefault("crawler.private", false)
	v.SetDefault("crawler.workers", 1)
	v.SetDefault("crawler.queue_depth", 16)

	v.SetDefault("http.timeout_seconds", 15)
	v.SetDefault("http.max_retries", 2)
	v.SetDefault("http.backoff_initial_ms", 250)
	v.SetDefault("http.backoff_max_ms", 2000)
	v.SetDefault("http.max_body_bytes", 10<<20)

	v.SetDefault("headless.enabled", true)
	v.SetDefault("headless.max_parallel", 1)
	v.SetDefault("headless.nav_timeout_seconds", 25)
	v.SetDefault("headless.wait_selector", "body")
	v.SetDefault("headless.settle_delay_ms", 0)
	v.SetDefault("headless.promote", false)
	v.SetDefault("headless.promotion_threshold", 2048)
	v.SetDefault("headless.required_markers", []string{"<h1"})

	v.SetDefault("listing.article_selector", "a.fNLyDV")
	v.SetDefault("listing.page_param", "pageNumber")
	v.SetDefault("listing.max_pages", 5)

	v.SetDefault("article.title_selector", "h1")
	v.SetDefault("article.content_selector", "div.sc-481293f7-1.jrhnOU")
	v.SetDefault("article.block_selector", ".sc-9996cfc-0")
	v.SetDefault("article.stop_phrases", []string{"تبلیغات", "مقاله‌های مرتبط", "مقاله‌ی مرتبط", "مطالعه "})
	v.SetDefault("article.section_end_markers", []string{"داغ‌ترین مطالب روز", "مقالات جدید پیشنهادی"})
	v.SetDefault("article.tags_xpath", "/html/body/div/div[2]/div[1]/main/article/header/div/div/div[2]/div[1]")
	v.SetDefault("article.tags_selector", "")
	v.SetDefault("article.tag_label_selector", "span")

	v.SetDefault("storage.backend", BackendMemory)
	v.SetDefault("storage.auto_migrate", true)
	v.SetDefault("storage.postgres.dsn", "")
	v.SetDefault("storage.postgres.max_conns", 8)
	v.SetDefault("storage.postgres.min_conns", 0)
	v.SetDefault("storage.postgres.max_conn_lifetime_minutes", 30)
	v.SetDefault("storage.sqlite.path", "newscrawler.db")

	v.SetDefault("archive.provider", ArchiveNone)
	v.SetDefault("archive.prefix", "pages")
	v.SetDefault("archive.local_dir", "archive")
	v.SetDefault("archive.gcs_bucket", "")
	v.SetDefault("archive.gcs_credentials_file", "")

	v.SetDefault("pubsub.project_id", "")
	v.SetDefault("pubsub.topic_name", "")
	v.SetDefault("pubsub.credentials_file", "")

	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "info")
}

func (c *Config) normalize() {
	c.Storage.Backend = strings.ToLower(strings.TrimSpace(c.Storage.Backend))
	c.Archive.Provider = strings.ToLower(strings.TrimSpace(c.Archive.Provider))
	if c.Archive.Provider == "" {
		c.Archive.Provider = ArchiveNone
	}
	c.Crawler.Seeds = splitEnvList(c.Crawler.Seeds)
	c.Crawler.AllowedDomains = splitEnvList(c.Crawler.AllowedDomains)
}

// splitEnvList expands comma-separated entries, which is how list values
// arrive from environment variables.
func splitEnvList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be > 0")
	}
	if c.HTTP.MaxRetries < 0 {
		return fmt.Errorf("http.max_retries must be >= 0")
	}
	if c.Crawler.RequestsPerSecond < 0 {
		return fmt.Errorf("crawler.requests_per_second must be >= 0")
	}
	if crawler.NewDomainAllowlist(c.Crawler.AllowedDomains) == nil {
		return fmt.Errorf("crawler.allowed_domains must name at least one domain")
	}
	if c.Crawler.Workers <= 0 {
		return fmt.Errorf("crawler.workers must be > 0")
	}
	if c.Crawler.QueueDepth <= 0 {
		return fmt.Errorf("crawler.queue_depth must be > 0")
	}
	if c.Listing.MaxPages < 1 {
		return fmt.Errorf("listing.max_pages must be >= 1")
	}
	if strings.TrimSpace(c.Listing.ArticleSelector) == "" {
		return fmt.Errorf("listing.article_selector is required")
	}
	if strings.TrimSpace(c.Article.ContentSelector) == "" || strings.TrimSpace(c.Article.BlockSelector) == "" {
		return fmt.Errorf("article.content_selector and article.block_selector are required")
	}
	if c.Headless.Enabled && c.Headless.MaxParallel <= 0 {
		return fmt.Errorf("headless.max_parallel must be > 0 when headless is enabled")
	}
	switch c.Storage.Backend {
	case BackendMemory:
	case BackendPostgres:
		if c.Storage.Postgres.DSN == "" {
			return fmt.Errorf("storage.postgres.dsn is required for the postgres backend")
		}
	case BackendSQLite:
		if c.Storage.SQLite.Path == "" {
			return fmt.Errorf("storage.sqlite.path is required for the sqlite backend")
		}
	default:
		return fmt.Errorf("storage.backend %q is not one of memory, postgres, sqlite", c.Storage.Backend)
	}
	switch c.Archive.Provider {
	case ArchiveNone, ArchiveMemory:
	case ArchiveLocal:
		if c.Archive.LocalDir == "" {
			return fmt.Errorf("archive.local_dir is required for the local provider")
		}
	case ArchiveGCS:
		if c.Archive.GCSBucket == "" {
			return fmt.Errorf("archive.gcs_bucket is required for the gcs provider")
		}
	default:
		return fmt.Errorf("archive.provider %q is not one of none, local, gcs, memory", c.Archive.Provider)
	}
	if c.PubSub.TopicName != "" && c.PubSub.ProjectID == "" {
		return fmt.Errorf("pubsub.project_id is required when pubsub.topic_name is set")
	}
	return nil
}

// FetchTimeout is the per-request budget for static fetches.
func (c Config) FetchTimeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}

// Backoff returns the retry policy's base and max delays.
func (c Config) Backoff() (time.Duration, time.Duration) {
	return time.Duration(c.HTTP.BackoffInitialMs) * time.Millisecond,
		time.Duration(c.HTTP.BackoffMaxMs) * time.Millisecond
}
