package config

import (
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"sjsage522/listingworker/pkg/errors"
)

// Config represents the application configuration
type Config struct {
	// Scrape job configuration
	Category       string
	BaseURL        string
	PageCount      int
	PageDelay      time.Duration
	FetchTimeout   time.Duration
	ProbeTimeout   time.Duration
	BlockTime      time.Duration
	PagesPerMinute int
	CategoriesFile string

	// Worker configuration, zero interval runs once
	CrawlInterval time.Duration

	// Redis configuration
	PublishEnabled       bool
	RedisAddr            string
	RedisDB              int
	RedisStream          string
	RedisStreamCount     int
	RedisStreamMaxLength int

	// Memcache configuration
	MemcacheAddr string

	// Export configuration
	ExportDir     string
	ExportFormats []string

	// HTTP API address, empty disables the server
	HTTPAddr string

	// Environment
	Environment string
}

// LoadConfig loads the configuration from environment variables with defaults
func LoadConfig() *Config {
	return &Config{
		Category:             getEnv("CATEGORY", "Vêtements Homme"),
		BaseURL:              getEnv("BASE_URL", ""),
		PageCount:            getEnvInt("PAGE_COUNT", 3),
		PageDelay:            getEnvSeconds("PAGE_DELAY_SECONDS", 2),
		FetchTimeout:         getEnvSeconds("FETCH_TIMEOUT_SECONDS", 10),
		ProbeTimeout:         getEnvSeconds("PROBE_TIMEOUT_SECONDS", 5),
		BlockTime:            getEnvSeconds("BLOCK_SECONDS", 300),
		PagesPerMinute:       getEnvInt("PAGE_RATE_PER_MINUTE", 0),
		CategoriesFile:       getEnv("CATEGORIES_FILE", ""),
		CrawlInterval:        getEnvSeconds("CRAWL_INTERVAL_SECONDS", 0),
		PublishEnabled:       getEnvBool("PUBLISH_ENABLED", false),
		RedisAddr:            getEnv("REDIS_ADDR", "localhost:6379"),
		RedisDB:              getEnvInt("REDIS_DB", 0),
		RedisStream:          getEnv("REDIS_STREAM", "listings"),
		RedisStreamCount:     getEnvInt("REDIS_STREAM_COUNT", 1),
		RedisStreamMaxLength: getEnvInt("REDIS_STREAM_MAX_LENGTH", 10000),
		MemcacheAddr:         getEnv("MEMCACHE_ADDR", "localhost:11211"),
		ExportDir:            getEnv("EXPORT_DIR", "exports"),
		ExportFormats:        getEnvList("EXPORT_FORMATS", "csv,json"),
		HTTPAddr:             getEnv("HTTP_ADDR", ""),
		Environment:          getEnv("LISTING_ENVIRONMENT", "development"),
	}
}

// Validate checks the configuration for values the pipeline cannot run with
func (c *Config) Validate() error {
	if c.PageCount < 1 {
		return errors.NewConfiguration("PAGE_COUNT must be at least 1", nil)
	}
	if c.PageDelay < 0 {
		return errors.NewConfiguration("PAGE_DELAY_SECONDS must not be negative", nil)
	}
	if c.FetchTimeout <= 0 {
		return errors.NewConfiguration("FETCH_TIMEOUT_SECONDS must be positive", nil)
	}
	if c.ProbeTimeout <= 0 {
		return errors.NewConfiguration("PROBE_TIMEOUT_SECONDS must be positive", nil)
	}
	if c.PagesPerMinute < 0 {
		return errors.NewConfiguration("PAGE_RATE_PER_MINUTE must not be negative", nil)
	}
	if c.CrawlInterval < 0 {
		return errors.NewConfiguration("CRAWL_INTERVAL_SECONDS must not be negative", nil)
	}
	if c.BaseURL != "" {
		u, err := url.Parse(c.BaseURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return errors.NewConfiguration("BASE_URL must be an absolute URL", err)
		}
	}
	if c.BaseURL == "" && strings.TrimSpace(c.Category) == "" {
		return errors.NewConfiguration("either CATEGORY or BASE_URL is required", nil)
	}
	if c.PublishEnabled && c.RedisStreamCount < 1 {
		return errors.NewConfiguration("REDIS_STREAM_COUNT must be at least 1", nil)
	}
	for _, f := range c.ExportFormats {
		if f != "csv" && f != "json" {
			return errors.NewConfiguration("unsupported export format "+strconv.Quote(f), nil)
		}
	}
	return nil
}

// IsProduction reports whether the worker runs in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvInt(key string, defaultValue int) int {
	v, err := strconv.Atoi(getEnv(key, strconv.Itoa(defaultValue)))
	if err != nil {
		return defaultValue
	}
	return v
}

func getEnvSeconds(key string, defaultSeconds int) time.Duration {
	return time.Duration(getEnvInt(key, defaultSeconds)) * time.Second
}

func getEnvBool(key string, defaultValue bool) bool {
	v, err := strconv.ParseBool(getEnv(key, strconv.FormatBool(defaultValue)))
	if err != nil {
		return defaultValue
	}
	return v
}

func getEnvList(key, defaultValue string) []string {
	var out []string
	for _, part := range strings.Split(getEnv(key, defaultValue), ",") {
		part = strings.ToLower(strings.TrimSpace(part))
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
