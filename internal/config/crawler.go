package config

import (
	"errors"
	"time"

	"github.com/spf13/viper"
)

// Default crawler values.
const (
	DefaultRequestTimeout = 30 * time.Second
	DefaultMaxRetries     = 3
	DefaultRetryBackoff   = 300 * time.Millisecond
	DefaultMaxPages       = 10
	DefaultJobWorkers     = 4
	DefaultFetchWorkers   = 3
	DefaultCategoryCap    = 150
	DefaultSiteSweepCap   = 5
	DefaultStockCacheSize = 1024
)

// CrawlerConfig holds crawl engine and job orchestration settings.
type CrawlerConfig struct {
	// RequestTimeout is the per-request timeout.
	RequestTimeout time.Duration `yaml:"request_timeout" env:"CRAWLER_REQUEST_TIMEOUT"`
	// MaxRetries is the retry count for retryable HTTP statuses.
	MaxRetries int `yaml:"max_retries"`
	// RetryBackoff is the base backoff between retries, doubled each attempt.
	RetryBackoff time.Duration `yaml:"retry_backoff"`
	// MaxPages is the default per-category page cap.
	MaxPages int `yaml:"max_pages"`
	// JobWorkers bounds the number of concurrently running jobs.
	JobWorkers int `yaml:"job_workers"`
	// FetchWorkers bounds parallel detail-page fetches within one job.
	FetchWorkers int `yaml:"fetch_workers"`
	// CategoryCap soft-caps automatic category discovery. 0 disables the cap.
	CategoryCap int `yaml:"category_cap"`
	// SiteSweepCap bounds categories scraped in a whole-site run.
	SiteSweepCap int `yaml:"site_sweep_cap"`
	// StockCacheSize bounds the detail-page stock memoization cache.
	StockCacheSize int `yaml:"stock_cache_size"`
	// Debug enables debug logging.
	Debug bool `yaml:"debug" env:"APP_DEBUG"`
}

// Validate checks crawler settings.
func (c *CrawlerConfig) Validate() error {
	if c.JobWorkers <= 0 {
		return errors.New("job_workers must be positive")
	}
	if c.FetchWorkers <= 0 {
		return errors.New("fetch_workers must be positive")
	}
	if c.MaxPages < 0 {
		return errors.New("max_pages must not be negative")
	}
	if c.CategoryCap < 0 {
		return errors.New("category_cap must not be negative")
	}
	return nil
}

func loadCrawler(v *viper.Viper) CrawlerConfig {
	cfg := CrawlerConfig{
		RequestTimeout: v.GetDuration("crawler.request_timeout"),
		MaxRetries:     getConfigInt("crawler.max_retries", DefaultMaxRetries, v),
		RetryBackoff:   v.GetDuration("crawler.retry_backoff"),
		MaxPages:       getConfigInt("crawler.max_pages", DefaultMaxPages, v),
		JobWorkers:     getConfigInt("crawler.job_workers", DefaultJobWorkers, v),
		FetchWorkers:   getConfigInt("crawler.fetch_workers", DefaultFetchWorkers, v),
		CategoryCap:    getConfigInt("crawler.category_cap", DefaultCategoryCap, v),
		SiteSweepCap:   getConfigInt("crawler.site_sweep_cap", DefaultSiteSweepCap, v),
		StockCacheSize: getConfigInt("crawler.stock_cache_size", DefaultStockCacheSize, v),
		Debug:          v.GetBool("crawler.debug"),
	}
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = DefaultRequestTimeout
	}
	if cfg.RetryBackoff == 0 {
		cfg.RetryBackoff = DefaultRetryBackoff
	}
	return cfg
}
