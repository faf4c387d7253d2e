// Package config loads runtime settings from defaults, an optional YAML
// file and the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"mapsleads/internal/browser"
	"mapsleads/internal/contacts"
	"mapsleads/internal/scraper"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "MAPSLEADS_"

// Config holds all runtime configuration.
type Config struct {
	Browser BrowserConfig `yaml:"browser"`
	Scrape  ScrapeConfig  `yaml:"scrape"`
	Miner   MinerConfig   `yaml:"miner"`
	Server  ServerConfig  `yaml:"server"`
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`
}

type BrowserConfig struct {
	Headless        bool          `yaml:"headless"`
	Bin             string        `yaml:"bin"`
	RemoteURL       string        `yaml:"remote_url"`
	Width           int           `yaml:"width"`
	Height          int           `yaml:"height"`
	Lang            string        `yaml:"lang"`
	ActionTimeout   time.Duration `yaml:"action_timeout"`
	NavigateTimeout time.Duration `yaml:"navigate_timeout"`
}

type ScrapeConfig struct {
	Limit         int           `yaml:"limit"`
	Enrich        bool          `yaml:"enrich"`
	FirstPaint    time.Duration `yaml:"first_paint_delay"`
	ScrollDelay   time.Duration `yaml:"scroll_delay"`
	SelectDelay   time.Duration `yaml:"select_delay"`
	MaxStagnant   int           `yaml:"max_stagnant_scrolls"`
	MaxScrolls    int           `yaml:"max_scrolls"`
	EnrichWorkers int           `yaml:"enrich_workers"`
}

type MinerConfig struct {
	Timeout           time.Duration `yaml:"timeout"`
	UserAgent         string        `yaml:"user_agent"`
	MaxBytes          int64         `yaml:"max_bytes"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
}

type ServerConfig struct {
	Addr       string `yaml:"addr"`
	MaxJobs    int    `yaml:"max_jobs"`
	KeepRecent int    `yaml:"keep_recent"`
}

// Default returns a Config populated with production defaults.
func Default() Config {
	d := scraper.DefaultDelays()
	return Config{
		Browser: BrowserConfig{
			Headless:        true,
			Width:           1366,
			Height:          768,
			Lang:            "en-US",
			ActionTimeout:   10 * time.Second,
			NavigateTimeout: 60 * time.Second,
		},
		Scrape: ScrapeConfig{
			Limit:         scraper.DefaultLimit,
			Enrich:        true,
			FirstPaint:    d.FirstPaint,
			ScrollDelay:   d.Scroll,
			SelectDelay:   d.Select,
			MaxStagnant:   3,
			MaxScrolls:    250,
			EnrichWorkers: 3,
		},
		Miner: MinerConfig{
			Timeout:   12 * time.Second,
			UserAgent: "Mozilla/5.0",
			MaxBytes:  5 << 20,
		},
		Server: ServerConfig{
			Addr:       ":8080",
			MaxJobs:    2,
			KeepRecent: 50,
		},
		LogLevel: "info",
	}
}

// Load builds a Config from defaults, then the YAML file at path (if
// path is non-empty), then a .env file in the working directory (if any),
// then MAPSLEADS_* environment variables.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return cfg, fmt.Errorf("config: .env: %w", err)
	}
	if err := cfg.applyEnv(os.Getenv); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

// Validate rejects settings the scraper cannot run with.
func (c Config) Validate() error {
	if c.Scrape.Limit < 1 || c.Scrape.Limit > scraper.MaxLimit {
		return fmt.Errorf("config: limit %d outside 1..%d", c.Scrape.Limit, scraper.MaxLimit)
	}
	if c.Scrape.EnrichWorkers < 1 {
		return fmt.Errorf("config: enrich_workers must be positive")
	}
	if c.Server.MaxJobs < 1 {
		return fmt.Errorf("config: max_jobs must be positive")
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	return nil
}

// Level parses LogLevel.
func (c Config) Level() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return l, fmt.Errorf("config: log level %q: %w", c.LogLevel, err)
	}
	return l, nil
}

// BrowserSettings converts to the browser package's Config.
func (c Config) BrowserSettings(log *slog.Logger) browser.Config {
	return browser.Config{
		Headless:        c.Browser.Headless,
		Bin:             c.Browser.Bin,
		RemoteURL:       c.Browser.RemoteURL,
		Width:           c.Browser.Width,
		Height:          c.Browser.Height,
		Lang:            c.Browser.Lang,
		ActionTimeout:   c.Browser.ActionTimeout,
		NavigateTimeout: c.Browser.NavigateTimeout,
		Logger:          log,
	}
}

// ScraperSettings converts to the scraper package's Config.
func (c Config) ScraperSettings(log *slog.Logger) scraper.Config {
	return scraper.Config{
		Delays: scraper.Delays{
			FirstPaint: c.Scrape.FirstPaint,
			Scroll:     c.Scrape.ScrollDelay,
			Select:     c.Scrape.SelectDelay,
		},
		MaxStagnant:   c.Scrape.MaxStagnant,
		MaxScrolls:    c.Scrape.MaxScrolls,
		EnrichWorkers: c.Scrape.EnrichWorkers,
		Logger:        log,
	}
}

// MinerSettings converts to the contacts package's Config.
func (c Config) MinerSettings(log *slog.Logger) contacts.Config {
	return contacts.Config{
		Timeout:           c.Miner.Timeout,
		UserAgent:         c.Miner.UserAgent,
		MaxBytes:          c.Miner.MaxBytes,
		RequestsPerSecond: c.Miner.RequestsPerSecond,
		Logger:            log,
	}
}

func (c *Config) applyEnv(getenv func(string) string) error {
	var errs []error
	str := func(key string, dst *string) {
		if v := getenv(EnvPrefix + key); v != "" {
			*dst = v
		}
	}
	boolean := func(key string, dst *bool) {
		if v := getenv(EnvPrefix + key); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("config: %s%s: %w", EnvPrefix, key, err))
				return
			}
			*dst = b
		}
	}
	integer := func(key string, dst *int) {
		if v := getenv(EnvPrefix + key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("config: %s%s: %w", EnvPrefix, key, err))
				return
			}
			*dst = n
		}
	}
	duration := func(key string, dst *time.Duration) {
		if v := getenv(EnvPrefix + key); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("config: %s%s: %w", EnvPrefix, key, err))
				return
			}
			*dst = d
		}
	}

	boolean("HEADLESS", &c.Browser.Headless)
	str("CHROME_BIN", &c.Browser.Bin)
	str("CHROME_URL", &c.Browser.RemoteURL)
	str("LANG", &c.Browser.Lang)
	integer("LIMIT", &c.Scrape.Limit)
	boolean("ENRICH", &c.Scrape.Enrich)
	duration("SCROLL_DELAY", &c.Scrape.ScrollDelay)
	duration("SELECT_DELAY", &c.Scrape.SelectDelay)
	integer("ENRICH_WORKERS", &c.Scrape.EnrichWorkers)
	duration("MINER_TIMEOUT", &c.Miner.Timeout)
	str("MINER_USER_AGENT", &c.Miner.UserAgent)
	if v := getenv(EnvPrefix + "MINER_RPS"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("config: %sMINER_RPS: %w", EnvPrefix, err))
		} else {
			c.Miner.RequestsPerSecond = f
		}
	}
	str("ADDR", &c.Server.Addr)
	integer("MAX_JOBS", &c.Server.MaxJobs)
	if v := getenv(EnvPrefix + "LOG_LEVEL"); v != "" {
		c.LogLevel = strings.ToLower(v)
	}
	return errors.Join(errs...)
}
