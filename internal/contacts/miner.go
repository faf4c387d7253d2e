// Package contacts mines email addresses and phone numbers from a business
// website. Mining is best effort: any failure degrades to empty results.
package contacts

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"golang.org/x/net/html/charset"
	"golang.org/x/time/rate"
)

// MaxPerKind caps how many emails and phones are kept per site.
const MaxPerKind = 5

// Separator joins mined values into a single column.
const Separator = "; "

var (
	// ErrUnsupportedURL is returned for URLs that are not http(s).
	ErrUnsupportedURL = errors.New("contacts: unsupported url")
	// ErrFetch covers network, DNS, redirect and timeout failures.
	ErrFetch = errors.New("contacts: fetch failed")
	// ErrStatus is returned for non-2xx responses.
	ErrStatus = errors.New("contacts: unexpected status")
	// ErrDecode is returned when the body cannot be read or decoded.
	ErrDecode = errors.New("contacts: decode failed")
)

var (
	emailRe = regexp.MustCompile(`(?i)[A-Z0-9._%+-]+@[A-Z0-9.-]+\.[A-Z]{2,}`)
	phoneRe = regexp.MustCompile(`\+?\d[\d\-\s]{7,}\d`)
)

// Contacts is the enrichment result for one website.
type Contacts struct {
	Emails string
	Phones string
}

// Config configures the Miner.
type Config struct {
	// Timeout bounds the whole GET including redirects. Default: 12s.
	Timeout time.Duration
	// UserAgent sent with requests. Default: "Mozilla/5.0".
	UserAgent string
	// MaxBytes caps the body read. Default: 5MB.
	MaxBytes int64
	// RequestsPerSecond throttles outbound requests across all workers.
	// Zero disables throttling.
	RequestsPerSecond float64
	// MaxRedirects followed before giving up. Default: 10.
	MaxRedirects int

	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.Timeout <= 0 {
		c.Timeout = 12 * time.Second
	}
	if c.UserAgent == "" {
		c.UserAgent = "Mozilla/5.0"
	}
	if c.MaxBytes <= 0 {
		c.MaxBytes = 5 * 1024 * 1024
	}
	if c.MaxRedirects <= 0 {
		c.MaxRedirects = 10
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Miner fetches websites and scans them for contact details.
// It is safe for concurrent use and never touches a browser session.
type Miner struct {
	client  *http.Client
	cfg     Config
	limiter *rate.Limiter
}

// NewMiner creates a Miner.
func NewMiner(cfg Config) *Miner {
	cfg.defaults()
	m := &Miner{cfg: cfg}
	m.client = &http.Client{
		Timeout: cfg.Timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= cfg.MaxRedirects {
				return fmt.Errorf("too many redirects (%d)", len(via))
			}
			return nil
		},
	}
	if cfg.RequestsPerSecond > 0 {
		m.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}
	return m
}

// Mine returns the contacts found on websiteURL. An empty URL returns
// empty contacts without any network call; failures are logged and
// degrade to empty contacts.
func (m *Miner) Mine(ctx context.Context, websiteURL string) Contacts {
	if strings.TrimSpace(websiteURL) == "" {
		return Contacts{}
	}
	c, err := m.Lookup(ctx, websiteURL)
	if err != nil {
		m.cfg.Logger.Debug("contacts: enrichment skipped", "url", websiteURL, "error", err)
		return Contacts{}
	}
	return c
}

// Lookup is Mine with the failure reported to the caller.
func (m *Miner) Lookup(ctx context.Context, websiteURL string) (Contacts, error) {
	body, err := m.fetch(ctx, websiteURL)
	if err != nil {
		return Contacts{}, err
	}
	emails, phones := Extract(body)
	return Contacts{
		Emails: strings.Join(emails, Separator),
		Phones: strings.Join(phones, Separator),
	}, nil
}

func (m *Miner) fetch(ctx context.Context, websiteURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(websiteURL))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedURL, websiteURL)
	}

	if m.limiter != nil {
		if err := m.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("%w: %v", ErrFetch, err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", fmt.Errorf("%w: new request: %v", ErrFetch, err)
	}
	req.Header.Set("User-Agent", m.cfg.UserAgent)

	resp, err := m.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("%w: http %d", ErrStatus, resp.StatusCode)
	}

	r, err := charset.NewReader(io.LimitReader(resp.Body, m.cfg.MaxBytes), resp.Header.Get("Content-Type"))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecode, err)
	}
	body, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("%w: read body: %v", ErrDecode, err)
	}
	return string(body), nil
}

// Extract scans body for emails and phone numbers. Each list holds up to
// MaxPerKind distinct values in first-seen order.
func Extract(body string) (emails, phones []string) {
	emails = firstDistinct(emailRe.FindAllString(body, -1), MaxPerKind)
	matches := phoneRe.FindAllString(body, -1)
	for i := range matches {
		matches[i] = strings.TrimSpace(matches[i])
	}
	phones = firstDistinct(matches, MaxPerKind)
	return emails, phones
}

func firstDistinct(in []string, limit int) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, limit)
	for _, v := range in {
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
		if len(out) == limit {
			break
		}
	}
	return out
}
