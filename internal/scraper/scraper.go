// Package scraper drives a map-search session: it expands the virtualized
// results list, opens each entry, reads the detail panel and optionally
// enriches each record with contacts mined from the business website.
package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"mapsleads/internal/browser"
	"mapsleads/internal/contacts"
	"mapsleads/internal/target"
)

const (
	// DefaultLimit applies when a request does not set one.
	DefaultLimit = 60
	// MaxLimit bounds the number of records per scrape.
	MaxLimit = 500
)

// Progress stages.
const (
	StageNavigate = "navigate"
	StageExpand   = "expand"
	StageExtract  = "extract"
	StageEnrich   = "enrich"
	StageComplete = "complete"
)

var (
	// ErrSession is returned when the browser cannot be launched or
	// cannot load the search target.
	ErrSession = errors.New("scraper: session failed")
	// ErrSelection is returned by Extract when an entry cannot be opened.
	ErrSelection = errors.New("scraper: entry selection failed")
)

// Session is a browser page owned by exactly one scrape.
type Session interface {
	browser.Page
	Close() error
}

// Opener acquires a fresh Session.
type Opener func(ctx context.Context) (Session, error)

// Enricher mines contacts from a website. Implementations must be safe for
// concurrent use and must not touch the browser session.
type Enricher interface {
	Mine(ctx context.Context, websiteURL string) contacts.Contacts
}

// Progress is reported while a scrape runs.
type Progress struct {
	Stage   string
	Current int
	Total   int
	Message string
}

// Request describes one scrape.
type Request struct {
	// Query is free text, a search-engine URL or a maps URL.
	Query string
	// Limit caps the result count; it is clamped to [1, MaxLimit] and
	// defaults to DefaultLimit.
	Limit  int
	Enrich bool
	// Progress, when set, is called sequentially from the scrape.
	Progress func(Progress)
}

// Config configures a Scraper.
type Config struct {
	Delays Delays
	// MaxStagnant consecutive scrolls without growth end expansion.
	// Default: 3.
	MaxStagnant int
	// MaxScrolls bounds expansion even while the list keeps growing.
	// Default: 250.
	MaxScrolls int
	// EnrichWorkers bounds concurrent website lookups. Default: 3.
	EnrichWorkers int

	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.MaxStagnant <= 0 {
		c.MaxStagnant = 3
	}
	if c.MaxScrolls <= 0 {
		c.MaxScrolls = 250
	}
	if c.EnrichWorkers <= 0 {
		c.EnrichWorkers = 3
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Scraper runs scrapes. Each Scrape call acquires its own Session, so
// concurrent calls share nothing but the Enricher.
type Scraper struct {
	open     Opener
	enricher Enricher
	cfg      Config
	log      *slog.Logger
}

// New creates a Scraper. enricher may be nil, which disables enrichment.
func New(open Opener, enricher Enricher, cfg Config) *Scraper {
	cfg.defaults()
	return &Scraper{open: open, enricher: enricher, cfg: cfg, log: cfg.Logger}
}

// ClampLimit applies DefaultLimit and MaxLimit.
func ClampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultLimit
	case limit > MaxLimit:
		return MaxLimit
	}
	return limit
}

// Scrape normalizes req.Query, runs the scrape and returns the records in
// extraction order. Invalid input is reported before any browser activity.
// Session failures return an empty ResultSet and an ErrSession error.
// Entry and field failures are logged and skipped. On cancellation the
// records gathered so far are returned with the context error. The session
// is always released.
func (s *Scraper) Scrape(ctx context.Context, req Request) (ResultSet, error) {
	searchURL, err := target.Normalize(req.Query)
	if err != nil {
		return ResultSet{}, err
	}
	limit := ClampLimit(req.Limit)

	var reportMu sync.Mutex
	report := func(p Progress) {
		if req.Progress == nil {
			return
		}
		reportMu.Lock()
		defer reportMu.Unlock()
		req.Progress(p)
	}

	log := s.log.With("target", searchURL)
	log.Info("scraper: starting", "limit", limit, "enrich", req.Enrich)

	sess, err := s.open(ctx)
	if err != nil {
		return ResultSet{}, fmt.Errorf("%w: open: %w", ErrSession, err)
	}
	defer func() {
		if err := sess.Close(); err != nil {
			log.Warn("scraper: session close", "error", err)
		}
	}()

	report(Progress{Stage: StageNavigate, Message: searchURL})
	if err := sess.Navigate(ctx, searchURL); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ResultSet{}, ctxErr
		}
		return ResultSet{}, fmt.Errorf("%w: %w", ErrSession, err)
	}
	if err := sleep(ctx, s.cfg.Delays.FirstPaint); err != nil {
		return ResultSet{}, err
	}

	report(Progress{Stage: StageExpand, Total: limit})
	loaded, err := s.Expand(ctx, sess, limit)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ResultSet{}, ctxErr
		}
		log.Warn("scraper: expansion stopped early", "loaded", loaded, "error", err)
	}

	entries, err := sess.FindAll(entrySelector)
	if err != nil {
		log.Warn("scraper: list entries", "error", err)
	}
	if len(entries) == 0 {
		entries = []browser.Element{nil}
	}
	total := min(limit, len(entries))
	log.Info("scraper: entries loaded", "entries", len(entries), "processing", total)

	var (
		rs       = make(ResultSet, 0, total)
		mined    = make(map[int]contacts.Contacts)
		minedMu  sync.Mutex
		wg       sync.WaitGroup
		sem      = make(chan struct{}, s.cfg.EnrichWorkers)
		enriched int
		stopErr  error
	)
	enrich := req.Enrich && s.enricher != nil

	for i, entry := range entries {
		if len(rs) >= limit {
			break
		}
		if err := ctx.Err(); err != nil {
			stopErr = err
			break
		}

		if entry != nil {
			// Opening an entry can re-render the list; old handles go stale.
			if fresh, err := sess.Nth(entrySelector, i); err == nil {
				entry = fresh
			} else {
				log.Debug("scraper: entry re-query", "index", i, "error", err)
			}
		}

		rec, err := s.Extract(ctx, sess, entry)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				stopErr = ctxErr
				break
			}
			log.Warn("scraper: entry skipped", "index", i, "error", err)
			continue
		}

		idx := len(rs)
		rs = append(rs, rec)
		report(Progress{Stage: StageExtract, Current: len(rs), Total: total, Message: rec.Name})

		if !enrich || rec.Website == "" {
			continue
		}
		wg.Add(1)
		go func(idx int, website string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			c := s.enricher.Mine(ctx, website)
			minedMu.Lock()
			mined[idx] = c
			enriched++
			done := enriched
			minedMu.Unlock()
			report(Progress{Stage: StageEnrich, Current: done, Message: website})
		}(idx, rec.Website)
	}
	wg.Wait()

	for idx, c := range mined {
		rs[idx].EmailsFromSite = c.Emails
		rs[idx].ExtraPhonesFromSite = c.Phones
	}

	report(Progress{Stage: StageComplete, Current: len(rs), Total: total})
	log.Info("scraper: finished", "records", len(rs), "enriched", len(mined))
	return rs, stopErr
}
