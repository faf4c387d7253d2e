package scraper

import (
	"context"
	"errors"
	"fmt"

	"mapsleads/internal/browser"
)

const (
	resultsSelector = `div[aria-label*="Results for"]`
	entrySelector   = `div.Nv2PK`
)

// Expand scrolls the results list until it holds limit entries or its
// height stops growing for MaxStagnant consecutive scrolls. It returns the
// number of loaded entries, never more than limit. A page without a
// results list yields zero and no error.
func (s *Scraper) Expand(ctx context.Context, page browser.Page, limit int) (int, error) {
	panel, err := page.Find(resultsSelector)
	if errors.Is(err, browser.ErrNotFound) {
		s.log.Debug("scraper: no results list, single detail view assumed")
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("scraper: results list: %w", err)
	}

	loaded := s.countEntries(page)
	if loaded >= limit {
		return limit, nil
	}

	last, err := panel.ScrollHeight()
	if err != nil {
		return loaded, fmt.Errorf("scraper: scroll height: %w", err)
	}

	stagnant := 0
	for attempt := 1; attempt <= s.cfg.MaxScrolls; attempt++ {
		if err := panel.ScrollToBottom(); err != nil {
			return min(loaded, limit), fmt.Errorf("scraper: scroll: %w", err)
		}
		if err := sleep(ctx, s.cfg.Delays.Scroll); err != nil {
			return min(loaded, limit), err
		}
		h, err := panel.ScrollHeight()
		if err != nil {
			return min(loaded, limit), fmt.Errorf("scraper: scroll height: %w", err)
		}
		if h <= last {
			stagnant++
		} else {
			stagnant = 0
		}
		last = h

		loaded = s.countEntries(page)
		s.log.Debug("scraper: scrolled results", "attempt", attempt, "height", h, "entries", loaded, "stagnant", stagnant)
		if loaded >= limit || stagnant >= s.cfg.MaxStagnant {
			break
		}
	}
	return min(loaded, limit), nil
}

func (s *Scraper) countEntries(page browser.Page) int {
	entries, err := page.FindAll(entrySelector)
	if err != nil {
		s.log.Debug("scraper: count entries", "error", err)
		return 0
	}
	return len(entries)
}
