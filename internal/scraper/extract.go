package scraper

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"mapsleads/internal/browser"
)

// errNoCard marks a card-level lookup attempted without a list entry.
var errNoCard = errors.New("scraper: no list entry")

// lookup reads one field from the detail panel or the entry's card.
type lookup struct {
	name string
	read func(page browser.Page, card browser.Element) (string, error)
}

// Each field is an ordered list of lookups; a new layout variant is a new
// element in its list.
var (
	nameLookups = []lookup{
		pageText("panel heading", `h1.DUwDvf`),
		cardText("card title", `.qBF1Pd`),
	}
	websiteLookups = []lookup{
		pageAttr("authority link", `a[data-item-id="authority"]`, "href"),
	}
	addressLookups = []lookup{
		pageText("address button", `button[data-item-id="address"]`),
		pageTextContaining("info line with comma", `div.Io6YTe`, ","),
	}
	phoneLookups = []lookup{
		pageText("phone button", `button[data-item-id^="phone:"]`),
		cardText("card phone", `.UsdlK`),
	}
	ratingLookups = []ratingLookup{
		{"stars label", ratingFromLabel(`span[role="img"][aria-label*="stars"]`)},
		{"card compact text", ratingFromCard(`.MW4etd`, `.UY7F9`)},
		{"compact text", ratingFromCompact(`.MW4etd`)},
	}
)

// Extract reads one BusinessRecord. With a non-nil entry the entry is first
// scrolled into view and opened; if that fails the entry is skipped with an
// ErrSelection error. Field failures never fail the record.
func (s *Scraper) Extract(ctx context.Context, page browser.Page, entry browser.Element) (BusinessRecord, error) {
	if entry != nil {
		if err := entry.ScrollIntoView(); err != nil {
			return BusinessRecord{}, fmt.Errorf("%w: scroll into view: %w", ErrSelection, err)
		}
		if err := entry.Click(); err != nil {
			return BusinessRecord{}, fmt.Errorf("%w: open entry: %w", ErrSelection, err)
		}
		if err := sleep(ctx, s.cfg.Delays.Select); err != nil {
			return BusinessRecord{}, err
		}
	}

	rec := BusinessRecord{
		Name:             s.resolve("name", nameLookups, page, entry),
		Website:          s.resolve("website", websiteLookups, page, entry),
		Address:          s.resolve("address", addressLookups, page, entry),
		PhoneFromListing: s.resolve("phone", phoneLookups, page, entry),
	}
	rec.Rating, rec.ReviewCount = s.resolveRating(page, entry)

	u, err := page.URL()
	if err != nil {
		s.log.Debug("scraper: field unavailable", "field", "sourceUrl", "error", err)
	}
	rec.SourceURL = u
	return rec, nil
}

// resolve returns the first non-empty value of the lookups.
func (s *Scraper) resolve(field string, lookups []lookup, page browser.Page, card browser.Element) string {
	for _, l := range lookups {
		v, err := l.read(page, card)
		if err != nil {
			s.logMiss(field, l.name, err)
			continue
		}
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func (s *Scraper) logMiss(field, strategy string, err error) {
	kind := "lookup"
	switch {
	case errors.Is(err, browser.ErrNotFound), errors.Is(err, errNoCard):
		kind = "not_found"
	case errors.Is(err, ErrParse):
		kind = "parse"
	}
	s.log.Debug("scraper: field lookup missed", "field", field, "strategy", strategy, "kind", kind, "error", err)
}

func pageText(name, selector string) lookup {
	return lookup{name, func(page browser.Page, _ browser.Element) (string, error) {
		el, err := page.Find(selector)
		if err != nil {
			return "", err
		}
		return el.Text()
	}}
}

func pageAttr(name, selector, attr string) lookup {
	return lookup{name, func(page browser.Page, _ browser.Element) (string, error) {
		el, err := page.Find(selector)
		if err != nil {
			return "", err
		}
		return el.Attribute(attr)
	}}
}

// pageTextContaining returns the first matching element whose text holds
// substr.
func pageTextContaining(name, selector, substr string) lookup {
	return lookup{name, func(page browser.Page, _ browser.Element) (string, error) {
		els, err := page.FindAll(selector)
		if err != nil {
			return "", err
		}
		for _, el := range els {
			if t, err := el.Text(); err == nil && strings.Contains(t, substr) {
				return t, nil
			}
		}
		return "", fmt.Errorf("%w: %s containing %q", browser.ErrNotFound, selector, substr)
	}}
}

func cardText(name, selector string) lookup {
	return lookup{name, func(_ browser.Page, card browser.Element) (string, error) {
		if card == nil {
			return "", errNoCard
		}
		el, err := card.Find(selector)
		if err != nil {
			return "", err
		}
		return el.Text()
	}}
}
