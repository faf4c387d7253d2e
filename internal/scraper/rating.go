package scraper

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"mapsleads/internal/browser"
)

// ErrParse is returned when rating text does not hold a rating.
var ErrParse = errors.New("scraper: parse failed")

var (
	ratingRe         = regexp.MustCompile(`(\d+(?:\.\d+)?)`)
	labelReviewsRe   = regexp.MustCompile(`(?i)(\d[\d,]*)\s+reviews?`)
	compactReviewsRe = regexp.MustCompile(`\((\d[\d,]*)\)`)
)

// ratingLookup reads a rating and, when present, a review count.
type ratingLookup struct {
	name string
	read func(page browser.Page, card browser.Element) (rating, reviews string, err error)
}

// ParseRatingLabel parses an accessible label such as
// "4.5 stars 1,234 Reviews".
func ParseRatingLabel(label string) (rating, reviews string, err error) {
	m := ratingRe.FindStringSubmatch(label)
	if m == nil {
		return "", "", fmt.Errorf("%w: rating label %q", ErrParse, label)
	}
	rating = m[1]
	if rv := labelReviewsRe.FindStringSubmatch(label); rv != nil {
		reviews = strings.ReplaceAll(rv[1], ",", "")
	}
	return rating, reviews, nil
}

// ParseCompactRating parses the compact "4.5 (1,234)" form.
func ParseCompactRating(text string) (rating, reviews string, err error) {
	// The count must not be read as the rating when the rating is missing.
	head := text
	if i := strings.Index(text, "("); i >= 0 {
		head = text[:i]
	}
	if m := ratingRe.FindStringSubmatch(head); m != nil {
		rating = m[1]
	}
	if rv := compactReviewsRe.FindStringSubmatch(text); rv != nil {
		reviews = strings.ReplaceAll(rv[1], ",", "")
	}
	if rating == "" && reviews == "" {
		return "", "", fmt.Errorf("%w: compact rating %q", ErrParse, text)
	}
	return rating, reviews, nil
}

// resolveRating fills rating and review count independently from the
// first lookup that yields each.
func (s *Scraper) resolveRating(page browser.Page, card browser.Element) (rating, reviews string) {
	for _, l := range ratingLookups {
		r, rv, err := l.read(page, card)
		if err != nil {
			s.logMiss("rating", l.name, err)
			continue
		}
		if rating == "" {
			rating = r
		}
		if reviews == "" {
			reviews = rv
		}
		if rating != "" && reviews != "" {
			break
		}
	}
	return rating, reviews
}

func ratingFromLabel(selector string) func(browser.Page, browser.Element) (string, string, error) {
	return func(page browser.Page, _ browser.Element) (string, string, error) {
		el, err := page.Find(selector)
		if err != nil {
			return "", "", err
		}
		label, err := el.Attribute("aria-label")
		if err != nil {
			return "", "", err
		}
		return ParseRatingLabel(label)
	}
}

func ratingFromCompact(selector string) func(browser.Page, browser.Element) (string, string, error) {
	return func(page browser.Page, _ browser.Element) (string, string, error) {
		el, err := page.Find(selector)
		if err != nil {
			return "", "", err
		}
		text, err := el.Text()
		if err != nil {
			return "", "", err
		}
		return ParseCompactRating(strings.TrimSpace(text))
	}
}

// ratingFromCard joins the card's rating and count spans into the compact
// form.
func ratingFromCard(ratingSel, countSel string) func(browser.Page, browser.Element) (string, string, error) {
	return func(_ browser.Page, card browser.Element) (string, string, error) {
		if card == nil {
			return "", "", errNoCard
		}
		el, err := card.Find(ratingSel)
		if err != nil {
			return "", "", err
		}
		text, err := el.Text()
		if err != nil {
			return "", "", err
		}
		if c, err := card.Find(countSel); err == nil {
			if ct, err := c.Text(); err == nil {
				text += " " + ct
			}
		}
		return ParseCompactRating(strings.TrimSpace(text))
	}
}
