// Package target turns free-form user input into the canonical Google Maps
// search URL the scraper navigates to.
package target

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// MapsSearchBase is the prefix of every search URL built from query text.
const MapsSearchBase = "https://www.google.com/maps/search/"

// ErrInvalidInput is returned for empty or unparseable input.
var ErrInvalidInput = errors.New("invalid input")

// Normalize returns the SearchTarget for raw input.
//
// A search-engine URL carrying a q= parameter is rebuilt as a maps search
// for the decoded query; a URL that already points at Google Maps is
// returned unchanged; anything else is treated as query terms.
func Normalize(raw string) (string, error) {
	in := strings.TrimSpace(raw)
	if in == "" {
		return "", fmt.Errorf("%w: empty query", ErrInvalidInput)
	}

	if q, ok, err := searchQuery(in); err != nil {
		return "", err
	} else if ok {
		return FromQuery(q)
	}

	if u, ok := parseHTTP(in); ok && isMapsHost(u) {
		return u.String(), nil
	}

	return FromQuery(in)
}

// FromQuery builds a maps search URL from plain query terms.
func FromQuery(q string) (string, error) {
	q = strings.Join(strings.Fields(q), " ")
	if q == "" {
		return "", fmt.Errorf("%w: empty query", ErrInvalidInput)
	}
	return MapsSearchBase + url.QueryEscape(q), nil
}

// IsMapsURL reports whether s already targets the map interface. A
// missing scheme is accepted.
func IsMapsURL(s string) bool {
	u, ok := parseHTTP(s)
	return ok && isMapsHost(u)
}

func isMapsHost(u *url.URL) bool {
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	switch {
	case strings.HasPrefix(host, "maps.google."):
		return true
	case host == "maps.app.goo.gl":
		return true
	case host == "goo.gl" && strings.HasPrefix(u.Path, "/maps"):
		return true
	case strings.HasPrefix(host, "google.") && (u.Path == "/maps" || strings.HasPrefix(u.Path, "/maps/")):
		return true
	}
	return false
}

// isSearchHost reports whether u is a search-engine results page whose q=
// parameter holds the user's query. Maps place and directions URLs keep
// their own shape and are not search pages.
func isSearchHost(u *url.URL) bool {
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	switch {
	case strings.HasPrefix(host, "google."):
		p := u.Path
		return p == "" || p == "/" || p == "/search" || p == "/maps" || strings.HasPrefix(p, "/maps/search")
	case host == "bing.com", host == "duckduckgo.com", host == "html.duckduckgo.com":
		return true
	}
	return false
}

// searchQuery extracts the decoded q= value of a search-engine URL.
// ok is false when s is not such a URL.
func searchQuery(s string) (q string, ok bool, err error) {
	u, isURL := parseHTTP(s)
	if !isURL || !isSearchHost(u) || !strings.Contains(u.RawQuery, "q=") {
		return "", false, nil
	}
	values, err := url.ParseQuery(u.RawQuery)
	if err != nil {
		return "", false, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	q = values.Get("q")
	if !values.Has("q") {
		return "", false, nil
	}
	if strings.TrimSpace(q) == "" {
		return "", false, fmt.Errorf("%w: empty q parameter", ErrInvalidInput)
	}
	return q, true, nil
}

func parseHTTP(s string) (*url.URL, bool) {
	candidate := s
	lower := strings.ToLower(s)
	if !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://") {
		if strings.ContainsAny(s, " \t") || !strings.Contains(s, ".") || !strings.Contains(s, "/") {
			return nil, false
		}
		candidate = "https://" + s
	}
	u, err := url.Parse(candidate)
	if err != nil || u.Host == "" {
		return nil, false
	}
	return u, true
}
