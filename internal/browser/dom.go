package browser

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a selector matches nothing.
var ErrNotFound = errors.New("browser: element not found")

// Page is the live document the scraper reads and drives. Lookups use CSS
// selectors and return immediately; they never wait for an element to
// appear.
type Page interface {
	Navigate(ctx context.Context, url string) error
	Find(selector string) (Element, error)
	FindAll(selector string) ([]Element, error)
	// Nth returns the i-th match of selector at call time, or ErrNotFound.
	// Handles of re-rendered lists go stale; Nth fetches a fresh one.
	Nth(selector string, i int) (Element, error)
	// URL is the document's current address.
	URL() (string, error)
}

// Element is one node of a Page.
type Element interface {
	Text() (string, error)
	// Attribute returns ErrNotFound when the attribute is absent.
	Attribute(name string) (string, error)
	Find(selector string) (Element, error)
	// ScrollIntoView centres the element in its scroll container.
	ScrollIntoView() error
	Click() error
	ScrollHeight() (int, error)
	// ScrollToBottom sets scrollTop to the current scrollHeight.
	ScrollToBottom() error
}
