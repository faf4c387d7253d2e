// Package browsertest provides an in-memory browser.Page backed by an HTML
// fixture, for testing code that drives the map interface without Chrome.
//
// Fixture attributes steer the simulation:
//
//	data-batch="N"     node is absent until the page was scrolled N times
//	data-panel="ID"    node is absent unless panel ID is the open one
//	data-opens="ID"    clicking the node opens panel ID
//	data-url="URL"     clicking the node changes the page URL
//	data-fail-click    clicking the node fails
//	data-fail-scroll   scrolling the node into view fails
//
// After RerenderOnClick every click re-renders the document: handles
// obtained before it, other than the clicked one, return ErrDetached.
package browsertest

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"mapsleads/internal/browser"
)

// ErrDetached is returned by actions on nodes marked to fail.
var ErrDetached = errors.New("browsertest: element detached")

// Page is a fake browser.Page. It is safe for concurrent use.
type Page struct {
	mu  sync.Mutex
	doc *goquery.Document
	url string

	// heights[k] is the scroll height after k scrolls; the last value repeats.
	heights []int
	scrolls int
	active  string
	clicks  int
	closed  int

	rerender   bool
	generation int

	navigated   []string
	navigateErr error
}

// New parses fixture HTML. heights scripts ScrollHeight for every
// scrollable node; an empty list means a constant height of zero.
func New(fixture string, heights ...int) (*Page, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fixture))
	if err != nil {
		return nil, fmt.Errorf("browsertest: parse fixture: %w", err)
	}
	return &Page{doc: doc, heights: heights, url: "about:blank"}, nil
}

// MustNew is New for fixtures known to be valid.
func MustNew(fixture string, heights ...int) *Page {
	p, err := New(fixture, heights...)
	if err != nil {
		panic(err)
	}
	return p
}

// FailNavigate makes every Navigate call return err.
func (p *Page) FailNavigate(err error) {
	p.mu.Lock()
	p.navigateErr = err
	p.mu.Unlock()
}

// RerenderOnClick makes every successful click invalidate older handles.
func (p *Page) RerenderOnClick() {
	p.mu.Lock()
	p.rerender = true
	p.mu.Unlock()
}

// Navigated lists the URLs passed to Navigate.
func (p *Page) Navigated() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.navigated...)
}

// Scrolls is the number of ScrollToBottom calls so far.
func (p *Page) Scrolls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.scrolls
}

// Clicks is the number of successful clicks so far.
func (p *Page) Clicks() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.clicks
}

// Close records the call; the fixture stays usable.
func (p *Page) Close() error {
	p.mu.Lock()
	p.closed++
	p.mu.Unlock()
	return nil
}

// Closed is the number of Close calls so far.
func (p *Page) Closed() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

func (p *Page) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.navigateErr != nil {
		return p.navigateErr
	}
	p.navigated = append(p.navigated, url)
	p.url = url
	return nil
}

func (p *Page) Find(selector string) (browser.Element, error) {
	return p.find(p.doc.Selection, selector)
}

func (p *Page) FindAll(selector string) ([]browser.Element, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []browser.Element
	p.doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
		if p.visible(s) {
			out = append(out, p.newElement(s))
		}
	})
	return out, nil
}

func (p *Page) Nth(selector string, i int) (browser.Element, error) {
	all, err := p.FindAll(selector)
	if err != nil {
		return nil, err
	}
	if i < 0 || i >= len(all) {
		return nil, fmt.Errorf("%w: %s[%d]", browser.ErrNotFound, selector, i)
	}
	return all[i], nil
}

func (p *Page) URL() (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.url, nil
}

func (p *Page) find(root *goquery.Selection, selector string) (browser.Element, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	var found *goquery.Selection
	root.Find(selector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if p.visible(s) {
			found = s
			return false
		}
		return true
	})
	if found == nil {
		return nil, fmt.Errorf("%w: %s", browser.ErrNotFound, selector)
	}
	return p.newElement(found), nil
}

// newElement must be called with p.mu held.
func (p *Page) newElement(s *goquery.Selection) *element {
	return &element{page: p, sel: s, generation: p.generation}
}

// visible must be called with p.mu held.
func (p *Page) visible(s *goquery.Selection) bool {
	if len(s.Nodes) == 0 {
		return false
	}
	for n := s.Nodes[0]; n != nil; n = n.Parent {
		if v, ok := attr(n, "data-batch"); ok {
			if b, err := strconv.Atoi(v); err == nil && b > p.scrolls {
				return false
			}
		}
		if v, ok := attr(n, "data-panel"); ok && v != p.active {
			return false
		}
	}
	return true
}

func (p *Page) height() int {
	if len(p.heights) == 0 {
		return 0
	}
	if p.scrolls < len(p.heights) {
		return p.heights[p.scrolls]
	}
	return p.heights[len(p.heights)-1]
}

func attr(n *html.Node, name string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == name {
			return a.Val, true
		}
	}
	return "", false
}

type element struct {
	page       *Page
	sel        *goquery.Selection
	generation int
}

// stale must be called with e.page.mu held.
func (e *element) stale() bool {
	return e.page.rerender && e.generation != e.page.generation
}

func (e *element) Text() (string, error) {
	e.page.mu.Lock()
	defer e.page.mu.Unlock()
	if e.stale() || !e.page.visible(e.sel) {
		return "", ErrDetached
	}
	return e.sel.Text(), nil
}

func (e *element) Attribute(name string) (string, error) {
	e.page.mu.Lock()
	stale := e.stale()
	e.page.mu.Unlock()
	if stale {
		return "", ErrDetached
	}
	v, ok := e.sel.Attr(name)
	if !ok {
		return "", fmt.Errorf("%w: attribute %s", browser.ErrNotFound, name)
	}
	return v, nil
}

func (e *element) Find(selector string) (browser.Element, error) {
	e.page.mu.Lock()
	stale := e.stale()
	e.page.mu.Unlock()
	if stale {
		return nil, ErrDetached
	}
	return e.page.find(e.sel, selector)
}

func (e *element) ScrollIntoView() error {
	e.page.mu.Lock()
	defer e.page.mu.Unlock()
	if _, ok := e.sel.Attr("data-fail-scroll"); ok || e.stale() {
		return ErrDetached
	}
	return nil
}

func (e *element) Click() error {
	if _, ok := e.sel.Attr("data-fail-click"); ok {
		return ErrDetached
	}
	e.page.mu.Lock()
	defer e.page.mu.Unlock()
	if e.stale() || !e.page.visible(e.sel) {
		return ErrDetached
	}
	if id, ok := e.sel.Attr("data-opens"); ok {
		e.page.active = id
	}
	if u, ok := e.sel.Attr("data-url"); ok {
		e.page.url = u
	}
	e.page.clicks++
	if e.page.rerender {
		e.page.generation++
		e.generation = e.page.generation
	}
	return nil
}

func (e *element) ScrollHeight() (int, error) {
	e.page.mu.Lock()
	defer e.page.mu.Unlock()
	if e.stale() {
		return 0, ErrDetached
	}
	return e.page.height(), nil
}

func (e *element) ScrollToBottom() error {
	e.page.mu.Lock()
	defer e.page.mu.Unlock()
	if e.stale() {
		return ErrDetached
	}
	e.page.scrolls++
	return nil
}
