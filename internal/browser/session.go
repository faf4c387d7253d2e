// Package browser owns the Chrome session used for one scrape: launch,
// navigation and guaranteed teardown.
package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

// Config configures a Session.
type Config struct {
	Headless bool
	// Bin is the Chrome binary. Empty lets rod find or download one.
	Bin string
	// RemoteURL connects to an already running Chrome instead of launching.
	RemoteURL string
	Width     int
	Height    int
	Lang      string
	// ActionTimeout bounds every single element action (click, scroll,
	// eval). Default: 10s.
	ActionTimeout time.Duration
	// NavigateTimeout bounds Navigate. Default: 60s.
	NavigateTimeout time.Duration

	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.Width <= 0 {
		c.Width = 1366
	}
	if c.Height <= 0 {
		c.Height = 768
	}
	if c.Lang == "" {
		c.Lang = "en-US"
	}
	if c.ActionTimeout <= 0 {
		c.ActionTimeout = 10 * time.Second
	}
	if c.NavigateTimeout <= 0 {
		c.NavigateTimeout = 60 * time.Second
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Session is a single-use browser with one tab. It implements Page.
// A Session must not be shared between scrapes.
type Session struct {
	cfg     Config
	lnch    *launcher.Launcher
	browser *rod.Browser
	page    *rod.Page

	closeOnce sync.Once
	closeErr  error
}

// Open launches Chrome and opens the tab. On error everything acquired so
// far is released.
func Open(ctx context.Context, cfg Config) (*Session, error) {
	cfg.defaults()
	s := &Session{cfg: cfg}
	if err := s.start(ctx); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func (s *Session) start(ctx context.Context) error {
	log := s.cfg.Logger

	wsURL := s.cfg.RemoteURL
	if wsURL == "" {
		l := launcher.New().
			Headless(s.cfg.Headless).
			NoSandbox(true).
			Devtools(false).
			Set("disable-gpu").
			Set("window-size", strconv.Itoa(s.cfg.Width)+","+strconv.Itoa(s.cfg.Height)).
			Set("lang", s.cfg.Lang)
		if s.cfg.Bin != "" {
			if _, err := os.Stat(s.cfg.Bin); err != nil {
				return fmt.Errorf("browser: chrome binary %s: %w", s.cfg.Bin, err)
			}
			l = l.Bin(s.cfg.Bin)
		}
		u, err := l.Context(ctx).Launch()
		if err != nil {
			return fmt.Errorf("browser: launch: %w", err)
		}
		s.lnch = l
		wsURL = u
		log.Info("browser: launched chrome", "headless", s.cfg.Headless)
	}

	b := rod.New().ControlURL(wsURL)
	if err := b.Connect(); err != nil {
		return fmt.Errorf("browser: connect: %w", err)
	}
	s.browser = b

	page, err := b.Page(proto.TargetCreateTarget{})
	if err != nil {
		return fmt.Errorf("browser: create tab: %w", err)
	}
	s.page = page

	if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:  s.cfg.Width,
		Height: s.cfg.Height,
	}); err != nil {
		return fmt.Errorf("browser: viewport: %w", err)
	}
	if _, err := page.SetExtraHeaders([]string{"Accept-Language", s.cfg.Lang}); err != nil {
		log.Warn("browser: accept-language header failed", "error", err)
	}
	return nil
}

// Navigate loads url in the session tab and waits for the load event.
func (s *Session) Navigate(ctx context.Context, url string) error {
	navCtx, cancel := context.WithTimeout(ctx, s.cfg.NavigateTimeout)
	defer cancel()

	p := s.page.Context(navCtx)
	if err := p.Navigate(url); err != nil {
		return fmt.Errorf("browser: navigate %s: %w", url, err)
	}
	if err := p.WaitLoad(); err != nil {
		s.cfg.Logger.Warn("browser: wait load", "url", url, "error", err)
	}
	return nil
}

// Find returns the first element matching selector.
func (s *Session) Find(selector string) (Element, error) {
	p, cancel := s.timed()
	defer cancel()
	ok, el, err := p.Has(selector)
	if err != nil {
		return nil, fmt.Errorf("browser: find %s: %w", selector, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, selector)
	}
	return s.wrap(el), nil
}

// FindAll returns every element matching selector, possibly none.
func (s *Session) FindAll(selector string) ([]Element, error) {
	p, cancel := s.timed()
	defer cancel()
	els, err := p.Elements(selector)
	if err != nil {
		return nil, fmt.Errorf("browser: find all %s: %w", selector, err)
	}
	out := make([]Element, 0, len(els))
	for _, el := range els {
		out = append(out, s.wrap(el))
	}
	return out, nil
}

// Nth returns the i-th element matching selector, queried afresh.
func (s *Session) Nth(selector string, i int) (Element, error) {
	p, cancel := s.timed()
	defer cancel()
	obj, err := p.Evaluate(rod.Eval(`(sel, i) => document.querySelectorAll(sel)[i] || null`, selector, i).ByObject())
	if err != nil {
		return nil, fmt.Errorf("browser: nth %s[%d]: %w", selector, i, err)
	}
	if obj.ObjectID == "" {
		return nil, fmt.Errorf("%w: %s[%d]", ErrNotFound, selector, i)
	}
	el, err := p.ElementFromObject(obj)
	if err != nil {
		return nil, fmt.Errorf("browser: nth %s[%d]: %w", selector, i, err)
	}
	return s.wrap(el), nil
}

// URL returns the tab's current address.
func (s *Session) URL() (string, error) {
	p, cancel := s.timed()
	defer cancel()
	info, err := p.Info()
	if err != nil {
		return "", fmt.Errorf("browser: page info: %w", err)
	}
	return info.URL, nil
}

// Close releases the tab, the browser connection and the Chrome process.
// It is safe to call more than once.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		var errs []error
		if s.browser != nil {
			if err := s.browser.Close(); err != nil {
				errs = append(errs, fmt.Errorf("browser: close: %w", err))
			}
		}
		if s.lnch != nil {
			s.lnch.Kill()
			s.lnch.Cleanup()
		}
		s.closeErr = errors.Join(errs...)
		s.cfg.Logger.Debug("browser: session closed")
	})
	return s.closeErr
}

// timed scopes one lookup or action to ActionTimeout.
func (s *Session) timed() (*rod.Page, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(s.page.GetContext(), s.cfg.ActionTimeout)
	return s.page.Context(ctx), cancel
}

// wrap detaches el from the lookup deadline so the handle stays usable
// for as long as its node lives.
func (s *Session) wrap(el *rod.Element) Element {
	return &rodElement{el: el.Context(s.page.GetContext()), timeout: s.cfg.ActionTimeout}
}

type rodElement struct {
	el      *rod.Element
	timeout time.Duration
}

func (e *rodElement) timed() (*rod.Element, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(e.el.GetContext(), e.timeout)
	return e.el.Context(ctx), cancel
}

func (e *rodElement) Text() (string, error) {
	el, cancel := e.timed()
	defer cancel()
	return el.Text()
}

func (e *rodElement) Attribute(name string) (string, error) {
	el, cancel := e.timed()
	defer cancel()
	v, err := el.Attribute(name)
	if err != nil {
		return "", err
	}
	if v == nil {
		return "", fmt.Errorf("%w: attribute %s", ErrNotFound, name)
	}
	return *v, nil
}

func (e *rodElement) Find(selector string) (Element, error) {
	el, cancel := e.timed()
	defer cancel()
	ok, found, err := el.Has(selector)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, selector)
	}
	return &rodElement{el: found.Context(e.el.GetContext()), timeout: e.timeout}, nil
}

func (e *rodElement) ScrollIntoView() error {
	el, cancel := e.timed()
	defer cancel()
	_, err := el.Eval(`() => this.scrollIntoView({block: 'center'})`)
	return err
}

func (e *rodElement) Click() error {
	el, cancel := e.timed()
	defer cancel()
	return el.Click(proto.InputMouseButtonLeft, 1)
}

func (e *rodElement) ScrollHeight() (int, error) {
	el, cancel := e.timed()
	defer cancel()
	res, err := el.Eval(`() => this.scrollHeight`)
	if err != nil {
		return 0, err
	}
	return res.Value.Int(), nil
}

func (e *rodElement) ScrollToBottom() error {
	el, cancel := e.timed()
	defer cancel()
	_, err := el.Eval(`() => { this.scrollTop = this.scrollHeight }`)
	return err
}
