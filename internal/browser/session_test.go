package browser

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-rod/rod/lib/launcher"
)

const listPage = `<!doctype html>
<html><body>
<div id="list" style="height:120px;overflow:auto">
  <div class="item" onclick="this.setAttribute('data-clicked','yes')">one</div>
  <div class="item" onclick="this.setAttribute('data-clicked','yes')">two</div>
  <div class="item" onclick="this.setAttribute('data-clicked','yes')">three</div>
  <div style="height:2000px"></div>
</div>
</body></html>`

func openTestSession(t *testing.T, actionTimeout time.Duration) *Session {
	t.Helper()
	if testing.Short() {
		t.Skip("browser test skipped in short mode")
	}
	bin, ok := launcher.LookPath()
	if !ok {
		t.Skip("no chrome binary found")
	}

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		io.WriteString(w, listPage)
	}))
	t.Cleanup(ts.Close)

	s, err := Open(context.Background(), Config{
		Headless:      true,
		Bin:           bin,
		ActionTimeout: actionTimeout,
		Logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	if err := s.Navigate(context.Background(), ts.URL); err != nil {
		t.Fatalf("navigate: %v", err)
	}
	return s
}

func TestSession_HandlesOutliveActionTimeout(t *testing.T) {
	const timeout = time.Second
	s := openTestSession(t, timeout)

	items, err := s.FindAll(".item")
	if err != nil {
		t.Fatalf("find all: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("items: got %d, want 3", len(items))
	}
	list, err := s.Find("#list")
	if err != nil {
		t.Fatalf("find list: %v", err)
	}

	time.Sleep(timeout + 500*time.Millisecond)

	if err := items[1].ScrollIntoView(); err != nil {
		t.Fatalf("scroll into view after timeout: %v", err)
	}
	if err := items[1].Click(); err != nil {
		t.Fatalf("click after timeout: %v", err)
	}
	if v, err := items[1].Attribute("data-clicked"); err != nil || v != "yes" {
		t.Errorf("clicked attribute: %q, %v", v, err)
	}
	if err := list.ScrollToBottom(); err != nil {
		t.Fatalf("scroll to bottom after timeout: %v", err)
	}
	if h, err := list.ScrollHeight(); err != nil || h < 2000 {
		t.Errorf("scroll height: %d, %v", h, err)
	}
}

func TestSession_Lookups(t *testing.T) {
	s := openTestSession(t, 2*time.Second)

	if _, err := s.Find("#missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("find missing: %v", err)
	}
	third, err := s.Nth(".item", 2)
	if err != nil {
		t.Fatalf("nth: %v", err)
	}
	if text, err := third.Text(); err != nil || text != "three" {
		t.Errorf("nth text: %q, %v", text, err)
	}
	if _, err := s.Nth(".item", 7); !errors.Is(err, ErrNotFound) {
		t.Errorf("nth out of range: %v", err)
	}
	if _, err := third.Attribute("data-missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing attribute: %v", err)
	}
	if _, err := third.Find("span"); !errors.Is(err, ErrNotFound) {
		t.Errorf("child lookup: %v", err)
	}
	if u, err := s.URL(); err != nil || u == "" {
		t.Errorf("url: %q, %v", u, err)
	}
}

func TestSession_CloseIsIdempotent(t *testing.T) {
	s := openTestSession(t, time.Second)
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("second close: %v", err)
	}
}
