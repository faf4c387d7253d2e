package scraper

import (
	"context"
	"errors"
	"testing"

	"mapsleads/internal/browser/browsertest"
)

func TestExtract_CompactRatingFallback(t *testing.T) {
	page := browsertest.MustNew(`<div role="main">
<h1 class="DUwDvf">Taco Stand</h1>
<div class="F7nice"><span class="MW4etd">4.5 (120)</span></div>
</div>`)
	s := newTestScraper(page, nil)

	rec, err := s.Extract(context.Background(), page, nil)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if rec.Rating != "4.5" || rec.ReviewCount != "120" {
		t.Errorf("rating/reviews: got %q/%q, want 4.5/120", rec.Rating, rec.ReviewCount)
	}
	if rec.Name != "Taco Stand" {
		t.Errorf("name: got %q", rec.Name)
	}
}

func TestExtract_MissingEverything(t *testing.T) {
	page := browsertest.MustNew(`<div role="main"><p>Nothing here</p></div>`)
	rec, err := newTestScraper(page, nil).Extract(context.Background(), page, nil)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if rec.Rating != "" || rec.ReviewCount != "" || rec.Name != "" || rec.Address != "" || rec.PhoneFromListing != "" || rec.Website != "" {
		t.Errorf("want empty fields, got %+v", rec)
	}
	if rec.SourceURL != "about:blank" {
		t.Errorf("source url: got %q", rec.SourceURL)
	}
}

func TestExtract_CardFallbacks(t *testing.T) {
	// the opened panel lacks heading, phone and rating label.
	page := browsertest.MustNew(`
<div aria-label="Results for bakeries">
  <div class="Nv2PK" data-opens="a">
    <div class="qBF1Pd">Corner Bakery</div>
    <span class="MW4etd">4.8</span><span class="UY7F9">(2,345)</span>
    <span class="UsdlK">020 7946 0000</span>
  </div>
</div>
<div data-panel="a">
  <div class="Io6YTe">Open until 6 PM</div>
  <div class="Io6YTe">12 High St, Leeds LS1 1AA</div>
</div>`)
	s := newTestScraper(page, nil)
	entries, _ := page.FindAll(entrySelector)
	if len(entries) != 1 {
		t.Fatalf("entries: %d", len(entries))
	}

	rec, err := s.Extract(context.Background(), page, entries[0])
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	want := BusinessRecord{
		Name:             "Corner Bakery",
		Rating:           "4.8",
		ReviewCount:      "2345",
		Address:          "12 High St, Leeds LS1 1AA",
		PhoneFromListing: "020 7946 0000",
		SourceURL:        "about:blank",
	}
	if rec != want {
		t.Errorf("got  %+v\nwant %+v", rec, want)
	}
}

func TestExtract_LabelWithoutCount(t *testing.T) {
	// The label carries no review count; the compact text fills it in.
	page := browsertest.MustNew(`
<span role="img" aria-label="4.3 stars"></span>
<span class="MW4etd">4.3 (87)</span>`)
	rec, err := newTestScraper(page, nil).Extract(context.Background(), page, nil)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if rec.Rating != "4.3" || rec.ReviewCount != "87" {
		t.Errorf("got %q/%q", rec.Rating, rec.ReviewCount)
	}
}

func TestExtract_SelectionFailure(t *testing.T) {
	tests := []struct {
		name string
		attr string
	}{
		{"click", "data-fail-click"},
		{"scroll", "data-fail-scroll"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page := browsertest.MustNew(`<div class="Nv2PK" ` + tt.attr + `><div class="qBF1Pd">Gone</div></div>`)
			entries, _ := page.FindAll(entrySelector)
			_, err := newTestScraper(page, nil).Extract(context.Background(), page, entries[0])
			if !errors.Is(err, ErrSelection) {
				t.Fatalf("got %v, want ErrSelection", err)
			}
			if !errors.Is(err, browsertest.ErrDetached) {
				t.Errorf("cause lost: %v", err)
			}
		})
	}
}

func TestParseRatingLabel(t *testing.T) {
	tests := []struct {
		label, rating, reviews string
		wantErr                bool
	}{
		{"4.5 stars 1,234 Reviews", "4.5", "1234", false},
		{"4 stars 12 reviews", "4", "12", false},
		{"3.9 stars", "3.9", "", false},
		{" 5.0 stars 1 review", "5.0", "1", false},
		{"stars", "", "", true},
	}
	for _, tt := range tests {
		r, rv, err := ParseRatingLabel(tt.label)
		if (err != nil) != tt.wantErr {
			t.Errorf("%q: err = %v", tt.label, err)
			continue
		}
		if r != tt.rating || rv != tt.reviews {
			t.Errorf("%q: got %q/%q, want %q/%q", tt.label, r, rv, tt.rating, tt.reviews)
		}
	}
}

func TestParseCompactRating(t *testing.T) {
	tests := []struct {
		text, rating, reviews string
		wantErr               bool
	}{
		{"4.5 (120)", "4.5", "120", false},
		{"4.1(1,024)", "4.1", "1024", false},
		{"4.7", "4.7", "", false},
		{"(35)", "", "35", false},
		{"No reviews", "", "", true},
		{"", "", "", true},
	}
	for _, tt := range tests {
		r, rv, err := ParseCompactRating(tt.text)
		if (err != nil) != tt.wantErr {
			t.Errorf("%q: err = %v", tt.text, err)
			continue
		}
		if tt.wantErr && !errors.Is(err, ErrParse) {
			t.Errorf("%q: got %v, want ErrParse", tt.text, err)
		}
		if r != tt.rating || rv != tt.reviews {
			t.Errorf("%q: got %q/%q, want %q/%q", tt.text, r, rv, tt.rating, tt.reviews)
		}
	}
}
