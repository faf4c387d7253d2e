package scraper

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"mapsleads/internal/browser/browsertest"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestScraper(page *browsertest.Page, enricher Enricher) *Scraper {
	open := func(context.Context) (Session, error) { return page, nil }
	return New(open, enricher, Config{Logger: quietLogger()})
}

// card describes one fixture business.
type card struct {
	batch     int
	failClick bool
	noPanel   bool
}

// listFixture renders a results list of len(cards) entries. Entry i opens a
// detail panel for "Business i" with every field populated.
func listFixture(cards []card) string {
	var b strings.Builder
	b.WriteString(`<div role="feed" aria-label="Results for coffee">`)
	for i, c := range cards {
		n := i + 1
		attrs := fmt.Sprintf(`class="Nv2PK" data-batch="%d" data-opens="p%d" data-url="https://www.google.com/maps/place/Business+%d"`, c.batch, n, n)
		if c.failClick {
			attrs += ` data-fail-click`
		}
		fmt.Fprintf(&b, `<div %s><div class="qBF1Pd">Card %d</div><span class="MW4etd">4.%d</span><span class="UY7F9">(%d)</span><span class="UsdlK">+1 555-010%d</span></div>`,
			attrs, n, n%10, n*10, n%10)
	}
	b.WriteString(`</div>`)
	for i, c := range cards {
		if c.noPanel {
			continue
		}
		n := i + 1
		fmt.Fprintf(&b, `<div role="main" data-panel="p%d">
<h1 class="DUwDvf"> Business %d </h1>
<span role="img" aria-label="4.%d stars 1,%03d Reviews"></span>
<a data-item-id="authority" href="https://business%d.example/">Website</a>
<button data-item-id="address">%d Main St, Springfield</button>
<button data-item-id="phone:tel:+15550200%d">+1 555-0200%d</button>
</div>`, n, n, n%10, n, n, n, n%10, n%10)
	}
	return b.String()
}

func uniformCards(n int) []card {
	return make([]card, n)
}
