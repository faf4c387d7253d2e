package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"mapsleads/internal/export"
	"mapsleads/internal/scraper"
)

type scrapeOptions struct {
	limit    int
	enrich   bool
	headless bool
	out      string
}

func newScrapeCmd() *cobra.Command {
	var opts scrapeOptions
	cmd := &cobra.Command{
		Use:   "scrape <query|url>",
		Short: "Scrape a map search into a CSV or XLSX file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("headless") {
				cfg.Browser.Headless = opts.headless
			}
			if !cmd.Flags().Changed("enrich") {
				opts.enrich = cfg.Scrape.Enrich
			}
			if !cmd.Flags().Changed("limit") {
				opts.limit = cfg.Scrape.Limit
			}
			if opts.out == "" {
				opts.out = fmt.Sprintf("maps_scrape_%s.csv", time.Now().Format("20060102_150405"))
			}
			if _, err := export.ParseFormat(filepath.Ext(opts.out)); err != nil {
				return err
			}
			return runScrape(cmd.Context(), cmd.OutOrStdout(), newScraper(cfg, log), args[0], opts)
		},
	}
	cmd.Flags().IntVarP(&opts.limit, "limit", "n", scraper.DefaultLimit, "maximum number of listings")
	cmd.Flags().BoolVar(&opts.enrich, "enrich", true, "mine emails and phones from each business website")
	cmd.Flags().BoolVar(&opts.headless, "headless", true, "run the browser without a window")
	cmd.Flags().StringVarP(&opts.out, "out", "o", "", "output file (.csv or .xlsx)")
	return cmd
}

type runner interface {
	Scrape(ctx context.Context, req scraper.Request) (scraper.ResultSet, error)
}

func runScrape(ctx context.Context, w io.Writer, s runner, query string, opts scrapeOptions) error {
	limit := scraper.ClampLimit(opts.limit)
	fmt.Fprintf(w, "🔍 Scraping %q (limit %d, enrich %t)\n", query, limit, opts.enrich)

	bar := newBar(w, limit)
	rs, err := s.Scrape(ctx, scraper.Request{
		Query:    query,
		Limit:    limit,
		Enrich:   opts.enrich,
		Progress: func(p scraper.Progress) { advance(bar, p) },
	})
	bar.Finish()
	fmt.Fprintln(w)

	switch {
	case errors.Is(err, context.Canceled) && len(rs) > 0:
		fmt.Fprintf(w, "⚠️  Interrupted, saving %d records gathered so far\n", len(rs))
	case err != nil:
		return err
	case len(rs) == 0:
		fmt.Fprintln(w, "⚠️  No data found for this search, nothing written")
		return nil
	}

	if err := export.ToFile(opts.out, rs); err != nil {
		return fmt.Errorf("write %s: %w", opts.out, err)
	}
	printSummary(w, rs)
	fmt.Fprintf(w, "✅ File saved: %s\n", opts.out)
	return nil
}

func newBar(w io.Writer, max int) *progressbar.ProgressBar {
	return progressbar.NewOptions(max,
		progressbar.OptionSetWriter(w),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetDescription("[cyan]🔍 Opening browser...[reset]"),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]█[reset]",
			SaucerPadding: "[white]░[reset]",
			BarStart:      "[white]|[reset]",
			BarEnd:        "[white]|[reset]",
		}),
		progressbar.OptionSetWidth(50),
		progressbar.OptionShowCount(),
		progressbar.OptionSetPredictTime(true),
	)
}

// advance maps scrape stages onto the bar. Only extraction moves it.
func advance(bar *progressbar.ProgressBar, p scraper.Progress) {
	switch p.Stage {
	case scraper.StageNavigate:
		bar.Describe("[cyan]🌐 Loading search...[reset]")
	case scraper.StageExpand:
		bar.Describe("[cyan]📜 Loading results...[reset]")
	case scraper.StageExtract:
		if p.Total > 0 && int64(p.Total) != bar.GetMax64() {
			bar.ChangeMax(p.Total)
		}
		bar.Describe("[cyan]📍 Extracting listings...[reset]")
		bar.Set(p.Current)
	case scraper.StageEnrich:
		bar.Describe(fmt.Sprintf("[cyan]✉️  Websites mined: %d[reset]", p.Current))
	case scraper.StageComplete:
		bar.Describe("[green]✔ Done[reset]")
	}
}

func printSummary(w io.Writer, rs scraper.ResultSet) {
	pct := func(n int) float64 { return float64(n) / float64(len(rs)) * 100 }
	withSite := 0
	for _, r := range rs {
		if r.Website != "" {
			withSite++
		}
	}
	fmt.Fprintf(w, "📊 Statistics:\n")
	fmt.Fprintf(w, "   Total listings: %d\n", len(rs))
	fmt.Fprintf(w, "   With website: %d (%.1f%%)\n", withSite, pct(withSite))
	fmt.Fprintf(w, "   With phone: %d (%.1f%%)\n", rs.WithPhone(), pct(rs.WithPhone()))
	fmt.Fprintf(w, "   With email: %d (%.1f%%)\n", rs.WithEmail(), pct(rs.WithEmail()))
}
