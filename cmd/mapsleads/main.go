// Command mapsleads scrapes business listings from a map search and
// writes them to CSV or XLSX, either from the command line or as a
// background job service.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"mapsleads/internal/browser"
	"mapsleads/internal/config"
	"mapsleads/internal/contacts"
	"mapsleads/internal/scraper"
)

var configPath string

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "mapsleads",
		Short:         "Extract business listings from map searches",
		Long:          "Extract names, websites, ratings, addresses and phones from a map search, optionally enriched with contacts mined from each business website.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML configuration file")

	root.AddCommand(newScrapeCmd())
	root.AddCommand(newServeCmd())
	root.AddCommand(newNormalizeCmd())
	return root
}

// loadConfig reads the configuration and builds the process logger.
func loadConfig() (config.Config, *slog.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return cfg, nil, err
	}
	level, _ := cfg.Level()
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(log)
	return cfg, log, nil
}

// newScraper wires a browser-backed Scraper with a website contact miner.
func newScraper(cfg config.Config, log *slog.Logger) *scraper.Scraper {
	open := func(ctx context.Context) (scraper.Session, error) {
		return browser.Open(ctx, cfg.BrowserSettings(log))
	}
	miner := contacts.NewMiner(cfg.MinerSettings(log))
	return scraper.New(open, miner, cfg.ScraperSettings(log))
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		stop()
		os.Exit(1)
	}
}
