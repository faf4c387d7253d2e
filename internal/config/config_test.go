package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default invalid: %v", err)
	}
	if !cfg.Browser.Headless || cfg.Scrape.Limit != 60 || !cfg.Scrape.Enrich {
		t.Errorf("defaults: %+v", cfg)
	}
	if cfg.Scrape.ScrollDelay != 1600*time.Millisecond || cfg.Miner.Timeout != 12*time.Second {
		t.Errorf("delays: %+v %+v", cfg.Scrape, cfg.Miner)
	}
}

func TestLoad_YAMLAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mapsleads.yaml")
	yml := `
browser:
  headless: false
  bin: /opt/chrome
scrape:
  limit: 120
  scroll_delay: 2s
miner:
  requests_per_second: 4
log_level: debug
`
	if err := os.WriteFile(path, []byte(yml), 0o644); err != nil {
		t.Fatal(err)
	}
	chdir(t, dir)
	t.Setenv("MAPSLEADS_LIMIT", "90")
	t.Setenv("MAPSLEADS_ENRICH", "false")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Browser.Headless || cfg.Browser.Bin != "/opt/chrome" {
		t.Errorf("browser: %+v", cfg.Browser)
	}
	if cfg.Scrape.Limit != 90 || cfg.Scrape.Enrich {
		t.Errorf("env override lost: %+v", cfg.Scrape)
	}
	if cfg.Scrape.ScrollDelay != 2*time.Second || cfg.Scrape.SelectDelay != 2200*time.Millisecond {
		t.Errorf("delays: %+v", cfg.Scrape)
	}
	if cfg.Miner.RequestsPerSecond != 4 {
		t.Errorf("miner: %+v", cfg.Miner)
	}
	if l, _ := cfg.Level(); l != slog.LevelDebug {
		t.Errorf("level: %v", l)
	}
}

func TestLoad_DotEnv(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("MAPSLEADS_ADDR=:9191\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	chdir(t, dir)
	t.Setenv("MAPSLEADS_ADDR", "")
	os.Unsetenv("MAPSLEADS_ADDR")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Addr != ":9191" {
		t.Errorf("addr: got %q", cfg.Server.Addr)
	}
}

func TestLoad_Errors(t *testing.T) {
	chdir(t, t.TempDir())
	if _, err := Load("/does/not/exist.yaml"); err == nil {
		t.Error("missing file accepted")
	}

	t.Setenv("MAPSLEADS_LIMIT", "many")
	if _, err := Load(""); err == nil {
		t.Error("bad integer accepted")
	}

	t.Setenv("MAPSLEADS_LIMIT", "900")
	if _, err := Load(""); err == nil {
		t.Error("limit above maximum accepted")
	}
}

func TestSettingsConversion(t *testing.T) {
	cfg := Default()
	log := slog.Default()
	if b := cfg.BrowserSettings(log); b.Width != 1366 || b.Lang != "en-US" || !b.Headless {
		t.Errorf("browser settings: %+v", b)
	}
	if s := cfg.ScraperSettings(log); s.Delays.FirstPaint != 4*time.Second || s.MaxStagnant != 3 {
		t.Errorf("scraper settings: %+v", s)
	}
	if m := cfg.MinerSettings(log); m.UserAgent != "Mozilla/5.0" {
		t.Errorf("miner settings: %+v", m)
	}
}

// chdir changes the working directory for the duration of the test and
// restores it on cleanup (equivalent to testing.T.Chdir in Go 1.24+).
func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(old); err != nil {
			t.Fatal(err)
		}
	})
}
