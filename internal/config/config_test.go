package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ingest.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if cfg.Source.URL != DefaultSourceURL {
		t.Fatalf("unexpected source url: %s", cfg.Source.URL)
	}
	if cfg.Split.TestSize != 0.2 || cfg.Split.Seed != 42 {
		t.Fatalf("unexpected split defaults: %+v", cfg.Split)
	}
	if cfg.Output.DataDir != "./data" {
		t.Fatalf("unexpected data dir: %s", cfg.Output.DataDir)
	}
	if !cfg.Source.LazyQuotes {
		t.Fatal("expected lazy quotes on by default")
	}
	if cfg.Logging.File != "./logs/data_ingestion.log" {
		t.Fatalf("unexpected log file: %s", cfg.Logging.File)
	}
	if len(cfg.Preprocess.Drop) != 3 || len(cfg.Preprocess.Rename) != 2 {
		t.Fatalf("unexpected preprocess defaults: %+v", cfg.Preprocess)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}

func TestLoad_YAMLOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
source:
  url: file:///tmp/spam.csv
  encoding: latin-1
split:
  test_size: 0.25
  seed: 7
preprocess:
  rename:
    - from: label
      to: target
ledger:
  enabled: false
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Source.URL != "file:///tmp/spam.csv" || cfg.Source.Encoding != "latin-1" {
		t.Fatalf("unexpected source: %+v", cfg.Source)
	}
	if cfg.Source.Timeout != "60s" {
		t.Fatalf("unset keys should keep defaults, got timeout %q", cfg.Source.Timeout)
	}
	if cfg.Split.TestSize != 0.25 || cfg.Split.Seed != 7 {
		t.Fatalf("unexpected split: %+v", cfg.Split)
	}
	if len(cfg.Preprocess.Rename) != 1 || cfg.Preprocess.Rename[0].From != "label" {
		t.Fatalf("unexpected rename: %+v", cfg.Preprocess.Rename)
	}
	if cfg.Ledger.Enabled {
		t.Fatal("expected ledger disabled")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "split: [unterminated")
	if _, err := Load(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestLoad_EnvOverridesYAML(t *testing.T) {
	path := writeConfig(t, "split:\n  seed: 7\n")
	t.Setenv("INGEST_SEED", "99")
	t.Setenv("INGEST_TEST_SIZE", "0.3")
	t.Setenv("INGEST_DATA_DIR", "/tmp/out")
	t.Setenv("INGEST_LEDGER_ENABLED", "false")
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Split.Seed != 99 {
		t.Fatalf("unexpected seed: %d", cfg.Split.Seed)
	}
	if cfg.Split.TestSize != 0.3 {
		t.Fatalf("unexpected test size: %v", cfg.Split.TestSize)
	}
	if cfg.Output.DataDir != "/tmp/out" {
		t.Fatalf("unexpected data dir: %s", cfg.Output.DataDir)
	}
	if cfg.Ledger.Enabled {
		t.Fatal("expected ledger disabled by env")
	}
}

func TestLoad_BadEnvNumberFallsBack(t *testing.T) {
	t.Setenv("INGEST_SEED", "not-a-number")
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Split.Seed != 42 {
		t.Fatalf("unexpected seed: %d", cfg.Split.Seed)
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"empty url", func(c *Config) { c.Source.URL = " " }, "source.url"},
		{"bad encoding", func(c *Config) { c.Source.Encoding = "ebcdic" }, "source.encoding"},
		{"bad timeout", func(c *Config) { c.Source.Timeout = "soon" }, "source.timeout"},
		{"zero max bytes", func(c *Config) { c.Source.MaxBytes = 0 }, "source.max_bytes"},
		{"test size zero", func(c *Config) { c.Split.TestSize = 0 }, "split.test_size"},
		{"test size one", func(c *Config) { c.Split.TestSize = 1 }, "split.test_size"},
		{"half rename", func(c *Config) { c.Preprocess.Rename = []RenameConfig{{From: "v1"}} }, "preprocess.rename[0]"},
		{"empty data dir", func(c *Config) { c.Output.DataDir = "" }, "output.data_dir"},
		{"ledger without path", func(c *Config) { c.Ledger.Path = "" }, "ledger.path"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("unexpected err: %v", err)
			}
		})
	}
}

func TestFetchTimeout(t *testing.T) {
	cfg := DefaultConfig()
	if got := cfg.FetchTimeout(); got != 60*time.Second {
		t.Fatalf("unexpected default timeout: %v", got)
	}
	cfg.Source.Timeout = "5s"
	if got := cfg.FetchTimeout(); got != 5*time.Second {
		t.Fatalf("unexpected timeout: %v", got)
	}
	cfg.Source.Timeout = ""
	if got := cfg.FetchTimeout(); got != 0 {
		t.Fatalf("expected no timeout, got %v", got)
	}
}
