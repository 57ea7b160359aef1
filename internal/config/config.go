package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultSourceURL is the spam/ham SMS dataset ingested when no source is configured.
const DefaultSourceURL = "https://raw.githubusercontent.com/vikashishere/Datasets/refs/heads/main/spam.csv"

// Config holds all ingestion settings.
type Config struct {
	Source     SourceConfig     `yaml:"source"`
	Preprocess PreprocessConfig `yaml:"preprocess"`
	Split      SplitConfig      `yaml:"split"`
	Output     OutputConfig     `yaml:"output"`
	Logging    LoggingConfig    `yaml:"logging"`
	Ledger     LedgerConfig     `yaml:"ledger"`
}

// SourceConfig configures where and how the raw CSV is read.
type SourceConfig struct {
	URL        string `yaml:"url"`
	Encoding   string `yaml:"encoding"` // auto, utf-8, latin-1, windows-1252
	Timeout    string `yaml:"timeout"`
	MaxBytes   int64  `yaml:"max_bytes"`
	LazyQuotes bool   `yaml:"lazy_quotes"`
}

// RenameConfig maps one source column to its new name.
type RenameConfig struct {
	From string `yaml:"from"`
	To   string `yaml:"to"`
}

type PreprocessConfig struct {
	Drop   []string       `yaml:"drop"`
	Rename []RenameConfig `yaml:"rename"`
}

type SplitConfig struct {
	TestSize float64 `yaml:"test_size"`
	Seed     int64   `yaml:"seed"`
}

type OutputConfig struct {
	DataDir string `yaml:"data_dir"`
}

type LoggingConfig struct {
	Name  string `yaml:"name"`
	Level string `yaml:"level"` // debug, info, warn, error
	File  string `yaml:"file"`
}

// LedgerConfig configures the SQLite run ledger.
type LedgerConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// ValidEncodings lists the accepted source.encoding values.
var ValidEncodings = []string{"auto", "utf-8", "latin-1", "windows-1252"}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Source: SourceConfig{
			URL:        DefaultSourceURL,
			Encoding:   "auto",
			Timeout:    "60s",
			MaxBytes:   64 << 20,
			LazyQuotes: true,
		},
		Preprocess: PreprocessConfig{
			Drop: []string{"Unnamed: 2", "Unnamed: 3", "Unnamed: 4"},
			Rename: []RenameConfig{
				{From: "v1", To: "target"},
				{From: "v2", To: "text"},
			},
		},
		Split: SplitConfig{
			TestSize: 0.2,
			Seed:     42,
		},
		Output: OutputConfig{
			DataDir: "./data",
		},
		Logging: LoggingConfig{
			Name:  "data_ingestion",
			Level: "debug",
			File:  "./logs/data_ingestion.log",
		},
		Ledger: LedgerConfig{
			Enabled: true,
			Path:    "./logs/ingest.db",
		},
	}
}

// Load reads configuration from a YAML file and applies INGEST_*
// environment overrides. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
			}
		case os.IsNotExist(err):
		default:
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

func (c *Config) applyEnvOverrides() {
	c.Source.URL = envOrDefault("INGEST_SOURCE_URL", c.Source.URL)
	c.Source.Encoding = envOrDefault("INGEST_SOURCE_ENCODING", c.Source.Encoding)
	c.Source.Timeout = envOrDefault("INGEST_SOURCE_TIMEOUT", c.Source.Timeout)
	c.Source.MaxBytes = int64(envIntOrDefault("INGEST_SOURCE_MAX_BYTES", int(c.Source.MaxBytes)))
	c.Source.LazyQuotes = envBoolOrDefault("INGEST_SOURCE_LAZY_QUOTES", c.Source.LazyQuotes)
	c.Split.TestSize = envFloatOrDefault("INGEST_TEST_SIZE", c.Split.TestSize)
	c.Split.Seed = int64(envIntOrDefault("INGEST_SEED", int(c.Split.Seed)))
	c.Output.DataDir = envOrDefault("INGEST_DATA_DIR", c.Output.DataDir)
	c.Logging.Level = envOrDefault("INGEST_LOG_LEVEL", c.Logging.Level)
	c.Logging.File = envOrDefault("INGEST_LOG_FILE", c.Logging.File)
	c.Ledger.Enabled = envBoolOrDefault("INGEST_LEDGER_ENABLED", c.Ledger.Enabled)
	c.Ledger.Path = envOrDefault("INGEST_LEDGER_PATH", c.Ledger.Path)
}

// Validate checks the configuration for values the pipeline cannot run with.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Source.URL) == "" {
		return fmt.Errorf("source.url is required")
	}
	if !isValidEncoding(c.Source.Encoding) {
		return fmt.Errorf("invalid source.encoding: %s (valid: %v)", c.Source.Encoding, ValidEncodings)
	}
	if _, err := time.ParseDuration(c.Source.Timeout); c.Source.Timeout != "" && err != nil {
		return fmt.Errorf("invalid source.timeout %q: %w", c.Source.Timeout, err)
	}
	if c.Source.MaxBytes <= 0 {
		return fmt.Errorf("source.max_bytes must be positive, got %d", c.Source.MaxBytes)
	}
	if c.Split.TestSize <= 0 || c.Split.TestSize >= 1 {
		return fmt.Errorf("split.test_size must be in (0,1), got %v", c.Split.TestSize)
	}
	for i, r := range c.Preprocess.Rename {
		if strings.TrimSpace(r.From) == "" || strings.TrimSpace(r.To) == "" {
			return fmt.Errorf("preprocess.rename[%d] needs both from and to", i)
		}
	}
	if strings.TrimSpace(c.Output.DataDir) == "" {
		return fmt.Errorf("output.data_dir is required")
	}
	if c.Ledger.Enabled && strings.TrimSpace(c.Ledger.Path) == "" {
		return fmt.Errorf("ledger.path is required when the ledger is enabled")
	}
	return nil
}

// FetchTimeout returns the source timeout as a duration; 0 means none.
func (c *Config) FetchTimeout() time.Duration {
	if c.Source.Timeout == "" {
		return 0
	}
	d, err := time.ParseDuration(c.Source.Timeout)
	if err != nil {
		return 60 * time.Second
	}
	return d
}

func isValidEncoding(enc string) bool {
	enc = strings.ToLower(strings.TrimSpace(enc))
	if enc == "" {
		return true
	}
	for _, v := range ValidEncodings {
		if enc == v {
			return true
		}
	}
	return false
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOrDefault(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envFloatOrDefault(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func envBoolOrDefault(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v == "1" || strings.EqualFold(v, "true")
}
