package loader

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/stupiduntilnot/dataingest/internal/dataset"
)

var (
	ErrFetch    = errors.New("fetch failed")
	ErrParse    = errors.New("failed to parse csv")
	ErrTooLarge = errors.New("source exceeds size limit")
)

// Options configures a Loader.
type Options struct {
	Timeout    time.Duration
	MaxBytes   int64
	Encoding   string
	LazyQuotes bool
}

// Loader reads a whole CSV document from a URL or path into a Dataset.
type Loader struct {
	opts       Options
	httpClient *http.Client
	logger     *zap.Logger
}

// New creates a Loader. A nil logger discards log output.
func New(opts Options, logger *zap.Logger) *Loader {
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = 64 << 20
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{
		opts: opts,
		httpClient: &http.Client{
			Timeout: opts.Timeout,
			Transport: &http.Transport{
				Proxy:             http.ProxyFromEnvironment,
				DisableKeepAlives: true,
			},
		},
		logger: logger,
	}
}

// Load fetches source and parses it as CSV. source may be an http(s) URL,
// a file:// URL or a filesystem path.
func (l *Loader) Load(ctx context.Context, source string) (*dataset.Dataset, error) {
	raw, err := l.read(ctx, source)
	if err != nil {
		l.logger.Error("Unexpected error occurred while loading the data", zap.String("source", source), zap.Error(err))
		return nil, err
	}

	ds, err := Parse(raw, l.opts.Encoding, l.opts.LazyQuotes)
	if err != nil {
		if errors.Is(err, ErrParse) {
			l.logger.Error("Failed to parse the CSV file", zap.String("source", source), zap.Error(err))
		} else {
			l.logger.Error("Unexpected error occurred while loading the data", zap.String("source", source), zap.Error(err))
		}
		return nil, err
	}

	l.logger.Debug("Data loaded",
		zap.String("source", source),
		zap.Int("rows", ds.Len()),
		zap.Strings("columns", ds.Columns()),
	)
	return ds, nil
}

// Parse decodes raw bytes with the given encoding and parses them as CSV.
// With lazyQuotes, a document rejected only for a bare quote in an unquoted
// field is read again leniently; other quoting errors still fail.
func Parse(raw []byte, encoding string, lazyQuotes bool) (*dataset.Dataset, error) {
	text, err := Decode(raw, encoding)
	if err != nil {
		return nil, err
	}

	records, err := readRecords(text, false)
	if err != nil && lazyQuotes && errors.Is(err, csv.ErrBareQuote) {
		records, err = readRecords(text, true)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrParse, err)
	}

	ds, err := dataset.FromRecords(records)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrParse, err)
	}
	return ds, nil
}

func readRecords(text []byte, lazy bool) ([][]string, error) {
	r := csv.NewReader(bytes.NewReader(text))
	r.LazyQuotes = lazy
	return r.ReadAll()
}

func (l *Loader) read(ctx context.Context, source string) ([]byte, error) {
	source = strings.TrimSpace(source)
	if source == "" {
		return nil, fmt.Errorf("source is empty")
	}
	u, err := url.Parse(source)
	if err == nil {
		switch strings.ToLower(u.Scheme) {
		case "http", "https":
			return l.fetch(ctx, source)
		case "file":
			return l.readFile(u.Path)
		}
	}
	return l.readFile(source)
}

func (l *Loader) fetch(ctx context.Context, source string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: create request: %w", ErrFetch, err)
	}
	req.Header.Set("Accept", "text/csv, text/plain, */*")

	resp, err := l.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetch, err)
	}
	defer resp.Body.Close()

	body, err := l.readLimited(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: status=%d body=%s", ErrFetch, resp.StatusCode, truncate(string(body), 400))
	}
	return body, nil
}

func (l *Loader) readFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open source: %w", err)
	}
	defer f.Close()
	return l.readLimited(f)
}

func (l *Loader) readLimited(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, l.opts.MaxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read source: %w", err)
	}
	if int64(len(data)) > l.opts.MaxBytes {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrTooLarge, l.opts.MaxBytes)
	}
	return data, nil
}

func truncate(s string, maxChars int) string {
	runes := []rune(s)
	if len(runes) <= maxChars {
		return s
	}
	return string(runes[:maxChars])
}
