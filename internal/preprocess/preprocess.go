package preprocess

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/stupiduntilnot/dataingest/internal/dataset"
)

var (
	ErrMissingColumn   = errors.New("missing column in the dataset")
	ErrDuplicateColumn = errors.New("rename target already exists")
)

// Rename maps a source column to its new name.
type Rename struct {
	From string
	To   string
}

// Options lists the columns to drop and the renames to apply, in order.
type Options struct {
	Drop    []string
	Renames []Rename
}

// DefaultOptions drops the three placeholder columns of the spam dataset
// and renames v1/v2 to target/text.
func DefaultOptions() Options {
	return Options{
		Drop: []string{"Unnamed: 2", "Unnamed: 3", "Unnamed: 4"},
		Renames: []Rename{
			{From: "v1", To: "target"},
			{From: "v2", To: "text"},
		},
	}
}

type Preprocessor struct {
	opts   Options
	logger *zap.Logger
}

func New(opts Options, logger *zap.Logger) *Preprocessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Preprocessor{opts: opts, logger: logger}
}

// Apply drops the configured columns, tolerating absent ones, then applies
// the renames. A rename whose source column is absent fails with
// ErrMissingColumn.
func (p *Preprocessor) Apply(ds *dataset.Dataset) (*dataset.Dataset, error) {
	out, err := p.apply(ds)
	if err != nil {
		if errors.Is(err, ErrMissingColumn) {
			p.logger.Error("Missing column in the dataset", zap.Error(err))
		} else {
			p.logger.Error("Unexpected error during preprocessing", zap.Error(err))
		}
		return nil, err
	}
	p.logger.Debug("Data preprocessing completed", zap.Strings("columns", out.Columns()))
	return out, nil
}

func (p *Preprocessor) apply(ds *dataset.Dataset) (*dataset.Dataset, error) {
	if ds == nil {
		return nil, fmt.Errorf("dataset is nil")
	}
	out, err := ds.Drop(p.opts.Drop...)
	if err != nil {
		return nil, err
	}
	for _, r := range p.opts.Renames {
		if r.From == r.To {
			continue
		}
		if !out.HasColumn(r.From) {
			return nil, fmt.Errorf("%w: %q", ErrMissingColumn, r.From)
		}
		if out.HasColumn(r.To) {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateColumn, r.To)
		}
		if out, err = out.Rename(r.From, r.To); err != nil {
			return nil, err
		}
	}
	return out, nil
}
