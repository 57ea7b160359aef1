package ingest

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/stupiduntilnot/dataingest/internal/config"
	"github.com/stupiduntilnot/dataingest/internal/ledger"
	"github.com/stupiduntilnot/dataingest/internal/loader"
	"github.com/stupiduntilnot/dataingest/internal/persist"
	"github.com/stupiduntilnot/dataingest/internal/preprocess"
	"github.com/stupiduntilnot/dataingest/internal/split"
)

// Step names used in error wrapping and ledger payloads.
const (
	StepLoad       = "load"
	StepPreprocess = "preprocess"
	StepSplit      = "split"
	StepPersist    = "persist"
)

// Report summarizes a successful run.
type Report struct {
	RunID     string
	Source    string
	InputRows int
	TrainRows int
	TestRows  int
	Output    persist.Result
	Duration  time.Duration
}

// Pipeline runs load, preprocess, split and persist once, in that order.
type Pipeline struct {
	cfg          *config.Config
	logger       *zap.Logger
	db           *sql.DB
	loader       *loader.Loader
	preprocessor *preprocess.Preprocessor
	persister    *persist.Persister
	newRunID     func() string
}

// New builds a Pipeline. db may be nil, in which case no ledger is kept.
func New(cfg *config.Config, logger *zap.Logger, db *sql.DB) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	renames := make([]preprocess.Rename, 0, len(cfg.Preprocess.Rename))
	for _, r := range cfg.Preprocess.Rename {
		renames = append(renames, preprocess.Rename{From: r.From, To: r.To})
	}
	return &Pipeline{
		cfg:    cfg,
		logger: logger,
		db:     db,
		loader: loader.New(loader.Options{
			Timeout:    cfg.FetchTimeout(),
			MaxBytes:   cfg.Source.MaxBytes,
			Encoding:   cfg.Source.Encoding,
			LazyQuotes: cfg.Source.LazyQuotes,
		}, logger),
		preprocessor: preprocess.New(preprocess.Options{
			Drop:    cfg.Preprocess.Drop,
			Renames: renames,
		}, logger),
		persister: persist.New(logger),
		newRunID:  func() string { return uuid.NewString() },
	}
}

// Run executes the pipeline. A failing step stops the run; files already
// written are not removed.
func (p *Pipeline) Run(ctx context.Context) (Report, error) {
	started := time.Now()
	report := Report{RunID: p.newRunID(), Source: p.cfg.Source.URL}
	log := p.logger.With(zap.String("run_id", report.RunID))

	rootID := p.startRun(log, report.RunID)

	err := p.run(ctx, log, rootID, &report)
	report.Duration = time.Since(started)
	if err != nil {
		log.Error("Failed to complete the data ingestion process", zap.Error(err))
		p.finishRun(log, report, rootID, err)
		return report, err
	}

	log.Debug("Data ingestion process completed successfully", zap.Duration("elapsed", report.Duration))
	p.finishRun(log, report, rootID, nil)
	return report, nil
}

func (p *Pipeline) run(ctx context.Context, log *zap.Logger, rootID *int64, report *Report) error {
	raw, err := p.loader.Load(ctx, p.cfg.Source.URL)
	if err != nil {
		return fmt.Errorf("%s: %w", StepLoad, err)
	}
	report.InputRows = raw.Len()
	p.event(log, report.RunID, rootID, ledger.EventSourceLoaded, map[string]any{
		"rows":    raw.Len(),
		"columns": raw.Columns(),
	})

	clean, err := p.preprocessor.Apply(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", StepPreprocess, err)
	}
	p.event(log, report.RunID, rootID, ledger.EventDatasetPreprocessed, map[string]any{
		"columns": clean.Columns(),
	})

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", StepSplit, err)
	}
	train, test, err := split.TrainTest(clean, p.cfg.Split.TestSize, p.cfg.Split.Seed)
	if err != nil {
		log.Error("Failed to split the data", zap.Error(err))
		return fmt.Errorf("%s: %w", StepSplit, err)
	}
	report.TrainRows, report.TestRows = train.Len(), test.Len()
	log.Debug("Data split completed",
		zap.Int("train_rows", train.Len()),
		zap.Int("test_rows", test.Len()),
		zap.Float64("test_size", p.cfg.Split.TestSize),
		zap.Int64("seed", p.cfg.Split.Seed),
	)
	p.event(log, report.RunID, rootID, ledger.EventDatasetSplit, map[string]any{
		"train_rows": train.Len(),
		"test_rows":  test.Len(),
		"test_size":  p.cfg.Split.TestSize,
		"seed":       p.cfg.Split.Seed,
	})

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", StepPersist, err)
	}
	out, err := p.persister.Save(train, test, p.cfg.Output.DataDir)
	if err != nil {
		return fmt.Errorf("%s: %w", StepPersist, err)
	}
	report.Output = out
	p.recordOutputs(log, report.RunID, out)
	p.event(log, report.RunID, rootID, ledger.EventOutputsPersisted, map[string]any{
		"dir":   out.Dir,
		"train": out.Train.Path,
		"test":  out.Test.Path,
	})
	return nil
}
