package ingest

import (
	"go.uber.org/zap"

	"github.com/stupiduntilnot/dataingest/internal/ledger"
	"github.com/stupiduntilnot/dataingest/internal/persist"
)

// Ledger writes never fail a run; they are logged at warn level.

func (p *Pipeline) startRun(log *zap.Logger, runID string) *int64 {
	if p.db == nil {
		return nil
	}
	if n, err := ledger.CleanupInterruptedRuns(p.db); err != nil {
		log.Warn("Failed to close interrupted runs", zap.Error(err))
	} else if n > 0 {
		log.Warn("Closed interrupted runs", zap.Int64("count", n))
		p.event(log, "", nil, ledger.EventInterruptedRunClosed, map[string]any{"count": n})
	}

	cfg := p.cfg
	if err := ledger.StartRun(p.db, runID, cfg.Source.URL, cfg.Output.DataDir, cfg.Split.TestSize, cfg.Split.Seed); err != nil {
		log.Warn("Failed to record run start", zap.Error(err))
		return nil
	}
	id, err := ledger.LogEvent(p.db, runID, nil, ledger.EventRunStarted, map[string]any{
		"source":    cfg.Source.URL,
		"data_dir":  cfg.Output.DataDir,
		"test_size": cfg.Split.TestSize,
		"seed":      cfg.Split.Seed,
	})
	if err != nil {
		log.Warn("Failed to record event", zap.String("event", ledger.EventRunStarted), zap.Error(err))
		return nil
	}
	return &id
}

func (p *Pipeline) finishRun(log *zap.Logger, report Report, rootID *int64, runErr error) {
	if p.db == nil {
		return
	}
	counts := ledger.Counts{Input: report.InputRows, Train: report.TrainRows, Test: report.TestRows}
	status, eventType, lastError := ledger.RunStatusSucceeded, ledger.EventRunCompleted, ""
	payload := map[string]any{"duration_ms": report.Duration.Milliseconds()}
	if runErr != nil {
		status, eventType, lastError = ledger.RunStatusFailed, ledger.EventRunFailed, runErr.Error()
		payload["error"] = lastError
	}

	if _, err := ledger.FinishRun(p.db, report.RunID, status, counts, lastError); err != nil {
		log.Warn("Failed to record run result", zap.Error(err))
	}
	p.event(log, report.RunID, rootID, eventType, payload)
}

func (p *Pipeline) recordOutputs(log *zap.Logger, runID string, res persist.Result) {
	if p.db == nil {
		return
	}
	for _, f := range []persist.File{res.Train, res.Test} {
		err := ledger.RecordOutput(p.db, ledger.Output{
			RunID:  runID,
			Name:   f.Name,
			Path:   f.Path,
			Rows:   int64(f.Rows),
			Bytes:  f.Bytes,
			SHA256: f.SHA256,
		})
		if err != nil {
			log.Warn("Failed to record output", zap.String("path", f.Path), zap.Error(err))
		}
	}
}

func (p *Pipeline) event(log *zap.Logger, runID string, parentID *int64, eventType string, payload map[string]any) {
	if p.db == nil {
		return
	}
	if _, err := ledger.LogEvent(p.db, runID, parentID, eventType, payload); err != nil {
		log.Warn("Failed to record event", zap.String("event", eventType), zap.Error(err))
	}
}
