package ops

import (
	"context"
	"database/sql"
	"log/slog"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hpungsan/upkg/internal/archive"
	"github.com/hpungsan/upkg/internal/config"
	"github.com/hpungsan/upkg/internal/db"
)

// BatchInput contains parameters for the InflateBatch operation.
type BatchInput struct {
	Paths   []string
	Workers int          // 0 means cfg.Workers, then the number of CPUs
	Logger  *slog.Logger // nil discards log output
	Catalog *sql.DB      // nil disables run recording
}

// ArchiveResult is the outcome for one archive in a batch.
type ArchiveResult struct {
	Path   string         `json:"path"`
	Output *InflateOutput `json:"output,omitempty"`
	Error  string         `json:"error,omitempty"`
	Err    error          `json:"-"`

	started  time.Time
	finished time.Time
}

// BatchOutput contains the result of the InflateBatch operation.
// Results are in input order.
type BatchOutput struct {
	Results   []ArchiveResult `json:"results"`
	Succeeded int             `json:"succeeded"`
	Failures  int             `json:"failed"`
}

// Failed reports whether any archive in the batch failed.
func (b *BatchOutput) Failed() bool {
	return b.Failures > 0
}

// InflateBatch inflates every path on a bounded worker pool.
//
// Archives are independent: a failure in one never cancels or affects the
// others. Each task writes only its own result slot. When a catalog is
// given, runs are recorded after all tasks finish.
func InflateBatch(ctx context.Context, cfg *config.Config, input BatchInput) *BatchOutput {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	logger := input.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	workers := input.Workers
	if workers <= 0 {
		workers = cfg.Workers
	}
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	results := make([]ArchiveResult, len(input.Paths))

	var g errgroup.Group
	g.SetLimit(workers)
	for i, path := range input.Paths {
		g.Go(func() error {
			res := &results[i]
			res.Path = path
			res.started = time.Now()

			logger.Info("inflating", "archive", archive.Stem(path))
			out, err := Inflate(ctx, cfg, InflateInput{Path: path})
			if err == nil {
				err = out.Err()
			}
			res.Output = out
			res.Err = err
			if err != nil {
				res.Error = err.Error()
			}
			res.finished = time.Now()

			logResult(logger, res)
			return nil
		})
	}
	_ = g.Wait()

	output := &BatchOutput{Results: results}
	for i := range results {
		if results[i].Err != nil {
			output.Failures++
		} else {
			output.Succeeded++
		}
	}

	if input.Catalog != nil {
		for i := range results {
			if err := recordRun(input.Catalog, &results[i]); err != nil {
				logger.Warn("catalog record failed", "archive", results[i].Path, "error", err)
			}
		}
	}

	return output
}

// logResult reports one finished archive: its warnings, its write failures,
// then a summary line.
func logResult(logger *slog.Logger, res *ArchiveResult) {
	stem := archive.Stem(res.Path)

	if out := res.Output; out != nil {
		for _, w := range out.Warnings {
			attrs := []any{"archive", stem, "entry", w.Entry, "id", w.ID, "reason", w.Reason}
			if w.Err != nil {
				attrs = append(attrs, "error", w.Err)
			}
			logger.Warn("entry skipped", attrs...)
		}
		for _, f := range out.Failures {
			logger.Error("write failed", "archive", stem, "path", f.Path, "error", f.Error)
		}
	}

	if res.Err != nil {
		logger.Error("inflate failed", "archive", res.Path, "error", res.Err)
		return
	}

	out := res.Output
	for _, w := range out.Written {
		logger.Debug("wrote", "archive", stem, "path", w.Path, "kind", w.Kind, "bytes", w.Bytes)
	}
	logger.Info("inflated",
		"archive", res.Path,
		"output", out.OutputDir,
		"assets", out.Assets,
		"files", len(out.Written),
		"bytes", out.BytesWritten,
		"warnings", len(out.Warnings),
	)
}

// recordRun stores one archive result in the catalog.
func recordRun(database *sql.DB, res *ArchiveResult) error {
	run := &db.Run{
		ArchivePath: absPath(res.Path),
		OutputDir:   absPath(archive.OutputDir(res.Path)),
		Status:      db.StatusOK,
		StartedAt:   res.started.Unix(),
		FinishedAt:  res.finished.Unix(),
	}

	var files []db.RunFile
	if out := res.Output; out != nil {
		run.ID = out.RunID
		run.ArchivePath = out.Archive
		run.OutputDir = out.OutputDir
		run.Assets = out.Assets
		run.FilesWritten = len(out.Written)
		run.BytesWritten = out.BytesWritten
		run.Warnings = len(out.Warnings)
		run.Failures = len(out.Failures)
		run.StartedAt = out.StartedAt
		run.FinishedAt = out.FinishedAt

		files = make([]db.RunFile, len(out.Written))
		for i, w := range out.Written {
			files[i] = db.RunFile{AssetID: w.AssetID, Kind: string(w.Kind), Path: w.Path, Bytes: w.Bytes}
		}
	} else {
		run.ID = newRunID()
	}

	if res.Err != nil {
		run.Status = db.StatusFailed
		msg := res.Err.Error()
		run.Error = &msg
	}

	return db.InsertRun(database, run, files)
}
