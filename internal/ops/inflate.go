package ops

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"github.com/hpungsan/upkg/internal/archive"
	"github.com/hpungsan/upkg/internal/config"
	"github.com/hpungsan/upkg/internal/errors"
	"github.com/hpungsan/upkg/internal/inflate"
)

// InflateInput contains parameters for the Inflate operation.
type InflateInput struct {
	Path string
}

// InflateOutput contains the result of the Inflate operation.
type InflateOutput struct {
	RunID        string            `json:"run_id"`
	Archive      string            `json:"archive"`
	OutputDir    string            `json:"output_dir"`
	Entries      int               `json:"entries"`
	Assets       int               `json:"assets"`
	Unroutable   []string          `json:"unroutable,omitempty"`
	Written      []inflate.Written `json:"written"`
	BytesWritten int64             `json:"bytes_written"`
	Warnings     []archive.Warning `json:"warnings,omitempty"`
	Failures     []WriteFailure    `json:"failures,omitempty"`
	Strict       bool              `json:"strict,omitempty"`
	StartedAt    int64             `json:"started_at"`
	FinishedAt   int64             `json:"finished_at"`
}

// Err reports whether the archive as a whole failed. Write failures always
// fail it; reader warnings only do in strict mode.
func (o *InflateOutput) Err() error {
	if len(o.Failures) > 0 {
		return errors.NewWriteFailed(len(o.Failures))
	}
	if o.Strict && len(o.Warnings) > 0 {
		return errors.NewWarningsPresent(len(o.Warnings))
	}
	return nil
}

// Inflate unpacks one archive next to itself, into the directory named by
// the archive path without its extension.
//
// The extension is checked before any file is touched. A fatal read error or
// a path collision returns an error and writes nothing. Per-artifact write
// failures do not stop the run; they are reported on the output and
// surfaced through Err.
func Inflate(ctx context.Context, cfg *config.Config, input InflateInput) (*InflateOutput, error) {
	if strings.TrimSpace(input.Path) == "" {
		return nil, errors.NewInvalidRequest("path is required")
	}
	if err := archive.CheckPath(input.Path); err != nil {
		return nil, err
	}
	if cfg == nil {
		cfg = config.DefaultConfig()
	}

	m, err := newMaterializer(cfg)
	if err != nil {
		return nil, err
	}

	started := time.Now()

	contents, err := archive.ReadFile(ctx, input.Path)
	if err != nil {
		return nil, err
	}

	plan, err := inflate.NewPlan(contents.Assets)
	if err != nil {
		return nil, err
	}

	outDir := archive.OutputDir(input.Path)
	result, err := m.Materialize(ctx, outDir, plan)
	if err != nil {
		return nil, err
	}

	written := result.Written
	if written == nil {
		written = []inflate.Written{}
	}

	return &InflateOutput{
		RunID:        newRunID(),
		Archive:      absPath(input.Path),
		OutputDir:    absPath(outDir),
		Entries:      contents.Entries,
		Assets:       len(contents.Assets),
		Unroutable:   plan.Unroutable,
		Written:      written,
		BytesWritten: result.Bytes(),
		Warnings:     contents.Warnings,
		Failures:     toWriteFailures(result.Failures),
		Strict:       cfg.Strict,
		StartedAt:    started.Unix(),
		FinishedAt:   time.Now().Unix(),
	}, nil
}

// absPath returns the absolute form of p, or p unchanged if it cannot be resolved.
func absPath(p string) string {
	abs, err := filepath.Abs(p)
	if err != nil {
		return p
	}
	return abs
}
