package inflate

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hpungsan/upkg/internal/archive"
	"github.com/hpungsan/upkg/internal/errors"
)

// Default permissions for materialized output.
const (
	DefaultFileMode os.FileMode = 0644
	DefaultDirMode  os.FileMode = 0755
)

// Failure records one artifact that could not be written.
type Failure struct {
	AssetID string       `json:"asset_id"`
	Kind    archive.Kind `json:"kind"`
	Path    string       `json:"path"`
	Err     error        `json:"-"`
}

// Error implements the error interface so a Failure can be logged directly.
func (f Failure) Error() string {
	return fmt.Sprintf("%s (%s %s): %v", f.Path, f.AssetID, f.Kind, f.Err)
}

// Written records one artifact that reached disk.
type Written struct {
	AssetID string       `json:"asset_id"`
	Kind    archive.Kind `json:"kind"`
	Path    string       `json:"path"` // relative to the output root, slash-separated
	Bytes   int64        `json:"bytes"`
}

// Result summarizes a materialization.
type Result struct {
	Written  []Written
	Failures []Failure
}

// Bytes returns the total size of all written artifacts.
func (r *Result) Bytes() int64 {
	var n int64
	for _, w := range r.Written {
		n += w.Bytes
	}
	return n
}

// Failed reports whether any artifact could not be written.
func (r *Result) Failed() bool {
	return len(r.Failures) > 0
}

// Materializer writes planned artifacts under an output root.
// Zero modes fall back to DefaultFileMode and DefaultDirMode.
type Materializer struct {
	FileMode os.FileMode
	DirMode  os.FileMode
}

// Materialize writes every artifact in plan beneath root.
//
// Writes are independent: a failed write is recorded and the remaining
// artifacts are still attempted. Assets rejected during planning are carried
// into Result.Failures. The only error returned is cancellation.
func (m *Materializer) Materialize(ctx context.Context, root string, plan *Plan) (*Result, error) {
	result := &Result{}
	result.Failures = append(result.Failures, plan.Rejected...)

	for _, art := range plan.Artifacts {
		if ctx.Err() != nil {
			return result, errors.NewCancelled("materialize")
		}

		dest := filepath.Join(root, filepath.FromSlash(art.Rel))
		if err := m.writeFile(dest, art.Data); err != nil {
			result.Failures = append(result.Failures, Failure{
				AssetID: art.AssetID,
				Kind:    art.Kind,
				Path:    dest,
				Err:     err,
			})
			continue
		}
		result.Written = append(result.Written, Written{
			AssetID: art.AssetID,
			Kind:    art.Kind,
			Path:    art.Rel,
			Bytes:   int64(len(art.Data)),
		})
	}

	return result, nil
}

// writeFile creates dest's parent directories, then writes data to a temp
// file beside dest and renames it into place.
func (m *Materializer) writeFile(dest string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(dest), m.dirMode()); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}

	randBytes := make([]byte, 8)
	if _, err := rand.Read(randBytes); err != nil {
		return fmt.Errorf("generate temp file name: %w", err)
	}
	tempPath := filepath.Join(filepath.Dir(dest), ".upkg-"+hex.EncodeToString(randBytes)+".tmp")

	file, err := openFileNoFollow(tempPath, os.O_CREATE|os.O_WRONLY|os.O_EXCL, m.fileMode())
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}

	success := false
	defer func() {
		if file != nil {
			file.Close()
		}
		if !success {
			os.Remove(tempPath)
		}
	}()

	if _, err := file.Write(data); err != nil {
		return fmt.Errorf("write file: %w", err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("close file: %w", err)
	}
	file = nil

	if err := os.Rename(tempPath, dest); err != nil {
		return fmt.Errorf("finalize file: %w", err)
	}

	success = true
	return nil
}

func (m *Materializer) fileMode() os.FileMode {
	if m.FileMode == 0 {
		return DefaultFileMode
	}
	return m.FileMode
}

func (m *Materializer) dirMode() os.FileMode {
	if m.DirMode == 0 {
		return DefaultDirMode
	}
	return m.DirMode
}
