package ops

import (
	"crypto/rand"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/hpungsan/upkg/internal/config"
	"github.com/hpungsan/upkg/internal/errors"
	"github.com/hpungsan/upkg/internal/inflate"
)

// Pagination limits
const (
	DefaultListLimit = 20
	MaxListLimit     = 100
	MaxBatchPaths    = 256
)

// Pagination contains pagination metadata for list operations.
type Pagination struct {
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	HasMore bool `json:"has_more"`
	Total   int  `json:"total"`
}

// WriteFailure is the serializable form of an artifact that could not be written.
type WriteFailure struct {
	AssetID string `json:"asset_id"`
	Kind    string `json:"kind"`
	Path    string `json:"path"`
	Error   string `json:"error"`
}

func toWriteFailures(failures []inflate.Failure) []WriteFailure {
	if len(failures) == 0 {
		return nil
	}
	out := make([]WriteFailure, len(failures))
	for i, f := range failures {
		out[i] = WriteFailure{
			AssetID: f.AssetID,
			Kind:    string(f.Kind),
			Path:    f.Path,
			Error:   f.Err.Error(),
		}
	}
	return out
}

// newMaterializer builds a Materializer from the configured permissions.
func newMaterializer(cfg *config.Config) (*inflate.Materializer, error) {
	fileMode, dirMode, err := cfg.Modes()
	if err != nil {
		return nil, errors.NewInvalidRequest(err.Error())
	}
	return &inflate.Materializer{FileMode: fileMode, DirMode: dirMode}, nil
}

// newRunID generates a new ULID for a catalog run.
func newRunID() string {
	entropy := ulid.Monotonic(rand.Reader, 0)
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}

// clampPage applies limit defaults and bounds and keeps offset non-negative.
func clampPage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	return limit, max(offset, 0)
}
