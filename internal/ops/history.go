package ops

import (
	"database/sql"
	"strings"

	"github.com/hpungsan/upkg/internal/db"
	"github.com/hpungsan/upkg/internal/errors"
)

// HistoryInput contains parameters for the History operation.
type HistoryInput struct {
	Limit   int     // default: 20, max: 100
	Offset  int     // default: 0
	Archive *string // optional filter, resolved to an absolute path
}

// HistoryOutput contains the result of the History operation.
type HistoryOutput struct {
	Items      []db.Run   `json:"items"`
	Pagination Pagination `json:"pagination"`
}

// History lists recorded inflate runs, newest first.
func History(database *sql.DB, input HistoryInput) (*HistoryOutput, error) {
	var filter *string
	if input.Archive != nil {
		if a := strings.TrimSpace(*input.Archive); a != "" {
			abs := absPath(a)
			filter = &abs
		}
	}

	limit, offset := clampPage(input.Limit, input.Offset)

	runs, err := db.ListRuns(database, filter, limit, offset)
	if err != nil {
		return nil, err
	}
	total, err := db.CountRuns(database, filter)
	if err != nil {
		return nil, err
	}

	return &HistoryOutput{
		Items: runs,
		Pagination: Pagination{
			Limit:   limit,
			Offset:  offset,
			HasMore: offset+len(runs) < total,
			Total:   total,
		},
	}, nil
}

// RunDetailOutput contains one run and the files it wrote.
type RunDetailOutput struct {
	Run   *db.Run      `json:"run"`
	Files []db.RunFile `json:"files"`
}

// RunDetail retrieves a recorded run by id.
func RunDetail(database *sql.DB, id string) (*RunDetailOutput, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, errors.NewInvalidRequest("id is required")
	}

	run, err := db.GetRun(database, id)
	if err != nil {
		return nil, err
	}
	files, err := db.ListRunFiles(database, id)
	if err != nil {
		return nil, err
	}

	return &RunDetailOutput{Run: run, Files: files}, nil
}
