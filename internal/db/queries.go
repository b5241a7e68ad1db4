package db

import (
	"database/sql"

	"github.com/hpungsan/upkg/internal/errors"
)

// Run statuses.
const (
	StatusOK     = "ok"
	StatusFailed = "failed"
)

// Run is one archive inflation recorded in the catalog.
type Run struct {
	ID           string  `json:"id"`
	ArchivePath  string  `json:"archive_path"`
	OutputDir    string  `json:"output_dir"`
	Status       string  `json:"status"`
	Assets       int     `json:"assets"`
	FilesWritten int     `json:"files_written"`
	BytesWritten int64   `json:"bytes_written"`
	Warnings     int     `json:"warnings"`
	Failures     int     `json:"failures"`
	Error        *string `json:"error,omitempty"`
	StartedAt    int64   `json:"started_at"`
	FinishedAt   int64   `json:"finished_at"`
}

// RunFile is one artifact a run wrote.
type RunFile struct {
	RunID   string `json:"-"`
	AssetID string `json:"asset_id"`
	Kind    string `json:"kind"`
	Path    string `json:"path"`
	Bytes   int64  `json:"bytes"`
}

const runColumns = `id, archive_path, output_dir, status, assets, files_written,
	bytes_written, warnings, failures, error, started_at, finished_at`

// InsertRun stores a run and its written files in one transaction.
func InsertRun(db *sql.DB, r *Run, files []RunFile) error {
	tx, err := db.Begin()
	if err != nil {
		return errors.NewInternal(err)
	}
	defer tx.Rollback() //nolint:errcheck

	_, err = tx.Exec(`INSERT INTO runs (`+runColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.ArchivePath, r.OutputDir, r.Status, r.Assets, r.FilesWritten,
		r.BytesWritten, r.Warnings, r.Failures, toNullString(r.Error), r.StartedAt, r.FinishedAt,
	)
	if err != nil {
		return errors.NewInternal(err)
	}

	if len(files) > 0 {
		stmt, err := tx.Prepare(`INSERT INTO run_files (run_id, asset_id, kind, path, bytes) VALUES (?, ?, ?, ?, ?)`)
		if err != nil {
			return errors.NewInternal(err)
		}
		defer stmt.Close()

		for _, f := range files {
			if _, err := stmt.Exec(r.ID, f.AssetID, f.Kind, f.Path, f.Bytes); err != nil {
				return errors.NewInternal(err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

// GetRun retrieves a run by its ULID.
func GetRun(db *sql.DB, id string) (*Run, error) {
	row := db.QueryRow(`SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	r, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound(id)
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return r, nil
}

// ListRuns returns runs newest first, optionally filtered by archive path.
func ListRuns(db *sql.DB, archivePath *string, limit, offset int) ([]Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs`
	args := []any{}
	if archivePath != nil {
		query += ` WHERE archive_path = ?`
		args = append(args, *archivePath)
	}
	query += ` ORDER BY started_at DESC, id DESC LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	runs := make([]Run, 0)
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, errors.NewInternal(err)
		}
		runs = append(runs, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return runs, nil
}

// CountRuns counts runs, optionally filtered by archive path.
func CountRuns(db *sql.DB, archivePath *string) (int, error) {
	query := `SELECT COUNT(*) FROM runs`
	args := []any{}
	if archivePath != nil {
		query += ` WHERE archive_path = ?`
		args = append(args, *archivePath)
	}

	var n int
	if err := db.QueryRow(query, args...).Scan(&n); err != nil {
		return 0, errors.NewInternal(err)
	}
	return n, nil
}

// ListRunFiles returns the files written by a run, ordered by path.
func ListRunFiles(db *sql.DB, runID string) ([]RunFile, error) {
	rows, err := db.Query(`
		SELECT run_id, asset_id, kind, path, bytes
		FROM run_files
		WHERE run_id = ?
		ORDER BY path
	`, runID)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	files := make([]RunFile, 0)
	for rows.Next() {
		var f RunFile
		if err := rows.Scan(&f.RunID, &f.AssetID, &f.Kind, &f.Path, &f.Bytes); err != nil {
			return nil, errors.NewInternal(err)
		}
		files = append(files, f)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return files, nil
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// scanRun scans a single row into a Run struct.
func scanRun(row scanner) (*Run, error) {
	var (
		r       Run
		errText sql.NullString
	)
	err := row.Scan(
		&r.ID, &r.ArchivePath, &r.OutputDir, &r.Status, &r.Assets, &r.FilesWritten,
		&r.BytesWritten, &r.Warnings, &r.Failures, &errText, &r.StartedAt, &r.FinishedAt,
	)
	if err != nil {
		return nil, err
	}
	r.Error = fromNullString(errText)
	return &r, nil
}

// toNullString converts a *string to sql.NullString.
func toNullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

// fromNullString converts a sql.NullString to *string.
func fromNullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	return &ns.String
}
