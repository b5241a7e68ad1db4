package web

import (
	"database/sql"
	"net/http"
	"strconv"
	"strings"

	"github.com/hpungsan/upkg/internal/ops"
	"github.com/hpungsan/upkg/internal/report"
)

// Handlers contains HTTP route handlers for the catalog browser.
type Handlers struct {
	db       *sql.DB
	renderer *Renderer
}

// HandleRuns handles GET /runs, a page of recorded runs.
func (h *Handlers) HandleRuns(w http.ResponseWriter, r *http.Request) {
	input := ops.HistoryInput{
		Archive: ptrString(r.URL.Query().Get("archive")),
		Limit:   parseIntParam(r, "limit", ops.DefaultListLimit),
		Offset:  parseIntParam(r, "offset", 0),
	}

	result, err := ops.History(h.db, input)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, result)
		return
	}
	h.renderer.renderMarkdown(w, http.StatusOK, "Runs", report.RunsMarkdown(result))
}

// HandleRun handles GET /runs/{id}, one run and its files.
func (h *Handlers) HandleRun(w http.ResponseWriter, r *http.Request) {
	result, err := ops.RunDetail(h.db, r.PathValue("id"))
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, result)
		return
	}
	h.renderer.renderMarkdown(w, http.StatusOK, "Run "+result.Run.ID, report.RunMarkdown(result))
}

// ptrString returns nil for empty strings, otherwise a pointer to s.
func ptrString(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

// parseIntParam parses a query parameter as int, returning def on absence or error.
func parseIntParam(r *http.Request, name string, def int) int {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
