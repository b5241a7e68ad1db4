package web

import (
	"bytes"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hpungsan/upkg/internal/errors"
	"github.com/hpungsan/upkg/internal/report"
)

const layout = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}} · upkg</title>
<style>
body { font-family: system-ui, sans-serif; margin: 2rem auto; max-width: 72rem; padding: 0 1rem; }
table { border-collapse: collapse; width: 100%; }
th, td { border-bottom: 1px solid #ddd; padding: .3rem .6rem; text-align: left; }
code { font-size: .9em; }
footer { color: #888; margin-top: 2rem; font-size: .8em; }
</style>
</head>
<body>
<nav><a href="/runs">Runs</a></nav>
<main>{{.Body}}</main>
<footer>upkg {{.Version}}</footer>
</body>
</html>
`

// PageData is the template data for every page.
type PageData struct {
	Title   string
	Version string
	Body    template.HTML
}

// Renderer writes HTML pages and JSON responses.
type Renderer struct {
	tmpl    *template.Template
	version string
}

// NewRenderer parses the page layout.
func NewRenderer(version string) *Renderer {
	return &Renderer{
		tmpl:    template.Must(template.New("layout").Parse(layout)),
		version: version,
	}
}

// renderMarkdown renders md inside the layout with HTTP 200.
func (r *Renderer) renderMarkdown(w http.ResponseWriter, status int, title, md string) {
	body, err := report.HTML(md)
	if err != nil {
		slog.Error("markdown render failed", "error", err)
		body = "<pre>" + template.HTMLEscapeString(md) + "</pre>"
	}

	var buf bytes.Buffer
	data := PageData{Title: title, Version: r.version, Body: template.HTML(body)}
	if err := r.tmpl.Execute(&buf, data); err != nil {
		slog.Error("template execution failed", "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}

// renderError renders an error response with content negotiation.
func (r *Renderer) renderError(w http.ResponseWriter, req *http.Request, err error) {
	var uErr *errors.UpkgError
	if !stderrors.As(err, &uErr) {
		uErr = errors.NewInternal(err)
	}

	if wantsJSON(req) {
		renderJSON(w, uErr.Status, map[string]any{
			"error": map[string]any{
				"code":    string(uErr.Code),
				"message": uErr.Message,
				"status":  uErr.Status,
			},
		})
		return
	}

	md := fmt.Sprintf("# Error %d\n\n%s\n", uErr.Status, template.HTMLEscapeString(uErr.Message))
	r.renderMarkdown(w, uErr.Status, fmt.Sprintf("Error %d", uErr.Status), md)
}

// renderJSON writes a JSON response.
func renderJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func wantsJSON(req *http.Request) bool {
	return strings.Contains(req.Header.Get("Accept"), "application/json")
}
