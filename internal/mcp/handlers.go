package mcp

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hpungsan/upkg/internal/config"
	"github.com/hpungsan/upkg/internal/errors"
	"github.com/hpungsan/upkg/internal/ops"
)

// Handlers holds dependencies for MCP tool handlers.
type Handlers struct {
	db     *sql.DB
	cfg    *config.Config
	logger *slog.Logger
}

// NewHandlers creates a new Handlers instance. A nil logger discards output.
func NewHandlers(db *sql.DB, cfg *config.Config, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Handlers{db: db, cfg: cfg, logger: logger}
}

// Request types for each tool

// InflateRequest represents the arguments for inflate.
type InflateRequest struct {
	Paths  []string `json:"paths"`
	Jobs   int      `json:"jobs,omitempty"`
	Strict bool     `json:"strict,omitempty"`
}

// InspectRequest represents the arguments for inspect.
type InspectRequest struct {
	Path string `json:"path"`
}

// HistoryRequest represents the arguments for history.
type HistoryRequest struct {
	Limit   int     `json:"limit,omitempty"`
	Offset  int     `json:"offset,omitempty"`
	Archive *string `json:"archive,omitempty"`
}

// RunRequest represents the arguments for run.
type RunRequest struct {
	ID string `json:"id"`
}

// Handler implementations

// HandleInflate handles the inflate tool call.
func (h *Handlers) HandleInflate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[InflateRequest](req)
	if err != nil {
		return errorResult(err), nil
	}

	if len(input.Paths) == 0 {
		return errorResult(errors.NewInvalidRequest("paths must not be empty")), nil
	}
	if len(input.Paths) > ops.MaxBatchPaths {
		return errorResult(errors.NewInvalidRequest(fmt.Sprintf("at most %d paths per call", ops.MaxBatchPaths))), nil
	}
	if input.Jobs < 0 {
		return errorResult(errors.NewInvalidRequest("jobs must not be negative")), nil
	}

	cfg := *h.cfg
	cfg.Strict = cfg.Strict || input.Strict

	var catalog *sql.DB
	if cfg.Catalog {
		catalog = h.db
	}

	result := ops.InflateBatch(ctx, &cfg, ops.BatchInput{
		Paths:   input.Paths,
		Workers: input.Jobs,
		Logger:  h.logger,
		Catalog: catalog,
	})

	return successResult(result)
}

// HandleInspect handles the inspect tool call.
func (h *Handlers) HandleInspect(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[InspectRequest](req)
	if err != nil {
		return errorResult(err), nil
	}

	result, err := ops.Inspect(ctx, ops.InspectInput{Path: input.Path})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleHistory handles the history tool call.
func (h *Handlers) HandleHistory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[HistoryRequest](req)
	if err != nil {
		return errorResult(err), nil
	}

	result, err := ops.History(h.db, ops.HistoryInput{
		Limit:   input.Limit,
		Offset:  input.Offset,
		Archive: input.Archive,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleRun handles the run tool call.
func (h *Handlers) HandleRun(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[RunRequest](req)
	if err != nil {
		return errorResult(err), nil
	}

	result, err := ops.RunDetail(h.db, input.ID)
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// Result helpers

// errorResult creates an MCP error result from any error.
// Uses IsError: true so MCP clients recognize failures properly.
// Internal error details are not exposed.
func errorResult(err error) *mcp.CallToolResult {
	var payload map[string]any

	var uErr *errors.UpkgError
	if stderrors.As(err, &uErr) {
		message := uErr.Message
		// Keep context added by wrappers, e.g. "paths[2]: ..."
		if err != error(uErr) && uErr.Code != errors.ErrInternal {
			message = err.Error()
		}
		errorObj := map[string]any{
			"code":    uErr.Code,
			"message": message,
			"status":  uErr.Status,
		}
		if uErr.Code != errors.ErrInternal && uErr.Details != nil {
			errorObj["details"] = uErr.Details
		}
		payload = map[string]any{"error": errorObj}
	} else {
		payload = map[string]any{
			"error": map[string]any{
				"code":    "INTERNAL",
				"message": "an internal error occurred",
				"status":  500,
			},
		}
	}

	content, _ := json.Marshal(payload)
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}

// successResult creates an MCP success result from any data.
func successResult(data any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(data)
}
