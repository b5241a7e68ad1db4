package mcp

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hpungsan/upkg/internal/archive/archivetest"
	"github.com/hpungsan/upkg/internal/config"
	"github.com/hpungsan/upkg/internal/db"
	"github.com/hpungsan/upkg/internal/errors"
)

// testSetup creates a temporary database and config for testing.
func testSetup(t *testing.T) (*sql.DB, *config.Config) {
	t.Helper()

	database, err := db.Init(t.TempDir())
	if err != nil {
		t.Fatalf("failed to init db: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	cfg := config.DefaultConfig()
	cfg.Catalog = true
	return database, cfg
}

// makeRequest creates a CallToolRequest with the given arguments.
func makeRequest(args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Arguments: args,
		},
	}
}

func writeArchive(t *testing.T, dir, name string) string {
	t.Helper()
	return archivetest.WriteFile(t, dir, name, archivetest.Concat(
		archivetest.Asset("aaa", "Assets/a.txt", "alpha", "guid: aaa\n", ""),
		archivetest.Asset("bbb", "Assets/b.png", "PNG", "", "THUMB"),
	)...)
}

func TestHandleInflate(t *testing.T) {
	database, cfg := testSetup(t)
	h := NewHandlers(database, cfg, nil)
	ctx := context.Background()

	dir := t.TempDir()
	good := writeArchive(t, dir, "good.unitypackage")
	bad := filepath.Join(dir, "bad.unitypackage")
	if err := os.WriteFile(bad, []byte("nope"), 0644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name      string
		args      map[string]any
		wantError bool
		errorCode string
	}{
		{
			name:      "missing paths",
			args:      map[string]any{},
			wantError: true,
			errorCode: "INVALID_REQUEST",
		},
		{
			name:      "paths wrong type",
			args:      map[string]any{"paths": "good.unitypackage"},
			wantError: true,
			errorCode: "INVALID_REQUEST",
		},
		{
			name:      "negative jobs",
			args:      map[string]any{"paths": []any{good}, "jobs": -1},
			wantError: true,
			errorCode: "INVALID_REQUEST",
		},
		{
			name: "mixed batch is a partial success",
			args: map[string]any{"paths": []any{good, bad}, "jobs": 2},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := h.HandleInflate(ctx, makeRequest(tt.args))
			if err != nil {
				t.Fatalf("handler returned error: %v", err)
			}

			if tt.wantError {
				if !result.IsError {
					t.Errorf("expected error result, got success")
				}
				if tt.errorCode != "" {
					assertErrorCode(t, result, tt.errorCode)
				}
				return
			}

			output := parseOutput(t, result)
			if output["succeeded"] != float64(1) || output["failed"] != float64(1) {
				t.Errorf("succeeded/failed = %v/%v, want 1/1", output["succeeded"], output["failed"])
			}
			results := output["results"].([]any)
			second := results[1].(map[string]any)
			if !strings.Contains(second["error"].(string), "DECOMPRESS_FAILED") {
				t.Errorf("bad archive error = %v", second["error"])
			}
		})
	}

	if _, err := os.Stat(filepath.Join(dir, "good", "Assets", "b_preview_image.png")); err != nil {
		t.Errorf("good archive not inflated: %v", err)
	}

	n, err := db.CountRuns(database, nil)
	if err != nil {
		t.Fatalf("CountRuns: %v", err)
	}
	if n != 2 {
		t.Errorf("recorded runs = %d, want 2", n)
	}
}

func TestHandleInflate_StrictOverride(t *testing.T) {
	database, cfg := testSetup(t)
	cfg.Catalog = false
	h := NewHandlers(database, cfg, nil)

	dir := t.TempDir()
	path := archivetest.WriteFile(t, dir, "odd.unitypackage", append(
		archivetest.Asset("aaa", "Assets/a.txt", "a", "", ""),
		archivetest.File("aaa/unknown", "x"),
	)...)

	result, err := h.HandleInflate(context.Background(), makeRequest(map[string]any{
		"paths":  []any{path},
		"strict": true,
	}))
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	output := parseOutput(t, result)
	if output["failed"] != float64(1) {
		t.Errorf("failed = %v, want 1 in strict mode", output["failed"])
	}
	if cfg.Strict {
		t.Error("strict request leaked into shared config")
	}

	n, err := db.CountRuns(database, nil)
	if err != nil {
		t.Fatalf("CountRuns: %v", err)
	}
	if n != 0 {
		t.Errorf("recorded runs = %d, want 0 with catalog disabled", n)
	}
}

func TestHandleInspect(t *testing.T) {
	database, cfg := testSetup(t)
	h := NewHandlers(database, cfg, nil)
	dir := t.TempDir()
	path := writeArchive(t, dir, "pack.unitypackage")

	result, err := h.HandleInspect(context.Background(), makeRequest(map[string]any{"path": path}))
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	output := parseOutput(t, result)
	assets := output["assets"].([]any)
	if len(assets) != 2 {
		t.Errorf("assets = %d, want 2", len(assets))
	}
	if _, err := os.Stat(filepath.Join(dir, "pack")); !os.IsNotExist(err) {
		t.Errorf("inspect wrote output: %v", err)
	}

	result, err = h.HandleInspect(context.Background(), makeRequest(map[string]any{"path": filepath.Join(dir, "pack.zip")}))
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	assertErrorCode(t, result, "INVALID_EXTENSION")
}

func TestDecode_RejectsBadArguments(t *testing.T) {
	database, cfg := testSetup(t)
	h := NewHandlers(database, cfg, nil)

	tests := []struct {
		name string
		args map[string]any
	}{
		{name: "unknown argument", args: map[string]any{"path": "x.unitypackage", "force": true}},
		{name: "wrong type", args: map[string]any{"path": 42}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := h.HandleInspect(context.Background(), makeRequest(tt.args))
			if err != nil {
				t.Fatalf("handler returned error: %v", err)
			}
			assertErrorCode(t, result, "INVALID_REQUEST")
		})
	}
}

func TestHandleHistoryAndRun(t *testing.T) {
	database, cfg := testSetup(t)
	h := NewHandlers(database, cfg, nil)
	ctx := context.Background()

	dir := t.TempDir()
	path := writeArchive(t, dir, "pack.unitypackage")
	if _, err := h.HandleInflate(ctx, makeRequest(map[string]any{"paths": []any{path}})); err != nil {
		t.Fatalf("inflate: %v", err)
	}

	result, err := h.HandleHistory(ctx, makeRequest(map[string]any{"archive": path, "limit": 5}))
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	output := parseOutput(t, result)
	items := output["items"].([]any)
	if len(items) != 1 {
		t.Fatalf("items = %d, want 1", len(items))
	}
	id := items[0].(map[string]any)["id"].(string)

	result, err = h.HandleRun(ctx, makeRequest(map[string]any{"id": id}))
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	output = parseOutput(t, result)
	files := output["files"].([]any)
	if len(files) != 4 {
		t.Errorf("files = %d, want 4", len(files))
	}

	result, err = h.HandleRun(ctx, makeRequest(map[string]any{"id": "nope"}))
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	assertErrorCode(t, result, "NOT_FOUND")

	result, err = h.HandleRun(ctx, makeRequest(map[string]any{}))
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	assertErrorCode(t, result, "INVALID_REQUEST")
}

func TestServerRegistration(t *testing.T) {
	database, cfg := testSetup(t)

	s := NewServer(database, cfg, "test", nil)
	tools := s.ListTools()

	expectedTools := []string{"package_inflate", "package_inspect", "package_history", "package_run"}
	if len(tools) != len(expectedTools) {
		t.Errorf("registered tool count = %d, want %d", len(tools), len(expectedTools))
	}
	for _, name := range expectedTools {
		if _, ok := tools[name]; !ok {
			t.Errorf("missing registered tool: %s", name)
		}
	}
}

func TestServerRegistration_WithDisabledTools(t *testing.T) {
	database, cfg := testSetup(t)

	cfg.DisabledTools = []string{"package_inflate", "package_inflate"}
	s := NewServer(database, cfg, "test", nil)
	tools := s.ListTools()

	if len(tools) != 3 {
		t.Errorf("registered tool count = %d, want 3", len(tools))
	}
	if _, ok := tools["package_inflate"]; ok {
		t.Error("disabled tool package_inflate should not be registered")
	}
}

func TestServerRegistration_DisabledType(t *testing.T) {
	database, cfg := testSetup(t)

	cfg.DisabledTypes = []string{"package"}
	s := NewServer(database, cfg, "test", nil)

	if n := len(s.ListTools()); n != 0 {
		t.Errorf("registered tool count = %d, want 0", n)
	}
}

func TestValidateDisabled(t *testing.T) {
	if unknown := ValidateDisabledTools([]string{"package_run", "capsule_store"}); len(unknown) != 1 || unknown[0] != "capsule_store" {
		t.Errorf("ValidateDisabledTools() = %v, want [capsule_store]", unknown)
	}
	if unknown := ValidateDisabledTypes([]string{"package", "asset"}); len(unknown) != 1 || unknown[0] != "asset" {
		t.Errorf("ValidateDisabledTypes() = %v, want [asset]", unknown)
	}
	if unknown := ValidateDisabledTools(AllToolNames()); len(unknown) != 0 {
		t.Errorf("AllToolNames() returned invalid names: %v", unknown)
	}
	if got := GetTypeForTool("package_inflate"); got != "package" {
		t.Errorf("GetTypeForTool() = %q, want package", got)
	}
	if got := GetTypeForTool("inflate"); got != "" {
		t.Errorf("GetTypeForTool() = %q, want empty", got)
	}
}

func TestErrorResult_InternalDoesNotExposeDetails(t *testing.T) {
	r := errorResult(errors.NewInternal(fmt.Errorf("sql error: open /tmp/secret.db: permission denied")))
	if !r.IsError {
		t.Fatal("expected IsError=true")
	}

	errObj := errorObject(t, r)
	if errObj["code"] != string(errors.ErrInternal) {
		t.Fatalf("code=%v, want %v", errObj["code"], errors.ErrInternal)
	}
	if _, ok := errObj["details"]; ok {
		t.Fatal("expected INTERNAL errors to omit details")
	}
	if strings.Contains(errObj["message"].(string), "secret") {
		t.Fatal("internal message leaked cause")
	}
}

func TestErrorResult_WrappedErrorPreservesContext(t *testing.T) {
	wrapped := fmt.Errorf("paths[2]: %w", errors.NewInvalidExtension("x.zip", ".unitypackage"))

	errObj := errorObject(t, errorResult(wrapped))
	if errObj["code"] != string(errors.ErrInvalidExtension) {
		t.Errorf("code=%v, want %v", errObj["code"], errors.ErrInvalidExtension)
	}
	if msg := errObj["message"].(string); !strings.Contains(msg, "paths[2]") {
		t.Errorf("message should contain wrapper context, got: %s", msg)
	}
}

func TestErrorResult_PlainError(t *testing.T) {
	errObj := errorObject(t, errorResult(fmt.Errorf("boom")))
	if errObj["code"] != "INTERNAL" {
		t.Errorf("code=%v, want INTERNAL", errObj["code"])
	}
}

// Helper functions

func errorObject(t *testing.T, r *mcp.CallToolResult) map[string]any {
	t.Helper()
	var payload map[string]any
	if err := json.Unmarshal([]byte(r.Content[0].(mcp.TextContent).Text), &payload); err != nil {
		t.Fatalf("failed to unmarshal error payload: %v", err)
	}
	return payload["error"].(map[string]any)
}

// parseOutput extracts and unmarshals the JSON output from an MCP result.
func parseOutput(t *testing.T, result *mcp.CallToolResult) map[string]any {
	t.Helper()
	if result.IsError {
		t.Fatalf("expected success, got error: %v", extractErrorMessage(result))
	}
	var output map[string]any
	if err := json.Unmarshal([]byte(result.Content[0].(mcp.TextContent).Text), &output); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	return output
}

func assertErrorCode(t *testing.T, result *mcp.CallToolResult, expectedCode string) {
	t.Helper()

	if !result.IsError {
		t.Errorf("expected error result, got success")
		return
	}
	if len(result.Content) == 0 {
		t.Errorf("no content in error result")
		return
	}
	if code := errorObject(t, result)["code"]; code != expectedCode {
		t.Errorf("got error code %v, want %q", code, expectedCode)
	}
}

func extractErrorMessage(result *mcp.CallToolResult) string {
	if len(result.Content) == 0 {
		return "<no content>"
	}

	text, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		return "<not text content>"
	}

	return text.Text
}
