package mcp

import "github.com/mark3labs/mcp-go/mcp"

var inflateToolDef = mcp.NewTool("package_inflate",
	mcp.WithDescription("Unpack one or more .unitypackage archives. Each archive is written to a directory next to it named after the archive without its extension. Archives are independent: one failing does not affect the others."),
	mcp.WithArray("paths",
		mcp.Required(),
		mcp.Description("Archive paths, each ending in .unitypackage"),
		mcp.Items(map[string]any{"type": "string"}),
	),
	mcp.WithNumber("jobs",
		mcp.Description("Archives inflated in parallel (default: configured workers)"),
	),
	mcp.WithBoolean("strict",
		mcp.Description("Treat skipped entries as an archive failure"),
	),
)

var inspectToolDef = mcp.NewTool("package_inspect",
	mcp.WithDescription("List the assets of a .unitypackage archive and where each would be written, without writing anything."),
	mcp.WithString("path",
		mcp.Required(),
		mcp.Description("Archive path ending in .unitypackage"),
	),
)

var historyToolDef = mcp.NewTool("package_history",
	mcp.WithDescription("List recorded inflate runs, newest first."),
	mcp.WithNumber("limit",
		mcp.Description("Max runs to return (default: 20, max: 100)"),
	),
	mcp.WithNumber("offset",
		mcp.Description("Pagination offset (default: 0)"),
	),
	mcp.WithString("archive",
		mcp.Description("Only runs of this archive path"),
	),
)

var runToolDef = mcp.NewTool("package_run",
	mcp.WithDescription("Show one recorded inflate run and every file it wrote."),
	mcp.WithString("id",
		mcp.Required(),
		mcp.Description("Run ID (ULID)"),
	),
)
