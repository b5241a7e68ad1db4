package main

import (
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/hpungsan/upkg/internal/config"
	"github.com/hpungsan/upkg/internal/db"
	"github.com/hpungsan/upkg/internal/errors"
	"github.com/hpungsan/upkg/internal/mcp"
	"github.com/hpungsan/upkg/internal/ops"
	"github.com/hpungsan/upkg/internal/report"
	"github.com/hpungsan/upkg/internal/web"
)

// env carries process-level dependencies so commands can be run in tests.
type env struct {
	baseDir string // global config and catalog directory, ~/.upkg
	workDir string // start of the repo config search; "" means the process cwd
	stdout  io.Writer
	stderr  io.Writer
}

// newCLIApp creates the CLI application with all commands.
func newCLIApp(e *env) *cli.App {
	app := &cli.App{
		Name:      "upkg",
		Usage:     "Unpack .unitypackage archives next to themselves",
		UsageText: strings.TrimSpace(usage),
		ArgsUsage: "<file.unitypackage>...",
		Version:   Version,
		Writer:    e.stdout,
		ErrWriter: e.stderr,
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "jobs", Aliases: []string{"j"}, Usage: "Archives inflated in parallel (default: number of CPUs)"},
			&cli.BoolFlag{Name: "catalog", Usage: "Record runs in ~/.upkg/catalog.db"},
			&cli.BoolFlag{Name: "strict", Usage: "Treat skipped entries as an archive failure"},
			&cli.BoolFlag{Name: "no-repo-config", Usage: "Ignore .upkg/config.json in the working tree"},
			&cli.StringFlag{Name: "log-format", Value: "text", Usage: "Log format: text|json"},
			&cli.BoolFlag{Name: "verbose", Aliases: []string{"V"}, Usage: "Log every written file"},
		},
		Action: func(c *cli.Context) error {
			return inflateAction(c, e)
		},
		Commands: []*cli.Command{
			inspectCmd(e),
			historyCmd(e),
			runCmd(e),
			mcpCmd(e),
			serveCmd(e),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

// inflateAction inflates every positional argument.
func inflateAction(c *cli.Context, e *env) error {
	if c.NArg() == 0 {
		fmt.Fprint(e.stderr, usage)
		return cli.Exit("", exitUsage)
	}
	if c.Int("jobs") < 0 {
		return cli.Exit("--jobs must not be negative", exitUsage)
	}

	logger, err := newLogger(c, e.stderr)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(c, e)
	if err != nil {
		return outputError(err)
	}

	var catalog *sql.DB
	if cfg.Catalog {
		database, err := db.Init(e.baseDir)
		if err != nil {
			return outputError(fmt.Errorf("failed to initialize catalog: %w", err))
		}
		defer database.Close()
		catalog = database
	}

	out := ops.InflateBatch(c.Context, cfg, ops.BatchInput{
		Paths:   c.Args().Slice(),
		Workers: cfg.Workers,
		Logger:  logger,
		Catalog: catalog,
	})
	if out.Failed() {
		return cli.Exit("", exitFailure)
	}
	return nil
}

// inspectCmd creates the inspect command.
func inspectCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:      "inspect",
		Usage:     "List an archive's assets and destinations without writing",
		ArgsUsage: "<file.unitypackage>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "format", Aliases: []string{"f"}, Value: "json", Usage: "Output format: json|markdown|html"},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return cli.Exit("inspect takes exactly one archive", exitUsage)
			}
			format, err := parseFormat(c.String("format"), "json", "markdown", "html")
			if err != nil {
				return err
			}

			out, err := ops.Inspect(c.Context, ops.InspectInput{Path: c.Args().First()})
			if err != nil {
				return outputError(err)
			}

			switch format {
			case "markdown":
				_, err = io.WriteString(e.stdout, report.Markdown(out))
				return err
			case "html":
				html, err := report.HTML(report.Markdown(out))
				if err != nil {
					return outputError(errors.NewInternal(err))
				}
				_, err = io.WriteString(e.stdout, html)
				return err
			default:
				return outputJSON(e.stdout, out)
			}
		},
	}
}

// historyCmd creates the history command.
func historyCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "List recorded inflate runs, newest first",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "limit", Aliases: []string{"l"}, Value: ops.DefaultListLimit, Usage: "Max runs to return"},
			&cli.IntFlag{Name: "offset", Aliases: []string{"o"}, Usage: "Pagination offset"},
			&cli.StringFlag{Name: "archive", Aliases: []string{"a"}, Usage: "Only runs of this archive"},
			&cli.StringFlag{Name: "format", Aliases: []string{"f"}, Value: "json", Usage: "Output format: json|markdown"},
		},
		Action: func(c *cli.Context) error {
			format, err := parseFormat(c.String("format"), "json", "markdown")
			if err != nil {
				return err
			}

			database, err := db.Init(e.baseDir)
			if err != nil {
				return outputError(fmt.Errorf("failed to initialize catalog: %w", err))
			}
			defer database.Close()

			input := ops.HistoryInput{
				Limit:  c.Int("limit"),
				Offset: c.Int("offset"),
			}
			if archive := c.String("archive"); archive != "" {
				input.Archive = &archive
			}

			out, err := ops.History(database, input)
			if err != nil {
				return outputError(err)
			}

			if format == "markdown" {
				_, err = io.WriteString(e.stdout, report.RunsMarkdown(out))
				return err
			}
			return outputJSON(e.stdout, out)
		},
	}
}

// runCmd creates the run command.
func runCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:      "run",
		Usage:     "Show one recorded run and the files it wrote",
		ArgsUsage: "<id>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "format", Aliases: []string{"f"}, Value: "json", Usage: "Output format: json|markdown"},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return cli.Exit("run takes exactly one id", exitUsage)
			}
			format, err := parseFormat(c.String("format"), "json", "markdown")
			if err != nil {
				return err
			}

			database, err := db.Init(e.baseDir)
			if err != nil {
				return outputError(fmt.Errorf("failed to initialize catalog: %w", err))
			}
			defer database.Close()

			out, err := ops.RunDetail(database, c.Args().First())
			if err != nil {
				return outputError(err)
			}

			if format == "markdown" {
				_, err = io.WriteString(e.stdout, report.RunMarkdown(out))
				return err
			}
			return outputJSON(e.stdout, out)
		},
	}
}

// mcpCmd creates the mcp command.
func mcpCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:  "mcp",
		Usage: "Serve the package tools over MCP stdio",
		Action: func(c *cli.Context) error {
			logger, err := newLogger(c, e.stderr)
			if err != nil {
				return err
			}
			cfg, err := loadConfig(c, e)
			if err != nil {
				return outputError(err)
			}

			for _, name := range mcp.ValidateDisabledTools(cfg.DisabledTools) {
				logger.Warn("unknown tool in disabled_tools", "tool", name)
			}
			for _, name := range mcp.ValidateDisabledTypes(cfg.DisabledTypes) {
				logger.Warn("unknown type in disabled_types", "type", name)
			}

			database, err := db.Init(e.baseDir)
			if err != nil {
				return outputError(fmt.Errorf("failed to initialize catalog: %w", err))
			}
			defer database.Close()

			if err := mcp.Run(database, cfg, Version, logger); err != nil {
				return cli.Exit(err.Error(), exitFailure)
			}
			return nil
		},
	}
}

// serveCmd creates the serve command.
func serveCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Browse the run catalog over HTTP",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "bind", Value: "127.0.0.1", Usage: "Address to bind"},
			&cli.IntFlag{Name: "port", Aliases: []string{"p"}, Value: 8420, Usage: "Port to listen on"},
		},
		Action: func(c *cli.Context) error {
			logger, err := newLogger(c, e.stderr)
			if err != nil {
				return err
			}

			database, err := db.Init(e.baseDir)
			if err != nil {
				return outputError(fmt.Errorf("failed to initialize catalog: %w", err))
			}
			defer database.Close()

			srv := web.NewServer(database, Version, c.String("bind"), c.Int("port"))
			if err := web.Run(c.Context, srv, logger); err != nil {
				return cli.Exit(err.Error(), exitFailure)
			}
			return nil
		},
	}
}

// Helper functions

// loadConfig merges ~/.upkg and repo config, then applies command-line flags.
func loadConfig(c *cli.Context, e *env) (*config.Config, error) {
	startDir := e.workDir
	if startDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			wd = "."
		}
		startDir = wd
	}

	var (
		cfg *config.Config
		err error
	)
	if c.Bool("no-repo-config") {
		cfg, err = config.Load(e.baseDir)
	} else {
		cfg, err = config.LoadWithRepo(e.baseDir, startDir)
	}
	if err != nil {
		return nil, errors.NewInvalidRequest(fmt.Sprintf("failed to load config: %v", err))
	}

	if c.IsSet("jobs") && c.Int("jobs") > 0 {
		cfg.Workers = c.Int("jobs")
	}
	cfg.Catalog = cfg.Catalog || c.Bool("catalog")
	cfg.Strict = cfg.Strict || c.Bool("strict")

	if _, _, err := cfg.Modes(); err != nil {
		return nil, errors.NewInvalidRequest(fmt.Sprintf("invalid config: %v", err))
	}
	return cfg, nil
}

// newLogger builds the process logger from --log-format and --verbose.
// Logs always go to stderr; stdout is reserved for command output.
func newLogger(c *cli.Context, w io.Writer) (*slog.Logger, error) {
	level := slog.LevelInfo
	if c.Bool("verbose") {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}

	switch format := c.String("log-format"); format {
	case "", "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, cli.Exit(fmt.Sprintf("invalid --log-format %q (want text or json)", format), exitUsage)
	}
}

// parseFormat validates an output format flag.
func parseFormat(format string, allowed ...string) (string, error) {
	for _, a := range allowed {
		if format == a {
			return format, nil
		}
	}
	return "", cli.Exit(fmt.Sprintf("invalid --format %q (want %s)", format, strings.Join(allowed, "|")), exitUsage)
}

// outputJSON marshals result to w as JSON.
func outputJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError formats error for CLI.
func outputError(err error) error {
	var uErr *errors.UpkgError
	if stderrors.As(err, &uErr) {
		return cli.Exit(fmt.Sprintf("[%s] %s", uErr.Code, uErr.Message), exitFailure)
	}
	return cli.Exit(err.Error(), exitFailure)
}
