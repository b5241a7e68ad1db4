package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/hpungsan/upkg/internal/config"
)

// Version is set via -ldflags at build time.
var Version = "dev"

// Exit statuses.
const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
)

const usage = `Usage: upkg [options] <file.unitypackage>...
       upkg <command> [options]
       upkg --help
`

func main() {
	os.Exit(run(os.Args, os.Stdout, os.Stderr))
}

// run executes the CLI and returns the process exit status.
func run(args []string, stdout, stderr io.Writer) int {
	// Nothing to do: report usage before touching config or the filesystem.
	if len(args) < 2 {
		fmt.Fprint(stderr, usage)
		return exitUsage
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		fmt.Fprintf(stderr, "error: could not determine home directory: %v\n", err)
		return exitFailure
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := newCLIApp(&env{
		baseDir: filepath.Join(homeDir, config.DirName),
		stdout:  stdout,
		stderr:  stderr,
	})
	return exitStatus(app.RunContext(ctx, args), stderr)
}

// exitStatus maps an app error to a process exit status, printing its message.
func exitStatus(err error, stderr io.Writer) int {
	if err == nil {
		return exitOK
	}

	var exitErr cli.ExitCoder
	if stderrors.As(err, &exitErr) {
		if msg := exitErr.Error(); msg != "" {
			fmt.Fprintf(stderr, "error: %s\n", msg)
		}
		return exitErr.ExitCode()
	}

	fmt.Fprintf(stderr, "error: %v\n", err)
	return exitFailure
}
