// Command buildgrid is the CLI entrypoint: it parses flags, loads a plan
// and its import environment from disk, runs the build, and translates
// the outcome to a process exit code (spec §6 "Invocation surface").
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/vk/buildgrid/internal/cli"
	"github.com/vk/buildgrid/internal/dispatch"
	"github.com/vk/buildgrid/internal/driver"
	"github.com/vk/buildgrid/internal/environ"
	"github.com/vk/buildgrid/internal/evalref"
	"github.com/vk/buildgrid/internal/planfile"
	"github.com/vk/buildgrid/internal/progress"
	"github.com/vk/buildgrid/internal/subdoc"
)

// main is the entrypoint for the buildgrid binary.
func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	code, err := run(os.Stdout, os.Args[1:])
	if err != nil {
		if exitErr, ok := err.(*cli.ExitError); ok {
			fmt.Fprintln(os.Stderr, exitErr.Message)
			os.Exit(exitErr.Code)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	os.Exit(code)
}

// run encapsulates the main application logic for easier testing and error
// handling: it never calls os.Exit itself.
func run(outW io.Writer, args []string) (int, error) {
	parsed, shouldExit, err := cli.Parse(args, outW)
	if err != nil {
		return 0, err
	}
	if shouldExit {
		return driver.ExitOK, nil
	}

	logger := newLogger(parsed.LogLevel, parsed.LogFormat, os.Stderr)
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	p, err := planfile.Load(parsed.PlanPath)
	if err != nil {
		return 0, err
	}
	logger.Debug("plan loaded", "path", parsed.PlanPath, "rows", len(p))

	env := environ.Env{}
	if parsed.ImportsPath != "" {
		env, err = environ.FromDirectory(ctx, parsed.ImportsPath)
		if err != nil {
			return 0, err
		}
	}
	logger.Debug("imports loaded", "path", parsed.ImportsPath, "count", len(env))

	registry := dispatch.NewRegistry(parsed.Config.Backend)
	if err := registry.Register("fork", &dispatch.ForkBackend{Eval: evalref.New(env)}); err != nil {
		return 0, err
	}

	events := make(chan progress.Event, 64)
	reporter := &progress.Reporter{Sink: events}
	done := make(chan struct{})
	go renderProgress(logger, events, done, parsed.Config.Verbose)

	deps := driver.Deps{
		Subdoc:   subdoc.YAMLExtractor{},
		Backends: registry,
		Reporter: reporter,
	}

	summary, buildErr := driver.Build(ctx, p, env, parsed.Config, deps)
	close(events)
	<-done

	logger.Info("build finished",
		"built", len(summary.Built),
		"failed", len(summary.Failed),
		"skipped", len(summary.Skipped),
		"aborted", len(summary.Aborted),
	)
	return driver.ExitCode(summary, buildErr), buildErr
}

// renderProgress drains events, logging one line per event when verbose is
// set and staying silent otherwise (spec §7's verbose/non-verbose modes).
// It closes done once the channel is drained so run can wait for every
// event to be flushed before printing the final summary.
func renderProgress(logger *slog.Logger, events <-chan progress.Event, done chan<- struct{}, verbose bool) {
	defer close(done)
	for ev := range events {
		if !verbose {
			continue
		}
		if ev.Err != nil {
			logger.Warn("target event", "target", ev.Target, "kind", ev.Kind.String(), "err", ev.Err)
			continue
		}
		logger.Info("target event", "target", ev.Target, "kind", ev.Kind.String())
	}
}

// newLogger creates and configures a new slog.Logger instance.
func newLogger(levelStr, formatStr string, outW io.Writer) *slog.Logger {
	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	handlerOpts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if formatStr == "text" {
		handler = slog.NewTextHandler(outW, handlerOpts)
	} else {
		handler = slog.NewJSONHandler(outW, handlerOpts)
	}
	return slog.New(handler)
}
