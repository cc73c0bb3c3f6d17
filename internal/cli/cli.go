package cli

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/vk/buildgrid/internal/driver"
	"github.com/vk/buildgrid/internal/plan"
	"github.com/vk/buildgrid/internal/scheduler"
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// Args is the fully-parsed, validated result of a CLI invocation: the
// paths driver.Build needs to load plus the run's Config (spec §6
// "Invocation surface", "Recognized configuration options").
type Args struct {
	PlanPath    string
	ImportsPath string
	LogFormat   string
	LogLevel    string
	Config      driver.Config
}

// Parse processes command-line arguments. It returns populated Args, a
// boolean indicating if the program should exit cleanly (e.g. -help), or
// an ExitError.
func Parse(args []string, output io.Writer) (*Args, bool, error) {
	slog.Debug("CLI parser started.")
	flagSet := flag.NewFlagSet("buildgrid", flag.ContinueOnError)
	flagSet.SetOutput(output)

	flagSet.Usage = func() {
		fmt.Fprint(output, `
buildgrid - a reproducible, content-addressed build engine.

Usage:
  buildgrid [options] PLAN_PATH

Arguments:
  PLAN_PATH
    Path to a plan file (HCL, see internal/planfile).

Options:
`)
		flagSet.PrintDefaults()
	}

	importsFlag := flagSet.String("imports", "", "Path to a directory of import manifests (see environ.FromDirectory).")
	strategyFlag := flagSet.String("strategy", "dynamic", "Scheduling strategy: 'staged' or 'dynamic'.")
	backendFlag := flagSet.String("backend", "fork", "Default dispatch backend name.")
	maxParallelFlag := flagSet.Int("max-parallel", 1, "Maximum concurrent dispatches.")
	triggerDefaultFlag := flagSet.String("trigger-default", "any", "Default staleness trigger for rows without their own.")
	cacheDirFlag := flagSet.String("cache-dir", ".buildgrid-cache", "Cache root directory.")
	keepGoingFlag := flagSet.Bool("keep-going", false, "Continue past a target failure instead of aborting.")
	verboseFlag := flagSet.Bool("verbose", false, "Emit per-event progress logging in addition to the summary.")
	rootSeedFlag := flagSet.String("root-seed", "", "Base seed for reproducible evaluation.")
	cachingFlag := flagSet.String("caching", "worker", "Caching site recorded on each work item: 'worker' or 'master'.")
	strictFlag := flagSet.Bool("strict", false, "Promote a missing dependency from a warning to a fatal error.")
	shortHashFlag := flagSet.String("short-hash-algo", "fnv64a", "Short hash algorithm identifier.")
	longHashFlag := flagSet.String("long-hash-algo", "sha256", "Long hash algorithm identifier.")
	logFormatFlag := flagSet.String("log-format", "json", "Log output format. Options: 'text' or 'json'.")
	logLevelFlag := flagSet.String("log-level", "info", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")

	if err := flagSet.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}
	slog.Debug("Arguments parsed successfully.")

	if flagSet.NArg() == 0 {
		flagSet.Usage()
		return nil, true, nil
	}
	planPath := flagSet.Arg(0)

	var strategy driver.Strategy
	switch strings.ToLower(*strategyFlag) {
	case "staged":
		strategy = driver.StrategyStaged
	case "dynamic":
		strategy = driver.StrategyDynamic
	default:
		return nil, false, &ExitError{Code: 2, Message: "invalid strategy: must be 'staged' or 'dynamic'"}
	}

	trigger, ok := plan.ParseTrigger(strings.ToLower(*triggerDefaultFlag))
	if !ok {
		return nil, false, &ExitError{Code: 2, Message: fmt.Sprintf("invalid trigger-default %q", *triggerDefaultFlag)}
	}

	var caching scheduler.CachingSite
	switch strings.ToLower(*cachingFlag) {
	case "worker":
		caching = scheduler.Worker
	case "master":
		caching = scheduler.Master
	default:
		return nil, false, &ExitError{Code: 2, Message: "invalid caching site: must be 'worker' or 'master'"}
	}

	logFormat := strings.ToLower(*logFormatFlag)
	if logFormat != "text" && logFormat != "json" {
		return nil, false, &ExitError{Code: 2, Message: "invalid log-format: must be 'text' or 'json'"}
	}
	logLevel := strings.ToLower(*logLevelFlag)
	switch logLevel {
	case "debug", "info", "warn", "error":
	default:
		return nil, false, &ExitError{Code: 2, Message: "invalid log-level: must be 'debug', 'info', 'warn', or 'error'"}
	}
	slog.Debug("CLI parameter validation complete.")

	result := &Args{
		PlanPath:    planPath,
		ImportsPath: *importsFlag,
		LogFormat:   logFormat,
		LogLevel:    logLevel,
		Config: driver.Config{
			Strategy:       strategy,
			Backend:        *backendFlag,
			MaxParallel:    *maxParallelFlag,
			TriggerDefault: trigger,
			CacheDir:       *cacheDirFlag,
			KeepGoing:      *keepGoingFlag,
			Verbose:        *verboseFlag,
			RootSeed:       *rootSeedFlag,
			Caching:        caching,
			Strict:         *strictFlag,
			ShortHashAlgo:  *shortHashFlag,
			LongHashAlgo:   *longHashFlag,
		},
	}
	slog.Debug("CLI parser finished successfully.", "args", result)
	return result, false, nil
}
