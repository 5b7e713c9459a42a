package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sort"
	"strings"
	"time"

	"github.com/ethereum-optimism/infra/op-parallel/logging"
	"github.com/ethereum-optimism/infra/op-parallel/types"
	"github.com/ethereum-optimism/optimism/devnet-sdk/telemetry"
	"github.com/ethereum/go-ethereum/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// LaunchResult describes how one runner process terminated.
type LaunchResult struct {
	ExitCode   int
	Err        error // set when the process could not be started or did not exit normally
	Duration   time.Duration
	OutputTail string
	LogPath    string
}

// Launcher starts one external execution for a scenario attempt and blocks until it exits.
// The execution must write its partial report to artifactPath.
type Launcher interface {
	Launch(ctx context.Context, ref types.ScenarioRef, artifactPath string) LaunchResult
}

// LauncherFunc adapts a function to the Launcher interface
type LauncherFunc func(ctx context.Context, ref types.ScenarioRef, artifactPath string) LaunchResult

func (f LauncherFunc) Launch(ctx context.Context, ref types.ScenarioRef, artifactPath string) LaunchResult {
	return f(ctx, ref, artifactPath)
}

// ProcessLauncherConfig holds the configuration for launching runner processes
type ProcessLauncherConfig struct {
	Command     string            // Runner executable
	Args        []string          // Extra runner arguments placed before the format flag
	WorkDir     string            // Working directory of the runner processes
	Environment map[string]string // Defaults for variables not set in the parent environment
	Silent      bool              // Do not forward runner output to the console
	Stdout      io.Writer         // Console stdout, defaults to os.Stdout
	Stderr      io.Writer         // Console stderr, defaults to os.Stderr
	FileLogger  *logging.FileLogger
	Log         log.Logger
}

// ProcessLauncher runs every attempt as `<command> <args...> --format json:<artifact> <uri:line>`.
type ProcessLauncher struct {
	command    string
	args       []string
	workDir    string
	env        []string
	silent     bool
	stdout     io.Writer
	stderr     io.Writer
	fileLogger *logging.FileLogger
	log        log.Logger
	tracer     trace.Tracer
}

// NewProcessLauncher creates a launcher for the configured runner
func NewProcessLauncher(cfg ProcessLauncherConfig) (*ProcessLauncher, error) {
	if strings.TrimSpace(cfg.Command) == "" {
		return nil, errors.New("runner command is required")
	}
	logger := cfg.Log
	if logger == nil {
		logger = log.New()
	}
	stdout := cfg.Stdout
	if stdout == nil {
		stdout = os.Stdout
	}
	stderr := cfg.Stderr
	if stderr == nil {
		stderr = os.Stderr
	}
	return &ProcessLauncher{
		command:    cfg.Command,
		args:       append([]string(nil), cfg.Args...),
		workDir:    cfg.WorkDir,
		env:        mergeEnvironment(os.Environ(), cfg.Environment),
		silent:     cfg.Silent,
		stdout:     stdout,
		stderr:     stderr,
		fileLogger: cfg.FileLogger,
		log:        logger.New("component", "launcher"),
		tracer:     otel.Tracer("scenario launcher"),
	}, nil
}

// mergeEnvironment adds defaults for variables that are not already present in base.
// Existing values always win.
func mergeEnvironment(base []string, defaults map[string]string) []string {
	env := append([]string(nil), base...)
	present := make(map[string]bool, len(base))
	for _, kv := range base {
		if idx := strings.Index(kv, "="); idx > 0 {
			present[kv[:idx]] = true
		}
	}
	keys := make([]string, 0, len(defaults))
	for k := range defaults {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if !present[k] {
			env = append(env, k+"="+defaults[k])
		}
	}
	return env
}

// Args returns the command line arguments used for the attempt
func (l *ProcessLauncher) Args(ref types.ScenarioRef, artifactPath string) []string {
	args := append([]string(nil), l.args...)
	return append(args, FormatFlag, JSONFormatPrefix+artifactPath, ref.ID())
}

// Launch runs the attempt to completion. The process is not bound to ctx: once started, an
// execution always runs until it exits on its own.
func (l *ProcessLauncher) Launch(ctx context.Context, ref types.ScenarioRef, artifactPath string) LaunchResult {
	ctx, span := l.tracer.Start(ctx, fmt.Sprintf("scenario %s", ref.ID()))
	defer span.End()
	span.SetAttributes(
		attribute.String("scenario.uri", ref.URI),
		attribute.Int("scenario.line", ref.Line),
		attribute.Int("scenario.attempt", ref.Attempt),
	)

	cmd := exec.Command(l.command, l.Args(ref, artifactPath)...)
	cmd.Dir = l.workDir
	cmd.Env = telemetry.InstrumentEnvironment(ctx, l.env)

	tail := newTailBuffer(outputTailBytes)
	stdoutWriters := []io.Writer{tail}
	stderrWriters := []io.Writer{tail}
	if !l.silent {
		stdoutWriters = append(stdoutWriters, l.stdout)
		stderrWriters = append(stderrWriters, l.stderr)
	}

	var result LaunchResult
	if l.fileLogger != nil {
		logWriter, logPath, err := l.fileLogger.AttemptWriter(ArtifactName(ref))
		if err != nil {
			l.log.Warn("Failed to open attempt log", "scenario", ref.ID(), "attempt", ref.Attempt, "error", err)
		} else {
			defer func() {
				if err := logWriter.Close(); err != nil {
					l.log.Warn("Failed to close attempt log", "path", logPath, "error", err)
				}
			}()
			stdoutWriters = append(stdoutWriters, logWriter)
			stderrWriters = append(stderrWriters, logWriter)
			result.LogPath = logPath
		}
	}
	cmd.Stdout = io.MultiWriter(stdoutWriters...)
	cmd.Stderr = io.MultiWriter(stderrWriters...)

	l.log.Debug("Running scenario command",
		"dir", cmd.Dir,
		"scenario", ref.ID(),
		"attempt", ref.Attempt,
		"command", cmd.String())

	start := time.Now()
	runErr := cmd.Run()
	result.Duration = time.Since(start)
	result.OutputTail = tail.String()

	if runErr != nil {
		exitErr := &exec.ExitError{}
		if errors.As(runErr, &exitErr) && exitErr.Exited() {
			result.ExitCode = exitErr.ExitCode()
		} else {
			result.ExitCode = -1
			result.Err = fmt.Errorf("failed to run scenario %s: %w", ref.ID(), runErr)
		}
		span.SetStatus(codes.Error, runErr.Error())
	}
	span.SetAttributes(
		attribute.Int("scenario.exit_code", result.ExitCode),
		attribute.Int64("scenario.output_bytes", tail.TotalBytes()),
		attribute.Bool("scenario.output_truncated", tail.Truncated()),
	)

	return result
}

var _ Launcher = (*ProcessLauncher)(nil)
