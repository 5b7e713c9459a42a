package parallel

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/ethereum-optimism/infra/op-parallel/catalog"
	"github.com/ethereum-optimism/infra/op-parallel/logging"
	"github.com/ethereum-optimism/infra/op-parallel/metrics"
	"github.com/ethereum-optimism/infra/op-parallel/reporting"
	"github.com/ethereum-optimism/infra/op-parallel/runner"
	"github.com/ethereum-optimism/infra/op-parallel/service"
	"github.com/ethereum-optimism/infra/op-parallel/summary"
	"github.com/ethereum-optimism/optimism/op-service/cliapp"
)

// parallel implements the cliapp.Lifecycle interface.
var _ cliapp.Lifecycle = &parallel{}

// parallel runs a catalog of scenarios once across a pool of runner processes.
type parallel struct {
	config     *Config
	version    string
	runID      string
	catalog    *catalog.Catalog
	fileLogger *logging.FileLogger
	scheduler  *runner.Scheduler
	status     *service.Service
	summary    *summary.Summary
	out        io.Writer

	running atomic.Bool
	started atomic.Bool

	shutdownCallback func(error) // Callback to signal application shutdown
}

// Option customizes a parallel instance
type Option func(*options)

type options struct {
	launcher runner.Launcher
	progress runner.ProgressIndicator
	out      io.Writer
}

// WithLauncher replaces the process launcher, e.g. with an in-process fake
func WithLauncher(l runner.Launcher) Option {
	return func(o *options) { o.launcher = l }
}

// WithProgress replaces the progress indicator selected by the configuration
func WithProgress(p runner.ProgressIndicator) Option {
	return func(o *options) { o.progress = p }
}

// WithOutput sets where the summary and results table are printed. Defaults to os.Stdout.
func WithOutput(w io.Writer) Option {
	return func(o *options) { o.out = w }
}

func New(ctx context.Context, config *Config, version string, shutdownCallback func(error), opts ...Option) (*parallel, error) {
	if config == nil {
		return nil, errors.New("config is required")
	}
	o := &options{out: os.Stdout}
	for _, opt := range opts {
		opt(o)
	}

	cat, err := loadCatalog(config)
	if err != nil {
		return nil, err
	}
	if cat.Len() == 0 {
		// An upstream filter that selected nothing still produces an empty report
		config.Log.Warn("The scenario catalog is empty")
	}

	runID := uuid.New().String()
	logger := config.Log.New("run_id", runID)

	if config.Verbose {
		logger.Info("Resolved configuration",
			"scenarioFile", config.ScenarioFile,
			"scenarios", cat.Len(),
			"threads", config.Threads,
			"retries", config.Retries,
			"silent", config.Silent,
			"reportPath", config.ReportPath,
			"tempReportPath", config.TempReportPath,
			"runner", config.Runner,
			"runnerArgs", strings.Join(config.RunnerArgs, " "),
			"workDir", config.WorkDir,
			"logDir", config.LogDir,
			"environment", config.Environment,
			"weightingPattern", config.Weighting.Pattern)
	}

	fileLogger, err := logging.NewFileLogger(config.LogDir, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to create file logger: %w", err)
	}

	launcher := o.launcher
	if launcher == nil {
		launcher, err = runner.NewProcessLauncher(runner.ProcessLauncherConfig{
			Command:     config.Runner,
			Args:        config.RunnerArgs,
			WorkDir:     config.WorkDir,
			Environment: config.Environment,
			Silent:      config.Silent,
			FileLogger:  fileLogger,
			Log:         logger,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create launcher: %w", err)
		}
	}

	progress := o.progress
	switch {
	case progress != nil:
	case config.ShowProgress:
		progress = runner.NewConsoleProgressIndicator(logger, config.ProgressInterval)
	default:
		progress = runner.NewNoOpProgressIndicator()
	}

	scheduler, err := runner.NewScheduler(runner.SchedulerConfig{
		Concurrency: config.Threads,
		Retries:     config.Retries,
		TempDir:     config.TempReportPath,
		RunID:       runID,
		Launcher:    launcher,
		Accumulator: reporting.NewAccumulator(config.ReportPath, logger),
		Progress:    progress,
		FileLogger:  fileLogger,
		Log:         logger,
	})
	if err != nil {
		// Stops the console indicator's ticker
		progress.CompleteRun()
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}
	logger.Debug("parallel.New: created catalog and scheduler", "scenarios", cat.Len())

	return &parallel{
		config:           config,
		version:          version,
		runID:            runID,
		catalog:          cat,
		fileLogger:       fileLogger,
		scheduler:        scheduler,
		status:           service.New(statusConfig(config), logger),
		out:              o.out,
		shutdownCallback: shutdownCallback,
	}, nil
}

// statusConfig serves /metrics on the op-service metrics address when metrics are enabled
func statusConfig(config *Config) service.Config {
	cfg := service.DefaultConfig()
	cfg.Enabled = config.MetricsConfig.Enabled
	if config.MetricsConfig.ListenAddr != "" {
		cfg.MetricsAddr = net.JoinHostPort(config.MetricsConfig.ListenAddr, strconv.Itoa(config.MetricsConfig.ListenPort))
	}
	return cfg
}

func loadCatalog(config *Config) (*catalog.Catalog, error) {
	cat := catalog.New()
	if config.ScenarioFile != "" {
		loaded, err := catalog.Load(config.ScenarioFile)
		if err != nil {
			return nil, err
		}
		cat = loaded
	}
	fromArgs, err := catalog.FromIdentities(config.ScenarioIDs)
	if err != nil {
		return nil, err
	}
	cat.Add(fromArgs.Scenarios...)
	return cat, nil
}

// Start runs every scenario of the catalog once, with retries, and prints the results.
// Start implements the cliapp.Lifecycle interface.
func (p *parallel) Start(ctx context.Context) (err error) {
	if !p.started.CompareAndSwap(false, true) {
		return NewRuntimeError(errors.New("scenario run already started"))
	}
	p.running.Store(true)
	defer func() {
		if r := recover(); r != nil {
			p.config.Log.Error("Runtime error occurred", "error", r)
			p.running.Store(false)
			err = NewRuntimeError(fmt.Errorf("panic during scenario run: %v", r))
		}
	}()

	p.config.Log.Info("Starting op-parallel", "version", p.version, "run_id", p.runID, "scenarios", p.catalog.Len())
	p.status.Start(ctx)

	sum, runErr := p.scheduler.Run(ctx, p.catalog.Refs(p.config.Weighting))
	p.summary = sum
	p.report(sum)
	p.running.Store(false)

	if runErr != nil {
		p.config.Log.Error("Runtime error running scenarios", "error", runErr)
		return NewRuntimeError(runErr)
	}

	if sum.ExitCode() != 0 {
		failed := sum.FailedAfterRetry()
		p.config.Log.Warn("Scenario run completed with failures, returning exit code 1", "failed", len(failed))
		return NewTestFailureError(failed...)
	}

	p.config.Log.Info("Scenarios completed, exiting")
	go func() {
		p.shutdownCallback(nil)
	}()
	return nil
}

// report prints the summary and results table, keeps a copy in the run log directory and
// emits the run metrics.
func (p *parallel) report(sum *summary.Summary) {
	var rendered bytes.Buffer
	if err := sum.Render(&rendered); err != nil {
		p.config.Log.Error("Failed to render summary", "error", err)
	}
	if _, err := p.out.Write(rendered.Bytes()); err != nil {
		p.config.Log.Error("Failed to print summary", "error", err)
	}
	sum.Table(p.out)
	if err := sum.FailureBox(p.out); err != nil {
		p.config.Log.Error("Failed to print failed scenarios", "error", err)
	}
	if err := p.writeResultsPage(sum); err != nil {
		p.config.Log.Error("Failed to write results page", "error", err)
	}

	if err := p.fileLogger.LogSummary(rendered.String()); err != nil {
		p.config.Log.Error("Failed to write summary log", "error", err)
	}
	if err := p.fileLogger.Complete(); err != nil {
		p.config.Log.Error("Failed to close log files", "error", err)
	}

	totals := sum.Totals()
	result := "pass"
	if sum.ExitCode() != 0 {
		result = "fail"
	}
	metrics.RecordRun(p.runID, result, totals.Attempted, totals.Passed, totals.Failed,
		len(sum.FailedAfterRetry()), sum.Duration())

	p.config.Log.Info("Scenario run completed",
		"run_id", p.runID,
		"result", result,
		"logDir", p.fileLogger.GetDirectory(),
		"report", p.config.ReportPath)
}

func (p *parallel) writeResultsPage(sum *summary.Summary) error {
	f, err := os.Create(p.fileLogger.GetResultsFile())
	if err != nil {
		return err
	}
	if err := sum.HTML(f, p.runID); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Stop implements the cliapp.Lifecycle interface. A run in progress is stopped by cancelling
// the context passed to Start; in-flight executions still complete.
func (p *parallel) Stop(ctx context.Context) error {
	p.config.Log.Info("Stopping op-parallel")
	p.status.Shutdown(ctx)
	if !p.running.Load() {
		p.config.Log.Debug("Service already stopped, nothing to do")
		return nil
	}
	p.running.Store(false)
	p.config.Log.Info("op-parallel stopped successfully")
	return nil
}

// Stopped implements the cliapp.Lifecycle interface.
func (p *parallel) Stopped() bool {
	return !p.running.Load()
}

// RunID returns the identifier of the run, used to name its log directory
func (p *parallel) RunID() string {
	return p.runID
}

// Summary returns the run summary once Start has returned
func (p *parallel) Summary() *summary.Summary {
	return p.summary
}
