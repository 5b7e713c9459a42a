package flags

import (
	"fmt"
	"time"

	"github.com/urfave/cli/v2"

	opservice "github.com/ethereum-optimism/optimism/op-service"
	opflags "github.com/ethereum-optimism/optimism/op-service/flags"
	oplog "github.com/ethereum-optimism/optimism/op-service/log"
	opmetrics "github.com/ethereum-optimism/optimism/op-service/metrics"
)

const EnvVarPrefix = "OP_PARALLEL"

var (
	Scenarios = &cli.StringFlag{
		Name:    "scenarios",
		Value:   "",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "SCENARIOS"),
		Usage:   "Path to the scenario catalog file (eg. 'scenarios.yaml'). Positional uri:line arguments are added to it",
	}
	ConfigFile = &cli.StringFlag{
		Name:    "config",
		Value:   "",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "CONFIG"),
		Usage:   "Path to an optional YAML config file. Flags take precedence over its values",
	}
	Threads = &cli.IntFlag{
		Name:    "threads",
		Value:   5,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "THREADS"),
		Usage:   "Maximum number of scenario executions running at the same time",
	}
	Retries = &cli.IntFlag{
		Name:    "retries",
		Value:   0,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "RETRIES"),
		Usage:   "Number of times a failing scenario is re-run before it is reported as failed",
	}
	Silent = &cli.BoolFlag{
		Name:    "silent",
		Value:   false,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "SILENT"),
		Usage:   "Do not forward runner output to the console",
	}
	ReportPath = &cli.StringFlag{
		Name:    "report-path",
		Value:   "./reports/report.json",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "REPORT_PATH"),
		Usage:   "Path of the consolidated JSON report",
	}
	TempReportPath = &cli.StringFlag{
		Name:    "temp-report-path",
		Value:   "./reports/tmp/",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "TEMP_REPORT_PATH"),
		Usage:   "Directory for per-attempt JSON artifacts",
	}
	Runner = &cli.StringFlag{
		Name:    "runner",
		Value:   "cucumber-js",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "RUNNER"),
		Usage:   "Scenario runner executable",
	}
	RunnerArgs = &cli.StringSliceFlag{
		Name:    "runner-arg",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "RUNNER_ARG"),
		Usage:   "Extra argument passed to the runner before the format and scenario arguments. Can be repeated",
	}
	WorkDir = &cli.StringFlag{
		Name:    "workdir",
		Value:   "",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "WORKDIR"),
		Usage:   "Working directory of the runner processes. Defaults to the current directory",
	}
	LogDir = &cli.StringFlag{
		Name:    "log-dir",
		Value:   "logs",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "LOG_DIR"),
		Usage:   "Directory to store per-attempt runner logs",
	}
	Env = &cli.StringSliceFlag{
		Name:    "env",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "ENV"),
		Usage:   "KEY=VALUE environment variable for the runner processes, overriding the config file. Can be repeated",
	}
	QuickEnv = &cli.StringFlag{
		Name:    "quick-env",
		Value:   "",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "QUICK_ENV"),
		Usage:   "Shorthand for --env ENVIRONMENT=<value>",
	}
	Verbose = &cli.BoolFlag{
		Name:    "verbose",
		Value:   false,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "VERBOSE"),
		Usage:   "Log the resolved configuration before the run",
	}
	ShowProgress = &cli.BoolFlag{
		Name:    "show-progress",
		Value:   false,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "SHOW_PROGRESS"),
		Usage:   "Log periodic progress updates during the run",
	}
	ProgressInterval = &cli.DurationFlag{
		Name:    "progress-interval",
		Value:   30 * time.Second,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "PROGRESS_INTERVAL"),
		Usage:   "Interval between progress updates when --show-progress is set",
	}
)

var requiredFlags = []cli.Flag{}

var optionalFlags = []cli.Flag{
	Scenarios,
	ConfigFile,
	Threads,
	Retries,
	Silent,
	ReportPath,
	TempReportPath,
	Runner,
	RunnerArgs,
	WorkDir,
	LogDir,
	Env,
	QuickEnv,
	Verbose,
	ShowProgress,
	ProgressInterval,
}
var Flags []cli.Flag

func init() {
	optionalFlags = append(optionalFlags, oplog.CLIFlags(EnvVarPrefix)...)
	optionalFlags = append(optionalFlags, opmetrics.CLIFlags(EnvVarPrefix)...)

	Flags = append(requiredFlags, optionalFlags...)
}

func CheckRequired(ctx *cli.Context) error {
	for _, f := range requiredFlags {
		if !ctx.IsSet(f.Names()[0]) {
			return fmt.Errorf("flag %s is required", f.Names()[0])
		}
	}
	return opflags.CheckRequiredXor(ctx)
}
