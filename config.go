package parallel

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	"github.com/ethereum-optimism/infra/op-parallel/catalog"
	"github.com/ethereum-optimism/infra/op-parallel/flags"
	"github.com/ethereum-optimism/infra/op-parallel/runner"
	opmetrics "github.com/ethereum-optimism/optimism/op-service/metrics"
	"github.com/ethereum/go-ethereum/log"
)

// Config holds the application configuration
type Config struct {
	ScenarioFile     string            // Catalog file of selected scenarios
	ScenarioIDs      []string          // Additional uri:line identities
	Threads          int               // Maximum concurrent runner processes
	Retries          int               // Retries granted to each failing scenario
	Silent           bool              // Suppress runner console output
	ReportPath       string            // Consolidated report
	TempReportPath   string            // Folder for per-attempt artifacts
	Runner           string            // Runner executable
	RunnerArgs       []string          // Arguments placed before the format and scenario arguments
	WorkDir          string            // Working directory of the runner processes
	LogDir           string            // Directory to store per-attempt logs
	Environment      map[string]string // Defaults for unset runner environment variables
	Weighting        catalog.Weighting // Tag based scheduling weights
	Verbose          bool
	ShowProgress     bool          // Whether to show periodic progress updates
	ProgressInterval time.Duration // Interval between progress updates when ShowProgress is 'true'
	MetricsConfig    opmetrics.CLIConfig
	Log              log.Logger
}

// FileConfig is the optional YAML config file. Unset fields fall back to flag defaults.
type FileConfig struct {
	Scenarios        string             `yaml:"scenarios"`
	Threads          *int               `yaml:"threads"`
	Retries          *int               `yaml:"retries"`
	Silent           *bool              `yaml:"silent"`
	ReportPath       string             `yaml:"report_path"`
	TempReportPath   string             `yaml:"temp_report_path"`
	Runner           string             `yaml:"runner"`
	RunnerArgs       []string           `yaml:"runner_args"`
	WorkDir          string             `yaml:"workdir"`
	LogDir           string             `yaml:"log_dir"`
	ShowProgress     *bool              `yaml:"show_progress"`
	ProgressInterval *time.Duration     `yaml:"progress_interval"`
	WeightingTags    *catalog.Weighting `yaml:"weighting_tags"`
	Environment      map[string]string  `yaml:"environment"`
}

// LoadFileConfig reads a YAML config file
func LoadFileConfig(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", path, err)
	}
	var fc FileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("failed to parse config file '%s': %w", path, err)
	}
	return &fc, nil
}

// DefaultWeighting gives every scenario the same weight
func DefaultWeighting() catalog.Weighting {
	return catalog.Weighting{Pattern: "", Default: 1}
}

// NewConfig creates a new Config from cli context. Explicitly set flags win over the config
// file, which wins over flag defaults.
func NewConfig(ctx *cli.Context, log log.Logger) (*Config, error) {
	if err := flags.CheckRequired(ctx); err != nil {
		return nil, fmt.Errorf("missing required flags: %w", err)
	}

	fc := &FileConfig{}
	if path := ctx.String(flags.ConfigFile.Name); path != "" {
		var err error
		if fc, err = LoadFileConfig(path); err != nil {
			return nil, err
		}
	}

	cfg := &Config{
		ScenarioFile:     pickString(ctx, flags.Scenarios, fc.Scenarios),
		ScenarioIDs:      ctx.Args().Slice(),
		Threads:          pickInt(ctx, flags.Threads, fc.Threads),
		Retries:          pickInt(ctx, flags.Retries, fc.Retries),
		Silent:           pickBool(ctx, flags.Silent, fc.Silent),
		ReportPath:       pickString(ctx, flags.ReportPath, fc.ReportPath),
		TempReportPath:   pickString(ctx, flags.TempReportPath, fc.TempReportPath),
		Runner:           pickString(ctx, flags.Runner, fc.Runner),
		RunnerArgs:       fc.RunnerArgs,
		WorkDir:          pickString(ctx, flags.WorkDir, fc.WorkDir),
		LogDir:           pickString(ctx, flags.LogDir, fc.LogDir),
		Verbose:          ctx.Bool(flags.Verbose.Name),
		ShowProgress:     pickBool(ctx, flags.ShowProgress, fc.ShowProgress),
		ProgressInterval: ctx.Duration(flags.ProgressInterval.Name),
		Weighting:        DefaultWeighting(),
		MetricsConfig:    opmetrics.ReadCLIConfig(ctx),
		Log:              log,
	}
	if ctx.IsSet(flags.RunnerArgs.Name) {
		cfg.RunnerArgs = ctx.StringSlice(flags.RunnerArgs.Name)
	}
	if !ctx.IsSet(flags.ProgressInterval.Name) && fc.ProgressInterval != nil {
		cfg.ProgressInterval = *fc.ProgressInterval
	}
	if fc.WeightingTags != nil {
		cfg.Weighting = *fc.WeightingTags
	}

	env, err := buildEnvironment(fc.Environment, ctx.String(flags.QuickEnv.Name), ctx.StringSlice(flags.Env.Name))
	if err != nil {
		return nil, err
	}
	cfg.Environment = env

	if err := cfg.resolvePaths(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration values
func (c *Config) Validate() error {
	if c.ScenarioFile == "" && len(c.ScenarioIDs) == 0 {
		return errors.New("no scenarios given: set --scenarios or pass uri:line arguments")
	}
	if c.Threads < 1 {
		return fmt.Errorf("threads must be at least 1, got %d", c.Threads)
	}
	if c.Threads > runner.MaxReasonableConcurrency {
		return fmt.Errorf("threads must be at most %d, got %d", runner.MaxReasonableConcurrency, c.Threads)
	}
	if c.Retries < 0 {
		return fmt.Errorf("retries must not be negative, got %d", c.Retries)
	}
	if strings.TrimSpace(c.Runner) == "" {
		return errors.New("runner is required")
	}
	if c.ReportPath == "" {
		return errors.New("report path is required")
	}
	if c.TempReportPath == "" {
		return errors.New("temp report path is required")
	}
	return nil
}

func (c *Config) resolvePaths() error {
	paths := map[string]*string{
		"scenario file":    &c.ScenarioFile,
		"report path":      &c.ReportPath,
		"temp report path": &c.TempReportPath,
		"workdir":          &c.WorkDir,
		"log directory":    &c.LogDir,
	}
	for name, p := range paths {
		if *p == "" {
			continue
		}
		abs, err := filepath.Abs(*p)
		if err != nil {
			return fmt.Errorf("failed to resolve absolute path for %s '%s': %w", name, *p, err)
		}
		*p = abs
	}
	return nil
}

// buildEnvironment layers the config file environment, the ENVIRONMENT shorthand and
// KEY=VALUE pairs, later layers overriding earlier ones.
func buildEnvironment(fromFile map[string]string, quickEnv string, pairs []string) (map[string]string, error) {
	env := make(map[string]string, len(fromFile)+len(pairs)+1)
	for k, v := range fromFile {
		env[k] = v
	}
	if quickEnv != "" {
		env["ENVIRONMENT"] = quickEnv
	}
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" || strings.Contains(value, "=") {
			return nil, fmt.Errorf("couldn't parse environment variable key=value pair '%s'", pair)
		}
		env[key] = value
	}
	return env, nil
}

func pickString(ctx *cli.Context, f *cli.StringFlag, fromFile string) string {
	if !ctx.IsSet(f.Name) && fromFile != "" {
		return fromFile
	}
	return ctx.String(f.Name)
}

func pickInt(ctx *cli.Context, f *cli.IntFlag, fromFile *int) int {
	if !ctx.IsSet(f.Name) && fromFile != nil {
		return *fromFile
	}
	return ctx.Int(f.Name)
}

func pickBool(ctx *cli.Context, f *cli.BoolFlag, fromFile *bool) bool {
	if !ctx.IsSet(f.Name) && fromFile != nil {
		return *fromFile
	}
	return ctx.Bool(f.Name)
}
