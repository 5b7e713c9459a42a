package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"

	parallel "github.com/ethereum-optimism/infra/op-parallel"
	"github.com/ethereum-optimism/infra/op-parallel/exitcodes"
)

// fakeRunner is invoked as `sh <script> --format json:<artifact> <uri:line>`.
// Scenarios whose uri contains "failing" exit with 1; "flaky" ones fail until a marker file exists.
const fakeRunner = `
artifact="${2#json:}"
printf '[{"id":"%s","line":1,"name":"F","elements":[{"id":"%s","name":"s","steps":[{"result":{"status":"passed"}}]}]}]' "$3" "$3" > "$artifact"
case "$3" in
  *failing*) exit 1 ;;
  *flaky*)
    if [ -f flaky.marker ]; then exit 0; fi
    touch flaky.marker
    exit 1 ;;
esac
exit 0
`

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "nil", err: nil, want: exitcodes.Success},
		{name: "test failure", err: parallel.NewTestFailureError("1 scenario failed"), want: exitcodes.TestFailure},
		{name: "wrapped test failure", err: fmt.Errorf("failed to start: %w", parallel.NewTestFailureError("x")), want: exitcodes.TestFailure},
		{name: "joined test failure", err: errors.Join(errors.New("ctx"), parallel.NewTestFailureError("x")), want: exitcodes.TestFailure},
		{name: "runtime error", err: parallel.NewRuntimeError(errors.New("bad config")), want: exitcodes.RuntimeErr},
		{name: "exit coder", err: cli.Exit("explicit", 3), want: 3},
		{name: "untyped", err: errors.New("boom"), want: exitcodes.RuntimeErr},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, exitCode(tt.err))
		})
	}
}

// TestExitCodeBehavior verifies that op-parallel returns the correct exit codes:
// - Exit code 0 when every scenario passes, possibly after a retry
// - Exit code 1 when a scenario fails after all retries
// - Exit code 2 when there's a runtime error
func TestExitCodeBehavior(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping CLI integration test in short mode")
	}
	if runtime.GOOS == "windows" {
		t.Skip("fake runner requires a POSIX shell")
	}

	binary := buildOpParallel(t)

	testCases := []struct {
		name           string
		args           []string
		scenarioFile   string
		expectedStatus int
	}{
		{
			name:           "Passing scenarios should exit with code 0",
			args:           []string{"features/a.feature:1", "features/b.feature:4"},
			expectedStatus: exitcodes.Success,
		},
		{
			name:           "Flaky scenario passing on retry should exit with code 0",
			args:           []string{"--retries", "1", "features/flaky.feature:1"},
			expectedStatus: exitcodes.Success,
		},
		{
			name:           "Failing scenario should exit with code 1",
			args:           []string{"--retries", "2", "features/a.feature:1", "features/failing.feature:7"},
			expectedStatus: exitcodes.TestFailure,
		},
		{
			name:           "Invalid scenario identity should exit with code 2",
			args:           []string{"features/a.feature"},
			expectedStatus: exitcodes.RuntimeErr,
		},
		{
			name:           "Empty scenario catalog should exit with code 0",
			scenarioFile:   "scenarios: []\n",
			expectedStatus: exitcodes.Success,
		},
		{
			name:           "No scenarios should exit with code 2",
			args:           nil,
			expectedStatus: exitcodes.RuntimeErr,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			workDir := t.TempDir()
			script := filepath.Join(workDir, "runner.sh")
			require.NoError(t, os.WriteFile(script, []byte(fakeRunner), 0755))

			args := append([]string{
				"--runner", "sh",
				"--runner-arg", script,
				"--workdir", workDir,
				"--silent",
				"--report-path", filepath.Join(workDir, "reports", "report.json"),
				"--temp-report-path", filepath.Join(workDir, "reports", "tmp"),
				"--log-dir", filepath.Join(workDir, "logs"),
			}, tc.args...)
			if tc.scenarioFile != "" {
				path := filepath.Join(workDir, "scenarios.yaml")
				require.NoError(t, os.WriteFile(path, []byte(tc.scenarioFile), 0644))
				args = append(args, "--scenarios", path)
			}

			exitCode := runOpParallel(t, binary, args)
			require.Equal(t, tc.expectedStatus, exitCode, "Unexpected exit code")

			if tc.expectedStatus != exitcodes.RuntimeErr {
				require.FileExists(t, filepath.Join(workDir, "reports", "report.json"))
			}
		})
	}
}

// buildOpParallel builds the op-parallel binary into a temporary directory
func buildOpParallel(t *testing.T) string {
	t.Helper()

	cwd, err := os.Getwd()
	require.NoError(t, err)

	binaryPath := filepath.Join(t.TempDir(), "op-parallel")
	buildCmd := exec.Command("go", "build", "-o", binaryPath, ".")
	buildCmd.Dir = cwd
	var buildOutput bytes.Buffer
	buildCmd.Stdout = &buildOutput
	buildCmd.Stderr = &buildOutput

	if err := buildCmd.Run(); err != nil {
		t.Logf("Build output:\n%s", buildOutput.String())
		t.Fatalf("Failed to build op-parallel binary: %v", err)
	}
	require.FileExists(t, binaryPath, "op-parallel binary not found")
	return binaryPath
}

// runOpParallel runs the binary and returns its exit code
func runOpParallel(t *testing.T, binary string, args []string) int {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	execCmd := exec.CommandContext(ctx, binary, args...)
	var stdout, stderr bytes.Buffer
	execCmd.Stdout = &stdout
	execCmd.Stderr = &stderr

	err := execCmd.Run()

	// Log output regardless of success/failure
	if stdout.Len() > 0 {
		t.Logf("stdout:\n%s", stdout.String())
	}
	if stderr.Len() > 0 {
		t.Logf("stderr:\n%s", stderr.String())
	}

	if ctx.Err() == context.DeadlineExceeded {
		t.Logf("Command timed out")
		return exitcodes.RuntimeErr
	}

	if err == nil {
		return exitcodes.Success
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}

	return exitcodes.RuntimeErr
}
