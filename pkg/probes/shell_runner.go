package probes

import (
	"context"
	"os/exec"
	"time"
)

// ShellTestRunner runs a configured command as the test probe. It never
// raises: any spawn failure is captured into TestResult.TestError per §4.3
// and §7's propagation policy ("probe failures are captured, never raised").
type ShellTestRunner struct {
	Command []string
	Timeout time.Duration
	version string
}

// NewShellTestRunner builds a ShellTestRunner for the given command, e.g.
// []string{"go", "test", "./..."}.
func NewShellTestRunner(command []string, version string) *ShellTestRunner {
	timeout := 5 * time.Minute
	return &ShellTestRunner{Command: command, Timeout: timeout, version: version}
}

func (r *ShellTestRunner) Version() string { return r.version }

func (r *ShellTestRunner) Run(path string, args []string) TestResult {
	if len(r.Command) == 0 {
		return TestResult{ExitCode: -1, TestError: "shell test runner: empty command"}
	}

	ctx, cancel := context.WithTimeout(context.Background(), r.Timeout)
	defer cancel()

	full := append(append([]string{}, r.Command...), args...)
	cmd := exec.CommandContext(ctx, full[0], full[1:]...)
	cmd.Dir = path

	err := cmd.Run()
	if err == nil {
		return TestResult{ExitCode: 0}
	}
	if exitErr, ok := err.(*exec.ExitError); ok {
		return TestResult{ExitCode: exitErr.ExitCode()}
	}
	return TestResult{ExitCode: -1, TestError: err.Error()}
}
