package assembly

import (
	"context"
	"os/exec"
	"strings"
)

// Runner runs an external tool in dir and returns its stderr.
type Runner interface {
	Run(ctx context.Context, dir, name string, args ...string) (stderr string, err error)
}

// ExecRunner runs tools as child processes.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, dir, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	var stderr strings.Builder
	cmd.Stderr = &stderr
	cmd.Stdout = nil
	err := cmd.Run()
	return stderr.String(), err
}
