package upgrade

import (
	"context"
	"fmt"
	"os"
	"os/exec"
)

// ToolRunner executes external build and install tools. The pipeline never
// parses tool output; a non-zero exit is the only failure signal.
type ToolRunner interface {
	// Run executes one tool with the given working directory and extra
	// environment entries, streaming its output to the operator.
	Run(ctx context.Context, dir string, env []string, name string, args ...string) error
}

// ExecRunner implements ToolRunner over os/exec.
type ExecRunner struct{}

// Run executes the tool attached to our stdout and stderr so the operator
// sees build progress as it happens.
func (ExecRunner) Run(ctx context.Context, dir string, env []string, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), env...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}

	return nil
}
