package jobs

import (
	"context"
	"fmt"
	"os/exec"

	"github.com/jonesrussell/gosched/internal/registry"
)

// ShellClassString identifies the shell job class.
const ShellClassString = "jobs.shell"

// ShellJob runs an executable program, passing its arguments in order.
type ShellJob struct {
	registry.Base
}

// NewShellJob creates a shell job body.
func NewShellJob() registry.JobBody {
	return &ShellJob{}
}

// Run executes the program named by the first argument with the remaining
// arguments. All arguments must be strings.
func (j *ShellJob) Run(ctx context.Context, jobID, executionID string, args []any) (any, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("shell job requires at least an executable path")
	}

	command := make([]string, 0, len(args))
	for i, arg := range args {
		s, ok := arg.(string)
		if !ok {
			return nil, fmt.Errorf("shell job argument %d must be a string, got %T", i, arg)
		}
		command = append(command, s)
	}

	cmd := exec.CommandContext(ctx, command[0], command[1:]...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		if _, isExit := err.(*exec.ExitError); !isExit {
			return nil, fmt.Errorf("run %q: %w", command[0], err)
		}
		// Non-zero exit is still a completed run; the return code carries
		// the outcome.
	}

	return map[string]any{
		"command":    command,
		"returncode": cmd.ProcessState.ExitCode(),
		"output":     string(output),
	}, nil
}

// Meta describes the shell job class.
func (j *ShellJob) Meta() registry.Meta {
	return registry.Meta{
		JobClassString: ShellClassString,
		Notes: "This will run an executable program. You can specify as many " +
			"arguments as you want. This job will pass these arguments to the " +
			"program in order.",
		Arguments: []registry.Argument{
			{Type: "string", Description: "Executable path"},
		},
		Example: `["ls", "-al"]`,
	}
}
