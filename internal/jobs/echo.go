// Package jobs provides the built-in job classes shipped with the scheduler.
package jobs

import (
	"context"
	"fmt"

	"github.com/jonesrussell/gosched/internal/registry"
)

// EchoClassString identifies the echo job class.
const EchoClassString = "jobs.echo"

// EchoJob returns its arguments unchanged. Useful for smoke-testing a
// deployment end to end.
type EchoJob struct {
	registry.Base
}

// NewEchoJob creates an echo job body.
func NewEchoJob() registry.JobBody {
	return &EchoJob{}
}

// Run returns the single argument when exactly one is supplied, otherwise the
// argument list as given.
func (j *EchoJob) Run(ctx context.Context, jobID, executionID string, args []any) (any, error) {
	if len(args) == 1 {
		return args[0], nil
	}
	return args, nil
}

// Meta describes the echo job class.
func (j *EchoJob) Meta() registry.Meta {
	return registry.Meta{
		JobClassString: EchoClassString,
		Notes:          "Echoes its arguments back as the execution result. Check it out!",
		Arguments: []registry.Argument{
			{Type: "string", Description: "First argument"},
			{Type: "string", Description: "Second argument"},
		},
		Example: `["first argument AAA", "second argument BBB"]`,
	}
}

// SucceededDescription summarizes the echoed result.
func (j *EchoJob) SucceededDescription(result any) string {
	return fmt.Sprintf("echoed %v", result)
}
