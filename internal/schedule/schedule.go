// Package schedule evaluates cron expressions against a configured timezone.
package schedule

import (
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/jonesrussell/gosched/internal/domain"
)

// ErrNoUpcomingRun is returned when an expression has no firing time within
// the parser's search horizon.
var ErrNoUpcomingRun = errors.New("schedule has no upcoming run")

// parser accepts standard 5-field cron expressions
// (minute hour day-of-month month day-of-week).
var parser = cron.NewParser(
	cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow,
)

// Evaluator computes firing times for cron triggers in a fixed timezone.
type Evaluator struct {
	loc *time.Location
}

// New creates an Evaluator for the given IANA timezone name.
func New(timezone string) (*Evaluator, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", timezone, err)
	}
	return &Evaluator{loc: loc}, nil
}

// Location returns the timezone the evaluator resolves firing times in.
func (e *Evaluator) Location() *time.Location {
	return e.loc
}

// Validate checks that the trigger fields form a parseable cron expression.
func Validate(trigger domain.CronFields) error {
	if _, err := parser.Parse(trigger.Expression()); err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", trigger.Expression(), err)
	}
	return nil
}

// Next returns the first firing time strictly after the given instant.
// Both day fields restricted means either may match, following classical
// cron semantics.
func (e *Evaluator) Next(trigger domain.CronFields, after time.Time) (time.Time, error) {
	spec := "CRON_TZ=" + e.loc.String() + " " + trigger.Expression()
	sched, err := parser.Parse(spec)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid cron expression %q: %w", trigger.Expression(), err)
	}

	next := sched.Next(after)
	if next.IsZero() {
		return time.Time{}, ErrNoUpcomingRun
	}
	return next, nil
}
