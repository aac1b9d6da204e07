// Package registry resolves job class strings to runnable job bodies.
package registry

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// JobBody is one registered class of schedulable work. Implementations must
// be safe for concurrent Run calls across different executions.
type JobBody interface {
	// Run executes one firing. Arguments are forwarded positionally from the
	// job's pub_args (index 0 first).
	Run(ctx context.Context, jobID, executionID string, args []any) (any, error)
	// Meta describes the class for the metainfo listing.
	Meta() Meta

	// Descriptive strings written to execution rows.
	ScheduledDescription() string
	SucceededDescription(result any) string
	FailedDescription(err error) string
	FailedResult(err error) string
	ScheduledErrorDescription() string
	ScheduledErrorResult() string
}

// Hooks is optionally implemented by job bodies that want callbacks around a
// firing. Both are advisory and must not block.
type Hooks interface {
	PreRun(jobID, executionID string)
	PostRun(jobID, executionID string)
}

// Meta describes a job class.
type Meta struct {
	JobClassString string     `json:"job_class_string"`
	Notes          string     `json:"notes"`
	Arguments      []Argument `json:"arguments"`
	Example        string     `json:"example"`
}

// Argument documents one positional argument a job class accepts.
type Argument struct {
	Type        string `json:"type"`
	Description string `json:"description"`
}

// Base provides default description strings. Embed it in job bodies that do
// not customize their execution row text.
type Base struct{}

func (Base) ScheduledDescription() string           { return "" }
func (Base) SucceededDescription(result any) string { return "" }
func (Base) FailedDescription(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
func (Base) FailedResult(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
func (Base) ScheduledErrorDescription() string { return "" }
func (Base) ScheduledErrorResult() string      { return "" }

// Factory constructs a job body instance.
type Factory func() JobBody

// Registry maps job class strings to factories. Resolution failures at fire
// time are reported to the caller, never panicked.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
	}
}

// Register adds a job class under the given class string.
func (r *Registry) Register(classString string, factory Factory) error {
	if classString == "" {
		return fmt.Errorf("job class string cannot be empty")
	}
	if factory == nil {
		return fmt.Errorf("factory for %q cannot be nil", classString)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[classString]; exists {
		return fmt.Errorf("job class %q: %w", classString, ErrDuplicateClass)
	}
	r.factories[classString] = factory
	return nil
}

// Resolve returns a job body instance for the class string.
func (r *Registry) Resolve(classString string) (JobBody, error) {
	r.mu.RLock()
	factory, exists := r.factories[classString]
	r.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("job class %q: %w", classString, ErrUnknownClass)
	}
	return factory(), nil
}

// Contains reports whether the class string is registered.
func (r *Registry) Contains(classString string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.factories[classString]
	return exists
}

// MetaInfo returns metadata for every registered class, ordered by class
// string.
func (r *Registry) MetaInfo() []Meta {
	r.mu.RLock()
	defer r.mu.RUnlock()

	classes := make([]string, 0, len(r.factories))
	for class := range r.factories {
		classes = append(classes, class)
	}
	sort.Strings(classes)

	metas := make([]Meta, 0, len(classes))
	for _, class := range classes {
		metas = append(metas, r.factories[class]().Meta())
	}
	return metas
}
