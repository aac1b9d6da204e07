package jobs

import (
	"fmt"

	"github.com/jonesrussell/gosched/internal/registry"
)

// RegisterBuiltins registers the built-in job classes on the registry.
func RegisterBuiltins(r *registry.Registry) error {
	builtins := map[string]registry.Factory{
		EchoClassString:        NewEchoJob,
		ShellClassString:       NewShellJob,
		HTTPRequestClassString: NewHTTPRequestJob,
	}

	for class, factory := range builtins {
		if err := r.Register(class, factory); err != nil {
			return fmt.Errorf("register builtin %s: %w", class, err)
		}
	}
	return nil
}
