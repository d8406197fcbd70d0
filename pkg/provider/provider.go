package provider

import "github.com/keyki/hoya/pkg/types"

// Provider declares the role set a workload needs. Launch command
// construction, packaging and health checks stay out of scope here; the
// engine only needs to know what roles exist and their default priority.
type Provider interface {
	Name() string
	Roles() []types.Role
}
