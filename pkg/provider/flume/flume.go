// Package flume declares the single-role set a Flume agent cluster needs.
package flume

import "github.com/keyki/hoya/pkg/types"

const RoleAgent = "agent"

// Provider is the Flume workload's role declaration: one role, "agent",
// at default priority 1.
type Provider struct{}

func (Provider) Name() string { return "flume" }

func (Provider) Roles() []types.Role {
	return []types.Role{
		{Name: RoleAgent, ID: 1},
	}
}
