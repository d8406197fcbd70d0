// Package tomcat declares the single-role set a Tomcat server cluster needs.
package tomcat

import "github.com/keyki/hoya/pkg/types"

const RoleServer = "server"

// Provider is the Tomcat workload's role declaration: one role, "server",
// at default priority 1.
type Provider struct{}

func (Provider) Name() string { return "tomcat" }

func (Provider) Roles() []types.Role {
	return []types.Role{
		{Name: RoleServer, ID: 1},
	}
}
