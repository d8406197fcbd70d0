package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keyki/hoya/pkg/types"
)

const sampleDoc = `
name: test-cluster
options:
  container_failure_threshold: "5"
options_not_a_real_key: ignored
roles:
  worker:
    desired: 3
    options:
      role_priority: "10"
      yarn_memory: "512"
`

func TestParse(t *testing.T) {
	spec, err := Parse([]byte(sampleDoc))
	require.NoError(t, err)
	assert.Equal(t, "test-cluster", spec.Name)
	assert.Equal(t, 5, spec.IntOption("container_failure_threshold", 0))
	assert.Equal(t, 3, spec.Roles["worker"].Desired)
	assert.Equal(t, "10", spec.RoleOption("worker", "role_priority", ""))
}

func TestParseInvalidYAML(t *testing.T) {
	_, err := Parse([]byte("not: [valid"))
	assert.Error(t, err)
}

func TestResolveRolesFromProvider(t *testing.T) {
	spec, err := Parse([]byte(sampleDoc))
	require.NoError(t, err)

	providerRoles := []types.Role{{Name: "worker", ID: 0}}
	roles, err := ResolveRoles(spec, providerRoles)
	require.NoError(t, err)
	require.Len(t, roles, 1)
	assert.Equal(t, 10, roles[0].ID)
}

func TestResolveRolesMissingPriorityIsConfigurationError(t *testing.T) {
	spec := types.ClusterSpec{
		Roles: map[string]types.RoleSpec{
			"agent": {Desired: 1, Options: map[string]string{}},
		},
	}
	_, err := ResolveRoles(spec, nil)
	assert.Error(t, err)
}

func TestResolveRolesDefaultsPlacementPolicy(t *testing.T) {
	spec := types.ClusterSpec{
		Roles: map[string]types.RoleSpec{
			"agent": {Desired: 1, Options: map[string]string{"role_priority": "7"}},
		},
	}
	roles, err := ResolveRoles(spec, nil)
	require.NoError(t, err)
	require.Len(t, roles, 1)
	assert.Equal(t, 0, roles[0].PlacementPolicy)
}
