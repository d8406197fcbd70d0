package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/keyki/hoya/pkg/apperrors"
	"github.com/keyki/hoya/pkg/types"
)

type document struct {
	Name    string                  `yaml:"name"`
	Options map[string]string       `yaml:"options"`
	Roles   map[string]roleDocument `yaml:"roles"`
}

type roleDocument struct {
	Desired         int               `yaml:"desired"`
	PlacementPolicy int               `yaml:"placement_policy"`
	Options         map[string]string `yaml:"options"`
}

// Load reads a YAML cluster-spec document from path.
func Load(path string) (types.ClusterSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return types.ClusterSpec{}, fmt.Errorf("read cluster spec %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes a YAML cluster-spec document already read into memory.
func Parse(data []byte) (types.ClusterSpec, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return types.ClusterSpec{}, apperrors.NewConfigurationError("parse cluster spec: %v", err)
	}

	spec := types.ClusterSpec{
		Name:    doc.Name,
		Options: doc.Options,
		Roles:   make(map[string]types.RoleSpec, len(doc.Roles)),
	}
	if spec.Options == nil {
		spec.Options = map[string]string{}
	}
	for name, rd := range doc.Roles {
		opts := rd.Options
		if opts == nil {
			opts = map[string]string{}
		}
		spec.Roles[name] = types.RoleSpec{
			Desired:         rd.Desired,
			PlacementPolicy: rd.PlacementPolicy,
			Options:         opts,
		}
	}
	return spec, nil
}

// ResolveRoles merges a provider's declared roles with the spec's own
// per-role options. A role_priority option, when present, sets the role id;
// a provider role without one keeps the provider's id, and a spec-only
// role without one is a configuration error. A role_placement_policy
// option, when present, sets the placement policy; otherwise a provider
// role keeps the provider's policy and a spec-only role gets 0.
func ResolveRoles(spec types.ClusterSpec, providerRoles []types.Role) ([]types.Role, error) {
	seen := make(map[string]bool, len(providerRoles))
	var out []types.Role

	resolve := func(name string, fallbackPriority int, fallbackPolicy int) (types.Role, error) {
		priorityStr := spec.RoleOption(name, "role_priority", "")
		var id int
		if priorityStr == "" {
			if fallbackPriority == 0 {
				return types.Role{}, apperrors.NewConfigurationError("role %s: missing mandatory option role_priority", name)
			}
			id = fallbackPriority
		} else {
			v, err := strconv.Atoi(priorityStr)
			if err != nil {
				return types.Role{}, apperrors.NewConfigurationError("role %s: role_priority %q is not an integer", name, priorityStr)
			}
			id = v
		}
		policyStr := spec.RoleOption(name, "role_placement_policy", "")
		policy := fallbackPolicy
		if policyStr != "" {
			v, err := strconv.Atoi(policyStr)
			if err != nil {
				return types.Role{}, apperrors.NewConfigurationError("role %s: role_placement_policy %q is not an integer", name, policyStr)
			}
			policy = v
		}
		return types.Role{Name: name, ID: id, PlacementPolicy: policy}, nil
	}

	for _, pr := range providerRoles {
		role, err := resolve(pr.Name, pr.ID, pr.PlacementPolicy)
		if err != nil {
			return nil, err
		}
		out = append(out, role)
		seen[pr.Name] = true
	}

	for name := range spec.Roles {
		if seen[name] {
			continue
		}
		role, err := resolve(name, 0, 0)
		if err != nil {
			return nil, err
		}
		out = append(out, role)
		seen[name] = true
	}

	return out, nil
}
