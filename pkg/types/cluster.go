package types

import "time"

// ClusterState is the lifecycle tag carried by ClusterDescription.
type ClusterState string

const (
	ClusterStateCreated   ClusterState = "created"
	ClusterStateLive      ClusterState = "live"
	ClusterStateDestroyed ClusterState = "destroyed"
)

// RoleSpec is the desired-state half of a role: what the user asked for.
type RoleSpec struct {
	Desired         int
	PlacementPolicy int
	// Options carries the raw per-role option table (role_priority,
	// role_placement_policy, yarn_memory, yarn_cores, jvm_heap, and any
	// provider-specific opaque keys) as spec.md describes it - a mapping
	// document, not a fixed struct.
	Options map[string]string
}

// ClusterSpec is the desired state authored by the user: one RoleSpec per
// role name, plus cluster-wide options (container_failure_threshold,
// container_failure_short_life).
type ClusterSpec struct {
	Name    string
	Options map[string]string
	Roles   map[string]RoleSpec
}

// IntOption reads a cluster-wide option as an int, or def if absent/bad.
func (c ClusterSpec) IntOption(key string, def int) int {
	return intOption(c.Options, key, def)
}

// RoleOption reads a per-role option, or def if absent.
func (c ClusterSpec) RoleOption(role, key, def string) string {
	rs, ok := c.Roles[role]
	if !ok {
		return def
	}
	v, ok := rs.Options[key]
	if !ok {
		return def
	}
	return v
}

func intOption(m map[string]string, key string, def int) int {
	v, ok := m[key]
	if !ok {
		return def
	}
	var out int
	var sign int = 1
	i := 0
	if len(v) > 0 && v[0] == '-' {
		sign = -1
		i = 1
	}
	if i == len(v) {
		return def
	}
	for ; i < len(v); i++ {
		c := v[i]
		if c < '0' || c > '9' {
			return def
		}
		out = out*10 + int(c-'0')
	}
	return out * sign
}

// ContainerView is a per-container projection included in a published
// ClusterDescription for status readers.
type ContainerView struct {
	ContainerID string
	Role        string
	Host        string
	Port        int
	State       string
	StartTime   time.Time
}

// ClusterDescription is the derived, published snapshot of observed state:
// a deep copy safe for concurrent readers, produced by appstate.Engine.
type ClusterDescription struct {
	Spec       ClusterSpec
	State      ClusterState
	CreateTime time.Time
	UpdateTime time.Time
	StatusTime time.Time

	// RoleStatistics holds, per role name, the counters built by
	// rolestatus.RoleStatus.BuildStatistics.
	RoleStatistics map[string]map[string]int

	// Instances maps role name to the ids of its live containers.
	Instances map[string][]string

	// Containers maps role name to containerID -> view, for status
	// surfaces that need host/port/state detail.
	Containers map[string]map[string]ContainerView

	// GlobalStatistics carries the AM-wide counters: completed, failed,
	// live, started, start_failed, surplus, unknown_completed.
	GlobalStatistics map[string]int

	// RestartedContainers records how many containers were replayed into
	// the model on an AM restart (0 if this was a cold start).
	RestartedContainers int
}

// Clone returns a deep copy safe to hand to a concurrent reader.
func (cd *ClusterDescription) Clone() *ClusterDescription {
	out := *cd
	out.RoleStatistics = deepCopyIntMap(cd.RoleStatistics)
	out.GlobalStatistics = make(map[string]int, len(cd.GlobalStatistics))
	for k, v := range cd.GlobalStatistics {
		out.GlobalStatistics[k] = v
	}
	out.Instances = make(map[string][]string, len(cd.Instances))
	for k, v := range cd.Instances {
		cp := make([]string, len(v))
		copy(cp, v)
		out.Instances[k] = cp
	}
	out.Containers = make(map[string]map[string]ContainerView, len(cd.Containers))
	for role, byID := range cd.Containers {
		cp := make(map[string]ContainerView, len(byID))
		for id, v := range byID {
			cp[id] = v
		}
		out.Containers[role] = cp
	}
	return &out
}

func deepCopyIntMap(m map[string]map[string]int) map[string]map[string]int {
	out := make(map[string]map[string]int, len(m))
	for k, v := range m {
		cp := make(map[string]int, len(v))
		for kk, vv := range v {
			cp[kk] = vv
		}
		out[k] = cp
	}
	return out
}

// ProgressPercentage is sum(actual)/sum(desired) across roles, or 100 if
// total desired is zero.
func ProgressPercentage(totalDesired, totalActual int) float64 {
	if totalDesired == 0 {
		return 100
	}
	return 100 * float64(totalActual) / float64(totalDesired)
}
