package types

// Role is a named class of container with an identical launch shape. Its
// ID doubles as the container-request priority (see pkg/priority) and must
// be stable for the lifetime of the application master.
type Role struct {
	Name            string
	ID              int
	PlacementPolicy int
}

// ResourceRequirement is the memory/cores shape asked for a role.
type ResourceRequirement struct {
	MemoryMB int
	VCores   int
}

// ContainerLimits is the cluster-reported maximum container shape, used to
// resolve the literal option value "max".
type ContainerLimits struct {
	MaxMemoryMB int
	MaxVCores   int
}

// Resolve substitutes MaxMemoryMB/MaxVCores for any field the caller marked
// as "max" (expressed by the maxMemory/maxCores booleans), mirroring the
// role option YARN_MEMORY/YARN_CORES resolution.
func (r ResourceRequirement) Resolve(limits ContainerLimits, maxMemory, maxCores bool) ResourceRequirement {
	out := r
	if maxMemory {
		out.MemoryMB = limits.MaxMemoryMB
	}
	if maxCores {
		out.VCores = limits.MaxVCores
	}
	return out
}

// ContainerHandle is the opaque allocation handle the engine tracks. It
// stands in for a cluster-manager container record without binding the
// engine to any one cluster manager's wire format.
type ContainerHandle struct {
	ID       string
	NodeID   string
	Host     string
	Port     int
	Priority int32
}
