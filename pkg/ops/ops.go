package ops

import "github.com/keyki/hoya/pkg/types"

// ContainerRequest asks the resource manager for one more container.
type ContainerRequest struct {
	RoleID        int
	RoleName      string
	Priority      int32
	Resource      types.ResourceRequirement
	PreferredHost string
	RelaxLocality bool
}

// ContainerRelease gives a held container back to the resource manager.
type ContainerRelease struct {
	ContainerID string
	RoleID      int
	RoleName    string
}

// ReviewResult is everything a single review pass produced: requests and
// releases to submit. A role whose failure count crossed its threshold is
// reported as an error from the review pass, not through this value.
type ReviewResult struct {
	Requests []ContainerRequest
	Releases []ContainerRelease
}
