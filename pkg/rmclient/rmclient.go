package rmclient

import (
	"context"

	"github.com/keyki/hoya/pkg/ops"
	"github.com/keyki/hoya/pkg/types"
)

// CompletionStatus is a container's terminal report, fed into
// appstate.Engine.OnCompletedNode.
type CompletionStatus struct {
	ContainerID string
	ExitCode    int
	Diagnostics string
}

// ResourceManagerClient is the engine's view of whatever cluster resource
// manager grants and reclaims containers.
type ResourceManagerClient interface {
	// AllocateContainers submits a batch of outstanding requests and
	// returns whatever containers the resource manager grants back on
	// this call (which may be fewer, more, or none of what was asked).
	AllocateContainers(ctx context.Context, requests []ops.ContainerRequest) ([]types.ContainerHandle, error)

	// ReleaseContainer gives a held container back.
	ReleaseContainer(ctx context.Context, release ops.ContainerRelease) error

	// CompletionEvents streams terminal reports for containers this
	// client has allocated or released, until ctx is cancelled.
	CompletionEvents(ctx context.Context) (<-chan CompletionStatus, error)
}

// NodeManagerCallbacks is the engine's view of whatever launches a
// container's process once the resource manager has granted it.
type NodeManagerCallbacks interface {
	OnStarted(ctx context.Context, containerID string) error
	OnStartFailed(ctx context.Context, containerID string, diagnostics string) error
}
