package runtime

import (
	"context"
	"fmt"
	"os"
	"sync"
	"syscall"
	"time"

	"github.com/containerd/containerd"
	"github.com/containerd/containerd/cio"
	"github.com/containerd/containerd/namespaces"
	"github.com/containerd/containerd/oci"
	"github.com/google/uuid"

	"github.com/keyki/hoya/pkg/log"
	"github.com/keyki/hoya/pkg/ops"
	"github.com/keyki/hoya/pkg/rmclient"
	"github.com/keyki/hoya/pkg/types"
)

const (
	// DefaultNamespace is the containerd namespace the driver isolates its
	// containers into.
	DefaultNamespace = "roleam"

	// DefaultSocketPath is the default containerd socket.
	DefaultSocketPath = "/run/containerd/containerd.sock"
)

// ContainerdDriver is a rmclient.ResourceManagerClient backed by a live
// containerd daemon. One container stands in for one allocated container;
// its process exiting is the completion event the engine reacts to.
type ContainerdDriver struct {
	client    *containerd.Client
	namespace string
	image     string

	mu    sync.Mutex
	tasks map[string]containerd.Task

	events chan rmclient.CompletionStatus
}

// NewContainerdDriver connects to containerd at socketPath and prepares a
// driver that launches image for every allocated container.
func NewContainerdDriver(socketPath, image string) (*ContainerdDriver, error) {
	if socketPath == "" {
		socketPath = DefaultSocketPath
	}
	client, err := containerd.New(socketPath)
	if err != nil {
		return nil, fmt.Errorf("connect to containerd: %w", err)
	}
	return &ContainerdDriver{
		client:    client,
		namespace: DefaultNamespace,
		image:     image,
		tasks:     make(map[string]containerd.Task),
		events:    make(chan rmclient.CompletionStatus, 64),
	}, nil
}

func (d *ContainerdDriver) Close() error {
	return d.client.Close()
}

// AllocateContainers creates and starts one containerd container per
// request, returning a ContainerHandle for each that started successfully.
// A request whose container fails to create or start is skipped and
// logged rather than failing the whole batch, since the resource manager
// contract allows granting fewer containers than requested.
func (d *ContainerdDriver) AllocateContainers(ctx context.Context, requests []ops.ContainerRequest) ([]types.ContainerHandle, error) {
	ctx = namespaces.WithNamespace(ctx, d.namespace)
	host, _ := os.Hostname()

	image, err := d.client.GetImage(ctx, d.image)
	if err != nil {
		image, err = d.client.Pull(ctx, d.image, containerd.WithPullUnpack)
		if err != nil {
			return nil, fmt.Errorf("pull image %s: %w", d.image, err)
		}
	}

	var granted []types.ContainerHandle
	for _, req := range requests {
		id := uuid.NewString()

		container, err := d.client.NewContainer(
			ctx, id,
			containerd.WithImage(image),
			containerd.WithNewSnapshot(id+"-snapshot", image),
			containerd.WithNewSpec(oci.WithImageConfig(image)),
		)
		if err != nil {
			log.Errorf(err, "create container for role %s", req.RoleName)
			continue
		}

		task, err := container.NewTask(ctx, cio.NullIO)
		if err != nil {
			log.Errorf(err, "create task for role %s", req.RoleName)
			continue
		}
		if err := task.Start(ctx); err != nil {
			log.Errorf(err, "start task for role %s", req.RoleName)
			continue
		}

		d.mu.Lock()
		d.tasks[id] = task
		d.mu.Unlock()

		go d.watch(ctx, id, req.RoleName, task)

		granted = append(granted, types.ContainerHandle{
			ID:       id,
			NodeID:   host,
			Host:     host,
			Priority: req.Priority,
		})
	}
	return granted, nil
}

// watch blocks until a task exits and forwards the result as a
// completion event, the signal appstate.Engine.OnCompletedNode consumes.
func (d *ContainerdDriver) watch(ctx context.Context, containerID, roleName string, task containerd.Task) {
	statusC, err := task.Wait(ctx)
	if err != nil {
		log.Errorf(err, "wait on task for container %s (role %s)", containerID, roleName)
		return
	}
	status := <-statusC
	diagnostics := ""
	if err := status.Error(); err != nil {
		diagnostics = err.Error()
	}
	d.events <- rmclient.CompletionStatus{
		ContainerID: containerID,
		ExitCode:    int(status.ExitCode()),
		Diagnostics: diagnostics,
	}
}

// ReleaseContainer stops the task behind a release op (SIGTERM, then
// SIGKILL after a 10 second timeout) and deletes the task. The containerd
// container record and its snapshot are not deleted.
func (d *ContainerdDriver) ReleaseContainer(ctx context.Context, release ops.ContainerRelease) error {
	ctx = namespaces.WithNamespace(ctx, d.namespace)

	d.mu.Lock()
	task, ok := d.tasks[release.ContainerID]
	d.mu.Unlock()
	if !ok {
		return fmt.Errorf("no task known for container %s", release.ContainerID)
	}

	stopCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := task.Kill(stopCtx, syscall.SIGTERM); err != nil {
		return fmt.Errorf("signal container %s: %w", release.ContainerID, err)
	}

	statusC, err := task.Wait(stopCtx)
	if err != nil {
		return fmt.Errorf("wait on container %s: %w", release.ContainerID, err)
	}

	select {
	case <-statusC:
	case <-stopCtx.Done():
		_ = task.Kill(ctx, syscall.SIGKILL)
	}

	if _, err := task.Delete(ctx); err != nil {
		return fmt.Errorf("delete task %s: %w", release.ContainerID, err)
	}

	d.mu.Lock()
	delete(d.tasks, release.ContainerID)
	d.mu.Unlock()
	return nil
}

// CompletionEvents returns the channel AllocateContainers' watchers feed.
func (d *ContainerdDriver) CompletionEvents(ctx context.Context) (<-chan rmclient.CompletionStatus, error) {
	return d.events, nil
}

// OnStarted and OnStartFailed satisfy rmclient.NodeManagerCallbacks: the
// containerd driver confirms a start synchronously in AllocateContainers,
// so these exist only to let a caller drive the engine's submit/started
// handshake for parity with a driver where start confirmation really is
// asynchronous.
func (d *ContainerdDriver) OnStarted(ctx context.Context, containerID string) error {
	return nil
}

func (d *ContainerdDriver) OnStartFailed(ctx context.Context, containerID string, diagnostics string) error {
	return nil
}
