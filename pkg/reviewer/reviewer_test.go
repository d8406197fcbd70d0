package reviewer

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keyki/hoya/pkg/appstate"
	"github.com/keyki/hoya/pkg/ops"
	"github.com/keyki/hoya/pkg/priority"
	"github.com/keyki/hoya/pkg/rmclient"
	"github.com/keyki/hoya/pkg/types"
)

type fakeResourceManager struct {
	mu       sync.Mutex
	granted  int
	released []ops.ContainerRelease
	events   chan rmclient.CompletionStatus
}

func newFakeResourceManager() *fakeResourceManager {
	return &fakeResourceManager{events: make(chan rmclient.CompletionStatus, 4)}
}

func (f *fakeResourceManager) AllocateContainers(_ context.Context, requests []ops.ContainerRequest) ([]types.ContainerHandle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	handles := make([]types.ContainerHandle, 0, len(requests))
	for _, req := range requests {
		f.granted++
		handles = append(handles, types.ContainerHandle{
			ID:       fmt.Sprintf("c%d", f.granted),
			Host:     "host-a",
			Priority: priority.Encode(req.RoleID, false),
		})
	}
	return handles, nil
}

func (f *fakeResourceManager) ReleaseContainer(_ context.Context, release ops.ContainerRelease) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.released = append(f.released, release)
	return nil
}

func (f *fakeResourceManager) CompletionEvents(_ context.Context) (<-chan rmclient.CompletionStatus, error) {
	return f.events, nil
}

func newTestEngine(t *testing.T, desired int) *appstate.Engine {
	t.Helper()
	role := types.Role{Name: "worker", ID: 1}
	spec := types.ClusterSpec{
		Name: "test",
		Roles: map[string]types.RoleSpec{
			"worker": {Desired: desired},
		},
	}
	e, err := appstate.New(spec, []types.Role{role}, types.ContainerLimits{MaxMemoryMB: 4096, MaxVCores: 4}, nil, time.Now())
	require.NoError(t, err)
	return e
}

func TestReviewOnceAllocatesAndStartsContainers(t *testing.T) {
	engine := newTestEngine(t, 2)
	rm := newFakeResourceManager()
	r := New(engine, rm, time.Hour)

	r.reviewOnce(context.Background())

	snap := engine.Snapshot(time.Now())
	assert.Equal(t, 2, snap.RoleStatistics["worker"]["actual"])
	assert.Equal(t, 2, snap.RoleStatistics["worker"]["started"])
	assert.Empty(t, rm.released)
}

func TestReviewOnceReleasesSurplusWhenDesiredShrinks(t *testing.T) {
	engine := newTestEngine(t, 2)
	rm := newFakeResourceManager()
	r := New(engine, rm, time.Hour)

	r.reviewOnce(context.Background())
	require.NoError(t, engine.Flex("worker", 0))

	r.reviewOnce(context.Background())

	assert.Len(t, rm.released, 2)
}

func TestCompletionPumpRecordsUnknownCompletions(t *testing.T) {
	engine := newTestEngine(t, 0)
	rm := newFakeResourceManager()
	r := New(engine, rm, time.Hour)

	require.NoError(t, r.Start(context.Background()))
	defer r.Stop()

	rm.events <- rmclient.CompletionStatus{ContainerID: "unknown-container", ExitCode: 0}

	require.Eventually(t, func() bool {
		snap := engine.Snapshot(time.Now())
		return snap.GlobalStatistics["unknown_completed"] == 1
	}, time.Second, 10*time.Millisecond)
}
