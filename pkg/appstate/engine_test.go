package appstate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keyki/hoya/pkg/apperrors"
	"github.com/keyki/hoya/pkg/priority"
	"github.com/keyki/hoya/pkg/types"
)

var testLimits = types.ContainerLimits{MaxMemoryMB: 4096, MaxVCores: 4}

func newTestEngine(t *testing.T, desired int) (*Engine, types.Role) {
	t.Helper()
	role := types.Role{Name: "worker", ID: 1}
	spec := types.ClusterSpec{
		Name: "test",
		Roles: map[string]types.RoleSpec{
			"worker": {Desired: desired},
		},
	}
	e, err := New(spec, []types.Role{role}, testLimits, nil, time.Now())
	require.NoError(t, err)
	return e, role
}

func allocatedContainer(id, host string, roleID int) types.ContainerHandle {
	return types.ContainerHandle{ID: id, Host: host, Priority: priority.Encode(roleID, false)}
}

func TestDuplicateRolePriorityIsConfigurationError(t *testing.T) {
	spec := types.ClusterSpec{Roles: map[string]types.RoleSpec{}}
	_, err := New(spec, []types.Role{
		{Name: "a", ID: 1},
		{Name: "b", ID: 1},
	}, testLimits, nil, time.Now())
	assert.Error(t, err)
	var cfgErr *apperrors.ConfigurationError
	assert.ErrorAs(t, err, &cfgErr)
}

func TestHappyPathAllocateStartComplete(t *testing.T) {
	e, role := newTestEngine(t, 2)
	now := time.Now()

	c1 := allocatedContainer("c1", "host-a", role.ID)
	c2 := allocatedContainer("c2", "host-b", role.ID)

	assigned, releases, err := e.OnContainersAllocated([]types.ContainerHandle{c1, c2}, now)
	require.NoError(t, err)
	assert.Empty(t, releases)
	assert.Len(t, assigned, 2)

	for _, c := range assigned {
		require.NoError(t, e.ContainerStartSubmitted(c.ID, now))
		require.NoError(t, e.OnNodeManagerContainerStarted(c.ID, now.Add(time.Second)))
	}

	snap := e.Snapshot(now)
	assert.Equal(t, 2, snap.RoleStatistics["worker"]["actual"])
	assert.Equal(t, 0, snap.GlobalStatistics["failed"])
	assert.Equal(t, float64(100), e.ProgressPercentage())
}

func TestOverAllocationIsSurplus(t *testing.T) {
	e, role := newTestEngine(t, 1)
	now := time.Now()

	c1 := allocatedContainer("c1", "host-a", role.ID)
	c2 := allocatedContainer("c2", "host-b", role.ID)

	assigned, releases, err := e.OnContainersAllocated([]types.ContainerHandle{c1, c2}, now)
	require.NoError(t, err)
	assert.Len(t, assigned, 1)
	require.Len(t, releases, 1)
	assert.Equal(t, "c2", releases[0].ContainerID)

	result, err := e.OnCompletedNode("c2", 0, "", now)
	require.NoError(t, err)
	assert.True(t, result.Surplus)

	snap := e.Snapshot(now)
	assert.Equal(t, 1, snap.RoleStatistics["worker"]["actual"])
}

func TestStartFailureDecrementsActualAndRecordsFailure(t *testing.T) {
	e, role := newTestEngine(t, 1)
	now := time.Now()
	c1 := allocatedContainer("c1", "host-a", role.ID)

	_, _, err := e.OnContainersAllocated([]types.ContainerHandle{c1}, now)
	require.NoError(t, err)
	require.NoError(t, e.ContainerStartSubmitted("c1", now))

	require.NoError(t, e.OnNodeManagerContainerStartFailed("c1", now, "image pull failed"))

	snap := e.Snapshot(now)
	assert.Equal(t, 0, snap.RoleStatistics["worker"]["actual"])
	assert.Equal(t, 1, snap.RoleStatistics["worker"]["failed"])
	assert.Equal(t, 1, snap.RoleStatistics["worker"]["start_failed"])
}

func TestCrashAfterLiveIsShortLivedWithinThreshold(t *testing.T) {
	e, role := newTestEngine(t, 1)
	e.startTimeThreshold = time.Minute
	now := time.Now()
	c1 := allocatedContainer("c1", "host-a", role.ID)

	_, _, err := e.OnContainersAllocated([]types.ContainerHandle{c1}, now)
	require.NoError(t, err)
	require.NoError(t, e.ContainerStartSubmitted("c1", now))
	require.NoError(t, e.OnNodeManagerContainerStarted("c1", now))

	result, err := e.OnCompletedNode("c1", 1, "oom", now.Add(10*time.Second))
	require.NoError(t, err)
	assert.True(t, result.ShortLived)

	snap := e.Snapshot(now)
	assert.Equal(t, 0, snap.RoleStatistics["worker"]["actual"])
	assert.Equal(t, 1, snap.RoleStatistics["worker"]["failed"])
	assert.Equal(t, 1, snap.RoleStatistics["worker"]["start_failed"])
}

func TestCrashAfterLiveIsNotShortLivedPastThreshold(t *testing.T) {
	e, role := newTestEngine(t, 1)
	e.startTimeThreshold = time.Second
	now := time.Now()
	c1 := allocatedContainer("c1", "host-a", role.ID)

	_, _, err := e.OnContainersAllocated([]types.ContainerHandle{c1}, now)
	require.NoError(t, err)
	require.NoError(t, e.ContainerStartSubmitted("c1", now))
	require.NoError(t, e.OnNodeManagerContainerStarted("c1", now))

	result, err := e.OnCompletedNode("c1", 1, "oom", now.Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, result.ShortLived)

	snap := e.Snapshot(now)
	assert.Equal(t, 1, snap.RoleStatistics["worker"]["failed"])
	assert.Equal(t, 0, snap.RoleStatistics["worker"]["start_failed"])
}

func TestReleaseCompletesThroughReleasingPath(t *testing.T) {
	e, role := newTestEngine(t, 1)
	now := time.Now()
	c1 := allocatedContainer("c1", "host-a", role.ID)

	_, _, err := e.OnContainersAllocated([]types.ContainerHandle{c1}, now)
	require.NoError(t, err)
	require.NoError(t, e.ContainerStartSubmitted("c1", now))
	require.NoError(t, e.OnNodeManagerContainerStarted("c1", now))
	require.NoError(t, e.ContainerReleaseSubmitted("c1", now))

	result, err := e.OnCompletedNode("c1", 0, "", now)
	require.NoError(t, err)
	assert.True(t, result.Released)

	snap := e.Snapshot(now)
	assert.Equal(t, 0, snap.RoleStatistics["worker"]["actual"])
	assert.Equal(t, 0, snap.RoleStatistics["worker"]["releasing"])
	assert.Equal(t, 1, snap.RoleStatistics["worker"]["completed"])
}

func TestDoubleReleaseIsInternalStateError(t *testing.T) {
	e, role := newTestEngine(t, 1)
	now := time.Now()
	c1 := allocatedContainer("c1", "host-a", role.ID)
	_, _, err := e.OnContainersAllocated([]types.ContainerHandle{c1}, now)
	require.NoError(t, err)
	require.NoError(t, e.ContainerReleaseSubmitted("c1", now))

	err = e.ContainerReleaseSubmitted("c1", now)
	assert.Error(t, err)
	var stateErr *apperrors.InternalStateError
	assert.ErrorAs(t, err, &stateErr)
}

func TestDoubleLiveAnnouncementIsInternalStateError(t *testing.T) {
	e, role := newTestEngine(t, 1)
	now := time.Now()
	c1 := allocatedContainer("c1", "host-a", role.ID)
	_, _, err := e.OnContainersAllocated([]types.ContainerHandle{c1}, now)
	require.NoError(t, err)
	require.NoError(t, e.ContainerStartSubmitted("c1", now))
	require.NoError(t, e.OnNodeManagerContainerStarted("c1", now))

	err = e.OnNodeManagerContainerStarted("c1", now)
	assert.Error(t, err)
}

func TestUnknownCompletionIsNonFatal(t *testing.T) {
	e, _ := newTestEngine(t, 1)
	now := time.Now()
	result, err := e.OnCompletedNode("never-seen", 0, "", now)
	require.NoError(t, err)
	assert.True(t, result.Unknown)
}

func TestReviewRequestsUpToDesired(t *testing.T) {
	e, _ := newTestEngine(t, 3)
	result, err := e.ReviewRequestAndReleaseNodes(time.Now())
	require.NoError(t, err)
	assert.Len(t, result.Requests, 3)
	assert.Empty(t, result.Releases)
}

func TestReviewReleasesExcessActual(t *testing.T) {
	e, role := newTestEngine(t, 1)
	now := time.Now()
	c1 := allocatedContainer("c1", "host-a", role.ID)
	assigned, _, err := e.OnContainersAllocated([]types.ContainerHandle{c1}, now)
	require.NoError(t, err)
	require.Len(t, assigned, 1)
	require.NoError(t, e.Flex(role.Name, 0))

	result, err := e.ReviewRequestAndReleaseNodes(now)
	require.NoError(t, err)
	assert.Empty(t, result.Requests)
	require.Len(t, result.Releases, 1)
	assert.Equal(t, "c1", result.Releases[0].ContainerID)
}

func TestFlexDropsDesiredAndReviewReleasesTheDifference(t *testing.T) {
	e, role := newTestEngine(t, 2)
	now := time.Now()

	c1 := allocatedContainer("c1", "host-a", role.ID)
	c2 := allocatedContainer("c2", "host-b", role.ID)
	assigned, _, err := e.OnContainersAllocated([]types.ContainerHandle{c1, c2}, now)
	require.NoError(t, err)
	require.Len(t, assigned, 2)

	require.NoError(t, e.Flex(role.Name, 1))

	result, err := e.ReviewRequestAndReleaseNodes(now)
	require.NoError(t, err)
	assert.Empty(t, result.Requests)
	require.Len(t, result.Releases, 1)

	require.NoError(t, e.ContainerReleaseSubmitted(result.Releases[0].ContainerID, now))
	res, err := e.OnCompletedNode(result.Releases[0].ContainerID, 0, "", now)
	require.NoError(t, err)
	assert.True(t, res.Released)

	snap := e.Snapshot(now)
	assert.Equal(t, 1, snap.RoleStatistics["worker"]["actual"])
	assert.Equal(t, 0, snap.RoleStatistics["worker"]["releasing"])
	assert.Equal(t, 1, snap.RoleStatistics["worker"]["completed"])
}

func TestFlexUnknownRoleIsConfigurationError(t *testing.T) {
	e, _ := newTestEngine(t, 1)
	err := e.Flex("does-not-exist", 5)
	assert.Error(t, err)
	var cfgErr *apperrors.ConfigurationError
	assert.ErrorAs(t, err, &cfgErr)
}

func TestReviewTriggersTeardownPastFailureThreshold(t *testing.T) {
	e, role := newTestEngine(t, 1)
	e.failureThreshold = 2
	now := time.Now()

	rs := e.roles[role.ID]
	rs.NoteFailed("one")
	rs.NoteFailed("two")
	rs.NoteFailed("three")

	_, err := e.ReviewRequestAndReleaseNodes(now)
	require.Error(t, err)
	var teardown *apperrors.TriggerClusterTeardownError
	assert.ErrorAs(t, err, &teardown)
	assert.Equal(t, "worker", teardown.RoleName)
}

func TestRebuildModelFromRestart(t *testing.T) {
	e, role := newTestEngine(t, 1)
	now := time.Now()
	c1 := allocatedContainer("restarted-1", "host-a", role.ID)

	require.NoError(t, e.RebuildModelFromRestart([]types.ContainerHandle{c1}, now))

	snap := e.Snapshot(now)
	assert.Equal(t, 1, snap.RoleStatistics["worker"]["actual"])
	assert.Equal(t, 1, snap.RestartedContainers)
	assert.Contains(t, snap.Instances["worker"], "restarted-1")
}

func TestAppMasterNodeExcludedFromInstances(t *testing.T) {
	e, _ := newTestEngine(t, 0)
	now := time.Now()
	e.BuildAppMasterNode(types.ContainerHandle{ID: "am-container", Host: "host-am"}, now)

	snap := e.Snapshot(now)
	for _, ids := range snap.Instances {
		assert.NotContains(t, ids, "am-container")
	}
}
