package appstate

import (
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/keyki/hoya/pkg/apperrors"
	"github.com/keyki/hoya/pkg/ops"
	"github.com/keyki/hoya/pkg/priority"
	"github.com/keyki/hoya/pkg/rolehistory"
	"github.com/keyki/hoya/pkg/roleinstance"
	"github.com/keyki/hoya/pkg/rolestatus"
	"github.com/keyki/hoya/pkg/types"
)

const (
	defaultFailureThreshold  = 10
	defaultShortLifeDuration = 60 * time.Second

	amContainerKey = "__application_master__"
)

// Engine is the single mutable model of the application's container
// population. All state lives behind mu; no method does any I/O.
type Engine struct {
	mu sync.Mutex

	spec   types.ClusterSpec
	limits types.ContainerLimits
	state  types.ClusterState

	roles      map[int]*rolestatus.RoleStatus
	roleByID   map[int]types.Role
	roleByName map[string]types.Role

	history *rolehistory.RoleHistory

	active    map[string]*roleinstance.RoleInstance
	starting  map[string]bool
	releasing map[string]*roleinstance.RoleInstance
	live      map[string]*roleinstance.RoleInstance
	completed map[string]*roleinstance.RoleInstance
	failed    map[string]*roleinstance.RoleInstance
	surplus   map[string]bool

	amInstance *roleinstance.RoleInstance

	completedContainerCount atomic.Int64
	failedContainerCount    atomic.Int64
	startedContainers       atomic.Int64
	startFailedContainers   atomic.Int64
	surplusContainers       atomic.Int64
	unknownCompletionEvents atomic.Int64
	restartedContainers     atomic.Int64

	startTimeThreshold time.Duration
	failureThreshold   int

	createTime time.Time
}

// New builds the engine from a cluster spec and its resolved role set. The
// role id in each types.Role doubles as its container-request priority and
// must be unique and >= 1; a duplicate or invalid id is a configuration
// error raised here, at build time, rather than discovered later.
func New(spec types.ClusterSpec, roles []types.Role, limits types.ContainerLimits, history *rolehistory.RoleHistory, now time.Time) (*Engine, error) {
	e := &Engine{
		spec:       spec,
		limits:     limits,
		state:      types.ClusterStateCreated,
		roles:      make(map[int]*rolestatus.RoleStatus),
		roleByID:   make(map[int]types.Role),
		roleByName: make(map[string]types.Role),
		history:    history,
		active:     make(map[string]*roleinstance.RoleInstance),
		starting:   make(map[string]bool),
		releasing:  make(map[string]*roleinstance.RoleInstance),
		live:       make(map[string]*roleinstance.RoleInstance),
		completed:  make(map[string]*roleinstance.RoleInstance),
		failed:     make(map[string]*roleinstance.RoleInstance),
		surplus:    make(map[string]bool),
	}

	for _, role := range roles {
		if err := priority.Validate(role.ID); err != nil {
			return nil, apperrors.NewConfigurationError("role %s: %v", role.Name, err)
		}
		if _, exists := e.roleByID[role.ID]; exists {
			return nil, apperrors.NewConfigurationError("duplicate role priority %d (role %s)", role.ID, role.Name)
		}
		status := rolestatus.New(role)
		if rs, ok := spec.Roles[role.Name]; ok {
			status.SetDesired(rs.Desired)
		}
		e.roles[role.ID] = status
		e.roleByID[role.ID] = role
		e.roleByName[role.Name] = role
	}

	e.failureThreshold = spec.IntOption("container_failure_threshold", defaultFailureThreshold)
	if shortLifeSecs := spec.IntOption("container_failure_short_life", -1); shortLifeSecs >= 0 {
		e.startTimeThreshold = time.Duration(shortLifeSecs) * time.Second
	} else {
		e.startTimeThreshold = defaultShortLifeDuration
	}

	e.createTime = now
	e.state = types.ClusterStateLive

	return e, nil
}

// BuildAppMasterNode installs the application master's own container as a
// live instance, excluded from every role's flex accounting.
func (e *Engine) BuildAppMasterNode(container types.ContainerHandle, now time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	ri := roleinstance.New(0, "application-master", container, now)
	_ = ri.Submit(now)
	_ = ri.Start(now)
	e.amInstance = ri
	e.live[amContainerKey] = ri
}

// roleStatusLocked resolves the role-status counters for an already
// allocated container's encoded priority.
func (e *Engine) roleStatusLocked(priorityValue int32) (*rolestatus.RoleStatus, error) {
	roleID := priority.Extract(priorityValue)
	rs, ok := e.roles[roleID]
	if !ok {
		return nil, apperrors.NewInternalStateError("no role registered for priority %d", priorityValue)
	}
	return rs, nil
}

// OnContainersAllocated processes a batch of containers just granted by
// the resource manager. Containers that keep a role's actual count within
// its desired count are assigned and returned for a start request; any that
// would push actual above desired (over-allocation) are surplus and
// returned as immediate releases. Each container takes one off the role's
// outstanding request count, which never drops below zero.
func (e *Engine) OnContainersAllocated(containers []types.ContainerHandle, now time.Time) ([]types.ContainerHandle, []ops.ContainerRelease, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	byRole := make(map[int][]types.ContainerHandle)
	for _, c := range containers {
		byRole[priority.Extract(c.Priority)] = append(byRole[priority.Extract(c.Priority)], c)
	}

	var assigned []types.ContainerHandle
	var releases []ops.ContainerRelease

	for roleID, list := range byRole {
		rs, ok := e.roles[roleID]
		if !ok {
			return nil, nil, apperrors.NewInternalStateError("allocation for unknown role priority %d", roleID)
		}
		ordered := list
		if e.history != nil {
			ordered = e.history.PrepareAllocationList(roleID, list)
		}
		for _, c := range ordered {
			if rs.Requested() > 0 {
				rs.DecRequested()
			}
			actual := rs.IncActual()
			if actual > rs.Desired() {
				rs.DecActual()
				e.surplusContainers.Add(1)
				e.surplus[c.ID] = true
				releases = append(releases, ops.ContainerRelease{
					ContainerID: c.ID,
					RoleID:      roleID,
					RoleName:    e.roleByID[roleID].Name,
				})
				continue
			}
			ri := roleinstance.New(roleID, e.roleByID[roleID].Name, c, now)
			e.active[c.ID] = ri
			if e.history != nil {
				e.history.OnContainerAssigned(roleID, c.Host, now)
			}
			assigned = append(assigned, c)
		}
	}
	return assigned, releases, nil
}

// ContainerStartSubmitted records that a start request for an allocated
// container has been sent to the node manager.
func (e *Engine) ContainerStartSubmitted(containerID string, now time.Time) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	ri, ok := e.active[containerID]
	if !ok {
		return apperrors.NewInternalStateError("container %s is not an active container", containerID)
	}
	if err := ri.Submit(now); err != nil {
		return err
	}
	e.starting[containerID] = true
	return nil
}

// OnNodeManagerContainerStarted records a confirmed start.
func (e *Engine) OnNodeManagerContainerStarted(containerID string, now time.Time) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	ri, ok := e.active[containerID]
	if !ok {
		return apperrors.NewInternalStateError("container %s started but is not an active container", containerID)
	}
	if !e.starting[containerID] {
		return apperrors.NewInternalStateError("container %s reported live twice", containerID)
	}
	if err := ri.Start(now); err != nil {
		return err
	}
	delete(e.starting, containerID)
	rs, err := e.roleStatusLocked(ri.Container.Priority)
	if err != nil {
		return err
	}
	rs.IncStarted()
	e.startedContainers.Add(1)
	e.live[containerID] = ri
	if e.history != nil {
		e.history.OnContainerStarted(ri.RoleID, ri.Container.Host, now)
	}
	return nil
}

// OnNodeManagerContainerStartFailed records that the node manager could
// not launch an allocated container at all.
func (e *Engine) OnNodeManagerContainerStartFailed(containerID string, now time.Time, diagnostics string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	ri, ok := e.active[containerID]
	if !ok {
		return apperrors.NewInternalStateError("container %s start-failed but is not an active container", containerID)
	}
	delete(e.active, containerID)
	delete(e.starting, containerID)
	if err := ri.StartFailed(now, diagnostics); err != nil {
		return err
	}
	rs, err := e.roleStatusLocked(ri.Container.Priority)
	if err != nil {
		return err
	}
	rs.DecActual()
	rs.NoteFailed(diagnostics)
	rs.IncStartFailed()
	e.failedContainerCount.Add(1)
	e.startFailedContainers.Add(1)
	e.failed[containerID] = ri
	if e.history != nil {
		e.history.OnFailedContainer(ri.RoleID, ri.Container.Host, true, now)
	}
	return nil
}

// ContainerReleaseSubmitted records that a release request for an active
// container has been sent to the resource manager. Releasing an already
// released container, or one the engine does not track as active, is an
// internal state error.
func (e *Engine) ContainerReleaseSubmitted(containerID string, now time.Time) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	ri, ok := e.active[containerID]
	if !ok {
		return apperrors.NewInternalStateError("container %s is not an active container", containerID)
	}
	if ri.IsReleased() {
		return apperrors.NewInternalStateError("container %s has already been released", containerID)
	}
	if err := ri.Release(now); err != nil {
		return err
	}
	rs, err := e.roleStatusLocked(ri.Container.Priority)
	if err != nil {
		return err
	}
	rs.IncReleasing()
	e.releasing[containerID] = ri
	return nil
}

// CompletionResult reports which of the three completion paths a
// completed-node event took.
type CompletionResult struct {
	ContainerID string
	Released    bool
	Surplus     bool
	Unknown     bool
	ShortLived  bool
}

// OnCompletedNode records that the resource manager reports a container
// gone, whichever of release / surplus / crash it turns out to be.
func (e *Engine) OnCompletedNode(containerID string, exitCode int, diagnostics string, now time.Time) (CompletionResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if ri, ok := e.releasing[containerID]; ok {
		rs, err := e.roleStatusLocked(ri.Container.Priority)
		if err != nil {
			return CompletionResult{}, err
		}
		rs.DecReleasing()
		rs.DecActual()
		rs.IncCompleted()
		e.completedContainerCount.Add(1)
		if err := ri.Complete(now, exitCode, diagnostics); err != nil {
			return CompletionResult{}, err
		}
		delete(e.releasing, containerID)
		delete(e.active, containerID)
		delete(e.live, containerID)
		delete(e.starting, containerID)
		e.completed[containerID] = ri
		if e.history != nil {
			e.history.OnReleaseCompleted(ri.RoleID, ri.Container.Host, now)
		}
		return CompletionResult{ContainerID: containerID, Released: true}, nil
	}

	if e.surplus[containerID] {
		delete(e.surplus, containerID)
		return CompletionResult{ContainerID: containerID, Surplus: true}, nil
	}

	ri, ok := e.active[containerID]
	if !ok {
		e.unknownCompletionEvents.Add(1)
		return CompletionResult{ContainerID: containerID, Unknown: true}, nil
	}

	delete(e.active, containerID)
	delete(e.live, containerID)
	delete(e.starting, containerID)

	rs, err := e.roleStatusLocked(ri.Container.Priority)
	if err != nil {
		return CompletionResult{}, err
	}
	rs.DecActual()

	shortLived := isShortLived(ri, now, e.startTimeThreshold)
	message := buildFailureMessage(ri.Container.Host, diagnostics)
	rs.NoteFailed(message)
	if shortLived {
		rs.IncStartFailed()
	}
	e.failedContainerCount.Add(1)
	if e.history != nil {
		e.history.OnFailedContainer(ri.RoleID, ri.Container.Host, shortLived, now)
	}
	if err := ri.Complete(now, exitCode, diagnostics); err != nil {
		return CompletionResult{}, err
	}
	e.failed[containerID] = ri
	e.completed[containerID] = ri

	return CompletionResult{ContainerID: containerID, ShortLived: shortLived}, nil
}

// isShortLived reports whether a container never ran long enough to count
// as a genuine success; a container that never reported a start time
// counts as short-lived.
func isShortLived(ri *roleinstance.RoleInstance, now time.Time, threshold time.Duration) bool {
	if ri.StartTime.IsZero() {
		return true
	}
	return now.Sub(ri.StartTime) < threshold
}

func buildFailureMessage(host, diagnostics string) string {
	if diagnostics == "" {
		return fmt.Sprintf("container on %s failed", host)
	}
	return fmt.Sprintf("container on %s failed: %s", host, diagnostics)
}

// ReviewRequestAndReleaseNodes computes, for each flexible role, the
// requests and releases needed to close the gap between desired and
// actual + requested - releasing. A role whose cumulative failure count
// has crossed its threshold aborts the whole review with a teardown
// error, matching the teacher's fail-fast-on-instability rule.
func (e *Engine) ReviewRequestAndReleaseNodes(now time.Time) (ops.ReviewResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	var result ops.ReviewResult

	for roleID, rs := range e.roles {
		if rs.ExcludeFromFlexing() {
			continue
		}
		if rs.Failed() > e.failureThreshold {
			return ops.ReviewResult{}, &apperrors.TriggerClusterTeardownError{
				RoleName:        rs.Name(),
				Failed:          rs.Failed(),
				StartFailed:     rs.StartFailed(),
				Threshold:       e.failureThreshold,
				LastFailureText: rs.FailureMessage(),
			}
		}

		delta := rs.Delta()
		role := e.roleByID[roleID]
		switch {
		case delta > 0:
			resource := e.resolveResourceLocked(role)
			for i := 0; i < delta; i++ {
				rs.IncRequested()
				req := ops.ContainerRequest{
					RoleID:   roleID,
					RoleName: role.Name,
					Priority: priority.Encode(roleID, role.PlacementPolicy != 0),
					Resource: resource,
				}
				if e.history != nil {
					if host, ok := e.history.RequestNode(roleID); ok {
						req.PreferredHost = host
					}
				}
				result.Requests = append(result.Requests, req)
			}
		case delta < 0:
			excess := -delta
			var hosts []string
			if e.history != nil {
				hosts = e.history.FindNodesForRelease(roleID, excess)
			}
			chosen, err := e.pickReleaseCandidatesLocked(roleID, hosts, excess)
			if err != nil {
				return ops.ReviewResult{}, err
			}
			result.Releases = append(result.Releases, chosen...)
		}
	}

	return result, nil
}

// pickReleaseCandidatesLocked finds one active, not-yet-releasing
// container of roleID on each preferred host; if history did not name
// enough hosts (or named a host with no instance on it after all), it
// falls back to any remaining active container of the role.
func (e *Engine) pickReleaseCandidatesLocked(roleID int, preferredHosts []string, count int) ([]ops.ContainerRelease, error) {
	var out []ops.ContainerRelease
	used := make(map[string]bool)

	pick := func(matchHost string) bool {
		for id, ri := range e.active {
			if used[id] || ri.RoleID != roleID || ri.IsReleased() {
				continue
			}
			if matchHost != "" && ri.Container.Host != matchHost {
				continue
			}
			used[id] = true
			out = append(out, ops.ContainerRelease{
				ContainerID: id,
				RoleID:      roleID,
				RoleName:    ri.RoleName,
			})
			return true
		}
		return false
	}

	for _, host := range preferredHosts {
		if len(out) >= count {
			break
		}
		pick(host)
	}
	for len(out) < count {
		if !pick("") {
			return nil, apperrors.NewInternalStateError(
				"cannot find %d instance(s) of role %d to release, only found %d",
				count, roleID, len(out),
			)
		}
	}
	return out, nil
}

// ReleaseAllContainers requests release of every active container not
// already releasing, for an orderly teardown.
func (e *Engine) ReleaseAllContainers() []ops.ContainerRelease {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []ops.ContainerRelease
	for id, ri := range e.active {
		if ri.IsReleased() {
			continue
		}
		out = append(out, ops.ContainerRelease{
			ContainerID: id,
			RoleID:      ri.RoleID,
			RoleName:    ri.RoleName,
		})
	}
	return out
}

// Flex changes a role's desired instance count, taking effect on the next
// review pass. Unknown roles are rejected rather than silently created,
// since every role must already have been resolved from the cluster spec
// and its providers at startup.
func (e *Engine) Flex(roleName string, desired int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	role, ok := e.roleByName[roleName]
	if !ok {
		return apperrors.NewConfigurationError("unknown role %s", roleName)
	}
	rs := e.roles[role.ID]
	if rs.Desired() != desired {
		rs.SetDesired(desired)
	}
	return nil
}

func (e *Engine) resolveResourceLocked(role types.Role) types.ResourceRequirement {
	memStr := e.spec.RoleOption(role.Name, "yarn_memory", "")
	coresStr := e.spec.RoleOption(role.Name, "yarn_cores", "")
	req := types.ResourceRequirement{}
	maxMemory := memStr == "max"
	maxCores := coresStr == "max"
	if !maxMemory {
		if v, err := strconv.Atoi(memStr); err == nil {
			req.MemoryMB = v
		}
	}
	if !maxCores {
		if v, err := strconv.Atoi(coresStr); err == nil {
			req.VCores = v
		}
	}
	return req.Resolve(e.limits, maxMemory, maxCores)
}

// RebuildModelFromRestart replays containers the resource manager reports
// as already live across an application master restart, walking each
// through the same Submit/Start transitions a fresh container takes so the
// internal maps and role history end up consistent either way.
func (e *Engine) RebuildModelFromRestart(liveContainers []types.ContainerHandle, now time.Time) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, c := range liveContainers {
		roleID := priority.Extract(c.Priority)
		rs, ok := e.roles[roleID]
		if !ok {
			return apperrors.NewInternalStateError("restarted container for unknown role priority %d", roleID)
		}
		rs.IncActual()
		ri := roleinstance.New(roleID, e.roleByID[roleID].Name, c, now)
		if err := ri.Submit(now); err != nil {
			return err
		}
		if err := ri.Start(now); err != nil {
			return err
		}
		e.active[c.ID] = ri
		e.live[c.ID] = ri
		rs.IncStarted()
		if e.history != nil {
			e.history.OnContainerAssigned(roleID, c.Host, now)
			e.history.OnContainerStarted(roleID, c.Host, now)
		}
		e.restartedContainers.Add(1)
	}
	return nil
}

// SetExcludeFromFlexing marks a role (typically none in normal use, but
// available for a provider-driven pinned role) out of scope for the
// review pass.
func (e *Engine) SetExcludeFromFlexing(roleName string, exclude bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	role, ok := e.roleByName[roleName]
	if !ok {
		return apperrors.NewConfigurationError("unknown role %s", roleName)
	}
	e.roles[role.ID].SetExcludeFromFlexing(exclude)
	return nil
}

// Snapshot produces the derived, published cluster description.
func (e *Engine) Snapshot(now time.Time) *types.ClusterDescription {
	e.mu.Lock()
	defer e.mu.Unlock()

	roleStats := make(map[string]map[string]int, len(e.roles))
	instances := make(map[string][]string, len(e.roles))
	containers := make(map[string]map[string]types.ContainerView, len(e.roles))

	for _, rs := range e.roles {
		roleStats[rs.Name()] = rs.BuildStatistics()
	}

	for id, ri := range e.live {
		if id == amContainerKey {
			continue
		}
		instances[ri.RoleName] = append(instances[ri.RoleName], id)
		byID, ok := containers[ri.RoleName]
		if !ok {
			byID = make(map[string]types.ContainerView)
			containers[ri.RoleName] = byID
		}
		byID[id] = types.ContainerView{
			ContainerID: id,
			Role:        ri.RoleName,
			Host:        ri.Container.Host,
			Port:        ri.Container.Port,
			State:       ri.State(),
			StartTime:   ri.StartTime,
		}
	}

	global := map[string]int{
		"completed":         int(e.completedContainerCount.Load()),
		"failed":            int(e.failedContainerCount.Load()),
		"live":              len(e.live),
		"started":           int(e.startedContainers.Load()),
		"start_failed":      int(e.startFailedContainers.Load()),
		"surplus":           int(e.surplusContainers.Load()),
		"unknown_completed": int(e.unknownCompletionEvents.Load()),
	}

	return &types.ClusterDescription{
		Spec:                e.spec,
		State:               e.state,
		CreateTime:          e.createTime,
		UpdateTime:          now,
		StatusTime:          now,
		RoleStatistics:      roleStats,
		Instances:           instances,
		Containers:          containers,
		GlobalStatistics:    global,
		RestartedContainers: int(e.restartedContainers.Load()),
	}
}

// ProgressPercentage is the AM-wide completion percentage across all
// roles, including roles excluded from flexing.
func (e *Engine) ProgressPercentage() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	totalDesired, totalActual := 0, 0
	for _, rs := range e.roles {
		totalDesired += rs.Desired()
		totalActual += rs.Actual()
	}
	return types.ProgressPercentage(totalDesired, totalActual)
}
