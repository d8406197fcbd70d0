package roleinstance

import (
	"context"
	"sync"
	"time"

	"github.com/looplab/fsm"

	"github.com/keyki/hoya/pkg/apperrors"
	"github.com/keyki/hoya/pkg/types"
)

// State names mirror spec.md's lifecycle: REQUESTED, SUBMITTED, LIVE,
// RELEASING, DESTROYED.
const (
	StateRequested = "REQUESTED"
	StateSubmitted = "SUBMITTED"
	StateLive      = "LIVE"
	StateReleasing = "RELEASING"
	StateDestroyed = "DESTROYED"
)

const (
	eventSubmit    = "submit"
	eventStart     = "start"
	eventStartFail = "start_fail"
	eventRelease   = "release"
	eventComplete  = "complete"
)

// RoleInstance is one tracked container: its role, its allocation handle,
// and its lifecycle state.
type RoleInstance struct {
	mu sync.Mutex

	RoleID    int
	RoleName  string
	Container types.ContainerHandle

	CreateTime  time.Time
	StartTime   time.Time
	ReleasedAt  time.Time
	DestroyTime time.Time

	ExitCode   int
	Diagnostics string

	machine *fsm.FSM
}

// New builds a RoleInstance in REQUESTED state for an allocated container.
func New(roleID int, roleName string, container types.ContainerHandle, now time.Time) *RoleInstance {
	ri := &RoleInstance{
		RoleID:     roleID,
		RoleName:   roleName,
		Container:  container,
		CreateTime: now,
	}
	ri.machine = fsm.NewFSM(
		StateRequested,
		fsm.Events{
			{Name: eventSubmit, Src: []string{StateRequested}, Dst: StateSubmitted},
			{Name: eventStart, Src: []string{StateSubmitted}, Dst: StateLive},
			{Name: eventStartFail, Src: []string{StateSubmitted}, Dst: StateDestroyed},
			{Name: eventRelease, Src: []string{StateLive, StateSubmitted, StateRequested}, Dst: StateReleasing},
			{Name: eventComplete, Src: []string{StateLive, StateSubmitted, StateReleasing}, Dst: StateDestroyed},
		},
		fsm.Callbacks{},
	)
	return ri
}

// State returns the current lifecycle state.
func (ri *RoleInstance) State() string {
	ri.mu.Lock()
	defer ri.mu.Unlock()
	return ri.machine.Current()
}

// Submit transitions REQUESTED -> SUBMITTED, stamping the create time if it
// was not already set (New normally sets it, so this only fills a zero
// value).
func (ri *RoleInstance) Submit(now time.Time) error {
	ri.mu.Lock()
	defer ri.mu.Unlock()
	if err := ri.machine.Event(context.Background(), eventSubmit); err != nil {
		return ri.wrapTransitionError("submit", err)
	}
	if ri.CreateTime.IsZero() {
		ri.CreateTime = now
	}
	return nil
}

// Start transitions SUBMITTED -> LIVE, stamping the start time.
func (ri *RoleInstance) Start(now time.Time) error {
	ri.mu.Lock()
	defer ri.mu.Unlock()
	if err := ri.machine.Event(context.Background(), eventStart); err != nil {
		return ri.wrapTransitionError("start", err)
	}
	ri.StartTime = now
	return nil
}

// StartFailed transitions SUBMITTED -> DESTROYED: the node manager could
// not launch the container at all.
func (ri *RoleInstance) StartFailed(now time.Time, diagnostics string) error {
	ri.mu.Lock()
	defer ri.mu.Unlock()
	if err := ri.machine.Event(context.Background(), eventStartFail); err != nil {
		return ri.wrapTransitionError("start_fail", err)
	}
	ri.DestroyTime = now
	ri.Diagnostics = diagnostics
	return nil
}

// Release transitions LIVE, SUBMITTED or REQUESTED -> RELEASING: a release request
// has been submitted to the resource manager but not yet confirmed.
func (ri *RoleInstance) Release(now time.Time) error {
	ri.mu.Lock()
	defer ri.mu.Unlock()
	if err := ri.machine.Event(context.Background(), eventRelease); err != nil {
		return ri.wrapTransitionError("release", err)
	}
	ri.ReleasedAt = now
	return nil
}

// Complete transitions to DESTROYED: the resource manager has confirmed
// the container is gone, whether by release, crash, or completion.
func (ri *RoleInstance) Complete(now time.Time, exitCode int, diagnostics string) error {
	ri.mu.Lock()
	defer ri.mu.Unlock()
	if err := ri.machine.Event(context.Background(), eventComplete); err != nil {
		return ri.wrapTransitionError("complete", err)
	}
	ri.DestroyTime = now
	ri.ExitCode = exitCode
	ri.Diagnostics = diagnostics
	return nil
}

// IsReleased reports whether a release has been submitted for this
// instance, used to reject a second release request.
func (ri *RoleInstance) IsReleased() bool {
	ri.mu.Lock()
	defer ri.mu.Unlock()
	s := ri.machine.Current()
	return s == StateReleasing || s == StateDestroyed
}

func (ri *RoleInstance) wrapTransitionError(event string, err error) error {
	return apperrors.NewInternalStateError(
		"container %s: cannot %s from state %s: %v",
		ri.Container.ID, event, ri.machine.Current(), err,
	)
}
