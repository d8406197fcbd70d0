package rolestatus

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/keyki/hoya/pkg/types"
)

// RoleStatus is the arithmetic core for one role: the counters the review
// pass reads to decide whether to request or release containers.
type RoleStatus struct {
	role types.Role

	desired     atomic.Int64
	requested   atomic.Int64
	actual      atomic.Int64
	releasing   atomic.Int64
	started     atomic.Int64
	failed      atomic.Int64
	startFailed atomic.Int64
	completed   atomic.Int64

	mu                 sync.RWMutex
	lastFailureMessage string
	excludeFromFlexing bool
}

// New creates the counters for a role, desired starting at zero.
func New(role types.Role) *RoleStatus {
	return &RoleStatus{role: role}
}

func (r *RoleStatus) Name() string { return r.role.Name }

// Key is the role id, used as the map key in the engine's role-status table
// and as the container-request priority.
func (r *RoleStatus) Key() int { return r.role.ID }

func (r *RoleStatus) Role() types.Role { return r.role }

func (r *RoleStatus) Desired() int        { return int(r.desired.Load()) }
func (r *RoleStatus) SetDesired(n int)     { r.desired.Store(int64(n)) }
func (r *RoleStatus) Requested() int      { return int(r.requested.Load()) }
func (r *RoleStatus) IncRequested() int   { return int(r.requested.Add(1)) }
func (r *RoleStatus) DecRequested() int   { return int(r.requested.Add(-1)) }
func (r *RoleStatus) Actual() int         { return int(r.actual.Load()) }
func (r *RoleStatus) IncActual() int      { return int(r.actual.Add(1)) }
func (r *RoleStatus) DecActual() int      { return int(r.actual.Add(-1)) }
func (r *RoleStatus) Releasing() int      { return int(r.releasing.Load()) }
func (r *RoleStatus) IncReleasing() int   { return int(r.releasing.Add(1)) }
func (r *RoleStatus) DecReleasing() int   { return int(r.releasing.Add(-1)) }
func (r *RoleStatus) Started() int        { return int(r.started.Load()) }
func (r *RoleStatus) IncStarted() int     { return int(r.started.Add(1)) }
func (r *RoleStatus) Failed() int         { return int(r.failed.Load()) }
func (r *RoleStatus) StartFailed() int    { return int(r.startFailed.Load()) }
func (r *RoleStatus) IncStartFailed() int { return int(r.startFailed.Add(1)) }
func (r *RoleStatus) Completed() int      { return int(r.completed.Load()) }
func (r *RoleStatus) IncCompleted() int   { return int(r.completed.Add(1)) }

// NoteFailed increments the cumulative failure count and records the
// message, if any, for later teardown diagnostics.
func (r *RoleStatus) NoteFailed(message string) int {
	n := r.failed.Add(1)
	if message != "" {
		r.mu.Lock()
		r.lastFailureMessage = message
		r.mu.Unlock()
	}
	return int(n)
}

func (r *RoleStatus) FailureMessage() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lastFailureMessage
}

func (r *RoleStatus) ExcludeFromFlexing() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.excludeFromFlexing
}

func (r *RoleStatus) SetExcludeFromFlexing(v bool) {
	r.mu.Lock()
	r.excludeFromFlexing = v
	r.mu.Unlock()
}

// Delta is how many more containers should be requested (positive) or
// released (negative) to reach the desired count.
func (r *RoleStatus) Delta() int {
	return r.Desired() - (r.Actual() + r.Requested() - r.Releasing())
}

// Snapshot is an independent view of all counters; the message and exclude
// fields are each read under their own read lock (the atomics are read in
// sequence; a torn read across counters is acceptable here, matching the
// teacher's "correctness does not depend on atomic-vs-lock choice" rule).
type Snapshot struct {
	Name               string
	Desired            int
	Requested          int
	Actual             int
	Releasing          int
	Started            int
	Failed             int
	StartFailed        int
	Completed          int
	Delta              int
	LastFailureMessage string
	ExcludeFromFlexing bool
}

func (r *RoleStatus) TakeSnapshot() Snapshot {
	return Snapshot{
		Name:               r.Name(),
		Desired:            r.Desired(),
		Requested:          r.Requested(),
		Actual:             r.Actual(),
		Releasing:          r.Releasing(),
		Started:            r.Started(),
		Failed:             r.Failed(),
		StartFailed:        r.StartFailed(),
		Completed:          r.Completed(),
		Delta:              r.Delta(),
		LastFailureMessage: r.FailureMessage(),
		ExcludeFromFlexing: r.ExcludeFromFlexing(),
	}
}

// BuildStatistics returns a mapping suitable for inclusion in the
// published cluster description's per-role statistics block.
func (r *RoleStatus) BuildStatistics() map[string]int {
	return map[string]int{
		"desired":      r.Desired(),
		"requested":    r.Requested(),
		"actual":       r.Actual(),
		"releasing":    r.Releasing(),
		"started":      r.Started(),
		"failed":       r.Failed(),
		"start_failed": r.StartFailed(),
		"completed":    r.Completed(),
	}
}

func (r *RoleStatus) String() string {
	return fmt.Sprintf(
		"RoleStatus{name=%s, desired=%d, actual=%d, requested=%d, releasing=%d, failed=%d}",
		r.Name(), r.Desired(), r.Actual(), r.Requested(), r.Releasing(), r.Failed(),
	)
}
