package rolehistory

import (
	"sort"
	"sync"
	"time"

	"github.com/keyki/hoya/pkg/types"
)

// NodeInstance is the per-(host, role) placement memory.
type NodeInstance struct {
	Host        string
	RoleID      int
	ActiveCount int
	LastUsed    time.Time
	Available   bool
}

// RoleHistory is the engine-wide placement memory: one NodeInstance per
// (host, role) pair, guarded by its own mutex so tests can exercise it
// independently of a live appstate.Engine.
type RoleHistory struct {
	mu    sync.Mutex
	nodes map[string]map[int]*NodeInstance
	store *Store
}

// New builds an empty history, optionally backed by a durable Store. store
// may be nil, in which case history does not survive a restart.
func New(store *Store) *RoleHistory {
	return &RoleHistory{
		nodes: make(map[string]map[int]*NodeInstance),
		store: store,
	}
}

// Load replays the backing store's contents into memory. Safe to call once
// at startup; a no-op if there is no backing store.
func (h *RoleHistory) Load() error {
	if h.store == nil {
		return nil
	}
	entries, err := h.store.LoadAll()
	if err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ni := range entries {
		h.entryLocked(ni.Host, ni.RoleID)
		cp := ni
		h.nodes[ni.Host][ni.RoleID] = &cp
	}
	return nil
}

func (h *RoleHistory) entryLocked(host string, roleID int) *NodeInstance {
	byRole, ok := h.nodes[host]
	if !ok {
		byRole = make(map[int]*NodeInstance)
		h.nodes[host] = byRole
	}
	ni, ok := byRole[roleID]
	if !ok {
		ni = &NodeInstance{Host: host, RoleID: roleID, Available: true}
		byRole[roleID] = ni
	}
	return ni
}

func (h *RoleHistory) persist(ni NodeInstance) {
	if h.store == nil {
		return
	}
	_ = h.store.Save(ni)
}

// OnContainerAssigned records that a container was assigned to host for
// roleID, ahead of the resource manager confirming the start.
func (h *RoleHistory) OnContainerAssigned(roleID int, host string, now time.Time) {
	h.mu.Lock()
	ni := h.entryLocked(host, roleID)
	ni.ActiveCount++
	ni.LastUsed = now
	ni.Available = false
	cp := *ni
	h.mu.Unlock()
	h.persist(cp)
}

// OnContainerStarted records a confirmed start; active count was already
// incremented at assignment time, so this only refreshes LastUsed.
func (h *RoleHistory) OnContainerStarted(roleID int, host string, now time.Time) {
	h.mu.Lock()
	ni := h.entryLocked(host, roleID)
	ni.LastUsed = now
	cp := *ni
	h.mu.Unlock()
	h.persist(cp)
}

// OnReleaseCompleted records that a released container on host is gone.
func (h *RoleHistory) OnReleaseCompleted(roleID int, host string, now time.Time) {
	h.mu.Lock()
	ni := h.entryLocked(host, roleID)
	if ni.ActiveCount > 0 {
		ni.ActiveCount--
	}
	ni.LastUsed = now
	ni.Available = true
	cp := *ni
	h.mu.Unlock()
	h.persist(cp)
}

// OnFailedContainer records a crash. shortLived containers mark the host
// temporarily unavailable so the next review pass is less likely to pick
// it again immediately.
func (h *RoleHistory) OnFailedContainer(roleID int, host string, shortLived bool, now time.Time) {
	h.mu.Lock()
	ni := h.entryLocked(host, roleID)
	if ni.ActiveCount > 0 {
		ni.ActiveCount--
	}
	ni.LastUsed = now
	ni.Available = !shortLived
	cp := *ni
	h.mu.Unlock()
	h.persist(cp)
}

// RequestNode suggests a host for a new allocation of roleID: the most
// recently used available host runs first (affinity), falling back to no
// preference if none is known.
func (h *RoleHistory) RequestNode(roleID int) (string, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	var best *NodeInstance
	for _, byRole := range h.nodes {
		ni, ok := byRole[roleID]
		if !ok || !ni.Available {
			continue
		}
		if best == nil || ni.LastUsed.After(best.LastUsed) {
			best = ni
		}
	}
	if best == nil {
		return "", false
	}
	return best.Host, true
}

// FindNodesForRelease picks up to count hosts to release one instance of
// roleID from each, preferring the hosts with the most active instances of
// the role. Ties break by most-recent use, then by hostname ascending -
// deterministic so two otherwise-equal hosts are chosen the same way every
// run.
func (h *RoleHistory) FindNodesForRelease(roleID int, count int) []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	var candidates []*NodeInstance
	for _, byRole := range h.nodes {
		if ni, ok := byRole[roleID]; ok && ni.ActiveCount > 0 {
			candidates = append(candidates, ni)
		}
	}
	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.ActiveCount != b.ActiveCount {
			return a.ActiveCount > b.ActiveCount
		}
		if !a.LastUsed.Equal(b.LastUsed) {
			return a.LastUsed.After(b.LastUsed)
		}
		return a.Host < b.Host
	})
	if count > len(candidates) {
		count = len(candidates)
	}
	hosts := make([]string, 0, count)
	for i := 0; i < count; i++ {
		hosts = append(hosts, candidates[i].Host)
	}
	return hosts
}

// PrepareAllocationList reorders a batch of newly allocated containers,
// preferring ones on hosts with known history for the role first - a
// stable sort so containers on unknown hosts keep their relative order.
func (h *RoleHistory) PrepareAllocationList(roleID int, containers []types.ContainerHandle) []types.ContainerHandle {
	h.mu.Lock()
	known := make(map[string]bool, len(h.nodes))
	for host, byRole := range h.nodes {
		if _, ok := byRole[roleID]; ok {
			known[host] = true
		}
	}
	h.mu.Unlock()

	out := make([]types.ContainerHandle, len(containers))
	copy(out, containers)
	sort.SliceStable(out, func(i, j int) bool {
		return known[out[i].Host] && !known[out[j].Host]
	})
	return out
}
