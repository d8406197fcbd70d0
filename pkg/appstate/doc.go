/*
Package appstate implements the engine: the single mutable model of a
role-based application master's container population. It tracks, per
role, how many containers are desired, requested, actual and releasing; it
advances each allocated container through pkg/roleinstance's lifecycle as
the resource manager and node manager report events; and on a review pass
it emits the container requests and releases needed to close the gap
between desired and actual.

Every public method takes the engine's single mutex, matching the
teacher's rule that nothing touches the maps or counters without holding
the lock - there is no I/O on any of these paths, so the lock is held for
the whole call.
*/
package appstate
