/*
Package rolestatus holds the per-role counters the engine reconciles
against: desired, requested, actual, releasing, and the cumulative
started/failed/start-failed/completed totals.

Counters that are read and written from many goroutines (the resource
manager callback dispatcher, the node-manager callback dispatcher, the
reviewer, the status publisher) use atomics directly; the optional
last-failure message and the exclude-from-flexing flag are guarded by a
mutex. The derived value (Delta) reads the atomics one after another
without a lock, so it can combine counters from slightly different
moments.
*/
package rolestatus
