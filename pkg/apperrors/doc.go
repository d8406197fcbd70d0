/*
Package apperrors carries the error taxonomy the engine's event handlers
and review pass raise: configuration errors (fatal at build time),
internal-state errors (fatal to the current request only), and the
trigger-cluster-teardown error a review pass raises once a role's failure
count crosses its threshold.

Unknown-event and surplus conditions are expected and counted rather than
raised; see pkg/appstate for their counters.
*/
package apperrors
