/*
Package metrics registers the prometheus collectors: per-role counter
gauges, review cycle duration, and counts of surplus/unknown/teardown-
triggering events. The review loop updates the review, surplus, unknown
and teardown collectors; nothing in this repository sets the per-role
gauges or the per-role failure counter, and the engine itself updates no
metrics.
*/
package metrics
