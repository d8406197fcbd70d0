/*
Package config loads a cluster spec document from YAML into
types.ClusterSpec: cluster-wide options (container_failure_threshold,
container_failure_short_life) and, per role, its desired count,
placement policy and option table (role_priority, yarn_memory, yarn_cores,
jvm_heap, and any provider-specific keys).
*/
package config
