/*
Package types defines the core data structures shared across hoya's
application-master engine.

This package holds the model that every other package depends on: roles,
resource requirements, container handles, and the two cluster-level
documents (spec and description) described in the reconciliation design.
It deliberately carries no behavior beyond simple accessors and defaults -
the arithmetic and state machines live in pkg/rolestatus, pkg/roleinstance,
and pkg/rolehistory.

# Core Types

Role definition:
  - Role: a named class of container, keyed by a stable integer id that
    doubles as the container-request priority.

Resource shape:
  - ResourceRequirement: memory/cores asked for a role, with "max"
    resolved against the cluster's reported container limits.
  - ContainerLimits: the cluster-reported maximum container shape.

Container identity:
  - ContainerHandle: the opaque allocation handle (id, node, host, port)
    that stands in for whatever the real cluster resource manager's
    container record looks like.

Cluster-level documents:
  - ClusterSpec: the desired state authored by the user.
  - ClusterDescription: the derived, published snapshot of observed state.

# Thread Safety

Values in this package carry no internal synchronization. Callers that
share a *ClusterSpec or *ClusterDescription across goroutines must copy it
(see ClusterDescription.Clone) before handing it to a reader.
*/
package types
