/*
Package ops carries the two operation types the engine emits from a review
pass: ContainerRequest (ask the resource manager for one more container of
a role, at a resolved resource shape and priority) and ContainerRelease
(give one back). Neither type talks to a resource manager itself - they
are the engine's side of the contract pkg/rmclient names.
*/
package ops
