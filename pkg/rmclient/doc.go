/*
Package rmclient names the two collaborator contracts the engine's output
is meant for, without specifying a wire protocol: a resource manager that
takes container requests/releases and reports completions, and a node
manager callback sink the engine's start/start-failed handlers are fed
from. pkg/runtime provides one concrete ResourceManagerClient backed by
containerd; production deployments swap in a driver for the real cluster
resource manager.
*/
package rmclient
