/*
Package runtime provides the one concrete rmclient.ResourceManagerClient
this repository ships: a driver backed by a live containerd socket.
Containers it creates stand in for whatever the real cluster resource
manager would grant; the namespace isolates the application master's own
pool from anything else running on the same containerd instance. Swap in
a different ResourceManagerClient to talk to a real cluster resource
manager - nothing in pkg/appstate depends on this package.
*/
package runtime
