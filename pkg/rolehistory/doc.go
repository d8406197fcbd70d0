/*
Package rolehistory remembers, per (host, role), how many instances of a
role were last active on a host and when it was last used. The engine
consults it twice: to bias new allocations toward hosts that already ran
the role (placement affinity) and to pick which instances to release first
when flexing down (the host with the most active instances loses one
first, ties broken by most-recent use, then by hostname).

History survives an AM restart through Store, a single bbolt file with one
bucket keyed by host and role id, reloaded idempotently at startup.
*/
package rolehistory
