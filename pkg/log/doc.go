/*
Package log is a thin wrapper around zerolog: a package-level logger,
Init to configure level and output format, and child-logger helpers that
stamp the fields the rest of the engine cares about - component, role,
container id.
*/
package log
