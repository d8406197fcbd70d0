/*
Package provider names the roles a particular workload brings to the
engine. A provider never touches the engine or the resource manager
directly - it only declares Roles(), the fixed or templated role set the
rest of config.ResolveRoles and appstate.New build on.
*/
package provider
