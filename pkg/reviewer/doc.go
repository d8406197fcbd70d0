/*
Package reviewer drives the engine's periodic review pass: every tick it
asks appstate.Engine for the requests and releases needed to close the
desired/actual gap, submits them to a rmclient.ResourceManagerClient, and
feeds the client's completion events back into the engine. Its Start/Stop
and ticker loop follow the same shape as the teacher's reconciler and
scheduler loops - a single background goroutine, a stop channel, a timed
tick.
*/
package reviewer
