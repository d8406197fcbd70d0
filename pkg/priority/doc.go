/*
Package priority packs and unpacks a role identifier into the priority
field of a container request, so that a container allocated by the cluster
resource manager carries its role back to the engine without a side
channel.

The encoding is symmetric: Encode followed by Extract always returns the
original role id, for every role id in the valid range.
*/
package priority
