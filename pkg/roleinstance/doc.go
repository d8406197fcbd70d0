/*
Package roleinstance tracks one allocated container's journey through
REQUESTED, SUBMITTED, LIVE, RELEASING and DESTROYED. Transitions are driven by a
looplab/fsm.FSM rather than a bare field assignment, so an out-of-order
callback (for example a start-submitted event for a container already
LIVE) surfaces as an error the caller maps to apperrors.InternalStateError
instead of silently overwriting state.
*/
package roleinstance
