/*
Package head implements the deterministic head protocol state machine.

The single entry point is Update, a pure function from a state and an event
to an outcome: a successor state plus an ordered list of effects, a request
to wait, or a protocol error. All I/O lives outside this package; the node
dispatches the returned effects.

The protocol confirms transactions by collecting an acknowledgement from
every party, folds confirmed transactions into numbered snapshots signed by
every party under a rotating leader, and falls back to the base chain
through close, contest and fanout when cooperation ends.
*/
package head
