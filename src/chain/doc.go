/*
Package chain mirrors the on-chain head lifecycle off-chain.

Constructors build the base-ledger transaction for each lifecycle transition
(init, commit, abort, collect, close, contest, fanout); observers match
transactions seen in blocks against the tracked state and are the sole
authority advancing it. For every constructor there is an observer such that
observing a constructed transaction yields the intended transition.

LocalChainState retains a bounded, rewindable history of observed states so
the Follower can serve chain rollbacks; a rollback past the retained window
is unrecoverable.
*/
package chain
