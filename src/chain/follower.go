package chain

import (
	"github.com/lagoon-network/lagoon/src/head"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Follower consumes the chain-sync stream and feeds head events into the
// node's queue. For every RollForward it observes the block's transactions
// against the local chain state and emits the matching ChainEvents plus one
// Tick; for every RollBackward it restores the local state and emits a
// Rollback event.
type Follower struct {
	ctx    *Context
	local  *LocalChainState
	emit   func(head.Event)
	logger *logrus.Entry
}

// NewFollower ...
func NewFollower(ctx *Context, local *LocalChainState, emit func(head.Event), logger *logrus.Entry) *Follower {
	return &Follower{
		ctx:    ctx,
		local:  local,
		emit:   emit,
		logger: logger,
	}
}

// Local exposes the rewindable state so the node can read a snapshot of the
// current chain state when building transactions.
func (f *Follower) Local() *LocalChainState {
	return f.local
}

// RollForward processes one block.
func (f *Follower) RollForward(point head.ChainPoint, txs []*Tx) {
	for _, tx := range txs {
		event, next, ok := Observe(f.ctx, f.local.Current(), tx, point)
		if !ok {
			continue
		}

		f.logger.WithFields(logrus.Fields{
			"kind": tx.Kind,
			"slot": point.Slot,
		}).Debug("observed head transaction")

		f.local.Advance(next)
		f.emit(&head.ChainEvent{Observation: event})
	}

	f.emit(&head.TickEvent{
		Time: f.ctx.Converter.SlotToTime(point.Slot),
		Slot: point.Slot,
	})
}

// RollBackward restores the newest state at or before point and reports the
// rollback to the head logic. A rollback past the retained window is fatal.
func (f *Follower) RollBackward(point head.ChainPoint) error {
	restored, err := f.local.Rollback(point)
	if err != nil {
		return errors.Wrap(err, "rolling back local chain state")
	}

	f.logger.WithFields(logrus.Fields{
		"slot":           point.Slot,
		"restored_slot":  restored.RecordedAt.Slot,
		"restored_phase": restored.Phase.String(),
	}).Debug("rolled back")

	f.emit(&head.RollbackEvent{Point: point})

	return nil
}
