package chain

import (
	"testing"
	"time"

	"github.com/lagoon-network/lagoon/src/common"
	"github.com/lagoon-network/lagoon/src/head"
	"github.com/lagoon-network/lagoon/src/ledger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Scenario S6: roll forward init and commit blocks, roll back to the first,
// and check the restored chain state sits at that slot; later blocks rebuild
// from there.
func TestFollowerRollbackRestoresState(t *testing.T) {
	ctx := testContext(t, 2, Testnet)

	events := []head.Event{}
	emit := func(e head.Event) { events = append(events, e) }

	local := NewLocalChainState(NewState(), DefaultWindow)
	follower := NewFollower(ctx, local, emit, common.NewTestEntry(t))

	initTx := ctx.Initialize(time.Minute, ctx.SeedInput)
	follower.RollForward(point(1), []*Tx{initTx})

	st := local.Current()
	require.Equal(t, PhaseInitial, st.Phase)

	// two commit blocks at slots 2 and 3
	slot := uint64(2)
	for _, party := range ctx.Parties.Parties {
		partyCtx := *ctx
		partyCtx.Party = party
		marker := st.InitialMarkers[party.ID()]
		commitTx, err := partyCtx.Commit(st, ledger.UTxO{marker: 0}, []CommitOutput{
			{Ref: ledger.OutRef("c"), Value: 1},
		})
		require.NoError(t, err)

		follower.RollForward(point(slot), []*Tx{commitTx})
		st = local.Current()
		slot++
	}

	require.Equal(t, uint64(3), local.Current().RecordedAt.Slot)
	require.Len(t, local.Current().Committed, 2)

	// each forward block produced one observation and one tick
	var ticks, observations int
	for _, e := range events {
		switch e.(type) {
		case *head.TickEvent:
			ticks++
		case *head.ChainEvent:
			observations++
		}
	}
	assert.Equal(t, 3, ticks)
	assert.Equal(t, 3, observations)

	// roll back to slot 1
	events = nil
	require.NoError(t, follower.RollBackward(head.ChainPoint{Slot: 1}))

	require.Len(t, events, 1)
	rollback, ok := events[0].(*head.RollbackEvent)
	require.True(t, ok)
	assert.Equal(t, uint64(1), rollback.Point.Slot)
	assert.Equal(t, uint64(1), local.Current().RecordedAt.Slot)
	assert.Equal(t, PhaseInitial, local.Current().Phase)
	assert.Len(t, local.Current().Committed, 0)

	// further roll forwards rebuild from the restored point
	st = local.Current()
	party := ctx.Parties.Parties[0]
	partyCtx := *ctx
	partyCtx.Party = party
	marker := st.InitialMarkers[party.ID()]
	commitTx, err := partyCtx.Commit(st, ledger.UTxO{marker: 0}, []CommitOutput{
		{Ref: ledger.OutRef("c"), Value: 1},
	})
	require.NoError(t, err)

	follower.RollForward(point(2), []*Tx{commitTx})
	assert.Equal(t, uint64(2), local.Current().RecordedAt.Slot)
	assert.Len(t, local.Current().Committed, 1)
}

func TestInmemChainDrivesFollowers(t *testing.T) {
	ctx := testContext(t, 2, Devnet)

	events := []head.Event{}
	local := NewLocalChainState(NewState(), DefaultWindow)
	follower := NewFollower(ctx, local, func(e head.Event) { events = append(events, e) }, common.NewTestEntry(t))

	c := NewInmemChain()
	c.Connect(follower)

	require.NoError(t, c.SubmitTx(ctx.Initialize(time.Minute, ctx.SeedInput)))
	require.Equal(t, PhaseInitial, local.Current().Phase)

	c.Tick()

	// submit + tick produced two ticks and one observation
	var ticks int
	for _, e := range events {
		if _, ok := e.(*head.TickEvent); ok {
			ticks++
		}
	}
	assert.Equal(t, 2, ticks)

	require.NoError(t, c.RollbackTo(0))
	assert.Equal(t, PhaseIdle, local.Current().Phase)
}
