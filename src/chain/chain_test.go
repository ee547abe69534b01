package chain

import (
	"fmt"
	"testing"
	"time"

	"github.com/lagoon-network/lagoon/src/crypto/keys"
	"github.com/lagoon-network/lagoon/src/head"
	"github.com/lagoon-network/lagoon/src/ledger"
	"github.com/lagoon-network/lagoon/src/peers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testContext(t *testing.T, n int, network Network) *Context {
	parties := []*peers.Party{}
	for i := 0; i < n; i++ {
		key, err := keys.GenerateECDSAKey()
		require.NoError(t, err)
		parties = append(parties, peers.NewParty(
			keys.PublicKeyHex(&key.PublicKey),
			fmt.Sprintf("addr%d", i),
			fmt.Sprintf("party%d", i),
		))
	}

	partySet := peers.NewPartySet(parties)
	converter := NewSlotConverter(time.Unix(0, 0).UTC(), time.Second)

	return NewContext(network, partySet.Parties[0], partySet, time.Minute, converter, "seed#0")
}

func point(slot uint64) head.ChainPoint {
	return head.ChainPoint{Slot: slot, BlockHash: fmt.Sprintf("hash%d", slot)}
}

// initialState drives Idle -> Initial through the constructor/observer pair.
func initialState(t *testing.T, ctx *Context) *State {
	tx := ctx.Initialize(ctx.ContestationPeriod, ctx.SeedInput)

	event, st, ok := Observe(ctx, NewState(), tx, point(1))
	require.True(t, ok)
	require.IsType(t, &head.OnInitTx{}, event)
	require.Equal(t, PhaseInitial, st.Phase)

	return st
}

// openState drives the machine up to Open with every party committed.
func openState(t *testing.T, ctx *Context) *State {
	st := initialState(t, ctx)

	slot := uint64(2)
	for i, party := range ctx.Parties.Parties {
		partyCtx := *ctx
		partyCtx.Party = party

		marker := st.InitialMarkers[party.ID()]
		spendable := ledger.UTxO{marker: 0}
		toCommit := []CommitOutput{{
			Ref:   ledger.OutRef(fmt.Sprintf("c%d", i)),
			Value: ledger.Value(10 * (i + 1)),
		}}

		tx, err := partyCtx.Commit(st, spendable, toCommit)
		require.NoError(t, err)

		event, next, ok := Observe(ctx, st, tx, point(slot))
		require.True(t, ok)
		commit := event.(*head.OnCommitTx)
		assert.Equal(t, party.ID(), commit.Party)

		st = next
		slot++
	}

	collect, err := ctx.Collect(st)
	require.NoError(t, err)

	event, st, ok := Observe(ctx, st, collect, point(slot))
	require.True(t, ok)
	require.IsType(t, &head.OnCollectTx{}, event)
	require.Equal(t, PhaseOpen, st.Phase)
	assert.Len(t, st.UTxO, len(ctx.Parties.Parties))

	return st
}

func signedSnapshot(number uint64, utxo ledger.UTxO) *head.SignedSnapshot {
	return head.NewSignedSnapshot(&head.Snapshot{Number: number, UTxO: utxo}, nil)
}

/*******************************************************************************
Construct/observe round trips
*******************************************************************************/

func TestRoundTripInitCommitCollect(t *testing.T) {
	ctx := testContext(t, 3, Testnet)
	openState(t, ctx)
}

func TestRoundTripAbort(t *testing.T) {
	ctx := testContext(t, 3, Testnet)
	st := initialState(t, ctx)

	tx, err := ctx.Abort(st)
	require.NoError(t, err)

	event, next, ok := Observe(ctx, st, tx, point(2))
	require.True(t, ok)
	require.IsType(t, &head.OnAbortTx{}, event)
	assert.Equal(t, PhaseFinal, next.Phase)
}

func TestRoundTripCloseContestFanout(t *testing.T) {
	ctx := testContext(t, 3, Testnet)
	st := openState(t, ctx)

	sn := signedSnapshot(1, ledger.UTxO{"x": 42})

	closeTx, err := ctx.Close(st, sn, st.RecordedAt.Slot, ctx.Converter.SlotToTime(st.RecordedAt.Slot).Add(30*time.Second))
	require.NoError(t, err)

	event, st, ok := Observe(ctx, st, closeTx, point(10))
	require.True(t, ok)
	closed := event.(*head.OnCloseTx)
	assert.Equal(t, uint64(1), closed.SnapshotNumber)
	require.Equal(t, PhaseClosed, st.Phase)

	better := signedSnapshot(2, ledger.UTxO{"y": 42})
	contestTx, err := ctx.Contest(st, better)
	require.NoError(t, err)

	event, st, ok = Observe(ctx, st, contestTx, point(11))
	require.True(t, ok)
	contest := event.(*head.OnContestTx)
	assert.Equal(t, uint64(2), contest.SnapshotNumber)
	assert.Equal(t, ctx.Party.ID(), contest.Contester)
	assert.Contains(t, contest.Contesters, ctx.Party.ID())
	assert.Equal(t, uint64(2), st.SnapshotNumber)

	fanoutTx, err := ctx.Fanout(st, better.Snapshot.UTxO)
	require.NoError(t, err)

	event, st, ok = Observe(ctx, st, fanoutTx, point(12))
	require.True(t, ok)
	fanout := event.(*head.OnFanoutTx)
	assert.Equal(t, ledger.Value(42), fanout.UTxO["y"])
	assert.Equal(t, PhaseFinal, st.Phase)
}

func TestObserverIgnoresOtherHead(t *testing.T) {
	ctx := testContext(t, 3, Testnet)
	st := initialState(t, ctx)

	// a commit for a different head is silently unrelated
	tx := &Tx{
		Kind:      TxCommit,
		HeadID:    "some-other-head",
		Party:     ctx.Party.ID(),
		Committed: ledger.UTxO{"c": 1},
	}

	_, _, ok := Observe(ctx, st, tx, point(2))
	assert.False(t, ok)

	// an init for a different party set is not ours
	otherCtx := testContext(t, 3, Testnet)
	foreignInit := otherCtx.Initialize(time.Minute, "other-seed#0")

	_, _, ok = Observe(ctx, NewState(), foreignInit, point(1))
	assert.False(t, ok)
}

/*******************************************************************************
Commit rejection rules
*******************************************************************************/

func TestCommitRejectsLegacyOutput(t *testing.T) {
	ctx := testContext(t, 3, Testnet)
	st := initialState(t, ctx)

	marker := st.InitialMarkers[ctx.Party.ID()]
	_, err := ctx.Commit(st, ledger.UTxO{marker: 0}, []CommitOutput{
		{Ref: "c0", Value: 1, LegacyAddress: true},
	})
	require.Error(t, err)
	assert.IsType(t, &UnsupportedLegacyOutputError{}, err)
}

func TestCommitRejectsReferenceScript(t *testing.T) {
	ctx := testContext(t, 3, Testnet)
	st := initialState(t, ctx)

	marker := st.InitialMarkers[ctx.Party.ID()]
	_, err := ctx.Commit(st, ledger.UTxO{marker: 0}, []CommitOutput{
		{Ref: "c0", Value: 1, HasReferenceScript: true},
	})
	require.Error(t, err)
	assert.IsType(t, &CannotCommitReferenceScriptError{}, err)
}

func TestCommitRejectsTooMuchOnMainnet(t *testing.T) {
	ctx := testContext(t, 3, Mainnet)
	st := initialState(t, ctx)

	marker := st.InitialMarkers[ctx.Party.ID()]
	_, err := ctx.Commit(st, ledger.UTxO{marker: 0}, []CommitOutput{
		{Ref: "c0", Value: ctx.MainnetValueCap + 1},
	})
	require.Error(t, err)
	assert.IsType(t, &CommittedTooMuchForMainnetError{}, err)

	// the same commit is fine off mainnet
	testnetCtx := testContext(t, 3, Testnet)
	st = initialState(t, testnetCtx)
	marker = st.InitialMarkers[testnetCtx.Party.ID()]
	_, err = testnetCtx.Commit(st, ledger.UTxO{marker: 0}, []CommitOutput{
		{Ref: "c0", Value: testnetCtx.MainnetValueCap + 1},
	})
	require.NoError(t, err)
}

func TestCommitRejectsMissingInitial(t *testing.T) {
	ctx := testContext(t, 3, Testnet)
	st := initialState(t, ctx)

	// spendable set without our marker
	_, err := ctx.Commit(st, ledger.UTxO{"unrelated": 1}, []CommitOutput{
		{Ref: "c0", Value: 1},
	})
	require.Error(t, err)
	assert.IsType(t, &CannotFindOwnInitialError{}, err)
}

/*******************************************************************************
Close window
*******************************************************************************/

func TestCloseRejectsWideValidityWindow(t *testing.T) {
	ctx := testContext(t, 3, Testnet)
	st := openState(t, ctx)

	sn := signedSnapshot(1, ledger.UTxO{"x": 1})

	lower := st.RecordedAt.Slot
	upper := ctx.Converter.SlotToTime(lower).Add(ctx.ContestationPeriod + time.Second)

	_, err := ctx.Close(st, sn, lower, upper)
	require.Error(t, err)
	assert.IsType(t, &InvalidCloseWindowError{}, err)
}

func TestCloseDeadlineFollowsUpperBound(t *testing.T) {
	ctx := testContext(t, 3, Testnet)
	st := openState(t, ctx)

	sn := signedSnapshot(1, ledger.UTxO{"x": 1})
	lower := st.RecordedAt.Slot
	upper := ctx.Converter.SlotToTime(lower).Add(30 * time.Second)

	tx, err := ctx.Close(st, sn, lower, upper)
	require.NoError(t, err)
	assert.Equal(t, upper.Add(st.ContestationPeriod), tx.ContestationDeadline)
}

/*******************************************************************************
Slot conversion
*******************************************************************************/

func TestSlotConverterRoundTrip(t *testing.T) {
	start := time.Unix(1000, 0).UTC()
	c := NewSlotConverter(start, time.Second)

	for _, slot := range []uint64{0, 1, 17, 2160} {
		tm := c.SlotToTime(slot)
		back, err := c.TimeToSlot(tm)
		require.NoError(t, err)
		assert.Equal(t, slot, back)
	}

	_, err := c.TimeToSlot(start.Add(-time.Second))
	require.Error(t, err)
	assert.IsType(t, &TimeConversionError{}, err)
}
