package chain

import (
	"time"

	"github.com/lagoon-network/lagoon/src/common"
	"github.com/lagoon-network/lagoon/src/head"
	"github.com/lagoon-network/lagoon/src/ledger"
)

/*
Constructors build the base-ledger transaction for each lifecycle transition.
They are pure: given the context and the current chain state they either
return a transaction or a structured error, and never touch the state. The
dual observers in observers.go are the only code that advances the state; the
round-trip law Observe(Construct(state)) is checked in tests.
*/

// CommitOutput is an output a party wants to commit, together with the
// wallet metadata the rejection rules depend on.
type CommitOutput struct {
	Ref                ledger.OutRef
	Value              ledger.Value
	LegacyAddress      bool
	HasReferenceScript bool
}

// Initialize builds the init transaction from a spendable seed input. It
// always succeeds given the seed: it mints the head identifier and one
// initial marker output per party.
func (ctx *Context) Initialize(contestationPeriod time.Duration, seedInput ledger.OutRef) *Tx {
	headID := ctx.headID(seedInput)

	markers := map[uint32]ledger.OutRef{}
	for _, id := range ctx.Parties.IDs() {
		markers[id] = markerRef(headID, id)
	}

	return &Tx{
		Kind:               TxInit,
		HeadID:             headID,
		Parties:            ctx.Parties.PubKeys(),
		InitialMarkers:     markers,
		ContestationPeriod: contestationPeriod,
		SeedInput:          seedInput,
	}
}

// Commit builds our commit transaction. The spendable set must contain our
// initial marker; toCommit lists the outputs to deposit into the head.
func (ctx *Context) Commit(st *State, spendable ledger.UTxO, toCommit []CommitOutput) (*Tx, error) {
	if st.Phase != PhaseInitial {
		return nil, &InvalidStateError{Phase: st.Phase, Op: "commit"}
	}

	var total ledger.Value
	committed := ledger.UTxO{}
	for _, out := range toCommit {
		if out.LegacyAddress {
			return nil, &UnsupportedLegacyOutputError{Ref: out.Ref}
		}
		if out.HasReferenceScript {
			return nil, &CannotCommitReferenceScriptError{Ref: out.Ref}
		}
		committed[out.Ref] = out.Value
		total += out.Value
	}

	if ctx.Network == Mainnet && total > ctx.MainnetValueCap {
		return nil, &CommittedTooMuchForMainnetError{Committed: total, Cap: ctx.MainnetValueCap}
	}

	marker, ok := st.InitialMarkers[ctx.Party.ID()]
	if !ok {
		return nil, &CannotFindOwnInitialError{Party: ctx.Party.ID()}
	}
	if _, ok := spendable[marker]; !ok {
		return nil, &CannotFindOwnInitialError{Party: ctx.Party.ID()}
	}

	return &Tx{
		Kind:      TxCommit,
		HeadID:    st.HeadID,
		Party:     ctx.Party.ID(),
		Committed: committed,
	}, nil
}

// Abort builds the abort transaction reimbursing the commits observed so far.
func (ctx *Context) Abort(st *State) (*Tx, error) {
	if st.Phase != PhaseInitial {
		return nil, &InvalidStateError{Phase: st.Phase, Op: "abort"}
	}

	return &Tx{
		Kind:       TxAbort,
		HeadID:     st.HeadID,
		FanoutUTxO: st.committedUTxO(),
	}, nil
}

// Collect builds the collect-com transaction opening the head over the union
// of every party's commit.
func (ctx *Context) Collect(st *State) (*Tx, error) {
	if st.Phase != PhaseInitial {
		return nil, &InvalidStateError{Phase: st.Phase, Op: "collect"}
	}
	if len(st.Committed) < ctx.Parties.Len() {
		return nil, &InvalidStateError{Phase: st.Phase, Op: "collect before all commits"}
	}

	return &Tx{
		Kind:          TxCollect,
		HeadID:        st.HeadID,
		CollectedUTxO: st.committedUTxO(),
	}, nil
}

// Close builds the close transaction for a confirmed snapshot. The validity
// window [lowerSlot, upperTime] must not exceed the contestation period; the
// contestation deadline starts at the window's upper bound.
func (ctx *Context) Close(st *State, sn *head.SignedSnapshot, lowerSlot uint64, upperTime time.Time) (*Tx, error) {
	if st.Phase != PhaseOpen {
		return nil, &InvalidStateError{Phase: st.Phase, Op: "close"}
	}

	lowerTime := ctx.Converter.SlotToTime(lowerSlot)
	if upperTime.Sub(lowerTime) > st.ContestationPeriod {
		return nil, &InvalidCloseWindowError{
			Lower:  lowerTime,
			Upper:  upperTime,
			Period: st.ContestationPeriod,
		}
	}

	return &Tx{
		Kind:                 TxClose,
		HeadID:               st.HeadID,
		SnapshotNumber:       sn.Snapshot.Number,
		UTxOHash:             common.EncodeToString(sn.Snapshot.UTxO.Hash()),
		MultiSig:             sn.MultiSig().Encode(),
		LowerBoundSlot:       lowerSlot,
		UpperBoundTime:       upperTime,
		ContestationDeadline: upperTime.Add(st.ContestationPeriod),
	}, nil
}

// Contest builds a contest transaction putting forward a better snapshot
// during the contestation period.
func (ctx *Context) Contest(st *State, sn *head.SignedSnapshot) (*Tx, error) {
	if st.Phase != PhaseClosed {
		return nil, &InvalidStateError{Phase: st.Phase, Op: "contest"}
	}
	if st.hasContested(ctx.Party.ID()) {
		return nil, &InvalidStateError{Phase: st.Phase, Op: "contest twice"}
	}

	contesters := append([]uint32{}, st.Contesters...)
	contesters = append(contesters, ctx.Party.ID())

	return &Tx{
		Kind:                 TxContest,
		HeadID:               st.HeadID,
		SnapshotNumber:       sn.Snapshot.Number,
		UTxOHash:             common.EncodeToString(sn.Snapshot.UTxO.Hash()),
		MultiSig:             sn.MultiSig().Encode(),
		Contester:            ctx.Party.ID(),
		Contesters:           contesters,
		ContestationDeadline: st.ContestationDeadline,
	}, nil
}

// Fanout builds the terminal fanout transaction materialising the final UTxO
// on the base chain.
func (ctx *Context) Fanout(st *State, utxo ledger.UTxO) (*Tx, error) {
	if st.Phase != PhaseClosed {
		return nil, &InvalidStateError{Phase: st.Phase, Op: "fanout"}
	}

	return &Tx{
		Kind:       TxFanout,
		HeadID:     st.HeadID,
		FanoutUTxO: utxo.Clone(),
	}, nil
}

// Build turns a head-level posting intent into a base-ledger transaction
// against the current chain state. Wallet coin selection is outside this
// layer; the spendable set is synthesised from the tracked initial marker.
func (ctx *Context) Build(st *State, intent head.PostChainTx) (*Tx, error) {
	switch post := intent.(type) {
	case *head.PostInitTx:
		return ctx.Initialize(post.ContestationPeriod, ctx.SeedInput), nil

	case *head.PostCommitTx:
		spendable := ledger.UTxO{}
		if marker, ok := st.InitialMarkers[ctx.Party.ID()]; ok {
			spendable[marker] = 0
		}
		toCommit := []CommitOutput{}
		for _, ref := range post.UTxO.Refs() {
			toCommit = append(toCommit, CommitOutput{Ref: ref, Value: post.UTxO[ref]})
		}
		return ctx.Commit(st, spendable, toCommit)

	case *head.PostAbortTx:
		return ctx.Abort(st)

	case *head.PostCollectTx:
		return ctx.Collect(st)

	case *head.PostCloseTx:
		lowerSlot := st.RecordedAt.Slot
		upperTime := ctx.Converter.SlotToTime(lowerSlot).Add(st.ContestationPeriod / 2)
		return ctx.Close(st, post.ConfirmedSnapshot, lowerSlot, upperTime)

	case *head.PostContestTx:
		return ctx.Contest(st, post.ConfirmedSnapshot)

	case *head.PostFanoutTx:
		return ctx.Fanout(st, post.UTxO)

	default:
		return nil, &InvalidStateError{Phase: st.Phase, Op: "build unknown intent"}
	}
}
