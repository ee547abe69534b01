package chain

import (
	"github.com/lagoon-network/lagoon/src/head"
	"github.com/lagoon-network/lagoon/src/ledger"
)

/*
Observers match base-ledger transactions against the tracked chain state.
Each returns the head-level event, the successor state, and true on a match;
a transaction for another head, or one impossible in the current phase,
yields (nil, nil, false) silently. Observers are the sole authority advancing
the chain state.
*/

// Observe dispatches a transaction to the observer for its kind.
func Observe(ctx *Context, st *State, tx *Tx, point head.ChainPoint) (head.OnChainTx, *State, bool) {
	switch tx.Kind {
	case TxInit:
		return observeInit(ctx, st, tx, point)
	case TxCommit:
		return observeCommit(st, tx, point)
	case TxAbort:
		return observeAbort(st, tx, point)
	case TxCollect:
		return observeCollect(st, tx, point)
	case TxClose:
		return observeClose(st, tx, point)
	case TxContest:
		return observeContest(st, tx, point)
	case TxFanout:
		return observeFanout(st, tx, point)
	default:
		return nil, nil, false
	}
}

// sameHead guards every observer except init: a transaction for a different
// head is silently unrelated.
func sameHead(st *State, tx *Tx) bool {
	return st.HeadID != "" && st.HeadID == tx.HeadID
}

func observeInit(ctx *Context, st *State, tx *Tx, point head.ChainPoint) (head.OnChainTx, *State, bool) {
	if st.Phase != PhaseIdle {
		return nil, nil, false
	}

	// only an init for our configured party set concerns us
	ours := ctx.Parties.PubKeys()
	if len(tx.Parties) != len(ours) {
		return nil, nil, false
	}
	for i := range ours {
		if tx.Parties[i] != ours[i] {
			return nil, nil, false
		}
	}

	res := st.Clone()
	res.Phase = PhaseInitial
	res.HeadID = tx.HeadID
	res.ContestationPeriod = tx.ContestationPeriod
	res.InitialMarkers = make(map[uint32]ledger.OutRef, len(tx.InitialMarkers))
	for id, ref := range tx.InitialMarkers {
		res.InitialMarkers[id] = ref
	}
	res.Committed = map[uint32]ledger.UTxO{}
	res.RecordedAt = point

	event := &head.OnInitTx{
		HeadID:             tx.HeadID,
		Parties:            tx.Parties,
		ContestationPeriod: tx.ContestationPeriod,
	}

	return event, res, true
}

func observeCommit(st *State, tx *Tx, point head.ChainPoint) (head.OnChainTx, *State, bool) {
	if st.Phase != PhaseInitial || !sameHead(st, tx) {
		return nil, nil, false
	}
	if _, ok := st.InitialMarkers[tx.Party]; !ok {
		// not a party of this head
		return nil, nil, false
	}
	if _, ok := st.Committed[tx.Party]; ok {
		// duplicate commit
		return nil, nil, false
	}

	res := st.Clone()
	res.Committed[tx.Party] = tx.Committed.Clone()
	delete(res.InitialMarkers, tx.Party)
	res.RecordedAt = point

	event := &head.OnCommitTx{
		Party: tx.Party,
		UTxO:  tx.Committed.Clone(),
	}

	return event, res, true
}

func observeAbort(st *State, tx *Tx, point head.ChainPoint) (head.OnChainTx, *State, bool) {
	if st.Phase != PhaseInitial || !sameHead(st, tx) {
		return nil, nil, false
	}

	res := st.Clone()
	res.Phase = PhaseFinal
	res.FinalUTxO = st.committedUTxO()
	res.RecordedAt = point

	return &head.OnAbortTx{}, res, true
}

func observeCollect(st *State, tx *Tx, point head.ChainPoint) (head.OnChainTx, *State, bool) {
	if st.Phase != PhaseInitial || !sameHead(st, tx) {
		return nil, nil, false
	}

	res := st.Clone()
	res.Phase = PhaseOpen
	res.UTxO = tx.CollectedUTxO.Clone()
	res.RecordedAt = point

	event := &head.OnCollectTx{
		UTxO: tx.CollectedUTxO.Clone(),
	}

	return event, res, true
}

func observeClose(st *State, tx *Tx, point head.ChainPoint) (head.OnChainTx, *State, bool) {
	if st.Phase != PhaseOpen || !sameHead(st, tx) {
		return nil, nil, false
	}

	res := st.Clone()
	res.Phase = PhaseClosed
	res.SnapshotNumber = tx.SnapshotNumber
	res.ContestationDeadline = tx.ContestationDeadline
	res.Contesters = nil
	res.RecordedAt = point

	event := &head.OnCloseTx{
		SnapshotNumber:       tx.SnapshotNumber,
		ContestationDeadline: tx.ContestationDeadline,
	}

	return event, res, true
}

// observeContest decodes the contester set, deadline and snapshot number
// from the contest transaction's datum.
func observeContest(st *State, tx *Tx, point head.ChainPoint) (head.OnChainTx, *State, bool) {
	if st.Phase != PhaseClosed || !sameHead(st, tx) {
		return nil, nil, false
	}
	if st.hasContested(tx.Contester) {
		// duplicate contest
		return nil, nil, false
	}

	res := st.Clone()
	res.Contesters = append([]uint32{}, tx.Contesters...)
	if tx.SnapshotNumber > res.SnapshotNumber {
		res.SnapshotNumber = tx.SnapshotNumber
	}
	if tx.ContestationDeadline.After(res.ContestationDeadline) {
		res.ContestationDeadline = tx.ContestationDeadline
	}
	res.RecordedAt = point

	event := &head.OnContestTx{
		SnapshotNumber:       tx.SnapshotNumber,
		Contester:            tx.Contester,
		Contesters:           append([]uint32{}, tx.Contesters...),
		ContestationDeadline: tx.ContestationDeadline,
	}

	return event, res, true
}

func observeFanout(st *State, tx *Tx, point head.ChainPoint) (head.OnChainTx, *State, bool) {
	if st.Phase != PhaseClosed || !sameHead(st, tx) {
		return nil, nil, false
	}

	res := st.Clone()
	res.Phase = PhaseFinal
	res.FinalUTxO = tx.FanoutUTxO.Clone()
	res.RecordedAt = point

	event := &head.OnFanoutTx{
		UTxO: tx.FanoutUTxO.Clone(),
	}

	return event, res, true
}
