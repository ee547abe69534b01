package head

import (
	"fmt"
	"time"

	"github.com/lagoon-network/lagoon/src/ledger"
)

// contestGraceDelay is how long a scheduled contest waits before posting,
// leaving room for the close observation to settle in the local chain state.
const contestGraceDelay = 100 * time.Millisecond

// Update applies one event to the head state and returns the outcome. It is
// pure: it performs no I/O, never mutates its arguments, and everything
// observable is returned in the outcome's effect list.
func Update(env *Environment, ldgr ledger.Ledger, s *State, e Event) Outcome {
	switch ev := e.(type) {
	case *ClientEvent:
		return onClientEvent(env, s, ev)
	case *NetworkEvent:
		return onNetworkEvent(env, ldgr, s, ev)
	case *ChainEvent:
		return onChainEvent(env, s, ev)
	case *TickEvent:
		return onTick(s, ev)
	case *RollbackEvent:
		return unchanged(s, notify(&RolledBack{Point: ev.Point}))
	default:
		return ErrorOutcome(&InvalidEventError{
			Status: s.Status,
			Reason: fmt.Sprintf("unknown event %T", e),
		})
	}
}

/*******************************************************************************
Client commands
*******************************************************************************/

func onClientEvent(env *Environment, s *State, ev *ClientEvent) Outcome {
	switch cmd := ev.Command.(type) {
	case *InitCommand:
		if s.Status != Idle {
			return commandFailed(s, cmd, "head already exists")
		}
		return unchanged(s, postTx(&PostInitTx{ContestationPeriod: env.ContestationPeriod}))

	case *CommitCommand:
		if s.Status != Initial {
			return commandFailed(s, cmd, "head is not collecting commits")
		}
		if !s.PendingCommits[env.ID()] {
			return commandFailed(s, cmd, "commit already made")
		}
		return unchanged(s, postTx(&PostCommitTx{UTxO: cmd.UTxO.Clone()}))

	case *NewTxCommand:
		if s.Status != Open {
			return commandFailed(s, cmd, "head is not open")
		}
		return unchanged(s, sendMessage(&ReqTx{From: env.ID(), Tx: cmd.Tx}))

	case *CloseCommand:
		if s.Status != Open {
			return commandFailed(s, cmd, "head is not open")
		}
		return unchanged(s, postTx(&PostCloseTx{ConfirmedSnapshot: s.ConfirmedSnapshot.Clone()}))

	case *ContestCommand:
		if s.Status != Closed {
			return commandFailed(s, cmd, "head is not closed")
		}
		if s.ContestPosted || s.ConfirmedSnapshot.Snapshot.Number <= s.ClosedSnapshotNumber {
			// nothing better to put forward
			return unchanged(s)
		}
		res := s.Clone()
		res.ContestPosted = true
		return NewStateOutcome(res, postTx(&PostContestTx{ConfirmedSnapshot: s.ConfirmedSnapshot.Clone()}))

	case *AbortCommand:
		if s.Status != Initial {
			return commandFailed(s, cmd, "head is not collecting commits")
		}
		return unchanged(s, postTx(&PostAbortTx{}))

	case *GetUTxOCommand:
		switch s.Status {
		case Open:
			return unchanged(s, notify(&CurrentUTxO{UTxO: s.LocalUTxO.Clone()}))
		case Final:
			return unchanged(s, notify(&CurrentUTxO{UTxO: s.FinalUTxO.Clone()}))
		default:
			return commandFailed(s, cmd, "no UTxO in this state")
		}

	default:
		return ErrorOutcome(&InvalidEventError{
			Status: s.Status,
			Reason: fmt.Sprintf("unknown command %T", ev.Command),
		})
	}
}

func commandFailed(s *State, cmd Command, reason string) Outcome {
	return unchanged(s, notify(&CommandFailed{Command: cmd.Name(), Reason: reason}))
}

/*******************************************************************************
Network messages
*******************************************************************************/

func onNetworkEvent(env *Environment, ldgr ledger.Ledger, s *State, ev *NetworkEvent) Outcome {
	switch msg := ev.Message.(type) {
	case *Ping:
		moniker := msg.Moniker
		if party, ok := env.Parties.ByID[msg.From]; ok {
			moniker = party.Moniker
		}
		return unchanged(s, notify(&PeerConnected{Moniker: moniker}))

	case *ReqTx:
		return onReqTx(env, ldgr, s, msg)

	case *AckTx:
		return onAckTx(env, s, msg)

	case *ReqSn:
		return onReqSn(env, ldgr, s, msg)

	case *AckSn:
		return onAckSn(env, s, msg)

	default:
		return ErrorOutcome(&InvalidEventError{
			Status: s.Status,
			Reason: fmt.Sprintf("unknown message %T", ev.Message),
		})
	}
}

func onReqTx(env *Environment, ldgr ledger.Ledger, s *State, msg *ReqTx) Outcome {
	switch s.Status {
	case Idle, Initial:
		return WaitOutcome("head not yet open")
	case Closed, Final:
		// too late, ignore
		return unchanged(s)
	}

	if s.seenTx(msg.Tx.ID) != nil {
		// duplicate request
		return unchanged(s)
	}

	applied, err := ldgr.Apply(s.LocalUTxO, msg.Tx)
	if err != nil {
		// inputs may be produced by a tx we have not seen yet
		return WaitOutcome(fmt.Sprintf("tx %s not applicable: %v", msg.Tx.ID, err))
	}

	res := s.Clone()
	res.SeenTxs = append(res.SeenTxs, msg.Tx)
	res.LocalUTxO = applied
	res.TxAcks[msg.Tx.ID] = map[uint32]bool{}

	return NewStateOutcome(res, sendMessage(&AckTx{From: env.ID(), TxID: msg.Tx.ID}))
}

func onAckTx(env *Environment, s *State, msg *AckTx) Outcome {
	switch s.Status {
	case Idle, Initial:
		return WaitOutcome("head not yet open")
	case Closed, Final:
		return unchanged(s)
	}

	if _, ok := env.Parties.ByID[msg.From]; !ok {
		// not a party, drop
		return unchanged(s)
	}

	tx := s.seenTx(msg.TxID)
	if tx == nil {
		// ack overtook the request
		return WaitOutcome(fmt.Sprintf("ack for unseen tx %s", msg.TxID))
	}

	if s.isConfirmed(msg.TxID) {
		// late or duplicate ack after confirmation
		return unchanged(s)
	}

	if s.TxAcks[msg.TxID][msg.From] {
		// duplicate ack
		return unchanged(s)
	}

	res := s.Clone()
	res.TxAcks[msg.TxID][msg.From] = true

	if len(res.TxAcks[msg.TxID]) < env.Parties.Len() {
		return NewStateOutcome(res)
	}

	// every party acknowledged: the tx is confirmed
	res.ConfirmedTxIDs = append(res.ConfirmedTxIDs, msg.TxID)
	delete(res.TxAcks, msg.TxID)

	effects := []Effect{notify(&TxReceived{Tx: tx})}
	effects = append(effects, maybeRequestSnapshot(env, res)...)

	return NewStateOutcome(res, effects...)
}

func onReqSn(env *Environment, ldgr ledger.Ledger, s *State, msg *ReqSn) Outcome {
	switch s.Status {
	case Idle, Initial:
		return WaitOutcome("head not yet open")
	case Closed, Final:
		return unchanged(s)
	}

	leader := s.Parameters.Parties.Leader(msg.Number)
	if msg.From != leader.ID() {
		return ErrorOutcome(&InvalidEventError{
			Status: s.Status,
			Reason: fmt.Sprintf("snapshot %d requested by %d, leader is %d", msg.Number, msg.From, leader.ID()),
		})
	}

	expected := s.ConfirmedSnapshot.Snapshot.Number + 1
	if msg.Number != expected {
		return ErrorOutcome(&OutOfOrderSnapshotError{Expected: expected, Got: msg.Number})
	}

	if s.Pending != nil {
		if s.Pending.Number == msg.Number {
			// duplicate request for the snapshot already in flight
			return unchanged(s)
		}
		return ErrorOutcome(&InvalidEventError{
			Status: s.Status,
			Reason: fmt.Sprintf("snapshot %d requested while %d is in flight", msg.Number, s.Pending.Number),
		})
	}

	for _, txID := range msg.TxIDs {
		if !s.isConfirmed(txID) {
			return WaitOutcome(fmt.Sprintf("snapshot %d references unconfirmed tx %s", msg.Number, txID))
		}
	}

	// compute the candidate body deterministically from the previous
	// confirmed UTxO
	utxo := s.ConfirmedSnapshot.Snapshot.UTxO.Clone()
	for _, txID := range msg.TxIDs {
		tx := s.seenTx(txID)
		if tx == nil {
			return WaitOutcome(fmt.Sprintf("snapshot %d references unseen tx %s", msg.Number, txID))
		}
		applied, err := ldgr.Apply(utxo, tx)
		if err != nil {
			return ErrorOutcome(&LedgerRejectionError{TxID: txID, Cause: err})
		}
		utxo = applied
	}

	body := &Snapshot{
		Number: msg.Number,
		UTxO:   utxo,
	}
	body.ConfirmedTxIDs = append(body.ConfirmedTxIDs, msg.TxIDs...)

	sig, err := env.sign(body.SigningPayload())
	if err != nil {
		return ErrorOutcome(fmt.Errorf("signing snapshot %d: %v", msg.Number, err))
	}

	res := s.Clone()
	res.Pending = &SnapshotInProgress{
		Number: msg.Number,
		Leader: msg.From,
		Body:   body,
		Acks:   map[uint32]string{},
	}

	return NewStateOutcome(res, sendMessage(&AckSn{
		From:      env.ID(),
		Number:    msg.Number,
		Signature: sig,
	}))
}

func onAckSn(env *Environment, s *State, msg *AckSn) Outcome {
	switch s.Status {
	case Idle, Initial:
		return WaitOutcome("head not yet open")
	case Closed, Final:
		return unchanged(s)
	}

	if s.Pending == nil {
		if msg.Number > s.ConfirmedSnapshot.Snapshot.Number {
			// the ack overtook the snapshot request
			return WaitOutcome(fmt.Sprintf("ack for snapshot %d before its request", msg.Number))
		}
		// stale ack for a promoted snapshot
		return unchanged(s)
	}
	if s.Pending.Number != msg.Number {
		// stale ack for another snapshot
		return unchanged(s)
	}

	party, ok := env.Parties.ByID[msg.From]
	if !ok {
		return unchanged(s)
	}

	if _, ok := s.Pending.Acks[msg.From]; ok {
		// duplicate ack
		return unchanged(s)
	}

	// the signature must cover our local candidate body; a signature over any
	// other snapshot, or under the wrong key, is silently dropped
	if !party.Verify(s.Pending.Body.SigningPayload(), msg.Signature) {
		return unchanged(s)
	}

	res := s.Clone()
	res.Pending.Acks[msg.From] = msg.Signature

	if len(res.Pending.Acks) < env.Parties.Len() {
		return NewStateOutcome(res)
	}

	// every party signed: promote
	confirmed := NewSignedSnapshot(res.Pending.Body, res.Pending.Acks)
	res.ConfirmedSnapshot = confirmed
	res.ConfirmedTxIDs = removeAll(res.ConfirmedTxIDs, confirmed.Snapshot.ConfirmedTxIDs)
	res.SeenTxs = removeTxs(res.SeenTxs, confirmed.Snapshot.ConfirmedTxIDs)
	res.Pending = nil

	effects := []Effect{notify(&SnapshotConfirmed{Snapshot: confirmed.Snapshot.Clone()})}
	effects = append(effects, maybeRequestSnapshot(env, res)...)

	return NewStateOutcome(res, effects...)
}

// maybeRequestSnapshot emits a ReqSn when this node leads the next snapshot
// and confirmed transactions are waiting to be folded in.
func maybeRequestSnapshot(env *Environment, s *State) []Effect {
	if s.Status != Open || s.Pending != nil || len(s.ConfirmedTxIDs) == 0 {
		return nil
	}

	next := s.ConfirmedSnapshot.Snapshot.Number + 1
	if s.Parameters.Parties.Leader(next).ID() != env.ID() {
		return nil
	}

	txIDs := make([]string, len(s.ConfirmedTxIDs))
	copy(txIDs, s.ConfirmedTxIDs)

	return []Effect{sendMessage(&ReqSn{
		From:   env.ID(),
		Number: next,
		TxIDs:  txIDs,
	})}
}

func removeAll(ids []string, drop []string) []string {
	dropped := make(map[string]bool, len(drop))
	for _, id := range drop {
		dropped[id] = true
	}
	res := []string{}
	for _, id := range ids {
		if !dropped[id] {
			res = append(res, id)
		}
	}
	return res
}

func removeTxs(txs []*ledger.Tx, drop []string) []*ledger.Tx {
	dropped := make(map[string]bool, len(drop))
	for _, id := range drop {
		dropped[id] = true
	}
	res := []*ledger.Tx{}
	for _, tx := range txs {
		if !dropped[tx.ID] {
			res = append(res, tx)
		}
	}
	return res
}

/*******************************************************************************
Chain observations
*******************************************************************************/

func onChainEvent(env *Environment, s *State, ev *ChainEvent) Outcome {
	switch obs := ev.Observation.(type) {
	case *OnInitTx:
		if s.Status != Idle {
			return unchanged(s)
		}
		res := s.Clone()
		res.Status = Initial
		res.Parameters = NewParameters(env.Parties, obs.ContestationPeriod)
		res.Committed = map[uint32]ledger.UTxO{}
		res.PendingCommits = map[uint32]bool{}
		for _, id := range env.Parties.IDs() {
			res.PendingCommits[id] = true
		}
		return NewStateOutcome(res, notify(&ReadyToCommit{Parties: env.Parties.PubKeys()}))

	case *OnCommitTx:
		if s.Status != Initial {
			return unchanged(s)
		}
		if _, ok := s.Committed[obs.Party]; ok {
			return unchanged(s)
		}
		res := s.Clone()
		res.Committed[obs.Party] = obs.UTxO.Clone()
		delete(res.PendingCommits, obs.Party)

		if len(res.PendingCommits) > 0 {
			return NewStateOutcome(res)
		}
		// every party committed: drive the collect-com
		return NewStateOutcome(res, postTx(&PostCollectTx{}))

	case *OnAbortTx:
		if s.Status != Initial {
			return unchanged(s)
		}
		res := s.Clone()
		res.Status = Final
		res.FinalUTxO = s.committedUTxO()
		return NewStateOutcome(res, notify(&HeadIsAborted{UTxO: res.FinalUTxO.Clone()}))

	case *OnCollectTx:
		if s.Status != Initial {
			return unchanged(s)
		}
		utxo := obs.UTxO
		if utxo == nil {
			utxo = s.committedUTxO()
		}
		res := s.Clone()
		res.Status = Open
		res.ConfirmedSnapshot = NewSignedSnapshot(InitialSnapshot(utxo), nil)
		res.LocalUTxO = utxo.Clone()
		res.SeenTxs = nil
		res.TxAcks = map[string]map[uint32]bool{}
		res.ConfirmedTxIDs = nil
		res.Pending = nil
		return NewStateOutcome(res, notify(&HeadIsOpen{UTxO: utxo.Clone()}))

	case *OnCloseTx:
		if s.Status != Open {
			return unchanged(s)
		}
		res := s.Clone()
		res.Status = Closed
		res.ClosedSnapshotNumber = obs.SnapshotNumber
		res.ContestationDeadline = obs.ContestationDeadline
		res.Contesters = map[uint32]bool{}
		res.Pending = nil

		effects := []Effect{notify(&HeadIsClosed{
			SnapshotNumber:       obs.SnapshotNumber,
			ContestationDeadline: obs.ContestationDeadline,
		})}
		if s.ConfirmedSnapshot.Snapshot.Number > obs.SnapshotNumber {
			// we hold a better snapshot; schedule a contest
			effects = append(effects, delay(contestGraceDelay, &ClientEvent{Command: &ContestCommand{}}))
		}
		return NewStateOutcome(res, effects...)

	case *OnContestTx:
		if s.Status != Closed {
			return unchanged(s)
		}
		res := s.Clone()
		for _, id := range obs.Contesters {
			res.Contesters[id] = true
		}
		res.Contesters[obs.Contester] = true
		if obs.SnapshotNumber > res.ClosedSnapshotNumber {
			res.ClosedSnapshotNumber = obs.SnapshotNumber
		}
		if obs.ContestationDeadline.After(res.ContestationDeadline) {
			res.ContestationDeadline = obs.ContestationDeadline
		}

		effects := []Effect{notify(&HeadIsContested{SnapshotNumber: obs.SnapshotNumber})}
		if !res.ContestPosted && s.ConfirmedSnapshot.Snapshot.Number > res.ClosedSnapshotNumber {
			effects = append(effects, delay(contestGraceDelay, &ClientEvent{Command: &ContestCommand{}}))
		}
		return NewStateOutcome(res, effects...)

	case *OnFanoutTx:
		if s.Status != Closed {
			return unchanged(s)
		}
		res := s.Clone()
		res.Status = Final
		res.FinalUTxO = obs.UTxO.Clone()
		return NewStateOutcome(res, notify(&HeadIsFinalized{UTxO: obs.UTxO.Clone()}))

	default:
		return ErrorOutcome(&InvalidEventError{
			Status: s.Status,
			Reason: fmt.Sprintf("unknown observation %T", ev.Observation),
		})
	}
}

/*******************************************************************************
Ticks
*******************************************************************************/

func onTick(s *State, ev *TickEvent) Outcome {
	if s.Status != Closed || s.FanoutPosted {
		return unchanged(s)
	}

	if ev.Time.Before(s.ContestationDeadline) {
		return unchanged(s)
	}

	res := s.Clone()
	res.FanoutPosted = true
	return NewStateOutcome(res, postTx(&PostFanoutTx{UTxO: s.ConfirmedSnapshot.Snapshot.UTxO.Clone()}))
}
