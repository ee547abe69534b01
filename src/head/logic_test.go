package head

import (
	"crypto/ecdsa"
	"fmt"
	"testing"
	"time"

	"github.com/lagoon-network/lagoon/src/crypto/keys"
	"github.com/lagoon-network/lagoon/src/ledger"
	"github.com/lagoon-network/lagoon/src/peers"
)

/*
Test fixture: a 3-party head. Keys are generated once per fixture and parties
are addressed by their canonical index, so tests read in terms of "party 0,
1, 2" regardless of the random key ordering.
*/

type fixture struct {
	keys    map[uint32]*ecdsa.PrivateKey
	parties *peers.PartySet
	ldgr    ledger.Ledger
}

func newFixture(t *testing.T, n int) *fixture {
	byHex := map[string]*ecdsa.PrivateKey{}
	list := []*peers.Party{}

	for i := 0; i < n; i++ {
		key, err := keys.GenerateECDSAKey()
		if err != nil {
			t.Fatalf("err: %v", err)
		}
		hex := keys.PublicKeyHex(&key.PublicKey)
		byHex[hex] = key
		list = append(list, peers.NewParty(hex, fmt.Sprintf("addr%d", i), fmt.Sprintf("party%d", i)))
	}

	partySet := peers.NewPartySet(list)

	f := &fixture{
		keys:    map[uint32]*ecdsa.PrivateKey{},
		parties: partySet,
		ldgr:    ledger.NewSimpleLedger(),
	}
	for _, p := range partySet.Parties {
		f.keys[p.ID()] = byHex[p.PubKeyHex]
	}

	return f
}

// env builds the environment of the party at canonical index i.
func (f *fixture) env(i int) *Environment {
	party := f.parties.Parties[i]
	return NewEnvironment(f.keys[party.ID()], party, f.parties, time.Minute)
}

// id is the compact ID of the party at canonical index i.
func (f *fixture) id(i int) uint32 {
	return f.parties.Parties[i].ID()
}

// openState builds an Open head over the given UTxO with snapshot 0.
func (f *fixture) openState(utxo ledger.UTxO) *State {
	return &State{
		Status:            Open,
		Parameters:        NewParameters(f.parties, time.Minute),
		ConfirmedSnapshot: NewSignedSnapshot(InitialSnapshot(utxo), nil),
		LocalUTxO:         utxo.Clone(),
		TxAcks:            map[string]map[uint32]bool{},
	}
}

// signSnapshot produces party i's signature over a snapshot body.
func (f *fixture) signSnapshot(t *testing.T, i int, body *Snapshot) string {
	sig, err := keys.SignHex(f.keys[f.id(i)], body.SigningPayload())
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	return sig
}

func mustNewState(t *testing.T, o Outcome) *State {
	t.Helper()
	if o.Err != nil {
		t.Fatalf("unexpected error outcome: %v", o.Err)
	}
	if o.Wait {
		t.Fatalf("unexpected wait outcome: %s", o.WaitReason)
	}
	return o.State
}

func notifications(o Outcome) []Notification {
	res := []Notification{}
	for _, eff := range o.Effects {
		if n, ok := eff.(*NotifyClientEffect); ok {
			res = append(res, n.Notification)
		}
	}
	return res
}

func sentMessages(o Outcome) []Message {
	res := []Message{}
	for _, eff := range o.Effects {
		if m, ok := eff.(*SendMessageEffect); ok {
			res = append(res, m.Message)
		}
	}
	return res
}

/*******************************************************************************
Transaction confirmation
*******************************************************************************/

// Scenario S1: with three parties and ourselves at index 1, a ReqTx followed
// by acks from everyone confirms the transaction exactly once.
func TestConfirmTxAfterAllAcks(t *testing.T) {
	f := newFixture(t, 3)
	env := f.env(1)

	utxo := ledger.UTxO{"1": 10}
	s := f.openState(utxo)

	tx := &ledger.Tx{
		ID:      "t",
		Inputs:  []ledger.OutRef{"1"},
		Outputs: map[ledger.OutRef]ledger.Value{"2": 10},
	}

	o := Update(env, f.ldgr, s, &NetworkEvent{Message: &ReqTx{From: f.id(0), Tx: tx}})
	s = mustNewState(t, o)

	msgs := sentMessages(o)
	if len(msgs) != 1 {
		t.Fatalf("expected 1 sent message, got %d", len(msgs))
	}
	ack, ok := msgs[0].(*AckTx)
	if !ok || ack.From != env.ID() || ack.TxID != "t" {
		t.Fatalf("expected own AckTx for t, got %#v", msgs[0])
	}

	// acks arrive from parties 2, 0, then ourselves
	for i, from := range []int{2, 0} {
		o = Update(env, f.ldgr, s, &NetworkEvent{Message: &AckTx{From: f.id(from), TxID: "t"}})
		s = mustNewState(t, o)
		if len(notifications(o)) != 0 {
			t.Fatalf("no notification expected after ack %d", i+1)
		}
	}

	o = Update(env, f.ldgr, s, &NetworkEvent{Message: &AckTx{From: f.id(1), TxID: "t"}})
	s = mustNewState(t, o)

	notifs := notifications(o)
	if len(notifs) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(notifs))
	}
	received, ok := notifs[0].(*TxReceived)
	if !ok || received.Tx.ID != "t" {
		t.Fatalf("expected TxReceived(t), got %#v", notifs[0])
	}

	if len(s.ConfirmedTxIDs) != 1 || s.ConfirmedTxIDs[0] != "t" {
		t.Fatalf("confirmed txs should be [t], got %v", s.ConfirmedTxIDs)
	}

	// a late duplicate ack must not confirm twice
	o = Update(env, f.ldgr, s, &NetworkEvent{Message: &AckTx{From: f.id(0), TxID: "t"}})
	s = mustNewState(t, o)
	if len(notifications(o)) != 0 {
		t.Fatalf("duplicate ack should be silent")
	}
}

// Scenario S2: a transaction spending an absent input waits without touching
// the state.
func TestWaitOnMissingInput(t *testing.T) {
	f := newFixture(t, 3)
	env := f.env(1)

	s := f.openState(ledger.UTxO{"1": 1})

	tx := &ledger.Tx{
		ID:      "t",
		Inputs:  []ledger.OutRef{"2"},
		Outputs: map[ledger.OutRef]ledger.Value{"3": 1},
	}

	o := Update(env, f.ldgr, s, &NetworkEvent{Message: &ReqTx{From: f.id(0), Tx: tx}})
	if !o.Wait {
		t.Fatalf("expected Wait, got %+v", o)
	}
	if len(s.SeenTxs) != 0 {
		t.Fatalf("state should be unchanged")
	}
}

/*******************************************************************************
Snapshot protocol
*******************************************************************************/

// Scenario S3: a snapshot request from a non-leader is a protocol error.
func TestRejectNonLeaderSnapshotRequest(t *testing.T) {
	f := newFixture(t, 3)
	env := f.env(1)

	s := f.openState(ledger.UTxO{"1": 1})

	// leader of snapshot 1 is party 0, not party 1
	o := Update(env, f.ldgr, s, &NetworkEvent{Message: &ReqSn{From: f.id(1), Number: 1}})
	if o.Err == nil {
		t.Fatalf("expected error outcome")
	}
	if _, ok := o.Err.(*InvalidEventError); !ok {
		t.Fatalf("expected InvalidEventError, got %T", o.Err)
	}
}

// Scenario S4: a snapshot request skipping a number is a protocol error.
func TestRejectFarFutureSnapshotRequest(t *testing.T) {
	f := newFixture(t, 3)
	env := f.env(1)

	s := f.openState(ledger.UTxO{"1": 1})

	// party 1 leads snapshot 2, but snapshot 1 has not been confirmed
	o := Update(env, f.ldgr, s, &NetworkEvent{Message: &ReqSn{From: f.id(1), Number: 2}})
	if o.Err == nil {
		t.Fatalf("expected error outcome")
	}
	if _, ok := o.Err.(*OutOfOrderSnapshotError); !ok {
		t.Fatalf("expected OutOfOrderSnapshotError, got %T", o.Err)
	}
}

// confirmTx drives a tx through request + all acks from the perspective of
// env, returning the new state.
func confirmTx(t *testing.T, f *fixture, env *Environment, s *State, tx *ledger.Tx) *State {
	t.Helper()

	o := Update(env, f.ldgr, s, &NetworkEvent{Message: &ReqTx{From: f.id(0), Tx: tx}})
	s = mustNewState(t, o)

	for i := range f.parties.Parties {
		o = Update(env, f.ldgr, s, &NetworkEvent{Message: &AckTx{From: f.id(i), TxID: tx.ID}})
		s = mustNewState(t, o)
	}
	return s
}

func TestSnapshotRequestSignAndPromote(t *testing.T) {
	f := newFixture(t, 3)
	env := f.env(1)

	tx := &ledger.Tx{
		ID:      "t",
		Inputs:  []ledger.OutRef{"1"},
		Outputs: map[ledger.OutRef]ledger.Value{"2": 5},
	}

	s := confirmTx(t, f, env, f.openState(ledger.UTxO{"1": 5}), tx)

	// leader of snapshot 1 requests it
	o := Update(env, f.ldgr, s, &NetworkEvent{Message: &ReqSn{From: f.id(0), Number: 1, TxIDs: []string{"t"}}})
	s = mustNewState(t, o)

	if s.Pending == nil || s.Pending.Number != 1 {
		t.Fatalf("expected snapshot 1 in flight")
	}

	msgs := sentMessages(o)
	if len(msgs) != 1 {
		t.Fatalf("expected own AckSn, got %d messages", len(msgs))
	}
	ownAck, ok := msgs[0].(*AckSn)
	if !ok || ownAck.Number != 1 {
		t.Fatalf("expected AckSn(1), got %#v", msgs[0])
	}

	// collect signatures from everyone
	body := s.Pending.Body
	for i := 0; i < 3; i++ {
		var sig string
		if i == 1 {
			sig = ownAck.Signature
		} else {
			sig = f.signSnapshot(t, i, body)
		}
		o = Update(env, f.ldgr, s, &NetworkEvent{Message: &AckSn{From: f.id(i), Number: 1, Signature: sig}})
		s = mustNewState(t, o)
	}

	if s.Pending != nil {
		t.Fatalf("pending snapshot should be cleared")
	}
	if s.ConfirmedSnapshot.Snapshot.Number != 1 {
		t.Fatalf("confirmed snapshot should be 1, got %d", s.ConfirmedSnapshot.Snapshot.Number)
	}
	if !s.ConfirmedSnapshot.Verify(f.parties) {
		t.Fatalf("confirmed snapshot signatures should verify")
	}
	if len(s.ConfirmedTxIDs) != 0 || len(s.SeenTxs) != 0 {
		t.Fatalf("snapshotted txs should be cleared from the local view")
	}
	if string(s.LocalUTxO.Hash()) != string(s.ConfirmedSnapshot.Snapshot.UTxO.Hash()) {
		t.Fatalf("local UTxO should equal the snapshot UTxO when nothing is unconfirmed")
	}
}

// Scenario S5: an AckSn whose signature covers a different body is silently
// dropped and never promotes.
func TestBadSignatureAckIgnored(t *testing.T) {
	f := newFixture(t, 3)
	env := f.env(1)

	tx := &ledger.Tx{
		ID:      "t",
		Inputs:  []ledger.OutRef{"1"},
		Outputs: map[ledger.OutRef]ledger.Value{"2": 5},
	}

	s := confirmTx(t, f, env, f.openState(ledger.UTxO{"1": 5}), tx)

	o := Update(env, f.ldgr, s, &NetworkEvent{Message: &ReqSn{From: f.id(0), Number: 1, TxIDs: []string{"t"}}})
	s = mustNewState(t, o)

	// party 2 signs a different body
	other := &Snapshot{Number: 1, UTxO: ledger.UTxO{"99": 99}}
	badSig := f.signSnapshot(t, 2, other)

	o = Update(env, f.ldgr, s, &NetworkEvent{Message: &AckSn{From: f.id(2), Number: 1, Signature: badSig}})
	if o.Err != nil {
		t.Fatalf("bad signature should be dropped silently, got error %v", o.Err)
	}
	s = mustNewState(t, o)

	if len(s.Pending.Acks) != 0 {
		t.Fatalf("bad signature should not be recorded")
	}
	if s.ConfirmedSnapshot.Snapshot.Number != 0 {
		t.Fatalf("confirmed snapshot should be unchanged")
	}
}

// The confirmed snapshot number never decreases while the head is open.
func TestSnapshotMonotonicity(t *testing.T) {
	f := newFixture(t, 3)
	env := f.env(0) // party 0 leads snapshot 1

	utxo := ledger.UTxO{"1": 5}
	tx := &ledger.Tx{
		ID:      "t",
		Inputs:  []ledger.OutRef{"1"},
		Outputs: map[ledger.OutRef]ledger.Value{"2": 5},
	}

	s := confirmTx(t, f, env, f.openState(utxo), tx)

	// confirming the tx makes us emit ReqSn(1) as leader; simulate its
	// loopback
	o := Update(env, f.ldgr, s, &NetworkEvent{Message: &ReqSn{From: f.id(0), Number: 1, TxIDs: []string{"t"}}})
	s = mustNewState(t, o)

	last := s.ConfirmedSnapshot.Snapshot.Number
	body := s.Pending.Body
	for i := 0; i < 3; i++ {
		sig := f.signSnapshot(t, i, body)
		o = Update(env, f.ldgr, s, &NetworkEvent{Message: &AckSn{From: f.id(i), Number: 1, Signature: sig}})
		s = mustNewState(t, o)
		if s.ConfirmedSnapshot.Snapshot.Number < last {
			t.Fatalf("confirmed snapshot number decreased")
		}
		last = s.ConfirmedSnapshot.Snapshot.Number
	}

	if last != 1 {
		t.Fatalf("snapshot 1 should be confirmed, got %d", last)
	}
}

// The leader emits a ReqSn as soon as a tx confirms.
func TestLeaderRequestsSnapshotAfterConfirmation(t *testing.T) {
	f := newFixture(t, 3)
	env := f.env(0)

	tx := &ledger.Tx{
		ID:      "t",
		Inputs:  []ledger.OutRef{"1"},
		Outputs: map[ledger.OutRef]ledger.Value{"2": 5},
	}

	s := f.openState(ledger.UTxO{"1": 5})
	o := Update(env, f.ldgr, s, &NetworkEvent{Message: &ReqTx{From: f.id(0), Tx: tx}})
	s = mustNewState(t, o)

	for i := 0; i < 2; i++ {
		o = Update(env, f.ldgr, s, &NetworkEvent{Message: &AckTx{From: f.id(i), TxID: "t"}})
		s = mustNewState(t, o)
	}
	o = Update(env, f.ldgr, s, &NetworkEvent{Message: &AckTx{From: f.id(2), TxID: "t"}})
	mustNewState(t, o)

	var req *ReqSn
	for _, m := range sentMessages(o) {
		if r, ok := m.(*ReqSn); ok {
			req = r
		}
	}
	if req == nil {
		t.Fatalf("leader should request the next snapshot")
	}
	if req.Number != 1 || len(req.TxIDs) != 1 || req.TxIDs[0] != "t" {
		t.Fatalf("unexpected ReqSn: %#v", req)
	}
}

/*******************************************************************************
Lifecycle
*******************************************************************************/

func TestLifecycleInitToOpen(t *testing.T) {
	f := newFixture(t, 3)
	env := f.env(0)

	s := NewState()

	// init command posts the init tx
	o := Update(env, f.ldgr, s, &ClientEvent{Command: &InitCommand{}})
	s = mustNewState(t, o)
	if len(o.Effects) != 1 {
		t.Fatalf("expected a PostTx effect")
	}
	if _, ok := o.Effects[0].(*PostTxEffect); !ok {
		t.Fatalf("expected a PostTx effect, got %T", o.Effects[0])
	}

	// observing the init tx moves to Initial
	o = Update(env, f.ldgr, s, &ChainEvent{Observation: &OnInitTx{
		HeadID:             "head1",
		Parties:            f.parties.PubKeys(),
		ContestationPeriod: time.Minute,
	}})
	s = mustNewState(t, o)
	if s.Status != Initial {
		t.Fatalf("expected Initial, got %s", s.Status)
	}
	if _, ok := notifications(o)[0].(*ReadyToCommit); !ok {
		t.Fatalf("expected ReadyToCommit")
	}

	// each party's commit is observed; the last one triggers collect
	for i := 0; i < 3; i++ {
		o = Update(env, f.ldgr, s, &ChainEvent{Observation: &OnCommitTx{
			Party: f.id(i),
			UTxO:  ledger.UTxO{ledger.OutRef(fmt.Sprintf("c%d", i)): ledger.Value(i + 1)},
		}})
		s = mustNewState(t, o)
	}
	if len(s.PendingCommits) != 0 {
		t.Fatalf("all commits should be recorded")
	}
	foundCollect := false
	for _, eff := range o.Effects {
		if p, ok := eff.(*PostTxEffect); ok {
			if _, ok := p.Tx.(*PostCollectTx); ok {
				foundCollect = true
			}
		}
	}
	if !foundCollect {
		t.Fatalf("expected a PostCollectTx effect after the last commit")
	}

	// observing collect opens the head over the union of commits
	o = Update(env, f.ldgr, s, &ChainEvent{Observation: &OnCollectTx{}})
	s = mustNewState(t, o)
	if s.Status != Open {
		t.Fatalf("expected Open, got %s", s.Status)
	}
	if s.ConfirmedSnapshot.Snapshot.Number != 0 {
		t.Fatalf("initial snapshot should be number 0")
	}
	if len(s.LocalUTxO) != 3 {
		t.Fatalf("local UTxO should hold the three commits, got %v", s.LocalUTxO)
	}
}

func TestLifecycleCloseContestFanout(t *testing.T) {
	f := newFixture(t, 3)
	env := f.env(0)

	s := f.openState(ledger.UTxO{"1": 5})
	// pretend snapshot 2 is confirmed locally
	s.ConfirmedSnapshot = NewSignedSnapshot(&Snapshot{Number: 2, UTxO: ledger.UTxO{"2": 5}}, nil)

	deadline := time.Now().Add(time.Minute)

	// a close lands with an older snapshot: we get HeadIsClosed and a
	// scheduled contest
	o := Update(env, f.ldgr, s, &ChainEvent{Observation: &OnCloseTx{
		SnapshotNumber:       1,
		ContestationDeadline: deadline,
	}})
	s = mustNewState(t, o)
	if s.Status != Closed {
		t.Fatalf("expected Closed, got %s", s.Status)
	}

	var delayed *DelayEffect
	for _, eff := range o.Effects {
		if d, ok := eff.(*DelayEffect); ok {
			delayed = d
		}
	}
	if delayed == nil {
		t.Fatalf("expected a scheduled contest")
	}

	// the scheduled contest fires and posts the contest tx
	o = Update(env, f.ldgr, s, delayed.Event)
	s = mustNewState(t, o)
	if !s.ContestPosted {
		t.Fatalf("contest should be marked as posted")
	}
	foundContest := false
	for _, eff := range o.Effects {
		if p, ok := eff.(*PostTxEffect); ok {
			if c, ok := p.Tx.(*PostContestTx); ok {
				foundContest = true
				if c.ConfirmedSnapshot.Snapshot.Number != 2 {
					t.Fatalf("contest should carry snapshot 2")
				}
			}
		}
	}
	if !foundContest {
		t.Fatalf("expected a PostContestTx effect")
	}

	// our contest is observed
	o = Update(env, f.ldgr, s, &ChainEvent{Observation: &OnContestTx{
		SnapshotNumber:       2,
		Contester:            f.id(0),
		Contesters:           []uint32{f.id(0)},
		ContestationDeadline: deadline.Add(time.Minute),
	}})
	s = mustNewState(t, o)
	if s.ClosedSnapshotNumber != 2 {
		t.Fatalf("closed snapshot number should follow the contest")
	}

	// past the deadline, a tick posts the fanout exactly once
	o = Update(env, f.ldgr, s, &TickEvent{Time: deadline.Add(2 * time.Minute)})
	s = mustNewState(t, o)
	if !s.FanoutPosted {
		t.Fatalf("fanout should be posted")
	}
	o = Update(env, f.ldgr, s, &TickEvent{Time: deadline.Add(3 * time.Minute)})
	s = mustNewState(t, o)
	if len(o.Effects) != 0 {
		t.Fatalf("fanout should only be posted once")
	}

	// observing the fanout finalises the head
	o = Update(env, f.ldgr, s, &ChainEvent{Observation: &OnFanoutTx{UTxO: ledger.UTxO{"2": 5}}})
	s = mustNewState(t, o)
	if s.Status != Final {
		t.Fatalf("expected Final, got %s", s.Status)
	}
	if _, ok := notifications(o)[0].(*HeadIsFinalized); !ok {
		t.Fatalf("expected HeadIsFinalized")
	}
}

func TestCommandFailedInWrongState(t *testing.T) {
	f := newFixture(t, 3)
	env := f.env(0)

	s := NewState()

	cases := []Command{
		&NewTxCommand{Tx: &ledger.Tx{ID: "t"}},
		&CloseCommand{},
		&AbortCommand{},
		&CommitCommand{UTxO: ledger.UTxO{"1": 1}},
		&GetUTxOCommand{},
	}

	for _, cmd := range cases {
		o := Update(env, f.ldgr, s, &ClientEvent{Command: cmd})
		s = mustNewState(t, o)
		notifs := notifications(o)
		if len(notifs) != 1 {
			t.Fatalf("command %s should produce one notification", cmd.Name())
		}
		if _, ok := notifs[0].(*CommandFailed); !ok {
			t.Fatalf("command %s should fail in Idle, got %#v", cmd.Name(), notifs[0])
		}
	}
}

func TestRollbackEventNotifies(t *testing.T) {
	f := newFixture(t, 3)
	env := f.env(0)

	s := f.openState(ledger.UTxO{"1": 1})

	o := Update(env, f.ldgr, s, &RollbackEvent{Point: ChainPoint{Slot: 7, BlockHash: "h"}})
	s = mustNewState(t, o)

	notifs := notifications(o)
	if len(notifs) != 1 {
		t.Fatalf("expected one notification")
	}
	rb, ok := notifs[0].(*RolledBack)
	if !ok || rb.Point.Slot != 7 {
		t.Fatalf("expected RolledBack at slot 7, got %#v", notifs[0])
	}
}
