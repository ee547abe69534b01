package head

import (
	"bytes"

	"github.com/lagoon-network/lagoon/src/common"
	"github.com/lagoon-network/lagoon/src/crypto"
	"github.com/lagoon-network/lagoon/src/crypto/keys"
	"github.com/lagoon-network/lagoon/src/ledger"
	"github.com/lagoon-network/lagoon/src/peers"
	"github.com/ugorji/go/codec"
)

// snapshotDomain separates snapshot signatures from any other payload signed
// with the same keys.
const snapshotDomain = "lagoon-snapshot"

// Snapshot is a numbered, agreed-upon UTxO state of an open head.
// ConfirmedTxIDs lists, in application order, the transactions folded into
// this snapshot since the previous one. Snapshot number 0 is formed at
// collect-com and has no transactions.
type Snapshot struct {
	Number         uint64
	UTxO           ledger.UTxO
	ConfirmedTxIDs []string
}

// InitialSnapshot returns snapshot number 0 over the collected UTxO set.
func InitialSnapshot(utxo ledger.UTxO) *Snapshot {
	return &Snapshot{
		Number: 0,
		UTxO:   utxo.Clone(),
	}
}

// SigningPayload is the byte string parties sign to acknowledge a snapshot.
// It binds the domain tag, the snapshot number and the UTxO hash, so a
// signature over one snapshot can never be replayed for another, nor for any
// non-snapshot payload.
func (s *Snapshot) SigningPayload() []byte {
	body := struct {
		Domain   string
		Number   uint64
		UTxOHash string
	}{
		Domain:   snapshotDomain,
		Number:   s.Number,
		UTxOHash: common.EncodeToString(s.UTxO.Hash()),
	}

	b := new(bytes.Buffer)
	jh := new(codec.JsonHandle)
	jh.Canonical = true
	enc := codec.NewEncoder(b, jh)
	if err := enc.Encode(body); err != nil {
		panic(err)
	}

	return crypto.SHA256(b.Bytes())
}

// Clone returns an independent copy of the snapshot.
func (s *Snapshot) Clone() *Snapshot {
	res := &Snapshot{
		Number: s.Number,
		UTxO:   s.UTxO.Clone(),
	}
	res.ConfirmedTxIDs = append(res.ConfirmedTxIDs, s.ConfirmedTxIDs...)
	return res
}

// SignedSnapshot is a snapshot together with the signatures collected from
// every party. Snapshot 0 carries no signatures; agreement on it is implied by
// the parties' commits.
type SignedSnapshot struct {
	Snapshot   *Snapshot
	Signatures map[uint32]string
}

// NewSignedSnapshot ...
func NewSignedSnapshot(snapshot *Snapshot, signatures map[uint32]string) *SignedSnapshot {
	if signatures == nil {
		signatures = map[uint32]string{}
	}
	return &SignedSnapshot{
		Snapshot:   snapshot,
		Signatures: signatures,
	}
}

// Verify checks that the signatures cover every party of the set and that
// each one verifies over the snapshot body under the signer's key. Snapshot 0
// is valid without signatures.
func (ss *SignedSnapshot) Verify(parties *peers.PartySet) bool {
	if ss.Snapshot.Number == 0 {
		return true
	}

	payload := ss.Snapshot.SigningPayload()

	for _, party := range parties.Parties {
		sig, ok := ss.Signatures[party.ID()]
		if !ok {
			return false
		}
		if !party.Verify(payload, sig) {
			return false
		}
	}

	return true
}

// MultiSig aggregates the individual signatures for on-chain use.
func (ss *SignedSnapshot) MultiSig() keys.MultiSig {
	return keys.Aggregate(ss.Signatures)
}

// Clone returns an independent copy of the signed snapshot.
func (ss *SignedSnapshot) Clone() *SignedSnapshot {
	sigs := make(map[uint32]string, len(ss.Signatures))
	for id, sig := range ss.Signatures {
		sigs[id] = sig
	}
	return &SignedSnapshot{
		Snapshot:   ss.Snapshot.Clone(),
		Signatures: sigs,
	}
}

// SnapshotInProgress tracks the single outstanding snapshot of an open head:
// the candidate body computed locally, the requesting leader, and the
// signatures collected so far.
type SnapshotInProgress struct {
	Number uint64
	Leader uint32
	Body   *Snapshot
	Acks   map[uint32]string
}

// Clone returns an independent copy.
func (p *SnapshotInProgress) Clone() *SnapshotInProgress {
	acks := make(map[uint32]string, len(p.Acks))
	for id, sig := range p.Acks {
		acks[id] = sig
	}
	return &SnapshotInProgress{
		Number: p.Number,
		Leader: p.Leader,
		Body:   p.Body.Clone(),
		Acks:   acks,
	}
}
