package head

import (
	"testing"

	"github.com/lagoon-network/lagoon/src/crypto/keys"
	"github.com/lagoon-network/lagoon/src/ledger"
)

func TestSnapshotSigningPayloadBindsNumberAndUTxO(t *testing.T) {
	a := &Snapshot{Number: 1, UTxO: ledger.UTxO{"1": 1}}
	b := &Snapshot{Number: 2, UTxO: ledger.UTxO{"1": 1}}
	c := &Snapshot{Number: 1, UTxO: ledger.UTxO{"2": 1}}

	if string(a.SigningPayload()) == string(b.SigningPayload()) {
		t.Fatalf("payload should bind the snapshot number")
	}
	if string(a.SigningPayload()) == string(c.SigningPayload()) {
		t.Fatalf("payload should bind the UTxO set")
	}
	if string(a.SigningPayload()) != string(a.Clone().SigningPayload()) {
		t.Fatalf("payload should be deterministic")
	}
}

func TestSignedSnapshotVerify(t *testing.T) {
	f := newFixture(t, 3)

	body := &Snapshot{Number: 1, UTxO: ledger.UTxO{"1": 1}}

	sigs := map[uint32]string{}
	for i := 0; i < 3; i++ {
		sigs[f.id(i)] = f.signSnapshot(t, i, body)
	}

	ss := NewSignedSnapshot(body, sigs)
	if !ss.Verify(f.parties) {
		t.Fatalf("full signature set should verify")
	}

	// missing one signature
	partial := map[uint32]string{}
	for id, sig := range sigs {
		partial[id] = sig
	}
	delete(partial, f.id(1))
	if NewSignedSnapshot(body, partial).Verify(f.parties) {
		t.Fatalf("missing signature should not verify")
	}

	// signature from the wrong party over the right body
	swapped := map[uint32]string{}
	for id, sig := range sigs {
		swapped[id] = sig
	}
	swapped[f.id(0)] = sigs[f.id(1)]
	if NewSignedSnapshot(body, swapped).Verify(f.parties) {
		t.Fatalf("swapped signatures should not verify")
	}

	// signature over a different body
	other := &Snapshot{Number: 1, UTxO: ledger.UTxO{"2": 2}}
	forged := map[uint32]string{}
	for id := range sigs {
		forged[id] = sigs[id]
	}
	forged[f.id(2)] = f.signSnapshot(t, 2, other)
	if NewSignedSnapshot(body, forged).Verify(f.parties) {
		t.Fatalf("signature over another body should not verify")
	}
}

func TestMultiSigAggregationDeterministic(t *testing.T) {
	sigs := map[uint32]string{3: "c", 1: "a", 2: "b"}

	a := keys.Aggregate(sigs)
	b := keys.Aggregate(map[uint32]string{1: "a", 2: "b", 3: "c"})

	if a.Encode() != b.Encode() {
		t.Fatalf("aggregation should not depend on map order")
	}
	if a.Encode() != "a+b+c" {
		t.Fatalf("unexpected aggregate: %s", a.Encode())
	}
	if a.Len() != 3 {
		t.Fatalf("unexpected length: %d", a.Len())
	}
}
