package head

import (
	"reflect"
	"testing"
	"time"

	"github.com/lagoon-network/lagoon/src/ledger"
)

func TestMessageEncodingRoundTrip(t *testing.T) {
	msgs := []Message{
		&ReqTx{From: 1, Tx: &ledger.Tx{
			ID:      "t",
			Inputs:  []ledger.OutRef{"1"},
			Outputs: map[ledger.OutRef]ledger.Value{"2": 5},
		}},
		&AckTx{From: 2, TxID: "t"},
		&ReqSn{From: 3, Number: 4, TxIDs: []string{"a", "b"}},
		&AckSn{From: 4, Number: 4, Signature: "sig"},
		&Ping{From: 5, Moniker: "party5"},
	}

	for _, msg := range msgs {
		b, err := EncodeMessage(msg)
		if err != nil {
			t.Fatalf("encode %T: %v", msg, err)
		}
		decoded, err := DecodeMessage(b)
		if err != nil {
			t.Fatalf("decode %T: %v", msg, err)
		}
		if !reflect.DeepEqual(msg, decoded) {
			t.Fatalf("round trip mismatch for %T:\n%#v\n%#v", msg, msg, decoded)
		}
	}
}

func TestMessageEncodingCanonical(t *testing.T) {
	msg := &ReqTx{From: 1, Tx: &ledger.Tx{
		ID:      "t",
		Inputs:  []ledger.OutRef{"1", "2"},
		Outputs: map[ledger.OutRef]ledger.Value{"3": 1, "4": 2, "5": 3},
	}}

	a, err := EncodeMessage(msg)
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	b, err := EncodeMessage(msg)
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if string(a) != string(b) {
		t.Fatalf("encoding should be deterministic")
	}
}

func TestDecodeUnknownMessageType(t *testing.T) {
	b, err := encodeCanonical(envelope{Type: "gossip", Body: []byte("{}")})
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if _, err := DecodeMessage(b); err == nil {
		t.Fatalf("unknown message type should be a hard decode error")
	}
}

func TestDecodeUnknownFieldRejected(t *testing.T) {
	// an AckTx with an extra field must not decode silently
	body := []byte(`{"From":1,"TxID":"t","Extra":"x"}`)
	b, err := encodeCanonical(envelope{Type: wireAckTx, Body: body})
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if _, err := DecodeMessage(b); err == nil {
		t.Fatalf("unknown field should be a hard decode error")
	}
}

func TestEventEncodingRoundTrip(t *testing.T) {
	events := []Event{
		&ClientEvent{Command: &NewTxCommand{Tx: &ledger.Tx{
			ID:      "t",
			Inputs:  []ledger.OutRef{"1"},
			Outputs: map[ledger.OutRef]ledger.Value{"2": 1},
		}}},
		&ClientEvent{Command: &CloseCommand{}},
		&NetworkEvent{Message: &AckSn{From: 1, Number: 2, Signature: "sig"}},
		&ChainEvent{Observation: &OnCloseTx{
			SnapshotNumber:       3,
			ContestationDeadline: time.Unix(1000, 0).UTC(),
		}},
		&ChainEvent{Observation: &OnCommitTx{Party: 9, UTxO: ledger.UTxO{"1": 1}}},
		&TickEvent{Time: time.Unix(2000, 0).UTC(), Slot: 17},
		&RollbackEvent{Point: ChainPoint{Slot: 5, BlockHash: "h"}},
	}

	for _, ev := range events {
		b, err := EncodeEvent(ev)
		if err != nil {
			t.Fatalf("encode %T: %v", ev, err)
		}
		decoded, err := DecodeEvent(b)
		if err != nil {
			t.Fatalf("decode %T: %v", ev, err)
		}
		if !reflect.DeepEqual(ev, decoded) {
			t.Fatalf("round trip mismatch for %T:\n%#v\n%#v", ev, ev, decoded)
		}
	}
}
