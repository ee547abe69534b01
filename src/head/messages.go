package head

import (
	"github.com/lagoon-network/lagoon/src/ledger"
)

// Message is a head network message exchanged between parties. Every message
// carries the compact ID of its sender.
type Message interface {
	isMessage()
	Sender() uint32
}

// ReqTx asks every party to validate and acknowledge a new transaction.
type ReqTx struct {
	From uint32
	Tx   *ledger.Tx
}

// AckTx acknowledges that the sender applied the transaction to its local
// UTxO set.
type AckTx struct {
	From uint32
	TxID string
}

// ReqSn is the snapshot leader's request to sign snapshot Number over the
// listed transactions.
type ReqSn struct {
	From   uint32
	Number uint64
	TxIDs  []string
}

// AckSn carries the sender's signature over the candidate snapshot body.
type AckSn struct {
	From      uint32
	Number    uint64
	Signature string
}

// Ping is a peer-liveness beacon.
type Ping struct {
	From    uint32
	Moniker string
}

func (m *ReqTx) isMessage() {}
func (m *AckTx) isMessage() {}
func (m *ReqSn) isMessage() {}
func (m *AckSn) isMessage() {}
func (m *Ping) isMessage()  {}

// Sender ...
func (m *ReqTx) Sender() uint32 { return m.From }

// Sender ...
func (m *AckTx) Sender() uint32 { return m.From }

// Sender ...
func (m *ReqSn) Sender() uint32 { return m.From }

// Sender ...
func (m *AckSn) Sender() uint32 { return m.From }

// Sender ...
func (m *Ping) Sender() uint32 { return m.From }
