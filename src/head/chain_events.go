package head

import (
	"time"

	"github.com/lagoon-network/lagoon/src/ledger"
)

// ChainPoint identifies a base-chain position, used for rollbacks.
type ChainPoint struct {
	Slot      uint64
	BlockHash string
}

// OnChainTx is an observation of a head lifecycle transaction on the base
// chain, as decoded by the chain layer.
type OnChainTx interface {
	isOnChainTx()
}

// OnInitTx reports an init transaction: a head was initialised with the given
// parties and contestation period.
type OnInitTx struct {
	HeadID             string
	Parties            []string
	ContestationPeriod time.Duration
}

// OnCommitTx reports a party's commit.
type OnCommitTx struct {
	Party uint32
	UTxO  ledger.UTxO
}

// OnAbortTx reports an abort; commits are reimbursed on-chain.
type OnAbortTx struct{}

// OnCollectTx reports the collect-com transaction opening the head.
type OnCollectTx struct {
	UTxO ledger.UTxO
}

// OnCloseTx reports a close transaction and the deadline it started.
type OnCloseTx struct {
	SnapshotNumber       uint64
	ContestationDeadline time.Time
}

// OnContestTx reports a contest transaction. Contesters is the full contester
// set decoded from the transaction datum; Contester is the latest one.
type OnContestTx struct {
	SnapshotNumber       uint64
	Contester            uint32
	Contesters           []uint32
	ContestationDeadline time.Time
}

// OnFanoutTx reports the terminal fanout transaction.
type OnFanoutTx struct {
	UTxO ledger.UTxO
}

func (o *OnInitTx) isOnChainTx()    {}
func (o *OnCommitTx) isOnChainTx()  {}
func (o *OnAbortTx) isOnChainTx()   {}
func (o *OnCollectTx) isOnChainTx() {}
func (o *OnCloseTx) isOnChainTx()   {}
func (o *OnContestTx) isOnChainTx() {}
func (o *OnFanoutTx) isOnChainTx()  {}

// PostChainTx is the intent to post a head lifecycle transaction. The chain
// layer turns intents into base-ledger transactions.
type PostChainTx interface {
	isPostChainTx()
}

// PostInitTx ...
type PostInitTx struct {
	ContestationPeriod time.Duration
}

// PostCommitTx ...
type PostCommitTx struct {
	UTxO ledger.UTxO
}

// PostAbortTx ...
type PostAbortTx struct{}

// PostCollectTx ...
type PostCollectTx struct{}

// PostCloseTx ...
type PostCloseTx struct {
	ConfirmedSnapshot *SignedSnapshot
}

// PostContestTx ...
type PostContestTx struct {
	ConfirmedSnapshot *SignedSnapshot
}

// PostFanoutTx ...
type PostFanoutTx struct {
	UTxO ledger.UTxO
}

func (p *PostInitTx) isPostChainTx()    {}
func (p *PostCommitTx) isPostChainTx()  {}
func (p *PostAbortTx) isPostChainTx()   {}
func (p *PostCollectTx) isPostChainTx() {}
func (p *PostCloseTx) isPostChainTx()   {}
func (p *PostContestTx) isPostChainTx() {}
func (p *PostFanoutTx) isPostChainTx()  {}
