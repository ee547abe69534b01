package chain

import (
	"bytes"
	"time"

	"github.com/lagoon-network/lagoon/src/common"
	"github.com/lagoon-network/lagoon/src/crypto"
	"github.com/lagoon-network/lagoon/src/ledger"
	"github.com/ugorji/go/codec"
)

// Transaction kinds, one per head lifecycle transition.
const (
	TxInit    = "init"
	TxCommit  = "commit"
	TxAbort   = "abort"
	TxCollect = "collect"
	TxClose   = "close"
	TxContest = "contest"
	TxFanout  = "fanout"
)

// Tx is a base-ledger head transaction as this layer sees it: the kind of
// transition it performs plus the decoded datum fields relevant to that
// transition. The real base ledger carries these in script datums; the dev
// chain carries them verbatim.
type Tx struct {
	Kind   string
	HeadID string

	// init
	Parties            []string
	InitialMarkers     map[uint32]ledger.OutRef
	ContestationPeriod time.Duration
	SeedInput          ledger.OutRef

	// commit
	Party     uint32
	Committed ledger.UTxO

	// collect
	CollectedUTxO ledger.UTxO

	// close / contest
	SnapshotNumber       uint64
	UTxOHash             string
	MultiSig             string
	Contester            uint32
	Contesters           []uint32
	LowerBoundSlot       uint64
	UpperBoundTime       time.Time
	ContestationDeadline time.Time

	// fanout
	FanoutUTxO ledger.UTxO
}

// ID is the hash of the canonical transaction encoding.
func (t *Tx) ID() string {
	b := new(bytes.Buffer)
	jh := new(codec.JsonHandle)
	jh.Canonical = true
	enc := codec.NewEncoder(b, jh)
	if err := enc.Encode(t); err != nil {
		panic(err)
	}
	return common.EncodeToString(crypto.SHA256(b.Bytes()))
}
