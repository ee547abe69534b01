package chain

import (
	"fmt"
	"time"

	"github.com/lagoon-network/lagoon/src/common"
	"github.com/lagoon-network/lagoon/src/crypto"
	"github.com/lagoon-network/lagoon/src/ledger"
	"github.com/lagoon-network/lagoon/src/peers"
)

// Network identifies the base chain a node runs against.
type Network string

const (
	// Devnet is the in-process development chain.
	Devnet Network = "devnet"
	// Testnet ...
	Testnet Network = "testnet"
	// Mainnet enforces the per-head commit value cap.
	Mainnet Network = "mainnet"
)

// DefaultMainnetValueCap is the hard ceiling on the total value a party may
// commit to a mainnet head.
const DefaultMainnetValueCap ledger.Value = 100_000_000

// Context carries everything the transaction constructors and observers need:
// the network, our own identity, the party set, the contestation period, the
// slot converter, and the seed input that funds the init transaction.
type Context struct {
	Network            Network
	MainnetValueCap    ledger.Value
	Party              *peers.Party
	Parties            *peers.PartySet
	ContestationPeriod time.Duration
	Converter          *SlotConverter
	SeedInput          ledger.OutRef
}

// NewContext ...
func NewContext(
	network Network,
	party *peers.Party,
	parties *peers.PartySet,
	contestationPeriod time.Duration,
	converter *SlotConverter,
	seedInput ledger.OutRef,
) *Context {
	return &Context{
		Network:            network,
		MainnetValueCap:    DefaultMainnetValueCap,
		Party:              party,
		Parties:            parties,
		ContestationPeriod: contestationPeriod,
		Converter:          converter,
		SeedInput:          seedInput,
	}
}

// headID derives the unique head identifier from the seed input and the
// party set, so that two heads can never collide.
func (ctx *Context) headID(seedInput ledger.OutRef) string {
	seed := append([]byte(seedInput), ctx.Parties.Hash()...)
	return common.EncodeToString(crypto.SHA256(seed))
}

// markerRef is the initial marker output created for each party by the init
// transaction.
func markerRef(headID string, id uint32) ledger.OutRef {
	return ledger.OutRef(fmt.Sprintf("%s#initial-%d", headID, id))
}
