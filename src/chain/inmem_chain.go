package chain

import (
	"fmt"
	"sync"

	"github.com/lagoon-network/lagoon/src/common"
	"github.com/lagoon-network/lagoon/src/crypto"
	"github.com/lagoon-network/lagoon/src/head"
)

// Submitter posts base-ledger transactions. In-flight submissions are not
// cancelled on shutdown; whether they landed is discovered on the next run
// through chain resynchronisation.
type Submitter interface {
	SubmitTx(tx *Tx) error
}

// InmemChain is the development chain: submitted transactions are packed one
// per block and rolled forward to every connected follower. Tests use it to
// drive full init-to-fanout rounds without a real base chain, and to inject
// rollbacks.
type InmemChain struct {
	mu sync.Mutex

	slot      uint64
	blocks    map[uint64][]*Tx
	followers []*Follower
}

// NewInmemChain ...
func NewInmemChain() *InmemChain {
	return &InmemChain{
		blocks: map[uint64][]*Tx{},
	}
}

// Connect registers a follower. Every follower sees every block.
func (c *InmemChain) Connect(f *Follower) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.followers = append(c.followers, f)
}

func blockHash(slot uint64, txs []*Tx) string {
	data := []byte(fmt.Sprintf("block-%d", slot))
	for _, tx := range txs {
		data = append(data, []byte(tx.ID())...)
	}
	return common.EncodeToString(crypto.SHA256(data))
}

// SubmitTx implements the Submitter interface: the transaction lands in the
// next block, which is immediately rolled forward.
func (c *InmemChain) SubmitTx(tx *Tx) error {
	c.mu.Lock()
	c.slot++
	slot := c.slot
	txs := []*Tx{tx}
	c.blocks[slot] = txs
	followers := append([]*Follower{}, c.followers...)
	c.mu.Unlock()

	point := head.ChainPoint{Slot: slot, BlockHash: blockHash(slot, txs)}
	for _, f := range followers {
		f.RollForward(point, txs)
	}

	return nil
}

// Tick advances the chain by one empty block, driving time forward for every
// follower.
func (c *InmemChain) Tick() {
	c.mu.Lock()
	c.slot++
	slot := c.slot
	followers := append([]*Follower{}, c.followers...)
	c.mu.Unlock()

	point := head.ChainPoint{Slot: slot, BlockHash: blockHash(slot, nil)}
	for _, f := range followers {
		f.RollForward(point, nil)
	}
}

// RollbackTo rewinds the chain to the given slot and tells every follower.
func (c *InmemChain) RollbackTo(slot uint64) error {
	c.mu.Lock()
	for s := range c.blocks {
		if s > slot {
			delete(c.blocks, s)
		}
	}
	c.slot = slot
	followers := append([]*Follower{}, c.followers...)
	c.mu.Unlock()

	point := head.ChainPoint{Slot: slot, BlockHash: blockHash(slot, c.blocks[slot])}
	for _, f := range followers {
		if err := f.RollBackward(point); err != nil {
			return err
		}
	}

	return nil
}
