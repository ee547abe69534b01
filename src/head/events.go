package head

import (
	"time"
)

// Event is an input to the head state machine. Client requests, network
// messages and chain observations all funnel into the node's single event
// queue as Events.
type Event interface {
	isEvent()
}

// ClientEvent wraps a client command.
type ClientEvent struct {
	Command Command
}

// NetworkEvent wraps a message received from a peer (or looped back from
// ourselves).
type NetworkEvent struct {
	Message Message
}

// ChainEvent wraps an on-chain observation.
type ChainEvent struct {
	Observation OnChainTx
}

// TickEvent is a wall-clock advance derived from new-block observations.
type TickEvent struct {
	Time time.Time
	Slot uint64
}

// RollbackEvent reports that the chain follower rolled back to Point and
// restored the matching chain state.
type RollbackEvent struct {
	Point ChainPoint
}

func (e *ClientEvent) isEvent()   {}
func (e *NetworkEvent) isEvent()  {}
func (e *ChainEvent) isEvent()    {}
func (e *TickEvent) isEvent()     {}
func (e *RollbackEvent) isEvent() {}
