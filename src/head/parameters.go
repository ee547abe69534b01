package head

import (
	"time"

	"github.com/lagoon-network/lagoon/src/peers"
)

// Parameters are the fixed parameters of a head. They are frozen when the
// head is initialised on-chain and never change afterwards.
type Parameters struct {
	Parties            *peers.PartySet
	ContestationPeriod time.Duration
}

// NewParameters ...
func NewParameters(parties *peers.PartySet, contestationPeriod time.Duration) *Parameters {
	return &Parameters{
		Parties:            parties,
		ContestationPeriod: contestationPeriod,
	}
}
