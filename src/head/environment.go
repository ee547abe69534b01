package head

import (
	"crypto/ecdsa"
	"time"

	"github.com/lagoon-network/lagoon/src/crypto/keys"
	"github.com/lagoon-network/lagoon/src/peers"
)

// Environment is the static context of a node: its own identity and key, the
// configured party set and contestation period. It never changes while the
// node runs.
type Environment struct {
	Key                *ecdsa.PrivateKey
	Party              *peers.Party
	Parties            *peers.PartySet
	ContestationPeriod time.Duration
}

// NewEnvironment ...
func NewEnvironment(key *ecdsa.PrivateKey, party *peers.Party, parties *peers.PartySet, contestationPeriod time.Duration) *Environment {
	return &Environment{
		Key:                key,
		Party:              party,
		Parties:            parties,
		ContestationPeriod: contestationPeriod,
	}
}

// ID is the compact identifier of this node's party.
func (e *Environment) ID() uint32 {
	return e.Party.ID()
}

// sign produces this party's signature over data.
func (e *Environment) sign(data []byte) (string, error) {
	return keys.SignHex(e.Key, data)
}
