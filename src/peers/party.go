package peers

import (
	"crypto/ecdsa"

	"github.com/lagoon-network/lagoon/src/common"
	"github.com/lagoon-network/lagoon/src/crypto/keys"
)

// Party is a head participant: a verification key, a network address, and a
// friendly moniker. Its position in the ordered PartySet is its index for the
// lifetime of the head.
type Party struct {
	NetAddr   string
	PubKeyHex string
	Moniker   string

	//cached values
	id       uint32
	pubBytes []byte
	pubKey   *ecdsa.PublicKey
}

// NewParty instantiates a Party from the hex form of its verification key.
func NewParty(pubKeyHex, netAddr, moniker string) *Party {
	return &Party{
		PubKeyHex: pubKeyHex,
		NetAddr:   netAddr,
		Moniker:   moniker,
	}
}

// ID returns a compact identifier derived from the verification key.
func (p *Party) ID() uint32 {
	if p.id == 0 {
		p.id = common.Hash32(p.PubKeyBytes())
	}
	return p.id
}

// PubKeyBytes returns the uncompressed form of the verification key.
func (p *Party) PubKeyBytes() []byte {
	if len(p.pubBytes) == 0 {
		bytes, err := common.DecodeFromString(p.PubKeyHex)
		if err != nil {
			return nil
		}
		p.pubBytes = bytes
	}
	return p.pubBytes
}

// PubKey returns the verification key as an ecdsa.PublicKey.
func (p *Party) PubKey() *ecdsa.PublicKey {
	if p.pubKey == nil {
		p.pubKey = keys.ToPublicKey(p.PubKeyBytes())
	}
	return p.pubKey
}

// Verify checks a string-encoded signature over data against this party's
// verification key.
func (p *Party) Verify(data []byte, sig string) bool {
	pub := p.PubKey()
	if pub == nil {
		return false
	}
	return keys.VerifyHex(pub, data, sig)
}
