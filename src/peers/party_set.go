package peers

import (
	"bytes"
	"encoding/json"
	"sort"

	"github.com/lagoon-network/lagoon/src/common"
	"github.com/lagoon-network/lagoon/src/crypto"
)

// PartySet is the fixed, totally ordered set of parties of a head. Parties are
// ordered by the hex form of their verification keys, which every node
// computes identically. The set is frozen when the head is initialised.
type PartySet struct {
	Parties  []*Party          `json:"parties"`
	ByPubKey map[string]*Party `json:"-"`
	ByID     map[uint32]*Party `json:"-"`

	//cached values
	hash []byte
	hex  string
}

/* Constructors */

// NewPartySet creates a PartySet from a list of Parties. The input order is
// irrelevant; the set imposes the canonical order.
func NewPartySet(parties []*Party) *PartySet {
	sorted := make([]*Party, len(parties))
	copy(sorted, parties)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].PubKeyHex < sorted[j].PubKeyHex
	})

	partySet := &PartySet{
		ByPubKey: make(map[string]*Party),
		ByID:     make(map[uint32]*Party),
	}

	for _, party := range sorted {
		partySet.ByPubKey[party.PubKeyHex] = party
		partySet.ByID[party.ID()] = party
	}

	partySet.Parties = sorted

	return partySet
}

// NewPartySetFromPartySliceBytes creates a PartySet from a JSON-encoded slice
// of parties.
func NewPartySetFromPartySliceBytes(partySliceBytes []byte) (*PartySet, error) {
	parties := []*Party{}

	b := bytes.NewBuffer(partySliceBytes)
	dec := json.NewDecoder(b)

	err := dec.Decode(&parties)
	if err != nil {
		return nil, err
	}

	return NewPartySet(parties), nil
}

/* Utilities */

// Len returns the number of parties in the set.
func (partySet *PartySet) Len() int {
	return len(partySet.Parties)
}

// Index returns the position of the party identified by id in the canonical
// order, or -1 when the party is not a member.
func (partySet *PartySet) Index(id uint32) int {
	for i, p := range partySet.Parties {
		if p.ID() == id {
			return i
		}
	}
	return -1
}

// Leader returns the party responsible for proposing snapshot number n.
// Leadership rotates through the canonical order, starting with the first
// party for snapshot 1.
func (partySet *PartySet) Leader(n uint64) *Party {
	size := uint64(len(partySet.Parties))
	return partySet.Parties[int((n+size-1)%size)]
}

// IDs returns the set's slice of IDs in canonical order.
func (partySet *PartySet) IDs() []uint32 {
	res := []uint32{}

	for _, party := range partySet.Parties {
		res = append(res, party.ID())
	}

	return res
}

// PubKeys returns the set's slice of public keys in canonical order.
func (partySet *PartySet) PubKeys() []string {
	res := []string{}

	for _, party := range partySet.Parties {
		res = append(res, party.PubKeyHex)
	}

	return res
}

// Hash uniquely identifies a PartySet. It is computed by hashing (SHA256) the
// public keys together, one by one, in canonical order.
func (partySet *PartySet) Hash() []byte {
	if len(partySet.hash) == 0 {
		hash := []byte{}
		for _, p := range partySet.Parties {
			hash = crypto.SimpleHashFromTwoHashes(hash, p.PubKeyBytes())
		}
		partySet.hash = hash
	}
	return partySet.hash
}

// Hex is the hexadecimal representation of Hash.
func (partySet *PartySet) Hex() string {
	if len(partySet.hex) == 0 {
		partySet.hex = common.EncodeToString(partySet.Hash())
	}
	return partySet.hex
}

// Marshal returns the JSON encoding of the party slice.
func (partySet *PartySet) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	if err := enc.Encode(partySet.Parties); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
