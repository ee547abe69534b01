package keys

import (
	"sort"
	"strings"
)

// MultiSig is the aggregate of every party's signature over the same payload.
// ECDSA offers no true signature aggregation, so the aggregate is the
// deterministic concatenation of the individual signatures, ordered by the
// signer identifier. The on-chain verifier checks each component.
type MultiSig struct {
	Signatures []string
}

// Aggregate combines a set of encoded signatures, keyed by signer ID, into a
// MultiSig. The result is independent of map iteration order.
func Aggregate(sigs map[uint32]string) MultiSig {
	ids := make([]uint32, 0, len(sigs))
	for id := range sigs {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	res := MultiSig{}
	for _, id := range ids {
		res.Signatures = append(res.Signatures, sigs[id])
	}
	return res
}

// Encode returns the canonical string form of the MultiSig.
func (m MultiSig) Encode() string {
	return strings.Join(m.Signatures, "+")
}

// Len returns the number of component signatures.
func (m MultiSig) Len() int {
	return len(m.Signatures)
}
