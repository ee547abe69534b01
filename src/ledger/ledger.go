package ledger

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/lagoon-network/lagoon/src/crypto"
	"github.com/ugorji/go/codec"
)

// Value is the amount held by a transaction output.
type Value uint64

// OutRef identifies a transaction output.
type OutRef string

// UTxO maps transaction-output references to their values.
type UTxO map[OutRef]Value

// Tx is a head transaction. Inputs are the output references it consumes and
// Outputs the references and values it produces. The ID must be stable and
// unique within a head.
type Tx struct {
	ID      string
	Inputs  []OutRef
	Outputs map[OutRef]Value
}

// Ledger validates and applies transactions against a UTxO set. It is pure:
// Apply never mutates its arguments and is free of side effects.
type Ledger interface {
	// Initial returns the empty UTxO set.
	Initial() UTxO

	// Apply returns the UTxO set resulting from applying tx to u, or a
	// *ValidationError when tx is not applicable.
	Apply(u UTxO, tx *Tx) (UTxO, error)
}

// ValidationError reports why a ledger rejected a transaction.
type ValidationError struct {
	TxID   string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("tx %s rejected: %s", e.TxID, e.Reason)
}

// Clone returns an independent copy of the UTxO set.
func (u UTxO) Clone() UTxO {
	res := make(UTxO, len(u))
	for ref, val := range u {
		res[ref] = val
	}
	return res
}

// TotalValue sums the values of every output in the set.
func (u UTxO) TotalValue() Value {
	var total Value
	for _, val := range u {
		total += val
	}
	return total
}

// Refs returns the sorted output references of the set.
func (u UTxO) Refs() []OutRef {
	refs := make([]OutRef, 0, len(u))
	for ref := range u {
		refs = append(refs, ref)
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i] < refs[j] })
	return refs
}

// Merge returns the union of u and other. Overlapping references keep the
// value from other.
func (u UTxO) Merge(other UTxO) UTxO {
	res := u.Clone()
	for ref, val := range other {
		res[ref] = val
	}
	return res
}

// Hash returns the SHA256 hash of the canonical encoding of the UTxO set. Two
// equal sets always hash to the same value.
func (u UTxO) Hash() []byte {
	b := new(bytes.Buffer)
	jh := new(codec.JsonHandle)
	jh.Canonical = true
	enc := codec.NewEncoder(b, jh)

	if err := enc.Encode(u); err != nil {
		// encoding a map of strings to integers cannot fail
		panic(err)
	}

	return crypto.SHA256(b.Bytes())
}
