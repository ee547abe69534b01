package ledger

// SimpleLedger is the reference Ledger. A transaction applies when every input
// reference is present in the UTxO set and none of its output references
// already exist. There is no value conservation rule; transactions declare
// their outputs freely, which is sufficient for exercising the head protocol.
type SimpleLedger struct{}

// NewSimpleLedger ...
func NewSimpleLedger() *SimpleLedger {
	return &SimpleLedger{}
}

// Initial implements the Ledger interface.
func (l *SimpleLedger) Initial() UTxO {
	return UTxO{}
}

// Apply implements the Ledger interface.
func (l *SimpleLedger) Apply(u UTxO, tx *Tx) (UTxO, error) {
	for _, in := range tx.Inputs {
		if _, ok := u[in]; !ok {
			return nil, &ValidationError{
				TxID:   tx.ID,
				Reason: "input " + string(in) + " not in UTxO set",
			}
		}
	}

	for ref := range tx.Outputs {
		if _, ok := u[ref]; ok {
			return nil, &ValidationError{
				TxID:   tx.ID,
				Reason: "output " + string(ref) + " already exists",
			}
		}
	}

	res := u.Clone()
	for _, in := range tx.Inputs {
		delete(res, in)
	}
	for ref, val := range tx.Outputs {
		res[ref] = val
	}

	return res, nil
}
