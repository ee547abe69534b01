package head

import (
	"time"

	"github.com/lagoon-network/lagoon/src/ledger"
)

// Status is the lifecycle phase of a head.
type Status int

const (
	//Idle means no head is known.
	Idle Status = iota
	//Initial means the head is initialised on-chain and collecting commits.
	Initial
	//Open means the head is collecting and confirming off-chain transactions.
	Open
	//Closed means a close transaction landed and the contestation period runs.
	Closed
	//Final means the head UTxO has been fanned out or reimbursed; no further
	//events are accepted.
	Final
)

// String ...
func (s Status) String() string {
	switch s {
	case Idle:
		return "Idle"
	case Initial:
		return "Initial"
	case Open:
		return "Open"
	case Closed:
		return "Closed"
	case Final:
		return "Final"
	default:
		return "Unknown"
	}
}

// State is the full off-chain state of a head, tagged by Status. Only the
// fields of the current phase are meaningful; the zero values of the others
// are ignored.
type State struct {
	Status Status

	// Initial onwards
	Parameters *Parameters

	// Initial: commits observed so far and parties still expected to commit.
	Committed      map[uint32]ledger.UTxO
	PendingCommits map[uint32]bool

	// Open: the last multi-signed snapshot, the local view obtained by
	// applying the unconfirmed suffix of SeenTxs on top of it, per-tx ack
	// collection, the ordered confirmed-but-unsnapshotted transactions, and
	// the single snapshot in flight.
	ConfirmedSnapshot *SignedSnapshot
	LocalUTxO         ledger.UTxO
	SeenTxs           []*ledger.Tx
	TxAcks            map[string]map[uint32]bool
	ConfirmedTxIDs    []string
	Pending           *SnapshotInProgress

	// Closed
	ClosedSnapshotNumber uint64
	ContestationDeadline time.Time
	Contesters           map[uint32]bool
	ContestPosted        bool
	FanoutPosted         bool

	// Final
	FinalUTxO ledger.UTxO
}

// NewState returns the Idle state.
func NewState() *State {
	return &State{Status: Idle}
}

// Clone returns a deep copy of the state. Update works on a clone so that a
// rejected or waiting event leaves the caller's state untouched.
func (s *State) Clone() *State {
	res := &State{
		Status:               s.Status,
		Parameters:           s.Parameters,
		ClosedSnapshotNumber: s.ClosedSnapshotNumber,
		ContestationDeadline: s.ContestationDeadline,
		ContestPosted:        s.ContestPosted,
		FanoutPosted:         s.FanoutPosted,
	}

	if s.Committed != nil {
		res.Committed = make(map[uint32]ledger.UTxO, len(s.Committed))
		for id, u := range s.Committed {
			res.Committed[id] = u.Clone()
		}
	}
	if s.PendingCommits != nil {
		res.PendingCommits = make(map[uint32]bool, len(s.PendingCommits))
		for id := range s.PendingCommits {
			res.PendingCommits[id] = true
		}
	}
	if s.ConfirmedSnapshot != nil {
		res.ConfirmedSnapshot = s.ConfirmedSnapshot.Clone()
	}
	if s.LocalUTxO != nil {
		res.LocalUTxO = s.LocalUTxO.Clone()
	}
	res.SeenTxs = append(res.SeenTxs, s.SeenTxs...)
	if s.TxAcks != nil {
		res.TxAcks = make(map[string]map[uint32]bool, len(s.TxAcks))
		for txID, acks := range s.TxAcks {
			cp := make(map[uint32]bool, len(acks))
			for id := range acks {
				cp[id] = true
			}
			res.TxAcks[txID] = cp
		}
	}
	res.ConfirmedTxIDs = append(res.ConfirmedTxIDs, s.ConfirmedTxIDs...)
	if s.Pending != nil {
		res.Pending = s.Pending.Clone()
	}
	if s.Contesters != nil {
		res.Contesters = make(map[uint32]bool, len(s.Contesters))
		for id := range s.Contesters {
			res.Contesters[id] = true
		}
	}
	if s.FinalUTxO != nil {
		res.FinalUTxO = s.FinalUTxO.Clone()
	}

	return res
}

// seenTx returns the seen transaction with the given id, or nil.
func (s *State) seenTx(txID string) *ledger.Tx {
	for _, tx := range s.SeenTxs {
		if tx.ID == txID {
			return tx
		}
	}
	return nil
}

// isConfirmed reports whether txID is in the confirmed-but-unsnapshotted set.
func (s *State) isConfirmed(txID string) bool {
	for _, id := range s.ConfirmedTxIDs {
		if id == txID {
			return true
		}
	}
	return false
}

// committedUTxO is the union of every party's commit.
func (s *State) committedUTxO() ledger.UTxO {
	res := ledger.UTxO{}
	for _, u := range s.Committed {
		res = res.Merge(u)
	}
	return res
}
