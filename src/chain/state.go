package chain

import (
	"time"

	"github.com/lagoon-network/lagoon/src/head"
	"github.com/lagoon-network/lagoon/src/ledger"
)

// Phase is the on-chain lifecycle phase of a head, as tracked off-chain.
type Phase int

const (
	//PhaseIdle means no head transaction has been observed.
	PhaseIdle Phase = iota
	//PhaseInitial means an init transaction landed; commits are expected.
	PhaseInitial
	//PhaseOpen means the collect-com transaction landed.
	PhaseOpen
	//PhaseClosed means a close transaction landed.
	PhaseClosed
	//PhaseFinal means a fanout or abort transaction terminated the head.
	PhaseFinal
)

// String ...
func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "Idle"
	case PhaseInitial:
		return "Initial"
	case PhaseOpen:
		return "Open"
	case PhaseClosed:
		return "Closed"
	case PhaseFinal:
		return "Final"
	default:
		return "Unknown"
	}
}

// State is the off-chain mirror of the on-chain head machine. Observers are
// the only code that advances it; constructors only read it.
type State struct {
	Phase Phase

	HeadID             string
	ContestationPeriod time.Duration

	// Initial: one marker output per party, consumed by that party's commit,
	// and the commits observed so far.
	InitialMarkers map[uint32]ledger.OutRef
	Committed      map[uint32]ledger.UTxO

	// Open
	UTxO ledger.UTxO

	// Closed
	SnapshotNumber       uint64
	ContestationDeadline time.Time
	Contesters           []uint32

	// Final
	FinalUTxO ledger.UTxO

	// RecordedAt is the chain point of the observation that produced this
	// state.
	RecordedAt head.ChainPoint
}

// NewState returns the Idle chain state.
func NewState() *State {
	return &State{Phase: PhaseIdle}
}

// Clone returns a deep copy of the state.
func (s *State) Clone() *State {
	res := &State{
		Phase:                s.Phase,
		HeadID:               s.HeadID,
		ContestationPeriod:   s.ContestationPeriod,
		SnapshotNumber:       s.SnapshotNumber,
		ContestationDeadline: s.ContestationDeadline,
		RecordedAt:           s.RecordedAt,
	}

	if s.InitialMarkers != nil {
		res.InitialMarkers = make(map[uint32]ledger.OutRef, len(s.InitialMarkers))
		for id, ref := range s.InitialMarkers {
			res.InitialMarkers[id] = ref
		}
	}
	if s.Committed != nil {
		res.Committed = make(map[uint32]ledger.UTxO, len(s.Committed))
		for id, u := range s.Committed {
			res.Committed[id] = u.Clone()
		}
	}
	if s.UTxO != nil {
		res.UTxO = s.UTxO.Clone()
	}
	res.Contesters = append(res.Contesters, s.Contesters...)
	if s.FinalUTxO != nil {
		res.FinalUTxO = s.FinalUTxO.Clone()
	}

	return res
}

// committedUTxO is the union of every observed commit.
func (s *State) committedUTxO() ledger.UTxO {
	res := ledger.UTxO{}
	for _, u := range s.Committed {
		res = res.Merge(u)
	}
	return res
}

// hasContested reports whether the given party already contested.
func (s *State) hasContested(id uint32) bool {
	for _, c := range s.Contesters {
		if c == id {
			return true
		}
	}
	return false
}
