package head

import (
	"time"

	"github.com/lagoon-network/lagoon/src/ledger"
)

// Notification is a message to the client. Every command produces exactly one
// terminal notification; protocol progress produces additional ones.
type Notification interface {
	isNotification()
}

// ReadyToCommit signals that the head is initialised and parties may commit.
type ReadyToCommit struct {
	Parties []string
}

// HeadIsOpen signals that every party committed and the head is open.
type HeadIsOpen struct {
	UTxO ledger.UTxO
}

// TxReceived signals that a transaction was acknowledged by every party. It is
// emitted at most once per transaction.
type TxReceived struct {
	Tx *ledger.Tx
}

// SnapshotConfirmed signals that a snapshot collected every signature.
type SnapshotConfirmed struct {
	Snapshot *Snapshot
}

// HeadIsClosed signals that a close transaction was observed.
type HeadIsClosed struct {
	SnapshotNumber       uint64
	ContestationDeadline time.Time
}

// HeadIsContested signals that a contest transaction was observed.
type HeadIsContested struct {
	SnapshotNumber uint64
}

// HeadIsAborted signals that the head was aborted and commits reimbursed.
type HeadIsAborted struct {
	UTxO ledger.UTxO
}

// HeadIsFinalized signals that the fanout transaction materialised the final
// UTxO on the base chain.
type HeadIsFinalized struct {
	UTxO ledger.UTxO
}

// PeerConnected reports peer liveness derived from Ping messages.
type PeerConnected struct {
	Moniker string
}

// CommandFailed is the terminal notification of a command that was invalid in
// the current state.
type CommandFailed struct {
	Command string
	Reason  string
}

// CurrentUTxO answers a GetUTxO command.
type CurrentUTxO struct {
	UTxO ledger.UTxO
}

// RolledBack reports that the chain rolled back to an earlier point.
type RolledBack struct {
	Point ChainPoint
}

// EventDropped reports that a waiting event was discarded because the wait
// queue overflowed or its retries were exhausted.
type EventDropped struct {
	Reason string
}

func (n *ReadyToCommit) isNotification()     {}
func (n *HeadIsOpen) isNotification()        {}
func (n *TxReceived) isNotification()        {}
func (n *SnapshotConfirmed) isNotification() {}
func (n *HeadIsClosed) isNotification()      {}
func (n *HeadIsContested) isNotification()   {}
func (n *HeadIsAborted) isNotification()     {}
func (n *HeadIsFinalized) isNotification()   {}
func (n *PeerConnected) isNotification()     {}
func (n *CommandFailed) isNotification()     {}
func (n *CurrentUTxO) isNotification()       {}
func (n *RolledBack) isNotification()        {}
func (n *EventDropped) isNotification()      {}
