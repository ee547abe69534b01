package chain

import (
	"fmt"
	"time"

	"github.com/lagoon-network/lagoon/src/head"
	"github.com/lagoon-network/lagoon/src/ledger"
)

// Commit construction errors.

// UnsupportedLegacyOutputError reports a committed output using a legacy
// address form, which the head scripts cannot spend.
type UnsupportedLegacyOutputError struct {
	Ref ledger.OutRef
}

func (e *UnsupportedLegacyOutputError) Error() string {
	return fmt.Sprintf("cannot commit output %s: legacy address form", e.Ref)
}

// CannotCommitReferenceScriptError reports a committed output carrying a
// reference script.
type CannotCommitReferenceScriptError struct {
	Ref ledger.OutRef
}

func (e *CannotCommitReferenceScriptError) Error() string {
	return fmt.Sprintf("cannot commit output %s: reference script", e.Ref)
}

// CommittedTooMuchForMainnetError reports a commit whose total value exceeds
// the mainnet hard cap.
type CommittedTooMuchForMainnetError struct {
	Committed ledger.Value
	Cap       ledger.Value
}

func (e *CommittedTooMuchForMainnetError) Error() string {
	return fmt.Sprintf("committed %d exceeds the mainnet cap of %d", e.Committed, e.Cap)
}

// CannotFindOwnInitialError reports that the party's initial marker output is
// absent from the spendable set.
type CannotFindOwnInitialError struct {
	Party uint32
}

func (e *CannotFindOwnInitialError) Error() string {
	return fmt.Sprintf("cannot find initial marker of party %d", e.Party)
}

// Close construction errors.

// InvalidCloseWindowError reports a close validity window wider than the
// contestation period.
type InvalidCloseWindowError struct {
	Lower  time.Time
	Upper  time.Time
	Period time.Duration
}

func (e *InvalidCloseWindowError) Error() string {
	return fmt.Sprintf("close window %s exceeds contestation period %s", e.Upper.Sub(e.Lower), e.Period)
}

// InvalidStateError reports a constructor called in the wrong chain phase.
type InvalidStateError struct {
	Phase Phase
	Op    string
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("cannot %s in phase %s", e.Op, e.Phase)
}

// UnrecoverableRollbackError reports a rollback past the retained window;
// the node cannot continue and must resynchronise from scratch.
type UnrecoverableRollbackError struct {
	Point head.ChainPoint
}

func (e *UnrecoverableRollbackError) Error() string {
	return fmt.Sprintf("rollback to slot %d is past the retained window", e.Point.Slot)
}

// TimeConversionError reports a time outside the known slot range.
type TimeConversionError struct {
	Time time.Time
}

func (e *TimeConversionError) Error() string {
	return fmt.Sprintf("cannot convert %s to a slot", e.Time)
}
