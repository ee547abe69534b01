package chain

import (
	"time"
)

// SlotConverter converts between base-chain slots and wall-clock time. The
// chain starts at SystemStart and produces one slot every SlotLength.
type SlotConverter struct {
	SystemStart time.Time
	SlotLength  time.Duration
}

// NewSlotConverter ...
func NewSlotConverter(systemStart time.Time, slotLength time.Duration) *SlotConverter {
	return &SlotConverter{
		SystemStart: systemStart,
		SlotLength:  slotLength,
	}
}

// SlotToTime returns the wall-clock time at which the slot begins.
func (c *SlotConverter) SlotToTime(slot uint64) time.Time {
	return c.SystemStart.Add(time.Duration(slot) * c.SlotLength)
}

// TimeToSlot returns the slot containing t, or a *TimeConversionError when t
// precedes the system start.
func (c *SlotConverter) TimeToSlot(t time.Time) (uint64, error) {
	if t.Before(c.SystemStart) {
		return 0, &TimeConversionError{Time: t}
	}
	return uint64(t.Sub(c.SystemStart) / c.SlotLength), nil
}
