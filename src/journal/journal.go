package journal

import (
	"github.com/lagoon-network/lagoon/src/head"
)

// StoredEvent is a journaled event together with its identifier. Identifiers
// are dense and strictly increasing in append order.
type StoredEvent struct {
	ID    uint64
	Event head.Event
}

// Journal is a durable, append-only log of head events. Appending is atomic:
// a record is either fully committed or absent, and a reader recovers from a
// torn tail by truncating it. Once a writer has appended, reads from any
// other writer fail with IncorrectAccess. LoadAll returns every appended
// event in append order, with no reordering and no deduplication.
type Journal interface {
	// Append durably commits one event.
	Append(e head.Event) error

	// LoadAll returns every event appended so far, in order.
	LoadAll() ([]StoredEvent, error)

	// Close releases the underlying resources.
	Close() error
}
