package journal

import (
	"sync"

	"github.com/lagoon-network/lagoon/src/head"
)

// InmemJournal keeps the event log in memory. It satisfies the Journal
// contract but obviously does not survive a restart; it backs tests.
// Events round-trip through the record encoding
// so that an in-memory run exercises the same serialisation as a durable one.
type InmemJournal struct {
	mu sync.Mutex

	records [][]byte
	nextID  uint64
}

// NewInmemJournal ...
func NewInmemJournal() *InmemJournal {
	return &InmemJournal{}
}

// Append implements the Journal interface.
func (j *InmemJournal) Append(e head.Event) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	payload, err := encodeRecord(j.nextID, e)
	if err != nil {
		return err
	}

	j.records = append(j.records, payload)
	j.nextID++

	return nil
}

// LoadAll implements the Journal interface.
func (j *InmemJournal) LoadAll() ([]StoredEvent, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	res := []StoredEvent{}
	for i, payload := range j.records {
		stored, err := decodeRecord(payload, uint64(i))
		if err != nil {
			return nil, &CorruptRecordError{Offset: int64(i), Reason: err.Error()}
		}
		res = append(res, stored)
	}

	return res, nil
}

// Close implements the Journal interface.
func (j *InmemJournal) Close() error {
	return nil
}
