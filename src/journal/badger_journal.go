package journal

import (
	"fmt"
	"sync"

	"github.com/dgraph-io/badger"
	"github.com/lagoon-network/lagoon/src/head"
)

const eventKeyPrefix = "event"

func eventKey(id uint64) []byte {
	return []byte(fmt.Sprintf("%s_%012d", eventKeyPrefix, id))
}

// BadgerJournal stores the event log in a Badger database, one record per
// key in identifier order. Badger's directory lock gives writer exclusivity
// across processes for free. Writes are synchronous so that an append is
// durable before its effects become visible.
type BadgerJournal struct {
	mu sync.Mutex

	db     *badger.DB
	path   string
	nextID uint64
}

// NewBadgerJournal opens or creates a Badger-backed journal under path.
func NewBadgerJournal(path string) (*BadgerJournal, error) {
	opts := badger.DefaultOptions(path)
	opts.SyncWrites = true
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, &IoError{Cause: err}
	}

	j := &BadgerJournal{
		db:   db,
		path: path,
	}

	// recover the next identifier from the last key
	err = db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		// seek past the last possible event key
		it.Seek([]byte(eventKeyPrefix + "~"))
		if it.ValidForPrefix([]byte(eventKeyPrefix)) {
			var id uint64
			if _, err := fmt.Sscanf(string(it.Item().Key()), eventKeyPrefix+"_%012d", &id); err != nil {
				return err
			}
			j.nextID = id + 1
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, &IoError{Cause: err}
	}

	return j, nil
}

// Append implements the Journal interface.
func (j *BadgerJournal) Append(e head.Event) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	payload, err := encodeRecord(j.nextID, e)
	if err != nil {
		return err
	}

	err = j.db.Update(func(txn *badger.Txn) error {
		return txn.Set(eventKey(j.nextID), payload)
	})
	if err != nil {
		return &IoError{Cause: err}
	}

	j.nextID++

	return nil
}

// LoadAll implements the Journal interface.
func (j *BadgerJournal) LoadAll() ([]StoredEvent, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	res := []StoredEvent{}

	err := j.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		var expected uint64
		for it.Seek([]byte(eventKeyPrefix)); it.ValidForPrefix([]byte(eventKeyPrefix)); it.Next() {
			item := it.Item()
			payload, err := item.ValueCopy(nil)
			if err != nil {
				return &IoError{Cause: err}
			}

			stored, err := decodeRecord(payload, expected)
			if err != nil {
				return &CorruptRecordError{Offset: int64(expected), Reason: err.Error()}
			}

			res = append(res, stored)
			expected++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return res, nil
}

// Close implements the Journal interface.
func (j *BadgerJournal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if err := j.db.Close(); err != nil {
		return &IoError{Cause: err}
	}
	return nil
}
