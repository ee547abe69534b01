package journal

import (
	"bytes"
	"fmt"

	"github.com/lagoon-network/lagoon/src/head"
	"github.com/ugorji/go/codec"
)

// Record payload versions. Version 1 is the legacy form without an event
// identifier; it is accepted on read and lifted to the current form by
// assigning the next sequential identifier. Writes always produce version 2.
// Legacy and current records may appear interleaved in one file.
const (
	recordVersionLegacy = 1
	recordVersionNew    = 2
)

// record is the versioned on-disk payload of one journal entry.
type record struct {
	Version int
	ID      uint64
	Event   []byte
}

func encodeRecord(id uint64, e head.Event) ([]byte, error) {
	eventBytes, err := head.EncodeEvent(e)
	if err != nil {
		return nil, err
	}

	rec := record{
		Version: recordVersionNew,
		ID:      id,
		Event:   eventBytes,
	}

	b := new(bytes.Buffer)
	jh := new(codec.JsonHandle)
	jh.Canonical = true
	enc := codec.NewEncoder(b, jh)
	if err := enc.Encode(rec); err != nil {
		return nil, err
	}

	return b.Bytes(), nil
}

// decodeRecord parses a record payload and lifts legacy records to the
// current form. nextID is the identifier the record is expected to carry; a
// legacy record adopts it.
func decodeRecord(data []byte, nextID uint64) (StoredEvent, error) {
	var rec record

	b := bytes.NewBuffer(data)
	jh := new(codec.JsonHandle)
	dec := codec.NewDecoder(b, jh)
	if err := dec.Decode(&rec); err != nil {
		return StoredEvent{}, err
	}

	switch rec.Version {
	case recordVersionLegacy:
		rec.ID = nextID
	case recordVersionNew:
		if rec.ID != nextID {
			return StoredEvent{}, fmt.Errorf("event id %d, expected %d", rec.ID, nextID)
		}
	default:
		return StoredEvent{}, fmt.Errorf("unknown record version %d", rec.Version)
	}

	event, err := head.DecodeEvent(rec.Event)
	if err != nil {
		return StoredEvent{}, err
	}

	return StoredEvent{ID: rec.ID, Event: event}, nil
}
