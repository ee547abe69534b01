package journal

import (
	"encoding/binary"
	"hash/crc32"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/lagoon-network/lagoon/src/head"
	"github.com/sirupsen/logrus"
)

/*
FileJournal stores one length-prefixed, checksummed frame per record:

	4 bytes  big-endian payload length
	n bytes  payload (versioned record encoding)
	4 bytes  big-endian CRC32 (IEEE) of the payload

A crash can only tear the last frame, so a short tail is truncated on open.
A full frame whose checksum does not match is real corruption and fails with
CorruptRecord.
*/

const frameHeaderSize = 4
const frameTrailerSize = 4

// journalRegistry tracks live FileJournals by path so that a second journal
// on the same file can be denied reads once the first one has written.
var (
	registryMu sync.Mutex
	registry   = map[string]*FileJournal{}
)

// FileJournal is the file-backed Journal.
type FileJournal struct {
	mu sync.Mutex

	path   string
	file   *os.File
	logger *logrus.Entry

	nextID   uint64
	appended bool
	closed   bool

	// owner is the journal that holds the file, when this one does not
	owner *FileJournal
}

// NewFileJournal opens or creates the journal file at path and recovers any
// torn tail. If another live journal already owns the path, the returned
// journal is secondary: its reads fail with IncorrectAccess once the owner
// has appended.
func NewFileJournal(path string, logger *logrus.Entry) (*FileJournal, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, &IoError{Cause: err}
	}

	if err := os.MkdirAll(filepath.Dir(abs), 0700); err != nil {
		return nil, &IoError{Cause: err}
	}

	file, err := os.OpenFile(abs, os.O_RDWR|os.O_CREATE, 0600)
	if err != nil {
		return nil, &IoError{Cause: err}
	}

	j := &FileJournal{
		path:   abs,
		file:   file,
		logger: logger,
	}

	registryMu.Lock()
	if owner, ok := registry[abs]; ok && !owner.closed {
		j.owner = owner
	} else {
		registry[abs] = j
	}
	registryMu.Unlock()

	// initial scan sets nextID and truncates a torn tail
	if _, err := j.scan(true); err != nil {
		file.Close()
		return nil, err
	}

	return j, nil
}

// Append implements the Journal interface.
func (j *FileJournal) Append(e head.Event) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.owner != nil {
		return &IncorrectAccessError{Path: j.path}
	}

	payload, err := encodeRecord(j.nextID, e)
	if err != nil {
		return err
	}

	frame := make([]byte, frameHeaderSize+len(payload)+frameTrailerSize)
	binary.BigEndian.PutUint32(frame, uint32(len(payload)))
	copy(frame[frameHeaderSize:], payload)
	binary.BigEndian.PutUint32(frame[frameHeaderSize+len(payload):], crc32.ChecksumIEEE(payload))

	if _, err := j.file.Seek(0, io.SeekEnd); err != nil {
		return &IoError{Cause: err}
	}
	if _, err := j.file.Write(frame); err != nil {
		return &IoError{Cause: err}
	}
	if err := j.file.Sync(); err != nil {
		return &IoError{Cause: err}
	}

	j.nextID++
	j.appended = true

	return nil
}

// LoadAll implements the Journal interface.
func (j *FileJournal) LoadAll() ([]StoredEvent, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.owner != nil {
		j.owner.mu.Lock()
		ownerAppended := j.owner.appended
		j.owner.mu.Unlock()
		if ownerAppended {
			return nil, &IncorrectAccessError{Path: j.path}
		}
	}

	return j.scan(false)
}

// scan reads every frame from the start of the file. When truncate is set, a
// torn tail is cut off; otherwise it fails the scan.
func (j *FileJournal) scan(truncate bool) ([]StoredEvent, error) {
	if _, err := j.file.Seek(0, io.SeekStart); err != nil {
		return nil, &IoError{Cause: err}
	}

	res := []StoredEvent{}
	var offset int64
	j.nextID = 0

	for {
		header := make([]byte, frameHeaderSize)
		_, err := io.ReadFull(j.file, header)
		if err == io.EOF {
			break
		}
		if err == io.ErrUnexpectedEOF {
			return res, j.handleTornTail(offset, truncate)
		}
		if err != nil {
			return nil, &IoError{Cause: err}
		}

		length := binary.BigEndian.Uint32(header)
		body := make([]byte, int(length)+frameTrailerSize)
		if _, err := io.ReadFull(j.file, body); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				return res, j.handleTornTail(offset, truncate)
			}
			return nil, &IoError{Cause: err}
		}

		payload := body[:length]
		sum := binary.BigEndian.Uint32(body[length:])
		if crc32.ChecksumIEEE(payload) != sum {
			return nil, &CorruptRecordError{Offset: offset, Reason: "checksum mismatch"}
		}

		stored, err := decodeRecord(payload, j.nextID)
		if err != nil {
			return nil, &CorruptRecordError{Offset: offset, Reason: err.Error()}
		}

		res = append(res, stored)
		j.nextID++
		offset += int64(frameHeaderSize) + int64(length) + int64(frameTrailerSize)
	}

	return res, nil
}

func (j *FileJournal) handleTornTail(offset int64, truncate bool) error {
	if !truncate {
		return &CorruptRecordError{Offset: offset, Reason: "torn record"}
	}

	if j.logger != nil {
		j.logger.WithFields(logrus.Fields{
			"path":   j.path,
			"offset": offset,
		}).Warn("truncating torn journal tail")
	}

	if err := j.file.Truncate(offset); err != nil {
		return &IoError{Cause: err}
	}
	return nil
}

// Close implements the Journal interface.
func (j *FileJournal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.closed {
		return nil
	}
	j.closed = true

	registryMu.Lock()
	if registry[j.path] == j {
		delete(registry, j.path)
	}
	registryMu.Unlock()

	if err := j.file.Close(); err != nil {
		return &IoError{Cause: err}
	}
	return nil
}
