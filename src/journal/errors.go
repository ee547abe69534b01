package journal

import (
	"fmt"
)

// CorruptRecordError reports a record that is damaged beyond the recoverable
// torn tail: a checksum mismatch, an undecodable payload, or a gap in the
// event identifiers.
type CorruptRecordError struct {
	Offset int64
	Reason string
}

func (e *CorruptRecordError) Error() string {
	return fmt.Sprintf("corrupt journal record at offset %d: %s", e.Offset, e.Reason)
}

// IncorrectAccessError reports a read from a journal whose file is owned by
// another live writer.
type IncorrectAccessError struct {
	Path string
}

func (e *IncorrectAccessError) Error() string {
	return fmt.Sprintf("journal %s is owned by another writer", e.Path)
}

// IoError wraps an underlying filesystem or database failure.
type IoError struct {
	Cause error
}

func (e *IoError) Error() string {
	return fmt.Sprintf("journal io error: %v", e.Cause)
}
