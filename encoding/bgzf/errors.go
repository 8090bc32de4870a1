package bgzf

import (
	"fmt"

	"github.com/grailbio/base/errors"
)

// errInsufficientData signals that the framing codec could not complete a
// parse within the current window. It is internal: the reader reacts to
// it by pulling more bytes from the source, and it must never be
// surfaced to a caller.
var errInsufficientData = fmt.Errorf("bgzf: insufficient data")

// BadFormatError reports that a byte window did not contain a well-formed
// BGZF member: wrong gzip magic, missing "BC" extra subfield, or a
// malformed subfield length. The stream is unrecoverable once this is
// returned.
type BadFormatError struct {
	Reason string
}

func (e *BadFormatError) Error() string {
	return errors.E("bgzf: bad format", e.Reason).Error()
}

func badFormat(reason string) error {
	return &BadFormatError{Reason: reason}
}

// BadPayloadError reports that INFLATE failed, a CRC32 did not match, or
// an inflated length did not match the trailer's ISIZE, for the member at
// Index within a batch.
type BadPayloadError struct {
	Index int
	Cause error
}

func (e *BadPayloadError) Error() string {
	return errors.E(e.Cause, fmt.Sprintf("bgzf: bad payload at batch index %d", e.Index)).Error()
}

func (e *BadPayloadError) Unwrap() error { return e.Cause }

func badPayload(index int, cause error) error {
	return &BadPayloadError{Index: index, Cause: cause}
}

// ErrBlockTooLarge is returned by the reader when a single member's
// inflated size exceeds the inflate buffer's total capacity; no amount of
// cursor-reset looping can make room for it, and earlier revisions of
// this algorithm deadlocked on exactly this condition.
var ErrBlockTooLarge = fmt.Errorf("bgzf: member inflated size exceeds reader buffer capacity")

// ErrNotBGZF is returned when a window parses as a valid gzip member but
// lacks the "BC" extra subfield that makes it a BGZF member.
var ErrNotBGZF = badFormat("not BGZF: missing BC extra subfield")

// ErrShortWrite is returned, or wrapped by a *ShortWriteError, when the
// sink accepts fewer bytes than were given to it, or fails the write
// outright. The writer is considered poisoned afterward. Callers should
// match it with errors.Is, since a failed dst.Write is reported as a
// *ShortWriteError wrapping the sink's underlying error.
var ErrShortWrite = fmt.Errorf("bgzf: short write to sink")

// ShortWriteError wraps the error a sink's Write returned when it could
// not accept a full header, payload, or trailer write. Its Is method
// matches ErrShortWrite, so errors.Is(err, ErrShortWrite) still succeeds
// even though Unwrap exposes the sink's own error instead.
type ShortWriteError struct {
	Cause error
}

func (e *ShortWriteError) Error() string {
	return errors.E(e.Cause, "bgzf: short write to sink").Error()
}

func (e *ShortWriteError) Unwrap() error { return e.Cause }

func (e *ShortWriteError) Is(target error) bool { return target == ErrShortWrite }

func shortWrite(cause error) error {
	if cause == nil {
		return ErrShortWrite
	}
	return &ShortWriteError{Cause: cause}
}
