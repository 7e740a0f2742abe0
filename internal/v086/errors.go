package v086

import (
	"errors"
	"fmt"
)

var (
	// ErrBundleFormat marks framing that cannot be resynchronized. Fatal for the session.
	ErrBundleFormat = errors.New("bundle_format")
	// ErrInsufficientBytes is returned when a field read runs past the end of the
	// datagram. Over UDP this means the datagram is malformed and is dropped.
	ErrInsufficientBytes = errors.New("insufficient_bytes")
	// ErrUnknownMessageType is returned for a type id with no registered decoder.
	ErrUnknownMessageType = errors.New("unknown_message_type")
	// ErrMessageFormat marks a body that violates a required field constraint.
	ErrMessageFormat = errors.New("message_format")
	ErrUnknownCharset = errors.New("unknown_charset")
)

// IsFatal reports whether a decode error must terminate the session rather
// than just drop the datagram.
func IsFatal(err error) bool {
	return errors.Is(err, ErrBundleFormat) ||
		errors.Is(err, ErrUnknownMessageType) ||
		errors.Is(err, ErrMessageFormat)
}

func formatErr(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMessageFormat, fmt.Sprintf(format, args...))
}
