// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package agentwire

import (
	"errors"
	"fmt"
)

// Error categories carried by [ProtocolError]. Match with errors.Is.
var (
	// ErrTruncated means a declared length runs past the data
	// available to it: the frame, or an argument inside the frame.
	ErrTruncated = errors.New("truncated")

	// ErrUnknownFrame means a frame type that has no schema in the
	// direction being encoded or decoded.
	ErrUnknownFrame = errors.New("unknown frame type")

	// ErrMissingArgument means a required argument was absent when
	// encoding.
	ErrMissingArgument = errors.New("missing argument")

	// ErrInvalidArgument means an argument value was of the wrong type
	// or out of range for its field codec.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrTrailingBytes means bytes were left over after the last
	// argument of a frame, or in the stream when it ended.
	ErrTrailingBytes = errors.New("trailing bytes")

	// ErrFrameTooLarge means a frame length above MaxFrameLength.
	ErrFrameTooLarge = errors.New("frame too large")

	// ErrSizeMismatch means a field codec wrote a different number of
	// bytes than it declared. It indicates a codec bug, not bad input.
	ErrSizeMismatch = errors.New("encoded size mismatch")

	// ErrOutOfOrder means a frame arrived that the client was not
	// waiting for: either its type is not an accepted reply to the
	// outstanding request, or no request was outstanding at all.
	ErrOutOfOrder = errors.New("frame out of order")
)

// ProtocolError reports a framing or protocol violation. Once one
// occurs the byte stream cannot be resynchronized, so the connection
// that produced it must be torn down.
type ProtocolError struct {
	// Frame is the name of the frame type involved, or empty when the
	// type itself could not be determined.
	Frame string

	// Err is the category (one of the Err* values above), possibly
	// wrapped by a field codec with more detail.
	Err error

	// Detail describes what was wrong.
	Detail string
}

func (e *ProtocolError) Error() string {
	if e.Frame == "" {
		return fmt.Sprintf("ssh agent protocol: %s", e.Detail)
	}
	return fmt.Sprintf("ssh agent protocol: %s: %s", e.Frame, e.Detail)
}

func (e *ProtocolError) Unwrap() error { return e.Err }

func protocolError(frame string, category error, format string, args ...any) *ProtocolError {
	return &ProtocolError{
		Frame:  frame,
		Err:    category,
		Detail: fmt.Sprintf(format, args...),
	}
}
