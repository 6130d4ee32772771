// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package agentwire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// Encoder turns frames of one direction into wire bytes. It holds no
// state beyond the direction and is safe for concurrent use.
type Encoder struct {
	direction Direction
}

// NewEncoder returns an encoder for frames travelling in direction.
// A client encodes FromClient; an agent encodes FromAgent.
func NewEncoder(direction Direction) *Encoder {
	return &Encoder{direction: direction}
}

// Direction returns the direction the encoder was created for.
func (e *Encoder) Direction() Direction { return e.direction }

// Encode returns the complete wire form of frame: the uint32 length,
// the type byte, and the encoded arguments. All errors are
// *ProtocolError values.
func (e *Encoder) Encode(frame Frame) ([]byte, error) {
	if frame == nil {
		return nil, protocolError("", ErrUnknownFrame, "nil frame")
	}
	frameType := frame.FrameType()
	entry := lookup(e.direction, frameType)
	if entry == nil {
		return nil, protocolError(frameType.String(), ErrUnknownFrame,
			"frame type %d cannot be sent by the %s side", uint8(frameType), e.direction)
	}

	values := make([]any, len(entry.arguments))
	length := 1
	for index, arg := range entry.arguments {
		value := arg.get(frame)
		if value == nil {
			return nil, protocolError(entry.name, ErrMissingArgument, "argument %q is missing", arg.name)
		}
		size, err := arg.field.EncodedSize(value)
		if err != nil {
			return nil, argumentError(entry.name, arg.name, err)
		}
		values[index] = value
		length += size
	}
	if length > MaxFrameLength {
		return nil, protocolError(entry.name, ErrFrameTooLarge,
			"frame length %d exceeds maximum %d", length, MaxFrameLength)
	}

	buffer := make([]byte, 4+length)
	binary.BigEndian.PutUint32(buffer[0:4], uint32(length))
	buffer[4] = byte(frameType)
	offset := 5
	for index, arg := range entry.arguments {
		next, err := arg.field.Encode(buffer, offset, values[index])
		if err != nil {
			return nil, argumentError(entry.name, arg.name, err)
		}
		offset = next
	}
	if offset != len(buffer) {
		return nil, protocolError(entry.name, ErrSizeMismatch,
			"wrote %d bytes into a %d byte frame", offset, len(buffer))
	}
	return buffer, nil
}

// WriteFrame encodes frame for direction and writes it to w in a
// single call.
func WriteFrame(w io.Writer, direction Direction, frame Frame) error {
	data, err := NewEncoder(direction).Encode(frame)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("writing %s frame: %w", frame.FrameType(), err)
	}
	return nil
}

// argumentError wraps a field codec error as a *ProtocolError, keeping
// the codec's category when it has one.
func argumentError(frame, name string, err error) *ProtocolError {
	category := ErrInvalidArgument
	for _, candidate := range []error{ErrTruncated, ErrInvalidArgument, ErrTrailingBytes} {
		if errors.Is(err, candidate) {
			category = candidate
			break
		}
	}
	return &ProtocolError{
		Frame:  frame,
		Err:    fmt.Errorf("%w: argument %q: %w", category, name, err),
		Detail: fmt.Sprintf("argument %q: %v", name, err),
	}
}
