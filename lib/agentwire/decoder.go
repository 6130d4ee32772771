// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package agentwire

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// Decoder turns a byte stream of one direction back into frames. Bytes
// arrive in arbitrary chunks through Write; the decoder keeps any
// incomplete frame until the rest of it arrives.
//
// A framing error leaves the stream unsynchronized, so after Write or
// Close returns an error the decoder refuses all further input with
// the same error. A Decoder is not safe for concurrent use.
type Decoder struct {
	direction Direction
	pending   []byte
	err       error
}

// NewDecoder returns a decoder for frames travelling in direction. A
// client decodes FromAgent; an agent decodes FromClient.
func NewDecoder(direction Direction) *Decoder {
	return &Decoder{direction: direction}
}

// Write appends chunk to the stream and returns every frame it
// completes, in stream order. When the stream contains an invalid
// frame, Write returns the frames that preceded it together with the
// error.
func (d *Decoder) Write(chunk []byte) ([]Frame, error) {
	if d.err != nil {
		return nil, d.err
	}
	d.pending = append(d.pending, chunk...)

	var frames []Frame
	consumed := 0
	for {
		remaining := d.pending[consumed:]
		if len(remaining) < 4 {
			break
		}
		length := binary.BigEndian.Uint32(remaining)
		if err := checkLength(length); err != nil {
			d.fail(err)
			return frames, err
		}
		if uint64(len(remaining)-4) < uint64(length) {
			break
		}
		frame, err := decodeBody(d.direction, remaining[4:4+length])
		if err != nil {
			d.fail(err)
			return frames, err
		}
		frames = append(frames, frame)
		consumed += 4 + int(length)
	}

	// Keep the unconsumed tail in a fresh slice so a large chunk that
	// has been fully consumed does not stay referenced.
	if consumed > 0 {
		d.pending = bytes.Clone(d.pending[consumed:])
	}
	return frames, nil
}

// Buffered returns the number of bytes held for an incomplete frame.
func (d *Decoder) Buffered() int { return len(d.pending) }

// Close reports whether the stream ended cleanly. Bytes of an
// incomplete frame still held at close are an error.
func (d *Decoder) Close() error {
	if d.err != nil {
		return d.err
	}
	if len(d.pending) > 0 {
		err := protocolError("", ErrTrailingBytes,
			"stream ended with %d leftover bytes never consumed", len(d.pending))
		d.fail(err)
		return err
	}
	return nil
}

// Reset discards buffered input and any sticky error so the decoder
// can be used for a new stream.
func (d *Decoder) Reset() {
	d.pending = nil
	d.err = nil
}

func (d *Decoder) fail(err error) {
	d.err = err
	d.pending = nil
}

// ReadFrame reads exactly one frame of direction from r. It returns
// io.EOF only when r ends before the first byte of the length prefix;
// a stream that ends inside a frame returns io.ErrUnexpectedEOF.
func ReadFrame(r io.Reader, direction Direction) (Frame, error) {
	var header [4]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, err
	}
	length := binary.BigEndian.Uint32(header[:])
	if err := checkLength(length); err != nil {
		return nil, err
	}
	body := make([]byte, length)
	if _, err := io.ReadFull(r, body); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return nil, fmt.Errorf("reading %d byte frame body: %w", length, err)
	}
	return decodeBody(direction, body)
}

func checkLength(length uint32) error {
	if length == 0 {
		return protocolError("", ErrTruncated, "zero-length frame has no type byte")
	}
	if length > MaxFrameLength {
		return protocolError("", ErrFrameTooLarge, "frame length %d exceeds maximum %d", length, MaxFrameLength)
	}
	return nil
}

// decodeBody decodes one frame body (type byte plus payload). The body
// is copied first, so the returned frame never aliases the caller's
// buffer.
//
// Decoding is two passes: the first walks every argument with
// DecodedSize to prove the payload is exactly the arguments' total
// size, and only then does the second pass materialize values.
func decodeBody(direction Direction, body []byte) (Frame, error) {
	body = bytes.Clone(body)
	frameType := FrameType(body[0])
	entry := lookup(direction, frameType)
	if entry == nil {
		if other := lookupAny(frameType); other != nil {
			return nil, protocolError(other.name, ErrUnknownFrame,
				"%s frame is not valid from the %s side", other.name, direction)
		}
		return nil, protocolError("", ErrUnknownFrame, "unknown frame type %d", uint8(frameType))
	}

	offset := 1
	for _, arg := range entry.arguments {
		size, err := arg.field.DecodedSize(body, offset)
		if err != nil {
			return nil, argumentError(entry.name, arg.name, err)
		}
		offset += size
	}
	if offset != len(body) {
		return nil, protocolError(entry.name, ErrTrailingBytes,
			"%d bytes after the last argument", len(body)-offset)
	}

	values := make([]any, len(entry.arguments))
	offset = 1
	for index, arg := range entry.arguments {
		value, next, err := arg.field.Decode(body, offset)
		if err != nil {
			return nil, argumentError(entry.name, arg.name, err)
		}
		values[index] = value
		offset = next
	}
	return entry.build(values), nil
}
