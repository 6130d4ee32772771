// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package agentwire

import (
	"encoding/binary"
	"fmt"
	"math"
)

// FieldCodec encodes and decodes one argument of a frame.
//
// EncodedSize and Encode must agree: Encode writes exactly EncodedSize
// bytes. DecodedSize and Decode must agree in the same way. DecodedSize
// is used to validate a frame before anything is decoded, so it must
// not have side effects and must never index past buffer; a declared
// length that does not fit is reported as ErrTruncated.
//
// Values cross this interface as any so the frame registry can stay a
// declarative table. Each codec documents the Go type it accepts and
// rejects anything else with ErrInvalidArgument.
type FieldCodec interface {
	EncodedSize(value any) (int, error)
	Encode(buffer []byte, offset int, value any) (int, error)
	DecodedSize(buffer []byte, offset int) (int, error)
	Decode(buffer []byte, offset int) (any, int, error)
}

// Field codecs used by the frame registry.
var (
	// Buffer is a uint32 length followed by raw bytes. Value: []byte.
	Buffer FieldCodec = bufferField{}

	// String is Buffer framing around UTF-8 text. Value: string.
	String FieldCodec = stringField{}

	// Uint32 is a big-endian uint32. Value: uint32.
	Uint32 FieldCodec = uint32Field{}

	// SignFlagsField is the sign request flag word. Value: SignFlags.
	SignFlagsField FieldCodec = signFlagsField{}

	// Constraints is a run of tagged key constraints that extends to
	// the end of the frame or to the first unrecognized tag. Value:
	// []Constraint.
	Constraints FieldCodec = constraintsField{}

	// IdentityField is a key blob followed by a comment. Value:
	// Identity.
	IdentityField FieldCodec = identityField{}

	// Identities is a uint32 count followed by that many identities.
	// Value: []Identity.
	Identities FieldCodec = identitiesField{}

	// PrivateKey is an OpenSSH private key serialization with no outer
	// length prefix. Its extent is found by walking the key type's
	// fields. Value: []byte.
	PrivateKey FieldCodec = privateKeyField{}
)

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrInvalidArgument}, args...)...)
}

func truncated(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrTruncated}, args...)...)
}

// readUint32 reads a big-endian uint32 at offset after checking that
// four bytes remain.
func readUint32(buffer []byte, offset int) (uint32, error) {
	if offset < 0 || offset > len(buffer) || len(buffer)-offset < 4 {
		return 0, truncated("need 4 bytes at offset %d, have %d", offset, max(len(buffer)-offset, 0))
	}
	return binary.BigEndian.Uint32(buffer[offset:]), nil
}

// prefixedSize returns the full size (prefix included) of the
// length-prefixed item at offset, checking that it fits in buffer.
func prefixedSize(buffer []byte, offset int) (int, error) {
	length, err := readUint32(buffer, offset)
	if err != nil {
		return 0, err
	}
	available := len(buffer) - offset - 4
	if uint64(length) > uint64(available) {
		return 0, truncated("declared length %d at offset %d exceeds the %d bytes remaining", length, offset, available)
	}
	return 4 + int(length), nil
}

// checkRoom verifies that size bytes can be written at offset.
func checkRoom(buffer []byte, offset, size int) error {
	if offset < 0 || size < 0 || len(buffer)-offset < size {
		return invalid("%d bytes do not fit at offset %d of a %d byte buffer", size, offset, len(buffer))
	}
	return nil
}

func putPrefixed(buffer []byte, offset int, data []byte) (int, error) {
	if err := checkRoom(buffer, offset, 4+len(data)); err != nil {
		return offset, err
	}
	binary.BigEndian.PutUint32(buffer[offset:], uint32(len(data)))
	offset += 4
	offset += copy(buffer[offset:], data)
	return offset, nil
}

func prefixedLength(length int) (int, error) {
	if uint64(length) > math.MaxUint32 {
		return 0, invalid("length %d does not fit a uint32 prefix", length)
	}
	return 4 + length, nil
}

type bufferField struct{}

func (bufferField) EncodedSize(value any) (int, error) {
	data, ok := value.([]byte)
	if !ok {
		return 0, invalid("want []byte, got %T", value)
	}
	return prefixedLength(len(data))
}

func (bufferField) Encode(buffer []byte, offset int, value any) (int, error) {
	data, ok := value.([]byte)
	if !ok {
		return offset, invalid("want []byte, got %T", value)
	}
	return putPrefixed(buffer, offset, data)
}

func (bufferField) DecodedSize(buffer []byte, offset int) (int, error) {
	return prefixedSize(buffer, offset)
}

func (bufferField) Decode(buffer []byte, offset int) (any, int, error) {
	size, err := prefixedSize(buffer, offset)
	if err != nil {
		return nil, offset, err
	}
	data := make([]byte, size-4)
	copy(data, buffer[offset+4:offset+size])
	return data, offset + size, nil
}

type stringField struct{}

func (stringField) EncodedSize(value any) (int, error) {
	text, ok := value.(string)
	if !ok {
		return 0, invalid("want string, got %T", value)
	}
	return prefixedLength(len(text))
}

func (stringField) Encode(buffer []byte, offset int, value any) (int, error) {
	text, ok := value.(string)
	if !ok {
		return offset, invalid("want string, got %T", value)
	}
	return putPrefixed(buffer, offset, []byte(text))
}

func (stringField) DecodedSize(buffer []byte, offset int) (int, error) {
	return prefixedSize(buffer, offset)
}

func (stringField) Decode(buffer []byte, offset int) (any, int, error) {
	size, err := prefixedSize(buffer, offset)
	if err != nil {
		return nil, offset, err
	}
	return string(buffer[offset+4 : offset+size]), offset + size, nil
}

type uint32Field struct{}

func (uint32Field) EncodedSize(value any) (int, error) {
	if _, ok := value.(uint32); !ok {
		return 0, invalid("want uint32, got %T", value)
	}
	return 4, nil
}

func (uint32Field) Encode(buffer []byte, offset int, value any) (int, error) {
	number, ok := value.(uint32)
	if !ok {
		return offset, invalid("want uint32, got %T", value)
	}
	if err := checkRoom(buffer, offset, 4); err != nil {
		return offset, err
	}
	binary.BigEndian.PutUint32(buffer[offset:], number)
	return offset + 4, nil
}

func (uint32Field) DecodedSize(buffer []byte, offset int) (int, error) {
	if _, err := readUint32(buffer, offset); err != nil {
		return 0, err
	}
	return 4, nil
}

func (uint32Field) Decode(buffer []byte, offset int) (any, int, error) {
	number, err := readUint32(buffer, offset)
	if err != nil {
		return nil, offset, err
	}
	return number, offset + 4, nil
}

type signFlagsField struct{}

func (signFlagsField) EncodedSize(value any) (int, error) {
	if _, ok := value.(SignFlags); !ok {
		return 0, invalid("want SignFlags, got %T", value)
	}
	return 4, nil
}

func (signFlagsField) Encode(buffer []byte, offset int, value any) (int, error) {
	flags, ok := value.(SignFlags)
	if !ok {
		return offset, invalid("want SignFlags, got %T", value)
	}
	return Uint32.Encode(buffer, offset, uint32(flags))
}

func (signFlagsField) DecodedSize(buffer []byte, offset int) (int, error) {
	return Uint32.DecodedSize(buffer, offset)
}

func (signFlagsField) Decode(buffer []byte, offset int) (any, int, error) {
	number, err := readUint32(buffer, offset)
	if err != nil {
		return nil, offset, err
	}
	return SignFlags(number), offset + 4, nil
}

type constraintsField struct{}

func constraintSize(constraint Constraint) (int, error) {
	switch constraint.Kind {
	case ConstraintLifetime:
		return 5, nil
	case ConstraintConfirm:
		return 1, nil
	}
	return 0, invalid("unknown constraint kind %d", constraint.Kind)
}

func (constraintsField) EncodedSize(value any) (int, error) {
	constraints, ok := value.([]Constraint)
	if !ok {
		return 0, invalid("want []Constraint, got %T", value)
	}
	total := 0
	for _, constraint := range constraints {
		size, err := constraintSize(constraint)
		if err != nil {
			return 0, err
		}
		total += size
	}
	return total, nil
}

func (constraintsField) Encode(buffer []byte, offset int, value any) (int, error) {
	constraints, ok := value.([]Constraint)
	if !ok {
		return offset, invalid("want []Constraint, got %T", value)
	}
	for _, constraint := range constraints {
		size, err := constraintSize(constraint)
		if err != nil {
			return offset, err
		}
		if err := checkRoom(buffer, offset, size); err != nil {
			return offset, err
		}
		buffer[offset] = byte(constraint.Kind)
		if constraint.Kind == ConstraintLifetime {
			binary.BigEndian.PutUint32(buffer[offset+1:], constraint.LifetimeSeconds)
		}
		offset += size
	}
	return offset, nil
}

func (constraintsField) DecodedSize(buffer []byte, offset int) (int, error) {
	start := offset
	for offset < len(buffer) {
		switch ConstraintKind(buffer[offset]) {
		case ConstraintLifetime:
			if _, err := readUint32(buffer, offset+1); err != nil {
				return 0, err
			}
			offset += 5
		case ConstraintConfirm:
			offset++
		default:
			return offset - start, nil
		}
	}
	return offset - start, nil
}

func (constraintsField) Decode(buffer []byte, offset int) (any, int, error) {
	constraints := []Constraint{}
	for offset < len(buffer) {
		switch ConstraintKind(buffer[offset]) {
		case ConstraintLifetime:
			seconds, err := readUint32(buffer, offset+1)
			if err != nil {
				return nil, offset, err
			}
			constraints = append(constraints, Lifetime(seconds))
			offset += 5
		case ConstraintConfirm:
			constraints = append(constraints, Confirm())
			offset++
		default:
			return constraints, offset, nil
		}
	}
	return constraints, offset, nil
}

type identityField struct{}

func (identityField) EncodedSize(value any) (int, error) {
	identity, ok := value.(Identity)
	if !ok {
		return 0, invalid("want Identity, got %T", value)
	}
	keySize, err := prefixedLength(len(identity.KeyBlob))
	if err != nil {
		return 0, err
	}
	commentSize, err := prefixedLength(len(identity.Comment))
	if err != nil {
		return 0, err
	}
	return keySize + commentSize, nil
}

func (identityField) Encode(buffer []byte, offset int, value any) (int, error) {
	identity, ok := value.(Identity)
	if !ok {
		return offset, invalid("want Identity, got %T", value)
	}
	offset, err := putPrefixed(buffer, offset, identity.KeyBlob)
	if err != nil {
		return offset, err
	}
	return putPrefixed(buffer, offset, []byte(identity.Comment))
}

func (identityField) DecodedSize(buffer []byte, offset int) (int, error) {
	keySize, err := prefixedSize(buffer, offset)
	if err != nil {
		return 0, fmt.Errorf("identity key: %w", err)
	}
	commentSize, err := prefixedSize(buffer, offset+keySize)
	if err != nil {
		return 0, fmt.Errorf("identity comment: %w", err)
	}
	return keySize + commentSize, nil
}

func (identityField) Decode(buffer []byte, offset int) (any, int, error) {
	key, offset, err := Buffer.Decode(buffer, offset)
	if err != nil {
		return nil, offset, fmt.Errorf("identity key: %w", err)
	}
	comment, offset, err := String.Decode(buffer, offset)
	if err != nil {
		return nil, offset, fmt.Errorf("identity comment: %w", err)
	}
	return Identity{KeyBlob: key.([]byte), Comment: comment.(string)}, offset, nil
}

type identitiesField struct{}

func (identitiesField) EncodedSize(value any) (int, error) {
	identities, ok := value.([]Identity)
	if !ok {
		return 0, invalid("want []Identity, got %T", value)
	}
	if uint64(len(identities)) > math.MaxUint32 {
		return 0, invalid("%d identities do not fit a uint32 count", len(identities))
	}
	total := 4
	for _, identity := range identities {
		size, err := IdentityField.EncodedSize(identity)
		if err != nil {
			return 0, err
		}
		total += size
	}
	return total, nil
}

func (identitiesField) Encode(buffer []byte, offset int, value any) (int, error) {
	identities, ok := value.([]Identity)
	if !ok {
		return offset, invalid("want []Identity, got %T", value)
	}
	offset, err := Uint32.Encode(buffer, offset, uint32(len(identities)))
	if err != nil {
		return offset, err
	}
	for _, identity := range identities {
		if offset, err = IdentityField.Encode(buffer, offset, identity); err != nil {
			return offset, err
		}
	}
	return offset, nil
}

func (identitiesField) DecodedSize(buffer []byte, offset int) (int, error) {
	count, err := readUint32(buffer, offset)
	if err != nil {
		return 0, fmt.Errorf("identity count: %w", err)
	}
	position := offset + 4
	for index := uint32(0); index < count; index++ {
		size, err := IdentityField.DecodedSize(buffer, position)
		if err != nil {
			return 0, fmt.Errorf("identity %d of %d: %w", index, count, err)
		}
		position += size
	}
	return position - offset, nil
}

func (identitiesField) Decode(buffer []byte, offset int) (any, int, error) {
	count, err := readUint32(buffer, offset)
	if err != nil {
		return nil, offset, fmt.Errorf("identity count: %w", err)
	}
	offset += 4
	// The count is attacker-controlled; every identity needs at least
	// eight bytes, which bounds the allocation by the frame size.
	capacity := min(int64(count), int64(len(buffer)-offset)/8)
	identities := make([]Identity, 0, capacity)
	for index := uint32(0); index < count; index++ {
		value, next, err := IdentityField.Decode(buffer, offset)
		if err != nil {
			return nil, offset, fmt.Errorf("identity %d of %d: %w", index, count, err)
		}
		identities = append(identities, value.(Identity))
		offset = next
	}
	return identities, offset, nil
}

type privateKeyField struct{}

func (privateKeyField) EncodedSize(value any) (int, error) {
	blob, ok := value.([]byte)
	if !ok {
		return 0, invalid("want []byte, got %T", value)
	}
	return len(blob), nil
}

func (privateKeyField) Encode(buffer []byte, offset int, value any) (int, error) {
	blob, ok := value.([]byte)
	if !ok {
		return offset, invalid("want []byte, got %T", value)
	}
	if err := checkRoom(buffer, offset, len(blob)); err != nil {
		return offset, err
	}
	return offset + copy(buffer[offset:], blob), nil
}

func (privateKeyField) DecodedSize(buffer []byte, offset int) (int, error) {
	if offset < 0 || offset > len(buffer) {
		return 0, truncated("private key offset %d outside %d byte frame", offset, len(buffer))
	}
	return PrivateKeyLength(buffer[offset:])
}

func (privateKeyField) Decode(buffer []byte, offset int) (any, int, error) {
	size, err := PrivateKey.DecodedSize(buffer, offset)
	if err != nil {
		return nil, offset, err
	}
	blob := make([]byte, size)
	copy(blob, buffer[offset:offset+size])
	return blob, offset + size, nil
}
