// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"io"

	"github.com/fxamacker/cbor/v2"
)

var (
	encodeMode cbor.EncMode
	decodeMode cbor.DecMode
)

func init() {
	options := cbor.CoreDetEncOptions()
	// Request history carries timestamps; RFC 3339 text keeps them
	// readable in diagnostic notation.
	options.Time = cbor.TimeRFC3339Nano
	var err error
	encodeMode, err = options.EncMode()
	if err != nil {
		panic("codec: building CBOR encoder: " + err.Error())
	}
	decodeMode, err = cbor.DecOptions{
		TimeTag: cbor.DecTagOptional,
	}.DecMode()
	if err != nil {
		panic("codec: building CBOR decoder: " + err.Error())
	}
}

// Marshal encodes value with Core Deterministic Encoding.
func Marshal(value any) ([]byte, error) {
	return encodeMode.Marshal(value)
}

// Unmarshal decodes data into value.
func Unmarshal(data []byte, value any) error {
	return decodeMode.Unmarshal(data, value)
}

// Write encodes value as one CBOR item on w.
func Write(w io.Writer, value any) error {
	return encodeMode.NewEncoder(w).Encode(value)
}

// Diagnose renders one CBOR item in extended diagnostic notation.
func Diagnose(data []byte) (string, error) {
	return cbor.Diagnose(data)
}
