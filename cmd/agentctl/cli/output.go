// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"encoding/json"
	"errors"
	"io"
	"reflect"

	"github.com/bureau-foundation/sshagent/lib/codec"
)

// Output is an embeddable struct that adds --json and --cbor output to
// a command's params struct.
//
//	type listParams struct {
//	    cli.Output
//	    All bool `flag:"all" desc:"include certificates"`
//	}
//
//	// In Run:
//	if done, err := params.Emit(stdout, entries); done {
//	    return err
//	}
//	// ... text formatting ...
type Output struct {
	JSON bool `flag:"json" desc:"output as JSON"`
	CBOR bool `flag:"cbor" desc:"output as CBOR (Core Deterministic Encoding)"`
}

// Emit writes result to w in the selected structured format. Returns
// (true, err) when a format was selected, or (false, nil) when the
// caller should proceed with text formatting.
//
// Nil slices are normalized to empty slices, so the output is an empty
// array rather than null.
func (o *Output) Emit(w io.Writer, result any) (bool, error) {
	switch {
	case o.JSON && o.CBOR:
		return true, errors.New("--json and --cbor are mutually exclusive")
	case o.JSON:
		return true, WriteJSON(w, normalizeNilSlice(result))
	case o.CBOR:
		return true, codec.Write(w, normalizeNilSlice(result))
	}
	return false, nil
}

// WriteJSON marshals value as indented JSON and writes it to w.
func WriteJSON(w io.Writer, value any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(value)
}

func normalizeNilSlice(value any) any {
	v := reflect.ValueOf(value)
	if v.Kind() == reflect.Slice && v.IsNil() {
		return reflect.MakeSlice(v.Type(), 0, 0).Interface()
	}
	return value
}
