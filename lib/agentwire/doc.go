// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package agentwire implements the framing of the OpenSSH agent
// protocol (draft-miller-ssh-agent).
//
// Every message on the socket is
//
//	[uint32 big-endian length][uint8 type][payload]
//
// where length counts the type byte and the payload. Each frame type
// has a fixed, positional argument schema built from a small set of
// field codecs (length-prefixed buffers and strings, big-endian
// integers, sign flags, key constraints, identity lists and raw
// private key serializations). The schemas live in one static
// registry, split by direction: frames a client sends ([FromClient])
// and frames an agent sends ([FromAgent]).
//
// [Encoder] turns one typed [Frame] into exactly one wire frame.
// [Decoder] accepts arbitrary chunks of a byte stream and returns every
// frame that has become complete, keeping partial frames buffered.
// Decoding validates the size of every argument against the frame
// boundary before any value is decoded, so a malformed argument can
// never cause a read past the frame or a partially populated result.
//
// Both transforms are direction-bound but otherwise symmetric: an agent
// implementation uses NewEncoder(FromAgent) and NewDecoder(FromClient).
package agentwire
