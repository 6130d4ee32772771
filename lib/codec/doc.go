// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec is the CBOR encoding used for machine-readable agentctl
// output and request history dumps. It wraps fxamacker/cbor with one
// deterministic encoder configuration so the same listing always
// produces the same bytes, which makes output diffable and hashable.
package codec
