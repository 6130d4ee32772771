// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package agentkey adapts golang.org/x/crypto/ssh key types to the byte
// layouts the SSH agent protocol carries.
//
// The agent protocol moves keys around as opaque blobs: public keys
// and certificates in SSH wire format, and private keys in the OpenSSH
// private serialization (key type followed by the key's public and
// private parameters). [MarshalPrivateKey] and [MarshalCertificate]
// produce the latter from standard library key values; [KeyType],
// [IsCertificateBlob] and [HashAlgorithm] inspect blobs the agent
// returns without requiring x/crypto to understand the key type.
package agentkey
