// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package agentwire

import (
	"fmt"
	"strings"

	"golang.org/x/crypto/cryptobyte"
)

// privateKeyLayout describes the OpenSSH private key serialization for
// one key type: whether a certificate blob follows the type string and
// how many length-prefixed fields follow after that.
type privateKeyLayout struct {
	certificate bool
	fields      int
}

var privateKeyLayouts = map[string]privateKeyLayout{
	"ssh-rsa":                                  {fields: 6}, // n e d iqmp p q
	"ssh-dss":                                  {fields: 5}, // p q g y x
	"ecdsa-sha2-nistp256":                      {fields: 3}, // curve Q d
	"ecdsa-sha2-nistp384":                      {fields: 3},
	"ecdsa-sha2-nistp521":                      {fields: 3},
	"ssh-ed25519":                              {fields: 2},                    // pub priv
	"ssh-rsa-cert-v01@openssh.com":             {certificate: true, fields: 4}, // d iqmp p q
	"ssh-dss-cert-v01@openssh.com":             {certificate: true, fields: 1}, // x
	"ecdsa-sha2-nistp256-cert-v01@openssh.com": {certificate: true, fields: 1},
	"ecdsa-sha2-nistp384-cert-v01@openssh.com": {certificate: true, fields: 1},
	"ecdsa-sha2-nistp521-cert-v01@openssh.com": {certificate: true, fields: 1},
	"ssh-ed25519-cert-v01@openssh.com":         {certificate: true, fields: 2},
}

// IsCertificateType reports whether keyType names an OpenSSH
// certificate key type.
func IsCertificateType(keyType string) bool {
	return strings.HasSuffix(keyType, "-cert-v01@openssh.com")
}

// PrivateKeyType returns the key type string that leads a private key
// serialization.
func PrivateKeyType(blob []byte) (string, error) {
	input := cryptobyte.String(blob)
	var keyType cryptobyte.String
	if !ReadString(&input, &keyType) {
		return "", truncated("private key type string")
	}
	return string(keyType), nil
}

// PrivateKeyLength walks the private key serialization at the start of
// blob and returns its length in bytes. Bytes after the key (the
// comment and any constraints of an add-identity frame) are not
// examined. Key types outside the known set are rejected with
// ErrInvalidArgument, since the length of their fields is unknowable.
func PrivateKeyLength(blob []byte) (int, error) {
	input := cryptobyte.String(blob)
	var keyType cryptobyte.String
	if !ReadString(&input, &keyType) {
		return 0, truncated("private key type string")
	}
	layout, ok := privateKeyLayouts[string(keyType)]
	if !ok {
		return 0, invalid("unsupported private key type %q", string(keyType))
	}
	if layout.certificate {
		var certificate cryptobyte.String
		if !ReadString(&input, &certificate) {
			return 0, truncated("%s certificate blob", keyType)
		}
	}
	for index := range layout.fields {
		var field cryptobyte.String
		if !ReadString(&input, &field) {
			return 0, truncated("%s private key field %d of %d", keyType, index+1, layout.fields)
		}
	}
	return len(blob) - len(input), nil
}

// ReadString reads an SSH wire string, a uint32 length followed by
// that many bytes, from input into out.
func ReadString(input, out *cryptobyte.String) bool {
	var length uint32
	return input.ReadUint32(&length) && input.ReadBytes((*[]byte)(out), int(length))
}

// ValidatePrivateKey checks that blob is exactly one well-formed
// private key serialization.
func ValidatePrivateKey(blob []byte) error {
	length, err := PrivateKeyLength(blob)
	if err != nil {
		return err
	}
	if length != len(blob) {
		return fmt.Errorf("%w: %d bytes after private key", ErrTrailingBytes, len(blob)-length)
	}
	return nil
}
