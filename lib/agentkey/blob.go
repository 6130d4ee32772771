// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package agentkey

import (
	"errors"
	"fmt"
	"strings"

	"github.com/bureau-foundation/sshagent/lib/agentwire"
	"golang.org/x/crypto/cryptobyte"
	"golang.org/x/crypto/ssh"
)

const certificateSuffix = "-cert-v01@openssh.com"

// KeyType returns the key type string that leads an SSH wire-format
// public key, certificate or signature blob.
func KeyType(blob []byte) (string, error) {
	input := cryptobyte.String(blob)
	var keyType cryptobyte.String
	if !agentwire.ReadString(&input, &keyType) || len(keyType) == 0 {
		return "", errors.New("blob does not start with a key type string")
	}
	return string(keyType), nil
}

// IsCertificateBlob reports whether blob is an OpenSSH certificate.
// Unparseable blobs are not certificates.
func IsCertificateBlob(blob []byte) bool {
	keyType, err := KeyType(blob)
	return err == nil && agentwire.IsCertificateType(keyType)
}

// BaseKeyType strips the certificate suffix from a certificate key
// type, so "ssh-ed25519-cert-v01@openssh.com" becomes "ssh-ed25519".
// Other key types are returned unchanged.
func BaseKeyType(keyType string) string {
	return strings.TrimSuffix(keyType, certificateSuffix)
}

// Hash algorithm names reported by HashAlgorithm.
const (
	HashSHA1   = "sha1"
	HashSHA256 = "sha256"
	HashSHA384 = "sha384"
	HashSHA512 = "sha512"
)

// HashAlgorithm returns the digest an agent used for a signature, from
// the type of the signing key and the format name inside the returned
// signature. RSA keys sign with the digest named by the signature
// format; every other key type has a fixed digest.
func HashAlgorithm(keyType, signatureFormat string) (string, error) {
	switch base := BaseKeyType(keyType); base {
	case ssh.KeyAlgoRSA:
		switch signatureFormat {
		case ssh.KeyAlgoRSA:
			return HashSHA1, nil
		case ssh.KeyAlgoRSASHA256:
			return HashSHA256, nil
		case ssh.KeyAlgoRSASHA512:
			return HashSHA512, nil
		}
		return "", fmt.Errorf("unknown rsa signature format %q", signatureFormat)
	case "ssh-dss":
		return HashSHA1, nil
	case ssh.KeyAlgoECDSA256:
		return HashSHA256, nil
	case ssh.KeyAlgoECDSA384:
		return HashSHA384, nil
	case ssh.KeyAlgoECDSA521:
		return HashSHA512, nil
	case ssh.KeyAlgoED25519:
		return HashSHA512, nil
	default:
		return "", fmt.Errorf("no known hash algorithm for key type %q", base)
	}
}

// Fingerprint returns the OpenSSH SHA256 fingerprint of a public key
// or certificate blob, for example "SHA256:uJ0...". A certificate is
// fingerprinted over its whole blob.
func Fingerprint(blob []byte) (string, error) {
	key, err := ssh.ParsePublicKey(blob)
	if err != nil {
		return "", fmt.Errorf("parsing public key: %w", err)
	}
	return ssh.FingerprintSHA256(key), nil
}
