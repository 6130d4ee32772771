// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package agentkey

import (
	"bytes"
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"errors"
	"net"
	"testing"

	"github.com/bureau-foundation/sshagent/lib/agentwire"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
)

func generateKeys(t *testing.T) map[string]crypto.Signer {
	t.Helper()
	keys := map[string]crypto.Signer{}

	rsaKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("rsa.GenerateKey: %v", err)
	}
	keys["ssh-rsa"] = rsaKey

	for name, curve := range map[string]elliptic.Curve{
		"ecdsa-sha2-nistp256": elliptic.P256(),
		"ecdsa-sha2-nistp384": elliptic.P384(),
		"ecdsa-sha2-nistp521": elliptic.P521(),
	} {
		ecdsaKey, err := ecdsa.GenerateKey(curve, rand.Reader)
		if err != nil {
			t.Fatalf("ecdsa.GenerateKey(%s): %v", name, err)
		}
		keys[name] = ecdsaKey
	}

	_, ed25519Key, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("ed25519.GenerateKey: %v", err)
	}
	keys["ssh-ed25519"] = ed25519Key
	return keys
}

// addToKeyring sends blob to an in-process x/crypto agent as an
// add-identity frame and returns the agent's reply.
func addToKeyring(t *testing.T, keyring agent.Agent, blob []byte) agentwire.Frame {
	t.Helper()
	client, server := net.Pipe()
	defer client.Close()
	go func() {
		defer server.Close()
		agent.ServeAgent(keyring, server)
	}()

	frame := &agentwire.AddIdentity{PrivateKey: blob, Comment: "agentkey test"}
	if err := agentwire.WriteFrame(client, agentwire.FromClient, frame); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}
	reply, err := agentwire.ReadFrame(client, agentwire.FromAgent)
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	return reply
}

func TestMarshalPrivateKeyAcceptedByAgent(t *testing.T) {
	t.Parallel()
	for keyType, key := range generateKeys(t) {
		t.Run(keyType, func(t *testing.T) {
			t.Parallel()
			blob, err := MarshalPrivateKey(key)
			if err != nil {
				t.Fatalf("MarshalPrivateKey: %v", err)
			}
			if err := agentwire.ValidatePrivateKey(blob); err != nil {
				t.Fatalf("ValidatePrivateKey: %v", err)
			}
			gotType, err := agentwire.PrivateKeyType(blob)
			if err != nil || gotType != keyType {
				t.Fatalf("PrivateKeyType: got %q, %v; want %q", gotType, err, keyType)
			}

			keyring := agent.NewKeyring()
			if reply := addToKeyring(t, keyring, blob); reply.FrameType() != agentwire.TypeSuccess {
				t.Fatalf("agent replied %s, want success", reply.FrameType())
			}
			listed, err := keyring.List()
			if err != nil {
				t.Fatalf("keyring.List: %v", err)
			}
			public, err := PublicKey(key)
			if err != nil {
				t.Fatalf("PublicKey: %v", err)
			}
			if len(listed) != 1 || !bytes.Equal(listed[0].Blob, public.Marshal()) {
				t.Fatalf("keyring holds %d keys, want the added %s key", len(listed), keyType)
			}
		})
	}
}

func TestMarshalEd25519Pointer(t *testing.T) {
	t.Parallel()
	_, key, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("ed25519.GenerateKey: %v", err)
	}
	byValue, err := MarshalPrivateKey(key)
	if err != nil {
		t.Fatalf("MarshalPrivateKey(value): %v", err)
	}
	byPointer, err := MarshalPrivateKey(&key)
	if err != nil {
		t.Fatalf("MarshalPrivateKey(pointer): %v", err)
	}
	if !bytes.Equal(byValue, byPointer) {
		t.Error("pointer and value serializations differ")
	}
}

func TestMarshalPrivateKeyUnsupported(t *testing.T) {
	t.Parallel()
	if _, err := MarshalPrivateKey("not a key"); !errors.Is(err, ErrUnsupportedKey) {
		t.Errorf("string key: got %v, want ErrUnsupportedKey", err)
	}
	p224, err := ecdsa.GenerateKey(elliptic.P224(), rand.Reader)
	if err != nil {
		t.Fatalf("ecdsa.GenerateKey(P224): %v", err)
	}
	if _, err := MarshalPrivateKey(p224); !errors.Is(err, ErrUnsupportedKey) {
		t.Errorf("P-224 key: got %v, want ErrUnsupportedKey", err)
	}
}

func signCertificate(t *testing.T, key crypto.Signer) *ssh.Certificate {
	t.Helper()
	_, authority, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generating authority: %v", err)
	}
	authoritySigner, err := ssh.NewSignerFromKey(authority)
	if err != nil {
		t.Fatalf("NewSignerFromKey: %v", err)
	}
	public, err := PublicKey(key)
	if err != nil {
		t.Fatalf("PublicKey: %v", err)
	}
	certificate := &ssh.Certificate{
		Key:             public,
		CertType:        ssh.UserCert,
		KeyId:           "test-certificate",
		ValidPrincipals: []string{"operator"},
		ValidBefore:     ssh.CertTimeInfinity,
	}
	if err := certificate.SignCert(rand.Reader, authoritySigner); err != nil {
		t.Fatalf("SignCert: %v", err)
	}
	return certificate
}

func TestMarshalCertificateAcceptedByAgent(t *testing.T) {
	t.Parallel()
	for keyType, key := range generateKeys(t) {
		t.Run(keyType, func(t *testing.T) {
			t.Parallel()
			certificate := signCertificate(t, key)
			blob, err := MarshalCertificate(key, certificate)
			if err != nil {
				t.Fatalf("MarshalCertificate: %v", err)
			}
			if err := agentwire.ValidatePrivateKey(blob); err != nil {
				t.Fatalf("ValidatePrivateKey: %v", err)
			}
			gotType, err := agentwire.PrivateKeyType(blob)
			if err != nil || gotType != keyType+certificateSuffix {
				t.Fatalf("PrivateKeyType: got %q, %v", gotType, err)
			}

			keyring := agent.NewKeyring()
			if reply := addToKeyring(t, keyring, blob); reply.FrameType() != agentwire.TypeSuccess {
				t.Fatalf("agent replied %s, want success", reply.FrameType())
			}
			listed, err := keyring.List()
			if err != nil {
				t.Fatalf("keyring.List: %v", err)
			}
			found := false
			for _, entry := range listed {
				if bytes.Equal(entry.Blob, certificate.Marshal()) {
					found = true
				}
			}
			if !found {
				t.Errorf("certificate not among %d listed keys", len(listed))
			}
		})
	}
}

func TestMarshalCertificateKeyMismatch(t *testing.T) {
	t.Parallel()
	keys := generateKeys(t)
	certificate := signCertificate(t, keys["ssh-ed25519"])
	if _, err := MarshalCertificate(keys["ecdsa-sha2-nistp256"], certificate); err == nil {
		t.Error("MarshalCertificate with another key's certificate succeeded")
	}
	if _, err := MarshalCertificate(keys["ssh-ed25519"], nil); err == nil {
		t.Error("MarshalCertificate with nil certificate succeeded")
	}
}

func TestBlobInspection(t *testing.T) {
	t.Parallel()
	_, key, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("ed25519.GenerateKey: %v", err)
	}
	public, err := PublicKey(key)
	if err != nil {
		t.Fatalf("PublicKey: %v", err)
	}
	certificate := signCertificate(t, key)

	keyType, err := KeyType(public.Marshal())
	if err != nil || keyType != ssh.KeyAlgoED25519 {
		t.Errorf("KeyType(public): got %q, %v", keyType, err)
	}
	if IsCertificateBlob(public.Marshal()) {
		t.Error("IsCertificateBlob(public key) = true")
	}
	if !IsCertificateBlob(certificate.Marshal()) {
		t.Error("IsCertificateBlob(certificate) = false")
	}
	if IsCertificateBlob([]byte{0, 0}) {
		t.Error("IsCertificateBlob(garbage) = true")
	}
	if _, err := KeyType(nil); err == nil {
		t.Error("KeyType(nil) succeeded")
	}
	if got := BaseKeyType(ssh.CertAlgoED25519v01); got != ssh.KeyAlgoED25519 {
		t.Errorf("BaseKeyType: got %q", got)
	}

	fingerprint, err := Fingerprint(public.Marshal())
	if err != nil {
		t.Fatalf("Fingerprint: %v", err)
	}
	if fingerprint != ssh.FingerprintSHA256(public) {
		t.Errorf("Fingerprint: got %q, want %q", fingerprint, ssh.FingerprintSHA256(public))
	}
	if _, err := Fingerprint([]byte("junk")); err == nil {
		t.Error("Fingerprint(junk) succeeded")
	}
}

func TestHashAlgorithm(t *testing.T) {
	t.Parallel()
	tests := []struct {
		keyType string
		format  string
		want    string
	}{
		{"ssh-rsa", "ssh-rsa", HashSHA1},
		{"ssh-rsa", "rsa-sha2-256", HashSHA256},
		{"ssh-rsa", "rsa-sha2-512", HashSHA512},
		{"ssh-rsa-cert-v01@openssh.com", "rsa-sha2-512", HashSHA512},
		{"ssh-dss", "ssh-dss", HashSHA1},
		{"ecdsa-sha2-nistp256", "ecdsa-sha2-nistp256", HashSHA256},
		{"ecdsa-sha2-nistp384", "ecdsa-sha2-nistp384", HashSHA384},
		{"ecdsa-sha2-nistp521", "ecdsa-sha2-nistp521", HashSHA512},
		{"ecdsa-sha2-nistp521-cert-v01@openssh.com", "ecdsa-sha2-nistp521", HashSHA512},
		{"ssh-ed25519", "ssh-ed25519", HashSHA512},
	}
	for _, test := range tests {
		got, err := HashAlgorithm(test.keyType, test.format)
		if err != nil {
			t.Errorf("HashAlgorithm(%q, %q): %v", test.keyType, test.format, err)
			continue
		}
		if got != test.want {
			t.Errorf("HashAlgorithm(%q, %q): got %q, want %q", test.keyType, test.format, got, test.want)
		}
	}
	if _, err := HashAlgorithm("ssh-rsa", "rsa-sha2-1024"); err == nil {
		t.Error("unknown rsa format succeeded")
	}
	if _, err := HashAlgorithm("sk-ssh-ed25519@openssh.com", "x"); err == nil {
		t.Error("unknown key type succeeded")
	}
}
