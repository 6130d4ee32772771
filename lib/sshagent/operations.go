// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sshagent

import (
	"context"
	"crypto"
	"errors"
	"fmt"

	"github.com/bureau-foundation/sshagent/lib/agentkey"
	"github.com/bureau-foundation/sshagent/lib/agentwire"
	"golang.org/x/crypto/ssh"
)

// Key is a plain public key held by the agent.
type Key struct {
	Blob      []byte
	Comment   string
	PublicKey ssh.PublicKey
}

// Type returns the SSH key type, for example "ssh-ed25519".
func (k Key) Type() string { return k.PublicKey.Type() }

// Fingerprint returns the OpenSSH SHA256 fingerprint.
func (k Key) Fingerprint() string { return ssh.FingerprintSHA256(k.PublicKey) }

// Certificate is a certificate held by the agent.
type Certificate struct {
	Blob        []byte
	Comment     string
	Certificate *ssh.Certificate
}

// Fingerprint returns the SHA256 fingerprint of the certified key.
func (c Certificate) Fingerprint() string { return ssh.FingerprintSHA256(c.Certificate.Key) }

// Signature is a signature returned by the agent.
type Signature struct {
	// Format is the signature algorithm named inside the signature
	// blob, for example "rsa-sha2-512".
	Format string

	// Blob is the algorithm-specific signature value.
	Blob []byte

	// Rest holds trailing fields some formats carry (security key
	// signatures append flags and a counter).
	Rest []byte

	// HashAlgorithm is the digest the agent signed with.
	HashAlgorithm string

	// Raw is the complete SSH signature encoding as sent by the agent.
	Raw []byte
}

// SSH returns the signature in x/crypto form for use with
// ssh.PublicKey.Verify.
func (s *Signature) SSH() *ssh.Signature {
	return &ssh.Signature{Format: s.Format, Blob: s.Blob, Rest: s.Rest}
}

// Verify checks the signature over data against key.
func (s *Signature) Verify(key ssh.PublicKey, data []byte) error {
	return key.Verify(data, s.SSH())
}

// PrivateIdentity is a key to add in its OpenSSH private
// serialization, as produced by agentkey.MarshalPrivateKey or
// agentkey.MarshalCertificate.
type PrivateIdentity struct {
	Blob    []byte
	Comment string

	// LifetimeSeconds asks the agent to forget the key after this
	// many seconds. Zero means no limit.
	LifetimeSeconds uint32

	// ConfirmBeforeUse asks the agent to confirm with the user before
	// each signature.
	ConfirmBeforeUse bool
}

// AddedKey is a key to add from its crypto value, with an optional
// certificate for it.
type AddedKey struct {
	PrivateKey       crypto.PrivateKey
	Certificate      *ssh.Certificate
	Comment          string
	LifetimeSeconds  uint32
	ConfirmBeforeUse bool
}

// List returns every identity the agent holds, keys and certificates
// alike, as raw blobs.
func (c *Client) List(ctx context.Context) ([]agentwire.Identity, error) {
	reply, err := c.Call(ctx, &agentwire.RequestIdentities{}, agentwire.TypeIdentitiesAnswer)
	if err != nil {
		return nil, err
	}
	return reply.(*agentwire.IdentitiesAnswer).Identities, nil
}

// ListKeys returns the plain public keys the agent holds. Certificates
// are skipped, as are blobs x/crypto cannot parse.
func (c *Client) ListKeys(ctx context.Context) ([]Key, error) {
	identities, err := c.List(ctx)
	if err != nil {
		return nil, err
	}
	keys := make([]Key, 0, len(identities))
	for _, identity := range identities {
		if agentkey.IsCertificateBlob(identity.KeyBlob) {
			continue
		}
		publicKey, err := ssh.ParsePublicKey(identity.KeyBlob)
		if err != nil {
			c.options.Logger.Debug("skipping unparseable agent key", "comment", identity.Comment, "error", err)
			continue
		}
		keys = append(keys, Key{Blob: identity.KeyBlob, Comment: identity.Comment, PublicKey: publicKey})
	}
	return keys, nil
}

// ListCertificates returns the certificates the agent holds.
func (c *Client) ListCertificates(ctx context.Context) ([]Certificate, error) {
	identities, err := c.List(ctx)
	if err != nil {
		return nil, err
	}
	var certificates []Certificate
	for _, identity := range identities {
		if !agentkey.IsCertificateBlob(identity.KeyBlob) {
			continue
		}
		publicKey, err := ssh.ParsePublicKey(identity.KeyBlob)
		if err != nil {
			c.options.Logger.Debug("skipping unparseable agent certificate", "comment", identity.Comment, "error", err)
			continue
		}
		certificate, ok := publicKey.(*ssh.Certificate)
		if !ok {
			continue
		}
		certificates = append(certificates, Certificate{
			Blob:        identity.KeyBlob,
			Comment:     identity.Comment,
			Certificate: certificate,
		})
	}
	return certificates, nil
}

// Sign asks the agent to sign data with the private half of the key
// or certificate whose public blob is keyBlob.
func (c *Client) Sign(ctx context.Context, keyBlob, data []byte, flags agentwire.SignFlags) (*Signature, error) {
	keyType, err := agentkey.KeyType(keyBlob)
	if err != nil {
		return nil, fmt.Errorf("signing key: %w", err)
	}
	if data == nil {
		data = []byte{}
	}
	reply, err := c.Call(ctx, &agentwire.SignRequest{PublicKey: keyBlob, Data: data, Flags: flags},
		agentwire.TypeSignResponse)
	if err != nil {
		return nil, err
	}
	raw := reply.(*agentwire.SignResponse).Signature

	var parsed ssh.Signature
	if err := ssh.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("parsing agent signature: %w", err)
	}
	hash, err := agentkey.HashAlgorithm(keyType, parsed.Format)
	if err != nil {
		return nil, fmt.Errorf("agent signature: %w", err)
	}
	return &Signature{
		Format:        parsed.Format,
		Blob:          parsed.Blob,
		Rest:          parsed.Rest,
		HashAlgorithm: hash,
		Raw:           raw,
	}, nil
}

// AddIdentity adds a private key. Any constraint selects the
// constrained add frame.
func (c *Client) AddIdentity(ctx context.Context, identity PrivateIdentity) error {
	if err := agentwire.ValidatePrivateKey(identity.Blob); err != nil {
		return fmt.Errorf("private key: %w", err)
	}
	var constraints []agentwire.Constraint
	if identity.LifetimeSeconds > 0 {
		constraints = append(constraints, agentwire.Lifetime(identity.LifetimeSeconds))
	}
	if identity.ConfirmBeforeUse {
		constraints = append(constraints, agentwire.Confirm())
	}

	var frame agentwire.Frame = &agentwire.AddIdentity{PrivateKey: identity.Blob, Comment: identity.Comment}
	if len(constraints) > 0 {
		frame = &agentwire.AddIdentityConstrained{
			PrivateKey:  identity.Blob,
			Comment:     identity.Comment,
			Constraints: constraints,
		}
	}
	_, err := c.Call(ctx, frame, agentwire.TypeSuccess)
	return err
}

// AddCertificate adds a certificate with its private key. It is
// AddIdentity restricted to certificate serializations.
func (c *Client) AddCertificate(ctx context.Context, identity PrivateIdentity) error {
	keyType, err := agentwire.PrivateKeyType(identity.Blob)
	if err != nil {
		return fmt.Errorf("certificate: %w", err)
	}
	if !agentwire.IsCertificateType(keyType) {
		return fmt.Errorf("certificate: key type %q is not a certificate type", keyType)
	}
	return c.AddIdentity(ctx, identity)
}

// AddKey serializes a crypto private key, or a certificate and its
// private key, and adds it.
func (c *Client) AddKey(ctx context.Context, key AddedKey) error {
	identity := PrivateIdentity{
		Comment:          key.Comment,
		LifetimeSeconds:  key.LifetimeSeconds,
		ConfirmBeforeUse: key.ConfirmBeforeUse,
	}
	var err error
	if key.Certificate != nil {
		identity.Blob, err = agentkey.MarshalCertificate(key.PrivateKey, key.Certificate)
		if err != nil {
			return err
		}
		return c.AddCertificate(ctx, identity)
	}
	identity.Blob, err = agentkey.MarshalPrivateKey(key.PrivateKey)
	if err != nil {
		return err
	}
	return c.AddIdentity(ctx, identity)
}

// Remove removes a key or certificate.
func (c *Client) Remove(ctx context.Context, key ssh.PublicKey) error {
	if key == nil {
		return errors.New("remove: nil key")
	}
	return c.RemoveIdentity(ctx, key.Marshal())
}

// RemoveIdentity removes the key or certificate with the given public
// blob.
func (c *Client) RemoveIdentity(ctx context.Context, keyBlob []byte) error {
	_, err := c.Call(ctx, &agentwire.RemoveIdentity{PublicKey: keyBlob}, agentwire.TypeSuccess)
	return err
}

// RemoveAll removes every key and certificate.
func (c *Client) RemoveAll(ctx context.Context) error {
	_, err := c.Call(ctx, &agentwire.RemoveAllIdentities{}, agentwire.TypeSuccess)
	return err
}

// Lock locks the agent with passphrase. A locked agent lists no keys
// and refuses to sign until unlocked.
func (c *Client) Lock(ctx context.Context, passphrase string) error {
	_, err := c.Call(ctx, &agentwire.Lock{Passphrase: passphrase}, agentwire.TypeSuccess)
	return err
}

// Unlock unlocks the agent.
func (c *Client) Unlock(ctx context.Context, passphrase string) error {
	_, err := c.Call(ctx, &agentwire.Unlock{Passphrase: passphrase}, agentwire.TypeSuccess)
	return err
}
