// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package agentkey

import (
	"bytes"
	"crypto"
	"crypto/dsa"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rsa"
	"errors"
	"fmt"
	"math/big"

	"golang.org/x/crypto/ssh"
)

// ErrUnsupportedKey is returned for private key values this package
// cannot serialize.
var ErrUnsupportedKey = errors.New("unsupported private key type")

type rsaPrivateKey struct {
	Type string
	N    *big.Int
	E    *big.Int
	D    *big.Int
	Iqmp *big.Int
	P    *big.Int
	Q    *big.Int
}

type dsaPrivateKey struct {
	Type string
	P    *big.Int
	Q    *big.Int
	G    *big.Int
	Y    *big.Int
	X    *big.Int
}

type ecdsaPrivateKey struct {
	Type  string
	Curve string
	Point []byte
	D     *big.Int
}

type ed25519PrivateKey struct {
	Type    string
	Public  []byte
	Private []byte
}

type rsaCertificateKey struct {
	Type        string
	Certificate []byte
	D           *big.Int
	Iqmp        *big.Int
	P           *big.Int
	Q           *big.Int
}

type dsaCertificateKey struct {
	Type        string
	Certificate []byte
	X           *big.Int
}

type ecdsaCertificateKey struct {
	Type        string
	Certificate []byte
	D           *big.Int
}

type ed25519CertificateKey struct {
	Type        string
	Certificate []byte
	Public      []byte
	Private     []byte
}

// MarshalPrivateKey returns the OpenSSH private serialization of key
// as carried by an add-identity frame. Supported values are
// *rsa.PrivateKey, *dsa.PrivateKey, *ecdsa.PrivateKey (P-256, P-384,
// P-521) and ed25519.PrivateKey or a pointer to one.
func MarshalPrivateKey(key crypto.PrivateKey) ([]byte, error) {
	switch k := key.(type) {
	case *rsa.PrivateKey:
		if len(k.Primes) != 2 {
			return nil, fmt.Errorf("%w: rsa key with %d primes", ErrUnsupportedKey, len(k.Primes))
		}
		k.Precompute()
		return ssh.Marshal(rsaPrivateKey{
			Type: ssh.KeyAlgoRSA,
			N:    k.N,
			E:    big.NewInt(int64(k.E)),
			D:    k.D,
			Iqmp: k.Precomputed.Qinv,
			P:    k.Primes[0],
			Q:    k.Primes[1],
		}), nil
	case *dsa.PrivateKey:
		return ssh.Marshal(dsaPrivateKey{
			Type: "ssh-dss",
			P:    k.P,
			Q:    k.Q,
			G:    k.G,
			Y:    k.Y,
			X:    k.X,
		}), nil
	case *ecdsa.PrivateKey:
		curve, err := curveName(k.Curve)
		if err != nil {
			return nil, err
		}
		point, err := k.PublicKey.ECDH()
		if err != nil {
			return nil, fmt.Errorf("ecdsa public key: %w", err)
		}
		return ssh.Marshal(ecdsaPrivateKey{
			Type:  "ecdsa-sha2-" + curve,
			Curve: curve,
			Point: point.Bytes(),
			D:     k.D,
		}), nil
	case ed25519.PrivateKey:
		if len(k) != ed25519.PrivateKeySize {
			return nil, fmt.Errorf("%w: ed25519 key of %d bytes", ErrUnsupportedKey, len(k))
		}
		return ssh.Marshal(ed25519PrivateKey{
			Type:    ssh.KeyAlgoED25519,
			Public:  k[32:],
			Private: k,
		}), nil
	case *ed25519.PrivateKey:
		return MarshalPrivateKey(*k)
	}
	return nil, fmt.Errorf("%w: %T", ErrUnsupportedKey, key)
}

// MarshalCertificate returns the private serialization of a
// certificate and its private key: the certificate type, the
// certificate blob, then the private parameters of key. The
// certificate must certify key's public half.
func MarshalCertificate(key crypto.PrivateKey, certificate *ssh.Certificate) ([]byte, error) {
	if certificate == nil {
		return nil, errors.New("nil certificate")
	}
	public, err := PublicKey(key)
	if err != nil {
		return nil, err
	}
	if !bytes.Equal(public.Marshal(), certificate.Key.Marshal()) {
		return nil, fmt.Errorf("certificate %q does not certify the given private key", certificate.KeyId)
	}

	certificateType := certificate.Type()
	blob := certificate.Marshal()
	switch k := key.(type) {
	case *rsa.PrivateKey:
		k.Precompute()
		return ssh.Marshal(rsaCertificateKey{
			Type:        certificateType,
			Certificate: blob,
			D:           k.D,
			Iqmp:        k.Precomputed.Qinv,
			P:           k.Primes[0],
			Q:           k.Primes[1],
		}), nil
	case *dsa.PrivateKey:
		return ssh.Marshal(dsaCertificateKey{Type: certificateType, Certificate: blob, X: k.X}), nil
	case *ecdsa.PrivateKey:
		return ssh.Marshal(ecdsaCertificateKey{Type: certificateType, Certificate: blob, D: k.D}), nil
	case ed25519.PrivateKey:
		return ssh.Marshal(ed25519CertificateKey{
			Type:        certificateType,
			Certificate: blob,
			Public:      k[32:],
			Private:     k,
		}), nil
	case *ed25519.PrivateKey:
		return MarshalCertificate(*k, certificate)
	}
	return nil, fmt.Errorf("%w: %T", ErrUnsupportedKey, key)
}

// PublicKey returns the SSH public key of a private key value.
func PublicKey(key crypto.PrivateKey) (ssh.PublicKey, error) {
	var public crypto.PublicKey
	switch k := key.(type) {
	case *dsa.PrivateKey:
		public = &k.PublicKey
	case crypto.Signer:
		public = k.Public()
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedKey, key)
	}
	sshKey, err := ssh.NewPublicKey(public)
	if err != nil {
		return nil, fmt.Errorf("converting %T public key: %w", public, err)
	}
	return sshKey, nil
}

func curveName(curve elliptic.Curve) (string, error) {
	switch curve {
	case elliptic.P256():
		return "nistp256", nil
	case elliptic.P384():
		return "nistp384", nil
	case elliptic.P521():
		return "nistp521", nil
	}
	return "", fmt.Errorf("%w: ecdsa curve %s", ErrUnsupportedKey, curve.Params().Name)
}
