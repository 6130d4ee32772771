// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package agentwire

import "fmt"

// FrameType is the one-byte message number that follows the length
// prefix.
type FrameType uint8

// Frames sent by a client to the agent.
const (
	TypeRequestIdentities      FrameType = 11
	TypeSignRequest            FrameType = 13
	TypeAddIdentity            FrameType = 17
	TypeRemoveIdentity         FrameType = 18
	TypeRemoveAllIdentities    FrameType = 19
	TypeLock                   FrameType = 22
	TypeUnlock                 FrameType = 23
	TypeAddIdentityConstrained FrameType = 25
)

// Frames sent by the agent to a client.
const (
	TypeFailure          FrameType = 5
	TypeSuccess          FrameType = 6
	TypeIdentitiesAnswer FrameType = 12
	TypeSignResponse     FrameType = 14
)

// String returns the protocol name of the frame type, for example
// "sign-request".
func (t FrameType) String() string {
	if entry := lookupAny(t); entry != nil {
		return entry.name
	}
	return fmt.Sprintf("frame-type-%d", uint8(t))
}

// Direction selects which side of the conversation a frame set
// belongs to.
type Direction int

const (
	// FromClient is the set of frames a client sends and an agent
	// receives.
	FromClient Direction = iota

	// FromAgent is the set of frames an agent sends and a client
	// receives.
	FromAgent
)

func (d Direction) String() string {
	switch d {
	case FromClient:
		return "client"
	case FromAgent:
		return "agent"
	}
	return fmt.Sprintf("direction-%d", int(d))
}

// Frame is one protocol message. Each frame kind is a distinct struct
// type; FrameType identifies it on the wire.
type Frame interface {
	FrameType() FrameType
}

// SignFlags is the flag word of a sign request.
type SignFlags uint32

const (
	// SignFlagOldSignature asks for the legacy signature format.
	SignFlagOldSignature SignFlags = 0x01

	// SignFlagRSASHA256 asks an RSA key to sign with rsa-sha2-256.
	SignFlagRSASHA256 SignFlags = 0x02

	// SignFlagRSASHA512 asks an RSA key to sign with rsa-sha2-512.
	SignFlagRSASHA512 SignFlags = 0x04
)

var signFlagNames = []struct {
	flag SignFlags
	name string
}{
	{SignFlagOldSignature, "old-signature"},
	{SignFlagRSASHA256, "rsa-sha2-256"},
	{SignFlagRSASHA512, "rsa-sha2-512"},
}

// Names returns the names of the set flags, in bit order. Bits without
// a name are reported as hex.
func (f SignFlags) Names() []string {
	var names []string
	remaining := f
	for _, entry := range signFlagNames {
		if f&entry.flag != 0 {
			names = append(names, entry.name)
			remaining &^= entry.flag
		}
	}
	if remaining != 0 {
		names = append(names, fmt.Sprintf("0x%x", uint32(remaining)))
	}
	return names
}

// ParseSignFlag returns the flag with the given name.
func ParseSignFlag(name string) (SignFlags, error) {
	for _, entry := range signFlagNames {
		if entry.name == name {
			return entry.flag, nil
		}
	}
	return 0, fmt.Errorf("unknown sign flag %q", name)
}

// ConstraintKind is the tag byte of a key constraint.
type ConstraintKind uint8

const (
	// ConstraintLifetime limits how long the agent keeps a key. It
	// carries a uint32 number of seconds.
	ConstraintLifetime ConstraintKind = 1

	// ConstraintConfirm makes the agent ask the user before each use
	// of the key. It has no payload.
	ConstraintConfirm ConstraintKind = 2
)

// Constraint is one restriction attached to an added key.
type Constraint struct {
	Kind ConstraintKind

	// LifetimeSeconds is used only by ConstraintLifetime.
	LifetimeSeconds uint32
}

// Lifetime returns a lifetime constraint of the given number of
// seconds.
func Lifetime(seconds uint32) Constraint {
	return Constraint{Kind: ConstraintLifetime, LifetimeSeconds: seconds}
}

// Confirm returns a confirm-before-use constraint.
func Confirm() Constraint {
	return Constraint{Kind: ConstraintConfirm}
}

// Identity is one key the agent holds: its public key blob in SSH wire
// format and the comment it was added with.
type Identity struct {
	KeyBlob []byte
	Comment string
}

// RequestIdentities asks the agent to list the keys it holds.
type RequestIdentities struct{}

// SignRequest asks the agent to sign Data with the private half of
// PublicKey.
type SignRequest struct {
	PublicKey []byte
	Data      []byte
	Flags     SignFlags
}

// AddIdentity hands a private key to the agent. PrivateKey is the
// OpenSSH private key serialization, including the leading key type.
type AddIdentity struct {
	PrivateKey []byte
	Comment    string
}

// AddIdentityConstrained is AddIdentity with constraints appended.
type AddIdentityConstrained struct {
	PrivateKey  []byte
	Comment     string
	Constraints []Constraint
}

// RemoveIdentity removes the key with the given public key blob.
type RemoveIdentity struct {
	PublicKey []byte
}

// RemoveAllIdentities removes every key.
type RemoveAllIdentities struct{}

// Lock locks the agent with a passphrase.
type Lock struct {
	Passphrase string
}

// Unlock unlocks the agent.
type Unlock struct {
	Passphrase string
}

// Failure is the agent's generic negative reply.
type Failure struct{}

// Success is the agent's generic positive reply.
type Success struct{}

// IdentitiesAnswer answers RequestIdentities.
type IdentitiesAnswer struct {
	Identities []Identity
}

// SignResponse answers SignRequest with an SSH signature blob.
type SignResponse struct {
	Signature []byte
}

func (*RequestIdentities) FrameType() FrameType      { return TypeRequestIdentities }
func (*SignRequest) FrameType() FrameType            { return TypeSignRequest }
func (*AddIdentity) FrameType() FrameType            { return TypeAddIdentity }
func (*AddIdentityConstrained) FrameType() FrameType { return TypeAddIdentityConstrained }
func (*RemoveIdentity) FrameType() FrameType         { return TypeRemoveIdentity }
func (*RemoveAllIdentities) FrameType() FrameType    { return TypeRemoveAllIdentities }
func (*Lock) FrameType() FrameType                   { return TypeLock }
func (*Unlock) FrameType() FrameType                 { return TypeUnlock }
func (*Failure) FrameType() FrameType                { return TypeFailure }
func (*Success) FrameType() FrameType                { return TypeSuccess }
func (*IdentitiesAnswer) FrameType() FrameType       { return TypeIdentitiesAnswer }
func (*SignResponse) FrameType() FrameType           { return TypeSignResponse }
