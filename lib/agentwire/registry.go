// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package agentwire

import (
	"fmt"
	"sort"
	"strings"
)

// MaxFrameLength is the largest frame length (type byte plus payload)
// the encoder produces and the decoder accepts. It matches the limit
// OpenSSH's agent enforces on its own input.
const MaxFrameLength = 256 * 1024

// argument is one positional field of a frame schema.
type argument struct {
	name  string
	field FieldCodec

	// get extracts the argument from a frame. It returns nil when the
	// frame is not of the schema's type or the argument is absent.
	get func(Frame) any
}

// schema is the registry entry for one frame type in one direction.
type schema struct {
	frameType FrameType
	name      string
	direction Direction
	arguments []argument

	// build assembles a frame from decoded argument values, which are
	// in argument order and of the types the field codecs produce.
	build func(values []any) Frame
}

// field adapts a typed accessor to the untyped signature used by
// argument.get.
func field[F any](get func(*F) any) func(Frame) any {
	return func(frame Frame) any {
		typed, ok := any(frame).(*F)
		if !ok || typed == nil {
			return nil
		}
		return get(typed)
	}
}

// blob boxes a byte slice, keeping nil as an absent argument rather
// than a typed nil inside a non-nil interface.
func blob(data []byte) any {
	if data == nil {
		return nil
	}
	return data
}

var clientSchemas = []*schema{
	{
		frameType: TypeRequestIdentities,
		name:      "request-identities",
		build:     func([]any) Frame { return &RequestIdentities{} },
	},
	{
		frameType: TypeSignRequest,
		name:      "sign-request",
		arguments: []argument{
			{"publicKey", Buffer, field(func(f *SignRequest) any { return blob(f.PublicKey) })},
			{"data", Buffer, field(func(f *SignRequest) any { return blob(f.Data) })},
			{"flags", SignFlagsField, field(func(f *SignRequest) any { return f.Flags })},
		},
		build: func(values []any) Frame {
			return &SignRequest{
				PublicKey: values[0].([]byte),
				Data:      values[1].([]byte),
				Flags:     values[2].(SignFlags),
			}
		},
	},
	{
		frameType: TypeAddIdentity,
		name:      "add-identity",
		arguments: []argument{
			{"privateKey", PrivateKey, field(func(f *AddIdentity) any { return blob(f.PrivateKey) })},
			{"comment", String, field(func(f *AddIdentity) any { return f.Comment })},
		},
		build: func(values []any) Frame {
			return &AddIdentity{
				PrivateKey: values[0].([]byte),
				Comment:    values[1].(string),
			}
		},
	},
	{
		frameType: TypeRemoveIdentity,
		name:      "remove-identity",
		arguments: []argument{
			{"publicKey", Buffer, field(func(f *RemoveIdentity) any { return blob(f.PublicKey) })},
		},
		build: func(values []any) Frame {
			return &RemoveIdentity{PublicKey: values[0].([]byte)}
		},
	},
	{
		frameType: TypeRemoveAllIdentities,
		name:      "remove-all-identities",
		build:     func([]any) Frame { return &RemoveAllIdentities{} },
	},
	{
		frameType: TypeLock,
		name:      "lock",
		arguments: []argument{
			{"passphrase", String, field(func(f *Lock) any { return f.Passphrase })},
		},
		build: func(values []any) Frame { return &Lock{Passphrase: values[0].(string)} },
	},
	{
		frameType: TypeUnlock,
		name:      "unlock",
		arguments: []argument{
			{"passphrase", String, field(func(f *Unlock) any { return f.Passphrase })},
		},
		build: func(values []any) Frame { return &Unlock{Passphrase: values[0].(string)} },
	},
	{
		frameType: TypeAddIdentityConstrained,
		name:      "add-identity-constrained",
		arguments: []argument{
			{"privateKey", PrivateKey, field(func(f *AddIdentityConstrained) any { return blob(f.PrivateKey) })},
			{"comment", String, field(func(f *AddIdentityConstrained) any { return f.Comment })},
			{"constraints", Constraints, field(func(f *AddIdentityConstrained) any {
				if f.Constraints == nil {
					return []Constraint{}
				}
				return f.Constraints
			})},
		},
		build: func(values []any) Frame {
			return &AddIdentityConstrained{
				PrivateKey:  values[0].([]byte),
				Comment:     values[1].(string),
				Constraints: values[2].([]Constraint),
			}
		},
	},
}

var agentSchemas = []*schema{
	{
		frameType: TypeFailure,
		name:      "failure",
		build:     func([]any) Frame { return &Failure{} },
	},
	{
		frameType: TypeSuccess,
		name:      "success",
		build:     func([]any) Frame { return &Success{} },
	},
	{
		frameType: TypeIdentitiesAnswer,
		name:      "identities-answer",
		arguments: []argument{
			{"identities", Identities, field(func(f *IdentitiesAnswer) any {
				if f.Identities == nil {
					return []Identity{}
				}
				return f.Identities
			})},
		},
		build: func(values []any) Frame {
			return &IdentitiesAnswer{Identities: values[0].([]Identity)}
		},
	},
	{
		frameType: TypeSignResponse,
		name:      "sign-response",
		arguments: []argument{
			{"signature", Buffer, field(func(f *SignResponse) any { return blob(f.Signature) })},
		},
		build: func(values []any) Frame {
			return &SignResponse{Signature: values[0].([]byte)}
		},
	},
}

var (
	registry    = map[Direction]map[FrameType]*schema{}
	schemaNames = map[string]*schema{}
)

func init() {
	register := func(direction Direction, entries []*schema) {
		table := make(map[FrameType]*schema, len(entries))
		for _, entry := range entries {
			entry.direction = direction
			if _, duplicate := table[entry.frameType]; duplicate {
				panic(fmt.Sprintf("agentwire: frame type %d registered twice for %s", entry.frameType, direction))
			}
			if _, duplicate := schemaNames[entry.name]; duplicate {
				panic(fmt.Sprintf("agentwire: frame name %q registered twice", entry.name))
			}
			table[entry.frameType] = entry
			schemaNames[entry.name] = entry
		}
		registry[direction] = table
	}
	register(FromClient, clientSchemas)
	register(FromAgent, agentSchemas)
}

// lookup returns the schema for a frame type in one direction, or nil.
func lookup(direction Direction, frameType FrameType) *schema {
	return registry[direction][frameType]
}

// lookupAny returns the schema for a frame type in either direction.
// The two directions use disjoint type numbers.
func lookupAny(frameType FrameType) *schema {
	if entry := lookup(FromClient, frameType); entry != nil {
		return entry
	}
	return lookup(FromAgent, frameType)
}

// ParseFrameType returns the frame type with the given protocol name,
// ignoring case, along with the direction it travels in.
func ParseFrameType(name string) (FrameType, Direction, error) {
	entry, ok := schemaNames[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return 0, 0, fmt.Errorf("unknown frame type %q (known: %s)", name, strings.Join(FrameNames(), ", "))
	}
	return entry.frameType, entry.direction, nil
}

// FrameNames returns the protocol names of every registered frame type
// in sorted order.
func FrameNames() []string {
	names := make([]string, 0, len(schemaNames))
	for name := range schemaNames {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DirectionOf returns the direction a frame type travels in.
func DirectionOf(frameType FrameType) (Direction, bool) {
	entry := lookupAny(frameType)
	if entry == nil {
		return 0, false
	}
	return entry.direction, true
}
