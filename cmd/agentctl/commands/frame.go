// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"reflect"
	"strconv"
	"strings"
	"unicode"

	"github.com/bureau-foundation/sshagent/cmd/agentctl/cli"
	"github.com/bureau-foundation/sshagent/lib/agentkey"
	"github.com/bureau-foundation/sshagent/lib/agentwire"
)

func (a *app) frameCommand() *cli.Command {
	return &cli.Command{
		Name:    "frame",
		Summary: "Encode or decode raw agent protocol frames",
		Description: `Encode or decode agent protocol frames without talking to an agent.

Frames are written and read as hex: a four-byte big-endian length, the
type byte, then the payload. Binary arguments (key blobs, data,
signatures) are given in hex.`,
		Subcommands: []*cli.Command{
			a.frameEncodeCommand(),
			a.frameDecodeCommand(),
		},
	}
}

type frameEncodeParams struct {
	Raw bool `flag:"raw" desc:"write the frame bytes instead of hex"`
}

func (a *app) frameEncodeCommand() *cli.Command {
	var params frameEncodeParams
	return &cli.Command{
		Name:    "encode",
		Summary: "Encode a frame from its type name and arguments",
		Description: `Encode a frame. TYPE is a protocol name such as sign-request; the
arguments depend on the type:

  request-identities, remove-all-identities, success, failure
  sign-request KEYHEX DATAHEX [FLAG...]
  add-identity PRIVATEKEYHEX COMMENT
  add-identity-constrained PRIVATEKEYHEX COMMENT [lifetime=SECONDS|confirm...]
  remove-identity KEYHEX
  lock PASSPHRASE
  unlock PASSPHRASE
  identities-answer [KEYHEX COMMENT...]
  sign-response SIGNATUREHEX`,
		Usage:  "agentctl frame encode [--raw] TYPE [ARGUMENT...]",
		Params: func() any { return &params },
		Examples: []cli.Example{
			{
				Description: "The request that lists keys",
				Command:     "agentctl frame encode request-identities",
			},
		},
		Run: func(args []string) error {
			if len(args) == 0 {
				return fmt.Errorf("TYPE required (one of %s)", strings.Join(agentwire.FrameNames(), ", "))
			}
			frameType, direction, err := agentwire.ParseFrameType(args[0])
			if err != nil {
				return err
			}
			frame, err := buildFrame(frameType, args[1:])
			if err != nil {
				return fmt.Errorf("%s: %w", frameType, err)
			}
			encoded, err := agentwire.NewEncoder(direction).Encode(frame)
			if err != nil {
				return err
			}
			if params.Raw {
				_, err := a.stdout.Write(encoded)
				return err
			}
			_, err = fmt.Fprintln(a.stdout, hex.EncodeToString(encoded))
			return err
		},
	}
}

// buildFrame constructs a frame of the given type from command-line
// arguments.
func buildFrame(frameType agentwire.FrameType, args []string) (agentwire.Frame, error) {
	switch frameType {
	case agentwire.TypeRequestIdentities:
		return &agentwire.RequestIdentities{}, noArguments(args)
	case agentwire.TypeRemoveAllIdentities:
		return &agentwire.RemoveAllIdentities{}, noArguments(args)
	case agentwire.TypeSuccess:
		return &agentwire.Success{}, noArguments(args)
	case agentwire.TypeFailure:
		return &agentwire.Failure{}, noArguments(args)

	case agentwire.TypeSignRequest:
		if len(args) < 2 {
			return nil, errors.New("expected KEYHEX DATAHEX [FLAG...]")
		}
		frame := &agentwire.SignRequest{}
		var err error
		if frame.PublicKey, err = hexArgument("key", args[0]); err != nil {
			return nil, err
		}
		if frame.Data, err = hexArgument("data", args[1]); err != nil {
			return nil, err
		}
		for _, name := range args[2:] {
			flag, err := agentwire.ParseSignFlag(name)
			if err != nil {
				return nil, err
			}
			frame.Flags |= flag
		}
		return frame, nil

	case agentwire.TypeAddIdentity, agentwire.TypeAddIdentityConstrained:
		if len(args) < 2 {
			return nil, errors.New("expected PRIVATEKEYHEX COMMENT")
		}
		privateKey, err := hexArgument("private key", args[0])
		if err != nil {
			return nil, err
		}
		constraints := []agentwire.Constraint{}
		for _, arg := range args[2:] {
			if frameType == agentwire.TypeAddIdentity {
				return nil, fmt.Errorf("unexpected argument %q", arg)
			}
			constraint, err := parseConstraint(arg)
			if err != nil {
				return nil, err
			}
			constraints = append(constraints, constraint)
		}
		// The private key has no length prefix of its own, so a
		// malformed one would corrupt every field after it.
		if err := agentwire.ValidatePrivateKey(privateKey); err != nil {
			return nil, fmt.Errorf("private key: %w", err)
		}
		if frameType == agentwire.TypeAddIdentity {
			return &agentwire.AddIdentity{PrivateKey: privateKey, Comment: args[1]}, nil
		}
		return &agentwire.AddIdentityConstrained{PrivateKey: privateKey, Comment: args[1], Constraints: constraints}, nil

	case agentwire.TypeRemoveIdentity:
		if len(args) != 1 {
			return nil, errors.New("expected KEYHEX")
		}
		publicKey, err := hexArgument("key", args[0])
		return &agentwire.RemoveIdentity{PublicKey: publicKey}, err

	case agentwire.TypeLock, agentwire.TypeUnlock:
		if len(args) != 1 {
			return nil, errors.New("expected PASSPHRASE")
		}
		if frameType == agentwire.TypeLock {
			return &agentwire.Lock{Passphrase: args[0]}, nil
		}
		return &agentwire.Unlock{Passphrase: args[0]}, nil

	case agentwire.TypeIdentitiesAnswer:
		if len(args)%2 != 0 {
			return nil, errors.New("expected KEYHEX COMMENT pairs")
		}
		frame := &agentwire.IdentitiesAnswer{Identities: []agentwire.Identity{}}
		for i := 0; i < len(args); i += 2 {
			blob, err := hexArgument("key", args[i])
			if err != nil {
				return nil, err
			}
			frame.Identities = append(frame.Identities, agentwire.Identity{KeyBlob: blob, Comment: args[i+1]})
		}
		return frame, nil

	case agentwire.TypeSignResponse:
		if len(args) != 1 {
			return nil, errors.New("expected SIGNATUREHEX")
		}
		signature, err := hexArgument("signature", args[0])
		return &agentwire.SignResponse{Signature: signature}, err
	}
	return nil, fmt.Errorf("no encoder for frame type %d", uint8(frameType))
}

func noArguments(args []string) error {
	if len(args) > 0 {
		return fmt.Errorf("takes no arguments, got %q", args[0])
	}
	return nil
}

func hexArgument(name, value string) ([]byte, error) {
	decoded, err := hex.DecodeString(value)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return decoded, nil
}

func parseConstraint(arg string) (agentwire.Constraint, error) {
	if arg == "confirm" {
		return agentwire.Confirm(), nil
	}
	if value, ok := strings.CutPrefix(arg, "lifetime="); ok {
		seconds, err := strconv.ParseUint(value, 10, 32)
		if err != nil {
			return agentwire.Constraint{}, fmt.Errorf("lifetime: %w", err)
		}
		return agentwire.Lifetime(uint32(seconds)), nil
	}
	return agentwire.Constraint{}, fmt.Errorf("unknown constraint %q (want lifetime=SECONDS or confirm)", arg)
}

type frameDecodeParams struct {
	cli.Output
	Direction string `flag:"direction" desc:"client or agent (default: from the first frame's type)"`
}

// frameView is the decoded form of one frame.
type frameView struct {
	Type      string      `json:"type"             cbor:"type"`
	Number    uint8       `json:"number"           cbor:"number"`
	Direction string      `json:"direction"        cbor:"direction"`
	Fields    []fieldView `json:"fields,omitempty" cbor:"fields,omitempty"`
}

type fieldView struct {
	Name  string `json:"name"  cbor:"name"`
	Value any    `json:"value" cbor:"value"`
}

type identityView struct {
	Type        string `json:"type"        cbor:"type"`
	Fingerprint string `json:"fingerprint" cbor:"fingerprint"`
	Comment     string `json:"comment"     cbor:"comment"`
}

func (a *app) frameDecodeCommand() *cli.Command {
	var params frameDecodeParams
	return &cli.Command{
		Name:    "decode",
		Summary: "Decode frames from hex",
		Description: `Decode one or more concatenated frames given in hex, as an argument or
on standard input. Whitespace in the input is ignored.`,
		Usage:  "agentctl frame decode [--direction client|agent] [--json|--cbor] [HEX]",
		Params: func() any { return &params },
		Examples: []cli.Example{
			{
				Description: "Decode a captured sign request",
				Command:     "agentctl frame decode --json 0000000f0d...",
			},
		},
		Run: func(args []string) error {
			var input string
			switch len(args) {
			case 0:
				data, err := io.ReadAll(a.stdin)
				if err != nil {
					return fmt.Errorf("reading standard input: %w", err)
				}
				input = string(data)
			case 1:
				input = args[0]
			default:
				return errors.New("expected at most one HEX argument")
			}
			data, err := hex.DecodeString(strings.Map(dropSpace, input))
			if err != nil {
				return fmt.Errorf("decoding hex: %w", err)
			}
			direction, err := decodeDirection(params.Direction, data)
			if err != nil {
				return err
			}

			decoder := agentwire.NewDecoder(direction)
			frames, decodeErr := decoder.Write(data)
			if decodeErr == nil {
				decodeErr = decoder.Close()
			}
			views := make([]frameView, 0, len(frames))
			for _, frame := range frames {
				views = append(views, describeFrame(direction, frame))
			}
			if done, err := params.Emit(a.stdout, views); done {
				return errors.Join(err, decodeErr)
			}
			for _, view := range views {
				writeFrameView(a.stdout, view)
			}
			return decodeErr
		},
	}
}

func dropSpace(r rune) rune {
	if unicode.IsSpace(r) {
		return -1
	}
	return r
}

// decodeDirection parses the --direction flag, or infers the direction
// from the type byte of the first frame.
func decodeDirection(flag string, data []byte) (agentwire.Direction, error) {
	switch flag {
	case "client":
		return agentwire.FromClient, nil
	case "agent":
		return agentwire.FromAgent, nil
	case "":
	default:
		return 0, fmt.Errorf("--direction must be client or agent, got %q", flag)
	}
	if len(data) < 5 {
		return 0, errors.New("input is shorter than one frame header; pass --direction to decode it anyway")
	}
	direction, ok := agentwire.DirectionOf(agentwire.FrameType(data[4]))
	if !ok {
		return 0, fmt.Errorf("unknown frame type %d", data[4])
	}
	return direction, nil
}

// describeFrame lists the exported fields of a frame struct under
// snake_case names, with binary values in hex.
func describeFrame(direction agentwire.Direction, frame agentwire.Frame) frameView {
	view := frameView{
		Type:      frame.FrameType().String(),
		Number:    uint8(frame.FrameType()),
		Direction: direction.String(),
	}
	value := reflect.ValueOf(frame).Elem()
	for i := range value.NumField() {
		field := value.Type().Field(i)
		view.Fields = append(view.Fields, fieldView{
			Name:  snakeCase(field.Name),
			Value: describeValue(value.Field(i).Interface()),
		})
	}
	return view
}

func describeValue(value any) any {
	switch typed := value.(type) {
	case []byte:
		return hex.EncodeToString(typed)
	case agentwire.SignFlags:
		names := typed.Names()
		if names == nil {
			names = []string{}
		}
		return names
	case []agentwire.Constraint:
		constraints := make([]string, 0, len(typed))
		for _, constraint := range typed {
			switch constraint.Kind {
			case agentwire.ConstraintLifetime:
				constraints = append(constraints, fmt.Sprintf("lifetime=%d", constraint.LifetimeSeconds))
			case agentwire.ConstraintConfirm:
				constraints = append(constraints, "confirm")
			default:
				constraints = append(constraints, fmt.Sprintf("constraint-%d", constraint.Kind))
			}
		}
		return constraints
	case []agentwire.Identity:
		identities := make([]identityView, 0, len(typed))
		for _, identity := range typed {
			view := identityView{Comment: identity.Comment, Type: "unknown", Fingerprint: "unknown"}
			if keyType, err := agentkey.KeyType(identity.KeyBlob); err == nil {
				view.Type = keyType
			}
			if fingerprint, err := agentkey.Fingerprint(identity.KeyBlob); err == nil {
				view.Fingerprint = fingerprint
			}
			identities = append(identities, view)
		}
		return identities
	}
	return value
}

func writeFrameView(w io.Writer, view frameView) {
	fmt.Fprintf(w, "%s (%d, from %s)\n", view.Type, view.Number, view.Direction)
	for _, field := range view.Fields {
		switch value := field.Value.(type) {
		case []string:
			fmt.Fprintf(w, "  %s: %s\n", field.Name, strings.Join(value, ", "))
		case []identityView:
			fmt.Fprintf(w, "  %s: %d\n", field.Name, len(value))
			for _, identity := range value {
				fmt.Fprintf(w, "    %s %s (%s)\n", identity.Fingerprint, identity.Comment, identity.Type)
			}
		default:
			fmt.Fprintf(w, "  %s: %v\n", field.Name, value)
		}
	}
}

// snakeCase converts a Go field name such as KeyBlob to key_blob.
func snakeCase(name string) string {
	var builder strings.Builder
	for i, r := range name {
		if unicode.IsUpper(r) {
			if i > 0 {
				builder.WriteByte('_')
			}
			r = unicode.ToLower(r)
		}
		builder.WriteRune(r)
	}
	return builder.String()
}
