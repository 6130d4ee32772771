// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/bureau-foundation/sshagent/cmd/agentctl/cli"
	"github.com/bureau-foundation/sshagent/lib/agentwire"
	"github.com/bureau-foundation/sshagent/lib/sshagent"
	"golang.org/x/crypto/ssh"
)

type signParams struct {
	cli.Output
	Key   string   `flag:"key,k" desc:"fingerprint (SHA256:...) or public key file of the signing key"`
	Flags []string `flag:"flags" desc:"sign flags: rsa-sha2-256, rsa-sha2-512, old-signature"`
}

// signatureResult is the output of "agentctl sign".
type signatureResult struct {
	Format        string `json:"format"         cbor:"format"`
	HashAlgorithm string `json:"hash_algorithm" cbor:"hash_algorithm"`
	Signature     []byte `json:"signature"      cbor:"signature"`
}

func (a *app) signCommand() *cli.Command {
	var params signParams
	return &cli.Command{
		Name:    "sign",
		Summary: "Sign data with a key held by the agent",
		Description: `Sign the contents of FILE, or standard input, with a key held by the
agent. Prints the signature format, the hash the agent signed with, and
the complete SSH signature encoding in base64.

The signature is verified against the public key before it is printed.`,
		Usage:  "agentctl sign --key FINGERPRINT [--flags rsa-sha2-256] [FILE]",
		Params: func() any { return &params },
		Examples: []cli.Example{
			{
				Description: "Sign with an RSA key using SHA-512",
				Command:     "agentctl sign --key ~/.ssh/id_rsa.pub --flags rsa-sha2-512 message.txt",
			},
		},
		Run: func(args []string) error {
			if params.Key == "" {
				return errors.New("--key is required")
			}
			if len(args) > 1 {
				return fmt.Errorf("expected at most one FILE, got %d arguments", len(args))
			}
			var flags agentwire.SignFlags
			for _, name := range params.Flags {
				flag, err := agentwire.ParseSignFlag(name)
				if err != nil {
					return err
				}
				flags |= flag
			}
			data, err := a.readInput(args)
			if err != nil {
				return err
			}

			return a.withClient(func(ctx context.Context, client *sshagent.Client) error {
				keyBlob, err := resolveIdentity(ctx, client, params.Key)
				if err != nil {
					return err
				}
				signature, err := client.Sign(ctx, keyBlob, data, flags)
				if err != nil {
					return err
				}
				publicKey, err := ssh.ParsePublicKey(keyBlob)
				if err != nil {
					return fmt.Errorf("parsing signing key: %w", err)
				}
				if err := signature.Verify(publicKey, data); err != nil {
					return fmt.Errorf("agent returned a signature that does not verify: %w", err)
				}

				result := signatureResult{
					Format:        signature.Format,
					HashAlgorithm: signature.HashAlgorithm,
					Signature:     signature.Raw,
				}
				if done, err := params.Emit(a.stdout, result); done {
					return err
				}
				fmt.Fprintf(a.stdout, "format: %s\nhash: %s\nsignature: %s\n",
					result.Format, result.HashAlgorithm, base64.StdEncoding.EncodeToString(result.Signature))
				return nil
			})
		},
	}
}

// readInput reads the named file, or standard input when no file or
// "-" is given.
func (a *app) readInput(args []string) ([]byte, error) {
	if len(args) == 0 || args[0] == "-" {
		data, err := io.ReadAll(a.stdin)
		if err != nil {
			return nil, fmt.Errorf("reading standard input: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return nil, err
	}
	return data, nil
}
