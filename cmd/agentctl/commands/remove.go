// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/bureau-foundation/sshagent/cmd/agentctl/cli"
	"github.com/bureau-foundation/sshagent/lib/sshagent"
)

func (a *app) removeCommand() *cli.Command {
	return &cli.Command{
		Name:    "remove",
		Summary: "Remove a key or certificate from the agent",
		Usage:   "agentctl remove FINGERPRINT|PUBKEYFILE",
		Examples: []cli.Example{
			{
				Description: "Remove a key by its public key file",
				Command:     "agentctl remove ~/.ssh/id_ed25519.pub",
			},
		},
		Run: func(args []string) error {
			if len(args) != 1 {
				return errors.New("expected exactly one FINGERPRINT or PUBKEYFILE")
			}
			return a.withClient(func(ctx context.Context, client *sshagent.Client) error {
				keyBlob, err := resolveIdentity(ctx, client, args[0])
				if err != nil {
					return err
				}
				if err := client.RemoveIdentity(ctx, keyBlob); err != nil {
					return err
				}
				fmt.Fprintf(a.stderr, "Identity removed: %s\n", args[0])
				return nil
			})
		},
	}
}

func (a *app) removeAllCommand() *cli.Command {
	return &cli.Command{
		Name:    "remove-all",
		Summary: "Remove every key and certificate from the agent",
		Usage:   "agentctl remove-all",
		Run: func(args []string) error {
			if len(args) > 0 {
				return fmt.Errorf("unexpected argument %q", args[0])
			}
			return a.withClient(func(ctx context.Context, client *sshagent.Client) error {
				if err := client.RemoveAll(ctx); err != nil {
					return err
				}
				fmt.Fprintln(a.stderr, "All identities removed.")
				return nil
			})
		},
	}
}
