// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"

	"github.com/bureau-foundation/sshagent/cmd/agentctl/cli"
	"github.com/bureau-foundation/sshagent/lib/sshagent"
)

func (a *app) lockCommand() *cli.Command {
	return &cli.Command{
		Name:    "lock",
		Summary: "Lock the agent with a passphrase",
		Description: `Lock the agent. A locked agent lists no keys and refuses to sign until
it is unlocked with the same passphrase. The passphrase is read from the
terminal, or as one line of standard input.`,
		Usage: "agentctl lock",
		Run: func(args []string) error {
			return a.runLock(args, "Enter lock password: ", "Agent locked.",
				func(ctx context.Context, client *sshagent.Client, passphrase string) error {
					return client.Lock(ctx, passphrase)
				})
		},
	}
}

func (a *app) unlockCommand() *cli.Command {
	return &cli.Command{
		Name:    "unlock",
		Summary: "Unlock a locked agent",
		Usage:   "agentctl unlock",
		Run: func(args []string) error {
			return a.runLock(args, "Enter lock password: ", "Agent unlocked.",
				func(ctx context.Context, client *sshagent.Client, passphrase string) error {
					return client.Unlock(ctx, passphrase)
				})
		},
	}
}

func (a *app) runLock(args []string, prompt, done string, operation func(context.Context, *sshagent.Client, string) error) error {
	if len(args) > 0 {
		return fmt.Errorf("unexpected argument %q", args[0])
	}
	passphrase, err := cli.ReadSecret(a.stdin, a.stderr, prompt)
	if err != nil {
		return err
	}
	return a.withClient(func(ctx context.Context, client *sshagent.Client) error {
		if err := operation(ctx, client, string(passphrase)); err != nil {
			return err
		}
		fmt.Fprintln(a.stderr, done)
		return nil
	})
}
