// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package commands builds the agentctl command tree. Every command that
// talks to the agent goes through one [sshagent.Client], configured
// from lib/config with the global flags applied on top.
package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/bureau-foundation/sshagent/cmd/agentctl/cli"
	"github.com/bureau-foundation/sshagent/lib/config"
	"github.com/bureau-foundation/sshagent/lib/sshagent"
	"github.com/bureau-foundation/sshagent/lib/version"
)

// globals are the flags accepted before the command name.
type globals struct {
	ConfigPath string        `flag:"config" desc:"configuration file (default $SSHAGENT_CONFIG)"`
	SocketPath string        `flag:"socket" desc:"agent socket (default $SSH_AUTH_SOCK)"`
	Timeout    time.Duration `flag:"timeout" desc:"per-request timeout (overrides the configuration)"`
	Version    bool          `flag:"version" desc:"print version information and exit"`
}

// app carries the global flags and the standard streams to every
// command.
type app struct {
	globals

	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
}

// Root builds the agentctl command tree on the process's standard
// streams.
func Root() *cli.Command {
	return newRoot(os.Stdin, os.Stdout, os.Stderr)
}

func newRoot(stdin io.Reader, stdout, stderr io.Writer) *cli.Command {
	a := &app{stdin: stdin, stdout: stdout, stderr: stderr}
	root := &cli.Command{
		Name: "agentctl",
		Description: `agentctl: talk to a running SSH agent.

The agent socket comes from --socket, the configuration file, or
$SSH_AUTH_SOCK, in that order. The configuration file is named by
--config or $SSHAGENT_CONFIG.`,
		Params: func() any { return &a.globals },
		Output: stderr,
		Subcommands: []*cli.Command{
			a.listCommand(),
			a.certsCommand(),
			a.signCommand(),
			a.addCommand(),
			a.removeCommand(),
			a.removeAllCommand(),
			a.lockCommand(),
			a.unlockCommand(),
			a.frameCommand(),
			{
				Name:    "version",
				Summary: "Print version information",
				Run: func([]string) error {
					return a.printVersion()
				},
			},
		},
		Run: func(args []string) error {
			if a.Version {
				return a.printVersion()
			}
			if len(args) > 0 {
				return fmt.Errorf("unknown command %q\n\nRun 'agentctl --help' for usage.", args[0])
			}
			return errors.New("command required\n\nRun 'agentctl --help' for usage.")
		},
		Examples: []cli.Example{
			{
				Description: "List the keys the agent holds",
				Command:     "agentctl list",
			},
			{
				Description: "Add a key for one hour, confirming each use",
				Command:     "agentctl add --lifetime 1h --confirm ~/.ssh/id_ed25519",
			},
			{
				Description: "Sign a file with a specific key",
				Command:     "agentctl sign --key SHA256:nThbg6kXUpJWGl7E1IGOCspRomTxdCARLviKw6E5SY8 release.tar",
			},
			{
				Description: "Decode a captured request frame",
				Command:     "agentctl frame decode 000000010b",
			},
		},
	}
	return root
}

func (a *app) printVersion() error {
	_, err := fmt.Fprintf(a.stdout, "agentctl %s\n", version.Full())
	return err
}

// loadConfig loads the configuration file and applies the global
// flags over it.
func (a *app) loadConfig() (*config.Config, error) {
	var cfg *config.Config
	var err error
	if a.ConfigPath != "" {
		cfg, err = config.LoadFile(a.ConfigPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}
	if a.SocketPath != "" {
		cfg.SocketPath = a.SocketPath
	}
	if a.Timeout != 0 {
		cfg.Timeout = a.Timeout.String()
	}
	return cfg, nil
}

// withClient runs fn with a client for the configured agent. The
// context is canceled on interrupt.
func (a *app) withClient(fn func(ctx context.Context, client *sshagent.Client) error) error {
	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}
	level, err := cfg.SlogLevel()
	if err != nil {
		return err
	}
	logger := cli.NewCommandLogger(a.stderr, level)
	options, err := cfg.ClientOptions(logger)
	if err != nil {
		return err
	}
	client, err := sshagent.New(options)
	if err != nil {
		return err
	}
	defer client.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	err = fn(ctx, client)
	if logger.Enabled(ctx, slog.LevelDebug) {
		for _, record := range client.Recent() {
			logger.Debug("agent request",
				"id", record.ID,
				"frame", record.Frame,
				"reply", record.Reply,
				"error", record.Error,
				"attempts", record.Attempts,
				"duration", record.Finished.Sub(record.Queued),
			)
		}
	}
	return err
}
