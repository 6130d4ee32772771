// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// agentctl talks to a running SSH agent: it lists, adds and removes
// keys, signs data, locks the agent, and encodes or decodes raw agent
// protocol frames for inspection.
package main

import (
	"fmt"
	"os"

	"github.com/bureau-foundation/sshagent/cmd/agentctl/commands"
)

func main() {
	if err := run(); err != nil {
		// Commands that print their own output (like list on an empty
		// agent) return an error carrying the exit code. Don't print a
		// redundant "error:" line for those.
		if coder, ok := err.(interface{ ExitCode() int }); ok {
			os.Exit(coder.ExitCode())
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	return commands.Root().Execute(os.Args[1:])
}
