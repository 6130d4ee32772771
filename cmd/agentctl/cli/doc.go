// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package cli provides the command-line framework for agentctl.
//
// The central type is [Command], which represents a named subcommand with
// optional nested [Command.Subcommands], a flag set (built from a
// [pflag.FlagSet] factory or a tagged params struct), and a Run function.
// Commands are dispatched via [Command.Execute], which handles flag
// parsing, subcommand routing, and structured help output with examples.
// A command that has both subcommands and flags treats its flags as
// global options: they are parsed before the subcommand name.
//
// When a user types an unknown subcommand or flag, the framework computes
// Levenshtein edit distance against all known names and suggests the
// closest match (threshold: distance <= 3).
//
// The rest of the package is shared plumbing for the commands:
//
//   - [FlagsFromParams] / [BindFlags]: struct-tag flag binding.
//   - [Output]: --json and --cbor output selection.
//   - [NewCommandLogger]: text logs on a terminal, JSON otherwise.
//   - [ReadSecret]: passphrase prompts without echo.
//   - [ExitError]: a non-zero exit with no extra error line.
package cli
