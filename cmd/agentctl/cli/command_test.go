// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"bytes"
	"strings"
	"testing"

	"github.com/spf13/pflag"
)

func TestCommand_Execute_DispatchesToSubcommand(t *testing.T) {
	t.Parallel()
	var called string

	root := &Command{
		Name: "agentctl",
		Subcommands: []*Command{
			{Name: "list", Run: func(args []string) error { called = "list"; return nil }},
			{Name: "lock", Run: func(args []string) error { called = "lock"; return nil }},
		},
	}

	if err := root.Execute([]string{"lock"}); err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if called != "lock" {
		t.Errorf("dispatched to %q, want %q", called, "lock")
	}
}

func TestCommand_Execute_NestedSubcommands(t *testing.T) {
	t.Parallel()
	var receivedArgs []string

	root := &Command{
		Name: "agentctl",
		Subcommands: []*Command{
			{
				Name: "frame",
				Subcommands: []*Command{
					{
						Name: "decode",
						Run: func(args []string) error {
							receivedArgs = args
							return nil
						},
					},
				},
			},
		},
	}

	if err := root.Execute([]string{"frame", "decode", "000000010b"}); err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if len(receivedArgs) != 1 || receivedArgs[0] != "000000010b" {
		t.Errorf("args = %v, want [000000010b]", receivedArgs)
	}
}

func TestCommand_Execute_GlobalFlagsBeforeSubcommand(t *testing.T) {
	t.Parallel()
	var socketPath string
	var verbose bool
	var receivedArgs []string

	root := &Command{
		Name: "agentctl",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("agentctl", pflag.ContinueOnError)
			flagSet.StringVar(&socketPath, "socket", "", "agent socket")
			return flagSet
		},
		Subcommands: []*Command{
			{
				Name: "list",
				Flags: func() *pflag.FlagSet {
					flagSet := pflag.NewFlagSet("list", pflag.ContinueOnError)
					flagSet.BoolVar(&verbose, "verbose", false, "")
					return flagSet
				},
				Run: func(args []string) error {
					receivedArgs = args
					return nil
				},
			},
		},
	}

	err := root.Execute([]string{"--socket", "/tmp/agent.sock", "list", "--verbose", "extra"})
	if err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if socketPath != "/tmp/agent.sock" {
		t.Errorf("socket = %q", socketPath)
	}
	if !verbose {
		t.Error("subcommand flag after the subcommand name was not parsed")
	}
	if len(receivedArgs) != 1 || receivedArgs[0] != "extra" {
		t.Errorf("args = %v, want [extra]", receivedArgs)
	}
}

func TestCommand_Execute_ParamsFlags(t *testing.T) {
	t.Parallel()
	var params struct {
		Key string `flag:"key,k" desc:"key fingerprint"`
	}
	var ran bool
	command := &Command{
		Name:   "sign",
		Params: func() any { return &params },
		Run: func(args []string) error {
			ran = true
			return nil
		},
	}
	if err := command.Execute([]string{"-k", "SHA256:abc"}); err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if !ran || params.Key != "SHA256:abc" {
		t.Errorf("ran=%v key=%q", ran, params.Key)
	}
}

func TestCommand_Execute_UnknownCommandSuggests(t *testing.T) {
	t.Parallel()
	root := &Command{
		Name: "agentctl",
		Subcommands: []*Command{
			{Name: "remove", Run: func([]string) error { return nil }},
			{Name: "remove-all", Run: func([]string) error { return nil }},
		},
	}
	err := root.Execute([]string{"remvoe"})
	if err == nil {
		t.Fatal("expected error for unknown command")
	}
	if !strings.Contains(err.Error(), `did you mean "remove"`) {
		t.Errorf("error = %v, want a suggestion of remove", err)
	}
}

func TestCommand_Execute_UnknownFlagSuggests(t *testing.T) {
	t.Parallel()
	var params struct {
		Lifetime string `flag:"lifetime" desc:"key lifetime"`
	}
	command := &Command{
		Name:   "add",
		Params: func() any { return &params },
		Run:    func([]string) error { return nil },
	}
	err := command.Execute([]string{"--lifetme", "1h"})
	if err == nil {
		t.Fatal("expected error for unknown flag")
	}
	if !strings.Contains(err.Error(), "did you mean --lifetime") {
		t.Errorf("error = %v, want a suggestion of --lifetime", err)
	}
}

func TestCommand_Execute_Help(t *testing.T) {
	t.Parallel()
	var help bytes.Buffer
	var params struct {
		All bool `flag:"all" desc:"include certificates"`
	}
	root := &Command{
		Name:   "agentctl",
		Output: &help,
		Subcommands: []*Command{
			{
				Name:    "list",
				Summary: "List agent keys",
				Params:  func() any { return &params },
				Examples: []Example{
					{Description: "Everything, as JSON", Command: "agentctl list --all --json"},
				},
				Run: func([]string) error {
					t.Error("Run called for a help request")
					return nil
				},
			},
		},
	}

	if err := root.Execute([]string{"--help"}); err != nil {
		t.Fatalf("Execute(--help) error: %v", err)
	}
	if !strings.Contains(help.String(), "List agent keys") {
		t.Errorf("root help does not list subcommands:\n%s", help.String())
	}

	help.Reset()
	if err := root.Execute([]string{"list", "--all", "--help"}); err != nil {
		t.Fatalf("Execute(list --all --help) error: %v", err)
	}
	for _, want := range []string{"agentctl list", "--all", "include certificates", "Everything, as JSON"} {
		if !strings.Contains(help.String(), want) {
			t.Errorf("list help missing %q:\n%s", want, help.String())
		}
	}
}

func TestCommand_Execute_SubcommandRequired(t *testing.T) {
	t.Parallel()
	root := &Command{
		Name:   "frame",
		Output: &bytes.Buffer{},
		Subcommands: []*Command{
			{Name: "encode", Run: func([]string) error { return nil }},
		},
	}
	if err := root.Execute(nil); err == nil || !strings.Contains(err.Error(), "subcommand required") {
		t.Errorf("Execute(nil) = %v, want subcommand required", err)
	}
}

func TestLevenshtein(t *testing.T) {
	t.Parallel()
	tests := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"list", "", 4},
		{"list", "list", 0},
		{"lsit", "list", 2},
		{"unlock", "lock", 2},
		{"certs", "cert", 1},
	}
	for _, test := range tests {
		if got := levenshtein(test.a, test.b); got != test.want {
			t.Errorf("levenshtein(%q, %q) = %d, want %d", test.a, test.b, got, test.want)
		}
	}
}
