// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// ReadSecret reads a passphrase. When in is a terminal it writes prompt
// to promptOutput and reads without echo; otherwise it reads one line
// from in, without the line ending.
func ReadSecret(in io.Reader, promptOutput io.Writer, prompt string) ([]byte, error) {
	if file, ok := in.(*os.File); ok && term.IsTerminal(int(file.Fd())) {
		fmt.Fprint(promptOutput, prompt)
		secret, err := term.ReadPassword(int(file.Fd()))
		fmt.Fprintln(promptOutput)
		if err != nil {
			return nil, fmt.Errorf("reading passphrase: %w", err)
		}
		return secret, nil
	}

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("reading passphrase: %w", err)
	}
	if err != nil && line == "" {
		return nil, errors.New("reading passphrase: no input")
	}
	return []byte(strings.TrimRight(line, "\r\n")), nil
}
