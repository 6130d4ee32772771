// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/bureau-foundation/sshagent/lib/agentkey"
	"github.com/bureau-foundation/sshagent/lib/sshagent"
	"golang.org/x/crypto/ssh"
)

// resolveIdentity returns the public blob named by selector: a SHA256
// fingerprint of a key the agent holds (as "list --all" prints it), or
// the path of a public key or certificate file.
func resolveIdentity(ctx context.Context, client *sshagent.Client, selector string) ([]byte, error) {
	if !strings.HasPrefix(selector, "SHA256:") {
		return readPublicKeyFile(selector)
	}

	identities, err := client.List(ctx)
	if err != nil {
		return nil, err
	}
	for _, identity := range identities {
		fingerprint, err := agentkey.Fingerprint(identity.KeyBlob)
		if err == nil && fingerprint == selector {
			return identity.KeyBlob, nil
		}
	}
	return nil, fmt.Errorf("the agent holds no key with fingerprint %s", selector)
}

// readPublicKeyFile reads a public key or certificate in
// authorized_keys format and returns its wire blob.
func readPublicKeyFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	publicKey, _, _, _, err := ssh.ParseAuthorizedKey(data)
	if err != nil {
		return nil, fmt.Errorf("parsing public key %s: %w", path, err)
	}
	return publicKey.Marshal(), nil
}
