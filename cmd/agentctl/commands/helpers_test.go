// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bureau-foundation/sshagent/lib/testutil"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
)

// startAgent serves an in-memory keyring on a Unix socket.
func startAgent(t *testing.T) (string, agent.Agent) {
	t.Helper()
	socketPath := testutil.SocketPath(t, "agent.sock")
	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		t.Fatalf("listening on %s: %v", socketPath, err)
	}
	t.Cleanup(func() { listener.Close() })

	keyring := agent.NewKeyring()
	go func() {
		for {
			conn, err := listener.Accept()
			if err != nil {
				return
			}
			go func() {
				defer conn.Close()
				agent.ServeAgent(keyring, conn)
			}()
		}
	}()
	return socketPath, keyring
}

type result struct {
	stdout string
	stderr string
	err    error
}

// runCLI runs agentctl against socketPath with an explicit config file,
// so the test does not depend on $SSHAGENT_CONFIG.
func runCLI(t *testing.T, socketPath, stdin string, args ...string) result {
	t.Helper()
	configPath := filepath.Join(t.TempDir(), "agentctl.yaml")
	if err := os.WriteFile(configPath, []byte("log_level: error\ntimeout: 10s\n"), 0644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	global := []string{"--config", configPath}
	if socketPath != "" {
		global = append(global, "--socket", socketPath)
	}

	var stdout, stderr bytes.Buffer
	err := newRoot(strings.NewReader(stdin), &stdout, &stderr).Execute(append(global, args...))
	return result{stdout: stdout.String(), stderr: stderr.String(), err: err}
}

// writeKey writes an ed25519 key in OpenSSH format, encrypted when
// passphrase is non-empty, and returns its path and public key.
func writeKey(t *testing.T, passphrase string) (string, ssh.PublicKey, ed25519.PrivateKey) {
	t.Helper()
	_, private, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("ed25519.GenerateKey: %v", err)
	}
	var block *pem.Block
	if passphrase == "" {
		block, err = ssh.MarshalPrivateKey(private, "test key")
	} else {
		block, err = ssh.MarshalPrivateKeyWithPassphrase(private, "test key", []byte(passphrase))
	}
	if err != nil {
		t.Fatalf("marshaling private key: %v", err)
	}
	path := filepath.Join(t.TempDir(), "id_ed25519")
	if err := os.WriteFile(path, pem.EncodeToMemory(block), 0600); err != nil {
		t.Fatalf("writing private key: %v", err)
	}
	public, err := ssh.NewPublicKey(private.Public())
	if err != nil {
		t.Fatalf("ssh.NewPublicKey: %v", err)
	}
	if err := os.WriteFile(path+".pub", ssh.MarshalAuthorizedKey(public), 0644); err != nil {
		t.Fatalf("writing public key: %v", err)
	}
	return path, public, private
}
