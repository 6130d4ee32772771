// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"time"

	"github.com/bureau-foundation/sshagent/cmd/agentctl/cli"
	"github.com/bureau-foundation/sshagent/lib/sshagent"
	"golang.org/x/crypto/ssh"
)

type addParams struct {
	Lifetime    time.Duration `flag:"lifetime,t" desc:"remove the key from the agent after this long"`
	Confirm     bool          `flag:"confirm,c" desc:"require confirmation before each use of the key"`
	Certificate string        `flag:"cert" desc:"certificate to add with the key (default KEYFILE-cert.pub when present)"`
	Comment     string        `flag:"comment" desc:"comment stored with the key (default KEYFILE)"`
}

func (a *app) addCommand() *cli.Command {
	var params addParams
	return &cli.Command{
		Name:    "add",
		Summary: "Add a private key to the agent",
		Description: `Add the private key in KEYFILE to the agent. Encrypted keys prompt for
their passphrase on the terminal, or read one line of standard input when
it is not a terminal.

A certificate is added alongside the key when --cert names one, or when
KEYFILE-cert.pub exists.`,
		Usage:  "agentctl add [--lifetime D] [--confirm] [--cert FILE] KEYFILE",
		Params: func() any { return &params },
		Examples: []cli.Example{
			{
				Description: "Add a key for the working day",
				Command:     "agentctl add --lifetime 8h ~/.ssh/id_ed25519",
			},
		},
		Run: func(args []string) error {
			if len(args) != 1 {
				return errors.New("expected exactly one KEYFILE")
			}
			keyPath := args[0]
			lifetime, err := lifetimeSeconds(params.Lifetime)
			if err != nil {
				return err
			}
			privateKey, err := a.readPrivateKey(keyPath)
			if err != nil {
				return err
			}
			certificate, certificatePath, err := readCertificate(params.Certificate, keyPath)
			if err != nil {
				return err
			}
			comment := params.Comment
			if comment == "" {
				comment = keyPath
			}

			return a.withClient(func(ctx context.Context, client *sshagent.Client) error {
				key := sshagent.AddedKey{
					PrivateKey:       privateKey,
					Comment:          comment,
					LifetimeSeconds:  lifetime,
					ConfirmBeforeUse: params.Confirm,
				}
				if err := client.AddKey(ctx, key); err != nil {
					return fmt.Errorf("adding %s: %w", keyPath, err)
				}
				fmt.Fprintf(a.stderr, "Identity added: %s\n", keyPath)
				if certificate == nil {
					return nil
				}
				key.Certificate = certificate
				if err := client.AddKey(ctx, key); err != nil {
					return fmt.Errorf("adding certificate %s: %w", certificatePath, err)
				}
				fmt.Fprintf(a.stderr, "Certificate added: %s (%s)\n", certificatePath, certificate.KeyId)
				return nil
			})
		},
	}
}

func lifetimeSeconds(lifetime time.Duration) (uint32, error) {
	if lifetime == 0 {
		return 0, nil
	}
	seconds := lifetime / time.Second
	if seconds <= 0 || seconds > math.MaxUint32 {
		return 0, fmt.Errorf("--lifetime must be between 1s and %ds, got %s", uint32(math.MaxUint32), lifetime)
	}
	return uint32(seconds), nil
}

// readPrivateKey parses a private key file, prompting for the
// passphrase when the key is encrypted.
func (a *app) readPrivateKey(path string) (any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	key, err := ssh.ParseRawPrivateKey(data)
	var missing *ssh.PassphraseMissingError
	if !errors.As(err, &missing) {
		if err != nil {
			return nil, fmt.Errorf("parsing private key %s: %w", path, err)
		}
		return key, nil
	}

	passphrase, err := cli.ReadSecret(a.stdin, a.stderr, fmt.Sprintf("Enter passphrase for %s: ", path))
	if err != nil {
		return nil, err
	}
	key, err = ssh.ParseRawPrivateKeyWithPassphrase(data, passphrase)
	if err != nil {
		return nil, fmt.Errorf("decrypting private key %s: %w", path, err)
	}
	return key, nil
}

// readCertificate reads the certificate named by path, or
// KEYFILE-cert.pub when path is empty and that file exists. It returns
// a nil certificate when there is none to add.
func readCertificate(path, keyPath string) (*ssh.Certificate, string, error) {
	if path == "" {
		path = keyPath + "-cert.pub"
		if _, err := os.Stat(path); err != nil {
			return nil, "", nil
		}
	}
	blob, err := readPublicKeyFile(path)
	if err != nil {
		return nil, "", err
	}
	publicKey, err := ssh.ParsePublicKey(blob)
	if err != nil {
		return nil, "", fmt.Errorf("parsing certificate %s: %w", path, err)
	}
	certificate, ok := publicKey.(*ssh.Certificate)
	if !ok {
		return nil, "", fmt.Errorf("%s holds a %s public key, not a certificate", path, publicKey.Type())
	}
	return certificate, path, nil
}
