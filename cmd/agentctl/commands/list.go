// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/bureau-foundation/sshagent/cmd/agentctl/cli"
	"github.com/bureau-foundation/sshagent/lib/agentkey"
	"github.com/bureau-foundation/sshagent/lib/sshagent"
	"golang.org/x/crypto/ssh"
)

type listParams struct {
	cli.Output
	All bool `flag:"all,a" desc:"include certificates"`
}

// identityEntry is one row of "agentctl list".
type identityEntry struct {
	Fingerprint string `json:"fingerprint" cbor:"fingerprint"`
	Type        string `json:"type"        cbor:"type"`
	Comment     string `json:"comment"     cbor:"comment"`
	Certificate bool   `json:"certificate" cbor:"certificate"`
}

func (a *app) listCommand() *cli.Command {
	var params listParams
	return &cli.Command{
		Name:    "list",
		Summary: "List the keys the agent holds",
		Description: `List the keys the agent holds: fingerprint, comment and key type.

Certificates are listed only with --all. Exits 1 when the agent holds
nothing, like "ssh-add -l".`,
		Usage:  "agentctl list [--all] [--json|--cbor]",
		Params: func() any { return &params },
		Run: func(args []string) error {
			if len(args) > 0 {
				return fmt.Errorf("unexpected argument %q", args[0])
			}
			return a.withClient(func(ctx context.Context, client *sshagent.Client) error {
				entries, err := listIdentities(ctx, client, params.All)
				if err != nil {
					return err
				}
				if done, err := params.Emit(a.stdout, entries); done {
					return err
				}
				if len(entries) == 0 {
					fmt.Fprintln(a.stdout, "The agent has no identities.")
					return &cli.ExitError{Code: 1}
				}
				for _, entry := range entries {
					fmt.Fprintf(a.stdout, "%s %s (%s)\n", entry.Fingerprint, entry.Comment, entry.Type)
				}
				return nil
			})
		},
	}
}

func listIdentities(ctx context.Context, client *sshagent.Client, all bool) ([]identityEntry, error) {
	if !all {
		keys, err := client.ListKeys(ctx)
		if err != nil {
			return nil, err
		}
		entries := make([]identityEntry, 0, len(keys))
		for _, key := range keys {
			entries = append(entries, identityEntry{
				Fingerprint: key.Fingerprint(),
				Type:        key.Type(),
				Comment:     key.Comment,
			})
		}
		return entries, nil
	}

	identities, err := client.List(ctx)
	if err != nil {
		return nil, err
	}
	entries := make([]identityEntry, 0, len(identities))
	for _, identity := range identities {
		keyType, err := agentkey.KeyType(identity.KeyBlob)
		if err != nil {
			return nil, fmt.Errorf("agent identity %q: %w", identity.Comment, err)
		}
		fingerprint, err := agentkey.Fingerprint(identity.KeyBlob)
		if err != nil {
			// Key types x/crypto cannot parse are still listed.
			fingerprint = "unknown"
		}
		entries = append(entries, identityEntry{
			Fingerprint: fingerprint,
			Type:        keyType,
			Comment:     identity.Comment,
			Certificate: agentkey.IsCertificateBlob(identity.KeyBlob),
		})
	}
	return entries, nil
}

// certificateEntry is one row of "agentctl certs".
type certificateEntry struct {
	Fingerprint string    `json:"fingerprint"  cbor:"fingerprint"`
	Type        string    `json:"type"         cbor:"type"`
	KeyID       string    `json:"key_id"       cbor:"key_id"`
	Serial      uint64    `json:"serial"       cbor:"serial"`
	Kind        string    `json:"kind"         cbor:"kind"`
	Principals  []string  `json:"principals"   cbor:"principals"`
	ValidAfter  time.Time `json:"valid_after"  cbor:"valid_after"`
	ValidBefore time.Time `json:"valid_before" cbor:"valid_before"`
	Comment     string    `json:"comment"      cbor:"comment"`
}

func (a *app) certsCommand() *cli.Command {
	var params cli.Output
	return &cli.Command{
		Name:    "certs",
		Summary: "List the certificates the agent holds",
		Usage:   "agentctl certs [--json|--cbor]",
		Params:  func() any { return &params },
		Run: func(args []string) error {
			if len(args) > 0 {
				return fmt.Errorf("unexpected argument %q", args[0])
			}
			return a.withClient(func(ctx context.Context, client *sshagent.Client) error {
				certificates, err := client.ListCertificates(ctx)
				if err != nil {
					return err
				}
				entries := make([]certificateEntry, 0, len(certificates))
				for _, certificate := range certificates {
					entries = append(entries, describeCertificate(certificate))
				}
				if done, err := params.Emit(a.stdout, entries); done {
					return err
				}
				if len(entries) == 0 {
					fmt.Fprintln(a.stdout, "The agent has no certificates.")
					return &cli.ExitError{Code: 1}
				}
				writer := tabwriter.NewWriter(a.stdout, 2, 0, 2, ' ', 0)
				fmt.Fprintln(writer, "KEY ID\tKIND\tPRINCIPALS\tVALID\tFINGERPRINT")
				for _, entry := range entries {
					fmt.Fprintf(writer, "%s\t%s\t%s\t%s\t%s\n",
						entry.KeyID, entry.Kind, formatPrincipals(entry.Principals),
						formatValidity(entry.ValidAfter, entry.ValidBefore), entry.Fingerprint)
				}
				return writer.Flush()
			})
		},
	}
}

func describeCertificate(certificate sshagent.Certificate) certificateEntry {
	cert := certificate.Certificate
	kind := "user"
	if cert.CertType == ssh.HostCert {
		kind = "host"
	}
	entry := certificateEntry{
		Fingerprint: certificate.Fingerprint(),
		Type:        cert.Type(),
		KeyID:       cert.KeyId,
		Serial:      cert.Serial,
		Kind:        kind,
		Principals:  cert.ValidPrincipals,
		Comment:     certificate.Comment,
	}
	if entry.Principals == nil {
		entry.Principals = []string{}
	}
	if cert.ValidAfter != 0 {
		entry.ValidAfter = time.Unix(int64(cert.ValidAfter), 0).UTC()
	}
	if cert.ValidBefore != ssh.CertTimeInfinity {
		entry.ValidBefore = time.Unix(int64(cert.ValidBefore), 0).UTC()
	}
	return entry
}

func formatPrincipals(principals []string) string {
	if len(principals) == 0 {
		return "(any)"
	}
	return strings.Join(principals, ",")
}

func formatValidity(after, before time.Time) string {
	from, to := "always", "forever"
	if !after.IsZero() {
		from = after.Format(time.RFC3339)
	}
	if !before.IsZero() {
		to = before.Format(time.RFC3339)
	}
	if after.IsZero() && before.IsZero() {
		return "forever"
	}
	return from + " to " + to
}
