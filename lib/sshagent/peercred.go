// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sshagent

import "fmt"

// allowPeerUID accepts an agent run by the current user or by root.
func allowPeerUID(peer, self uint32) error {
	if peer == self || peer == 0 {
		return nil
	}
	return fmt.Errorf("SSH agent socket peer runs as uid %d, not the current user (uid %d)", peer, self)
}
