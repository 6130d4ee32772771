// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

//go:build linux

package sshagent

import (
	"fmt"
	"net"
	"os"

	"golang.org/x/sys/unix"
)

// checkPeerUser verifies that the process on the other end of socket
// runs as the current user or as root, using SO_PEERCRED.
func checkPeerUser(socket net.Conn) error {
	unixConn, ok := socket.(*net.UnixConn)
	if !ok {
		return fmt.Errorf("peer credential check needs a unix socket, got %T", socket)
	}
	raw, err := unixConn.SyscallConn()
	if err != nil {
		return fmt.Errorf("peer credential check: %w", err)
	}
	var credentials *unix.Ucred
	var credentialErr error
	if err := raw.Control(func(fd uintptr) {
		credentials, credentialErr = unix.GetsockoptUcred(int(fd), unix.SOL_SOCKET, unix.SO_PEERCRED)
	}); err != nil {
		return fmt.Errorf("peer credential check: %w", err)
	}
	if credentialErr != nil {
		return fmt.Errorf("reading SO_PEERCRED: %w", credentialErr)
	}
	return allowPeerUID(credentials.Uid, uint32(os.Getuid()))
}
