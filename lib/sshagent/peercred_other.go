// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

//go:build !linux

package sshagent

import (
	"fmt"
	"net"
	"runtime"
)

func checkPeerUser(net.Conn) error {
	return fmt.Errorf("peer credential check is not supported on %s", runtime.GOOS)
}
