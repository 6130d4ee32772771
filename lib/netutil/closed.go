// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package netutil

import (
	"errors"
	"io"
	"net"
	"syscall"
)

// IsPeerClose reports whether err means the other end went away: EOF,
// a reset or broken pipe, or a read on a socket we closed ourselves.
// The agent connection treats these as a close event rather than a
// socket error, and only escalates them when a request was in flight.
func IsPeerClose(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrClosedPipe) || errors.Is(err, net.ErrClosed) {
		return true
	}
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return errno == syscall.ECONNRESET || errno == syscall.EPIPE
	}
	return false
}

// IsTimeout reports whether err is a deadline expiry from a net.Conn.
func IsTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
