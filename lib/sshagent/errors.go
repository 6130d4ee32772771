// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sshagent

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNoSocket means no socket path was configured and
	// $SSH_AUTH_SOCK is unset.
	ErrNoSocket = errors.New("no SSH agent socket: SSH_AUTH_SOCK is not set")

	// ErrConnectTimeout means a connect attempt did not complete within
	// Options.ConnectTimeout.
	ErrConnectTimeout = errors.New("timed out connecting to SSH agent")

	// ErrConnectionLost means the agent closed the connection, or the
	// socket failed, while a request was in flight.
	ErrConnectionLost = errors.New("connection to SSH agent lost")

	// ErrClosed means the Client was closed.
	ErrClosed = errors.New("ssh agent client closed")

	// ErrRequestTimeout means the agent did not reply within
	// Options.RequestTimeout, or the WithRequestTimeout override. The returned error is a
	// *RequestTimeoutError that matches this value with errors.Is.
	ErrRequestTimeout = errors.New("timed out waiting for response from SSH agent")
)

// RequestTimeoutError reports a request attempt that got no reply in
// time.
type RequestTimeoutError struct {
	Timeout time.Duration
}

func (e *RequestTimeoutError) Error() string {
	return fmt.Sprintf("%v (%v)", ErrRequestTimeout, e.Timeout)
}

func (e *RequestTimeoutError) Is(target error) bool { return target == ErrRequestTimeout }

// FailureError is returned when the agent answers a request with its
// generic failure reply: the key is unknown, the agent is locked, the
// user declined a confirmation, and so on. The protocol carries no
// reason.
type FailureError struct {
	// Operation is the name of the request frame that failed, for
	// example "sign-request".
	Operation string
}

func (e *FailureError) Error() string {
	return fmt.Sprintf("SSH agent refused %s", e.Operation)
}

// IsFailure reports whether err is, or wraps, a *FailureError.
func IsFailure(err error) bool {
	var failure *FailureError
	return errors.As(err, &failure)
}

// retryable reports whether a request that failed with err may be
// sent again.
func retryable(err error) bool {
	return !IsFailure(err) && !errors.Is(err, ErrClosed)
}
