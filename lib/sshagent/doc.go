// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package sshagent is a client for the OpenSSH agent protocol over the
// agent's unix socket.
//
// A [Client] multiplexes any number of concurrent callers onto one
// shared connection. The protocol has no request identifiers: replies
// are matched to requests purely by order. The client therefore sends
// exactly one request at a time, in FIFO order, and treats any reply
// that does not fit the outstanding request as a protocol violation
// that ends the connection.
//
// All connection, request and queue state is owned by a single event
// loop goroutine. The socket reader, the socket writer, the dialer and
// every timer run in their own goroutines and only post events to the
// loop; events carry the connection generation or request attempt they
// were created for, so anything belonging to a superseded socket or
// timer is ignored when it arrives.
//
// The connection opens lazily when the first request is queued and
// closes after [Options.IdleTimeout] with nothing queued. Connecting
// and requests are both retried: a failed connect is retried
// [Options.ConnectRetries] times before the failure reaches a request,
// and each request is attempted up to 1+[Options.RequestRetries]
// times. An agent failure reply is a definitive answer and is never
// retried.
//
// A context passed to an operation bounds only the caller's wait. A
// request abandoned while still queued is dropped; one abandoned while
// in flight runs to completion so that reply ordering stays intact.
package sshagent
