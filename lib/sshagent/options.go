// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sshagent

import (
	"context"
	"io"
	"log/slog"
	"net"
	"os"
	"time"

	"github.com/bureau-foundation/sshagent/lib/clock"
)

// Default timing and retry budgets.
const (
	DefaultConnectTimeout = 2 * time.Second
	DefaultRequestTimeout = 5 * time.Second
	DefaultIdleTimeout    = 15 * time.Second
	DefaultRequestRetries = 2
	DefaultConnectRetries = 3
)

// SocketEnvironment is the environment variable OpenSSH uses to
// publish the agent socket path.
const SocketEnvironment = "SSH_AUTH_SOCK"

// Dialer opens the agent connection. *net.Dialer satisfies it; tests
// substitute dialers that return in-memory pipes.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// Options configures a Client. The zero value connects to
// $SSH_AUTH_SOCK with the default timeouts and retry budgets.
type Options struct {
	// SocketPath is the agent's unix socket. Empty means
	// $SSH_AUTH_SOCK.
	SocketPath string

	// Dialer opens connections. Nil means a *net.Dialer.
	Dialer Dialer

	// Clock drives every timeout and the idle timer. Nil means the
	// wall clock.
	Clock clock.Clock

	// Logger receives debug records for connection and retry
	// transitions and warnings for errors no request is waiting for.
	// Nil discards them.
	Logger *slog.Logger

	// ConnectTimeout bounds each connect attempt.
	ConnectTimeout time.Duration

	// RequestTimeout bounds each attempt of a request, from the write
	// to the reply.
	RequestTimeout time.Duration

	// IdleTimeout is how long an open connection with nothing queued
	// is kept before it is closed.
	IdleTimeout time.Duration

	// RequestRetries is how many times a failed request is resent.
	// Zero means DefaultRequestRetries; negative disables retries.
	RequestRetries int

	// ConnectRetries is how many times a failed connect is retried
	// before the failure is reported. Zero means
	// DefaultConnectRetries; negative disables retries.
	ConnectRetries int

	// ErrorHandler is called, from the event loop goroutine, with
	// errors that occur while no request is outstanding: a connect
	// failure nobody is waiting on, or a frame the agent sent
	// unprompted. It must not call back into the Client.
	ErrorHandler func(error)

	// RequireSameUser rejects agents whose socket peer is neither the
	// current user nor root.
	RequireSameUser bool
}

// withDefaults resolves zero values. The socket path is resolved
// separately by New because a missing path is an error.
func (o Options) withDefaults() Options {
	if o.Dialer == nil {
		o.Dialer = &net.Dialer{}
	}
	if o.Clock == nil {
		o.Clock = clock.Real()
	}
	if o.Logger == nil {
		o.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if o.ConnectTimeout <= 0 {
		o.ConnectTimeout = DefaultConnectTimeout
	}
	if o.RequestTimeout <= 0 {
		o.RequestTimeout = DefaultRequestTimeout
	}
	if o.IdleTimeout <= 0 {
		o.IdleTimeout = DefaultIdleTimeout
	}
	o.RequestRetries = retryBudget(o.RequestRetries, DefaultRequestRetries)
	o.ConnectRetries = retryBudget(o.ConnectRetries, DefaultConnectRetries)
	return o
}

func retryBudget(configured, fallback int) int {
	switch {
	case configured == 0:
		return fallback
	case configured < 0:
		return 0
	}
	return configured
}

// ResolveSocketPath returns the agent socket a Client built from options
// would connect to, or ErrNoSocket.
func (o Options) ResolveSocketPath() (string, error) {
	if o.SocketPath != "" {
		return o.SocketPath, nil
	}
	if path := os.Getenv(SocketEnvironment); path != "" {
		return path, nil
	}
	return "", ErrNoSocket
}
