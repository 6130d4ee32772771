// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sshagent

import (
	"context"
	"errors"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bureau-foundation/sshagent/lib/agentwire"
	"github.com/bureau-foundation/sshagent/lib/netutil"
	"github.com/bureau-foundation/sshagent/lib/testutil"
	"golang.org/x/crypto/ssh/agent"
)

// testTimeout bounds every wait in these tests.
const testTimeout = 5 * time.Second

// scriptedAgent is a Dialer whose connections are in-memory pipes. The
// test drives the agent end of each pipe by hand, so it controls
// exactly which bytes the client sees and when.
type scriptedAgent struct {
	t        *testing.T
	accepted chan net.Conn
	dials    atomic.Int32
}

func newScriptedAgent(t *testing.T) *scriptedAgent {
	return &scriptedAgent{t: t, accepted: make(chan net.Conn, 16)}
}

func (a *scriptedAgent) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	a.dials.Add(1)
	client, server := net.Pipe()
	select {
	case a.accepted <- server:
		return client, nil
	default:
		client.Close()
		server.Close()
		return nil, errors.New("scripted agent backlog full")
	}
}

// accept returns the agent end of the next connection the client
// opens.
func (a *scriptedAgent) accept() net.Conn {
	a.t.Helper()
	conn := testutil.RequireReceive(a.t, a.accepted, testTimeout, "client connection")
	a.t.Cleanup(func() { conn.Close() })
	return conn
}

func (a *scriptedAgent) client(options Options) *Client {
	a.t.Helper()
	options.SocketPath = "scripted.sock"
	options.Dialer = a
	client, err := New(options)
	if err != nil {
		a.t.Fatalf("New: %v", err)
	}
	a.t.Cleanup(func() { client.Close() })
	return client
}

// readRequest reads one client frame from the agent end.
func readRequest(t *testing.T, conn net.Conn) agentwire.Frame {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(testTimeout))
	defer conn.SetReadDeadline(time.Time{})
	frame, err := agentwire.ReadFrame(conn, agentwire.FromClient)
	if err != nil {
		t.Fatalf("agent reading request: %v", err)
	}
	return frame
}

// reply writes one agent frame.
func reply(t *testing.T, conn net.Conn, frame agentwire.Frame) {
	t.Helper()
	conn.SetWriteDeadline(time.Now().Add(testTimeout))
	defer conn.SetWriteDeadline(time.Time{})
	if err := agentwire.WriteFrame(conn, agentwire.FromAgent, frame); err != nil {
		t.Fatalf("agent writing %s: %v", frame.FrameType(), err)
	}
}

// requireQuiet fails if the client sends anything within a short
// window. It is how the agent end checks that no second request is in
// flight.
func requireQuiet(t *testing.T, conn net.Conn) {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(20 * time.Millisecond))
	defer conn.SetReadDeadline(time.Time{})
	buffer := make([]byte, 1)
	count, err := conn.Read(buffer)
	if !netutil.IsTimeout(err) {
		t.Fatalf("agent expected silence, read %d bytes (err %v)", count, err)
	}
}

// requireClosedByClient waits for the client to drop the agent end.
func requireClosedByClient(t *testing.T, conn net.Conn) {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(testTimeout))
	defer conn.SetReadDeadline(time.Time{})
	buffer := make([]byte, 64)
	for {
		_, err := conn.Read(buffer)
		if err == nil {
			continue
		}
		if !netutil.IsPeerClose(err) {
			t.Fatalf("agent waiting for close: %v", err)
		}
		return
	}
}

type callResult[T any] struct {
	value T
	err   error
}

// async runs call on a goroutine and returns a channel for its result.
func async[T any](call func() (T, error)) <-chan callResult[T] {
	results := make(chan callResult[T], 1)
	go func() {
		value, err := call()
		results <- callResult[T]{value: value, err: err}
	}()
	return results
}

// asyncErr is async for calls that only return an error.
func asyncErr(call func() error) <-chan callResult[struct{}] {
	return async(func() (struct{}, error) { return struct{}{}, call() })
}

// startKeyringAgent serves an in-process x/crypto keyring on a unix
// socket and returns the socket path.
func startKeyringAgent(t *testing.T) (string, agent.Agent) {
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
