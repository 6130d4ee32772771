// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sshagent

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/bureau-foundation/sshagent/lib/agentwire"
	"github.com/bureau-foundation/sshagent/lib/clock"
	"github.com/bureau-foundation/sshagent/lib/netutil"
)

type connectionState int

const (
	stateDisconnected connectionState = iota
	stateConnecting
	stateConnectError
	stateConnected
	stateDisconnecting
)

func (s connectionState) String() string {
	switch s {
	case stateDisconnected:
		return "disconnected"
	case stateConnecting:
		return "connecting"
	case stateConnectError:
		return "connect-error"
	case stateConnected:
		return "connected"
	case stateDisconnecting:
		return "disconnecting"
	}
	return "unknown"
}

// writeQueueDepth bounds encoded frames waiting for the writer
// goroutine. Only one request is in flight at a time, so the queue
// holds at most one frame in practice.
const writeQueueDepth = 4

// readBufferSize is the socket read size. Frames larger than this are
// reassembled by the decoder.
const readBufferSize = 32 * 1024

// connection is the agent socket and its lifecycle state. It is owned
// by the event loop; the reader, writer and dialer goroutines only
// hold the values they were started with.
type connection struct {
	state connectionState

	// generation increases on every connect attempt and every
	// disconnect. Events from goroutines and timers carry the
	// generation they were started under and are dropped on mismatch.
	generation uint64

	socket  net.Conn
	encoder *agentwire.Encoder
	writes  chan []byte

	// refs counts holders that need the connection kept open. While
	// zero and connected, the idle timer runs.
	refs int

	// retries is the remaining connect retry budget, reset on every
	// successful connect.
	retries int

	connectTimer *clock.Timer
	idleTimer    *clock.Timer
	cancelDial   context.CancelFunc
}

// busy reports whether something holds the connection open.
func (c *connection) busy() bool { return c.refs > 0 }

// connect starts connecting from the disconnected state with a fresh
// retry budget. In any other state it does nothing: the connection
// is already up or on its way.
func (l *loop) connect() {
	if l.conn.state != stateDisconnected {
		return
	}
	l.conn.retries = l.options.ConnectRetries
	l.dial()
}

// dial begins one connect attempt.
func (l *loop) dial() {
	conn := &l.conn
	conn.generation++
	generation := conn.generation
	conn.state = stateConnecting

	ctx, cancel := context.WithCancel(context.Background())
	conn.cancelDial = cancel
	conn.connectTimer = l.options.Clock.AfterFunc(l.options.ConnectTimeout, func() {
		l.client.post(connectTimeoutEvent{generation: generation})
	})
	l.logger.Debug("connecting to ssh agent",
		"socket", l.client.socketPath,
		"generation", generation,
		"retries_left", conn.retries,
	)
	go l.client.dial(ctx, generation)
}

// dial runs on its own goroutine and reports the outcome as a
// dialResultEvent.
func (c *Client) dial(ctx context.Context, generation uint64) {
	socket, err := c.options.Dialer.DialContext(ctx, "unix", c.socketPath)
	if err == nil && c.options.RequireSameUser {
		if err = checkPeerUser(socket); err != nil {
			socket.Close()
			socket = nil
		}
	}
	if err != nil {
		err = fmt.Errorf("connecting to SSH agent at %s: %w", c.socketPath, err)
	}
	if !c.post(dialResultEvent{generation: generation, socket: socket, err: err}) && socket != nil {
		socket.Close()
	}
}

func (l *loop) handleDialResult(event dialResultEvent) {
	if event.generation != l.conn.generation || l.conn.state != stateConnecting {
		if event.socket != nil {
			event.socket.Close()
		}
		return
	}
	if event.err != nil {
		l.connectFailed(event.err)
		return
	}
	l.connected(event.socket)
}

func (l *loop) handleConnectTimeout(event connectTimeoutEvent) {
	if event.generation != l.conn.generation || l.conn.state != stateConnecting {
		return
	}
	l.connectFailed(fmt.Errorf("%w at %s (%v)", ErrConnectTimeout, l.client.socketPath, l.options.ConnectTimeout))
}

// connectFailed handles the connect-error state: retry while budget
// remains, otherwise give up and hand the error to whoever is waiting
// for the connection.
func (l *loop) connectFailed(err error) {
	conn := &l.conn
	conn.connectTimer.Stop()
	conn.connectTimer = nil
	conn.cancelDial()
	conn.cancelDial = nil
	conn.state = stateConnectError

	if conn.retries > 0 {
		conn.retries--
		l.logger.Debug("retrying ssh agent connect", "error", err, "retries_left", conn.retries)
		l.dial()
		return
	}

	conn.generation++
	conn.state = stateDisconnected
	l.logger.Debug("giving up connecting to ssh agent", "error", err)
	waited := len(l.connectWaiters) > 0
	l.notifyConnectWaiters(err)
	l.connectGaveUp(err, waited)
}

func (l *loop) connected(socket net.Conn) {
	conn := &l.conn
	conn.connectTimer.Stop()
	conn.connectTimer = nil
	conn.cancelDial()
	conn.cancelDial = nil

	conn.state = stateConnected
	conn.socket = socket
	conn.retries = l.options.ConnectRetries
	conn.encoder = agentwire.NewEncoder(agentwire.FromClient)
	conn.writes = make(chan []byte, writeQueueDepth)

	go l.client.readLoop(conn.generation, socket)
	go l.client.writeLoop(conn.generation, socket, conn.writes)

	l.logger.Debug("connected to ssh agent", "socket", l.client.socketPath, "generation", conn.generation)
	if !conn.busy() {
		l.armIdleTimer()
	}
	l.notifyConnectWaiters(nil)
}

// disconnect tears down the socket and returns to disconnected. The
// reader and writer goroutines exit once the socket is closed; their
// final events carry the old generation and are ignored.
func (l *loop) disconnect(reason string) {
	conn := &l.conn
	if conn.state == stateDisconnected {
		return
	}
	conn.state = stateDisconnecting
	conn.connectTimer.Stop()
	conn.connectTimer = nil
	conn.idleTimer.Stop()
	conn.idleTimer = nil
	if conn.cancelDial != nil {
		conn.cancelDial()
		conn.cancelDial = nil
	}
	if conn.socket != nil {
		conn.socket.Close()
		conn.socket = nil
	}
	if conn.writes != nil {
		close(conn.writes)
		conn.writes = nil
	}
	conn.encoder = nil
	conn.generation++
	conn.state = stateDisconnected
	l.logger.Debug("disconnected from ssh agent", "reason", reason)
}

// write hands an encoded frame to the writer goroutine without
// blocking the loop.
func (l *loop) write(data []byte) error {
	if l.conn.state != stateConnected {
		return fmt.Errorf("%w: not connected", ErrConnectionLost)
	}
	select {
	case l.conn.writes <- data:
		return nil
	default:
		return fmt.Errorf("%w: write queue full", ErrConnectionLost)
	}
}

func (l *loop) ref() {
	l.conn.refs++
	if l.conn.refs == 1 {
		l.conn.idleTimer.Stop()
		l.conn.idleTimer = nil
	}
}

func (l *loop) unref() {
	if l.conn.refs == 0 {
		return
	}
	l.conn.refs--
	if l.conn.refs == 0 && l.conn.state == stateConnected {
		l.armIdleTimer()
	}
}

func (l *loop) armIdleTimer() {
	generation := l.conn.generation
	l.conn.idleTimer.Stop()
	l.conn.idleTimer = l.options.Clock.AfterFunc(l.options.IdleTimeout, func() {
		l.client.post(idleTimeoutEvent{generation: generation})
	})
}

func (l *loop) handleIdleTimeout(event idleTimeoutEvent) {
	if event.generation != l.conn.generation || l.conn.state != stateConnected || l.conn.busy() {
		return
	}
	l.disconnect("idle")
}

// handleConnectionError handles a socket, decoder or writer failure on
// the current connection. While busy the error belongs to the active
// request; while idle a peer close is an ordinary disconnect and
// anything else goes to the error handler.
func (l *loop) handleConnectionError(event connectionErrorEvent) {
	if event.generation != l.conn.generation || l.conn.state != stateConnected {
		return
	}
	busy := l.conn.busy()
	l.disconnect(event.err.Error())

	var protocolErr *agentwire.ProtocolError
	isProtocol := errors.As(event.err, &protocolErr)
	if busy && l.active != nil && l.active.state == requestSending {
		err := event.err
		if !isProtocol {
			err = fmt.Errorf("%w: %w", ErrConnectionLost, event.err)
		}
		l.failActive(err)
		return
	}
	if !isProtocol && netutil.IsPeerClose(event.err) {
		return
	}
	l.report(event.err)
}

// readLoop feeds socket bytes through a decoder and posts each frame
// to the event loop. It exits on the first read or decode error.
func (c *Client) readLoop(generation uint64, socket net.Conn) {
	decoder := agentwire.NewDecoder(agentwire.FromAgent)
	buffer := make([]byte, readBufferSize)
	for {
		count, readErr := socket.Read(buffer)
		if count > 0 {
			frames, err := decoder.Write(buffer[:count])
			for _, frame := range frames {
				if !c.post(frameEvent{generation: generation, frame: frame}) {
					return
				}
			}
			if err != nil {
				c.post(connectionErrorEvent{generation: generation, err: err})
				return
			}
		}
		if readErr != nil {
			if err := decoder.Close(); err != nil && netutil.IsPeerClose(readErr) {
				readErr = err
			}
			c.post(connectionErrorEvent{generation: generation, err: readErr})
			return
		}
	}
}

// writeLoop writes encoded frames in order until the loop closes the
// channel or a write fails.
func (c *Client) writeLoop(generation uint64, socket net.Conn, writes <-chan []byte) {
	for data := range writes {
		if _, err := socket.Write(data); err != nil {
			c.post(connectionErrorEvent{
				generation: generation,
				err:        fmt.Errorf("writing to SSH agent: %w", err),
			})
			return
		}
	}
}
