// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sshagent

import (
	"context"
	"log/slog"
	"net"
	"slices"
	"sync"
	"time"

	"github.com/bureau-foundation/sshagent/lib/agentwire"
)

// eventQueueDepth is the buffer of the loop's event channel. Posting
// blocks when it is full, which only slows the posting goroutine.
const eventQueueDepth = 64

// Client talks to one SSH agent. It is safe for concurrent use; see
// the package documentation for ordering and retry behavior.
type Client struct {
	options    Options
	socketPath string

	events    chan event
	closeOnce sync.Once

	// stopping is closed when the loop stops handling events, and done
	// once it has drained the events posted before that and exited.
	// postMutex makes "stopped" and a send to events atomic, so no
	// event can land in the channel after the drain.
	stopping  chan struct{}
	done      chan struct{}
	postMutex sync.RWMutex
	stopped   bool

	recentMutex sync.Mutex
	recent      []RequestRecord
}

// New returns a client for the agent named by options. It does not
// connect: the connection opens when the first request is made, or on
// an explicit Connect.
func New(options Options) (*Client, error) {
	socketPath, err := options.ResolveSocketPath()
	if err != nil {
		return nil, err
	}
	options = options.withDefaults()
	client := &Client{
		options:    options,
		socketPath: socketPath,
		events:     make(chan event, eventQueueDepth),
		stopping:   make(chan struct{}),
		done:       make(chan struct{}),
	}
	go client.run()
	return client, nil
}

// SocketPath returns the agent socket the client connects to.
func (c *Client) SocketPath() string { return c.socketPath }

// Call sends frame and waits for a reply whose type is in accept. A
// failure reply is returned as a *FailureError unless TypeFailure is
// itself in accept. Any other reply type is a protocol violation: the
// connection is dropped and the request retried.
func (c *Client) Call(ctx context.Context, frame agentwire.Frame, accept ...agentwire.FrameType) (agentwire.Frame, error) {
	acceptFailure := slices.Contains(accept, agentwire.TypeFailure)
	if !acceptFailure {
		accept = append(slices.Clip(accept), agentwire.TypeFailure)
	}
	reply, err := c.call(ctx, frame, accept)
	if err != nil {
		return nil, err
	}
	if _, failed := reply.(*agentwire.Failure); failed && !acceptFailure {
		return nil, &FailureError{Operation: frame.FrameType().String()}
	}
	return reply, nil
}

func (c *Client) call(ctx context.Context, frame agentwire.Frame, accept []agentwire.FrameType) (agentwire.Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	timeout := c.options.RequestTimeout
	if override, ok := ctx.Value(requestTimeoutKey{}).(time.Duration); ok {
		timeout = override
	}
	request := newRequest(frame, accept, c.options.RequestRetries, timeout)
	if !c.post(enqueueEvent{request: request}) {
		return nil, ErrClosed
	}
	select {
	case outcome := <-request.result:
		return outcome.reply, outcome.err
	case <-ctx.Done():
		c.post(abandonEvent{request: request, err: ctx.Err()})
		return nil, ctx.Err()
	case <-c.done:
		select {
		case outcome := <-request.result:
			return outcome.reply, outcome.err
		default:
			return nil, ErrClosed
		}
	}
}

type requestTimeoutKey struct{}

// WithRequestTimeout returns a context under which requests bound each
// attempt by timeout instead of Options.RequestTimeout. Non-positive
// values leave the client's timeout in effect. Unlike a context
// deadline, which only stops the caller waiting, the override is what
// fails an attempt and triggers its retry.
func WithRequestTimeout(ctx context.Context, timeout time.Duration) context.Context {
	if timeout <= 0 {
		return ctx
	}
	return context.WithValue(ctx, requestTimeoutKey{}, timeout)
}

// Connect opens the connection if it is not already open and waits
// until it is usable or the connect retry budget is spent. Requests
// connect on their own; Connect is for callers that want to surface
// connection problems early.
func (c *Client) Connect(ctx context.Context) error {
	reply := make(chan error, 1)
	if !c.post(connectWaitEvent{reply: reply}) {
		return ErrClosed
	}
	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-c.done:
		select {
		case err := <-reply:
			return err
		default:
			return ErrClosed
		}
	}
}

// Close fails every queued and in-flight request with ErrClosed,
// closes the connection, and waits for the event loop to exit. It is
// safe to call more than once.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		c.post(closeEvent{})
	})
	<-c.done
	return nil
}

// post delivers an event to the loop. It returns false once the loop
// has stopped; an event it accepted is either handled or drained.
func (c *Client) post(e event) bool {
	c.postMutex.RLock()
	defer c.postMutex.RUnlock()
	if c.stopped {
		return false
	}
	select {
	case c.events <- e:
		return true
	case <-c.stopping:
		return false
	}
}

type event interface{ isEvent() }

type (
	enqueueEvent struct{ request *request }

	abandonEvent struct {
		request *request
		err     error
	}

	dialResultEvent struct {
		generation uint64
		socket     net.Conn
		err        error
	}

	connectTimeoutEvent struct{ generation uint64 }

	frameEvent struct {
		generation uint64
		frame      agentwire.Frame
	}

	connectionErrorEvent struct {
		generation uint64
		err        error
	}

	requestTimeoutEvent struct {
		request *request
		attempt int
	}

	idleTimeoutEvent struct{ generation uint64 }

	connectWaitEvent struct{ reply chan error }

	closeEvent struct{}
)

func (enqueueEvent) isEvent()         {}
func (abandonEvent) isEvent()         {}
func (dialResultEvent) isEvent()      {}
func (connectTimeoutEvent) isEvent()  {}
func (frameEvent) isEvent()           {}
func (connectionErrorEvent) isEvent() {}
func (requestTimeoutEvent) isEvent()  {}
func (idleTimeoutEvent) isEvent()     {}
func (connectWaitEvent) isEvent()     {}
func (closeEvent) isEvent()           {}

// loop is the state owned by the event loop goroutine.
type loop struct {
	client  *Client
	options Options
	logger  *slog.Logger

	conn connection

	scheduler schedulerState
	queue     []*request
	active    *request
	nextID    uint64

	// holdsRef is whether the scheduler holds a connection reference.
	holdsRef bool

	connectWaiters []chan error
}

func (c *Client) run() {
	defer close(c.done)
	l := &loop{
		client:  c,
		options: c.options,
		logger:  c.options.Logger.With("component", "sshagent"),
	}
	for e := range c.events {
		if _, closing := e.(closeEvent); closing {
			l.shutdown()
			l.drain()
			return
		}
		l.handle(e)
		l.schedule()
	}
}

func (l *loop) handle(e event) {
	switch e := e.(type) {
	case enqueueEvent:
		l.nextID++
		e.request.id = l.nextID
		e.request.queued = l.options.Clock.Now()
		l.queue = append(l.queue, e.request)
	case abandonEvent:
		if index := slices.Index(l.queue, e.request); index >= 0 {
			l.queue = slices.Delete(l.queue, index, index+1)
			e.request.complete(l.options.Clock.Now(), nil, e.err)
			l.logger.Debug("dropped abandoned request", "request", e.request.name(), "id", e.request.id)
		}
	case dialResultEvent:
		l.handleDialResult(e)
	case connectTimeoutEvent:
		l.handleConnectTimeout(e)
	case frameEvent:
		l.handleFrame(e)
	case connectionErrorEvent:
		l.handleConnectionError(e)
	case requestTimeoutEvent:
		l.handleRequestTimeout(e)
	case idleTimeoutEvent:
		l.handleIdleTimeout(e)
	case connectWaitEvent:
		if l.conn.state == stateConnected {
			e.reply <- nil
			return
		}
		l.connectWaiters = append(l.connectWaiters, e.reply)
		l.connect()
	}
}

func (l *loop) notifyConnectWaiters(err error) {
	for _, waiter := range l.connectWaiters {
		waiter <- err
	}
	l.connectWaiters = nil
}

// report delivers an error that no request is waiting for.
func (l *loop) report(err error) {
	l.logger.Warn("ssh agent error with no request outstanding", "error", err)
	if l.options.ErrorHandler != nil {
		l.options.ErrorHandler(err)
	}
}

func (l *loop) shutdown() {
	now := l.options.Clock.Now()
	if l.active != nil {
		l.active.complete(now, nil, ErrClosed)
		l.active = nil
	}
	for _, queued := range l.queue {
		queued.complete(now, nil, ErrClosed)
	}
	l.queue = nil
	l.notifyConnectWaiters(ErrClosed)
	l.disconnect("client closed")
}

// drain stops accepting events and settles the ones already posted:
// requests and connect waiters fail with ErrClosed, and sockets from
// dials that finished after the shutdown are closed.
func (l *loop) drain() {
	c := l.client
	close(c.stopping)
	c.postMutex.Lock()
	c.stopped = true
	c.postMutex.Unlock()

	now := l.options.Clock.Now()
	for {
		select {
		case e := <-c.events:
			switch e := e.(type) {
			case enqueueEvent:
				e.request.complete(now, nil, ErrClosed)
			case connectWaitEvent:
				e.reply <- ErrClosed
			case dialResultEvent:
				if e.socket != nil {
					e.socket.Close()
				}
			}
		default:
			return
		}
	}
}
