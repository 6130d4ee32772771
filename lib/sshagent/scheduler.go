// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sshagent

import (
	"fmt"
	"time"

	"github.com/bureau-foundation/sshagent/lib/agentwire"
)

type schedulerState int

const (
	// schedulerIdle: no active request.
	schedulerIdle schedulerState = iota

	// schedulerConnect: the queue is non-empty and the scheduler is
	// waiting for the connection.
	schedulerConnect

	// schedulerRequest: one request is active.
	schedulerRequest
)

func (s schedulerState) String() string {
	switch s {
	case schedulerIdle:
		return "idle"
	case schedulerConnect:
		return "connect"
	case schedulerRequest:
		return "req"
	}
	return "unknown"
}

// recentLimit is how many completed requests Recent keeps.
const recentLimit = 4

// RequestRecord describes a completed request, for diagnostics.
type RequestRecord struct {
	ID       uint64    `json:"id"`
	Frame    string    `json:"frame"`
	Reply    string    `json:"reply,omitempty"`
	Error    string    `json:"error,omitempty"`
	Attempts int       `json:"attempts"`
	Queued   time.Time `json:"queued"`
	Finished time.Time `json:"finished"`
}

// Recent returns the most recently completed requests, oldest first.
func (c *Client) Recent() []RequestRecord {
	c.recentMutex.Lock()
	defer c.recentMutex.Unlock()
	records := make([]RequestRecord, len(c.recent))
	copy(records, c.recent)
	return records
}

// schedule advances the scheduler as far as the current state allows.
// It runs after every event.
func (l *loop) schedule() {
	for {
		switch l.scheduler {
		case schedulerIdle:
			if len(l.queue) == 0 {
				if l.holdsRef {
					l.holdsRef = false
					l.unref()
				}
				return
			}
			if !l.holdsRef {
				l.holdsRef = true
				l.ref()
			}
			l.scheduler = schedulerConnect

		case schedulerConnect:
			if len(l.queue) == 0 {
				// Everything queued was abandoned while connecting.
				l.scheduler = schedulerIdle
				continue
			}
			switch l.conn.state {
			case stateConnected:
				l.active = l.dequeue()
				l.scheduler = schedulerRequest
				l.send(l.active)
			case stateDisconnected:
				l.connect()
				return
			default:
				return
			}

		case schedulerRequest:
			active := l.active
			switch active.state {
			case requestDone:
				l.finish(active)
				l.active = nil
				l.scheduler = schedulerIdle
			case requestError:
				switch l.conn.state {
				case stateConnected:
					l.send(active)
				case stateDisconnected:
					l.connect()
					return
				default:
					return
				}
			default:
				return
			}
		}
	}
}

func (l *loop) dequeue() *request {
	head := l.queue[0]
	l.queue[0] = nil
	l.queue = l.queue[1:]
	return head
}

// send starts an attempt of the active request on the current
// connection.
func (l *loop) send(active *request) {
	attempt := active.begin()
	if attempt > 1 {
		l.logger.Debug("retrying ssh agent request",
			"request", active.name(), "id", active.id, "attempt", attempt)
	}
	active.timer = l.options.Clock.AfterFunc(active.timeout, func() {
		l.client.post(requestTimeoutEvent{request: active, attempt: attempt})
	})

	data, err := l.conn.encoder.Encode(active.frame)
	if err != nil {
		// The request itself is malformed; resending cannot help.
		active.complete(l.options.Clock.Now(), nil, err)
		return
	}
	if err := l.write(data); err != nil {
		l.disconnect(err.Error())
		l.failActive(err)
	}
}

// failActive records err against the active request's attempt and
// either leaves it pending a retry or completes it.
func (l *loop) failActive(err error) {
	active := l.active
	if active == nil {
		l.report(err)
		return
	}
	if active.fail(err) {
		l.logger.Debug("ssh agent request failed, will retry",
			"request", active.name(), "id", active.id, "error", err, "retries_left", active.retries)
		return
	}
	active.complete(l.options.Clock.Now(), nil, err)
}

func (l *loop) handleFrame(event frameEvent) {
	if event.generation != l.conn.generation || l.conn.state != stateConnected {
		return
	}
	frameType := event.frame.FrameType()
	active := l.active
	if active == nil || active.state != requestSending {
		l.disconnect("unsolicited frame")
		l.report(&agentwire.ProtocolError{
			Frame:  frameType.String(),
			Err:    agentwire.ErrOutOfOrder,
			Detail: "received with no request outstanding",
		})
		return
	}
	if !active.accepts(frameType) {
		l.disconnect("unexpected reply")
		l.failActive(&agentwire.ProtocolError{
			Frame:  frameType.String(),
			Err:    agentwire.ErrOutOfOrder,
			Detail: fmt.Sprintf("not a valid reply to %s", active.name()),
		})
		return
	}
	active.complete(l.options.Clock.Now(), event.frame, nil)
}

func (l *loop) handleRequestTimeout(event requestTimeoutEvent) {
	active := l.active
	if active != event.request || active.state != requestSending || active.attempt != event.attempt {
		return
	}
	// The reply may still arrive later; it would be taken as the reply
	// to the next request, so the connection cannot be reused.
	l.disconnect("request timeout")
	l.failActive(&RequestTimeoutError{Timeout: active.timeout})
}

// connectGaveUp routes a final connect failure. A request waiting to
// retry takes it as the failure of its attempt; if the scheduler was
// waiting to start the head of the queue, that request is activated
// directly in its error state so the failure consumes one of its
// retries. With neither, and no Connect caller waiting, the error has
// no owner.
func (l *loop) connectGaveUp(err error, waited bool) {
	switch {
	case l.active != nil && l.active.state == requestError:
		l.failActive(err)
	case l.scheduler == schedulerConnect && len(l.queue) > 0:
		l.active = l.dequeue()
		l.scheduler = schedulerRequest
		l.active.attempt++
		l.failActive(err)
	case !waited:
		l.report(err)
	}
}

// finish records a completed request in the recent ring.
func (l *loop) finish(done *request) {
	record := RequestRecord{
		ID:       done.id,
		Frame:    done.name(),
		Attempts: done.attempt,
		Queued:   done.queued,
		Finished: done.finished,
	}
	if done.reply != nil {
		record.Reply = done.reply.FrameType().String()
	}
	if done.err != nil {
		record.Error = done.err.Error()
	}

	c := l.client
	c.recentMutex.Lock()
	c.recent = append(c.recent, record)
	if len(c.recent) > recentLimit {
		c.recent = c.recent[len(c.recent)-recentLimit:]
	}
	c.recentMutex.Unlock()
}
