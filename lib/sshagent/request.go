// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sshagent

import (
	"slices"
	"time"

	"github.com/bureau-foundation/sshagent/lib/agentwire"
	"github.com/bureau-foundation/sshagent/lib/clock"
)

type requestState int

const (
	// requestWaiting: queued, not yet sent.
	requestWaiting requestState = iota

	// requestSending: written (or being written), reply timer armed.
	requestSending

	// requestError: the last attempt failed and a retry is pending.
	// The request stays active, so nothing else is sent until it
	// resolves.
	requestError

	// requestDone: the result has been delivered.
	requestDone
)

func (s requestState) String() string {
	switch s {
	case requestWaiting:
		return "waiting"
	case requestSending:
		return "sending"
	case requestError:
		return "error"
	case requestDone:
		return "done"
	}
	return "unknown"
}

// result is what a caller receives for a request: exactly one of reply
// and err is set.
type result struct {
	reply agentwire.Frame
	err   error
}

// request is one queued frame and everything the loop tracks about
// it. All fields are owned by the event loop except result, which is
// the hand-off to the caller.
type request struct {
	id      uint64
	frame   agentwire.Frame
	accept  []agentwire.FrameType
	state   requestState
	retries int

	// timeout bounds each attempt.
	timeout time.Duration

	// attempt counts sends; timeout events carry the attempt they
	// were armed for.
	attempt int
	timer   *clock.Timer

	err   error
	reply agentwire.Frame

	queued   time.Time
	finished time.Time

	result chan result
}

func newRequest(frame agentwire.Frame, accept []agentwire.FrameType, retries int, timeout time.Duration) *request {
	return &request{
		frame:   frame,
		accept:  accept,
		retries: retries,
		timeout: timeout,
		result:  make(chan result, 1),
	}
}

func (r *request) name() string {
	if r.frame == nil {
		return "nil"
	}
	return r.frame.FrameType().String()
}

func (r *request) accepts(frameType agentwire.FrameType) bool {
	return slices.Contains(r.accept, frameType)
}

// begin moves the request into sending for a new attempt and returns
// the attempt number.
func (r *request) begin() int {
	r.state = requestSending
	r.attempt++
	r.err = nil
	r.reply = nil
	return r.attempt
}

// fail records err for the current attempt. It returns true when a
// retry is available, leaving the request in requestError; otherwise
// the caller must complete it.
func (r *request) fail(err error) bool {
	r.timer.Stop()
	r.timer = nil
	r.err = err
	r.reply = nil
	if r.retries <= 0 || !retryable(err) {
		return false
	}
	r.retries--
	r.state = requestError
	return true
}

// complete delivers the outcome exactly once.
func (r *request) complete(now time.Time, reply agentwire.Frame, err error) {
	if r.state == requestDone {
		return
	}
	r.timer.Stop()
	r.timer = nil
	r.state = requestDone
	r.reply = reply
	r.err = err
	r.finished = now
	r.result <- result{reply: reply, err: err}
}
