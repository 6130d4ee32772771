// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import "time"

// Clock is the subset of the time package the agent client depends on.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// After returns a channel that receives once d has elapsed. A
	// non-positive d delivers immediately.
	After(d time.Duration) <-chan time.Time

	// AfterFunc calls f once d has elapsed. The returned Timer cancels
	// the call. The real clock runs f on its own goroutine; the fake
	// clock runs it inside Advance.
	AfterFunc(d time.Duration, f func()) *Timer
}

// Timer cancels a pending AfterFunc callback.
type Timer struct {
	stop func() bool
}

// Stop prevents the callback from running. It reports whether the call
// stopped the timer; false means the callback already ran or the timer
// was already stopped. Stop on a nil Timer is a no-op.
func (t *Timer) Stop() bool {
	if t == nil || t.stop == nil {
		return false
	}
	return t.stop()
}
