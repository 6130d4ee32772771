// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import (
	"sort"
	"sync"
	"time"
)

// FakeClock is a manually advanced Clock. Time only moves when Advance
// is called. It is safe for concurrent use.
//
// Do not call Advance from inside an AfterFunc callback.
type FakeClock struct {
	mutex   sync.Mutex
	now     time.Time
	pending []*pendingTimer
	changed *sync.Cond
}

// pendingTimer is one armed After or AfterFunc registration.
type pendingTimer struct {
	deadline time.Time

	// duration is the delay the timer was armed with. WaitForTimer
	// matches on it so tests can wait for one specific timeout.
	duration time.Duration

	// Exactly one of channel and callback is set.
	channel  chan time.Time
	callback func()

	// finished is set when the timer fires or is stopped.
	finished bool
}

// Fake returns a FakeClock reading initial.
func Fake(initial time.Time) *FakeClock {
	clock := &FakeClock{now: initial}
	clock.changed = sync.NewCond(&clock.mutex)
	return clock
}

// Now returns the fake time.
func (c *FakeClock) Now() time.Time {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.now
}

// After returns a channel that receives once the clock has been
// advanced by d.
func (c *FakeClock) After(d time.Duration) <-chan time.Time {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	channel := make(chan time.Time, 1)
	if d <= 0 {
		channel <- c.now
		return channel
	}
	c.addLocked(&pendingTimer{
		deadline: c.now.Add(d),
		duration: d,
		channel:  channel,
	})
	return channel
}

// AfterFunc registers f to run inside the Advance call that moves the
// clock past now+d. A non-positive d runs f before AfterFunc returns.
func (c *FakeClock) AfterFunc(d time.Duration, f func()) *Timer {
	if d <= 0 {
		f()
		return &Timer{}
	}

	c.mutex.Lock()
	defer c.mutex.Unlock()

	timer := &pendingTimer{
		deadline: c.now.Add(d),
		duration: d,
		callback: f,
	}
	c.addLocked(timer)

	return &Timer{stop: func() bool {
		c.mutex.Lock()
		defer c.mutex.Unlock()
		if timer.finished {
			return false
		}
		timer.finished = true
		c.removeLocked(timer)
		return true
	}}
}

// Advance moves the clock forward by d and fires every timer whose
// deadline is now due, earliest first. Channel timers receive the new
// time; callbacks run on the calling goroutine.
func (c *FakeClock) Advance(d time.Duration) {
	c.mutex.Lock()
	c.now = c.now.Add(d)
	target := c.now
	c.mutex.Unlock()

	for {
		due := c.takeDue(target)
		if len(due) == 0 {
			return
		}
		for _, timer := range due {
			if timer.callback != nil {
				timer.callback()
				continue
			}
			select {
			case timer.channel <- target:
			default:
			}
		}
	}
}

// WaitForTimers blocks until at least n timers are armed.
func (c *FakeClock) WaitForTimers(n int) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	for len(c.pending) < n {
		c.changed.Wait()
	}
}

// WaitForTimer blocks until a timer armed with exactly duration d is
// pending. State machines that arm several timers with distinct
// durations can be stepped one timeout at a time this way.
func (c *FakeClock) WaitForTimer(d time.Duration) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	for !c.hasDurationLocked(d) {
		c.changed.Wait()
	}
}

// PendingCount returns the number of armed timers.
func (c *FakeClock) PendingCount() int {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return len(c.pending)
}

func (c *FakeClock) hasDurationLocked(d time.Duration) bool {
	for _, timer := range c.pending {
		if timer.duration == d {
			return true
		}
	}
	return false
}

func (c *FakeClock) addLocked(timer *pendingTimer) {
	c.pending = append(c.pending, timer)
	c.changed.Broadcast()
}

func (c *FakeClock) removeLocked(timer *pendingTimer) {
	for index, candidate := range c.pending {
		if candidate == timer {
			c.pending = append(c.pending[:index], c.pending[index+1:]...)
			break
		}
	}
	c.changed.Broadcast()
}

// takeDue removes and returns the timers due at target, sorted by
// deadline.
func (c *FakeClock) takeDue(target time.Time) []*pendingTimer {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	var due, remaining []*pendingTimer
	for _, timer := range c.pending {
		if timer.deadline.After(target) {
			remaining = append(remaining, timer)
			continue
		}
		timer.finished = true
		due = append(due, timer)
	}
	if len(due) > 0 {
		c.pending = remaining
		c.changed.Broadcast()
	}
	sort.SliceStable(due, func(i, j int) bool {
		return due[i].deadline.Before(due[j].deadline)
	})
	return due
}
