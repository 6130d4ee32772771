// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"fmt"
	"time"
)

// TB is the part of testing.TB the helpers need.
type TB interface {
	Helper()
	Fatalf(format string, args ...any)
}

// RequireReceive returns the next value from channel, failing the test
// if none arrives within timeout or the channel is closed.
//
//	result := testutil.RequireReceive(t, results, 5*time.Second, "list result")
func RequireReceive[T any](t TB, channel <-chan T, timeout time.Duration, what ...any) T {
	t.Helper()
	select {
	case value, ok := <-channel:
		if !ok {
			t.Fatalf("channel closed before a value arrived: %s", describe(what))
		}
		return value
	case <-time.After(timeout): //nolint:realclock test hang prevention
		t.Fatalf("nothing received after %v: %s", timeout, describe(what))
	}
	panic("unreachable")
}

// RequireClosed fails the test unless channel is closed (or delivers)
// within timeout.
func RequireClosed(t TB, channel <-chan struct{}, timeout time.Duration, what ...any) {
	t.Helper()
	select {
	case <-channel:
	case <-time.After(timeout): //nolint:realclock test hang prevention
		t.Fatalf("channel still open after %v: %s", timeout, describe(what))
	}
}

// describe renders the optional message arguments: a plain value, or a
// format string followed by its arguments.
func describe(what []any) string {
	switch len(what) {
	case 0:
		return "(no description)"
	case 1:
		return fmt.Sprint(what[0])
	}
	if format, ok := what[0].(string); ok {
		return fmt.Sprintf(format, what[1:]...)
	}
	return fmt.Sprint(what...)
}
