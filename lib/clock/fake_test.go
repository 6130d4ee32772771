// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import (
	"testing"
	"time"
)

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func TestFakeClockAdvanceMovesNow(t *testing.T) {
	t.Parallel()
	clock := Fake(epoch)
	clock.Advance(90 * time.Second)
	if got, want := clock.Now(), epoch.Add(90*time.Second); !got.Equal(want) {
		t.Fatalf("Now() = %v, want %v", got, want)
	}
}

func TestFakeClockAfterFiresAtDeadline(t *testing.T) {
	t.Parallel()
	clock := Fake(epoch)
	channel := clock.After(2 * time.Second)

	clock.Advance(time.Second)
	select {
	case <-channel:
		t.Fatal("After fired one second early")
	default:
	}

	clock.Advance(time.Second)
	select {
	case fired := <-channel:
		if !fired.Equal(epoch.Add(2 * time.Second)) {
			t.Errorf("fired at %v", fired)
		}
	default:
		t.Fatal("After did not fire at its deadline")
	}
}

func TestFakeClockAfterFuncOrdering(t *testing.T) {
	t.Parallel()
	clock := Fake(epoch)
	var order []string
	clock.AfterFunc(3*time.Second, func() { order = append(order, "connect") })
	clock.AfterFunc(time.Second, func() { order = append(order, "request") })
	clock.AfterFunc(2*time.Second, func() { order = append(order, "idle") })

	clock.Advance(5 * time.Second)

	want := []string{"request", "idle", "connect"}
	if len(order) != len(want) {
		t.Fatalf("fired %v, want %v", order, want)
	}
	for index := range want {
		if order[index] != want[index] {
			t.Fatalf("fired %v, want %v", order, want)
		}
	}
}

func TestFakeClockStoppedTimerNeverFires(t *testing.T) {
	t.Parallel()
	clock := Fake(epoch)
	fired := false
	timer := clock.AfterFunc(time.Second, func() { fired = true })

	if !timer.Stop() {
		t.Fatal("Stop on an armed timer returned false")
	}
	if timer.Stop() {
		t.Fatal("second Stop returned true")
	}
	if clock.PendingCount() != 0 {
		t.Fatalf("PendingCount = %d after Stop", clock.PendingCount())
	}
	clock.Advance(time.Minute)
	if fired {
		t.Fatal("stopped timer fired")
	}
}

func TestFakeClockStopAfterFire(t *testing.T) {
	t.Parallel()
	clock := Fake(epoch)
	timer := clock.AfterFunc(time.Second, func() {})
	clock.Advance(time.Second)
	if timer.Stop() {
		t.Fatal("Stop after firing returned true")
	}
}

func TestFakeClockWaitForTimer(t *testing.T) {
	t.Parallel()
	clock := Fake(epoch)
	done := make(chan struct{})
	go func() {
		clock.AfterFunc(7*time.Second, func() {})
		<-clock.After(5 * time.Second)
		close(done)
	}()

	clock.WaitForTimer(5 * time.Second)
	clock.Advance(5 * time.Second)

	select {
	case <-done:
	case <-time.After(5 * time.Second): //nolint:realclock test hang prevention
		t.Fatal("goroutine did not observe the advanced clock")
	}
	if clock.PendingCount() != 1 {
		t.Fatalf("PendingCount = %d, want the 7s timer left", clock.PendingCount())
	}
}

func TestFakeClockNonPositiveAfterFuncRunsInline(t *testing.T) {
	t.Parallel()
	clock := Fake(epoch)
	ran := false
	timer := clock.AfterFunc(0, func() { ran = true })
	if !ran {
		t.Fatal("AfterFunc(0) did not run the callback inline")
	}
	if timer.Stop() {
		t.Fatal("Stop on an inline timer returned true")
	}
}

func TestRealClockAfterFuncStop(t *testing.T) {
	t.Parallel()
	timer := Real().AfterFunc(time.Hour, func() { t.Error("fired") })
	if !timer.Stop() {
		t.Fatal("Stop on a pending real timer returned false")
	}
}
