// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock is the time source for the agent client's state
// machines. Connect timeouts, request timeouts and idle disconnects are
// all armed through a Clock so that tests can drive them with a
// [FakeClock] instead of sleeping.
//
// Production code passes Real(). Tests construct Fake(epoch), start the
// operation under test, call WaitForTimer (or WaitForTimers) until the
// state machine has armed the timer they care about, and then Advance
// past its deadline. Callbacks registered with AfterFunc run
// synchronously inside Advance, in deadline order.
package clock
