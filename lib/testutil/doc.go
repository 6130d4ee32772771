// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil holds helpers shared by the agent client's tests.
//
// [SocketDir] returns a short directory under /tmp for agent sockets,
// because sun_path is limited to 108 bytes and t.TempDir paths can
// exceed it. [RequireReceive] and [RequireClosed] wrap the
// select-with-deadline pattern so that tests only touch the wall clock
// as a hang guard; everything else goes through lib/clock.
package testutil
