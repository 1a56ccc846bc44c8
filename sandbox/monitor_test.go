// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sandbox

import (
	"io"
	"log/slog"
	"testing"

	"golang.org/x/sys/unix"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testHandle(state State) *Handle {
	return &Handle{
		PID:    12345,
		config: *validConfig(),
		status: Status{State: state},
		events: NewEventRing(16),
	}
}

func TestParseVmRSS(t *testing.T) {
	t.Parallel()

	status := []byte("Name:\ttrue\nVmPeak:\t   1024 kB\nVmRSS:\t    512 kB\nThreads:\t1\n")
	rss, ok := parseVmRSS(status)
	if !ok {
		t.Fatal("VmRSS not found")
	}
	if rss != 512*1024 {
		t.Fatalf("rss = %d, want %d", rss, 512*1024)
	}

	if _, ok := parseVmRSS([]byte("Name:\ttrue\n")); ok {
		t.Fatal("parseVmRSS reported a value for a kernel thread status")
	}
	if _, ok := parseVmRSS([]byte("VmRSS:\tgarbage kB\n")); ok {
		t.Fatal("parseVmRSS accepted a malformed value")
	}
}

func TestFinishMapsStageExitCodes(t *testing.T) {
	t.Parallel()
	m := NewMonitor(testLogger())

	h := testHandle(StateLaunching)
	m.finish(h, unix.WaitStatus(exitCodeJail<<8))

	status := h.Status()
	if status.State != StateFailed {
		t.Fatalf("state = %s, want failed", status.State)
	}
	if status.FailureStage != StageJail {
		t.Fatalf("stage = %s, want jail", status.FailureStage)
	}

	events := h.Events().Snapshot()
	if len(events) == 0 || events[len(events)-1].Type != EventSetupFailure {
		t.Fatal("setup failure not recorded in the audit ring")
	}
}

func TestFinishEscalationCheckRecordsDetection(t *testing.T) {
	t.Parallel()
	m := NewMonitor(testLogger())

	h := testHandle(StateLaunching)
	m.finish(h, unix.WaitStatus(exitCodeEscalationCheck<<8))

	if h.Status().FailureStage != StageEscalationCheck {
		t.Fatalf("stage = %s, want escalation-check", h.Status().FailureStage)
	}
	var detected bool
	for _, e := range h.Events().Snapshot() {
		if e.Type == EventEscalationDetected {
			detected = true
		}
	}
	if !detected {
		t.Fatal("escalation detection event missing")
	}
}

func TestFinishTargetExit(t *testing.T) {
	t.Parallel()
	m := NewMonitor(testLogger())

	// Once the target is running, its exit code is its own even if it
	// collides with the stage range.
	h := testHandle(StateRunning)
	m.finish(h, unix.WaitStatus(exitCodeJail<<8))

	status := h.Status()
	if status.State != StateExited {
		t.Fatalf("state = %s, want exited", status.State)
	}
	if status.ExitCode != exitCodeJail {
		t.Fatalf("exit code = %d, want %d", status.ExitCode, exitCodeJail)
	}
}

func TestFinishSignaled(t *testing.T) {
	t.Parallel()
	m := NewMonitor(testLogger())

	h := testHandle(StateRunning)
	// Termination by signal: low 7 bits carry the signal number.
	m.finish(h, unix.WaitStatus(unix.SIGKILL))

	if h.Status().State != StateKilled {
		t.Fatalf("state = %s, want killed", h.Status().State)
	}
}

func TestPollTerminalHandleIsStable(t *testing.T) {
	t.Parallel()
	m := NewMonitor(testLogger())

	h := testHandle(StateExited)
	h.status.ExitCode = 7
	status, err := m.Poll(h)
	if err != nil {
		t.Fatal(err)
	}
	if status.State != StateExited || status.ExitCode != 7 {
		t.Fatalf("terminal status changed: %+v", status)
	}
}

func TestTerminateTerminalHandleIsNoOp(t *testing.T) {
	t.Parallel()
	m := NewMonitor(testLogger())

	// PID 12345 almost certainly does not exist, and must not be
	// signaled anyway.
	h := testHandle(StateKilled)
	if err := m.Terminate(h, 0); err != nil {
		t.Fatalf("Terminate on terminal handle: %v", err)
	}
	if h.Status().State != StateKilled {
		t.Fatalf("terminal state changed: %s", h.Status().State)
	}
}

func TestStateTerminal(t *testing.T) {
	t.Parallel()

	for _, s := range []State{StateCreated, StateLaunching, StateRunning} {
		if s.terminal() {
			t.Errorf("%s wrongly terminal", s)
		}
	}
	for _, s := range []State{StateExited, StateKilled, StateFailed} {
		if !s.terminal() {
			t.Errorf("%s wrongly non-terminal", s)
		}
	}
}
