// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sandbox

import (
	"bufio"
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"golang.org/x/sys/unix"
)

// Monitor observes launched sandboxes. It is passive: Poll inspects
// and reaps, nothing runs between calls. Like the handles it advances,
// a Monitor belongs to a single goroutine.
type Monitor struct {
	log *slog.Logger
}

// NewMonitor returns a monitor logging through log.
func NewMonitor(log *slog.Logger) *Monitor {
	return &Monitor{log: log}
}

// Poll advances the handle's status: it reaps the child if it has
// exited (mapping setup-stage exit codes to the failed stage), detects
// the launching-to-running transition, and samples resident memory
// against the configured ceiling. Terminal handles are returned
// unchanged.
func (m *Monitor) Poll(h *Handle) (Status, error) {
	if h.status.State.terminal() {
		return h.status, nil
	}

	var ws unix.WaitStatus
	pid, err := unix.Wait4(h.PID, &ws, unix.WNOHANG, nil)
	if err != nil {
		return h.status, fmt.Errorf("wait4 pid %d: %w", h.PID, err)
	}
	if pid == h.PID {
		m.finish(h, ws)
		return h.status, nil
	}

	// Child still alive.
	if h.status.State == StateLaunching && hasExeced(h.PID) {
		h.status.State = StateRunning
		h.events.Record(Event{Type: EventRunning, PID: h.PID})
		m.log.Debug("sandbox running", "pid", h.PID)
	}
	m.sampleMemory(h)
	return h.status, nil
}

// finish records the terminal state for a reaped child.
func (m *Monitor) finish(h *Handle, ws unix.WaitStatus) {
	switch {
	case ws.Signaled():
		h.status.State = StateKilled
		h.events.Record(Event{Type: EventTerminated, PID: h.PID,
			Detail: "signal " + ws.Signal().String()})
		m.log.Info("sandbox killed", "pid", h.PID, "signal", ws.Signal().String())

	case ws.Exited():
		code := ws.ExitStatus()
		if stage, ok := FailureForExitCode(code); ok && h.status.State == StateLaunching {
			h.status.State = StateFailed
			h.status.FailureStage = stage
			h.events.Record(Event{Type: EventSetupFailure, PID: h.PID,
				Detail: stage.String()})
			if stage == StageEscalationCheck {
				h.events.Record(Event{Type: EventEscalationDetected, PID: h.PID})
			}
			m.log.Error("sandbox setup failed", "pid", h.PID, "stage", stage.String())
			return
		}
		h.status.State = StateExited
		h.status.ExitCode = code
		h.events.Record(Event{Type: EventExit, PID: h.PID,
			Detail: "code " + strconv.Itoa(code)})
		m.log.Info("sandbox exited", "pid", h.PID, "code", code)

	default:
		// Stopped or continued under ptrace; not terminal.
	}
}

// sampleMemory compares resident set size against the memory ceiling.
// Advisory only: RLIMIT_AS is what actually enforces the limit, but
// address space and resident memory diverge enough that crossing the
// ceiling in RSS is worth an event before the kernel starts failing
// the child's allocations.
func (m *Monitor) sampleMemory(h *Handle) {
	if h.status.ExceededMemory {
		return
	}
	data, err := os.ReadFile(fmt.Sprintf("/proc/%d/status", h.PID))
	if err != nil {
		return
	}
	rss, ok := parseVmRSS(data)
	if !ok || rss <= h.config.Limits.MemoryBytes {
		return
	}
	h.status.ExceededMemory = true
	h.events.Record(Event{Type: EventResourceViolation, PID: h.PID,
		Detail: fmt.Sprintf("rss %d exceeds limit %d", rss, h.config.Limits.MemoryBytes)})
	m.log.Warn("sandbox over memory ceiling",
		"pid", h.PID, "rss", rss, "limit", h.config.Limits.MemoryBytes)
}

// hasExeced reports whether the child has replaced the launcher's
// binary with the target. After the privilege drop the child's exe
// link may be unreadable to an unprivileged parent; by that point the
// pipeline has passed every stage that can fail without an exec, so
// unreadable counts as running.
func hasExeced(pid int) bool {
	self, err := os.Readlink("/proc/self/exe")
	if err != nil {
		return true
	}
	child, err := os.Readlink(fmt.Sprintf("/proc/%d/exe", pid))
	if err != nil {
		return true
	}
	return child != self
}

// parseVmRSS extracts the resident set size in bytes from
// /proc/<pid>/status content. The kernel reports the field in kB.
func parseVmRSS(status []byte) (uint64, bool) {
	scanner := bufio.NewScanner(bytes.NewReader(status))
	for scanner.Scan() {
		line := scanner.Bytes()
		if !bytes.HasPrefix(line, []byte("VmRSS:")) {
			continue
		}
		fields := bytes.Fields(line[len("VmRSS:"):])
		if len(fields) < 1 {
			return 0, false
		}
		kb, err := strconv.ParseUint(string(fields[0]), 10, 64)
		if err != nil {
			return 0, false
		}
		return kb * 1024, true
	}
	return 0, false
}
