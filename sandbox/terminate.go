// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sandbox

import (
	"fmt"
	"time"

	"golang.org/x/sys/unix"
)

// How often the grace loop re-checks for the child's exit.
const terminatePollInterval = 5 * time.Millisecond

// Terminate stops a sandbox: SIGTERM, a bounded grace period, then
// SIGKILL. The child is always reaped before Terminate returns, so no
// zombie survives it. Calling Terminate on a handle that is already
// terminal is a no-op.
//
// The signal goes to the child's process group (the launcher puts each
// sandbox in its own), so the target's own children die with it.
func (m *Monitor) Terminate(h *Handle, grace time.Duration) error {
	if h.status.State.terminal() {
		return nil
	}

	if err := unix.Kill(-h.PID, unix.SIGTERM); err != nil && err != unix.ESRCH {
		return fmt.Errorf("signal pid group %d: %w", h.PID, err)
	}
	m.log.Info("sandbox terminating", "pid", h.PID, "grace", grace)

	deadline := time.Now().Add(grace)
	for {
		var ws unix.WaitStatus
		pid, err := unix.Wait4(h.PID, &ws, unix.WNOHANG, nil)
		if err != nil && err != unix.EINTR {
			return fmt.Errorf("wait4 pid %d: %w", h.PID, err)
		}
		if pid == h.PID {
			m.finish(h, ws)
			return nil
		}
		if time.Now().After(deadline) {
			break
		}
		time.Sleep(terminatePollInterval)
	}

	if err := unix.Kill(-h.PID, unix.SIGKILL); err != nil && err != unix.ESRCH {
		return fmt.Errorf("kill pid group %d: %w", h.PID, err)
	}
	// SIGKILL cannot be ignored; the blocking wait is bounded by the
	// kernel tearing the process down.
	var ws unix.WaitStatus
	if _, err := unix.Wait4(h.PID, &ws, 0, nil); err != nil {
		return fmt.Errorf("reap pid %d: %w", h.PID, err)
	}
	m.finish(h, ws)
	return nil
}
