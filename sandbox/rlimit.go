// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sandbox

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// applyLimits installs the resource ceilings. Hard and soft limits are
// set to the same value so the sandboxed program cannot raise its own
// ceiling back up. Memory and CPU are mandatory (validation rejects
// zero values); the remaining limits are applied only when set, zero
// meaning host default.
func applyLimits(limits ResourceLimits) error {
	set := func(resource int, name string, value uint64) error {
		rl := unix.Rlimit{Cur: value, Max: value}
		if err := unix.Setrlimit(resource, &rl); err != nil {
			return fmt.Errorf("setrlimit %s=%d: %w", name, value, err)
		}
		return nil
	}

	if err := set(unix.RLIMIT_AS, "address-space", limits.MemoryBytes); err != nil {
		return err
	}
	if err := set(unix.RLIMIT_CPU, "cpu-seconds", limits.CPUSeconds); err != nil {
		return err
	}
	if limits.FileSizeBytes != 0 {
		if err := set(unix.RLIMIT_FSIZE, "file-size", limits.FileSizeBytes); err != nil {
			return err
		}
	}
	if limits.MaxProcesses != 0 {
		if err := set(unix.RLIMIT_NPROC, "processes", limits.MaxProcesses); err != nil {
			return err
		}
	}
	if limits.MaxOpenFiles != 0 {
		if err := set(unix.RLIMIT_NOFILE, "open-files", limits.MaxOpenFiles); err != nil {
			return err
		}
	}
	return nil
}
