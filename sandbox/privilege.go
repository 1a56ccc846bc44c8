// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sandbox

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// Capabilities recognized in policy files and configs. The values are
// the kernel capability numbers.
const (
	CapChown          = Capability(unix.CAP_CHOWN)
	CapDACOverride    = Capability(unix.CAP_DAC_OVERRIDE)
	CapDACReadSearch  = Capability(unix.CAP_DAC_READ_SEARCH)
	CapFowner         = Capability(unix.CAP_FOWNER)
	CapFsetid         = Capability(unix.CAP_FSETID)
	CapKill           = Capability(unix.CAP_KILL)
	CapSetgid         = Capability(unix.CAP_SETGID)
	CapSetuid         = Capability(unix.CAP_SETUID)
	CapSetpcap        = Capability(unix.CAP_SETPCAP)
	CapNetBindService = Capability(unix.CAP_NET_BIND_SERVICE)
	CapNetRaw         = Capability(unix.CAP_NET_RAW)
	CapIPCLock        = Capability(unix.CAP_IPC_LOCK)
	CapSysChroot      = Capability(unix.CAP_SYS_CHROOT)
	CapSysPtrace      = Capability(unix.CAP_SYS_PTRACE)
	CapSysAdmin       = Capability(unix.CAP_SYS_ADMIN)
	CapSysNice        = Capability(unix.CAP_SYS_NICE)
	CapSysResource    = Capability(unix.CAP_SYS_RESOURCE)
	CapSysTime        = Capability(unix.CAP_SYS_TIME)
	CapMknod          = Capability(unix.CAP_MKNOD)
	CapAuditWrite     = Capability(unix.CAP_AUDIT_WRITE)
	CapSetfcap        = Capability(unix.CAP_SETFCAP)
	CapNetAdmin       = Capability(unix.CAP_NET_ADMIN)
	CapSysModule      = Capability(unix.CAP_SYS_MODULE)
	CapSysRawIO       = Capability(unix.CAP_SYS_RAWIO)
	CapSysBoot        = Capability(unix.CAP_SYS_BOOT)
)

var capabilityNames = map[Capability]string{
	CapChown:          "CAP_CHOWN",
	CapDACOverride:    "CAP_DAC_OVERRIDE",
	CapDACReadSearch:  "CAP_DAC_READ_SEARCH",
	CapFowner:         "CAP_FOWNER",
	CapFsetid:         "CAP_FSETID",
	CapKill:           "CAP_KILL",
	CapSetgid:         "CAP_SETGID",
	CapSetuid:         "CAP_SETUID",
	CapSetpcap:        "CAP_SETPCAP",
	CapNetBindService: "CAP_NET_BIND_SERVICE",
	CapNetRaw:         "CAP_NET_RAW",
	CapIPCLock:        "CAP_IPC_LOCK",
	CapSysChroot:      "CAP_SYS_CHROOT",
	CapSysPtrace:      "CAP_SYS_PTRACE",
	CapSysAdmin:       "CAP_SYS_ADMIN",
	CapSysNice:        "CAP_SYS_NICE",
	CapSysResource:    "CAP_SYS_RESOURCE",
	CapSysTime:        "CAP_SYS_TIME",
	CapMknod:          "CAP_MKNOD",
	CapAuditWrite:     "CAP_AUDIT_WRITE",
	CapSetfcap:        "CAP_SETFCAP",
	CapNetAdmin:       "CAP_NET_ADMIN",
	CapSysModule:      "CAP_SYS_MODULE",
	CapSysRawIO:       "CAP_SYS_RAWIO",
	CapSysBoot:        "CAP_SYS_BOOT",
}

var capabilityValues = func() map[string]Capability {
	m := make(map[string]Capability, len(capabilityNames))
	for c, name := range capabilityNames {
		m[name] = c
	}
	return m
}()

func capabilityName(c Capability) string {
	if name, ok := capabilityNames[c]; ok {
		return name
	}
	return fmt.Sprintf("CAP_%d", int(c))
}

// ParseCapability resolves a capability name like "CAP_NET_RAW".
func ParseCapability(name string) (Capability, error) {
	if c, ok := capabilityValues[name]; ok {
		return c, nil
	}
	return 0, fmt.Errorf("%w: unknown capability %q", ErrConfigInvalid, name)
}

// reducePrivilege drops the process to the configured uid/gid keeping
// only the configured capabilities. Order matters: the bounding set
// and the supplementary groups go first (both need privilege the uid
// switch removes), then the uid switch with KEEPCAPS armed, then the
// narrowing capset. Runs on every thread via the Go runtime's syscall
// fan-out, so a single call covers the process.
func reducePrivilege(cfg *Config) error {
	if unix.Getuid() != 0 {
		// Already unprivileged: either the launcher ran without root
		// and mapped the identity through a user namespace, or there
		// is nothing to drop. Verify the identity matches the config
		// instead of attempting privileged operations that would fail.
		if unix.Getuid() != int(cfg.UID) {
			return fmt.Errorf("running as uid %d, config wants %d and no privilege to switch",
				unix.Getuid(), cfg.UID)
		}
		if unix.Getgid() != int(cfg.GID) {
			return fmt.Errorf("running as gid %d, config wants %d and no privilege to switch",
				unix.Getgid(), cfg.GID)
		}
		return nil
	}
	if err := dropBoundingSet(cfg.Capabilities); err != nil {
		return fmt.Errorf("shrink bounding set: %w", err)
	}
	if err := unix.Setgroups([]int{int(cfg.GID)}); err != nil {
		return fmt.Errorf("setgroups: %w", err)
	}
	if err := unix.Setgid(int(cfg.GID)); err != nil {
		return fmt.Errorf("setgid %d: %w", cfg.GID, err)
	}
	// Leaving uid 0 clears the permitted set, and capset can never
	// put bits back into it. KEEPCAPS carries the permitted set
	// across the switch so the configured capabilities are still
	// there for capset to select; effective is rebuilt by capset
	// itself.
	keepcaps := len(cfg.Capabilities) > 0
	if keepcaps {
		if err := unix.Prctl(unix.PR_SET_KEEPCAPS, 1, 0, 0, 0); err != nil {
			return fmt.Errorf("set keepcaps: %w", err)
		}
	}
	if err := unix.Setuid(int(cfg.UID)); err != nil {
		return fmt.Errorf("setuid %d: %w", cfg.UID, err)
	}
	if err := setCapabilities(cfg.Capabilities); err != nil {
		return fmt.Errorf("set capabilities: %w", err)
	}
	if keepcaps {
		if err := unix.Prctl(unix.PR_SET_KEEPCAPS, 0, 0, 0, 0); err != nil {
			return fmt.Errorf("clear keepcaps: %w", err)
		}
	}
	return nil
}

// dropBoundingSet removes every capability outside keep from the
// bounding set, so the sandboxed program cannot regain them through
// file capabilities.
func dropBoundingSet(keep CapabilitySet) error {
	for c := 0; c <= unix.CAP_LAST_CAP; c++ {
		if keep.Has(Capability(c)) {
			continue
		}
		if err := unix.Prctl(unix.PR_CAPBSET_DROP, uintptr(c), 0, 0, 0); err != nil {
			// EINVAL means the running kernel is older than the
			// headers and does not know this capability number.
			if err == unix.EINVAL {
				continue
			}
			return fmt.Errorf("drop %s from bounding set: %w", capabilityName(Capability(c)), err)
		}
	}
	return nil
}

// setCapabilities installs keep as the effective and permitted sets
// and clears the inheritable set.
func setCapabilities(keep CapabilitySet) error {
	low, high := keep.masks()
	header := unix.CapUserHeader{
		Version: unix.LINUX_CAPABILITY_VERSION_3,
		Pid:     0,
	}
	data := [2]unix.CapUserData{
		{Effective: low, Permitted: low, Inheritable: 0},
		{Effective: high, Permitted: high, Inheritable: 0},
	}
	if err := unix.Capset(&header, &data[0]); err != nil {
		return fmt.Errorf("capset: %w", err)
	}
	return nil
}

// verifyIrreversible proves the privilege drop cannot be undone by
// attempting to take uid 0 back. Success is a containment failure and
// aborts the sandbox before the target program ever runs. Skipped when
// the sandbox legitimately runs as root.
func verifyIrreversible(cfg *Config) error {
	if cfg.UID == 0 {
		return nil
	}
	if err := unix.Setuid(0); err == nil {
		return fmt.Errorf("%w: setuid(0) succeeded after privilege drop",
			ErrPrivilegeEscalationDetected)
	}
	if uid := unix.Getuid(); uid != int(cfg.UID) {
		return fmt.Errorf("%w: running as uid %d, expected %d",
			ErrPrivilegeEscalationDetected, uid, cfg.UID)
	}
	return nil
}
