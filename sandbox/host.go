// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sandbox

import (
	"os"
	"strings"

	"golang.org/x/sys/unix"
)

// HostCapabilities describes what confinement features this system
// supports.
type HostCapabilities struct {
	// RunningAsRoot is true when the process has euid 0 and can use
	// every namespace and capability operation directly.
	RunningAsRoot bool

	// UserNamespacesEnabled is true if unprivileged user namespaces
	// work, the fallback that lets non-root callers build jails.
	UserNamespacesEnabled bool

	// SeccompAvailable is true if the kernel supports seccomp filters.
	SeccompAvailable bool

	// SeccompActions lists the filter actions the kernel advertises.
	SeccompActions []string

	// KernelVersion is the running kernel's release string.
	KernelVersion string
}

// DetectHostCapabilities checks what the running kernel and the
// current identity allow.
func DetectHostCapabilities() *HostCapabilities {
	caps := &HostCapabilities{
		RunningAsRoot: os.Geteuid() == 0,
	}

	caps.UserNamespacesEnabled = checkUserNamespaces()
	caps.SeccompActions = seccompActions()
	caps.SeccompAvailable = len(caps.SeccompActions) > 0

	var uts unix.Utsname
	if err := unix.Uname(&uts); err == nil {
		caps.KernelVersion = unix.ByteSliceToString(uts.Release[:])
	}

	return caps
}

// CanConfine returns true if a full sandbox (namespaces plus seccomp)
// can be built by this process.
func (c *HostCapabilities) CanConfine() bool {
	return c.SeccompAvailable && (c.RunningAsRoot || c.UserNamespacesEnabled)
}

// SkipReason returns why confinement is unavailable, or "" when it is.
// Tests use this to skip instead of fail on constrained hosts.
func (c *HostCapabilities) SkipReason() string {
	if !c.SeccompAvailable {
		return "kernel lacks seccomp filter support"
	}
	if !c.RunningAsRoot && !c.UserNamespacesEnabled {
		return "not root and unprivileged user namespaces disabled (set kernel.unprivileged_userns_clone=1)"
	}
	return ""
}

// checkUserNamespaces tests if unprivileged user namespaces work.
func checkUserNamespaces() bool {
	// Debian-style switch. Absent on most kernels, which means allowed.
	data, err := os.ReadFile("/proc/sys/kernel/unprivileged_userns_clone")
	if err == nil && strings.TrimSpace(string(data)) == "0" {
		return false
	}

	// The upstream limit: zero means no user namespaces at all.
	data, err = os.ReadFile("/proc/sys/user/max_user_namespaces")
	if err == nil && strings.TrimSpace(string(data)) == "0" {
		return false
	}

	return true
}

// seccompActions reads the filter actions the kernel advertises.
func seccompActions() []string {
	data, err := os.ReadFile("/proc/sys/kernel/seccomp/actions_avail")
	if err != nil {
		return nil
	}
	return strings.Fields(string(data))
}
