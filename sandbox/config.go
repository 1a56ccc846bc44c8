// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sandbox

import (
	"sort"
	"strings"

	"golang.org/x/sys/unix"
)

// Engine capacities. A policy may not declare more mounts or allowed
// syscalls than these; Validate rejects larger policies with
// ErrPolicyTooLarge.
const (
	MaxMounts          = 128
	MaxAllowedSyscalls = 64
)

// Config declares the isolation policy for one sandboxed process. A
// Config is validated once, consumed by exactly one Create call, and
// frozen into the resulting Handle; it must not be mutated afterwards.
type Config struct {
	// Program is the absolute path of the executable to run inside
	// the sandbox.
	Program string

	// Args are the arguments after argv[0]. The child always passes
	// Program itself as argv[0] at exec.
	Args []string

	// Env is the child environment in KEY=VALUE form. The child
	// inherits nothing from the supervisor.
	Env []string

	// UID and GID are the unprivileged identity the child drops to
	// before exec. Requesting 0 is refused unless the caller itself
	// runs with root authority.
	UID uint32
	GID uint32

	// ChrootDir, when set, confines the child's filesystem root to
	// this subtree after the mounts are applied.
	ChrootDir string

	// ScratchDir is the directory covered by a fresh size-capped
	// nodev,nosuid,noexec tmpfs before any declared mounts. Defaults
	// to /tmp.
	ScratchDir string

	// ScratchSize is the tmpfs size cap, e.g. "100M". Defaults to
	// defaultScratchSize.
	ScratchSize string

	// Mounts are applied in declaration order after the scratch
	// tmpfs. A bind mount whose source does not exist is skipped;
	// every other mount failure aborts the launch.
	Mounts []MountSpec

	// Namespaces selects which namespaces to detach from the host.
	Namespaces NamespaceSet

	// Seccomp is the syscall policy installed before privilege
	// reduction. The zero value is the built-in allow-list policy.
	Seccomp SyscallPolicy

	// Capabilities are retained across the privilege drop; everything
	// else is removed from the bounding, effective, permitted, and
	// inheritable sets. Empty means no capabilities survive.
	Capabilities CapabilitySet

	// Limits are the kernel-enforced resource ceilings. MemoryBytes
	// and CPUSeconds are mandatory.
	Limits ResourceLimits
}

const (
	defaultScratchDir  = "/tmp"
	defaultScratchSize = "100M"
)

// Clone returns a deep copy of the config. The launcher freezes a
// clone into the Handle so later caller mutations cannot skew audit
// records or monitor comparisons.
func (c *Config) Clone() *Config {
	clone := *c
	if c.Args != nil {
		clone.Args = append([]string(nil), c.Args...)
	}
	if c.Env != nil {
		clone.Env = append([]string(nil), c.Env...)
	}
	if c.Mounts != nil {
		clone.Mounts = append([]MountSpec(nil), c.Mounts...)
	}
	if c.Seccomp.Allowed != nil {
		clone.Seccomp.Allowed = append([]string(nil), c.Seccomp.Allowed...)
	}
	if c.Capabilities != nil {
		clone.Capabilities = c.Capabilities.clone()
	}
	return &clone
}

// MountSpec declares one filesystem mount inside the jail.
type MountSpec struct {
	// Source is the host path (bind mounts) or filesystem source
	// (e.g. "tmpfs", "proc").
	Source string

	// Target is the mount point inside the sandbox.
	Target string

	// FSType is the filesystem type. Empty means bind mount.
	FSType string

	// Flags are extra MS_* mount flags ORed into the mount call.
	// Held as uint64 so the spec survives the wire encoding to the
	// child; converted to the kernel's word size at the mount call.
	Flags uint64

	// ReadOnly remounts the target read-only after mounting. Bind
	// mounts default to read-only at the policy layer; writable
	// mounts must be declared explicitly.
	ReadOnly bool
}

// bind reports whether the spec is a bind mount.
func (m MountSpec) bind() bool {
	return m.FSType == "" || m.Flags&unix.MS_BIND != 0
}

// ResourceLimits are the rlimit ceilings applied inside the child,
// each with hard = soft so the sandboxed program can never raise them.
type ResourceLimits struct {
	// MemoryBytes caps the address space (RLIMIT_AS). Mandatory.
	MemoryBytes uint64

	// CPUSeconds caps consumed CPU time (RLIMIT_CPU). Mandatory.
	CPUSeconds uint64

	// FileSizeBytes caps created file size (RLIMIT_FSIZE). Zero
	// leaves the inherited limit.
	FileSizeBytes uint64

	// MaxProcesses caps the process count (RLIMIT_NPROC). Zero
	// leaves the inherited limit.
	MaxProcesses uint64

	// MaxOpenFiles caps open descriptors (RLIMIT_NOFILE). Zero
	// leaves the inherited limit.
	MaxOpenFiles uint64
}

// Namespace is one kernel namespace kind. The closed enumeration
// replaces raw clone-flag integers so "which namespaces" is checked at
// compile time.
type Namespace int

const (
	NamespaceMount Namespace = iota
	NamespacePID
	NamespaceNet
	NamespaceUTS
	NamespaceIPC
	NamespaceUser
	namespaceCount
)

// String returns the short namespace name used in policy files and
// log lines.
func (n Namespace) String() string {
	switch n {
	case NamespaceMount:
		return "mount"
	case NamespacePID:
		return "pid"
	case NamespaceNet:
		return "net"
	case NamespaceUTS:
		return "uts"
	case NamespaceIPC:
		return "ipc"
	case NamespaceUser:
		return "user"
	default:
		return "unknown"
	}
}

// cloneFlag returns the CLONE_NEW* flag for the namespace.
func (n Namespace) cloneFlag() uintptr {
	switch n {
	case NamespaceMount:
		return unix.CLONE_NEWNS
	case NamespacePID:
		return unix.CLONE_NEWPID
	case NamespaceNet:
		return unix.CLONE_NEWNET
	case NamespaceUTS:
		return unix.CLONE_NEWUTS
	case NamespaceIPC:
		return unix.CLONE_NEWIPC
	case NamespaceUser:
		return unix.CLONE_NEWUSER
	default:
		return 0
	}
}

// ParseNamespace resolves a policy-file namespace name.
func ParseNamespace(name string) (Namespace, bool) {
	switch strings.ToLower(name) {
	case "mount", "mnt":
		return NamespaceMount, true
	case "pid":
		return NamespacePID, true
	case "net", "network":
		return NamespaceNet, true
	case "uts":
		return NamespaceUTS, true
	case "ipc":
		return NamespaceIPC, true
	case "user":
		return NamespaceUser, true
	}
	return 0, false
}

// NamespaceSet is a set of namespaces to detach.
type NamespaceSet uint8

// Namespaces builds a set from its members.
func Namespaces(members ...Namespace) NamespaceSet {
	var s NamespaceSet
	for _, n := range members {
		s |= 1 << uint(n)
	}
	return s
}

// Has reports set membership.
func (s NamespaceSet) Has(n Namespace) bool {
	return s&(1<<uint(n)) != 0
}

// With returns the set extended by n.
func (s NamespaceSet) With(n Namespace) NamespaceSet {
	return s | 1<<uint(n)
}

// Without returns the set with n removed.
func (s NamespaceSet) Without(n Namespace) NamespaceSet {
	return s &^ (1 << uint(n))
}

// String lists the member names, sorted, comma-separated.
func (s NamespaceSet) String() string {
	var names []string
	for n := Namespace(0); n < namespaceCount; n++ {
		if s.Has(n) {
			names = append(names, n.String())
		}
	}
	return strings.Join(names, ",")
}

// Capability is one Linux capability. The closed enumeration replaces
// raw capability bitmasks; members mirror the kernel numbering so a
// CapabilitySet converts directly to capget/capset data.
type Capability int

// CapabilitySet is the set of capabilities a sandboxed process
// retains. The zero value (nil) retains nothing, which is the default
// policy.
type CapabilitySet map[Capability]struct{}

// CapabilitySetOf builds a set from its members.
func CapabilitySetOf(members ...Capability) CapabilitySet {
	s := make(CapabilitySet, len(members))
	for _, c := range members {
		s[c] = struct{}{}
	}
	return s
}

// Has reports set membership.
func (s CapabilitySet) Has(c Capability) bool {
	_, ok := s[c]
	return ok
}

func (s CapabilitySet) clone() CapabilitySet {
	if s == nil {
		return nil
	}
	clone := make(CapabilitySet, len(s))
	for c := range s {
		clone[c] = struct{}{}
	}
	return clone
}

// Names returns the sorted member names for logs and policy dumps.
func (s CapabilitySet) Names() []string {
	names := make([]string, 0, len(s))
	for c := range s {
		names = append(names, capabilityName(c))
	}
	sort.Strings(names)
	return names
}

// masks splits the set into the two 32-bit words of capset data
// (capabilities 0-31 and 32-63).
func (s CapabilitySet) masks() (low, high uint32) {
	for c := range s {
		switch {
		case c < 32:
			low |= 1 << uint(c)
		case c < 64:
			high |= 1 << uint(c-32)
		}
	}
	return low, high
}

// SeccompMode selects the syscall filter flavor.
type SeccompMode int

const (
	// SeccompAllowList installs an architecture-checked allow-list
	// filter that kills the process on any other syscall.
	SeccompAllowList SeccompMode = iota

	// SeccompStrict permits only read, write, exit, exit_group, and
	// rt_sigreturn.
	SeccompStrict
)

// String returns the policy-file name of the mode.
func (m SeccompMode) String() string {
	if m == SeccompStrict {
		return "strict"
	}
	return "allow-list"
}

// SyscallPolicy declares the seccomp filter for a sandbox. The
// allow-list carries syscall names, resolved per-architecture at
// install time; unknown names are rejected by Validate rather than
// silently dropped, because a silently narrowed filter and a silently
// widened one are equally wrong.
type SyscallPolicy struct {
	Mode    SeccompMode
	Allowed []string
}

// DefaultSyscallAllowList is the built-in coarse allow-list applied
// when a policy names no syscalls: the bare minimum a static program
// needs to compute and exit. Callers with real workloads are expected
// to declare their own list.
func DefaultSyscallAllowList() []string {
	return []string{"read", "write", "exit", "exit_group", "brk", "mmap", "munmap"}
}
