// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sandbox

import (
	"fmt"
	"os"
	"path/filepath"
)

// Validate checks a Config for internal consistency and for the
// caller's authority to request it. It is a pure function: no process
// is created, no partial state is left behind, and a config that
// passes is safe to hand to Create.
//
// Rejections, in check order:
//   - empty or relative program path (ErrConfigInvalid)
//   - uid or gid 0 requested by a non-root caller (ErrPermissionDenied)
//   - zero memory or CPU ceiling (ErrInvalidLimits)
//   - more than MaxMounts mounts or MaxAllowedSyscalls allowed
//     syscalls (ErrPolicyTooLarge)
//   - a mount targeting "/" or with an empty target, a bind mount
//     without a source, mounts, chroot, or a scratch override without
//     the mount namespace, an allow-list syscall name unknown on this
//     architecture, or a relative chroot dir (ErrConfigInvalid)
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("%w: nil config", ErrConfigInvalid)
	}
	if cfg.Program == "" {
		return fmt.Errorf("%w: program path is empty", ErrConfigInvalid)
	}
	if !filepath.IsAbs(cfg.Program) {
		return fmt.Errorf("%w: program path %q is not absolute", ErrConfigInvalid, cfg.Program)
	}

	// Root identity inside the sandbox is only available to callers
	// who already hold it outside.
	if (cfg.UID == 0 || cfg.GID == 0) && os.Geteuid() != 0 {
		return fmt.Errorf("%w: uid/gid 0 requested by unprivileged caller (euid %d)",
			ErrPermissionDenied, os.Geteuid())
	}

	if cfg.Limits.MemoryBytes == 0 {
		return fmt.Errorf("%w: memory limit is zero", ErrInvalidLimits)
	}
	if cfg.Limits.CPUSeconds == 0 {
		return fmt.Errorf("%w: cpu limit is zero", ErrInvalidLimits)
	}

	if len(cfg.Mounts) > MaxMounts {
		return fmt.Errorf("%w: %d mounts exceeds maximum %d",
			ErrPolicyTooLarge, len(cfg.Mounts), MaxMounts)
	}
	if len(cfg.Seccomp.Allowed) > MaxAllowedSyscalls {
		return fmt.Errorf("%w: %d allowed syscalls exceeds maximum %d",
			ErrPolicyTooLarge, len(cfg.Seccomp.Allowed), MaxAllowedSyscalls)
	}

	for i, m := range cfg.Mounts {
		if m.Target == "" {
			return fmt.Errorf("%w: mounts[%d]: target is empty", ErrConfigInvalid, i)
		}
		if filepath.Clean(m.Target) == "/" {
			return fmt.Errorf("%w: mounts[%d]: mounting over / is not allowed", ErrConfigInvalid, i)
		}
		if m.bind() && m.Source == "" {
			return fmt.Errorf("%w: mounts[%d]: bind mount needs a source", ErrConfigInvalid, i)
		}
	}

	// The jail only exists inside a private mount namespace. Without
	// one, every mount would land on the host.
	if !cfg.Namespaces.Has(NamespaceMount) {
		switch {
		case len(cfg.Mounts) > 0:
			return fmt.Errorf("%w: mounts require the mount namespace", ErrConfigInvalid)
		case cfg.ChrootDir != "":
			return fmt.Errorf("%w: chroot requires the mount namespace", ErrConfigInvalid)
		case cfg.ScratchDir != "" || cfg.ScratchSize != "":
			return fmt.Errorf("%w: scratch tmpfs requires the mount namespace", ErrConfigInvalid)
		}
	}

	// Resolve the allow-list eagerly so an unknown syscall name fails
	// validation instead of the already-forked child.
	if cfg.Seccomp.Mode == SeccompAllowList {
		for _, name := range cfg.Seccomp.Allowed {
			if _, ok := syscallNumber(name); !ok {
				return fmt.Errorf("%w: unknown syscall %q in allow-list", ErrConfigInvalid, name)
			}
		}
	}

	if cfg.ChrootDir != "" && !filepath.IsAbs(cfg.ChrootDir) {
		return fmt.Errorf("%w: chroot dir %q is not absolute", ErrConfigInvalid, cfg.ChrootDir)
	}

	return nil
}
