// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sandbox

import "golang.org/x/sys/unix"

const seccompAuditArch = unix.AUDIT_ARCH_AARCH64

// The generic syscall table calls it fstatat; accept the x86-64 name
// too so allow-lists stay portable.
func init() {
	syscallNumbers["fstatat"] = unix.SYS_FSTATAT
	syscallNumbers["newfstatat"] = unix.SYS_FSTATAT
}
