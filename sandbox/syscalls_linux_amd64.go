// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sandbox

import "golang.org/x/sys/unix"

const seccompAuditArch = unix.AUDIT_ARCH_X86_64

// Legacy syscalls that exist on x86-64 but were never given arm64
// numbers. Also arch_prctl, which the setup tail needs here: the
// runtime uses it for TLS.
func init() {
	for name, nr := range map[string]uintptr{
		"arch_prctl": unix.SYS_ARCH_PRCTL,
		"newfstatat": unix.SYS_NEWFSTATAT,
		"open":       unix.SYS_OPEN,
		"stat":       unix.SYS_STAT,
		"lstat":      unix.SYS_LSTAT,
		"access":     unix.SYS_ACCESS,
		"poll":       unix.SYS_POLL,
		"pipe":       unix.SYS_PIPE,
		"select":     unix.SYS_SELECT,
		"dup2":       unix.SYS_DUP2,
		"unlink":     unix.SYS_UNLINK,
		"mkdir":      unix.SYS_MKDIR,
		"rmdir":      unix.SYS_RMDIR,
		"rename":     unix.SYS_RENAME,
		"readlink":   unix.SYS_READLINK,
		"chmod":      unix.SYS_CHMOD,
		"chown":      unix.SYS_CHOWN,
		"epoll_wait": unix.SYS_EPOLL_WAIT,
		"time":       unix.SYS_TIME,
	} {
		syscallNumbers[name] = nr
	}
	setupTail = append(setupTail, "arch_prctl")
}
