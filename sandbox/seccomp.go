// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sandbox

import (
	"fmt"
	"sort"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Offsets into struct seccomp_data.
const (
	seccompDataOffsetNr   = 0
	seccompDataOffsetArch = 4
)

// strictSyscalls mirrors the kernel's SECCOMP_SET_MODE_STRICT set.
// SeccompStrict uses these instead of installing the legacy strict
// mode, which would forbid the setup tail as well.
var strictSyscalls = []string{"read", "write", "exit", "exit_group", "rt_sigreturn"}

// installFilter applies the syscall policy to the calling process and,
// via TSYNC, to every other thread. PR_SET_NO_NEW_PRIVS is a kernel
// precondition for unprivileged filter installation and is set
// unconditionally: the sandbox never wants setuid binaries to regain
// privilege anyway.
//
// The filter kills the process on any syscall outside the allow-list
// and on any syscall made under a foreign architecture (blocking the
// 32-bit compat table on 64-bit kernels).
func installFilter(policy SyscallPolicy) error {
	numbers, err := resolvePolicy(policy)
	if err != nil {
		return err
	}
	program := buildFilter(numbers)

	if err := unix.Prctl(unix.PR_SET_NO_NEW_PRIVS, 1, 0, 0, 0); err != nil {
		return fmt.Errorf("set no_new_privs: %w", err)
	}
	prog := unix.SockFprog{
		Len:    uint16(len(program)),
		Filter: &program[0],
	}
	_, _, errno := unix.Syscall(unix.SYS_SECCOMP,
		unix.SECCOMP_SET_MODE_FILTER,
		unix.SECCOMP_FILTER_FLAG_TSYNC,
		uintptr(unsafe.Pointer(&prog)))
	if errno != 0 {
		return fmt.Errorf("install seccomp filter: %w", errno)
	}
	return nil
}

// resolvePolicy turns the policy into the sorted, deduplicated syscall
// numbers the filter will allow. The setup tail is always unioned in:
// the filter is installed before the limits and privilege stages, so
// the policy alone would kill the child mid-pipeline.
func resolvePolicy(policy SyscallPolicy) ([]uintptr, error) {
	names := policy.Allowed
	if policy.Mode == SeccompStrict {
		names = strictSyscalls
	}

	allowed := make(map[uintptr]struct{}, len(names)+len(setupTail))
	for _, name := range names {
		nr, ok := syscallNumber(name)
		if !ok {
			return nil, fmt.Errorf("%w: unknown syscall %q", ErrConfigInvalid, name)
		}
		allowed[nr] = struct{}{}
	}
	for _, name := range setupTail {
		if nr, ok := syscallNumber(name); ok {
			allowed[nr] = struct{}{}
		}
	}

	numbers := make([]uintptr, 0, len(allowed))
	for nr := range allowed {
		numbers = append(numbers, nr)
	}
	sort.Slice(numbers, func(i, j int) bool { return numbers[i] < numbers[j] })
	return numbers, nil
}

// buildFilter assembles the cBPF program:
//
//	load arch; kill unless it matches the build architecture
//	load nr;   allow if it appears in the table
//	kill
func buildFilter(numbers []uintptr) []unix.SockFilter {
	program := make([]unix.SockFilter, 0, len(numbers)+6)
	program = append(program,
		bpfStmt(unix.BPF_LD|unix.BPF_W|unix.BPF_ABS, seccompDataOffsetArch),
		bpfJump(unix.BPF_JMP|unix.BPF_JEQ|unix.BPF_K, seccompAuditArch, 1, 0),
		bpfStmt(unix.BPF_RET|unix.BPF_K, unix.SECCOMP_RET_KILL_PROCESS),
		bpfStmt(unix.BPF_LD|unix.BPF_W|unix.BPF_ABS, seccompDataOffsetNr),
	)
	// Each match jumps straight to the trailing allow; fallthrough
	// reaches the default kill.
	allowIndex := len(program) + len(numbers) + 1
	for i, nr := range numbers {
		jump := uint8(allowIndex - (4 + i) - 1)
		program = append(program, bpfJump(unix.BPF_JMP|unix.BPF_JEQ|unix.BPF_K, uint32(nr), jump, 0))
	}
	program = append(program,
		bpfStmt(unix.BPF_RET|unix.BPF_K, unix.SECCOMP_RET_KILL_PROCESS),
		bpfStmt(unix.BPF_RET|unix.BPF_K, unix.SECCOMP_RET_ALLOW),
	)
	return program
}

func bpfStmt(code uint16, k uint32) unix.SockFilter {
	return unix.SockFilter{Code: code, K: k}
}

func bpfJump(code uint16, k uint32, jt, jf uint8) unix.SockFilter {
	return unix.SockFilter{Code: code, K: k, Jt: jt, Jf: jf}
}
