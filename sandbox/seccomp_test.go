// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sandbox

import (
	"errors"
	"testing"

	"golang.org/x/sys/unix"
)

func TestBuildFilterShape(t *testing.T) {
	t.Parallel()

	numbers := []uintptr{unix.SYS_READ, unix.SYS_WRITE, unix.SYS_EXIT_GROUP}
	program := buildFilter(numbers)

	if want := len(numbers) + 6; len(program) != want {
		t.Fatalf("program length %d, want %d", len(program), want)
	}

	// Architecture check comes first: anything compiled for a foreign
	// arch dies before the syscall number is even looked at.
	if program[0].Code != unix.BPF_LD|unix.BPF_W|unix.BPF_ABS || program[0].K != seccompDataOffsetArch {
		t.Fatalf("instruction 0 is not an arch load: %+v", program[0])
	}
	if program[1].Code != unix.BPF_JMP|unix.BPF_JEQ|unix.BPF_K || program[1].K != seccompAuditArch {
		t.Fatalf("instruction 1 is not the arch compare: %+v", program[1])
	}
	if program[2].Code != unix.BPF_RET|unix.BPF_K || program[2].K != unix.SECCOMP_RET_KILL_PROCESS {
		t.Fatalf("instruction 2 is not the foreign-arch kill: %+v", program[2])
	}
	if program[3].Code != unix.BPF_LD|unix.BPF_W|unix.BPF_ABS || program[3].K != seccompDataOffsetNr {
		t.Fatalf("instruction 3 is not the nr load: %+v", program[3])
	}

	// Last two instructions: default kill, then the shared allow that
	// every jump-table entry targets.
	kill := program[len(program)-2]
	allow := program[len(program)-1]
	if kill.K != unix.SECCOMP_RET_KILL_PROCESS {
		t.Fatalf("penultimate instruction is not the default kill: %+v", kill)
	}
	if allow.K != unix.SECCOMP_RET_ALLOW {
		t.Fatalf("final instruction is not the allow: %+v", allow)
	}

	// Every allowed syscall jumps exactly to the allow instruction.
	allowIndex := len(program) - 1
	for i, nr := range numbers {
		instr := program[4+i]
		if instr.K != uint32(nr) {
			t.Errorf("jump %d compares %d, want %d", i, instr.K, nr)
		}
		target := 4 + i + 1 + int(instr.Jt)
		if target != allowIndex {
			t.Errorf("jump %d lands on %d, want allow at %d", i, target, allowIndex)
		}
		if instr.Jf != 0 {
			t.Errorf("jump %d has nonzero false offset %d", i, instr.Jf)
		}
	}
}

func TestResolvePolicyUnionsSetupTail(t *testing.T) {
	t.Parallel()

	numbers, err := resolvePolicy(SyscallPolicy{
		Mode:    SeccompAllowList,
		Allowed: []string{"read"},
	})
	if err != nil {
		t.Fatal(err)
	}

	want := map[string]bool{"execve": false, "setuid": false, "prlimit64": false, "futex": false}
	for name := range want {
		nr, ok := syscallNumber(name)
		if !ok {
			t.Fatalf("syscall %q unknown on this architecture", name)
		}
		for _, got := range numbers {
			if got == nr {
				want[name] = true
			}
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("setup tail syscall %q missing from resolved policy", name)
		}
	}
}

func TestResolvePolicySorted(t *testing.T) {
	t.Parallel()

	numbers, err := resolvePolicy(SyscallPolicy{Mode: SeccompStrict})
	if err != nil {
		t.Fatal(err)
	}
	for i := 1; i < len(numbers); i++ {
		if numbers[i-1] >= numbers[i] {
			t.Fatalf("numbers not strictly sorted at %d: %v", i, numbers)
		}
	}
}

func TestResolvePolicyStrictIgnoresAllowed(t *testing.T) {
	t.Parallel()

	// Strict mode with a bogus allow-list must not fail: the list is
	// unused in that mode.
	if _, err := resolvePolicy(SyscallPolicy{
		Mode:    SeccompStrict,
		Allowed: []string{"no_such_syscall"},
	}); err != nil {
		t.Fatalf("strict mode consulted the allow-list: %v", err)
	}
}

func TestResolvePolicyUnknownSyscall(t *testing.T) {
	t.Parallel()

	_, err := resolvePolicy(SyscallPolicy{
		Mode:    SeccompAllowList,
		Allowed: []string{"no_such_syscall"},
	})
	if !errors.Is(err, ErrConfigInvalid) {
		t.Fatalf("got %v, want ErrConfigInvalid", err)
	}
}

func TestDefaultAllowListResolves(t *testing.T) {
	t.Parallel()

	for _, name := range DefaultSyscallAllowList() {
		if _, ok := syscallNumber(name); !ok {
			t.Errorf("default allow-list entry %q unknown on this architecture", name)
		}
	}
}

func TestAccessFamilyResolves(t *testing.T) {
	t.Parallel()

	// Dynamic loaders probe with the faccessat family at startup;
	// policies must be able to allow them on every architecture.
	for _, name := range []string{"faccessat", "faccessat2"} {
		if _, ok := syscallNumber(name); !ok {
			t.Errorf("%q unknown on this architecture", name)
		}
	}
}
