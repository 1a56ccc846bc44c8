// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sandbox

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"strconv"

	"golang.org/x/sys/unix"

	"github.com/bureau-foundation/enclave/lib/codec"
)

// MaybeChildInit detects whether this process is a re-exec'd sandbox
// child and, if so, runs the setup pipeline and execs the target. It
// never returns in the child: success replaces the process image,
// failure exits with the failed stage's exit code. In the parent it
// returns immediately.
//
// Call it first in main, before flag parsing or logger setup: the
// child must not run any of the parent's startup.
func MaybeChildInit() {
	fdVar := os.Getenv(childSpecFDEnv)
	if fdVar == "" {
		return
	}
	runtime.LockOSThread()

	spec, err := readLaunchSpec(fdVar)
	if err != nil {
		childFail(StageSpec, err)
	}
	cfg, err := spec.toConfig()
	if err != nil {
		childFail(StageSpec, err)
	}

	if err := isolate(cfg.Namespaces); err != nil {
		childFail(StageNamespace, err)
	}
	if err := buildJail(cfg); err != nil {
		childFail(StageJail, err)
	}
	if err := installFilter(cfg.Seccomp); err != nil {
		childFail(StageFilter, err)
	}
	if err := applyLimits(cfg.Limits); err != nil {
		childFail(StageLimits, err)
	}
	if err := reducePrivilege(cfg); err != nil {
		childFail(StagePrivilege, err)
	}
	if err := verifyIrreversible(cfg); err != nil {
		childFail(StageEscalationCheck, err)
	}

	argv := append([]string{cfg.Program}, cfg.Args...)
	if err := unix.Exec(cfg.Program, argv, cfg.Env); err != nil {
		childFail(StageExec, fmt.Errorf("exec %s: %w", cfg.Program, err))
	}
}

func readLaunchSpec(fdVar string) (*launchSpec, error) {
	fd, err := strconv.Atoi(fdVar)
	if err != nil {
		return nil, fmt.Errorf("bad %s value %q: %w", childSpecFDEnv, fdVar, err)
	}
	pipe := os.NewFile(uintptr(fd), "launch-spec")
	if pipe == nil {
		return nil, fmt.Errorf("launch spec fd %d is not open", fd)
	}
	defer pipe.Close()

	payload, err := io.ReadAll(pipe)
	if err != nil {
		return nil, fmt.Errorf("read launch spec: %w", err)
	}
	var spec launchSpec
	if err := codec.Unmarshal(payload, &spec); err != nil {
		return nil, fmt.Errorf("decode launch spec: %w", err)
	}
	return &spec, nil
}

// childFail reports a stage failure on stderr (the only channel back
// to the parent at this point) and exits with the stage's code so the
// monitor can attribute the failure.
func childFail(stage Stage, err error) {
	fmt.Fprintf(os.Stderr, "sandbox setup: %s: %v\n", stage, err)
	os.Exit(stage.exitCode())
}
