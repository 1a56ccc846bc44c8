// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sandbox

import "time"

// State is the lifecycle position of a sandboxed process.
type State int

const (
	// StateCreated: config validated, nothing spawned yet.
	StateCreated State = iota
	// StateLaunching: child spawned, setup pipeline in progress.
	StateLaunching
	// StateRunning: target program executing under the sandbox.
	StateRunning
	// StateExited: target ran and exited on its own.
	StateExited
	// StateKilled: terminated by Terminate or an external signal.
	StateKilled
	// StateFailed: a setup stage failed before the target ran.
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateLaunching:
		return "launching"
	case StateRunning:
		return "running"
	case StateExited:
		return "exited"
	case StateKilled:
		return "killed"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

// terminal reports whether no further transitions are possible.
func (s State) terminal() bool {
	return s == StateExited || s == StateKilled || s == StateFailed
}

// Status is a snapshot of a sandbox's lifecycle. ExitCode is
// meaningful only in StateExited; FailureStage only in StateFailed.
type Status struct {
	State        State
	ExitCode     int
	FailureStage Stage
	// ExceededMemory records that the monitor observed resident
	// memory above the configured ceiling. Advisory: the kernel
	// enforces the actual limit.
	ExceededMemory bool
}

// Handle identifies a launched sandbox. It is owned by a single
// goroutine: the launcher creates it, the monitor advances it, the
// terminator finishes it. None of its methods are safe for concurrent
// use.
type Handle struct {
	// PID of the sandbox child in the host PID namespace.
	PID int

	config  Config
	status  Status
	created time.Time
	digest  string
	events  *EventRing
}

// Config returns a copy of the config the sandbox was created with.
// The original is frozen at Create time; later mutation of the
// caller's struct has no effect on the running sandbox.
func (h *Handle) Config() Config { return *h.config.Clone() }

// Status returns the lifecycle snapshot as of the last Poll.
func (h *Handle) Status() Status { return h.status }

// Created returns when the sandbox child was spawned.
func (h *Handle) Created() time.Time { return h.created }

// ProgramDigest is the SHA-256 of the target binary, hashed at Create
// time before any jail or namespace changes what the path resolves to.
func (h *Handle) ProgramDigest() string { return h.digest }

// Events returns the sandbox's audit ring.
func (h *Handle) Events() *EventRing { return h.events }

// Running reports whether the sandbox has not yet reached a terminal
// state.
func (h *Handle) Running() bool { return !h.status.State.terminal() }
