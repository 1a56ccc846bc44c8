// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sandbox

import (
	"errors"
	"fmt"
)

// Validation errors, returned by Validate before any process is
// created.
var (
	// ErrConfigInvalid reports a structurally bad Config: empty
	// program path, malformed mount spec, and similar.
	ErrConfigInvalid = errors.New("sandbox config invalid")

	// ErrPermissionDenied reports that the caller lacks the authority
	// for the requested identity (uid/gid 0 from an unprivileged
	// caller).
	ErrPermissionDenied = errors.New("permission denied")

	// ErrInvalidLimits reports a zero memory or CPU ceiling. Both are
	// mandatory: a sandbox without them has no automatic cancellation
	// mechanism at all.
	ErrInvalidLimits = errors.New("invalid resource limits")

	// ErrPolicyTooLarge reports a mount list or syscall allow-list
	// exceeding the fixed engine capacity.
	ErrPolicyTooLarge = errors.New("policy too large")
)

// Setup errors, produced by the in-child pipeline stages. The child
// itself exits with the matching stage exit code; the supervisor sees
// these sentinels only from FailureForExitCode and from pre-spawn
// failures of Create.
var (
	ErrNamespaceSetup              = errors.New("namespace setup failed")
	ErrJailSetup                   = errors.New("filesystem jail setup failed")
	ErrFilterInstall               = errors.New("syscall filter install failed")
	ErrResourceLimit               = errors.New("resource limit setup failed")
	ErrPrivilegeDrop               = errors.New("privilege drop failed")
	ErrPrivilegeEscalationDetected = errors.New("privilege escalation detected")
	ErrExecFailed                  = errors.New("exec failed")
)

// Stage identifies one step of the in-child setup pipeline.
type Stage int

const (
	StageSpec Stage = iota // launch spec decode, pre-pipeline
	StageNamespace
	StageJail
	StageFilter
	StageLimits
	StagePrivilege
	StageEscalationCheck
	StageExec
)

// String returns the stage name used in audit log lines.
func (s Stage) String() string {
	switch s {
	case StageSpec:
		return "spec"
	case StageNamespace:
		return "namespace"
	case StageJail:
		return "jail"
	case StageFilter:
		return "filter"
	case StageLimits:
		return "limits"
	case StagePrivilege:
		return "privilege"
	case StageEscalationCheck:
		return "escalation-check"
	case StageExec:
		return "exec"
	default:
		return fmt.Sprintf("stage(%d)", int(s))
	}
}

// Err returns the sentinel error for this stage.
func (s Stage) Err() error {
	switch s {
	case StageNamespace:
		return ErrNamespaceSetup
	case StageJail:
		return ErrJailSetup
	case StageFilter:
		return ErrFilterInstall
	case StageLimits:
		return ErrResourceLimit
	case StagePrivilege:
		return ErrPrivilegeDrop
	case StageEscalationCheck:
		return ErrPrivilegeEscalationDetected
	case StageExec:
		return ErrExecFailed
	default:
		return ErrConfigInvalid
	}
}

// Child stage exit codes. A sandboxed child that fails setup exits
// with one of these instead of ever executing the target program; the
// supervisor observes the code through Poll and maps it back with
// FailureForExitCode. The range is chosen above the conventional
// sysexits values so it cannot be confused with the target program's
// own exit codes by accident (a hostile target can of course fake
// them, but a hostile target only runs after every stage succeeded).
const (
	exitCodeSpec            = 80
	exitCodeNamespace       = 81
	exitCodeJail            = 82
	exitCodeFilter          = 83
	exitCodeLimits          = 84
	exitCodePrivilege       = 85
	exitCodeEscalationCheck = 86
	exitCodeExec            = 87
)

// exitCode returns the child exit status for a failure in this stage.
func (s Stage) exitCode() int {
	switch s {
	case StageSpec:
		return exitCodeSpec
	case StageNamespace:
		return exitCodeNamespace
	case StageJail:
		return exitCodeJail
	case StageFilter:
		return exitCodeFilter
	case StageLimits:
		return exitCodeLimits
	case StagePrivilege:
		return exitCodePrivilege
	case StageEscalationCheck:
		return exitCodeEscalationCheck
	case StageExec:
		return exitCodeExec
	default:
		return exitCodeSpec
	}
}

// FailureForExitCode maps an observed child exit status to the setup
// stage that failed. The second return is false when the exit status
// is not a stage code, meaning the target program itself exited with
// that status.
func FailureForExitCode(code int) (Stage, bool) {
	switch code {
	case exitCodeSpec:
		return StageSpec, true
	case exitCodeNamespace:
		return StageNamespace, true
	case exitCodeJail:
		return StageJail, true
	case exitCodeFilter:
		return StageFilter, true
	case exitCodeLimits:
		return StageLimits, true
	case exitCodePrivilege:
		return StagePrivilege, true
	case exitCodeEscalationCheck:
		return StageEscalationCheck, true
	case exitCodeExec:
		return StageExec, true
	}
	return 0, false
}

// SetupError wraps a stage failure with its cause. The child-side
// pipeline returns these; Error output carries the stage name so audit
// lines stay greppable.
type SetupError struct {
	Stage Stage
	Cause error
}

func (e *SetupError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage.Err(), e.Cause)
}

// Unwrap exposes both the stage sentinel and the underlying cause to
// errors.Is / errors.As.
func (e *SetupError) Unwrap() []error {
	return []error{e.Stage.Err(), e.Cause}
}

// ExitError represents a sandboxed program that ran and exited
// non-zero. Returned by helpers that wait for completion.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("sandboxed program exited with code %d", e.Code)
}

// IsExitError checks if an error is an ExitError and returns the code.
func IsExitError(err error) (int, bool) {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code, true
	}
	return 0, false
}
