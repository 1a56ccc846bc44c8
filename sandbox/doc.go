// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package sandbox launches untrusted programs in kernel-isolated
// execution environments and supervises them.
//
// The central types are [Config], a declarative policy describing the
// requested isolation (namespaces, filesystem jail, syscall filter,
// capabilities, uid/gid, resource ceilings), and [Handle], the
// supervisor's view of one running sandboxed process. [Create]
// validates a Config, spawns a sandboxed child, and returns a Handle;
// [Monitor.Poll] observes liveness and resource consumption without
// blocking; [Terminate] drives graceful-then-forced shutdown and
// always reaps.
//
// Isolation is applied inside the child itself, before the target
// program ever runs, in a fixed order that must not change:
//
//	namespaces → filesystem jail → seccomp filter →
//	resource limits → privilege drop → exec
//
// Go cannot fork without exec, so the child is a re-execution of the
// supervisor's own binary in init mode ([MaybeChildInit]). PID and
// user namespaces are requested as clone flags when the child is
// spawned (PID namespace membership is fixed at process creation, and
// user-namespace unshare is rejected in multithreaded processes); the
// child detaches the remaining namespaces with a single unshare call.
//
// Every setup step fails closed: any error aborts the child with a
// stage-specific exit status (see [FailureForExitCode]) and the target
// program never executes. The supervisor must treat such a failure as
// "program refused to run"; there is no fallback to unsandboxed
// execution. The single most important invariant is the privilege
// irreversibility check: after dropping to the target uid the child
// attempts to re-acquire uid 0, and if that attempt succeeds the
// sandbox is treated as compromised and aborted.
//
// Concurrency is process-based. The engine takes no locks: a Handle,
// its Monitor, and the Monitor's event ring are owned by exactly one
// supervisor, and independent sandboxes share no state. Poll never
// blocks; the only bounded waits are the terminator's grace period and
// the final reap.
package sandbox
