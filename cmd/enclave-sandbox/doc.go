// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Enclave-sandbox runs programs under kernel-enforced confinement
// (namespaces, a filesystem jail, seccomp, resource limits, and a
// privilege drop). It provides subcommands to run a program under a
// named policy, validate a configuration without launching, inspect
// policies, probe the host, and prove containment from inside a
// running sandbox.
package main
