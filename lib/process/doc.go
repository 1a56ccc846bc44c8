// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package process holds the entrypoint error-handling conventions
// shared by the enclave binaries.
package process
