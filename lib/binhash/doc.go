// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package binhash hashes target binaries. The launcher records the
// digest of a program before any jail or namespace changes what its
// path resolves to, so the audit trail names exactly the code that
// ran.
package binhash
