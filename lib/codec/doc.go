// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides the canonical CBOR configuration used for the
// launch spec handed from a sandbox launcher to its re-exec'd child.
// Encoding is deterministic: the same config always produces the same
// bytes.
package codec
