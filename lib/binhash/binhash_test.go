// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package binhash

import (
	"os"
	"path/filepath"
	"testing"
)

func TestHashFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "target")
	if err := os.WriteFile(path, []byte("hello world"), 0o755); err != nil {
		t.Fatal(err)
	}

	digest, err := HashFile(path)
	if err != nil {
		t.Fatal(err)
	}
	// sha256("hello world")
	const want = "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9"
	if got := FormatDigest(digest); got != want {
		t.Fatalf("digest = %s, want %s", got, want)
	}
}

func TestHashFileMissing(t *testing.T) {
	t.Parallel()

	if _, err := HashFile(filepath.Join(t.TempDir(), "absent")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestParseDigestRoundTrip(t *testing.T) {
	t.Parallel()

	var digest [32]byte
	for i := range digest {
		digest[i] = byte(i)
	}
	parsed, err := ParseDigest(FormatDigest(digest))
	if err != nil {
		t.Fatal(err)
	}
	if parsed != digest {
		t.Fatal("digest round trip mismatch")
	}

	if _, err := ParseDigest("abcd"); err == nil {
		t.Fatal("short digest accepted")
	}
	if _, err := ParseDigest("zz" + FormatDigest(digest)[2:]); err == nil {
		t.Fatal("non-hex digest accepted")
	}
}
