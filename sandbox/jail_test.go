// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sandbox

import (
	"testing"

	"golang.org/x/sys/unix"
)

func TestApplyMountSkipsMissingBindSource(t *testing.T) {
	t.Parallel()

	// Profiles list optional host paths; a missing source is a skip,
	// not a failure, and must not attempt the mount (which would need
	// privilege this test does not have).
	err := applyMount(MountSpec{
		Source:   "/no/such/source/path",
		Target:   "/etc/resolv.conf",
		ReadOnly: true,
	})
	if err != nil {
		t.Fatalf("missing bind source not skipped: %v", err)
	}
}

func TestBuildJailRequiresMountNamespace(t *testing.T) {
	t.Parallel()

	// With no mount namespace and no filesystem configuration the
	// stage is a no-op; this must not touch the host (the test runs
	// unprivileged, so any attempted mount would fail loudly anyway).
	cfg := validConfig()
	if err := buildJail(cfg); err != nil {
		t.Fatalf("empty jail without mount namespace: %v", err)
	}

	// Declared filesystem state without a mount namespace would land
	// on the host; the stage fails closed before any mount call.
	cfg.Mounts = []MountSpec{{Source: "/usr", Target: "/usr", ReadOnly: true}}
	if err := buildJail(cfg); err == nil {
		t.Fatal("jail built without a mount namespace")
	}

	cfg.Mounts = nil
	cfg.ScratchDir = "/scratch"
	if err := buildJail(cfg); err == nil {
		t.Fatal("scratch tmpfs laid without a mount namespace")
	}
}

func TestMountSpecBindDetection(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		spec MountSpec
		want bool
	}{
		{"default is bind", MountSpec{Source: "/usr", Target: "/usr"}, true},
		{"tmpfs is not", MountSpec{Source: "tmpfs", Target: "/tmp", FSType: "tmpfs"}, false},
		{"proc is not", MountSpec{Source: "proc", Target: "/proc", FSType: "proc"}, false},
		{"explicit MS_BIND flag", MountSpec{Source: "/usr", Target: "/usr", FSType: "none", Flags: unix.MS_BIND}, true},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := tc.spec.bind(); got != tc.want {
				t.Fatalf("bind() = %v, want %v", got, tc.want)
			}
		})
	}
}
