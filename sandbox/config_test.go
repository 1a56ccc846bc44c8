// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sandbox

import (
	"reflect"
	"testing"

	"golang.org/x/sys/unix"
)

func TestNamespaceSetOperations(t *testing.T) {
	t.Parallel()

	set := Namespaces(NamespaceMount, NamespacePID, NamespaceNet)
	for _, n := range []Namespace{NamespaceMount, NamespacePID, NamespaceNet} {
		if !set.Has(n) {
			t.Errorf("set should contain %s", n)
		}
	}
	for _, n := range []Namespace{NamespaceUTS, NamespaceIPC, NamespaceUser} {
		if set.Has(n) {
			t.Errorf("set should not contain %s", n)
		}
	}

	set = set.With(NamespaceUser).Without(NamespacePID)
	if !set.Has(NamespaceUser) || set.Has(NamespacePID) {
		t.Fatalf("With/Without mismatch: %s", set)
	}
	if got := set.String(); got != "mount,net,user" {
		t.Fatalf("String() = %q, want %q", got, "mount,net,user")
	}
}

func TestParseNamespace(t *testing.T) {
	t.Parallel()

	cases := map[string]Namespace{
		"mount":   NamespaceMount,
		"mnt":     NamespaceMount,
		"pid":     NamespacePID,
		"net":     NamespaceNet,
		"network": NamespaceNet,
		"uts":     NamespaceUTS,
		"ipc":     NamespaceIPC,
		"user":    NamespaceUser,
	}
	for name, want := range cases {
		got, ok := ParseNamespace(name)
		if !ok || got != want {
			t.Errorf("ParseNamespace(%q) = (%v, %v), want (%v, true)", name, got, ok, want)
		}
	}
	if _, ok := ParseNamespace("cgroup"); ok {
		t.Error("ParseNamespace accepted an unsupported namespace")
	}
}

func TestCloneFlagsCoverPIDAndUserOnly(t *testing.T) {
	t.Parallel()

	all := Namespaces(NamespaceMount, NamespacePID, NamespaceNet,
		NamespaceUTS, NamespaceIPC, NamespaceUser)
	flags := cloneFlags(all)
	if flags != unix.CLONE_NEWPID|unix.CLONE_NEWUSER {
		t.Fatalf("cloneFlags = %#x, want CLONE_NEWPID|CLONE_NEWUSER", flags)
	}
	if cloneFlags(Namespaces(NamespaceMount, NamespaceNet)) != 0 {
		t.Fatal("post-clone namespaces leaked into clone flags")
	}
}

func TestCapabilitySetMasks(t *testing.T) {
	t.Parallel()

	set := CapabilitySetOf(CapChown, CapNetBindService)
	low, high := set.masks()
	wantLow := uint32(1<<uint(CapChown) | 1<<uint(CapNetBindService))
	if low != wantLow || high != 0 {
		t.Fatalf("masks() = (%#x, %#x), want (%#x, 0)", low, high, wantLow)
	}

	var empty CapabilitySet
	low, high = empty.masks()
	if low != 0 || high != 0 {
		t.Fatalf("empty set masks() = (%#x, %#x), want zeros", low, high)
	}
}

func TestCapabilityNameRoundTrip(t *testing.T) {
	t.Parallel()

	for c, name := range capabilityNames {
		back, err := ParseCapability(name)
		if err != nil {
			t.Fatalf("ParseCapability(%q): %v", name, err)
		}
		if back != c {
			t.Fatalf("ParseCapability(%q) = %d, want %d", name, back, c)
		}
	}
	if _, err := ParseCapability("CAP_NOT_REAL"); err == nil {
		t.Fatal("ParseCapability accepted an unknown name")
	}
}

func TestConfigCloneIsDeep(t *testing.T) {
	t.Parallel()

	orig := validConfig()
	orig.Args = []string{"-v"}
	orig.Mounts = []MountSpec{{Source: "/usr", Target: "/usr", ReadOnly: true}}
	orig.Seccomp.Allowed = []string{"read"}
	orig.Capabilities = CapabilitySetOf(CapKill)

	clone := orig.Clone()
	if !reflect.DeepEqual(orig, clone) {
		t.Fatal("clone differs from original")
	}

	clone.Args[0] = "-x"
	clone.Mounts[0].Target = "/other"
	clone.Seccomp.Allowed[0] = "write"
	delete(clone.Capabilities, CapKill)

	if orig.Args[0] != "-v" || orig.Mounts[0].Target != "/usr" ||
		orig.Seccomp.Allowed[0] != "read" || !orig.Capabilities.Has(CapKill) {
		t.Fatal("mutating the clone changed the original")
	}
}
