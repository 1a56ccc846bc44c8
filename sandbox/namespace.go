// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sandbox

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// PID and user namespaces must be established at clone time: a PID
// namespace only applies to children forked after unshare, and
// unsharing a user namespace fails in a multithreaded process (which
// every Go process is). The launcher therefore passes those two as
// clone flags; the remaining namespaces are unshared by the child
// itself.

// cloneFlags returns the CLONE_NEW* bits that have to be set when the
// child process is spawned.
func cloneFlags(set NamespaceSet) uintptr {
	var flags uintptr
	if set.Has(NamespacePID) {
		flags |= NamespacePID.cloneFlag()
	}
	if set.Has(NamespaceUser) {
		flags |= NamespaceUser.cloneFlag()
	}
	return flags
}

// isolate detaches the calling process from the namespaces that can be
// unshared after clone. A single unshare call applies them atomically:
// either the child gets all of them or the stage fails.
func isolate(set NamespaceSet) error {
	unshared := set.Without(NamespacePID).Without(NamespaceUser)
	var flags int
	for n := Namespace(0); n < namespaceCount; n++ {
		if unshared.Has(n) {
			flags |= int(n.cloneFlag())
		}
	}
	if flags == 0 {
		return nil
	}
	if err := unix.Unshare(flags); err != nil {
		return fmt.Errorf("unshare %s: %w", unshared, err)
	}
	if set.Has(NamespaceUTS) {
		if err := unix.Sethostname([]byte("enclave")); err != nil {
			return fmt.Errorf("set sandbox hostname: %w", err)
		}
	}
	return nil
}
