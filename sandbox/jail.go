// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sandbox

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// buildJail constructs the sandbox's view of the filesystem. The
// sequence assumes a fresh mount namespace:
//
//  1. remount / recursively private, so nothing here propagates back
//     to the host
//  2. lay a size-capped tmpfs over the scratch directory
//  3. apply the configured mounts in order, read-only ones via a
//     bind-then-remount pair
//  4. chroot into the jail root and chdir to its /
//
// Any failure aborts the stage; a partially built jail is never
// entered.
func buildJail(cfg *Config) error {
	// Without a private mount namespace every step below would land
	// on the host. Validation rejects such configs before launch;
	// this guard keeps the stage itself from ever mutating the host.
	if !cfg.Namespaces.Has(NamespaceMount) {
		if len(cfg.Mounts) > 0 || cfg.ChrootDir != "" ||
			cfg.ScratchDir != "" || cfg.ScratchSize != "" {
			return fmt.Errorf("filesystem jail requires the mount namespace")
		}
		return nil
	}

	if err := unix.Mount("", "/", "", unix.MS_REC|unix.MS_PRIVATE, ""); err != nil {
		return fmt.Errorf("make / private: %w", err)
	}

	if err := mountScratch(cfg); err != nil {
		return err
	}

	for i, m := range cfg.Mounts {
		if err := applyMount(m); err != nil {
			return fmt.Errorf("mounts[%d] %s: %w", i, m.Target, err)
		}
	}

	root := cfg.ChrootDir
	if root == "" {
		return nil
	}
	if err := unix.Chroot(root); err != nil {
		return fmt.Errorf("chroot %s: %w", root, err)
	}
	if err := unix.Chdir("/"); err != nil {
		return fmt.Errorf("chdir to jail root: %w", err)
	}
	return nil
}

// mountScratch covers the scratch directory with a private tmpfs so
// the sandbox gets writable space without touching host files. The
// size cap keeps a runaway writer from exhausting host memory.
func mountScratch(cfg *Config) error {
	dir := cfg.ScratchDir
	if dir == "" {
		dir = defaultScratchDir
	}
	size := cfg.ScratchSize
	if size == "" {
		size = defaultScratchSize
	}
	opts := fmt.Sprintf("size=%s,mode=1777", size)
	flags := uintptr(unix.MS_NODEV | unix.MS_NOSUID | unix.MS_NOEXEC)
	if err := unix.Mount("tmpfs", dir, "tmpfs", flags, opts); err != nil {
		return fmt.Errorf("mount scratch tmpfs on %s: %w", dir, err)
	}
	return nil
}

// applyMount performs one configured mount. A bind mount whose source
// no longer exists is skipped rather than failed: profiles routinely
// list optional host paths (resolv.conf, nsswitch) that not every host
// has.
func applyMount(m MountSpec) error {
	if m.bind() {
		if _, err := os.Stat(m.Source); err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return fmt.Errorf("stat bind source %s: %w", m.Source, err)
		}
		if err := unix.Mount(m.Source, m.Target, "", unix.MS_BIND|unix.MS_REC|uintptr(m.Flags), ""); err != nil {
			return fmt.Errorf("bind %s: %w", m.Source, err)
		}
		if m.ReadOnly {
			remount := uintptr(unix.MS_REMOUNT | unix.MS_BIND | unix.MS_RDONLY)
			if err := unix.Mount("", m.Target, "", remount|uintptr(m.Flags), ""); err != nil {
				return fmt.Errorf("remount read-only: %w", err)
			}
		}
		return nil
	}
	if err := unix.Mount(m.Source, m.Target, m.FSType, uintptr(m.Flags), ""); err != nil {
		return fmt.Errorf("mount %s (%s): %w", m.Source, m.FSType, err)
	}
	return nil
}
