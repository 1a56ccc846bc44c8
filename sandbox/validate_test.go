// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sandbox

import (
	"errors"
	"fmt"
	"os"
	"testing"
)

// validConfig returns a config that passes validation for an
// unprivileged caller.
func validConfig() *Config {
	return &Config{
		Program: "/usr/bin/true",
		UID:     65534,
		GID:     65534,
		Limits: ResourceLimits{
			MemoryBytes: 64 << 20,
			CPUSeconds:  10,
		},
	}
}

func TestValidateAccepts(t *testing.T) {
	t.Parallel()
	if err := Validate(validConfig()); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}
}

func TestValidateAcceptsJailWithMountNamespace(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	cfg.Namespaces = Namespaces(NamespaceMount)
	cfg.Mounts = []MountSpec{{Source: "/usr", Target: "/usr", ReadOnly: true}}
	cfg.ChrootDir = "/jail"
	cfg.ScratchDir = "/scratch"
	if err := Validate(cfg); err != nil {
		t.Fatalf("jail config with mount namespace rejected: %v", err)
	}
}

func TestValidateRejects(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{
			name:    "nil program",
			mutate:  func(c *Config) { c.Program = "" },
			wantErr: ErrConfigInvalid,
		},
		{
			name:    "relative program",
			mutate:  func(c *Config) { c.Program = "bin/true" },
			wantErr: ErrConfigInvalid,
		},
		{
			name:    "zero memory limit",
			mutate:  func(c *Config) { c.Limits.MemoryBytes = 0 },
			wantErr: ErrInvalidLimits,
		},
		{
			name:    "zero cpu limit",
			mutate:  func(c *Config) { c.Limits.CPUSeconds = 0 },
			wantErr: ErrInvalidLimits,
		},
		{
			name: "too many mounts",
			mutate: func(c *Config) {
				for i := 0; i <= MaxMounts; i++ {
					c.Mounts = append(c.Mounts, MountSpec{
						Source: "/usr", Target: fmt.Sprintf("/m%d", i),
					})
				}
			},
			wantErr: ErrPolicyTooLarge,
		},
		{
			name: "too many syscalls",
			mutate: func(c *Config) {
				for i := 0; i <= MaxAllowedSyscalls; i++ {
					c.Seccomp.Allowed = append(c.Seccomp.Allowed, "read")
				}
			},
			wantErr: ErrPolicyTooLarge,
		},
		{
			name: "mount over root",
			mutate: func(c *Config) {
				c.Mounts = []MountSpec{{Source: "/usr", Target: "/"}}
			},
			wantErr: ErrConfigInvalid,
		},
		{
			name: "mount without target",
			mutate: func(c *Config) {
				c.Mounts = []MountSpec{{Source: "/usr"}}
			},
			wantErr: ErrConfigInvalid,
		},
		{
			name: "bind mount without source",
			mutate: func(c *Config) {
				c.Mounts = []MountSpec{{Target: "/data"}}
			},
			wantErr: ErrConfigInvalid,
		},
		{
			name: "unknown syscall in allow-list",
			mutate: func(c *Config) {
				c.Seccomp.Allowed = []string{"read", "no_such_syscall"}
			},
			wantErr: ErrConfigInvalid,
		},
		{
			name: "relative chroot",
			mutate: func(c *Config) {
				c.Namespaces = Namespaces(NamespaceMount)
				c.ChrootDir = "jail"
			},
			wantErr: ErrConfigInvalid,
		},
		{
			name: "mounts without mount namespace",
			mutate: func(c *Config) {
				c.Mounts = []MountSpec{{Source: "/usr", Target: "/usr"}}
			},
			wantErr: ErrConfigInvalid,
		},
		{
			name:    "chroot without mount namespace",
			mutate:  func(c *Config) { c.ChrootDir = "/jail" },
			wantErr: ErrConfigInvalid,
		},
		{
			name:    "scratch without mount namespace",
			mutate:  func(c *Config) { c.ScratchDir = "/scratch" },
			wantErr: ErrConfigInvalid,
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			cfg := validConfig()
			tc.mutate(cfg)
			err := Validate(cfg)
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("got %v, want %v", err, tc.wantErr)
			}
		})
	}
}

func TestValidateRejectsRootIdentityForUnprivilegedCaller(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("running as root: uid 0 is a legitimate request")
	}
	cfg := validConfig()
	cfg.UID = 0
	err := Validate(cfg)
	if !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("got %v, want ErrPermissionDenied", err)
	}
}

func TestValidateNilConfig(t *testing.T) {
	t.Parallel()
	if err := Validate(nil); !errors.Is(err, ErrConfigInvalid) {
		t.Fatalf("got %v, want ErrConfigInvalid", err)
	}
}
