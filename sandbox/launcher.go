// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sandbox

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"syscall"
	"time"

	"github.com/bureau-foundation/enclave/lib/binhash"
	"github.com/bureau-foundation/enclave/lib/codec"
)

// The child receives its launch spec over an inherited pipe rather
// than argv or the environment: the spec contains mount lists and
// allow-lists that would otherwise be visible in /proc/<pid>/cmdline
// to every process on the host.
const (
	childSpecFDEnv = "ENCLAVE_SPEC_FD"
	// ExtraFiles[0] lands after stdin/stdout/stderr.
	childSpecFD = 3
)

// launchSpec is the wire form of a Config, decoded by the re-exec'd
// child before any isolation is in place.
type launchSpec struct {
	Program      string         `cbor:"program"`
	Args         []string       `cbor:"args,omitempty"`
	Env          []string       `cbor:"env,omitempty"`
	UID          uint32         `cbor:"uid"`
	GID          uint32         `cbor:"gid"`
	ChrootDir    string         `cbor:"chroot,omitempty"`
	ScratchDir   string         `cbor:"scratch_dir,omitempty"`
	ScratchSize  string         `cbor:"scratch_size,omitempty"`
	Mounts       []MountSpec    `cbor:"mounts,omitempty"`
	Namespaces   NamespaceSet   `cbor:"namespaces"`
	SeccompMode  SeccompMode    `cbor:"seccomp_mode"`
	Allowed      []string       `cbor:"allowed,omitempty"`
	Capabilities []string       `cbor:"capabilities,omitempty"`
	Limits       ResourceLimits `cbor:"limits"`
}

func specFromConfig(cfg *Config) launchSpec {
	return launchSpec{
		Program:      cfg.Program,
		Args:         cfg.Args,
		Env:          cfg.Env,
		UID:          cfg.UID,
		GID:          cfg.GID,
		ChrootDir:    cfg.ChrootDir,
		ScratchDir:   cfg.ScratchDir,
		ScratchSize:  cfg.ScratchSize,
		Mounts:       cfg.Mounts,
		Namespaces:   cfg.Namespaces,
		SeccompMode:  cfg.Seccomp.Mode,
		Allowed:      cfg.Seccomp.Allowed,
		Capabilities: cfg.Capabilities.Names(),
		Limits:       cfg.Limits,
	}
}

func (s *launchSpec) toConfig() (*Config, error) {
	caps := make(CapabilitySet, len(s.Capabilities))
	for _, name := range s.Capabilities {
		c, err := ParseCapability(name)
		if err != nil {
			return nil, err
		}
		caps[c] = struct{}{}
	}
	return &Config{
		Program:      s.Program,
		Args:         s.Args,
		Env:          s.Env,
		UID:          s.UID,
		GID:          s.GID,
		ChrootDir:    s.ChrootDir,
		ScratchDir:   s.ScratchDir,
		ScratchSize:  s.ScratchSize,
		Mounts:       s.Mounts,
		Namespaces:   s.Namespaces,
		Seccomp:      SyscallPolicy{Mode: s.SeccompMode, Allowed: s.Allowed},
		Capabilities: caps,
		Limits:       s.Limits,
	}, nil
}

// Create validates cfg, spawns the sandbox child, and returns a handle
// immediately; it does not wait for the setup pipeline to finish. The
// child is a re-exec of the current binary (the caller's main must
// invoke MaybeChildInit before anything else). Cancelling ctx kills
// the child.
//
// The config is frozen into the handle at this point: the target
// binary is hashed now, and the spec the child receives is a copy.
func Create(ctx context.Context, log *slog.Logger, cfg *Config) (*Handle, error) {
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	frozen := cfg.Clone()

	rawDigest, err := binhash.HashFile(frozen.Program)
	if err != nil {
		return nil, fmt.Errorf("%w: hash program %s: %v", ErrConfigInvalid, frozen.Program, err)
	}
	digest := binhash.FormatDigest(rawDigest)

	spec := specFromConfig(frozen)
	payload, err := codec.Marshal(&spec)
	if err != nil {
		return nil, fmt.Errorf("encode launch spec: %w", err)
	}

	specR, specW, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("launch spec pipe: %w", err)
	}
	defer specR.Close()
	defer specW.Close()

	cmd := exec.CommandContext(ctx, "/proc/self/exe")
	cmd.Env = []string{fmt.Sprintf("%s=%d", childSpecFDEnv, childSpecFD)}
	cmd.ExtraFiles = []*os.File{specR}
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Cloneflags: cloneFlags(frozen.Namespaces),
		Setpgid:    true,
	}
	if frozen.Namespaces.Has(NamespaceUser) {
		// Map the sandbox identity to the launching user so the
		// child can complete setup without real root.
		cmd.SysProcAttr.UidMappings = []syscall.SysProcIDMap{
			{ContainerID: int(frozen.UID), HostID: os.Getuid(), Size: 1},
		}
		cmd.SysProcAttr.GidMappings = []syscall.SysProcIDMap{
			{ContainerID: int(frozen.GID), HostID: os.Getgid(), Size: 1},
		}
		cmd.SysProcAttr.GidMappingsEnableSetgroups = false
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("spawn sandbox child: %w", err)
	}
	// The child owns its copy of the read end now.
	specR.Close()
	if _, err := specW.Write(payload); err != nil {
		_ = cmd.Process.Kill()
		// Reap here: no handle exists yet, so no monitor ever will.
		_, _ = cmd.Process.Wait()
		return nil, fmt.Errorf("send launch spec: %w", err)
	}
	specW.Close()

	h := &Handle{
		PID:     cmd.Process.Pid,
		config:  *frozen,
		created: time.Now(),
		digest:  digest,
		events:  NewEventRing(defaultEventCapacity),
		status:  Status{State: StateLaunching},
	}
	h.events.Record(Event{Type: EventLaunch, PID: h.PID,
		Detail: fmt.Sprintf("program=%s digest=%s", frozen.Program, digest)})

	log.Info("sandbox launched",
		"pid", h.PID,
		"program", frozen.Program,
		"digest", digest,
		"namespaces", frozen.Namespaces.String(),
		"uid", frozen.UID,
		"gid", frozen.GID)
	return h, nil
}

const defaultEventCapacity = 256
