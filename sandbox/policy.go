// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sandbox

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"
)

// Policy is the YAML form of a sandbox configuration. Policies name
// reusable confinement shapes ("minimal", "batch"); the program and
// its arguments come from the caller at launch time.
type Policy struct {
	Name         string            `yaml:"name"`
	Description  string            `yaml:"description"`
	Inherit      string            `yaml:"inherit,omitempty"`
	UID          uint32            `yaml:"uid,omitempty"`
	GID          uint32            `yaml:"gid,omitempty"`
	Chroot       string            `yaml:"chroot,omitempty"`
	ScratchDir   string            `yaml:"scratch_dir,omitempty"`
	ScratchSize  string            `yaml:"scratch_size,omitempty"`
	Filesystem   []PolicyMount     `yaml:"filesystem,omitempty"`
	Namespaces   []string          `yaml:"namespaces,omitempty"`
	Seccomp      PolicySeccomp     `yaml:"seccomp,omitempty"`
	Capabilities []string          `yaml:"capabilities,omitempty"`
	Resources    PolicyResources   `yaml:"resources,omitempty"`
	Environment  map[string]string `yaml:"environment,omitempty"`
}

// PolicyMount defines one filesystem entry.
type PolicyMount struct {
	Source string `yaml:"source,omitempty"`
	Dest   string `yaml:"dest"`
	Type   string `yaml:"type,omitempty"`
	Mode   string `yaml:"mode,omitempty"`
}

// PolicySeccomp selects the syscall policy.
type PolicySeccomp struct {
	Mode    string   `yaml:"mode,omitempty"`
	Allowed []string `yaml:"allowed,omitempty"`
}

// PolicyResources defines the resource ceilings.
type PolicyResources struct {
	MemoryBytes   uint64 `yaml:"memory_bytes,omitempty"`
	CPUSeconds    uint64 `yaml:"cpu_seconds,omitempty"`
	FileSizeBytes uint64 `yaml:"file_size_bytes,omitempty"`
	MaxProcesses  uint64 `yaml:"max_processes,omitempty"`
	MaxOpenFiles  uint64 `yaml:"max_open_files,omitempty"`
}

// PoliciesConfig is the top-level shape of a policy file.
type PoliciesConfig struct {
	Policies map[string]*Policy `yaml:"policies"`
}

// ParsePoliciesConfig parses YAML policy data and fills in names.
func ParsePoliciesConfig(data []byte) (*PoliciesConfig, error) {
	var config PoliciesConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("%w: parse policies: %v", ErrConfigInvalid, err)
	}
	for name, policy := range config.Policies {
		if policy == nil {
			return nil, fmt.Errorf("%w: policy %q is empty", ErrConfigInvalid, name)
		}
		policy.Name = name
	}
	return &config, nil
}

// LoadPoliciesConfig reads and parses one policy file.
func LoadPoliciesConfig(path string) (*PoliciesConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read policy file %s: %w", path, err)
	}
	return ParsePoliciesConfig(data)
}

// Clone returns a deep copy.
func (p *Policy) Clone() *Policy {
	clone := *p
	clone.Filesystem = append([]PolicyMount(nil), p.Filesystem...)
	clone.Namespaces = append([]string(nil), p.Namespaces...)
	clone.Seccomp.Allowed = append([]string(nil), p.Seccomp.Allowed...)
	clone.Capabilities = append([]string(nil), p.Capabilities...)
	if p.Environment != nil {
		clone.Environment = make(map[string]string, len(p.Environment))
		for k, v := range p.Environment {
			clone.Environment[k] = v
		}
	}
	return &clone
}

// mergePolicies layers child over parent. Scalars override when set;
// filesystem entries replace by dest; namespace, capability, and
// allow-list entries union.
func mergePolicies(parent, child *Policy) *Policy {
	result := parent.Clone()
	result.Name = child.Name
	result.Inherit = ""

	if child.Description != "" {
		result.Description = child.Description
	}
	if child.UID != 0 {
		result.UID = child.UID
	}
	if child.GID != 0 {
		result.GID = child.GID
	}
	if child.Chroot != "" {
		result.Chroot = child.Chroot
	}
	if child.ScratchDir != "" {
		result.ScratchDir = child.ScratchDir
	}
	if child.ScratchSize != "" {
		result.ScratchSize = child.ScratchSize
	}

	if len(child.Filesystem) > 0 {
		byDest := make(map[string]int, len(result.Filesystem))
		for i, m := range result.Filesystem {
			byDest[m.Dest] = i
		}
		for _, m := range child.Filesystem {
			if i, ok := byDest[m.Dest]; ok {
				result.Filesystem[i] = m
			} else {
				result.Filesystem = append(result.Filesystem, m)
			}
		}
	}

	result.Namespaces = unionStrings(result.Namespaces, child.Namespaces)
	result.Capabilities = unionStrings(result.Capabilities, child.Capabilities)
	if child.Seccomp.Mode != "" {
		result.Seccomp.Mode = child.Seccomp.Mode
	}
	result.Seccomp.Allowed = unionStrings(result.Seccomp.Allowed, child.Seccomp.Allowed)

	if child.Resources.MemoryBytes != 0 {
		result.Resources.MemoryBytes = child.Resources.MemoryBytes
	}
	if child.Resources.CPUSeconds != 0 {
		result.Resources.CPUSeconds = child.Resources.CPUSeconds
	}
	if child.Resources.FileSizeBytes != 0 {
		result.Resources.FileSizeBytes = child.Resources.FileSizeBytes
	}
	if child.Resources.MaxProcesses != 0 {
		result.Resources.MaxProcesses = child.Resources.MaxProcesses
	}
	if child.Resources.MaxOpenFiles != 0 {
		result.Resources.MaxOpenFiles = child.Resources.MaxOpenFiles
	}

	if len(child.Environment) > 0 {
		if result.Environment == nil {
			result.Environment = make(map[string]string, len(child.Environment))
		}
		for k, v := range child.Environment {
			result.Environment[k] = v
		}
	}
	return result
}

func unionStrings(base, extra []string) []string {
	seen := make(map[string]bool, len(base))
	out := append([]string(nil), base...)
	for _, s := range base {
		seen[s] = true
	}
	for _, s := range extra {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

// ToConfig resolves the policy into a launchable Config for program.
func (p *Policy) ToConfig(program string, args []string) (*Config, error) {
	cfg := &Config{
		Program:     program,
		Args:        append([]string(nil), args...),
		UID:         p.UID,
		GID:         p.GID,
		ChrootDir:   p.Chroot,
		ScratchDir:  p.ScratchDir,
		ScratchSize: p.ScratchSize,
		Limits: ResourceLimits{
			MemoryBytes:   p.Resources.MemoryBytes,
			CPUSeconds:    p.Resources.CPUSeconds,
			FileSizeBytes: p.Resources.FileSizeBytes,
			MaxProcesses:  p.Resources.MaxProcesses,
			MaxOpenFiles:  p.Resources.MaxOpenFiles,
		},
	}

	for _, name := range p.Namespaces {
		ns, ok := ParseNamespace(name)
		if !ok {
			return nil, fmt.Errorf("%w: policy %s: unknown namespace %q",
				ErrConfigInvalid, p.Name, name)
		}
		cfg.Namespaces = cfg.Namespaces.With(ns)
	}

	switch p.Seccomp.Mode {
	case "", "allow-list":
		cfg.Seccomp.Mode = SeccompAllowList
		cfg.Seccomp.Allowed = append([]string(nil), p.Seccomp.Allowed...)
		if len(cfg.Seccomp.Allowed) == 0 {
			cfg.Seccomp.Allowed = DefaultSyscallAllowList()
		}
	case "strict":
		cfg.Seccomp.Mode = SeccompStrict
	default:
		return nil, fmt.Errorf("%w: policy %s: unknown seccomp mode %q",
			ErrConfigInvalid, p.Name, p.Seccomp.Mode)
	}

	cfg.Capabilities = make(CapabilitySet, len(p.Capabilities))
	for _, name := range p.Capabilities {
		c, err := ParseCapability(name)
		if err != nil {
			return nil, fmt.Errorf("policy %s: %w", p.Name, err)
		}
		cfg.Capabilities[c] = struct{}{}
	}

	for _, m := range p.Filesystem {
		spec, err := m.toMountSpec()
		if err != nil {
			return nil, fmt.Errorf("policy %s: %w", p.Name, err)
		}
		cfg.Mounts = append(cfg.Mounts, spec)
	}

	for k, v := range p.Environment {
		cfg.Env = append(cfg.Env, k+"="+v)
	}
	sort.Strings(cfg.Env)

	return cfg, nil
}

func (m PolicyMount) toMountSpec() (MountSpec, error) {
	switch m.Type {
	case "", "bind":
		return MountSpec{
			Source:   m.Source,
			Target:   m.Dest,
			ReadOnly: m.Mode != "rw",
		}, nil
	case "proc":
		return MountSpec{Source: "proc", Target: m.Dest, FSType: "proc"}, nil
	case "tmpfs":
		return MountSpec{Source: "tmpfs", Target: m.Dest, FSType: "tmpfs"}, nil
	default:
		return MountSpec{}, fmt.Errorf("%w: unknown mount type %q for %s",
			ErrConfigInvalid, m.Type, m.Dest)
	}
}

// PolicyLoader loads and resolves sandbox policies.
type PolicyLoader struct {
	configs  []*PoliciesConfig
	resolved map[string]*Policy
	logger   *slog.Logger
}

// NewPolicyLoader creates an empty loader.
func NewPolicyLoader() *PolicyLoader {
	return &PolicyLoader{resolved: make(map[string]*Policy)}
}

// SetLogger enables verbose logging during policy loading.
func (l *PolicyLoader) SetLogger(logger *slog.Logger) {
	l.logger = logger
}

func (l *PolicyLoader) log(msg string, args ...any) {
	if l.logger != nil {
		l.logger.Info(msg, args...)
	}
}

// LoadDefaults loads the built-in policies.
func (l *PolicyLoader) LoadDefaults() error {
	config, err := ParsePoliciesConfig([]byte(defaultPoliciesYAML))
	if err != nil {
		return fmt.Errorf("parse built-in policies: %w", err)
	}
	l.configs = append(l.configs, config)
	l.log("loaded built-in policies", "count", len(config.Policies))
	return nil
}

// LoadFile loads policies from a YAML file.
func (l *PolicyLoader) LoadFile(path string) error {
	config, err := LoadPoliciesConfig(path)
	if err != nil {
		return err
	}
	l.configs = append(l.configs, config)
	l.log("loaded policy file", "path", path, "count", len(config.Policies))
	return nil
}

// LoadDirectory loads every YAML file in a directory. A missing
// directory is not an error.
func (l *PolicyLoader) LoadDirectory(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read policy directory %s: %w", dir, err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := filepath.Ext(entry.Name())
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		if err := l.LoadFile(filepath.Join(dir, entry.Name())); err != nil {
			return err
		}
	}
	return nil
}

// Resolve returns the named policy with inheritance applied. Later
// loaded files shadow earlier ones.
func (l *PolicyLoader) Resolve(name string) (*Policy, error) {
	if policy, ok := l.resolved[name]; ok {
		return policy, nil
	}

	var base *Policy
	for _, config := range l.configs {
		if policy, ok := config.Policies[name]; ok {
			base = policy
		}
	}
	if base == nil {
		return nil, fmt.Errorf("%w: policy not found: %s", ErrConfigInvalid, name)
	}

	var policy *Policy
	if base.Inherit != "" {
		parent, err := l.Resolve(base.Inherit)
		if err != nil {
			return nil, fmt.Errorf("resolve parent policy %q: %w", base.Inherit, err)
		}
		policy = mergePolicies(parent, base)
	} else {
		policy = base.Clone()
	}

	l.resolved[name] = policy
	return policy, nil
}

// List returns all policy names, sorted.
func (l *PolicyLoader) List() []string {
	names := make(map[string]bool)
	for _, config := range l.configs {
		for name := range config.Policies {
			names[name] = true
		}
	}
	out := make([]string, 0, len(names))
	for name := range names {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// PolicySearchPaths returns the locations checked for policy files.
func PolicySearchPaths() []string {
	paths := []string{}
	if configDir, err := os.UserConfigDir(); err == nil {
		paths = append(paths, filepath.Join(configDir, "enclave", "policies.yaml"))
	}
	paths = append(paths, "/etc/enclave/policies.yaml")
	return paths
}

// LoadFromSearchPaths loads the built-in policies plus any files found
// at the standard locations.
func LoadFromSearchPaths(logger *slog.Logger) (*PolicyLoader, error) {
	loader := NewPolicyLoader()
	loader.SetLogger(logger)
	if err := loader.LoadDefaults(); err != nil {
		return nil, err
	}
	for _, path := range PolicySearchPaths() {
		if _, err := os.Stat(path); err == nil {
			if err := loader.LoadFile(path); err != nil {
				return nil, err
			}
		}
	}
	return loader, nil
}

// defaultPoliciesYAML contains the built-in policy definitions.
const defaultPoliciesYAML = `
policies:
  minimal:
    description: "Strict seccomp, no filesystem, compute-and-exit"
    uid: 65534
    gid: 65534
    namespaces: [mount, pid, net, uts, ipc]
    seccomp:
      mode: strict
    resources:
      memory_bytes: 67108864
      cpu_seconds: 10
      max_processes: 1
      max_open_files: 16

  batch:
    description: "Allow-list seccomp with read-only system dirs"
    inherit: minimal
    seccomp:
      mode: allow-list
      allowed: [read, write, close, fstat, lseek, mmap, munmap, brk,
                openat, getdents64, faccessat, faccessat2,
                exit, exit_group, rt_sigreturn]
    filesystem:
      - source: /usr
        dest: /usr
        mode: ro
      - source: /lib
        dest: /lib
        mode: ro
      - source: /lib64
        dest: /lib64
        mode: ro
    resources:
      memory_bytes: 268435456
      cpu_seconds: 60
      max_processes: 4
      max_open_files: 64

  service:
    description: "Long-running worker with private network stack"
    inherit: batch
    seccomp:
      mode: allow-list
      allowed: [read, write, close, fstat, lseek, mmap, munmap, brk,
                openat, getdents64, faccessat, faccessat2,
                socket, bind, listen, accept4,
                connect, sendto, recvfrom, setsockopt, getsockopt,
                epoll_create1, epoll_ctl, epoll_pwait, futex,
                clock_gettime, nanosleep, exit, exit_group, rt_sigreturn]
    resources:
      memory_bytes: 1073741824
      cpu_seconds: 3600
      max_processes: 32
      max_open_files: 256
`
