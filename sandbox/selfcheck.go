// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sandbox

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"time"

	"golang.org/x/sys/unix"
)

// ContainmentCheck probes one escape vector from inside a sandbox.
// Run returns nil when the vector is BLOCKED and an error describing
// the hole when it is not. The selftest subcommand runs the battery
// as the sandboxed target program.
type ContainmentCheck struct {
	Name        string
	Description string
	Category    string // "network", "filesystem", "process", "privilege"
	Run         func(ctx context.Context) error
}

// ContainmentResult holds one check's outcome.
type ContainmentResult struct {
	Check  *ContainmentCheck
	Passed bool
	Error  string
}

// ContainmentChecks is the built-in battery.
var ContainmentChecks = []ContainmentCheck{
	{
		Name:        "network-external",
		Description: "Connect to an external host",
		Category:    "network",
		Run: func(ctx context.Context) error {
			conn, err := net.DialTimeout("tcp", "1.1.1.1:80", 3*time.Second)
			if err != nil {
				return nil
			}
			conn.Close()
			return fmt.Errorf("external connection succeeded to 1.1.1.1:80")
		},
	},
	{
		Name:        "network-loopback",
		Description: "Reach host loopback services",
		Category:    "network",
		Run: func(ctx context.Context) error {
			for _, port := range []int{22, 80, 443, 8080} {
				conn, err := net.DialTimeout("tcp", fmt.Sprintf("127.0.0.1:%d", port), time.Second)
				if err == nil {
					conn.Close()
					return fmt.Errorf("loopback connection succeeded to port %d", port)
				}
			}
			return nil
		},
	},
	{
		Name:        "filesystem-shadow",
		Description: "Read /etc/shadow",
		Category:    "filesystem",
		Run: func(ctx context.Context) error {
			if _, err := os.ReadFile("/etc/shadow"); err != nil {
				return nil
			}
			return fmt.Errorf("read of /etc/shadow succeeded")
		},
	},
	{
		Name:        "filesystem-host-root",
		Description: "Write outside the jail",
		Category:    "filesystem",
		Run: func(ctx context.Context) error {
			f, err := os.CreateTemp("/", "containment-*")
			if err != nil {
				return nil
			}
			name := f.Name()
			f.Close()
			os.Remove(name)
			return fmt.Errorf("created %s in the root directory", name)
		},
	},
	{
		Name:        "process-host-pids",
		Description: "See processes outside the PID namespace",
		Category:    "process",
		Run: func(ctx context.Context) error {
			// In a fresh PID namespace this process is pid 1 (or close
			// to it) and pid 1's command is not the host init.
			if os.Getpid() != 1 {
				entries, err := os.ReadDir("/proc")
				if err != nil {
					return nil
				}
				count := 0
				for _, e := range entries {
					if e.Name()[0] >= '0' && e.Name()[0] <= '9' {
						count++
					}
				}
				if count > 10 {
					return fmt.Errorf("%d host processes visible in /proc", count)
				}
			}
			return nil
		},
	},
	{
		Name:        "privilege-setuid",
		Description: "Regain uid 0",
		Category:    "privilege",
		Run: func(ctx context.Context) error {
			if os.Getuid() == 0 {
				// Already root inside a user namespace; the mapping,
				// not the uid, is the boundary here.
				return nil
			}
			if err := unix.Setuid(0); err == nil {
				return fmt.Errorf("setuid(0) succeeded")
			}
			return nil
		},
	},
	{
		Name:        "privilege-mount",
		Description: "Mount a filesystem",
		Category:    "privilege",
		Run: func(ctx context.Context) error {
			if err := os.MkdirAll("/tmp/.containment-mount", 0o755); err != nil {
				return nil
			}
			defer os.RemoveAll("/tmp/.containment-mount")
			if err := unix.Mount("tmpfs", "/tmp/.containment-mount", "tmpfs", 0, ""); err != nil {
				return nil
			}
			unix.Unmount("/tmp/.containment-mount", 0)
			return fmt.Errorf("tmpfs mount succeeded without CAP_SYS_ADMIN")
		},
	},
}

// ContainmentRunner runs the battery inside a sandbox.
type ContainmentRunner struct {
	checks  []ContainmentCheck
	results []ContainmentResult
}

// NewContainmentRunner returns a runner over the built-in battery.
func NewContainmentRunner() *ContainmentRunner {
	return &ContainmentRunner{checks: ContainmentChecks}
}

// RunAll executes every check, each under its own timeout.
func (r *ContainmentRunner) RunAll(ctx context.Context) []ContainmentResult {
	r.results = make([]ContainmentResult, 0, len(r.checks))
	for i := range r.checks {
		check := &r.checks[i]
		checkCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		err := check.Run(checkCtx)
		cancel()

		result := ContainmentResult{Check: check, Passed: err == nil}
		if err != nil {
			result.Error = err.Error()
		}
		r.results = append(r.results, result)
	}
	return r.results
}

// Summary counts blocked and leaked vectors.
func (r *ContainmentRunner) Summary() (passed, failed int) {
	for _, result := range r.results {
		if result.Passed {
			passed++
		} else {
			failed++
		}
	}
	return
}

// HasFailures reports whether any vector leaked.
func (r *ContainmentRunner) HasFailures() bool {
	_, failed := r.Summary()
	return failed > 0
}

// PrintResults writes the battery's outcome to w.
func (r *ContainmentRunner) PrintResults(w io.Writer) {
	for _, result := range r.results {
		status := "[PASS]"
		if !result.Passed {
			status = "[FAIL]"
		}
		fmt.Fprintf(w, "%s %s: %s\n", status, result.Check.Name, result.Check.Description)
		if !result.Passed {
			fmt.Fprintf(w, "       escape vector: %s\n", result.Error)
		}
	}
	passed, failed := r.Summary()
	fmt.Fprintf(w, "\n%d/%d checks passed", passed, passed+failed)
	if failed == 0 {
		fmt.Fprintf(w, " - containment verified\n")
	} else {
		fmt.Fprintf(w, " - %d escape vectors detected\n", failed)
	}
}
