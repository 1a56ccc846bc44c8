// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// enclave-sandbox runs programs under kernel-enforced confinement.
//
// Usage:
//
//	enclave-sandbox run [flags] -- <program> [args...]
//	enclave-sandbox validate [flags] -- <program> [args...]
//	enclave-sandbox list-policies
//	enclave-sandbox show-policy <name>
//	enclave-sandbox selftest
//	enclave-sandbox detect
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/bureau-foundation/enclave/lib/process"
	"github.com/bureau-foundation/enclave/lib/version"
	"github.com/bureau-foundation/enclave/sandbox"
)

func main() {
	// Must run before anything else: in the re-exec'd child this
	// never returns.
	sandbox.MaybeChildInit()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	logLevel := slog.LevelInfo
	if os.Getenv("ENCLAVE_DEBUG") != "" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	}))

	cmd := os.Args[1]
	args := os.Args[2:]

	var err error
	switch cmd {
	case "run":
		err = runCmd(args, logger)
	case "validate":
		err = validateCmd(args, logger)
	case "list-policies":
		err = listPoliciesCmd(logger)
	case "show-policy":
		err = showPolicyCmd(args, logger)
	case "selftest":
		err = selftestCmd()
	case "detect":
		err = detectCmd()
	case "version", "--version", "-v":
		fmt.Printf("enclave-sandbox %s\n", version.Info())
		return
	case "help", "--help", "-h":
		printUsage()
		return
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		if code, ok := sandbox.IsExitError(err); ok {
			os.Exit(code)
		}
		process.Fatal(err)
	}
}

func printUsage() {
	fmt.Print(`enclave-sandbox - Run programs under kernel-enforced confinement

USAGE
    enclave-sandbox <command> [flags] [-- <args>...]

COMMANDS
    run           Run a program in a sandbox
    validate      Validate a sandbox configuration without launching
    list-policies List available policies
    show-policy   Show a resolved policy
    selftest      Run the containment battery (inside a sandbox)
    detect        Show host confinement capabilities
    version       Show version

EXAMPLES
    # Run a batch job under the built-in batch policy
    enclave-sandbox run --policy=batch -- /usr/bin/sort /data/input

    # Verify this host can build sandboxes at all
    enclave-sandbox detect

    # Prove containment from the inside
    enclave-sandbox run --policy=minimal -- /proc/self/exe selftest

ENVIRONMENT
    ENCLAVE_DEBUG  Enable debug logging
`)
}

func runCmd(args []string, logger *slog.Logger) error {
	fs := pflag.NewFlagSet("run", pflag.ExitOnError)
	policyName := fs.String("policy", "batch", "policy name")
	uid := fs.Uint32("uid", 0, "override sandbox uid")
	gid := fs.Uint32("gid", 0, "override sandbox gid")
	chroot := fs.String("chroot", "", "override jail root directory")
	grace := fs.Duration("grace", 2*time.Second, "SIGTERM grace period on interrupt")
	poll := fs.Duration("poll", 100*time.Millisecond, "monitor poll interval")
	binds := fs.StringArray("ro-bind", nil, "extra read-only bind mount (source:dest), repeatable")
	envs := fs.StringArray("env", nil, "extra environment variable (KEY=VALUE), repeatable")
	if err := fs.Parse(args); err != nil {
		return err
	}

	command := fs.Args()
	if len(command) == 0 {
		return fmt.Errorf("program is required after --")
	}

	cfg, err := buildConfig(logger, *policyName, command[0], command[1:])
	if err != nil {
		return err
	}
	if *uid != 0 {
		cfg.UID = *uid
	}
	if *gid != 0 {
		cfg.GID = *gid
	}
	if *chroot != "" {
		cfg.ChrootDir = *chroot
	}
	for _, bind := range *binds {
		parts := strings.SplitN(bind, ":", 2)
		if len(parts) != 2 {
			return fmt.Errorf("invalid bind %q: must be source:dest", bind)
		}
		cfg.Mounts = append(cfg.Mounts, sandbox.MountSpec{
			Source: parts[0], Target: parts[1], ReadOnly: true,
		})
	}
	for _, env := range *envs {
		if !strings.Contains(env, "=") {
			return fmt.Errorf("invalid env %q: must be KEY=VALUE", env)
		}
		cfg.Env = append(cfg.Env, env)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	handle, err := sandbox.Create(ctx, logger, cfg)
	if err != nil {
		return err
	}

	monitor := sandbox.NewMonitor(logger)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	ticker := time.NewTicker(*poll)
	defer ticker.Stop()
	for {
		select {
		case <-sigCh:
			logger.Info("interrupt, terminating sandbox", "pid", handle.PID)
			if err := monitor.Terminate(handle, *grace); err != nil {
				return err
			}
		case <-ticker.C:
			if _, err := monitor.Poll(handle); err != nil {
				return err
			}
		}
		status := handle.Status()
		switch status.State {
		case sandbox.StateExited:
			if status.ExitCode != 0 {
				return &sandbox.ExitError{Code: status.ExitCode}
			}
			return nil
		case sandbox.StateKilled:
			return fmt.Errorf("sandbox pid %d killed", handle.PID)
		case sandbox.StateFailed:
			return fmt.Errorf("sandbox setup failed at %s stage", status.FailureStage)
		}
	}
}

func validateCmd(args []string, logger *slog.Logger) error {
	fs := pflag.NewFlagSet("validate", pflag.ExitOnError)
	policyName := fs.String("policy", "batch", "policy name")
	if err := fs.Parse(args); err != nil {
		return err
	}

	command := fs.Args()
	if len(command) == 0 {
		return fmt.Errorf("program is required after --")
	}

	cfg, err := buildConfig(logger, *policyName, command[0], command[1:])
	if err != nil {
		return err
	}
	if err := sandbox.Validate(cfg); err != nil {
		return err
	}

	host := sandbox.DetectHostCapabilities()
	if reason := host.SkipReason(); reason != "" {
		return fmt.Errorf("config is valid but host cannot confine: %s", reason)
	}
	fmt.Printf("ok: %s under policy %s\n", cfg.Program, *policyName)
	return nil
}

func listPoliciesCmd(logger *slog.Logger) error {
	loader, err := sandbox.LoadFromSearchPaths(debugLogger(logger))
	if err != nil {
		return err
	}
	for _, name := range loader.List() {
		policy, err := loader.Resolve(name)
		if err != nil {
			return err
		}
		fmt.Printf("%-12s %s\n", name, policy.Description)
	}
	return nil
}

func showPolicyCmd(args []string, logger *slog.Logger) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: enclave-sandbox show-policy <name>")
	}
	loader, err := sandbox.LoadFromSearchPaths(debugLogger(logger))
	if err != nil {
		return err
	}
	policy, err := loader.Resolve(args[0])
	if err != nil {
		return err
	}
	out, err := yaml.Marshal(policy)
	if err != nil {
		return fmt.Errorf("marshal policy: %w", err)
	}
	os.Stdout.Write(out)
	return nil
}

func selftestCmd() error {
	runner := sandbox.NewContainmentRunner()
	runner.RunAll(context.Background())
	runner.PrintResults(os.Stdout)
	if runner.HasFailures() {
		return fmt.Errorf("containment not verified")
	}
	return nil
}

func detectCmd() error {
	host := sandbox.DetectHostCapabilities()
	fmt.Printf("kernel:              %s\n", host.KernelVersion)
	fmt.Printf("running as root:     %v\n", host.RunningAsRoot)
	fmt.Printf("user namespaces:     %v\n", host.UserNamespacesEnabled)
	fmt.Printf("seccomp:             %v\n", host.SeccompAvailable)
	if len(host.SeccompActions) > 0 {
		fmt.Printf("seccomp actions:     %s\n", strings.Join(host.SeccompActions, " "))
	}
	if reason := host.SkipReason(); reason != "" {
		fmt.Printf("confinement:         unavailable (%s)\n", reason)
		return nil
	}
	fmt.Printf("confinement:         available\n")
	return nil
}

func buildConfig(logger *slog.Logger, policyName, program string, args []string) (*sandbox.Config, error) {
	loader, err := sandbox.LoadFromSearchPaths(debugLogger(logger))
	if err != nil {
		return nil, err
	}
	policy, err := loader.Resolve(policyName)
	if err != nil {
		return nil, err
	}
	return policy.ToConfig(program, args)
}

// debugLogger passes the logger through only when debug logging is on,
// keeping policy loading quiet by default.
func debugLogger(logger *slog.Logger) *slog.Logger {
	if os.Getenv("ENCLAVE_DEBUG") == "" {
		return nil
	}
	return logger
}
