// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sandbox

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/bureau-foundation/enclave/lib/testutil"
)

func TestContainmentRunnerReporting(t *testing.T) {
	t.Parallel()

	runner := &ContainmentRunner{checks: []ContainmentCheck{
		{
			Name:        "blocked-vector",
			Description: "a vector the sandbox blocks",
			Category:    "filesystem",
			Run:         func(ctx context.Context) error { return nil },
		},
		{
			Name:        "open-vector",
			Description: "a vector that leaks",
			Category:    "network",
			Run: func(ctx context.Context) error {
				return errors.New("reached the host")
			},
		},
	}}
	runner.RunAll(context.Background())

	passed, failed := runner.Summary()
	if passed != 1 || failed != 1 {
		t.Fatalf("Summary() = (%d, %d), want (1, 1)", passed, failed)
	}
	if !runner.HasFailures() {
		t.Fatal("HasFailures() = false with a leaked vector")
	}

	var out strings.Builder
	runner.PrintResults(&out)
	report := out.String()
	if !strings.Contains(report, "[PASS] blocked-vector") {
		t.Errorf("report missing pass line:\n%s", report)
	}
	if !strings.Contains(report, "[FAIL] open-vector") {
		t.Errorf("report missing fail line:\n%s", report)
	}
	if !strings.Contains(report, "reached the host") {
		t.Errorf("report missing escape detail:\n%s", report)
	}
	if !strings.Contains(report, "1 escape vectors detected") {
		t.Errorf("report missing summary:\n%s", report)
	}
}

func TestContainmentRunnerRunsChecksToCompletion(t *testing.T) {
	t.Parallel()

	// A check that blocks until the test releases it proves RunAll is
	// actually executing check code, not just recording results.
	gate := make(chan struct{})
	runner := &ContainmentRunner{checks: []ContainmentCheck{
		{
			Name:     "gated-vector",
			Category: "process",
			Run: func(ctx context.Context) error {
				<-gate
				return nil
			},
		},
	}}

	done := make(chan struct{})
	go func() {
		runner.RunAll(context.Background())
		close(done)
	}()

	testutil.RequireSend(t, gate, struct{}{}, 5*time.Second, "runner never started the check")
	testutil.RequireClosed(t, done, 5*time.Second, "runner did not finish the battery")

	passed, failed := runner.Summary()
	if passed != 1 || failed != 0 {
		t.Fatalf("Summary() = (%d, %d), want (1, 0)", passed, failed)
	}
}

func TestContainmentBatteryShape(t *testing.T) {
	t.Parallel()

	// The built-in battery covers every category the engine isolates.
	want := map[string]bool{"network": false, "filesystem": false, "process": false, "privilege": false}
	for _, check := range ContainmentChecks {
		if _, ok := want[check.Category]; !ok {
			t.Errorf("check %q has unknown category %q", check.Name, check.Category)
			continue
		}
		want[check.Category] = true
		if check.Run == nil {
			t.Errorf("check %q has no Run function", check.Name)
		}
	}
	for category, covered := range want {
		if !covered {
			t.Errorf("no check covers category %q", category)
		}
	}
}
