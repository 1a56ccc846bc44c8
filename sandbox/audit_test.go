// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sandbox

import (
	"strconv"
	"testing"
	"time"
)

func TestEventRingBounded(t *testing.T) {
	t.Parallel()

	ring := NewEventRing(4)
	for i := 0; i < 10; i++ {
		ring.Record(Event{Type: EventExit, Detail: strconv.Itoa(i)})
	}

	if ring.Len() != 4 {
		t.Fatalf("Len() = %d, want 4", ring.Len())
	}
	snapshot := ring.Snapshot()
	if len(snapshot) != 4 {
		t.Fatalf("snapshot length %d, want 4", len(snapshot))
	}
	// Oldest evicted: only the last four survive, in order.
	for i, e := range snapshot {
		if want := strconv.Itoa(6 + i); e.Detail != want {
			t.Errorf("snapshot[%d].Detail = %q, want %q", i, e.Detail, want)
		}
	}
}

func TestEventRingPartialFill(t *testing.T) {
	t.Parallel()

	ring := NewEventRing(8)
	ring.Record(Event{Type: EventLaunch})
	ring.Record(Event{Type: EventRunning})

	if ring.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", ring.Len())
	}
	snapshot := ring.Snapshot()
	if snapshot[0].Type != EventLaunch || snapshot[1].Type != EventRunning {
		t.Fatalf("snapshot out of order: %v, %v", snapshot[0].Type, snapshot[1].Type)
	}
}

func TestEventRingStampsTime(t *testing.T) {
	t.Parallel()

	ring := NewEventRing(1)
	before := time.Now()
	ring.Record(Event{Type: EventLaunch})
	e := ring.Snapshot()[0]
	if e.Time.Before(before) {
		t.Fatal("Record did not stamp a missing timestamp")
	}

	explicit := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	ring.Record(Event{Type: EventExit, Time: explicit})
	if got := ring.Snapshot()[0].Time; !got.Equal(explicit) {
		t.Fatalf("explicit timestamp overwritten: %v", got)
	}
}

func TestEventRingMinimumCapacity(t *testing.T) {
	t.Parallel()

	ring := NewEventRing(0)
	ring.Record(Event{Type: EventLaunch})
	ring.Record(Event{Type: EventExit})
	if ring.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", ring.Len())
	}
	if ring.Snapshot()[0].Type != EventExit {
		t.Fatal("single-slot ring did not keep the newest event")
	}
}
