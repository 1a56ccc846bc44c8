// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sandbox

import "time"

// EventType classifies audit events.
type EventType int

const (
	// EventLaunch: sandbox child spawned.
	EventLaunch EventType = iota
	// EventRunning: setup pipeline finished, target program executing.
	EventRunning
	// EventExit: target exited on its own.
	EventExit
	// EventSetupFailure: a setup stage aborted the sandbox.
	EventSetupFailure
	// EventResourceViolation: monitor observed usage above a ceiling.
	EventResourceViolation
	// EventEscalationDetected: the irreversibility check failed.
	EventEscalationDetected
	// EventTerminated: killed by Terminate or an external signal.
	EventTerminated
)

func (t EventType) String() string {
	switch t {
	case EventLaunch:
		return "launch"
	case EventRunning:
		return "running"
	case EventExit:
		return "exit"
	case EventSetupFailure:
		return "setup-failure"
	case EventResourceViolation:
		return "resource-violation"
	case EventEscalationDetected:
		return "escalation-detected"
	case EventTerminated:
		return "terminated"
	}
	return "unknown"
}

// Event is one entry in a sandbox's audit trail.
type Event struct {
	Type   EventType
	Time   time.Time
	PID    int
	Detail string
}

// EventRing is a bounded, oldest-evicted audit buffer. Like the Handle
// that owns it, it belongs to one goroutine and takes no locks.
type EventRing struct {
	events []Event
	next   int
	full   bool
}

// NewEventRing returns a ring holding at most capacity events.
func NewEventRing(capacity int) *EventRing {
	if capacity < 1 {
		capacity = 1
	}
	return &EventRing{events: make([]Event, capacity)}
}

// Record appends an event, evicting the oldest when full.
func (r *EventRing) Record(e Event) {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	r.events[r.next] = e
	r.next++
	if r.next == len(r.events) {
		r.next = 0
		r.full = true
	}
}

// Len reports how many events the ring currently holds.
func (r *EventRing) Len() int {
	if r.full {
		return len(r.events)
	}
	return r.next
}

// Snapshot returns the retained events, oldest first.
func (r *EventRing) Snapshot() []Event {
	out := make([]Event, 0, r.Len())
	if r.full {
		out = append(out, r.events[r.next:]...)
	}
	out = append(out, r.events[:r.next]...)
	return out
}
