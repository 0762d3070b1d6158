// Copyright 2025 gnssmux contributors
// SPDX-License-Identifier: GPL-3.0-or-later

// Package status tracks the current connection state. All writes go
// through one setter so observers (status indicator, logs) always see
// every transition.
package status

import "sync"

type Status int

const (
	Disconnected Status = iota
	Connected
	ConnectedFile
	ConnectedSocket
)

func (s Status) String() string {
	switch s {
	case Connected:
		return "connected"
	case ConnectedFile:
		return "connected (file)"
	case ConnectedSocket:
		return "connected (socket)"
	default:
		return "disconnected"
	}
}

// Tracker owns the current status value. Observers run synchronously on
// the setter's goroutine and must not block.
type Tracker struct {
	mu        sync.Mutex
	cur       Status
	observers []func(Status)
}

func NewTracker() *Tracker {
	return &Tracker{}
}

func (t *Tracker) Observe(fn func(Status)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.observers = append(t.observers, fn)
}

// Set stores the new status and notifies every observer. Setting the
// current value again is a no-op.
func (t *Tracker) Set(s Status) {
	t.mu.Lock()
	if t.cur == s {
		t.mu.Unlock()
		return
	}
	t.cur = s
	obs := make([]func(Status), len(t.observers))
	copy(obs, t.observers)
	t.mu.Unlock()

	for _, fn := range obs {
		fn(s)
	}
}

func (t *Tracker) Get() Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cur
}
