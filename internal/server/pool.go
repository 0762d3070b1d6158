// Copyright 2025 gnssmux contributors
// SPDX-License-Identifier: GPL-3.0-or-later

package server

import (
	"errors"
	"sync"

	"github.com/google/uuid"
)

// ErrCapacityExceeded reports a full slot pool. The offending connection is
// accepted at the socket level but served nothing and closed.
var ErrCapacityExceeded = errors.New("server: client capacity exceeded")

// Slot is one connected client's record: identity plus a dedicated outbound
// queue. The fan-out loop is the producer, the client's handler goroutine
// the only consumer, so a slow client only ever lags its own queue.
type Slot struct {
	index int

	mu        sync.Mutex
	cond      *sync.Cond
	queue     [][]byte
	occupied  bool
	streaming bool
	id        uuid.UUID
	remote    string
}

func (s *Slot) Index() int { return s.index }

func (s *Slot) ID() uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id
}

func (s *Slot) Remote() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.remote
}

// SetStreaming opens the slot's queue to the fan-out loop. Until then
// pushes are discarded (the client is still in its handshake).
func (s *Slot) SetStreaming(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.streaming = on
}

// Push appends b to the slot's queue and wakes the handler.
func (s *Slot) Push(b []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.occupied || !s.streaming {
		return
	}
	s.queue = append(s.queue, b)
	s.cond.Signal()
}

// Next blocks until data is queued or the slot is released, in which case
// it returns false.
func (s *Slot) Next() ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for len(s.queue) == 0 && s.occupied {
		s.cond.Wait()
	}
	if !s.occupied {
		return nil, false
	}
	b := s.queue[0]
	s.queue = s.queue[1:]
	return b, true
}

// Pool is a fixed arena of client slots with a free-list for O(1) claims.
// Claim and Release serialize on one mutex; the per-slot queues carry
// their own locking.
type Pool struct {
	mu    sync.Mutex
	slots []*Slot
	free  []int
}

func NewPool(n int) *Pool {
	p := &Pool{
		slots: make([]*Slot, n),
		free:  make([]int, 0, n),
	}
	for i := n - 1; i >= 0; i-- {
		s := &Slot{index: i}
		s.cond = sync.NewCond(&s.mu)
		p.slots[i] = s
		p.free = append(p.free, i)
	}
	return p
}

// Claim takes the first free slot for remote, flushing any stale backlog a
// previous occupant left behind. It returns ErrCapacityExceeded when every
// slot is taken.
func (p *Pool) Claim(remote string) (*Slot, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.free) == 0 {
		return nil, ErrCapacityExceeded
	}
	idx := p.free[len(p.free)-1]
	p.free = p.free[:len(p.free)-1]

	s := p.slots[idx]
	s.mu.Lock()
	s.queue = nil
	s.occupied = true
	s.streaming = false
	s.id = uuid.New()
	s.remote = remote
	s.mu.Unlock()
	return s, nil
}

// Release returns s to the free list and wakes its handler so a blocked
// Next observes the release. Releasing a free slot is a no-op.
func (p *Pool) Release(s *Slot) {
	p.mu.Lock()
	defer p.mu.Unlock()

	s.mu.Lock()
	if !s.occupied {
		s.mu.Unlock()
		return
	}
	s.occupied = false
	s.streaming = false
	s.queue = nil
	s.id = uuid.UUID{}
	s.remote = ""
	s.cond.Broadcast()
	s.mu.Unlock()

	p.free = append(p.free, s.index)
}

// Occupied returns the number of claimed slots.
func (p *Pool) Occupied() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.slots) - len(p.free)
}

// Each calls fn for every currently occupied slot.
func (p *Pool) Each(fn func(*Slot)) {
	p.mu.Lock()
	occupied := make([]*Slot, 0, len(p.slots))
	for _, s := range p.slots {
		s.mu.Lock()
		if s.occupied {
			occupied = append(occupied, s)
		}
		s.mu.Unlock()
	}
	p.mu.Unlock()

	for _, s := range occupied {
		fn(s)
	}
}

// ReleaseAll releases every occupied slot; used at shutdown.
func (p *Pool) ReleaseAll() {
	for _, s := range p.slots {
		p.Release(s)
	}
}
