// Copyright 2025 gnssmux contributors
// SPDX-License-Identifier: GPL-3.0-or-later

// Package distrib decouples the stream reader's goroutine from its
// consumers. One writer publishes; every tee reader sees every item in
// publish order. Queues are unbounded: the design favors never dropping a
// frame over bounding memory, and wake-ups are coalesced so a consumer may
// drain several items per notification.
package distrib

import (
	"sync"

	"gitlab.com/navtools/gnssmux/internal/frame"
)

// Item is one extracted frame as handed to consumers: the exact bytes
// received plus the decoder's view of them.
type Item struct {
	Raw []byte
	Msg frame.Message
}

// Channel is the one-writer/many-reader tee.
type Channel struct {
	mu      sync.Mutex
	readers []*Reader
	closed  bool
}

func New() *Channel {
	return &Channel{}
}

// Tee registers a new reader. Readers created after items were published
// only see items published from now on.
func (c *Channel) Tee(name string) *Reader {
	r := &Reader{
		name:   name,
		notify: make(chan struct{}, 1),
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		close(r.notify)
		return r
	}
	c.readers = append(c.readers, r)
	return r
}

// Publish appends it to every reader's queue, in registration order, and
// wakes each reader. Only the stream reader's goroutine calls this.
func (c *Channel) Publish(it Item) {
	c.mu.Lock()
	readers := c.readers
	closed := c.closed
	c.mu.Unlock()

	if closed {
		return
	}
	for _, r := range readers {
		r.push(it)
	}
}

// Close wakes every reader one last time. Already-queued items stay
// drainable; a drained reader then observes the closed notify channel.
func (c *Channel) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	readers := c.readers
	c.mu.Unlock()

	for _, r := range readers {
		r.close()
	}
}

// Reader is one consumer's view of the feed: an unbounded FIFO plus a
// 1-buffered notify channel. N publishes may collapse into one wake-up;
// Drain always returns everything queued so far.
type Reader struct {
	name string

	mu     sync.Mutex
	queue  []Item
	closed bool
	notify chan struct{}
}

func (r *Reader) Name() string { return r.name }

// Notify reports "something may be queued". The channel is closed when the
// writer side shuts down; receive once more and drain to catch stragglers.
func (r *Reader) Notify() <-chan struct{} {
	return r.notify
}

// Drain returns everything currently queued without blocking.
func (r *Reader) Drain() []Item {
	r.mu.Lock()
	defer r.mu.Unlock()
	items := r.queue
	r.queue = nil
	return items
}

func (r *Reader) push(it Item) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.queue = append(r.queue, it)

	// Holding mu here keeps the send ordered before any close(r.notify).
	select {
	case r.notify <- struct{}{}:
	default: // a wake-up is already pending; coalesce
	}
}

func (r *Reader) close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.closed = true
	close(r.notify)
}
