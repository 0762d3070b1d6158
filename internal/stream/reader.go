// Copyright 2025 gnssmux contributors
// SPDX-License-Identifier: GPL-3.0-or-later

// Package stream runs the read loop that turns a transport's byte stream
// into framed messages on the distribution channel.
package stream

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"gitlab.com/navtools/gnssmux/internal/distrib"
	"gitlab.com/navtools/gnssmux/internal/frame"
	"gitlab.com/navtools/gnssmux/internal/status"
	"gitlab.com/navtools/gnssmux/internal/transport"
)

// Event is the reason a reader's loop terminated.
type Event int

const (
	EventStopped Event = iota
	EventEndOfStream
	EventTransportError
)

func (e Event) String() string {
	switch e {
	case EventEndOfStream:
		return "end of stream"
	case EventTransportError:
		return "transport error"
	default:
		return "stopped"
	}
}

// Notice is emitted exactly once when the loop terminates. Err is non-nil
// only for EventTransportError.
type Notice struct {
	Event Event
	Err   error
}

// reader lifecycle states
const (
	stateIdle int32 = iota
	stateRunning
	stateStopped
)

// Reader owns one transport and carves frames out of its byte stream. At
// most one loop ever runs per Reader; Start a fresh Reader for each
// connect cycle.
type Reader struct {
	tr      transport.Transport
	dec     frame.Decoder
	out     *distrib.Channel
	tracker *status.Tracker

	mask   frame.Mask
	pacing time.Duration // between reads on file replay

	state    atomic.Int32
	stop     chan struct{}
	stopOnce sync.Once
	done     chan Notice
}

// Options tune a Reader beyond its required collaborators.
type Options struct {
	// Mask selects the protocols forwarded downstream. Zero means all.
	Mask frame.Mask
	// Pacing is the artificial delay between file-replay reads.
	Pacing time.Duration
}

func New(tr transport.Transport, dec frame.Decoder, out *distrib.Channel, tracker *status.Tracker, opts Options) *Reader {
	if opts.Mask == 0 {
		opts.Mask = frame.MaskAll
	}
	return &Reader{
		tr:      tr,
		dec:     dec,
		out:     out,
		tracker: tracker,
		mask:    opts.Mask,
		pacing:  opts.Pacing,
		stop:    make(chan struct{}),
		done:    make(chan Notice, 1),
	}
}

// Start spawns the read loop. Starting a Reader that already ran returns
// an error.
func (r *Reader) Start() error {
	if !r.state.CompareAndSwap(stateIdle, stateRunning) {
		return fmt.Errorf("stream/Reader.Start: reader already started")
	}

	r.tracker.Set(connectedStatus(r.tr.Kind()))
	go r.loop()
	return nil
}

// Stop asks the loop to terminate; it returns without waiting. Stopping a
// stopped or never-started Reader is a no-op.
func (r *Reader) Stop() {
	r.stopOnce.Do(func() { close(r.stop) })
}

// Done delivers the single termination Notice.
func (r *Reader) Done() <-chan Notice {
	return r.done
}

func (r *Reader) loop() {
	var buf []byte
	chunk := make([]byte, 4096)

	for {
		select {
		case <-r.stop:
			r.finish(Notice{Event: EventStopped})
			return
		default:
		}

		n, err := r.tr.Read(chunk)
		if n > 0 {
			buf = append(buf, chunk[:n]...)
			buf = r.dispatch(buf)
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				r.finish(Notice{Event: EventEndOfStream})
			} else {
				r.finish(Notice{Event: EventTransportError, Err: err})
			}
			return
		}

		if r.tr.Kind() == transport.KindFile && r.pacing > 0 {
			select {
			case <-r.stop:
				r.finish(Notice{Event: EventStopped})
				return
			case <-time.After(r.pacing):
			}
		}
	}
}

// dispatch extracts every complete frame from buf, publishes it, and
// returns the unconsumed remainder.
func (r *Reader) dispatch(buf []byte) []byte {
	for {
		fr, p, consumed := frame.Scan(buf)
		if fr == nil {
			// Trim the noise the scanner gave up on; keep the partial tail.
			return append(buf[:0], buf[consumed:]...)
		}

		raw := make([]byte, len(fr))
		copy(raw, fr)

		msg, err := r.dec.Decode(raw, p)
		if err != nil {
			// Content rejected, framing fine: diagnostic only, raw still flows.
			log.Debug().Err(err).Str("protocol", p.String()).Int("len", len(raw)).
				Msg("frame rejected by decoder")
		}

		if r.mask.Has(p) {
			r.out.Publish(distrib.Item{Raw: raw, Msg: msg})
		}
		buf = buf[consumed:]
	}
}

// finish runs exactly once per loop: one status transition, one notice.
func (r *Reader) finish(n Notice) {
	r.state.Store(stateStopped)
	if err := r.tr.Close(); err != nil {
		log.Debug().Err(err).Msg("transport close")
	}
	r.tracker.Set(status.Disconnected)

	switch n.Event {
	case EventTransportError:
		log.Error().Err(n.Err).Msg("stream reader terminated")
	default:
		log.Info().Str("cause", n.Event.String()).Msg("stream reader terminated")
	}
	r.done <- n
}

func connectedStatus(k transport.Kind) status.Status {
	switch k {
	case transport.KindFile:
		return status.ConnectedFile
	case transport.KindSocket:
		return status.ConnectedSocket
	default:
		return status.Connected
	}
}
