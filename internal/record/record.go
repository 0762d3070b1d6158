// Copyright 2025 gnssmux contributors
// SPDX-License-Identifier: GPL-3.0-or-later

// Package record appends the raw frame feed to a capture file that the
// file-replay transport can later play back.
package record

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/rs/zerolog/log"

	"gitlab.com/navtools/gnssmux/internal/distrib"
)

// Writer drains its own tee of the distribution channel onto disk. A write
// failure stops this consumer only; the rest of the fan-out is unaffected.
type Writer struct {
	f    *os.File
	feed *distrib.Reader

	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

func New(path string, feed *distrib.Reader) (*Writer, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("record.New: %w", err)
	}

	return &Writer{
		f:    f,
		feed: feed,
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}, nil
}

// Start spawns the drain loop.
func (w *Writer) Start() {
	go w.run()
}

func (w *Writer) run() {
	defer close(w.done)
	for {
		select {
		case <-w.stop:
			w.flush()
			return
		case _, ok := <-w.feed.Notify():
			if !w.flush() {
				return
			}
			if !ok {
				return
			}
		}
	}
}

func (w *Writer) flush() bool {
	for _, it := range w.feed.Drain() {
		if _, err := w.f.Write(it.Raw); err != nil {
			log.Error().Err(err).Str("path", w.f.Name()).Msg("recorder write failed, stopping recorder")
			return false
		}
	}
	return true
}

// Close stops the drain loop, waits for it, and closes the file.
// Closing twice is safe.
func (w *Writer) Close() error {
	w.stopOnce.Do(func() { close(w.stop) })
	<-w.done
	if err := w.f.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
		return fmt.Errorf("record/Writer.Close: %w", err)
	}
	return nil
}
