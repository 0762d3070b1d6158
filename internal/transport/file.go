// Copyright 2025 gnssmux contributors
// SPDX-License-Identifier: GPL-3.0-or-later

package transport

import (
	"fmt"
	"os"
)

// FileReplay feeds a previously captured stream back through the pipeline.
// Unlike the live transports it has a real end: Read returns io.EOF when
// the capture is exhausted, which the stream reader surfaces as a clean
// end-of-stream, not an error.
type FileReplay struct {
	f *os.File
}

func OpenFileReplay(path string) (*FileReplay, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("transport.OpenFileReplay: %w", err)
	}
	return &FileReplay{f: f}, nil
}

func (r *FileReplay) Read(p []byte) (int, error) {
	return r.f.Read(p)
}

// Write is part of the Transport contract but a replayed capture is not
// writable; receiver-bound commands are silently discarded.
func (r *FileReplay) Write(p []byte) (int, error) {
	return len(p), nil
}

func (r *FileReplay) Close() error {
	if err := r.f.Close(); err != nil {
		return fmt.Errorf("transport/FileReplay.Close: %w", err)
	}
	return nil
}

func (r *FileReplay) Kind() Kind { return KindFile }
