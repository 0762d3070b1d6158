// Copyright 2025 gnssmux contributors
// SPDX-License-Identifier: GPL-3.0-or-later

// Package transport abstracts the byte source a stream reader drains:
// a serial line, a TCP/UDP socket, or a replayed capture file. All
// variants share one contract: Read returns within a bounded wait and
// reports a timeout as (0, nil), so the caller can poll its stop flag.
// Only the file variant ever returns io.EOF; a quiet live source is
// "no data yet", never "no more data".
package transport

// Kind identifies the transport variant behind a handle.
type Kind int

const (
	KindSerial Kind = iota
	KindSocket
	KindFile
)

func (k Kind) String() string {
	switch k {
	case KindSerial:
		return "serial"
	case KindSocket:
		return "socket"
	case KindFile:
		return "file"
	default:
		return "unknown"
	}
}

// Transport is the uniform handle over serial/socket/file sources.
type Transport interface {
	// Read fills p with whatever is available, waiting at most the
	// handle's configured read timeout. A timeout is (0, nil).
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	Close() error
	Kind() Kind
}
