// Copyright 2025 gnssmux contributors
// SPDX-License-Identifier: GPL-3.0-or-later

package transport

import (
	"errors"
	"fmt"
	"net"
	"time"
)

// NetworkSocket is a GNSS feed reached over TCP or UDP, e.g. a receiver's
// network port or an upstream relay.
type NetworkSocket struct {
	conn        net.Conn
	readTimeout time.Duration
}

// DialSocket connects to addr over network ("tcp" or "udp"). Each Read
// waits at most readTimeout; deadline expiry surfaces as (0, nil) so the
// caller can keep polling a live but quiet source.
func DialSocket(network, addr string, readTimeout time.Duration) (*NetworkSocket, error) {
	conn, err := net.DialTimeout(network, addr, 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("transport.DialSocket: %w", err)
	}
	return &NetworkSocket{conn: conn, readTimeout: readTimeout}, nil
}

// NewSocket wraps an already-established connection, mainly for tests.
func NewSocket(conn net.Conn, readTimeout time.Duration) *NetworkSocket {
	return &NetworkSocket{conn: conn, readTimeout: readTimeout}
}

func (s *NetworkSocket) Read(p []byte) (int, error) {
	if err := s.conn.SetReadDeadline(time.Now().Add(s.readTimeout)); err != nil {
		return 0, fmt.Errorf("transport/NetworkSocket.Read: %w", err)
	}

	n, err := s.conn.Read(p)
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return n, nil
	}
	return n, err
}

func (s *NetworkSocket) Write(p []byte) (int, error) {
	return s.conn.Write(p)
}

func (s *NetworkSocket) Close() error {
	if err := s.conn.Close(); err != nil {
		return fmt.Errorf("transport/NetworkSocket.Close: %w", err)
	}
	return nil
}

func (s *NetworkSocket) Kind() Kind { return KindSocket }
