// Copyright 2025 gnssmux contributors
// SPDX-License-Identifier: GPL-3.0-or-later

package transport

import (
	"fmt"
	"time"

	"go.bug.st/serial"
)

// SerialLine is a GNSS receiver attached over a serial interface, e.g.
// /dev/ttyACM0 or /dev/ttyUSB0.
type SerialLine struct {
	path string
	port serial.Port
}

func OpenSerial(path string, baud int, readTimeout time.Duration) (*SerialLine, error) {
	port, err := serial.Open(path, &serial.Mode{BaudRate: baud})
	if err != nil {
		return nil, fmt.Errorf("transport.OpenSerial: %w", err)
	}

	if err := port.SetReadTimeout(readTimeout); err != nil {
		port.Close()
		return nil, fmt.Errorf("transport.OpenSerial: %w", err)
	}

	return &SerialLine{path: path, port: port}, nil
}

// Read returns (0, nil) when the read timeout elapses with no data, which
// is the library's behavior with a timeout set.
func (s *SerialLine) Read(p []byte) (int, error) {
	return s.port.Read(p)
}

func (s *SerialLine) Write(p []byte) (int, error) {
	return s.port.Write(p)
}

func (s *SerialLine) Close() error {
	if err := s.port.Close(); err != nil {
		return fmt.Errorf("transport/SerialLine.Close: %w", err)
	}
	return nil
}

func (s *SerialLine) Kind() Kind { return KindSerial }
