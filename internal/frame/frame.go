// Copyright 2025 gnssmux contributors
// SPDX-License-Identifier: GPL-3.0-or-later

// Package frame carves complete NMEA, UBX and RTCM3 frames out of a raw
// GNSS byte stream. The scanner only cares about framing (sync pattern and
// declared length); content validation is the decoder's job.
package frame

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strings"
)

// Protocol tags the wire format of an extracted frame.
type Protocol int

const (
	Unknown Protocol = iota
	NMEA
	UBX
	RTCM3
)

func (p Protocol) String() string {
	switch p {
	case NMEA:
		return "NMEA"
	case UBX:
		return "UBX"
	case RTCM3:
		return "RTCM3"
	default:
		return "Unknown"
	}
}

// Mask selects which protocols a reader forwards downstream.
type Mask uint8

const (
	MaskNMEA Mask = 1 << iota
	MaskUBX
	MaskRTCM3

	MaskAll = MaskNMEA | MaskUBX | MaskRTCM3
)

// ParseMask builds a Mask from protocol names ("nmea", "ubx", "rtcm3").
// An empty list selects everything.
func ParseMask(names []string) (Mask, error) {
	if len(names) == 0 {
		return MaskAll, nil
	}
	var m Mask
	for _, n := range names {
		switch strings.ToLower(n) {
		case "nmea":
			m |= MaskNMEA
		case "ubx":
			m |= MaskUBX
		case "rtcm3":
			m |= MaskRTCM3
		default:
			return 0, fmt.Errorf("frame.ParseMask: unknown protocol %q", n)
		}
	}
	return m, nil
}

func (m Mask) Has(p Protocol) bool {
	switch p {
	case NMEA:
		return m&MaskNMEA != 0
	case UBX:
		return m&MaskUBX != 0
	case RTCM3:
		return m&MaskRTCM3 != 0
	default:
		return false
	}
}

// Message is a decoded view of one raw frame. Ident carries the decoder's
// identifier for the frame (sentence type, UBX class/id, RTCM message
// number); it is empty when the decoder rejected the content.
type Message struct {
	Protocol Protocol
	Ident    string
	Raw      []byte
}

// UBX frame layout: 2 sync bytes, class, id, 2-byte little-endian payload
// length, payload, 2-byte checksum.
const (
	ubxSync1      = 0xB5
	ubxSync2      = 0x62
	ubxHeaderLen  = 6
	ubxTrailerLen = 2
)

// RTCM3 frame layout: 0xD3, 6 reserved zero bits + 10-bit payload length,
// payload, 3-byte CRC24Q.
const (
	rtcmSync       = 0xD3
	rtcmLeaderLen  = 3
	rtcmTrailerLen = 3
)

// Scan extracts the next complete frame from buf.
//
// It returns the frame bytes (a sub-slice of buf), the frame's protocol,
// and the number of leading bytes of buf consumed, covering any skipped
// noise plus the frame itself. When buf holds no complete frame, Scan
// returns a nil frame and consumed covers only bytes that can never start
// one; the caller keeps the rest and rescans after appending more input.
//
// An unrecognized byte at the cursor is skipped one byte at a time, so
// repeated calls always make forward progress.
func Scan(buf []byte) (fr []byte, p Protocol, consumed int) {
	i := 0
	for i < len(buf) {
		switch buf[i] {
		case '$', '!':
			end := indexCRLF(buf, i)
			if end < 0 {
				return nil, NMEA, i
			}
			return buf[i:end], NMEA, end

		case ubxSync1:
			if i+2 > len(buf) {
				return nil, UBX, i
			}
			if buf[i+1] != ubxSync2 {
				i++
				continue
			}
			if i+ubxHeaderLen > len(buf) {
				return nil, UBX, i
			}
			n := ubxHeaderLen + int(binary.LittleEndian.Uint16(buf[i+4:i+6])) + ubxTrailerLen
			if i+n > len(buf) {
				return nil, UBX, i
			}
			return buf[i : i+n], UBX, i + n

		case rtcmSync:
			if i+rtcmLeaderLen > len(buf) {
				return nil, RTCM3, i
			}
			if buf[i+1]&0xFC != 0 {
				i++
				continue
			}
			n := rtcmLeaderLen + int(buf[i+1]&0x03)<<8 + int(buf[i+2]) + rtcmTrailerLen
			if i+n > len(buf) {
				return nil, RTCM3, i
			}
			return buf[i : i+n], RTCM3, i + n

		default:
			i++
		}
	}
	return nil, Unknown, i
}

var crlf = []byte{'\r', '\n'}

// indexCRLF returns the index one past the CRLF terminating the sentence
// that starts at from, or -1 if buf holds no terminator yet.
func indexCRLF(buf []byte, from int) int {
	if n := bytes.Index(buf[from:], crlf); n >= 0 {
		return from + n + 2
	}
	return -1
}
