// Copyright 2025 gnssmux contributors
// SPDX-License-Identifier: GPL-3.0-or-later

package frame

import (
	"bytes"
	"fmt"
	"strings"

	"gitlab.com/navtools/gnssmux/internal/nmea"
)

// Decoder turns a raw frame into a Message. A returned error means the
// decoder rejected the content; the raw bytes are still well-formed at the
// framing level and keep flowing downstream.
type Decoder interface {
	Decode(raw []byte, p Protocol) (Message, error)
}

// DecodeError reports a frame whose syntax scanned fine but whose content
// the decoder rejected. It never terminates the stream.
type DecodeError struct {
	Protocol Protocol
	Reason   string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("frame.Decode: %s: %s", e.Protocol, e.Reason)
}

// CRCDecoder is the built-in decoder: it validates each frame's integrity
// check and extracts a short identifier. Semantic payload decode stays with
// external tooling.
type CRCDecoder struct{}

func (CRCDecoder) Decode(raw []byte, p Protocol) (Message, error) {
	switch p {
	case NMEA:
		return decodeNMEA(raw)
	case UBX:
		return decodeUBX(raw)
	case RTCM3:
		return decodeRTCM(raw)
	default:
		return Message{Protocol: Unknown, Raw: raw}, &DecodeError{Protocol: p, Reason: "unknown protocol"}
	}
}

func decodeNMEA(raw []byte) (Message, error) {
	msg := Message{Protocol: NMEA, Raw: raw}
	body := strings.TrimRight(string(raw[1:]), "\r\n")

	star := strings.LastIndexByte(body, '*')
	if star < 0 || len(body)-star != 3 {
		return msg, &DecodeError{Protocol: NMEA, Reason: "missing checksum"}
	}
	if got := nmea.Checksum(body[:star]); !strings.EqualFold(got, body[star+1:]) {
		return msg, &DecodeError{
			Protocol: NMEA,
			Reason:   fmt.Sprintf("checksum mismatch: computed %s, sentence carries %s", got, body[star+1:]),
		}
	}

	msg.Ident = body[:star]
	if c := strings.IndexByte(msg.Ident, ','); c >= 0 {
		msg.Ident = msg.Ident[:c]
	}
	return msg, nil
}

func decodeUBX(raw []byte) (Message, error) {
	msg := Message{Protocol: UBX, Raw: raw}
	if len(raw) < ubxHeaderLen+ubxTrailerLen {
		return msg, &DecodeError{Protocol: UBX, Reason: "truncated frame"}
	}

	ckA, ckB := ubxChecksum(raw[2 : len(raw)-ubxTrailerLen])
	if raw[len(raw)-2] != ckA || raw[len(raw)-1] != ckB {
		return msg, &DecodeError{Protocol: UBX, Reason: "checksum mismatch"}
	}

	msg.Ident = fmt.Sprintf("UBX-%02X-%02X", raw[2], raw[3])
	return msg, nil
}

func decodeRTCM(raw []byte) (Message, error) {
	msg := Message{Protocol: RTCM3, Raw: raw}
	if len(raw) < rtcmLeaderLen+rtcmTrailerLen {
		return msg, &DecodeError{Protocol: RTCM3, Reason: "truncated frame"}
	}

	want := raw[len(raw)-rtcmTrailerLen:]
	got := crc24q(raw[:len(raw)-rtcmTrailerLen])
	if !bytes.Equal(want, []byte{byte(got >> 16), byte(got >> 8), byte(got)}) {
		return msg, &DecodeError{Protocol: RTCM3, Reason: "CRC24Q mismatch"}
	}

	// Message type is the first 12 payload bits.
	if len(raw) >= rtcmLeaderLen+rtcmTrailerLen+2 {
		msg.Ident = fmt.Sprintf("RTCM-%d", int(raw[3])<<4|int(raw[4])>>4)
	}
	return msg, nil
}

// ubxChecksum is the 8-bit Fletcher checksum over class, id, length and
// payload, as defined by the u-blox protocol.
func ubxChecksum(body []byte) (ckA, ckB byte) {
	for _, b := range body {
		ckA += b
		ckB += ckA
	}
	return ckA, ckB
}

// crc24q computes the CRC24Q (polynomial 0x1864CFB) used by RTCM3 trailers.
func crc24q(data []byte) uint32 {
	var crc uint32
	for _, b := range data {
		crc ^= uint32(b) << 16
		for i := 0; i < 8; i++ {
			crc <<= 1
			if crc&0x1000000 != 0 {
				crc ^= 0x1864CFB
			}
		}
	}
	return crc & 0xFFFFFF
}
