// Copyright 2025 gnssmux contributors
// SPDX-License-Identifier: GPL-3.0-or-later

// Package nmea builds and checksums NMEA 0183 sentences.
package nmea

import "fmt"

type Sentence struct {
	Type string
	Data []string
}

// Checksum returns the two-digit hex XOR checksum over the sentence body,
// the part between the '$'/'!' delimiter and the '*'.
func Checksum(body string) string {
	var sum uint8
	for i := 0; i < len(body); i++ {
		sum ^= body[i]
	}

	return fmt.Sprintf("%02X", sum)
}

func (s Sentence) String() string {
	sentence := s.Type
	for _, d := range s.Data {
		sentence = fmt.Sprintf("%s,%s", sentence, d)
	}

	if len(s.Data) == 0 {
		// always make sure the type is followed by a comma if there is no data
		sentence = fmt.Sprintf("%s,", sentence)
	}

	return fmt.Sprintf("$%s*%s", sentence, Checksum(sentence))
}

func (s Sentence) Bytes() []byte {
	return []byte(s.String())
}
