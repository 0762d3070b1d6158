// Copyright 2025 gnssmux contributors
// SPDX-License-Identifier: GPL-3.0-or-later

package frame

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeNMEA(t *testing.T) {
	var dec CRCDecoder

	tables := []struct {
		raw       string
		wantIdent string
		wantErr   string
	}{
		{"$GPGLL,0000.00000,N,00000.00000,E,070254.000,V,N*45\r\n", "GPGLL", ""},
		{"$GNGSA,A,1,,,,,,,,,,,,,99.0,99.0,99.0*1e\r\n", "GNGSA", ""}, // lowercase hex is valid
		{"$GPGLL,0000.00000,N,00000.00000,E,070254.000,V,N*46\r\n", "", "checksum mismatch"},
		{"$GPGLL,0000.00000,N\r\n", "", "missing checksum"},
	}

	for _, table := range tables {
		msg, err := dec.Decode([]byte(table.raw), NMEA)
		if table.wantErr == "" {
			require.NoErrorf(t, err, "raw: %q", table.raw)
			assert.Equal(t, table.wantIdent, msg.Ident)
			assert.Equal(t, NMEA, msg.Protocol)
			continue
		}
		var derr *DecodeError
		require.ErrorAsf(t, err, &derr, "raw: %q", table.raw)
		assert.Contains(t, derr.Reason, table.wantErr)
		assert.Equal(t, []byte(table.raw), msg.Raw, "raw bytes survive a decoder rejection")
	}
}

func TestDecodeUBX(t *testing.T) {
	var dec CRCDecoder

	fr := makeUBX(0x01, 0x07, []byte{0x01, 0x02, 0x03, 0x04})
	msg, err := dec.Decode(fr, UBX)
	require.NoError(t, err)
	assert.Equal(t, "UBX-01-07", msg.Ident)

	bad := append([]byte{}, fr...)
	bad[len(bad)-1] ^= 0xFF
	_, err = dec.Decode(bad, UBX)
	var derr *DecodeError
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, UBX, derr.Protocol)
}

func TestDecodeRTCM(t *testing.T) {
	var dec CRCDecoder

	// Message type 1005 occupies the first 12 payload bits.
	fr := makeRTCM([]byte{0x3E, 0xD0, 0x00, 0x00})
	msg, err := dec.Decode(fr, RTCM3)
	require.NoError(t, err)
	assert.Equal(t, "RTCM-1005", msg.Ident)

	bad := append([]byte{}, fr...)
	bad[3] ^= 0x01
	_, err = dec.Decode(bad, RTCM3)
	var derr *DecodeError
	require.ErrorAs(t, err, &derr)
	assert.Contains(t, derr.Reason, "CRC24Q")
}

func TestCRC24QKnownVector(t *testing.T) {
	assert.Equal(t, uint32(0x05BA2F), crc24q([]byte{0xD3, 0x00, 0x04, 0x3E, 0xD0, 0x00, 0x00}))
}
