// Copyright 2025 gnssmux contributors
// SPDX-License-Identifier: GPL-3.0-or-later

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func write(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "gnssmux.conf")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0644))
	return path
}

func TestParseSerial(t *testing.T) {
	c, err := Parse(write(t, `
connection = "serial"
device_path = "/dev/ttyACM0"
device_baud_rate = 115200
protocols = ["nmea", "ubx"]

[server]
enable = true
mode = "ntrip"
mountpoint = "BASE1"
bind_port = 5000
user_env = "GNSSMUX_USER"
pass_env = "GNSSMUX_PASS"
`))
	require.NoError(t, err)
	assert.Equal(t, "serial", c.Connection)
	assert.Equal(t, "/dev/ttyACM0", c.DevicePath)
	assert.Equal(t, 115200, c.BaudRate)
	assert.Equal(t, []string{"nmea", "ubx"}, c.Protocols)
	assert.Equal(t, 200, c.ReadTimeoutMs, "read timeout defaults")

	assert.True(t, c.Server.Enable)
	assert.Equal(t, "ntrip", c.Server.Mode)
	assert.Equal(t, 5000, c.Server.BindPort)
	assert.Equal(t, 5, c.Server.MaxClients, "max clients defaults to 5")
	assert.Equal(t, "0.0.0.0", c.Server.BindHost)
}

func TestParseFileReplayDefaults(t *testing.T) {
	c, err := Parse(write(t, `
connection = "file"
replay_path = "/tmp/capture.bin"
`))
	require.NoError(t, err)
	assert.Equal(t, 20, c.ReplayIntervalMs)
	assert.False(t, c.Server.Enable)
}

func TestParseRejectsInvalid(t *testing.T) {
	tables := []struct {
		name     string
		contents string
	}{
		{"unknown connection", `connection = "carrier-pigeon"`},
		{"serial without device", `connection = "serial"`},
		{"tcp without addr", `connection = "tcp"`},
		{"file without path", `connection = "file"`},
		{"ntrip without mountpoint", `
connection = "file"
replay_path = "/tmp/x"
[server]
enable = true
mode = "ntrip"
`},
		{"unknown server mode", `
connection = "file"
replay_path = "/tmp/x"
[server]
enable = true
mode = "sideways"
`},
	}

	for _, table := range tables {
		t.Run(table.name, func(t *testing.T) {
			_, err := Parse(write(t, table.contents))
			assert.Error(t, err)
		})
	}
}

func TestParseMissingFile(t *testing.T) {
	_, err := Parse("/nonexistent/gnssmux.conf")
	assert.Error(t, err)
}
