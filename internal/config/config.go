// Copyright 2025 gnssmux contributors
// SPDX-License-Identifier: GPL-3.0-or-later

package config

import (
	"fmt"
	"os"

	toml "github.com/pelletier/go-toml"
)

type Config struct {
	// Connection selects the transport: "serial", "tcp", "udp" or "file".
	Connection string `toml:"connection"`

	DevicePath string `toml:"device_path"`
	BaudRate   int    `toml:"device_baud_rate"`

	RemoteAddr string `toml:"remote_addr"`

	ReplayPath       string `toml:"replay_path"`
	ReplayIntervalMs int    `toml:"replay_interval_ms"`

	ReadTimeoutMs int `toml:"read_timeout_ms"`

	// Protocols forwarded downstream; empty means all of
	// "nmea", "ubx", "rtcm3".
	Protocols []string `toml:"protocols"`

	// RecordPath, when set, appends the raw feed to a capture file.
	RecordPath string `toml:"record_path"`

	Server Server `toml:"server"`
}

type Server struct {
	Enable     bool    `toml:"enable"`
	BindHost   string  `toml:"bind_host"`
	BindPort   int     `toml:"bind_port"`
	MaxClients int     `toml:"max_clients"`
	Mode       string  `toml:"mode"` // "open" or "ntrip"
	Mountpoint string  `toml:"mountpoint"`
	Format     string  `toml:"format"`
	Network    string  `toml:"network"`
	Country    string  `toml:"country"`
	Lat        float64 `toml:"lat"`
	Lon        float64 `toml:"lon"`
	UserEnv    string  `toml:"user_env"`
	PassEnv    string  `toml:"pass_env"`
}

func Parse(file string) (c *Config, err error) {
	contents, err := os.ReadFile(file)
	if err != nil {
		err = fmt.Errorf("config.Parse(): %w", err)
		return
	}

	c = &Config{}

	if err = toml.Unmarshal(contents, c); err != nil {
		err = fmt.Errorf("config.Parse(): %w", err)
		return
	}

	err = c.validate()
	return
}

func (c *Config) validate() error {
	switch c.Connection {
	case "serial":
		if c.DevicePath == "" {
			return fmt.Errorf("config: device_path is required for connection = \"serial\"")
		}
		if c.BaudRate == 0 {
			c.BaudRate = 9600
		}
	case "tcp", "udp":
		if c.RemoteAddr == "" {
			return fmt.Errorf("config: remote_addr is required for connection = %q", c.Connection)
		}
	case "file":
		if c.ReplayPath == "" {
			return fmt.Errorf("config: replay_path is required for connection = \"file\"")
		}
		if c.ReplayIntervalMs <= 0 {
			c.ReplayIntervalMs = 20
		}
	default:
		return fmt.Errorf("config: unknown connection type %q", c.Connection)
	}

	if c.ReadTimeoutMs <= 0 {
		c.ReadTimeoutMs = 200
	}

	s := &c.Server
	if !s.Enable {
		return nil
	}
	if s.BindHost == "" {
		s.BindHost = "0.0.0.0"
	}
	if s.BindPort == 0 {
		s.BindPort = 2101
	}
	if s.MaxClients <= 0 {
		s.MaxClients = 5
	}
	switch s.Mode {
	case "", "open":
		s.Mode = "open"
	case "ntrip":
		if s.Mountpoint == "" {
			return fmt.Errorf("config: server.mountpoint is required for mode = \"ntrip\"")
		}
	default:
		return fmt.Errorf("config: unknown server mode %q", s.Mode)
	}
	return nil
}
