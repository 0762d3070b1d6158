// Copyright 2025 gnssmux contributors
// SPDX-License-Identifier: GPL-3.0-or-later

package server

import (
	"bufio"
	"encoding/base64"
	"io"
	"net"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gitlab.com/navtools/gnssmux/internal/distrib"
)

func basicAuth(user, pass string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(user+":"+pass))
}

func TestAuthorize(t *testing.T) {
	tables := []struct {
		name   string
		user   string
		pass   string
		header string
		want   bool
	}{
		{"valid", "caster", "secret", basicAuth("caster", "secret"), true},
		{"wrong password", "caster", "secret", basicAuth("caster", "nope"), false},
		{"wrong user", "caster", "secret", basicAuth("nope", "secret"), false},
		{"missing header", "caster", "secret", "", false},
		{"not basic", "caster", "secret", "Bearer abc", false},
		{"bad base64", "caster", "secret", "Basic !!!", false},
		{"no credentials configured", "", "", basicAuth("caster", "secret"), false},
	}

	for _, table := range tables {
		t.Run(table.name, func(t *testing.T) {
			s := &Server{user: table.user, pass: table.pass}
			assert.Equal(t, table.want, s.authorize(table.header))
		})
	}
}

func TestReadRequest(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	go func() {
		client.Write([]byte("GET /BASE1 HTTP/1.1\r\nUser-Agent: NTRIP test\r\nAuthorization: Basic abc=\r\n\r\n"))
	}()

	req, err := readRequest(server)
	require.NoError(t, err)
	assert.Equal(t, "BASE1", req.mountpoint)
	assert.Equal(t, "Basic abc=", req.authHeader)
}

func TestReadRequestMalformed(t *testing.T) {
	for _, raw := range []string{
		"POST /BASE1 HTTP/1.1\r\n\r\n",
		"GET /BASE1\r\n\r\n",
		"garbage\r\n\r\n",
	} {
		client, server := net.Pipe()
		go func() { client.Write([]byte(raw)); client.Close() }()
		_, err := readRequest(server)
		assert.Errorf(t, err, "raw: %q", raw)
		server.Close()
	}
}

func TestSourcetableFormat(t *testing.T) {
	s := New(Config{
		Mountpoint: "BASE1",
		Format:     "RTCM 3.2",
		Network:    "LOCAL",
		Country:    "DEU",
		Lat:        52.52,
		Lon:        13.41,
	}, distrib.New().Tee("server"))

	table := string(s.sourcetable())
	assert.True(t, strings.HasPrefix(table, "HTTP/1.1 200 OK\r\n"))
	assert.Contains(t, table, "Content-Type: gnss/sourcetable\r\n")
	assert.Contains(t, table, "Ntrip-Version: Ntrip/2.0\r\n")
	assert.Contains(t, table, "STR;BASE1;BASE1;RTCM 3.2;;2;GPS+GLO+GAL+BDS;LOCAL;DEU;52.52;13.41;")
	assert.True(t, strings.HasSuffix(table, "ENDSOURCETABLE\r\n"))

	// Content-Length must cover the exact body.
	_, body, found := strings.Cut(table, "\r\n\r\n")
	require.True(t, found)
	assert.Contains(t, table, "Content-Length: "+strconv.Itoa(len(body))+"\r\n")
}

// startNTRIP spins up an NTRIP-mode server over a fresh feed and returns
// it with its distribution channel.
func startNTRIP(t *testing.T, cfg Config) (*Server, *distrib.Channel) {
	t.Helper()
	ch := distrib.New()
	cfg.Addr = "127.0.0.1:0"
	cfg.Mode = ModeNTRIP
	srv := New(cfg, ch.Tee("server"))
	require.NoError(t, srv.Start())
	t.Cleanup(srv.Shutdown)
	t.Cleanup(ch.Close)
	return srv, ch
}

func request(t *testing.T, addr net.Addr, raw string) string {
	t.Helper()
	conn, err := net.Dial("tcp", addr.String())
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte(raw))
	require.NoError(t, err)

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var sb strings.Builder
	r := bufio.NewReader(conn)
	buf := make([]byte, 1024)
	for {
		n, err := r.Read(buf)
		sb.Write(buf[:n])
		if err != nil {
			break
		}
	}
	return sb.String()
}

func TestNTRIPWithoutCredentialsRejectsEverything(t *testing.T) {
	// The env vars are deliberately left unset: authorization is disabled
	// and every request is unauthorized.
	srv, _ := startNTRIP(t, Config{
		Mountpoint: "BASE1",
		UserEnv:    "GNSSMUX_TEST_NO_USER",
		PassEnv:    "GNSSMUX_TEST_NO_PASS",
	})

	resp := request(t, srv.Addr(), "GET /BASE1 HTTP/1.1\r\n"+
		"Authorization: "+basicAuth("caster", "secret")+"\r\n\r\n")
	assert.True(t, strings.HasPrefix(resp, "HTTP/1.1 403 Forbidden\r\n"), "got: %q", resp)
}

func TestNTRIPSourcetableForEmptyPath(t *testing.T) {
	t.Setenv("GNSSMUX_TEST_USER", "caster")
	t.Setenv("GNSSMUX_TEST_PASS", "secret")

	srv, _ := startNTRIP(t, Config{
		Mountpoint: "BASE1",
		UserEnv:    "GNSSMUX_TEST_USER",
		PassEnv:    "GNSSMUX_TEST_PASS",
	})

	resp := request(t, srv.Addr(), "GET / HTTP/1.1\r\n"+
		"Authorization: "+basicAuth("caster", "secret")+"\r\n\r\n")
	assert.True(t, strings.HasPrefix(resp, "HTTP/1.1 200 OK\r\n"), "got: %q", resp)
	assert.True(t, strings.HasSuffix(resp, "ENDSOURCETABLE\r\n"), "got: %q", resp)
}

func TestNTRIPUnknownMountpointGetsSourcetable(t *testing.T) {
	t.Setenv("GNSSMUX_TEST_USER", "caster")
	t.Setenv("GNSSMUX_TEST_PASS", "secret")

	srv, _ := startNTRIP(t, Config{
		Mountpoint: "BASE1",
		UserEnv:    "GNSSMUX_TEST_USER",
		PassEnv:    "GNSSMUX_TEST_PASS",
	})

	resp := request(t, srv.Addr(), "GET /NOWHERE HTTP/1.1\r\n"+
		"Authorization: "+basicAuth("caster", "secret")+"\r\n\r\n")
	assert.Contains(t, resp, "STR;BASE1;")
	assert.True(t, strings.HasSuffix(resp, "ENDSOURCETABLE\r\n"))
}

func TestNTRIPMountpointStreams(t *testing.T) {
	t.Setenv("GNSSMUX_TEST_USER", "caster")
	t.Setenv("GNSSMUX_TEST_PASS", "secret")

	srv, ch := startNTRIP(t, Config{
		Mountpoint: "BASE1",
		UserEnv:    "GNSSMUX_TEST_USER",
		PassEnv:    "GNSSMUX_TEST_PASS",
	})

	conn, err := net.Dial("tcp", srv.Addr().String())
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte("GET /BASE1 HTTP/1.1\r\n" +
		"Authorization: " + basicAuth("caster", "secret") + "\r\n\r\n"))
	require.NoError(t, err)

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	r := bufio.NewReader(conn)
	ack, err := r.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "ICY 200 OK\r\n", ack)
	blank, err := r.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "\r\n", blank)

	waitForStreaming(t, srv, 1)
	ch.Publish(distrib.Item{Raw: []byte{0xD3, 0x00, 0x01}})

	got := make([]byte, 3)
	_, err = io.ReadFull(r, got)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xD3, 0x00, 0x01}, got)
}
