// Copyright 2025 gnssmux contributors
// SPDX-License-Identifier: GPL-3.0-or-later

package server

import (
	"bufio"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// ErrUnauthorized reports an NTRIP request without acceptable Basic-auth
// credentials; the connection gets a 403 and is closed.
var ErrUnauthorized = errors.New("server: unauthorized ntrip request")

const (
	handshakeTimeout = 10 * time.Second
	maxRequestLine   = 4096

	serverAgent  = "NTRIP gnssmux/1.0"
	ntripVersion = "Ntrip/2.0"
)

// ntripRequest is the one HTTP-like request a caster client opens with.
type ntripRequest struct {
	mountpoint string
	authHeader string
}

// handshake reads and answers the client's NTRIP request. It returns true
// only when the client may proceed to streaming.
func (s *Server) handshake(conn net.Conn) bool {
	conn.SetReadDeadline(time.Now().Add(handshakeTimeout))
	defer conn.SetReadDeadline(time.Time{})

	req, err := readRequest(conn)
	if err != nil {
		log.Debug().Err(err).Str("remote", conn.RemoteAddr().String()).Msg("bad ntrip request")
		return false
	}

	if !s.authorize(req.authHeader) {
		log.Warn().Err(ErrUnauthorized).Str("remote", conn.RemoteAddr().String()).Msg("ntrip request rejected")
		conn.Write([]byte("HTTP/1.1 403 Forbidden\r\nConnection: close\r\n\r\n"))
		return false
	}

	if req.mountpoint == "" || req.mountpoint != s.cfg.Mountpoint {
		log.Info().Str("remote", conn.RemoteAddr().String()).Str("mountpoint", req.mountpoint).
			Msg("serving sourcetable")
		conn.Write(s.sourcetable())
		return false
	}

	// NTRIP rev1 stream acknowledgment, then raw corrections.
	if _, err := conn.Write([]byte("ICY 200 OK\r\n\r\n")); err != nil {
		return false
	}
	log.Info().Str("remote", conn.RemoteAddr().String()).Str("mountpoint", req.mountpoint).
		Msg("ntrip client streaming")
	return true
}

// readRequest parses the request line and headers of a caster request:
//
//	GET /MOUNTPOINT HTTP/1.1
//	Authorization: Basic <base64(user:pass)>
func readRequest(conn net.Conn) (ntripRequest, error) {
	var req ntripRequest

	r := bufio.NewReaderSize(conn, maxRequestLine)
	line, err := r.ReadString('\n')
	if err != nil {
		return req, fmt.Errorf("server.readRequest: %w", err)
	}

	fields := strings.Fields(strings.TrimSpace(line))
	if len(fields) != 3 || fields[0] != "GET" || !strings.HasPrefix(fields[2], "HTTP/") {
		return req, fmt.Errorf("server.readRequest: malformed request line %q", strings.TrimSpace(line))
	}
	req.mountpoint = strings.TrimPrefix(fields[1], "/")

	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return req, fmt.Errorf("server.readRequest: %w", err)
		}
		line = strings.TrimSpace(line)
		if line == "" {
			break
		}
		if k, v, ok := strings.Cut(line, ":"); ok && strings.EqualFold(strings.TrimSpace(k), "Authorization") {
			req.authHeader = strings.TrimSpace(v)
		}
	}
	return req, nil
}

// authorize checks the Basic-auth header against the credentials captured
// at construction. Missing credentials disable authorization entirely.
// The comparison is constant-time; cheap enough even for a local caster.
func (s *Server) authorize(header string) bool {
	if s.user == "" || s.pass == "" {
		return false
	}

	scheme, enc, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Basic") {
		return false
	}
	plain, err := base64.StdEncoding.DecodeString(strings.TrimSpace(enc))
	if err != nil {
		return false
	}
	user, pass, ok := strings.Cut(string(plain), ":")
	if !ok {
		return false
	}

	userOK := subtle.ConstantTimeCompare([]byte(user), []byte(s.user)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(pass), []byte(s.pass)) == 1
	return userOK && passOK
}

// sourcetable renders the caster's directory: one STR record per virtual
// mountpoint, terminated by ENDSOURCETABLE.
func (s *Server) sourcetable() []byte {
	str := fmt.Sprintf("STR;%s;%s;%s;;2;GPS+GLO+GAL+BDS;%s;%s;%.2f;%.2f;0;0;gnssmux;none;B;N;0;\r\n",
		s.cfg.Mountpoint, s.cfg.Mountpoint, s.cfg.Format,
		s.cfg.Network, s.cfg.Country, s.cfg.Lat, s.cfg.Lon)
	body := str + "ENDSOURCETABLE\r\n"

	var b strings.Builder
	b.WriteString("HTTP/1.1 200 OK\r\n")
	b.WriteString("Ntrip-Version: " + ntripVersion + "\r\n")
	b.WriteString("Server: " + serverAgent + "\r\n")
	b.WriteString("Date: " + time.Now().UTC().Format("Mon, 02 Jan 2006 15:04:05 GMT") + "\r\n")
	b.WriteString("Content-Type: gnss/sourcetable\r\n")
	b.WriteString(fmt.Sprintf("Content-Length: %d\r\n", len(body)))
	b.WriteString("Connection: close\r\n\r\n")
	b.WriteString(body)
	return []byte(b.String())
}
