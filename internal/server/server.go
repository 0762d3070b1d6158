// Copyright 2025 gnssmux contributors
// SPDX-License-Identifier: GPL-3.0-or-later

// Package server fans the raw frame feed out to concurrently connected TCP
// clients, either wide open or gated behind an NTRIP caster handshake.
package server

import (
	"fmt"
	"net"
	"os"
	"sync"

	"github.com/rs/zerolog/log"

	"gitlab.com/navtools/gnssmux/internal/distrib"
)

// Mode selects how an accepted client reaches the stream.
type Mode int

const (
	// ModeOpen streams to every accepted client immediately.
	ModeOpen Mode = iota
	// ModeNTRIP requires an NTRIP request: Basic auth plus a recognized
	// mountpoint; anything else gets a sourcetable or a 403.
	ModeNTRIP
)

// Config carries the server's listen and caster settings. UserEnv/PassEnv
// name the environment variables holding the caster credentials; they are
// read once at construction, and if either is unset every request is
// unauthorized.
type Config struct {
	Addr       string
	MaxClients int
	Mode       Mode

	Mountpoint string
	Format     string
	Network    string
	Country    string
	Lat        float64
	Lon        float64

	UserEnv string
	PassEnv string
}

// Server owns the listener, the slot pool, and the fan-out loop.
type Server struct {
	cfg  Config
	pool *Pool
	feed *distrib.Reader

	user string
	pass string

	ln       net.Listener
	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

const defaultMaxClients = 5

// New builds a Server draining feed. Credentials are captured here, once.
func New(cfg Config, feed *distrib.Reader) *Server {
	if cfg.MaxClients <= 0 {
		cfg.MaxClients = defaultMaxClients
	}
	if cfg.Format == "" {
		cfg.Format = "RTCM 3.2"
	}
	return &Server{
		cfg:  cfg,
		pool: NewPool(cfg.MaxClients),
		feed: feed,
		user: os.Getenv(cfg.UserEnv),
		pass: os.Getenv(cfg.PassEnv),
		stop: make(chan struct{}),
	}
}

// Start begins listening and spawns the accept and fan-out loops.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("server.Start: %w", err)
	}
	s.ln = ln

	log.Info().Str("addr", ln.Addr().String()).Int("max_clients", s.cfg.MaxClients).
		Bool("ntrip", s.cfg.Mode == ModeNTRIP).Msg("broadcast server listening")

	s.wg.Add(2)
	go s.acceptLoop()
	go s.fanout()
	return nil
}

// Addr returns the bound listen address.
func (s *Server) Addr() net.Addr {
	return s.ln.Addr()
}

// Shutdown closes the listener, signals every loop and handler through the
// shared stop flag, and waits for them. Safe to call more than once.
func (s *Server) Shutdown() {
	s.stopOnce.Do(func() {
		close(s.stop)
		if s.ln != nil {
			s.ln.Close()
		}
		s.pool.ReleaseAll()
	})
	s.wg.Wait()
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			select {
			case <-s.stop:
			default:
				log.Error().Err(err).Msg("accept failed")
			}
			return
		}

		slot, err := s.pool.Claim(conn.RemoteAddr().String())
		if err != nil {
			// Capacity-exceeded rejection: the socket was accepted but no
			// data is ever served on it.
			log.Warn().Str("remote", conn.RemoteAddr().String()).
				Int("max_clients", s.cfg.MaxClients).Msg("client rejected: pool full")
			conn.Close()
			continue
		}

		log.Info().Str("remote", slot.Remote()).Str("client", slot.ID().String()).
			Int("slot", slot.Index()).Msg("client connected")

		s.wg.Add(1)
		go s.handle(conn, slot)
	}
}

// fanout drains the shared feed and copies every frame onto each occupied
// slot's queue. One slow client lags only its own queue.
func (s *Server) fanout() {
	defer s.wg.Done()
	for {
		select {
		case <-s.stop:
			return
		case _, ok := <-s.feed.Notify():
			for _, it := range s.feed.Drain() {
				raw := it.Raw
				s.pool.Each(func(slot *Slot) {
					slot.Push(raw)
				})
			}
			if !ok {
				return
			}
		}
	}
}

// handle runs one client connection from accept to disconnect.
func (s *Server) handle(conn net.Conn, slot *Slot) {
	defer s.wg.Done()
	remote := slot.Remote()
	defer func() {
		s.pool.Release(slot)
		conn.Close()
		log.Info().Str("remote", remote).Int("slot", slot.Index()).
			Msg("client disconnected")
	}()

	if s.cfg.Mode == ModeNTRIP {
		if !s.handshake(conn) {
			return
		}
	}
	slot.SetStreaming(true)

	for {
		b, ok := slot.Next()
		if !ok {
			return
		}
		if _, err := conn.Write(b); err != nil {
			return
		}
	}
}
