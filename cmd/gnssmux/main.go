// Copyright 2025 gnssmux contributors
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"gitlab.com/navtools/gnssmux/internal/config"
	"gitlab.com/navtools/gnssmux/internal/distrib"
	"gitlab.com/navtools/gnssmux/internal/frame"
	"gitlab.com/navtools/gnssmux/internal/record"
	"gitlab.com/navtools/gnssmux/internal/server"
	"gitlab.com/navtools/gnssmux/internal/status"
	"gitlab.com/navtools/gnssmux/internal/stream"
	"gitlab.com/navtools/gnssmux/internal/transport"
)

func main() {
	var confFile string
	flag.StringVar(&confFile, "c", "/etc/gnssmux.conf", "Configuration file to use.")
	var help bool
	flag.BoolVar(&help, "h", false, "Print help and quit.")
	var verbose bool
	flag.BoolVar(&verbose, "v", false, "Log every extracted frame.")

	flag.Usage = func() {
		fmt.Println("usage: gnssmux [OPTION...]")
		fmt.Println("Reads an interleaved NMEA/UBX/RTCM3 stream from a GNSS receiver")
		fmt.Println("(serial, tcp, udp or a replayed capture file) and fans the frames")
		fmt.Println("out to a capture file and a TCP broadcast/NTRIP caster.")
		fmt.Println("Options:")
		flag.PrintDefaults()
	}

	flag.Parse()

	if help {
		flag.Usage()
		return
	}

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	conf, err := config.Parse(confFile)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	if err := run(conf); err != nil {
		log.Fatal().Err(err).Msg("gnssmux terminated")
	}
}

func run(conf *config.Config) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	mask, err := frame.ParseMask(conf.Protocols)
	if err != nil {
		return err
	}

	tr, err := openTransport(conf)
	if err != nil {
		return err
	}

	tracker := status.NewTracker()
	tracker.Observe(func(s status.Status) {
		log.Info().Str("status", s.String()).Msg("connection status")
	})

	feed := distrib.New()
	monitor := feed.Tee("monitor")

	var srv *server.Server
	if conf.Server.Enable {
		srv = server.New(serverConfig(&conf.Server), feed.Tee("broadcast"))
		if err := srv.Start(); err != nil {
			tr.Close()
			return err
		}
	}

	var rec *record.Writer
	if conf.RecordPath != "" {
		rec, err = record.New(conf.RecordPath, feed.Tee("recorder"))
		if err != nil {
			tr.Close()
			if srv != nil {
				srv.Shutdown()
			}
			return err
		}
		rec.Start()
		log.Info().Str("path", conf.RecordPath).Msg("recording raw feed")
	}

	reader := stream.New(tr, frame.CRCDecoder{}, feed, tracker, stream.Options{
		Mask:   mask,
		Pacing: time.Duration(conf.ReplayIntervalMs) * time.Millisecond,
	})
	if err := reader.Start(); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)

	// Monitor drain: the UI-refresh path. Wakes once per notification,
	// drains everything queued, never blocks the reader.
	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return nil
			case _, ok := <-monitor.Notify():
				for _, it := range monitor.Drain() {
					log.Debug().Str("protocol", it.Msg.Protocol.String()).
						Str("ident", it.Msg.Ident).Int("len", len(it.Raw)).Msg("frame")
				}
				if !ok {
					return nil
				}
			}
		}
	})

	g.Go(func() error {
		defer cancel()
		select {
		case <-gctx.Done():
			reader.Stop()
			<-reader.Done()
			return nil
		case n := <-reader.Done():
			if n.Event == stream.EventTransportError {
				return n.Err
			}
			return nil
		}
	})

	err = g.Wait()

	feed.Close()
	if srv != nil {
		srv.Shutdown()
	}
	if rec != nil {
		if cerr := rec.Close(); cerr != nil {
			log.Error().Err(cerr).Msg("recorder close")
		}
	}
	return err
}

func openTransport(conf *config.Config) (transport.Transport, error) {
	timeout := time.Duration(conf.ReadTimeoutMs) * time.Millisecond
	switch conf.Connection {
	case "serial":
		return transport.OpenSerial(conf.DevicePath, conf.BaudRate, timeout)
	case "tcp", "udp":
		return transport.DialSocket(conf.Connection, conf.RemoteAddr, timeout)
	case "file":
		return transport.OpenFileReplay(conf.ReplayPath)
	default:
		return nil, fmt.Errorf("unknown connection type %q", conf.Connection)
	}
}

func serverConfig(s *config.Server) server.Config {
	mode := server.ModeOpen
	if s.Mode == "ntrip" {
		mode = server.ModeNTRIP
	}
	return server.Config{
		Addr:       fmt.Sprintf("%s:%d", s.BindHost, s.BindPort),
		MaxClients: s.MaxClients,
		Mode:       mode,
		Mountpoint: s.Mountpoint,
		Format:     s.Format,
		Network:    s.Network,
		Country:    s.Country,
		Lat:        s.Lat,
		Lon:        s.Lon,
		UserEnv:    s.UserEnv,
		PassEnv:    s.PassEnv,
	}
}
