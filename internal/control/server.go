// Package control implements the local control channel: a unix stream
// socket accepting whitespace-separated text commands that mutate or query
// the pending LED state.
package control

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"

	"github.com/rs/zerolog/log"
)

// Server owns the unix socket and the session loop. One client connection
// is handled completely before the next is accepted.
type Server struct {
	socketPath string
	handler    *Handler
	listener   net.Listener
}

// NewServer creates a control channel server.
func NewServer(socketPath string, handler *Handler) *Server {
	return &Server{
		socketPath: socketPath,
		handler:    handler,
	}
}

// Listen binds the unix socket. A stale socket file from a previous run is
// removed before listening. Called synchronously at startup so a bind
// failure is fatal with a clear diagnostic.
func (s *Server) Listen() error {
	_ = os.Remove(s.socketPath)

	ln, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("failed to bind control socket %s: %w", s.socketPath, err)
	}
	s.listener = ln

	log.Info().Str("socket", s.socketPath).Msg("Control channel listening")
	return nil
}

// Run serves sessions until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	if s.listener == nil {
		if err := s.Listen(); err != nil {
			return err
		}
	}
	ln := s.listener

	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()

	defer os.Remove(s.socketPath)

	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) || ctx.Err() != nil {
				log.Info().Msg("Control channel stopping")
				return nil
			}
			log.Error().Err(err).Msg("Accept failed")
			continue
		}

		// A protocol error terminates only this session; the loop
		// keeps accepting.
		if err := s.handler.Serve(conn); err != nil {
			log.Warn().Err(err).Msg("Session terminated")
		}
		conn.Close()
	}
}
