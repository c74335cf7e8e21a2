package main

import (
	"bufio"
	"context"
	"io"
	"net"
	"strings"
	"time"

	"github.com/tarm/serial"
)

// serveLines applies each newline-terminated line from r as a command.
// Nothing is written back.
func (s *Server) serveLines(r io.Reader, source string) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		// The line terminator is framing, not part of the command.
		cmd := strings.TrimSuffix(scanner.Text(), "\r")
		if len(cmd) == 0 {
			continue
		}
		s.logger.Debugw("line command", "source", source, "command", cmd)
		s.Handle(source, cmd)
	}
	return scanner.Err()
}

// ListenLines accepts TCP connections on addr and serves line commands.
func (s *Server) ListenLines(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.logger.Infow("listening for line commands", "addr", ln.Addr())
	go func() {
		<-ctx.Done()
		s.logger.Info("shutdown; closing line socket")
		ln.Close()
	}()
	go s.acceptLines(ctx, ln)
	return nil
}

// acceptRetryDelay is how long acceptLines waits after a failed Accept.
var acceptRetryDelay = 100 * time.Millisecond

func (s *Server) acceptLines(ctx context.Context, ln net.Listener) {
	for ctx.Err() == nil {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			s.logger.Warnw("failed to accept", "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(acceptRetryDelay):
			}
			continue
		}
		go s.handleLineConn(conn)
	}
}

func (s *Server) handleLineConn(conn net.Conn) {
	defer conn.Close()
	remote := conn.RemoteAddr().String()
	s.logger.Infow("accepted line connection", "remote", remote)
	if err := s.serveLines(conn, remote); err != nil {
		s.logger.Warnw("reading line connection", "remote", remote, "error", err)
	}
	s.logger.Infow("closed line connection", "remote", remote)
}

// SerialLoop reads line commands from a serial port, reopening it whenever it
// fails, until ctx is done.
func (s *Server) SerialLoop(ctx context.Context, port string, baud int) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(1 * time.Second):
		}
		c := &serial.Config{Name: port, Baud: baud}
		p, err := serial.OpenPort(c)
		if err != nil {
			s.logger.Warnw("opening serial port", "port", port, "error", err)
			continue
		}
		s.logger.Infow("opened serial port", "port", port)
		done := make(chan struct{})
		go func() {
			select {
			case <-ctx.Done():
				p.Close()
			case <-done:
			}
		}()
		if err := s.serveLines(p, port); err != nil && ctx.Err() == nil {
			s.logger.Warnw("reading serial port", "port", port, "error", err)
		}
		close(done)
		p.Close()
	}
}
