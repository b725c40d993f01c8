package server

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"runtime/debug"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"timeclock/gateway/internal/config"
	"timeclock/gateway/internal/protocol"
)

const readBufferSize = 4096

// TCPServer handles TCP connections from attendance terminals
type TCPServer struct {
	config     *config.Config
	adapter    protocol.ProtocolAdapter
	dispatcher *Dispatcher
	presence   protocol.Presence // optional
	hub        *Hub              // optional
	sessions   SessionRegistry
	listener   net.Listener
	wg         sync.WaitGroup
	ctx        context.Context
	cancel     context.CancelFunc
}

// NewTCPServer creates a new TCP server. presence and hub may be nil.
func NewTCPServer(cfg *config.Config, a protocol.ProtocolAdapter, dispatcher *Dispatcher, presence protocol.Presence, hub *Hub) *TCPServer {
	ctx, cancel := context.WithCancel(context.Background())
	return &TCPServer{
		config:     cfg,
		adapter:    a,
		dispatcher: dispatcher,
		presence:   presence,
		hub:        hub,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Start starts the TCP server
func (s *TCPServer) Start() error {
	addr := s.config.ListenAddr()
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	s.listener = listener

	log.Info().
		Str("addr", listener.Addr().String()).
		Str("protocol", s.adapter.Protocol()).
		Dur("idle_timeout", s.config.IdleTimeout).
		Str("checksum_policy", s.config.ChecksumPolicy).
		Msg("TCP server listening")

	if s.config.HTTPPort > 0 {
		go s.startHTTPServer()
	}

	s.wg.Add(1)
	go s.acceptLoop()

	return nil
}

// Addr returns the bound listener address, or nil before Start.
func (s *TCPServer) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Sessions exposes the live session registry.
func (s *TCPServer) Sessions() *SessionRegistry {
	return &s.sessions
}

// Stop stops the TCP server and waits for connection handlers to exit
func (s *TCPServer) Stop() {
	s.cancel()
	if s.listener != nil {
		s.listener.Close()
	}
	s.sessions.closeAll()
	s.wg.Wait()
}

func (s *TCPServer) acceptLoop() {
	defer s.wg.Done()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.ctx.Done():
				return
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return
			}
			log.Warn().Err(err).Msg("accept error")
			continue
		}

		session := newSession(conn)
		s.sessions.Add(session)

		s.wg.Add(1)
		go s.handleConnection(session)
	}
}

func (s *TCPServer) handleConnection(session *Session) {
	logger := log.With().Str("session", session.ID).Str("remote", session.Remote).Logger()

	defer s.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			logger.Error().
				Interface("panic", r).
				Str("stack", string(debug.Stack())).
				Msg("connection handler panicked")
		}
		s.cleanupSession(session, logger)
	}()

	logger.Info().Msg("new connection")

	reader := bufio.NewReader(session.Conn)
	buffer := make([]byte, readBufferSize)
	var pending []byte

	for {
		select {
		case <-s.ctx.Done():
			return
		default:
		}

		session.Conn.SetReadDeadline(time.Now().Add(s.config.IdleTimeout))
		n, err := reader.Read(buffer)
		if err != nil {
			s.logReadError(err, logger)
			return
		}

		session.Touch(time.Now())
		pending = append(pending, buffer[:n]...)
		pending = s.drain(session, pending, logger)
	}
}

func (s *TCPServer) logReadError(err error, logger zerolog.Logger) {
	var netErr net.Error
	switch {
	case s.ctx.Err() != nil:
	case errors.Is(err, io.EOF):
		logger.Info().Msg("connection closed by device")
	case errors.As(err, &netErr) && netErr.Timeout():
		logger.Info().Dur("idle_timeout", s.config.IdleTimeout).Msg("idle timeout, evicting session")
	default:
		logger.Warn().Err(err).Msg("read error")
	}
}

// drain processes every complete frame in buf, in arrival order, and returns
// the incomplete tail moved to the front of buf.
func (s *TCPServer) drain(session *Session, buf []byte, logger zerolog.Logger) []byte {
	pending := buf
	for len(pending) > 0 {
		frame, rest := s.adapter.Scan(pending)
		pending = rest
		if frame == nil {
			break
		}
		s.handleFrame(session, frame, logger)
	}
	n := copy(buf, pending)
	return buf[:n]
}

func (s *TCPServer) handleFrame(session *Session, frame []byte, logger zerolog.Logger) {
	pkt, err := s.adapter.Decode(frame)
	if err != nil {
		logger.Warn().Err(err).Hex("frame", frame).Msg("dropping malformed frame")
		return
	}
	if !s.checksumAccepted(frame, logger) {
		return
	}
	session.CountFrame()

	out := s.dispatcher.Dispatch(s.ctx, pkt, logger)
	s.trackPresence(session, pkt, out, logger)
	s.writeAck(session, out.Ack, logger)
}

// checksumAccepted applies the configured inbound checksum policy.
func (s *TCPServer) checksumAccepted(frame []byte, logger zerolog.Logger) bool {
	switch s.config.ChecksumPolicy {
	case config.ChecksumWarn:
		if !s.adapter.VerifyChecksum(frame) {
			logger.Warn().Hex("frame", frame).Msg("checksum mismatch, processing anyway")
		}
		return true
	case config.ChecksumStrict:
		if !s.adapter.VerifyChecksum(frame) {
			logger.Warn().Hex("frame", frame).Msg("checksum mismatch, frame dropped")
			return false
		}
		return true
	default:
		return true
	}
}

// trackPresence binds the session to the first device code seen on a
// CONNECT or HEARTBEAT. Presence only ever follows that bound code, so the
// entry removed on close is the only one this session can have written.
func (s *TCPServer) trackPresence(session *Session, pkt *protocol.Packet, out Outcome, logger zerolog.Logger) {
	if pkt.Kind != protocol.KindConnect && pkt.Kind != protocol.KindHeartbeat {
		return
	}
	if session.BindDevice(pkt.DeviceCode) {
		logger.Info().Uint32("device_code", pkt.DeviceCode).Msg("session bound to device")
	}
	if s.presence == nil || out.Device == nil {
		return
	}
	if bound, _ := session.DeviceCode(); bound != pkt.DeviceCode {
		logger.Warn().
			Uint32("device_code", pkt.DeviceCode).
			Uint32("bound_code", bound).
			Msg("frame for a device other than the bound one, presence not updated")
		return
	}

	ctx, cancel := s.callContext(s.ctx)
	defer cancel()

	switch pkt.Kind {
	case protocol.KindConnect:
		if err := s.presence.Register(ctx, pkt.DeviceCode, session.ID, session.Remote); err != nil {
			logger.Warn().Err(err).Msg("failed to register presence")
		}
	case protocol.KindHeartbeat:
		if err := s.presence.Refresh(ctx, pkt.DeviceCode, session.ID, session.Remote); err != nil {
			logger.Warn().Err(err).Msg("failed to refresh presence")
		}
	}
}

// writeAck is best effort: a failed write is logged and not retried.
func (s *TCPServer) writeAck(session *Session, ack []byte, logger zerolog.Logger) {
	if len(ack) == 0 {
		return
	}
	if s.config.WriteTimeout > 0 {
		session.Conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
	}
	if _, err := session.Conn.Write(ack); err != nil {
		logger.Warn().Err(err).Hex("ack", ack).Msg("failed to write ack")
	}
}

func (s *TCPServer) cleanupSession(session *Session, logger zerolog.Logger) {
	s.sessions.Remove(session.ID)
	session.Conn.Close()

	if code, ok := session.DeviceCode(); ok && s.presence != nil {
		ctx, cancel := s.callContext(context.Background())
		defer cancel()
		if err := s.presence.Unregister(ctx, code, session.ID); err != nil {
			logger.Warn().Err(err).Msg("failed to remove presence")
		}
	}

	info := session.Info()
	logger.Info().
		Uint64("frames", info.Frames).
		Dur("duration", time.Since(info.ConnectedAt)).
		Msg("connection closed")
}

func (s *TCPServer) callContext(parent context.Context) (context.Context, context.CancelFunc) {
	if s.config.CallTimeout <= 0 {
		return context.WithCancel(parent)
	}
	return context.WithTimeout(parent, s.config.CallTimeout)
}
