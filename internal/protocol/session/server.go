package session

import (
	"context"
	"errors"
	"io"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/danmuck/plcbridge/internal/observability"
	"github.com/danmuck/plcbridge/internal/protocol/frame"
	"github.com/danmuck/plcbridge/internal/protocol/schema"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// ServerConfig configures the passive side. MaxConns bounds concurrently served
// peers; 1 serves one peer at a time and 0 means unbounded. IdleTimeout bounds
// the wait for a peer's next record; 0 waits indefinitely.
type ServerConfig struct {
	ListenAddr  string
	MaxConns    int
	IdleTimeout time.Duration
	Session     Config
}

func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		ListenAddr: "0.0.0.0:502",
		MaxConns:   16,
		Session:    DefaultConfig(),
	}
}

// Server accepts peers and runs the fixed-size receive, handle, reply cycle on
// each. It never initiates connections.
type Server struct {
	cfg     ServerConfig
	schema  *schema.Schema
	handler Handler

	mu     sync.Mutex
	ln     net.Listener
	conns  map[net.Conn]struct{}
	closed bool

	active atomic.Int64
	served atomic.Uint64
}

func NewServer(cfg ServerConfig, template *frame.DataFrame, handler Handler) (*Server, error) {
	if strings.TrimSpace(cfg.ListenAddr) == "" {
		return nil, ErrAddressRequired
	}
	if template == nil {
		return nil, ErrTemplateRequired
	}
	if handler == nil {
		return nil, ErrHandlerRequired
	}
	if cfg.MaxConns < 0 {
		cfg.MaxConns = 0
	}
	if cfg.IdleTimeout < 0 {
		cfg.IdleTimeout = 0
	}
	cfg.Session = cfg.Session.WithDefaults()
	return &Server{
		cfg:     cfg,
		schema:  template.Schema(),
		handler: handler,
		conns:   make(map[net.Conn]struct{}),
	}, nil
}

// Listen binds ListenAddr with SO_REUSEADDR.
func (s *Server) Listen(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if s.ln != nil {
		return ErrAlreadyListening
	}
	lc := net.ListenConfig{Control: reuseAddr}
	ln, err := lc.Listen(ctx, "tcp", s.cfg.ListenAddr)
	if err != nil {
		log.Error().Str("addr", s.cfg.ListenAddr).Err(err).Msg("session.Server bind failed")
		return &BindError{Addr: s.cfg.ListenAddr, Err: err}
	}
	s.ln = ln
	log.Info().Str("addr", ln.Addr().String()).Int("record_size", s.schema.Size()).Msg("session.Server listening")
	return nil
}

// Addr returns the bound address, or nil before Listen.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

func (s *Server) ActiveConns() int { return int(s.active.Load()) }

// Served counts peers accepted since start.
func (s *Server) Served() uint64 { return s.served.Load() }

// Serve runs the accept loop until ctx is cancelled or Close is called, then
// closes every tracked peer and waits for their goroutines.
func (s *Server) Serve(ctx context.Context) error {
	s.mu.Lock()
	ln := s.ln
	s.mu.Unlock()
	if ln == nil {
		return ErrNotListening
	}

	var wg sync.WaitGroup
	defer wg.Wait()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		<-ctx.Done()
		_ = ln.Close()
		s.closeAllConns()
	}()

	var slots chan struct{}
	if s.cfg.MaxConns > 0 {
		slots = make(chan struct{}, s.cfg.MaxConns)
	}
	release := func() {
		if slots != nil {
			<-slots
		}
	}

	for {
		if slots != nil {
			select {
			case slots <- struct{}{}:
			case <-ctx.Done():
				return nil
			}
		}
		conn, err := ln.Accept()
		if err != nil {
			release()
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				continue
			}
			log.Error().Err(err).Msg("session.Server accept failed")
			return err
		}
		if !s.trackConn(conn) {
			_ = conn.Close()
			release()
			return nil
		}
		s.served.Add(1)
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer release()
			s.handleConn(ctx, conn)
		}()
	}
}

// ListenAndServe binds then serves until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	if err := s.Listen(ctx); err != nil {
		return err
	}
	return s.Serve(ctx)
}

// Close stops accepting and drops every peer. It is idempotent.
func (s *Server) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	ln := s.ln
	s.mu.Unlock()

	var err error
	if ln != nil {
		err = ln.Close()
	}
	s.closeAllConns()
	return err
}

func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	defer s.untrackConn(conn)

	logger := observability.SessionLogger("server", uuid.NewString(), conn.RemoteAddr().String())
	active := s.active.Add(1)
	observability.AddActiveConns(1)
	logger.Info().Int64("active", active).Msg("session.Server peer connected")
	var frames uint64
	defer func() {
		remaining := s.active.Add(-1)
		observability.AddActiveConns(-1)
		logger.Info().Int64("active", remaining).Uint64("frames", frames).Msg("session.Server peer disconnected")
	}()

	stop := context.AfterFunc(ctx, func() { _ = conn.SetDeadline(time.Now()) })
	defer stop()

	for {
		if err := conn.SetReadDeadline(deadline(s.cfg.IdleTimeout, time.Time{}, false)); err != nil {
			logger.Warn().Err(err).Msg("session.Server set read deadline failed")
			return
		}
		req, err := frame.ReadFrame(conn, s.schema)
		if err != nil {
			if errors.Is(err, io.EOF) || ctx.Err() != nil {
				return
			}
			observability.RecordIOError("server", "receive")
			logger.Warn().Err(err).Msg("session.Server read failed")
			return
		}
		observability.RecordFrame("server", "rx", req.Size())

		reply, err := s.handler.Handle(ctx, req)
		if err != nil {
			observability.RecordHandlerError()
			logger.Warn().Err(err).Msg("session.Server handler failed")
			return
		}
		frames++
		if reply == nil {
			continue
		}
		if !reply.Schema().Compatible(s.schema) {
			observability.RecordHandlerError()
			logger.Error().Err(ErrSchemaMismatch).Msg("session.Server handler reply rejected")
			return
		}

		if err := conn.SetWriteDeadline(deadline(s.cfg.Session.WriteTimeout, time.Time{}, false)); err != nil {
			logger.Warn().Err(err).Msg("session.Server set write deadline failed")
			return
		}
		if err := frame.WriteFrame(conn, reply); err != nil {
			observability.RecordIOError("server", "send")
			logger.Warn().Err(err).Msg("session.Server write failed")
			return
		}
		observability.RecordFrame("server", "tx", reply.Size())
		logger.Debug().Stringer("rx", req).Stringer("tx", reply).Msg("session.Server exchange")
	}
}

// trackConn registers conn for coordinated shutdown. It reports false once the
// server is closed.
func (s *Server) trackConn(conn net.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.conns[conn] = struct{}{}
	return true
}

func (s *Server) untrackConn(conn net.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.conns, conn)
}

func (s *Server) closeAllConns() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for conn := range s.conns {
		_ = conn.Close()
		delete(s.conns, conn)
	}
}
