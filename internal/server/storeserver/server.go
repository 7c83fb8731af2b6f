package storeserver

import (
	"bufio"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"
	"golang.org/x/time/rate"

	"github.com/celerix-dev/celerix-store/internal/telemetry/logger"
	"github.com/celerix-dev/celerix-store/internal/telemetry/metric"
	"github.com/celerix-dev/celerix-store/pkg/cmap"
	"github.com/celerix-dev/celerix-store/pkg/domain"
	"github.com/celerix-dev/celerix-store/pkg/protocol"
	"github.com/celerix-dev/celerix-store/pkg/store"
)

// Config holds the server configuration.
type Config struct {
	// Addr is the listen address (default "127.0.0.1:7001").
	Addr string
	// TLSConfig enables TLS when non-nil.
	TLSConfig *tls.Config
	// ReadTimeout bounds reading one frame once its first byte arrived.
	ReadTimeout time.Duration
	// WriteTimeout bounds writing one response.
	WriteTimeout time.Duration
	// IdleTimeout bounds the wait for the next request.
	IdleTimeout time.Duration
	// MaxConnections caps concurrent connections. 0 disables the cap.
	MaxConnections int
	// RateLimit is requests per second per connection. 0 disables it.
	RateLimit int
	// MaxFrameSize bounds one frame element in bytes.
	MaxFrameSize int
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Addr:           "127.0.0.1:7001",
		ReadTimeout:    30 * time.Second,
		WriteTimeout:   30 * time.Second,
		IdleTimeout:    5 * time.Minute,
		MaxConnections: 100,
		RateLimit:      0,
		MaxFrameSize:   protocol.DefaultMaxBulkLen,
	}
}

func (c *Config) withDefaults() *Config {
	out := *c
	def := DefaultConfig()
	if out.Addr == "" {
		out.Addr = def.Addr
	}
	if out.ReadTimeout <= 0 {
		out.ReadTimeout = def.ReadTimeout
	}
	if out.WriteTimeout <= 0 {
		out.WriteTimeout = def.WriteTimeout
	}
	if out.IdleTimeout <= 0 {
		out.IdleTimeout = def.IdleTimeout
	}
	if out.MaxFrameSize <= 0 {
		out.MaxFrameSize = def.MaxFrameSize
	}
	return &out
}

// Option configures a Server.
type Option func(*Server)

// WithMetrics attaches Prometheus metrics.
func WithMetrics(m *metric.ServerMetrics) Option {
	return func(s *Server) { s.metrics = m }
}

// Server serves a store.RawStore over the framed protocol.
type Server struct {
	cfg     *Config
	store   store.RawStore
	logger  *slog.Logger
	metrics *metric.ServerMetrics

	mu      sync.Mutex
	ln      net.Listener
	cancel  context.CancelFunc
	running atomic.Bool
	wg      sync.WaitGroup

	conns  *cmap.Map[*Conn]
	active atomic.Int64
}

// Conn is one client connection.
type Conn struct {
	id      string
	netConn net.Conn
	fr      *protocol.Reader
	bw      *bufio.Writer
	limiter *rate.Limiter

	closed atomic.Bool
}

func (s *Server) newConn(c net.Conn) *Conn {
	conn := &Conn{
		id:      ulid.Make().String(),
		netConn: c,
		fr:      protocol.NewReader(bufio.NewReader(c), s.cfg.MaxFrameSize),
		bw:      bufio.NewWriter(c),
	}
	if s.cfg.RateLimit > 0 {
		conn.limiter = rate.NewLimiter(rate.Limit(s.cfg.RateLimit), s.cfg.RateLimit)
	}
	return conn
}

// Close closes the connection. Safe to call more than once.
func (c *Conn) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	return c.netConn.Close()
}

// ID returns the connection identifier used in logs.
func (c *Conn) ID() string { return c.id }

// RemoteAddr returns the peer address.
func (c *Conn) RemoteAddr() net.Addr { return c.netConn.RemoteAddr() }

// New creates a server for st. cfg may be nil.
func New(cfg *Config, st store.RawStore, logger *slog.Logger, opts ...Option) *Server {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		cfg:    cfg.withDefaults(),
		store:  st,
		logger: logger,
		conns:  cmap.New[*Conn](),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start binds the listener and serves in the background until ctx is
// canceled or Shutdown is called.
func (s *Server) Start(ctx context.Context) error {
	var (
		ln  net.Listener
		err error
	)
	if s.cfg.TLSConfig != nil {
		ln, err = tls.Listen("tcp", s.cfg.Addr, s.cfg.TLSConfig)
	} else {
		ln, err = net.Listen("tcp", s.cfg.Addr)
	}
	if err != nil {
		return fmt.Errorf("storeserver: listen %s: %w", s.cfg.Addr, err)
	}

	ctx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.ln = ln
	s.cancel = cancel
	s.mu.Unlock()
	s.running.Store(true)

	s.logger.Info("store server listening",
		"address", ln.Addr().String(),
		"tls", s.cfg.TLSConfig != nil,
		"max_connections", s.cfg.MaxConnections,
	)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.acceptLoop(ctx, ln); err != nil && s.running.Load() {
			s.logger.Error("store server accept error", "error", err)
		}
	}()

	go func() {
		<-ctx.Done()
		s.running.Store(false)
		_ = s.closeListener()
		s.closeConns()
	}()
	return nil
}

// Addr returns the bound address, or nil before Start.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// ActiveConnections returns the number of open connections.
func (s *Server) ActiveConnections() int {
	return int(s.active.Load())
}

func (s *Server) closeListener() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return nil
	}
	err := s.ln.Close()
	if errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}

// Shutdown stops accepting, closes open connections and waits for
// their handlers to return.
func (s *Server) Shutdown(ctx context.Context) error {
	s.running.Store(false)
	firstErr := s.closeListener()

	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Unlock()

	s.closeConns()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return firstErr
}

func (s *Server) closeConns() {
	s.conns.Range(func(_ string, c *Conn) bool {
		_ = c.Close()
		return true
	})
}

func (s *Server) acceptLoop(ctx context.Context, ln net.Listener) error {
	for {
		c, err := ln.Accept()
		if err != nil {
			if !s.running.Load() || errors.Is(err, net.ErrClosed) {
				return nil
			}
			select {
			case <-ctx.Done():
				return nil
			default:
			}
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				time.Sleep(10 * time.Millisecond)
				continue
			}
			return err
		}

		if max := s.cfg.MaxConnections; max > 0 && s.active.Load() >= int64(max) {
			s.metrics.ConnRejected()
			s.logger.Warn("connection rejected: server at capacity", "remote", c.RemoteAddr(), "max_connections", max)
			s.reject(c)
			continue
		}

		conn := s.newConn(c)
		s.active.Add(1)
		s.metrics.ConnOpened()
		s.conns.Set(conn.id, conn)

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer func() {
				s.conns.Delete(conn.id)
				s.active.Add(-1)
				s.metrics.ConnClosed()
			}()
			s.serveConn(ctx, conn)
		}()
	}
}

// reject answers a connection over capacity and closes it.
func (s *Server) reject(c net.Conn) {
	defer c.Close()
	bw := bufio.NewWriter(c)
	_ = c.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
	_ = protocol.WriteResponse(bw, protocol.ErrorResponse("", domain.ErrServerBusy.WithDetailsf("connection limit %d reached", s.cfg.MaxConnections)))
	_ = bw.Flush()
}

func (s *Server) serveConn(ctx context.Context, c *Conn) {
	defer c.Close()

	log := s.logger.With("conn_id", c.id, "remote", c.RemoteAddr().String())
	log.Debug("connection opened")
	defer log.Debug("connection closed")

	for {
		// Idle deadline until the first byte of the next request.
		if err := c.netConn.SetReadDeadline(time.Now().Add(s.cfg.IdleTimeout)); err != nil {
			return
		}
		if _, err := c.fr.Buffered().Peek(1); err != nil {
			if !errors.Is(err, io.EOF) && !c.closed.Load() {
				log.Debug("connection idle or read error", "error", err)
			}
			return
		}

		if err := c.netConn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout)); err != nil {
			return
		}
		frame, err := c.fr.ReadFrame()
		if err != nil {
			s.handleFrameError(log, c, err)
			return
		}

		resp := s.handleFrame(ctx, log, c, frame)

		if err := c.netConn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout)); err != nil {
			return
		}
		if err := protocol.WriteResponse(c.bw, resp); err != nil {
			log.Debug("write response failed", "error", err)
			return
		}
		if err := c.bw.Flush(); err != nil {
			log.Debug("flush response failed", "error", err)
			return
		}
	}
}

// handleFrameError reports a framing violation and lets the caller close
// the connection: the stream position is unknown afterwards.
func (s *Server) handleFrameError(log *slog.Logger, c *Conn, err error) {
	var netErr net.Error
	switch {
	case errors.Is(err, io.EOF), c.closed.Load():
		return
	case errors.As(err, &netErr) && netErr.Timeout():
		log.Debug("read timed out mid-frame")
		return
	case errors.Is(err, protocol.ErrLimitExceeded):
		log.Warn("protocol limit exceeded", "error", err)
	default:
		log.Debug("protocol error", "error", err)
	}
	if !protocol.IsFramingError(err) {
		return
	}
	_ = c.netConn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
	_ = protocol.WriteResponse(c.bw, protocol.ErrorResponse("", domain.ErrProtocol.WithDetails(err.Error())))
	_ = c.bw.Flush()
}

func (s *Server) handleFrame(ctx context.Context, log *slog.Logger, c *Conn, frame [][]byte) *protocol.Response {
	req, err := protocol.ParseRequest(frame)
	if err != nil {
		var re *protocol.RequestError
		id := ""
		if errors.As(err, &re) {
			id = re.ID
		}
		log.Debug("rejected request", "request_id", id, "error", err)
		resp := protocol.ErrorResponse(id, err)
		s.metrics.ObserveRequest("INVALID", resp.Status, 0)
		return resp
	}

	if c.limiter != nil && !c.limiter.Allow() {
		s.metrics.Throttled()
		resp := protocol.ErrorResponse(req.ID, domain.ErrRateLimited.WithDetailsf("%d requests per second", s.cfg.RateLimit))
		s.metrics.ObserveRequest(string(req.Op), resp.Status, 0)
		return resp
	}

	ctx = logger.WithRequestID(logger.WithLogger(ctx, log), req.ID)
	start := time.Now()
	resp := s.dispatch(ctx, req)
	elapsed := time.Since(start)
	s.metrics.ObserveRequest(string(req.Op), resp.Status, elapsed)

	if resp.Status == protocol.StatusErr {
		log.Debug("request failed", "op", req.Op, "request_id", req.ID, "code", resp.Code, "detail", resp.Detail)
	}
	return resp
}
