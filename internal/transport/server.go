// Package transport terminates WebSocket connections and drives each one's
// session.Session, the way the teacher's transport package terminates raw
// broadcast connections (spec.md §6 "Transport").
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"fanout-server/internal/auth"
	"fanout-server/internal/config"
	"fanout-server/internal/filter/limits"
	"fanout-server/internal/metrics"
	"fanout-server/internal/session"
	"fanout-server/internal/wire"
)

// decoders bundles the two base58/base64 byte-decode functions the filter
// engine needs, supplied once at startup so internal/filter never imports
// an encoding package directly.
type decoders struct {
	decode58 func(string) ([]byte, error)
	decode64 func(string) ([]byte, error)
}

// Server accepts TCP connections, performs the WebSocket upgrade, and for
// each connection runs a session.Session's reader and writer loop.
type Server struct {
	cfg      config.Config
	logger   *zap.Logger
	hub      *session.Hub
	metrics  *metrics.Registry
	lim      limits.Limits
	gate     *auth.Gate
	dec      decoders
	limiter  *connectionLimiter
	listener net.Listener
	wg       sync.WaitGroup
}

// NewServer builds a Server. gate may be nil, which disables authentication.
func NewServer(cfg config.Config, logger *zap.Logger, hub *session.Hub, metricsRegistry *metrics.Registry, lim limits.Limits, gate *auth.Gate, decode58, decode64 func(string) ([]byte, error)) *Server {
	return &Server{
		cfg:     cfg,
		logger:  logger,
		hub:     hub,
		metrics: metricsRegistry,
		lim:     lim,
		gate:    gate,
		dec:     decoders{decode58: decode58, decode64: decode64},
		limiter: newConnectionLimiter(connectionLimiterConfig{
			IPBurst:     cfg.RateLimit.IPBurst,
			IPRate:      cfg.RateLimit.IPRate,
			IPTTL:       cfg.RateLimit.IPTTL,
			GlobalBurst: cfg.RateLimit.GlobalBurst,
			GlobalRate:  cfg.RateLimit.GlobalRate,
		}, metricsRegistry),
	}
}

// Start binds the listener and launches the accept loop.
func (s *Server) Start(ctx context.Context) error {
	if s.listener != nil {
		return errors.New("transport already started")
	}

	addr := fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	s.listener = ln
	s.logger.Info("transport listening", zap.String("addr", addr))

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.acceptLoop(ctx)
	}()

	return nil
}

// Stop closes the listener and waits for every in-flight connection
// goroutine to exit.
func (s *Server) Stop() {
	if s.listener != nil {
		_ = s.listener.Close()
	}
	s.wg.Wait()
	s.limiter.stop()
}

func (s *Server) acceptLoop(ctx context.Context) {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Temporary() {
				time.Sleep(50 * time.Millisecond)
				continue
			}
			if ctx.Err() != nil {
				return
			}
			s.logger.Error("accept error", zap.Error(err))
			return
		}

		ip := remoteIP(conn)
		if !s.limiter.allow(ip) {
			logRejection(s.logger, ip)
			_ = conn.Close()
			continue
		}

		s.wg.Add(1)
		go func(c net.Conn) {
			defer s.wg.Done()
			s.handleConnection(ctx, c)
		}(conn)
	}
}

func remoteIP(conn net.Conn) string {
	host, _, err := net.SplitHostPort(conn.RemoteAddr().String())
	if err != nil {
		return conn.RemoteAddr().String()
	}
	return host
}

func (s *Server) handleConnection(parent context.Context, conn net.Conn) {
	defer conn.Close()

	if err := conn.SetDeadline(time.Now().Add(s.cfg.Server.ReadTimeout)); err != nil {
		s.logger.Debug("set deadline", zap.Error(err))
	}

	var headerValue, rawQuery string
	upgrader := ws.Upgrader{
		OnRequest: func(uri []byte) error {
			if u, err := url.ParseRequestURI(string(uri)); err == nil {
				rawQuery = u.RawQuery
			}
			return nil
		},
		OnHeader: func(key, value []byte) error {
			if string(key) == "Authorization" {
				headerValue = string(value)
			}
			return nil
		},
		OnBeforeUpgrade: func() (http.Header, error) {
			if s.gate == nil {
				return nil, nil
			}
			if _, err := s.gate.Authenticate(headerValue, rawQuery); err != nil {
				if s.metrics != nil {
					s.metrics.AcceptErrors.Inc()
				}
				return nil, ws.RejectConnectionError(
					ws.RejectionStatus(http.StatusUnauthorized),
				)
			}
			return nil, nil
		},
	}
	if _, err := upgrader.Upgrade(conn); err != nil {
		if s.metrics != nil {
			s.metrics.AcceptErrors.Inc()
		}
		s.logger.Debug("upgrade failed", zap.Error(err))
		return
	}

	_ = conn.SetDeadline(time.Time{})

	connID := uuid.NewString()
	connLogger := s.logger.With(zap.String("conn_id", connID))

	sess := session.New(0, s.lim, s.dec.decode58, s.dec.decode64, s.cfg.Hub.SessionQueueSize)
	if s.metrics != nil {
		sess.SetMetrics(s.metrics)
	}
	s.hub.Register(sess)
	defer s.hub.Unregister(sess)

	connLogger.Debug("connection established", zap.Uint64("session_id", sess.ID))

	connCtx, cancel := context.WithCancel(parent)
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.writeLoop(connCtx, connLogger, sess, conn)
	}()

	s.readLoop(connCtx, connLogger, sess, conn)
	sess.Close()
	cancel()
	<-done
}

func (s *Server) readLoop(ctx context.Context, logger *zap.Logger, sess *session.Session, conn net.Conn) {
	reader := wsutil.NewReader(conn, ws.StateServerSide)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		head, err := reader.NextFrame()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				logger.Debug("read frame error", zap.Error(err))
			}
			return
		}

		switch head.OpCode {
		case ws.OpClose:
			_ = wsutil.WriteServerMessage(conn, ws.OpClose, nil)
			return
		case ws.OpPing:
			if err := wsutil.WriteServerMessage(conn, ws.OpPong, nil); err != nil {
				logger.Debug("write pong error", zap.Error(err))
				return
			}
		case ws.OpText, ws.OpBinary:
			payload := make([]byte, head.Length)
			if _, err := io.ReadFull(reader, payload); err != nil {
				logger.Debug("read message data error", zap.Error(err))
				return
			}
			if err := s.handleFrame(sess, payload); err != nil {
				logger.Debug("handle frame error", zap.Error(err))
				return
			}
		default:
			if _, err := io.CopyN(io.Discard, reader, int64(head.Length)); err != nil {
				logger.Debug("drain frame data error", zap.Error(err))
				return
			}
		}
	}
}

// handleFrame decodes one client frame as a SubscribeRequest and installs
// it as the session's filter (the first successful call moves
// AwaitingInitial to Active; later calls replace the active filter,
// spec.md §4.5).
func (s *Server) handleFrame(sess *session.Session, payload []byte) error {
	var req wire.SubscribeRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		if s.metrics != nil {
			s.metrics.FilterBuildErrors.WithLabelValues("decode").Inc()
		}
		return fmt.Errorf("decode subscribe request: %w", err)
	}

	pingID, hasPing, err := sess.InstallFilter(req)
	if err != nil {
		if s.metrics != nil {
			s.metrics.FilterBuildErrors.WithLabelValues("build").Inc()
		}
		return fmt.Errorf("install filter: %w", err)
	}
	if hasPing {
		sess.EnqueuePong(pingID)
	}
	return nil
}

func (s *Server) writeLoop(ctx context.Context, logger *zap.Logger, sess *session.Session, conn net.Conn) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-sess.Closed():
			return
		case out, ok := <-sess.Queue():
			if !ok {
				return
			}
			payload, err := json.Marshal(out.Update)
			if err != nil {
				logger.Error("marshal update", zap.Error(err))
				continue
			}
			if err := conn.SetWriteDeadline(time.Now().Add(s.cfg.Server.WriteTimeout)); err != nil {
				logger.Debug("set write deadline", zap.Error(err))
			}
			if err := wsutil.WriteServerMessage(conn, ws.OpText, payload); err != nil {
				logger.Debug("write message error", zap.Error(err))
				return
			}
			if s.metrics != nil {
				s.metrics.MessagesDeliveredByChannel.WithLabelValues(updateChannel(out.Update)).Inc()
			}
		}
	}
}

func updateChannel(u *wire.SubscribeUpdate) string {
	switch {
	case u.Account != nil:
		return "account"
	case u.Slot != nil:
		return "slot"
	case u.Transaction != nil:
		return "transaction"
	case u.TransactionStatus != nil:
		return "transaction_status"
	case u.Entry != nil:
		return "entry"
	case u.Block != nil:
		return "block"
	case u.BlockMeta != nil:
		return "block_meta"
	case u.Pong != nil:
		return "pong"
	case u.Ping != nil:
		return "ping"
	default:
		return "unknown"
	}
}
