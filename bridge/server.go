package bridge

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/kbukum/permgate/logger"
	"github.com/kbukum/permgate/permission"
	"github.com/kbukum/permgate/resilience"
)

// Deps are the permission components the bridge serves.
type Deps struct {
	Session *permission.Session
	Table   *permission.StatusTable
	Hub     *Hub
	// Service is the name reported by /health.
	Service string
}

// Server is the bridge HTTP server. It speaks HTTP/1.1 and cleartext
// HTTP/2 on one port.
type Server struct {
	httpServer *http.Server
	engine     *gin.Engine
	deps       Deps
	verifier   *TokenVerifier
	limiter    *resilience.RateLimiter
	keepAlive  time.Duration
	log        *logger.Logger

	mu       sync.Mutex
	listener net.Listener
}

// New builds the server and registers its routes. cfg should already have
// defaults applied.
func New(cfg Config, deps Deps, log *logger.Logger) (*Server, error) {
	if deps.Session == nil || deps.Table == nil || deps.Hub == nil {
		return nil, fmt.Errorf("bridge: session, table and hub are required")
	}
	if log == nil {
		log = logger.GetGlobalLogger()
	}
	if deps.Service == "" {
		deps.Service = "permgate"
	}

	var verifier *TokenVerifier
	if cfg.JWTSecret != "" {
		v, err := NewTokenVerifier(cfg.JWTSecret, cfg.Issuer)
		if err != nil {
			return nil, fmt.Errorf("bridge: %w", err)
		}
		verifier = v
	}

	if zerolog.GlobalLevel() <= zerolog.DebugLevel {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()

	h2s := &http2.Server{MaxConcurrentStreams: 250, IdleTimeout: 120 * time.Second}
	s := &Server{
		httpServer: &http.Server{
			Addr:         cfg.Addr(),
			Handler:      h2c.NewHandler(engine, h2s),
			ReadTimeout:  seconds(cfg.ReadTimeout),
			WriteTimeout: seconds(cfg.WriteTimeout),
			IdleTimeout:  seconds(cfg.IdleTimeout),
		},
		engine:    engine,
		deps:      deps,
		verifier:  verifier,
		keepAlive: seconds(cfg.KeepAlive),
		log:       log.WithComponent("bridge"),
	}
	if cfg.RateLimit.Enabled() {
		s.limiter = resilience.NewRateLimiter(cfg.RateLimit)
	}
	if s.keepAlive <= 0 {
		s.keepAlive = 30 * time.Second
	}
	s.routes()
	return s, nil
}

// Handler returns the root handler, including h2c.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start binds the port and serves in a goroutine. It returns once the
// listener is bound.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("bridge failed to bind %s: %w", s.httpServer.Addr, err)
	}
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	go func() {
		if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.log.Error("server error", logger.ErrorFields("serve", err))
		}
	}()

	s.log.Info("bridge listening", logger.Fields(
		"addr", ln.Addr().String(),
		"auth", s.verifier != nil,
	))
	return nil
}

// Addr returns the bound address once started, otherwise the configured one.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.httpServer.Addr
}

// Stop disconnects prompt streams and shuts the server down with a
// 5-second deadline.
func (s *Server) Stop(ctx context.Context) error {
	s.deps.Hub.Close()

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("bridge shutdown: %w", err)
	}
	s.log.Info("bridge stopped")
	return nil
}
