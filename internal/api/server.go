package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/wonny/tradepulse/pkg/logger"
)

// DefaultShutdownTimeout bounds the graceful drain after ctx is cancelled
const DefaultShutdownTimeout = 30 * time.Second

// Server runs one HTTP listener until its context is cancelled.
// The API and the scheduler's metrics endpoint both use it.
// ⭐ SSOT: HTTP 서버 수명주기는 이 파일에서만
type Server struct {
	name            string
	httpServer      *http.Server
	logger          *logger.Logger
	shutdownTimeout time.Duration
}

// New creates a server listening on :port
func New(name, port string, handler http.Handler, log *logger.Logger) *Server {
	return &Server{
		name: name,
		httpServer: &http.Server{
			Addr:              ":" + port,
			Handler:           handler,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      2 * time.Minute, // 요약 생성은 전망 + AI 픽 추론 포함
			IdleTimeout:       60 * time.Second,
		},
		logger:          log.WithField("server", name),
		shutdownTimeout: DefaultShutdownTimeout,
	}
}

// WithShutdownTimeout overrides the drain timeout
func (s *Server) WithShutdownTimeout(d time.Duration) *Server {
	s.shutdownTimeout = d
	return s
}

// Addr returns the configured listen address
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// Run listens on the configured address and blocks until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("%s listen %s: %w", s.name, s.httpServer.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts on ln until ctx is done, then drains in-flight requests
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.logger.WithField("addr", ln.Addr().String()).Info("HTTP server listening")

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.httpServer.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("%s stopped: %w", s.name, err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("%s shutdown: %w", s.name, err)
	}

	s.logger.Info("HTTP server stopped")
	return nil
}
