package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/tsinin/message-broker/internal/broker"
)

// HTTPServer exposes read-only broker state for monitoring. All broker
// traffic goes over the binary TCP protocol; this surface only observes.
type HTTPServer struct {
	storage broker.Storage
	server  *http.Server
	logger  *zap.Logger
	port    int
}

// NewHTTPServer creates the observability server.
func NewHTTPServer(storage broker.Storage, port int, logger *zap.Logger) *HTTPServer {
	gin.SetMode(gin.ReleaseMode)

	s := &HTTPServer{
		storage: storage,
		logger:  logger,
		port:    port,
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.GET("/health", s.health)
	engine.GET("/v1/stats", s.stats)

	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: engine,
	}
	return s
}

func (s *HTTPServer) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *HTTPServer) stats(c *gin.Context) {
	topics := s.storage.Stats()

	pending, waiters := 0, 0
	for _, t := range topics {
		pending += t.Pending
		waiters += t.Waiters
	}

	c.JSON(http.StatusOK, gin.H{
		"topics":        topics,
		"topic_count":   len(topics),
		"total_pending": pending,
		"total_waiters": waiters,
	})
}

// Start binds the listening socket and serves in the background.
func (s *HTTPServer) Start() error {
	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return fmt.Errorf("HTTP listen on %s: %w", s.server.Addr, err)
	}

	s.logger.Info("HTTP server listening", zap.Int("port", s.port))

	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("HTTP serve failed", zap.Error(err))
		}
	}()

	return nil
}

// Stop drains in-flight HTTP requests and shuts the server down.
func (s *HTTPServer) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.server.Shutdown(ctx); err != nil {
		s.logger.Warn("HTTP shutdown incomplete", zap.Error(err))
	}
}
