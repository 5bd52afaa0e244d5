package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/shpitdev/company-revenue-lookup/internal/batch"
	"github.com/shpitdev/company-revenue-lookup/internal/lookup"
	"github.com/shpitdev/company-revenue-lookup/internal/session"
)

// DefaultMaxUploadBytes caps batch uploads.
const DefaultMaxUploadBytes int64 = 16 << 20

// Options configures the HTTP surface.
type Options struct {
	// Batch holds the defaults for POST /api/batch; form fields may override
	// concurrency and delay within limits.
	Batch          batch.Options
	MaxUploadBytes int64
	Logger         *zap.Logger
}

// Server exposes the lookup service over HTTP.
type Server struct {
	router  *gin.Engine
	svc     *lookup.Service
	history *session.Store
	opts    Options
	logger  *zap.Logger
}

// New builds the router. history may be nil, in which case queries are not remembered.
func New(svc *lookup.Service, history *session.Store, opts Options) *Server {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = DefaultMaxUploadBytes
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Server{
		router:  gin.New(),
		svc:     svc,
		history: history,
		opts:    opts,
		logger:  logger,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(gin.Recovery(), s.requestLogger(), cors())

	api := s.router.Group("/api")
	{
		api.GET("/ca", s.handleRevenue)
		api.GET("/societe", s.handleProfile)
		api.POST("/batch", s.handleBatch)
		api.GET("/history", s.handleHistory)
	}
	s.router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
}

// Handler returns the root http.Handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on addr until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.logger.Info("http server shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}

// cors allows any origin. Preflight requests end here with 204 and no body.
func cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, "+sessionHeader)
		c.Header("Access-Control-Expose-Headers", "Content-Disposition, "+batchJobHeader)
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("elapsed", time.Since(start)),
		)
	}
}
