package devserver

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/bizmatters/agent-builder/studio-client/internal/auth"
)

// Server wires the handler, middleware and routes together
type Server struct {
	engine *gin.Engine
	logger *zap.Logger
}

// NewServer builds the router. When jwtManager is nil the API is open;
// otherwise every /api route except health requires a bearer token.
func NewServer(store *Store, jwtManager *auth.JWTManager, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("component", "devserver"))
	h := NewHandler(store, logger)

	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(logger))

	router.GET("/health", h.Health)

	api := router.Group("/api")
	api.GET("/health", h.Health)

	protected := api.Group("")
	if jwtManager != nil {
		protected.Use(auth.RequireAuth(jwtManager, logger))
	}

	protected.GET("/projects", h.ListProjects)
	protected.POST("/projects", h.CreateProject)
	protected.GET("/projects/:id", h.GetProject)
	protected.POST("/projects/:id/start", h.StartWorkflow)
	protected.GET("/projects/:id/workflow", h.WorkflowStatus)
	protected.POST("/projects/:id/archive", h.ArchiveProject)
	protected.GET("/projects/:id/deliverables/*name", h.GetDeliverable)
	protected.POST("/projects/:id/feedback", h.SubmitFeedback)

	protected.GET("/agents", h.ListAgents)
	protected.POST("/agents/:name", h.MessageAgent)

	protected.GET("/knowledge", h.Knowledge)
	protected.GET("/knowledge/search", h.SearchKnowledge)
	protected.GET("/knowledge/:category", h.KnowledgeByCategory)

	return &Server{engine: router, logger: logger}
}

// Handler exposes the router, e.g. for httptest
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully
func (s *Server) Run(ctx context.Context, addr string) error {
	server := &http.Server{
		Addr:         addr,
		Handler:      s.engine,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting dev server", zap.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down dev server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}

// requestLogger logs one line per request
func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Int64("latency_ms", time.Since(start).Milliseconds()),
			zap.String("client_ip", c.ClientIP()),
		}
		if userID, ok := c.Get(auth.UserIDKey); ok {
			fields = append(fields, zap.Any("user_id", userID))
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}
		logger.Info("request", fields...)
	}
}
