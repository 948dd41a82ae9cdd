// Package api is the gin HTTP surface over the cycle, completion,
// analytics and identity components.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mesh-intelligence/rituo/internal/analytics"
	"github.com/mesh-intelligence/rituo/internal/auth"
	"github.com/mesh-intelligence/rituo/internal/completion"
	"github.com/mesh-intelligence/rituo/internal/cycle"
	"github.com/mesh-intelligence/rituo/internal/metrics"
	"github.com/mesh-intelligence/rituo/internal/rollover"
	"github.com/mesh-intelligence/rituo/pkg/types"
)

const (
	readHeaderTimeout = 10 * time.Second
	shutdownTimeout   = 15 * time.Second
)

// Deps are the components the server routes to. Scheduler and Metrics
// are optional.
type Deps struct {
	Ledger      types.Ledger
	Cycles      *cycle.Manager
	Completions *completion.Engine
	Analytics   *analytics.Engine
	Auth        *auth.Service
	Scheduler   *rollover.Scheduler
	Metrics     *metrics.Metrics
	Logger      *slog.Logger

	// Clock returns server-local now; "today" is derived from it once
	// per request.
	Clock func() time.Time

	// AuthRateLimit is the per-client request rate on /api/auth, in
	// requests per second. Zero disables limiting.
	AuthRateLimit float64
}

// Server holds the router and its dependencies.
type Server struct {
	deps   Deps
	logger *slog.Logger
	clock  func() time.Time
	router *gin.Engine
}

// NewServer builds the router. It does not listen; call Run or mount
// Handler.
func NewServer(deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	s := &Server{deps: deps, logger: logger, clock: clock}
	s.router = s.routes()
	return s
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(s.recovery(), s.requestLogger())
	if s.deps.Metrics != nil {
		r.Use(s.metricsMiddleware())
		r.GET("/metrics", gin.WrapH(s.deps.Metrics.Handler()))
	}
	r.GET("/healthz", s.health)

	api := r.Group("/api")

	authGroup := api.Group("/auth")
	if s.deps.AuthRateLimit > 0 {
		authGroup.Use(rateLimit(newLimiterStore(s.deps.AuthRateLimit, authBurst)))
	}
	authGroup.POST("/register", s.register)
	authGroup.POST("/login", s.login)

	me := authGroup.Group("", s.authenticate())
	me.GET("/user", s.currentUser)
	me.PUT("/change-password", s.changePassword)
	me.DELETE("/user", s.deleteAccount)

	secured := api.Group("", s.authenticate())
	secured.POST("/cycles", s.startCycle)
	secured.POST("/tasks", s.startCycle)
	secured.GET("/tasks", s.listTasks)
	secured.GET("/tasks/expired", s.listExpired)
	secured.GET("/tasks/:id/history", s.taskHistory)
	secured.POST("/tasks/:id/complete", s.toggleCompletion)
	secured.POST("/tasks/:id/notes", s.addNote)
	secured.GET("/tasks/:id/notes", s.listNotes)

	secured.GET("/analytics/summary", s.summary)
	secured.GET("/analytics/heatmap", s.heatmap)
	secured.GET("/analytics/trends", s.trends)
	secured.GET("/analytics/task/:id", s.taskDetail)

	return r
}

// Handler returns the router as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run listens on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	s.logger.Info("http server shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down http server: %w", err)
	}
	return nil
}

// today is the calendar day of the injected clock.
func (s *Server) today() types.Date {
	return types.DateOf(s.clock())
}
