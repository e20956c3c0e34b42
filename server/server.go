// Package server is the HTTP transport over the engine: one chat operation,
// health, metrics, and a bcrypt-gated admin surface. It never reaches into
// the engine's internals beyond the exported turn API.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/kopibot/kopibot/engine"
	"github.com/kopibot/kopibot/engine/catalog"
	"github.com/kopibot/kopibot/engine/metrics"
	"github.com/kopibot/kopibot/internal/profile"
)

// Reindexer rebuilds the semantic product index. Nil when the vector store
// is not configured.
type Reindexer interface {
	Rebuild(ctx context.Context, products []catalog.Product) error
	Status(ctx context.Context) (map[string]any, error)
}

// Server hosts the transport.
type Server struct {
	e        *echo.Echo
	engine   *engine.Engine
	profile  *profile.Profile
	exporter *metrics.Exporter
	logger   *slog.Logger

	products  []catalog.Product
	reindexer Reindexer
	// one reindex at a time; further requests get 409
	reindexSem *semaphore.Weighted

	limiterMu sync.Mutex
	limiters  map[string]*rate.Limiter
}

// Option configures a Server.
type Option func(*Server)

// WithReindexer wires the admin rebuild endpoint to a vector index.
func WithReindexer(r Reindexer, products []catalog.Product) Option {
	return func(s *Server) {
		s.reindexer = r
		s.products = products
	}
}

// WithMetrics exposes the exporter at /metrics.
func WithMetrics(m *metrics.Exporter) Option {
	return func(s *Server) { s.exporter = m }
}

// New assembles the echo server around an engine.
func New(eng *engine.Engine, p *profile.Profile, logger *slog.Logger, opts ...Option) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		e:          echo.New(),
		engine:     eng,
		profile:    p,
		logger:     logger,
		reindexSem: semaphore.NewWeighted(1),
		limiters:   make(map[string]*rate.Limiter),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.e.HideBanner = true
	s.e.HidePort = true
	s.e.Use(middleware.Recover())
	s.e.Use(middleware.RequestID())

	s.routes()
	return s
}

func (s *Server) routes() {
	s.e.GET("/healthz", s.health)
	if s.exporter != nil {
		s.e.GET("/metrics", echo.WrapHandler(s.exporter.Handler()))
	}

	api := s.e.Group("/api/v1")
	api.POST("/chat", s.chat, s.rateLimit)

	admin := api.Group("/admin", s.adminAuth)
	admin.POST("/reindex", s.reindex)
	admin.GET("/sessions/:id", s.sessionDebug)
	admin.GET("/vector/status", s.vectorStatus)
}

// Echo exposes the router for tests.
func (s *Server) Echo() *echo.Echo {
	return s.e
}

// Start serves until the context is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context, addr string) error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.e.Start(addr); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()
	s.logger.Info("http server started", "addr", addr)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.e.Shutdown(shutdownCtx)
	}
}

type errorBody struct {
	Error string `json:"error"`
}

func (s *Server) health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":  "ok",
		"version": s.profile.Version,
	})
}

func (s *Server) chat(c echo.Context) error {
	var req engine.Request
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody{Error: "invalid request body"})
	}

	resp, err := s.engine.Chat(c.Request().Context(), req)
	if err != nil {
		// validation errors are the only error path out of Chat
		return c.JSON(http.StatusBadRequest, errorBody{Error: err.Error()})
	}
	return c.JSON(http.StatusOK, resp)
}

// rateLimit applies a per-client-IP token bucket to the chat endpoint.
func (s *Server) rateLimit(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if !s.limiterFor(c.RealIP()).Allow() {
			return c.JSON(http.StatusTooManyRequests, errorBody{Error: "too many requests"})
		}
		return next(c)
	}
}

func (s *Server) limiterFor(ip string) *rate.Limiter {
	s.limiterMu.Lock()
	defer s.limiterMu.Unlock()
	lim, ok := s.limiters[ip]
	if !ok {
		rps := s.profile.RateLimitRPS
		if rps <= 0 {
			rps = 5
		}
		lim = rate.NewLimiter(rate.Limit(rps), int(rps)*2)
		s.limiters[ip] = lim
	}
	return lim
}

// adminAuth checks X-Admin-Secret against the configured bcrypt hash.
func (s *Server) adminAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if s.profile.AdminSecretHash == "" {
			return c.JSON(http.StatusNotFound, errorBody{Error: "admin surface disabled"})
		}
		secret := c.Request().Header.Get("X-Admin-Secret")
		if secret == "" {
			return c.JSON(http.StatusUnauthorized, errorBody{Error: "missing admin secret"})
		}
		if err := bcrypt.CompareHashAndPassword([]byte(s.profile.AdminSecretHash), []byte(secret)); err != nil {
			return c.JSON(http.StatusUnauthorized, errorBody{Error: "invalid admin secret"})
		}
		return next(c)
	}
}

func (s *Server) reindex(c echo.Context) error {
	if s.reindexer == nil {
		return c.JSON(http.StatusNotFound, errorBody{Error: "vector store not configured"})
	}
	if !s.reindexSem.TryAcquire(1) {
		return c.JSON(http.StatusConflict, errorBody{Error: "reindex already running"})
	}
	defer s.reindexSem.Release(1)

	started := time.Now()
	if err := s.reindexer.Rebuild(c.Request().Context(), s.products); err != nil {
		s.logger.Error("reindex failed", "error", err)
		return c.JSON(http.StatusInternalServerError, errorBody{Error: "reindex failed"})
	}
	return c.JSON(http.StatusOK, map[string]any{
		"products": len(s.products),
		"took":     time.Since(started).String(),
	})
}

func (s *Server) sessionDebug(c echo.Context) error {
	id := c.Param("id")
	snap, ok := s.engine.Sessions().Peek(id)
	if !ok {
		return c.JSON(http.StatusNotFound, errorBody{Error: "session not found"})
	}
	return c.JSON(http.StatusOK, snap)
}

func (s *Server) vectorStatus(c echo.Context) error {
	if s.reindexer == nil {
		return c.JSON(http.StatusOK, map[string]any{"enabled": false})
	}
	status, err := s.reindexer.Status(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, errorBody{Error: "vector store unreachable"})
	}
	status["enabled"] = true
	return c.JSON(http.StatusOK, status)
}
