// Package server hosts the HTTP surface: recognition API, log/stats reads,
// health probes and Prometheus metrics.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hrygo/intentd/intent/recognizer"
	"github.com/hrygo/intentd/internal/profile"
	apiv1 "github.com/hrygo/intentd/server/router/api/v1"
	"github.com/hrygo/intentd/store"
)

const shutdownTimeout = 10 * time.Second

type Server struct {
	profile *profile.Profile
	store   *store.Store
	echo    *echo.Echo
}

func NewServer(profile *profile.Profile, st *store.Store, svc *recognizer.Service) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(requestLogger())
	e.Use(middleware.CORS())
	e.Use(middleware.TimeoutWithConfig(middleware.TimeoutConfig{
		Timeout: time.Duration(profile.RequestTimeout) * time.Second,
	}))

	s := &Server{
		profile: profile,
		store:   st,
		echo:    e,
	}

	e.GET("/healthz", s.healthz)
	e.GET("/readyz", s.readyz)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	api := apiv1.NewAPIV1Service(profile, st, svc)
	api.Register(e.Group("/api/v1"))
	return s
}

func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.profile.Addr, s.profile.Port)
	return s.echo.Start(addr)
}

func (s *Server) Shutdown(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()
	if err := s.echo.Shutdown(ctx); err != nil {
		slog.Error("failed to shut down http server", "error", err)
	}
	slog.Info("http server stopped")
}

// Echo exposes the underlying instance; used by tests.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

func (s *Server) healthz(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// readyz verifies the database is reachable. A degraded cache or LLM does not
// affect readiness; a dead database does.
func (s *Server) readyz(c echo.Context) error {
	if db := s.store.GetDriver().GetDB(); db != nil {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			return c.JSON(http.StatusServiceUnavailable, map[string]string{
				"status": "unavailable",
				"error":  err.Error(),
			})
		}
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ready"})
}

func requestLogger() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:     true,
		LogStatus:  true,
		LogMethod:  true,
		LogLatency: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			slog.Info("http request",
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency_ms", v.Latency.Milliseconds(),
			)
			return nil
		},
	})
}
