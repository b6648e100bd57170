package server

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"signalwatch/internal/registry"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Snapshotter exposes the current subscriptions.
type Snapshotter interface {
	Snapshot() []registry.Subscription
}

// UpdateHandler consumes a raw Telegram webhook body.
type UpdateHandler interface {
	HandleRaw(ctx context.Context, body []byte) error
}

// HealthCheck reports whether a dependency is usable.
type HealthCheck func(ctx context.Context) error

type Deps struct {
	Gatherer      prometheus.Gatherer
	Subscriptions Snapshotter
	Webhook       UpdateHandler // nil disables the webhook route
	WebhookToken  string
	Checks        map[string]HealthCheck
}

// Server is the ops and webhook HTTP surface.
type Server struct {
	echo   *echo.Echo
	addr   string
	deps   Deps
	logger *zap.Logger
}

const maxUpdateBytes = 1 << 20

func New(addr string, deps Deps, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if deps.Gatherer == nil {
		deps.Gatherer = prometheus.DefaultGatherer
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURIPath: true,
		LogMethod:  true,
		LogStatus:  true,
		LogLatency: true,
		LogError:   true,
		Skipper: func(c echo.Context) bool {
			return c.Path() == "/healthz" || c.Path() == "/metrics"
		},
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			fields := []zap.Field{
				zap.String("method", v.Method),
				zap.String("route", c.Path()),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
			}
			if v.Error != nil {
				logger.Warn("http request failed", append(fields, zap.Error(v.Error))...)
				return nil
			}
			logger.Debug("http request", fields...)
			return nil
		},
	}))

	s := &Server{echo: e, addr: addr, deps: deps, logger: logger}

	e.GET("/healthz", s.health)
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	e.GET("/subscriptions", s.subscriptions)
	e.POST("/telegram/:token", s.webhook)
	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start serves until Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("http server listening", zap.String("addr", s.addr))
	if err := s.echo.Start(s.addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.echo.Shutdown(ctx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	s.logger.Info("http server stopped")
	return nil
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func (s *Server) health(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()

	resp := healthResponse{Status: "ok"}
	code := http.StatusOK
	for name, check := range s.deps.Checks {
		if resp.Checks == nil {
			resp.Checks = make(map[string]string, len(s.deps.Checks))
		}
		if err := check(ctx); err != nil {
			resp.Checks[name] = err.Error()
			resp.Status = "degraded"
			code = http.StatusServiceUnavailable
			continue
		}
		resp.Checks[name] = "ok"
	}
	return c.JSON(code, resp)
}

func (s *Server) subscriptions(c echo.Context) error {
	if s.deps.Subscriptions == nil {
		return c.JSON(http.StatusOK, []registry.Subscription{})
	}
	return c.JSON(http.StatusOK, s.deps.Subscriptions.Snapshot())
}

func (s *Server) webhook(c echo.Context) error {
	if s.deps.Webhook == nil || s.deps.WebhookToken == "" {
		return echo.ErrNotFound
	}
	token := c.Param("token")
	if subtle.ConstantTimeCompare([]byte(token), []byte(s.deps.WebhookToken)) != 1 {
		return echo.ErrNotFound
	}

	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxUpdateBytes))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "unreadable body")
	}
	if err := s.deps.Webhook.HandleRaw(c.Request().Context(), body); err != nil {
		s.logger.Warn("rejected webhook update", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "malformed update")
	}
	return c.NoContent(http.StatusOK)
}
