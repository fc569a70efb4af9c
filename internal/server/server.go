// Package server exposes the webhook over a plain HTTP listener for local
// runs and container deployments.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/aws/aws-lambda-go/events"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

const maxBodyBytes int64 = 1 << 20 // 1 MiB

// ProxyHandler is the API Gateway shaped handler both transports share.
type ProxyHandler interface {
	Handle(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error)
}

type Server struct {
	echo    *echo.Echo
	addr    string
	handler ProxyHandler
}

func NewServer(addr string, handler ProxyHandler, logger *slog.Logger) (*Server, error) {
	if handler == nil {
		return nil, errors.New("server: handler must not be nil")
	}
	if addr == "" {
		addr = ":3000"
	}
	if logger == nil {
		logger = slog.Default()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:  true,
		LogURI:     true,
		LogMethod:  true,
		LogLatency: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			logger.Info("request",
				slog.String("method", v.Method),
				slog.String("uri", v.URI),
				slog.Int("status", v.Status),
				slog.Duration("latency", v.Latency),
				slog.String("remote_ip", c.RealIP()),
			)
			return nil
		},
	}))

	s := &Server{echo: e, addr: addr, handler: handler}
	e.GET("/ping", s.ping)
	e.POST("/webhook", s.webhook)
	return s, nil
}

func (s *Server) ping(c echo.Context) error {
	return c.String(http.StatusOK, "pong")
}

// webhook adapts the echo request into an API Gateway proxy event.
func (s *Server) webhook(c echo.Context) error {
	r := c.Request()
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "unable to read body")
	}
	if int64(len(body)) > maxBodyBytes {
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, "body too large")
	}

	headers := make(map[string]string, len(r.Header))
	for k, v := range r.Header {
		if len(v) > 0 {
			headers[k] = v[0]
		}
	}

	resp, err := s.handler.Handle(r.Context(), events.APIGatewayProxyRequest{
		HTTPMethod: r.Method,
		Path:       r.URL.Path,
		Headers:    headers,
		Body:       string(body),
	})
	if err != nil {
		return fmt.Errorf("server: webhook: %w", err)
	}

	for k, v := range resp.Headers {
		c.Response().Header().Set(k, v)
	}
	contentType := resp.Headers["Content-Type"]
	if contentType == "" {
		contentType = echo.MIMEApplicationJSON
	}
	return c.Blob(resp.StatusCode, contentType, []byte(resp.Body))
}

// Start blocks serving until Shutdown is called.
func (s *Server) Start() error {
	if err := s.echo.Start(s.addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// ServeHTTP lets tests drive the router directly.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}
