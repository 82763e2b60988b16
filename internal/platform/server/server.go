package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/ogurasousui/hrbank-api/internal/adapters/http/handler"
	"github.com/ogurasousui/hrbank-api/internal/platform/logger"
)

// Options は HTTP サーバーの設定です。
type Options struct {
	ListenAddr      string
	BodyLimit       string
	ShutdownTimeout time.Duration
}

// Server は HTTP サーバーのライフサイクルを管理します。
type Server struct {
	listenAddr      string
	shutdownTimeout time.Duration
	echo            *echo.Echo
}

// New はミドルウェアとルートを登録した HTTP サーバーを構築します。
func New(opts Options, handlers handler.Handlers) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = handler.ErrorHandler

	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{Generator: uuid.NewString}))
	e.Use(requestLogger())
	e.Use(middleware.Recover())
	if opts.BodyLimit != "" {
		e.Use(middleware.BodyLimit(opts.BodyLimit))
	}

	handler.Register(e, handlers)

	return &Server{
		listenAddr:      opts.ListenAddr,
		shutdownTimeout: opts.ShutdownTimeout,
		echo:            e,
	}
}

// Handler はルーティング済みの http.Handler を返します。
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Run はサーバーを起動し、コンテキストがキャンセルされると Shutdown します。
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.echo.Start(s.listenAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("serve http on %s: %w", s.listenAddr, err)
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.shutdownTimeout)
	defer cancel()
	if err := s.echo.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http: %w", err)
	}
	return <-errCh
}

// requestLogger はリクエストごとに request_id 付きのロガーを ctx に載せ、完了時に 1 行出力します。
func requestLogger() echo.MiddlewareFunc {
	attach := func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id := c.Response().Header().Get(echo.HeaderXRequestID)
			ctx := logger.WithFields(c.Request().Context(), map[string]any{"request_id": id})
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	}

	logLine := middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRemoteIP:  true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			l := logger.FromContext(c.Request().Context())
			ev := l.Info()
			if v.Status >= http.StatusInternalServerError {
				ev = l.Error().Err(v.Error)
			}
			ev.Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("remote_ip", v.RemoteIP).
				Msg("request")
			return nil
		},
	})

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return attach(logLine(next))
	}
}
