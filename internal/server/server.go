// Пакет server — HTTP-сервер filevault с graceful shutdown.
// Без TLS — HTTP внутри кластера, TLS termination на API Gateway.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"

	"github.com/bigkaa/filevault/internal/api/handlers"
	"github.com/bigkaa/filevault/internal/api/middleware"
	"github.com/bigkaa/filevault/internal/config"
)

// Server — HTTP-сервер filevault.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
	cfg        *config.Config
}

// New создаёт HTTP-сервер с маршрутами и middleware.
// jwtAuth == nil — API работает без аутентификации.
func New(cfg *config.Config, logger *slog.Logger, api *handlers.APIHandler, jwtAuth *middleware.JWTAuth) *Server {
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      NewRouter(api, jwtAuth, logger),
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  cfg.HTTPIdleTimeout,
	}

	return &Server{
		httpServer: srv,
		logger:     logger.With(slog.String("component", "server")),
		cfg:        cfg,
	}
}

// NewRouter собирает маршруты filevault.
// Health и metrics публичны: их опрашивает Kubernetes напрямую.
func NewRouter(api *handlers.APIHandler, jwtAuth *middleware.JWTAuth, logger *slog.Logger) http.Handler {
	router := chi.NewRouter()

	router.Use(middleware.MetricsMiddleware())
	router.Use(middleware.RequestLogger(logger))
	router.Use(middleware.Recoverer(logger))

	router.Get("/health/live", api.HealthLive)
	router.Get("/health/ready", api.HealthReady)
	router.Get("/metrics", api.GetMetrics)

	// guard возвращает проверку прав или пустой middleware без аутентификации.
	guard := func(roles []string, scopes ...string) func(http.Handler) http.Handler {
		if jwtAuth == nil {
			return func(next http.Handler) http.Handler { return next }
		}
		return middleware.RequireRoleOrScope(roles, scopes)
	}
	readers := []string{middleware.RoleAdmin, middleware.RoleReadonly}
	admins := []string{middleware.RoleAdmin}

	router.Route("/api/v1", func(r chi.Router) {
		if jwtAuth != nil {
			r.Use(jwtAuth.Middleware())
		}

		r.With(guard(admins, middleware.ScopeFilesWrite)).Post("/files", api.UpsertFile)
		r.With(guard(admins, middleware.ScopeFilesWrite)).Post("/files/batch", api.UpsertFilesBatch)
		r.With(guard(readers, middleware.ScopeFilesRead)).Get("/files/{file_id}", api.GetFile)

		r.With(guard(readers, middleware.ScopeFilesRead)).Post("/search", api.SearchFiles)
		r.With(guard(readers, middleware.ScopeFilesRead)).Post("/results", api.ResultPage)

		r.With(guard(admins, middleware.ScopeTokensWrite)).Post("/tokens", api.IssueToken)
		r.With(guard(readers, middleware.ScopeTokensRead)).Get("/tokens/{token}", api.RedeemToken)

		r.With(guard(readers, middleware.ScopePremiumRead)).Get("/premium/{user_id}", api.GetPremium)
		r.With(guard(admins, middleware.ScopePremiumWrite)).Put("/premium/{user_id}", api.GrantPremium)
	})

	return router
}

// Run запускает сервер и ожидает сигнала завершения (SIGINT, SIGTERM).
// При получении сигнала выполняется graceful shutdown.
func (s *Server) Run() error {
	errCh := make(chan error, 1)

	go func() {
		s.logger.Info("HTTP-сервер запущен",
			slog.String("addr", s.httpServer.Addr),
		)

		err := s.httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case sig := <-quit:
		s.logger.Info("Получен сигнал завершения", slog.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("ошибка HTTP-сервера: %w", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	s.logger.Info("Выполняется graceful shutdown...")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("ошибка при graceful shutdown: %w", err)
	}

	s.logger.Info("HTTP-сервер остановлен")
	return nil
}
