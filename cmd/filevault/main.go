// Точка входа filevault — каталог медиафайлов с поиском и выдачей по токенам.
// Загружает конфигурацию, подключается к PostgreSQL, применяет миграции, подключает кэш,
// собирает сервисный слой и API handlers, запускает topologymetrics
// и HTTP-сервер с graceful shutdown.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/stdlib"

	"github.com/bigkaa/filevault/internal/api/handlers"
	"github.com/bigkaa/filevault/internal/api/middleware"
	"github.com/bigkaa/filevault/internal/cache"
	"github.com/bigkaa/filevault/internal/config"
	"github.com/bigkaa/filevault/internal/database"
	"github.com/bigkaa/filevault/internal/repository"
	"github.com/bigkaa/filevault/internal/server"
	"github.com/bigkaa/filevault/internal/service"
)

func main() {
	os.Exit(run())
}

// run собирает и запускает сервис, возвращая код завершения.
// Отложенные Close выполняются до выхода из процесса.
func run() int {
	// 1. Конфигурация
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Ошибка загрузки конфигурации", slog.String("error", err.Error()))
		return 1
	}

	// 2. Логирование
	logger := config.SetupLogger(cfg)
	logger.Info("filevault запускается",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
		slog.String("cache_backend", cfg.CacheBackend),
		slog.Bool("auth_enabled", cfg.AuthEnabled()),
	)

	// 3. PostgreSQL
	ctx := context.Background()
	pool, err := database.Connect(ctx, cfg, logger)
	if err != nil {
		logger.Error("Ошибка подключения к PostgreSQL", slog.String("error", err.Error()))
		return 1
	}
	defer pool.Close()
	gateway := database.NewGateway(pool)

	// 4. Миграции
	logger.Info("Применение миграций БД...")
	if err := database.Migrate(pool, logger); err != nil {
		logger.Error("Ошибка миграций БД", slog.String("error", err.Error()))
		return 1
	}

	// 5. Кэш
	backend := cache.New(cfg, logger)
	defer func() {
		if err := backend.Close(); err != nil {
			logger.Warn("Ошибка закрытия кэша", slog.String("error", err.Error()))
		}
	}()
	cacheSvc := service.NewCacheService(backend, cfg.CachePrefix, cfg.CacheTTL, cfg.CacheOpTimeout, logger)

	// 6. Repositories
	fileRepo := repository.NewFileRepository(gateway)
	tokenRepo := repository.NewTokenRepository(gateway)
	premiumRepo := repository.NewPremiumRepository(gateway)

	// 7. Services
	catalogueSvc := service.NewCatalogueService(fileRepo, cacheSvc, logger)
	searchSvc := service.NewSearchService(fileRepo, cacheSvc, cfg.SearchPageSize, logger)
	vaultSvc := service.NewVaultService(tokenRepo, logger)
	premiumSvc := service.NewPremiumService(premiumRepo, cfg.PremiumMaxDays, nil, logger)
	deliverySvc := service.NewDeliveryService(searchSvc, vaultSvc, premiumSvc, catalogueSvc, cfg.DeliveryLinkBase, logger)

	// 8. Handlers
	healthHandler := handlers.NewHealthHandler(database.NewReadinessChecker(pool), cacheSvc)
	apiHandler := handlers.NewAPIHandler(
		healthHandler,
		catalogueSvc,
		searchSvc,
		deliverySvc,
		vaultSvc,
		premiumSvc,
		logger,
	)

	// 9. JWT (только при заданном FV_JWT_JWKS_URL)
	var jwtAuth *middleware.JWTAuth
	if cfg.AuthEnabled() {
		jwtAuth, err = middleware.NewJWTAuth(
			cfg.JWTJWKSURL,
			cfg.JWTCACertPath,
			cfg.JWKSClientTimeout,
			cfg.JWKSRefreshInterval,
			middleware.AuthOptions{
				Issuer:         cfg.JWTIssuer,
				AdminGroups:    cfg.RoleAdminGroups,
				ReadonlyGroups: cfg.RoleReadonlyGroups,
				Leeway:         cfg.JWTLeeway,
			},
			logger,
		)
		if err != nil {
			logger.Error("Ошибка создания JWT middleware", slog.String("error", err.Error()))
			return 1
		}
		logger.Info("JWT middleware инициализирован",
			slog.String("jwks_url", cfg.JWTJWKSURL),
			slog.String("issuer", cfg.JWTIssuer),
		)
	} else {
		logger.Warn("FV_JWT_JWKS_URL не задан, API доступен без аутентификации")
	}

	// 10. topologymetrics
	var dephealthSvc *service.DephealthService
	if cfg.DephealthEnabled {
		// Проверка PostgreSQL идёт через существующий пул и замечает его исчерпание.
		pgDB := stdlib.OpenDBFromPool(pool)
		defer pgDB.Close()

		dephealthSvc, err = service.NewDephealthService(
			config.ServiceName,
			cfg.DephealthGroup,
			pgDB,
			cfg.DatabaseURL(),
			cfg.JWTJWKSURL,
			cfg.DephealthCheckInterval,
			logger,
		)
		if err != nil {
			logger.Warn("topologymetrics недоступен, запуск без мониторинга зависимостей",
				slog.String("error", err.Error()),
			)
			dephealthSvc = nil
		} else if err := dephealthSvc.Start(ctx); err != nil {
			logger.Warn("Ошибка запуска topologymetrics", slog.String("error", err.Error()))
			dephealthSvc = nil
		}
	}

	// 11. HTTP-сервер
	srv := server.New(cfg, logger, apiHandler, jwtAuth)
	runErr := srv.Run()

	// 12. Остановка фоновых задач
	if dephealthSvc != nil {
		dephealthSvc.Stop()
	}
	cacheSvc.Wait()

	if runErr != nil {
		logger.Error("Ошибка сервера", slog.String("error", runErr.Error()))
		return 1
	}
	logger.Info("filevault остановлен")
	return 0
}
