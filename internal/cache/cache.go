// Пакет cache — бэкенды кэша результатов поиска и метаданных файлов.
// Кэш никогда не является источником истины: вызывающий код трактует
// любую ошибку бэкенда как промах.
package cache

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/bigkaa/filevault/internal/config"
)

// ErrMiss — ключ отсутствует в кэше или истёк.
var ErrMiss = errors.New("запись кэша не найдена")

// Backend — хранилище байтовых значений с TTL.
type Backend interface {
	// Get возвращает значение или ErrMiss.
	Get(ctx context.Context, key string) ([]byte, error)
	// Set сохраняет значение на ttl.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Delete удаляет ключ. Отсутствие ключа не является ошибкой.
	Delete(ctx context.Context, key string) error
	// Ping проверяет доступность бэкенда.
	Ping(ctx context.Context) error
	// Close освобождает ресурсы бэкенда.
	Close() error
}

// New выбирает бэкенд по FV_CACHE_BACKEND.
// Недоступный при старте Redis не останавливает сервис.
func New(cfg *config.Config, logger *slog.Logger) Backend {
	switch cfg.CacheBackend {
	case config.CacheBackendRedis:
		return NewRedis(RedisOptions{
			Addr:        cfg.RedisAddr,
			Password:    cfg.RedisPassword,
			DB:          cfg.RedisDB,
			DialTimeout: cfg.CacheOpTimeout,
		}, logger)
	case config.CacheBackendMemory:
		logger.Info("Кэш в памяти процесса",
			slog.Int("size", cfg.CacheSize),
			slog.Duration("ttl", cfg.CacheTTL),
		)
		return NewLRU(cfg.CacheSize, cfg.CacheTTL)
	default:
		logger.Info("Кэш отключён")
		return Noop{}
	}
}

// Noop — бэкенд отключённого кэша: всегда промах, запись игнорируется.
type Noop struct{}

func (Noop) Get(context.Context, string) ([]byte, error) { return nil, ErrMiss }
func (Noop) Set(context.Context, string, []byte, time.Duration) error { return nil }
func (Noop) Delete(context.Context, string) error { return nil }
func (Noop) Ping(context.Context) error { return nil }
func (Noop) Close() error { return nil }
