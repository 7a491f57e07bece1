package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// RedisOptions — параметры подключения к Redis.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	// DialTimeout — таймаут установления соединения
	DialTimeout time.Duration
}

// Redis — общий для экземпляров сервиса кэш в Redis.
type Redis struct {
	rdb    *goredis.Client
	logger *slog.Logger
}

// NewRedis создаёт клиента и проверяет доступность Redis.
// Недоступность только логируется: клиент переподключается
// при каждой следующей операции, а ошибки превращаются в промахи.
func NewRedis(opts RedisOptions, logger *slog.Logger) *Redis {
	dialTimeout := opts.DialTimeout
	if dialTimeout <= 0 {
		dialTimeout = 5 * time.Second
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:         opts.Addr,
		Password:     opts.Password,
		DB:           opts.DB,
		DialTimeout:  dialTimeout,
		ReadTimeout:  dialTimeout,
		WriteTimeout: dialTimeout,
		MaxRetries:   -1,
	})

	r := &Redis{
		rdb:    rdb,
		logger: logger.With(slog.String("component", "redis_cache")),
	}

	ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
	defer cancel()
	if err := r.Ping(ctx); err != nil {
		r.logger.Warn("Redis недоступен, кэш работает в режиме промахов",
			slog.String("addr", opts.Addr),
			slog.String("error", err.Error()),
		)
	} else {
		r.logger.Info("Подключение к Redis установлено", slog.String("addr", opts.Addr))
	}
	return r
}

// Get возвращает значение или ErrMiss.
func (r *Redis) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := r.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, ErrMiss
		}
		return nil, fmt.Errorf("redis get: %w", err)
	}
	return val, nil
}

// Set сохраняет значение с TTL.
func (r *Redis) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := r.rdb.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Delete удаляет ключ.
func (r *Redis) Delete(ctx context.Context, key string) error {
	if err := r.rdb.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// Ping проверяет доступность Redis.
func (r *Redis) Ping(ctx context.Context) error {
	if err := r.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}

// Close закрывает пул соединений клиента.
func (r *Redis) Close() error {
	return r.rdb.Close()
}
