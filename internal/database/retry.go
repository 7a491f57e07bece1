// retry.go — политика повторов при установлении соединения с хранилищем.
// Повторы живут только здесь: верхние слои получают либо рабочий пул,
// либо ErrUnavailable.
package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jpillora/backoff"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// storeConnectAttempts — попытки подключения к хранилищу по результату.
var storeConnectAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "fv_store_connect_attempts_total",
	Help: "Количество попыток подключения к PostgreSQL по результату.",
}, []string{"result"})

// RetryPolicy — ограниченное число попыток с паузой между ними.
type RetryPolicy struct {
	// MaxAttempts — общее число попыток (минимум 1).
	MaxAttempts int
	// Backoff — фиксированная пауза между попытками.
	// Backoff <= 0 — повтор сразу, без паузы.
	Backoff time.Duration
}

// Do выполняет fn до первого успеха или до исчерпания попыток.
// Отмена ctx прерывает ожидание между попытками.
func (p RetryPolicy) Do(ctx context.Context, logger *slog.Logger, op string, fn func(ctx context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	b := &backoff.Backoff{
		Min:    p.Backoff,
		Max:    p.Backoff,
		Factor: 1,
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		lastErr = fn(ctx)
		if lastErr == nil {
			storeConnectAttempts.WithLabelValues("success").Inc()
			return nil
		}
		storeConnectAttempts.WithLabelValues("failure").Inc()

		logger.Warn("Попытка не удалась",
			slog.String("operation", op),
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", attempts),
			slog.String("error", lastErr.Error()),
		)

		if attempt == attempts {
			break
		}

		if p.Backoff <= 0 {
			// backoff.Backoff подставил бы свой минимум 100ms.
			if err := ctx.Err(); err != nil {
				return fmt.Errorf("%w: %s прервано: %w", ErrUnavailable, op, err)
			}
			continue
		}
		timer := time.NewTimer(b.Duration())
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("%w: %s прервано: %w", ErrUnavailable, op, ctx.Err())
		case <-timer.C:
		}
	}

	return fmt.Errorf("%w: %s, попыток %d: %w", ErrUnavailable, op, attempts, lastErr)
}
