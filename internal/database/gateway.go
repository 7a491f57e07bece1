// gateway.go — выдача соединений из пула с гарантированным возвратом.
// Соединение возвращается в пул на любом пути выхода: успех, ошибка, panic.
package database

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DBTX — интерфейс для выполнения SQL-запросов.
// Реализуется как *pgxpool.Conn, так и pgx.Tx, что позволяет
// использовать репозитории как внутри, так и вне транзакций.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Querier — выполнение работы на выделенном соединении.
// Реализуется Gateway; репозитории зависят только от этого интерфейса.
type Querier interface {
	// WithConn выдаёт соединение на время fn.
	WithConn(ctx context.Context, fn func(db DBTX) error) error
	// WithTx выполняет fn в транзакции; ошибка или panic откатывают её.
	WithTx(ctx context.Context, fn func(db DBTX) error) error
}

// pooledConn — соединение, взятое из пула.
type pooledConn interface {
	DBTX
	Begin(ctx context.Context) (pgx.Tx, error)
	Release()
}

// acquireFunc берёт соединение из пула.
type acquireFunc func(ctx context.Context) (pooledConn, error)

// Gateway — единственная точка выдачи соединений PostgreSQL.
type Gateway struct {
	acquire acquireFunc
}

// NewGateway создаёт Gateway поверх pgxpool.
func NewGateway(pool *pgxpool.Pool) *Gateway {
	return &Gateway{
		acquire: func(ctx context.Context) (pooledConn, error) {
			conn, err := pool.Acquire(ctx)
			if err != nil {
				return nil, err
			}
			return conn, nil
		},
	}
}

// WithConn берёт соединение, выполняет fn и возвращает соединение в пул.
// Если fn паникует, соединение освобождается до распространения panic.
func (g *Gateway) WithConn(ctx context.Context, fn func(db DBTX) error) error {
	conn, err := g.checkout(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	return classify(fn(conn))
}

// WithTx выполняет fn в транзакции на выделенном соединении.
// Commit только при nil-ошибке; ошибка или panic приводят к Rollback.
func (g *Gateway) WithTx(ctx context.Context, fn func(db DBTX) error) (err error) {
	conn, err := g.checkout(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	tx, err := conn.Begin(ctx)
	if err != nil {
		return classify(fmt.Errorf("ошибка начала транзакции: %w", err))
	}

	committed := false
	defer func() {
		if !committed {
			// Контекст запроса может быть уже отменён, откат выполняем без него.
			_ = tx.Rollback(context.WithoutCancel(ctx))
		}
	}()

	if err := fn(tx); err != nil {
		return classify(err)
	}
	if err := tx.Commit(ctx); err != nil {
		return classify(fmt.Errorf("ошибка фиксации транзакции: %w", err))
	}
	committed = true
	return nil
}

// checkout берёт соединение; отказ пула оборачивается в ErrUnavailable,
// отмена контекста вызывающего возвращается как есть.
func (g *Gateway) checkout(ctx context.Context) (pooledConn, error) {
	conn, err := g.acquire(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: получение соединения: %w", ErrUnavailable, err)
	}
	return conn, nil
}

// classify оборачивает в ErrUnavailable обрыв связи с сервером на уже
// выданном соединении. Ошибки SQL, ErrNoRows и отмена контекста
// возвращаются как есть.
func classify(err error) error {
	if err == nil || errors.Is(err, ErrUnavailable) || !isConnectionError(err) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrUnavailable, err)
}

// isConnectionError сообщает, вызвана ли ошибка потерей соединения.
func isConnectionError(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// 08 — connection exception, 57P — admin shutdown и восстановление,
		// 53300 — too_many_connections.
		return strings.HasPrefix(pgErr.Code, "08") ||
			strings.HasPrefix(pgErr.Code, "57P") ||
			pgErr.Code == "53300"
	}

	var connectErr *pgconn.ConnectError
	var netErr net.Error
	switch {
	case errors.As(err, &connectErr), errors.As(err, &netErr):
		return true
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF), errors.Is(err, net.ErrClosed):
		return true
	}
	// "conn closed" и прочие отказы до отправки запроса.
	return pgconn.SafeToRetry(err)
}
