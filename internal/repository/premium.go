package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/bigkaa/filevault/internal/database"
	"github.com/bigkaa/filevault/internal/domain/model"
)

// PremiumRepository — интерфейс хранилища премиум-доступа.
type PremiumRepository interface {
	// Get возвращает запись пользователя или ErrNotFound.
	Get(ctx context.Context, userID int64) (*model.Entitlement, error)
	// Extend продлевает доступ на days дней от max(now, текущий срок)
	// одним атомарным запросом и возвращает новый срок.
	Extend(ctx context.Context, userID int64, now time.Time, days int) (time.Time, error)
}

// premiumRepo — реализация PremiumRepository через pgx.
type premiumRepo struct {
	db database.Querier
}

// NewPremiumRepository создаёт репозиторий премиум-доступа.
func NewPremiumRepository(db database.Querier) PremiumRepository {
	return &premiumRepo{db: db}
}

// Get возвращает запись премиум-доступа.
func (r *premiumRepo) Get(ctx context.Context, userID int64) (*model.Entitlement, error) {
	query := `SELECT user_id, expiry_date, created_at FROM premium_users WHERE user_id = $1`

	e := &model.Entitlement{}
	err := r.db.WithConn(ctx, func(db database.DBTX) error {
		return db.QueryRow(ctx, query, userID).Scan(&e.UserID, &e.ExpiryDate, &e.CreatedAt)
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения премиум-доступа: %w", err)
	}
	return e, nil
}

// Extend выдаёт или продлевает доступ.
// Параллельные продления одного пользователя сериализуются блокировкой строки
// в ON CONFLICT DO UPDATE, поэтому дни не теряются.
func (r *premiumRepo) Extend(ctx context.Context, userID int64, now time.Time, days int) (time.Time, error) {
	query := `
		INSERT INTO premium_users (user_id, expiry_date)
		VALUES ($1, $2::timestamptz + make_interval(days => $3))
		ON CONFLICT (user_id) DO UPDATE SET
			expiry_date = GREATEST(premium_users.expiry_date, $2::timestamptz) + make_interval(days => $3)
		RETURNING expiry_date`

	var expiry time.Time
	err := r.db.WithConn(ctx, func(db database.DBTX) error {
		return db.QueryRow(ctx, query, userID, now, days).Scan(&expiry)
	})
	if err != nil {
		return time.Time{}, fmt.Errorf("ошибка продления премиум-доступа: %w", err)
	}
	return expiry, nil
}
