package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/bigkaa/filevault/internal/database"
	"github.com/bigkaa/filevault/internal/domain/model"
)

// TokenRepository — интерфейс хранилища токенов доступа.
type TokenRepository interface {
	// GetByFileID возвращает токен файла или ErrNotFound.
	GetByFileID(ctx context.Context, fileID string) (*model.Token, error)
	// Create сохраняет токен для файла, если у файла ещё нет токена.
	// created=false — токен файла уже существует (параллельная выдача победила).
	// ErrConflict — совпадение самого значения токена с чужим.
	// ErrNotFound — файла с таким id нет.
	Create(ctx context.Context, token, fileID string) (created bool, err error)
	// Resolve возвращает токен по значению или ErrNotFound.
	Resolve(ctx context.Context, token string) (*model.Token, error)
}

// tokenRepo — реализация TokenRepository через pgx.
type tokenRepo struct {
	db database.Querier
}

// NewTokenRepository создаёт репозиторий токенов.
func NewTokenRepository(db database.Querier) TokenRepository {
	return &tokenRepo{db: db}
}

// GetByFileID возвращает токен файла.
func (r *tokenRepo) GetByFileID(ctx context.Context, fileID string) (*model.Token, error) {
	return r.getOne(ctx, `SELECT token, file_id, created_at FROM tokens WHERE file_id = $1`, fileID)
}

// Resolve возвращает токен по его значению.
func (r *tokenRepo) Resolve(ctx context.Context, token string) (*model.Token, error) {
	return r.getOne(ctx, `SELECT token, file_id, created_at FROM tokens WHERE token = $1`, token)
}

func (r *tokenRepo) getOne(ctx context.Context, query string, arg string) (*model.Token, error) {
	t := &model.Token{}
	err := r.db.WithConn(ctx, func(db database.DBTX) error {
		return db.QueryRow(ctx, query, arg).Scan(&t.Token, &t.FileID, &t.CreatedAt)
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения токена: %w", err)
	}
	return t, nil
}

// Create вставляет токен. Конфликт по file_id не является ошибкой:
// ON CONFLICT DO NOTHING не возвращает строку, и вызывающий перечитывает
// токен победителя. Конфликт по первичному ключу token — ErrConflict.
func (r *tokenRepo) Create(ctx context.Context, token, fileID string) (bool, error) {
	query := `
		INSERT INTO tokens (token, file_id)
		VALUES ($1, $2)
		ON CONFLICT (file_id) DO NOTHING
		RETURNING token`

	var stored string
	err := r.db.WithConn(ctx, func(db database.DBTX) error {
		return db.QueryRow(ctx, query, token, fileID).Scan(&stored)
	})
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, pgx.ErrNoRows):
		return false, nil
	case isUniqueViolation(err):
		return false, ErrConflict
	case isForeignKeyViolation(err):
		return false, ErrNotFound
	default:
		return false, fmt.Errorf("ошибка создания токена: %w", err)
	}
}
