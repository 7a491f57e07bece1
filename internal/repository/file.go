package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/bigkaa/filevault/internal/database"
	"github.com/bigkaa/filevault/internal/domain/model"
)

// fileColumns — список столбцов таблицы files для SELECT-запросов.
const fileColumns = `id, access_hash, file_reference, mime_type, caption,
	keywords, file_name, created_at, updated_at`

// FileRepository — интерфейс доступа к каталогу файлов.
type FileRepository interface {
	// Upsert вставляет или обновляет запись по id (last-write-wins).
	// Возвращает сохранённую запись и признак вставки.
	Upsert(ctx context.Context, f *model.FileRecord) (*model.FileRecord, bool, error)
	// BatchUpsert атомарно вставляет или обновляет массив записей.
	BatchUpsert(ctx context.Context, files []*model.FileRecord) (added, updated int, err error)
	// GetByID возвращает файл по id или ErrNotFound.
	GetByID(ctx context.Context, id string) (*model.FileRecord, error)
	// Search возвращает страницу ранжированных совпадений.
	Search(ctx context.Context, params SearchParams) ([]*model.SearchHit, error)
	// Count возвращает общее число совпадений для тех же параметров.
	Count(ctx context.Context, params SearchParams) (int, error)
}

// fileRepo — реализация FileRepository через pgx.
type fileRepo struct {
	db database.Querier
}

// NewFileRepository создаёт репозиторий каталога файлов.
func NewFileRepository(db database.Querier) FileRepository {
	return &fileRepo{db: db}
}

// upsertFileQuery — вставка или обновление всех неключевых столбцов.
// (xmax = 0) истинно только для только что вставленной строки.
const upsertFileQuery = `
	INSERT INTO files (id, access_hash, file_reference, mime_type, caption, keywords, file_name)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	ON CONFLICT (id) DO UPDATE SET
		access_hash = EXCLUDED.access_hash,
		file_reference = EXCLUDED.file_reference,
		mime_type = EXCLUDED.mime_type,
		caption = EXCLUDED.caption,
		keywords = EXCLUDED.keywords,
		file_name = EXCLUDED.file_name,
		updated_at = now()
	RETURNING ` + fileColumns + `, (xmax = 0) AS is_insert`

// Upsert вставляет или обновляет запись каталога.
func (r *fileRepo) Upsert(ctx context.Context, f *model.FileRecord) (*model.FileRecord, bool, error) {
	var (
		saved    *model.FileRecord
		inserted bool
	)
	err := r.db.WithConn(ctx, func(db database.DBTX) error {
		var err error
		saved, inserted, err = upsertFile(ctx, db, f)
		return err
	})
	if err != nil {
		return nil, false, err
	}
	return saved, inserted, nil
}

// BatchUpsert вставляет или обновляет файлы в одной транзакции.
// Ошибка любой записи откатывает весь пакет.
func (r *fileRepo) BatchUpsert(ctx context.Context, files []*model.FileRecord) (added, updated int, err error) {
	if len(files) == 0 {
		return 0, 0, nil
	}

	err = r.db.WithTx(ctx, func(db database.DBTX) error {
		added, updated = 0, 0
		for _, f := range files {
			_, inserted, err := upsertFile(ctx, db, f)
			if err != nil {
				return err
			}
			if inserted {
				added++
			} else {
				updated++
			}
		}
		return nil
	})
	if err != nil {
		return 0, 0, err
	}
	return added, updated, nil
}

// upsertFile выполняет upsert одной записи на переданном соединении.
func upsertFile(ctx context.Context, db database.DBTX, f *model.FileRecord) (*model.FileRecord, bool, error) {
	saved := &model.FileRecord{}
	var inserted bool
	err := db.QueryRow(ctx, upsertFileQuery,
		f.ID, f.AccessHash, f.FileReference, f.MimeType, f.Caption, f.Keywords, f.FileName,
	).Scan(
		&saved.ID, &saved.AccessHash, &saved.FileReference, &saved.MimeType, &saved.Caption,
		&saved.Keywords, &saved.FileName, &saved.CreatedAt, &saved.UpdatedAt, &inserted,
	)
	if err != nil {
		return nil, false, fmt.Errorf("ошибка upsert файла %s: %w", f.ID, err)
	}
	return saved, inserted, nil
}

// GetByID возвращает файл по id или ErrNotFound.
func (r *fileRepo) GetByID(ctx context.Context, id string) (*model.FileRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM files WHERE id = $1`, fileColumns)

	f := &model.FileRecord{}
	err := r.db.WithConn(ctx, func(db database.DBTX) error {
		return db.QueryRow(ctx, query, id).Scan(
			&f.ID, &f.AccessHash, &f.FileReference, &f.MimeType, &f.Caption,
			&f.Keywords, &f.FileName, &f.CreatedAt, &f.UpdatedAt,
		)
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения файла: %w", err)
	}
	return f, nil
}

// Search выполняет ранжированный поиск с пагинацией.
func (r *fileRepo) Search(ctx context.Context, params SearchParams) ([]*model.SearchHit, error) {
	if len(params.Keywords) == 0 {
		return nil, nil
	}
	query, args := buildSearchQuery(params)

	var hits []*model.SearchHit
	err := r.db.WithConn(ctx, func(db database.DBTX) error {
		rows, err := db.Query(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("ошибка поиска файлов: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			h := &model.SearchHit{}
			f := &h.File
			if err := rows.Scan(
				&f.ID, &f.AccessHash, &f.FileReference, &f.MimeType, &f.Caption,
				&f.Keywords, &f.FileName, &f.CreatedAt, &f.UpdatedAt, &h.Rank,
			); err != nil {
				return fmt.Errorf("ошибка сканирования файла: %w", err)
			}
			hits = append(hits, h)
		}
		if err := rows.Err(); err != nil {
			return fmt.Errorf("ошибка итерации результатов: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return hits, nil
}

// Count возвращает число строк с ненулевым рангом.
func (r *fileRepo) Count(ctx context.Context, params SearchParams) (int, error) {
	if len(params.Keywords) == 0 {
		return 0, nil
	}
	query, args := buildCountQuery(params)

	var total int
	err := r.db.WithConn(ctx, func(db database.DBTX) error {
		return db.QueryRow(ctx, query, args...).Scan(&total)
	})
	if err != nil {
		return 0, fmt.Errorf("ошибка подсчёта файлов: %w", err)
	}
	return total, nil
}
