// catalogue.go — сервис каталога файлов: регистрация метаданных и получение по id.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/bigkaa/filevault/internal/domain/model"
	"github.com/bigkaa/filevault/internal/repository"
	"github.com/bigkaa/filevault/internal/search"
)

// FileInput — метаданные файла для регистрации в каталоге.
type FileInput struct {
	ID            string
	AccessHash    string
	FileReference []byte
	MimeType      string
	Caption       string
	Keywords      string
	FileName      string
}

// CatalogueService — сервис каталога файлов.
type CatalogueService struct {
	fileRepo repository.FileRepository
	cache    *CacheService
	logger   *slog.Logger
}

// NewCatalogueService создаёт сервис каталога.
func NewCatalogueService(
	fileRepo repository.FileRepository,
	cache *CacheService,
	logger *slog.Logger,
) *CatalogueService {
	return &CatalogueService{
		fileRepo: fileRepo,
		cache:    cache,
		logger:   logger.With(slog.String("component", "catalogue_service")),
	}
}

// Upsert регистрирует файл или перезаписывает его метаданные.
// После записи удаляется только ключ file:<id>; страницы поиска
// обновятся по истечении TTL.
func (s *CatalogueService) Upsert(ctx context.Context, in FileInput) (*model.FileRecord, error) {
	record, err := toRecord(in)
	if err != nil {
		return nil, err
	}

	saved, inserted, err := s.fileRepo.Upsert(ctx, record)
	if err != nil {
		return nil, fmt.Errorf("сохранение файла: %w", err)
	}
	s.cache.Delete(ctx, s.cache.FileKey(saved.ID))

	s.logger.Info("Файл сохранён в каталоге",
		slog.String("file_id", saved.ID),
		slog.Bool("inserted", inserted),
	)
	return saved, nil
}

// UpsertMany регистрирует пакет файлов в одной транзакции.
// Некорректная запись отклоняет весь пакет до обращения к БД.
func (s *CatalogueService) UpsertMany(ctx context.Context, inputs []FileInput) (added, updated int, err error) {
	records := make([]*model.FileRecord, 0, len(inputs))
	for i, in := range inputs {
		record, err := toRecord(in)
		if err != nil {
			return 0, 0, fmt.Errorf("запись %d: %w", i, err)
		}
		records = append(records, record)
	}

	added, updated, err = s.fileRepo.BatchUpsert(ctx, records)
	if err != nil {
		return 0, 0, fmt.Errorf("пакетное сохранение файлов: %w", err)
	}
	for _, r := range records {
		s.cache.Delete(ctx, s.cache.FileKey(r.ID))
	}

	s.logger.Info("Пакет файлов сохранён в каталоге",
		slog.Int("added", added),
		slog.Int("updated", updated),
	)
	return added, updated, nil
}

// GetByID возвращает метаданные файла: кэш, затем БД.
func (s *CatalogueService) GetByID(ctx context.Context, fileID string) (*model.FileRecord, error) {
	key := s.cache.FileKey(fileID)

	var cached model.FileRecord
	if s.cache.Get(ctx, key, &cached) {
		s.logger.Debug("Кэш hit для файла", slog.String("file_id", fileID))
		return &cached, nil
	}

	version := s.cache.Version(key)
	record, err := s.fileRepo.GetByID(ctx, fileID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("получение метаданных файла: %w", err)
	}

	s.cache.SetIfUnchanged(ctx, key, record, version)
	return record, nil
}

// toRecord проверяет вход и нормализует имя и подпись.
func toRecord(in FileInput) (*model.FileRecord, error) {
	id := strings.TrimSpace(in.ID)
	if id == "" {
		return nil, fmt.Errorf("%w: id файла обязателен", ErrInvalidInput)
	}
	return &model.FileRecord{
		ID:            id,
		AccessHash:    in.AccessHash,
		FileReference: in.FileReference,
		MimeType:      in.MimeType,
		Caption:       search.CleanCaption(in.Caption),
		Keywords:      in.Keywords,
		FileName:      search.NormalizeFileName(in.FileName),
	}, nil
}
