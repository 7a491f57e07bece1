package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/bigkaa/filevault/internal/cache"
	"github.com/bigkaa/filevault/internal/domain/model"
	"github.com/bigkaa/filevault/internal/repository"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestCache создаёт CacheService поверх LRU в памяти.
func newTestCache() *CacheService {
	return NewCacheService(cache.NewLRU(100, time.Minute), "fv:", time.Minute, time.Second, discardLogger())
}

// --- Mock repositories ---

// mockFileRepo — мок FileRepository для unit-тестов.
type mockFileRepo struct {
	upsertFn      func(ctx context.Context, f *model.FileRecord) (*model.FileRecord, bool, error)
	batchUpsertFn func(ctx context.Context, files []*model.FileRecord) (int, int, error)
	getByIDFn     func(ctx context.Context, id string) (*model.FileRecord, error)
	searchFn      func(ctx context.Context, params repository.SearchParams) ([]*model.SearchHit, error)
	countFn       func(ctx context.Context, params repository.SearchParams) (int, error)
}

func (m *mockFileRepo) Upsert(ctx context.Context, f *model.FileRecord) (*model.FileRecord, bool, error) {
	if m.upsertFn != nil {
		return m.upsertFn(ctx, f)
	}
	saved := *f
	return &saved, true, nil
}

func (m *mockFileRepo) BatchUpsert(ctx context.Context, files []*model.FileRecord) (int, int, error) {
	if m.batchUpsertFn != nil {
		return m.batchUpsertFn(ctx, files)
	}
	return len(files), 0, nil
}

func (m *mockFileRepo) GetByID(ctx context.Context, id string) (*model.FileRecord, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, repository.ErrNotFound
}

func (m *mockFileRepo) Search(ctx context.Context, params repository.SearchParams) ([]*model.SearchHit, error) {
	if m.searchFn != nil {
		return m.searchFn(ctx, params)
	}
	return nil, nil
}

func (m *mockFileRepo) Count(ctx context.Context, params repository.SearchParams) (int, error) {
	if m.countFn != nil {
		return m.countFn(ctx, params)
	}
	return 0, nil
}

// mockTokenRepo — мок TokenRepository.
type mockTokenRepo struct {
	getByFileIDFn func(ctx context.Context, fileID string) (*model.Token, error)
	createFn      func(ctx context.Context, token, fileID string) (bool, error)
	resolveFn     func(ctx context.Context, token string) (*model.Token, error)
}

func (m *mockTokenRepo) GetByFileID(ctx context.Context, fileID string) (*model.Token, error) {
	if m.getByFileIDFn != nil {
		return m.getByFileIDFn(ctx, fileID)
	}
	return nil, repository.ErrNotFound
}

func (m *mockTokenRepo) Create(ctx context.Context, token, fileID string) (bool, error) {
	if m.createFn != nil {
		return m.createFn(ctx, token, fileID)
	}
	return true, nil
}

func (m *mockTokenRepo) Resolve(ctx context.Context, token string) (*model.Token, error) {
	if m.resolveFn != nil {
		return m.resolveFn(ctx, token)
	}
	return nil, repository.ErrNotFound
}

// memTokenRepo — TokenRepository в памяти с теми же гарантиями
// уникальности, что и таблица tokens.
type memTokenRepo struct {
	mu     sync.Mutex
	byFile map[string]string
	byTok  map[string]string
	files  map[string]bool
}

func newMemTokenRepo(fileIDs ...string) *memTokenRepo {
	r := &memTokenRepo{
		byFile: map[string]string{},
		byTok:  map[string]string{},
		files:  map[string]bool{},
	}
	for _, id := range fileIDs {
		r.files[id] = true
	}
	return r
}

func (r *memTokenRepo) GetByFileID(_ context.Context, fileID string) (*model.Token, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	tok, ok := r.byFile[fileID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &model.Token{Token: tok, FileID: fileID}, nil
}

func (r *memTokenRepo) Create(_ context.Context, token, fileID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.files[fileID] {
		return false, repository.ErrNotFound
	}
	if _, ok := r.byFile[fileID]; ok {
		return false, nil
	}
	if _, ok := r.byTok[token]; ok {
		return false, repository.ErrConflict
	}
	r.byFile[fileID] = token
	r.byTok[token] = fileID
	return true, nil
}

func (r *memTokenRepo) Resolve(_ context.Context, token string) (*model.Token, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fileID, ok := r.byTok[token]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &model.Token{Token: token, FileID: fileID}, nil
}

func (r *memTokenRepo) rows() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byTok)
}

// mockPremiumRepo — мок PremiumRepository.
type mockPremiumRepo struct {
	getFn    func(ctx context.Context, userID int64) (*model.Entitlement, error)
	extendFn func(ctx context.Context, userID int64, now time.Time, days int) (time.Time, error)
}

func (m *mockPremiumRepo) Get(ctx context.Context, userID int64) (*model.Entitlement, error) {
	if m.getFn != nil {
		return m.getFn(ctx, userID)
	}
	return nil, repository.ErrNotFound
}

func (m *mockPremiumRepo) Extend(ctx context.Context, userID int64, now time.Time, days int) (time.Time, error) {
	if m.extendFn != nil {
		return m.extendFn(ctx, userID, now, days)
	}
	return now.AddDate(0, 0, days), nil
}

// failingBackend — бэкенд кэша, у которого падает каждая операция.
type failingBackend struct {
	mu    sync.Mutex
	calls int
}

var errBackendDown = errors.New("кэш недоступен")

func (b *failingBackend) hit() {
	b.mu.Lock()
	b.calls++
	b.mu.Unlock()
}

func (b *failingBackend) Get(context.Context, string) ([]byte, error) {
	b.hit()
	return nil, errBackendDown
}

func (b *failingBackend) Set(context.Context, string, []byte, time.Duration) error {
	b.hit()
	return errBackendDown
}

func (b *failingBackend) Delete(context.Context, string) error {
	b.hit()
	return errBackendDown
}

func (b *failingBackend) Ping(context.Context) error { return errBackendDown }
func (b *failingBackend) Close() error { return nil }

// slowSetBackend — LRU в памяти, Set которого выполняется с задержкой.
type slowSetBackend struct {
	cache.Backend
	delay time.Duration
}

func newSlowSetBackend(delay time.Duration) *slowSetBackend {
	return &slowSetBackend{Backend: cache.NewLRU(100, time.Minute), delay: delay}
}

func (b *slowSetBackend) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	time.Sleep(b.delay)
	return b.Backend.Set(ctx, key, value, ttl)
}
