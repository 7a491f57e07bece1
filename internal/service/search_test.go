package service

import (
	"context"
	"errors"
	"math"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bigkaa/filevault/internal/domain/model"
	"github.com/bigkaa/filevault/internal/repository"
)

func hits(names ...string) []*model.SearchHit {
	out := make([]*model.SearchHit, 0, len(names))
	for i, n := range names {
		out = append(out, &model.SearchHit{
			File: model.FileRecord{ID: n, FileName: n},
			Rank: float64(100 - i),
		})
	}
	return out
}

// TestSearchService_Search проверяет нормализацию фразы и параметры запроса.
func TestSearchService_Search(t *testing.T) {
	repo := &mockFileRepo{
		searchFn: func(_ context.Context, p repository.SearchParams) ([]*model.SearchHit, error) {
			if p.Phrase != "the matrix 1999" {
				t.Errorf("Phrase = %q", p.Phrase)
			}
			if len(p.Keywords) != 3 || p.Keywords[0] != "the" {
				t.Errorf("Keywords = %v", p.Keywords)
			}
			if p.Limit != 10 || p.Offset != 10 {
				t.Errorf("Limit/Offset = %d/%d, ожидалось 10/10", p.Limit, p.Offset)
			}
			return hits("a", "b"), nil
		},
		countFn: func(_ context.Context, _ repository.SearchParams) (int, error) {
			return 12, nil
		},
	}
	svc := NewSearchService(repo, newTestCache(), 10, discardLogger())

	res, err := svc.Search(context.Background(), Query{Phrase: "  The.MATRIX (1999)! ", Page: 2})
	if err != nil {
		t.Fatalf("Search ошибка: %v", err)
	}
	if res.Total != 12 || len(res.Items) != 2 {
		t.Errorf("Total=%d Items=%d, ожидалось 12/2", res.Total, len(res.Items))
	}
	if res.TotalPages != 2 {
		t.Errorf("TotalPages = %d, ожидалось 2", res.TotalPages)
	}
	if res.HasMore {
		t.Error("HasMore = true на последней странице")
	}
	if res.Phrase != "the matrix 1999" {
		t.Errorf("Phrase = %q", res.Phrase)
	}
}

// TestSearchService_EmptyPhrase проверяет, что пустая фраза не обращается к БД.
func TestSearchService_EmptyPhrase(t *testing.T) {
	repo := &mockFileRepo{
		searchFn: func(context.Context, repository.SearchParams) ([]*model.SearchHit, error) {
			t.Error("Search не должен вызываться")
			return nil, nil
		},
		countFn: func(context.Context, repository.SearchParams) (int, error) {
			t.Error("Count не должен вызываться")
			return 0, nil
		},
	}
	svc := NewSearchService(repo, newTestCache(), 10, discardLogger())

	for _, phrase := range []string{"", "   ", "!!! ---", "日本語"} {
		res, err := svc.Search(context.Background(), Query{Phrase: phrase})
		if err != nil {
			t.Fatalf("Search(%q) ошибка: %v", phrase, err)
		}
		if res.Total != 0 || len(res.Items) != 0 || res.Items == nil {
			t.Errorf("Search(%q) = %+v, ожидалась пустая страница с ненулевым срезом Items", phrase, res)
		}
	}
}

// TestSearchService_PageBounds проверяет границы страницы.
func TestSearchService_PageBounds(t *testing.T) {
	tests := []struct {
		name       string
		query      Query
		wantLimit  int
		wantOffset int
	}{
		{"по умолчанию", Query{Phrase: "x"}, 10, 0},
		{"страница 0 — первая", Query{Phrase: "x", Page: 0}, 10, 0},
		{"отрицательная страница", Query{Phrase: "x", Page: -3}, 10, 0},
		{"большой размер ограничен", Query{Phrase: "x", Page: 2, PageSize: 1000}, MaxPageSize, MaxPageSize},
		{"свой размер", Query{Phrase: "x", Page: 3, PageSize: 5}, 5, 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &mockFileRepo{
				searchFn: func(_ context.Context, p repository.SearchParams) ([]*model.SearchHit, error) {
					if p.Limit != tt.wantLimit || p.Offset != tt.wantOffset {
						t.Errorf("Limit/Offset = %d/%d, ожидалось %d/%d", p.Limit, p.Offset, tt.wantLimit, tt.wantOffset)
					}
					return nil, nil
				},
			}
			svc := NewSearchService(repo, newTestCache(), 10, discardLogger())
			res, err := svc.Search(context.Background(), tt.query)
			if err != nil {
				t.Fatalf("Search ошибка: %v", err)
			}
			if res.PageSize != tt.wantLimit {
				t.Errorf("PageSize = %d, ожидалось %d", res.PageSize, tt.wantLimit)
			}
		})
	}
}

// TestSearchService_PageBeyondInt проверяет, что номер страницы, смещение
// которой не помещается в int, даёт пустую страницу с общим числом совпадений.
func TestSearchService_PageBeyondInt(t *testing.T) {
	searched := false
	repo := &mockFileRepo{
		searchFn: func(_ context.Context, p repository.SearchParams) ([]*model.SearchHit, error) {
			searched = true
			if p.Offset < 0 {
				t.Errorf("отрицательное смещение %d", p.Offset)
			}
			return nil, nil
		},
		countFn: func(context.Context, repository.SearchParams) (int, error) {
			return 3, nil
		},
	}
	svc := NewSearchService(repo, newTestCache(), 10, discardLogger())

	res, err := svc.Search(context.Background(), Query{Phrase: "matrix", Page: math.MaxInt / 50, PageSize: 100})
	if err != nil {
		t.Fatalf("Search ошибка: %v", err)
	}
	if searched {
		t.Error("страница за пределами int не должна запрашиваться из БД")
	}
	if len(res.Items) != 0 || res.Items == nil {
		t.Errorf("Items = %v, ожидалась пустая страница", res.Items)
	}
	if res.Offset < 0 {
		t.Errorf("Offset = %d, ожидалось неотрицательное", res.Offset)
	}
	if res.Total != 3 || res.HasMore {
		t.Errorf("Total/HasMore = %d/%v, ожидалось 3/false", res.Total, res.HasMore)
	}
}

func TestPageOffset(t *testing.T) {
	tests := []struct {
		page, size  int
		wantOffset  int
		wantInRange bool
	}{
		{1, 10, 0, true},
		{3, 5, 10, true},
		{math.MaxInt/100 + 1, 100, (math.MaxInt / 100) * 100, true},
		{math.MaxInt/100 + 2, 100, math.MaxInt, false},
		{math.MaxInt, 1, math.MaxInt - 1, true},
		{math.MaxInt, 2, math.MaxInt, false},
	}
	for _, tt := range tests {
		offset, inRange := pageOffset(tt.page, tt.size)
		if offset != tt.wantOffset || inRange != tt.wantInRange {
			t.Errorf("pageOffset(%d, %d) = %d, %v; ожидалось %d, %v",
				tt.page, tt.size, offset, inRange, tt.wantOffset, tt.wantInRange)
		}
	}
}

// TestSearchService_HasMore проверяет флаг HasMore при пагинации.
func TestSearchService_HasMore(t *testing.T) {
	repo := &mockFileRepo{
		searchFn: func(context.Context, repository.SearchParams) ([]*model.SearchHit, error) {
			return hits("a"), nil
		},
		countFn: func(context.Context, repository.SearchParams) (int, error) {
			return 5, nil
		},
	}
	svc := NewSearchService(repo, newTestCache(), 1, discardLogger())

	res, err := svc.Search(context.Background(), Query{Phrase: "a"})
	if err != nil {
		t.Fatalf("Search ошибка: %v", err)
	}
	if !res.HasMore || res.TotalPages != 5 {
		t.Errorf("HasMore=%v TotalPages=%d, ожидалось true/5", res.HasMore, res.TotalPages)
	}
}

// TestSearchService_CacheHit проверяет, что повторный запрос обслуживается кэшем.
func TestSearchService_CacheHit(t *testing.T) {
	var searches, counts atomic.Int32
	repo := &mockFileRepo{
		searchFn: func(context.Context, repository.SearchParams) ([]*model.SearchHit, error) {
			searches.Add(1)
			return hits("a", "b"), nil
		},
		countFn: func(context.Context, repository.SearchParams) (int, error) {
			counts.Add(1)
			return 2, nil
		},
	}
	c := newTestCache()
	svc := NewSearchService(repo, c, 10, discardLogger())
	ctx := context.Background()

	first, err := svc.Search(ctx, Query{Phrase: "matrix"})
	if err != nil {
		t.Fatalf("Search ошибка: %v", err)
	}
	c.Wait()

	second, err := svc.Search(ctx, Query{Phrase: "MATRIX"})
	if err != nil {
		t.Fatalf("Search ошибка (кэш): %v", err)
	}
	if searches.Load() != 1 || counts.Load() != 1 {
		t.Errorf("обращений к БД: search=%d count=%d, ожидалось 1/1", searches.Load(), counts.Load())
	}
	if len(second.Items) != len(first.Items) || second.Items[0].File.ID != "a" || second.Total != 2 {
		t.Errorf("ответ из кэша = %+v, ожидалось как %+v", second, first)
	}

	// Другой фильтр MIME — другой ключ.
	if _, err := svc.Search(ctx, Query{Phrase: "matrix", MimePrefix: "video/"}); err != nil {
		t.Fatalf("Search ошибка: %v", err)
	}
	if searches.Load() != 2 {
		t.Errorf("search=%d, ожидалось 2 для другого фильтра", searches.Load())
	}
}

// TestSearchService_CacheDown проверяет корректность поиска при недоступном кэше.
func TestSearchService_CacheDown(t *testing.T) {
	repo := &mockFileRepo{
		searchFn: func(context.Context, repository.SearchParams) ([]*model.SearchHit, error) {
			return hits("The.Matrix.1999.mp4", "Matrix.Reloaded.mkv"), nil
		},
		countFn: func(context.Context, repository.SearchParams) (int, error) {
			return 2, nil
		},
	}
	backend := &failingBackend{}
	c := NewCacheService(backend, "fv:", time.Minute, 20*time.Millisecond, discardLogger())
	svc := NewSearchService(repo, c, 10, discardLogger())

	res, err := svc.Search(context.Background(), Query{Phrase: "matrix 1999"})
	if err != nil {
		t.Fatalf("Search при недоступном кэше: %v", err)
	}
	c.Wait()
	if res.Total != 2 || res.Items[0].File.ID != "The.Matrix.1999.mp4" {
		t.Errorf("результат = %+v", res)
	}
}

// TestSearchService_StoreError проверяет проброс ошибки хранилища.
func TestSearchService_StoreError(t *testing.T) {
	storeErr := errors.New("соединение потеряно")
	repo := &mockFileRepo{
		searchFn: func(context.Context, repository.SearchParams) ([]*model.SearchHit, error) {
			return nil, storeErr
		},
	}
	svc := NewSearchService(repo, newTestCache(), 10, discardLogger())

	_, err := svc.Search(context.Background(), Query{Phrase: "matrix"})
	if !errors.Is(err, storeErr) {
		t.Errorf("ошибка = %v, ожидалась обёртка %v", err, storeErr)
	}
}
