// search.go — сервис ранжированного поиска по каталогу.
// Координирует нормализацию фразы, repository, кэш и Prometheus-метрики.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/filevault/internal/domain/model"
	"github.com/bigkaa/filevault/internal/repository"
	"github.com/bigkaa/filevault/internal/search"
)

// Границы размера страницы.
const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// Prometheus-метрики поиска.
var (
	searchTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fv_search_total",
		Help: "Общее количество поисковых запросов.",
	})
	searchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "fv_search_duration_seconds",
		Help:    "Длительность поисковых запросов.",
		Buckets: prometheus.DefBuckets,
	})
)

// Query — поисковый запрос.
type Query struct {
	// Phrase — исходная фраза пользователя
	Phrase string
	// Page — номер страницы с 1 (меньше 1 — первая)
	Page int
	// PageSize — размер страницы (0 — по умолчанию)
	PageSize int
	// MimePrefix — фильтр по префиксу MIME-типа
	MimePrefix string
}

// Result — страница результатов поиска.
type Result struct {
	// Phrase — нормализованная фраза
	Phrase string
	// Keywords — ключевые слова фразы
	Keywords []string
	// Items — совпадения страницы в порядке ранга
	Items []model.SearchHit
	// Total — общее количество совпадений
	Total int
	// Page — номер страницы
	Page int
	// PageSize — размер страницы
	PageSize int
	// TotalPages — количество страниц
	TotalPages int
	// Offset — смещение первой строки страницы
	Offset int
	// HasMore — есть ли следующие страницы
	HasMore bool
}

// SearchService — сервис поиска файлов.
type SearchService struct {
	fileRepo        repository.FileRepository
	cache           *CacheService
	defaultPageSize int
	logger          *slog.Logger
}

// NewSearchService создаёт сервис поиска.
// defaultPageSize используется, когда запрос не задаёт размер страницы.
func NewSearchService(
	fileRepo repository.FileRepository,
	cache *CacheService,
	defaultPageSize int,
	logger *slog.Logger,
) *SearchService {
	if defaultPageSize <= 0 {
		defaultPageSize = DefaultPageSize
	}
	return &SearchService{
		fileRepo:        fileRepo,
		cache:           cache,
		defaultPageSize: clampPageSize(defaultPageSize),
		logger:          logger.With(slog.String("component", "search_service")),
	}
}

// Search возвращает страницу ранжированных совпадений и общее их число.
// Пустая после нормализации фраза даёт пустую страницу без обращения к БД.
func (s *SearchService) Search(ctx context.Context, q Query) (*Result, error) {
	start := time.Now()
	searchTotal.Inc()

	keywords := search.Keywords(q.Phrase)
	page := q.Page
	if page < 1 {
		page = 1
	}
	pageSize := s.defaultPageSize
	if q.PageSize > 0 {
		pageSize = clampPageSize(q.PageSize)
	}

	result := &Result{
		Phrase:   strings.Join(keywords, " "),
		Keywords: keywords,
		Items:    []model.SearchHit{},
		Page:     page,
		PageSize: pageSize,
	}
	offset, inRange := pageOffset(page, pageSize)
	result.Offset = offset
	if len(keywords) == 0 {
		return result, nil
	}

	params := repository.SearchParams{
		Phrase:     result.Phrase,
		Keywords:   keywords,
		MimePrefix: q.MimePrefix,
		Limit:      pageSize,
		Offset:     result.Offset,
	}

	// Страница за пределами int: совпадений на ней заведомо нет.
	items := []model.SearchHit{}
	if inRange {
		var err error
		items, err = s.page(ctx, params)
		if err != nil {
			return nil, err
		}
	}
	total, err := s.count(ctx, params)
	if err != nil {
		return nil, err
	}

	result.Items = items
	result.Total = total
	result.TotalPages = (total + pageSize - 1) / pageSize
	result.HasMore = result.Offset+len(items) < total

	duration := time.Since(start)
	searchDuration.Observe(duration.Seconds())

	s.logger.Debug("Поиск выполнен",
		slog.String("phrase", result.Phrase),
		slog.Int("total", total),
		slog.Int("returned", len(items)),
		slog.Duration("duration", duration),
	)
	return result, nil
}

// page возвращает строки страницы: кэш, затем БД.
func (s *SearchService) page(ctx context.Context, params repository.SearchParams) ([]model.SearchHit, error) {
	key := s.cache.SearchKey(params.Keywords, params.Limit, params.Offset, params.MimePrefix)

	var cached []model.SearchHit
	if s.cache.Get(ctx, key, &cached) {
		if cached == nil {
			cached = []model.SearchHit{}
		}
		return cached, nil
	}

	hits, err := s.fileRepo.Search(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("поиск файлов: %w", err)
	}
	items := make([]model.SearchHit, 0, len(hits))
	for _, h := range hits {
		items = append(items, *h)
	}

	s.cache.Set(ctx, key, items)
	return items, nil
}

// count возвращает общее число совпадений: кэш, затем БД.
func (s *SearchService) count(ctx context.Context, params repository.SearchParams) (int, error) {
	key := s.cache.CountKey(params.Keywords, params.MimePrefix)

	var cached int
	if s.cache.Get(ctx, key, &cached) {
		return cached, nil
	}

	total, err := s.fileRepo.Count(ctx, params)
	if err != nil {
		return 0, fmt.Errorf("подсчёт совпадений: %w", err)
	}

	s.cache.Set(ctx, key, total)
	return total, nil
}

// pageOffset возвращает смещение страницы. При переполнении int
// смещение насыщается до math.MaxInt, а inRange = false.
func pageOffset(page, pageSize int) (offset int, inRange bool) {
	if page-1 > math.MaxInt/pageSize {
		return math.MaxInt, false
	}
	return (page - 1) * pageSize, true
}

func clampPageSize(n int) int {
	switch {
	case n < 1:
		return 1
	case n > MaxPageSize:
		return MaxPageSize
	default:
		return n
	}
}
