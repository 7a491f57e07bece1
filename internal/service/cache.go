// cache.go — CacheService: типизированный cache-aside поверх cache.Backend.
// Значения кодируются в CBOR, ключи поиска хешируются BLAKE3.
// Любая ошибка бэкенда или декодирования превращается в промах.
package service

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"hash/maphash"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/zeebo/blake3"

	"github.com/bigkaa/filevault/internal/cache"
)

// Пространства ключей кэша.
const (
	cacheNamespaceSearch = "search"
	cacheNamespaceCount  = "count"
	cacheNamespaceFile   = "file"
)

// cacheKeyStripes — число полос версий ключей.
const cacheKeyStripes = 256

// Prometheus-метрики кэша.
var (
	cacheHitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fv_cache_hits_total",
		Help: "Общее количество попаданий в кэш.",
	}, []string{"namespace"})
	cacheMissesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fv_cache_misses_total",
		Help: "Общее количество промахов кэша.",
	}, []string{"namespace"})
	cacheErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fv_cache_errors_total",
		Help: "Ошибки операций кэша (бэкенд недоступен, повреждённые данные).",
	}, []string{"op"})
	cacheStaleWritesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fv_cache_stale_writes_total",
		Help: "Фоновые записи, отброшенные из-за инвалидации ключа.",
	})
)

var (
	cacheEncMode cbor.EncMode
	cacheDecMode cbor.DecMode
)

func init() {
	encOptions := cbor.CoreDetEncOptions()
	encOptions.Time = cbor.TimeRFC3339Nano
	var err error
	cacheEncMode, err = encOptions.EncMode()
	if err != nil {
		panic("service: ошибка инициализации CBOR-кодировщика: " + err.Error())
	}
	cacheDecMode, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic("service: ошибка инициализации CBOR-декодировщика: " + err.Error())
	}
}

// CacheService — кэш результатов поиска и метаданных файлов.
// Запись выполняется асинхронно и не задерживает ответ.
//
// Запись и удаление одного ключа упорядочены через полосу версий:
// Delete увеличивает версию полосы, и фоновая запись значения,
// прочитанного до удаления, отбрасывается.
type CacheService struct {
	backend   cache.Backend
	prefix    string
	ttl       time.Duration
	opTimeout time.Duration
	logger    *slog.Logger

	pending sync.WaitGroup
	seed    maphash.Seed
	stripes [cacheKeyStripes]keyStripe
}

// keyStripe — версия группы ключей. mu удерживается на время
// записи в бэкенд, чтобы Delete не обогнал уже проверенную запись.
type keyStripe struct {
	mu      sync.Mutex
	version uint64
}

// NewCacheService создаёт кэш поверх бэкенда.
// backend == nil — кэш отключён, каждый Get является промахом.
func NewCacheService(
	backend cache.Backend,
	prefix string,
	ttl time.Duration,
	opTimeout time.Duration,
	logger *slog.Logger,
) *CacheService {
	if opTimeout <= 0 {
		opTimeout = 250 * time.Millisecond
	}
	return &CacheService{
		backend:   backend,
		prefix:    prefix,
		ttl:       ttl,
		opTimeout: opTimeout,
		logger:    logger.With(slog.String("component", "cache_service")),
		seed:      maphash.MakeSeed(),
	}
}

func (c *CacheService) stripe(key string) *keyStripe {
	return &c.stripes[maphash.String(c.seed, key)%cacheKeyStripes]
}

// Version возвращает текущую версию ключа. Значение, прочитанное из БД
// после вызова Version, записывается через SetIfUnchanged.
func (c *CacheService) Version(key string) uint64 {
	st := c.stripe(key)
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.version
}

// SearchKey возвращает ключ страницы поиска.
func (c *CacheService) SearchKey(keywords []string, pageSize, offset int, mimePrefix string) string {
	return c.prefix + cacheNamespaceSearch + ":" +
		hashKey(fmt.Sprintf("%s|%d|%d|%s", strings.Join(keywords, " "), pageSize, offset, mimePrefix))
}

// CountKey возвращает ключ общего числа совпадений.
func (c *CacheService) CountKey(keywords []string, mimePrefix string) string {
	return c.prefix + cacheNamespaceCount + ":" +
		hashKey(strings.Join(keywords, " ")+"|"+mimePrefix)
}

// FileKey возвращает ключ метаданных файла.
func (c *CacheService) FileKey(fileID string) string {
	return c.prefix + cacheNamespaceFile + ":" + fileID
}

// hashKey — BLAKE3-256 в hex.
func hashKey(s string) string {
	sum := blake3.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// Get читает значение по ключу в dst. Возвращает false при промахе,
// ошибке бэкенда или повреждённых данных.
func (c *CacheService) Get(ctx context.Context, key string, dst any) bool {
	ns := c.namespace(key)
	if c.backend == nil {
		cacheMissesTotal.WithLabelValues(ns).Inc()
		return false
	}

	opCtx, cancel := context.WithTimeout(ctx, c.opTimeout)
	defer cancel()

	data, err := c.backend.Get(opCtx, key)
	if err != nil {
		if !errors.Is(err, cache.ErrMiss) {
			cacheErrorsTotal.WithLabelValues("get").Inc()
			c.logger.Warn("Ошибка чтения кэша",
				slog.String("namespace", ns),
				slog.String("error", err.Error()),
			)
		}
		cacheMissesTotal.WithLabelValues(ns).Inc()
		return false
	}

	if err := cacheDecMode.Unmarshal(data, dst); err != nil {
		cacheErrorsTotal.WithLabelValues("decode").Inc()
		c.logger.Warn("Повреждённая запись кэша",
			slog.String("namespace", ns),
			slog.String("error", err.Error()),
		)
		cacheMissesTotal.WithLabelValues(ns).Inc()
		return false
	}

	cacheHitsTotal.WithLabelValues(ns).Inc()
	return true
}

// Set кодирует v и записывает его в фоне.
// Отмена ctx запроса не прерывает запись, её ограничивает opTimeout.
func (c *CacheService) Set(ctx context.Context, key string, v any) {
	c.set(ctx, key, v, 0, false)
}

// SetIfUnchanged записывает v в фоне, только если с момента Version(key)
// ключ не удалялся.
func (c *CacheService) SetIfUnchanged(ctx context.Context, key string, v any, version uint64) {
	c.set(ctx, key, v, version, true)
}

func (c *CacheService) set(ctx context.Context, key string, v any, version uint64, versioned bool) {
	if c.backend == nil {
		return
	}

	data, err := cacheEncMode.Marshal(v)
	if err != nil {
		cacheErrorsTotal.WithLabelValues("encode").Inc()
		c.logger.Warn("Ошибка кодирования значения кэша",
			slog.String("namespace", c.namespace(key)),
			slog.String("error", err.Error()),
		)
		return
	}

	bg := context.WithoutCancel(ctx)
	c.pending.Add(1)
	go func() {
		defer c.pending.Done()

		st := c.stripe(key)
		st.mu.Lock()
		defer st.mu.Unlock()
		if versioned && st.version != version {
			cacheStaleWritesTotal.Inc()
			c.logger.Debug("Запись в кэш отброшена: ключ инвалидирован",
				slog.String("namespace", c.namespace(key)),
			)
			return
		}

		opCtx, cancel := context.WithTimeout(bg, c.opTimeout)
		defer cancel()

		if err := c.backend.Set(opCtx, key, data, c.ttl); err != nil {
			cacheErrorsTotal.WithLabelValues("set").Inc()
			c.logger.Warn("Ошибка записи в кэш",
				slog.String("namespace", c.namespace(key)),
				slog.String("error", err.Error()),
			)
		}
	}()
}

// Delete удаляет ключ синхронно. Ошибка только логируется.
// Фоновые SetIfUnchanged, начатые до Delete, уже не запишут старое значение.
func (c *CacheService) Delete(ctx context.Context, key string) {
	if c.backend == nil {
		return
	}

	st := c.stripe(key)
	st.mu.Lock()
	defer st.mu.Unlock()
	st.version++

	opCtx, cancel := context.WithTimeout(ctx, c.opTimeout)
	defer cancel()

	if err := c.backend.Delete(opCtx, key); err != nil {
		cacheErrorsTotal.WithLabelValues("delete").Inc()
		c.logger.Warn("Ошибка удаления из кэша",
			slog.String("namespace", c.namespace(key)),
			slog.String("error", err.Error()),
		)
	}
}

// Wait ожидает завершения фоновых записей.
func (c *CacheService) Wait() {
	c.pending.Wait()
}

// Ping проверяет доступность бэкенда.
func (c *CacheService) Ping(ctx context.Context) error {
	if c.backend == nil {
		return nil
	}
	opCtx, cancel := context.WithTimeout(ctx, c.opTimeout)
	defer cancel()
	return c.backend.Ping(opCtx)
}

// CheckReady реализует проверку готовности для /health/ready.
// Недоступный кэш не блокирует работу, поэтому статус — degraded.
func (c *CacheService) CheckReady() (status, message string) {
	if c.backend == nil {
		return "ok", "кэш отключён"
	}
	if err := c.Ping(context.Background()); err != nil {
		return "degraded", fmt.Sprintf("кэш недоступен: %v", err)
	}
	return "ok", ""
}

// namespace извлекает пространство ключа для метрик.
func (c *CacheService) namespace(key string) string {
	rest := strings.TrimPrefix(key, c.prefix)
	if i := strings.IndexByte(rest, ':'); i > 0 {
		return rest[:i]
	}
	return "other"
}
