// handler.go — основной обработчик API filevault.
// Объединяет health и бизнес-обработчики, делегируя запросы в сервисный слой.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	apierrors "github.com/bigkaa/filevault/internal/api/errors"
	"github.com/bigkaa/filevault/internal/database"
	"github.com/bigkaa/filevault/internal/domain/model"
	"github.com/bigkaa/filevault/internal/service"
)

// maxBodyBytes — предельный размер тела запроса.
const maxBodyBytes = 4 << 20

// Catalogue — операции каталога файлов.
type Catalogue interface {
	Upsert(ctx context.Context, in service.FileInput) (*model.FileRecord, error)
	UpsertMany(ctx context.Context, inputs []service.FileInput) (added, updated int, err error)
	GetByID(ctx context.Context, fileID string) (*model.FileRecord, error)
}

// Searcher — ранжированный поиск.
type Searcher interface {
	Search(ctx context.Context, q service.Query) (*service.Result, error)
}

// Delivery — страница результатов пользователя и погашение токена.
type Delivery interface {
	ResultPage(ctx context.Context, userID int64, q service.Query) (*service.ResultPage, error)
	Redeem(ctx context.Context, token string) (*model.FileRecord, error)
}

// TokenIssuer — выдача токенов доступа.
type TokenIssuer interface {
	Issue(ctx context.Context, fileID string) (string, error)
}

// Premium — премиум-доступ пользователей.
type Premium interface {
	GrantOrRenew(ctx context.Context, userID int64, days int) (time.Time, error)
	Status(ctx context.Context, userID int64) (service.PremiumStatus, error)
}

// APIHandler — основной обработчик API filevault.
type APIHandler struct {
	health    *HealthHandler
	catalogue Catalogue
	search    Searcher
	delivery  Delivery
	tokens    TokenIssuer
	premium   Premium
	logger    *slog.Logger
}

// NewAPIHandler создаёт основной обработчик API.
func NewAPIHandler(
	health *HealthHandler,
	catalogue Catalogue,
	search Searcher,
	delivery Delivery,
	tokens TokenIssuer,
	premium Premium,
	logger *slog.Logger,
) *APIHandler {
	return &APIHandler{
		health:    health,
		catalogue: catalogue,
		search:    search,
		delivery:  delivery,
		tokens:    tokens,
		premium:   premium,
		logger:    logger.With(slog.String("component", "api_handler")),
	}
}

// --- Health endpoints (делегируются в HealthHandler) ---

// HealthLive — liveness probe.
func (h *APIHandler) HealthLive(w http.ResponseWriter, r *http.Request) {
	h.health.HealthLive(w, r)
}

// HealthReady — readiness probe.
func (h *APIHandler) HealthReady(w http.ResponseWriter, r *http.Request) {
	h.health.HealthReady(w, r)
}

// GetMetrics — Prometheus метрики.
func (h *APIHandler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	h.health.GetMetrics(w, r)
}

// --- Вспомогательные функции ---

// writeJSON записывает JSON-ответ с указанным статусом.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// decodeJSON читает тело запроса в dst. При ошибке отвечает 400 и возвращает false.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		apierrors.ValidationError(w, "Некорректный JSON в теле запроса")
		return false
	}
	return true
}

// writeServiceError отображает ошибку сервисного слоя в HTTP-ответ.
// op — описание операции для лога и сообщения 500.
func (h *APIHandler) writeServiceError(w http.ResponseWriter, err error, op string) {
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		apierrors.ValidationError(w, err.Error())
	case errors.Is(err, service.ErrInvalidToken):
		apierrors.InvalidToken(w, "Токен недействителен")
	case errors.Is(err, service.ErrNotFound):
		apierrors.NotFound(w, "Файл не найден")
	case errors.Is(err, database.ErrUnavailable),
		errors.Is(err, context.DeadlineExceeded):
		h.logger.Warn("Хранилище недоступно",
			slog.String("operation", op),
			slog.String("error", err.Error()),
		)
		apierrors.StoreUnavailable(w, "Хранилище временно недоступно")
	default:
		h.logger.Error("Ошибка обработки запроса",
			slog.String("operation", op),
			slog.String("error", err.Error()),
		)
		apierrors.InternalError(w, "Внутренняя ошибка: "+op)
	}
}
