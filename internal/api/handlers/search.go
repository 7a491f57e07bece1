// search.go — обработчики поиска:
// POST /api/v1/search (ранжированная страница) и POST /api/v1/results (страница пользователя).
package handlers

import (
	"net/http"

	apierrors "github.com/bigkaa/filevault/internal/api/errors"
)

// SearchFiles — реализация POST /api/v1/search.
// Авторизация: RequireRoleOrScope (admin, readonly / files:read) — на уровне middleware.
func (h *APIHandler) SearchFiles(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if msg := validatePaging(req.Page, req.PageSize); msg != "" {
		apierrors.ValidationError(w, msg)
		return
	}

	result, err := h.search.Search(r.Context(), req.toQuery())
	if err != nil {
		h.writeServiceError(w, err, "поиск файлов")
		return
	}
	writeJSON(w, http.StatusOK, toSearchResponse(result))
}

// ResultPage — реализация POST /api/v1/results.
// Для каждого файла выдаётся токен; способ доставки зависит от премиум-доступа.
// Авторизация: RequireRoleOrScope (admin, readonly / files:read) — на уровне middleware.
func (h *APIHandler) ResultPage(w http.ResponseWriter, r *http.Request) {
	var req resultsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.UserID <= 0 {
		apierrors.ValidationError(w, "user_id обязателен")
		return
	}
	if msg := validatePaging(req.Page, req.PageSize); msg != "" {
		apierrors.ValidationError(w, msg)
		return
	}

	page, err := h.delivery.ResultPage(r.Context(), req.UserID, req.toQuery())
	if err != nil {
		h.writeServiceError(w, err, "страница результатов")
		return
	}
	writeJSON(w, http.StatusOK, toResultsResponse(page))
}

// validatePaging отклоняет отрицательные параметры пагинации.
// Слишком большой page_size не ошибка: сервис ограничивает его сам.
func validatePaging(page, pageSize int) string {
	if page < 0 {
		return "page не может быть отрицательным"
	}
	if pageSize < 0 {
		return "page_size не может быть отрицательным"
	}
	return ""
}
