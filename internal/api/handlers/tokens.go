// tokens.go — обработчики токенов доступа:
// POST /api/v1/tokens (выдача) и GET /api/v1/tokens/{token} (погашение).
package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/bigkaa/filevault/internal/api/errors"
)

// IssueToken — реализация POST /api/v1/tokens.
// Повторная выдача для того же файла возвращает тот же токен.
// Авторизация: RequireRoleOrScope (admin / tokens:write) — на уровне middleware.
func (h *APIHandler) IssueToken(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.FileID == "" {
		apierrors.ValidationError(w, "file_id обязателен")
		return
	}

	token, err := h.tokens.Issue(r.Context(), req.FileID)
	if err != nil {
		h.writeServiceError(w, err, "выдача токена")
		return
	}
	writeJSON(w, http.StatusOK, tokenResponse{Token: token, FileID: req.FileID})
}

// RedeemToken — реализация GET /api/v1/tokens/{token}.
// Возвращает запись файла, на который указывает токен.
// Авторизация: RequireRoleOrScope (admin, readonly / tokens:read) — на уровне middleware.
func (h *APIHandler) RedeemToken(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")

	record, err := h.delivery.Redeem(r.Context(), token)
	if err != nil {
		h.writeServiceError(w, err, "погашение токена")
		return
	}
	writeJSON(w, http.StatusOK, record)
}
