// premium.go — обработчики премиум-доступа:
// GET /api/v1/premium/{user_id} (состояние) и PUT /api/v1/premium/{user_id} (выдача/продление).
package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/bigkaa/filevault/internal/api/errors"
)

// GetPremium — реализация GET /api/v1/premium/{user_id}.
// Авторизация: RequireRoleOrScope (admin, readonly / premium:read) — на уровне middleware.
func (h *APIHandler) GetPremium(w http.ResponseWriter, r *http.Request) {
	userID, ok := parseUserID(w, r)
	if !ok {
		return
	}
	h.writePremiumStatus(w, r, userID)
}

// GrantPremium — реализация PUT /api/v1/premium/{user_id}.
// Продление складывается с оставшимся сроком.
// Авторизация: RequireRoleOrScope (admin / premium:write) — на уровне middleware.
func (h *APIHandler) GrantPremium(w http.ResponseWriter, r *http.Request) {
	userID, ok := parseUserID(w, r)
	if !ok {
		return
	}
	var req premiumRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if _, err := h.premium.GrantOrRenew(r.Context(), userID, req.Days); err != nil {
		h.writeServiceError(w, err, "продление премиум-доступа")
		return
	}
	h.writePremiumStatus(w, r, userID)
}

func (h *APIHandler) writePremiumStatus(w http.ResponseWriter, r *http.Request, userID int64) {
	status, err := h.premium.Status(r.Context(), userID)
	if err != nil {
		h.writeServiceError(w, err, "получение премиум-доступа")
		return
	}
	writeJSON(w, http.StatusOK, premiumResponse{
		UserID:     userID,
		Active:     status.Active,
		ExpiryDate: status.ExpiryDate,
		DaysLeft:   status.DaysLeft,
	})
}

// parseUserID извлекает положительный user_id из пути.
func parseUserID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	userID, err := strconv.ParseInt(chi.URLParam(r, "user_id"), 10, 64)
	if err != nil || userID <= 0 {
		apierrors.ValidationError(w, "user_id должен быть положительным целым числом")
		return 0, false
	}
	return userID, true
}
