// files.go — обработчики каталога файлов:
// POST /api/v1/files, POST /api/v1/files/batch, GET /api/v1/files/{file_id}.
package handlers

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/bigkaa/filevault/internal/api/errors"
	"github.com/bigkaa/filevault/internal/service"
)

// maxBatchSize — предельное число записей в пакетной регистрации.
const maxBatchSize = 1000

// UpsertFile — реализация POST /api/v1/files.
// Авторизация: RequireRoleOrScope (admin / files:write) — на уровне middleware.
func (h *APIHandler) UpsertFile(w http.ResponseWriter, r *http.Request) {
	var req fileRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	record, err := h.catalogue.Upsert(r.Context(), req.toInput())
	if err != nil {
		h.writeServiceError(w, err, "сохранение файла")
		return
	}
	writeJSON(w, http.StatusOK, record)
}

// UpsertFilesBatch — реализация POST /api/v1/files/batch.
// Авторизация: RequireRoleOrScope (admin / files:write) — на уровне middleware.
func (h *APIHandler) UpsertFilesBatch(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if len(req.Files) == 0 {
		apierrors.ValidationError(w, "Список files не может быть пустым")
		return
	}
	if len(req.Files) > maxBatchSize {
		apierrors.ValidationError(w, fmt.Sprintf("Не более %d файлов в одном запросе", maxBatchSize))
		return
	}

	inputs := make([]service.FileInput, 0, len(req.Files))
	for _, f := range req.Files {
		inputs = append(inputs, f.toInput())
	}

	added, updated, err := h.catalogue.UpsertMany(r.Context(), inputs)
	if err != nil {
		h.writeServiceError(w, err, "пакетное сохранение файлов")
		return
	}
	writeJSON(w, http.StatusOK, batchResponse{Added: added, Updated: updated})
}

// GetFile — реализация GET /api/v1/files/{file_id}.
// Авторизация: RequireRoleOrScope (admin, readonly / files:read) — на уровне middleware.
func (h *APIHandler) GetFile(w http.ResponseWriter, r *http.Request) {
	fileID := chi.URLParam(r, "file_id")

	record, err := h.catalogue.GetByID(r.Context(), fileID)
	if err != nil {
		h.writeServiceError(w, err, "получение метаданных файла")
		return
	}
	writeJSON(w, http.StatusOK, record)
}
