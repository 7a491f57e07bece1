package server

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"io"
	"log/slog"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/MicahParks/keyfunc/v3"

	"github.com/bigkaa/filevault/internal/api/handlers"
	"github.com/bigkaa/filevault/internal/api/middleware"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestAuth создаёт JWTAuth с ключом, которым в тестах ничего не подписывается.
func newTestAuth(t *testing.T) *middleware.JWTAuth {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatal(err)
	}
	jwks, _ := json.Marshal(map[string]any{
		"keys": []map[string]any{{
			"kty": "RSA",
			"kid": "server-test",
			"alg": "RS256",
			"n":   base64.RawURLEncoding.EncodeToString(key.PublicKey.N.Bytes()),
			"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.PublicKey.E)).Bytes()),
		}},
	})
	kf, err := keyfunc.NewJWKSetJSON(jwks)
	if err != nil {
		t.Fatal(err)
	}
	return middleware.NewJWTAuthWithKeyfunc(kf, middleware.AuthOptions{}, testLogger())
}

// newTestAPI — обработчик без бизнес-сервисов: тесты маршрутизации до них не доходят.
func newTestAPI() *handlers.APIHandler {
	return handlers.NewAPIHandler(handlers.NewHealthHandler(nil, nil), nil, nil, nil, nil, nil, testLogger())
}

func TestRouter_PublicEndpointsWithAuth(t *testing.T) {
	router := NewRouter(newTestAPI(), newTestAuth(t), testLogger())

	tests := []struct {
		path string
		want int
	}{
		{"/health/live", http.StatusOK},
		// PostgreSQL checker не задан — readiness fail, но не 401.
		{"/health/ready", http.StatusServiceUnavailable},
		{"/metrics", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))
			if rec.Code != tt.want {
				t.Errorf("ожидался статус %d, получен %d", tt.want, rec.Code)
			}
		})
	}
}

func TestRouter_APIRequiresToken(t *testing.T) {
	router := NewRouter(newTestAPI(), newTestAuth(t), testLogger())

	tests := []struct {
		method string
		path   string
	}{
		{http.MethodPost, "/api/v1/files"},
		{http.MethodPost, "/api/v1/files/batch"},
		{http.MethodGet, "/api/v1/files/f1"},
		{http.MethodPost, "/api/v1/search"},
		{http.MethodPost, "/api/v1/results"},
		{http.MethodPost, "/api/v1/tokens"},
		{http.MethodGet, "/api/v1/tokens/abc"},
		{http.MethodGet, "/api/v1/premium/1"},
		{http.MethodPut, "/api/v1/premium/1"},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))
			if rec.Code != http.StatusUnauthorized {
				t.Errorf("ожидался статус 401, получен %d", rec.Code)
			}
		})
	}
}

func TestRouter_NoAuth(t *testing.T) {
	router := NewRouter(newTestAPI(), nil, testLogger())

	// Без аутентификации запрос доходит до обработчика и отклоняется валидацией.
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/premium/abc", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("ожидался статус 400, получен %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/v1/files/f1", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("ожидался статус 405, получен %d", rec.Code)
	}
}
