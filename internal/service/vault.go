// vault.go — хранилище токенов доступа: непрозрачный токен вместо id файла.
// Выдача идемпотентна: у файла ровно один токен, гонки разрешает
// уникальное ограничение tokens.file_id.
package service

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/filevault/internal/repository"
)

// tokenLength — длина токена: 16 байт в base64 без дополнения.
const tokenLength = 22

// maxIssueAttempts — число попыток при совпадении значения токена.
const maxIssueAttempts = 3

// Prometheus-метрики токенов.
var (
	tokensIssuedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fv_tokens_issued_total",
		Help: "Выдача токенов по результату (created, existing, error).",
	}, []string{"result"})
	tokensRedeemedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fv_tokens_redeemed_total",
		Help: "Погашение токенов по результату (ok, invalid, error).",
	}, []string{"result"})
)

// VaultService — выдача и погашение токенов доступа.
type VaultService struct {
	tokenRepo repository.TokenRepository
	newToken  func() string
	logger    *slog.Logger
}

// NewVaultService создаёт хранилище токенов.
func NewVaultService(tokenRepo repository.TokenRepository, logger *slog.Logger) *VaultService {
	return &VaultService{
		tokenRepo: tokenRepo,
		newToken:  generateToken,
		logger:    logger.With(slog.String("component", "vault_service")),
	}
}

// generateToken — случайный UUIDv4 в base64url без дополнения.
func generateToken() string {
	id := uuid.New()
	return base64.RawURLEncoding.EncodeToString(id[:])
}

// Issue возвращает токен файла, создавая его при первом обращении.
// Параллельные вызовы для одного файла получают один и тот же токен.
func (s *VaultService) Issue(ctx context.Context, fileID string) (string, error) {
	if fileID == "" {
		return "", fmt.Errorf("%w: id файла обязателен", ErrInvalidInput)
	}

	existing, err := s.tokenRepo.GetByFileID(ctx, fileID)
	if err == nil {
		tokensIssuedTotal.WithLabelValues("existing").Inc()
		return existing.Token, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		tokensIssuedTotal.WithLabelValues("error").Inc()
		return "", fmt.Errorf("поиск токена файла: %w", err)
	}

	for attempt := 1; attempt <= maxIssueAttempts; attempt++ {
		token := s.newToken()

		created, err := s.tokenRepo.Create(ctx, token, fileID)
		switch {
		case err == nil && created:
			tokensIssuedTotal.WithLabelValues("created").Inc()
			s.logger.Debug("Токен выдан", slog.String("file_id", fileID))
			return token, nil

		case err == nil:
			// Параллельная выдача успела раньше: возвращаем её токен.
			winner, err := s.tokenRepo.GetByFileID(ctx, fileID)
			if err != nil {
				tokensIssuedTotal.WithLabelValues("error").Inc()
				return "", fmt.Errorf("чтение токена параллельной выдачи: %w", err)
			}
			tokensIssuedTotal.WithLabelValues("existing").Inc()
			return winner.Token, nil

		case errors.Is(err, repository.ErrConflict):
			s.logger.Warn("Совпадение значения токена, повтор",
				slog.String("file_id", fileID),
				slog.Int("attempt", attempt),
			)
			continue

		case errors.Is(err, repository.ErrNotFound):
			tokensIssuedTotal.WithLabelValues("error").Inc()
			return "", ErrNotFound

		default:
			tokensIssuedTotal.WithLabelValues("error").Inc()
			return "", fmt.Errorf("создание токена: %w", err)
		}
	}

	tokensIssuedTotal.WithLabelValues("error").Inc()
	return "", fmt.Errorf("не удалось сгенерировать уникальный токен за %d попытки", maxIssueAttempts)
}

// Redeem возвращает id файла по токену.
// Неизвестный или некорректный токен — ErrInvalidToken.
func (s *VaultService) Redeem(ctx context.Context, token string) (string, error) {
	if !wellFormedToken(token) {
		tokensRedeemedTotal.WithLabelValues("invalid").Inc()
		return "", ErrInvalidToken
	}

	t, err := s.tokenRepo.Resolve(ctx, token)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			tokensRedeemedTotal.WithLabelValues("invalid").Inc()
			return "", ErrInvalidToken
		}
		tokensRedeemedTotal.WithLabelValues("error").Inc()
		return "", fmt.Errorf("погашение токена: %w", err)
	}

	tokensRedeemedTotal.WithLabelValues("ok").Inc()
	return t.FileID, nil
}

// wellFormedToken проверяет длину и алфавит base64url.
func wellFormedToken(token string) bool {
	if len(token) != tokenLength {
		return false
	}
	for i := 0; i < len(token); i++ {
		c := token[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-', c == '_':
		default:
			return false
		}
	}
	return true
}
