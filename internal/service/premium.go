// premium.go — премиум-доступ пользователя с ограниченным сроком.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/filevault/internal/repository"
)

// premiumGrantsTotal — продления премиум-доступа по результату.
var premiumGrantsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "fv_premium_grants_total",
	Help: "Выдача и продление премиум-доступа по результату (ok, rejected, error).",
}, []string{"result"})

// PremiumStatus — состояние премиум-доступа пользователя.
type PremiumStatus struct {
	// Active — доступ действует сейчас
	Active bool
	// ExpiryDate — срок окончания (nil — доступ не выдавался)
	ExpiryDate *time.Time
	// DaysLeft — полных суток до окончания, не меньше 0
	DaysLeft int
}

// PremiumService — проверка и продление премиум-доступа.
type PremiumService struct {
	premiumRepo repository.PremiumRepository
	maxDays     int
	now         func() time.Time
	logger      *slog.Logger
}

// NewPremiumService создаёт сервис премиум-доступа.
// maxDays ограничивает одно продление (не больше 365).
func NewPremiumService(
	premiumRepo repository.PremiumRepository,
	maxDays int,
	now func() time.Time,
	logger *slog.Logger,
) *PremiumService {
	if maxDays <= 0 || maxDays > 365 {
		maxDays = 365
	}
	if now == nil {
		now = time.Now
	}
	return &PremiumService{
		premiumRepo: premiumRepo,
		maxDays:     maxDays,
		now:         now,
		logger:      logger.With(slog.String("component", "premium_service")),
	}
}

// IsActive сообщает, действует ли доступ пользователя.
func (s *PremiumService) IsActive(ctx context.Context, userID int64) (bool, error) {
	e, err := s.premiumRepo.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("проверка премиум-доступа: %w", err)
	}
	return e.ActiveAt(s.now()), nil
}

// GrantOrRenew выдаёт доступ на days дней или продлевает действующий.
// Продление считается от max(now, текущий срок), дни не теряются.
func (s *PremiumService) GrantOrRenew(ctx context.Context, userID int64, days int) (time.Time, error) {
	if days < 1 || days > s.maxDays {
		premiumGrantsTotal.WithLabelValues("rejected").Inc()
		return time.Time{}, fmt.Errorf("%w: срок продления должен быть от 1 до %d дней", ErrInvalidInput, s.maxDays)
	}

	expiry, err := s.premiumRepo.Extend(ctx, userID, s.now(), days)
	if err != nil {
		premiumGrantsTotal.WithLabelValues("error").Inc()
		return time.Time{}, fmt.Errorf("продление премиум-доступа: %w", err)
	}

	premiumGrantsTotal.WithLabelValues("ok").Inc()
	s.logger.Info("Премиум-доступ продлён",
		slog.Int64("user_id", userID),
		slog.Int("days", days),
		slog.Time("expiry_date", expiry),
	)
	return expiry, nil
}

// Status возвращает состояние доступа пользователя.
func (s *PremiumService) Status(ctx context.Context, userID int64) (PremiumStatus, error) {
	e, err := s.premiumRepo.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return PremiumStatus{}, nil
		}
		return PremiumStatus{}, fmt.Errorf("получение премиум-доступа: %w", err)
	}

	now := s.now()
	expiry := e.ExpiryDate
	status := PremiumStatus{
		Active:     e.ActiveAt(now),
		ExpiryDate: &expiry,
	}
	if status.Active {
		status.DaysLeft = int(expiry.Sub(now) / (24 * time.Hour))
	}
	return status, nil
}
