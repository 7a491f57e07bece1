package model

import "time"

// Entitlement — премиум-доступ пользователя, ограниченный по времени.
type Entitlement struct {
	// UserID — идентификатор пользователя внешней системы сообщений
	UserID int64 `json:"user_id"`
	// ExpiryDate — момент окончания доступа
	ExpiryDate time.Time `json:"expiry_date"`
	// CreatedAt — время первой выдачи
	CreatedAt time.Time `json:"created_at"`
}

// ActiveAt сообщает, действует ли доступ в момент now.
func (e *Entitlement) ActiveAt(now time.Time) bool {
	return e != nil && e.ExpiryDate.After(now)
}
