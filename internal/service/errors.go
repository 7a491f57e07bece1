// Пакет service — бизнес-логика filevault: каталог, поиск, кэш,
// токены доступа, премиум-доступ и выдача результатов.
package service

import "errors"

// Ошибки сервисного слоя.
var (
	// ErrNotFound — файл не найден.
	ErrNotFound = errors.New("файл не найден")
	// ErrInvalidToken — токен неизвестен или имеет неверный формат.
	ErrInvalidToken = errors.New("недействительный токен")
	// ErrInvalidInput — некорректные входные данные.
	ErrInvalidInput = errors.New("некорректные входные данные")
)
