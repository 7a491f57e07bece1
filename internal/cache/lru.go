package cache

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// LRU — кэш в памяти процесса поверх hashicorp/golang-lru/v2/expirable.
// Каждый экземпляр сервиса держит собственный кэш.
// TTL задаётся при создании, аргумент ttl в Set не используется.
type LRU struct {
	cache *expirable.LRU[string, []byte]
}

// NewLRU создаёт кэш на size записей с временем жизни ttl.
func NewLRU(size int, ttl time.Duration) *LRU {
	return &LRU{cache: expirable.NewLRU[string, []byte](size, nil, ttl)}
}

// Get возвращает копию значения или ErrMiss.
func (l *LRU) Get(_ context.Context, key string) ([]byte, error) {
	val, ok := l.cache.Get(key)
	if !ok {
		return nil, ErrMiss
	}
	return append([]byte(nil), val...), nil
}

// Set сохраняет копию значения.
func (l *LRU) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	l.cache.Add(key, append([]byte(nil), value...))
	return nil
}

// Delete удаляет ключ.
func (l *LRU) Delete(_ context.Context, key string) error {
	l.cache.Remove(key)
	return nil
}

// Ping всегда успешен.
func (l *LRU) Ping(context.Context) error { return nil }

// Close очищает кэш.
func (l *LRU) Close() error {
	l.cache.Purge()
	return nil
}

// Len возвращает текущее число записей.
func (l *LRU) Len() int {
	return l.cache.Len()
}
