// Пакет config — загрузка и валидация конфигурации filevault
// из переменных окружения.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Версия приложения, задаётся при сборке через -ldflags.
var Version = "dev"

// Имя сервиса в health-ответах и метриках зависимостей.
const ServiceName = "filevault"

// Допустимые бэкенды кэша.
const (
	CacheBackendRedis  = "redis"
	CacheBackendMemory = "memory"
	CacheBackendNone   = "none"
)

// MaxPremiumDays — верхняя граница продления премиум-доступа за одну операцию.
const MaxPremiumDays = 365

// Config содержит все параметры конфигурации filevault.
type Config struct {
	// --- Сервер ---

	// Порт HTTP-сервера
	Port int
	// Уровень логирования (debug, info, warn, error)
	LogLevel slog.Level
	// Формат логов (json, text)
	LogFormat string

	// --- HTTP Server Timeouts ---

	// Таймаут чтения HTTP-сервера (по умолчанию 30s)
	HTTPReadTimeout time.Duration
	// Таймаут записи HTTP-сервера (по умолчанию 60s)
	HTTPWriteTimeout time.Duration
	// Таймаут простоя HTTP-сервера (по умолчанию 120s)
	HTTPIdleTimeout time.Duration

	// --- PostgreSQL ---

	DBHost     string
	DBPort     int
	DBName     string
	DBUser     string
	DBPassword string
	// Режим SSL: disable, require, verify-ca, verify-full
	DBSSLMode string
	// Максимальное количество соединений в пуле
	DBMaxConns int
	// Минимальное количество простаивающих соединений
	DBMinConns int
	// Максимальное время жизни соединения
	DBMaxConnLifetime time.Duration
	// Количество попыток подключения при старте
	DBConnectAttempts int
	// Пауза между попытками подключения
	DBConnectBackoff time.Duration

	// --- Кэш ---

	// Бэкенд кэша: redis, memory, none
	CacheBackend string
	// Адрес Redis (host:port)
	RedisAddr string
	// Пароль Redis (опционально)
	RedisPassword string
	// Номер базы Redis
	RedisDB int
	// Время жизни записей кэша
	CacheTTL time.Duration
	// Размер in-memory кэша (для CacheBackend=memory)
	CacheSize int
	// Префикс ключей кэша
	CachePrefix string
	// Таймаут одной операции с кэшем
	CacheOpTimeout time.Duration

	// --- Поиск и выдача ---

	// Размер страницы поиска по умолчанию
	SearchPageSize int
	// Максимальное продление премиума за одну операцию (дней)
	PremiumMaxDays int
	// Базовый URL ссылки для обычных пользователей
	DeliveryLinkBase string

	// --- JWT ---

	// URL JWKS endpoint (пусто — аутентификация отключена)
	JWTJWKSURL string
	// Ожидаемый issuer (пусто — не проверяется)
	JWTIssuer string
	// Допустимое отклонение часов при проверке exp/nbf
	JWTLeeway time.Duration
	// Таймаут HTTP-клиента JWKS
	JWKSClientTimeout time.Duration
	// Интервал обновления ключей JWKS
	JWKSRefreshInterval time.Duration
	// Путь к CA-сертификату для TLS-соединения с JWKS (опционально)
	JWTCACertPath string
	// Группы IdP, дающие роль admin
	RoleAdminGroups []string
	// Группы IdP, дающие роль readonly
	RoleReadonlyGroups []string

	// --- Мониторинг зависимостей ---

	// Включён ли topologymetrics
	DephealthEnabled bool
	// Группа в метриках зависимостей
	DephealthGroup string
	// Интервал проверки зависимостей
	DephealthCheckInterval time.Duration

	// --- Graceful shutdown ---

	// Таймаут graceful shutdown (по умолчанию 5s)
	ShutdownTimeout time.Duration
}

// Load загружает конфигурацию из переменных окружения.
// Возвращает ошибку, если обязательные переменные не заданы
// или значения некорректны.
func Load() (*Config, error) {
	cfg := &Config{}
	var err error

	// --- Сервер ---

	cfg.Port, err = getEnvInt("FV_PORT", 8080)
	if err != nil {
		return nil, fmt.Errorf("FV_PORT: %w", err)
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return nil, fmt.Errorf("FV_PORT: значение %d вне допустимого диапазона 1-65535", cfg.Port)
	}

	cfg.LogLevel, err = parseLogLevel(getEnvDefault("FV_LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("FV_LOG_LEVEL: %w", err)
	}

	cfg.LogFormat = getEnvDefault("FV_LOG_FORMAT", "json")
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, fmt.Errorf("FV_LOG_FORMAT: недопустимый формат %q, допустимые: json, text", cfg.LogFormat)
	}

	// --- HTTP Server Timeouts ---

	cfg.HTTPReadTimeout, err = getEnvDuration("FV_HTTP_READ_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("FV_HTTP_READ_TIMEOUT: %w", err)
	}
	cfg.HTTPWriteTimeout, err = getEnvDuration("FV_HTTP_WRITE_TIMEOUT", 60*time.Second)
	if err != nil {
		return nil, fmt.Errorf("FV_HTTP_WRITE_TIMEOUT: %w", err)
	}
	cfg.HTTPIdleTimeout, err = getEnvDuration("FV_HTTP_IDLE_TIMEOUT", 120*time.Second)
	if err != nil {
		return nil, fmt.Errorf("FV_HTTP_IDLE_TIMEOUT: %w", err)
	}

	// --- PostgreSQL ---

	if err := loadDatabase(cfg); err != nil {
		return nil, err
	}

	// --- Кэш ---

	if err := loadCache(cfg); err != nil {
		return nil, err
	}

	// --- Поиск и выдача ---

	cfg.SearchPageSize, err = getEnvInt("FV_SEARCH_PAGE_SIZE", 10)
	if err != nil {
		return nil, fmt.Errorf("FV_SEARCH_PAGE_SIZE: %w", err)
	}
	if cfg.SearchPageSize < 1 || cfg.SearchPageSize > 100 {
		return nil, fmt.Errorf("FV_SEARCH_PAGE_SIZE: значение %d вне допустимого диапазона 1-100", cfg.SearchPageSize)
	}

	cfg.PremiumMaxDays, err = getEnvInt("FV_PREMIUM_MAX_DAYS", MaxPremiumDays)
	if err != nil {
		return nil, fmt.Errorf("FV_PREMIUM_MAX_DAYS: %w", err)
	}
	if cfg.PremiumMaxDays < 1 || cfg.PremiumMaxDays > MaxPremiumDays {
		return nil, fmt.Errorf("FV_PREMIUM_MAX_DAYS: значение %d вне допустимого диапазона 1-%d", cfg.PremiumMaxDays, MaxPremiumDays)
	}

	cfg.DeliveryLinkBase = strings.TrimRight(getEnvDefault("FV_DELIVERY_LINK_BASE", "http://localhost:8080/watch"), "/")

	// --- JWT ---

	if err := loadJWT(cfg); err != nil {
		return nil, err
	}

	// --- Мониторинг зависимостей ---

	cfg.DephealthEnabled, err = getEnvBool("FV_DEPHEALTH_ENABLED", true)
	if err != nil {
		return nil, fmt.Errorf("FV_DEPHEALTH_ENABLED: %w", err)
	}
	cfg.DephealthGroup = getEnvDefault("FV_DEPHEALTH_GROUP", ServiceName)
	cfg.DephealthCheckInterval, err = getEnvDuration("FV_DEPHEALTH_CHECK_INTERVAL", 15*time.Second)
	if err != nil {
		return nil, fmt.Errorf("FV_DEPHEALTH_CHECK_INTERVAL: %w", err)
	}

	// --- Graceful shutdown ---

	cfg.ShutdownTimeout, err = getEnvDuration("FV_SHUTDOWN_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("FV_SHUTDOWN_TIMEOUT: %w", err)
	}

	return cfg, nil
}

// loadDatabase заполняет параметры PostgreSQL и пула соединений.
func loadDatabase(cfg *Config) error {
	var err error

	if cfg.DBHost, err = getEnvRequired("FV_DB_HOST"); err != nil {
		return err
	}
	cfg.DBPort, err = getEnvInt("FV_DB_PORT", 5432)
	if err != nil {
		return fmt.Errorf("FV_DB_PORT: %w", err)
	}
	if cfg.DBName, err = getEnvRequired("FV_DB_NAME"); err != nil {
		return err
	}
	if cfg.DBUser, err = getEnvRequired("FV_DB_USER"); err != nil {
		return err
	}
	if cfg.DBPassword, err = getEnvRequired("FV_DB_PASSWORD"); err != nil {
		return err
	}

	cfg.DBSSLMode = getEnvDefault("FV_DB_SSL_MODE", "disable")
	validSSLModes := map[string]bool{
		"disable": true, "require": true, "verify-ca": true, "verify-full": true,
	}
	if !validSSLModes[cfg.DBSSLMode] {
		return fmt.Errorf("FV_DB_SSL_MODE: недопустимое значение %q, допустимые: disable, require, verify-ca, verify-full", cfg.DBSSLMode)
	}

	cfg.DBMaxConns, err = getEnvInt("FV_DB_MAX_CONNS", 10)
	if err != nil {
		return fmt.Errorf("FV_DB_MAX_CONNS: %w", err)
	}
	cfg.DBMinConns, err = getEnvInt("FV_DB_MIN_CONNS", 1)
	if err != nil {
		return fmt.Errorf("FV_DB_MIN_CONNS: %w", err)
	}
	if cfg.DBMaxConns < 1 || cfg.DBMinConns < 0 || cfg.DBMinConns > cfg.DBMaxConns {
		return fmt.Errorf("FV_DB_MIN_CONNS/FV_DB_MAX_CONNS: некорректные границы пула %d..%d", cfg.DBMinConns, cfg.DBMaxConns)
	}
	cfg.DBMaxConnLifetime, err = getEnvDuration("FV_DB_MAX_CONN_LIFETIME", time.Hour)
	if err != nil {
		return fmt.Errorf("FV_DB_MAX_CONN_LIFETIME: %w", err)
	}

	cfg.DBConnectAttempts, err = getEnvInt("FV_DB_CONNECT_ATTEMPTS", 5)
	if err != nil {
		return fmt.Errorf("FV_DB_CONNECT_ATTEMPTS: %w", err)
	}
	if cfg.DBConnectAttempts < 1 {
		return fmt.Errorf("FV_DB_CONNECT_ATTEMPTS: значение должно быть >= 1")
	}
	cfg.DBConnectBackoff, err = getEnvDurationFallback("FV_DB_CONNECT_BACKOFF", time.Second)
	if err != nil {
		return fmt.Errorf("FV_DB_CONNECT_BACKOFF: %w", err)
	}
	return nil
}

// loadCache заполняет параметры кэша.
func loadCache(cfg *Config) error {
	var err error

	cfg.CacheBackend = strings.ToLower(getEnvDefault("FV_CACHE_BACKEND", CacheBackendRedis))
	switch cfg.CacheBackend {
	case CacheBackendRedis, CacheBackendMemory, CacheBackendNone:
	default:
		return fmt.Errorf("FV_CACHE_BACKEND: недопустимое значение %q, допустимые: redis, memory, none", cfg.CacheBackend)
	}

	cfg.RedisAddr = getEnvDefault("FV_REDIS_ADDR", "localhost:6379")
	cfg.RedisPassword = getEnvDefault("FV_REDIS_PASSWORD", "")
	cfg.RedisDB, err = getEnvInt("FV_REDIS_DB", 0)
	if err != nil {
		return fmt.Errorf("FV_REDIS_DB: %w", err)
	}

	cfg.CacheTTL, err = getEnvDurationFallback("FV_CACHE_TTL", time.Hour)
	if err != nil {
		return fmt.Errorf("FV_CACHE_TTL: %w", err)
	}
	cfg.CacheSize, err = getEnvInt("FV_CACHE_SIZE", 10000)
	if err != nil {
		return fmt.Errorf("FV_CACHE_SIZE: %w", err)
	}
	if cfg.CacheSize < 1 {
		return fmt.Errorf("FV_CACHE_SIZE: значение должно быть >= 1")
	}
	cfg.CachePrefix = getEnvDefault("FV_CACHE_PREFIX", "fv:")
	cfg.CacheOpTimeout, err = getEnvDurationFallback("FV_CACHE_OP_TIMEOUT", 250*time.Millisecond)
	if err != nil {
		return fmt.Errorf("FV_CACHE_OP_TIMEOUT: %w", err)
	}
	return nil
}

// loadJWT заполняет параметры JWT-аутентификации.
// Пустой FV_JWT_JWKS_URL отключает проверку токенов.
func loadJWT(cfg *Config) error {
	var err error

	cfg.JWTJWKSURL = getEnvDefault("FV_JWT_JWKS_URL", "")
	cfg.JWTIssuer = getEnvDefault("FV_JWT_ISSUER", "")
	cfg.JWTCACertPath = getEnvDefault("FV_JWT_CA_CERT_PATH", "")

	cfg.JWTLeeway, err = getEnvDuration("FV_JWT_LEEWAY", 5*time.Second)
	if err != nil {
		return fmt.Errorf("FV_JWT_LEEWAY: %w", err)
	}
	cfg.JWKSClientTimeout, err = getEnvDurationFallback("FV_JWKS_CLIENT_TIMEOUT", 10*time.Second)
	if err != nil {
		return fmt.Errorf("FV_JWKS_CLIENT_TIMEOUT: %w", err)
	}
	cfg.JWKSRefreshInterval, err = getEnvDurationFallback("FV_JWKS_REFRESH_INTERVAL", 15*time.Minute)
	if err != nil {
		return fmt.Errorf("FV_JWKS_REFRESH_INTERVAL: %w", err)
	}

	cfg.RoleAdminGroups = parseCSV(getEnvDefault("FV_ROLE_ADMIN_GROUPS", "filevault-admins"))
	cfg.RoleReadonlyGroups = parseCSV(getEnvDefault("FV_ROLE_READONLY_GROUPS", "filevault-viewers"))
	return nil
}

// AuthEnabled сообщает, включена ли JWT-аутентификация.
func (c *Config) AuthEnabled() bool {
	return c.JWTJWKSURL != ""
}

// DatabaseDSN возвращает строку подключения к PostgreSQL.
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBName, c.DBUser, c.DBPassword, c.DBSSLMode,
	)
}

// DatabaseURL возвращает URL PostgreSQL без пароля (для лейблов метрик).
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%d/%s", c.DBHost, c.DBPort, c.DBName)
}

// SetupLogger настраивает глобальный slog-логгер на основе конфигурации.
func SetupLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}

	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// --- Вспомогательные функции ---

// getEnvRequired возвращает значение переменной окружения или ошибку, если она не задана.
func getEnvRequired(key string) (string, error) {
	val := os.Getenv(key)
	if val == "" {
		return "", fmt.Errorf("%s: обязательная переменная окружения не задана", key)
	}
	return val, nil
}

// getEnvDefault возвращает значение переменной окружения или значение по умолчанию.
func getEnvDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

// getEnvInt возвращает целочисленное значение переменной окружения или значение по умолчанию.
func getEnvInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("некорректное целое число: %q", val)
	}
	return n, nil
}

// getEnvDuration возвращает time.Duration из переменной окружения или значение по умолчанию.
func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("некорректная длительность: %q (используйте формат Go: 30s, 1h, 15m)", val)
	}
	return d, nil
}

// getEnvDurationFallback как getEnvDuration, но заданное значение обязано быть > 0.
func getEnvDurationFallback(key string, fallbackVal time.Duration) (time.Duration, error) {
	d, err := getEnvDuration(key, fallbackVal)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("значение должно быть > 0")
	}
	return d, nil
}

// getEnvBool возвращает булево значение переменной окружения или значение по умолчанию.
func getEnvBool(key string, defaultVal bool) (bool, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return false, fmt.Errorf("некорректное булево значение: %q (допустимые: true, false, 1, 0)", val)
	}
	return b, nil
}

// parseLogLevel преобразует строку уровня логирования в slog.Level.
func parseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("недопустимый уровень %q, допустимые: debug, info, warn, error", level)
	}
}

// parseCSV разбирает строку, разделённую запятыми, на срез строк.
// Пробелы вокруг элементов убираются, пустые элементы игнорируются.
func parseCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}
