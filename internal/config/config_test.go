package config

import (
	"log/slog"
	"testing"
	"time"
)

// setEnvs устанавливает переменные окружения на время теста.
func setEnvs(t *testing.T, envs map[string]string) {
	t.Helper()
	for k, v := range envs {
		t.Setenv(k, v)
	}
}

// minimalEnvs возвращает минимальный набор обязательных переменных.
func minimalEnvs() map[string]string {
	return map[string]string{
		"FV_DB_HOST":     "localhost",
		"FV_DB_NAME":     "filevault",
		"FV_DB_USER":     "filevault",
		"FV_DB_PASSWORD": "secret",
	}
}

func TestLoad_MinimalConfig(t *testing.T) {
	setEnvs(t, minimalEnvs())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() вернул ошибку: %v", err)
	}

	if cfg.Port != 8080 {
		t.Errorf("Port = %d, ожидается 8080", cfg.Port)
	}
	if cfg.LogLevel != slog.LevelInfo {
		t.Errorf("LogLevel = %v, ожидается Info", cfg.LogLevel)
	}
	if cfg.LogFormat != "json" {
		t.Errorf("LogFormat = %q, ожидается json", cfg.LogFormat)
	}
	if cfg.DBPort != 5432 {
		t.Errorf("DBPort = %d, ожидается 5432", cfg.DBPort)
	}
	if cfg.DBConnectAttempts != 5 {
		t.Errorf("DBConnectAttempts = %d, ожидается 5", cfg.DBConnectAttempts)
	}
	if cfg.DBConnectBackoff != time.Second {
		t.Errorf("DBConnectBackoff = %v, ожидается 1s", cfg.DBConnectBackoff)
	}
	if cfg.CacheBackend != CacheBackendRedis {
		t.Errorf("CacheBackend = %q, ожидается redis", cfg.CacheBackend)
	}
	if cfg.CacheTTL != time.Hour {
		t.Errorf("CacheTTL = %v, ожидается 1h", cfg.CacheTTL)
	}
	if cfg.CacheOpTimeout != 250*time.Millisecond {
		t.Errorf("CacheOpTimeout = %v, ожидается 250ms", cfg.CacheOpTimeout)
	}
	if cfg.SearchPageSize != 10 {
		t.Errorf("SearchPageSize = %d, ожидается 10", cfg.SearchPageSize)
	}
	if cfg.PremiumMaxDays != 365 {
		t.Errorf("PremiumMaxDays = %d, ожидается 365", cfg.PremiumMaxDays)
	}
	if cfg.AuthEnabled() {
		t.Error("AuthEnabled() = true без FV_JWT_JWKS_URL")
	}
	if cfg.ShutdownTimeout != 5*time.Second {
		t.Errorf("ShutdownTimeout = %v, ожидается 5s", cfg.ShutdownTimeout)
	}
}

func TestLoad_CustomValues(t *testing.T) {
	envs := minimalEnvs()
	envs["FV_PORT"] = "9090"
	envs["FV_LOG_LEVEL"] = "debug"
	envs["FV_LOG_FORMAT"] = "text"
	envs["FV_DB_CONNECT_ATTEMPTS"] = "3"
	envs["FV_DB_CONNECT_BACKOFF"] = "200ms"
	envs["FV_CACHE_BACKEND"] = "MEMORY"
	envs["FV_CACHE_TTL"] = "10m"
	envs["FV_DELIVERY_LINK_BASE"] = "https://watch.example.com/play/"
	envs["FV_JWT_JWKS_URL"] = "https://idp.example.com/certs"
	envs["FV_ROLE_ADMIN_GROUPS"] = "admins, super-admins"
	setEnvs(t, envs)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() вернул ошибку: %v", err)
	}

	if cfg.Port != 9090 {
		t.Errorf("Port = %d, ожидается 9090", cfg.Port)
	}
	if cfg.LogLevel != slog.LevelDebug {
		t.Errorf("LogLevel = %v, ожидается Debug", cfg.LogLevel)
	}
	if cfg.DBConnectAttempts != 3 || cfg.DBConnectBackoff != 200*time.Millisecond {
		t.Errorf("retry = %d/%v, ожидается 3/200ms", cfg.DBConnectAttempts, cfg.DBConnectBackoff)
	}
	if cfg.CacheBackend != CacheBackendMemory {
		t.Errorf("CacheBackend = %q, ожидается memory", cfg.CacheBackend)
	}
	if cfg.CacheTTL != 10*time.Minute {
		t.Errorf("CacheTTL = %v, ожидается 10m", cfg.CacheTTL)
	}
	if cfg.DeliveryLinkBase != "https://watch.example.com/play" {
		t.Errorf("DeliveryLinkBase = %q, ожидается без trailing slash", cfg.DeliveryLinkBase)
	}
	if !cfg.AuthEnabled() {
		t.Error("AuthEnabled() = false при заданном FV_JWT_JWKS_URL")
	}
	if len(cfg.RoleAdminGroups) != 2 || cfg.RoleAdminGroups[1] != "super-admins" {
		t.Errorf("RoleAdminGroups = %v", cfg.RoleAdminGroups)
	}
}

func TestLoad_MissingRequired(t *testing.T) {
	for missing := range minimalEnvs() {
		t.Run(missing, func(t *testing.T) {
			envs := minimalEnvs()
			envs[missing] = ""
			setEnvs(t, envs)

			if _, err := Load(); err == nil {
				t.Errorf("Load() не вернул ошибку при отсутствии %s", missing)
			}
		})
	}
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"порт не число", "FV_PORT", "abc"},
		{"порт вне диапазона", "FV_PORT", "70000"},
		{"уровень логов", "FV_LOG_LEVEL", "verbose"},
		{"формат логов", "FV_LOG_FORMAT", "xml"},
		{"ssl mode", "FV_DB_SSL_MODE", "prefer"},
		{"ноль попыток", "FV_DB_CONNECT_ATTEMPTS", "0"},
		{"отрицательный backoff", "FV_DB_CONNECT_BACKOFF", "-1s"},
		{"нулевой backoff", "FV_DB_CONNECT_BACKOFF", "0s"},
		{"бэкенд кэша", "FV_CACHE_BACKEND", "memcached"},
		{"нулевой TTL", "FV_CACHE_TTL", "0s"},
		{"размер страницы", "FV_SEARCH_PAGE_SIZE", "101"},
		{"премиум больше года", "FV_PREMIUM_MAX_DAYS", "400"},
		{"булево", "FV_DEPHEALTH_ENABLED", "maybe"},
		{"длительность", "FV_SHUTDOWN_TIMEOUT", "abc"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			envs := minimalEnvs()
			envs[tt.key] = tt.value
			setEnvs(t, envs)

			if _, err := Load(); err == nil {
				t.Errorf("Load() не вернул ошибку при %s=%q", tt.key, tt.value)
			}
		})
	}
}

func TestDatabaseDSN(t *testing.T) {
	cfg := &Config{
		DBHost:     "db.example.com",
		DBPort:     5432,
		DBName:     "filevault",
		DBUser:     "user",
		DBPassword: "pass",
		DBSSLMode:  "disable",
	}
	expected := "host=db.example.com port=5432 dbname=filevault user=user password=pass sslmode=disable"
	if dsn := cfg.DatabaseDSN(); dsn != expected {
		t.Errorf("DatabaseDSN() = %q, ожидается %q", dsn, expected)
	}
	if u := cfg.DatabaseURL(); u != "postgres://db.example.com:5432/filevault" {
		t.Errorf("DatabaseURL() = %q", u)
	}
}

func TestSetupLogger(t *testing.T) {
	for _, format := range []string{"json", "text"} {
		t.Run(format, func(t *testing.T) {
			logger := SetupLogger(&Config{LogLevel: slog.LevelInfo, LogFormat: format})
			if logger == nil {
				t.Error("SetupLogger() вернул nil")
			}
		})
	}
}

func TestParseCSV(t *testing.T) {
	tests := []struct {
		input    string
		expected []string
	}{
		{"", nil},
		{"admins", []string{"admins"}},
		{"admins,,viewers,", []string{"admins", "viewers"}},
		{" admins , viewers , guests ", []string{"admins", "viewers", "guests"}},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := parseCSV(tt.input)
			if len(result) != len(tt.expected) {
				t.Fatalf("parseCSV(%q) = %v, ожидается %v", tt.input, result, tt.expected)
			}
			for i, v := range result {
				if v != tt.expected[i] {
					t.Errorf("parseCSV(%q)[%d] = %q, ожидается %q", tt.input, i, v, tt.expected[i])
				}
			}
		})
	}
}
