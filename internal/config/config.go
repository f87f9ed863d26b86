// Пакет config — загрузка и валидация конфигурации Ingest Module
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

// Config содержит все параметры конфигурации Ingest Module.
type Config struct {
	// Порт HTTP-сервера (диапазон 8020-8029)
	Port int
	// Корневая директория хранилища записей
	DataRoot string
	// Путь к JSON-реестру разрешённых источников
	SourcesFile string
	// Таймаут запросов к внешним источникам
	FetchTimeout time.Duration
	// Максимальный размер LRU-кэша внешних ответов
	CacheSize int
	// TTL записи LRU-кэша
	CacheTTL time.Duration
	// Интервал автоматического аудита хранилища
	AuditInterval time.Duration
	// Путь к TLS сертификату (опционально; пусто — HTTP)
	TLSCert string
	// Путь к TLS приватному ключу (опционально)
	TLSKey string
	// Уровень логирования (debug, info, warn, error)
	LogLevel slog.Level
	// Формат логов (json, text)
	LogFormat string
	// Интервал проверки upstream-источников topologymetrics
	DephealthCheckInterval time.Duration
	// Имя группы в метриках topologymetrics (IM_DEPHEALTH_GROUP)
	DephealthGroup string
	// Имя владельца пода для метки name в topologymetrics (DEPHEALTH_NAME)
	DephealthName string
	// Таймаут graceful shutdown HTTP-сервера
	ShutdownTimeout time.Duration
}

// Load загружает конфигурацию из переменных окружения, валидирует
// значения и возвращает Config или ошибку.
func Load() (*Config, error) {
	cfg := &Config{}
	var err error

	// IM_PORT — порт HTTP-сервера (по умолчанию 8020)
	port, err := getEnvInt("IM_PORT", 8020)
	if err != nil {
		return nil, fmt.Errorf("IM_PORT: %w", err)
	}
	if port < 8020 || port > 8029 {
		return nil, fmt.Errorf("IM_PORT: значение %d вне допустимого диапазона 8020-8029", port)
	}
	cfg.Port = port

	// IM_DATA_ROOT — корень хранилища (по умолчанию "data")
	cfg.DataRoot = getEnvDefault("IM_DATA_ROOT", "data")

	// IM_SOURCES_FILE — реестр источников (по умолчанию configs/sources.json)
	cfg.SourcesFile = getEnvDefault("IM_SOURCES_FILE", "configs/sources.json")

	// IM_FETCH_TIMEOUT — таймаут внешних запросов (по умолчанию 30s)
	cfg.FetchTimeout, err = getEnvDuration("IM_FETCH_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("IM_FETCH_TIMEOUT: %w", err)
	}

	// IM_CACHE_SIZE — размер LRU-кэша (по умолчанию 256)
	cfg.CacheSize, err = getEnvInt("IM_CACHE_SIZE", 256)
	if err != nil {
		return nil, fmt.Errorf("IM_CACHE_SIZE: %w", err)
	}
	if cfg.CacheSize <= 0 {
		return nil, fmt.Errorf("IM_CACHE_SIZE: значение должно быть положительным")
	}

	// IM_CACHE_TTL — TTL кэша (по умолчанию 15m)
	cfg.CacheTTL, err = getEnvDuration("IM_CACHE_TTL", 15*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("IM_CACHE_TTL: %w", err)
	}

	// IM_AUDIT_INTERVAL — интервал аудита (по умолчанию 6h)
	cfg.AuditInterval, err = getEnvDuration("IM_AUDIT_INTERVAL", 6*time.Hour)
	if err != nil {
		return nil, fmt.Errorf("IM_AUDIT_INTERVAL: %w", err)
	}

	// IM_TLS_CERT / IM_TLS_KEY — опциональные, но только парой
	cfg.TLSCert = getEnvDefault("IM_TLS_CERT", "")
	cfg.TLSKey = getEnvDefault("IM_TLS_KEY", "")
	if (cfg.TLSCert == "") != (cfg.TLSKey == "") {
		return nil, fmt.Errorf("IM_TLS_CERT и IM_TLS_KEY задаются только вместе")
	}

	// IM_LOG_LEVEL — уровень логирования (по умолчанию info)
	cfg.LogLevel, err = parseLogLevel(getEnvDefault("IM_LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("IM_LOG_LEVEL: %w", err)
	}

	// IM_LOG_FORMAT — формат логов (по умолчанию json)
	cfg.LogFormat = getEnvDefault("IM_LOG_FORMAT", "json")
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, fmt.Errorf("IM_LOG_FORMAT: недопустимое значение %q, допустимые: json, text", cfg.LogFormat)
	}

	// IM_DEPHEALTH_CHECK_INTERVAL — интервал проверки источников (по умолчанию 15s)
	cfg.DephealthCheckInterval, err = getEnvDuration("IM_DEPHEALTH_CHECK_INTERVAL", 15*time.Second)
	if err != nil {
		return nil, fmt.Errorf("IM_DEPHEALTH_CHECK_INTERVAL: %w", err)
	}

	// IM_DEPHEALTH_GROUP — имя группы в метриках (по умолчанию "ingest-module")
	cfg.DephealthGroup = getEnvDefault("IM_DEPHEALTH_GROUP", "ingest-module")

	// DEPHEALTH_NAME — имя владельца пода для метки name (без префикса модуля)
	cfg.DephealthName = getEnvDefault("DEPHEALTH_NAME", "")

	// IM_SHUTDOWN_TIMEOUT — таймаут graceful shutdown (по умолчанию 5s)
	cfg.ShutdownTimeout, err = getEnvDuration("IM_SHUTDOWN_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("IM_SHUTDOWN_TIMEOUT: %w", err)
	}

	return cfg, nil
}

// TLSEnabled возвращает true, если сконфигурирована пара TLS-файлов.
func (c *Config) TLSEnabled() bool {
	return c.TLSCert != "" && c.TLSKey != ""
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
		return 0, fmt.Errorf("некорректная длительность: %q (используйте формат Go: 30s, 15m, 6h)", val)
	}
	return d, nil
}

// parseLogLevel преобразует строку уровня логирования в slog.Level.
func parseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("недопустимый уровень %q, допустимые: debug, info, warn, error", level)
	}
}
