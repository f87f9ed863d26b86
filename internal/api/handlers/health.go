// health.go — обработчики health endpoints Ingest Module.
// /health/live — liveness probe (процесс жив)
// /health/ready — readiness probe (индекс записей построен)
package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/trizel/ingest-module/internal/config"
)

// serviceName — значение поля service в health-ответах.
const serviceName = "ingest-module"

// Константы статусов health check.
const (
	statusOK   = "ok"
	statusFail = "fail"
)

// ReadinessChecker — интерфейс проверки готовности зависимости.
type ReadinessChecker interface {
	// IsReady возвращает true, когда зависимость готова обслуживать запросы.
	IsReady() bool
}

// HealthHandler — обработчик health endpoints.
type HealthHandler struct {
	index ReadinessChecker
}

// NewHealthHandler создаёт обработчик health endpoints.
// index — индекс записей (может быть nil — readiness вернёт "fail").
func NewHealthHandler(index ReadinessChecker) *HealthHandler {
	return &HealthHandler{index: index}
}

// healthCheckResult — результат проверки одной зависимости.
type healthCheckResult struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// healthLiveResponse — ответ liveness probe.
type healthLiveResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
	Service   string `json:"service"`
}

// healthReadyResponse — ответ readiness probe.
type healthReadyResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
	Service   string `json:"service"`
	Checks    struct {
		Index healthCheckResult `json:"index"`
	} `json:"checks"`
}

// HealthLive — liveness probe. Возвращает 200 если процесс жив.
func (h *HealthHandler) HealthLive(w http.ResponseWriter, _ *http.Request) {
	resp := healthLiveResponse{
		Status:    statusOK,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   config.Version,
		Service:   serviceName,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(resp)
}

// HealthReady — readiness probe. Проверяет, построен ли индекс записей.
// Возвращает 200 (ok) или 503 (fail).
func (h *HealthHandler) HealthReady(w http.ResponseWriter, _ *http.Request) {
	resp := healthReadyResponse{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   config.Version,
		Service:   serviceName,
	}

	if h.index != nil && h.index.IsReady() {
		resp.Checks.Index = healthCheckResult{Status: statusOK}
	} else {
		resp.Checks.Index = healthCheckResult{Status: statusFail, Message: "индекс не построен"}
	}
	resp.Status = resp.Checks.Index.Status

	w.Header().Set("Content-Type", "application/json")
	if resp.Status == statusFail {
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}
	_ = json.NewEncoder(w).Encode(resp)
}
