// status.go — обработчик GET /api/v1/status.
// Сводка хранилища: количество записей по классам и источникам,
// суммарный размер payload, состояние аудита и upstream-зависимостей.
package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/trizel/ingest-module/internal/config"
	"github.com/trizel/ingest-module/internal/storage/index"
)

// StatsProvider — источник агрегированной сводки индекса.
type StatsProvider interface {
	IsReady() bool
	Stats() index.Stats
}

// AuditStatus — состояние фонового аудита.
type AuditStatus interface {
	IsInProgress() bool
}

// UpstreamHealth — доступность upstream-источников по данным dephealth.
type UpstreamHealth interface {
	// Health возвращает карту endpoint → доступен.
	Health() map[string]bool
}

// StatusHandler — обработчик статуса Ingest Module.
type StatusHandler struct {
	stats    StatsProvider
	audit    AuditStatus
	upstream UpstreamHealth
}

// NewStatusHandler создаёт обработчик /api/v1/status.
// audit и upstream могут быть nil (секции опускаются).
func NewStatusHandler(stats StatsProvider, audit AuditStatus, upstream UpstreamHealth) *StatusHandler {
	return &StatusHandler{stats: stats, audit: audit, upstream: upstream}
}

// statusResponse — ответ /api/v1/status.
type statusResponse struct {
	Service         string          `json:"service"`
	Version         string          `json:"version"`
	Timestamp       string          `json:"timestamp"`
	IndexReady      bool            `json:"index_ready"`
	Store           index.Stats     `json:"store"`
	AuditInProgress *bool           `json:"audit_in_progress,omitempty"`
	Upstream        map[string]bool `json:"upstream,omitempty"`
}

// Status обрабатывает GET /api/v1/status.
func (h *StatusHandler) Status(w http.ResponseWriter, _ *http.Request) {
	resp := statusResponse{
		Service:    serviceName,
		Version:    config.Version,
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
		IndexReady: h.stats.IsReady(),
		Store:      h.stats.Stats(),
	}

	if h.audit != nil {
		inProgress := h.audit.IsInProgress()
		resp.AuditInProgress = &inProgress
	}
	if h.upstream != nil {
		resp.Upstream = h.upstream.Health()
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(resp)
}
