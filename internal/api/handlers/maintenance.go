// maintenance.go — обработчик POST /api/v1/maintenance/audit.
// Делегирует проверку хранилища в AuditService.
package handlers

import (
	"encoding/json"
	"net/http"

	apierrors "github.com/trizel/ingest-module/internal/api/errors"
	"github.com/trizel/ingest-module/internal/service"
)

// AuditRunner — интерфейс для запуска аудита хранилища.
// Позволяет тестировать handler без полного AuditService.
type AuditRunner interface {
	// RunOnce выполняет один цикл аудита.
	// Возвращает отчёт и флаг "уже выполняется".
	RunOnce() (*service.AuditReport, bool)
}

// MaintenanceHandler — обработчик endpoints обслуживания.
type MaintenanceHandler struct {
	auditor AuditRunner
}

// NewMaintenanceHandler создаёт обработчик maintenance endpoints.
func NewMaintenanceHandler(auditor AuditRunner) *MaintenanceHandler {
	return &MaintenanceHandler{auditor: auditor}
}

// Audit обрабатывает POST /api/v1/maintenance/audit.
// Запускает синхронный цикл аудита и возвращает отчёт.
// Если аудит уже выполняется — 409 AUDIT_IN_PROGRESS.
// Аудит только сообщает о проблемах: осиротевшие payload
// обнаруживаются, но никогда не удаляются.
func (h *MaintenanceHandler) Audit(w http.ResponseWriter, _ *http.Request) {
	if h.auditor == nil {
		apierrors.InternalError(w, "сервис аудита не инициализирован")
		return
	}

	report, inProgress := h.auditor.RunOnce()
	if inProgress {
		apierrors.AuditInProgress(w, "аудит хранилища уже выполняется")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(report)
}
