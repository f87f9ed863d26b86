// audit.go — сервис фонового аудита хранилища.
//
// Аудит сверяет по каждому scope:
//   - payload-файлы с файлами записей
//   - дайджест и размер payload с полями записи
//   - метаданные записи с обязательной схемой (валидатор)
//
// Обнаруживает проблемы:
//   - orphaned_payload: payload без файла записи (допустимое
//     переходное состояние после сбоя между двумя записями)
//   - orphaned_record: запись, чей payload отсутствует
//   - checksum_mismatch: дайджест payload не совпадает с записью
//   - size_mismatch: размер payload не совпадает с записью
//   - schema_violation: запись нарушает схему метаданных
//
// Аудит ТОЛЬКО сообщает. Хранилище append-only: ничего не удаляется
// и не исправляется, включая осиротевшие payload.
//
// Запускается как горутина с периодическим тикером (IM_AUDIT_INTERVAL).
package service

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/trizel/ingest-module/internal/domain/classify"
	"github.com/trizel/ingest-module/internal/storage/index"
	"github.com/trizel/ingest-module/internal/storage/integrity"
	"github.com/trizel/ingest-module/internal/storage/recordstore"
)

// Типы проблем аудита.
const (
	IssueOrphanedPayload  = "orphaned_payload"
	IssueOrphanedRecord   = "orphaned_record"
	IssueChecksumMismatch = "checksum_mismatch"
	IssueSizeMismatch     = "size_mismatch"
	IssueSchemaViolation  = "schema_violation"
)

// Prometheus-метрики аудита.
var (
	auditRunsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "im_audit_runs_total",
		Help: "Общее количество запусков аудита хранилища.",
	})

	auditIssuesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "im_audit_issues_total",
		Help: "Общее количество проблем, обнаруженных аудитом.",
	}, []string{"type"})

	auditDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "im_audit_duration_seconds",
		Help:    "Длительность выполнения аудита в секундах.",
		Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300},
	})
)

// AuditIssue — одна обнаруженная проблема.
type AuditIssue struct {
	// Type — тип проблемы (orphaned_payload, orphaned_record, ...)
	Type string `json:"type"`
	// Path — путь проблемного артефакта
	Path string `json:"path"`
	// RecordID — идентификатор записи, если известен
	RecordID string `json:"record_id,omitempty"`
	// Description — описание проблемы
	Description string `json:"description"`
}

// AuditSummary — агрегированные итоги аудита.
type AuditSummary struct {
	Ok               int `json:"ok"`
	OrphanedPayloads int `json:"orphaned_payloads"`
	OrphanedRecords  int `json:"orphaned_records"`
	ChecksumMismatch int `json:"checksum_mismatches"`
	SizeMismatch     int `json:"size_mismatches"`
	SchemaViolations int `json:"schema_violations"`
}

// AuditReport — результат одного прохода аудита.
type AuditReport struct {
	StartedAt      time.Time    `json:"started_at"`
	CompletedAt    time.Time    `json:"completed_at"`
	ScopesChecked  int          `json:"scopes_checked"`
	RecordsChecked int          `json:"records_checked"`
	Issues         []AuditIssue `json:"issues"`
	Summary        AuditSummary `json:"summary"`
}

// AuditService — сервис фонового аудита хранилища.
type AuditService struct {
	store      *recordstore.Store
	idx        *index.Index
	classifier *classify.Classifier
	interval   time.Duration
	logger     *slog.Logger

	mu        sync.Mutex // защита от параллельного запуска
	inProcess bool
	cancel    context.CancelFunc
}

// NewAuditService создаёт сервис аудита.
func NewAuditService(
	store *recordstore.Store,
	idx *index.Index,
	classifier *classify.Classifier,
	interval time.Duration,
	logger *slog.Logger,
) *AuditService {
	return &AuditService{
		store:      store,
		idx:        idx,
		classifier: classifier,
		interval:   interval,
		logger:     logger.With(slog.String("component", "audit")),
	}
}

// Start запускает фоновую горутину аудита с периодическим тикером.
func (as *AuditService) Start(ctx context.Context) {
	asCtx, cancel := context.WithCancel(ctx)
	as.cancel = cancel

	go as.run(asCtx)

	as.logger.Info("Аудит хранилища запущен",
		slog.String("interval", as.interval.String()),
	)
}

// Stop останавливает фоновый аудит.
func (as *AuditService) Stop() {
	if as.cancel != nil {
		as.cancel()
	}
	as.logger.Info("Аудит хранилища остановлен")
}

// IsInProgress возвращает true, если аудит выполняется.
func (as *AuditService) IsInProgress() bool {
	as.mu.Lock()
	defer as.mu.Unlock()
	return as.inProcess
}

// run — основной цикл фоновой горутины.
func (as *AuditService) run(ctx context.Context) {
	ticker := time.NewTicker(as.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			as.RunOnce()
		}
	}
}

// RunOnce выполняет один проход аудита.
// Потокобезопасен: если аудит уже выполняется, возвращает nil, true.
func (as *AuditService) RunOnce() (*AuditReport, bool) {
	as.mu.Lock()
	if as.inProcess {
		as.mu.Unlock()
		as.logger.Warn("Аудит уже выполняется, пропуск")
		return nil, true
	}
	as.inProcess = true
	as.mu.Unlock()

	defer func() {
		as.mu.Lock()
		as.inProcess = false
		as.mu.Unlock()
	}()

	startedAt := time.Now().UTC()
	as.logger.Info("Аудит хранилища начат")

	report := &AuditReport{StartedAt: startedAt}
	as.audit(report)

	// Индекс пересобирается после сверки: аудит мог обнаружить
	// записи, добавленные мимо текущего процесса
	if as.idx != nil {
		if err := as.idx.BuildFromStore(as.store); err != nil {
			as.logger.Error("Ошибка пересборки индекса",
				slog.String("error", err.Error()),
			)
		}
	}

	report.CompletedAt = time.Now().UTC()
	duration := report.CompletedAt.Sub(report.StartedAt)

	for _, issue := range report.Issues {
		switch issue.Type {
		case IssueOrphanedPayload:
			report.Summary.OrphanedPayloads++
		case IssueOrphanedRecord:
			report.Summary.OrphanedRecords++
		case IssueChecksumMismatch:
			report.Summary.ChecksumMismatch++
		case IssueSizeMismatch:
			report.Summary.SizeMismatch++
		case IssueSchemaViolation:
			report.Summary.SchemaViolations++
		}
	}
	report.Summary.Ok = report.RecordsChecked - len(report.Issues)
	if report.Summary.Ok < 0 {
		report.Summary.Ok = 0
	}

	auditRunsTotal.Inc()
	auditDurationSeconds.Observe(duration.Seconds())
	for _, issue := range report.Issues {
		auditIssuesTotal.WithLabelValues(issue.Type).Inc()
	}

	as.logger.Info("Аудит хранилища завершён",
		slog.Int("scopes", report.ScopesChecked),
		slog.Int("records", report.RecordsChecked),
		slog.Int("issues", len(report.Issues)),
		slog.Duration("duration", duration),
	)

	return report, false
}

// audit выполняет сверку всех scope хранилища.
func (as *AuditService) audit(report *AuditReport) {
	scopes, err := as.store.Scopes()
	if err != nil {
		as.logger.Error("Ошибка сканирования хранилища",
			slog.String("error", err.Error()),
		)
		return
	}

	for _, ref := range scopes {
		report.ScopesChecked++
		as.auditScope(ref, report)
	}
}

// auditScope сверяет один scope.
func (as *AuditService) auditScope(ref recordstore.ScopeRef, report *AuditReport) {
	recordIDs, err := as.store.RecordIDs(ref.Paths)
	if err != nil {
		as.logger.Warn("Ошибка чтения записей scope",
			slog.String("scope", ref.Paths.Base),
			slog.String("error", err.Error()),
		)
		return
	}
	payloadIDs, err := as.store.PayloadIDs(ref.Paths)
	if err != nil {
		as.logger.Warn("Ошибка чтения payload scope",
			slog.String("scope", ref.Paths.Base),
			slog.String("error", err.Error()),
		)
		return
	}

	recordSet := make(map[string]bool, len(recordIDs))
	for _, id := range recordIDs {
		recordSet[id] = true
	}

	// 1. Payload без записи: допустимое переходное состояние,
	// сообщается, но НИКОГДА не удаляется
	for _, id := range payloadIDs {
		if !recordSet[id] {
			report.Issues = append(report.Issues, AuditIssue{
				Type:        IssueOrphanedPayload,
				Path:        ref.Paths.PayloadPath(id),
				RecordID:    id,
				Description: "payload без файла записи (сбой между записью payload и записи)",
			})
		}
	}

	// 2. Записи: парность, целостность, схема
	for _, id := range recordIDs {
		report.RecordsChecked++
		as.auditRecord(ref, id, report)
	}
}

// auditRecord сверяет одну запись с её payload и схемой метаданных.
func (as *AuditService) auditRecord(ref recordstore.ScopeRef, id string, report *AuditReport) {
	recordPath := ref.Paths.RecordPath(id)
	payloadPath := ref.Paths.PayloadPath(id)

	raw, err := os.ReadFile(recordPath)
	if err != nil {
		as.logger.Warn("Ошибка чтения файла записи",
			slog.String("path", recordPath),
			slog.String("error", err.Error()),
		)
		return
	}

	// Схема метаданных: каждое нарушение уровня ERROR — проблема аудита
	for _, v := range classify.ErrorsOnly(as.classifier.Validate(recordPath, raw)) {
		report.Issues = append(report.Issues, AuditIssue{
			Type:        IssueSchemaViolation,
			Path:        recordPath,
			RecordID:    id,
			Description: v.Rule + ": " + v.Message,
		})
	}

	rec, err := recordstore.ReadRecord(recordPath)
	if err != nil {
		// Уже отражено как schema_violation при разборе
		return
	}

	// Парность: запись обязана ссылаться на существующий payload
	actualSize, err := integrity.SizeFile(payloadPath)
	if err != nil {
		report.Issues = append(report.Issues, AuditIssue{
			Type:        IssueOrphanedRecord,
			Path:        recordPath,
			RecordID:    id,
			Description: "запись ссылается на отсутствующий payload",
		})
		return
	}

	if actualSize != rec.SizeBytes {
		report.Issues = append(report.Issues, AuditIssue{
			Type:        IssueSizeMismatch,
			Path:        payloadPath,
			RecordID:    id,
			Description: "размер payload на диске не совпадает с size_bytes записи",
		})
		// При несовпадении размера дайджест совпасть не может
		return
	}

	actualDigest, err := integrity.SumFile(payloadPath)
	if err != nil {
		as.logger.Warn("Ошибка вычисления дайджеста payload",
			slog.String("path", payloadPath),
			slog.String("error", err.Error()),
		)
		return
	}

	if actualDigest != rec.SHA256 {
		report.Issues = append(report.Issues, AuditIssue{
			Type:        IssueChecksumMismatch,
			Path:        payloadPath,
			RecordID:    id,
			Description: "дайджест payload на диске не совпадает с sha256 записи",
		})
	}
}
