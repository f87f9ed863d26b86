package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/trizel/ingest-module/internal/service"
	"github.com/trizel/ingest-module/internal/storage/index"
)

// fakeIndex — заглушка индекса для health/status.
type fakeIndex struct {
	ready bool
	stats index.Stats
}

func (f *fakeIndex) IsReady() bool      { return f.ready }
func (f *fakeIndex) Stats() index.Stats { return f.stats }

// fakeAuditor — заглушка AuditService.
type fakeAuditor struct {
	report     *service.AuditReport
	inProgress bool
	calls      int
}

func (f *fakeAuditor) RunOnce() (*service.AuditReport, bool) {
	f.calls++
	if f.inProgress {
		return nil, true
	}
	return f.report, false
}

func (f *fakeAuditor) IsInProgress() bool { return f.inProgress }

func TestHealthLive(t *testing.T) {
	h := NewHealthHandler(&fakeIndex{ready: false})

	rec := httptest.NewRecorder()
	h.HealthLive(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("liveness должен возвращать 200, получено %d", rec.Code)
	}

	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("ответ не JSON: %v", err)
	}
	if resp["status"] != "ok" {
		t.Errorf("status = %v, ожидался ok", resp["status"])
	}
	if resp["service"] != "ingest-module" {
		t.Errorf("service = %v, ожидался ingest-module", resp["service"])
	}
}

func TestHealthReady_IndexNotBuilt(t *testing.T) {
	h := NewHealthHandler(&fakeIndex{ready: false})

	rec := httptest.NewRecorder()
	h.HealthReady(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("readiness без индекса должен возвращать 503, получено %d", rec.Code)
	}
}

func TestHealthReady_IndexReady(t *testing.T) {
	h := NewHealthHandler(&fakeIndex{ready: true})

	rec := httptest.NewRecorder()
	h.HealthReady(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("readiness с построенным индексом должен возвращать 200, получено %d", rec.Code)
	}
}

func TestStatus_ReportsStoreStats(t *testing.T) {
	idx := &fakeIndex{
		ready: true,
		stats: index.Stats{
			Total:          3,
			TotalSizeBytes: 42,
		},
	}
	auditor := &fakeAuditor{}
	h := NewStatusHandler(idx, auditor, nil)

	rec := httptest.NewRecorder()
	h.Status(rec, httptest.NewRequest(http.MethodGet, "/api/v1/status", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status должен возвращать 200, получено %d", rec.Code)
	}

	var resp statusResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("ответ не JSON: %v", err)
	}
	if !resp.IndexReady {
		t.Error("index_ready должен быть true")
	}
	if resp.Store.Total != 3 {
		t.Errorf("store.total = %d, ожидалось 3", resp.Store.Total)
	}
	if resp.AuditInProgress == nil || *resp.AuditInProgress {
		t.Error("audit_in_progress должен присутствовать и быть false")
	}
}

func TestAudit_ReturnsReport(t *testing.T) {
	now := time.Now().UTC()
	auditor := &fakeAuditor{
		report: &service.AuditReport{
			StartedAt:      now,
			CompletedAt:    now,
			RecordsChecked: 2,
		},
	}
	h := NewMaintenanceHandler(auditor)

	rec := httptest.NewRecorder()
	h.Audit(rec, httptest.NewRequest(http.MethodPost, "/api/v1/maintenance/audit", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("audit должен возвращать 200, получено %d", rec.Code)
	}
	if auditor.calls != 1 {
		t.Errorf("RunOnce должен быть вызван ровно один раз, вызван %d", auditor.calls)
	}

	var report service.AuditReport
	if err := json.Unmarshal(rec.Body.Bytes(), &report); err != nil {
		t.Fatalf("ответ не JSON: %v", err)
	}
	if report.RecordsChecked != 2 {
		t.Errorf("records_checked = %d, ожидалось 2", report.RecordsChecked)
	}
}

func TestAudit_InProgressConflict(t *testing.T) {
	h := NewMaintenanceHandler(&fakeAuditor{inProgress: true})

	rec := httptest.NewRecorder()
	h.Audit(rec, httptest.NewRequest(http.MethodPost, "/api/v1/maintenance/audit", nil))

	if rec.Code != http.StatusConflict {
		t.Errorf("повторный audit должен возвращать 409, получено %d", rec.Code)
	}

	var resp struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("ответ не JSON: %v", err)
	}
	if resp.Error.Code != "AUDIT_IN_PROGRESS" {
		t.Errorf("code = %q, ожидался AUDIT_IN_PROGRESS", resp.Error.Code)
	}
}
