package service

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func testAudit(env *testEnv) *AuditService {
	return NewAuditService(env.store, env.idx, env.classifier, time.Hour, testLogger())
}

func ingestOne(t *testing.T, env *testEnv) *Result {
	t.Helper()
	res, ingErr := env.svc.Ingest(context.Background(), Request{
		Source:  "zenodo",
		Locator: "10.5281/zenodo.16292189",
		Input:   writeInput(t, `{}`),
		Mode:    ModeIngest,
	})
	if ingErr != nil {
		t.Fatalf("Ingest: %v", ingErr)
	}
	return res
}

func issuesOfType(report *AuditReport, issueType string) []AuditIssue {
	var out []AuditIssue
	for _, issue := range report.Issues {
		if issue.Type == issueType {
			out = append(out, issue)
		}
	}
	return out
}

func TestAudit_CleanStore(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	ingestOne(t, env)
	ingestOne(t, env)

	report, skipped := testAudit(env).RunOnce()
	if skipped {
		t.Fatal("аудит не должен быть пропущен")
	}
	if report.RecordsChecked != 2 {
		t.Errorf("records_checked = %d, ожидалось 2", report.RecordsChecked)
	}
	if len(report.Issues) != 0 {
		t.Errorf("чистое хранилище: ожидалось 0 проблем, получено %+v", report.Issues)
	}
	if report.Summary.Ok != 2 {
		t.Errorf("ok = %d, ожидалось 2", report.Summary.Ok)
	}
}

func TestAudit_OrphanedPayloadNeverDeleted(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	res := ingestOne(t, env)

	// Имитация сбоя между записью payload и записи: payload без записи
	orphanPath := filepath.Join(filepath.Dir(res.PayloadPath), "deadbeef__payload.json")
	if err := os.WriteFile(orphanPath, []byte(`{}`), 0o640); err != nil {
		t.Fatal(err)
	}

	report, _ := testAudit(env).RunOnce()
	orphans := issuesOfType(report, IssueOrphanedPayload)
	if len(orphans) != 1 {
		t.Fatalf("ожидался 1 orphaned_payload, получено %+v", report.Issues)
	}
	if orphans[0].RecordID != "deadbeef" {
		t.Errorf("record_id = %s", orphans[0].RecordID)
	}

	// Аудит только сообщает: файл обязан остаться на месте
	if _, err := os.Stat(orphanPath); err != nil {
		t.Errorf("аудит не имеет права удалять осиротевший payload: %v", err)
	}
}

func TestAudit_OrphanedRecord(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	res := ingestOne(t, env)

	if err := os.Remove(res.PayloadPath); err != nil {
		t.Fatal(err)
	}

	report, _ := testAudit(env).RunOnce()
	if len(issuesOfType(report, IssueOrphanedRecord)) != 1 {
		t.Errorf("ожидался 1 orphaned_record, получено %+v", report.Issues)
	}
}

func TestAudit_ChecksumMismatch(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	res := ingestOne(t, env)

	// Повреждение payload с сохранением размера: {} → {1} не подходит,
	// нужен тот же размер — "[]"
	if err := os.WriteFile(res.PayloadPath, []byte(`[]`), 0o640); err != nil {
		t.Fatal(err)
	}

	report, _ := testAudit(env).RunOnce()
	if len(issuesOfType(report, IssueChecksumMismatch)) != 1 {
		t.Errorf("ожидался 1 checksum_mismatch, получено %+v", report.Issues)
	}
}

func TestAudit_SizeMismatch(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	res := ingestOne(t, env)

	if err := os.WriteFile(res.PayloadPath, []byte(`{"extra": 1}`), 0o640); err != nil {
		t.Fatal(err)
	}

	report, _ := testAudit(env).RunOnce()
	if len(issuesOfType(report, IssueSizeMismatch)) != 1 {
		t.Errorf("ожидался 1 size_mismatch, получено %+v", report.Issues)
	}
	// При несовпадении размера дайджест не проверяется отдельно
	if len(issuesOfType(report, IssueChecksumMismatch)) != 0 {
		t.Errorf("size_mismatch не должен дублироваться checksum_mismatch")
	}
}

// nonConformingRecord — структурно полная запись RAW_DATA с внутренним
// агентством: ровно одно нарушение схемы.
const nonConformingRecord = `{
  "record_id": "bad-raw",
  "retrieved_utc": "2026-08-29T12:00:00+00:00",
  "classification": "RAW_DATA",
  "source_agency": "INTERNAL",
  "agency_endpoint": "https://zenodo.org/api/records",
  "license": "CC-BY-4.0",
  "checksum": {"algorithm": "sha256", "value": "` + emptyJSONDigest + `"},
  "provenance": {"source": "zenodo", "doi": "10.5281/zenodo.1", "version": "v1"},
  "sha256": "` + emptyJSONDigest + `",
  "size_bytes": 2,
  "payload_path": "../payload/bad-raw__payload.json"
}`

func TestAudit_ValidationCompleteness(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	res := ingestOne(t, env)

	// Рядом с конформной записью — неконформная: RAW_DATA от INTERNAL
	recordsDir := filepath.Dir(res.RecordPath)
	payloadDir := filepath.Dir(res.PayloadPath)
	if err := os.WriteFile(filepath.Join(recordsDir, "bad-raw.json"), []byte(nonConformingRecord), 0o640); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(payloadDir, "bad-raw__payload.json"), []byte(`{}`), 0o640); err != nil {
		t.Fatal(err)
	}

	report, _ := testAudit(env).RunOnce()

	violations := issuesOfType(report, IssueSchemaViolation)
	if len(violations) != 1 {
		t.Fatalf("ожидалось ровно 1 нарушение схемы, получено %+v", report.Issues)
	}
	// Нарушение ссылается только на неконформный артефакт
	if !strings.Contains(violations[0].Path, "bad-raw.json") {
		t.Errorf("нарушение ссылается не на тот артефакт: %s", violations[0].Path)
	}
	if !strings.Contains(violations[0].Description, "RAW_DATA") {
		t.Errorf("ожидалось нарушение требования внешнего агентства RAW_DATA: %s", violations[0].Description)
	}
}

func TestAudit_RebuildsIndex(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	res := ingestOne(t, env)

	// Запись, добавленная мимо оркестратора (и мимо индекса),
	// появляется в индексе после пересборки аудитом
	recordsDir := filepath.Dir(res.RecordPath)
	payloadDir := filepath.Dir(res.PayloadPath)
	side := strings.ReplaceAll(nonConformingRecord, `"INTERNAL"`, `"CERN"`)
	side = strings.ReplaceAll(side, "bad-raw", "side-raw")
	if err := os.WriteFile(filepath.Join(recordsDir, "side-raw.json"), []byte(side), 0o640); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(payloadDir, "side-raw__payload.json"), []byte(`{}`), 0o640); err != nil {
		t.Fatal(err)
	}

	if _, skipped := testAudit(env).RunOnce(); skipped {
		t.Fatal("аудит пропущен")
	}
	if env.idx.Count() != 2 {
		t.Errorf("индекс после аудита: %d записей, ожидалось 2", env.idx.Count())
	}
}
