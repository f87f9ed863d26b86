package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestRequestLogger_LevelFollowsStatus(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	h := RequestLogger(logger)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"error":{}}`))
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/maintenance/audit", nil))

	out := buf.String()
	if !strings.Contains(out, `"level":"WARN"`) {
		t.Errorf("4xx должен логироваться на уровне WARN: %s", out)
	}
	if !strings.Contains(out, `"status":409`) {
		t.Errorf("статус не записан: %s", out)
	}
	if !strings.Contains(out, `"component":"http"`) {
		t.Errorf("компонент не записан: %s", out)
	}
	if !strings.Contains(out, `"duration_ms"`) {
		t.Errorf("длительность не записана: %s", out)
	}
}

func TestRequestLogger_DefaultStatusOK(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	h := RequestLogger(logger)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok")) // без явного WriteHeader
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))

	out := buf.String()
	if !strings.Contains(out, `"level":"INFO"`) || !strings.Contains(out, `"status":200`) {
		t.Errorf("неявный 200 должен логироваться как INFO: %s", out)
	}
	if !strings.Contains(out, `"bytes":2`) {
		t.Errorf("размер ответа не записан: %s", out)
	}
}
