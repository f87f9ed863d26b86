package fetch

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRecordID(t *testing.T) {
	const prefix = "10.5281/zenodo."
	tests := []struct {
		doi     string
		prefix  string
		want    string
		wantErr bool
	}{
		{"10.5281/zenodo.16292189", prefix, "16292189", false},
		{"10.5281/zenodo.1", prefix, "1", false},
		{"10.5281/zenodo.", prefix, "", true},
		{"10.1000/other.123", prefix, "", true},
		{"zenodo.16292189", prefix, "", true},
		{"", prefix, "", true},
		// Префикс приходит из реестра: другой архив — другой префикс
		{"10.17189/1520089", "10.17189/", "1520089", false},
		{"10.5281/zenodo.1", "10.17189/", "", true},
		// Пустой префикс не пропускает ничего
		{"10.5281/zenodo.1", "", "", true},
	}

	for _, tt := range tests {
		got, err := RecordID(tt.doi, tt.prefix)
		if tt.wantErr {
			if !errors.Is(err, ErrInvalidDOI) {
				t.Errorf("RecordID(%q): ожидалась ErrInvalidDOI, получено %v", tt.doi, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("RecordID(%q): %v", tt.doi, err)
			continue
		}
		if got != tt.want {
			t.Errorf("RecordID(%q) = %q, ожидалось %q", tt.doi, got, tt.want)
		}
	}
}

func TestZenodoFetch(t *testing.T) {
	const body = `{"id": 16292189, "metadata": {"version": "v2.1"}}`

	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, body)
	}))
	defer srv.Close()

	client := NewZenodoClient(srv.URL+"/api/records", "10.5281/zenodo.", 5*time.Second, testLogger())
	res, err := client.Fetch(context.Background(), "10.5281/zenodo.16292189")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	if gotPath != "/api/records/16292189" {
		t.Errorf("путь запроса = %s, ожидалось /api/records/16292189", gotPath)
	}
	if string(res.Data) != body {
		t.Errorf("тело ответа изменено: %q", res.Data)
	}
	if res.Version != "v2.1" {
		t.Errorf("Version = %q, ожидалось v2.1", res.Version)
	}
}

func TestZenodoFetch_VersionUnknown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"id": 1, "metadata": {}}`)
	}))
	defer srv.Close()

	client := NewZenodoClient(srv.URL, "10.5281/zenodo.", 5*time.Second, testLogger())
	res, err := client.Fetch(context.Background(), "10.5281/zenodo.1")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if res.Version != "unknown" {
		t.Errorf("Version = %q, ожидалось unknown", res.Version)
	}
}

func TestZenodoFetch_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	}))
	defer srv.Close()

	client := NewZenodoClient(srv.URL, "10.5281/zenodo.", 5*time.Second, testLogger())
	_, err := client.Fetch(context.Background(), "10.5281/zenodo.99999999")
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("ожидалась ErrUnavailable, получено %v", err)
	}
}

func TestZenodoFetch_InvalidDOINoRequest(t *testing.T) {
	requested := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requested = true
	}))
	defer srv.Close()

	client := NewZenodoClient(srv.URL, "10.5281/zenodo.", 5*time.Second, testLogger())
	_, err := client.Fetch(context.Background(), "10.1000/other.1")
	if !errors.Is(err, ErrInvalidDOI) {
		t.Errorf("ожидалась ErrInvalidDOI, получено %v", err)
	}
	if requested {
		t.Error("некорректный DOI не должен приводить к сетевому запросу")
	}
}

func TestHorizonsFetch(t *testing.T) {
	const body = `{"result": "ephemeris", "signature": {"source": "NASA/JPL Horizons API"}}`

	var gotQuery map[string][]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		io.WriteString(w, body)
	}))
	defer srv.Close()

	client := NewHorizonsClient(srv.URL, 5*time.Second, testLogger())
	res, err := client.Fetch(context.Background(), "3I/ATLAS")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	if string(res.Data) != body {
		t.Errorf("тело ответа изменено: %q", res.Data)
	}
	if res.RequestURL == "" {
		t.Error("RequestURL не заполнен")
	}

	// Детерминированный набор параметров
	want := map[string]string{
		"COMMAND":    "'3I/ATLAS'",
		"EPHEM_TYPE": "OBSERVER",
		"CENTER":     "500@399",
		"START_TIME": "2025-01-01",
		"STOP_TIME":  "2025-01-02",
		"STEP_SIZE":  "1d",
		"QUANTITIES": "1,9,20,23,24",
		"format":     "json",
	}
	for k, v := range want {
		if got := gotQuery[k]; len(got) != 1 || got[0] != v {
			t.Errorf("параметр %s = %v, ожидалось %q", k, got, v)
		}
	}
}

func TestHorizonsFetch_Deterministic(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{}`)
	}))
	defer srv.Close()

	client := NewHorizonsClient(srv.URL, 5*time.Second, testLogger())
	first, err := client.Fetch(context.Background(), "3I/ATLAS")
	if err != nil {
		t.Fatal(err)
	}
	second, err := client.Fetch(context.Background(), "3I/ATLAS")
	if err != nil {
		t.Fatal(err)
	}
	if first.RequestURL != second.RequestURL {
		t.Errorf("URL запроса недетерминирован: %s != %s", first.RequestURL, second.RequestURL)
	}
}

func TestLoadOffline(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "input.json")
	const body = `{"hits": {"total": 0}}`
	if err := os.WriteFile(path, []byte(body), 0o640); err != nil {
		t.Fatal(err)
	}

	data, absPath, err := LoadOffline(path)
	if err != nil {
		t.Fatalf("LoadOffline: %v", err)
	}
	if string(data) != body {
		t.Errorf("содержимое изменено: %q", data)
	}
	if !filepath.IsAbs(absPath) {
		t.Errorf("ожидался абсолютный путь, получено %s", absPath)
	}
}

func TestLoadOffline_Missing(t *testing.T) {
	_, _, err := LoadOffline(filepath.Join(t.TempDir(), "missing.json"))
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("ожидалась ErrUnavailable, получено %v", err)
	}
}

func TestLoadOffline_InvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o640); err != nil {
		t.Fatal(err)
	}

	if _, _, err := LoadOffline(path); err == nil {
		t.Error("ожидалась ошибка для некорректного JSON")
	}
}
