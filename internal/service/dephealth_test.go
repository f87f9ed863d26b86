package service

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/trizel/ingest-module/internal/sources"
)

// mockRegistry строит реестр с единственным сетевым endpoint,
// указывающим на mock-сервер.
func mockRegistry(t *testing.T, url string) *sources.Registry {
	t.Helper()
	registryJSON := fmt.Sprintf(`{
  "agencies": ["NASA"],
  "sources": {
    "jpl_horizons": {
      "agency": "NASA",
      "kind": "ephemeris_api",
      "default_endpoint": "horizons_api",
      "endpoints": {
        "horizons_api": {
          "url": %q,
          "type": "api",
          "raw_data_source": false,
          "license": "NASA_OPEN_DATA"
        }
      }
    }
  }
}`, url)

	path := filepath.Join(t.TempDir(), "sources.json")
	if err := os.WriteFile(path, []byte(registryJSON), 0o640); err != nil {
		t.Fatal(err)
	}
	reg, err := sources.Load(path)
	if err != nil {
		t.Fatalf("ошибка загрузки реестра: %v", err)
	}
	return reg
}

func TestNewDephealthService(t *testing.T) {
	mockServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer mockServer.Close()

	promReg := prometheus.NewRegistry()

	ds, err := NewDephealthServiceWithRegisterer(
		"test-im-01",
		"ingest-module",
		mockRegistry(t, mockServer.URL),
		5*time.Second,
		testLogger(),
		promReg,
	)
	if err != nil {
		t.Fatalf("Ошибка создания DephealthService: %v", err)
	}
	if ds == nil {
		t.Fatal("DephealthService nil")
	}
}

func TestDephealthService_StartStop(t *testing.T) {
	mockServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer mockServer.Close()

	promReg := prometheus.NewRegistry()

	ds, err := NewDephealthServiceWithRegisterer(
		"test-im-02",
		"ingest-module",
		mockRegistry(t, mockServer.URL),
		1*time.Second,
		testLogger(),
		promReg,
	)
	if err != nil {
		t.Fatalf("Ошибка создания DephealthService: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Start не должен блокировать
	if err := ds.Start(ctx); err != nil {
		t.Fatalf("Ошибка запуска: %v", err)
	}

	// Даём время на первую проверку (интервал 1s + запас)
	time.Sleep(3 * time.Second)

	health := ds.Health()
	if len(health) == 0 {
		t.Error("Health() должен содержать хотя бы одну зависимость после первой проверки")
	}

	ds.Stop()
}
