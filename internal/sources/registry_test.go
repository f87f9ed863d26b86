package sources

import (
	"os"
	"path/filepath"
	"testing"
)

// writeRegistry записывает JSON реестра во временный файл.
func writeRegistry(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sources.json")
	if err := os.WriteFile(path, []byte(content), 0o640); err != nil {
		t.Fatalf("ошибка записи реестра: %v", err)
	}
	return path
}

const validRegistry = `{
  "agencies": ["NASA", "CERN", "INTERNAL"],
  "sources": {
    "zenodo": {
      "agency": "CERN",
      "kind": "archive_doi",
      "doi_prefix": "10.5281/zenodo.",
      "default_endpoint": "records",
      "endpoints": {
        "records": {
          "url": "https://zenodo.org/api/records",
          "type": "archive",
          "raw_data_source": true,
          "license": "CC-BY-4.0"
        }
      }
    },
    "jpl_horizons": {
      "agency": "NASA",
      "kind": "ephemeris_api",
      "default_endpoint": "horizons_api",
      "endpoints": {
        "horizons_api": {
          "url": "https://ssd.jpl.nasa.gov/api/horizons.api",
          "type": "api",
          "raw_data_source": false,
          "license": "NASA_OPEN_DATA"
        }
      }
    }
  }
}`

// TestLoad_Valid проверяет загрузку корректного реестра.
func TestLoad_Valid(t *testing.T) {
	reg, err := Load(writeRegistry(t, validRegistry))
	if err != nil {
		t.Fatalf("ошибка загрузки: %v", err)
	}

	src, ok := reg.Source("zenodo")
	if !ok {
		t.Fatal("источник zenodo не найден")
	}
	if src.Agency != "CERN" {
		t.Errorf("agency: ожидалось CERN, получено %q", src.Agency)
	}
	if src.DOIPrefix != "10.5281/zenodo." {
		t.Errorf("doi_prefix: ожидалось 10.5281/zenodo., получено %q", src.DOIPrefix)
	}
	ep, ok := src.Endpoints[src.DefaultEndpoint]
	if !ok {
		t.Fatal("default_endpoint не разрешается")
	}
	if !ep.RawDataSource {
		t.Error("endpoint records должен быть источником сырых данных")
	}

	if _, ok := reg.Source("wikipedia"); ok {
		t.Error("неизвестный источник не должен находиться")
	}
}

// TestAgencyAllowed проверяет allow-list агентств, включая правило
// «RAW_DATA требует внешнего агентства».
func TestAgencyAllowed(t *testing.T) {
	reg, err := Load(writeRegistry(t, validRegistry))
	if err != nil {
		t.Fatalf("ошибка загрузки: %v", err)
	}

	if !reg.AgencyAllowed("NASA") {
		t.Error("NASA должно быть в allow-list")
	}
	if reg.AgencyAllowed("SpaceY") {
		t.Error("SpaceY не должно быть в allow-list")
	}
	if !reg.ExternalAgencyAllowed("NASA") {
		t.Error("NASA — допустимое внешнее агентство")
	}
	// INTERNAL в allow-list, но внешним агентством не является
	if !reg.AgencyAllowed(AgencyInternal) {
		t.Error("INTERNAL должно быть в allow-list")
	}
	if reg.ExternalAgencyAllowed(AgencyInternal) {
		t.Error("INTERNAL не может быть внешним агентством")
	}
}

// TestLoad_Invalid проверяет отклонение несогласованных реестров.
func TestLoad_Invalid(t *testing.T) {
	cases := map[string]string{
		"агентство вне allow-list": `{
			"agencies": ["NASA"],
			"sources": {"zenodo": {"agency": "CERN", "kind": "archive_doi",
				"default_endpoint": "r", "endpoints": {"r": {"url": "https://z", "type": "archive"}}}}}`,
		"битый default_endpoint": `{
			"agencies": ["NASA"],
			"sources": {"s": {"agency": "NASA", "kind": "ephemeris_api",
				"default_endpoint": "нет", "endpoints": {"r": {"url": "https://z", "type": "api"}}}}}`,
		"неизвестный kind": `{
			"agencies": ["NASA"],
			"sources": {"s": {"agency": "NASA", "kind": "telepathy",
				"default_endpoint": "r", "endpoints": {"r": {"url": "https://z", "type": "api"}}}}}`,
		"archive_doi без doi_prefix": `{
			"agencies": ["CERN"],
			"sources": {"zenodo": {"agency": "CERN", "kind": "archive_doi",
				"default_endpoint": "r", "endpoints": {"r": {"url": "https://z", "type": "archive"}}}}}`,
		"пустые источники": `{"agencies": ["NASA"], "sources": {}}`,
	}

	for name, content := range cases {
		if _, err := Load(writeRegistry(t, content)); err == nil {
			t.Errorf("%s: ожидалась ошибка валидации", name)
		}
	}
}

// TestEndpointURLs проверяет сбор URL для мониторинга upstream-зависимостей.
func TestEndpointURLs(t *testing.T) {
	reg, err := Load(writeRegistry(t, validRegistry))
	if err != nil {
		t.Fatalf("ошибка загрузки: %v", err)
	}

	urls := reg.EndpointURLs()
	if urls["zenodo-records"] != "https://zenodo.org/api/records" {
		t.Errorf("zenodo-records: получено %q", urls["zenodo-records"])
	}
	if urls["jpl_horizons-horizons_api"] == "" {
		t.Error("horizons endpoint отсутствует")
	}
}
