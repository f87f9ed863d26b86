// Пакет sources — реестр разрешённых источников и агентств (allow-list).
//
// Реестр — внешние данные (IM_SOURCES_FILE, JSON), не встроенные ветвления:
// добавление источника — изменение данных, а не кода. Локатор или источник,
// отсутствующий в реестре, жёстко отклоняется — неявный вывод новых
// источников не допускается.
package sources

import (
	"encoding/json"
	"fmt"
	"os"
	"slices"
	"strings"
)

// AgencyInternal — служебное «агентство» для снимков и производных данных.
// Для RAW_DATA недопустимо: сырые данные обязаны происходить из внешнего
// агентства allow-list.
const AgencyInternal = "INTERNAL"

// Виды источников: определяют форму provenance и способ получения payload.
const (
	// KindArchiveDOI — архивный репозиторий, адресуемый DOI (Zenodo)
	KindArchiveDOI = "archive_doi"
	// KindEphemerisAPI — вычисляющий API эфемерид (JPL Horizons, SBDB)
	KindEphemerisAPI = "ephemeris_api"
	// KindLocalFile — локальный файл вне сети
	KindLocalFile = "local_file"
)

// Типы endpoint-ов: участвуют в правиле классификации.
const (
	// EndpointAPI — вычисленный/real-time API ответ
	EndpointAPI = "api"
	// EndpointArchive — прямая архивная загрузка
	EndpointArchive = "archive"
	// EndpointPortal — информационный портал (не источник данных)
	EndpointPortal = "portal"
	// EndpointPipeline — выход локального конвейера обработки
	EndpointPipeline = "pipeline"
)

// Endpoint — конкретный endpoint источника.
type Endpoint struct {
	// URL — официальный адрес endpoint-а
	URL string `json:"url"`
	// Description — назначение endpoint-а
	Description string `json:"description,omitempty"`
	// Type — тип endpoint-а (api, archive, portal, pipeline)
	Type string `json:"type"`
	// RawDataSource — является ли endpoint источником сырых данных.
	// API-снимки и вычисленные эфемериды — нет.
	RawDataSource bool `json:"raw_data_source"`
	// License — лицензия/политика публикации данных endpoint-а
	License string `json:"license,omitempty"`
}

// Source — источник данных из allow-list.
type Source struct {
	// Agency — агентство-владелец источника
	Agency string `json:"agency"`
	// Kind — вид источника (archive_doi, ephemeris_api, local_file)
	Kind string `json:"kind"`
	// DOIPrefix — допустимый префикс DOI источника. Обязателен для
	// archive_doi: локаторы с другим префиксом отклоняются до I/O
	DOIPrefix string `json:"doi_prefix,omitempty"`
	// DefaultEndpoint — endpoint по умолчанию; его идентификатор
	// служит dataset_key, если ключ не задан явно
	DefaultEndpoint string `json:"default_endpoint"`
	// Endpoints — endpoint-ы источника по идентификатору
	Endpoints map[string]Endpoint `json:"endpoints"`
}

// Registry — реестр разрешённых агентств и источников.
type Registry struct {
	// Agencies — allow-list агентств (включая INTERNAL для не-RAW данных)
	Agencies []string `json:"agencies"`
	// Sources — источники по идентификатору
	Sources map[string]Source `json:"sources"`
}

// Load загружает и валидирует реестр из JSON-файла.
func Load(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения реестра источников %s: %w", path, err)
	}

	var reg Registry
	if err := json.Unmarshal(data, &reg); err != nil {
		return nil, fmt.Errorf("ошибка разбора реестра источников %s: %w", path, err)
	}

	if err := reg.validate(); err != nil {
		return nil, fmt.Errorf("невалидный реестр источников %s: %w", path, err)
	}

	return &reg, nil
}

// validate проверяет внутреннюю согласованность реестра.
func (r *Registry) validate() error {
	if len(r.Agencies) == 0 {
		return fmt.Errorf("пустой allow-list агентств")
	}
	if len(r.Sources) == 0 {
		return fmt.Errorf("пустой список источников")
	}

	for id, src := range r.Sources {
		if !r.AgencyAllowed(src.Agency) {
			return fmt.Errorf("источник %q: агентство %q отсутствует в allow-list", id, src.Agency)
		}
		if len(src.Endpoints) == 0 {
			return fmt.Errorf("источник %q: нет endpoint-ов", id)
		}
		if _, ok := src.Endpoints[src.DefaultEndpoint]; !ok {
			return fmt.Errorf("источник %q: default_endpoint %q не найден среди endpoint-ов", id, src.DefaultEndpoint)
		}
		switch src.Kind {
		case KindArchiveDOI:
			if src.DOIPrefix == "" {
				return fmt.Errorf("источник %q: archive_doi требует doi_prefix", id)
			}
		case KindEphemerisAPI, KindLocalFile:
		default:
			return fmt.Errorf("источник %q: неизвестный kind %q", id, src.Kind)
		}
	}

	return nil
}

// Source возвращает источник по идентификатору.
func (r *Registry) Source(id string) (Source, bool) {
	src, ok := r.Sources[id]
	return src, ok
}

// AgencyAllowed возвращает true, если агентство присутствует в allow-list.
func (r *Registry) AgencyAllowed(name string) bool {
	return slices.Contains(r.Agencies, name)
}

// ExternalAgencyAllowed возвращает true, если агентство присутствует
// в allow-list и не является служебным INTERNAL. Требование RAW_DATA.
func (r *Registry) ExternalAgencyAllowed(name string) bool {
	return name != AgencyInternal && r.AgencyAllowed(name)
}

// SourceIDs возвращает отсортированный список идентификаторов источников.
// Используется в подсказках CLI и статусном endpoint-е.
func (r *Registry) SourceIDs() []string {
	ids := make([]string, 0, len(r.Sources))
	for id := range r.Sources {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// EndpointURLs возвращает URL всех endpoint-ов реестра (для мониторинга
// доступности upstream-зависимостей). Порталы пропускаются.
func (r *Registry) EndpointURLs() map[string]string {
	urls := make(map[string]string)
	for srcID, src := range r.Sources {
		for epID, ep := range src.Endpoints {
			if ep.Type == EndpointPortal || !strings.HasPrefix(ep.URL, "http") {
				continue
			}
			urls[srcID+"-"+epID] = ep.URL
		}
	}
	return urls
}
