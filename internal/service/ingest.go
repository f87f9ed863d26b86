// ingest.go — оркестратор ингеста.
//
// Поток одного ингеста:
//  1. Разрешение источника по allow-list (до любого I/O)
//  2. Получение payload: offline-файл имеет приоритет над сетью
//  3. Вычисление integrity-метаданных
//  4. Классификация по реестру источников
//  5. Валидация кандидата записи ДО записи на диск
//  6. Запись пары артефактов (payload → запись) или dry_run
//
// Результат бинарный: полная запись либо IngestError. Частичное
// состояние файловой системы возможно только в случае WRITE_FAILURE
// между записью payload и записью файла записи — этот осиротевший
// payload никогда не считается успехом.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/trizel/ingest-module/internal/domain/classify"
	"github.com/trizel/ingest-module/internal/domain/model"
	"github.com/trizel/ingest-module/internal/fetch"
	"github.com/trizel/ingest-module/internal/sources"
	"github.com/trizel/ingest-module/internal/storage/ident"
	"github.com/trizel/ingest-module/internal/storage/index"
	"github.com/trizel/ingest-module/internal/storage/integrity"
	"github.com/trizel/ingest-module/internal/storage/recordstore"
)

// Prometheus-метрики ингеста.
var (
	ingestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "im_ingests_total",
		Help: "Общее количество операций ингеста по источнику и результату.",
	}, []string{"source", "result"})

	ingestDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "im_ingest_duration_seconds",
		Help:    "Длительность операции ингеста в секундах.",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
	})

	recordsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "im_records_total",
		Help: "Общее количество сохранённых записей по классификации.",
	}, []string{"classification"})
)

// Режимы работы оркестратора.
type Mode string

const (
	// ModeIngest — полный ингест с записью на диск.
	ModeIngest Mode = "ingest"
	// ModeDryRun — полный путь без побочных эффектов на диске.
	ModeDryRun Mode = "dry_run"
)

// Request — запрос на ингест.
type Request struct {
	// Source — идентификатор источника из allow-list реестра
	Source string
	// Locator — локатор payload: DOI для архивов, целевой объект для API
	Locator string
	// Input — путь локального входного файла (offline-first:
	// при наличии сеть не используется вовсе)
	Input string
	// DatasetKey — ключ датасета; по умолчанию — default_endpoint источника
	DatasetKey string
	// Pipeline — идентификатор конвейера обработки (для DERIVED)
	Pipeline string
	// Mode — ingest или dry_run
	Mode Mode
}

// Result — результат успешного ингеста.
type Result struct {
	// Record — сохранённая запись (в dry_run — какой она была бы)
	Record *model.Record
	// RecordPath — абсолютный путь файла записи. Пустой в dry_run.
	RecordPath string
	// PayloadPath — абсолютный путь payload-файла. Пустой в dry_run.
	PayloadPath string
	// Warnings — нарушения уровня WARNING (не блокируют запись)
	Warnings []classify.Violation
	// DryRun — true, если запись на диск не выполнялась
	DryRun bool
}

// ArchiveFetcher — клиент архивного DOI-репозитория.
type ArchiveFetcher interface {
	Fetch(ctx context.Context, doi string) (*fetch.ZenodoResult, error)
}

// EphemerisFetcher — клиент вычисляющего API эфемерид.
type EphemerisFetcher interface {
	Fetch(ctx context.Context, target string) (*fetch.HorizonsResult, error)
}

// defaultPipeline — конвейер обработки по умолчанию для DERIVED записей.
const defaultPipeline = "TRIZEL Monitor v1.0"

// IngestService — оркестратор ингеста.
type IngestService struct {
	reg        *sources.Registry
	classifier *classify.Classifier
	store      *recordstore.Store
	idx        *index.Index
	archive    ArchiveFetcher
	ephemeris  EphemerisFetcher
	cache      *CacheService
	logger     *slog.Logger

	// now — источник времени для scope-даты. Подменяется в тестах.
	now func() time.Time
}

// NewIngestService создаёт оркестратор ингеста.
// archive и ephemeris могут быть nil — тогда соответствующие источники
// доступны только в offline-режиме (--input).
func NewIngestService(
	reg *sources.Registry,
	classifier *classify.Classifier,
	store *recordstore.Store,
	idx *index.Index,
	archive ArchiveFetcher,
	ephemeris EphemerisFetcher,
	cache *CacheService,
	logger *slog.Logger,
) *IngestService {
	return &IngestService{
		reg:        reg,
		classifier: classifier,
		store:      store,
		idx:        idx,
		archive:    archive,
		ephemeris:  ephemeris,
		cache:      cache,
		logger:     logger.With(slog.String("component", "ingest_service")),
		now:        model.NowUTC,
	}
}

// Ingest выполняет один ингест согласно запросу.
func (s *IngestService) Ingest(ctx context.Context, req Request) (*Result, *IngestError) {
	started := time.Now()
	res, ingErr := s.ingest(ctx, req)
	ingestDurationSeconds.Observe(time.Since(started).Seconds())

	if ingErr != nil {
		ingestsTotal.WithLabelValues(req.Source, "error").Inc()
		s.logger.Error("Ингест завершился ошибкой",
			slog.String("source", req.Source),
			slog.String("code", ingErr.Code),
			slog.String("error", ingErr.Message),
		)
		return nil, ingErr
	}

	ingestsTotal.WithLabelValues(req.Source, "success").Inc()
	return res, nil
}

// ingest — основной поток; разделён с Ingest ради единообразного
// учёта метрик и логирования исхода.
func (s *IngestService) ingest(ctx context.Context, req Request) (*Result, *IngestError) {
	if req.Mode == "" {
		req.Mode = ModeIngest
	}
	if req.Mode != ModeIngest && req.Mode != ModeDryRun {
		return nil, &IngestError{
			Code:    CodeValidationFailure,
			Message: fmt.Sprintf("неизвестный режим %q", req.Mode),
			Hints:   []string{"допустимые режимы: ingest, dry_run"},
		}
	}

	// 1. Источник разрешается до любого I/O
	src, ok := s.reg.Source(req.Source)
	if !ok {
		return nil, &IngestError{
			Code:    CodeUnknownSource,
			Message: fmt.Sprintf("источник %q отсутствует в allow-list", req.Source),
			Hints: []string{
				fmt.Sprintf("доступные источники: %v", s.reg.SourceIDs()),
				"новые источники добавляются в реестр (IM_SOURCES_FILE), не выводятся из данных",
			},
		}
	}

	datasetKey := req.DatasetKey
	if datasetKey == "" {
		datasetKey = src.DefaultEndpoint
	}
	endpoint, ok := src.Endpoints[datasetKey]
	if !ok {
		endpoint = src.Endpoints[src.DefaultEndpoint]
	}

	// Для архивов DOI проверяется до получения payload: локатор
	// с непроверяемым происхождением отклоняется без I/O.
	// Суффикс DOI входит в scope каталога: raw/<date>/zenodo_<suffix>/
	scopeSource := req.Source
	if src.Kind == sources.KindArchiveDOI {
		suffix, err := fetch.RecordID(req.Locator, src.DOIPrefix)
		if err != nil {
			return nil, &IngestError{
				Code:    CodeUnknownSource,
				Message: fmt.Sprintf("локатор %q не является DOI допустимого архива", req.Locator),
				Hints: []string{
					fmt.Sprintf("формат DOI источника %s: %s<record_id>", req.Source, src.DOIPrefix),
					"DOI задаётся явно, вывод из данных не допускается",
				},
				Err: err,
			}
		}
		scopeSource = req.Source + "_" + suffix
	}

	// 2. Payload: offline-файл имеет приоритет, сеть — fallback
	payload, prov, ingErr := s.acquirePayload(ctx, req, src, endpoint)
	if ingErr != nil {
		return nil, ingErr
	}

	// 3–4. Integrity + классификация
	class, err := s.classifier.Classify(classify.Descriptor{
		SourceID:      req.Source,
		Agency:        src.Agency,
		EndpointURL:   endpoint.URL,
		EndpointType:  endpoint.Type,
		RawDataSource: endpoint.RawDataSource,
		License:       endpoint.License,
		Checksum:      integrity.SumBytes(payload),
	})
	if err != nil {
		return nil, &IngestError{
			Code:    CodeClassificationAmbiguous,
			Message: err.Error(),
			Hints: []string{
				"классы взаимоисключающие: RAW_DATA, SNAPSHOT, DERIVED",
				"проверьте тип endpoint-а источника в реестре",
			},
			Err: err,
		}
	}

	draft := model.Record{
		Classification: class,
		SourceAgency:   src.Agency,
		AgencyEndpoint: endpoint.URL,
		License:        endpoint.License,
		Provenance:     prov,
	}
	if class == model.ClassDerived {
		draft.ProcessingPipeline = req.Pipeline
		if draft.ProcessingPipeline == "" {
			draft.ProcessingPipeline = defaultPipeline
		}
	}

	scope := recordstore.Scope{
		Date:       s.now(),
		SourceID:   scopeSource,
		DatasetKey: datasetKey,
	}

	// 5. Кандидат записи валидируется ДО записи на диск
	candidate, err := s.store.DryRun(scope, payload, draft)
	if err != nil {
		return nil, s.storeError(err)
	}

	candidateJSON, err := json.Marshal(candidate.Record)
	if err != nil {
		return nil, &IngestError{
			Code:    CodeWriteFailure,
			Message: fmt.Sprintf("сериализация кандидата записи: %v", err),
			Err:     err,
		}
	}

	violations := s.classifier.Validate(candidate.Record.RecordID, candidateJSON)
	if hard := classify.ErrorsOnly(violations); len(hard) > 0 {
		return nil, &IngestError{
			Code:       CodeValidationFailure,
			Message:    fmt.Sprintf("кандидат записи нарушает %d инвариантов метаданных", len(hard)),
			Hints:      []string{"полный список нарушений приведён ниже, исправление — на стороне источника"},
			Violations: violations,
		}
	}
	warnings := violationsOfSeverity(violations, classify.SeverityWarning)

	// 6. dry_run: никаких побочных эффектов
	if req.Mode == ModeDryRun {
		return &Result{
			Record:   candidate.Record,
			Warnings: warnings,
			DryRun:   true,
		}, nil
	}

	stored, err := s.store.Put(scope, payload, draft)
	if err != nil {
		return nil, s.storeError(err)
	}

	s.idx.Add(scope, stored.Record)
	recordsTotal.WithLabelValues(string(stored.Record.Classification)).Inc()

	s.logger.Info("Запись сохранена",
		slog.String("record_id", stored.Record.RecordID),
		slog.String("source", req.Source),
		slog.String("dataset_key", datasetKey),
		slog.String("classification", string(stored.Record.Classification)),
		slog.String("sha256", stored.Record.SHA256),
		slog.Int64("size_bytes", stored.Record.SizeBytes),
	)

	return &Result{
		Record:      stored.Record,
		RecordPath:  stored.RecordPath,
		PayloadPath: stored.PayloadPath,
		Warnings:    warnings,
	}, nil
}

// acquirePayload получает payload и строит provenance по виду источника.
func (s *IngestService) acquirePayload(
	ctx context.Context,
	req Request,
	src sources.Source,
	endpoint sources.Endpoint,
) ([]byte, model.Provenance, *IngestError) {
	// Offline-файл имеет безусловный приоритет над сетью
	if req.Input != "" {
		data, absPath, err := fetch.LoadOffline(req.Input)
		if err != nil {
			return nil, nil, &IngestError{
				Code:    CodePayloadUnavailable,
				Message: fmt.Sprintf("offline-файл недоступен: %v", err),
				Hints: []string{
					"проверьте путь, переданный через --input",
					"файл обязан содержать синтаксически корректный JSON",
				},
				Err: err,
			}
		}

		switch src.Kind {
		case sources.KindArchiveDOI:
			return data, model.ZenodoProvenance{
				DOI:     req.Locator,
				Version: fetch.ExtractVersion(data),
			}, nil
		case sources.KindEphemerisAPI:
			return data, model.HorizonsProvenance{
				Target: req.Locator,
				APIURL: endpoint.URL,
			}, nil
		default:
			return data, model.OfflineProvenance{
				InputPath:  absPath,
				IngestedAt: model.FormatUTC(s.now()),
			}, nil
		}
	}

	switch src.Kind {
	case sources.KindArchiveDOI:
		if s.archive == nil {
			return nil, nil, s.offlineOnlyError(req.Source)
		}

		cacheKey := "archive:" + req.Locator
		if cached, ok := s.cacheGet(cacheKey); ok {
			return cached, model.ZenodoProvenance{
				DOI:     req.Locator,
				Version: fetch.ExtractVersion(cached),
			}, nil
		}

		res, err := s.archive.Fetch(ctx, req.Locator)
		if err != nil {
			return nil, nil, s.fetchError(err, req)
		}
		s.cacheSet(cacheKey, res.Data)
		return res.Data, model.ZenodoProvenance{
			DOI:     req.Locator,
			Version: res.Version,
		}, nil

	case sources.KindEphemerisAPI:
		if req.Locator == "" {
			return nil, nil, &IngestError{
				Code:    CodePayloadUnavailable,
				Message: "не задан целевой объект запроса эфемерид",
				Hints:   []string{"укажите целевой объект через --target (например, 3I/ATLAS)"},
			}
		}
		if s.ephemeris == nil {
			return nil, nil, s.offlineOnlyError(req.Source)
		}

		cacheKey := "ephemeris:" + req.Source + ":" + req.Locator
		if cached, ok := s.cacheGet(cacheKey); ok {
			return cached, model.HorizonsProvenance{
				Target: req.Locator,
				APIURL: endpoint.URL,
			}, nil
		}

		res, err := s.ephemeris.Fetch(ctx, req.Locator)
		if err != nil {
			return nil, nil, s.fetchError(err, req)
		}
		s.cacheSet(cacheKey, res.Data)
		return res.Data, model.HorizonsProvenance{
			Target: req.Locator,
			APIURL: endpoint.URL,
		}, nil

	default:
		// local_file без --input: payload взять неоткуда
		return nil, nil, &IngestError{
			Code:    CodePayloadUnavailable,
			Message: fmt.Sprintf("источник %q принимает только локальные файлы", req.Source),
			Hints:   []string{"передайте входной файл через --input"},
		}
	}
}

// cacheGet — обращение к кэшу, безопасное при отключённом кэше.
func (s *IngestService) cacheGet(key string) ([]byte, bool) {
	if s.cache == nil {
		return nil, false
	}
	return s.cache.Get(key)
}

func (s *IngestService) cacheSet(key string, data []byte) {
	if s.cache != nil {
		s.cache.Set(key, data)
	}
}

// offlineOnlyError — сетевой клиент источника не сконфигурирован.
func (s *IngestService) offlineOnlyError(source string) *IngestError {
	return &IngestError{
		Code:    CodePayloadUnavailable,
		Message: fmt.Sprintf("сетевой клиент источника %q не сконфигурирован", source),
		Hints:   []string{"используйте offline-режим: --input <файл>"},
	}
}

// fetchError переводит ошибку получения payload в IngestError.
func (s *IngestService) fetchError(err error, req Request) *IngestError {
	return &IngestError{
		Code:    CodePayloadUnavailable,
		Message: fmt.Sprintf("payload недоступен: %v", err),
		Hints: []string{
			"проверьте сетевую доступность endpoint-а",
			fmt.Sprintf("проверьте корректность локатора: %q", req.Locator),
			"или используйте offline-режим: --input <файл>",
		},
		Err: err,
	}
}

// storeError переводит ошибку хранилища в IngestError.
func (s *IngestService) storeError(err error) *IngestError {
	if errors.Is(err, ident.ErrExhausted) {
		return &IngestError{
			Code:    CodeAllocationExhausted,
			Message: err.Error(),
			Hints:   []string{"исчерпание UUID v4 практически невозможно: проверьте раскладку хранилища на дефекты"},
			Err:     err,
		}
	}
	return &IngestError{
		Code:    CodeWriteFailure,
		Message: fmt.Sprintf("ошибка записи в хранилище: %v", err),
		Hints: []string{
			"проверьте права доступа и свободное место в IM_DATA_ROOT",
			"осиротевший payload после сбоя обнаружит аудит; удалять его вручную не требуется",
		},
		Err: err,
	}
}

// violationsOfSeverity отбирает нарушения указанной серьёзности.
func violationsOfSeverity(violations []classify.Violation, severity string) []classify.Violation {
	var out []classify.Violation
	for _, v := range violations {
		if v.Severity == severity {
			out = append(out, v)
		}
	}
	return out
}
