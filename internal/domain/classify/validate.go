// validate.go — проверка метаданных артефакта по обязательной схеме.
//
// Валидация независима от корректности классификации: она проверяет,
// что метаданные структурно полны и согласованы. Нарушения возвращаются
// списком, а не по одному: пакетная проверка хранилища обязана сообщить
// обо ВСЕХ невалидных артефактах, а не остановиться на первом.
package classify

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/trizel/ingest-module/internal/domain/model"
)

// Правила валидации (машиночитаемые идентификаторы нарушений).
const (
	RuleJSONParse           = "JSON_PARSE"
	RuleSingleMetadataBlock = "SINGLE_METADATA_BLOCK"
	RuleRequiredField       = "REQUIRED_FIELD"
	RuleFieldType           = "FIELD_TYPE"
	RuleDataClass           = "DATA_CLASS"
	RuleAgencyAllowList     = "AGENCY_ALLOWLIST"
	RuleTimestampFormat     = "TIMESTAMP_FORMAT"
	RuleChecksumAlgorithm   = "CHECKSUM_ALGORITHM"
	RuleChecksumConsistency = "CHECKSUM_CONSISTENCY"
	RuleRawDataAgency       = "RAW_DATA_AGENCY"
	RuleRawDataEndpoint     = "RAW_DATA_ENDPOINT"
	RuleRawDataLicense      = "RAW_DATA_LICENSE"
	RuleSnapshotProvenance  = "SNAPSHOT_PROVENANCE"
	RuleDerivedPipeline     = "DERIVED_PIPELINE"
)

// Степени серьёзности нарушения.
const (
	SeverityError   = "ERROR"
	SeverityWarning = "WARNING"
)

// legacyRootKeys — запрещённые корневые ключи устаревшего формата.
// Метаданные обязаны присутствовать ровно одним блоком на корне записи.
var legacyRootKeys = []string{"metadata", "trizel_metadata", "platforms_registry"}

// requiredStringFields — обязательные строковые поля записи.
var requiredStringFields = []string{
	"record_id",
	"retrieved_utc",
	"classification",
	"source_agency",
	"agency_endpoint",
	"license",
	"sha256",
	"payload_path",
}

// Violation — одно нарушение схемы метаданных.
type Violation struct {
	// Artifact — путь или идентификатор проблемного артефакта
	Artifact string `json:"artifact"`
	// Rule — машиночитаемый идентификатор правила
	Rule string `json:"rule"`
	// Severity — ERROR или WARNING
	Severity string `json:"severity"`
	// Message — описание нарушения
	Message string `json:"message"`
}

// String форматирует нарушение для логов и CLI.
func (v Violation) String() string {
	return fmt.Sprintf("[%s] %s: %s — %s", v.Severity, v.Artifact, v.Rule, v.Message)
}

// ErrorsOnly возвращает только нарушения уровня ERROR.
func ErrorsOnly(violations []Violation) []Violation {
	var out []Violation
	for _, v := range violations {
		if v.Severity == SeverityError {
			out = append(out, v)
		}
	}
	return out
}

// Validate проверяет сырой JSON записи по обязательной схеме метаданных.
// artifact — идентификатор артефакта для привязки нарушений (путь файла).
// Возвращает полный список нарушений; пустой список — артефакт валиден.
func (c *Classifier) Validate(artifact string, raw []byte) []Violation {
	var violations []Violation
	add := func(rule, severity, format string, args ...any) {
		violations = append(violations, Violation{
			Artifact: artifact,
			Rule:     rule,
			Severity: severity,
			Message:  fmt.Sprintf(format, args...),
		})
	}

	var root map[string]any
	if err := json.Unmarshal(raw, &root); err != nil {
		add(RuleJSONParse, SeverityError, "невалидный JSON: %v", err)
		return violations
	}

	// --- Ровно один блок метаданных ---
	for _, key := range legacyRootKeys {
		if _, ok := root[key]; ok {
			add(RuleSingleMetadataBlock, SeverityError,
				"запрещённый корневой ключ устаревшего формата: %q", key)
		}
	}
	checkNestedDuplicates(artifact, root, "", &violations)

	// --- Обязательные поля и их типы ---
	for _, field := range requiredStringFields {
		val, ok := root[field]
		if !ok {
			add(RuleRequiredField, SeverityError, "отсутствует обязательное поле %q", field)
			continue
		}
		if _, ok := val.(string); !ok {
			add(RuleFieldType, SeverityError, "поле %q должно быть строкой", field)
		}
	}

	sizeVal, ok := root["size_bytes"]
	if !ok {
		add(RuleRequiredField, SeverityError, "отсутствует обязательное поле %q", "size_bytes")
	} else if size, isNum := sizeVal.(float64); !isNum || size < 0 || size != float64(int64(size)) {
		add(RuleFieldType, SeverityError, "поле size_bytes должно быть неотрицательным целым")
	}

	prov, ok := root["provenance"].(map[string]any)
	if !ok {
		add(RuleRequiredField, SeverityError, "отсутствует или не является объектом поле %q", "provenance")
	} else if src, isStr := prov["source"].(string); !isStr || src == "" {
		add(RuleFieldType, SeverityError, "provenance.source должно быть непустой строкой")
	}

	// --- Класс данных ---
	class, _ := root["classification"].(string)
	switch model.Classification(class) {
	case model.ClassRawData, model.ClassSnapshot, model.ClassDerived:
	case "":
		// уже учтено как отсутствующее/нестроковое поле
	default:
		add(RuleDataClass, SeverityError,
			"недопустимый класс %q, допустимые: RAW_DATA, SNAPSHOT, DERIVED", class)
	}

	// --- Allow-list агентств ---
	agency, _ := root["source_agency"].(string)
	if agency != "" && !c.reg.AgencyAllowed(agency) {
		add(RuleAgencyAllowList, SeverityError,
			"агентство %q отсутствует в allow-list", agency)
	}

	// --- Временная метка ---
	if ts, isStr := root["retrieved_utc"].(string); isStr && ts != "" {
		if !validUTCTimestamp(ts) {
			add(RuleTimestampFormat, SeverityError,
				"retrieved_utc %q не является ISO-8601 UTC с явным смещением", ts)
		}
	}

	// --- Контрольная сумма ---
	sha, _ := root["sha256"].(string)
	if sha != "" && !hexDigest64(sha) {
		add(RuleFieldType, SeverityError, "sha256 должен быть 64-символьной hex-строкой")
	}
	violations = append(violations, c.validateChecksum(artifact, root, sha)...)

	// --- Классо-специфичные требования ---
	switch model.Classification(class) {
	case model.ClassRawData:
		if agency != "" && !c.reg.ExternalAgencyAllowed(agency) {
			add(RuleRawDataAgency, SeverityError,
				"RAW_DATA требует внешнего агентства из allow-list, получено %q", agency)
		}
		if endpoint, _ := root["agency_endpoint"].(string); !verifiableEndpoint(endpoint) {
			add(RuleRawDataEndpoint, SeverityError,
				"RAW_DATA требует публично проверяемого agency_endpoint, получено %q", endpoint)
		}
		if license, _ := root["license"].(string); license == "" {
			add(RuleRawDataLicense, SeverityError, "RAW_DATA требует явной лицензии")
		}

	case model.ClassSnapshot:
		// Мягкий инвариант: снимок научно ценен только со ссылкой
		// на RAW_DATA основание. Структурно — предупреждение.
		if refs, _ := root["source_raw_data"].([]any); len(refs) == 0 {
			add(RuleSnapshotProvenance, SeverityWarning,
				"SNAPSHOT без ссылки source_raw_data на RAW_DATA основание")
		}

	case model.ClassDerived:
		if pipeline, _ := root["processing_pipeline"].(string); pipeline == "" {
			add(RuleDerivedPipeline, SeverityError,
				"DERIVED требует идентификатора processing_pipeline")
		}
	}

	return violations
}

// validateChecksum проверяет блок checksum {algorithm, value}.
// MD5 — жёсткая ошибка валидации, не предупреждение.
func (c *Classifier) validateChecksum(artifact string, root map[string]any, sha string) []Violation {
	var violations []Violation
	add := func(rule, format string, args ...any) {
		violations = append(violations, Violation{
			Artifact: artifact,
			Rule:     rule,
			Severity: SeverityError,
			Message:  fmt.Sprintf(format, args...),
		})
	}

	cs, ok := root["checksum"].(map[string]any)
	if !ok {
		add(RuleRequiredField, "отсутствует или не является объектом поле %q", "checksum")
		return violations
	}

	algorithm, _ := cs["algorithm"].(string)
	value, _ := cs["value"].(string)

	switch strings.ToLower(algorithm) {
	case model.ChecksumAlgorithmSHA256:
	case "md5":
		add(RuleChecksumAlgorithm, "алгоритм MD5 запрещён контрактом данных")
	default:
		add(RuleChecksumAlgorithm,
			"недопустимый алгоритм контрольной суммы %q, требуется sha256", algorithm)
	}

	if value == "" {
		add(RuleChecksumConsistency, "пустое значение контрольной суммы")
	} else if sha != "" && value != sha {
		add(RuleChecksumConsistency,
			"checksum.value не совпадает с полем sha256")
	}

	return violations
}

// checkNestedDuplicates ищет дублированные блоки метаданных на вложенных
// уровнях: ключи классификации допустимы только на корне записи.
func checkNestedDuplicates(artifact string, node any, path string, violations *[]Violation) {
	obj, ok := node.(map[string]any)
	if !ok {
		if arr, isArr := node.([]any); isArr {
			for i, item := range arr {
				checkNestedDuplicates(artifact, item, fmt.Sprintf("%s[%d]", path, i), violations)
			}
		}
		return
	}

	for key, val := range obj {
		childPath := key
		if path != "" {
			childPath = path + "." + key
		}
		if path != "" && (key == "classification" || key == "record_id" || key == "trizel_metadata") {
			*violations = append(*violations, Violation{
				Artifact: artifact,
				Rule:     RuleSingleMetadataBlock,
				Severity: SeverityError,
				Message:  fmt.Sprintf("дублированный блок метаданных: %s", childPath),
			})
		}
		checkNestedDuplicates(artifact, val, childPath, violations)
	}
}

// validUTCTimestamp проверяет формат ISO-8601 UTC с явным смещением.
// Допускаются формы "+00:00" и "Z"; ненулевое смещение — нарушение.
func validUTCTimestamp(ts string) bool {
	t, err := time.Parse(time.RFC3339, ts)
	if err != nil {
		return false
	}
	_, offset := t.Zone()
	return offset == 0
}

// hexDigest64 проверяет 64-символьную hex-строку (SHA-256).
func hexDigest64(s string) bool {
	if len(s) != 64 {
		return false
	}
	for _, r := range s {
		if (r < '0' || r > '9') && (r < 'a' || r > 'f') {
			return false
		}
	}
	return true
}
