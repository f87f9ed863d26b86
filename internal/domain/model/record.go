// Пакет model — доменные модели Ingest Module.
// Record — единая структура записи об ингесте, используется
// как in-memory представление и как формат records/<id>.json на диске.
package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// Classification — класс данных артефакта.
// Три взаимоисключающих класса, присваивается один раз при создании записи.
type Classification string

const (
	// ClassRawData — сырые данные: прямая загрузка из архива
	// официального источника, проверяемая и воспроизводимая.
	ClassRawData Classification = "RAW_DATA"
	// ClassSnapshot — снимок вычисленного/API-ответа.
	// Самостоятельной научной ценности не имеет.
	ClassSnapshot Classification = "SNAPSHOT"
	// ClassDerived — результат локальной обработки или агрегации.
	ClassDerived Classification = "DERIVED"
)

// ChecksumAlgorithmSHA256 — единственный допустимый алгоритм контрольной суммы.
// MD5 запрещён контрактом данных: его наличие — жёсткая ошибка валидации.
const ChecksumAlgorithmSHA256 = "sha256"

// Checksum — контрольная сумма payload в управляемой форме
// {algorithm, value}. value — hex-представление дайджеста.
type Checksum struct {
	Algorithm string `json:"algorithm"`
	Value     string `json:"value"`
}

// TimestampLayout — формат retrieved_utc: ISO-8601 UTC с явным смещением.
// Пример: 2026-08-29T14:03:27+00:00
const TimestampLayout = "2006-01-02T15:04:05+00:00"

// NowUTC возвращает текущее UTC-время, усечённое до секунд.
func NowUTC() time.Time {
	return time.Now().UTC().Truncate(time.Second)
}

// FormatUTC форматирует время в retrieved_utc-представление.
func FormatUTC(t time.Time) string {
	return t.UTC().Truncate(time.Second).Format(TimestampLayout)
}

// Record — запись об одном событии ингеста. Создаётся ровно один раз,
// никогда не изменяется и не удаляется (append-only контракт).
// Поля sha256 и size_bytes вычисляются по payload, перечитанному с диска,
// а не по буферу в памяти — так битая запись обнаруживается как
// расхождение дайджеста при последующей независимой проверке.
type Record struct {
	// RecordID — уникальный идентификатор записи (UUID v4).
	// Уникален в пределах scope (дата, источник, датасет).
	RecordID string `json:"record_id"`

	// RetrievedUTC — момент записи, ISO-8601 UTC с явным смещением.
	// Присваивается один раз при записи, далее неизменяем.
	RetrievedUTC string `json:"retrieved_utc"`

	// Classification — класс данных, вычисляется один раз при создании.
	Classification Classification `json:"classification"`

	// SourceAgency — агентство-источник из allow-list.
	SourceAgency string `json:"source_agency"`

	// AgencyEndpoint — URL endpoint-а, с которого получены данные.
	AgencyEndpoint string `json:"agency_endpoint"`

	// License — лицензия/политика публикации данных.
	License string `json:"license"`

	// Checksum — контрольная сумма payload в форме {algorithm, value}.
	Checksum Checksum `json:"checksum"`

	// Provenance — происхождение артефакта (tagged union, см. provenance.go).
	Provenance Provenance `json:"provenance"`

	// SHA256 — hex-дайджест payload, как он сохранён на диске (64 символа).
	SHA256 string `json:"sha256"`

	// SizeBytes — размер payload на диске в байтах.
	SizeBytes int64 `json:"size_bytes"`

	// PayloadPath — относительный путь от записи к payload-артефакту.
	PayloadPath string `json:"payload_path"`

	// ProcessingPipeline — идентификатор конвейера обработки.
	// Обязателен для DERIVED, для остальных классов отсутствует.
	ProcessingPipeline string `json:"processing_pipeline,omitempty"`

	// SourceRawData — ссылки на RAW_DATA записи, лежащие в основе снимка.
	// Мягкий инвариант для SNAPSHOT: научная ценность снимка условна
	// без этой связи, но структурная валидность её не требует.
	SourceRawData []string `json:"source_raw_data,omitempty"`
}

// recordJSON — вспомогательная форма для (де)сериализации Record:
// provenance проходит через envelope с дискриминатором source.
type recordJSON struct {
	RecordID           string          `json:"record_id"`
	RetrievedUTC       string          `json:"retrieved_utc"`
	Classification     Classification  `json:"classification"`
	SourceAgency       string          `json:"source_agency"`
	AgencyEndpoint     string          `json:"agency_endpoint"`
	License            string          `json:"license"`
	Checksum           Checksum        `json:"checksum"`
	Provenance         json.RawMessage `json:"provenance"`
	SHA256             string          `json:"sha256"`
	SizeBytes          int64           `json:"size_bytes"`
	PayloadPath        string          `json:"payload_path"`
	ProcessingPipeline string          `json:"processing_pipeline,omitempty"`
	SourceRawData      []string        `json:"source_raw_data,omitempty"`
}

// MarshalJSON сериализует Record, добавляя в provenance дискриминатор source.
func (r Record) MarshalJSON() ([]byte, error) {
	prov, err := MarshalProvenance(r.Provenance)
	if err != nil {
		return nil, fmt.Errorf("ошибка сериализации provenance: %w", err)
	}

	return json.Marshal(recordJSON{
		RecordID:           r.RecordID,
		RetrievedUTC:       r.RetrievedUTC,
		Classification:     r.Classification,
		SourceAgency:       r.SourceAgency,
		AgencyEndpoint:     r.AgencyEndpoint,
		License:            r.License,
		Checksum:           r.Checksum,
		Provenance:         prov,
		SHA256:             r.SHA256,
		SizeBytes:          r.SizeBytes,
		PayloadPath:        r.PayloadPath,
		ProcessingPipeline: r.ProcessingPipeline,
		SourceRawData:      r.SourceRawData,
	})
}

// UnmarshalJSON десериализует Record, восстанавливая конкретный
// вариант provenance по дискриминатору source.
func (r *Record) UnmarshalJSON(data []byte) error {
	var raw recordJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	prov, err := UnmarshalProvenance(raw.Provenance)
	if err != nil {
		return fmt.Errorf("ошибка разбора provenance: %w", err)
	}

	r.RecordID = raw.RecordID
	r.RetrievedUTC = raw.RetrievedUTC
	r.Classification = raw.Classification
	r.SourceAgency = raw.SourceAgency
	r.AgencyEndpoint = raw.AgencyEndpoint
	r.License = raw.License
	r.Checksum = raw.Checksum
	r.Provenance = prov
	r.SHA256 = raw.SHA256
	r.SizeBytes = raw.SizeBytes
	r.PayloadPath = raw.PayloadPath
	r.ProcessingPipeline = raw.ProcessingPipeline
	r.SourceRawData = raw.SourceRawData
	return nil
}
