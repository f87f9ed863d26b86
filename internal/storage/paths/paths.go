// Пакет paths — детерминированная раскладка хранилища на диске.
//
// Контракт раскладки (побайтово точный):
//
//	data/raw/<YYYY-MM-DD>/<source_id>/<dataset_key>/
//	  records/<record_id>.json
//	  payload/<record_id>__payload.json
//
// Дата — календарная дата ингеста по UTC, не дата получения
// исходных данных их источником.
package paths

import (
	"path/filepath"
	"time"
)

const (
	// rawSubdir — каталог RAW-слоя под корнем данных.
	rawSubdir = "raw"
	// recordsSubdir — каталог записей внутри scope.
	recordsSubdir = "records"
	// payloadSubdir — каталог payload-артефактов внутри scope.
	payloadSubdir = "payload"
	// recordSuffix — суффикс файла записи.
	recordSuffix = ".json"
	// payloadSuffix — суффикс payload-файла.
	payloadSuffix = "__payload.json"
	// dateLayout — формат даты в пути.
	dateLayout = "2006-01-02"
)

// ScopePaths — директории одного scope (дата, источник, датасет).
// Scope создаётся неявно при первом ингесте и никогда не удаляется.
type ScopePaths struct {
	// Base — корневая директория scope
	Base string
	// RecordsDir — директория записей
	RecordsDir string
	// PayloadDir — директория payload-артефактов
	PayloadDir string
}

// Resolver — чистая функция раскладки над корнем данных.
// Никакого глобального состояния: корень передаётся явно,
// хранилище тестируемо против временной директории.
type Resolver struct {
	root string
}

// NewResolver создаёт Resolver над указанным корнем данных (IM_DATA_ROOT).
func NewResolver(root string) Resolver {
	return Resolver{root: root}
}

// Root возвращает корень данных.
func (r Resolver) Root() string {
	return r.root
}

// RawRoot возвращает корень RAW-слоя (<root>/raw).
func (r Resolver) RawRoot() string {
	return filepath.Join(r.root, rawSubdir)
}

// Resolve возвращает директории scope для тройки (дата, источник, датасет).
// Детерминирована: одна тройка всегда даёт один и тот же путь.
func (r Resolver) Resolve(date time.Time, sourceID, datasetKey string) ScopePaths {
	base := filepath.Join(r.RawRoot(), date.UTC().Format(dateLayout), sourceID, datasetKey)
	return ScopePaths{
		Base:       base,
		RecordsDir: filepath.Join(base, recordsSubdir),
		PayloadDir: filepath.Join(base, payloadSubdir),
	}
}

// RecordPath возвращает путь файла записи для данного record_id.
func (sp ScopePaths) RecordPath(recordID string) string {
	return filepath.Join(sp.RecordsDir, recordID+recordSuffix)
}

// PayloadPath возвращает путь payload-файла для данного record_id.
func (sp ScopePaths) PayloadPath(recordID string) string {
	return filepath.Join(sp.PayloadDir, recordID+payloadSuffix)
}

// RelativePayloadPath возвращает относительный путь от записи к payload,
// сохраняемый в поле payload_path.
func RelativePayloadPath(recordID string) string {
	return filepath.ToSlash(filepath.Join("..", payloadSubdir, recordID+payloadSuffix))
}

// PayloadName возвращает имя payload-файла для данного record_id.
func PayloadName(recordID string) string {
	return recordID + payloadSuffix
}

// RecordName возвращает имя файла записи для данного record_id.
func RecordName(recordID string) string {
	return recordID + recordSuffix
}
