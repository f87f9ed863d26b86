// Пакет index — потокобезопасный in-memory индекс записей об ингесте.
//
// Индекс строится при старте сканированием RAW-слоя (BuildFromStore)
// и пополняется синхронно после каждой успешной записи (Add).
// Даёт быстрые подсчёты по классификации и источнику без обращения
// к диску — /status и метрики читают только индекс.
//
// Не персистентный: при рестарте пересобирается из файлов записей.
// Хранилище append-only, поэтому удаления из индекса нет.
package index

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/trizel/ingest-module/internal/domain/model"
	"github.com/trizel/ingest-module/internal/storage/recordstore"
)

// Entry — элемент индекса: сводка записи плюс её scope.
type Entry struct {
	// Date — календарная дата ингеста (YYYY-MM-DD)
	Date string `json:"date"`
	// SourceID — идентификатор источника
	SourceID string `json:"source_id"`
	// DatasetKey — ключ датасета
	DatasetKey string `json:"dataset_key"`
	// RecordID — идентификатор записи
	RecordID string `json:"record_id"`
	// Classification — класс данных
	Classification model.Classification `json:"classification"`
	// RetrievedUTC — момент записи
	RetrievedUTC string `json:"retrieved_utc"`
	// SizeBytes — размер payload
	SizeBytes int64 `json:"size_bytes"`
	// SHA256 — дайджест payload
	SHA256 string `json:"sha256"`
}

// Stats — агрегированная сводка индекса для /status.
type Stats struct {
	// Total — общее количество записей
	Total int `json:"total"`
	// ByClassification — количество записей по классам
	ByClassification map[model.Classification]int `json:"by_classification"`
	// BySource — количество записей по источникам
	BySource map[string]int `json:"by_source"`
	// TotalSizeBytes — суммарный размер payload-артефактов
	TotalSizeBytes int64 `json:"total_size_bytes"`
}

// key уникален глобально: record_id уникален только в пределах scope.
type key struct {
	date, sourceID, datasetKey, recordID string
}

// Index — потокобезопасный in-memory индекс записей.
// Использует sync.RWMutex для конкурентного чтения и
// эксклюзивной записи.
type Index struct {
	mu      sync.RWMutex
	entries map[key]*Entry
	ready   bool
	logger  *slog.Logger
}

// New создаёт пустой индекс. Для заполнения вызовите BuildFromStore.
func New(logger *slog.Logger) *Index {
	return &Index{
		entries: make(map[key]*Entry),
		logger:  logger.With(slog.String("component", "index")),
	}
}

// BuildFromStore строит индекс сканированием RAW-слоя хранилища.
// Вызывается при старте и при пересборке аудитом. Заменяет текущее
// содержимое индекса. После успешного построения индекс помечается
// как ready.
func (idx *Index) BuildFromStore(store *recordstore.Store) error {
	scopes, err := store.Scopes()
	if err != nil {
		return fmt.Errorf("ошибка сканирования хранилища: %w", err)
	}

	entries := make(map[key]*Entry)
	skipped := 0
	for _, ref := range scopes {
		ids, err := store.RecordIDs(ref.Paths)
		if err != nil {
			return fmt.Errorf("ошибка чтения scope %s/%s/%s: %w", ref.Date, ref.SourceID, ref.DatasetKey, err)
		}
		for _, id := range ids {
			rec, err := recordstore.ReadRecord(ref.Paths.RecordPath(id))
			if err != nil {
				// Нечитаемая запись — забота аудита, индекс её пропускает
				skipped++
				continue
			}
			k := key{ref.Date, ref.SourceID, ref.DatasetKey, rec.RecordID}
			entries[k] = &Entry{
				Date:           ref.Date,
				SourceID:       ref.SourceID,
				DatasetKey:     ref.DatasetKey,
				RecordID:       rec.RecordID,
				Classification: rec.Classification,
				RetrievedUTC:   rec.RetrievedUTC,
				SizeBytes:      rec.SizeBytes,
				SHA256:         rec.SHA256,
			}
		}
	}

	idx.mu.Lock()
	idx.entries = entries
	idx.ready = true
	idx.mu.Unlock()

	idx.logger.Info("Индекс записей построен",
		slog.Int("records", len(entries)),
		slog.Int("skipped", skipped),
	)

	return nil
}

// IsReady возвращает true, если индекс построен и готов к использованию.
func (idx *Index) IsReady() bool {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.ready
}

// Add добавляет запись в индекс после успешного Put.
func (idx *Index) Add(scope recordstore.Scope, rec *model.Record) {
	date := scope.Date.UTC().Format("2006-01-02")

	idx.mu.Lock()
	defer idx.mu.Unlock()

	k := key{date, scope.SourceID, scope.DatasetKey, rec.RecordID}
	idx.entries[k] = &Entry{
		Date:           date,
		SourceID:       scope.SourceID,
		DatasetKey:     scope.DatasetKey,
		RecordID:       rec.RecordID,
		Classification: rec.Classification,
		RetrievedUTC:   rec.RetrievedUTC,
		SizeBytes:      rec.SizeBytes,
		SHA256:         rec.SHA256,
	}
}

// Count возвращает общее количество записей в индексе.
func (idx *Index) Count() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.entries)
}

// Stats возвращает агрегированную сводку по индексу.
func (idx *Index) Stats() Stats {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	st := Stats{
		Total:            len(idx.entries),
		ByClassification: make(map[model.Classification]int),
		BySource:         make(map[string]int),
	}
	for _, e := range idx.entries {
		st.ByClassification[e.Classification]++
		st.BySource[e.SourceID]++
		st.TotalSizeBytes += e.SizeBytes
	}
	return st
}
