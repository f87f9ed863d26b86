// Пакет recordstore — append-only хранилище пар артефактов.
//
// Каждый ингест порождает ровно два файла в пределах scope:
// запись records/<id>.json и payload payload/<id>__payload.json.
// Порядок строго фиксирован: сначала payload, затем запись.
// Запись, ссылающаяся на отсутствующий payload, недопустима;
// payload без записи — допустимое переходное состояние, которое
// обнаруживает фоновый аудит.
//
// Хранилище append-only: никаких обновлений, перезаписей и удалений.
// Все операции записи выполняются атомарно: temp → fsync → rename.
package recordstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/trizel/ingest-module/internal/domain/model"
	"github.com/trizel/ingest-module/internal/storage/ident"
	"github.com/trizel/ingest-module/internal/storage/integrity"
	"github.com/trizel/ingest-module/internal/storage/paths"
)

// ErrArtifactExists — целевой путь уже занят после успешного выделения
// идентификатора. Это дефект аллокатора, а не ожидаемая коллизия:
// ингест прерывается без записи поверх существующего артефакта.
var ErrArtifactExists = errors.New("целевой артефакт уже существует: дефект выделения идентификатора")

// Scope — адрес группы записей: календарная дата ингеста (UTC),
// идентификатор источника и ключ датасета.
type Scope struct {
	Date       time.Time
	SourceID   string
	DatasetKey string
}

// Result — итог операции Put или DryRun.
type Result struct {
	// Record — заполненная запись (в dry_run — какой она была бы).
	Record *model.Record
	// RecordPath — абсолютный путь файла записи. Пустой в dry_run.
	RecordPath string
	// PayloadPath — абсолютный путь payload-файла. Пустой в dry_run.
	PayloadPath string
}

// Store — хранилище пар (запись, payload) поверх файловой системы.
type Store struct {
	resolver paths.Resolver
	alloc    *ident.Allocator

	// now — источник времени для retrieved_utc. Подменяется в тестах.
	now func() time.Time
}

// New создаёт Store над указанным корнем данных.
func New(resolver paths.Resolver, alloc *ident.Allocator) *Store {
	return &Store{
		resolver: resolver,
		alloc:    alloc,
		now:      model.NowUTC,
	}
}

// NewWithClock создаёт Store с внешним источником времени.
// Используется в тестах.
func NewWithClock(resolver paths.Resolver, alloc *ident.Allocator, now func() time.Time) *Store {
	return &Store{
		resolver: resolver,
		alloc:    alloc,
		now:      now,
	}
}

// Resolver возвращает resolver раскладки хранилища.
func (s *Store) Resolver() paths.Resolver {
	return s.resolver
}

// Put сохраняет пару артефактов для нового события ингеста.
//
// Порядок операций:
//  1. выделение record_id в пределах scope;
//  2. атомарная запись payload;
//  3. перечитывание payload с диска — дайджест и размер берутся
//     из перечитанного файла, не из буфера в памяти;
//  4. атомарная запись файла записи.
//
// draft содержит поля, известные до записи (классификация, provenance,
// агентство, endpoint, лицензия). RecordID, RetrievedUTC, Checksum,
// SHA256, SizeBytes и PayloadPath заполняет Put.
func (s *Store) Put(scope Scope, payload []byte, draft model.Record) (*Result, error) {
	sp := s.resolver.Resolve(scope.Date, scope.SourceID, scope.DatasetKey)

	for _, dir := range []string{sp.RecordsDir, sp.PayloadDir} {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("не удалось создать директорию %s: %w", dir, err)
		}
	}

	recordID, err := s.alloc.Allocate(sp)
	if err != nil {
		return nil, err
	}

	recordPath := sp.RecordPath(recordID)
	payloadPath := sp.PayloadPath(recordID)

	// Успешное выделение гарантирует свободные пути; занятый путь
	// здесь означает дефект аллокатора и прерывает ингест.
	if pathExists(recordPath) || pathExists(payloadPath) {
		return nil, fmt.Errorf("%w: record_id=%s", ErrArtifactExists, recordID)
	}

	// Payload пишется первым: запись никогда не ссылается в пустоту.
	if err := writeAtomic(payloadPath, payload); err != nil {
		return nil, fmt.Errorf("ошибка записи payload: %w", err)
	}

	digest, err := integrity.SumFile(payloadPath)
	if err != nil {
		return nil, fmt.Errorf("ошибка вычисления дайджеста payload: %w", err)
	}
	size, err := integrity.SizeFile(payloadPath)
	if err != nil {
		return nil, fmt.Errorf("ошибка определения размера payload: %w", err)
	}

	rec := draft
	rec.RecordID = recordID
	rec.RetrievedUTC = model.FormatUTC(s.now())
	rec.SHA256 = digest
	rec.SizeBytes = size
	rec.Checksum = model.Checksum{
		Algorithm: model.ChecksumAlgorithmSHA256,
		Value:     digest,
	}
	rec.PayloadPath = paths.RelativePayloadPath(recordID)

	data, err := json.MarshalIndent(&rec, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("ошибка сериализации записи: %w", err)
	}

	if err := writeAtomic(recordPath, data); err != nil {
		return nil, fmt.Errorf("ошибка записи файла записи: %w", err)
	}

	return &Result{
		Record:      &rec,
		RecordPath:  recordPath,
		PayloadPath: payloadPath,
	}, nil
}

// DryRun проходит весь путь ингеста без побочных эффектов на диске:
// выделяет record_id, вычисляет дайджест и размер по буферу
// и возвращает запись, которая была бы сохранена.
func (s *Store) DryRun(scope Scope, payload []byte, draft model.Record) (*Result, error) {
	sp := s.resolver.Resolve(scope.Date, scope.SourceID, scope.DatasetKey)

	recordID, err := s.alloc.Allocate(sp)
	if err != nil {
		return nil, err
	}

	digest := integrity.SumBytes(payload)

	rec := draft
	rec.RecordID = recordID
	rec.RetrievedUTC = model.FormatUTC(s.now())
	rec.SHA256 = digest
	rec.SizeBytes = integrity.Size(payload)
	rec.Checksum = model.Checksum{
		Algorithm: model.ChecksumAlgorithmSHA256,
		Value:     digest,
	}
	rec.PayloadPath = paths.RelativePayloadPath(recordID)

	return &Result{Record: &rec}, nil
}

// ReadRecord читает и десериализует файл записи.
func ReadRecord(path string) (*model.Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения записи %s: %w", path, err)
	}

	var rec model.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("ошибка разбора записи %s: %w", path, err)
	}

	return &rec, nil
}

// ScopeRef — обнаруженный на диске scope.
type ScopeRef struct {
	Date       string
	SourceID   string
	DatasetKey string
	Paths      paths.ScopePaths
}

// Scopes сканирует RAW-слой и возвращает все scope в детерминированном
// порядке. Отсутствующий корень — пустое хранилище, не ошибка.
func (s *Store) Scopes() ([]ScopeRef, error) {
	rawRoot := s.resolver.RawRoot()

	dates, err := listDirs(rawRoot)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("ошибка сканирования %s: %w", rawRoot, err)
	}

	var refs []ScopeRef
	for _, date := range dates {
		sources, err := listDirs(filepath.Join(rawRoot, date))
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования %s: %w", filepath.Join(rawRoot, date), err)
		}
		for _, src := range sources {
			datasets, err := listDirs(filepath.Join(rawRoot, date, src))
			if err != nil {
				return nil, fmt.Errorf("ошибка сканирования %s: %w", filepath.Join(rawRoot, date, src), err)
			}
			for _, ds := range datasets {
				t, err := time.Parse("2006-01-02", date)
				if err != nil {
					// Посторонняя директория в RAW-слое, пропускаем.
					continue
				}
				refs = append(refs, ScopeRef{
					Date:       date,
					SourceID:   src,
					DatasetKey: ds,
					Paths:      s.resolver.Resolve(t, src, ds),
				})
			}
		}
	}

	return refs, nil
}

// RecordIDs возвращает идентификаторы всех записей scope.
func (s *Store) RecordIDs(sp paths.ScopePaths) ([]string, error) {
	return listIDs(sp.RecordsDir, ".json", "__payload.json")
}

// PayloadIDs возвращает идентификаторы всех payload-файлов scope.
func (s *Store) PayloadIDs(sp paths.ScopePaths) ([]string, error) {
	names, err := listFiles(sp.PayloadDir)
	if err != nil {
		return nil, err
	}

	var ids []string
	for _, name := range names {
		if strings.HasSuffix(name, "__payload.json") {
			ids = append(ids, strings.TrimSuffix(name, "__payload.json"))
		}
	}
	return ids, nil
}

// writeAtomic атомарно записывает данные по указанному пути.
// Паттерн: temp файл → запись → fsync → atomic rename.
// При ошибке temp файл удаляется.
func writeAtomic(path string, data []byte) error {
	tmpPath := path + ".tmp"

	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("ошибка создания временного файла: %w", err)
	}

	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("ошибка записи: %w", err)
	}

	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("ошибка fsync: %w", err)
	}

	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("ошибка закрытия файла: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("ошибка атомарного переименования: %w", err)
	}

	return nil
}

// listIDs возвращает идентификаторы файлов в директории с суффиксом
// suffix, исключая файлы с суффиксом exclude.
func listIDs(dir, suffix, exclude string) ([]string, error) {
	names, err := listFiles(dir)
	if err != nil {
		return nil, err
	}

	var ids []string
	for _, name := range names {
		if exclude != "" && strings.HasSuffix(name, exclude) {
			continue
		}
		if strings.HasSuffix(name, suffix) {
			ids = append(ids, strings.TrimSuffix(name, suffix))
		}
	}
	return ids, nil
}

// listFiles возвращает имена обычных файлов директории в сортированном
// порядке. Отсутствующая директория — пустой результат.
func listFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("ошибка чтения директории %s: %w", dir, err)
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() && !strings.HasSuffix(e.Name(), ".tmp") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// listDirs возвращает имена поддиректорий в сортированном порядке.
func listDirs(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// pathExists возвращает true, если путь существует.
func pathExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
