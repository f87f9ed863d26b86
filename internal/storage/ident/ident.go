// Пакет ident — выделение коллизионно-безопасных идентификаторов записей.
//
// Идентификатор — UUID v4. Кандидат проверяется на существование
// обоих артефактов (записи и payload) в пределах scope; при коллизии
// кандидат отбрасывается и генерируется заново.
//
// Выделение ничего не резервирует: до фактической записи вызывающим
// кодом побочных эффектов нет, аллокатор только осматривает файловую
// систему. Гонка между проверкой и записью при конкурентных писателях
// в один scope — принятое ограничение (один ингест-процесс на scope).
package ident

import (
	"errors"
	"fmt"
	"os"

	"github.com/google/uuid"

	"github.com/trizel/ingest-module/internal/storage/paths"
)

// MaxAttempts — верхняя граница попыток выделения идентификатора.
// Практически недостижима при UUID v4, но защищает от бесконечного
// цикла при дефекте разрешения путей.
const MaxAttempts = 100

// ErrExhausted — превышена граница попыток выделения. Фатально для
// ингеста; частичных записей нет, так как выделение предшествует записи.
var ErrExhausted = errors.New("превышена граница попыток выделения record_id")

// Allocator — аллокатор идентификаторов записей.
type Allocator struct {
	// newID — генератор кандидатов. Подменяется в тестах для
	// детерминированной проверки ветки исчерпания.
	newID func() string
}

// New создаёт аллокатор с генератором UUID v4.
func New() *Allocator {
	return &Allocator{newID: uuid.NewString}
}

// NewWithGenerator создаёт аллокатор с внешним генератором идентификаторов.
// Используется в тестах.
func NewWithGenerator(newID func() string) *Allocator {
	return &Allocator{newID: newID}
}

// Allocate выделяет свободный record_id в пределах scope.
// Кандидат отбрасывается, если уже существует файл записи ИЛИ payload-файл
// с таким идентификатором. После MaxAttempts неудач возвращает ErrExhausted.
func (a *Allocator) Allocate(sp paths.ScopePaths) (string, error) {
	for attempt := 0; attempt < MaxAttempts; attempt++ {
		candidate := a.newID()

		if pathExists(sp.RecordPath(candidate)) || pathExists(sp.PayloadPath(candidate)) {
			continue
		}
		return candidate, nil
	}

	return "", fmt.Errorf("%w (попыток: %d)", ErrExhausted, MaxAttempts)
}

// pathExists возвращает true, если путь существует.
func pathExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
