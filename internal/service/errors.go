// Пакет service — бизнес-логика Ingest Module.
// errors.go — структурированные ошибки ингеста.
//
// Оркестратор никогда не глотает ошибки: результат бинарный —
// либо полная запись, либо IngestError с машиночитаемым кодом.
// Форматирование в [ERROR]/[HINT] и выбор exit-кода — забота CLI.
package service

import (
	"fmt"

	"github.com/trizel/ingest-module/internal/domain/classify"
)

// Коды ошибок ингеста.
const (
	// CodeAllocationExhausted — аллокатор идентификаторов превысил
	// границу попыток; частичных записей нет.
	CodeAllocationExhausted = "ALLOCATION_EXHAUSTED"
	// CodeUnknownSource — источник или локатор вне allow-list;
	// отклоняется до любого I/O.
	CodeUnknownSource = "UNKNOWN_SOURCE"
	// CodePayloadUnavailable — ни offline-файл, ни сетевой запрос
	// не дали payload; отклоняется до записи.
	CodePayloadUnavailable = "PAYLOAD_UNAVAILABLE"
	// CodeWriteFailure — ошибка файловой системы при записи.
	// Осиротевший payload после этой ошибки — известное допустимое
	// состояние: аудит его обнаруживает, но никогда не удаляет.
	CodeWriteFailure = "WRITE_FAILURE"
	// CodeValidationFailure — нарушены инварианты метаданных;
	// несёт ПОЛНЫЙ список нарушений, не только первое.
	CodeValidationFailure = "VALIDATION_FAILURE"
	// CodeClassificationAmbiguous — происхождение не отображается
	// ни в один из трёх классов.
	CodeClassificationAmbiguous = "CLASSIFICATION_AMBIGUOUS"
)

// IngestError — структурированная ошибка ингеста.
type IngestError struct {
	// Code — машиночитаемый код из таксономии выше
	Code string
	// Message — описание ошибки
	Message string
	// Hints — 1–3 подсказки для пользователя CLI
	Hints []string
	// Violations — полный список нарушений (для VALIDATION_FAILURE)
	Violations []classify.Violation
	// Err — внутренняя причина
	Err error
}

func (e *IngestError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap возвращает внутреннюю причину для errors.Is/As.
func (e *IngestError) Unwrap() error {
	return e.Err
}
