// provenance.go — варианты происхождения артефакта.
//
// Provenance — tagged union, дискриминируемый полем source в JSON.
// Форма полей различается по источнику, поэтому вместо одной структуры
// со «всеми возможными» полями используются отдельные варианты.
package model

import (
	"encoding/json"
	"fmt"
)

// Теги источников в поле provenance.source.
const (
	SourceTagZenodo   = "zenodo"
	SourceTagHorizons = "jpl_horizons"
	SourceTagOffline  = "offline"
)

// Provenance — происхождение артефакта. Минимальный контракт —
// дискриминатор source; состав остальных полей зависит от варианта.
type Provenance interface {
	// SourceTag возвращает значение дискриминатора source.
	SourceTag() string
}

// ZenodoProvenance — происхождение для архивных записей Zenodo.
type ZenodoProvenance struct {
	// DOI — полный DOI записи (например, "10.5281/zenodo.16292189")
	DOI string `json:"doi"`
	// Version — версия записи из метаданных Zenodo ("unknown", если не указана)
	Version string `json:"version"`
}

// SourceTag реализует Provenance.
func (ZenodoProvenance) SourceTag() string { return SourceTagZenodo }

// HorizonsProvenance — происхождение для ответов JPL Horizons API.
type HorizonsProvenance struct {
	// Target — целевой объект запроса (например, "3I/ATLAS")
	Target string `json:"target"`
	// APIURL — URL API, на который выполнялся запрос
	APIURL string `json:"api_url"`
}

// SourceTag реализует Provenance.
func (HorizonsProvenance) SourceTag() string { return SourceTagHorizons }

// OfflineProvenance — происхождение для локальных файлов,
// загруженных без обращения к сети.
type OfflineProvenance struct {
	// InputPath — абсолютный путь входного файла
	InputPath string `json:"input_path"`
	// IngestedAt — момент загрузки файла, ISO-8601 UTC
	IngestedAt string `json:"ingested_at"`
}

// SourceTag реализует Provenance.
func (OfflineProvenance) SourceTag() string { return SourceTagOffline }

// MarshalProvenance сериализует вариант provenance, добавляя
// дискриминатор source к полям варианта.
func MarshalProvenance(p Provenance) (json.RawMessage, error) {
	if p == nil {
		return nil, fmt.Errorf("provenance не задан")
	}

	fields, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}

	// Поля варианта + дискриминатор в одном объекте
	var obj map[string]any
	if err := json.Unmarshal(fields, &obj); err != nil {
		return nil, err
	}
	obj["source"] = p.SourceTag()

	return json.Marshal(obj)
}

// UnmarshalProvenance восстанавливает конкретный вариант provenance
// по дискриминатору source. Неизвестный source — ошибка: источники
// ограничены явным allow-list, вывод новых не допускается.
func UnmarshalProvenance(data json.RawMessage) (Provenance, error) {
	var tag struct {
		Source string `json:"source"`
	}
	if err := json.Unmarshal(data, &tag); err != nil {
		return nil, fmt.Errorf("ошибка чтения дискриминатора source: %w", err)
	}

	switch tag.Source {
	case SourceTagZenodo:
		var p ZenodoProvenance
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, err
		}
		return p, nil
	case SourceTagHorizons:
		var p HorizonsProvenance
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, err
		}
		return p, nil
	case SourceTagOffline:
		var p OfflineProvenance
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, err
		}
		return p, nil
	case "":
		return nil, fmt.Errorf("provenance без дискриминатора source")
	default:
		return nil, fmt.Errorf("неизвестный source в provenance: %q", tag.Source)
	}
}
