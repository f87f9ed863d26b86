// Пакет classify — классификация артефактов и валидация их метаданных.
//
// Научное правило: у датасета есть научная ценность только если он явно
// помечен как RAW_DATA, прослеживается до официального источника из
// allow-list, независимо скачиваем и проверяем. API-снимки и вычисленные
// эфемериды сырыми данными не являются никогда.
package classify

import (
	"errors"
	"fmt"
	"strings"

	"github.com/trizel/ingest-module/internal/domain/model"
	"github.com/trizel/ingest-module/internal/sources"
)

// ErrAmbiguous — происхождение артефакта не отображается ни в один
// из трёх классов.
var ErrAmbiguous = errors.New("происхождение артефакта не классифицируется")

// Descriptor — описание происхождения артефакта для классификации.
// Строится оркестратором из реестра источников и integrity-метаданных.
type Descriptor struct {
	// SourceID — идентификатор источника из реестра
	SourceID string
	// Agency — агентство-владелец источника
	Agency string
	// EndpointURL — URL endpoint-а, с которого получены данные
	EndpointURL string
	// EndpointType — тип endpoint-а (api, archive, portal, pipeline)
	EndpointType string
	// RawDataSource — объявлен ли endpoint источником сырых данных
	RawDataSource bool
	// License — лицензия/политика публикации данных
	License string
	// Checksum — hex-дайджест payload (пустой, если не вычислен)
	Checksum string
}

// Classifier — применяет правила классификации поверх allow-list реестра.
type Classifier struct {
	reg *sources.Registry
}

// NewClassifier создаёт классификатор над реестром источников.
func NewClassifier(reg *sources.Registry) *Classifier {
	return &Classifier{reg: reg}
}

// Classify применяет упорядоченное правило классификации:
//
//  1. real-time/вычисленный API ответ → SNAPSHOT
//  2. прямая архивная загрузка из allow-list источника, прошедшая
//     integrity/provenance проверки → RAW_DATA
//  3. выход локального конвейера обработки → DERIVED
//  4. иначе — отказ: происхождение неоднозначно
//
// Классы взаимоисключающие; присвоенный класс неизменяем.
func (c *Classifier) Classify(d Descriptor) (model.Classification, error) {
	switch d.EndpointType {
	case sources.EndpointAPI:
		// Вычисленный API-ответ никогда не RAW_DATA
		return model.ClassSnapshot, nil

	case sources.EndpointArchive:
		if c.rawDataEligible(d) {
			return model.ClassRawData, nil
		}
		// Архив, не прошедший проверки, не деградирует в SNAPSHOT:
		// происхождение считается неоднозначным
		return "", fmt.Errorf("%w: архивный источник %q не прошёл integrity/provenance проверки",
			ErrAmbiguous, d.SourceID)

	case sources.EndpointPipeline:
		return model.ClassDerived, nil

	default:
		return "", fmt.Errorf("%w: endpoint типа %q (источник %q)",
			ErrAmbiguous, d.EndpointType, d.SourceID)
	}
}

// rawDataEligible проверяет требования RAW_DATA: allow-list внешнее
// агентство, объявленный источник сырых данных, ненулевая контрольная
// сумма, проверяемый endpoint и явная лицензия.
func (c *Classifier) rawDataEligible(d Descriptor) bool {
	return d.RawDataSource &&
		c.reg.ExternalAgencyAllowed(d.Agency) &&
		d.Checksum != "" &&
		verifiableEndpoint(d.EndpointURL) &&
		d.License != ""
}

// verifiableEndpoint возвращает true для публично проверяемого URL.
func verifiableEndpoint(url string) bool {
	switch url {
	case "", "UNKNOWN", "INTERNAL_PIPELINE":
		return false
	}
	return strings.HasPrefix(url, "https://") || strings.HasPrefix(url, "http://")
}
