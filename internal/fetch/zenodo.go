// zenodo.go — клиент DOI-архива (Zenodo и совместимые репозитории
// с записями GET {base}/{record_id}).
//
// DOI никогда не выводится из данных: принимается только явный DOI
// с префиксом из реестра источников, всё остальное отклоняется.
package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// ErrInvalidDOI — локатор не соответствует префиксу DOI архива.
var ErrInvalidDOI = errors.New("некорректный формат DOI архива")

// ZenodoResult — результат получения записи Zenodo.
type ZenodoResult struct {
	// Data — тело ответа API побайтово, без нормализаций
	Data []byte
	// Version — версия записи из метаданных ("unknown", если не указана)
	Version string
}

// ZenodoClient — клиент REST API DOI-архива.
type ZenodoClient struct {
	baseURL    string
	doiPrefix  string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewZenodoClient создаёт клиент DOI-архива.
// baseURL — endpoint записей из реестра источников
// (например, https://zenodo.org/api/records);
// doiPrefix — допустимый префикс DOI (doi_prefix источника).
func NewZenodoClient(baseURL, doiPrefix string, timeout time.Duration, logger *slog.Logger) *ZenodoClient {
	return &ZenodoClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		doiPrefix:  doiPrefix,
		httpClient: newHTTPClient(timeout),
		logger:     logger.With(slog.String("component", "zenodo_client")),
	}
}

// RecordID извлекает идентификатор записи из DOI по префиксу архива.
// Формат DOI Zenodo: 10.5281/zenodo.<record_id>.
func RecordID(doi, prefix string) (string, error) {
	if prefix == "" || !strings.HasPrefix(doi, prefix) {
		return "", fmt.Errorf("%w: %q", ErrInvalidDOI, doi)
	}

	id := strings.TrimPrefix(doi, prefix)
	if id == "" {
		return "", fmt.Errorf("%w: пустой идентификатор записи в %q", ErrInvalidDOI, doi)
	}
	return id, nil
}

// Fetch загружает запись архива по явному DOI.
// Формат запроса: GET {baseURL}/{record_id}.
func (c *ZenodoClient) Fetch(ctx context.Context, doi string) (*ZenodoResult, error) {
	recordID, err := RecordID(doi, c.doiPrefix)
	if err != nil {
		return nil, err
	}

	reqURL := c.baseURL + "/" + recordID

	c.logger.Info("Запрос записи Zenodo",
		slog.String("doi", doi),
		slog.String("url", reqURL),
	)

	data, err := doGet(ctx, c.httpClient, "zenodo", reqURL)
	if err != nil {
		return nil, err
	}

	return &ZenodoResult{
		Data:    data,
		Version: ExtractVersion(data),
	}, nil
}

// ExtractVersion достаёт metadata.version из ответа Zenodo.
// Отсутствующая или нечитаемая версия — "unknown", не ошибка.
// Используется и для offline-входов, минующих клиент.
func ExtractVersion(data []byte) string {
	var resp struct {
		Metadata struct {
			Version string `json:"version"`
		} `json:"metadata"`
	}
	if err := json.Unmarshal(data, &resp); err != nil || resp.Metadata.Version == "" {
		return "unknown"
	}
	return resp.Metadata.Version
}
