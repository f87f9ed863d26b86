// horizons.go — клиент эфемеридного API JPL Horizons.
//
// Набор параметров запроса фиксирован для воспроизводимости:
// одинаковый target всегда даёт одинаковый URL запроса.
package fetch

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// horizonsQuery возвращает детерминированный набор параметров запроса
// эфемерид для указанного целевого объекта.
func horizonsQuery(target string) url.Values {
	return url.Values{
		"format":     {"json"},
		"COMMAND":    {"'" + target + "'"},
		"OBJ_DATA":   {"YES"},
		"MAKE_EPHEM": {"YES"},
		"EPHEM_TYPE": {"OBSERVER"},
		"CENTER":     {"500@399"},
		"START_TIME": {"2025-01-01"},
		"STOP_TIME":  {"2025-01-02"},
		"STEP_SIZE":  {"1d"},
		"QUANTITIES": {"1,9,20,23,24"},
	}
}

// HorizonsResult — результат запроса эфемерид.
type HorizonsResult struct {
	// Data — тело ответа API побайтово, без нормализаций
	Data []byte
	// RequestURL — фактический URL запроса (сохраняется в provenance)
	RequestURL string
}

// HorizonsClient — клиент API JPL Horizons.
type HorizonsClient struct {
	apiURL     string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewHorizonsClient создаёт клиент Horizons.
// apiURL — endpoint API из реестра источников
// (например, https://ssd.jpl.nasa.gov/api/horizons.api).
func NewHorizonsClient(apiURL string, timeout time.Duration, logger *slog.Logger) *HorizonsClient {
	return &HorizonsClient{
		apiURL:     strings.TrimRight(apiURL, "/"),
		httpClient: newHTTPClient(timeout),
		logger:     logger.With(slog.String("component", "horizons_client")),
	}
}

// APIURL возвращает endpoint API без параметров запроса.
func (c *HorizonsClient) APIURL() string {
	return c.apiURL
}

// Fetch запрашивает эфемериды целевого объекта.
// url.Values.Encode сортирует ключи, URL запроса детерминирован.
func (c *HorizonsClient) Fetch(ctx context.Context, target string) (*HorizonsResult, error) {
	reqURL := c.apiURL + "?" + horizonsQuery(target).Encode()

	c.logger.Info("Запрос эфемерид Horizons",
		slog.String("target", target),
		slog.String("url", reqURL),
	)

	data, err := doGet(ctx, c.httpClient, "jpl_horizons", reqURL)
	if err != nil {
		return nil, err
	}

	return &HorizonsResult{
		Data:       data,
		RequestURL: reqURL,
	}, nil
}
